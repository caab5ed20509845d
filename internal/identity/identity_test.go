package identity

import (
	"regexp"
	"testing"

	"github.com/grantiva/grantiva-go/internal/model"
)

var hexDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

func TestHashes_DeterministicAndDistinct(t *testing.T) {
	inputs := []struct{ deviceID, bundleID string }{
		{"device-1", "com.example.app"},
		{"device-2", "com.example.app"},
		{"", ""},
		{"7F2C1E2A-0000-4000-8000-000000000000", "io.grantiva.demo"},
	}

	for _, in := range inputs {
		dh := DeviceHash(in.deviceID, in.bundleID)
		voter := VoterHash(dh)
		submitter := SubmitterHash(dh)

		for name, h := range map[string]string{"device": dh, "voter": voter, "submitter": submitter} {
			if !hexDigest.MatchString(h) {
				t.Errorf("%s hash %q is not 64 lowercase hex chars", name, h)
			}
		}
		if voter == submitter {
			t.Errorf("voter and submitter hashes collide for %+v", in)
		}
		if DeviceHash(in.deviceID, in.bundleID) != dh || VoterHash(dh) != voter || SubmitterHash(dh) != submitter {
			t.Errorf("hashes not deterministic for %+v", in)
		}
	}
}

func TestDeviceHash_KnownValue(t *testing.T) {
	// sha256("abc:def")
	const want = "ec5952851b8051e1ecf6b6076d99d05646cd90a9f293c17250105742b9e4a19e"
	if got := DeviceHash("abc", "def"); got != want {
		t.Errorf("DeviceHash = %q, want %q", got, want)
	}
}

func TestDeviceHash_DefaultBundle(t *testing.T) {
	if DeviceHash("dev", "") != DeviceHash("dev", DefaultBundleID) {
		t.Error("empty bundle id should fall back to the default salt")
	}
}

func testDevice() model.DeviceContext {
	return model.DeviceContext{OSName: "linux", Locale: "en_US", SDKVersion: "1.0.0"}
}

func TestContext_IdentifyAndClear(t *testing.T) {
	// ARRANGE
	c := NewContext("device-1", "com.example.app", testDevice)
	anonSubmitter := c.EffectiveSubmitterID()
	anonVoter := c.EffectiveVoterID()
	deviceHash := c.DeviceHash()

	if anonSubmitter == anonVoter {
		t.Fatal("anonymous submitter and voter ids should differ")
	}

	// ACT
	c.Identify("user_42", map[string]string{"plan": "pro"})

	// ASSERT
	if got := c.EffectiveSubmitterID(); got != "user_42" {
		t.Errorf("EffectiveSubmitterID = %q, want user_42", got)
	}
	if got := c.EffectiveVoterID(); got != "user_42" {
		t.Errorf("EffectiveVoterID = %q, want user_42", got)
	}
	if c.DeviceHash() != deviceHash {
		t.Error("device hash changed after Identify")
	}

	c.ClearIdentity()

	if c.EffectiveSubmitterID() != anonSubmitter || c.EffectiveVoterID() != anonVoter {
		t.Error("identifiers did not revert to device-derived hashes after ClearIdentity")
	}
	if c.DeviceHash() != deviceHash {
		t.Error("device hash changed after ClearIdentity")
	}
	if c.IsIdentified() {
		t.Error("IsIdentified should be false after ClearIdentity")
	}
}

func TestContext_ListenersFireOnChange(t *testing.T) {
	c := NewContext("device-1", "", nil)
	calls := 0
	c.OnChange(func() { calls++ })

	c.Identify("a", nil)
	c.Identify("b", nil)
	c.ClearIdentity()

	if calls != 3 {
		t.Errorf("listener calls = %d, want 3", calls)
	}
}

func TestContext_AllProperties(t *testing.T) {
	c := NewContext("device-1", "", testDevice)

	anon := c.AllProperties()
	if _, ok := anon["user_id"]; ok {
		t.Error("anonymous properties must not contain user_id")
	}
	if anon["os_name"] != "linux" {
		t.Errorf("os_name = %q, want linux", anon["os_name"])
	}

	c.Identify("user_1", map[string]string{"locale": "de_DE"})
	if !c.SetProperty("plan", "team") {
		t.Fatal("SetProperty should succeed while identified")
	}

	props := c.AllProperties()
	if props["user_id"] != "user_1" {
		t.Errorf("user_id = %q, want user_1", props["user_id"])
	}
	if props["locale"] != "de_DE" {
		t.Errorf("user property should win, locale = %q", props["locale"])
	}
	if props["plan"] != "team" {
		t.Errorf("plan = %q, want team", props["plan"])
	}

	c.ClearIdentity()
	if c.SetProperty("plan", "free") {
		t.Error("SetProperty should fail when anonymous")
	}
}

func TestContext_UserReturnsCopy(t *testing.T) {
	c := NewContext("device-1", "", nil)
	if c.User() != nil {
		t.Fatal("User() should be nil before Identify")
	}
	c.Identify("u", map[string]string{"k": "v"})

	u := c.User()
	u.Properties["k"] = "mutated"

	if c.User().Properties["k"] != "v" {
		t.Error("mutating the returned copy leaked into the context")
	}
}
