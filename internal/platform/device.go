package platform

import (
	"bufio"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/grantiva/grantiva-go/internal/model"
)

// SDKVersion is reported in the device context and the User-Agent.
const SDKVersion = "1.0.0"

// AppInfo is host-supplied application metadata.
type AppInfo struct {
	BundleID    string
	Version     string
	BuildNumber string
	Environment string
}

// CollectDeviceContext snapshots device and app metadata.
func CollectDeviceContext(app AppInfo) model.DeviceContext {
	env := app.Environment
	if env == "" {
		env = "production"
	}
	return model.DeviceContext{
		AppBundleID:    app.BundleID,
		AppVersion:     app.Version,
		AppBuildNumber: app.BuildNumber,
		DeviceModel:    deviceModel(),
		OSName:         runtime.GOOS,
		OSVersion:      osVersion(),
		Locale:         locale(),
		Timezone:       time.Local.String(),
		SDKVersion:     SDKVersion,
		Environment:    env,
	}
}

// MachineID returns a stable hardware or installation identifier.
func MachineID() (string, error) {
	switch runtime.GOOS {
	case "linux":
		for _, path := range []string{"/etc/machine-id", "/var/lib/dbus/machine-id", "/sys/class/dmi/id/product_uuid"} {
			if id := readTrimmed(path); id != "" {
				return id, nil
			}
		}
		return "", errors.New("no machine id found")
	case "darwin":
		out, err := exec.Command("ioreg", "-rd1", "-c", "IOPlatformExpertDevice").Output()
		if err != nil {
			return "", err
		}
		for _, line := range strings.Split(string(out), "\n") {
			if strings.Contains(line, "IOPlatformUUID") {
				parts := strings.Split(line, "\"")
				if len(parts) >= 4 {
					return parts[3], nil
				}
			}
		}
		return "", errors.New("no IOPlatformUUID found")
	case "windows":
		out, err := exec.Command("wmic", "csproduct", "get", "UUID").Output()
		if err != nil {
			return "", err
		}
		lines := strings.Fields(string(out))
		if len(lines) >= 2 {
			return lines[1], nil
		}
		return "", errors.New("no UUID found")
	case "android", "ios":
		return "", errors.New(runtime.GOOS + ": device id must be provided by the app")
	default:
		return "", errors.New("unsupported platform: " + runtime.GOOS)
	}
}

func readTrimmed(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func deviceModel() string {
	if name := readTrimmed("/sys/class/dmi/id/product_name"); name != "" {
		return name
	}
	return runtime.GOOS + "/" + runtime.GOARCH
}

func osVersion() string {
	if runtime.GOOS == "linux" {
		f, err := os.Open("/etc/os-release")
		if err == nil {
			defer f.Close()
			scanner := bufio.NewScanner(f)
			for scanner.Scan() {
				if v, ok := strings.CutPrefix(scanner.Text(), "VERSION_ID="); ok {
					return strings.Trim(v, `"`)
				}
			}
		}
	}
	if out, err := exec.Command("uname", "-r").Output(); err == nil {
		return strings.TrimSpace(string(out))
	}
	return "unknown"
}

// locale reads the POSIX locale variables, e.g. "en_US.UTF-8" → "en_US".
func locale() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		v := os.Getenv(key)
		if v == "" || v == "C" || v == "POSIX" {
			continue
		}
		if i := strings.IndexAny(v, ".@"); i >= 0 {
			v = v[:i]
		}
		return v
	}
	return "en_US"
}
