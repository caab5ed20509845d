package identity

import (
	"crypto/sha256"
	"encoding/hex"
)

// DefaultBundleID salts the device hash when the host configured none.
const DefaultBundleID = "com.grantiva.sdk"

// DeviceHash returns hex(SHA256(deviceID + ":" + bundleID)).
func DeviceHash(deviceID, bundleID string) string {
	if bundleID == "" {
		bundleID = DefaultBundleID
	}
	return hashHex(deviceID + ":" + bundleID)
}

// VoterHash derives the anonymous voter identifier from a device hash.
func VoterHash(deviceHash string) string {
	return hashHex("voter:" + deviceHash)
}

// SubmitterHash derives the anonymous submitter identifier from a device hash.
func SubmitterHash(deviceHash string) string {
	return hashHex("submitter:" + deviceHash)
}

func hashHex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
