package model

// DeviceContext is device and app information collected automatically.
type DeviceContext struct {
	AppBundleID    string `json:"app_bundle_id"`
	AppVersion     string `json:"app_version"`
	AppBuildNumber string `json:"app_build_number"`
	DeviceModel    string `json:"device_model"`
	OSName         string `json:"os_name"`
	OSVersion      string `json:"os_version"`
	Locale         string `json:"locale"`
	Timezone       string `json:"timezone"`
	SDKVersion     string `json:"sdk_version"`
	Environment    string `json:"environment"`
}

// ToMap flattens the context into snake_case properties.
func (d DeviceContext) ToMap() map[string]string {
	return map[string]string{
		"app_bundle_id":    d.AppBundleID,
		"app_version":      d.AppVersion,
		"app_build_number": d.AppBuildNumber,
		"device_model":     d.DeviceModel,
		"os_name":          d.OSName,
		"os_version":       d.OSVersion,
		"locale":           d.Locale,
		"timezone":         d.Timezone,
		"sdk_version":      d.SDKVersion,
		"environment":      d.Environment,
	}
}

// UserContext is a host-supplied identity plus custom properties.
// Device is a snapshot taken when the context is built.
type UserContext struct {
	UserID     string
	Properties map[string]string
	Device     DeviceContext
}

// AllProperties merges device context, custom properties (which win on
// collision) and user_id.
func (u UserContext) AllProperties() map[string]string {
	merged := u.Device.ToMap()
	for k, v := range u.Properties {
		merged[k] = v
	}
	merged["user_id"] = u.UserID
	return merged
}
