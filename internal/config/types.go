// Package config holds the agent's file-based identity configuration and the
// mutable, server-controlled Configuration Store.
package config

// FileConfig is the YAML-decoded identity and transport configuration for an
// OpenKit agent instance. Unlike the Configuration Snapshot (see Snapshot in
// store.go), FileConfig never changes as a result of a server response: it
// describes who the client is, not how the server wants it to behave.
type FileConfig struct {
	Endpoint        string `yaml:"endpoint"`
	ApplicationID   string `yaml:"applicationID"`
	ApplicationName string `yaml:"applicationName,omitempty"`
	DeviceID        string `yaml:"deviceID,omitempty"`
	OperatingSystem string `yaml:"operatingSystem,omitempty"`
	Manufacturer    string `yaml:"manufacturer,omitempty"`
	ModelID         string `yaml:"modelID,omitempty"`

	CaptureErrors      *bool  `yaml:"captureErrors,omitempty"`
	CaptureCrashes     *bool  `yaml:"captureCrashes,omitempty"`
	SendIntervalMs     *int64 `yaml:"sendIntervalMs,omitempty"`
	MaxBeaconSizeBytes *int32 `yaml:"maxBeaconSizeBytes,omitempty"`

	LogLevel string `yaml:"logLevel,omitempty"`
}

// Identity is the subset of FileConfig that is safe to hot-reload: it never
// affects in-flight beacon accounting and carries no HTTP client rebuild cost.
type Identity struct {
	ApplicationName string
	DeviceID        string
	OperatingSystem string
	Manufacturer    string
	ModelID         string
}

func (f FileConfig) identity() Identity {
	return Identity{
		ApplicationName: f.ApplicationName,
		DeviceID:        f.DeviceID,
		OperatingSystem: f.OperatingSystem,
		Manufacturer:    f.Manufacturer,
		ModelID:         f.ModelID,
	}
}
