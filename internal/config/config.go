// Package config provides configuration management for demo-loop-driver.
package config

// Environment variables recognised by the driver.
const (
	EnvDisableDevice = "CELER_DISABLE_DEVICE"
	EnvExporterExe   = "CELERITAS_GEANT_EXPORTER_EXE"
	EnvDemoExe       = "CELERITAS_DEMO_EXE"
)

// Config holds all configuration options for a single driver run.
type Config struct {
	// Positional inputs
	GeometryFile string `toml:"-" json:"geometry_file"`
	EventFile    string `toml:"-" json:"event_file"`

	// Device mode: the effective mode is the negation of DisableDevice.
	DisableDevice bool `toml:"disable-device" json:"disable_device"`

	// External executables
	ExporterExe string `toml:"exporter-exe" json:"exporter_exe"`
	DemoExe     string `toml:"demo-exe" json:"demo_exe"`

	// Output
	OutputDir   string `toml:"output-dir" json:"output_dir"`
	MetricsFile string `toml:"metrics-file" json:"metrics_file"` // empty = disabled

	// Observability
	LogFormat string `toml:"log-format" json:"log_format"` // json, text
	LogLevel  string `toml:"log-level" json:"log_level"`
	Verbose   bool   `toml:"-" json:"verbose"`

	// Diagnostic modes
	PrintCmd      bool `toml:"-" json:"print_cmd"`
	SkipPreflight bool `toml:"skip-preflight" json:"skip_preflight"`

	// Sources
	ConfigFile string `toml:"-" json:"config_file"`
	EnvFile    string `toml:"-" json:"env_file"` // empty = optional ./.env
}

// DefaultConfig returns a Config with the driver's defaults.
func DefaultConfig() *Config {
	return &Config{
		DisableDevice: false,

		ExporterExe: "./geant-exporter",
		DemoExe:     "./demo-loop",

		OutputDir: ".",

		LogFormat: "text",
		LogLevel:  "info",
	}
}

// UseDevice reports whether the simulation should try to use an accelerator.
func (c *Config) UseDevice() bool {
	return !c.DisableDevice
}
