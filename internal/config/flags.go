package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

// UsageError reports a malformed command line.
type UsageError struct {
	Program string
	Err     error // flag parse error, nil when positionals are missing
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("usage: %s inp.gdml inp.hepmc3", e.Program)
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

// Load builds the run configuration from the command line and environment.
//
// Precedence, lowest first: defaults, -config TOML file, environment (after
// loading the dotenv file), command-line flags.
// Returns flag.ErrHelp when -h was requested and *UsageError when the
// command line is malformed.
func Load(args []string, lookup LookupFunc, stderr io.Writer) (*Config, error) {
	program := "demo-loop-driver"
	if len(args) > 0 {
		program = args[0]
		args = args[1:]
	}

	// First pass only discovers -config and -env-file.
	first := DefaultConfig()
	fs := newFlagSet(program, first, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, &UsageError{Program: program, Err: err}
	}

	// Arguments are checked before any file or environment is read.
	if len(fs.Args()) < 2 {
		return nil, &UsageError{Program: program}
	}

	cfg := DefaultConfig()
	if first.ConfigFile != "" {
		if err := LoadFile(first.ConfigFile, cfg); err != nil {
			return nil, err
		}
	}
	if err := LoadEnvFile(first.EnvFile); err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg, lookup); err != nil {
		return nil, err
	}

	// Second pass lays the flags over file and environment values.
	fs = newFlagSet(program, cfg, io.Discard)
	if err := fs.Parse(args); err != nil {
		return nil, &UsageError{Program: program, Err: err}
	}

	positional := fs.Args()
	cfg.GeometryFile = positional[0]
	cfg.EventFile = positional[1]

	return cfg, nil
}

func newFlagSet(program string, cfg *Config, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(program, flag.ContinueOnError)
	fs.SetOutput(out)

	fs.Usage = func() {
		fmt.Fprintf(out, `%s - run geant-exporter and demo-loop for one geometry/event pair

Usage:
  %s [flags] <geometry-file> <event-file>

Executables:
`, program, program)
		printFlagCategory(fs, out, []string{"exporter", "demo", "cpu"})

		fmt.Fprintf(out, "\nOutput:\n")
		printFlagCategory(fs, out, []string{"output-dir", "metrics-file"})

		fmt.Fprintf(out, "\nConfiguration:\n")
		printFlagCategory(fs, out, []string{"config", "env-file"})

		fmt.Fprintf(out, "\nObservability:\n")
		printFlagCategory(fs, out, []string{"log-format", "log-level", "v"})

		fmt.Fprintf(out, "\nDiagnostics:\n")
		printFlagCategory(fs, out, []string{"print-cmd", "skip-preflight"})

		fmt.Fprintf(out, `
Environment:
  %s    disable device (GPU) execution (true/false, yes/no, 1/0)
  %s  geant-exporter executable
  %s            demo-loop executable

`, EnvDisableDevice, EnvExporterExe, EnvDemoExe)
	}

	// Executables
	fs.StringVar(&cfg.ExporterExe, "exporter", cfg.ExporterExe, "Path to the geant-exporter executable")
	fs.StringVar(&cfg.DemoExe, "demo", cfg.DemoExe, "Path to the demo-loop executable")
	fs.BoolVar(&cfg.DisableDevice, "cpu", cfg.DisableDevice, "Disable device execution (same as "+EnvDisableDevice+"=1)")

	// Output
	fs.StringVar(&cfg.OutputDir, "output-dir", cfg.OutputDir, "Directory for .root, .inp.json and .out.json files")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "Write Prometheus text metrics for the run to this file")

	// Configuration
	fs.StringVar(&cfg.ConfigFile, "config", cfg.ConfigFile, "TOML config file")
	fs.StringVar(&cfg.EnvFile, "env-file", cfg.EnvFile, "dotenv file to load (default ./.env if present)")

	// Observability
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, `Log level: "debug", "info", "warn", "error"`)
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")

	// Diagnostics
	fs.BoolVar(&cfg.PrintCmd, "print-cmd", cfg.PrintCmd, "Print the exporter and demo-loop commands and exit")
	fs.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	return fs
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(fs *flag.FlagSet, out io.Writer, names []string) {
	fs.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(out, "  -%s %s\n    \t%s", f.Name, flagType(f), f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" {
					fmt.Fprintf(out, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(out)
				return
			}
		}
	})
}

// flagType returns a type hint for the flag value.
func flagType(f *flag.Flag) string {
	if getter, ok := f.Value.(flag.Getter); ok {
		if _, isBool := getter.Get().(bool); isBool {
			return ""
		}
	}
	if strings.HasSuffix(f.Name, "dir") {
		return "dir"
	}
	if strings.HasSuffix(f.Name, "file") || f.Name == "config" {
		return "file"
	}
	return "string"
}
