package process

import (
	"strings"
)

// Process names used in logs, metrics and fatal messages.
const (
	ExporterName = "geant-exporter"
	DemoName     = "demo-loop"
)

// StdinArg tells demo-loop to read its input document from stdin.
const StdinArg = "-"

// ExporterArgs returns the geant-exporter arguments: the geometry to load
// and the physics file to write.
func ExporterArgs(geometryFile, physicsFile string) []string {
	return []string{geometryFile, physicsFile}
}

// DemoArgs returns the demo-loop arguments.
func DemoArgs() []string {
	return []string{StdinArg}
}

// CommandString renders a command line that can be pasted into a POSIX shell.
func CommandString(path string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, shellQuote(path))
	for _, a := range args {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ")
}

// shellQuote single-quotes s when it contains anything outside a safe set.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("-_./=:,+@%", r):
		default:
			safe = false
		}
		if !safe {
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
