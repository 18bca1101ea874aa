// Package preflight provides startup validation checks.
package preflight

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
)

// Check represents the result of a single preflight check.
type Check struct {
	Name    string // Name of the check
	Passed  bool   // Whether the check passed
	Warning bool   // True if it's a warning (non-fatal)
	Message string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// Params are the paths a run depends on.
type Params struct {
	ExporterExe  string
	DemoExe      string
	GeometryFile string
	EventFile    string
	OutputDir    string
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// HasWarnings reports whether any check passed with a warning.
func (r *Result) HasWarnings() bool {
	for _, c := range r.Checks {
		if c.Warning {
			return true
		}
	}
	return false
}

// RunAll executes all preflight checks.
//
// Missing executables and an unusable output directory fail the run. Missing
// input files only warn: geant-exporter and demo-loop report those
// themselves and their exit codes are what the caller propagates.
func RunAll(p Params) *Result {
	result := &Result{
		Checks: make([]Check, 0, 5),
		Passed: true,
	}

	add := func(c Check) {
		result.Checks = append(result.Checks, c)
		if !c.Passed {
			result.Passed = false
		}
	}

	add(checkExecutable("geant_exporter", p.ExporterExe))
	add(checkExecutable("demo_loop", p.DemoExe))
	add(checkInputFile("geometry_file", p.GeometryFile))
	add(checkInputFile("event_file", p.EventFile))
	add(checkOutputDir(p.OutputDir))

	return result
}

// checkExecutable verifies the executable can be resolved.
func checkExecutable(name, path string) Check {
	resolved, err := exec.LookPath(path)
	if err != nil {
		return Check{
			Name:    name,
			Passed:  false,
			Message: fmt.Sprintf("not found at %s: %v", path, err),
		}
	}
	return Check{
		Name:    name,
		Passed:  true,
		Message: fmt.Sprintf("found at %s", resolved),
	}
}

// checkInputFile verifies an input file exists and is a regular file.
func checkInputFile(name, path string) Check {
	info, err := os.Stat(path)
	if err != nil {
		return Check{
			Name:    name,
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("cannot stat %s: %v", path, err),
		}
	}
	if info.IsDir() {
		return Check{
			Name:    name,
			Passed:  true,
			Warning: true,
			Message: fmt.Sprintf("%s is a directory", path),
		}
	}
	return Check{
		Name:    name,
		Passed:  true,
		Message: fmt.Sprintf("%s (%d bytes)", path, info.Size()),
	}
}

// checkOutputDir verifies artifacts can be written. A directory that does not
// exist yet passes when its parent is writable, since the run creates it.
func checkOutputDir(dir string) Check {
	target := dir
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		target = filepath.Dir(filepath.Clean(dir))
		if _, perr := os.Stat(target); perr != nil {
			return Check{
				Name:    "output_dir",
				Passed:  false,
				Message: fmt.Sprintf("%s does not exist and parent is unusable: %v", dir, perr),
			}
		}
	case err != nil:
		return Check{
			Name:    "output_dir",
			Passed:  false,
			Message: fmt.Sprintf("cannot stat %s: %v", dir, err),
		}
	case !info.IsDir():
		return Check{
			Name:    "output_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s is not a directory", dir),
		}
	}

	scratch, err := os.CreateTemp(target, ".demo-loop-driver-*")
	if err != nil {
		return Check{
			Name:    "output_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s is not writable: %v", target, err),
		}
	}
	scratch.Close()
	os.Remove(scratch.Name())

	return Check{
		Name:    "output_dir",
		Passed:  true,
		Message: fmt.Sprintf("%s is writable", dir),
	}
}

// PrintResults prints the preflight check results.
func PrintResults(w io.Writer, result *Result) {
	fmt.Fprintln(w, "Preflight checks:")
	for _, check := range result.Checks {
		fmt.Fprintln(w, check.String())
		if !check.Passed {
			fmt.Fprintf(w, "    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Fprintln(w)
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "geant_exporter":
		return "build Celeritas with Geant4 enabled, or set CELERITAS_GEANT_EXPORTER_EXE"
	case "demo_loop":
		return "build the demo-loop app, or set CELERITAS_DEMO_EXE"
	case "output_dir":
		return "choose a writable directory with -output-dir"
	default:
		return "see documentation"
	}
}
