// Package orchestrator sequences one demo-loop run: geant-exporter, input
// document, demo-loop, result decoding and persistence.
package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/celeritas-project/demo-loop-driver/internal/config"
	"github.com/celeritas-project/demo-loop-driver/internal/preflight"
	"github.com/celeritas-project/demo-loop-driver/internal/process"
)

// Callbacks contains optional callback functions for run events.
type Callbacks struct {
	// OnStageStart is called before a stage begins.
	OnStageStart func(stage Stage)

	// OnStageDone is called when a stage ends, successfully or not.
	// exitCode is the child's exit status for process stages and 0 otherwise.
	OnStageDone func(stage Stage, duration time.Duration, exitCode int, err error)
}

// Deps holds the collaborators of an Orchestrator.
type Deps struct {
	Exporter process.Invoker
	Demo     process.Invoker

	// Console receives the human-readable transcript (stdout).
	Console io.Writer

	Logger    *slog.Logger
	Callbacks Callbacks
}

// Outcome describes a completed run.
type Outcome struct {
	RunName     string
	PhysicsPath string
	InputPath   string
	OutputPath  string

	// Result is the decoded demo-loop document, byte-for-byte as emitted.
	Result json.RawMessage

	// StdoutBytes is the size of demo-loop's raw stdout.
	StdoutBytes int
}

// Orchestrator runs the exporter and simulation for one geometry/event pair.
type Orchestrator struct {
	config    config.Config
	exporter  process.Invoker
	demo      process.Invoker
	console   io.Writer
	logger    *slog.Logger
	callbacks Callbacks

	runName string
}

// New creates an Orchestrator. The configuration is copied.
func New(cfg config.Config, deps Deps) *Orchestrator {
	console := deps.Console
	if console == nil {
		console = io.Discard
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Orchestrator{
		config:    cfg,
		exporter:  deps.Exporter,
		demo:      deps.Demo,
		console:   console,
		logger:    logger,
		callbacks: deps.Callbacks,
		runName:   RunName(cfg.GeometryFile, cfg.UseDevice()),
	}
}

// RunName returns the artifact stem for this run.
func (o *Orchestrator) RunName() string {
	return o.runName
}

// path places an artifact of this run in the output directory.
func (o *Orchestrator) path(suffix string) string {
	return filepath.Join(o.config.OutputDir, o.runName+suffix)
}

// PhysicsPath returns the file geant-exporter writes and demo-loop reads.
func (o *Orchestrator) PhysicsPath() string {
	return o.path(".root")
}

// InputPath returns where the input document is written.
func (o *Orchestrator) InputPath() string {
	return o.path(".inp.json")
}

// OutputPath returns where the result document is written.
func (o *Orchestrator) OutputPath() string {
	return o.path(".out.json")
}

// Input returns the document that will be sent to demo-loop.
func (o *Orchestrator) Input() Input {
	return NewInput(o.config.UseDevice(), o.config.GeometryFile, o.PhysicsPath(), o.config.EventFile)
}

// PrintCommands writes the commands a run would execute.
func (o *Orchestrator) PrintCommands(w io.Writer) {
	fmt.Fprintln(w, "# geant-exporter:")
	fmt.Fprintln(w, process.CommandString(o.exporter.Path(),
		process.ExporterArgs(o.config.GeometryFile, o.PhysicsPath())))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "# demo-loop (input document on stdin, also written to %s):\n", o.InputPath())
	fmt.Fprintln(w, process.CommandString(o.demo.Path(), process.DemoArgs()))
}

// Run executes every stage in order. The first failing stage ends the run;
// use ExitCode to turn the error into the process exit status.
func (o *Orchestrator) Run(ctx context.Context) (*Outcome, error) {
	o.logger.Info("run_starting",
		"geometry", o.config.GeometryFile,
		"events", o.config.EventFile,
		"use_device", o.config.UseDevice(),
		"exporter", o.exporter.Path(),
		"demo", o.demo.Path(),
	)

	if !o.config.SkipPreflight {
		if err := o.stage(StagePreflight, o.preflight); err != nil {
			return nil, err
		}
	}

	if err := o.stage(StageExport, func() (int, error) { return o.export(ctx) }); err != nil {
		return nil, err
	}

	input := o.Input()
	if err := o.stage(StageWriteInput, func() (int, error) { return 0, o.writeInput(input) }); err != nil {
		return nil, err
	}

	var stdout []byte
	err := o.stage(StageSimulate, func() (int, error) {
		var code int
		var err error
		stdout, code, err = o.simulate(ctx, input)
		return code, err
	})
	if err != nil {
		return nil, err
	}

	var result json.RawMessage
	err = o.stage(StageDecode, func() (int, error) {
		var err error
		result, err = o.decode(stdout)
		return 0, err
	})
	if err != nil {
		return nil, err
	}

	if err := o.stage(StageWriteOutput, func() (int, error) { return 0, o.writeOutput(result) }); err != nil {
		return nil, err
	}

	o.logger.Info("run_complete",
		"input", o.InputPath(),
		"output", o.OutputPath(),
	)

	return &Outcome{
		RunName:     o.runName,
		PhysicsPath: o.PhysicsPath(),
		InputPath:   o.InputPath(),
		OutputPath:  o.OutputPath(),
		Result:      result,
		StdoutBytes: len(stdout),
	}, nil
}

// stage wraps fn with callbacks and timing.
func (o *Orchestrator) stage(s Stage, fn func() (int, error)) error {
	if o.callbacks.OnStageStart != nil {
		o.callbacks.OnStageStart(s)
	}

	start := time.Now()
	code, err := fn()
	duration := time.Since(start)

	o.logger.Debug("stage_done",
		"stage", s.String(),
		"duration", duration.String(),
		"exit_code", code,
		"ok", err == nil,
	)

	if o.callbacks.OnStageDone != nil {
		o.callbacks.OnStageDone(s, duration, code, err)
	}
	return err
}

func (o *Orchestrator) preflight() (int, error) {
	result := preflight.RunAll(preflight.Params{
		ExporterExe:  o.exporter.Path(),
		DemoExe:      o.demo.Path(),
		GeometryFile: o.config.GeometryFile,
		EventFile:    o.config.EventFile,
		OutputDir:    o.config.OutputDir,
	})

	for _, check := range result.Checks {
		o.logger.Debug("preflight_check",
			"check", check.Name,
			"passed", check.Passed,
			"warning", check.Warning,
			"message", check.Message,
		)
	}

	if !result.Passed || result.HasWarnings() {
		preflight.PrintResults(o.console, result)
	}
	if !result.Passed {
		return 0, fmt.Errorf("preflight checks failed (use -skip-preflight to override)")
	}
	return 0, nil
}

func (o *Orchestrator) export(ctx context.Context) (int, error) {
	if err := os.MkdirAll(o.config.OutputDir, 0o755); err != nil {
		return 0, fmt.Errorf("create output directory: %w", err)
	}

	args := process.ExporterArgs(o.config.GeometryFile, o.PhysicsPath())
	res, err := o.exporter.Invoke(ctx, args, nil)
	if err != nil {
		fmt.Fprintln(o.console, "fatal: could not run", o.exporter.Name()+":", err)
		return 0, err
	}

	if !res.Success() {
		fmt.Fprintln(o.console, "fatal: geant-exporter failed with error", res.ExitCode)
		o.logger.Error("exporter_failed",
			"exit_code", res.ExitCode,
			"stderr_tail", res.StderrTail,
		)
		return res.ExitCode, &ExitError{Stage: StageExport, Name: o.exporter.Name(), Code: res.ExitCode}
	}

	o.logger.Info("exporter_finished",
		"physics", o.PhysicsPath(),
		"duration", res.Duration.String(),
	)
	return 0, nil
}

func (o *Orchestrator) writeInput(input Input) error {
	pretty, err := marshalPretty(input)
	if err != nil {
		return fmt.Errorf("encode input: %w", err)
	}

	fmt.Fprintln(o.console, "Input:")
	if err := os.WriteFile(o.InputPath(), pretty, 0o644); err != nil {
		return fmt.Errorf("write input: %w", err)
	}
	fmt.Fprintln(o.console, string(pretty))

	return nil
}

func (o *Orchestrator) simulate(ctx context.Context, input Input) ([]byte, int, error) {
	stdin, err := json.Marshal(input)
	if err != nil {
		return nil, 0, fmt.Errorf("encode input: %w", err)
	}

	fmt.Fprintln(o.console, "Running", o.demo.Path())
	res, err := o.demo.Invoke(ctx, process.DemoArgs(), stdin)
	if err != nil {
		fmt.Fprintln(o.console, "fatal: could not run", o.demo.Name()+":", err)
		return nil, 0, err
	}

	if !res.Success() {
		fmt.Fprintln(o.console, "fatal: run failed with error", res.ExitCode)
		o.logger.Error("simulation_failed",
			"exit_code", res.ExitCode,
			"stderr_tail", res.StderrTail,
		)
		return nil, res.ExitCode, &ExitError{Stage: StageSimulate, Name: o.demo.Name(), Code: res.ExitCode}
	}

	fmt.Fprintf(o.console, "Received %d bytes of data\n", len(res.Stdout))
	o.logger.Info("simulation_finished",
		"stdout_bytes", len(res.Stdout),
		"duration", res.Duration.String(),
	)
	return res.Stdout, 0, nil
}

func (o *Orchestrator) decode(stdout []byte) (json.RawMessage, error) {
	result, err := DecodeResult(stdout)
	if err != nil {
		var decodeErr *DecodeError
		if errors.As(err, &decodeErr) {
			fmt.Fprintln(o.console, "error: expected a JSON object but got the following stdout:")
			fmt.Fprintln(o.console, decodeErr.Text)
			fmt.Fprintln(o.console, "fatal:", decodeErr.Err)
		}
		o.logger.Error("decode_failed", "error", err, "stdout_bytes", len(stdout))
		return nil, err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result, "", " "); err != nil {
		return nil, fmt.Errorf("format result: %w", err)
	}
	fmt.Fprintln(o.console, pretty.String())

	return result, nil
}

func (o *Orchestrator) writeOutput(result json.RawMessage) error {
	var compact bytes.Buffer
	if err := json.Compact(&compact, result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := os.WriteFile(o.OutputPath(), compact.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
