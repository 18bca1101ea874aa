// Package main provides the demo-loop-driver CLI entry point.
//
// demo-loop-driver exports Geant4 physics for a geometry, runs the Celeritas
// demo-loop app on a HepMC3 event file and saves the input and result
// documents next to each other.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/celeritas-project/demo-loop-driver/internal/config"
	"github.com/celeritas-project/demo-loop-driver/internal/logging"
	"github.com/celeritas-project/demo-loop-driver/internal/metrics"
	"github.com/celeritas-project/demo-loop-driver/internal/orchestrator"
	"github.com/celeritas-project/demo-loop-driver/internal/process"
	"github.com/celeritas-project/demo-loop-driver/internal/stats"
)

// version is set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0" ./cmd/demo-loop-driver
var version = "dev"

func main() {
	os.Exit(run(os.Args, os.LookupEnv, os.Stdout, os.Stderr))
}

func run(args []string, lookup config.LookupFunc, stdout, stderr io.Writer) int {
	// Handle version flag early (before flag parsing)
	if len(args) > 1 {
		arg := args[1]
		if arg == "-version" || arg == "--version" || arg == "version" {
			fmt.Fprintf(stdout, "demo-loop-driver %s\n", version)
			return orchestrator.ExitOK
		}
	}

	cfg, err := config.Load(args, lookup, stderr)
	if err != nil {
		var usageErr *config.UsageError
		switch {
		case errors.Is(err, flag.ErrHelp):
			return orchestrator.ExitOK
		case errors.As(err, &usageErr):
			fmt.Fprintln(stdout, usageErr.Error())
			return orchestrator.ExitUsage
		default:
			fmt.Fprintf(stderr, "Configuration error: %v\n", err)
			return orchestrator.ExitFailure
		}
	}

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return orchestrator.ExitFailure
	}

	runID := logging.NewRunID()
	runName := orchestrator.RunName(cfg.GeometryFile, cfg.UseDevice())
	logger := logging.WithRun(logging.NewLogger(stderr, cfg.LogFormat, cfg.LogLevel, cfg.Verbose), runID, runName)
	logging.SetDefault(logger)

	collector := metrics.NewCollector(metrics.RunInfo{
		RunID:     runID,
		RunName:   runName,
		UseDevice: cfg.UseDevice(),
		Version:   version,
	})

	exporter := process.NewExecInvoker(process.ExecConfig{
		Name:       process.ExporterName,
		BinaryPath: cfg.ExporterExe,
		Stdout:     stdout,
		Stderr:     stderr,
		Logger:     logger,
		Verbose:    cfg.Verbose,
	})
	demo := process.NewExecInvoker(process.ExecConfig{
		Name:          process.DemoName,
		BinaryPath:    cfg.DemoExe,
		CaptureStdout: true,
		Stderr:        stderr,
		Logger:        logger,
		Verbose:       cfg.Verbose,
	})

	orch := orchestrator.New(*cfg, orchestrator.Deps{
		Exporter: exporter,
		Demo:     demo,
		Console:  stdout,
		Logger:   logger,
		Callbacks: orchestrator.Callbacks{
			OnStageDone: func(stage orchestrator.Stage, d time.Duration, exitCode int, err error) {
				collector.RecordStage(stage.String(), d, exitCode, err)
			},
		},
	})

	if cfg.PrintCmd {
		orch.PrintCommands(stdout)
		return orchestrator.ExitOK
	}

	logger.Info("starting",
		"version", version,
		"output_dir", cfg.OutputDir,
		"metrics_file", cfg.MetricsFile,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	outcome, err := orch.Run(ctx)
	code := orchestrator.ExitCode(err)
	if err != nil {
		logger.Error("run_failed", "error", err, "exit_code", code)
	} else {
		summary := stats.Summarize(outcome.Result)
		collector.RecordResult(outcome.StdoutBytes, summary)
		fmt.Fprint(stderr, stats.FormatSummary(outcome.RunName, summary))
	}

	collector.RecordExit(code)
	if cfg.MetricsFile != "" {
		if err := collector.WriteFile(cfg.MetricsFile); err != nil {
			logger.Warn("metrics_write_failed", "path", cfg.MetricsFile, "error", err)
		} else {
			logger.Debug("metrics_written", "path", cfg.MetricsFile)
		}
	}

	return code
}
