// Package metrics records one driver run as Prometheus metrics.
//
// Each run owns a private registry. Nothing is served over HTTP: when a
// metrics file is configured the registry is written once, in the text
// exposition format, for node_exporter's textfile collector or a CI
// artifact.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/celeritas-project/demo-loop-driver/internal/stats"
)

const namespace = "demo_loop_driver"

// RunInfo labels the run_info metric.
type RunInfo struct {
	RunID     string
	RunName   string
	UseDevice bool
	Version   string
}

// Collector holds the metrics of a single run.
type Collector struct {
	registry *prometheus.Registry

	runInfo     *prometheus.GaugeVec
	runExitCode prometheus.Gauge
	runSeconds  prometheus.Gauge

	stageDuration *prometheus.GaugeVec
	stageExitCode *prometheus.GaugeVec
	stageSuccess  *prometheus.GaugeVec

	resultBytes      prometheus.Gauge
	steps            prometheus.Gauge
	peakAlive        prometheus.Gauge
	energyDeposited  prometheus.Gauge
	transportSeconds prometheus.Gauge
	stepTime         *prometheus.GaugeVec
	interactions     *prometheus.GaugeVec

	start time.Time
}

// NewCollector creates a collector with its own registry.
func NewCollector(info RunInfo) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		start:    time.Now(),

		runInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_info",
				Help:      "Information about the run (value always 1)",
			},
			[]string{"run_id", "run_name", "use_device", "version"},
		),
		runExitCode: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_exit_code",
				Help:      "Exit status of the driver",
			},
		),
		runSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Wall time from collector creation to exit",
			},
		),

		stageDuration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Wall time spent in each stage",
			},
			[]string{"stage"},
		),
		stageExitCode: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stage_exit_code",
				Help:      "Child exit status for process stages (0 otherwise)",
			},
			[]string{"stage"},
		),
		stageSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stage_success",
				Help:      "1 if the stage completed, 0 if it failed",
			},
			[]string{"stage"},
		),

		resultBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "result_stdout_bytes",
				Help:      "Size of demo-loop stdout",
			},
		),
		steps: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "transport_steps",
				Help:      "Transport steps reported by demo-loop",
			},
		),
		peakAlive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "transport_peak_alive_tracks",
				Help:      "Largest number of living tracks in a step",
			},
		),
		energyDeposited: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "transport_energy_deposited_mev",
				Help:      "Energy deposited along the grid",
			},
		),
		transportSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "transport_total_seconds",
				Help:      "Transport wall clock reported by demo-loop",
			},
		),
		stepTime: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "transport_step_seconds",
				Help:      "Per-step wall time quantiles",
			},
			[]string{"quantile"},
		),
		interactions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "transport_interactions",
				Help:      "Particle/process interaction counts",
			},
			[]string{"process"},
		),
	}

	c.registry.MustRegister(
		c.runInfo,
		c.runExitCode,
		c.runSeconds,
		c.stageDuration,
		c.stageExitCode,
		c.stageSuccess,
		c.resultBytes,
		c.steps,
		c.peakAlive,
		c.energyDeposited,
		c.transportSeconds,
		c.stepTime,
		c.interactions,
	)

	c.runInfo.WithLabelValues(
		info.RunID,
		info.RunName,
		strconv.FormatBool(info.UseDevice),
		info.Version,
	).Set(1)

	return c
}

// RecordStage records the end of a stage. Its signature matches the
// orchestrator's OnStageDone callback once the stage is named.
func (c *Collector) RecordStage(stage string, duration time.Duration, exitCode int, err error) {
	c.stageDuration.WithLabelValues(stage).Set(duration.Seconds())
	c.stageExitCode.WithLabelValues(stage).Set(float64(exitCode))
	if err != nil {
		c.stageSuccess.WithLabelValues(stage).Set(0)
	} else {
		c.stageSuccess.WithLabelValues(stage).Set(1)
	}
}

// RecordResult records the size of demo-loop's output and its transport
// statistics. Unrecognized summaries only record the size.
func (c *Collector) RecordResult(stdoutBytes int, s stats.Summary) {
	c.resultBytes.Set(float64(stdoutBytes))
	if !s.Recognized {
		return
	}

	c.steps.Set(float64(s.Steps))
	c.peakAlive.Set(float64(s.PeakAlive))
	c.energyDeposited.Set(s.TotalEdep)
	c.transportSeconds.Set(s.TotalTime)

	if s.StepTimeTotal > 0 {
		c.stepTime.WithLabelValues("0.5").Set(s.StepTimeP50)
		c.stepTime.WithLabelValues("0.95").Set(s.StepTimeP95)
		c.stepTime.WithLabelValues("0.99").Set(s.StepTimeP99)
	}
	for _, p := range s.Processes {
		c.interactions.WithLabelValues(p.Name).Set(float64(p.Count))
	}
}

// RecordExit records the driver's exit status and total run time.
func (c *Collector) RecordExit(code int) {
	c.runExitCode.Set(float64(code))
	c.runSeconds.Set(time.Since(c.start).Seconds())
}

// Gather returns the current metric families.
func (c *Collector) Gather() ([]*dto.MetricFamily, error) {
	return c.registry.Gather()
}
