package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celeritas-project/demo-loop-driver/internal/config"
	"github.com/celeritas-project/demo-loop-driver/internal/process"
)

// =============================================================================
// Fake Invoker
// =============================================================================

type invocation struct {
	args  []string
	stdin []byte
}

// fakeInvoker returns a scripted result and records its calls.
type fakeInvoker struct {
	name   string
	path   string
	result process.Result
	err    error
	calls  []invocation
}

func (f *fakeInvoker) Invoke(ctx context.Context, args []string, stdin []byte) (process.Result, error) {
	f.calls = append(f.calls, invocation{args: args, stdin: stdin})
	return f.result, f.err
}

func (f *fakeInvoker) Name() string { return f.name }
func (f *fakeInvoker) Path() string { return f.path }

func newExporter(code int) *fakeInvoker {
	return &fakeInvoker{
		name:   process.ExporterName,
		path:   "./geant-exporter",
		result: process.Result{ExitCode: code, Duration: time.Millisecond},
	}
}

func newDemo(code int, stdout string) *fakeInvoker {
	return &fakeInvoker{
		name:   process.DemoName,
		path:   "./demo-loop",
		result: process.Result{ExitCode: code, Stdout: []byte(stdout), Duration: time.Millisecond},
	}
}

const demoStdout = "HepMC3: reading file gamma.hepmc3 with banner {not json}\n" +
	`{"result": {"alive": [1, 2, 1], "time": [0.5, 0.25, 0.125], "total_time": 0.875}, "name": "<e-_brems>"}` + "\n"

func newTestConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.GeometryFile = "/data/geometry/testem3.gdml"
	cfg.EventFile = "/data/events/gamma.hepmc3"
	cfg.OutputDir = t.TempDir()
	cfg.SkipPreflight = true
	return *cfg
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// =============================================================================
// Run name and input document
// =============================================================================

func TestRunName(t *testing.T) {
	tests := []struct {
		geometry  string
		useDevice bool
		want      string
	}{
		{"testem3.gdml", true, "testem3-gpu"},
		{"testem3.gdml", false, "testem3-cpu"},
		{"/data/geometry/cms.gdml", true, "cms-gpu"},
		{"../four-steel-slabs.gdml", false, "four-steel-slabs-cpu"},
		{"simple.cms.gdml", true, "simple.cms-gpu"},
		{"noext", false, "noext-cpu"},
		{".hidden", true, ".hidden-gpu"},
		{"trailing.", false, "trailing-cpu"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, RunName(tt.geometry, tt.useDevice))
		})
	}
}

func TestNewInput_Fields(t *testing.T) {
	input := NewInput(true, "testem3.gdml", "testem3-gpu.root", "gamma.hepmc3")

	data, err := json.Marshal(input)
	require.NoError(t, err)

	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc, 1)

	run := doc["run"]
	assert.Len(t, run, 9)
	assert.Equal(t, true, run["use_device"])
	assert.Equal(t, "testem3.gdml", run["geometry_filename"])
	assert.Equal(t, "testem3-gpu.root", run["physics_filename"])
	assert.Equal(t, "gamma.hepmc3", run["hepmc3_filename"])
	assert.EqualValues(t, 12345, run["seed"])
	assert.EqualValues(t, 4096, run["max_num_tracks"])
	assert.EqualValues(t, 128, run["max_steps"])
	assert.EqualValues(t, 10, run["storage_factor"])
	assert.EqualValues(t, 3, run["secondary_stack_factor"])
}

func TestMarshalPretty_OneSpaceIndent(t *testing.T) {
	data, err := marshalPretty(NewInput(false, "a.gdml", "a-cpu.root", "b.hepmc3"))
	require.NoError(t, err)

	lines := strings.Split(string(data), "\n")
	require.Greater(t, len(lines), 3)
	assert.Equal(t, "{", lines[0])
	assert.Equal(t, ` "run": {`, lines[1])
	assert.Equal(t, `  "use_device": false,`, lines[2])
}

// =============================================================================
// Output decoding
// =============================================================================

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"banner", "banner line\n{\"a\": 1}", `{"a": 1}`},
		{"banner with brace", "HepMC3 {x}\n{\"a\": 1}\n", "{\"a\": 1}\n"},
		{"leading newline", "\n{\"a\": 1}", `{"a": 1}`},
		{"first marker wins", "x\n{\"a\": {\n}}\n{\"b\": 2}", "{\"a\": {\n}}\n{\"b\": 2}"},
		{"no marker", `{"a": 1}`, `{"a": 1}`},
		{"no marker garbage", "just text", "just text"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractJSON(tt.in))
		})
	}
}

func TestDecodeResult(t *testing.T) {
	t.Run("object after banner", func(t *testing.T) {
		raw, err := DecodeResult([]byte(demoStdout))
		require.NoError(t, err)
		assert.JSONEq(t, `{"result": {"alive": [1, 2, 1], "time": [0.5, 0.25, 0.125], "total_time": 0.875}, "name": "<e-_brems>"}`, string(raw))
	})

	t.Run("any json value", func(t *testing.T) {
		raw, err := DecodeResult([]byte("[1, 2, 3]"))
		require.NoError(t, err)
		assert.Equal(t, "[1, 2, 3]", string(raw))
	})

	tests := []struct {
		name   string
		stdout string
	}{
		{"empty", ""},
		{"banner only", "HepMC3 banner\n"},
		{"truncated object", "banner\n{\"a\": "},
		{"trailing data", "banner\n{\"a\": 1}\n{\"b\": 2}"},
		{"invalid utf-8 in string", "banner\n{\"a\": \"\xff\xfe\"}"},
		{"invalid utf-8 in banner", "HepMC3 \xc3\n{\"a\": 1}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeResult([]byte(tt.stdout))
			require.Error(t, err)

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr))
			assert.Equal(t, ExtractJSON(tt.stdout), decodeErr.Text)
			assert.Error(t, decodeErr.Unwrap())
		})
	}
}

// =============================================================================
// Orchestrator.Run
// =============================================================================

func TestRun_Success(t *testing.T) {
	cfg := newTestConfig(t)
	exporter := newExporter(0)
	demo := newDemo(0, demoStdout)
	var console bytes.Buffer

	orch := New(cfg, Deps{Exporter: exporter, Demo: demo, Console: &console})
	outcome, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, ExitCode(err))

	physics := filepath.Join(cfg.OutputDir, "testem3-gpu.root")
	assert.Equal(t, "testem3-gpu", outcome.RunName)
	assert.Equal(t, physics, outcome.PhysicsPath)

	// geant-exporter gets geometry and physics paths
	require.Len(t, exporter.calls, 1)
	assert.Equal(t, []string{cfg.GeometryFile, physics}, exporter.calls[0].args)
	assert.Nil(t, exporter.calls[0].stdin)

	// demo-loop reads the input document from stdin
	require.Len(t, demo.calls, 1)
	assert.Equal(t, []string{"-"}, demo.calls[0].args)
	var sent Input
	require.NoError(t, json.Unmarshal(demo.calls[0].stdin, &sent))
	assert.Equal(t, NewInput(true, cfg.GeometryFile, physics, cfg.EventFile), sent)

	// input file matches what was sent
	inpData, err := os.ReadFile(filepath.Join(cfg.OutputDir, "testem3-gpu.inp.json"))
	require.NoError(t, err)
	var written Input
	require.NoError(t, json.Unmarshal(inpData, &written))
	assert.Equal(t, sent, written)

	// output file is the payload, compact and not HTML-escaped
	outData, err := os.ReadFile(filepath.Join(cfg.OutputDir, "testem3-gpu.out.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"result":{"alive":[1,2,1],"time":[0.5,0.25,0.125],"total_time":0.875},"name":"<e-_brems>"}`, string(outData))
	assert.JSONEq(t, string(outData), string(outcome.Result))
	assert.Equal(t, len(demoStdout), outcome.StdoutBytes)

	transcript := console.String()
	assert.Contains(t, transcript, "Input:\n{\n \"run\": {")
	assert.Contains(t, transcript, "Running ./demo-loop\n")
	assert.Contains(t, transcript, "Received "+strconv.Itoa(len(demoStdout))+" bytes of data\n")
	assert.Contains(t, transcript, "\n \"name\": \"<e-_brems>\"")
	assert.NotContains(t, transcript, "fatal")
}

func TestRun_CPUMode(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.DisableDevice = true
	demo := newDemo(0, "{}")

	orch := New(cfg, Deps{Exporter: newExporter(0), Demo: demo})
	outcome, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "testem3-cpu", outcome.RunName)
	var sent Input
	require.NoError(t, json.Unmarshal(demo.calls[0].stdin, &sent))
	assert.False(t, sent.Run.UseDevice)
	assert.True(t, fileExists(filepath.Join(cfg.OutputDir, "testem3-cpu.out.json")))
}

func TestRun_ExporterFailure(t *testing.T) {
	cfg := newTestConfig(t)
	exporter := newExporter(7)
	demo := newDemo(0, "{}")
	var console bytes.Buffer

	orch := New(cfg, Deps{Exporter: exporter, Demo: demo, Console: &console})
	outcome, err := orch.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, outcome)

	assert.Equal(t, 7, ExitCode(err))
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, StageExport, exitErr.Stage)

	assert.Empty(t, demo.calls, "demo-loop must not run")
	assert.False(t, fileExists(orch.InputPath()))
	assert.False(t, fileExists(orch.OutputPath()))
	assert.Contains(t, console.String(), "fatal: geant-exporter failed with error 7")
}

func TestRun_SimulationFailure(t *testing.T) {
	cfg := newTestConfig(t)
	var console bytes.Buffer

	orch := New(cfg, Deps{Exporter: newExporter(0), Demo: newDemo(3, "partial"), Console: &console})
	_, err := orch.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, 3, ExitCode(err))
	assert.True(t, fileExists(orch.InputPath()), "input document stays on disk for diagnosis")
	assert.False(t, fileExists(orch.OutputPath()))
	assert.Contains(t, console.String(), "fatal: run failed with error 3")
	assert.NotContains(t, console.String(), "Received")
}

func TestRun_DecodeFailure(t *testing.T) {
	cfg := newTestConfig(t)
	var console bytes.Buffer

	orch := New(cfg, Deps{Exporter: newExporter(0), Demo: newDemo(0, "banner\n{\"broken\": "), Console: &console})
	_, err := orch.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1, ExitCode(err))
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))

	assert.True(t, fileExists(orch.InputPath()))
	assert.False(t, fileExists(orch.OutputPath()))

	transcript := console.String()
	assert.Contains(t, transcript, "error: expected a JSON object but got the following stdout:\n{\"broken\": \n")
	assert.Contains(t, transcript, "fatal: unexpected end of JSON input")
}

func TestRun_InvalidUTF8Output(t *testing.T) {
	cfg := newTestConfig(t)
	var console bytes.Buffer

	orch := New(cfg, Deps{Exporter: newExporter(0), Demo: newDemo(0, "{\"name\": \"e\xff\"}"), Console: &console})
	_, err := orch.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1, ExitCode(err))
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Contains(t, decodeErr.Error(), "invalid UTF-8 in output at byte 11")
	assert.False(t, fileExists(orch.OutputPath()))
	assert.Contains(t, console.String(), "fatal: invalid UTF-8 in output at byte 11")
}

func TestRun_ExporterCannotStart(t *testing.T) {
	cfg := newTestConfig(t)
	exporter := newExporter(0)
	exporter.err = errors.New("exec: no such file")

	orch := New(cfg, Deps{Exporter: exporter, Demo: newDemo(0, "{}")})
	_, err := orch.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, ExitCode(err))
	assert.False(t, fileExists(orch.InputPath()))
}

func TestRun_PreflightFailure(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.SkipPreflight = false
	exporter := newExporter(0)
	exporter.path = filepath.Join(cfg.OutputDir, "no-such-exporter")
	demo := newDemo(0, "{}")
	demo.path = filepath.Join(cfg.OutputDir, "no-such-demo")
	var console bytes.Buffer

	orch := New(cfg, Deps{Exporter: exporter, Demo: demo, Console: &console})
	_, err := orch.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, 1, ExitCode(err))
	assert.Empty(t, exporter.calls)
	assert.Contains(t, console.String(), "Preflight checks:")
}

func TestRun_CreatesOutputDir(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.OutputDir = filepath.Join(cfg.OutputDir, "runs")

	orch := New(cfg, Deps{Exporter: newExporter(0), Demo: newDemo(0, "{}")})
	_, err := orch.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, fileExists(filepath.Join(cfg.OutputDir, "testem3-gpu.out.json")))
}

func TestRun_Callbacks(t *testing.T) {
	cfg := newTestConfig(t)
	var started, done []Stage
	codes := map[Stage]int{}

	deps := Deps{
		Exporter: newExporter(0),
		Demo:     newDemo(5, ""),
		Callbacks: Callbacks{
			OnStageStart: func(s Stage) { started = append(started, s) },
			OnStageDone: func(s Stage, d time.Duration, code int, err error) {
				done = append(done, s)
				codes[s] = code
			},
		},
	}

	_, err := New(cfg, deps).Run(context.Background())
	require.Error(t, err)

	want := []Stage{StageExport, StageWriteInput, StageSimulate}
	assert.Equal(t, want, started)
	assert.Equal(t, want, done)
	assert.Equal(t, 5, codes[StageSimulate])
}

func TestPrintCommands(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.OutputDir = "."
	var buf bytes.Buffer

	New(cfg, Deps{Exporter: newExporter(0), Demo: newDemo(0, "")}).PrintCommands(&buf)

	out := buf.String()
	assert.Contains(t, out, "./geant-exporter /data/geometry/testem3.gdml testem3-gpu.root\n")
	assert.Contains(t, out, "./demo-loop -\n")
	assert.Contains(t, out, "testem3-gpu.inp.json")
}

// =============================================================================
// Exit codes and stages
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"usage", &config.UsageError{Program: "driver"}, 2},
		{"exporter", &ExitError{Stage: StageExport, Name: "geant-exporter", Code: 4}, 4},
		{"wrapped simulation", errors.Join(errors.New("ctx"), &ExitError{Stage: StageSimulate, Code: 139}), 139},
		{"decode", &DecodeError{Err: errors.New("bad")}, 1},
		{"other", errors.New("disk full"), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestExitError_Message(t *testing.T) {
	err := &ExitError{Stage: StageSimulate, Name: "demo-loop", Code: 3}
	assert.Equal(t, "demo-loop failed with error 3", err.Error())
}

func TestStage_String(t *testing.T) {
	tests := []struct {
		stage Stage
		want  string
	}{
		{StagePreflight, "preflight"},
		{StageExport, "export"},
		{StageWriteInput, "write_input"},
		{StageSimulate, "simulate"},
		{StageDecode, "decode"},
		{StageWriteOutput, "write_output"},
		{Stage(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.stage.String())
		})
	}
}
