package orchestrator

// Stage identifies one step of the run.
type Stage int

const (
	// StagePreflight checks executables, inputs and the output directory.
	StagePreflight Stage = iota

	// StageExport runs geant-exporter to produce the physics file.
	StageExport

	// StageWriteInput persists the input document.
	StageWriteInput

	// StageSimulate runs demo-loop on the input document.
	StageSimulate

	// StageDecode parses demo-loop's stdout.
	StageDecode

	// StageWriteOutput persists the result document.
	StageWriteOutput
)

// String returns a human-readable name for the stage.
func (s Stage) String() string {
	switch s {
	case StagePreflight:
		return "preflight"
	case StageExport:
		return "export"
	case StageWriteInput:
		return "write_input"
	case StageSimulate:
		return "simulate"
	case StageDecode:
		return "decode"
	case StageWriteOutput:
		return "write_output"
	default:
		return "unknown"
	}
}
