package orchestrator

import (
	"encoding/json"
)

// Fixed run constants passed to demo-loop.
const (
	DefaultSeed                 = 12345
	DefaultMaxNumTracks         = 128 * 32
	DefaultMaxSteps             = 128
	DefaultStorageFactor        = 10
	DefaultSecondaryStackFactor = 3
)

// RunConfig is the run record read by demo-loop.
type RunConfig struct {
	UseDevice            bool   `json:"use_device"`
	GeometryFilename     string `json:"geometry_filename"`
	PhysicsFilename      string `json:"physics_filename"`
	HepMC3Filename       string `json:"hepmc3_filename"`
	Seed                 int    `json:"seed"`
	MaxNumTracks         int    `json:"max_num_tracks"`
	MaxSteps             int    `json:"max_steps"`
	StorageFactor        int    `json:"storage_factor"`
	SecondaryStackFactor int    `json:"secondary_stack_factor"`
}

// Input is the document demo-loop reads from stdin.
type Input struct {
	Run RunConfig `json:"run"`
}

// NewInput assembles the input document from the run's files and the fixed
// constants.
func NewInput(useDevice bool, geometryFile, physicsFile, eventFile string) Input {
	return Input{
		Run: RunConfig{
			UseDevice:            useDevice,
			GeometryFilename:     geometryFile,
			PhysicsFilename:      physicsFile,
			HepMC3Filename:       eventFile,
			Seed:                 DefaultSeed,
			MaxNumTracks:         DefaultMaxNumTracks,
			MaxSteps:             DefaultMaxSteps,
			StorageFactor:        DefaultStorageFactor,
			SecondaryStackFactor: DefaultSecondaryStackFactor,
		},
	}
}

// marshalPretty renders v with the one-space indent used for every document
// the driver prints or writes pretty.
func marshalPretty(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", " ")
}
