// Package stats summarizes a demo-loop result document.
//
// demo-loop reports per-step wall time, living track counts, energy
// deposition, process interaction counts and per-particle step
// distributions. Summarize reads whichever of those it recognizes and
// FormatSummary renders them after the result has been saved.
package stats

import (
	"encoding/json"
	"sort"

	"github.com/influxdata/tdigest"
)

// resultKey holds the transport result when demo-loop nests it.
const resultKey = "result"

// digestCompression bounds the step-time digest to ~100 centroids.
const digestCompression = 100

// ProcessCount is the number of interactions of one particle/process pair.
type ProcessCount struct {
	Name  string
	Count uint64
}

// Summary is the digest of one transport result.
type Summary struct {
	// Recognized is false when the document has none of the known fields.
	Recognized bool

	// Steps is the number of transport steps recorded.
	Steps int

	// StepTime* are per-step wall times in seconds.
	StepTimeTotal float64
	StepTimeP50   float64
	StepTimeP95   float64
	StepTimeP99   float64

	// PeakAlive is the largest number of living tracks in any step.
	PeakAlive uint64

	// TotalEdep is the energy deposited across the grid.
	TotalEdep float64

	// TotalTime is demo-loop's own wall clock for the transport loop.
	TotalTime float64

	// Processes is sorted by descending count, then name.
	Processes []ProcessCount

	// Particles is the number of particle types with a step distribution.
	Particles int
}

// transportFields mirrors the result fields demo-loop emits.
type transportFields struct {
	Time      []float64           `json:"time"`
	Alive     []uint64            `json:"alive"`
	Edep      []float64           `json:"edep"`
	Process   map[string]uint64   `json:"process"`
	Steps     map[string][]uint64 `json:"steps"`
	TotalTime *float64            `json:"total_time"`
}

// Summarize reads transport fields from the document's top level or from its
// "result" object. Fields that are absent or have an unexpected shape are
// skipped; a document with nothing usable yields a zero Summary.
func Summarize(raw json.RawMessage) Summary {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return Summary{}
	}
	if nested, ok := top[resultKey]; ok {
		var inner map[string]json.RawMessage
		if err := json.Unmarshal(nested, &inner); err == nil {
			top = inner
		}
	}

	var f transportFields
	recognized := false
	decode := func(key string, dst any) {
		value, ok := top[key]
		if !ok {
			return
		}
		if err := json.Unmarshal(value, dst); err == nil {
			recognized = true
		}
	}
	decode("time", &f.Time)
	decode("alive", &f.Alive)
	decode("edep", &f.Edep)
	decode("process", &f.Process)
	decode("steps", &f.Steps)
	decode("total_time", &f.TotalTime)

	if !recognized {
		return Summary{}
	}
	return summarizeFields(f)
}

func summarizeFields(f transportFields) Summary {
	s := Summary{
		Recognized: true,
		Steps:      max(len(f.Time), len(f.Alive)),
		Particles:  len(f.Steps),
	}

	if len(f.Time) > 0 {
		td := tdigest.NewWithCompression(digestCompression)
		for _, t := range f.Time {
			td.Add(t, 1)
			s.StepTimeTotal += t
		}
		s.StepTimeP50 = td.Quantile(0.50)
		s.StepTimeP95 = td.Quantile(0.95)
		s.StepTimeP99 = td.Quantile(0.99)
	}

	for _, n := range f.Alive {
		s.PeakAlive = max(s.PeakAlive, n)
	}
	for _, e := range f.Edep {
		s.TotalEdep += e
	}
	if f.TotalTime != nil {
		s.TotalTime = *f.TotalTime
	}

	s.Processes = make([]ProcessCount, 0, len(f.Process))
	for name, count := range f.Process {
		s.Processes = append(s.Processes, ProcessCount{Name: name, Count: count})
	}
	sort.Slice(s.Processes, func(i, j int) bool {
		if s.Processes[i].Count != s.Processes[j].Count {
			return s.Processes[i].Count > s.Processes[j].Count
		}
		return s.Processes[i].Name < s.Processes[j].Name
	})

	return s
}

// TotalInteractions sums every process count.
func (s Summary) TotalInteractions() uint64 {
	var total uint64
	for _, p := range s.Processes {
		total += p.Count
	}
	return total
}
