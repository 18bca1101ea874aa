package orchestrator

import (
	"path/filepath"
	"strings"
)

// RunName derives the stem shared by every artifact of one invocation:
// the geometry file's base name without its final extension, suffixed
// with the device mode.
func RunName(geometryFile string, useDevice bool) string {
	base := filepath.Base(geometryFile)
	base = strings.TrimSuffix(base, splitExt(base))
	if useDevice {
		return base + "-gpu"
	}
	return base + "-cpu"
}

// splitExt returns the extension of a base name. Leading dots do not start
// an extension, so ".hidden" has none.
func splitExt(base string) string {
	trimmed := strings.TrimLeft(base, ".")
	ext := filepath.Ext(trimmed)
	if ext == trimmed {
		return ""
	}
	return ext
}
