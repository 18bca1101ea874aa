package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
)

const (
	// MaxLineLength is the maximum length of a single log line before truncation.
	MaxLineLength = 4096

	// MaxBufferedLines is the number of recent lines kept per stream.
	MaxBufferedLines = 100
)

// StreamHandler consumes the stderr of a child process (geant-exporter or
// demo-loop). It is an io.Writer so it can sit behind io.MultiWriter next to
// the terminal passthrough. Complete lines are kept in a circular buffer for
// the failure report; they are also classified and logged unless the raw
// stream is already echoed to the terminal.
type StreamHandler struct {
	stream  string
	logger  *slog.Logger
	verbose bool
	echoed  bool

	mu      sync.Mutex
	partial []byte
	buffer  []string
	bufIdx  int
	count   int
}

// NewStreamHandler creates a handler for the named child stream. echoed
// reports that the raw lines already reach the terminal, in which case
// they are buffered but not logged again.
func NewStreamHandler(stream string, logger *slog.Logger, verbose, echoed bool) *StreamHandler {
	return &StreamHandler{
		stream:  stream,
		logger:  logger,
		verbose: verbose,
		echoed:  echoed,
		buffer:  make([]string, MaxBufferedLines),
	}
}

// Write splits p into lines. A trailing fragment without newline is held
// until the next Write or Flush.
func (h *StreamHandler) Write(p []byte) (int, error) {
	h.mu.Lock()
	h.partial = append(h.partial, p...)
	var lines []string
	for {
		idx := bytes.IndexByte(h.partial, '\n')
		if idx < 0 {
			break
		}
		lines = append(lines, strings.TrimRight(string(h.partial[:idx]), "\r"))
		h.partial = h.partial[idx+1:]
	}
	// Keep pathological unterminated output bounded.
	if len(h.partial) > MaxLineLength {
		lines = append(lines, string(h.partial))
		h.partial = nil
	}
	h.mu.Unlock()

	for _, line := range lines {
		h.HandleLine(line)
	}
	return len(p), nil
}

// Flush handles any buffered fragment as a final line.
func (h *StreamHandler) Flush() {
	h.mu.Lock()
	rest := h.partial
	h.partial = nil
	h.mu.Unlock()

	if len(rest) > 0 {
		h.HandleLine(strings.TrimRight(string(rest), "\r"))
	}
}

// HandleLine processes a single line of child output.
func (h *StreamHandler) HandleLine(line string) {
	if len(line) > MaxLineLength {
		line = line[:MaxLineLength] + "...(truncated)"
	}

	h.mu.Lock()
	h.buffer[h.bufIdx] = line
	h.bufIdx = (h.bufIdx + 1) % MaxBufferedLines
	h.count++
	h.mu.Unlock()

	if !h.echoed {
		h.logLine(line)
	}
}

func (h *StreamHandler) logLine(line string) {
	level := classifyLine(line)

	// In non-verbose mode only warnings and errors are logged
	if !h.verbose && level < slog.LevelWarn {
		return
	}

	h.logger.Log(context.Background(), level, "child_stderr",
		"stream", h.stream,
		"line", line,
	)
}

// classifyLine picks a log level from Geant4 and Celeritas message markers.
func classifyLine(line string) slog.Level {
	lower := strings.ToLower(line)

	if strings.Contains(line, "G4Exception") ||
		strings.Contains(line, "EEEE") ||
		strings.Contains(lower, "error:") ||
		strings.Contains(lower, "critical:") ||
		strings.Contains(lower, "fatal") ||
		strings.Contains(lower, "segmentation fault") {
		return slog.LevelError
	}

	if strings.Contains(line, "WWWW") ||
		strings.Contains(lower, "warning") {
		return slog.LevelWarn
	}

	return slog.LevelDebug
}

// RecentLines returns up to n of the most recent lines, oldest first.
func (h *StreamHandler) RecentLines(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n > MaxBufferedLines {
		n = MaxBufferedLines
	}
	if n > h.count {
		n = h.count
	}

	lines := make([]string, 0, n)
	for i := 0; i < n; i++ {
		idx := (h.bufIdx - n + i + MaxBufferedLines) % MaxBufferedLines
		lines = append(lines, h.buffer[idx])
	}

	return lines
}

// LineCount returns how many lines were handled in total.
func (h *StreamHandler) LineCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}
