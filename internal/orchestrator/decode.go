package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// payloadMarker separates the banner HepMC3 prints on demo-loop's first line
// from the JSON document.
const payloadMarker = "\n{"

// DecodeError reports simulation output that is not a JSON document.
type DecodeError struct {
	Text string // filtered text handed to the parser
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode demo-loop output: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ExtractJSON drops any banner ahead of the JSON payload. It finds the first
// newline immediately followed by an opening brace and returns the text
// starting at that brace. Text without the marker is returned unchanged.
func ExtractJSON(text string) string {
	idx := strings.Index(text, payloadMarker)
	if idx < 0 {
		return text
	}
	return text[idx+1:]
}

// DecodeResult filters stdout and parses it as a single JSON value.
// The returned message preserves the payload bytes as emitted. Output that
// is not valid UTF-8 is rejected before parsing.
func DecodeResult(stdout []byte) (json.RawMessage, error) {
	text := ExtractJSON(string(stdout))
	if off := invalidUTF8Offset(stdout); off >= 0 {
		return nil, &DecodeError{
			Text: text,
			Err:  fmt.Errorf("invalid UTF-8 in output at byte %d", off),
		}
	}

	var raw json.RawMessage
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, &DecodeError{Text: text, Err: err}
	}
	return raw, nil
}

// invalidUTF8Offset returns the position of the first invalid UTF-8
// sequence in b, or -1.
func invalidUTF8Offset(b []byte) int {
	if utf8.Valid(b) {
		return -1
	}
	for off := 0; off < len(b); {
		r, size := utf8.DecodeRune(b[off:])
		if r == utf8.RuneError && size == 1 {
			return off
		}
		off += size
	}
	return -1
}
