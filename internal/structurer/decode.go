package structurer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNotObject is returned when the reply parses as JSON but is not an object.
var ErrNotObject = errors.New("model reply is not a JSON object")

// StripFences trims the reply and removes every markdown code fence marker.
func StripFences(reply string) string {
	s := strings.TrimSpace(reply)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// Decode parses a stripped reply into a field mapping.
func Decode(text string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("parsing model JSON output: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("parsing model JSON output: trailing data after JSON value")
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotObject
	}
	return m, nil
}

// DecodeReply strips fences from a raw reply and decodes it.
func DecodeReply(reply string) (map[string]any, error) {
	text := StripFences(reply)
	if text == "" {
		return nil, fmt.Errorf("parsing model JSON output: empty reply")
	}
	return Decode(text)
}
