// Package report renders analysis results for people and machines.
//
// The JSON form is the results themselves. The text form is a readable
// walk through the same content: the narration, each extracted measurement
// as a "raw → value unit (type)" line, dimension checks, ambiguities,
// aggregated totals and the organized scope. It carries everything the JSON
// form does except machine identifiers.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/MrWong99/sitescope/internal/analyzer"
)

// Format selects a rendering.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// IsValid reports whether f is a known format.
func (f Format) IsValid() bool {
	return f == FormatJSON || f == FormatText
}

// ContentType returns the HTTP media type of f.
func (f Format) ContentType() string {
	if f == FormatText {
		return "text/plain; charset=utf-8"
	}
	return "application/json"
}

// ParseFormat parses a format name. The empty string means JSON.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "" {
		return FormatJSON, nil
	}
	if !f.IsValid() {
		return "", fmt.Errorf("report: unknown format %q; valid formats: json, text", s)
	}
	return f, nil
}

// Write renders results in format f. A single result is written as a JSON
// object, several as an array.
func Write(w io.Writer, f Format, results ...*analyzer.Result) error {
	switch f {
	case FormatText:
		return WriteText(w, results...)
	case FormatJSON, "":
		if len(results) == 1 {
			return WriteJSON(w, results[0])
		}
		return WriteJSON(w, results)
	default:
		return fmt.Errorf("report: unknown format %q", f)
	}
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("report: encode json: %w", err)
	}
	return nil
}
