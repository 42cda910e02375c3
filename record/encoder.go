package record

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Format selects the container format an Encoder writes.
type Format string

const (
	// FormatNDJSON writes one JSON object per line. Suited to streaming.
	FormatNDJSON Format = "ndjson"

	// FormatJSON writes one indented JSON array.
	FormatJSON Format = "json"

	// FormatYAML writes one YAML sequence.
	FormatYAML Format = "yaml"
)

// Mode selects the serialization mode: structured keeps extra metadata
// nested, flat promotes it to top-level keys.
type Mode string

const (
	ModeStructured Mode = "structured"
	ModeFlat       Mode = "flat"
)

// Encoder writes record sequences in a fixed format and mode. Records are
// written in the order given; the engine already guarantees a deterministic
// order, and the encoder preserves it.
type Encoder struct {
	w      io.Writer
	format Format
	mode   Mode
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer, format Format, mode Mode) *Encoder {
	return &Encoder{w: w, format: format, mode: mode}
}

// Encode writes the full record sequence.
func (e *Encoder) Encode(records []Record) error {
	switch e.format {
	case FormatNDJSON:
		return e.encodeNDJSON(records)
	case FormatJSON:
		return e.encodeJSON(records)
	case FormatYAML:
		return e.encodeYAML(records)
	default:
		return fmt.Errorf("record: unknown format %q", e.format)
	}
}

func (e *Encoder) encodeNDJSON(records []Record) error {
	for _, r := range records {
		data, err := e.marshalOne(r)
		if err != nil {
			return err
		}
		if _, err := e.w.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("record: write: %w", err)
		}
	}
	return nil
}

func (e *Encoder) encodeJSON(records []Record) error {
	enc := json.NewEncoder(e.w)
	enc.SetIndent("", "  ")
	if e.mode == ModeFlat {
		maps := make([]map[string]any, len(records))
		for i, r := range records {
			maps[i] = r.FlatMap()
		}
		return enc.Encode(maps)
	}
	return enc.Encode(records)
}

func (e *Encoder) encodeYAML(records []Record) error {
	var doc any
	if e.mode == ModeFlat {
		maps := make([]map[string]any, len(records))
		for i, r := range records {
			maps[i] = r.FlatMap()
		}
		doc = maps
	} else {
		wires := make([]recordWire, len(records))
		for i, r := range records {
			wires[i] = r.wire()
		}
		doc = wires
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("record: yaml: %w", err)
	}
	if _, err := e.w.Write(data); err != nil {
		return fmt.Errorf("record: write: %w", err)
	}
	return nil
}

func (e *Encoder) marshalOne(r Record) ([]byte, error) {
	if e.mode == ModeFlat {
		return r.MarshalFlat()
	}
	return json.Marshal(r)
}
