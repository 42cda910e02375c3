package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// recordWire is the structured serialization shape shared by the JSON and
// YAML encoders. Field order here fixes the YAML output order.
type recordWire struct {
	Path         string            `json:"path"                    yaml:"path"`
	Kind         Kind              `json:"kind"                    yaml:"kind"`
	SizeBytes    int64             `json:"size_bytes"              yaml:"size_bytes"`
	LastModified *time.Time        `json:"last_modified"           yaml:"last_modified"`
	LastAccessed *time.Time        `json:"last_accessed"           yaml:"last_accessed"`
	Owner        *string           `json:"owner"                   yaml:"owner"`
	Source       string            `json:"source"                  yaml:"source"`
	Tags         map[string]string `json:"tags"                    yaml:"tags"`
	Extra        map[string]any    `json:"extra_metadata"          yaml:"extra_metadata"`
}

// reservedFlatKeys are the fixed field names of the flat serialization mode.
// An extra-metadata key that collides with one of these is dropped from flat
// output rather than shadowing the fixed field.
var reservedFlatKeys = map[string]struct{}{
	"path":           {},
	"kind":           {},
	"size_bytes":     {},
	"last_modified":  {},
	"last_accessed":  {},
	"owner":          {},
	"source":         {},
	"tags":           {},
	"extra_metadata": {},
}

func (r Record) wire() recordWire {
	w := recordWire{
		Path:         r.Path,
		Kind:         r.Kind,
		SizeBytes:    r.SizeBytes,
		LastModified: r.LastModified,
		LastAccessed: r.LastAccessed,
		Source:       r.Source,
		Tags:         r.Tags,
		Extra:        r.Extra,
	}
	if r.Owner != "" {
		owner := r.Owner
		w.Owner = &owner
	}
	if w.Tags == nil {
		w.Tags = map[string]string{}
	}
	if w.Extra == nil {
		w.Extra = map[string]any{}
	}
	return w
}

func (r *Record) fromWire(w recordWire) {
	r.Path = w.Path
	r.Kind = w.Kind
	r.SizeBytes = w.SizeBytes
	r.LastModified = w.LastModified
	r.LastAccessed = w.LastAccessed
	r.Source = w.Source
	if w.Owner != nil {
		r.Owner = *w.Owner
	} else {
		r.Owner = ""
	}
	if w.Tags != nil {
		r.Tags = w.Tags
	} else {
		r.Tags = map[string]string{}
	}
	if w.Extra != nil {
		r.Extra = normalizeExtra(w.Extra)
	} else {
		r.Extra = map[string]any{}
	}
}

// MarshalJSON renders the structured serialization mode: all fixed fields
// plus a nested extra_metadata object. Absent timestamps and an unresolved
// owner serialize as null.
func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.wire())
}

// UnmarshalJSON parses the structured serialization mode.
func (r *Record) UnmarshalJSON(data []byte) error {
	var w recordWire
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&w); err != nil {
		return fmt.Errorf("record: decode: %w", err)
	}
	r.fromWire(w)
	return nil
}

// FlatMap renders the flat serialization mode: the fixed fields at the top
// level with every extra-metadata entry promoted beside them. Extras whose
// key collides with a fixed field name are dropped.
func (r Record) FlatMap() map[string]any {
	w := r.wire()
	m := map[string]any{
		"path":          w.Path,
		"kind":          w.Kind,
		"size_bytes":    w.SizeBytes,
		"last_modified": w.LastModified,
		"last_accessed": w.LastAccessed,
		"owner":         w.Owner,
		"source":        w.Source,
		"tags":          w.Tags,
	}
	for k, v := range w.Extra {
		if _, reserved := reservedFlatKeys[k]; reserved {
			continue
		}
		m[k] = v
	}
	return m
}

// MarshalFlat renders the flat serialization mode as JSON. Keys are emitted
// in sorted order, so output is deterministic.
func (r Record) MarshalFlat() ([]byte, error) {
	return json.Marshal(r.FlatMap())
}

// UnmarshalFlat parses the flat serialization mode: fixed field names bind
// to their fields, every other key folds back into extra metadata.
func UnmarshalFlat(data []byte) (Record, error) {
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return Record{}, fmt.Errorf("record: decode flat: %w", err)
	}
	return FromFlatMap(m)
}

// FromFlatMap rebuilds a record from its flat-mode map form.
func FromFlatMap(m map[string]any) (Record, error) {
	var r Record
	r.Tags = map[string]string{}
	r.Extra = map[string]any{}

	for k, v := range m {
		var err error
		switch k {
		case "path":
			r.Path, err = stringValue(k, v)
		case "kind":
			var s string
			s, err = stringValue(k, v)
			r.Kind = Kind(s)
		case "size_bytes":
			r.SizeBytes, err = intValue(k, v)
		case "last_modified":
			r.LastModified, err = timeValue(k, v)
		case "last_accessed":
			r.LastAccessed, err = timeValue(k, v)
		case "owner":
			if v != nil {
				r.Owner, err = stringValue(k, v)
			}
		case "source":
			r.Source, err = stringValue(k, v)
		case "tags":
			r.Tags, err = tagsValue(v)
		case "extra_metadata":
			// Not part of flat mode. Tolerated for mixed input.
			if nested, ok := v.(map[string]any); ok {
				for ek, ev := range normalizeExtra(nested) {
					r.Extra[ek] = ev
				}
			}
		default:
			r.Extra[k] = normalizeValue(v)
		}
		if err != nil {
			return Record{}, err
		}
	}
	return r, nil
}

func stringValue(key string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("record: field %q: expected string, got %T", key, v)
	}
	return s, nil
}

func intValue(key string, v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, fmt.Errorf("record: field %q: %w", key, err)
		}
		return i, nil
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("record: field %q: expected number, got %T", key, v)
	}
}

func timeValue(key string, v any) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("record: field %q: expected timestamp string, got %T", key, v)
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, fmt.Errorf("record: field %q: %w", key, err)
	}
	return &t, nil
}

func tagsValue(v any) (map[string]string, error) {
	if v == nil {
		return map[string]string{}, nil
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("record: field \"tags\": expected object, got %T", v)
	}
	tags := make(map[string]string, len(raw))
	for k, tv := range raw {
		s, ok := tv.(string)
		if !ok {
			return nil, fmt.Errorf("record: tag %q: expected string value, got %T", k, tv)
		}
		tags[k] = s
	}
	return tags, nil
}

// normalizeExtra rewrites decoded json.Number values into int64 where the
// value is integral and float64 otherwise, so extra metadata survives a
// serialization round trip with stable types.
func normalizeExtra(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		return normalizeExtra(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}
