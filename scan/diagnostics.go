package scan

import (
	"encoding/json"
	"sync"
	"time"

	scanerrors "github.com/driftlake/metascan/errors"
)

// Severity grades a diagnostic.
type Severity string

const (
	// SeverityWarn marks a degraded field or a pruned subtree. The scan
	// produced records regardless.
	SeverityWarn Severity = "warn"

	// SeverityError marks a lost root or backend: discovery failed, a
	// root could not be opened, or its top-level listing failed.
	SeverityError Severity = "error"
)

// Diagnostic describes one contained failure. Diagnostics travel on their
// own channel, never inside the record stream.
type Diagnostic struct {
	Time     time.Time
	Severity Severity

	// Source is the backend family label.
	Source string

	// Root identifies the affected root, empty for discovery failures.
	Root string

	// Path identifies the affected node, empty for root-scope failures.
	Path string

	// Op is the backend operation that failed.
	Op string

	// Class is the error classification.
	Class scanerrors.Class

	// Err is the underlying error.
	Err error
}

// Message returns the underlying error text.
func (d Diagnostic) Message() string {
	if d.Err == nil {
		return ""
	}
	return d.Err.Error()
}

// MarshalJSON renders the diagnostic for machine-readable reports.
func (d Diagnostic) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Time     time.Time        `json:"time"`
		Severity Severity         `json:"severity"`
		Source   string           `json:"source"`
		Root     string           `json:"root,omitempty"`
		Path     string           `json:"path,omitempty"`
		Op       string           `json:"op"`
		Class    scanerrors.Class `json:"class"`
		Error    string           `json:"error"`
	}{
		Time:     d.Time,
		Severity: d.Severity,
		Source:   d.Source,
		Root:     d.Root,
		Path:     d.Path,
		Op:       d.Op,
		Class:    d.Class,
		Error:    d.Message(),
	})
}

// collector accumulates diagnostics from concurrent walkers and forwards
// each one to an optional notify callback.
type collector struct {
	mu     sync.Mutex
	diags  []Diagnostic
	notify func(Diagnostic)
}

func newCollector(notify func(Diagnostic)) *collector {
	return &collector{notify: notify}
}

func (c *collector) emit(d Diagnostic) {
	if d.Time.IsZero() {
		d.Time = time.Now().UTC()
	}
	if d.Class == "" {
		d.Class = scanerrors.Classify(d.Err)
	}
	c.mu.Lock()
	c.diags = append(c.diags, d)
	c.mu.Unlock()
	if c.notify != nil {
		c.notify(d)
	}
}

func (c *collector) all() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.diags))
	copy(out, c.diags)
	return out
}
