package metascan

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/driftlake/metascan/scan"
)

// Factory builds a connector of one backend kind from flat string settings,
// typically sourced from environment variables or a config file. Factories
// validate their settings and establish backend clients, but perform no
// listing calls.
type Factory func(ctx context.Context, settings map[string]string) (scan.Connector, error)

var (
	// factoryMu protects concurrent access to the factory registry.
	factoryMu sync.RWMutex
	factories = make(map[string]Factory)
)

// RegisterConnector adds a connector factory under a backend kind.
// Connector packages register themselves in init, so importing a connector
// package makes its kind constructible by name. Registering an empty kind,
// a nil factory or a duplicate kind panics: all three are wiring mistakes
// caught at startup.
func RegisterConnector(kind string, factory Factory) {
	if kind == "" {
		panic("metascan: connector kind cannot be empty")
	}
	if factory == nil {
		panic(fmt.Sprintf("metascan: nil factory for connector kind %q", kind))
	}

	factoryMu.Lock()
	defer factoryMu.Unlock()

	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("metascan: connector kind %q already registered", kind))
	}
	factories[kind] = factory
}

// NewConnector builds a connector of the given kind from flat settings.
// Returns an error for unknown kinds or invalid settings.
func NewConnector(ctx context.Context, kind string, settings map[string]string) (scan.Connector, error) {
	factoryMu.RLock()
	factory, ok := factories[kind]
	factoryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("metascan: unknown connector kind %q (registered: %v)", kind, ConnectorKinds())
	}
	return factory(ctx, settings)
}

// ConnectorKinds lists the registered backend kinds in sorted order.
func ConnectorKinds() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	kinds := make([]string, 0, len(factories))
	for kind := range factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}
