// Package live adapts the catalog's controllers to event-driven display
// surfaces. A component owns its controller outright and hands out plain
// views; nothing is shared through globals.
package live

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Common component errors.
var (
	ErrUnknownEvent     = errors.New("unknown event")
	ErrBadPayload       = errors.New("bad event payload")
	ErrUnknownComponent = errors.New("unknown component")
	ErrNotMounted       = errors.New("component is not mounted")
)

// Component is a stateful surface adapter driven by discrete events.
type Component interface {
	// Name returns the unique identifier for this component type.
	Name() string

	// Mount is called once before any event. notify must be called whenever
	// the view changes outside of HandleEvent (fetch resolution, submit completion).
	Mount(ctx context.Context, params Params, notify Notify) error

	// HandleEvent processes one user interaction.
	HandleEvent(ctx context.Context, event string, payload map[string]any) error

	// View returns the current JSON-serializable view.
	View() map[string]any

	// Terminate releases the component. Late completions are discarded afterwards.
	Terminate(ctx context.Context) error
}

// Notify signals that a component's view changed asynchronously.
type Notify func()

// Params contains connection parameters.
type Params map[string]string

// Get returns a parameter value or empty string if not found.
func (p Params) Get(key string) string {
	return p[key]
}

// Factory creates a fresh component instance.
type Factory func() Component

// Registry manages registered component factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a new component registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a component factory to the registry.
func (r *Registry) Register(name string, factory Factory) {
	r.factories[name] = factory
}

// Create instantiates a new component by name.
func (r *Registry) Create(name string) (Component, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComponent, name)
	}
	return f(), nil
}

// Names returns the registered component names in order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func stringArg(payload map[string]any, key string) (string, error) {
	v, ok := payload[key]
	if !ok {
		return "", fmt.Errorf("%w: missing %q", ErrBadPayload, key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string", ErrBadPayload, key)
	}
	return s, nil
}
