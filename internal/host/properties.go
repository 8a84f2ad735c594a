// Package host serves the bridge's named properties and diagnostic controls to the dashboard host
// over HTTP.
package host

import (
	"fmt"
	"sort"
	"time"

	"github.com/flightbridge/internal/telemetry"
)

// Names of the bridge-level properties
const (
	PropertyVersion  = "MSFS_PLUGIN_VERSION"
	PropertyUpdating = "IS_MSFS_DATA_UPDATING"
)

// Property is one independently readable value
type Property interface {
	// Name returns the property name the host reads it by
	Name() string

	// Description returns a human-readable description
	Description() string

	// Read returns the current value
	Read() interface{}
}

// PropertyValue is the wire form of a property read
type PropertyValue struct {
	Name        string      `json:"name"`
	Value       interface{} `json:"value"`
	Description string      `json:"description,omitempty"`
}

// Registry holds the readable properties, in registration order
type Registry struct {
	props map[string]Property
	order []string
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		props: make(map[string]Property),
	}
}

// Register adds a property. Names must be unique.
func (r *Registry) Register(p Property) error {
	if _, exists := r.props[p.Name()]; exists {
		return fmt.Errorf("property %q already registered", p.Name())
	}
	r.props[p.Name()] = p
	r.order = append(r.order, p.Name())
	return nil
}

// Get returns a property by name
func (r *Registry) Get(name string) (Property, bool) {
	p, ok := r.props[name]
	return p, ok
}

// List returns the property names in registration order
func (r *Registry) List() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Sorted returns the property names in lexical order
func (r *Registry) Sorted() []string {
	out := r.List()
	sort.Strings(out)
	return out
}

// ReadAll reads every property once
func (r *Registry) ReadAll() []PropertyValue {
	out := make([]PropertyValue, 0, len(r.order))
	for _, name := range r.order {
		p := r.props[name]
		out = append(out, PropertyValue{Name: name, Value: p.Read(), Description: p.Description()})
	}
	return out
}

// funcProperty adapts a closure to Property
type funcProperty struct {
	name        string
	description string
	read        func() interface{}
}

func (p funcProperty) Name() string        { return p.name }
func (p funcProperty) Description() string { return p.description }
func (p funcProperty) Read() interface{}   { return p.read() }

// NewProperty creates a property backed by read
func NewProperty(name, description string, read func() interface{}) Property {
	return funcProperty{name: name, description: description, read: read}
}

// RegisterBridgeProperties registers the version, the freshness flag and one property per schema
// channel of store
func RegisterBridgeProperties(r *Registry, version string, store *telemetry.Store, maxAge time.Duration) error {
	props := []Property{
		NewProperty(PropertyVersion, "Bridge version", func() interface{} { return version }),
		NewProperty(PropertyUpdating, fmt.Sprintf("True when telemetry arrived within the last %s", maxAge),
			func() interface{} { return store.IsFresh(maxAge) }),
	}

	for _, ch := range store.Channels() {
		name := ch.Name
		desc := ch.Name
		if ch.Unit != "" {
			desc = fmt.Sprintf("%s (%s)", ch.Name, ch.Unit)
		}
		props = append(props, NewProperty(ch.PropertyName(), desc, func() interface{} {
			v, err := store.Get(name)
			if err != nil {
				return nil
			}
			return v.Interface()
		}))
	}

	for _, p := range props {
		if err := r.Register(p); err != nil {
			return err
		}
	}
	return nil
}
