package telemetry

import (
	"fmt"
	"sync/atomic"
	"time"
)

// slot holds one channel. The map of slots is built once and never mutated, so readers need no lock;
// each value is published with a single atomic store.
type slot struct {
	channel Channel
	kind    Kind
	bits    atomic.Uint64
}

func (s *slot) load() Value {
	return Value{Kind: s.kind, bits: s.bits.Load()}
}

// Store is the schema-bounded table of latest channel values.
//
// Set must only be called from one goroutine (the ingestion listener). Get, IsFresh, LastUpdate and
// Snapshot may be called from any number of goroutines. Individual values are never observed half
// written, but a reader may see some channels of a packet before others.
type Store struct {
	slots      map[string]*slot
	order      []Channel
	lastUpdate atomic.Int64 // unix nanoseconds, 0 until the first successful Set
	now        func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store with every schema channel registered at its default value
func NewStore(schema []Channel, opts ...Option) (*Store, error) {
	s := &Store{
		slots: make(map[string]*slot, len(schema)),
		order: make([]Channel, 0, len(schema)),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, c := range schema {
		if _, exists := s.slots[c.Name]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateChannel, c.Name)
		}
		sl := &slot{channel: c, kind: c.Kind}
		sl.bits.Store(defaultValue(c).bits)
		s.slots[c.Name] = sl
		s.order = append(s.order, c)
	}

	return s, nil
}

// Set coerces raw to the declared kind of name and stores it.
// Unknown names are ignored and return nil. A value that cannot be coerced returns a
// *ChannelTypeMismatchError and leaves the stored value unchanged.
func (s *Store) Set(name string, raw interface{}) error {
	sl, ok := s.slots[name]
	if !ok {
		return nil
	}

	v, err := coerce(sl.kind, raw)
	if err != nil {
		return &ChannelTypeMismatchError{Channel: name, Kind: sl.kind, Value: raw, Err: err}
	}

	sl.bits.Store(v.bits)
	s.touch()
	return nil
}

// touch advances lastUpdate, never moving it backwards
func (s *Store) touch() {
	now := s.now().UnixNano()
	if prev := s.lastUpdate.Load(); now < prev {
		now = prev
	}
	s.lastUpdate.Store(now)
}

// Get returns the current value of a channel
func (s *Store) Get(name string) (Value, error) {
	sl, ok := s.slots[name]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrChannelNotFound, name)
	}
	return sl.load(), nil
}

// Float returns the current value of a channel as float64, or 0 for unknown names
func (s *Store) Float(name string) float64 {
	sl, ok := s.slots[name]
	if !ok {
		return 0
	}
	return sl.load().Float()
}

// Known reports whether name is part of the schema
func (s *Store) Known(name string) bool {
	_, ok := s.slots[name]
	return ok
}

// Channel returns the declaration of a channel
func (s *Store) Channel(name string) (Channel, bool) {
	sl, ok := s.slots[name]
	if !ok {
		return Channel{}, false
	}
	return sl.channel, true
}

// Channels returns the schema in declaration order
func (s *Store) Channels() []Channel {
	out := make([]Channel, len(s.order))
	copy(out, s.order)
	return out
}

// LastUpdate returns the time of the last successful Set, or the zero time
func (s *Store) LastUpdate() time.Time {
	ns := s.lastUpdate.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// IsFresh reports whether the last successful Set happened within maxAge
func (s *Store) IsFresh(maxAge time.Duration) bool {
	ns := s.lastUpdate.Load()
	if ns == 0 {
		return false
	}
	return s.now().Sub(time.Unix(0, ns)) <= maxAge
}

// Snapshot copies every channel value. Channels are read one at a time, so the copy is not a
// consistent cut across a packet.
func (s *Store) Snapshot() map[string]Value {
	out := make(map[string]Value, len(s.slots))
	for name, sl := range s.slots {
		out[name] = sl.load()
	}
	return out
}
