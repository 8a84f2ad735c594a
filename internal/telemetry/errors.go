package telemetry

import (
	"errors"
	"fmt"
)

var (
	// ErrChannelNotFound is returned by Get for names outside the schema
	ErrChannelNotFound = errors.New("channel not found")

	// ErrChannelTypeMismatch matches every *ChannelTypeMismatchError via errors.Is
	ErrChannelTypeMismatch = errors.New("channel type mismatch")

	// ErrDuplicateChannel is returned when a schema declares the same name twice
	ErrDuplicateChannel = errors.New("duplicate channel")
)

// ChannelTypeMismatchError reports a single value that could not be coerced to its channel's kind
type ChannelTypeMismatchError struct {
	Channel string
	Kind    Kind
	Value   interface{}
	Err     error
}

func (e *ChannelTypeMismatchError) Error() string {
	return fmt.Sprintf("channel %s: cannot convert %v (%T) to %s: %v", e.Channel, e.Value, e.Value, e.Kind, e.Err)
}

func (e *ChannelTypeMismatchError) Unwrap() error {
	return e.Err
}

func (e *ChannelTypeMismatchError) Is(target error) bool {
	return target == ErrChannelTypeMismatch
}
