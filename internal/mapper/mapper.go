// Package mapper turns telemetry channel values into device axis positions.
package mapper

import (
	"errors"
	"fmt"
	"math"

	"github.com/flightbridge/internal/config"
	"github.com/flightbridge/internal/device"
)

// Entry binds one channel to one axis. Output is clamp(value*Scale + Offset, axisMin, axisMax).
type Entry struct {
	Channel string
	Axis    device.Axis
	Scale   float64
	Offset  float64
	// AutoCenter replaces Offset with the axis midpoint once the axis range is known
	AutoCenter bool
}

// Table is the static mapping configuration
type Table []Entry

// Values is the read side of the telemetry store needed by the mapper
type Values interface {
	Known(name string) bool
	Float(name string) float64
}

// Output is the write side of a device session
type Output interface {
	AxisRange(axis device.Axis) (device.AxisRange, bool)
	WriteAxis(axis device.Axis, value int64) error
}

// BuildTable validates mapping configuration against the channel schema
func BuildTable(mappings []config.MappingConfig, known func(string) bool) (Table, error) {
	table := make(Table, 0, len(mappings))
	used := make(map[device.Axis]string, len(mappings))

	for i, m := range mappings {
		if !known(m.Channel) {
			return nil, fmt.Errorf("mapping %d: unknown channel %q", i, m.Channel)
		}
		axis, err := device.ParseAxis(m.Axis)
		if err != nil {
			return nil, fmt.Errorf("mapping %d: %w", i, err)
		}
		if prev, dup := used[axis]; dup {
			return nil, fmt.Errorf("mapping %d: axis %s already driven by %s", i, axis, prev)
		}
		used[axis] = m.Channel

		e := Entry{Channel: m.Channel, Axis: axis, Scale: m.Scale}
		if m.Offset == nil {
			e.AutoCenter = true
		} else {
			e.Offset = *m.Offset
		}
		table = append(table, e)
	}

	return table, nil
}

// Compute returns the axis position for a channel value
func Compute(value, scale, offset float64, r device.AxisRange) int64 {
	raw := value*scale + offset
	if math.IsNaN(raw) {
		return int64(r.Center())
	}
	if raw <= float64(r.Min) {
		return int64(r.Min)
	}
	if raw >= float64(r.Max) {
		return int64(r.Max)
	}
	return int64(math.Round(raw))
}

// Result summarises one Apply call
type Result struct {
	Written int
	Skipped int // entries whose axis the device does not expose
}

// Apply writes every table entry to out. A nil out makes it a no-op. Channels that are missing or
// not yet set map from their default value. The first ErrNotOwned stops the pass and is returned;
// other write errors are collected and the pass continues.
func (t Table) Apply(values Values, out Output) (Result, error) {
	var res Result
	if out == nil {
		return res, nil
	}

	var errs []error
	for _, e := range t {
		r, ok := out.AxisRange(e.Axis)
		if !ok {
			res.Skipped++
			continue
		}

		offset := e.Offset
		if e.AutoCenter {
			offset = float64(r.Center())
		}

		var v float64
		if values.Known(e.Channel) {
			v = values.Float(e.Channel)
		}

		if err := out.WriteAxis(e.Axis, Compute(v, e.Scale, offset, r)); err != nil {
			if errors.Is(err, device.ErrNotOwned) {
				return res, err
			}
			errs = append(errs, fmt.Errorf("%s -> %s: %w", e.Channel, e.Axis, err))
			continue
		}
		res.Written++
	}

	return res, errors.Join(errs...)
}
