package device

import (
	"sync"

	"github.com/flightbridge/internal/logging"
)

// AxisRange is the inclusive output range of one axis
type AxisRange struct {
	Min int32 `json:"min"`
	Max int32 `json:"max"`
}

// Center returns the axis midpoint, rounded down
func (r AxisRange) Center() int32 {
	return int32((int64(r.Min) + int64(r.Max)) / 2)
}

// Clamp limits v to the range
func (r AxisRange) Clamp(v int64) int32 {
	if v < int64(r.Min) {
		return r.Min
	}
	if v > int64(r.Max) {
		return r.Max
	}
	return int32(v)
}

// Session is exclusive ownership of one output device.
//
// Writes are serialised by the session mutex so the diagnostic sweep and the ingestion listener
// can share it.
type Session struct {
	mu     sync.Mutex
	driver Driver
	id     uint
	owned  bool
	axes   map[Axis]AxisRange
	order  []Axis
	log    *logging.Logger
}

// Acquire takes ownership of device id. The status is queried first and acquisition only proceeds
// when the device is free or already owned by this process. Axis existence and ranges are read
// once and cached.
func Acquire(driver Driver, id uint, log *logging.Logger) (*Session, error) {
	if log == nil {
		log = logging.Discard()
	}

	if !driver.Enabled() {
		return nil, &StatusError{ID: id, Status: StatusMissing, Err: ErrNotInstalled}
	}

	info := driver.Info()
	log.Infof("Driver: vendor=%q product=%q version=%q", info.Manufacturer, info.Product, info.Serial)

	status := driver.Status(id)
	switch status {
	case StatusOwned:
		log.Infof("Device %d is already owned by this feeder", id)
	case StatusFree:
		log.Infof("Device %d is free", id)
	case StatusBusy:
		return nil, &StatusError{ID: id, Status: status, Err: ErrBusy}
	case StatusMissing:
		return nil, &StatusError{ID: id, Status: status, Err: ErrNotInstalled}
	default:
		return nil, &StatusError{ID: id, Status: status, Err: ErrOwnershipFailed}
	}

	s := &Session{
		driver: driver,
		id:     id,
		axes:   make(map[Axis]AxisRange),
		log:    log,
	}

	for _, axis := range AllAxes() {
		if !driver.AxisExists(id, axis) {
			continue
		}
		min, max, ok := driver.AxisRange(id, axis)
		if !ok || min > max {
			log.Warnf("Device %d axis %s exists but reports no usable range", id, axis)
			continue
		}
		s.axes[axis] = AxisRange{Min: min, Max: max}
		s.order = append(s.order, axis)
	}

	if status == StatusFree && !driver.Acquire(id) {
		return nil, &StatusError{ID: id, Status: driver.Status(id), Err: ErrOwnershipFailed}
	}
	s.owned = true

	log.Infof("Acquired device %d with axes %v", id, s.order)
	return s, nil
}

// ID returns the device id
func (s *Session) ID() uint {
	return s.id
}

// Owned reports whether axis writes are currently valid
func (s *Session) Owned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owned
}

// Axes returns the axes the device exposes, in HID usage order
func (s *Session) Axes() []Axis {
	out := make([]Axis, len(s.order))
	copy(out, s.order)
	return out
}

// HasAxis reports whether the device exposes axis
func (s *Session) HasAxis(axis Axis) bool {
	_, ok := s.axes[axis]
	return ok
}

// AxisRange returns the cached range of axis
func (s *Session) AxisRange(axis Axis) (AxisRange, bool) {
	if s == nil {
		return AxisRange{}, false
	}
	r, ok := s.axes[axis]
	return r, ok
}

// WriteAxis clamps value into the axis range and writes it. It fails with ErrNotOwned when the
// session does not own the device; the caller should stop writing until it is re-acquired.
func (s *Session) WriteAxis(axis Axis, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(axis, value)
}

func (s *Session) writeLocked(axis Axis, value int64) error {
	if !s.owned {
		return ErrNotOwned
	}

	r, ok := s.axes[axis]
	if !ok {
		return ErrAxisMissing
	}

	if s.driver.SetAxis(s.id, axis, r.Clamp(value)) {
		return nil
	}

	// A rejected write usually means another feeder took the device over
	if s.driver.Status(s.id) != StatusOwned {
		s.owned = false
		s.log.Warnf("Lost ownership of device %d", s.id)
		return ErrNotOwned
	}
	return ErrWriteFailed
}

// Center writes the midpoint of one axis
func (s *Session) Center(axis Axis) error {
	r, ok := s.AxisRange(axis)
	if !ok {
		return ErrAxisMissing
	}
	return s.WriteAxis(axis, int64(r.Center()))
}

// CenterAll writes the midpoint of every axis the device exposes
func (s *Session) CenterAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, axis := range s.order {
		if err := s.writeLocked(axis, int64(s.axes[axis].Center())); err != nil {
			return err
		}
	}
	return nil
}

// Release gives the device back to the driver. Safe to call more than once and on a nil session.
func (s *Session) Release() {
	if s == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.owned {
		return
	}
	s.driver.Relinquish(s.id)
	s.owned = false
	s.log.Infof("Released device %d", s.id)
}
