package device

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceUnavailable matches every acquisition failure
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrNotInstalled means the driver is not enabled or the device id does not exist.
	// Terminal for the id: retrying without user intervention will not help.
	ErrNotInstalled = errors.New("device not installed")

	// ErrBusy means another feeder owns the device. Terminal for the id.
	ErrBusy = errors.New("device owned by another feeder")

	// ErrOwnershipFailed means the driver refused the acquisition or reported a general error
	ErrOwnershipFailed = errors.New("device ownership failed")

	// ErrNotOwned is returned by writes on a session that does not own its device
	ErrNotOwned = errors.New("device not owned")

	// ErrAxisMissing is returned by writes to an axis the device does not expose
	ErrAxisMissing = errors.New("axis not present on device")

	// ErrWriteFailed is returned when the driver rejects a write while still reporting ownership
	ErrWriteFailed = errors.New("axis write failed")
)

// StatusError reports why a device could not be acquired
type StatusError struct {
	ID     uint
	Status Status
	Err    error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("device %d (%s): %v", e.ID, e.Status, e.Err)
}

// Unwrap exposes both the specific cause and ErrDeviceUnavailable to errors.Is
func (e *StatusError) Unwrap() []error {
	return []error{ErrDeviceUnavailable, e.Err}
}
