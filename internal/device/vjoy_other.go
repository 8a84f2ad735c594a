//go:build !windows

package device

import "fmt"

// NewVJoyDriver always fails off Windows; use the virtual driver instead
func NewVJoyDriver() (Driver, error) {
	return nil, fmt.Errorf("%w: vJoy is only available on windows", ErrNotInstalled)
}
