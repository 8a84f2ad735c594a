package device

import (
	"fmt"
	"strings"
)

// Axis identifies one analog output by its HID usage code
type Axis uint32

// HID usages understood by vJoy
const (
	AxisX   Axis = 0x30
	AxisY   Axis = 0x31
	AxisZ   Axis = 0x32
	AxisRX  Axis = 0x33
	AxisRY  Axis = 0x34
	AxisRZ  Axis = 0x35
	AxisSL0 Axis = 0x36
	AxisSL1 Axis = 0x37
)

var axisNames = map[Axis]string{
	AxisX:   "X",
	AxisY:   "Y",
	AxisZ:   "Z",
	AxisRX:  "RX",
	AxisRY:  "RY",
	AxisRZ:  "RZ",
	AxisSL0: "SL0",
	AxisSL1: "SL1",
}

// AllAxes lists every axis a device can expose, in HID usage order
func AllAxes() []Axis {
	return []Axis{AxisX, AxisY, AxisZ, AxisRX, AxisRY, AxisRZ, AxisSL0, AxisSL1}
}

func (a Axis) String() string {
	if name, ok := axisNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Axis(0x%02x)", uint32(a))
}

// ParseAxis maps a name such as "X" or "rz" to its axis
func ParseAxis(name string) (Axis, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for axis, n := range axisNames {
		if n == upper {
			return axis, nil
		}
	}
	return 0, fmt.Errorf("unknown axis %q", name)
}

// Status is the ownership state of a device as reported by the driver
type Status int

// Values match the vJoy VjdStat enumeration
const (
	StatusOwned   Status = iota // owned by this process
	StatusFree                  // free to acquire
	StatusBusy                  // owned by another feeder
	StatusMissing               // not installed or disabled
	StatusUnknown               // general driver error
)

func (s Status) String() string {
	switch s {
	case StatusOwned:
		return "owned"
	case StatusFree:
		return "free"
	case StatusBusy:
		return "busy"
	case StatusMissing:
		return "missing"
	default:
		return "error"
	}
}

// Info describes the installed driver
type Info struct {
	Manufacturer string `json:"manufacturer"`
	Product      string `json:"product"`
	Serial       string `json:"serial"`
}

// Driver is the device boundary: ownership, capability and range queries, and axis writes
type Driver interface {
	Enabled() bool
	Info() Info
	Status(id uint) Status
	Acquire(id uint) bool
	Relinquish(id uint)
	AxisExists(id uint, axis Axis) bool
	AxisRange(id uint, axis Axis) (min, max int32, ok bool)
	SetAxis(id uint, axis Axis, value int32) bool
}
