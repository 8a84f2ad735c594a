package device

import "sync"

// VirtualDriver is an in-memory stand-in for the vJoy driver. It is used where vJoy is not
// installed and by tests, which can script ownership changes and inspect written values.
type VirtualDriver struct {
	mu      sync.Mutex
	enabled bool
	devices map[uint]*virtualDevice
}

type virtualDevice struct {
	status  Status
	axes    map[Axis]*virtualAxis
	history map[Axis][]int32
}

type virtualAxis struct {
	min, max, value int32
}

// DefaultAxisMax is the upper bound vJoy reports for its axes
const DefaultAxisMax = 32767

// NewVirtualDriver creates an enabled driver with no devices
func NewVirtualDriver() *VirtualDriver {
	return &VirtualDriver{
		enabled: true,
		devices: make(map[uint]*virtualDevice),
	}
}

// AddDevice installs a free device exposing axes with range [0, DefaultAxisMax]
func (d *VirtualDriver) AddDevice(id uint, axes ...Axis) {
	d.AddDeviceWithRange(id, 0, DefaultAxisMax, axes...)
}

// AddDeviceWithRange installs a free device whose axes share one range
func (d *VirtualDriver) AddDeviceWithRange(id uint, min, max int32, axes ...Axis) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dev := &virtualDevice{
		status:  StatusFree,
		axes:    make(map[Axis]*virtualAxis),
		history: make(map[Axis][]int32),
	}
	for _, axis := range axes {
		dev.axes[axis] = &virtualAxis{min: min, max: max, value: (min + max) / 2}
	}
	d.devices[id] = dev
}

// SetEnabled switches the whole driver on or off
func (d *VirtualDriver) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
}

// SetStatus forces the ownership status of a device, e.g. StatusBusy to simulate another feeder
func (d *VirtualDriver) SetStatus(id uint, status Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if dev, ok := d.devices[id]; ok {
		dev.status = status
	}
}

// AxisValue returns the last value written to an axis
func (d *VirtualDriver) AxisValue(id uint, axis Axis) (int32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dev, ok := d.devices[id]
	if !ok {
		return 0, false
	}
	a, ok := dev.axes[axis]
	if !ok {
		return 0, false
	}
	return a.value, true
}

// Writes returns every value written to an axis, oldest first
func (d *VirtualDriver) Writes(id uint, axis Axis) []int32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	dev, ok := d.devices[id]
	if !ok {
		return nil
	}
	out := make([]int32, len(dev.history[axis]))
	copy(out, dev.history[axis])
	return out
}

func (d *VirtualDriver) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

func (d *VirtualDriver) Info() Info {
	return Info{Manufacturer: "flightbridge", Product: "virtual joystick", Serial: "0"}
}

func (d *VirtualDriver) Status(id uint) Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	dev, ok := d.devices[id]
	if !ok {
		return StatusMissing
	}
	return dev.status
}

func (d *VirtualDriver) Acquire(id uint) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	dev, ok := d.devices[id]
	if !ok {
		return false
	}
	switch dev.status {
	case StatusFree, StatusOwned:
		dev.status = StatusOwned
		return true
	default:
		return false
	}
}

func (d *VirtualDriver) Relinquish(id uint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if dev, ok := d.devices[id]; ok && dev.status == StatusOwned {
		dev.status = StatusFree
	}
}

func (d *VirtualDriver) AxisExists(id uint, axis Axis) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	dev, ok := d.devices[id]
	if !ok {
		return false
	}
	_, ok = dev.axes[axis]
	return ok
}

func (d *VirtualDriver) AxisRange(id uint, axis Axis) (int32, int32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dev, ok := d.devices[id]
	if !ok {
		return 0, 0, false
	}
	a, ok := dev.axes[axis]
	if !ok {
		return 0, 0, false
	}
	return a.min, a.max, true
}

func (d *VirtualDriver) SetAxis(id uint, axis Axis, value int32) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	dev, ok := d.devices[id]
	if !ok || dev.status != StatusOwned {
		return false
	}
	a, ok := dev.axes[axis]
	if !ok {
		return false
	}
	a.value = value
	dev.history[axis] = append(dev.history[axis], value)
	return true
}

var _ Driver = (*VirtualDriver)(nil)
