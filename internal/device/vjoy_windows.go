//go:build windows

package device

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// vJoyInterface.dll ships with the vJoy driver and is found through the normal DLL search path
var (
	vjoyDLL = windows.NewLazyDLL("vJoyInterface.dll")

	procVJoyEnabled     = vjoyDLL.NewProc("vJoyEnabled")
	procGetManufacturer = vjoyDLL.NewProc("GetvJoyManufacturerString")
	procGetProduct      = vjoyDLL.NewProc("GetvJoyProductString")
	procGetSerial       = vjoyDLL.NewProc("GetvJoySerialNumberString")
	procGetVJDStatus    = vjoyDLL.NewProc("GetVJDStatus")
	procAcquireVJD      = vjoyDLL.NewProc("AcquireVJD")
	procRelinquishVJD   = vjoyDLL.NewProc("RelinquishVJD")
	procGetVJDAxisExist = vjoyDLL.NewProc("GetVJDAxisExist")
	procGetVJDAxisMin   = vjoyDLL.NewProc("GetVJDAxisMin")
	procGetVJDAxisMax   = vjoyDLL.NewProc("GetVJDAxisMax")
	procSetAxis         = vjoyDLL.NewProc("SetAxis")
)

// VJoyDriver calls the vJoy feeder API
type VJoyDriver struct{}

// NewVJoyDriver loads vJoyInterface.dll. A missing DLL is reported as ErrNotInstalled.
func NewVJoyDriver() (Driver, error) {
	if err := vjoyDLL.Load(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotInstalled, err)
	}
	return &VJoyDriver{}, nil
}

func (VJoyDriver) Enabled() bool {
	r, _, _ := procVJoyEnabled.Call()
	return r != 0
}

func (VJoyDriver) Info() Info {
	return Info{
		Manufacturer: wideString(procGetManufacturer),
		Product:      wideString(procGetProduct),
		Serial:       wideString(procGetSerial),
	}
}

func (VJoyDriver) Status(id uint) Status {
	r, _, _ := procGetVJDStatus.Call(uintptr(id))
	if r > uintptr(StatusUnknown) {
		return StatusUnknown
	}
	return Status(r)
}

func (VJoyDriver) Acquire(id uint) bool {
	r, _, _ := procAcquireVJD.Call(uintptr(id))
	return r != 0
}

func (VJoyDriver) Relinquish(id uint) {
	procRelinquishVJD.Call(uintptr(id))
}

func (VJoyDriver) AxisExists(id uint, axis Axis) bool {
	r, _, _ := procGetVJDAxisExist.Call(uintptr(id), uintptr(axis))
	return r != 0
}

func (VJoyDriver) AxisRange(id uint, axis Axis) (int32, int32, bool) {
	var min, max int32
	r1, _, _ := procGetVJDAxisMin.Call(uintptr(id), uintptr(axis), uintptr(unsafe.Pointer(&min)))
	r2, _, _ := procGetVJDAxisMax.Call(uintptr(id), uintptr(axis), uintptr(unsafe.Pointer(&max)))
	return min, max, r1 != 0 && r2 != 0
}

func (VJoyDriver) SetAxis(id uint, axis Axis, value int32) bool {
	// BOOL SetAxis(LONG Value, UINT rID, UINT Axis)
	r, _, _ := procSetAxis.Call(uintptr(value), uintptr(id), uintptr(axis))
	return r != 0
}

// wideString reads the WCHAR* returned by the vJoy string getters
func wideString(proc *windows.LazyProc) string {
	r, _, _ := proc.Call()
	if r == 0 {
		return ""
	}
	// r points at static storage inside vJoyInterface.dll, not Go memory
	return windows.UTF16PtrToString((*uint16)(unsafe.Pointer(r)))
}
