// Package device defines the interface implemented by hardware drivers and
// the registry that the hal package uses to probe for hardware.
package device

import (
	"baremetal/kernel"
	"io"
)

// Driver is an interface implemented by all drivers.
type Driver interface {
	// DriverName returns the name of the driver.
	DriverName() string

	// DriverVersion returns the driver version.
	DriverVersion() (major uint16, minor uint16, patch uint16)

	// DriverInit initializes the device driver. If the driver init code
	// needs to log some output, it can use the supplied io.Writer in
	// conjunction with a call to kfmt.Fprint.
	DriverInit(io.Writer) *kernel.Error
}

// ProbeFn is a function that scans for the presence of a particular
// piece of hardware and returns a driver for it.
type ProbeFn func() Driver

// DetectOrder specifies when each driver's probe function will be invoked
// by the hal package.
type DetectOrder int8

const (
	// DetectOrderEarly specifies that the driver's probe function should
	// be executed at the beginning of the HW detection phase. Drivers for
	// devices that provide diagnostic output use this value.
	DetectOrderEarly DetectOrder = -128

	// DetectOrderNormal specifies that the driver's probe function should
	// be executed after all early drivers have been probed.
	DetectOrderNormal DetectOrder = 0

	// DetectOrderLast specifies that the driver's probe function should
	// be executed at the end of the HW detection phase.
	DetectOrderLast DetectOrder = 127
)

// DriverInfo is used by device drivers to register themselves with the hal
// package.
type DriverInfo struct {
	// Order specifies at which stage of the HW detection step should
	// the probe function be invoked.
	Order DetectOrder

	// Probe is a function that checks for the presence of a particular
	// piece of hardware and returns back a driver for it.
	Probe ProbeFn
}

// DriverInfoList is a list of registered drivers kept in detection order.
type DriverInfoList []*DriverInfo

var (
	// registeredDrivers is ordered by DetectOrder. Drivers that share a
	// DetectOrder keep their registration order.
	registeredDrivers DriverInfoList
)

// RegisterDriver inserts info into the driver registry after every driver
// whose DetectOrder is less than or equal to info.Order. Drivers typically
// call this function from an init() block.
func RegisterDriver(info *DriverInfo) {
	pos := len(registeredDrivers)
	for pos > 0 && registeredDrivers[pos-1].Order > info.Order {
		pos--
	}

	registeredDrivers = append(registeredDrivers, nil)
	copy(registeredDrivers[pos+1:], registeredDrivers[pos:])
	registeredDrivers[pos] = info
}

// DriverList returns the registered drivers in the order in which the hal
// package should probe them.
func DriverList() DriverInfoList {
	return registeredDrivers
}
