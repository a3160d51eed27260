// Package hal probes for the hardware registered by device drivers and
// connects the first available serial console to the kernel's output sink.
package hal

import (
	"baremetal/device"
	"baremetal/kernel/kfmt"
	"bytes"
	"io"
)

// managedDevices contains the devices discovered by the HAL.
type managedDevices struct {
	activeConsole io.Writer

	// activeDrivers tracks all initialized device drivers.
	activeDrivers []device.Driver
}

var (
	devices managedDevices
	strBuf  bytes.Buffer
)

// ActiveConsole returns the device that receives the kernel's diagnostic
// output or nil if no console has been detected.
func ActiveConsole() io.Writer {
	return devices.activeConsole
}

// DetectHardware probes for hardware devices and initializes the appropriate
// drivers.
func DetectHardware() {
	probe(device.DriverList())
}

// probe executes the probe function for each driver and invokes
// onDriverInit for each successfully initialized driver.
func probe(driverInfoList device.DriverInfoList) {
	var w = kfmt.PrefixWriter{Sink: kfmt.GetOutputSink()}

	for _, info := range driverInfoList {
		drv := info.Probe()
		if drv == nil {
			continue
		}

		strBuf.Reset()
		major, minor, patch := drv.DriverVersion()
		kfmt.Fprintf(&strBuf, "[hal] %s(%d.%d.%d): ", drv.DriverName(), major, minor, patch)
		w.Prefix = strBuf.Bytes()

		if err := drv.DriverInit(&w); err != nil {
			kfmt.Fprintf(&w, "init failed: %s\n", err.Message)
			continue
		}

		kfmt.Fprintf(&w, "initialized\n")
		devices.activeDrivers = append(devices.activeDrivers, drv)

		if onDriverInit(drv) {
			// Route the remaining probe output to the new console
			w.Sink = kfmt.GetOutputSink()
		}
	}
}

// onDriverInit is invoked by probe() whenever a piece of hardware is detected
// and successfully initialized. If the driver can act as a console and no
// console is active yet, it becomes the kernel's output sink and any output
// buffered so far is flushed to it.
func onDriverInit(drv device.Driver) bool {
	if devices.activeConsole != nil {
		return false
	}

	cons, ok := drv.(io.Writer)
	if !ok {
		return false
	}

	devices.activeConsole = cons
	kfmt.SetOutputSink(cons)
	return true
}
