//go:build baremetal

package uart

import "baremetal/device"

// qemuVirtBase is the register base of the first PL011 on the QEMU virt
// machine.
const qemuVirtBase = 0x09000000

var console PL011

func probeForPL011() device.Driver {
	console.Init(qemuVirtBase)
	return &console
}

func init() {
	device.RegisterDriver(&device.DriverInfo{
		Order: device.DetectOrderEarly,
		Probe: probeForPL011,
	})
}
