// Package uart provides a transmit-only driver for the ARM PL011 UART.
package uart

import (
	"baremetal/device"
	"baremetal/kernel"
	"baremetal/kernel/kfmt"
	"io"
	"unsafe"
)

const (
	// regData is the data register offset; writes transmit a byte.
	regData = 0x00

	// regFlags is the flag register offset.
	regFlags = 0x18

	// flagTXFF is set while the transmit FIFO is full.
	flagTXFF = 1 << 5
)

var (
	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	mmioReadFn  = mmioRead
	mmioWriteFn = mmioWrite
)

func mmioRead(addr uintptr) uint32 {
	return *(*uint32)(unsafe.Pointer(addr))
}

func mmioWrite(addr uintptr, value uint32) {
	*(*uint32)(unsafe.Pointer(addr)) = value
}

// PL011 drives a PL011 UART whose registers are mapped at a fixed address.
type PL011 struct {
	base uintptr
}

// Init sets the register base address of the UART.
func (u *PL011) Init(base uintptr) {
	u.base = base
}

// PutByte busy-waits until the transmit FIFO has room and then transmits b.
// It returns the transmitted byte.
func (u *PL011) PutByte(b byte) byte {
	for mmioReadFn(u.base+regFlags)&flagTXFF != 0 {
	}

	mmioWriteFn(u.base+regData, uint32(b))
	return b
}

// WriteByte implements io.ByteWriter.
func (u *PL011) WriteByte(b byte) error {
	u.PutByte(b)
	return nil
}

// Write implements io.Writer. Line feeds are expanded to CR LF pairs; the
// returned count does not include the injected carriage returns.
func (u *PL011) Write(p []byte) (int, error) {
	for _, b := range p {
		if b == '\n' {
			u.PutByte('\r')
		}
		u.PutByte(b)
	}

	return len(p), nil
}

// DriverName returns the name of this driver.
func (u *PL011) DriverName() string {
	return "pl011"
}

// DriverVersion returns the version of this driver.
func (u *PL011) DriverVersion() (uint16, uint16, uint16) {
	return 0, 0, 1
}

// DriverInit initializes this driver.
func (u *PL011) DriverInit(w io.Writer) *kernel.Error {
	kfmt.Fprintf(w, "mmio base: 0x%16x\n", u.base)
	return nil
}

var _ device.Driver = (*PL011)(nil)
