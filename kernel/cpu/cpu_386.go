//go:build baremetal

package cpu

// Halt disables interrupts and stops instruction execution.
func Halt()

// WriteCR3 loads the physical address of the page directory into CR3. This
// also flushes all non-global TLB entries.
func WriteCR3(pdtPhysAddr uint32)

// ReadCR0 returns the value stored in the CR0 register.
func ReadCR0() uint32

// WriteCR0 sets the CR0 register.
func WriteCR0(value uint32)

// ReadCR4 returns the value stored in the CR4 register.
func ReadCR4() uint32

// WriteCR4 sets the CR4 register.
func WriteCR4(value uint32)

// FlushTLBEntry flushes a TLB entry for a particular virtual address.
func FlushTLBEntry(virtAddr uintptr)
