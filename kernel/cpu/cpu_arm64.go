//go:build baremetal

package cpu

// Halt stops instruction execution.
func Halt()

// WriteTTBR0 loads the physical address of the root translation table for
// the lower virtual address range into TTBR0_EL1.
func WriteTTBR0(rootPhysAddr uint64)

// WriteMAIR sets the memory attribute indirection register (MAIR_EL1).
func WriteMAIR(value uint64)

// WriteTCR sets the translation control register (TCR_EL1).
func WriteTCR(value uint64)

// ReadSCTLR returns the value of the system control register (SCTLR_EL1).
func ReadSCTLR() uint64

// WriteSCTLR sets the system control register (SCTLR_EL1) and issues an
// instruction barrier so the new value takes effect immediately.
func WriteSCTLR(value uint64)

// InvalidateTLB discards all stage 1 EL1 TLB entries.
func InvalidateTLB()

// FlushTLBEntry discards the stage 1 EL1 TLB entries for a particular virtual
// address.
func FlushTLBEntry(virtAddr uintptr)
