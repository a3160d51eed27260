//go:build baremetal

package lpae

import "baremetal/kernel/cpu"

var (
	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	writeMAIRFn     = cpu.WriteMAIR
	writeTCRFn      = cpu.WriteTCR
	writeTTBR0Fn    = cpu.WriteTTBR0
	readSCTLRFn     = cpu.ReadSCTLR
	writeSCTLRFn    = cpu.WriteSCTLR
	invalidateTLBFn = cpu.InvalidateTLB
	flushTLBEntryFn = cpu.FlushTLBEntry
)
