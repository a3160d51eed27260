//go:build !(arm64 && baremetal)

package lpae

import "baremetal/kernel/cpu"

// The system registers programmed by this package are only accessed by
// baremetal arm64 builds. Elsewhere the tables can still be built (tests,
// host tools) but any attempt to activate them halts the CPU.
var (
	writeMAIRFn     = func(uint64) { cpu.Halt() }
	writeTCRFn      = func(uint64) { cpu.Halt() }
	writeTTBR0Fn    = func(uint64) { cpu.Halt() }
	readSCTLRFn     = func() uint64 { cpu.Halt(); return 0 }
	writeSCTLRFn    = func(uint64) { cpu.Halt() }
	invalidateTLBFn = cpu.Halt
	flushTLBEntryFn = func(uintptr) { cpu.Halt() }
)
