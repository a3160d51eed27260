//go:build !(386 && baremetal)

package ia32

import "baremetal/kernel/cpu"

// Control registers are only programmed by baremetal 386 builds. Elsewhere
// the tables can still be built (tests, host tools) but any attempt to
// activate them halts the CPU.
var (
	writeCR3Fn      = func(uint32) { cpu.Halt() }
	readCR0Fn       = func() uint32 { cpu.Halt(); return 0 }
	writeCR0Fn      = func(uint32) { cpu.Halt() }
	readCR4Fn       = func() uint32 { cpu.Halt(); return 0 }
	writeCR4Fn      = func(uint32) { cpu.Halt() }
	flushTLBEntryFn = func(uintptr) { cpu.Halt() }
)
