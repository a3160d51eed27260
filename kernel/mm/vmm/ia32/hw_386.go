//go:build baremetal

package ia32

import "baremetal/kernel/cpu"

var (
	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	writeCR3Fn      = cpu.WriteCR3
	readCR0Fn       = cpu.ReadCR0
	writeCR0Fn      = cpu.WriteCR0
	readCR4Fn       = cpu.ReadCR4
	writeCR4Fn      = cpu.WriteCR4
	flushTLBEntryFn = cpu.FlushTLBEntry
)
