package boot

import (
	"baremetal/kernel"
	"baremetal/kernel/kfmt"
	"baremetal/kernel/mm"
)

var (
	// panicFn is mocked by tests and is automatically inlined by the compiler.
	panicFn = kfmt.Fatal

	errPoolExhausted = &kernel.Error{Module: "boot", Message: "static boot page table pool exhausted"}
)

// tablePool is a bump allocator that hands out page-sized tables from a
// fixed, physically contiguous region. Tables are never returned to the
// pool.
type tablePool struct {
	// base is the page-aligned physical address of the first table.
	base uintptr

	// count is the pool capacity in tables and next is the index of the
	// next table to hand out.
	count uint32
	next  uint32
}

func (p *tablePool) init(base uintptr, count uint32) {
	p.base = base
	p.count = count
	p.next = 0
}

// alloc reserves the next table in the pool. Running out of tables while
// the boot tables are being built leaves the system without a usable
// address space so alloc treats pool exhaustion as a fatal error.
func (p *tablePool) alloc() (mm.Frame, *kernel.Error) {
	if p.next >= p.count {
		panicFn(errPoolExhausted)

		// Only reached when panicFn is mocked by tests
		return mm.InvalidFrame, errPoolExhausted
	}

	frame := mm.FrameFromAddress(p.base + uintptr(p.next)<<mm.PageShift)
	p.next++
	return frame, nil
}
