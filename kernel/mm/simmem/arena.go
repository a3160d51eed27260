// Package simmem provides a simulated physical memory backed by host memory.
// It allows the physical allocator and the page table code to run unmodified
// inside tests and host-side tools: physical addresses inside the arena are
// redirected to a host buffer while all other addresses pass through.
package simmem

import (
	"baremetal/kernel/mm"
	"unsafe"
)

// Arena is a page-aligned block of simulated RAM that starts at a chosen
// physical base address.
type Arena struct {
	base uintptr
	size uintptr

	// backing is allocated as uint64 words so that 8-byte table entries
	// stored in the arena are naturally aligned.
	backing []uint64
}

// New allocates an arena covering [base, base+size). Both base and size are
// rounded to page boundaries.
func New(base uintptr, size mm.Size) *Arena {
	base &^= mm.PageSize - 1
	byteSize := (uintptr(size) + (mm.PageSize - 1)) &^ (mm.PageSize - 1)

	return &Arena{
		base:    base,
		size:    byteSize,
		backing: make([]uint64, byteSize>>3),
	}
}

// Base returns the physical address of the first byte in the arena.
func (a *Arena) Base() uintptr { return a.base }

// Size returns the arena size in bytes.
func (a *Arena) Size() uintptr { return a.size }

// End returns the first physical address past the arena.
func (a *Arena) End() uintptr { return a.base + a.size }

// Contains returns true if physAddr falls inside the arena.
func (a *Arena) Contains(physAddr uintptr) bool {
	return physAddr >= a.base && physAddr-a.base < a.size
}

// PhysToVirt converts a physical address inside the arena to the host
// address backing it. Addresses outside the arena are returned unchanged.
func (a *Arena) PhysToVirt(physAddr uintptr) uintptr {
	if !a.Contains(physAddr) {
		return physAddr
	}

	return uintptr(unsafe.Pointer(&a.backing[0])) + (physAddr - a.base)
}

// Install routes mm.PhysToVirt through the arena and returns a function
// that restores the identity conversion.
func (a *Arena) Install() (restore func()) {
	mm.SetPhysToVirt(a.PhysToVirt)
	return func() { mm.SetPhysToVirt(nil) }
}

// Fill sets every byte of the arena to value.
func (a *Arena) Fill(value byte) {
	word := uint64(value) * 0x0101010101010101
	for i := range a.backing {
		a.backing[i] = word
	}
}

// Word returns the 64-bit word stored at physAddr, which must be 8-byte
// aligned and inside the arena.
func (a *Arena) Word(physAddr uintptr) uint64 {
	return a.backing[(physAddr-a.base)>>3]
}

// PageIsZero returns true if the page containing physAddr is zero-filled.
func (a *Arena) PageIsZero(physAddr uintptr) bool {
	first := ((physAddr &^ (mm.PageSize - 1)) - a.base) >> 3
	for _, w := range a.backing[first : first+(mm.PageSize>>3)] {
		if w != 0 {
			return false
		}
	}

	return true
}
