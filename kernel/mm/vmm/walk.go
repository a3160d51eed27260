package vmm

import (
	"baremetal/kernel/mm"
	"unsafe"
)

// tableEntry points to a single entry slot inside a page table. The slot is
// identified by the physical address of the entry.
type tableEntry struct {
	physAddr uintptr
	size     uintptr
}

// Load returns the contents of the entry slot.
func (te tableEntry) Load() Entry {
	ptr := unsafe.Pointer(mm.PhysToVirt(te.physAddr))
	if te.size == 4 {
		return Entry(*(*uint32)(ptr))
	}
	return Entry(*(*uint64)(ptr))
}

// Store overwrites the contents of the entry slot.
func (te tableEntry) Store(e Entry) {
	ptr := unsafe.Pointer(mm.PhysToVirt(te.physAddr))
	if te.size == 4 {
		*(*uint32)(ptr) = uint32(e)
		return
	}
	*(*uint64)(ptr) = uint64(e)
}

// pageTableWalker is a function that can be passed to the walk method. The
// function receives the current page level and table entry as its
// arguments. If the function returns false, then the page walk is aborted.
type pageTableWalker func(level uint8, entry tableEntry) bool

// walk performs a page table walk for the given virtual address. It calls
// the supplied walkFn with the table entry that corresponds to each table
// level. Once walkFn returns, the walk continues into the table whose
// address is stored in the entry; walkFn must therefore return false for
// any entry that is not a valid table entry.
func (as *AddressSpace) walk(virtAddr uintptr, walkFn pageTableWalker) {
	var (
		format     = as.format
		entrySize  = format.EntrySize()
		levels     = format.Levels()
		tableAddr  = as.root.Address()
		entryIndex uintptr
		entry      tableEntry
	)

	for level := uint8(0); level < levels; level++ {
		// Extract the bits from virtual address that correspond to the
		// index in this level's page table
		entryIndex = (virtAddr >> format.LevelShift(level)) & ((1 << format.LevelBits(level)) - 1)
		entry = tableEntry{physAddr: tableAddr + entryIndex*entrySize, size: entrySize}

		if !walkFn(level, entry) {
			return
		}

		tableAddr = format.OutputAddress(level, entry.Load())
	}
}

// checkAddr verifies that virtAddr lies inside the range that can be
// translated by the address space's format.
func (as *AddressSpace) checkAddr(virtAddr uintptr) bool {
	vaBits := uint(as.format.LevelShift(0)) + uint(as.format.LevelBits(0))
	return vaBits >= 64 || uint64(virtAddr)>>vaBits == 0
}
