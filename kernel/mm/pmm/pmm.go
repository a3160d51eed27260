// Package pmm implements the kernel's physical page allocator.
package pmm

import (
	"baremetal/kernel"
	"baremetal/kernel/kfmt"
	"baremetal/kernel/mm"
)

var (
	// freeListAllocator is the page allocator used by the kernel once
	// the boot page tables are active.
	freeListAllocator FreeListAllocator
)

// Init sets up the kernel physical memory allocator to manage the region
// [start, start+size) and registers it as the frame source for the page
// table code.
func Init(start, size uintptr) {
	freeListAllocator.Init(start, size)

	regionStart, regionEnd := freeListAllocator.Region()
	kfmt.Printf(
		"[pmm] managing region [0x%16x - 0x%16x], pages: %d (%d Kb)\n",
		regionStart, regionEnd-1,
		freeListAllocator.TotalPages(),
		uint64(freeListAllocator.TotalPages())*uint64(mm.PageSize>>10),
	)

	mm.SetFrameAllocator(allocFrame)
}

// AllocPages reserves count physically contiguous pages from the kernel
// allocator.
func AllocPages(count uint32) (uintptr, *kernel.Error) {
	return freeListAllocator.Alloc(count)
}

// ZeroedAllocPages reserves count physically contiguous zero-filled pages
// from the kernel allocator.
func ZeroedAllocPages(count uint32) (uintptr, *kernel.Error) {
	return freeListAllocator.ZeroedAlloc(count)
}

// FreePages returns count pages starting at addr to the kernel allocator.
func FreePages(addr uintptr, count uint32) *kernel.Error {
	return freeListAllocator.Free(addr, count)
}

// Stats returns the total and used page counters of the kernel allocator.
func Stats() (total, used uint32) {
	return freeListAllocator.TotalPages(), freeListAllocator.UsedPages()
}

func allocFrame() (mm.Frame, *kernel.Error) {
	return freeListAllocator.AllocFrame()
}
