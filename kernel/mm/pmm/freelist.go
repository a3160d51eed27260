package pmm

import (
	"baremetal/kernel"
	"baremetal/kernel/mm"
	"unsafe"
)

// endOfList terminates the free list. Address 0 may be a valid frame so it
// cannot double as the list terminator.
const endOfList = ^uintptr(0)

var (
	errOutOfMemory      = &kernel.Error{Module: "pmm", Message: "no contiguous run of free pages large enough to satisfy request"}
	errInvalidPageCount = &kernel.Error{Module: "pmm", Message: "page count must be greater than zero"}
	errInvalidFree      = &kernel.Error{Module: "pmm", Message: "freed range is misaligned or outside the managed region"}
	errDoubleFree       = &kernel.Error{Module: "pmm", Message: "freed range overlaps pages that are already free"}
)

// FreeListAllocator hands out physically contiguous runs of pages from a
// single memory region.
//
// Free pages are threaded onto an intrusive singly linked list: the first
// word of each free page stores the physical address of the next free page.
// The list is always kept sorted by ascending address so pages that are
// physically adjacent are also adjacent in the list and a single linear scan
// detects every contiguous run.
type FreeListAllocator struct {
	// regionStart and regionEnd delimit the managed (page-aligned) region.
	regionStart, regionEnd uintptr

	// freeHead is the physical address of the lowest free page or
	// endOfList if no pages are free.
	freeHead uintptr

	totalPages uint32
	usedPages  uint32
}

// Init partitions the region [start, start+size) into pages and threads all
// of them onto the free list. The region start is rounded up and its end is
// rounded down to a page boundary. Init does not reserve any pages; callers
// must not donate memory that is already in use.
func (alloc *FreeListAllocator) Init(start, size uintptr) {
	end := (start + size) &^ (mm.PageSize - 1)
	start = (start + (mm.PageSize - 1)) &^ (mm.PageSize - 1)
	if end < start {
		end = start
	}

	alloc.regionStart, alloc.regionEnd = start, end
	alloc.totalPages = uint32((end - start) >> mm.PageShift)
	alloc.usedPages = 0
	alloc.freeHead = endOfList

	// Thread pages back to front so the list ends up in ascending order.
	for addr := end; addr > start; {
		addr -= mm.PageSize
		setNext(addr, alloc.freeHead)
		alloc.freeHead = addr
	}
}

// Alloc reserves count physically contiguous pages and returns the physical
// address of the first one. If no contiguous run of count free pages exists,
// Alloc returns errOutOfMemory and the allocator state is left untouched.
func (alloc *FreeListAllocator) Alloc(count uint32) (uintptr, *kernel.Error) {
	if count == 0 {
		return 0, errInvalidPageCount
	}

	var (
		prev      = endOfList
		runStart  = endOfList
		runPrev   = endOfList
		runLength uint32
	)

	for cur := alloc.freeHead; cur != endOfList; prev, cur = cur, next(cur) {
		// A run continues only if this page immediately follows the
		// previous list node.
		if runLength == 0 || cur != prev+mm.PageSize {
			runStart, runPrev, runLength = cur, prev, 0
		}

		if runLength++; runLength != count {
			continue
		}

		// Unlink [runStart, cur] from the list
		if runPrev == endOfList {
			alloc.freeHead = next(cur)
		} else {
			setNext(runPrev, next(cur))
		}

		alloc.usedPages += count
		return runStart, nil
	}

	return 0, errOutOfMemory
}

// ZeroedAlloc behaves like Alloc but clears the contents of the returned
// pages.
func (alloc *FreeListAllocator) ZeroedAlloc(count uint32) (uintptr, *kernel.Error) {
	addr, err := alloc.Alloc(count)
	if err != nil {
		return 0, err
	}

	kernel.Memset(mm.PhysToVirt(addr), 0, uintptr(count)<<mm.PageShift)
	return addr, nil
}

// AllocFrame reserves a single zeroed page and returns its frame. Its
// signature matches mm.FrameAllocatorFn so it can back the page table code.
func (alloc *FreeListAllocator) AllocFrame() (mm.Frame, *kernel.Error) {
	addr, err := alloc.ZeroedAlloc(1)
	if err != nil {
		return mm.InvalidFrame, err
	}

	return mm.FrameFromAddress(addr), nil
}

// Free returns count pages starting at addr to the allocator. The pages are
// inserted at their sorted position in the free list; no merging of runs
// is required since contiguity is rediscovered by Alloc.
//
// Free rejects misaligned or out-of-region ranges with errInvalidFree and
// ranges that overlap already free pages with errDoubleFree. Rejected calls
// leave the allocator state untouched.
func (alloc *FreeListAllocator) Free(addr uintptr, count uint32) *kernel.Error {
	if count == 0 ||
		addr&(mm.PageSize-1) != 0 ||
		addr < alloc.regionStart ||
		addr >= alloc.regionEnd ||
		uintptr(count) > (alloc.regionEnd-addr)>>mm.PageShift {
		return errInvalidFree
	}

	// Locate the last free page below addr and the first free page at or
	// above it.
	var (
		prev    = endOfList
		succ    = alloc.freeHead
		runEnd  = addr + uintptr(count)<<mm.PageShift
		lastRun = runEnd - mm.PageSize
	)
	for ; succ != endOfList && succ < addr; prev, succ = succ, next(succ) {
	}

	if succ != endOfList && succ < runEnd {
		return errDoubleFree
	}

	for page := addr; page < lastRun; page += mm.PageSize {
		setNext(page, page+mm.PageSize)
	}
	setNext(lastRun, succ)

	if prev == endOfList {
		alloc.freeHead = addr
	} else {
		setNext(prev, addr)
	}

	alloc.usedPages -= count
	return nil
}

// TotalPages returns the number of pages managed by the allocator.
func (alloc *FreeListAllocator) TotalPages() uint32 { return alloc.totalPages }

// UsedPages returns the number of currently allocated pages.
func (alloc *FreeListAllocator) UsedPages() uint32 { return alloc.usedPages }

// FreePages returns the number of pages on the free list.
func (alloc *FreeListAllocator) FreePages() uint32 { return alloc.totalPages - alloc.usedPages }

// Region returns the page-aligned bounds of the managed region.
func (alloc *FreeListAllocator) Region() (start, end uintptr) {
	return alloc.regionStart, alloc.regionEnd
}

// VisitFree invokes visitor for every free page in list order. The walk
// stops early if visitor returns false.
func (alloc *FreeListAllocator) VisitFree(visitor func(addr uintptr) bool) {
	for cur := alloc.freeHead; cur != endOfList; cur = next(cur) {
		if !visitor(cur) {
			return
		}
	}
}

// next returns the link stored inside the free page at physAddr.
func next(physAddr uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(mm.PhysToVirt(physAddr)))
}

// setNext stores a link inside the free page at physAddr.
func setNext(physAddr, nextAddr uintptr) {
	*(*uintptr)(unsafe.Pointer(mm.PhysToVirt(physAddr))) = nextAddr
}
