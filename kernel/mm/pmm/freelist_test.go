package pmm

import (
	"baremetal/kernel"
	"baremetal/kernel/mm"
	"baremetal/kernel/mm/simmem"
	"math/rand"
	"testing"
)

func setupAllocator(t *testing.T, base uintptr, pages int) (*FreeListAllocator, *simmem.Arena) {
	t.Helper()

	arena := simmem.New(base, mm.Size(uintptr(pages)<<mm.PageShift))
	t.Cleanup(arena.Install())

	var alloc FreeListAllocator
	alloc.Init(base, uintptr(pages)<<mm.PageShift)
	return &alloc, arena
}

// checkFreeList verifies that the free list is sorted, that it only holds
// pages inside the managed region and that its length agrees with the
// page counters.
func checkFreeList(t *testing.T, alloc *FreeListAllocator) {
	t.Helper()

	start, end := alloc.Region()
	var (
		count uint32
		last  = endOfList
	)
	alloc.VisitFree(func(addr uintptr) bool {
		if addr < start || addr >= end || addr&(mm.PageSize-1) != 0 {
			t.Fatalf("free list contains invalid page 0x%x", addr)
		}
		if last != endOfList && addr <= last {
			t.Fatalf("free list is not sorted: 0x%x follows 0x%x", addr, last)
		}
		last = addr
		count++
		return true
	})

	if exp := alloc.FreePages(); count != exp {
		t.Fatalf("expected free list to contain %d pages; got %d", exp, count)
	}
	if alloc.UsedPages()+alloc.FreePages() != alloc.TotalPages() {
		t.Fatalf("page counters out of sync: used %d, free %d, total %d", alloc.UsedPages(), alloc.FreePages(), alloc.TotalPages())
	}
}

func TestFreeListInit(t *testing.T) {
	alloc, _ := setupAllocator(t, 0x1000, 4)

	if exp, got := uint32(4), alloc.TotalPages(); got != exp {
		t.Fatalf("expected total pages to be %d; got %d", exp, got)
	}

	var got []uintptr
	alloc.VisitFree(func(addr uintptr) bool {
		got = append(got, addr)
		return true
	})

	exp := []uintptr{0x1000, 0x2000, 0x3000, 0x4000}
	if len(got) != len(exp) {
		t.Fatalf("expected free list %x; got %x", exp, got)
	}
	for i := range exp {
		if got[i] != exp[i] {
			t.Fatalf("expected free list %x; got %x", exp, got)
		}
	}
}

func TestFreeListInitUnalignedRegion(t *testing.T) {
	arena := simmem.New(0x1000, 8*mm.Kb)
	defer arena.Install()()

	var alloc FreeListAllocator
	alloc.Init(0x1800, 0x1000)

	if got := alloc.TotalPages(); got != 0 {
		t.Fatalf("expected an unaligned sub-page region to contain no pages; got %d", got)
	}

	if _, err := alloc.Alloc(1); err != errOutOfMemory {
		t.Fatalf("expected errOutOfMemory; got %v", err)
	}

	alloc.Init(0x1800, 0x1800)
	if exp, got := uint32(1), alloc.TotalPages(); got != exp {
		t.Fatalf("expected %d page after rounding; got %d", exp, got)
	}
	if start, end := alloc.Region(); start != 0x2000 || end != 0x3000 {
		t.Fatalf("expected region [0x2000, 0x3000); got [0x%x, 0x%x)", start, end)
	}
}

func TestFreeListAllocScenario(t *testing.T) {
	alloc, _ := setupAllocator(t, 0x1000, 4)

	first, err := alloc.Alloc(2)
	if err != nil {
		t.Fatal(err)
	}
	if first != 0x1000 {
		t.Fatalf("expected first allocation at 0x1000; got 0x%x", first)
	}

	second, err := alloc.Alloc(2)
	if err != nil {
		t.Fatal(err)
	}
	if second != 0x3000 {
		t.Fatalf("expected second allocation at 0x3000; got 0x%x", second)
	}

	if _, err = alloc.Alloc(1); err != errOutOfMemory {
		t.Fatalf("expected errOutOfMemory; got %v", err)
	}

	if err = alloc.Free(first, 2); err != nil {
		t.Fatal(err)
	}

	again, err := alloc.Alloc(2)
	if err != nil {
		t.Fatal(err)
	}
	if again != first {
		t.Fatalf("expected re-allocation at 0x%x; got 0x%x", first, again)
	}

	checkFreeList(t, alloc)
}

func TestFreeListAllocZeroPages(t *testing.T) {
	alloc, _ := setupAllocator(t, 0x1000, 4)

	if _, err := alloc.Alloc(0); err != errInvalidPageCount {
		t.Fatalf("expected errInvalidPageCount; got %v", err)
	}
	if got := alloc.UsedPages(); got != 0 {
		t.Fatalf("expected failed allocation to leave used pages at 0; got %d", got)
	}
}

func TestFreeListAllocSkipsFragmentedRuns(t *testing.T) {
	alloc, _ := setupAllocator(t, 0x10000, 8)

	var pages [8]uintptr
	for i := range pages {
		addr, err := alloc.Alloc(1)
		if err != nil {
			t.Fatal(err)
		}
		pages[i] = addr
	}

	// Free pages 1, 3, 4, 5, 7 leaving a three-page run at 3-5.
	for _, i := range []int{7, 1, 4, 3, 5} {
		if err := alloc.Free(pages[i], 1); err != nil {
			t.Fatal(err)
		}
	}
	checkFreeList(t, alloc)

	if _, err := alloc.Alloc(4); err != errOutOfMemory {
		t.Fatalf("expected errOutOfMemory for a 4-page run; got %v", err)
	}

	addr, err := alloc.Alloc(3)
	if err != nil {
		t.Fatal(err)
	}
	if addr != pages[3] {
		t.Fatalf("expected 3-page run at 0x%x; got 0x%x", pages[3], addr)
	}

	if exp, got := uint32(2), alloc.FreePages(); got != exp {
		t.Fatalf("expected %d free pages; got %d", exp, got)
	}
	checkFreeList(t, alloc)
}

func TestFreeListZeroedAlloc(t *testing.T) {
	alloc, arena := setupAllocator(t, 0x1000, 4)
	arena.Fill(0xAA)

	// Fill clobbered the free list links; rebuild them.
	alloc.Init(0x1000, 4*mm.PageSize)

	addr, err := alloc.ZeroedAlloc(3)
	if err != nil {
		t.Fatal(err)
	}

	for page := addr; page < addr+3*mm.PageSize; page += mm.PageSize {
		if !arena.PageIsZero(page) {
			t.Errorf("expected page 0x%x to be zeroed", page)
		}
	}

	if _, err = alloc.ZeroedAlloc(2); err != errOutOfMemory {
		t.Fatalf("expected errOutOfMemory; got %v", err)
	}
}

func TestFreeListAllocFrame(t *testing.T) {
	alloc, arena := setupAllocator(t, 0x1000, 1)

	frame, err := alloc.AllocFrame()
	if err != nil {
		t.Fatal(err)
	}
	if exp := mm.Frame(1); frame != exp {
		t.Fatalf("expected frame %d; got %d", exp, frame)
	}
	if !arena.PageIsZero(frame.Address()) {
		t.Fatal("expected allocated frame to be zeroed")
	}

	if frame, err = alloc.AllocFrame(); err != errOutOfMemory || frame.Valid() {
		t.Fatalf("expected InvalidFrame and errOutOfMemory; got %d, %v", frame, err)
	}
}

func TestFreeListFreeErrors(t *testing.T) {
	alloc, _ := setupAllocator(t, 0x1000, 4)

	if _, err := alloc.Alloc(3); err != nil {
		t.Fatal(err)
	}

	specs := []struct {
		addr   uintptr
		count  uint32
		expErr *kernel.Error
	}{
		// misaligned
		{0x1800, 1, errInvalidFree},
		// zero count
		{0x1000, 0, errInvalidFree},
		// below region
		{0x0000, 1, errInvalidFree},
		// past region end
		{0x5000, 1, errInvalidFree},
		// run extends past region end
		{0x3000, 3, errInvalidFree},
		// page 0x4000 is already free
		{0x4000, 1, errDoubleFree},
		// run overlaps free page 0x4000
		{0x3000, 2, errDoubleFree},
	}

	for specIndex, spec := range specs {
		if err := alloc.Free(spec.addr, spec.count); err != spec.expErr {
			t.Errorf("[spec %d] expected Free(0x%x, %d) to return %v; got %v", specIndex, spec.addr, spec.count, spec.expErr, err)
		}

		if exp, got := uint32(3), alloc.UsedPages(); got != exp {
			t.Errorf("[spec %d] expected rejected free to leave used pages at %d; got %d", specIndex, exp, got)
		}
		checkFreeList(t, alloc)
	}

	// Freeing the same block twice must be rejected the second time.
	if err := alloc.Free(0x2000, 1); err != nil {
		t.Fatal(err)
	}
	if err := alloc.Free(0x2000, 1); err != errDoubleFree {
		t.Fatalf("expected errDoubleFree; got %v", err)
	}
	checkFreeList(t, alloc)
}

func TestFreeListRandomHistory(t *testing.T) {
	const pages = 64
	alloc, _ := setupAllocator(t, 0x100000, pages)

	type block struct {
		addr  uintptr
		count uint32
	}

	var (
		rng   = rand.New(rand.NewSource(42))
		live  []block
		inUse [pages]bool
	)

	// longestRun returns the longest run of free pages according to the
	// shadow bitmap.
	longestRun := func() uint32 {
		var best, cur uint32
		for _, used := range inUse {
			if used {
				cur = 0
				continue
			}
			if cur++; cur > best {
				best = cur
			}
		}
		return best
	}

	for step := 0; step < 2000; step++ {
		if len(live) == 0 || rng.Intn(2) == 0 {
			count := uint32(rng.Intn(6) + 1)
			addr, err := alloc.Alloc(count)

			if longest := longestRun(); longest < count {
				if err != errOutOfMemory {
					t.Fatalf("[step %d] expected errOutOfMemory for %d pages (longest run %d); got %v", step, count, longest, err)
				}
				continue
			}

			if err != nil {
				t.Fatalf("[step %d] expected Alloc(%d) to succeed; got %v", step, count, err)
			}

			first := (addr - 0x100000) >> mm.PageShift
			for i := uintptr(0); i < uintptr(count); i++ {
				if inUse[first+i] {
					t.Fatalf("[step %d] Alloc(%d) returned page 0x%x that is already in use", step, count, addr+i<<mm.PageShift)
				}
				inUse[first+i] = true
			}
			live = append(live, block{addr, count})
		} else {
			index := rng.Intn(len(live))
			b := live[index]
			live = append(live[:index], live[index+1:]...)

			if err := alloc.Free(b.addr, b.count); err != nil {
				t.Fatalf("[step %d] Free(0x%x, %d) failed: %v", step, b.addr, b.count, err)
			}

			first := (b.addr - 0x100000) >> mm.PageShift
			for i := uintptr(0); i < uintptr(b.count); i++ {
				inUse[first+i] = false
			}
		}

		checkFreeList(t, alloc)
	}
}
