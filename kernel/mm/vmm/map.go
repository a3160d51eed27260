package vmm

import (
	"baremetal/kernel"
	"baremetal/kernel/mm"
)

// MapPage establishes a mapping between the page containing virtAddr and the
// frame containing physAddr. Any missing subordinate tables along the walk
// are allocated and cleared. Re-mapping an already mapped page overwrites
// its terminal entry.
func (as *AddressSpace) MapPage(virtAddr, physAddr uintptr, perm Perm, attr MemAttr) *kernel.Error {
	return as.mapAt(as.format.Levels()-1, virtAddr&^(mm.PageSize-1), physAddr&^(mm.PageSize-1), perm, attr)
}

// MapBlock installs a terminal block entry at the given non-final level.
// Both virtAddr and physAddr must be aligned to the block size of level.
func (as *AddressSpace) MapBlock(virtAddr, physAddr uintptr, level uint8, perm Perm, attr MemAttr) *kernel.Error {
	if level >= as.format.Levels()-1 || !as.format.SupportsBlock(level) {
		return errNoBlockSupport
	}

	if mask := BlockSize(as.format, level) - 1; virtAddr&mask != 0 || physAddr&mask != 0 {
		return errMisalignedBlock
	}

	return as.mapAt(level, virtAddr, physAddr, perm, attr)
}

// mapAt walks the tables for virtAddr and installs a terminal entry at
// targetLevel.
func (as *AddressSpace) mapAt(targetLevel uint8, virtAddr, physAddr uintptr, perm Perm, attr MemAttr) *kernel.Error {
	if !as.checkAddr(virtAddr) {
		return errAddressOutOfRange
	}

	var (
		format = as.format
		err    *kernel.Error
	)

	as.walk(virtAddr, func(level uint8, entry tableEntry) bool {
		e := entry.Load()

		// If we reached the target level all we need to do is to
		// install the terminal entry and flush its TLB entry
		if level == targetLevel {
			if level != format.Levels()-1 && format.IsTable(level, e) {
				err = errTableInPath
				return false
			}

			entry.Store(format.NewLeaf(level, physAddr, perm, attr))
			as.flushTLBEntry(virtAddr)
			return false
		}

		if format.IsValid(level, e) {
			if !format.IsTable(level, e) {
				err = errBlockInPath
				return false
			}
			return true
		}

		// Next table does not yet exist; we need to allocate a
		// physical frame for it and clear its contents.
		var newTableFrame mm.Frame
		if newTableFrame, err = as.allocTable(); err != nil {
			return false
		}

		entry.Store(format.NewTable(level, newTableFrame))
		return true
	})

	return err
}

// MapRange maps the physical region [physStart, physEnd) to a contiguous
// virtual region starting at virtStart. The virtual and physical start
// addresses are rounded down and the physical end is rounded up to a page
// boundary. A region may end exactly at the top of the address space. The
// first error encountered aborts the operation; pages mapped before the
// error remain mapped.
func (as *AddressSpace) MapRange(virtStart, physStart, physEnd uintptr, perm Perm, attr MemAttr) *kernel.Error {
	if physEnd < physStart {
		return errInvalidRange
	}

	return as.mapRegion(virtStart, physStart, uint64(physEnd-physStart), perm, attr)
}

// MapRangeBySize behaves like MapRange but accepts the region length in
// bytes instead of an end address.
func (as *AddressSpace) MapRangeBySize(virtStart, physStart uintptr, size mm.Size, perm Perm, attr MemAttr) *kernel.Error {
	return as.mapRegion(virtStart, physStart, uint64(size), perm, attr)
}

// mapRegion maps length bytes starting at physStart. Pages are counted
// rather than compared against an end address so that regions touching the
// top of a 32-bit address space do not wrap around to zero.
func (as *AddressSpace) mapRegion(virtStart, physStart uintptr, length uint64, perm Perm, attr MemAttr) *kernel.Error {
	var (
		mask   = uint64(mm.PageSize - 1)
		offset = uint64(physStart) & mask
	)

	virtStart &^= mm.PageSize - 1
	physStart &^= mm.PageSize - 1

	pageCount := length>>mm.PageShift + ((length&mask)+offset+mask)>>mm.PageShift
	if pageCount > pagesUntilTop(virtStart) || pageCount > pagesUntilTop(physStart) {
		return errRangeOverflow
	}

	for virt, phys := virtStart, physStart; pageCount > 0; pageCount-- {
		if err := as.MapPage(virt, phys, perm, attr); err != nil {
			return err
		}

		// Advancing past the last page may wrap; the loop ends before
		// the wrapped values are used.
		virt, phys = virt+mm.PageSize, phys+mm.PageSize
	}

	return nil
}

// pagesUntilTop returns the number of pages between the page-aligned addr
// and the top of the address space, inclusive.
func pagesUntilTop(addr uintptr) uint64 {
	return uint64((^uintptr(0)-addr)>>mm.PageShift) + 1
}

// UnmapPage invalidates the terminal entry for the page containing virtAddr.
// Unmapping a page whose tables are not present is a no-op. Tables along
// the walk are never reclaimed. Pages covered by a block mapping cannot be
// unmapped individually.
func (as *AddressSpace) UnmapPage(virtAddr uintptr) *kernel.Error {
	if !as.checkAddr(virtAddr) {
		return errAddressOutOfRange
	}

	var (
		format    = as.format
		lastLevel = format.Levels() - 1
		err       *kernel.Error
	)

	as.walk(virtAddr, func(level uint8, entry tableEntry) bool {
		e := entry.Load()

		if !format.IsValid(level, e) {
			return false
		}

		if level == lastLevel {
			entry.Store(format.Invalidate(level, e))
			as.flushTLBEntry(virtAddr &^ (mm.PageSize - 1))
			return false
		}

		if !format.IsTable(level, e) {
			err = errBlockInPath
			return false
		}

		return true
	})

	return err
}

// UnmapRange unmaps pageCount consecutive pages starting at the page that
// contains virtStart.
func (as *AddressSpace) UnmapRange(virtStart uintptr, pageCount uint32) *kernel.Error {
	virt := virtStart &^ (mm.PageSize - 1)
	for ; pageCount > 0; pageCount, virt = pageCount-1, virt+mm.PageSize {
		if err := as.UnmapPage(virt); err != nil {
			return err
		}
	}

	return nil
}
