// Package ia32 implements the two-level 32-bit paging format used by x86
// CPUs without PAE. Page directory entries either point to a page table
// or, with PSE enabled, map a 4M page directly.
package ia32

import (
	"baremetal/kernel/mm"
	"baremetal/kernel/mm/vmm"
)

const (
	// pageLevels indicates the number of page levels supported by non-PAE paging.
	pageLevels = 2

	lastLevel = pageLevels - 1
)

var (
	// pageLevelShifts defines the shift required to access each page table component
	// of a virtual address.
	pageLevelShifts = [pageLevels]uint8{22, 12}

	// pageLevelBits defines the number of virtual address bits that correspond to each
	// page level. Each level uses 10 bits which amounts to 1024 entries per table.
	pageLevelBits = [pageLevels]uint8{10, 10}
)

// tableFlags are applied to page directory entries that point to a page
// table. Access is restricted by the page table entries instead.
const tableFlags = FlagPresent | FlagRW | FlagUserAccessible

// Format implements vmm.Format for 32-bit page directory and page table
// entries.
type Format struct{}

var _ vmm.Format = Format{}

// Name implements vmm.Format.
func (Format) Name() string { return "ia32" }

// Levels implements vmm.Format.
func (Format) Levels() uint8 { return pageLevels }

// LevelShift implements vmm.Format.
func (Format) LevelShift(level uint8) uint8 { return pageLevelShifts[level] }

// LevelBits implements vmm.Format.
func (Format) LevelBits(level uint8) uint8 { return pageLevelBits[level] }

// EntrySize implements vmm.Format.
func (Format) EntrySize() uintptr { return 4 }

// SupportsBlock returns true for the page directory which can map 4M pages.
func (Format) SupportsBlock(level uint8) bool { return level == 0 }

// IsValid implements vmm.Format.
func (Format) IsValid(_ uint8, e vmm.Entry) bool {
	return PageTableEntry(e).HasFlags(FlagPresent)
}

// IsTable implements vmm.Format.
func (Format) IsTable(level uint8, e vmm.Entry) bool {
	pte := PageTableEntry(e)
	return level != lastLevel && pte.HasFlags(FlagPresent) && !pte.HasFlags(FlagHugePage)
}

// OutputAddress implements vmm.Format.
func (Format) OutputAddress(level uint8, e vmm.Entry) uintptr {
	pte := PageTableEntry(e)
	if level != lastLevel && pte.HasFlags(FlagHugePage) {
		return pte.HugePageAddress()
	}
	return pte.Frame().Address()
}

// NewTable implements vmm.Format.
func (Format) NewTable(_ uint8, table mm.Frame) vmm.Entry {
	var pte PageTableEntry
	pte.SetFrame(table)
	pte.SetFlags(tableFlags)
	return vmm.Entry(pte)
}

// NewLeaf implements vmm.Format. Level 0 leaves map 4M pages.
func (Format) NewLeaf(level uint8, phys uintptr, perm vmm.Perm, attr vmm.MemAttr) vmm.Entry {
	var pte PageTableEntry
	pte.SetFrame(mm.FrameFromAddress(phys))
	pte.SetFlags(FlagPresent)

	if level != lastLevel {
		pte.SetFlags(FlagHugePage)
	}
	if perm&vmm.PermWrite != 0 {
		pte.SetFlags(FlagRW)
	}
	if perm&vmm.PermUser != 0 {
		pte.SetFlags(FlagUserAccessible)
	}
	if perm&vmm.PermExec == 0 {
		pte.SetFlags(FlagNoExecute)
	}

	switch attr {
	case vmm.AttrNormalNC:
		pte.SetFlags(FlagDoNotCache)
	case vmm.AttrDevice:
		pte.SetFlags(FlagDoNotCache | FlagWriteThroughCaching)
	}

	return vmm.Entry(pte)
}

// Invalidate implements vmm.Format.
func (Format) Invalidate(_ uint8, e vmm.Entry) vmm.Entry {
	pte := PageTableEntry(e)
	pte.ClearFlags(FlagPresent)
	return vmm.Entry(pte)
}

// Attributes implements vmm.Format.
func (Format) Attributes(_ uint8, e vmm.Entry) (vmm.Perm, vmm.MemAttr) {
	var (
		pte  = PageTableEntry(e)
		perm vmm.Perm
		attr = vmm.AttrNormal
	)

	if pte.HasFlags(FlagRW) {
		perm |= vmm.PermWrite
	}
	if pte.HasFlags(FlagUserAccessible) {
		perm |= vmm.PermUser
	}
	if !pte.HasFlags(FlagNoExecute) {
		perm |= vmm.PermExec
	}

	switch {
	case pte.HasFlags(FlagDoNotCache | FlagWriteThroughCaching):
		attr = vmm.AttrDevice
	case pte.HasFlags(FlagDoNotCache):
		attr = vmm.AttrNormalNC
	}

	return perm, attr
}

// FlushTLBEntry implements vmm.Format.
func (Format) FlushTLBEntry(virtAddr uintptr) { flushTLBEntryFn(virtAddr) }

// Activate implements vmm.Format.
func (Format) Activate(root mm.Frame) { activate(root.Address()) }
