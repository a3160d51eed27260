// Package lpae implements the VMSAv8-64 translation table format used by
// arm64 CPUs with a 4 KiB granule and a 39-bit virtual address space. The
// walk starts at level 1 so the three table levels used by this package
// index virtual address bits 38-30, 29-21 and 20-12.
package lpae

import (
	"baremetal/kernel/mm"
	"baremetal/kernel/mm/vmm"
)

const (
	// pageLevels indicates the number of table levels walked by the MMU.
	pageLevels = 3

	lastLevel = pageLevels - 1
)

var (
	// pageLevelShifts defines the shift required to access each page
	// table component of a virtual address.
	pageLevelShifts = [pageLevels]uint8{30, 21, 12}

	// pageLevelBits defines the number of virtual address bits that
	// correspond to each page level. Each table holds 512 descriptors.
	pageLevelBits = [pageLevels]uint8{9, 9, 9}
)

// MAIR_EL1 attribute indices referenced by descriptors.
const (
	MairDeviceNGnRnE uint64 = 0
	MairDeviceNGnRE  uint64 = 1
	MairNormalNC     uint64 = 2
	MairNormal       uint64 = 3
)

// Format implements vmm.Format for VMSAv8-64 descriptors.
type Format struct{}

var _ vmm.Format = Format{}

// Name implements vmm.Format.
func (Format) Name() string { return "lpae" }

// Levels implements vmm.Format.
func (Format) Levels() uint8 { return pageLevels }

// LevelShift implements vmm.Format.
func (Format) LevelShift(level uint8) uint8 { return pageLevelShifts[level] }

// LevelBits implements vmm.Format.
func (Format) LevelBits(level uint8) uint8 { return pageLevelBits[level] }

// EntrySize implements vmm.Format.
func (Format) EntrySize() uintptr { return 8 }

// SupportsBlock returns true for level 0 (1 GiB blocks) and level 1 (2 MiB
// blocks).
func (Format) SupportsBlock(level uint8) bool { return level < lastLevel }

// IsValid implements vmm.Format. The block encoding is reserved at the last
// level and is treated as invalid.
func (Format) IsValid(level uint8, e vmm.Entry) bool {
	switch Descriptor(e).Type() {
	case TypeTable:
		return true
	case TypeBlock:
		return level != lastLevel
	default:
		return false
	}
}

// IsTable implements vmm.Format.
func (Format) IsTable(level uint8, e vmm.Entry) bool {
	return level != lastLevel && Descriptor(e).Type() == TypeTable
}

// OutputAddress implements vmm.Format.
func (Format) OutputAddress(_ uint8, e vmm.Entry) uintptr {
	return uintptr(Descriptor(e).Address())
}

// NewTable implements vmm.Format.
func (Format) NewTable(_ uint8, table mm.Frame) vmm.Entry {
	var d Descriptor
	d.SetType(TypeTable)
	d.SetAddress(uint64(table.Address()))
	return vmm.Entry(d)
}

// NewLeaf implements vmm.Format. Mappings without vmm.PermExec are marked
// execute-never for both exception levels; executable mappings only allow
// execution at the exception level that owns them. User mappings are
// marked non-global.
func (Format) NewLeaf(level uint8, phys uintptr, perm vmm.Perm, attr vmm.MemAttr) vmm.Entry {
	var d Descriptor

	if level == lastLevel {
		d.SetType(TypePage)
	} else {
		d.SetType(TypeBlock)
	}
	d.SetAddress(uint64(phys))
	d.SetAF(true)
	d.SetAttrIndex(attrIndex(attr))

	if attr == vmm.AttrNormal {
		d.SetSH(SHInner)
	} else {
		d.SetSH(SHOuter)
	}

	var ap uint64
	if perm&vmm.PermUser != 0 {
		ap |= APReadWriteAll
		d.SetNotGlobal(true)
	}
	if perm&vmm.PermWrite == 0 {
		ap |= APReadOnlyEL1
	}
	d.SetAP(ap)

	switch {
	case perm&vmm.PermExec == 0:
		d.SetPXN(true)
		d.SetUXN(true)
	case perm&vmm.PermUser != 0:
		d.SetPXN(true)
	default:
		d.SetUXN(true)
	}

	return vmm.Entry(d)
}

// Invalidate implements vmm.Format.
func (Format) Invalidate(_ uint8, e vmm.Entry) vmm.Entry {
	d := Descriptor(e)
	d.SetType(TypeInvalid)
	return vmm.Entry(d)
}

// Attributes implements vmm.Format.
func (Format) Attributes(_ uint8, e vmm.Entry) (vmm.Perm, vmm.MemAttr) {
	var (
		d    = Descriptor(e)
		ap   = d.AP()
		perm vmm.Perm
	)

	if ap&APReadOnlyEL1 == 0 {
		perm |= vmm.PermWrite
	}
	if ap&APReadWriteAll != 0 {
		perm |= vmm.PermUser
		if !d.UXN() {
			perm |= vmm.PermExec
		}
	} else if !d.PXN() {
		perm |= vmm.PermExec
	}

	switch d.AttrIndex() {
	case MairNormal:
		return perm, vmm.AttrNormal
	case MairNormalNC:
		return perm, vmm.AttrNormalNC
	default:
		return perm, vmm.AttrDevice
	}
}

// FlushTLBEntry implements vmm.Format.
func (Format) FlushTLBEntry(virtAddr uintptr) { flushTLBEntryFn(virtAddr) }

// Activate implements vmm.Format.
func (Format) Activate(root mm.Frame) { activate(root.Address()) }

func attrIndex(attr vmm.MemAttr) uint64 {
	switch attr {
	case vmm.AttrNormal:
		return MairNormal
	case vmm.AttrNormalNC:
		return MairNormalNC
	default:
		return MairDeviceNGnRnE
	}
}
