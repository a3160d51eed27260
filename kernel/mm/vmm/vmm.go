// Package vmm implements a hierarchical page table mapper that is shared by
// all supported translation schemes. The bit layout of table entries is
// delegated to a Format implementation; vmm only deals with walking the
// table tree, allocating subordinate tables and installing terminal entries.
package vmm

import (
	"baremetal/kernel"
	"baremetal/kernel/mm"
)

// Perm describes the access permissions of a mapping. The zero value
// describes a kernel-only, read-only, non-executable mapping.
type Perm uint8

const (
	// PermWrite allows writes to the mapped memory.
	PermWrite Perm = 1 << iota

	// PermUser allows unprivileged code to access the mapped memory.
	PermUser

	// PermExec allows instruction fetches from the mapped memory.
	PermExec
)

// String returns a compact rwx style representation of the permissions.
func (p Perm) String() string {
	var buf = []byte("k r--")
	if p&PermUser != 0 {
		buf[0] = 'u'
	}
	if p&PermWrite != 0 {
		buf[3] = 'w'
	}
	if p&PermExec != 0 {
		buf[4] = 'x'
	}
	return string(buf)
}

// MemAttr describes the memory type and cacheability of a mapping.
type MemAttr uint8

const (
	// AttrNormal describes normal, cacheable memory.
	AttrNormal MemAttr = iota

	// AttrNormalNC describes normal memory with caching disabled.
	AttrNormalNC

	// AttrDevice describes device (memory-mapped I/O) memory.
	AttrDevice
)

// String returns the name of the memory attribute.
func (a MemAttr) String() string {
	switch a {
	case AttrNormal:
		return "normal"
	case AttrNormalNC:
		return "normal-nc"
	case AttrDevice:
		return "device"
	default:
		return "unknown"
	}
}

// Entry is a container for a single page table entry. Schemes with 32-bit
// entries only use the low half.
type Entry uint64

// Format describes the layout of page tables and table entries for a
// particular translation scheme. Levels are numbered from 0 (the root
// table) to Levels()-1 (the table holding page entries).
type Format interface {
	// Name returns a short identifier for the translation scheme.
	Name() string

	// Levels returns the number of table levels walked for each lookup.
	Levels() uint8

	// LevelShift returns the virtual address bit where the index field
	// for the given level starts.
	LevelShift(level uint8) uint8

	// LevelBits returns the width of the index field for the given level.
	LevelBits(level uint8) uint8

	// EntrySize returns the size in bytes of a table entry (4 or 8).
	EntrySize() uintptr

	// SupportsBlock returns true if a terminal entry can be installed at
	// the given non-final level.
	SupportsBlock(level uint8) bool

	// IsValid returns true if the entry is a valid table or terminal
	// entry.
	IsValid(level uint8, e Entry) bool

	// IsTable returns true if the entry points to a subordinate table.
	// It always returns false for entries in the final level.
	IsTable(level uint8, e Entry) bool

	// OutputAddress returns the physical address stored in the entry.
	OutputAddress(level uint8, e Entry) uintptr

	// NewTable returns a table entry pointing to the given frame.
	NewTable(level uint8, table mm.Frame) Entry

	// NewLeaf returns a terminal entry for the given level that maps the
	// physical address phys with the requested permissions and memory
	// attribute. For non-final levels the result is a block entry.
	NewLeaf(level uint8, phys uintptr, perm Perm, attr MemAttr) Entry

	// Invalidate returns a copy of e with its type set to invalid.
	Invalidate(level uint8, e Entry) Entry

	// Attributes decodes the permissions and memory attribute of a
	// terminal entry.
	Attributes(level uint8, e Entry) (Perm, MemAttr)

	// FlushTLBEntry drops any cached translation for virtAddr.
	FlushTLBEntry(virtAddr uintptr)

	// Activate installs root as the active translation table and enables
	// address translation.
	Activate(root mm.Frame)
}

var (
	// ErrInvalidMapping is returned when trying to lookup a virtual memory address that is not yet mapped.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

	errAddressOutOfRange = &kernel.Error{Module: "vmm", Message: "virtual address exceeds the range covered by the translation scheme"}
	errBlockInPath       = &kernel.Error{Module: "vmm", Message: "virtual address is covered by a block mapping"}
	errTableInPath       = &kernel.Error{Module: "vmm", Message: "block mapping would replace an existing table"}
	errNoBlockSupport    = &kernel.Error{Module: "vmm", Message: "translation scheme does not support block mappings at this level"}
	errMisalignedBlock   = &kernel.Error{Module: "vmm", Message: "block mapping addresses must be aligned to the block size"}
	errRangeOverflow     = &kernel.Error{Module: "vmm", Message: "mapped range extends past the top of the address space"}
	errInvalidRange      = &kernel.Error{Module: "vmm", Message: "range end precedes range start"}
)

// BlockSize returns the number of bytes mapped by a terminal entry at the
// given level.
func BlockSize(f Format, level uint8) uintptr {
	return uintptr(1) << f.LevelShift(level)
}

// PageOffset returns the offset within the page specified by a virtual
// address.
func PageOffset(virtAddr uintptr) uintptr {
	return virtAddr & (mm.PageSize - 1)
}
