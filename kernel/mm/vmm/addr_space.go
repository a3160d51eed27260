package vmm

import (
	"baremetal/kernel"
	"baremetal/kernel/mm"
)

// AddressSpace describes a tree of page tables rooted at a single top-level
// table. The zero value is not usable; Init must be called first.
type AddressSpace struct {
	format Format
	root   mm.Frame

	// allocFn supplies the frames for subordinate tables.
	allocFn mm.FrameAllocatorFn

	// tableCount tracks the number of subordinate tables allocated by
	// this address space. Tables are never reclaimed.
	tableCount uint32

	// active is set once the address space has been activated. TLB
	// entries are only flushed for active address spaces.
	active bool
}

// Init sets up an empty address space whose root table lives at rootFrame.
// The root table contents are cleared. Subordinate tables are obtained from
// allocFn; if allocFn is nil, mm.AllocFrame is used instead.
func (as *AddressSpace) Init(format Format, rootFrame mm.Frame, allocFn mm.FrameAllocatorFn) {
	if allocFn == nil {
		allocFn = mm.AllocFrame
	}

	as.format = format
	as.root = rootFrame
	as.allocFn = allocFn
	as.tableCount = 0
	as.active = false

	kernel.Memset(mm.PhysToVirt(rootFrame.Address()), 0, mm.PageSize)
}

// Format returns the translation scheme used by this address space.
func (as *AddressSpace) Format() Format { return as.format }

// Root returns the frame holding the root table.
func (as *AddressSpace) Root() mm.Frame { return as.root }

// TableCount returns the number of subordinate tables that have been
// allocated for this address space.
func (as *AddressSpace) TableCount() uint32 { return as.tableCount }

// Active returns true if Activate has been called for this address space.
func (as *AddressSpace) Active() bool { return as.active }

// Activate loads the root table into the translation base register and
// enables address translation.
func (as *AddressSpace) Activate() {
	as.format.Activate(as.root)
	as.active = true
}

// allocTable obtains a cleared frame for a subordinate table.
func (as *AddressSpace) allocTable() (mm.Frame, *kernel.Error) {
	frame, err := as.allocFn()
	if err != nil {
		return mm.InvalidFrame, err
	}

	kernel.Memset(mm.PhysToVirt(frame.Address()), 0, mm.PageSize)
	as.tableCount++
	return frame, nil
}

func (as *AddressSpace) flushTLBEntry(virtAddr uintptr) {
	if as.active {
		as.format.FlushTLBEntry(virtAddr)
	}
}

// Mapping describes a terminal entry visited by VisitMappings.
type Mapping struct {
	Virt  uintptr
	Phys  uintptr
	Size  uintptr
	Level uint8
	Perm  Perm
	Attr  MemAttr
}

// VisitMappings invokes visitor for every valid terminal entry in
// ascending virtual address order. The traversal stops early if visitor
// returns false.
func (as *AddressSpace) VisitMappings(visitor func(Mapping) bool) {
	as.visitTable(0, as.root.Address(), 0, visitor)
}

func (as *AddressSpace) visitTable(level uint8, tableAddr, virtBase uintptr, visitor func(Mapping) bool) bool {
	var (
		format    = as.format
		entrySize = format.EntrySize()
		count     = uintptr(1) << format.LevelBits(level)
		shift     = format.LevelShift(level)
	)

	for index := uintptr(0); index < count; index++ {
		e := tableEntry{physAddr: tableAddr + index*entrySize, size: entrySize}.Load()
		if !format.IsValid(level, e) {
			continue
		}

		virt := virtBase + index<<shift
		if format.IsTable(level, e) {
			if !as.visitTable(level+1, format.OutputAddress(level, e), virt, visitor) {
				return false
			}
			continue
		}

		perm, attr := format.Attributes(level, e)
		if !visitor(Mapping{
			Virt:  virt,
			Phys:  format.OutputAddress(level, e),
			Size:  BlockSize(format, level),
			Level: level,
			Perm:  perm,
			Attr:  attr,
		}) {
			return false
		}
	}

	return true
}
