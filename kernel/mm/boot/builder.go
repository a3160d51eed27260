// Package boot builds the page tables that are used to enable address
// translation before the physical page allocator is available. Tables are
// carved out of a static pool and the address space is populated with
// coarse block mappings only.
package boot

import (
	"baremetal/kernel"
	"baremetal/kernel/kfmt"
	"baremetal/kernel/mm"
	"baremetal/kernel/mm/vmm"
	"unsafe"
)

// PoolTables is the number of subordinate tables available to the boot
// builder in addition to the root table.
const PoolTables = 8

var (
	// bootTableMem provides the backing storage for the static boot
	// tables: the root table, PoolTables subordinate tables and one page
	// of slack so the tables can be aligned to a page boundary.
	bootTableMem [(1 + PoolTables + 1) * mm.PageSize]byte

	// builder is the boot table builder used by the kernel.
	builder Builder

	errUnalignedRegion = &kernel.Error{Module: "boot", Message: "boot region is not aligned to the smallest block size"}
	errNoBlockSupport  = &kernel.Error{Module: "boot", Message: "translation scheme does not support block mappings"}
)

// Region describes a physically contiguous memory region that should be
// mapped by the boot tables.
type Region struct {
	Virt uintptr
	Phys uintptr
	Size mm.Size
	Perm vmm.Perm
	Attr vmm.MemAttr
}

// Builder populates an address space whose tables come from a static pool.
type Builder struct {
	pool tablePool
	as   vmm.AddressSpace
}

// Init sets up the builder to use the tables at [base, base+tables*PageSize).
// The first table becomes the root table; the remaining ones are handed out
// on demand. base must be page-aligned. An empty pool cannot supply the
// root table and is reported through the fatal error path.
func (b *Builder) Init(format vmm.Format, base uintptr, tables uint32) *kernel.Error {
	b.pool.init(base, tables)

	root, err := b.pool.alloc()
	if err != nil {
		return err
	}

	b.as.Init(format, root, b.pool.alloc)
	return nil
}

// AddressSpace returns the address space populated by the builder.
func (b *Builder) AddressSpace() *vmm.AddressSpace { return &b.as }

// TablesUsed returns the number of pool tables (including the root) that
// have been handed out.
func (b *Builder) TablesUsed() uint32 { return b.pool.next }

// MapBlocks maps region using the largest block mappings that fit. At each
// step the builder picks the largest block whose alignment is satisfied by
// both the virtual and physical cursor and which does not extend past the
// end of the region. The region must be aligned to the smallest block size
// supported by the translation scheme.
func (b *Builder) MapBlocks(region Region) *kernel.Error {
	var (
		format    = b.as.Format()
		remaining = uintptr(region.Size)
	)

	finest, ok := finestBlockLevel(format)
	if !ok {
		return errNoBlockSupport
	}

	if mask := vmm.BlockSize(format, finest) - 1; region.Virt&mask != 0 || region.Phys&mask != 0 || remaining&mask != 0 {
		return errUnalignedRegion
	}

	for virt, phys := region.Virt, region.Phys; remaining > 0; {
		level := finest
		for candidate := uint8(0); candidate < finest; candidate++ {
			size := vmm.BlockSize(format, candidate)
			if format.SupportsBlock(candidate) && (virt|phys)&(size-1) == 0 && size <= remaining {
				level = candidate
				break
			}
		}

		if err := b.as.MapBlock(virt, phys, level, region.Perm, region.Attr); err != nil {
			return err
		}

		size := vmm.BlockSize(format, level)
		virt, phys, remaining = virt+size, phys+size, remaining-size
	}

	kfmt.Printf(
		"[boot] mapped [0x%16x - 0x%16x] -> 0x%16x (%s)\n",
		region.Virt, region.Virt+uintptr(region.Size)-1, region.Phys, region.Attr.String(),
	)
	return nil
}

// finestBlockLevel returns the deepest table level that can hold block
// entries.
func finestBlockLevel(format vmm.Format) (uint8, bool) {
	for level := int(format.Levels()) - 2; level >= 0; level-- {
		if format.SupportsBlock(uint8(level)) {
			return uint8(level), true
		}
	}

	return 0, false
}

// Activate installs the builder's root table and enables address
// translation.
func (b *Builder) Activate() {
	b.as.Activate()
}

// InitStatic initializes the kernel's boot builder to use the static table
// pool embedded in the kernel image.
func InitStatic(format vmm.Format) *kernel.Error {
	base := (uintptr(unsafe.Pointer(&bootTableMem[0])) + (mm.PageSize - 1)) &^ (mm.PageSize - 1)
	return builder.Init(format, base, 1+PoolTables)
}

// Setup builds the kernel's boot address space using the static table pool
// and maps each of the supplied regions with block mappings.
func Setup(format vmm.Format, regions []Region) *kernel.Error {
	if err := InitStatic(format); err != nil {
		return err
	}

	for _, region := range regions {
		if err := builder.MapBlocks(region); err != nil {
			return err
		}
	}

	kfmt.Printf("[boot] %s tables built using %d/%d static tables\n", format.Name(), builder.TablesUsed(), uint32(1+PoolTables))
	return nil
}

// Activate switches the CPU to the address space built by Setup. All code
// executing after this call runs with address translation enabled.
func Activate() {
	builder.Activate()
}

// AddressSpace returns the kernel's boot address space.
func AddressSpace() *vmm.AddressSpace {
	return builder.AddressSpace()
}
