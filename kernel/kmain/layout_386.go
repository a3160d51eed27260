package kmain

import (
	"baremetal/kernel/mm"
	"baremetal/kernel/mm/boot"
	"baremetal/kernel/mm/vmm"
	"baremetal/kernel/mm/vmm/ia32"
)

// Memory layout of a QEMU pc machine with 128M of RAM.
const (
	ramStart = uintptr(0)
	ramSize  = 128 * mm.Mb

	// ioAPICBase is the first page of the memory-mapped local and I/O
	// APIC window.
	ioAPICBase = uintptr(0xfec00000)
)

var (
	pagingFormat vmm.Format = ia32.Format{}

	// bootRegions identity map the first 1G of RAM and the APIC window
	// with 4M pages.
	bootRegions = []boot.Region{
		{Virt: 0, Phys: 0, Size: 1 * mm.Gb, Perm: vmm.PermWrite | vmm.PermExec, Attr: vmm.AttrNormal},
		{Virt: ioAPICBase, Phys: ioAPICBase, Size: 4 * mm.Mb, Perm: vmm.PermWrite, Attr: vmm.AttrDevice},
	}

	// kernelRegions are mapped with 4K pages once the physical allocator
	// is available.
	kernelRegions = []boot.Region{
		{Virt: ramStart, Phys: ramStart, Size: ramSize, Perm: vmm.PermWrite | vmm.PermExec, Attr: vmm.AttrNormal},
		{Virt: ioAPICBase, Phys: ioAPICBase, Size: 4 * mm.Mb, Perm: vmm.PermWrite, Attr: vmm.AttrDevice},
	}
)
