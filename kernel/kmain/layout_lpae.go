//go:build !386

package kmain

import (
	"baremetal/kernel/mm"
	"baremetal/kernel/mm/boot"
	"baremetal/kernel/mm/vmm"
	"baremetal/kernel/mm/vmm/lpae"

	// The PL011 console of the virt machine registers itself on import.
	_ "baremetal/device/uart"
)

// Memory layout of the QEMU virt machine.
const (
	ramStart = uintptr(0x40000000)
	ramSize  = 128 * mm.Mb

	uartBase = uintptr(0x09000000)
)

var (
	pagingFormat vmm.Format = lpae.Format{}

	// bootRegions identity map the device window below RAM and the first
	// 3G of RAM with 1G blocks.
	bootRegions = []boot.Region{
		{Virt: 0, Phys: 0, Size: 1 * mm.Gb, Perm: vmm.PermWrite, Attr: vmm.AttrDevice},
		{Virt: ramStart, Phys: ramStart, Size: 3 * mm.Gb, Perm: vmm.PermWrite | vmm.PermExec, Attr: vmm.AttrNormal},
	}

	// kernelRegions are mapped with 4K pages once the physical allocator
	// is available.
	kernelRegions = []boot.Region{
		{Virt: ramStart, Phys: ramStart, Size: ramSize, Perm: vmm.PermWrite | vmm.PermExec, Attr: vmm.AttrNormal},
		{Virt: uartBase, Phys: uartBase, Size: mm.Size(mm.PageSize), Perm: vmm.PermWrite, Attr: vmm.AttrDevice},
	}
)
