// Package kmain contains the kernel entrypoint that brings up the memory
// subsystem.
package kmain

import (
	"baremetal/kernel"
	"baremetal/kernel/hal"
	"baremetal/kernel/kfmt"
	"baremetal/kernel/mm"
	"baremetal/kernel/mm/boot"
	"baremetal/kernel/mm/pmm"
	"baremetal/kernel/mm/vmm"
)

var (
	// The following functions are mocked by tests and are automatically
	// inlined by the compiler.
	bootSetupFn      = boot.Setup
	bootActivateFn   = boot.Activate
	detectHardwareFn = hal.DetectHardware
	activateFn       = (*vmm.AddressSpace).Activate
	panicFn          = kfmt.Panic

	// kernelAddrSpace is the address space built once the physical
	// allocator is available.
	kernelAddrSpace vmm.AddressSpace

	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
)

// Kmain is the only Go symbol that is visible (exported) from the rt0
// initialization code. The rt0 code passes the physical addresses for the
// kernel image start/end and runs Kmain with address translation disabled.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(kernelStart, kernelEnd uintptr) {
	kfmt.Printf("[kmain] kernel image: [0x%16x - 0x%16x]\n", kernelStart, kernelEnd)

	if err := bootSetupFn(pagingFormat, bootRegions); err != nil {
		panicFn(err)
		return
	}
	bootActivateFn()

	// Device registers are reachable through the boot tables so drivers
	// can be probed now.
	detectHardwareFn()

	if err := setupKernelAddrSpace(kernelEnd); err != nil {
		panicFn(err)
		return
	}
	activateFn(&kernelAddrSpace)

	// Use kfmt.Panic instead of panic to prevent the compiler from
	// treating kfmt.Panic as dead-code and eliminating it.
	panicFn(errKmainReturned)
}

// setupKernelAddrSpace hands the RAM following the kernel image to the
// physical allocator and builds the page-granular kernel address space.
func setupKernelAddrSpace(kernelEnd uintptr) *kernel.Error {
	freeStart := (kernelEnd + (mm.PageSize - 1)) &^ (mm.PageSize - 1)
	ramEnd := ramStart + uintptr(ramSize)
	pmm.Init(freeStart, ramEnd-freeStart)

	rootAddr, err := pmm.ZeroedAllocPages(1)
	if err != nil {
		return err
	}
	kernelAddrSpace.Init(pagingFormat, mm.FrameFromAddress(rootAddr), nil)

	for _, region := range kernelRegions {
		if err = kernelAddrSpace.MapRangeBySize(region.Virt, region.Phys, region.Size, region.Perm, region.Attr); err != nil {
			return err
		}
	}

	total, used := pmm.Stats()
	kfmt.Printf("[kmain] kernel address space ready; tables: %d, pages used: %d/%d\n", kernelAddrSpace.TableCount(), used, total)
	return nil
}
