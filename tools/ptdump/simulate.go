package main

import (
	"fmt"

	"baremetal/kernel"
	"baremetal/kernel/mm"
	"baremetal/kernel/mm/boot"
	"baremetal/kernel/mm/pmm"
	"baremetal/kernel/mm/simmem"
	"baremetal/kernel/mm/vmm"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// FrameState classifies a RAM frame after the simulation has run.
type FrameState uint8

const (
	FrameFree FrameState = iota
	FrameUsed
	FrameTable
	FrameBootTable
	FrameReserved
)

func (s FrameState) String() string {
	switch s {
	case FrameFree:
		return "free"
	case FrameUsed:
		return "used"
	case FrameTable:
		return "table"
	case FrameBootTable:
		return "boot-table"
	default:
		return "reserved"
	}
}

// Run is a set of adjacent mappings that share permissions and memory
// attributes and map a contiguous physical range.
type Run struct {
	Virt    uintptr
	Phys    uintptr
	Size    uintptr
	Entries int
	Perm    vmm.Perm
	Attr    vmm.MemAttr
}

func (r Run) String() string {
	return fmt.Sprintf("0x%016x-0x%016x -> 0x%016x %s %-9s (%d entries)",
		r.Virt, r.Virt+r.Size-1, r.Phys, r.Perm, r.Attr, r.Entries)
}

// Stats summarizes the state of the simulated machine.
type Stats struct {
	TotalPages   uint32
	UsedPages    uint32
	FreePages    uint32
	BootTables   uint32
	KernelTables uint32
}

// Simulation runs the boot memory pipeline of the kernel on top of
// simulated RAM: the boot builder carves its tables out of the first RAM
// pages, the page allocator manages the RAM that follows the reserved
// kernel image and the kernel address space pulls its tables from the
// page allocator.
type Simulation struct {
	cfg   *Config
	arena *simmem.Arena

	builder   boot.Builder
	allocator pmm.FreeListAllocator
	kernelAS  vmm.AddressSpace

	tableFrames map[mm.Frame]struct{}
	restoreFn   func()
}

// Simulate builds the boot and kernel address spaces described by cfg.
// Callers must invoke Close once they are done with the simulation.
func Simulate(cfg *Config) (sim *Simulation, err error) {
	sim = &Simulation{
		cfg:         cfg,
		arena:       simmem.New(cfg.RAMStart, cfg.RAMSize),
		tableFrames: make(map[mm.Frame]struct{}),
	}
	sim.restoreFn = sim.arena.Install()

	// Fatal kernel errors halt the CPU which panics when running hosted.
	defer func() {
		if r := recover(); r != nil {
			sim.Close()
			sim, err = nil, errors.Errorf("kernel halted: %v", r)
		}
	}()

	if err = sim.run(); err != nil {
		sim.Close()
		return nil, err
	}
	return sim, nil
}

func (sim *Simulation) run() error {
	cfg := sim.cfg

	log.WithField("scheme", cfg.Format.Name()).Debug("building boot tables")
	if kerr := sim.builder.Init(cfg.Format, cfg.RAMStart, 1+boot.PoolTables); kerr != nil {
		return errors.Wrap(kerr, "boot table pool")
	}
	for index, region := range cfg.Boot {
		if kerr := sim.builder.MapBlocks(region); kerr != nil {
			return errors.Wrapf(kerr, "boot region %d", index)
		}
	}

	freeStart := sim.poolEnd() + uintptr(cfg.Reserved)
	freeStart = (freeStart + (mm.PageSize - 1)) &^ (mm.PageSize - 1)
	sim.allocator.Init(freeStart, sim.arena.End()-freeStart)
	log.WithField("pages", sim.allocator.TotalPages()).Debug("page allocator ready")

	root, kerr := sim.allocator.ZeroedAlloc(1)
	if kerr != nil {
		return errors.Wrap(kerr, "failed to allocate kernel root table")
	}
	sim.tableFrames[mm.FrameFromAddress(root)] = struct{}{}
	sim.kernelAS.Init(cfg.Format, mm.FrameFromAddress(root), sim.allocTable)

	for index, region := range cfg.Kernel {
		if kerr = sim.kernelAS.MapRangeBySize(region.Virt, region.Phys, region.Size, region.Perm, region.Attr); kerr != nil {
			return errors.Wrapf(kerr, "kernel mapping %d", index)
		}
	}

	for index, unmap := range cfg.Unmap {
		if kerr = sim.kernelAS.UnmapRange(unmap.Virt, unmap.Pages); kerr != nil {
			return errors.Wrapf(kerr, "unmap %d", index)
		}
	}

	return nil
}

// allocTable serves the kernel address space and records which frames hold
// page tables.
func (sim *Simulation) allocTable() (mm.Frame, *kernel.Error) {
	frame, err := sim.allocator.AllocFrame()
	if err != nil {
		return mm.InvalidFrame, err
	}

	sim.tableFrames[frame] = struct{}{}
	return frame, nil
}

func (sim *Simulation) poolEnd() uintptr {
	return sim.cfg.RAMStart + (1+boot.PoolTables)*mm.PageSize
}

// Close releases the simulated RAM.
func (sim *Simulation) Close() {
	if sim.restoreFn != nil {
		sim.restoreFn()
		sim.restoreFn = nil
	}
}

// BootAddressSpace returns the address space built from the boot regions.
func (sim *Simulation) BootAddressSpace() *vmm.AddressSpace { return sim.builder.AddressSpace() }

// KernelAddressSpace returns the address space built from the kernel
// mappings.
func (sim *Simulation) KernelAddressSpace() *vmm.AddressSpace { return &sim.kernelAS }

// Runs returns the coalesced mappings of as in ascending virtual address
// order.
func Runs(as *vmm.AddressSpace) []Run {
	var runs []Run
	as.VisitMappings(func(m vmm.Mapping) bool {
		if n := len(runs); n != 0 {
			last := &runs[n-1]
			if last.Perm == m.Perm && last.Attr == m.Attr &&
				last.Virt+last.Size == m.Virt && last.Phys+last.Size == m.Phys {
				last.Size += m.Size
				last.Entries++
				return true
			}
		}

		runs = append(runs, Run{Virt: m.Virt, Phys: m.Phys, Size: m.Size, Entries: 1, Perm: m.Perm, Attr: m.Attr})
		return true
	})

	return runs
}

// Translate resolves virt in the boot or the kernel address space.
func (sim *Simulation) Translate(virt uintptr, useBoot bool) (vmm.Translation, error) {
	as := sim.KernelAddressSpace()
	if useBoot {
		as = sim.BootAddressSpace()
	}

	res, kerr := as.Translate(virt)
	if kerr != nil {
		return res, errors.Wrapf(kerr, "translate 0x%x", virt)
	}
	return res, nil
}

// Stats returns page allocator and table usage counters.
func (sim *Simulation) Stats() Stats {
	return Stats{
		TotalPages:   sim.allocator.TotalPages(),
		UsedPages:    sim.allocator.UsedPages(),
		FreePages:    sim.allocator.FreePages(),
		BootTables:   sim.builder.TablesUsed(),
		KernelTables: sim.kernelAS.TableCount() + 1,
	}
}

// FrameStates classifies every RAM frame, in ascending address order.
func (sim *Simulation) FrameStates() []FrameState {
	var (
		start      = sim.arena.Base()
		frameCount = sim.arena.Size() >> mm.PageShift
		states     = make([]FrameState, frameCount)
		freeSet    = make(map[uintptr]struct{})
	)

	sim.allocator.VisitFree(func(addr uintptr) bool {
		freeSet[addr] = struct{}{}
		return true
	})

	allocStart, _ := sim.allocator.Region()
	bootUsedEnd := start + uintptr(sim.builder.TablesUsed())<<mm.PageShift
	for index := range states {
		addr := start + uintptr(index)<<mm.PageShift
		_, isFree := freeSet[addr]
		_, isTable := sim.tableFrames[mm.FrameFromAddress(addr)]

		switch {
		case addr < bootUsedEnd:
			states[index] = FrameBootTable
		case addr < allocStart:
			states[index] = FrameReserved
		case isFree:
			states[index] = FrameFree
		case isTable:
			states[index] = FrameTable
		default:
			states[index] = FrameUsed
		}
	}

	return states
}

// CountStates returns the number of frames in each state.
func CountStates(states []FrameState) map[FrameState]int {
	return lo.CountValues(states)
}
