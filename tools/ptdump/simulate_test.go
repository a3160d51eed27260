package main

import (
	"path/filepath"
	"strings"
	"testing"

	"baremetal/kernel/mm"
	"baremetal/kernel/mm/boot"
	"baremetal/kernel/mm/vmm"
	"baremetal/kernel/mm/vmm/lpae"

	"github.com/google/go-cmp/cmp"
)

func loadSimulation(t *testing.T, name string) *Simulation {
	t.Helper()

	cfg, err := LoadLayout(filepath.Join("testdata", name))
	if err != nil {
		t.Fatal(err)
	}

	sim, err := Simulate(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(sim.Close)
	return sim
}

func TestSimulateKernelRuns(t *testing.T) {
	sim := loadSimulation(t, "virt.toml")

	exp := []Run{
		{Virt: 0x09000000, Phys: 0x09000000, Size: 0x1000, Entries: 1, Perm: vmm.PermWrite, Attr: vmm.AttrDevice},
		{Virt: 0x40001000, Phys: 0x40001000, Size: 0x3ff000, Entries: 1023, Perm: vmm.PermWrite | vmm.PermExec, Attr: vmm.AttrNormal},
	}
	if diff := cmp.Diff(exp, Runs(sim.KernelAddressSpace())); diff != "" {
		t.Fatalf("unexpected kernel runs (-want +got):\n%s", diff)
	}
}

func TestSimulateBootRuns(t *testing.T) {
	sim := loadSimulation(t, "virt.toml")

	exp := []Run{
		{Virt: 0, Phys: 0, Size: 0x40000000, Entries: 1, Perm: vmm.PermWrite, Attr: vmm.AttrDevice},
		{Virt: 0x40000000, Phys: 0x40000000, Size: 0x40000000, Entries: 1, Perm: vmm.PermWrite | vmm.PermExec, Attr: vmm.AttrNormal},
	}
	if diff := cmp.Diff(exp, Runs(sim.BootAddressSpace())); diff != "" {
		t.Fatalf("unexpected boot runs (-want +got):\n%s", diff)
	}
}

func TestSimulateStats(t *testing.T) {
	sim := loadSimulation(t, "virt.toml")

	// 9 boot pool pages and 16 reserved pages precede the allocator
	// region. The kernel address space uses the root, one level-1 and
	// two level-2 tables for RAM plus one table per level for the UART.
	exp := Stats{
		TotalPages:   999,
		UsedPages:    6,
		FreePages:    993,
		BootTables:   1,
		KernelTables: 6,
	}
	if diff := cmp.Diff(exp, sim.Stats()); diff != "" {
		t.Fatalf("unexpected stats (-want +got):\n%s", diff)
	}
}

func TestSimulateTranslate(t *testing.T) {
	sim := loadSimulation(t, "virt.toml")

	specs := []struct {
		virt    uintptr
		useBoot bool
		exp     vmm.Translation
		expErr  bool
	}{
		{0x40000000, false, vmm.Translation{}, true},
		{0x40000000, true, vmm.Translation{PhysAddr: 0x40000000, Perm: vmm.PermWrite | vmm.PermExec, Attr: vmm.AttrNormal, Level: 0}, false},
		{0x40123456, false, vmm.Translation{PhysAddr: 0x40123456, Perm: vmm.PermWrite | vmm.PermExec, Attr: vmm.AttrNormal, Level: 2}, false},
		{0x09000018, false, vmm.Translation{PhysAddr: 0x09000018, Perm: vmm.PermWrite, Attr: vmm.AttrDevice, Level: 2}, false},
		{0x09000018, true, vmm.Translation{PhysAddr: 0x09000018, Perm: vmm.PermWrite, Attr: vmm.AttrDevice, Level: 0}, false},
		{0x80000000, true, vmm.Translation{}, true},
	}

	for specIndex, spec := range specs {
		got, err := sim.Translate(spec.virt, spec.useBoot)
		if spec.expErr {
			if err == nil {
				t.Errorf("[spec %d] expected translation of 0x%x to fail", specIndex, spec.virt)
			}
			continue
		}

		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
			continue
		}
		if diff := cmp.Diff(spec.exp, got); diff != "" {
			t.Errorf("[spec %d] unexpected translation (-want +got):\n%s", specIndex, diff)
		}
	}
}

func TestSimulateFrameStates(t *testing.T) {
	sim := loadSimulation(t, "virt.toml")

	states := sim.FrameStates()
	if len(states) != 1024 {
		t.Fatalf("expected 1024 frame states; got %d", len(states))
	}

	exp := map[FrameState]int{
		FrameBootTable: 1,
		FrameReserved:  24,
		FrameTable:     6,
		FrameFree:      993,
	}
	if diff := cmp.Diff(exp, CountStates(states)); diff != "" {
		t.Fatalf("unexpected frame state counts (-want +got):\n%s", diff)
	}

	if states[0] != FrameBootTable || states[1] != FrameReserved || states[25] != FrameTable || states[31] != FrameFree {
		t.Fatalf("unexpected frame state order: %v", states[:32])
	}
}

func TestSimulateIA32(t *testing.T) {
	sim := loadSimulation(t, "pc.toml")

	// The kernel mapping places RAM at 3G with 4K pages.
	exp := []Run{
		{Virt: 0xc0000000, Phys: 0, Size: 0x800000, Entries: 2048, Perm: vmm.PermWrite | vmm.PermExec, Attr: vmm.AttrNormal},
	}
	if diff := cmp.Diff(exp, Runs(sim.KernelAddressSpace())); diff != "" {
		t.Fatalf("unexpected kernel runs (-want +got):\n%s", diff)
	}

	res, err := sim.Translate(0xfec00020, true)
	if err != nil {
		t.Fatal(err)
	}
	if exp := (vmm.Translation{PhysAddr: 0xfec00020, Perm: vmm.PermWrite, Attr: vmm.AttrDevice, Level: 0}); res != exp {
		t.Fatalf("expected %+v; got %+v", exp, res)
	}
}

func TestSimulateErrors(t *testing.T) {
	baseCfg := func() *Config {
		return &Config{
			Format:   lpae.Format{},
			RAMStart: 0x40000000,
			RAMSize:  64 * mm.Kb,
		}
	}

	is64Bit := ^uintptr(0)>>32 != 0

	specs := []struct {
		descr   string
		needs64 bool
		mutate  func(*Config)
		expErr  string
	}{
		{
			"unaligned boot region",
			false,
			func(cfg *Config) {
				cfg.Boot = []boot.Region{{Virt: 0x1000, Phys: 0x1000, Size: 2 * mm.Mb}}
			},
			"boot region 0",
		},
		{
			"boot pool exhausted",
			true,
			func(cfg *Config) {
				// Every 2M block inside a distinct 1G slot needs a new
				// level-1 table.
				for slot := uint64(0); slot <= boot.PoolTables; slot++ {
					virt := uintptr(slot<<30 | 0x200000)
					cfg.Boot = append(cfg.Boot, boot.Region{Virt: virt, Phys: 0x200000, Size: 2 * mm.Mb})
				}
			},
			"kernel halted",
		},
		{
			"allocator exhausted",
			false,
			func(cfg *Config) {
				cfg.Kernel = []boot.Region{{Virt: 0, Phys: 0, Size: 1 * mm.Gb}}
			},
			"kernel mapping 0",
		},
		{
			"out of range unmap",
			true,
			func(cfg *Config) {
				outOfRange := uint64(1) << 40
				cfg.Unmap = []Unmap{{Virt: uintptr(outOfRange), Pages: 1}}
			},
			"unmap 0",
		},
	}

	for _, spec := range specs {
		if spec.needs64 && !is64Bit {
			continue
		}

		cfg := baseCfg()
		spec.mutate(cfg)

		sim, err := Simulate(cfg)
		if err == nil {
			sim.Close()
			t.Errorf("[%s] expected an error", spec.descr)
			continue
		}
		if !strings.Contains(err.Error(), spec.expErr) {
			t.Errorf("[%s] expected error to contain %q; got %q", spec.descr, spec.expErr, err.Error())
		}
	}

	if got := mm.PhysToVirt(0x40000000); got != 0x40000000 {
		t.Fatal("expected failed simulations to restore the physical memory accessor")
	}
}
