package ia32

import (
	"baremetal/kernel/mm"
	"baremetal/kernel/mm/vmm"
	"testing"
)

func TestFormatGeometry(t *testing.T) {
	var f Format

	if f.Levels() != 2 || f.EntrySize() != 4 {
		t.Fatalf("expected 2 levels of 4-byte entries; got %d levels of %d-byte entries", f.Levels(), f.EntrySize())
	}

	if f.LevelShift(0) != 22 || f.LevelShift(1) != 12 || f.LevelBits(0) != 10 || f.LevelBits(1) != 10 {
		t.Fatal("unexpected level geometry")
	}

	if exp, got := uintptr(4<<20), vmm.BlockSize(f, 0); got != exp {
		t.Fatalf("expected 4M blocks; got 0x%x", got)
	}

	if !f.SupportsBlock(0) || f.SupportsBlock(1) {
		t.Fatal("expected blocks to be supported in the page directory only")
	}
}

func TestFormatNewTable(t *testing.T) {
	var f Format
	e := f.NewTable(0, mm.Frame(0x1234))

	if exp := vmm.Entry(0x01234007); e != exp {
		t.Fatalf("expected directory entry 0x%x; got 0x%x", exp, e)
	}

	if !f.IsTable(0, e) {
		t.Fatal("expected directory entry to point to a table")
	}

	if exp, got := uintptr(0x01234000), f.OutputAddress(0, e); got != exp {
		t.Fatalf("expected output address 0x%x; got 0x%x", exp, got)
	}
}

func TestFormatNewLeafEncoding(t *testing.T) {
	var f Format

	specs := []struct {
		descr string
		level uint8
		phys  uintptr
		perm  vmm.Perm
		attr  vmm.MemAttr
		exp   vmm.Entry
	}{
		{"kernel ro device page", 1, 0xfec00000, 0, vmm.AttrDevice, 0xfec00000 | 0x1 | 0x8 | 0x10 | 0x200},
		{"kernel rwx normal page", 1, 0x00100000, vmm.PermWrite | vmm.PermExec, vmm.AttrNormal, 0x00100000 | 0x1 | 0x2},
		{"user rw normal-nc page", 1, 0x00200000, vmm.PermUser | vmm.PermWrite, vmm.AttrNormalNC, 0x00200000 | 0x1 | 0x2 | 0x4 | 0x10 | 0x200},
		{"kernel rw 4M page", 0, 0x00400000, vmm.PermWrite, vmm.AttrNormal, 0x00400000 | 0x1 | 0x2 | 0x80 | 0x200},
	}

	for _, spec := range specs {
		e := f.NewLeaf(spec.level, spec.phys, spec.perm, spec.attr)
		if e != spec.exp {
			t.Errorf("[%s] expected entry 0x%08x; got 0x%08x", spec.descr, spec.exp, e)
			continue
		}

		if f.IsTable(spec.level, e) || !f.IsValid(spec.level, e) {
			t.Errorf("[%s] expected a valid terminal entry", spec.descr)
		}

		if got := f.OutputAddress(spec.level, e); got != spec.phys {
			t.Errorf("[%s] expected output address 0x%x; got 0x%x", spec.descr, spec.phys, got)
		}

		perm, attr := f.Attributes(spec.level, e)
		if perm != spec.perm || attr != spec.attr {
			t.Errorf("[%s] expected decoded attributes (%s, %s); got (%s, %s)", spec.descr, spec.perm, spec.attr, perm, attr)
		}
	}
}

func TestFormatInvalidate(t *testing.T) {
	var f Format

	e := f.Invalidate(1, f.NewLeaf(1, 0x5000, vmm.PermWrite, vmm.AttrNormal))
	if f.IsValid(1, e) {
		t.Fatal("expected invalidated entry to be invalid")
	}
	if !PageTableEntry(e).HasFlags(FlagRW) {
		t.Fatal("expected invalidation to only clear the present flag")
	}
}
