package lpae

import "testing"

func TestDescriptorFieldPositions(t *testing.T) {
	specs := []struct {
		descr string
		set   func(*Descriptor)
		exp   Descriptor
	}{
		{"type block", func(d *Descriptor) { d.SetType(TypeBlock) }, 0x1},
		{"type table", func(d *Descriptor) { d.SetType(TypeTable) }, 0x3},
		{"attr index", func(d *Descriptor) { d.SetAttrIndex(MairNormal) }, 0x3 << 2},
		{"attr index overflow", func(d *Descriptor) { d.SetAttrIndex(0x1f) }, 0xf << 2},
		{"ap el0", func(d *Descriptor) { d.SetAP(APReadWriteAll) }, 1 << 6},
		{"ap read-only", func(d *Descriptor) { d.SetAP(APReadOnlyEL1) }, 1 << 7},
		{"sh inner", func(d *Descriptor) { d.SetSH(SHInner) }, 3 << 8},
		{"sh outer", func(d *Descriptor) { d.SetSH(SHOuter) }, 2 << 8},
		{"af", func(d *Descriptor) { d.SetAF(true) }, 1 << 10},
		{"ng", func(d *Descriptor) { d.SetNotGlobal(true) }, 1 << 11},
		{"address", func(d *Descriptor) { d.SetAddress(0xffff_4000_1fff) }, 0xffff_4000_1000},
		{"address above 48 bits", func(d *Descriptor) { d.SetAddress(0x1_0000_0000_0000) }, 0},
		{"contiguous", func(d *Descriptor) { d.SetContiguous(true) }, 1 << 52},
		{"pxn", func(d *Descriptor) { d.SetPXN(true) }, 1 << 53},
		{"uxn", func(d *Descriptor) { d.SetUXN(true) }, 1 << 54},
		{"pxn table", func(d *Descriptor) { d.SetPXNTable(true) }, 1 << 59},
		{"xn table", func(d *Descriptor) { d.SetXNTable(true) }, 1 << 60},
		{"ap table", func(d *Descriptor) { d.SetAPTable(APTableNoWriteNoEL0) }, 3 << 61},
		{"ns table", func(d *Descriptor) { d.SetNSTable(true) }, 1 << 63},
	}

	for _, spec := range specs {
		var d Descriptor
		spec.set(&d)
		if d != spec.exp {
			t.Errorf("[%s] expected descriptor to be 0x%016x; got 0x%016x", spec.descr, uint64(spec.exp), uint64(d))
		}
	}
}

func TestDescriptorAccessors(t *testing.T) {
	var d Descriptor
	d.SetType(TypePage)
	d.SetAttrIndex(MairNormalNC)
	d.SetAP(APReadOnlyAll)
	d.SetSH(SHOuter)
	d.SetAF(true)
	d.SetNotGlobal(true)
	d.SetAddress(0x4020_3000)
	d.SetContiguous(true)
	d.SetPXN(true)
	d.SetUXN(true)
	d.SetPXNTable(true)
	d.SetXNTable(true)
	d.SetAPTable(APTableNoWrite)
	d.SetNSTable(true)

	if d.Type() != TypePage || d.AttrIndex() != MairNormalNC || d.AP() != APReadOnlyAll ||
		d.SH() != SHOuter || d.APTable() != APTableNoWrite || d.Address() != 0x4020_3000 {
		t.Fatalf("unexpected field values for descriptor 0x%016x", uint64(d))
	}

	if !d.AF() || !d.NotGlobal() || !d.Contiguous() || !d.PXN() || !d.UXN() || !d.PXNTable() || !d.XNTable() || !d.NSTable() {
		t.Fatalf("expected all flag bits to be set for descriptor 0x%016x", uint64(d))
	}

	// Clearing a field must not disturb its neighbours
	d.SetAP(APReadWriteEL1)
	d.SetAF(false)
	d.SetAddress(0)
	d.SetPXN(false)
	if exp := Descriptor(0xd850_0000_0000_0a0b); d != exp {
		t.Fatalf("expected descriptor 0x%016x after clearing fields; got 0x%016x", uint64(exp), uint64(d))
	}
}
