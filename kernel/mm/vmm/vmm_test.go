package vmm

import "testing"

func TestPermString(t *testing.T) {
	specs := []struct {
		perm Perm
		exp  string
	}{
		{0, "k r--"},
		{PermWrite, "k rw-"},
		{PermExec, "k r-x"},
		{PermUser | PermWrite | PermExec, "u rwx"},
	}

	for _, spec := range specs {
		if got := spec.perm.String(); got != spec.exp {
			t.Errorf("expected Perm(%d).String() to return %q; got %q", spec.perm, spec.exp, got)
		}
	}
}

func TestMemAttrString(t *testing.T) {
	specs := []struct {
		attr MemAttr
		exp  string
	}{
		{AttrNormal, "normal"},
		{AttrNormalNC, "normal-nc"},
		{AttrDevice, "device"},
		{MemAttr(42), "unknown"},
	}

	for _, spec := range specs {
		if got := spec.attr.String(); got != spec.exp {
			t.Errorf("expected MemAttr(%d).String() to return %q; got %q", spec.attr, spec.exp, got)
		}
	}
}

func TestPageOffset(t *testing.T) {
	if exp, got := uintptr(0xabc), PageOffset(0x12345abc); got != exp {
		t.Fatalf("expected page offset 0x%x; got 0x%x", exp, got)
	}
}
