package lpae

// Descriptor is a 64-bit VMSAv8-64 translation table descriptor for the
// 4 KiB granule. The same layout is used for table, block and page
// descriptors; fields that do not apply to a particular descriptor type
// must be left cleared.
type Descriptor uint64

// Descriptor field positions.
const (
	typeShift      = 0
	typeWidth      = 2
	attrIndexShift = 2
	attrIndexWidth = 4
	apShift        = 6
	apWidth        = 2
	shShift        = 8
	shWidth        = 2
	apTableShift   = 61
	apTableWidth   = 2

	afBit         = Descriptor(1) << 10
	notGlobalBit  = Descriptor(1) << 11
	contiguousBit = Descriptor(1) << 52
	pxnBit        = Descriptor(1) << 53
	uxnBit        = Descriptor(1) << 54
	pxnTableBit   = Descriptor(1) << 59
	xnTableBit    = Descriptor(1) << 60
	nsTableBit    = Descriptor(1) << 63

	// addressMask selects the output address bits 12-47.
	addressMask = Descriptor(0x0000fffffffff000)
)

// Descriptor types.
const (
	TypeInvalid uint64 = 0
	TypeBlock   uint64 = 1

	// TypeTable and TypePage share the same encoding. Level 2
	// descriptors of this type map pages; at other levels they point to
	// a subordinate table.
	TypeTable uint64 = 3
	TypePage  uint64 = 3
)

// Access permission (AP) values for block and page descriptors. Bit 6
// grants EL0 access and bit 7 makes the mapping read-only.
const (
	APReadWriteEL1 uint64 = 0
	APReadWriteAll uint64 = 1
	APReadOnlyEL1  uint64 = 2
	APReadOnlyAll  uint64 = 3
)

// Shareability (SH) values.
const (
	SHNone  uint64 = 0
	SHOuter uint64 = 2
	SHInner uint64 = 3
)

// Hierarchical access permission (APTable) values for table descriptors.
const (
	APTableNoEffect     uint64 = 0
	APTableNoEL0        uint64 = 1
	APTableNoWrite      uint64 = 2
	APTableNoWriteNoEL0 uint64 = 3
)

func (d Descriptor) field(shift, width uint) uint64 {
	return uint64(d>>shift) & (1<<width - 1)
}

func (d *Descriptor) setField(shift, width uint, value uint64) {
	mask := Descriptor(1<<width-1) << shift
	*d = (*d &^ mask) | (Descriptor(value)<<shift)&mask
}

func (d *Descriptor) setBit(bit Descriptor, set bool) {
	if set {
		*d |= bit
		return
	}
	*d &^= bit
}

// Type returns the 2-bit descriptor type.
func (d Descriptor) Type() uint64 { return d.field(typeShift, typeWidth) }

// SetType sets the descriptor type.
func (d *Descriptor) SetType(t uint64) { d.setField(typeShift, typeWidth, t) }

// AttrIndex returns the MAIR_EL1 attribute index.
func (d Descriptor) AttrIndex() uint64 { return d.field(attrIndexShift, attrIndexWidth) }

// SetAttrIndex sets the MAIR_EL1 attribute index.
func (d *Descriptor) SetAttrIndex(index uint64) {
	d.setField(attrIndexShift, attrIndexWidth, index)
}

// AP returns the access permission bits.
func (d Descriptor) AP() uint64 { return d.field(apShift, apWidth) }

// SetAP sets the access permission bits.
func (d *Descriptor) SetAP(ap uint64) { d.setField(apShift, apWidth, ap) }

// SH returns the shareability domain.
func (d Descriptor) SH() uint64 { return d.field(shShift, shWidth) }

// SetSH sets the shareability domain.
func (d *Descriptor) SetSH(sh uint64) { d.setField(shShift, shWidth, sh) }

// AF returns the access flag.
func (d Descriptor) AF() bool { return d&afBit != 0 }

// SetAF sets or clears the access flag.
func (d *Descriptor) SetAF(set bool) { d.setBit(afBit, set) }

// NotGlobal returns the nG bit.
func (d Descriptor) NotGlobal() bool { return d&notGlobalBit != 0 }

// SetNotGlobal sets or clears the nG bit.
func (d *Descriptor) SetNotGlobal(set bool) { d.setBit(notGlobalBit, set) }

// Address returns the output address (bits 12-47).
func (d Descriptor) Address() uint64 { return uint64(d & addressMask) }

// SetAddress sets the output address. Bits outside 12-47 are discarded.
func (d *Descriptor) SetAddress(addr uint64) {
	*d = (*d &^ addressMask) | (Descriptor(addr) & addressMask)
}

// Contiguous returns the contiguous hint bit.
func (d Descriptor) Contiguous() bool { return d&contiguousBit != 0 }

// SetContiguous sets or clears the contiguous hint bit.
func (d *Descriptor) SetContiguous(set bool) { d.setBit(contiguousBit, set) }

// PXN returns the privileged execute-never bit.
func (d Descriptor) PXN() bool { return d&pxnBit != 0 }

// SetPXN sets or clears the privileged execute-never bit.
func (d *Descriptor) SetPXN(set bool) { d.setBit(pxnBit, set) }

// UXN returns the unprivileged execute-never bit.
func (d Descriptor) UXN() bool { return d&uxnBit != 0 }

// SetUXN sets or clears the unprivileged execute-never bit.
func (d *Descriptor) SetUXN(set bool) { d.setBit(uxnBit, set) }

// PXNTable returns the hierarchical privileged execute-never bit.
func (d Descriptor) PXNTable() bool { return d&pxnTableBit != 0 }

// SetPXNTable sets or clears the hierarchical privileged execute-never bit.
func (d *Descriptor) SetPXNTable(set bool) { d.setBit(pxnTableBit, set) }

// XNTable returns the hierarchical unprivileged execute-never bit.
func (d Descriptor) XNTable() bool { return d&xnTableBit != 0 }

// SetXNTable sets or clears the hierarchical unprivileged execute-never bit.
func (d *Descriptor) SetXNTable(set bool) { d.setBit(xnTableBit, set) }

// APTable returns the hierarchical access permission bits.
func (d Descriptor) APTable() uint64 { return d.field(apTableShift, apTableWidth) }

// SetAPTable sets the hierarchical access permission bits.
func (d *Descriptor) SetAPTable(ap uint64) { d.setField(apTableShift, apTableWidth, ap) }

// NSTable returns the hierarchical non-secure bit.
func (d Descriptor) NSTable() bool { return d&nsTableBit != 0 }

// SetNSTable sets or clears the hierarchical non-secure bit.
func (d *Descriptor) SetNSTable(set bool) { d.setBit(nsTableBit, set) }
