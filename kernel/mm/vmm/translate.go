package vmm

import "baremetal/kernel"

// Translation describes the result of resolving a virtual address.
type Translation struct {
	// PhysAddr is the physical address that the virtual address maps to,
	// including the offset within the page or block.
	PhysAddr uintptr

	Perm Perm
	Attr MemAttr

	// Level is the table level that holds the terminal entry. Levels
	// before the final one indicate a block mapping.
	Level uint8
}

// Translate performs a read-only walk of the address space and returns the
// physical address and attributes that correspond to virtAddr or
// ErrInvalidMapping if the address is not mapped.
func (as *AddressSpace) Translate(virtAddr uintptr) (Translation, *kernel.Error) {
	if !as.checkAddr(virtAddr) {
		return Translation{}, errAddressOutOfRange
	}

	var (
		format = as.format
		res    Translation
		err    = ErrInvalidMapping
	)

	as.walk(virtAddr, func(level uint8, entry tableEntry) bool {
		e := entry.Load()
		if !format.IsValid(level, e) {
			return false
		}

		if format.IsTable(level, e) {
			return true
		}

		// Calculate the physical address by taking the output address
		// and appending the offset from the virtual address
		res.PhysAddr = format.OutputAddress(level, e) + virtAddr&(BlockSize(format, level)-1)
		res.Perm, res.Attr = format.Attributes(level, e)
		res.Level = level
		err = nil
		return false
	})

	if err != nil {
		return Translation{}, err
	}
	return res, nil
}
