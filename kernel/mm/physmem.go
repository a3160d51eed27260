package mm

var (
	// physToVirtFn converts a physical address into an address that the
	// running code can dereference. The memory subsystem runs with an
	// identity mapping (or with translation disabled) so this is a no-op
	// unless a simulated physical memory is installed.
	physToVirtFn = identityPhysToVirt
)

// PhysToVirtFn converts a physical address to a dereferenceable address.
type PhysToVirtFn func(physAddr uintptr) uintptr

func identityPhysToVirt(physAddr uintptr) uintptr { return physAddr }

// SetPhysToVirt installs the function used by PhysToVirt. Passing nil
// restores the identity conversion.
func SetPhysToVirt(fn PhysToVirtFn) {
	if fn == nil {
		fn = identityPhysToVirt
	}

	physToVirtFn = fn
}

// PhysToVirt returns the address through which the contents of the physical
// address physAddr can be accessed. All page table and free list accesses go
// through this function.
func PhysToVirt(physAddr uintptr) uintptr {
	return physToVirtFn(physAddr)
}
