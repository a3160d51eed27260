package ia32

const (
	// cr0PG enables paging.
	cr0PG = uint32(1 << 31)

	// cr4PSE enables 4M pages in page directory entries.
	cr4PSE = uint32(1 << 4)
)

// activate loads the page directory at pdtPhysAddr into CR3, enables 4M page
// support and turns on paging. The page directory must identity map the
// code that runs after CR0 is updated.
func activate(pdtPhysAddr uintptr) {
	writeCR3Fn(uint32(pdtPhysAddr))
	writeCR4Fn(readCR4Fn() | cr4PSE)
	writeCR0Fn(readCR0Fn() | cr0PG)
}
