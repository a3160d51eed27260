package lpae

// MAIRValue programs the memory attribute indices used by NewLeaf:
// 0 Device-nGnRnE, 1 Device-nGnRE, 2 Normal non-cacheable and 3 Normal
// write-back cacheable.
const MAIRValue = uint64(0x00)<<(8*MairDeviceNGnRnE) |
	uint64(0x04)<<(8*MairDeviceNGnRE) |
	uint64(0x44)<<(8*MairNormalNC) |
	uint64(0xff)<<(8*MairNormal)

// TCR_EL1 fields.
const (
	tcrT0SZ      = uint64(64 - 39)
	tcrIRGN0WBWA = uint64(1) << 8
	tcrORGN0WBWA = uint64(1) << 10
	tcrSH0Inner  = uint64(3) << 12
	tcrTG04K     = uint64(0) << 14
	tcrEPD1      = uint64(1) << 23
	tcrIPS40     = uint64(2) << 32

	// TCRValue configures a 39-bit TTBR0 range with a 4 KiB granule,
	// cacheable inner shareable walks and a 40-bit physical address
	// size. Walks through TTBR1 are disabled.
	TCRValue = tcrT0SZ | tcrIRGN0WBWA | tcrORGN0WBWA | tcrSH0Inner | tcrTG04K | tcrEPD1 | tcrIPS40
)

// sctlrMMUEnable is the SCTLR_EL1.M bit.
const sctlrMMUEnable = uint64(1)

// activate installs rootPhysAddr as the TTBR0_EL1 translation table and
// turns on the MMU. The root table must identity map the code that runs
// after SCTLR_EL1 is updated.
func activate(rootPhysAddr uintptr) {
	writeMAIRFn(MAIRValue)
	writeTCRFn(TCRValue)
	writeTTBR0Fn(uint64(rootPhysAddr))
	invalidateTLBFn()
	writeSCTLRFn(readSCTLRFn() | sctlrMMUEnable)
}
