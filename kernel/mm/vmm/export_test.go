package vmm

// Export unexported errors for use by the external test package.
var (
	ErrAddressOutOfRange = errAddressOutOfRange
	ErrBlockInPath       = errBlockInPath
	ErrTableInPath       = errTableInPath
	ErrNoBlockSupport    = errNoBlockSupport
	ErrMisalignedBlock   = errMisalignedBlock
	ErrRangeOverflow     = errRangeOverflow
	ErrInvalidRange      = errInvalidRange
)
