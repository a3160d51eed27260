//go:build !baremetal

package cpu

// Halt stops the hosted process. It is used when the kernel packages run on
// top of an operating system (tests, host tools) where the halt instruction
// is not available.
func Halt() {
	panic("cpu: halted")
}
