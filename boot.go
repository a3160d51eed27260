package main

import "baremetal/kernel/kmain"

// The physical addresses of the kernel image are patched in by the rt0 code.
// They are global variables so that the compiler cannot inline the call to
// Kmain and remove it from the generated object file.
var kernelStart, kernelEnd uintptr

// main is the only Go symbol that is visible (exported) from the rt0
// initialization code. This function works as a trampoline for calling the
// actual kernel entrypoint (kmain.Kmain) and its intentionally defined to
// prevent the Go compiler from optimizing away the actual kernel code as its
// not aware of the presence of the rt0 code.
//
// main is not expected to return. If it does, the rt0 code will halt the CPU.
func main() {
	kmain.Kmain(kernelStart, kernelEnd)
}
