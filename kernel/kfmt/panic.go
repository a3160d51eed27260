package kfmt

import (
	"baremetal/kernel"
	"baremetal/kernel/cpu"
)

var (
	// cpuHaltFn is mocked by tests and is automatically inlined by the compiler.
	cpuHaltFn = cpu.Halt

	// errRuntimePanic is reused for panics that do not carry a
	// *kernel.Error so that reporting them never allocates.
	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

const (
	haltHeader = "\n#### system halted ####\n"
	haltFooter = "#######################\n"
)

// Fatal reports err as the reason the kernel cannot continue and stops the
// CPU. It is the halt path for failures that occur while the kernel is
// still building its own address space. A nil err produces a report
// without a cause. Calls to Fatal never return.
func Fatal(err *kernel.Error) {
	Printf(haltHeader)
	if err != nil {
		Printf("module: %s\n", err.Module)
		Printf("cause:  %s\n", err.Message)
	}
	Printf(haltFooter)

	cpuHaltFn()
}

// Panic converts e into a *kernel.Error and passes it to Fatal. Strings and
// values implementing error are reported under the "rt" module.
func Panic(e interface{}) {
	Fatal(asKernelError(e))
}

func asKernelError(e interface{}) *kernel.Error {
	switch t := e.(type) {
	case *kernel.Error:
		return t
	case string:
		errRuntimePanic.Message = t
		return errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		return errRuntimePanic
	}

	return nil
}
