package kfmt

import (
	"io"
	"unsafe"
)

// maxBufSize defines the buffer size for formatting numbers. It fits a
// 64-bit value printed in base 2 plus a sign.
const maxBufSize = 65

const (
	lowerDigits = "0123456789abcdef"
	upperDigits = "0123456789ABCDEF"
)

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	numFmtBuf [maxBufSize + 1]byte

	// singleByte is used as a shared buffer for passing single characters
	// to doWrite.
	singleByte = []byte(" ")

	// earlyPrintBuffer is a ring buffer that stores Printf output before the
	// serial port is initialized.
	earlyPrintBuffer ringBuffer

	// outputSink is a io.Writer where Printf will send its output. If set
	// to nil, then the output will be redirected to the earlyPrintBuffer.
	outputSink io.Writer
)

// fmtSpec holds the flags and width that precede a formatting verb.
type fmtSpec struct {
	width     int
	leftAlign bool
}

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the earlyPrintBuffer to it. If the early buffer
// overflowed, a note with the number of lost bytes follows the replayed
// output.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w == nil {
		return
	}

	io.Copy(w, &earlyPrintBuffer)
	if dropped := earlyPrintBuffer.dropped; dropped != 0 {
		earlyPrintBuffer.dropped = 0
		Fprintf(w, "[kfmt] %d bytes of early output were dropped\n", dropped)
	}
}

// GetOutputSink returns the current target for calls to Printf.
func GetOutputSink() io.Writer {
	return outputSink
}

// Printf provides a minimal Printf implementation that can be safely used
// while the memory subsystem is being brought up. This implementation does
// not allocate any memory.
//
// Similar to fmt.Printf, this version of printf supports the following subset
// of formatting verbs:
//
// Strings:
//		%s the uninterpreted bytes of the string or byte slice
//
// Integers:
//		%b base 2
//		%o base 8
//		%d base 10
//		%x base 16, with lower-case letters for a-f
//		%X base 16, with upper-case letters for A-F
//
// Booleans:
//		%t "true" or "false"
//
// Width is specified by an optional decimal number immediately preceding the
// verb. Strings and base-10 integers are padded with spaces while integers in
// the other bases are padded with zeroes. A '-' flag pads with spaces on the
// right instead.
//
// Printf supports all built-in string and integer types but does not check
// whether its arguments implement io.Stringer; named types must be converted
// by the caller.
//
// The output of Printf is written to the sink registered via SetOutputSink
// (normally the serial port). If no sink is available, then the output is
// buffered into a ring-buffer and is replayed once a sink is attached.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		argIndex int
		spec     fmtSpec
	)

	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			// passing a sub-slice of format to doWrite triggers a memory
			// allocation so literal text is written one byte at a time.
			writeByte(w, format[i])
			continue
		}

		spec = fmtSpec{}
	parseVerb:
		for i++; ; i++ {
			if i == len(format) {
				doWrite(w, errNoVerb)
				break
			}

			switch ch := format[i]; {
			case ch == '%':
				writeByte(w, '%')
				break parseVerb
			case ch == '-':
				spec.leftAlign = true
			case ch >= '0' && ch <= '9':
				spec.width = (spec.width * 10) + int(ch-'0')
			case isVerb(ch):
				if argIndex == len(args) {
					doWrite(w, errMissingArg)
					break parseVerb
				}

				fmtArg(w, ch, args[argIndex], spec)
				argIndex++
				break parseVerb
			default:
				doWrite(w, errNoVerb)
				break parseVerb
			}
		}
	}

	for ; argIndex < len(args); argIndex++ {
		doWrite(w, errExtraArg)
	}
}

func isVerb(ch byte) bool {
	switch ch {
	case 'b', 'o', 'd', 'x', 'X', 's', 't':
		return true
	}
	return false
}

func fmtArg(w io.Writer, verb byte, arg interface{}, spec fmtSpec) {
	switch verb {
	case 's':
		fmtString(w, arg, spec)
	case 't':
		fmtBool(w, arg)
	default:
		fmtInt(w, arg, verb, spec)
	}
}

// fmtBool prints a formatted version of boolean value v. Width is ignored.
func fmtBool(w io.Writer, v interface{}) {
	bVal, ok := v.(bool)
	switch {
	case !ok:
		doWrite(w, errWrongArgType)
	case bVal:
		doWrite(w, trueValue)
	default:
		doWrite(w, falseValue)
	}
}

// fmtString prints a formatted version of string or []byte value v, applying
// the padding specified by spec.
func fmtString(w io.Writer, v interface{}, spec fmtSpec) {
	var strLen int
	switch castedVal := v.(type) {
	case string:
		strLen = len(castedVal)
		if !spec.leftAlign {
			fmtRepeat(w, ' ', spec.width-strLen)
		}
		// converting the string to a byte slice triggers a memory allocation
		// so we need to do this one byte at a time.
		for i := 0; i < strLen; i++ {
			writeByte(w, castedVal[i])
		}
	case []byte:
		strLen = len(castedVal)
		if !spec.leftAlign {
			fmtRepeat(w, ' ', spec.width-strLen)
		}
		doWrite(w, castedVal)
	default:
		doWrite(w, errWrongArgType)
		return
	}

	if spec.leftAlign {
		fmtRepeat(w, ' ', spec.width-strLen)
	}
}

// fmtRepeat writes count bytes with value ch.
func fmtRepeat(w io.Writer, ch byte, count int) {
	for i := 0; i < count; i++ {
		writeByte(w, ch)
	}
}

// writeByte writes a single byte via the shared singleByte buffer.
func writeByte(w io.Writer, ch byte) {
	singleByte[0] = ch
	doWrite(w, singleByte)
}

// intValue returns the magnitude and sign of any built-in integer type.
func intValue(v interface{}) (uval uint64, neg, ok bool) {
	var sval int64

	switch t := v.(type) {
	case uint8:
		return uint64(t), false, true
	case uint16:
		return uint64(t), false, true
	case uint32:
		return uint64(t), false, true
	case uint64:
		return t, false, true
	case uint:
		return uint64(t), false, true
	case uintptr:
		return uint64(t), false, true
	case int8:
		sval = int64(t)
	case int16:
		sval = int64(t)
	case int32:
		sval = int64(t)
	case int64:
		sval = t
	case int:
		sval = int64(t)
	default:
		return 0, false, false
	}

	if sval < 0 {
		return uint64(-sval), true, true
	}
	return uint64(sval), false, true
}

// fmtInt prints out a formatted version of v in the base selected by verb,
// applying the padding specified by spec. Zero padding goes between the sign
// and the digits; space padding goes before the sign.
func fmtInt(w io.Writer, v interface{}, verb byte, spec fmtSpec) {
	uval, neg, ok := intValue(v)
	if !ok {
		doWrite(w, errWrongArgType)
		return
	}

	var (
		base   = uint64(10)
		digits = lowerDigits
		padCh  = byte('0')
		width  = spec.width
		n      int
	)

	switch verb {
	case 'b':
		base = 2
	case 'o':
		base = 8
	case 'x':
		base = 16
	case 'X':
		base, digits = 16, upperDigits
	default:
		padCh = ' '
	}

	if spec.leftAlign {
		padCh = ' '
	}
	if width >= maxBufSize {
		width = maxBufSize - 1
	}

	// Digits are emitted in reverse order and flipped at the end.
	for {
		numFmtBuf[n] = digits[uval%base]
		n++
		if uval /= base; uval == 0 {
			break
		}
	}

	if padCh == '0' {
		for ; n < width; n++ {
			numFmtBuf[n] = '0'
		}
	}

	if neg {
		numFmtBuf[n] = '-'
		n++
	}

	if !spec.leftAlign {
		for ; n < width; n++ {
			numFmtBuf[n] = ' '
		}
	}

	for left, right := 0, n-1; left < right; left, right = left+1, right-1 {
		numFmtBuf[left], numFmtBuf[right] = numFmtBuf[right], numFmtBuf[left]
	}

	doWrite(w, numFmtBuf[:n])
	if spec.leftAlign {
		fmtRepeat(w, ' ', width-n)
	}
}

// doWrite is a proxy that uses the runtime.noescape hack to hide p from the
// compiler's escape analysis. Without this hack, the compiler cannot properly
// detect that p does not escape (due to the call to the yet unknown outputSink
// io.Writer) and plays it safe by flagging it as escaping. This causes all
// calls to Printf to call runtime.convT2E which triggers a memory allocation
// causing the kernel to crash if a call to Printf is made before the Go
// allocator is initialized.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
	} else {
		earlyPrintBuffer.Write(p)
	}
}

// noEscape hides a pointer from escape analysis. This function is copied over
// from runtime/stubs.go
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
