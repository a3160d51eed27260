package kfmt

import "io"

// ringBufferSize defines size of the ring buffer that buffers early Printf
// output. Its size is selected so it can hold the boot table and allocator
// reports. The ring buffer size must always be a power of 2.
const ringBufferSize = 2048

// ringBuffer captures the output of Printf before the serial port is
// initialized. When full, new writes overwrite the oldest unread bytes.
type ringBuffer struct {
	buffer         [ringBufferSize]byte
	rIndex, wIndex int

	// dropped counts the unread bytes that were overwritten.
	dropped int
}

// Write writes len(p) bytes from p to the ringBuffer.
func (rb *ringBuffer) Write(p []byte) (int, error) {
	for _, b := range p {
		rb.buffer[rb.wIndex] = b
		rb.wIndex = (rb.wIndex + 1) & (ringBufferSize - 1)
		if rb.rIndex == rb.wIndex {
			rb.rIndex = (rb.rIndex + 1) & (ringBufferSize - 1)
			rb.dropped++
		}
	}

	return len(p), nil
}

// Read reads up to len(p) bytes into p. A single call never wraps around
// the end of the buffer; callers such as io.Copy keep reading until io.EOF.
func (rb *ringBuffer) Read(p []byte) (int, error) {
	if rb.rIndex == rb.wIndex {
		return 0, io.EOF
	}

	end := rb.wIndex
	if end < rb.rIndex {
		end = ringBufferSize
	}

	n := copy(p, rb.buffer[rb.rIndex:end])
	rb.rIndex = (rb.rIndex + n) & (ringBufferSize - 1)
	return n, nil
}
