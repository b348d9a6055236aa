package hdlc

// frameBuffer is a fixed-capacity, caller-owned byte buffer with a write
// index. It never reallocates: once the backing slice is full, TryAppend
// reports failure instead of growing, which is what lets the codec make
// the "no dynamic memory inside the codec" guarantee (§5).
//
// The vocabulary (a borrowed backing slice, a write index, Reset/Bytes)
// follows pdubuf.PDU, trimmed down: pdubuf grows its backing array on
// overflow (reallocInternal), which this type deliberately does not do.
type frameBuffer struct {
	buf   []byte
	index int
}

func newFrameBuffer(backing []byte) frameBuffer {
	return frameBuffer{buf: backing}
}

// Reset rewinds the write index to the start of the borrowed buffer
// without releasing it.
func (f *frameBuffer) Reset() {
	f.index = 0
}

// Len reports how many bytes have been written since the last Reset.
func (f *frameBuffer) Len() int {
	return f.index
}

// Cap reports the total capacity of the borrowed buffer.
func (f *frameBuffer) Cap() int {
	return len(f.buf)
}

// Bytes returns the bytes written so far. The slice aliases the borrowed
// backing array and is only valid until the next Reset/TryAppend.
func (f *frameBuffer) Bytes() []byte {
	return f.buf[:f.index]
}

// TryAppend writes a single byte if capacity allows, reporting whether it
// succeeded. It never grows the backing array.
func (f *frameBuffer) TryAppend(b byte) bool {
	if f.index >= len(f.buf) {
		return false
	}
	f.buf[f.index] = b
	f.index++
	return true
}

// Retract removes the last n bytes already written, as used to pull the
// trailing CRC bytes back out of the payload buffer once the closing
// delimiter confirms they were CRC, not payload (§4.2.1(a)).
func (f *frameBuffer) Retract(n int) {
	f.index -= n
	if f.index < 0 {
		f.index = 0
	}
}
