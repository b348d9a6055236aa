package hdlc

// Encoder frames one payload at a time into a caller-owned, fixed-capacity
// output buffer. It holds no pointers into anything but that buffer and
// performs no allocation of its own (§4.1, §5).
type Encoder struct {
	out frameBuffer
	crc CRCFunc

	runningCRC  uint16
	controlBits byte

	state EncoderState
	stats EncoderStats
}

// NewEncoder wires an Encoder to a caller-owned output buffer and a CRC-16
// kernel. The buffer's capacity bounds every frame this encoder ever
// produces; there is no minimum, matching the original's "buffer_len >= 0"
// invariant (currently never triggers BufferTooSmall at Init time).
func NewEncoder(out []byte, crc CRCFunc) *Encoder {
	e := &Encoder{crc: crc}
	e.out = newFrameBuffer(out)
	return e
}

// Stats returns a snapshot of lifetime encoder counters.
func (e *Encoder) Stats() EncoderStats {
	return e.stats
}

// State returns the encoder's current machine state.
func (e *Encoder) State() EncoderState {
	return e.state
}

// Bytes returns the framed bytes written since the last NewFrame. The
// slice aliases the caller-owned output buffer and is only valid until the
// next NewFrame/AddByte/Finalize call.
func (e *Encoder) Bytes() []byte {
	return e.out.Bytes()
}

// writeRaw emits a single byte with no stuffing and no CRC contribution,
// used only for the unescaped delimiter bytes.
func (e *Encoder) writeRaw(b byte) Return {
	if !e.out.TryAppend(b) {
		e.state = EncoderBufferTooSmall
		return ErrBufferTooSmall
	}
	return OK
}

// NewFrame begins a fresh frame, resetting the running CRC and write index
// and emitting the opening delimiter, control byte and sequence number
// (§4.1). frame_is_ack and frame_is_encrypted are rejected: neither mode is
// implemented by this codec (§1).
func (e *Encoder) NewFrame() Return {
	if e.controlBits&ControlFrameIsAck != 0 || e.controlBits&ControlFrameEncrypted != 0 {
		return ErrGeneric
	}

	e.controlBits |= ControlFrameValid
	e.runningCRC = initialCRCValue
	e.out.Reset()
	e.state = EncoderReady

	if r := e.writeRaw(FrameMarker); r != OK {
		return r
	}
	if r := e.AddByte(e.controlBits); r != OK {
		return r
	}
	seq := e.stats.SequenceNumber
	e.stats.SequenceNumber++
	return e.AddByte(seq)
}

// SetContinued sets or clears the frame_is_continued control bit that the
// next NewFrame will encode (SPEC_FULL §4.3). It has no effect on a frame
// already in progress.
func (e *Encoder) SetContinued(continued bool) {
	if continued {
		e.controlBits |= ControlFrameContinued
	} else {
		e.controlBits &^= ControlFrameContinued
	}
}

// AddByte folds b into the running CRC and emits it through the
// byte-stuffing path (§4.1). Calls on a handle already in an error state
// are rejected without touching the buffer.
func (e *Encoder) AddByte(b byte) Return {
	if e.state < 0 {
		return ErrGeneric
	}

	e.runningCRC = e.crc(e.runningCRC, []byte{b})
	e.stats.CRCCalls++

	switch b {
	case FrameMarker:
		if r := e.writeRaw(EscapeMarker); r != OK {
			return r
		}
		return e.writeRaw(EscapedFrame)
	case EscapeMarker:
		if r := e.writeRaw(EscapeMarker); r != OK {
			return r
		}
		return e.writeRaw(EscapedEscape)
	default:
		return e.writeRaw(b)
	}
}

// AddBuffer folds each byte of buf via AddByte, stopping at the first
// error, then finalizes the frame if every byte was accepted.
func (e *Encoder) AddBuffer(buf []byte) Return {
	for _, b := range buf {
		if r := e.AddByte(b); r != OK {
			return r
		}
	}
	return e.Finalize()
}

// Finalize writes the running CRC (big-endian, through the stuffing path)
// and the closing delimiter. It is idempotent: calling it twice leaves the
// buffer exactly as the first call did (§4.1, §8 "idempotent finalize").
func (e *Encoder) Finalize() Return {
	if e.state == EncoderFinalized {
		return OK
	}

	// Capture both CRC bytes before folding either into the running CRC:
	// the low byte must come from the CRC as it stood before the high byte
	// was added, not after (the decoder's ring discards both contributions
	// symmetrically, so what we fold them against here is irrelevant, but
	// the transmitted bytes themselves must be the real CRC halves).
	hi := byte(e.runningCRC >> 8)
	lo := byte(e.runningCRC)

	if r := e.AddByte(hi); r != OK {
		return r
	}
	if r := e.AddByte(lo); r != OK {
		return r
	}
	if r := e.writeRaw(FrameMarker); r != OK {
		return r
	}

	e.stats.FramesEncoded++
	e.state = EncoderFinalized
	return OK
}
