package hdlc

// defaultSink appends decoded bytes to a caller-owned, fixed-capacity
// buffer, matching the original's decoderWriteByte. It is installed
// automatically by NewDecoder when no Sink is supplied.
type defaultSink struct {
	buf frameBuffer
}

func (s *defaultSink) WriteByte(b byte) Return {
	if !s.buf.TryAppend(b) {
		return ErrBufferTooSmall
	}
	return OK
}

// Decoder is a single-byte streaming state machine that resynchronizes on
// frame delimiters, reverses byte stuffing, and validates a running CRC
// computed over everything except the two trailing CRC bytes (§4.2). It
// performs no allocation and blocks on nothing; DecodeByte must be called
// once per input byte.
type Decoder struct {
	crc  CRCFunc
	sink Sink

	// retained only when the default sink is installed, so the decoder can
	// retract the trailing CRC bytes out of its own buffer (§4.2.1(a)).
	defaultSink *defaultSink

	controlBits byte
	sequence    byte

	ring crcRing

	state           DecoderState
	expectingEscape bool
	resetOnNextByte bool

	// overflowed latches once the sink rejects a byte with
	// ErrBufferTooSmall; the frame's terminal state is not downgraded to
	// DecoderBufferTooSmall until the closing delimiter arrives, so that
	// EXPECT_PDU keeps silently absorbing bytes up to that point rather
	// than misreading mid-frame garbage as a new frame's control byte
	// (§7 "abort frame, hold terminal state until next delimiter").
	overflowed bool

	stats DecoderStats
}

// NewDecoder wires a Decoder to a CRC-16 kernel and, optionally, a custom
// Sink. Passing a nil sink installs the default buffer-appending sink
// backed by pduBuffer; pduBuffer must be non-empty in that case, mirroring
// the source's BUFFER_TOO_SMALL-at-Init behavior (§4.2).
func NewDecoder(pduBuffer []byte, crc CRCFunc, sink Sink) (*Decoder, Return) {
	d := &Decoder{crc: crc}

	if sink != nil {
		d.sink = sink
	} else {
		if len(pduBuffer) == 0 {
			return nil, ErrBufferTooSmall
		}
		d.defaultSink = &defaultSink{buf: newFrameBuffer(pduBuffer)}
		d.sink = d.defaultSink
	}

	d.resetOnNextByte = true
	return d, OK
}

// Stats returns a snapshot of lifetime decoder counters.
func (d *Decoder) Stats() DecoderStats {
	return d.stats
}

// State returns the decoder's terminal/in-progress machine state.
func (d *Decoder) State() DecoderState {
	return d.state
}

// ControlByte returns the control byte of the most recently started frame,
// valid once the decoder has moved past DecoderExpectFlags.
func (d *Decoder) ControlByte() byte {
	return d.controlBits
}

// Sequence returns the sequence byte of the most recently started frame,
// valid once the decoder has moved past DecoderExpectSequence.
func (d *Decoder) Sequence() byte {
	return d.sequence
}

// Payload returns the decoded payload accumulated so far by the default
// sink. It panics if a custom Sink was installed, since there is then no
// buffer for the decoder itself to own.
func (d *Decoder) Payload() []byte {
	if d.defaultSink == nil {
		panic("hdlc: Payload() requires the default sink")
	}
	return d.defaultSink.buf.Bytes()
}

func (d *Decoder) startFrame() {
	d.ring.reset()
	d.controlBits = 0
	d.sequence = 0
	d.state = DecoderExpectFlags
	d.resetOnNextByte = false
	d.expectingEscape = false
	d.overflowed = false
	if d.defaultSink != nil {
		d.defaultSink.buf.Reset()
	}
}

// DecodeByte advances the state machine by exactly one byte (§4.2.1).
func (d *Decoder) DecodeByte(b byte) Return {
	if b == FrameMarker {
		return d.handleDelimiter()
	}

	if d.resetOnNextByte {
		d.startFrame()
	}

	if b == EscapeMarker {
		d.expectingEscape = true
		return OK
	}

	decoded := b
	if d.expectingEscape {
		d.expectingEscape = false
		switch b {
		case EscapedFrame:
			decoded = FrameMarker
		case EscapedEscape:
			decoded = EscapeMarker
		default:
			d.stats.InvalidEscapes++
			d.state = DecoderInvalidEscape
			d.resetOnNextByte = true
			return ErrGeneric
		}
	}

	crc := d.ring.current()
	crc = d.crc(crc, []byte{decoded})
	d.stats.CRCCalls++
	d.ring.push(crc)

	return d.stepStateMachine(decoded)
}

func (d *Decoder) handleDelimiter() Return {
	var result Return = OK

	switch {
	case d.resetOnNextByte:
		// idle/leading delimiter, or one following an already-rejected
		// frame (which rearms resetOnNextByte itself): stay armed.

	case d.overflowed:
		d.state = DecoderBufferTooSmall
		result = ErrBufferTooSmall

	case d.bufferedLen() >= minFrameBufferedBytes:
		loBuf, hiBuf := d.retractTrailingCRC()
		frameCRC := uint16(hiBuf)<<8 | uint16(loBuf)

		if frameCRC == d.ring.frameCRC() {
			d.state = DecoderCompleteGood
			d.stats.GoodFrames++
			result = Complete
		} else {
			d.state = DecoderCompleteBadCRC
			d.stats.BadCRC++
			result = ErrGeneric
		}

	default:
		d.stats.UndersizeFrames++
	}

	d.resetOnNextByte = true
	return result
}

// bufferedLen reports how many decoded bytes are currently held by the
// default sink. A custom Sink is responsible for its own bookkeeping and
// is assumed never "too small" at the framing layer (it decides for
// itself via its WriteByte return value).
func (d *Decoder) bufferedLen() int {
	if d.defaultSink == nil {
		return minFrameBufferedBytes
	}
	return d.defaultSink.buf.Len()
}

// retractTrailingCRC pulls the last two bytes written into the default
// sink's buffer back out, returning them as (low, high) the way they were
// appended (§4.2.1(a)). With a custom sink there is nothing to retract;
// the caller is expected to have tracked the trailing bytes itself if it
// needs them, since it owns its own storage.
func (d *Decoder) retractTrailingCRC() (lo, hi byte) {
	if d.defaultSink == nil {
		return 0, 0
	}
	buf := d.defaultSink.buf.Bytes()
	n := len(buf)
	lo = buf[n-1]
	hi = buf[n-2]
	d.defaultSink.buf.Retract(2)
	return lo, hi
}

func (d *Decoder) stepStateMachine(decoded byte) Return {
	switch d.state {
	case DecoderExpectSequence:
		d.sequence = decoded
		d.state = DecoderExpectPDU
		return OK

	case DecoderExpectFlags:
		d.controlBits = decoded

		if d.controlBits&ControlFrameValid == 0 {
			d.state = DecoderNoValidFrameBit
			d.resetOnNextByte = true
			return ErrInvalidFrame
		}
		if d.controlBits&ControlFrameIsAck != 0 || d.controlBits&ControlFrameEncrypted != 0 {
			d.resetOnNextByte = true
			return ErrCRCEngineFailure
		}

		d.state = DecoderExpectSequence
		return OK

	case DecoderExpectPDU:
		result := d.sink.WriteByte(decoded)
		if result == ErrBufferTooSmall {
			d.overflowed = true
		}
		return result

	default:
		d.resetOnNextByte = true
		return ErrCRCEngineFailure
	}
}

// DecodeBuffer calls DecodeByte for each byte of buf, stopping early if a
// frame completes. It returns Complete if a frame completed during the
// call, or ErrGeneric otherwise - the specific cause (bad CRC, invalid
// escape, rejected control byte, buffer overflow, or simply a stream that
// ended mid-frame) is masked here and must be read back from State()/
// Stats() instead (§4.2).
func (d *Decoder) DecodeBuffer(buf []byte) Return {
	for _, b := range buf {
		if d.DecodeByte(b) == Complete {
			return Complete
		}
	}
	return ErrGeneric
}
