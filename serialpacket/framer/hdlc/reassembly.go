package hdlc

// Reassembler wraps a Decoder and joins consecutively frame_is_continued
// fragments into one logical message (SPEC_FULL §4.3). It is additive:
// the underlying Decoder's per-frame CRC and escaping semantics are
// untouched, and Reassembler only ever looks at COMPLETE events and the
// control/sequence bytes the Decoder already tracked for that frame.
type Reassembler struct {
	decoder *Decoder

	buf          frameBuffer
	haveFragment bool
	lastSequence byte
}

// NewReassembler wires a Reassembler to an existing Decoder and a
// caller-owned scratch buffer used to accumulate a logical message's
// fragments. The scratch buffer must be large enough to hold the sum of
// every fragment in the longest message the caller expects to receive.
func NewReassembler(decoder *Decoder, scratch []byte) *Reassembler {
	return &Reassembler{
		decoder: decoder,
		buf:     newFrameBuffer(scratch),
	}
}

// Feed decodes one more byte of the underlying stream. It returns Complete
// only once a full logical message - every fragment of it - is ready;
// mid-message fragment completions report OK instead of the Decoder's own
// Complete. Any other Decoder return propagates unchanged; a negative
// (error) return also aborts the reassembly in progress, while OK does not.
func (r *Reassembler) Feed(b byte) Return {
	result := r.decoder.DecodeByte(b)
	if result != Complete {
		if result < 0 {
			r.abort()
		}
		return result
	}

	seq := r.decoder.Sequence()
	continued := r.decoder.ControlByte()&ControlFrameContinued != 0

	if !r.haveFragment {
		r.buf.Reset()
	} else if seq != r.lastSequence+1 {
		// Sequence gap: the pending fragment can never be completed
		// (no retransmission, §1). Discard it and start fresh with the
		// frame that just completed.
		r.buf.Reset()
		r.haveFragment = false
	}

	for _, payloadByte := range r.decoder.Payload() {
		if !r.buf.TryAppend(payloadByte) {
			r.abort()
			return ErrBufferTooSmall
		}
	}

	r.lastSequence = seq

	if continued {
		r.haveFragment = true
		return OK
	}

	r.haveFragment = false
	return Complete
}

// Message returns the joined payload of the most recently completed
// logical message. The slice aliases the Reassembler's own scratch buffer
// and is only valid until the next Feed call that appends to it.
func (r *Reassembler) Message() []byte {
	return r.buf.Bytes()
}

func (r *Reassembler) abort() {
	r.buf.Reset()
	r.haveFragment = false
}
