// Package hdlc implements the AHDLC-style framing codec: a byte-stuffed,
// CRC-16 checked, delimiter-resynchronizing framer for a point-to-point
// byte stream such as a UART.
package hdlc

import "errors"

// Wire constants. These are never stuffed themselves; every other byte
// between a pair of FrameMarker bytes is subject to byte stuffing.
const (
	FrameMarker   byte = 0x7E // frame delimiter (both start and end)
	EscapeMarker  byte = 0x7D // escape prefix within a frame
	EscapedFrame  byte = 0x5E // payload byte that decodes to FrameMarker
	EscapedEscape byte = 0x5D // payload byte that decodes to EscapeMarker
)

// Control byte bit masks (§3, §9). frame_valid guarantees the control byte
// is never 0x00, which is what lets a decoder tell a real control byte
// apart from an all-zero gap.
const (
	ControlAckRequested   byte = 0x01
	ControlFrameIsAck     byte = 0x02
	ControlFrameEncrypted byte = 0x04
	ControlFrameContinued byte = 0x08
	ControlFrameValid     byte = 0x40
	ControlExtendedBits   byte = 0x80
)

// minFrameBufferedBytes is the number of bytes that must have accumulated
// in the PDU buffer (payload plus the two trailing CRC bytes, which are
// indistinguishable from payload until the closing delimiter arrives)
// before a closing delimiter is treated as a real frame rather than
// "frame too small". A frame with zero real payload still buffers exactly
// these two CRC bytes, so this is also the minimum for a valid frame.
const minFrameBufferedBytes = 2

// initialCRCValue is the accumulator value handed to the CRC callback for
// the first byte of every frame. It is a protocol constant, not a runtime
// option.
const initialCRCValue uint16 = 0

// Return is the codec's operation result. Zero means "keep going", positive
// means "a frame just completed", negative means "rejected".
type Return int

// Return codes. Negative values are failures, 0 is the steady-state
// "continue" result, 1 means a frame was just completed.
const (
	ErrInvalidFrame     Return = -6
	ErrBadCRC           Return = -5
	ErrGeneric          Return = -4
	ErrAckRequestSet    Return = -3
	ErrCRCEngineFailure Return = -2 // also used for unimplemented ack/encrypted modes
	ErrBufferTooSmall   Return = -1
	OK                  Return = 0
	Complete            Return = 1
)

func (r Return) String() string {
	switch r {
	case ErrInvalidFrame:
		return "invalid frame"
	case ErrBadCRC:
		return "bad crc"
	case ErrGeneric:
		return "error"
	case ErrAckRequestSet:
		return "ack request set"
	case ErrCRCEngineFailure:
		return "crc engine failure"
	case ErrBufferTooSmall:
		return "buffer too small"
	case OK:
		return "ok"
	case Complete:
		return "complete"
	default:
		return "unknown"
	}
}

// Error adapts a Return into the standard error interface, so the codec's
// entry points can also be used as ordinary Go functions returning error.
func (r Return) Error() string { return r.String() }

// ErrUnknownType reports an unsupported framer type. framer.NewFramer does
// not return it; it returns its own framer.ErrorUnknown.
var ErrUnknownType = errors.New("framer type is not supported")

// CRCFunc is the CRC-16 kernel contract (§6). It is always called with
// length 1 inside this package; the initial accumulator for a fresh frame
// is always 0. Implementations must be pure with respect to acc and must
// not retain buf past the call.
type CRCFunc func(acc uint16, buf []byte) uint16

// Sink receives decoded payload bytes one at a time (§4.2.1(g), §9). It is
// the Go expression of the source's decoder_write_callback: a one-method
// capability instead of an opaque-handle function pointer.
type Sink interface {
	WriteByte(b byte) Return
}

// EncoderState is the encoder's machine state (§3). Values mirror the
// original's ENCODE_* enum, where a negative state means "error, reject
// further bytes" (checked as encoder_state < 0 in the source).
type EncoderState int

const (
	EncoderBufferTooSmall EncoderState = -1
	EncoderReady          EncoderState = 0
	EncoderFinalized      EncoderState = 1
)

// DecoderState is the decoder's per-frame machine state (§3). Besides the
// states the original spec names, this also tracks terminal states for
// diagnostics after a frame is rejected or completed.
type DecoderState int

const (
	DecoderExpectFlags DecoderState = iota
	DecoderExpectSequence
	DecoderExpectPDU
	DecoderCompleteGood
	DecoderCompleteBadCRC
	DecoderInvalidEscape
	DecoderBufferTooSmall
	DecoderNoValidFrameBit
)

// EncoderStats counts lifetime encoder activity. All fields are safe to
// read between calls; the encoder itself is not safe for concurrent use.
type EncoderStats struct {
	FramesEncoded  uint64
	CRCCalls       uint64
	SequenceNumber uint8
}

// DecoderStats counts lifetime decoder activity, broken down by the
// terminal cause (§3, §7).
type DecoderStats struct {
	GoodFrames      uint64
	BadCRC          uint64
	InvalidEscapes  uint64
	UndersizeFrames uint64
	CRCCalls        uint64
}
