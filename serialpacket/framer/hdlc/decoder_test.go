package hdlc

import (
	"bytes"
	"testing"
)

// encodeFrame builds one complete framed packet with an explicit control
// byte and sequence number, for tests that need to control those directly
// rather than letting the encoder assign them.
func encodeFrame(t *testing.T, crc CRCFunc, control, sequence byte, payload []byte) []byte {
	t.Helper()

	var out [256]byte
	enc := NewEncoder(out[:], crc)
	enc.controlBits = control
	enc.stats.SequenceNumber = sequence

	if r := enc.NewFrame(); r != OK {
		t.Fatalf("NewFrame: %v", r)
	}
	if r := enc.AddBuffer(payload); r != OK {
		t.Fatalf("AddBuffer: %v", r)
	}

	framed := make([]byte, len(enc.Bytes()))
	copy(framed, enc.Bytes())
	return framed
}

func TestDecoderRoundTrip(t *testing.T) {
	frame := encodeFrame(t, sumCRC, ControlFrameValid, 0x01, []byte("hello hdlc"))

	var pduBuf [64]byte
	dec, r := NewDecoder(pduBuf[:], sumCRC, nil)
	if r != OK {
		t.Fatalf("NewDecoder: %v", r)
	}

	if result := dec.DecodeBuffer(frame); result != Complete {
		t.Fatalf("result = %v, want Complete", result)
	}
	if !bytes.Equal(dec.Payload(), []byte("hello hdlc")) {
		t.Fatalf("payload = %q, want %q", dec.Payload(), "hello hdlc")
	}
	if dec.Sequence() != 0x01 {
		t.Errorf("sequence = %#x, want 0x01", dec.Sequence())
	}
}

func TestDecoderPaddedStartDelimiters(t *testing.T) {
	frame := encodeFrame(t, sumCRC, ControlFrameValid, 0x01, []byte("hello"))
	padded := append(bytes.Repeat([]byte{FrameMarker}, 10), frame...)

	var pduBuf [64]byte
	dec, r := NewDecoder(pduBuf[:], sumCRC, nil)
	if r != OK {
		t.Fatalf("NewDecoder: %v", r)
	}

	if result := dec.DecodeBuffer(padded); result != Complete {
		t.Fatalf("result = %v, want Complete", result)
	}
	if !bytes.Equal(dec.Payload(), []byte("hello")) {
		t.Fatalf("payload = %q, want %q", dec.Payload(), "hello")
	}
	if dec.Stats().BadCRC != 0 {
		t.Errorf("BadCRC = %d, want 0", dec.Stats().BadCRC)
	}
}

func TestDecoderSharedDelimiterSeparation(t *testing.T) {
	const n = 4

	var stream []byte
	for i := 0; i < n; i++ {
		frame := encodeFrame(t, sumCRC, ControlFrameValid, byte(i), []byte{byte('A' + i)})
		if i == 0 {
			stream = append(stream, frame...)
		} else {
			// Each frame's opening delimiter is the previous frame's
			// closing delimiter; drop the duplicate.
			stream = append(stream, frame[1:]...)
		}
	}

	var pduBuf [64]byte
	dec, r := NewDecoder(pduBuf[:], sumCRC, nil)
	if r != OK {
		t.Fatalf("NewDecoder: %v", r)
	}

	completions := 0
	for _, b := range stream {
		if dec.DecodeByte(b) == Complete {
			completions++
		}
	}

	if completions != n {
		t.Fatalf("completions = %d, want %d", completions, n)
	}
}

func TestDecoderCorruptedByteThenResync(t *testing.T) {
	good := encodeFrame(t, sumCRC, ControlFrameValid, 0x01, []byte("payload"))

	corrupted := append([]byte(nil), good...)
	mid := len(corrupted) / 2
	corrupted[mid] ^= 0xFF
	for corrupted[mid] == FrameMarker || corrupted[mid] == EscapeMarker {
		corrupted[mid] ^= 0x01
	}

	var pduBuf [64]byte
	dec, r := NewDecoder(pduBuf[:], sumCRC, nil)
	if r != OK {
		t.Fatalf("NewDecoder: %v", r)
	}

	if result := dec.DecodeBuffer(corrupted); result != ErrGeneric {
		t.Fatalf("corrupted frame result = %v, want ErrGeneric", result)
	}
	if dec.State() != DecoderCompleteBadCRC {
		t.Errorf("state = %v, want DecoderCompleteBadCRC", dec.State())
	}
	if dec.Stats().BadCRC != 1 {
		t.Errorf("BadCRC count = %d, want 1", dec.Stats().BadCRC)
	}
	if dec.Stats().GoodFrames != 0 {
		t.Errorf("GoodFrames = %d, want 0", dec.Stats().GoodFrames)
	}

	good2 := encodeFrame(t, sumCRC, ControlFrameValid, 0x02, []byte("payload2"))
	if result := dec.DecodeBuffer(good2); result != Complete {
		t.Fatalf("resync result = %v, want Complete", result)
	}
	if !bytes.Equal(dec.Payload(), []byte("payload2")) {
		t.Fatalf("resync payload = %q, want %q", dec.Payload(), "payload2")
	}
}

func TestDecoderInvalidEscapeSequence(t *testing.T) {
	frame := encodeFrame(t, sumCRC, ControlFrameValid, 0x01, []byte("x"))

	var pduBuf [64]byte
	dec, r := NewDecoder(pduBuf[:], sumCRC, nil)
	if r != OK {
		t.Fatalf("NewDecoder: %v", r)
	}

	if result := dec.DecodeByte(FrameMarker); result != OK {
		t.Fatalf("opening delimiter = %v, want OK", result)
	}
	if result := dec.DecodeByte(EscapeMarker); result != OK {
		t.Fatalf("escape marker = %v, want OK", result)
	}
	// A byte that is neither EscapedFrame nor EscapedEscape, placed where a
	// control byte would normally be.
	if result := dec.DecodeByte(0x00); result != ErrGeneric {
		t.Fatalf("bad escape byte = %v, want ErrGeneric", result)
	}
	if dec.Stats().InvalidEscapes != 1 {
		t.Errorf("InvalidEscapes = %d, want 1", dec.Stats().InvalidEscapes)
	}

	// resetOnNextByte is armed immediately on rejection: the very next byte,
	// not this frame's own closing delimiter, restarts frame parsing.
	if result := dec.DecodeBuffer(frame); result != Complete {
		t.Fatalf("resync after invalid escape = %v, want Complete", result)
	}
	if !bytes.Equal(dec.Payload(), []byte("x")) {
		t.Fatalf("resync payload = %q, want %q", dec.Payload(), "x")
	}
}

func TestDecoderRejectsFrameValidUnset(t *testing.T) {
	frame := encodeFrame(t, sumCRC, ControlFrameValid, 0x01, []byte("x"))
	frame[1] = 0x00 // clear frame_valid in the control byte

	var pduBuf [64]byte
	dec, r := NewDecoder(pduBuf[:], sumCRC, nil)
	if r != OK {
		t.Fatalf("NewDecoder: %v", r)
	}

	if result := dec.DecodeByte(frame[0]); result != OK {
		t.Fatalf("opening delimiter = %v, want OK", result)
	}
	if result := dec.DecodeByte(frame[1]); result != ErrInvalidFrame {
		t.Fatalf("control byte = %v, want ErrInvalidFrame", result)
	}

	// resetOnNextByte is armed immediately on rejection: the very next byte
	// restarts frame parsing rather than waiting for this frame's own
	// closing delimiter.
	good := encodeFrame(t, sumCRC, ControlFrameValid, 0x02, []byte("y"))
	if result := dec.DecodeBuffer(good); result != Complete {
		t.Fatalf("resync after rejected control byte = %v, want Complete", result)
	}
	if !bytes.Equal(dec.Payload(), []byte("y")) {
		t.Fatalf("resync payload = %q, want %q", dec.Payload(), "y")
	}
}

func TestDecoderRejectsAckAndEncryptedControlBits(t *testing.T) {
	for _, bit := range []byte{ControlFrameIsAck, ControlFrameEncrypted} {
		frame := []byte{FrameMarker, ControlFrameValid | bit, 0x00, 0x00, 0x00, FrameMarker}

		var pduBuf [64]byte
		dec, r := NewDecoder(pduBuf[:], sumCRC, nil)
		if r != OK {
			t.Fatalf("NewDecoder: %v", r)
		}

		if result := dec.DecodeByte(frame[0]); result != OK {
			t.Fatalf("control bit %#x: opening delimiter = %v, want OK", bit, result)
		}
		if result := dec.DecodeByte(frame[1]); result != ErrCRCEngineFailure {
			t.Errorf("control bit %#x: control byte = %v, want ErrCRCEngineFailure", bit, result)
		}

		// resetOnNextByte is armed immediately on rejection: the very next
		// byte restarts frame parsing.
		good := encodeFrame(t, sumCRC, ControlFrameValid, 0x01, []byte("z"))
		if result := dec.DecodeBuffer(good); result != Complete {
			t.Errorf("control bit %#x: resync = %v, want Complete", bit, result)
		}
	}
}

func TestDecoderFrameTooSmall(t *testing.T) {
	frame := []byte{FrameMarker, ControlFrameValid, FrameMarker}

	var pduBuf [64]byte
	dec, r := NewDecoder(pduBuf[:], sumCRC, nil)
	if r != OK {
		t.Fatalf("NewDecoder: %v", r)
	}

	if result := dec.DecodeBuffer(frame); result != ErrGeneric {
		t.Fatalf("result = %v, want ErrGeneric", result)
	}
	if dec.Stats().UndersizeFrames != 1 {
		t.Errorf("UndersizeFrames = %d, want 1", dec.Stats().UndersizeFrames)
	}
}

// TestDecoderFrameTooSmallWithOneBufferedByte covers a one-byte PDU body
// (short of the two trailing CRC bytes a real frame always carries): the
// closing delimiter must be treated as "frame too small", not as a frame
// worth retracting a CRC out of, since there is no second byte to retract.
func TestDecoderFrameTooSmallWithOneBufferedByte(t *testing.T) {
	frame := []byte{FrameMarker, ControlFrameValid, 0x01, 'x', FrameMarker}

	var pduBuf [64]byte
	dec, r := NewDecoder(pduBuf[:], sumCRC, nil)
	if r != OK {
		t.Fatalf("NewDecoder: %v", r)
	}

	if result := dec.DecodeBuffer(frame); result != ErrGeneric {
		t.Fatalf("result = %v, want ErrGeneric", result)
	}
	if dec.Stats().UndersizeFrames != 1 {
		t.Errorf("UndersizeFrames = %d, want 1", dec.Stats().UndersizeFrames)
	}

	good := encodeFrame(t, sumCRC, ControlFrameValid, 0x02, []byte("ok"))
	if result := dec.DecodeBuffer(good); result != Complete {
		t.Fatalf("resync after undersize frame = %v, want Complete", result)
	}
}

func TestDecoderOverflowContainment(t *testing.T) {
	oversized := encodeFrame(t, sumCRC, ControlFrameValid, 0x01, []byte("this payload is far too long"))

	var pduBuf [4]byte // too small to hold the payload above
	dec, r := NewDecoder(pduBuf[:], sumCRC, nil)
	if r != OK {
		t.Fatalf("NewDecoder: %v", r)
	}

	if result := dec.DecodeBuffer(oversized); result != ErrGeneric {
		t.Fatalf("oversized frame result = %v, want ErrGeneric", result)
	}
	if dec.State() != DecoderBufferTooSmall {
		t.Fatalf("state = %v, want DecoderBufferTooSmall", dec.State())
	}

	good := encodeFrame(t, sumCRC, ControlFrameValid, 0x02, []byte("ok"))
	if result := dec.DecodeBuffer(good); result != Complete {
		t.Fatalf("subsequent good frame result = %v, want Complete", result)
	}
}
