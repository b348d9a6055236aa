package hdlc

import (
	"bytes"
	"testing"
)

func encodeFragment(t *testing.T, sequence byte, continued bool, payload []byte) []byte {
	t.Helper()

	var out [256]byte
	enc := NewEncoder(out[:], sumCRC)
	enc.stats.SequenceNumber = sequence
	enc.SetContinued(continued)

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

func TestReassemblerJoinsContinuedFragments(t *testing.T) {
	var stream []byte
	stream = append(stream, encodeFragment(t, 1, true, []byte("foo"))...)
	stream = append(stream, encodeFragment(t, 2, true, []byte("bar"))...)
	stream = append(stream, encodeFragment(t, 3, false, []byte("baz"))...)

	var pduBuf [64]byte
	dec, r := NewDecoder(pduBuf[:], sumCRC, nil)
	if r != OK {
		t.Fatalf("NewDecoder: %v", r)
	}

	var scratch [64]byte
	reasm := NewReassembler(dec, scratch[:])

	var got []byte
	for _, b := range stream {
		result := reasm.Feed(b)
		if result == Complete {
			got = append([]byte(nil), reasm.Message()...)
		} else if result < 0 {
			t.Fatalf("unexpected error during reassembly: %v", result)
		}
	}

	if !bytes.Equal(got, []byte("foobarbaz")) {
		t.Fatalf("message = %q, want %q", got, "foobarbaz")
	}
}

func TestReassemblerDiscardsOnSequenceGap(t *testing.T) {
	var stream []byte
	stream = append(stream, encodeFragment(t, 1, true, []byte("foo"))...)
	// sequence 2 is skipped entirely; frame 3 is not continued.
	stream = append(stream, encodeFragment(t, 3, false, []byte("baz"))...)

	var pduBuf [64]byte
	dec, r := NewDecoder(pduBuf[:], sumCRC, nil)
	if r != OK {
		t.Fatalf("NewDecoder: %v", r)
	}

	var scratch [64]byte
	reasm := NewReassembler(dec, scratch[:])

	var got []byte
	for _, b := range stream {
		result := reasm.Feed(b)
		if result == Complete {
			got = append([]byte(nil), reasm.Message()...)
		}
	}

	if !bytes.Equal(got, []byte("baz")) {
		t.Fatalf("message = %q, want %q (fragment from frame 1 should be discarded)", got, "baz")
	}
}

func TestReassemblerSingleUnfragmentedFrame(t *testing.T) {
	stream := encodeFragment(t, 1, false, []byte("whole"))

	var pduBuf [64]byte
	dec, r := NewDecoder(pduBuf[:], sumCRC, nil)
	if r != OK {
		t.Fatalf("NewDecoder: %v", r)
	}

	var scratch [64]byte
	reasm := NewReassembler(dec, scratch[:])

	var got []byte
	for _, b := range stream {
		if reasm.Feed(b) == Complete {
			got = append([]byte(nil), reasm.Message()...)
		}
	}

	if !bytes.Equal(got, []byte("whole")) {
		t.Fatalf("message = %q, want %q", got, "whole")
	}
}
