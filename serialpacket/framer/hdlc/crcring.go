package hdlc

// crcRing is the 3-slot CRC snapshot ring the decoder uses to "unwind" the
// running CRC past the two trailing CRC bytes, which look exactly like
// payload until the closing delimiter confirms they were not (§4.2.1(e)).
//
// Ported directly from decoderPushCRC/decoderGetCurrentCRC/
// decoderGetFrameCRC in the original frame_layer.h: push advances the ring
// index and stores the new snapshot there; frameCRC reads back the
// snapshot from three pushes ago, i.e. the value the running CRC held
// immediately before the two CRC bytes were folded in.
type crcRing struct {
	slots [3]uint16
	index int
}

func (r *crcRing) reset() {
	r.slots = [3]uint16{}
	r.index = 0
}

// push records the CRC accumulator after folding in the most recently
// decoded byte.
func (r *crcRing) push(crc uint16) {
	r.index++
	if r.index > 2 {
		r.index = 0
	}
	r.slots[r.index] = crc
}

// current returns the snapshot the next push will be computed from.
func (r *crcRing) current() uint16 {
	return r.slots[r.index]
}

// frameCRC returns the snapshot from three pushes ago: the CRC value just
// before the two trailing CRC bytes were folded in.
func (r *crcRing) frameCRC() uint16 {
	switch r.index {
	case 0:
		return r.slots[1]
	case 1:
		return r.slots[2]
	case 2:
		return r.slots[0]
	default:
		return 0
	}
}
