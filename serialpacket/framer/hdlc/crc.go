package hdlc

import "github.com/sigurn/crc16"

// defaultCRCTable backs DefaultCRC. CRC-16/XMODEM is used for the same
// reason the teacher's serialpacket package picked a sigurn/crc8 table for
// its own link layer: a well-known table from the same author's sibling
// package, rather than a hand-rolled polynomial.
var defaultCRCTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// DefaultCRC is the CRCFunc used when a Link is not given one explicitly.
// It is an ordinary incremental CRC-16 update; callers wanting a different
// kernel (or the original firmware's exact one, which is not reproducible
// from this package's reference material alone) can plug in their own
// CRCFunc instead.
func DefaultCRC(acc uint16, buf []byte) uint16 {
	return crc16.Update(acc, buf, defaultCRCTable)
}
