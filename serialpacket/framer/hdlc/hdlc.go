package hdlc

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BertoldVdb/ahdlc/serialpacket/framer/framerinterface"
)

// Link is a packet framer that implements the AHDLC protocol, wrapping
// Encoder/Decoder with the stream-oriented, io.ReadWriter-based ergonomics
// the rest of this repository's framers expose (framerinterface.Framer).
type Link struct {
	port         io.ReadWriter
	maxPacketLen int
	crc          CRCFunc

	sendMu  sync.Mutex
	sendBuf []byte
	encoder *Encoder

	stats framerinterface.BaseStats
}

// NewHDLCFramer creates an AHDLC framer. options may supply
// framerinterface.OptionCRCFunc (a CRCFunc) and
// framerinterface.OptionMaxPacketLen (a positive int); both default
// sanely when absent.
func NewHDLCFramer(port io.ReadWriter, options *framerinterface.FramerOptions) (*Link, error) {
	crcFunc := DefaultCRC
	if value, ok := options.Get(framerinterface.OptionCRCFunc); ok {
		f, valid := value.(CRCFunc)
		if !valid {
			return nil, fmt.Errorf("hdlc: OptionCRCFunc value is not a CRCFunc")
		}
		crcFunc = f
	}

	maxPacketLen := options.GetInt(framerinterface.OptionMaxPacketLen, 256)
	if maxPacketLen <= 0 {
		return nil, fmt.Errorf("hdlc: maximum packet length must be positive")
	}

	s := &Link{
		port:         port,
		maxPacketLen: maxPacketLen,
		crc:          crcFunc,
		sendBuf:      make([]byte, (maxPacketLen+4)*2+2),
	}
	s.encoder = NewEncoder(s.sendBuf, s.crc)

	return s, nil
}

// SendPacket frames payload and writes it to the port using AHDLC framing.
func (s *Link) SendPacket(payload []byte) (int64, error) {
	if len(payload) > s.maxPacketLen {
		return 0, fmt.Errorf("hdlc: packet of %d bytes exceeds maximum length %d", len(payload), s.maxPacketLen)
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if r := s.encoder.NewFrame(); r != OK {
		return 0, r
	}
	if r := s.encoder.AddBuffer(payload); r != OK {
		return 0, r
	}

	framed := s.encoder.Bytes()
	n, err := s.port.Write(framed)

	if n > 0 {
		nu := uint64(n)
		iu := uint64(len(payload))
		if iu > nu {
			iu = nu
		}

		atomic.AddUint64(&s.stats.FramesSent, 1)
		atomic.AddUint64(&s.stats.BytesSent, iu)
		atomic.AddUint64(&s.stats.BytesSentEscaped, uint64(n))
	}

	return int64(n), err
}

// SetPort can be used to change the port used by the framer. It may not be
// executed concurrently with Run.
func (s *Link) SetPort(port io.ReadWriter) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.port = port

	return nil
}

// Run should be called to start the receiver process. It will only return
// on read errors (eg, port closed) or when receivedPacket returns an error.
func (s *Link) Run(receivedPacket framerinterface.FramerReceivedPacketHandler) error {
	decodeBuf := make([]byte, s.maxPacketLen+2)
	decoder, r := NewDecoder(decodeBuf, s.crc, nil)
	if r != OK {
		return r
	}

	var tmpBuf [512]byte
	isFirst := true
	oversized := false
	var firstByteTimestamp time.Time

	for {
		n, err := s.port.Read(tmpBuf[:])
		if err != nil {
			return err
		}

		for _, m := range tmpBuf[:n] {
			atomic.AddUint64(&s.stats.BytesReceivedEscaped, 1)

			if isFirst {
				firstByteTimestamp = time.Now()
				isFirst = false
			}

			result := decoder.DecodeByte(m)

			if result == ErrBufferTooSmall {
				oversized = true
			}

			if m != FrameMarker {
				continue
			}

			// result is deliberately generic on rejection (§4.2.1(a)); the
			// specific cause is read back from decoder.State() instead.
			switch {
			case result == Complete:
				atomic.AddUint64(&s.stats.BytesReceived, uint64(len(decoder.Payload())))

				if oversized {
					atomic.AddUint64(&s.stats.FramesReceivedOversized, 1)
				} else {
					atomic.AddUint64(&s.stats.FramesReceivedValid, 1)

					pkt := framerinterface.PacketMetadata{RxTime: firstByteTimestamp}
					if err := receivedPacket(decoder.Payload(), &pkt); err != nil {
						return err
					}
				}

			case decoder.State() == DecoderCompleteBadCRC:
				atomic.AddUint64(&s.stats.BytesReceived, uint64(len(decoder.Payload())))

				if oversized {
					atomic.AddUint64(&s.stats.FramesReceivedOversized, 1)
				} else {
					atomic.AddUint64(&s.stats.FramesReceivedWrongChecksum, 1)
				}

			case decoder.State() == DecoderBufferTooSmall:
				atomic.AddUint64(&s.stats.BytesReceived, uint64(len(decoder.Payload())))
				atomic.AddUint64(&s.stats.FramesReceivedOversized, 1)

			case result == OK:
				atomic.AddUint64(&s.stats.FramesReceivedZeroLength, 1)
			}

			isFirst = true
			oversized = false
		}
	}
}

// GetStats returns a safely accessed snapshot of the statistics.
func (s *Link) GetStats() framerinterface.BaseStats {
	return s.stats.CopyBaseStatsAtomic()
}
