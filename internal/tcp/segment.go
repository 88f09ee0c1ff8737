package tcp

import (
	"encoding/binary"
	"fmt"

	"github.com/gopherlabs/mintcp/internal/ipv4"
	"github.com/gopherlabs/mintcp/internal/wrap"
)

// Wire-format flag bits (low byte of the flags field).
const (
	flagFIN = 0x01
	flagSYN = 0x02
	flagRST = 0x04
	flagACK = 0x10
)

// HeaderLen is the fixed 20-byte header length; this implementation never
// emits or expects TCP options, so data offset is always 5 32-bit words.
const HeaderLen = 20
const headerLen = HeaderLen
const dataOffsetWords = 5

// SenderMessage carries the sequencing half of a segment: the sender's
// seqno, whether it opens (SYN) or closes (FIN) the stream, and any payload.
type SenderMessage struct {
	Seqno   wrap.Wrap32
	SYN     bool
	Payload []byte
	FIN     bool
}

// SequenceLength returns how many sequence numbers this message consumes.
func (m SenderMessage) SequenceLength() int {
	n := len(m.Payload)
	if m.SYN {
		n++
	}
	if m.FIN {
		n++
	}
	return n
}

// ReceiverMessage carries the acknowledgement half of a segment. Ackno is
// nil when the segment carries no valid acknowledgement.
type ReceiverMessage struct {
	Ackno      *wrap.Wrap32
	WindowSize uint16
}

// Segment is the full wire unit exchanged between two endpoints: sender
// fields, receiver fields, and a reset flag, sharing one 20-byte header.
type Segment struct {
	SrcPort  uint16
	DstPort  uint16
	Sender   SenderMessage
	Receiver ReceiverMessage
	Reset    bool
}

// ParseSegment decodes a wire segment and verifies its checksum against the
// supplied pseudo-header checksum seed (see ipv4.PseudoHeaderChecksum).
// Segments that fail the checksum are reported as an error; callers must
// discard them silently per the adapter contract rather than propagate it.
func ParseSegment(data []byte, pseudoChecksum uint32) (Segment, error) {
	if len(data) < headerLen {
		return Segment{}, fmt.Errorf("tcp: segment too short: %d bytes", len(data))
	}
	if ipv4.ChecksumWithInitial(data, pseudoChecksum) != 0 {
		return Segment{}, fmt.Errorf("tcp: checksum mismatch")
	}

	var seg Segment
	seg.SrcPort = binary.BigEndian.Uint16(data[0:2])
	seg.DstPort = binary.BigEndian.Uint16(data[2:4])
	seg.Sender.Seqno = wrap.New(binary.BigEndian.Uint32(data[4:8]))
	ackno := wrap.New(binary.BigEndian.Uint32(data[8:12]))

	dataOffset := data[12] >> 4
	flags := data[13]
	if flags&flagACK != 0 {
		seg.Receiver.Ackno = &ackno
	}
	seg.Reset = flags&flagRST != 0
	seg.Sender.SYN = flags&flagSYN != 0
	seg.Sender.FIN = flags&flagFIN != 0

	seg.Receiver.WindowSize = binary.BigEndian.Uint16(data[14:16])
	// data[16:18] is the checksum field, already verified above.
	// data[18:20] is the unused urgent pointer.

	if dataOffset < dataOffsetWords {
		return Segment{}, fmt.Errorf("tcp: data offset %d below minimum", dataOffset)
	}
	headerTotal := int(dataOffset) * 4
	if len(data) < headerTotal {
		return Segment{}, fmt.Errorf("tcp: truncated header, want %d bytes", headerTotal)
	}
	seg.Sender.Payload = append([]byte(nil), data[headerTotal:]...)

	return seg, nil
}

// Serialize encodes the segment into wire bytes, computing and filling in
// the checksum using pseudoChecksum as the seed.
func (s Segment) Serialize(pseudoChecksum uint32) []byte {
	buf := make([]byte, headerLen+len(s.Sender.Payload))

	binary.BigEndian.PutUint16(buf[0:2], s.SrcPort)
	binary.BigEndian.PutUint16(buf[2:4], s.DstPort)
	binary.BigEndian.PutUint32(buf[4:8], s.Sender.Seqno.Raw())

	var ackno uint32
	var flags byte
	if s.Receiver.Ackno != nil {
		ackno = s.Receiver.Ackno.Raw()
		flags |= flagACK
	}
	binary.BigEndian.PutUint32(buf[8:12], ackno)

	buf[12] = dataOffsetWords << 4
	if s.Reset {
		flags |= flagRST
	}
	if s.Sender.SYN {
		flags |= flagSYN
	}
	if s.Sender.FIN {
		flags |= flagFIN
	}
	buf[13] = flags

	binary.BigEndian.PutUint16(buf[14:16], s.Receiver.WindowSize)
	binary.BigEndian.PutUint16(buf[16:18], 0) // checksum, filled below
	binary.BigEndian.PutUint16(buf[18:20], 0) // urgent pointer, unused

	copy(buf[headerLen:], s.Sender.Payload)

	check := ipv4.ChecksumWithInitial(buf, pseudoChecksum)
	binary.BigEndian.PutUint16(buf[16:18], check)

	return buf
}
