package ipv4

import (
	"bytes"
	"net"
	"testing"
)

func TestBuildParseRoundTrip(t *testing.T) {
	src := net.ParseIP("10.0.0.1").To4()
	dst := net.ParseIP("10.0.0.2").To4()
	payload := []byte("hello tcp")

	datagram := Build(src, dst, ProtoTCP, payload)

	hdr, gotPayload, err := Parse(datagram)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !hdr.Src.Equal(src) || !hdr.Dst.Equal(dst) {
		t.Fatalf("src/dst mismatch: got %s->%s", hdr.Src, hdr.Dst)
	}
	if hdr.Protocol != ProtoTCP {
		t.Fatalf("protocol = %d, want %d", hdr.Protocol, ProtoTCP)
	}
	if hdr.TTL != DefaultTTL {
		t.Fatalf("ttl = %d, want %d", hdr.TTL, DefaultTTL)
	}
	if !hdr.DF {
		t.Fatal("DF flag should be set")
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Fatalf("payload = %q, want %q", gotPayload, payload)
	}
}

func TestParseRejectsCorruptedChecksum(t *testing.T) {
	src := net.ParseIP("10.0.0.1").To4()
	dst := net.ParseIP("10.0.0.2").To4()
	datagram := Build(src, dst, ProtoTCP, []byte("x"))
	datagram[11] ^= 0xff // corrupt checksum byte

	if _, _, err := Parse(datagram); err == nil {
		t.Fatal("Parse should reject a corrupted header checksum")
	}
}

func TestChecksumZeroForSelfConsistentPacket(t *testing.T) {
	data := []byte{0x45, 0x00, 0x00, 0x14, 0, 0, 0x40, 0, 0x40, 0x06, 0, 0, 10, 0, 0, 1, 10, 0, 0, 2}
	check := Checksum(data)
	data[10], data[11] = byte(check>>8), byte(check)
	if Checksum(data) != 0 {
		t.Fatal("checksum of a packet containing its own correct checksum should fold to 0")
	}
}
