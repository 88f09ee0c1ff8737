// Package wrap implements 32-bit wrapping sequence numbers: the conversion
// between an absolute 64-bit stream offset and the 32-bit value carried on
// the wire, with nearest-checkpoint disambiguation on the way back.
package wrap

// Wrap32 is a 32-bit value representing an offset from an arbitrary zero
// point, wrapping back to zero every 2^32 values.
type Wrap32 struct {
	raw uint32
}

// New constructs a Wrap32 from its raw 32-bit wire value.
func New(raw uint32) Wrap32 {
	return Wrap32{raw: raw}
}

// Wrap computes the Wrap32 for absolute offset n relative to zero: the low
// 32 bits of zero+n.
func Wrap(n uint64, zero Wrap32) Wrap32 {
	return Wrap32{raw: zero.raw + uint32(n)}
}

// Add returns the Wrap32 n positions after w.
func (w Wrap32) Add(n uint32) Wrap32 {
	return Wrap32{raw: w.raw + n}
}

// Raw returns the 32-bit wire value.
func (w Wrap32) Raw() uint32 {
	return w.raw
}

// Equal reports whether two Wrap32 values have the same raw wire value.
func (w Wrap32) Equal(other Wrap32) bool {
	return w.raw == other.raw
}

// Unwrap returns the absolute 64-bit sequence number that wraps to w, given
// the zero point and a checkpoint (another absolute sequence number known to
// be near the desired answer). Among the infinitely many absolute values
// that wrap to the same raw 32 bits, it returns the one closest to
// checkpoint. Never returns a value below zero.
func (w Wrap32) Unwrap(zero Wrap32, checkpoint uint64) uint64 {
	// delta is how far w's raw value sits ahead of (zero wrapped to
	// checkpoint's raw value), as a signed 32-bit step; applying that step
	// to checkpoint lands on the candidate nearest it. If that candidate
	// would be negative, the next one up (2^32 higher) is used instead.
	checkpointRaw := Wrap(checkpoint, zero).raw
	step := int32(w.raw - checkpointRaw)
	candidate := int64(checkpoint) + int64(step)
	if candidate < 0 {
		candidate += 1 << 32
	}
	return uint64(candidate)
}
