// Package rollhash implements the 31-multiplier rolling string hash
// (h = h*31 + c, wrapping at 32 bits) used to fingerprint dashboard
// document snapshots.
//
// The digest is deliberately weak: it is a cheap change detector, not a
// content address. Two snapshots with equal digests are very likely, but
// not certainly, identical.
package rollhash

import (
	"encoding/binary"
	"hash"
	"strconv"
)

const (
	// Size is the length, in bytes, of a rolling hash digest.
	Size = 4

	// BlockSize is the preferred input block size for the hash, in bytes.
	BlockSize = 1

	// multiplier is the per-byte polynomial base.
	multiplier = 31
)

// digest is the internal state of a rolling hash computation. The state is
// kept as int32 so that overflow wraps exactly like a signed 32-bit register.
type digest struct {
	h int32
}

// New returns a new hash.Hash32 computing the rolling hash.
func New() hash.Hash32 {
	return &digest{}
}

// Write absorbs more data into the running hash.
// It always returns len(p), nil.
func (d *digest) Write(p []byte) (int, error) {
	h := d.h
	for _, b := range p {
		h = h*multiplier + int32(b)
	}

	d.h = h

	return len(p), nil
}

// Sum appends the current hash (big-endian) to b and returns the resulting
// slice. It does not change the underlying hash state.
func (d *digest) Sum(b []byte) []byte {
	var out [Size]byte
	binary.BigEndian.PutUint32(out[:], d.Sum32())

	return append(b, out[:]...)
}

// Sum32 returns the current hash as an unsigned 32-bit value.
func (d *digest) Sum32() uint32 {
	return uint32(d.h) //nolint:gosec // reinterpretation of the signed register is intentional
}

// Reset resets the hash to its initial state.
func (d *digest) Reset() {
	d.h = 0
}

// Size returns the number of bytes Sum will return.
func (d *digest) Size() int {
	return Size
}

// BlockSize returns the hash's underlying block size.
func (d *digest) BlockSize() int {
	return BlockSize
}

// String hashes s in one call.
func String(s string) int32 {
	d := &digest{}
	_, _ = d.Write([]byte(s))

	return d.h
}

// Base36 renders the absolute value of a signed digest in base 36, the
// compact form embedded in version tags.
func Base36(h int32) string {
	v := int64(h)
	if v < 0 {
		v = -v
	}

	return strconv.FormatInt(v, 36)
}
