// Package codec encodes and decodes the persisted governance entities.
//
// Every encoded entity starts with a fixed 8-byte discriminator identifying
// its shape, followed by its fields in a stable order: integers are
// little-endian, strings and vectors carry a u32 length prefix, public keys
// and addresses are raw 32 bytes. New fields must be appended, never
// inserted, so older buffers keep decoding.
//
// Account slots are pre-allocated larger than the encoded payload, so
// decoders must ignore trailing zero padding beyond the last field. Decoding
// never mutates the input buffer and never panics on hostile input.
package codec

import (
	"crypto/sha256"
	"errors"
)

var (
	// ErrShapeMismatch means the discriminator does not match the expected
	// entity shape.
	ErrShapeMismatch = errors.New("codec: discriminator mismatch")
	// ErrTruncated means the buffer is shorter than the shape's fixed header.
	ErrTruncated = errors.New("codec: buffer truncated")
	// ErrCorrupt means a length prefix claims more bytes than remain.
	ErrCorrupt = errors.New("codec: corrupt length prefix")
)

// Discriminators follow the Anchor account-tag convention:
// sha256("account:<Name>")[0:8].
var (
	DiscriminatorRegistry    = discriminator("Registry")
	DiscriminatorGroup       = discriminator("Group")
	DiscriminatorProposal    = discriminator("Proposal")
	DiscriminatorUserAccount = discriminator("UserAccount")
)

const discriminatorLen = 8

func discriminator(name string) [discriminatorLen]byte {
	sum := sha256.Sum256([]byte("account:" + name))
	var d [discriminatorLen]byte
	copy(d[:], sum[:discriminatorLen])
	return d
}

func checkDiscriminator(buf []byte, want [discriminatorLen]byte) error {
	if len(buf) < discriminatorLen {
		return ErrTruncated
	}
	for i := 0; i < discriminatorLen; i++ {
		if buf[i] != want[i] {
			return ErrShapeMismatch
		}
	}
	return nil
}
