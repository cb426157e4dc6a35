// Package identity derives reproducible ed25519 keypairs for external user
// identifiers. No private key material is ever stored: the same external id
// and process secret always re-derive the same keypair, and without the
// secret the keypair cannot be guessed from the external id.
package identity

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"hash"

	"golang.org/x/crypto/sha3"

	"dao-governance/models"
)

// domainTag separates this derivation from any other use of the secret.
const domainTag = "dao-governance:user-keypair:v1"

// MinSecretLen is the minimum accepted secret length in bytes. A short
// secret is a configuration error raised at startup, not a per-call error.
const MinSecretLen = 32

var ErrWeakSecret = errors.New("identity: secret seed missing or shorter than 32 bytes")

// Deriver turns external identifiers into keypairs. It is a pure function
// of its inputs and safe for concurrent use.
type Deriver struct {
	secret []byte
}

func NewDeriver(secret []byte) (*Deriver, error) {
	if len(secret) < MinSecretLen {
		return nil, fmt.Errorf("%w (got %d bytes)", ErrWeakSecret, len(secret))
	}
	d := &Deriver{secret: make([]byte, len(secret))}
	copy(d.secret, secret)
	return d, nil
}

// Keypair derives the keypair bound to externalID. The seed is the SHA3-256
// digest of the domain tag, the external id and the secret, each
// length-delimited so no two inputs can collide across field boundaries.
func (d *Deriver) Keypair(externalID string) (models.PublicKey, ed25519.PrivateKey) {
	h := sha3.New256()
	writeDelimited(h, []byte(domainTag))
	writeDelimited(h, []byte(externalID))
	writeDelimited(h, d.secret)
	seed := h.Sum(nil)

	priv := ed25519.NewKeyFromSeed(seed)
	var pub models.PublicKey
	copy(pub[:], priv.Public().(ed25519.PublicKey))
	return pub, priv
}

// PublicKey derives only the public half.
func (d *Deriver) PublicKey(externalID string) models.PublicKey {
	pub, _ := d.Keypair(externalID)
	return pub
}

func writeDelimited(h hash.Hash, b []byte) {
	var lenBuf [4]byte
	lenBuf[0] = byte(len(b))
	lenBuf[1] = byte(len(b) >> 8)
	lenBuf[2] = byte(len(b) >> 16)
	lenBuf[3] = byte(len(b) >> 24)
	h.Write(lenBuf[:])
	h.Write(b)
}
