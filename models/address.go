// File: models/address.go
package models

import (
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
)

// PublicKey is a raw 32-byte ed25519 public key.
type PublicKey [32]byte

func (k PublicKey) String() string {
	return base58.Encode(k[:])
}

func (k PublicKey) Bytes() []byte {
	out := make([]byte, len(k))
	copy(out, k[:])
	return out
}

// ParsePublicKey decodes a base58-rendered public key.
func ParsePublicKey(s string) (PublicKey, error) {
	var key PublicKey
	raw, err := base58.Decode(s)
	if err != nil {
		return key, err
	}
	if len(raw) != len(key) {
		return key, ErrInvalidPublicKey
	}
	copy(key[:], raw)
	return key, nil
}

// Address identifies an account slot in the ledger store. Addresses are
// derived, never random, so every entity has exactly one home: the same
// seeds always resolve to the same slot.
type Address [32]byte

func (a Address) String() string {
	return base58.Encode(a[:])
}

func deriveAddress(seeds ...[]byte) Address {
	var addr Address
	copy(addr[:], crypto.Keccak256(seeds...))
	return addr
}

// RegistryAddress is the fixed address of the singleton registry.
func RegistryAddress() Address {
	return deriveAddress([]byte("dao_registry"))
}

func GroupAddress(groupID string) Address {
	return deriveAddress([]byte("group"), []byte(groupID))
}

func ProposalAddress(groupID, proposalID string) Address {
	return deriveAddress([]byte("proposal"), []byte(groupID), []byte(proposalID))
}

func UserAccountAddress(externalID string) Address {
	return deriveAddress([]byte("user_account"), []byte(externalID))
}
