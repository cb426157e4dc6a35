// Package storage is the ledger-host boundary: it persists encoded entity
// buffers under their derived addresses. The governance service hands it
// whole encoded successors; it never sees partially mutated state.
package storage

import (
	"context"
	"errors"

	"dao-governance/models"
)

var ErrNotFound = errors.New("storage: account not found")

// Record pairs an account address with its encoded payload.
type Record struct {
	Address models.Address
	Data    []byte
}

// AccountStore persists encoded entities. Put replaces the whole slot;
// PutBatch applies several replacements atomically, so multi-entity
// transitions (create group + registry append) commit or fail as one.
type AccountStore interface {
	Get(ctx context.Context, addr models.Address) ([]byte, error)
	Put(ctx context.Context, addr models.Address, data []byte) error
	PutBatch(ctx context.Context, records []Record) error
}
