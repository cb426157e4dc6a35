// File: models/errors.go
package models

import "errors"

// Validation errors: bad input shape, surfaced to the caller, never retried.
var (
	ErrInvalidGroupID     = errors.New("invalid group id")
	ErrInvalidName        = errors.New("group name is empty or too long")
	ErrInvalidTitle       = errors.New("proposal title is empty or too long")
	ErrInvalidChoices     = errors.New("proposals need 2 to 10 non-empty choices")
	ErrInvalidDuration    = errors.New("voting duration must be positive")
	ErrInvalidChoice      = errors.New("choice index out of range")
	ErrInvalidPublicKey   = errors.New("invalid public key")
	ErrInvalidDescription = errors.New("description too long")
	ErrInvalidExternalID  = errors.New("external id is empty")
)

// Authorization errors: logged as security-relevant events, never retried.
var (
	ErrNotAdmin  = errors.New("caller is not an admin of the group")
	ErrNotMember = errors.New("caller is not a member of the group")
)

// State conflicts: definitive rejections, not transient.
var (
	ErrAlreadyInitialized    = errors.New("registry already initialized")
	ErrGroupExists           = errors.New("group id already exists")
	ErrAlreadyMember         = errors.New("already a member of the group")
	ErrAlreadyAdmin          = errors.New("already an admin of the group")
	ErrAlreadyVoted          = errors.New("voter has already voted on this proposal")
	ErrProposalClosed        = errors.New("voting period has ended")
	ErrCannotRemoveLastAdmin = errors.New("cannot remove the last remaining admin")
)

// External collaborator failures.
var (
	// ErrBalanceUnavailable means the token balance oracle could not answer.
	// The vote fails closed; a missing balance is never treated as zero.
	ErrBalanceUnavailable = errors.New("token balance unavailable")
	// ErrNoVotingPower means a token-weighted ballot would carry zero weight.
	ErrNoVotingPower = errors.New("no voting power")
)

// Lookup failures.
var (
	ErrRegistryNotFound = errors.New("registry not initialized")
	ErrGroupNotFound    = errors.New("group not found")
	ErrProposalNotFound = errors.New("proposal not found")
	ErrAccountNotFound  = errors.New("user account not found")
)
