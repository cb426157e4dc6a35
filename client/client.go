// Package client is the read-only decode layer for consumers that only need
// typed views of stored state: listings, results, account lookups. It
// depends on the codec alone, never on the state machine's mutation logic,
// and it degrades gracefully: one undecodable record is reported alongside
// its healthy siblings instead of aborting the listing.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dao-governance/codec"
	"dao-governance/models"
	"dao-governance/storage"
)

// ItemError reports a single record that failed to load or decode during a
// listing.
type ItemError struct {
	ID      string
	Address models.Address
	Err     error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("record %s (%s): %v", e.ID, e.Address, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

type Client struct {
	store storage.AccountStore
	now   func() time.Time
}

func New(store storage.AccountStore) *Client {
	return &Client{store: store, now: time.Now}
}

// ListGroups returns every group the registry references. Groups that fail
// to decode come back as ItemErrors, never as a failed listing. A missing
// registry is an empty deployment, not an error.
func (c *Client) ListGroups(ctx context.Context) ([]*models.Group, []ItemError, error) {
	groups := make([]*models.Group, 0)
	itemErrs := make([]ItemError, 0)

	buf, err := c.store.Get(ctx, models.RegistryAddress())
	if errors.Is(err, storage.ErrNotFound) {
		return groups, itemErrs, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load registry: %w", err)
	}
	registry, err := codec.DecodeRegistry(buf)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode registry: %w", err)
	}

	for _, ref := range registry.Groups {
		gbuf, err := c.store.Get(ctx, ref.Address)
		if err != nil {
			itemErrs = append(itemErrs, ItemError{ID: ref.GroupID, Address: ref.Address, Err: err})
			continue
		}
		group, err := codec.DecodeGroup(gbuf)
		if err != nil {
			itemErrs = append(itemErrs, ItemError{ID: ref.GroupID, Address: ref.Address, Err: err})
			continue
		}
		groups = append(groups, group)
	}
	return groups, itemErrs, nil
}

// ListProposals returns every proposal of a group, oldest first.
func (c *Client) ListProposals(ctx context.Context, groupID string) ([]*models.Proposal, []ItemError, error) {
	buf, err := c.store.Get(ctx, models.GroupAddress(groupID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, models.ErrGroupNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load group %s: %w", groupID, err)
	}
	group, err := codec.DecodeGroup(buf)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode group %s: %w", groupID, err)
	}

	proposals := make([]*models.Proposal, 0, len(group.Proposals))
	itemErrs := make([]ItemError, 0)
	for _, ref := range group.Proposals {
		pbuf, err := c.store.Get(ctx, ref.Address)
		if err != nil {
			itemErrs = append(itemErrs, ItemError{ID: ref.ProposalID, Address: ref.Address, Err: err})
			continue
		}
		proposal, err := codec.DecodeProposal(pbuf)
		if err != nil {
			itemErrs = append(itemErrs, ItemError{ID: ref.ProposalID, Address: ref.Address, Err: err})
			continue
		}
		proposals = append(proposals, proposal)
	}
	return proposals, itemErrs, nil
}

// ProposalResults is a read-only view of a proposal's standing. Winner
// declaration lives in the state machine's Tally; this view only reports
// raw totals and whether voting has closed.
type ProposalResults struct {
	ProposalID  string   `json:"proposal_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Choices     []string `json:"choices"`
	Totals      []uint64 `json:"totals"`
	BallotCount int      `json:"ballot_count"`
	TotalWeight uint64   `json:"total_weight"`
	VotingEnd   int64    `json:"voting_end"`
	Closed      bool     `json:"closed"`
}

// GetResults decodes a proposal and reports its per-choice totals.
func (c *Client) GetResults(ctx context.Context, groupID, proposalID string) (*ProposalResults, error) {
	buf, err := c.store.Get(ctx, models.ProposalAddress(groupID, proposalID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, models.ErrProposalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load proposal %s: %w", proposalID, err)
	}
	proposal, err := codec.DecodeProposal(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to decode proposal %s: %w", proposalID, err)
	}

	return &ProposalResults{
		ProposalID:  proposal.ProposalID,
		Title:       proposal.Title,
		Description: proposal.Description,
		Choices:     proposal.Choices,
		Totals:      proposal.ChoiceWeights,
		BallotCount: len(proposal.Ballots),
		TotalWeight: proposal.TotalWeight(),
		VotingEnd:   proposal.VotingEnd,
		Closed:      proposal.Closed(c.now().Unix()),
	}, nil
}

// GetAccount decodes the account bound to an external identifier.
func (c *Client) GetAccount(ctx context.Context, externalID string) (*models.UserAccount, error) {
	buf, err := c.store.Get(ctx, models.UserAccountAddress(externalID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", externalID, err)
	}
	account, err := codec.DecodeUserAccount(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to decode account %s: %w", externalID, err)
	}
	return account, nil
}
