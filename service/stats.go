// File: service/stats.go
package service

import (
	"context"
	"errors"
	"log/slog"

	"dao-governance/codec"
	"dao-governance/models"
	"dao-governance/storage"
)

// GovernanceStatistics summarizes the deployment for operators.
type GovernanceStatistics struct {
	GroupCount        int `json:"group_count"`
	MembershipCount   int `json:"membership_count"`
	ProposalCount     int `json:"proposal_count"`
	OpenProposalCount int `json:"open_proposal_count"`
	BallotCount       int `json:"ballot_count"`
}

// Statistics walks the registry and aggregates counts. Records that fail to
// load or decode are skipped and logged; a partial ledger still yields a
// useful summary. An uninitialized registry yields all zeros.
func (s *GovernanceService) Statistics(ctx context.Context) (*GovernanceStatistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &GovernanceStatistics{}

	registry, err := s.loadRegistry(ctx)
	if errors.Is(err, models.ErrRegistryNotFound) {
		return stats, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	for _, ref := range registry.Groups {
		buf, err := s.store.Get(ctx, ref.Address)
		if err != nil {
			if !errors.Is(err, storage.ErrNotFound) {
				slog.Warn("skipping unreadable group", "group_id", ref.GroupID, "error", err)
			}
			continue
		}
		group, err := codec.DecodeGroup(buf)
		if err != nil {
			slog.Warn("skipping undecodable group", "group_id", ref.GroupID, "error", err)
			continue
		}

		stats.GroupCount++
		stats.MembershipCount += len(group.Members)
		for _, pref := range group.Proposals {
			pbuf, err := s.store.Get(ctx, pref.Address)
			if err != nil {
				if !errors.Is(err, storage.ErrNotFound) {
					slog.Warn("skipping unreadable proposal", "proposal_id", pref.ProposalID, "error", err)
				}
				continue
			}
			proposal, err := codec.DecodeProposal(pbuf)
			if err != nil {
				slog.Warn("skipping undecodable proposal", "proposal_id", pref.ProposalID, "error", err)
				continue
			}
			stats.ProposalCount++
			stats.BallotCount += len(proposal.Ballots)
			if !proposal.Closed(now) {
				stats.OpenProposalCount++
			}
		}
	}

	return stats, nil
}
