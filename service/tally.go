// File: service/tally.go
package service

import (
	"context"
)

// ChoiceTally is one choice's accumulated weight.
type ChoiceTally struct {
	Index  int    `json:"index"`
	Label  string `json:"label"`
	Weight uint64 `json:"weight"`
}

// TallyResult is the outcome of a proposal at a point in time.
//
// Winner is only ever declared once voting has closed. On an exact tie at
// the top there is no single winner: Winner stays -1 and Tied lists every
// top choice. With zero ballots all choices tie at zero. This tie policy is
// deliberate; the tally never breaks ties arbitrarily.
type TallyResult struct {
	ProposalID  string        `json:"proposal_id"`
	Title       string        `json:"title"`
	Choices     []ChoiceTally `json:"choices"`
	TotalWeight uint64        `json:"total_weight"`
	BallotCount int           `json:"ballot_count"`
	Closed      bool          `json:"closed"`
	Winner      int           `json:"winner"`
	Tied        []int         `json:"tied,omitempty"`
}

// Tally computes per-choice totals and, once the proposal has closed, the
// winner. It is a pure read against stored state and the injected clock.
func (s *GovernanceService) Tally(ctx context.Context, groupID, proposalID string) (*TallyResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	proposal, err := s.loadProposal(ctx, groupID, proposalID)
	if err != nil {
		return nil, err
	}

	result := &TallyResult{
		ProposalID:  proposal.ProposalID,
		Title:       proposal.Title,
		Choices:     make([]ChoiceTally, 0, len(proposal.Choices)),
		TotalWeight: proposal.TotalWeight(),
		BallotCount: len(proposal.Ballots),
		Closed:      proposal.Closed(s.now().Unix()),
		Winner:      -1,
	}
	for i, label := range proposal.Choices {
		result.Choices = append(result.Choices, ChoiceTally{Index: i, Label: label, Weight: proposal.ChoiceWeights[i]})
	}

	if !result.Closed {
		return result, nil
	}

	var top uint64
	for _, c := range result.Choices {
		if c.Weight > top {
			top = c.Weight
		}
	}
	leaders := make([]int, 0, 1)
	for _, c := range result.Choices {
		if c.Weight == top {
			leaders = append(leaders, c.Index)
		}
	}
	if len(leaders) == 1 {
		result.Winner = leaders[0]
	} else {
		result.Tied = leaders
	}
	return result, nil
}
