// Package service implements the governance state machine: the transition
// rules across the registry, groups, proposals and user accounts.
//
// Every transition validates its invariants against freshly decoded state
// and persists whole encoded successors in a single store batch, so a
// transition either fully applies or has no observable effect. Time never
// advances on its own in here: the clock is injected by the host and
// proposals close lazily by timestamp comparison.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dao-governance/codec"
	"dao-governance/identity"
	"dao-governance/models"
	"dao-governance/oracle"
	"dao-governance/storage"
)

type GovernanceService struct {
	store   storage.AccountStore
	oracle  oracle.BalanceOracle
	deriver *identity.Deriver
	mu      sync.RWMutex
	now     func() time.Time
}

func NewGovernanceService(store storage.AccountStore, balances oracle.BalanceOracle, deriver *identity.Deriver) *GovernanceService {
	return &GovernanceService{
		store:   store,
		oracle:  balances,
		deriver: deriver,
		now:     time.Now,
	}
}

// Initialize creates the registry singleton. The check and the write happen
// under the same lock, so a second call always fails ErrAlreadyInitialized
// instead of clobbering the registry.
func (s *GovernanceService) Initialize(ctx context.Context, authority models.PublicKey) (*models.Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	addr := models.RegistryAddress()
	if _, err := s.store.Get(ctx, addr); err == nil {
		return nil, models.ErrAlreadyInitialized
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to check registry: %w", err)
	}

	registry := &models.Registry{
		Authority: authority,
		Groups:    make([]models.GroupRef, 0),
	}
	if err := s.store.Put(ctx, addr, codec.EncodeRegistry(registry)); err != nil {
		return nil, fmt.Errorf("failed to save registry: %w", err)
	}

	slog.Info("registry initialized", "authority", authority.String())
	return registry, nil
}

// CreateGroup creates a DAO group with the caller as sole admin and sole
// member, and appends it to the registry. The group id is a caller-supplied
// stable identifier (the Telegram front-end derives it from the chat id).
func (s *GovernanceService) CreateGroup(ctx context.Context, admin models.PublicKey, groupID, name, description string, mode models.VotingMode) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if groupID == "" || len(groupID) > models.MaxGroupIDLen {
		return nil, models.ErrInvalidGroupID
	}
	if name == "" || len(name) > models.MaxNameLen {
		return nil, models.ErrInvalidName
	}
	if len(description) > models.MaxDescriptionLen {
		return nil, models.ErrInvalidDescription
	}

	registry, err := s.loadRegistry(ctx)
	if err != nil {
		return nil, err
	}
	if registry.HasGroup(groupID) {
		return nil, models.ErrGroupExists
	}

	now := s.now().Unix()
	group := &models.Group{
		GroupID:     groupID,
		Name:        name,
		Description: description,
		Admins:      []models.PublicKey{admin},
		Members:     []models.Member{{Key: admin, JoinedAt: now}},
		Proposals:   make([]models.ProposalRef, 0),
		VotingMode:  mode,
		CreatedAt:   now,
	}
	registry.Groups = append(registry.Groups, models.GroupRef{
		GroupID:   groupID,
		Authority: admin,
		Address:   models.GroupAddress(groupID),
	})

	err = s.store.PutBatch(ctx, []storage.Record{
		{Address: models.GroupAddress(groupID), Data: codec.EncodeGroup(group)},
		{Address: models.RegistryAddress(), Data: codec.EncodeRegistry(registry)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save group: %w", err)
	}

	slog.Info("group created", "group_id", groupID, "admin", admin.String(), "mode", mode.String())
	return group, nil
}

// AddMember inserts a member into the group. Only admins may add members;
// adding a present member is rejected, not silently ignored.
func (s *GovernanceService) AddMember(ctx context.Context, admin models.PublicKey, groupID string, member models.PublicKey) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsAdmin(admin) {
		slog.Warn("add member rejected", "group_id", groupID, "caller", admin.String())
		return nil, models.ErrNotAdmin
	}
	if group.IsMember(member) {
		return nil, models.ErrAlreadyMember
	}

	group.Members = append(group.Members, models.Member{
		Key:      member,
		JoinedAt: s.now().Unix(),
	})
	if err := s.saveGroup(ctx, group); err != nil {
		return nil, err
	}

	slog.Info("member added", "group_id", groupID, "member", member.String())
	return group, nil
}

// RemoveMember removes a member. Removing a non-member is an error, and the
// last remaining admin can never be removed, so the group always has an
// admin able to act on it.
func (s *GovernanceService) RemoveMember(ctx context.Context, admin models.PublicKey, groupID string, member models.PublicKey) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsAdmin(admin) {
		slog.Warn("remove member rejected", "group_id", groupID, "caller", admin.String())
		return nil, models.ErrNotAdmin
	}
	if !group.IsMember(member) {
		return nil, models.ErrNotMember
	}
	if group.IsAdmin(member) && len(group.Admins) == 1 {
		return nil, models.ErrCannotRemoveLastAdmin
	}

	members := make([]models.Member, 0, len(group.Members)-1)
	for _, m := range group.Members {
		if m.Key != member {
			members = append(members, m)
		}
	}
	group.Members = members

	if group.IsAdmin(member) {
		admins := make([]models.PublicKey, 0, len(group.Admins)-1)
		for _, a := range group.Admins {
			if a != member {
				admins = append(admins, a)
			}
		}
		group.Admins = admins
	}

	if err := s.saveGroup(ctx, group); err != nil {
		return nil, err
	}

	slog.Info("member removed", "group_id", groupID, "member", member.String())
	return group, nil
}

// PromoteAdmin grants admin rights to an existing member.
func (s *GovernanceService) PromoteAdmin(ctx context.Context, admin models.PublicKey, groupID string, member models.PublicKey) (*models.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsAdmin(admin) {
		slog.Warn("promote admin rejected", "group_id", groupID, "caller", admin.String())
		return nil, models.ErrNotAdmin
	}
	if !group.IsMember(member) {
		return nil, models.ErrNotMember
	}
	if group.IsAdmin(member) {
		return nil, models.ErrAlreadyAdmin
	}

	group.Admins = append(group.Admins, member)
	if err := s.saveGroup(ctx, group); err != nil {
		return nil, err
	}

	slog.Info("admin promoted", "group_id", groupID, "member", member.String())
	return group, nil
}

// CreateProposal opens a time-boxed proposal against the group. The voting
// window is [now, now+duration); the end timestamp is fixed at creation.
func (s *GovernanceService) CreateProposal(ctx context.Context, admin models.PublicKey, groupID, title, description string, choices []string, duration time.Duration) (*models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsAdmin(admin) {
		slog.Warn("create proposal rejected", "group_id", groupID, "caller", admin.String())
		return nil, models.ErrNotAdmin
	}

	if strings.TrimSpace(title) == "" || len(title) > models.MaxTitleLen {
		return nil, models.ErrInvalidTitle
	}
	if len(description) > models.MaxProposalDescLen {
		return nil, models.ErrInvalidDescription
	}
	if len(choices) < models.MinChoices || len(choices) > models.MaxChoices {
		return nil, models.ErrInvalidChoices
	}
	for _, choice := range choices {
		if strings.TrimSpace(choice) == "" {
			return nil, models.ErrInvalidChoices
		}
	}
	if duration <= 0 {
		return nil, models.ErrInvalidDuration
	}

	now := s.now()
	proposalID := uuid.New().String()
	proposal := &models.Proposal{
		ProposalID:    proposalID,
		GroupID:       groupID,
		Title:         title,
		Description:   description,
		Choices:       append(make([]string, 0, len(choices)), choices...),
		ChoiceWeights: make([]uint64, len(choices)),
		Creator:       admin,
		Ballots:       make([]models.Ballot, 0),
		CreatedAt:     now.Unix(),
		VotingEnd:     now.Add(duration).Unix(),
	}
	group.Proposals = append(group.Proposals, models.ProposalRef{
		ProposalID: proposalID,
		Address:    models.ProposalAddress(groupID, proposalID),
		CreatedAt:  now.Unix(),
	})

	err = s.store.PutBatch(ctx, []storage.Record{
		{Address: models.ProposalAddress(groupID, proposalID), Data: codec.EncodeProposal(proposal)},
		{Address: models.GroupAddress(groupID), Data: codec.EncodeGroup(group)},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save proposal: %w", err)
	}

	slog.Info("proposal created", "group_id", groupID, "proposal_id", proposalID, "voting_end", proposal.VotingEnd)
	return proposal, nil
}

// Vote records a single ballot for the voter. Checks run in order against
// fresh state: membership, closure, choice range, double vote. In
// token-weighted mode the weight comes from the balance oracle; an oracle
// failure rejects the vote, it is never treated as a zero balance.
func (s *GovernanceService) Vote(ctx context.Context, voter models.PublicKey, groupID, proposalID string, choice uint8) (*models.Proposal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, err := s.loadGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsMember(voter) {
		slog.Warn("vote rejected", "group_id", groupID, "proposal_id", proposalID, "caller", voter.String())
		return nil, models.ErrNotMember
	}

	proposal, err := s.loadProposal(ctx, groupID, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal.Closed(s.now().Unix()) {
		return nil, models.ErrProposalClosed
	}
	if int(choice) >= len(proposal.Choices) {
		return nil, models.ErrInvalidChoice
	}
	if proposal.HasVoted(voter) {
		return nil, models.ErrAlreadyVoted
	}

	weight, err := s.voteWeight(ctx, group, voter)
	if err != nil {
		return nil, err
	}

	proposal.Ballots = append(proposal.Ballots, models.Ballot{
		Voter:  voter,
		Choice: choice,
		Weight: weight,
		CastAt: s.now().Unix(),
	})
	proposal.ChoiceWeights[choice] += weight

	addr := models.ProposalAddress(groupID, proposalID)
	if err := s.store.Put(ctx, addr, codec.EncodeProposal(proposal)); err != nil {
		return nil, fmt.Errorf("failed to save vote: %w", err)
	}

	slog.Info("vote cast", "group_id", groupID, "proposal_id", proposalID, "voter", voter.String(), "choice", choice, "weight", weight)
	return proposal, nil
}

func (s *GovernanceService) voteWeight(ctx context.Context, group *models.Group, voter models.PublicKey) (uint64, error) {
	if group.VotingMode != models.ModeTokenWeighted {
		return 1, nil
	}
	if s.oracle == nil {
		return 0, models.ErrBalanceUnavailable
	}
	balance, err := s.oracle.TokenBalance(ctx, voter)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrBalanceUnavailable, err)
	}
	if balance == 0 {
		return 0, models.ErrNoVotingPower
	}
	return balance, nil
}

// LoginOrCreateAccount returns the account bound to externalID, creating it
// on first call. The operation is idempotent: repeated calls return the same
// account with the same derived key, and a changed display name is applied
// in place.
func (s *GovernanceService) LoginOrCreateAccount(ctx context.Context, externalID, displayName string) (*models.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if externalID == "" {
		return nil, models.ErrInvalidExternalID
	}

	addr := models.UserAccountAddress(externalID)
	buf, err := s.store.Get(ctx, addr)
	if err == nil {
		account, err := codec.DecodeUserAccount(buf)
		if err != nil {
			return nil, fmt.Errorf("failed to decode account %s: %w", externalID, err)
		}
		if displayName != "" && account.DisplayName != displayName {
			account.DisplayName = displayName
			if err := s.store.Put(ctx, addr, codec.EncodeUserAccount(account)); err != nil {
				return nil, fmt.Errorf("failed to update account: %w", err)
			}
		}
		return account, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	account := &models.UserAccount{
		ExternalID:  externalID,
		PublicKey:   s.deriver.PublicKey(externalID),
		DisplayName: displayName,
		CreatedAt:   s.now().Unix(),
	}
	if err := s.store.Put(ctx, addr, codec.EncodeUserAccount(account)); err != nil {
		return nil, fmt.Errorf("failed to save account: %w", err)
	}

	slog.Info("account created", "external_id", externalID, "public_key", account.PublicKey.String())
	return account, nil
}

// Load helpers. A decode failure here is fatal for the transition that
// depends on the record.

func (s *GovernanceService) loadRegistry(ctx context.Context) (*models.Registry, error) {
	buf, err := s.store.Get(ctx, models.RegistryAddress())
	if errors.Is(err, storage.ErrNotFound) {
		return nil, models.ErrRegistryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}
	registry, err := codec.DecodeRegistry(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to decode registry: %w", err)
	}
	return registry, nil
}

func (s *GovernanceService) loadGroup(ctx context.Context, groupID string) (*models.Group, error) {
	buf, err := s.store.Get(ctx, models.GroupAddress(groupID))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, models.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load group %s: %w", groupID, err)
	}
	group, err := codec.DecodeGroup(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to decode group %s: %w", groupID, err)
	}
	return group, nil
}

func (s *GovernanceService) loadProposal(ctx context.Context, groupID, proposalID string) (*models.Proposal, error) {
	buf, err := s.store.Get(ctx, models.ProposalAddress(groupID, proposalID))
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
	return proposal, nil
}

func (s *GovernanceService) saveGroup(ctx context.Context, group *models.Group) error {
	if err := s.store.Put(ctx, models.GroupAddress(group.GroupID), codec.EncodeGroup(group)); err != nil {
		return fmt.Errorf("failed to save group %s: %w", group.GroupID, err)
	}
	return nil
}
