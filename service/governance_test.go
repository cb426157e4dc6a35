package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dao-governance/codec"
	"dao-governance/identity"
	"dao-governance/models"
	"dao-governance/storage"
)

// fakeClock is a manually advanced clock injected into the service under
// test. Proposals close lazily, so advancing it is how tests cross a voting
// deadline.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// stubOracle returns canned balances, or a canned failure.
type stubOracle struct {
	balances map[models.PublicKey]uint64
	err      error
}

func (o *stubOracle) TokenBalance(_ context.Context, key models.PublicKey) (uint64, error) {
	if o.err != nil {
		return 0, o.err
	}
	return o.balances[key], nil
}

type testEnv struct {
	svc     *GovernanceService
	clock   *fakeClock
	deriver *identity.Deriver
}

func newTestEnv(t *testing.T, balances *stubOracle) *testEnv {
	t.Helper()
	deriver, err := identity.NewDeriver([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	var svc *GovernanceService
	if balances != nil {
		svc = NewGovernanceService(storage.NewMemoryStore(), balances, deriver)
	} else {
		svc = NewGovernanceService(storage.NewMemoryStore(), nil, deriver)
	}
	svc.now = clock.Now

	_, err = svc.Initialize(context.Background(), deriver.PublicKey("system:authority"))
	require.NoError(t, err)

	return &testEnv{svc: svc, clock: clock, deriver: deriver}
}

func (e *testEnv) key(id string) models.PublicKey {
	return e.deriver.PublicKey(id)
}

func (e *testEnv) createGroup(t *testing.T, admin models.PublicKey, mode models.VotingMode) *models.Group {
	t.Helper()
	group, err := e.svc.CreateGroup(context.Background(), admin, "tg_1001", "Treasury DAO", "Treasury management", mode)
	require.NoError(t, err)
	return group
}

func TestInitialize_Twice(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.svc.Initialize(context.Background(), env.key("someone-else"))
	require.ErrorIs(t, err, models.ErrAlreadyInitialized)
}

func TestCreateGroup(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.key("tg:1")

	group := env.createGroup(t, admin, models.ModeOneMemberOneVote)

	assert.Equal(t, "tg_1001", group.GroupID)
	assert.True(t, group.IsAdmin(admin), "creator must be an admin")
	assert.True(t, group.IsMember(admin), "creator must be a member")
	assert.Len(t, group.Members, 1)
	assert.Equal(t, env.clock.Now().Unix(), group.CreatedAt)
}

func TestCreateGroup_Duplicate(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.key("tg:1")

	env.createGroup(t, admin, models.ModeOneMemberOneVote)
	_, err := env.svc.CreateGroup(context.Background(), env.key("tg:2"), "tg_1001", "Other", "", models.ModeOneMemberOneVote)
	require.ErrorIs(t, err, models.ErrGroupExists)
}

func TestCreateGroup_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	admin := env.key("tg:1")

	_, err := env.svc.CreateGroup(ctx, admin, "", "Name", "", models.ModeOneMemberOneVote)
	require.ErrorIs(t, err, models.ErrInvalidGroupID)

	_, err = env.svc.CreateGroup(ctx, admin, strings.Repeat("x", models.MaxGroupIDLen+1), "Name", "", models.ModeOneMemberOneVote)
	require.ErrorIs(t, err, models.ErrInvalidGroupID)

	_, err = env.svc.CreateGroup(ctx, admin, "tg_1001", "", "", models.ModeOneMemberOneVote)
	require.ErrorIs(t, err, models.ErrInvalidName)

	_, err = env.svc.CreateGroup(ctx, admin, "tg_1001", strings.Repeat("x", models.MaxNameLen+1), "", models.ModeOneMemberOneVote)
	require.ErrorIs(t, err, models.ErrInvalidName)

	_, err = env.svc.CreateGroup(ctx, admin, "tg_1001", "Name", strings.Repeat("x", models.MaxDescriptionLen+1), models.ModeOneMemberOneVote)
	require.ErrorIs(t, err, models.ErrInvalidDescription)
}

func TestAddMember(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	admin, alice := env.key("tg:1"), env.key("tg:2")

	env.createGroup(t, admin, models.ModeOneMemberOneVote)

	group, err := env.svc.AddMember(ctx, admin, "tg_1001", alice)
	require.NoError(t, err)
	assert.True(t, group.IsMember(alice))
	assert.False(t, group.IsAdmin(alice))

	_, err = env.svc.AddMember(ctx, admin, "tg_1001", alice)
	require.ErrorIs(t, err, models.ErrAlreadyMember)
}

func TestAddMember_RequiresAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	admin, alice, bob := env.key("tg:1"), env.key("tg:2"), env.key("tg:3")

	env.createGroup(t, admin, models.ModeOneMemberOneVote)

	_, err := env.svc.AddMember(ctx, alice, "tg_1001", bob)
	require.ErrorIs(t, err, models.ErrNotAdmin)
}

func TestAddMember_GroupMissing(t *testing.T) {
	env := newTestEnv(t, nil)
	_, err := env.svc.AddMember(context.Background(), env.key("tg:1"), "tg_9999", env.key("tg:2"))
	require.ErrorIs(t, err, models.ErrGroupNotFound)
}

func TestRemoveMember(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	admin, alice := env.key("tg:1"), env.key("tg:2")

	env.createGroup(t, admin, models.ModeOneMemberOneVote)
	_, err := env.svc.AddMember(ctx, admin, "tg_1001", alice)
	require.NoError(t, err)

	group, err := env.svc.RemoveMember(ctx, admin, "tg_1001", alice)
	require.NoError(t, err)
	assert.False(t, group.IsMember(alice))

	_, err = env.svc.RemoveMember(ctx, admin, "tg_1001", alice)
	require.ErrorIs(t, err, models.ErrNotMember)
}

func TestRemoveMember_LastAdminProtected(t *testing.T) {
	env := newTestEnv(t, nil)
	admin := env.key("tg:1")

	env.createGroup(t, admin, models.ModeOneMemberOneVote)

	_, err := env.svc.RemoveMember(context.Background(), admin, "tg_1001", admin)
	require.ErrorIs(t, err, models.ErrCannotRemoveLastAdmin)
}

func TestRemoveMember_StripsAdminRights(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	admin, alice := env.key("tg:1"), env.key("tg:2")

	env.createGroup(t, admin, models.ModeOneMemberOneVote)
	_, err := env.svc.AddMember(ctx, admin, "tg_1001", alice)
	require.NoError(t, err)
	_, err = env.svc.PromoteAdmin(ctx, admin, "tg_1001", alice)
	require.NoError(t, err)

	group, err := env.svc.RemoveMember(ctx, admin, "tg_1001", alice)
	require.NoError(t, err)
	assert.False(t, group.IsMember(alice))
	assert.False(t, group.IsAdmin(alice), "removal must revoke admin rights too")
	assert.Len(t, group.Admins, 1)
}

func TestPromoteAdmin(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	admin, alice, bob := env.key("tg:1"), env.key("tg:2"), env.key("tg:3")

	env.createGroup(t, admin, models.ModeOneMemberOneVote)

	// Only members can be promoted.
	_, err := env.svc.PromoteAdmin(ctx, admin, "tg_1001", alice)
	require.ErrorIs(t, err, models.ErrNotMember)

	_, err = env.svc.AddMember(ctx, admin, "tg_1001", alice)
	require.NoError(t, err)
	group, err := env.svc.PromoteAdmin(ctx, admin, "tg_1001", alice)
	require.NoError(t, err)
	assert.True(t, group.IsAdmin(alice))

	_, err = env.svc.PromoteAdmin(ctx, admin, "tg_1001", alice)
	require.ErrorIs(t, err, models.ErrAlreadyAdmin)

	// The promoted admin can now act.
	_, err = env.svc.AddMember(ctx, alice, "tg_1001", bob)
	require.NoError(t, err)
}

func TestCreateProposal(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	admin := env.key("tg:1")

	env.createGroup(t, admin, models.ModeOneMemberOneVote)

	proposal, err := env.svc.CreateProposal(ctx, admin, "tg_1001",
		"Fund the audit", "Allocate tokens", []string{"Approve", "Reject"}, time.Hour)
	require.NoError(t, err)

	assert.NotEmpty(t, proposal.ProposalID)
	assert.Equal(t, env.clock.Now().Unix(), proposal.CreatedAt)
	assert.Equal(t, env.clock.Now().Add(time.Hour).Unix(), proposal.VotingEnd)
	assert.Equal(t, []uint64{0, 0}, proposal.ChoiceWeights)
	assert.Empty(t, proposal.Ballots)

	group, err := env.svc.loadGroup(ctx, "tg_1001")
	require.NoError(t, err)
	assert.True(t, group.HasProposal(proposal.ProposalID))
}

func TestCreateProposal_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	admin, alice := env.key("tg:1"), env.key("tg:2")

	env.createGroup(t, admin, models.ModeOneMemberOneVote)

	_, err := env.svc.CreateProposal(ctx, alice, "tg_1001", "T", "", []string{"A", "B"}, time.Hour)
	require.ErrorIs(t, err, models.ErrNotAdmin)

	_, err = env.svc.CreateProposal(ctx, admin, "tg_1001", "  ", "", []string{"A", "B"}, time.Hour)
	require.ErrorIs(t, err, models.ErrInvalidTitle)

	_, err = env.svc.CreateProposal(ctx, admin, "tg_1001", strings.Repeat("x", models.MaxTitleLen+1), "", []string{"A", "B"}, time.Hour)
	require.ErrorIs(t, err, models.ErrInvalidTitle)

	_, err = env.svc.CreateProposal(ctx, admin, "tg_1001", "T", strings.Repeat("x", models.MaxProposalDescLen+1), []string{"A", "B"}, time.Hour)
	require.ErrorIs(t, err, models.ErrInvalidDescription)

	_, err = env.svc.CreateProposal(ctx, admin, "tg_1001", "T", "", []string{"Only"}, time.Hour)
	require.ErrorIs(t, err, models.ErrInvalidChoices)

	eleven := make([]string, 11)
	for i := range eleven {
		eleven[i] = "c"
	}
	_, err = env.svc.CreateProposal(ctx, admin, "tg_1001", "T", "", eleven, time.Hour)
	require.ErrorIs(t, err, models.ErrInvalidChoices)

	_, err = env.svc.CreateProposal(ctx, admin, "tg_1001", "T", "", []string{"A", " "}, time.Hour)
	require.ErrorIs(t, err, models.ErrInvalidChoices)

	_, err = env.svc.CreateProposal(ctx, admin, "tg_1001", "T", "", []string{"A", "B"}, 0)
	require.ErrorIs(t, err, models.ErrInvalidDuration)
}

func TestVote(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	admin, alice := env.key("tg:1"), env.key("tg:2")

	env.createGroup(t, admin, models.ModeOneMemberOneVote)
	_, err := env.svc.AddMember(ctx, admin, "tg_1001", alice)
	require.NoError(t, err)
	proposal, err := env.svc.CreateProposal(ctx, admin, "tg_1001", "T", "", []string{"A", "B"}, time.Hour)
	require.NoError(t, err)

	updated, err := env.svc.Vote(ctx, alice, "tg_1001", proposal.ProposalID, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1}, updated.ChoiceWeights)
	require.Len(t, updated.Ballots, 1)
	assert.Equal(t, alice, updated.Ballots[0].Voter)
	assert.Equal(t, uint64(1), updated.Ballots[0].Weight)

	_, err = env.svc.Vote(ctx, alice, "tg_1001", proposal.ProposalID, 0)
	require.ErrorIs(t, err, models.ErrAlreadyVoted)
}

func TestVote_Rejections(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	admin, outsider := env.key("tg:1"), env.key("tg:99")

	env.createGroup(t, admin, models.ModeOneMemberOneVote)
	proposal, err := env.svc.CreateProposal(ctx, admin, "tg_1001", "T", "", []string{"A", "B"}, time.Hour)
	require.NoError(t, err)

	_, err = env.svc.Vote(ctx, outsider, "tg_1001", proposal.ProposalID, 0)
	require.ErrorIs(t, err, models.ErrNotMember)

	_, err = env.svc.Vote(ctx, admin, "tg_1001", proposal.ProposalID, 2)
	require.ErrorIs(t, err, models.ErrInvalidChoice)

	_, err = env.svc.Vote(ctx, admin, "tg_1001", "no-such-proposal", 0)
	require.ErrorIs(t, err, models.ErrProposalNotFound)
}

func TestVote_ClosedProposal(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	admin := env.key("tg:1")

	env.createGroup(t, admin, models.ModeOneMemberOneVote)
	proposal, err := env.svc.CreateProposal(ctx, admin, "tg_1001", "T", "", []string{"A", "B"}, time.Hour)
	require.NoError(t, err)

	// One second before the deadline the vote still lands.
	env.clock.Advance(time.Hour - time.Second)
	_, err = env.svc.Vote(ctx, admin, "tg_1001", proposal.ProposalID, 0)
	require.NoError(t, err)

	// At the deadline exactly the window is closed.
	env.clock.Advance(time.Second)
	alice := env.key("tg:2")
	_, err = env.svc.AddMember(ctx, admin, "tg_1001", alice)
	require.NoError(t, err)
	_, err = env.svc.Vote(ctx, alice, "tg_1001", proposal.ProposalID, 0)
	require.ErrorIs(t, err, models.ErrProposalClosed)
}

func TestVote_TokenWeighted(t *testing.T) {
	balances := &stubOracle{balances: map[models.PublicKey]uint64{}}
	env := newTestEnv(t, balances)
	ctx := context.Background()
	admin, alice, bob := env.key("tg:1"), env.key("tg:2"), env.key("tg:3")
	balances.balances[admin] = 500
	balances.balances[alice] = 120

	env.createGroup(t, admin, models.ModeTokenWeighted)
	_, err := env.svc.AddMember(ctx, admin, "tg_1001", alice)
	require.NoError(t, err)
	_, err = env.svc.AddMember(ctx, admin, "tg_1001", bob)
	require.NoError(t, err)
	proposal, err := env.svc.CreateProposal(ctx, admin, "tg_1001", "T", "", []string{"A", "B"}, time.Hour)
	require.NoError(t, err)

	updated, err := env.svc.Vote(ctx, alice, "tg_1001", proposal.ProposalID, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{120, 0}, updated.ChoiceWeights)

	// Zero balance carries no weight and is rejected outright.
	_, err = env.svc.Vote(ctx, bob, "tg_1001", proposal.ProposalID, 0)
	require.ErrorIs(t, err, models.ErrNoVotingPower)

	// An oracle failure fails closed rather than counting as zero.
	balances.err = errors.New("rpc timeout")
	_, err = env.svc.Vote(ctx, admin, "tg_1001", proposal.ProposalID, 1)
	require.ErrorIs(t, err, models.ErrBalanceUnavailable)
}

func TestVote_TamperedProposalRecord(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	admin := env.key("tg:1")

	env.createGroup(t, admin, models.ModeOneMemberOneVote)
	proposal, err := env.svc.CreateProposal(ctx, admin, "tg_1001", "T", "", []string{"A", "B"}, time.Hour)
	require.NoError(t, err)

	// Overwrite the stored record with one whose weights vector is shorter
	// than its choice list, as a tampered ledger slot could be. The vote
	// transition must reject it as undecodable, never index past the end.
	proposal.ChoiceWeights = proposal.ChoiceWeights[:1]
	addr := models.ProposalAddress("tg_1001", proposal.ProposalID)
	require.NoError(t, env.svc.store.Put(ctx, addr, codec.EncodeProposal(proposal)))

	_, err = env.svc.Vote(ctx, admin, "tg_1001", proposal.ProposalID, 1)
	require.Error(t, err)
	require.ErrorIs(t, err, codec.ErrCorrupt)

	_, err = env.svc.Tally(ctx, "tg_1001", proposal.ProposalID)
	require.ErrorIs(t, err, codec.ErrCorrupt)
}

func TestVote_TokenWeightedWithoutOracle(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	admin := env.key("tg:1")

	env.createGroup(t, admin, models.ModeTokenWeighted)
	proposal, err := env.svc.CreateProposal(ctx, admin, "tg_1001", "T", "", []string{"A", "B"}, time.Hour)
	require.NoError(t, err)

	_, err = env.svc.Vote(ctx, admin, "tg_1001", proposal.ProposalID, 0)
	require.ErrorIs(t, err, models.ErrBalanceUnavailable)
}

func TestLoginOrCreateAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	first, err := env.svc.LoginOrCreateAccount(ctx, "tg:1001", "alice")
	require.NoError(t, err)
	assert.Equal(t, env.deriver.PublicKey("tg:1001"), first.PublicKey)
	assert.Equal(t, "alice", first.DisplayName)

	// Idempotent: same identity, same key.
	second, err := env.svc.LoginOrCreateAccount(ctx, "tg:1001", "alice")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A changed display name is applied in place without touching the key.
	renamed, err := env.svc.LoginOrCreateAccount(ctx, "tg:1001", "alice-renamed")
	require.NoError(t, err)
	assert.Equal(t, first.PublicKey, renamed.PublicKey)
	assert.Equal(t, "alice-renamed", renamed.DisplayName)
	assert.Equal(t, first.CreatedAt, renamed.CreatedAt)

	_, err = env.svc.LoginOrCreateAccount(ctx, "", "nobody")
	require.ErrorIs(t, err, models.ErrInvalidExternalID)
}

func TestTally_OpenProposal(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	admin := env.key("tg:1")

	env.createGroup(t, admin, models.ModeOneMemberOneVote)
	proposal, err := env.svc.CreateProposal(ctx, admin, "tg_1001", "T", "", []string{"A", "B"}, time.Hour)
	require.NoError(t, err)
	_, err = env.svc.Vote(ctx, admin, "tg_1001", proposal.ProposalID, 0)
	require.NoError(t, err)

	result, err := env.svc.Tally(ctx, "tg_1001", proposal.ProposalID)
	require.NoError(t, err)
	assert.False(t, result.Closed)
	assert.Equal(t, -1, result.Winner, "no winner while voting is open")
	assert.Empty(t, result.Tied)
	assert.Equal(t, uint64(1), result.TotalWeight)
	assert.Equal(t, 1, result.BallotCount)
}

func TestTally_Winner(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	admin, alice, bob := env.key("tg:1"), env.key("tg:2"), env.key("tg:3")

	env.createGroup(t, admin, models.ModeOneMemberOneVote)
	for _, member := range []models.PublicKey{alice, bob} {
		_, err := env.svc.AddMember(ctx, admin, "tg_1001", member)
		require.NoError(t, err)
	}
	proposal, err := env.svc.CreateProposal(ctx, admin, "tg_1001", "T", "", []string{"A", "B"}, time.Hour)
	require.NoError(t, err)

	for voter, choice := range map[models.PublicKey]uint8{admin: 0, alice: 0, bob: 1} {
		_, err = env.svc.Vote(ctx, voter, "tg_1001", proposal.ProposalID, choice)
		require.NoError(t, err)
	}

	env.clock.Advance(2 * time.Hour)
	result, err := env.svc.Tally(ctx, "tg_1001", proposal.ProposalID)
	require.NoError(t, err)
	assert.True(t, result.Closed)
	assert.Equal(t, 0, result.Winner)
	assert.Empty(t, result.Tied)
	assert.Equal(t, uint64(2), result.Choices[0].Weight)
	assert.Equal(t, uint64(1), result.Choices[1].Weight)
}

func TestTally_Tie(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	admin, alice := env.key("tg:1"), env.key("tg:2")

	env.createGroup(t, admin, models.ModeOneMemberOneVote)
	_, err := env.svc.AddMember(ctx, admin, "tg_1001", alice)
	require.NoError(t, err)
	proposal, err := env.svc.CreateProposal(ctx, admin, "tg_1001", "T", "", []string{"A", "B", "C"}, time.Hour)
	require.NoError(t, err)

	_, err = env.svc.Vote(ctx, admin, "tg_1001", proposal.ProposalID, 0)
	require.NoError(t, err)
	_, err = env.svc.Vote(ctx, alice, "tg_1001", proposal.ProposalID, 1)
	require.NoError(t, err)

	env.clock.Advance(2 * time.Hour)
	result, err := env.svc.Tally(ctx, "tg_1001", proposal.ProposalID)
	require.NoError(t, err)
	assert.True(t, result.Closed)
	assert.Equal(t, -1, result.Winner, "an exact tie declares no winner")
	assert.Equal(t, []int{0, 1}, result.Tied)
}

func TestTally_NoBallots(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	admin := env.key("tg:1")

	env.createGroup(t, admin, models.ModeOneMemberOneVote)
	proposal, err := env.svc.CreateProposal(ctx, admin, "tg_1001", "T", "", []string{"A", "B"}, time.Hour)
	require.NoError(t, err)

	env.clock.Advance(2 * time.Hour)
	result, err := env.svc.Tally(ctx, "tg_1001", proposal.ProposalID)
	require.NoError(t, err)
	assert.True(t, result.Closed)
	assert.Equal(t, -1, result.Winner)
	assert.Equal(t, []int{0, 1}, result.Tied, "zero ballots tie every choice at zero")
}

// faultyStore fails reads of selected addresses and delegates everything
// else, standing in for a ledger with unreadable slots.
type faultyStore struct {
	storage.AccountStore
	broken map[models.Address]error
}

func (s *faultyStore) Get(ctx context.Context, addr models.Address) ([]byte, error) {
	if err, ok := s.broken[addr]; ok {
		return nil, err
	}
	return s.AccountStore.Get(ctx, addr)
}

func TestStatistics_SkipsUnreadableRecords(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	admin := env.key("tg:1")

	env.createGroup(t, admin, models.ModeOneMemberOneVote)
	_, err := env.svc.CreateGroup(ctx, admin, "tg_2002", "Second", "", models.ModeOneMemberOneVote)
	require.NoError(t, err)
	kept, err := env.svc.CreateProposal(ctx, admin, "tg_2002", "Kept", "", []string{"A", "B"}, time.Hour)
	require.NoError(t, err)
	lost, err := env.svc.CreateProposal(ctx, admin, "tg_2002", "Lost", "", []string{"A", "B"}, time.Hour)
	require.NoError(t, err)
	_, err = env.svc.Vote(ctx, admin, "tg_2002", kept.ProposalID, 0)
	require.NoError(t, err)

	env.svc.store = &faultyStore{
		AccountStore: env.svc.store,
		broken: map[models.Address]error{
			models.GroupAddress("tg_1001"):                     errors.New("disk read failed"),
			models.ProposalAddress("tg_2002", lost.ProposalID): errors.New("disk read failed"),
		},
	}

	stats, err := env.svc.Statistics(ctx)
	require.NoError(t, err, "unreadable records degrade the summary, not fail it")
	assert.Equal(t, 1, stats.GroupCount)
	assert.Equal(t, 1, stats.ProposalCount)
	assert.Equal(t, 1, stats.BallotCount)
}

func TestStatistics(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	admin, alice := env.key("tg:1"), env.key("tg:2")

	empty, err := env.svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, &GovernanceStatistics{}, empty)

	env.createGroup(t, admin, models.ModeOneMemberOneVote)
	_, err = env.svc.AddMember(ctx, admin, "tg_1001", alice)
	require.NoError(t, err)
	open, err := env.svc.CreateProposal(ctx, admin, "tg_1001", "Open", "", []string{"A", "B"}, 2*time.Hour)
	require.NoError(t, err)
	closed, err := env.svc.CreateProposal(ctx, admin, "tg_1001", "Closing", "", []string{"A", "B"}, time.Hour)
	require.NoError(t, err)
	_, err = env.svc.Vote(ctx, admin, "tg_1001", open.ProposalID, 0)
	require.NoError(t, err)
	_, err = env.svc.Vote(ctx, alice, "tg_1001", closed.ProposalID, 1)
	require.NoError(t, err)

	env.clock.Advance(time.Hour)
	stats, err := env.svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.GroupCount)
	assert.Equal(t, 2, stats.MembershipCount)
	assert.Equal(t, 2, stats.ProposalCount)
	assert.Equal(t, 1, stats.OpenProposalCount)
	assert.Equal(t, 2, stats.BallotCount)
}

// TestTreasuryScenario walks a full governance flow: bind identities, form a
// group, run a one hour vote and read the outcome after the deadline.
func TestTreasuryScenario(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	adminAcct, err := env.svc.LoginOrCreateAccount(ctx, "tg:100", "dana")
	require.NoError(t, err)
	aliceAcct, err := env.svc.LoginOrCreateAccount(ctx, "tg:200", "alice")
	require.NoError(t, err)
	bobAcct, err := env.svc.LoginOrCreateAccount(ctx, "tg:300", "bob")
	require.NoError(t, err)

	_, err = env.svc.CreateGroup(ctx, adminAcct.PublicKey, "tg_5005", "Treasury", "Treasury decisions", models.ModeOneMemberOneVote)
	require.NoError(t, err)
	_, err = env.svc.AddMember(ctx, adminAcct.PublicKey, "tg_5005", aliceAcct.PublicKey)
	require.NoError(t, err)
	_, err = env.svc.AddMember(ctx, adminAcct.PublicKey, "tg_5005", bobAcct.PublicKey)
	require.NoError(t, err)

	proposal, err := env.svc.CreateProposal(ctx, adminAcct.PublicKey, "tg_5005",
		"Fund the audit", "Allocate 5000 tokens", []string{"Approve", "Reject"}, time.Hour)
	require.NoError(t, err)

	env.clock.Advance(10 * time.Minute)
	_, err = env.svc.Vote(ctx, adminAcct.PublicKey, "tg_5005", proposal.ProposalID, 0)
	require.NoError(t, err)
	_, err = env.svc.Vote(ctx, aliceAcct.PublicKey, "tg_5005", proposal.ProposalID, 0)
	require.NoError(t, err)

	env.clock.Advance(49 * time.Minute)
	_, err = env.svc.Vote(ctx, bobAcct.PublicKey, "tg_5005", proposal.ProposalID, 1)
	require.NoError(t, err)

	// Past the deadline a late ballot bounces and a winner stands.
	env.clock.Advance(2 * time.Minute)
	lateAcct, err := env.svc.LoginOrCreateAccount(ctx, "tg:400", "carol")
	require.NoError(t, err)
	_, err = env.svc.AddMember(ctx, adminAcct.PublicKey, "tg_5005", lateAcct.PublicKey)
	require.NoError(t, err)
	_, err = env.svc.Vote(ctx, lateAcct.PublicKey, "tg_5005", proposal.ProposalID, 0)
	require.ErrorIs(t, err, models.ErrProposalClosed)

	result, err := env.svc.Tally(ctx, "tg_5005", proposal.ProposalID)
	require.NoError(t, err)
	assert.True(t, result.Closed)
	assert.Equal(t, 0, result.Winner)
	assert.Equal(t, 3, result.BallotCount)
}
