package client_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dao-governance/client"
	"dao-governance/codec"
	"dao-governance/models"
	"dao-governance/storage"
)

func key(b byte) models.PublicKey {
	var k models.PublicKey
	for i := range k {
		k[i] = b
	}
	return k
}

func seedGroup(t *testing.T, store storage.AccountStore, groupID string) *models.Group {
	t.Helper()
	group := &models.Group{
		GroupID:     groupID,
		Name:        "Group " + groupID,
		Description: "",
		Admins:      []models.PublicKey{key(1)},
		Members:     []models.Member{{Key: key(1), JoinedAt: 1700000000}},
		Proposals:   make([]models.ProposalRef, 0),
		VotingMode:  models.ModeOneMemberOneVote,
		CreatedAt:   1700000000,
	}
	require.NoError(t, store.Put(context.Background(), models.GroupAddress(groupID), codec.EncodeGroup(group)))
	return group
}

func seedRegistry(t *testing.T, store storage.AccountStore, groupIDs ...string) {
	t.Helper()
	registry := &models.Registry{Authority: key(9), Groups: make([]models.GroupRef, 0, len(groupIDs))}
	for _, id := range groupIDs {
		registry.Groups = append(registry.Groups, models.GroupRef{
			GroupID:   id,
			Authority: key(1),
			Address:   models.GroupAddress(id),
		})
	}
	require.NoError(t, store.Put(context.Background(), models.RegistryAddress(), codec.EncodeRegistry(registry)))
}

func TestListGroups_EmptyDeployment(t *testing.T) {
	c := client.New(storage.NewMemoryStore())

	groups, itemErrs, err := c.ListGroups(context.Background())
	require.NoError(t, err)
	assert.Empty(t, groups)
	assert.Empty(t, itemErrs)
}

func TestListGroups(t *testing.T) {
	store := storage.NewMemoryStore()
	seedGroup(t, store, "tg_1001")
	seedGroup(t, store, "tg_2002")
	seedRegistry(t, store, "tg_1001", "tg_2002")

	c := client.New(store)
	groups, itemErrs, err := c.ListGroups(context.Background())
	require.NoError(t, err)
	assert.Empty(t, itemErrs)
	require.Len(t, groups, 2)
	assert.Equal(t, "tg_1001", groups[0].GroupID)
	assert.Equal(t, "tg_2002", groups[1].GroupID)
}

func TestListGroups_DegradesOnBadRecord(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	seedGroup(t, store, "tg_1001")
	seedRegistry(t, store, "tg_1001", "tg_broken", "tg_missing")
	// tg_broken holds bytes that are not a group record at all.
	require.NoError(t, store.Put(ctx, models.GroupAddress("tg_broken"), []byte("garbage garbage")))
	// tg_missing is referenced but never stored.

	c := client.New(store)
	groups, itemErrs, err := c.ListGroups(ctx)
	require.NoError(t, err, "one bad record must not fail the listing")
	require.Len(t, groups, 1)
	assert.Equal(t, "tg_1001", groups[0].GroupID)

	require.Len(t, itemErrs, 2)
	assert.Equal(t, "tg_broken", itemErrs[0].ID)
	assert.ErrorIs(t, itemErrs[0], codec.ErrShapeMismatch)
	assert.Equal(t, "tg_missing", itemErrs[1].ID)
	assert.ErrorIs(t, itemErrs[1], storage.ErrNotFound)
}

func TestListProposals(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	proposal := &models.Proposal{
		ProposalID:    "p-1",
		GroupID:       "tg_1001",
		Title:         "Fund the audit",
		Description:   "",
		Choices:       []string{"Approve", "Reject"},
		ChoiceWeights: []uint64{0, 0},
		Creator:       key(1),
		Ballots:       make([]models.Ballot, 0),
		CreatedAt:     1700000000,
		VotingEnd:     1700003600,
	}
	group := seedGroup(t, store, "tg_1001")
	group.Proposals = []models.ProposalRef{{
		ProposalID: "p-1",
		Address:    models.ProposalAddress("tg_1001", "p-1"),
		CreatedAt:  1700000000,
	}}
	require.NoError(t, store.Put(ctx, models.GroupAddress("tg_1001"), codec.EncodeGroup(group)))
	require.NoError(t, store.Put(ctx, models.ProposalAddress("tg_1001", "p-1"), codec.EncodeProposal(proposal)))

	c := client.New(store)
	proposals, itemErrs, err := c.ListProposals(ctx, "tg_1001")
	require.NoError(t, err)
	assert.Empty(t, itemErrs)
	require.Len(t, proposals, 1)
	assert.Equal(t, proposal, proposals[0])
}

func TestListProposals_GroupMissing(t *testing.T) {
	c := client.New(storage.NewMemoryStore())
	_, _, err := c.ListProposals(context.Background(), "tg_9999")
	require.ErrorIs(t, err, models.ErrGroupNotFound)
}

func TestGetResults(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	proposal := &models.Proposal{
		ProposalID:    "p-1",
		GroupID:       "tg_1001",
		Title:         "Fund the audit",
		Choices:       []string{"Approve", "Reject"},
		ChoiceWeights: []uint64{2, 1},
		Creator:       key(1),
		Ballots: []models.Ballot{
			{Voter: key(1), Choice: 0, Weight: 1, CastAt: 1700000100},
			{Voter: key(2), Choice: 0, Weight: 1, CastAt: 1700000200},
			{Voter: key(3), Choice: 1, Weight: 1, CastAt: 1700000300},
		},
		CreatedAt: 1700000000,
		VotingEnd: 1700003600, // long past, so the view reports closed
	}
	require.NoError(t, store.Put(ctx, models.ProposalAddress("tg_1001", "p-1"), codec.EncodeProposal(proposal)))

	c := client.New(store)
	results, err := c.GetResults(ctx, "tg_1001", "p-1")
	require.NoError(t, err)
	assert.Equal(t, "p-1", results.ProposalID)
	assert.Equal(t, []uint64{2, 1}, results.Totals)
	assert.Equal(t, 3, results.BallotCount)
	assert.Equal(t, uint64(3), results.TotalWeight)
	assert.True(t, results.Closed)

	_, err = c.GetResults(ctx, "tg_1001", "p-absent")
	require.ErrorIs(t, err, models.ErrProposalNotFound)
}

func TestGetAccount(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	account := &models.UserAccount{
		ExternalID:  "tg:1001",
		PublicKey:   key(5),
		DisplayName: "alice",
		CreatedAt:   1700000000,
	}
	require.NoError(t, store.Put(ctx, models.UserAccountAddress("tg:1001"), codec.EncodeUserAccount(account)))

	c := client.New(store)
	got, err := c.GetAccount(ctx, "tg:1001")
	require.NoError(t, err)
	assert.Equal(t, account, got)

	_, err = c.GetAccount(ctx, "tg:absent")
	require.ErrorIs(t, err, models.ErrAccountNotFound)
}
