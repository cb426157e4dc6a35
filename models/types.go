// File: models/types.go
package models

// Field limits carried over from the on-chain account layout. Encoded
// entities must fit their pre-allocated account slots, so limits are
// enforced at transition time, not at encode time.
const (
	MaxGroupIDLen      = 50
	MaxNameLen         = 100
	MaxDescriptionLen  = 500
	MaxTitleLen        = 200
	MaxProposalDescLen = 1000
	MinChoices         = 2
	MaxChoices         = 10
)

// VotingMode selects how a ballot's weight is determined.
type VotingMode uint8

const (
	// ModeOneMemberOneVote gives every ballot weight 1.
	ModeOneMemberOneVote VotingMode = 0
	// ModeTokenWeighted weighs each ballot by the voter's token balance,
	// looked up through the balance oracle at vote time.
	ModeTokenWeighted VotingMode = 1
)

func (m VotingMode) String() string {
	switch m {
	case ModeOneMemberOneVote:
		return "equal"
	case ModeTokenWeighted:
		return "token-weighted"
	default:
		return "unknown"
	}
}

// Registry is the singleton root entity. It tracks every group ever created
// and the authority that initialized the deployment.
type Registry struct {
	Authority PublicKey
	Groups    []GroupRef
}

type GroupRef struct {
	GroupID   string
	Authority PublicKey
	Address   Address
}

func (r *Registry) HasGroup(groupID string) bool {
	for _, ref := range r.Groups {
		if ref.GroupID == groupID {
			return true
		}
	}
	return false
}

// Group is a DAO group: an admin set, a member set and the proposals opened
// against it. The creator is always Admins[0]; the admin set is never empty.
type Group struct {
	GroupID     string
	Name        string
	Description string
	Admins      []PublicKey
	Members     []Member
	Proposals   []ProposalRef
	VotingMode  VotingMode
	CreatedAt   int64
}

type Member struct {
	Key      PublicKey
	JoinedAt int64
}

type ProposalRef struct {
	ProposalID string
	Address    Address
	CreatedAt  int64
}

func (g *Group) IsAdmin(key PublicKey) bool {
	for _, admin := range g.Admins {
		if admin == key {
			return true
		}
	}
	return false
}

func (g *Group) IsMember(key PublicKey) bool {
	for _, member := range g.Members {
		if member.Key == key {
			return true
		}
	}
	return false
}

func (g *Group) HasProposal(proposalID string) bool {
	for _, ref := range g.Proposals {
		if ref.ProposalID == proposalID {
			return true
		}
	}
	return false
}

// Proposal is a time-boxed question with 2..10 choices. Ballots is the
// insertion-once vote mapping: a voter key appears at most once, enforced by
// the vote transition against freshly decoded state.
type Proposal struct {
	ProposalID    string
	GroupID       string
	Title         string
	Description   string
	Choices       []string
	ChoiceWeights []uint64
	Creator       PublicKey
	Ballots       []Ballot
	CreatedAt     int64
	VotingEnd     int64
}

type Ballot struct {
	Voter  PublicKey
	Choice uint8
	Weight uint64
	CastAt int64
}

// Closed reports whether voting has ended at the supplied time. Closure is
// evaluated lazily against the caller's clock; there is no background timer.
func (p *Proposal) Closed(now int64) bool {
	return now >= p.VotingEnd
}

func (p *Proposal) HasVoted(key PublicKey) bool {
	for _, b := range p.Ballots {
		if b.Voter == key {
			return true
		}
	}
	return false
}

// TotalWeight sums the accumulated weight across all choices.
func (p *Proposal) TotalWeight() uint64 {
	var total uint64
	for _, w := range p.ChoiceWeights {
		total += w
	}
	return total
}

// UserAccount binds an external identifier (e.g. "tg:1001") to a derived
// keypair's public half. Exactly one account exists per external identifier;
// the binding is enforced by the account's derived storage address.
type UserAccount struct {
	ExternalID  string
	PublicKey   PublicKey
	DisplayName string
	CreatedAt   int64
}
