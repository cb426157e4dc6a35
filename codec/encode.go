// File: codec/encode.go
package codec

import (
	"bytes"
	"encoding/binary"

	"dao-governance/models"
)

type writer struct {
	buf bytes.Buffer
}

func newWriter(disc [discriminatorLen]byte) *writer {
	w := &writer{}
	w.buf.Write(disc[:])
	return w
}

func (w *writer) u8(v uint8)   { w.buf.WriteByte(v) }
func (w *writer) u32(v uint32) { binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *writer) u64(v uint64) { binary.Write(&w.buf, binary.LittleEndian, v) }
func (w *writer) i64(v int64)  { binary.Write(&w.buf, binary.LittleEndian, v) }

func (w *writer) str(s string) {
	w.u32(uint32(len(s)))
	w.buf.WriteString(s)
}

func (w *writer) key(k models.PublicKey) { w.buf.Write(k[:]) }
func (w *writer) addr(a models.Address)  { w.buf.Write(a[:]) }

func (w *writer) bytes() []byte { return w.buf.Bytes() }

// EncodeRegistry serializes the registry singleton.
func EncodeRegistry(r *models.Registry) []byte {
	w := newWriter(DiscriminatorRegistry)
	w.key(r.Authority)
	w.u32(uint32(len(r.Groups)))
	for _, ref := range r.Groups {
		w.str(ref.GroupID)
		w.key(ref.Authority)
		w.addr(ref.Address)
	}
	return w.bytes()
}

// EncodeGroup serializes a group.
func EncodeGroup(g *models.Group) []byte {
	w := newWriter(DiscriminatorGroup)
	w.str(g.GroupID)
	w.str(g.Name)
	w.str(g.Description)
	w.u32(uint32(len(g.Admins)))
	for _, admin := range g.Admins {
		w.key(admin)
	}
	w.u32(uint32(len(g.Members)))
	for _, m := range g.Members {
		w.key(m.Key)
		w.i64(m.JoinedAt)
	}
	w.u32(uint32(len(g.Proposals)))
	for _, ref := range g.Proposals {
		w.str(ref.ProposalID)
		w.addr(ref.Address)
		w.i64(ref.CreatedAt)
	}
	w.u8(uint8(g.VotingMode))
	w.i64(g.CreatedAt)
	return w.bytes()
}

// EncodeProposal serializes a proposal including its vote mapping.
func EncodeProposal(p *models.Proposal) []byte {
	w := newWriter(DiscriminatorProposal)
	w.str(p.ProposalID)
	w.str(p.GroupID)
	w.str(p.Title)
	w.str(p.Description)
	w.u32(uint32(len(p.Choices)))
	for _, choice := range p.Choices {
		w.str(choice)
	}
	w.u32(uint32(len(p.ChoiceWeights)))
	for _, weight := range p.ChoiceWeights {
		w.u64(weight)
	}
	w.key(p.Creator)
	w.u32(uint32(len(p.Ballots)))
	for _, b := range p.Ballots {
		w.key(b.Voter)
		w.u8(b.Choice)
		w.u64(b.Weight)
		w.i64(b.CastAt)
	}
	w.i64(p.CreatedAt)
	w.i64(p.VotingEnd)
	return w.bytes()
}

// EncodeUserAccount serializes a user account.
func EncodeUserAccount(u *models.UserAccount) []byte {
	w := newWriter(DiscriminatorUserAccount)
	w.str(u.ExternalID)
	w.key(u.PublicKey)
	w.str(u.DisplayName)
	w.i64(u.CreatedAt)
	return w.bytes()
}
