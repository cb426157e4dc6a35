// File: codec/decode.go
package codec

import (
	"encoding/binary"
	"errors"

	"dao-governance/models"
)

// reader walks a buffer without ever reading past its end. Fixed-width
// header fields that run out report ErrTruncated; anything promised by a
// length prefix that runs out reports ErrCorrupt.
type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int { return len(r.buf) - r.off }

func (r *reader) fixed(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, ErrTruncated
	}
	out := r.buf[r.off : r.off+n]
	r.off += n
	return out, nil
}

func (r *reader) u8() (uint8, error) {
	b, err := r.fixed(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) u32() (uint32, error) {
	b, err := r.fixed(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) u64() (uint64, error) {
	b, err := r.fixed(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *reader) key() (models.PublicKey, error) {
	var k models.PublicKey
	b, err := r.fixed(len(k))
	if err != nil {
		return k, err
	}
	copy(k[:], b)
	return k, nil
}

func (r *reader) addr() (models.Address, error) {
	var a models.Address
	b, err := r.fixed(len(a))
	if err != nil {
		return a, err
	}
	copy(a[:], b)
	return a, nil
}

// str reads a u32-length-prefixed string. A prefix pointing past the end of
// the buffer is a corrupt record, not a short one.
func (r *reader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if int(n) > r.remaining() {
		return "", ErrCorrupt
	}
	b, err := r.fixed(int(n))
	if err != nil {
		return "", ErrCorrupt
	}
	return string(b), nil
}

// count reads a u32 vector length and sanity-checks it against the bytes
// that remain, so a hostile prefix cannot drive a huge allocation.
func (r *reader) count(minElemSize int) (int, error) {
	n, err := r.u32()
	if err != nil {
		return 0, err
	}
	if minElemSize > 0 && int(n) > r.remaining()/minElemSize {
		return 0, ErrCorrupt
	}
	return int(n), nil
}

// asCorrupt reclassifies a short read inside a counted vector: the count
// prefix promised elements the buffer does not hold.
func asCorrupt(err error) error {
	if errors.Is(err, ErrTruncated) {
		return ErrCorrupt
	}
	return err
}

// DecodeRegistry decodes a registry buffer, tolerating trailing padding.
func DecodeRegistry(buf []byte) (*models.Registry, error) {
	if err := checkDiscriminator(buf, DiscriminatorRegistry); err != nil {
		return nil, err
	}
	r := &reader{buf: buf, off: discriminatorLen}

	reg := &models.Registry{}
	var err error
	if reg.Authority, err = r.key(); err != nil {
		return nil, err
	}
	n, err := r.count(4 + 32 + 32)
	if err != nil {
		return nil, err
	}
	reg.Groups = make([]models.GroupRef, 0, n)
	for i := 0; i < n; i++ {
		var ref models.GroupRef
		if ref.GroupID, err = r.str(); err != nil {
			return nil, asCorrupt(err)
		}
		if ref.Authority, err = r.key(); err != nil {
			return nil, asCorrupt(err)
		}
		if ref.Address, err = r.addr(); err != nil {
			return nil, asCorrupt(err)
		}
		reg.Groups = append(reg.Groups, ref)
	}
	return reg, nil
}

// DecodeGroup decodes a group buffer, tolerating trailing padding.
func DecodeGroup(buf []byte) (*models.Group, error) {
	if err := checkDiscriminator(buf, DiscriminatorGroup); err != nil {
		return nil, err
	}
	r := &reader{buf: buf, off: discriminatorLen}

	g := &models.Group{}
	var err error
	if g.GroupID, err = r.str(); err != nil {
		return nil, err
	}
	if g.Name, err = r.str(); err != nil {
		return nil, err
	}
	if g.Description, err = r.str(); err != nil {
		return nil, err
	}

	n, err := r.count(32)
	if err != nil {
		return nil, err
	}
	g.Admins = make([]models.PublicKey, 0, n)
	for i := 0; i < n; i++ {
		admin, err := r.key()
		if err != nil {
			return nil, asCorrupt(err)
		}
		g.Admins = append(g.Admins, admin)
	}

	n, err = r.count(32 + 8)
	if err != nil {
		return nil, err
	}
	g.Members = make([]models.Member, 0, n)
	for i := 0; i < n; i++ {
		var m models.Member
		if m.Key, err = r.key(); err != nil {
			return nil, asCorrupt(err)
		}
		if m.JoinedAt, err = r.i64(); err != nil {
			return nil, asCorrupt(err)
		}
		g.Members = append(g.Members, m)
	}

	n, err = r.count(4 + 32 + 8)
	if err != nil {
		return nil, err
	}
	g.Proposals = make([]models.ProposalRef, 0, n)
	for i := 0; i < n; i++ {
		var ref models.ProposalRef
		if ref.ProposalID, err = r.str(); err != nil {
			return nil, asCorrupt(err)
		}
		if ref.Address, err = r.addr(); err != nil {
			return nil, asCorrupt(err)
		}
		if ref.CreatedAt, err = r.i64(); err != nil {
			return nil, asCorrupt(err)
		}
		g.Proposals = append(g.Proposals, ref)
	}

	mode, err := r.u8()
	if err != nil {
		return nil, err
	}
	g.VotingMode = models.VotingMode(mode)
	if g.CreatedAt, err = r.i64(); err != nil {
		return nil, err
	}
	return g, nil
}

// DecodeProposal decodes a proposal buffer, tolerating trailing padding.
func DecodeProposal(buf []byte) (*models.Proposal, error) {
	if err := checkDiscriminator(buf, DiscriminatorProposal); err != nil {
		return nil, err
	}
	r := &reader{buf: buf, off: discriminatorLen}

	p := &models.Proposal{}
	var err error
	if p.ProposalID, err = r.str(); err != nil {
		return nil, err
	}
	if p.GroupID, err = r.str(); err != nil {
		return nil, err
	}
	if p.Title, err = r.str(); err != nil {
		return nil, err
	}
	if p.Description, err = r.str(); err != nil {
		return nil, err
	}

	n, err := r.count(4)
	if err != nil {
		return nil, err
	}
	p.Choices = make([]string, 0, n)
	for i := 0; i < n; i++ {
		choice, err := r.str()
		if err != nil {
			return nil, asCorrupt(err)
		}
		p.Choices = append(p.Choices, choice)
	}

	n, err = r.count(8)
	if err != nil {
		return nil, err
	}
	p.ChoiceWeights = make([]uint64, 0, n)
	for i := 0; i < n; i++ {
		weight, err := r.u64()
		if err != nil {
			return nil, asCorrupt(err)
		}
		p.ChoiceWeights = append(p.ChoiceWeights, weight)
	}

	if p.Creator, err = r.key(); err != nil {
		return nil, err
	}

	n, err = r.count(32 + 1 + 8 + 8)
	if err != nil {
		return nil, err
	}
	p.Ballots = make([]models.Ballot, 0, n)
	for i := 0; i < n; i++ {
		var b models.Ballot
		if b.Voter, err = r.key(); err != nil {
			return nil, asCorrupt(err)
		}
		if b.Choice, err = r.u8(); err != nil {
			return nil, asCorrupt(err)
		}
		if b.Weight, err = r.u64(); err != nil {
			return nil, asCorrupt(err)
		}
		if b.CastAt, err = r.i64(); err != nil {
			return nil, asCorrupt(err)
		}
		p.Ballots = append(p.Ballots, b)
	}

	if p.CreatedAt, err = r.i64(); err != nil {
		return nil, err
	}
	if p.VotingEnd, err = r.i64(); err != nil {
		return nil, err
	}

	// The encoder always writes one weight per choice; a record where the two
	// vectors disagree was never produced by it. Rejecting here keeps every
	// consumer from indexing weights by a validated choice index and running
	// off the shorter vector.
	if len(p.ChoiceWeights) != len(p.Choices) {
		return nil, ErrCorrupt
	}
	return p, nil
}

// DecodeUserAccount decodes a user account buffer, tolerating trailing
// padding.
func DecodeUserAccount(buf []byte) (*models.UserAccount, error) {
	if err := checkDiscriminator(buf, DiscriminatorUserAccount); err != nil {
		return nil, err
	}
	r := &reader{buf: buf, off: discriminatorLen}

	u := &models.UserAccount{}
	var err error
	if u.ExternalID, err = r.str(); err != nil {
		return nil, err
	}
	if u.PublicKey, err = r.key(); err != nil {
		return nil, err
	}
	if u.DisplayName, err = r.str(); err != nil {
		return nil, err
	}
	if u.CreatedAt, err = r.i64(); err != nil {
		return nil, err
	}
	return u, nil
}
