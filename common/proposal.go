package common

import (
	"fmt"

	"github.com/hermeznetwork/tracerr"
)

// ProposalLen is the length of the fixed layout of a Proposal
const ProposalLen = 1 + IdentityLen + IdentityLen + 1 + 1 + 1 + 8 + 1 + 8 + 1 + MaxSigners + 1 + 8

// Proposal is a pending parameter change of a governed market
type Proposal struct {
	IsInitialized bool         `json:"isInitialized"`
	Governance    Identity     `json:"governance"`
	ProposedBy    Identity     `json:"proposedBy"`
	Update        ParamsUpdate `json:"update"`
	// Approvals has one slot per signer at creation time
	Approvals  []bool `json:"approvals"`
	IsExecuted bool   `json:"isExecuted"`
	Nonce      uint64 `json:"nonce"`
}

// NewProposal returns an open proposal with every approval slot unset
func NewProposal(gov *GovernanceState, govID, proposer Identity, update ParamsUpdate) *Proposal {
	return &Proposal{
		IsInitialized: true,
		Governance:    govID,
		ProposedBy:    proposer,
		Update:        update,
		Approvals:     make([]bool, len(gov.Signers)),
		Nonce:         gov.Nonce,
	}
}

// ApprovalCount returns the number of set approval slots
func (p *Proposal) ApprovalCount() int {
	n := 0
	for _, a := range p.Approvals {
		if a {
			n++
		}
	}
	return n
}

// Bytes returns the fixed layout of the proposal
func (p *Proposal) Bytes() ([ProposalLen]byte, error) {
	var b [ProposalLen]byte
	if len(p.Approvals) > MaxSigners {
		return b, tracerr.Wrap(ErrTooManySigners)
	}
	w := byteWriter{b: b[:0]}
	w.flag(p.IsInitialized)
	w.identity(p.Governance)
	w.identity(p.ProposedBy)
	w.flag(p.Update.SuccessRate != nil)
	if p.Update.SuccessRate != nil {
		w.u8(*p.Update.SuccessRate)
	} else {
		w.u8(0)
	}
	w.flag(p.Update.MinimumCoalAmount != nil)
	if p.Update.MinimumCoalAmount != nil {
		w.u64(*p.Update.MinimumCoalAmount)
	} else {
		w.u64(0)
	}
	w.flag(p.Update.CooldownPeriod != nil)
	if p.Update.CooldownPeriod != nil {
		w.u64(uint64(*p.Update.CooldownPeriod))
	} else {
		w.u64(0)
	}
	w.u8(uint8(len(p.Approvals)))
	for i := 0; i < MaxSigners; i++ {
		w.flag(i < len(p.Approvals) && p.Approvals[i])
	}
	w.flag(p.IsExecuted)
	w.u64(p.Nonce)
	return b, nil
}

// ProposalFromBytes decodes the fixed layout of a Proposal
func ProposalFromBytes(b []byte) (*Proposal, error) {
	if len(b) != ProposalLen {
		return nil, tracerr.Wrap(fmt.Errorf("can not parse Proposal, bytes len %d, expected %d",
			len(b), ProposalLen))
	}
	r := byteReader{b: b}
	p := Proposal{
		IsInitialized: r.flag(),
		Governance:    r.identity(),
		ProposedBy:    r.identity(),
	}
	hasRate, rate := r.flag(), r.u8()
	if hasRate {
		p.Update.SuccessRate = &rate
	}
	hasCoal, coal := r.flag(), r.u64()
	if hasCoal {
		p.Update.MinimumCoalAmount = &coal
	}
	hasCooldown, cooldown := r.flag(), int64(r.u64())
	if hasCooldown {
		p.Update.CooldownPeriod = &cooldown
	}
	n := int(r.u8())
	if n > MaxSigners {
		return nil, tracerr.Wrap(ErrTooManySigners)
	}
	p.Approvals = make([]bool, n)
	for i := 0; i < MaxSigners; i++ {
		a := r.flag()
		if i < n {
			p.Approvals[i] = a
		}
	}
	p.IsExecuted = r.flag()
	p.Nonce = r.u64()
	if r.err != nil {
		return nil, tracerr.Wrap(r.err)
	}
	return &p, nil
}
