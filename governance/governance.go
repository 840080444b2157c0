// Package governance implements the threshold multi-signature that changes
// the parameters of a market once a GovernanceState is attached to it.
//
// A signer creates a Proposal with Propose. Every signer can Approve it once,
// and the approval that reaches the threshold applies the proposed values to
// the market in the same operation. An executed Proposal can not be approved
// again.
package governance

import (
	"github.com/hermeznetwork/forge-node/auth"
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/db/statedb"
	"github.com/hermeznetwork/forge-node/log"
	"github.com/hermeznetwork/tracerr"
)

// InitializeAccounts are the accounts referenced by an
// InitializeGovernance
type InitializeAccounts struct {
	Market     common.Identity
	Authority  common.Identity
	Governance common.Identity
}

// ProposeAccounts are the accounts referenced by a Propose
type ProposeAccounts struct {
	Governance common.Identity
	Proposer   common.Identity
}

// ApproveAccounts are the accounts referenced by an Approve
type ApproveAccounts struct {
	Governance common.Identity
	Proposal   common.Identity
	Signer     common.Identity
}

// Processor processes the governance operations over a StateDB
type Processor struct {
	s *statedb.StateDB
}

// NewProcessor returns a new Processor
func NewProcessor(sdb *statedb.StateDB) *Processor {
	return &Processor{s: sdb}
}

// InitializeGovernance attaches a new GovernanceState to a market. From
// then on the parameters of the market can only change through proposals.
func (p *Processor) InitializeGovernance(signers auth.Signers, acc InitializeAccounts,
	signerList []common.Identity, threshold uint8) ([]common.Event, error) {
	state, err := p.s.GetConversionState(acc.Market)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if !signers.Has(acc.Authority) {
		return nil, tracerr.Wrap(common.ErrMissingRequiredSignature)
	}
	if acc.Authority != state.Authority {
		return nil, tracerr.Wrap(common.ErrUnauthorized)
	}
	if acc.Governance.IsZero() {
		return nil, tracerr.Wrap(common.ErrInvalidInstructionData)
	}
	if state.HasGovernance() {
		return nil, tracerr.Wrap(common.ErrAlreadyInitialized)
	}
	if _, err := p.s.GetGovernanceState(acc.Governance); err == nil {
		return nil, tracerr.Wrap(common.ErrAlreadyInitialized)
	} else if tracerr.Unwrap(err) != common.ErrAccountNotFound {
		return nil, tracerr.Wrap(err)
	}
	if state.IsProcessing {
		return nil, tracerr.Wrap(common.ErrReentrancyDetected)
	}
	gov, err := common.NewGovernanceState(acc.Market, signerList, threshold)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	state.Governance = acc.Governance

	err = p.s.Update(func(tx *statedb.Tx) error {
		if err := tx.PutGovernanceState(acc.Governance, gov); err != nil {
			return tracerr.Wrap(err)
		}
		return tracerr.Wrap(tx.PutConversionState(acc.Market, state))
	})
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	log.Infow("Governance initialized", "market", acc.Market, "governance", acc.Governance,
		"signers", len(gov.Signers), "threshold", threshold)
	return []common.Event{common.GovernanceInitialized{
		Market:     acc.Market,
		Governance: acc.Governance,
		Signers:    gov.Signers,
		Threshold:  threshold,
	}}, nil
}

// Propose stores a new Proposal with the identity derived from the
// governance and its current nonce, and advances the nonce. The proposed
// values are validated when the proposal executes.
func (p *Processor) Propose(signers auth.Signers, acc ProposeAccounts,
	update common.ParamsUpdate) ([]common.Event, error) {
	gov, err := p.s.GetGovernanceState(acc.Governance)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if !signers.Has(acc.Proposer) {
		return nil, tracerr.Wrap(common.ErrMissingRequiredSignature)
	}
	if !gov.IsSigner(acc.Proposer) {
		return nil, tracerr.Wrap(common.ErrUnauthorizedProposer)
	}
	id, err := common.ProposalID(acc.Governance, gov.Nonce)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if _, err := p.s.GetProposal(id); err == nil {
		return nil, tracerr.Wrap(common.ErrAlreadyInitialized)
	} else if tracerr.Unwrap(err) != common.ErrAccountNotFound {
		return nil, tracerr.Wrap(err)
	}
	proposal := common.NewProposal(gov, acc.Governance, acc.Proposer, update)
	gov.Nonce++

	err = p.s.Update(func(tx *statedb.Tx) error {
		if err := tx.PutProposal(id, proposal); err != nil {
			return tracerr.Wrap(err)
		}
		return tracerr.Wrap(tx.PutGovernanceState(acc.Governance, gov))
	})
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	log.Debugw("Proposal created", "governance", acc.Governance, "proposal", id,
		"proposer", acc.Proposer, "nonce", proposal.Nonce)
	return []common.Event{common.ProposalCreated{
		ProposalID: id,
		Proposer:   acc.Proposer,
	}}, nil
}

// Approve sets the approval of the signer. When the approvals reach the
// threshold the proposal is executed: every present value is validated and
// only then written to the market, in the same batch as the approval.
func (p *Processor) Approve(signers auth.Signers, acc ApproveAccounts) ([]common.Event, error) {
	gov, err := p.s.GetGovernanceState(acc.Governance)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	proposal, err := p.s.GetProposal(acc.Proposal)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if proposal.Governance != acc.Governance {
		return nil, tracerr.Wrap(common.ErrInvalidProposal)
	}
	if !signers.Has(acc.Signer) {
		return nil, tracerr.Wrap(common.ErrMissingRequiredSignature)
	}
	if proposal.IsExecuted {
		return nil, tracerr.Wrap(common.ErrProposalAlreadyExecuted)
	}
	idx := gov.SignerIndex(acc.Signer)
	if idx < 0 || idx >= len(proposal.Approvals) {
		return nil, tracerr.Wrap(common.ErrUnauthorizedSigner)
	}
	if proposal.Approvals[idx] {
		return nil, tracerr.Wrap(common.ErrAlreadyApproved)
	}
	proposal.Approvals[idx] = true
	events := []common.Event{common.ProposalApproved{
		ProposalID: acc.Proposal,
		Signer:     acc.Signer,
	}}

	var state *common.ConversionState
	if proposal.ApprovalCount() >= int(gov.Threshold) {
		state, err = p.s.GetConversionState(gov.Market)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		if state.IsProcessing {
			return nil, tracerr.Wrap(common.ErrReentrancyDetected)
		}
		if err := proposal.Update.Apply(state); err != nil {
			return nil, tracerr.Wrap(err)
		}
		proposal.IsExecuted = true
		events = append(events, common.ProposalExecuted{ProposalID: acc.Proposal})
	}

	err = p.s.Update(func(tx *statedb.Tx) error {
		if err := tx.PutProposal(acc.Proposal, proposal); err != nil {
			return tracerr.Wrap(err)
		}
		if state == nil {
			return nil
		}
		return tracerr.Wrap(tx.PutConversionState(gov.Market, state))
	})
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if proposal.IsExecuted {
		log.Infow("Proposal executed", "governance", acc.Governance, "proposal", acc.Proposal,
			"market", gov.Market, "params", state.Params())
	} else {
		log.Debugw("Proposal approved", "proposal", acc.Proposal, "signer", acc.Signer,
			"approvals", proposal.ApprovalCount(), "threshold", gov.Threshold)
	}
	return events, nil
}
