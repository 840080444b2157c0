package governance

import (
	"testing"

	"github.com/hermeznetwork/forge-node/auth"
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/db/statedb"
	"github.com/hermeznetwork/forge-node/test"
	"github.com/hermeznetwork/tracerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	sdb        *statedb.StateDB
	p          *Processor
	users      map[string]*test.User
	market     common.Identity
	governance common.Identity
}

func newTestEnv(t *testing.T) *testEnv {
	sdb, err := statedb.NewStateDB(statedb.Config{Type: statedb.TypeMemory})
	require.NoError(t, err)
	env := &testEnv{
		sdb:        sdb,
		p:          NewProcessor(sdb),
		users:      test.GenerateUsers([]string{"owner", "A", "B", "C", "D"}),
		market:     test.Identity("market/iron"),
		governance: test.Identity("governance/iron"),
	}
	state := &common.ConversionState{
		IsInitialized:     true,
		Authority:         env.users["owner"].ID,
		SuccessRate:       80,
		MinimumCoalAmount: 10,
		CooldownPeriod:    0,
	}
	require.NoError(t, sdb.PutConversionState(env.market, state))
	return env
}

func (env *testEnv) id(name string) common.Identity {
	return env.users[name].ID
}

func (env *testEnv) initGovernance(t *testing.T, threshold uint8, names ...string) {
	signerList := make([]common.Identity, len(names))
	for i, name := range names {
		signerList[i] = env.id(name)
	}
	_, err := env.p.InitializeGovernance(auth.NewSigners(env.id("owner")), InitializeAccounts{
		Market:     env.market,
		Authority:  env.id("owner"),
		Governance: env.governance,
	}, signerList, threshold)
	require.NoError(t, err)
}

func (env *testEnv) propose(t *testing.T, proposer string, update common.ParamsUpdate) common.Identity {
	events, err := env.p.Propose(auth.NewSigners(env.id(proposer)), ProposeAccounts{
		Governance: env.governance,
		Proposer:   env.id(proposer),
	}, update)
	require.NoError(t, err)
	require.Len(t, events, 1)
	return events[0].(common.ProposalCreated).ProposalID
}

func (env *testEnv) approve(proposal common.Identity, signer string) ([]common.Event, error) {
	return env.p.Approve(auth.NewSigners(env.id(signer)), ApproveAccounts{
		Governance: env.governance,
		Proposal:   proposal,
		Signer:     env.id(signer),
	})
}

func (env *testEnv) state(t *testing.T) *common.ConversionState {
	state, err := env.sdb.GetConversionState(env.market)
	require.NoError(t, err)
	return state
}

func TestInitializeGovernance(t *testing.T) {
	env := newTestEnv(t)
	owner := auth.NewSigners(env.id("owner"))
	acc := InitializeAccounts{Market: env.market, Authority: env.id("owner"), Governance: env.governance}
	abc := []common.Identity{env.id("A"), env.id("B"), env.id("C")}

	_, err := env.p.InitializeGovernance(auth.NewSigners(env.id("A")), acc, abc, 2)
	assert.Equal(t, common.ErrMissingRequiredSignature, tracerr.Unwrap(err))
	_, err = env.p.InitializeGovernance(auth.NewSigners(env.id("A")), InitializeAccounts{
		Market: env.market, Authority: env.id("A"), Governance: env.governance}, abc, 2)
	assert.Equal(t, common.ErrUnauthorized, tracerr.Unwrap(err))
	_, err = env.p.InitializeGovernance(owner, acc, abc, 0)
	assert.Equal(t, common.ErrInvalidThreshold, tracerr.Unwrap(err))
	_, err = env.p.InitializeGovernance(owner, acc, abc, 4)
	assert.Equal(t, common.ErrInvalidSignerCount, tracerr.Unwrap(err))
	_, err = env.p.InitializeGovernance(owner, acc, []common.Identity{env.id("A"), env.id("A")}, 1)
	assert.Equal(t, common.ErrDuplicateSigner, tracerr.Unwrap(err))
	eleven := make([]common.Identity, common.MaxSigners+1)
	for i := range eleven {
		eleven[i] = test.Identity(string(rune('a' + i)))
	}
	_, err = env.p.InitializeGovernance(owner, acc, eleven, 2)
	assert.Equal(t, common.ErrTooManySigners, tracerr.Unwrap(err))
	assert.False(t, env.state(t).HasGovernance())

	events, err := env.p.InitializeGovernance(owner, acc, abc, 2)
	require.NoError(t, err)
	assert.Equal(t, []common.Event{common.GovernanceInitialized{
		Market:     env.market,
		Governance: env.governance,
		Signers:    abc,
		Threshold:  2,
	}}, events)
	assert.Equal(t, env.governance, env.state(t).Governance)
	gov, err := env.sdb.GetGovernanceState(env.governance)
	require.NoError(t, err)
	assert.Equal(t, abc, gov.Signers)
	assert.Equal(t, uint8(2), gov.Threshold)
	assert.Equal(t, uint64(0), gov.Nonce)

	_, err = env.p.InitializeGovernance(owner, acc, abc, 2)
	assert.Equal(t, common.ErrAlreadyInitialized, tracerr.Unwrap(err))
}

func TestProposeApproveExecute(t *testing.T) {
	env := newTestEnv(t)
	env.initGovernance(t, 2, "A", "B", "C")
	cooldown := int64(3600)
	proposal := env.propose(t, "A", common.ParamsUpdate{CooldownPeriod: &cooldown})

	expectedID, err := common.ProposalID(env.governance, 0)
	require.NoError(t, err)
	assert.Equal(t, expectedID, proposal)
	gov, err := env.sdb.GetGovernanceState(env.governance)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), gov.Nonce)

	events, err := env.approve(proposal, "A")
	require.NoError(t, err)
	assert.Equal(t, []common.Event{common.ProposalApproved{ProposalID: proposal,
		Signer: env.id("A")}}, events)
	assert.Equal(t, int64(0), env.state(t).CooldownPeriod)

	_, err = env.approve(proposal, "A")
	assert.Equal(t, common.ErrAlreadyApproved, tracerr.Unwrap(err))

	events, err = env.approve(proposal, "B")
	require.NoError(t, err)
	assert.Equal(t, []common.Event{
		common.ProposalApproved{ProposalID: proposal, Signer: env.id("B")},
		common.ProposalExecuted{ProposalID: proposal},
	}, events)
	state := env.state(t)
	assert.Equal(t, int64(3600), state.CooldownPeriod)
	assert.Equal(t, uint8(80), state.SuccessRate)
	assert.Equal(t, uint64(10), state.MinimumCoalAmount)
	stored, err := env.sdb.GetProposal(proposal)
	require.NoError(t, err)
	assert.True(t, stored.IsExecuted)
	assert.Equal(t, []bool{true, true, false}, stored.Approvals)

	_, err = env.approve(proposal, "C")
	assert.Equal(t, common.ErrProposalAlreadyExecuted, tracerr.Unwrap(err))
	stored, err = env.sdb.GetProposal(proposal)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, true, false}, stored.Approvals)
}

func TestProposeErrors(t *testing.T) {
	env := newTestEnv(t)
	env.initGovernance(t, 2, "A", "B", "C")
	rate := uint8(50)
	acc := ProposeAccounts{Governance: env.governance, Proposer: env.id("D")}

	_, err := env.p.Propose(auth.NewSigners(env.id("D")), acc, common.ParamsUpdate{SuccessRate: &rate})
	assert.Equal(t, common.ErrUnauthorizedProposer, tracerr.Unwrap(err))
	acc.Proposer = env.id("A")
	_, err = env.p.Propose(auth.NewSigners(env.id("B")), acc, common.ParamsUpdate{SuccessRate: &rate})
	assert.Equal(t, common.ErrMissingRequiredSignature, tracerr.Unwrap(err))

	gov, err := env.sdb.GetGovernanceState(env.governance)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), gov.Nonce)

	// the values are checked on execution only
	_, err = env.p.Propose(auth.NewSigners(env.id("A")), acc, common.ParamsUpdate{})
	require.NoError(t, err)
	badRate := uint8(120)
	_, err = env.p.Propose(auth.NewSigners(env.id("A")), acc, common.ParamsUpdate{SuccessRate: &badRate})
	require.NoError(t, err)
	gov, err = env.sdb.GetGovernanceState(env.governance)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), gov.Nonce)

	_, err = env.p.Propose(auth.NewSigners(env.id("A")), ProposeAccounts{
		Governance: test.Identity("governance/unknown"), Proposer: env.id("A")},
		common.ParamsUpdate{SuccessRate: &rate})
	assert.Equal(t, common.ErrAccountNotFound, tracerr.Unwrap(err))
}

func TestApproveErrors(t *testing.T) {
	env := newTestEnv(t)
	env.initGovernance(t, 2, "A", "B", "C")
	rate := uint8(50)
	proposal := env.propose(t, "B", common.ParamsUpdate{SuccessRate: &rate})

	_, err := env.approve(proposal, "D")
	assert.Equal(t, common.ErrUnauthorizedSigner, tracerr.Unwrap(err))
	_, err = env.p.Approve(auth.NewSigners(env.id("B")), ApproveAccounts{
		Governance: env.governance, Proposal: proposal, Signer: env.id("A")})
	assert.Equal(t, common.ErrMissingRequiredSignature, tracerr.Unwrap(err))
	_, err = env.approve(test.Identity("proposal/unknown"), "A")
	assert.Equal(t, common.ErrAccountNotFound, tracerr.Unwrap(err))

	// a proposal of another governance
	other := test.Identity("governance/other")
	gov, err := common.NewGovernanceState(env.market, []common.Identity{env.id("A")}, 1)
	require.NoError(t, err)
	require.NoError(t, env.sdb.Update(func(tx *statedb.Tx) error {
		return tx.PutGovernanceState(other, gov)
	}))
	_, err = env.p.Approve(auth.NewSigners(env.id("A")), ApproveAccounts{
		Governance: other, Proposal: proposal, Signer: env.id("A")})
	assert.Equal(t, common.ErrInvalidProposal, tracerr.Unwrap(err))
}

func TestExecutionAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	env.initGovernance(t, 2, "A", "B", "C")
	rate := uint8(90)
	negative := int64(-5)
	id := env.propose(t, "A", common.ParamsUpdate{SuccessRate: &rate, CooldownPeriod: &negative})

	_, err := env.approve(id, "A")
	require.NoError(t, err)
	_, err = env.approve(id, "C")
	assert.Equal(t, common.ErrInvalidCooldownPeriod, tracerr.Unwrap(err))

	state := env.state(t)
	assert.Equal(t, uint8(80), state.SuccessRate)
	assert.Equal(t, int64(0), state.CooldownPeriod)
	stored, err := env.sdb.GetProposal(id)
	require.NoError(t, err)
	assert.False(t, stored.IsExecuted)
	assert.Equal(t, []bool{true, false, false}, stored.Approvals)

	// an out of range success rate alone fails the same way
	badRate := uint8(101)
	id = env.propose(t, "B", common.ParamsUpdate{SuccessRate: &badRate})
	_, err = env.approve(id, "A")
	require.NoError(t, err)
	_, err = env.approve(id, "B")
	assert.Equal(t, common.ErrInvalidSuccessRate, tracerr.Unwrap(err))
	assert.Equal(t, uint8(80), env.state(t).SuccessRate)
}

func TestThresholdOne(t *testing.T) {
	env := newTestEnv(t)
	env.initGovernance(t, 1, "A", "B")
	rate := uint8(0)
	coal := uint64(99)
	first := env.propose(t, "B", common.ParamsUpdate{SuccessRate: &rate})
	second := env.propose(t, "A", common.ParamsUpdate{MinimumCoalAmount: &coal})
	assert.NotEqual(t, first, second)

	events, err := env.approve(second, "B")
	require.NoError(t, err)
	assert.Len(t, events, 2)
	events, err = env.approve(first, "A")
	require.NoError(t, err)
	assert.Len(t, events, 2)
	state := env.state(t)
	assert.Equal(t, uint8(0), state.SuccessRate)
	assert.Equal(t, uint64(99), state.MinimumCoalAmount)

	ids, err := env.sdb.ProposalsOf(env.governance)
	require.NoError(t, err)
	assert.ElementsMatch(t, []common.Identity{first, second}, ids)
}
