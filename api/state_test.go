package api

import (
	"net/http"
	"testing"

	"github.com/hermeznetwork/forge-node/apitypes"
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/ledger"
	"github.com/hermeznetwork/forge-node/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMarkets(t *testing.T) {
	var fetched apitypes.Markets
	require.NoError(t, doGoodReq("GET", apiURL+"markets", nil, &fetched))
	assert.Equal(t, []common.Identity{tc.market.ID}, fetched.Markets)
}

func TestGetMarket(t *testing.T) {
	var fetched common.ConversionState
	require.NoError(t, doGoodReq("GET", apiURL+"markets/"+tc.market.ID.String(), nil, &fetched))
	assert.True(t, fetched.IsInitialized)
	assert.Equal(t, tc.market.Authority, fetched.Authority)
	assert.Equal(t, tc.market.IngotMint, fetched.IngotToken)
	assert.Equal(t, uint8(80), fetched.SuccessRate)
	assert.Equal(t, uint64(10), fetched.MinimumCoalAmount)
	assert.Equal(t, tc.governance, fetched.Governance)
	assert.GreaterOrEqual(t, fetched.TotalIngotsMinted, uint64(1000))
	assert.False(t, fetched.IsProcessing)

	errResp, err := doBadReq("GET", apiURL+"markets/"+test.Identity("nope").String(), nil,
		http.StatusNotFound)
	require.NoError(t, err)
	assert.Equal(t, uint(ErrNotFoundCode), errResp.Code)
	errResp, err = doBadReq("GET", apiURL+"markets/iron", nil, http.StatusBadRequest)
	require.NoError(t, err)
	assert.Equal(t, uint(ErrParamValidationFailedCode), errResp.Code)
}

func TestGetGovernance(t *testing.T) {
	var fetched common.GovernanceState
	require.NoError(t, doGoodReq("GET", apiURL+"governances/"+tc.governance.String(), nil, &fetched))
	assert.Equal(t, tc.market.ID, fetched.Market)
	assert.Equal(t, uint8(2), fetched.Threshold)
	assert.Equal(t, uint64(1), fetched.Nonce)
	assert.Equal(t, []common.Identity{tc.users["alice"].ID, tc.users["bob"].ID, tc.users["carol"].ID},
		fetched.Signers)

	_, err := doBadReq("GET", apiURL+"governances/"+tc.market.ID.String(), nil, http.StatusNotFound)
	assert.NoError(t, err)
}

func TestGetProposals(t *testing.T) {
	var fetched apitypes.Proposals
	require.NoError(t, doGoodReq("GET", apiURL+"governances/"+tc.governance.String()+"/proposals", nil,
		&fetched))
	require.Equal(t, 1, len(fetched.Proposals))
	p := fetched.Proposals[0]
	assert.Equal(t, tc.proposal, p.ID)
	assert.Equal(t, tc.users["alice"].ID, p.ProposedBy)
	assert.Equal(t, []bool{false, false, false}, p.Approvals)
	assert.False(t, p.IsExecuted)
	require.NotNil(t, p.Update.CooldownPeriod)
	assert.Equal(t, int64(60), *p.Update.CooldownPeriod)

	var single apitypes.ProposalAPI
	require.NoError(t, doGoodReq("GET", apiURL+"proposals/"+tc.proposal.String(), nil, &single))
	assert.Equal(t, p, single)

	_, err := doBadReq("GET", apiURL+"governances/"+tc.market.ID.String()+"/proposals", nil,
		http.StatusNotFound)
	assert.NoError(t, err)
}

func TestGetLedgerRecords(t *testing.T) {
	alice := tc.users["alice"]
	var acc ledger.TokenAccount
	require.NoError(t, doGoodReq("GET", apiURL+"token-accounts/"+alice.TokenAccount(tc.market.OreMint).String(),
		nil, &acc))
	assert.Equal(t, alice.ID, acc.Owner)
	assert.Equal(t, tc.market.OreMint, acc.Mint)

	var mint ledger.Mint
	require.NoError(t, doGoodReq("GET", apiURL+"mints/"+tc.market.IngotMint.String(), nil, &mint))
	assert.Equal(t, tc.market.SigningAuthority, mint.Authority)
	assert.Equal(t, uint8(6), mint.Decimals)
	assert.GreaterOrEqual(t, mint.Supply, uint64(1000))
}
