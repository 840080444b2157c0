package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hermeznetwork/forge-node/api/parsers"
	"github.com/hermeznetwork/forge-node/apitypes"
)

func (a *API) getMarkets(c *gin.Context) {
	markets, err := a.stateDB.Markets()
	if err != nil {
		retStateErr(err, c)
		return
	}
	c.JSON(http.StatusOK, apitypes.Markets{Markets: markets})
}

func (a *API) getMarket(c *gin.Context) {
	id, err := parsers.ParseIdentityFilter(c)
	if err != nil {
		retBadReq(paramErr(err), c)
		return
	}
	state, err := a.stateDB.GetConversionState(id)
	if err != nil {
		retStateErr(err, c)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (a *API) getGovernance(c *gin.Context) {
	id, err := parsers.ParseIdentityFilter(c)
	if err != nil {
		retBadReq(paramErr(err), c)
		return
	}
	gov, err := a.stateDB.GetGovernanceState(id)
	if err != nil {
		retStateErr(err, c)
		return
	}
	c.JSON(http.StatusOK, gov)
}

func (a *API) getProposals(c *gin.Context) {
	id, err := parsers.ParseIdentityFilter(c)
	if err != nil {
		retBadReq(paramErr(err), c)
		return
	}
	if _, err := a.stateDB.GetGovernanceState(id); err != nil {
		retStateErr(err, c)
		return
	}
	ids, err := a.stateDB.ProposalsOf(id)
	if err != nil {
		retStateErr(err, c)
		return
	}
	proposals := make([]apitypes.ProposalAPI, 0, len(ids))
	for _, proposalID := range ids {
		p, err := a.stateDB.GetProposal(proposalID)
		if err != nil {
			retStateErr(err, c)
			return
		}
		proposals = append(proposals, apitypes.ProposalAPI{ID: proposalID, Proposal: *p})
	}
	c.JSON(http.StatusOK, apitypes.Proposals{Proposals: proposals})
}

func (a *API) getProposal(c *gin.Context) {
	id, err := parsers.ParseIdentityFilter(c)
	if err != nil {
		retBadReq(paramErr(err), c)
		return
	}
	p, err := a.stateDB.GetProposal(id)
	if err != nil {
		retStateErr(err, c)
		return
	}
	c.JSON(http.StatusOK, apitypes.ProposalAPI{ID: id, Proposal: *p})
}

func (a *API) getTokenAccount(c *gin.Context) {
	id, err := parsers.ParseIdentityFilter(c)
	if err != nil {
		retBadReq(paramErr(err), c)
		return
	}
	acc, err := a.ledger.TokenAccount(id)
	if err != nil {
		retStateErr(err, c)
		return
	}
	c.JSON(http.StatusOK, acc)
}

func (a *API) getMint(c *gin.Context) {
	id, err := parsers.ParseIdentityFilter(c)
	if err != nil {
		retBadReq(paramErr(err), c)
		return
	}
	mint, err := a.ledger.MintInfo(id)
	if err != nil {
		retStateErr(err, c)
		return
	}
	c.JSON(http.StatusOK, mint)
}
