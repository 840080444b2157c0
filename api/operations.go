package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hermeznetwork/forge-node/api/parsers"
	"github.com/hermeznetwork/forge-node/apitypes"
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/db/historydb"
	"github.com/hermeznetwork/forge-node/log"
	"github.com/hermeznetwork/tracerr"
)

func (a *API) postOperation(c *gin.Context) {
	var op common.Operation
	if err := c.ShouldBindJSON(&op); err != nil {
		retBadReq(paramErr(err), c)
		return
	}
	res, err := a.engine.Execute(&op)
	if err != nil {
		unwrapErr := tracerr.Unwrap(err)
		if !common.IsEngineError(unwrapErr) {
			log.Errorw("HTTP API Engine.Execute", "hash", res.Hash, "err", err)
			c.JSON(http.StatusInternalServerError, errorResponse(unwrapErr, ErrInternalCode, ErrInternalType))
			return
		}
		code := common.Code(unwrapErr)
		resp := errorResponse(unwrapErr, ErrOperationRejectedCode, ErrOperationRejectedType)
		resp.Hash = &res.Hash
		resp.EngineCode = &code
		c.JSON(http.StatusBadRequest, resp)
		return
	}
	c.JSON(http.StatusOK, apitypes.OperationResult{
		Hash:        res.Hash,
		Instruction: res.Tag.String(),
		Market:      res.Market,
		Events:      apitypes.NewEventsAPI(res.Events),
	})
}

func (a *API) getOperation(c *gin.Context) {
	hash, err := parsers.ParseOperationFilter(c)
	if err != nil {
		retBadReq(paramErr(err), c)
		return
	}
	op, err := a.historyDB.GetOperationAPI(hash)
	if err != nil {
		retSQLErr(err, c)
		return
	}
	c.JSON(http.StatusOK, op)
}

func (a *API) getOperations(c *gin.Context) {
	filters, err := parsers.ParseOperationsFilters(c, a.validate)
	if err != nil {
		retBadReq(paramErr(err), c)
		return
	}
	ops, pendingItems, err := a.historyDB.GetOperationsAPI(filters)
	if err != nil {
		retSQLErr(err, c)
		return
	}

	// Build successful response
	type operationsResponse struct {
		Operations   []historydb.OperationAPI `json:"operations"`
		PendingItems uint64                   `json:"pendingItems"`
	}
	c.JSON(http.StatusOK, &operationsResponse{
		Operations:   ops,
		PendingItems: pendingItems,
	})
}

func (a *API) getEvents(c *gin.Context) {
	filters, err := parsers.ParseEventsFilters(c, a.validate)
	if err != nil {
		retBadReq(paramErr(err), c)
		return
	}
	events, pendingItems, err := a.historyDB.GetEventsAPI(filters)
	if err != nil {
		retSQLErr(err, c)
		return
	}

	// Build successful response
	type eventsResponse struct {
		Events       []historydb.EventAPI `json:"events"`
		PendingItems uint64               `json:"pendingItems"`
	}
	c.JSON(http.StatusOK, &eventsResponse{
		Events:       events,
		PendingItems: pendingItems,
	})
}
