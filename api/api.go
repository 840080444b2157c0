/*
Package api implements the HTTP API of the forge node.

Operations are submitted with POST /v1/operations and executed synchronously
by the engine; the response carries either the events of the accepted
operation or the engine error code of the rejection. The remaining
endpoints read the StateDB (markets, governances, proposals and, when a
ledger is given, token accounts and mints) and the HistoryDB (operations
and events).

Paginated endpoints accept the query params fromItem, order (ASC or DESC)
and limit, and return the total number of matching items in pendingItems
counting from fromItem.
*/
package api

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/hermeznetwork/forge-node/api/parsers"
	"github.com/hermeznetwork/forge-node/db/historydb"
	"github.com/hermeznetwork/forge-node/db/statedb"
	"github.com/hermeznetwork/forge-node/engine"
	"github.com/hermeznetwork/forge-node/ledger"
	"github.com/hermeznetwork/tracerr"
	"golang.org/x/time/rate"
	"gopkg.in/go-playground/validator.v9"
)

// Config of the API
type Config struct {
	Version string
	// RequestsPerSecond and Burst limit the rate of POST /operations. A
	// RequestsPerSecond of 0 disables the limit.
	RequestsPerSecond float64
	Burst             int
}

// API serves HTTP requests to allow external interaction with the forge node
type API struct {
	engine    *engine.Engine
	stateDB   *statedb.StateDB
	historyDB *historydb.HistoryDB
	ledger    ledger.TokenLedger
	validate  *validator.Validate
	limiter   *rate.Limiter
	version   string
}

// NewAPI sets the endpoints and the appropriate handlers, but doesn't start
// the server. hdb and l can be nil, in which case the endpoints that need
// them are not served.
func NewAPI(
	server *gin.Engine,
	eng *engine.Engine,
	hdb *historydb.HistoryDB,
	l ledger.TokenLedger,
	cfg Config,
) (*API, error) {
	if eng == nil {
		return nil, tracerr.Wrap(errors.New("cannot serve the API without Engine"))
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	a := &API{
		engine:    eng,
		stateDB:   eng.StateDB(),
		historyDB: hdb,
		ledger:    l,
		validate:  newValidate(),
		limiter:   rate.NewLimiter(limit, burst),
		version:   cfg.Version,
	}

	v1 := server.Group("/v1")

	// Operations
	v1.POST("/operations", a.rateLimit, a.postOperation)
	// State
	v1.GET("/markets", a.getMarkets)
	v1.GET("/markets/:id", a.getMarket)
	v1.GET("/governances/:id", a.getGovernance)
	v1.GET("/governances/:id/proposals", a.getProposals)
	v1.GET("/proposals/:id", a.getProposal)
	if l != nil {
		v1.GET("/token-accounts/:id", a.getTokenAccount)
		v1.GET("/mints/:id", a.getMint)
	}
	// History
	if hdb != nil {
		v1.GET("/operations", a.getOperations)
		v1.GET("/operations/:hash", a.getOperation)
		v1.GET("/events", a.getEvents)
	}
	v1.GET("/health", gin.WrapH(a.healthRoute()))

	server.NoRoute(a.noRoute)

	return a, nil
}

func newValidate() *validator.Validate {
	validate := validator.New()
	validate.RegisterStructValidation(parsers.OperationsFiltersStructValidation, parsers.OperationsFilters{})
	validate.RegisterStructValidation(parsers.EventsFiltersStructValidation, parsers.EventsFilters{})
	return validate
}
