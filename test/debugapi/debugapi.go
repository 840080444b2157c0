package debugapi

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/db/statedb"
	"github.com/hermeznetwork/forge-node/engine"
	"github.com/hermeznetwork/forge-node/ledger"
	"github.com/hermeznetwork/forge-node/log"
	"github.com/hermeznetwork/tracerr"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func handleNoRoute(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error": "404 page not found",
	})
}

type errorMsg struct {
	Message string
}

func badReq(err error, c *gin.Context) {
	log.Errorw("Bad request", "err", err)
	c.JSON(http.StatusBadRequest, errorMsg{
		Message: err.Error(),
	})
}

// DebugAPI is an http API with debugging endpoints
type DebugAPI struct {
	addr    string
	engine  *engine.Engine
	stateDB *statedb.StateDB
	ledger  ledger.TokenLedger
}

// NewDebugAPI creates a new DebugAPI
func NewDebugAPI(addr string, eng *engine.Engine, l ledger.TokenLedger) *DebugAPI {
	return &DebugAPI{
		addr:    addr,
		engine:  eng,
		stateDB: eng.StateDB(),
		ledger:  l,
	}
}

func parseIdentity(c *gin.Context) (common.Identity, bool) {
	uri := struct {
		ID string `uri:"id" binding:"required"`
	}{}
	if err := c.ShouldBindUri(&uri); err != nil {
		badReq(err, c)
		return common.EmptyIdentity, false
	}
	id, err := common.HexToIdentity(uri.ID)
	if err != nil {
		badReq(err, c)
		return common.EmptyIdentity, false
	}
	return id, true
}

func (a *DebugAPI) handleCurrentCheckpoint(c *gin.Context) {
	c.JSON(http.StatusOK, a.stateDB.CurrentCheckpoint())
}

func (a *DebugAPI) handleCheckpoints(c *gin.Context) {
	list, err := a.stateDB.ListCheckpoints()
	if err != nil {
		badReq(err, c)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (a *DebugAPI) handleMakeCheckpoint(c *gin.Context) {
	checkpoint, err := a.engine.MakeCheckpoint()
	if err != nil {
		badReq(err, c)
		return
	}
	c.JSON(http.StatusOK, checkpoint)
}

func (a *DebugAPI) handleOperation(c *gin.Context) {
	uri := struct {
		Hash string `uri:"hash" binding:"required"`
	}{}
	if err := c.ShouldBindUri(&uri); err != nil {
		badReq(err, c)
		return
	}
	hash, err := hexutil.Decode(uri.Hash)
	if err != nil {
		badReq(err, c)
		return
	}
	executed, err := a.stateDB.HasOperation(hash)
	if err != nil {
		badReq(err, c)
		return
	}
	c.JSON(http.StatusOK, executed)
}

func (a *DebugAPI) handleNativeBalance(c *gin.Context) {
	owner, ok := parseIdentity(c)
	if !ok {
		return
	}
	balance, err := a.ledger.NativeBalance(owner)
	if err != nil {
		badReq(err, c)
		return
	}
	c.JSON(http.StatusOK, balance)
}

// Handler returns the http.Handler serving the debug endpoints
func (a *DebugAPI) Handler() http.Handler {
	api := gin.Default()
	api.NoRoute(handleNoRoute)
	api.Use(cors.Default())
	debugAPI := api.Group("/debug")

	debugAPI.GET("/metrics", gin.WrapH(promhttp.Handler()))

	debugAPI.GET("sdb/checkpoint", a.handleCurrentCheckpoint)
	debugAPI.POST("sdb/checkpoint", a.handleMakeCheckpoint)
	debugAPI.GET("sdb/checkpoints", a.handleCheckpoints)
	debugAPI.GET("sdb/operations/:hash", a.handleOperation)
	if a.ledger != nil {
		debugAPI.GET("ledger/native/:id", a.handleNativeBalance)
	}
	return api
}

// Run starts the http server of the DebugAPI.  To stop it, pass a context
// with cancellation (see `debugapi_test.go` for an example).
func (a *DebugAPI) Run(ctx context.Context) error {
	debugAPIServer := &http.Server{
		Handler: a.Handler(),
		// Use some hardcoded numbers that are suitable for testing
		ReadTimeout:    30 * time.Second, //nolint:gomnd
		WriteTimeout:   30 * time.Second, //nolint:gomnd
		MaxHeaderBytes: 1 << 20,          //nolint:gomnd
	}
	listener, err := net.Listen("tcp", a.addr)
	if err != nil {
		return tracerr.Wrap(err)
	}
	log.Infof("DebugAPI is ready at %v", a.addr)
	go func() {
		if err := debugAPIServer.Serve(listener); err != nil &&
			tracerr.Unwrap(err) != http.ErrServerClosed {
			log.Fatalf("Listen: %s\n", err)
		}
	}()

	<-ctx.Done()
	log.Info("Stopping DebugAPI...")
	ctxTimeout, cancel := context.WithTimeout(context.Background(), 10*time.Second) //nolint:gomnd
	defer cancel()
	if err := debugAPIServer.Shutdown(ctxTimeout); err != nil {
		return tracerr.Wrap(err)
	}
	log.Info("DebugAPI done")
	return nil
}
