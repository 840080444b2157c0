/*
Package node wires the components of a forge node from its configuration:
the StateDB, the token ledger, the optional HistoryDB, the engine and the
HTTP servers (API and debug API).
*/
package node

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hermeznetwork/forge-node/api"
	"github.com/hermeznetwork/forge-node/auth"
	"github.com/hermeznetwork/forge-node/clock"
	"github.com/hermeznetwork/forge-node/config"
	dbUtils "github.com/hermeznetwork/forge-node/db"
	"github.com/hermeznetwork/forge-node/db/historydb"
	"github.com/hermeznetwork/forge-node/db/statedb"
	"github.com/hermeznetwork/forge-node/engine"
	"github.com/hermeznetwork/forge-node/ledger"
	"github.com/hermeznetwork/forge-node/log"
	"github.com/hermeznetwork/forge-node/metric"
	"github.com/hermeznetwork/forge-node/test/debugapi"
	"github.com/hermeznetwork/tracerr"
	"github.com/jmoiron/sqlx"
	"github.com/russross/meddler"
)

// Version of the node, set at build time
var Version = "v0.0.0"

// Node is the forge node
type Node struct {
	nodeAPI  *NodeAPI
	debugAPI *debugapi.DebugAPI

	engine  *engine.Engine
	stateDB *statedb.StateDB
	ledger  *ledger.KVLedger

	// General
	cfg     *config.Node
	sqlConn *sqlx.DB
	ctx     context.Context
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewHistoryDB connects to the HistoryDB of cfg, returning nil when no
// driver is configured
func NewHistoryDB(cfg *config.Node) (*sqlx.DB, error) {
	var dsn string
	switch cfg.HistoryDB.Driver {
	case "":
		return nil, nil
	case dbUtils.DriverSQLite:
		dsn = dbUtils.SQLiteDSN(cfg.HistoryDB.SQLitePath)
	case dbUtils.DriverPostgres:
		pg := cfg.HistoryDB.PostgreSQL
		dsn = dbUtils.PostgresDSN(pg.Port, pg.Host, pg.User, pg.Password, pg.Name)
	}
	db, err := dbUtils.InitSQLDB(cfg.HistoryDB.Driver, dsn)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return db, nil
}

// NewStateDB opens the StateDB of cfg and applies the ledger genesis
func NewStateDB(cfg *config.Node) (*statedb.StateDB, *ledger.KVLedger, error) {
	stateDB, err := statedb.NewStateDB(statedb.Config{
		Type: cfg.StateDB.Type,
		Path: cfg.StateDB.Path,
		Keep: cfg.StateDB.Keep,
	})
	if err != nil {
		return nil, nil, tracerr.Wrap(err)
	}
	kv := ledger.NewKVLedger(stateDB, cfg.Ledger.MinimumBalance)
	if cfg.Ledger.GenesisPath != "" {
		genesis, err := ledger.LoadGenesis(cfg.Ledger.GenesisPath)
		if err != nil {
			stateDB.Close()
			return nil, nil, tracerr.Wrap(err)
		}
		if err := kv.ApplyGenesis(genesis); err != nil {
			stateDB.Close()
			return nil, nil, tracerr.Wrap(err)
		}
	}
	return stateDB, kv, nil
}

// NewNode creates a Node
func NewNode(cfg *config.Node) (*Node, error) {
	meddler.Debug = cfg.Debug.MeddlerLogs
	db, err := NewHistoryDB(cfg)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	var historyDB *historydb.HistoryDB
	if db != nil {
		apiConnCon := dbUtils.NewAPIConnectionController(
			cfg.API.MaxSQLConnections,
			cfg.API.SQLConnectionTimeout.Duration,
		)
		historyDB = historydb.NewHistoryDB(db, apiConnCon)
	}

	stateDB, kv, err := NewStateDB(cfg)
	if err != nil {
		if db != nil {
			db.Close() //nolint:errcheck
		}
		return nil, tracerr.Wrap(err)
	}

	slotClock := clock.NewSlotClock(time.Unix(cfg.Clock.Genesis, 0), cfg.Clock.SlotDuration.Duration)
	eng := engine.NewEngine(
		engine.Config{CheckpointInterval: cfg.Engine.CheckpointInterval},
		stateDB,
		historyDB,
		kv,
		auth.BJJAuthenticator{},
		slotClock,
		nil,
	)

	var nodeAPI *NodeAPI
	if cfg.API.Address != "" {
		if cfg.Debug.GinDebugMode {
			gin.SetMode(gin.DebugMode)
		} else {
			gin.SetMode(gin.ReleaseMode)
		}
		nodeAPI, err = NewNodeAPI(cfg.API, eng, historyDB, kv)
		if err != nil {
			stateDB.Close()
			return nil, tracerr.Wrap(err)
		}
	}
	var debugAPI *debugapi.DebugAPI
	if cfg.Debug.APIAddress != "" {
		debugAPI = debugapi.NewDebugAPI(cfg.Debug.APIAddress, eng, kv)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Node{
		nodeAPI:  nodeAPI,
		debugAPI: debugAPI,
		engine:   eng,
		stateDB:  stateDB,
		ledger:   kv,
		cfg:      cfg,
		sqlConn:  db,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Engine returns the engine of the node
func (n *Node) Engine() *engine.Engine {
	return n.engine
}

// NodeAPI holds the node http API
type NodeAPI struct { //nolint:golint
	api    *api.API
	engine *gin.Engine
	cfg    config.APIConfigParameters
}

// NewNodeAPI creates a new NodeAPI (which internally calls api.NewAPI)
func NewNodeAPI(
	cfg config.APIConfigParameters,
	eng *engine.Engine,
	hdb *historydb.HistoryDB,
	l ledger.TokenLedger,
) (*NodeAPI, error) {
	server := gin.Default()
	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = cfg.AllowOrigins
	if len(cfg.AllowOrigins) == 0 || (len(cfg.AllowOrigins) == 1 && cfg.AllowOrigins[0] == "*") {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowAllOrigins = true
	}
	server.Use(cors.New(corsCfg))
	mw, err := metric.PrometheusMiddleware()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	server.Use(mw)
	_api, err := api.NewAPI(
		server,
		eng,
		hdb,
		l,
		api.Config{
			Version:           Version,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
		},
	)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return &NodeAPI{
		api:    _api,
		engine: server,
		cfg:    cfg,
	}, nil
}

// Run starts the http server of the NodeAPI.  To stop it, pass a context with
// cancelation.
func (a *NodeAPI) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:           a.cfg.Address,
		Handler:        a.engine,
		ReadTimeout:    a.cfg.ReadTimeout.Duration,
		WriteTimeout:   a.cfg.WriteTimeout.Duration,
		MaxHeaderBytes: 1 << 20, //nolint:gomnd
	}
	go func() {
		log.Infof("NodeAPI is ready at %v", a.cfg.Address)
		if err := server.ListenAndServe(); err != nil && tracerr.Unwrap(err) != http.ErrServerClosed {
			log.Fatalf("Listen: %s\n", err)
		}
	}()

	<-ctx.Done()
	log.Info("Stopping NodeAPI...")
	ctxTimeout, cancel := context.WithTimeout(context.Background(), 10*time.Second) //nolint:gomnd
	defer cancel()
	if err := server.Shutdown(ctxTimeout); err != nil {
		return tracerr.Wrap(err)
	}
	log.Info("NodeAPI done")
	return nil
}

// StartDebugAPI starts the DebugAPI
func (n *Node) StartDebugAPI() {
	log.Info("Starting DebugAPI...")
	n.wg.Add(1)
	go func() {
		defer func() {
			log.Info("DebugAPI routine stopped")
			n.wg.Done()
		}()
		if err := n.debugAPI.Run(n.ctx); err != nil {
			log.Fatalw("DebugAPI.Run", "err", err)
		}
	}()
}

// StartNodeAPI starts the NodeAPI
func (n *Node) StartNodeAPI() {
	log.Info("Starting NodeAPI...")
	n.wg.Add(1)
	go func() {
		defer func() {
			log.Info("NodeAPI routine stopped")
			n.wg.Done()
		}()
		if err := n.nodeAPI.Run(n.ctx); err != nil {
			log.Fatalw("NodeAPI.Run", "err", err)
		}
	}()
}

// startResultsLog logs every executed operation at debug level
func (n *Node) startResultsLog() {
	results := make(chan engine.Result, 64) //nolint:gomnd
	sub := n.engine.SubscribeResults(results)
	n.wg.Add(1)
	go func() {
		defer func() {
			sub.Unsubscribe()
			log.Info("Results log done")
			n.wg.Done()
		}()
		for {
			select {
			case <-n.ctx.Done():
				return
			case err := <-sub.Err():
				if err != nil {
					log.Errorw("Engine results subscription", "err", err)
				}
				return
			case res := <-results:
				log.Debugw("Operation executed", "hash", res.Hash, "instruction", res.Tag,
					"accepted", res.Accepted(), "events", len(res.Events))
			}
		}
	}()
}

// Start the node
func (n *Node) Start() {
	log.Infow("Starting node...", "version", Version)
	n.startResultsLog()
	if n.debugAPI != nil {
		n.StartDebugAPI()
	}
	if n.nodeAPI != nil {
		n.StartNodeAPI()
	}
}

// Stop the node. The StateDB gets a last checkpoint before being closed.
func (n *Node) Stop() {
	log.Infow("Stopping node...")
	n.cancel()
	n.wg.Wait()
	if n.cfg.StateDB.Type != statedb.TypeMemory {
		if _, err := n.engine.MakeCheckpoint(); err != nil {
			log.Errorw("Engine.MakeCheckpoint", "err", err)
		}
	}
	n.stateDB.Close()
	if n.sqlConn != nil {
		if err := n.sqlConn.Close(); err != nil {
			log.Errorw("HistoryDB.Close", "err", err)
		}
	}
	log.Info("Node stopped")
}
