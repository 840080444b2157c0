package node

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/config"
	"github.com/hermeznetwork/forge-node/db/statedb"
	"github.com/hermeznetwork/forge-node/log"
	"github.com/hermeznetwork/forge-node/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	log.Init("error", "")
}

func newTestConfig(t *testing.T) *config.Node {
	dir := t.TempDir()
	alice := test.Identity("alice")
	genesisPath := filepath.Join(dir, "genesis.toml")
	genesis := `
[[Native]]
Owner = "` + alice.String() + `"
Amount = 5000
`
	require.NoError(t, ioutil.WriteFile(genesisPath, []byte(genesis), 0600))

	cfg := &config.Node{}
	cfg.Log.Level = "error"
	cfg.StateDB.Type = statedb.TypePebble
	cfg.StateDB.Path = filepath.Join(dir, "statedb")
	cfg.StateDB.Keep = 4
	cfg.HistoryDB.Driver = "sqlite3"
	cfg.HistoryDB.SQLitePath = filepath.Join(dir, "history.db")
	cfg.Ledger.GenesisPath = genesisPath
	cfg.Ledger.MinimumBalance = 100
	cfg.Clock.SlotDuration = config.Duration{Duration: 400 * time.Millisecond}
	cfg.Engine.CheckpointInterval = 10
	cfg.API.Address = "127.0.0.1:0"
	cfg.API.ReadTimeout = config.Duration{Duration: time.Second}
	cfg.API.WriteTimeout = config.Duration{Duration: time.Second}
	cfg.API.MaxSQLConnections = 2
	cfg.API.SQLConnectionTimeout = config.Duration{Duration: time.Second}
	cfg.API.AllowOrigins = []string{"*"}
	return cfg
}

func TestNewNode(t *testing.T) {
	cfg := newTestConfig(t)
	n, err := NewNode(cfg)
	require.NoError(t, err)
	require.NotNil(t, n.nodeAPI)
	assert.Nil(t, n.debugAPI)

	native, err := n.ledger.NativeBalance(test.Identity("alice"))
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), native)

	server := httptest.NewServer(n.nodeAPI.engine)
	defer server.Close()
	for _, path := range []string{"/v1/markets", "/v1/operations", "/v1/health"} {
		resp, err := http.Get(server.URL + path) //nolint:gosec
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		require.NoError(t, resp.Body.Close())
	}

	n.Start()
	n.Stop()
	// Stop leaves a checkpoint behind
	sdb, err := statedb.NewStateDB(statedb.Config{
		Type: cfg.StateDB.Type,
		Path: cfg.StateDB.Path,
		Keep: cfg.StateDB.Keep,
	})
	require.NoError(t, err)
	defer sdb.Close()
	assert.Equal(t, uint64(1), sdb.CurrentCheckpoint())
}

func TestNewNodeWithoutHistory(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.StateDB.Type = statedb.TypeMemory
	cfg.HistoryDB.Driver = ""
	cfg.API.Address = ""
	n, err := NewNode(cfg)
	require.NoError(t, err)
	assert.Nil(t, n.nodeAPI)
	assert.Nil(t, n.sqlConn)

	_, err = n.Engine().Execute(&common.Operation{})
	assert.Error(t, err)
	n.Start()
	n.Stop()
}
