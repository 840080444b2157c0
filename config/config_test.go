package config

import (
	"io/ioutil"
	"os"
	"path"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	p := path.Join(dir, name)
	require.NoError(t, ioutil.WriteFile(p, []byte(content), 0600))
	return p
}

func TestLoadNodeDefaults(t *testing.T) {
	dir, err := ioutil.TempDir("", "forgecfg")
	require.NoError(t, err)
	defer os.RemoveAll(dir) //nolint:errcheck

	p := writeFile(t, dir, "cfg.toml", `
[StateDB]
Type = "memory"
`)
	cfg, err := LoadNode(p)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StateDB.Type)
	assert.Equal(t, 128, cfg.StateDB.Keep)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 400*time.Millisecond, cfg.Clock.SlotDuration.Duration)
	assert.Equal(t, 2*time.Second, cfg.API.SQLConnectionTimeout.Duration)
	assert.Equal(t, uint64(100), cfg.Engine.CheckpointInterval)
	assert.Equal(t, []string{"*"}, cfg.API.AllowOrigins)
}

func TestLoadNodeEnv(t *testing.T) {
	dir, err := ioutil.TempDir("", "forgecfg")
	require.NoError(t, err)
	defer os.RemoveAll(dir) //nolint:errcheck

	writeFile(t, dir, ".env", "FORGE_TEST_PGPASS=secret\n")
	p := writeFile(t, dir, "cfg.toml", `
[HistoryDB]
Driver = "postgres"
[HistoryDB.PostgreSQL]
Port = 5432
Host = "localhost"
User = "forge"
Password = "${FORGE_TEST_PGPASS}"
Name = "forge"
`)
	cfg, err := LoadNode(p)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.HistoryDB.PostgreSQL.Password)
	assert.Equal(t, "/var/forge/statedb", cfg.StateDB.Path)
}

func TestLoadNodeInvalid(t *testing.T) {
	dir, err := ioutil.TempDir("", "forgecfg")
	require.NoError(t, err)
	defer os.RemoveAll(dir) //nolint:errcheck

	for _, content := range []string{
		"[StateDB]\nType = \"badger\"\n",
		"[Log]\nLevel = \"loud\"\n",
		"[HistoryDB]\nDriver = \"postgres\"\n",
		"[HistoryDB]\nSQLitePath = \"\"\n",
		"[Clock]\nSlotDuration = \"soon\"\n",
	} {
		p := writeFile(t, dir, "cfg.toml", content)
		_, err := LoadNode(p)
		assert.Error(t, err, content)
	}

	_, err = LoadNode(path.Join(dir, "missing.toml"))
	assert.Error(t, err)
}
