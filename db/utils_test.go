package db

import (
	"io/ioutil"
	"os"
	"path"
	"testing"
	"time"

	"github.com/hermeznetwork/forge-node/log"
	"github.com/jmoiron/sqlx"
	"github.com/russross/meddler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type foo struct {
	V int
}

func init() {
	log.Init("debug", "")
}

func newTestSQLite(t *testing.T) *sqlx.DB {
	dir, err := ioutil.TempDir("", "forgedbtest")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) }) //nolint:errcheck
	db, err := InitSQLDB(DriverSQLite, SQLiteDSN(path.Join(dir, "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	return db
}

func TestSliceToSlicePtrs(t *testing.T) {
	n := 16
	a := make([]foo, n)
	for i := 0; i < n; i++ {
		a[i] = foo{V: i}
	}
	b := SliceToSlicePtrs(a).([]*foo)
	for i := 0; i < len(a); i++ {
		assert.Equal(t, a[i], *b[i])
	}
}

func TestSlicePtrsToSlice(t *testing.T) {
	n := 16
	a := make([]*foo, n)
	for i := 0; i < n; i++ {
		a[i] = &foo{V: i}
	}
	b := SlicePtrsToSlice(a).([]foo)
	for i := 0; i < len(a); i++ {
		assert.Equal(t, *a[i], b[i])
	}
}

func TestMigrations(t *testing.T) {
	db := newTestSQLite(t)

	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM operation;"))
	assert.Equal(t, 0, n)

	require.NoError(t, MigrationsDown(db.DB, DriverSQLite, 1))
	_, err := db.Exec("SELECT COUNT(*) FROM operation;")
	assert.Error(t, err)

	require.NoError(t, MigrationsUp(db.DB, DriverSQLite))
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM event;"))
	assert.Equal(t, 0, n)

	assert.Error(t, MigrationsUp(db.DB, "mysql"))
	_, err = ConnectSQLDB("mysql", "")
	assert.Error(t, err)
}

func TestBulkInsert(t *testing.T) {
	db := newTestSQLite(t)
	_, err := db.Exec(`CREATE TABLE test_bulk (
		item_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		value INTEGER
	);`)
	require.NoError(t, err)

	type entry struct {
		ItemID int    `meddler:"item_id,pk"`
		Name   string `meddler:"name"`
		Value  *int64 `meddler:"value"`
	}
	v := int64(7)
	entries := []entry{{Name: "a", Value: &v}, {Name: "b"}, {Name: "c", Value: &v}}
	require.NoError(t, BulkInsert(db, "INSERT INTO test_bulk (name, value) VALUES %s;", entries[:]))

	var got []*entry
	require.NoError(t, meddler.QueryAll(db, &got, "SELECT * FROM test_bulk ORDER BY item_id;"))
	require.Equal(t, 3, len(got))
	for i, e := range SlicePtrsToSlice(got).([]entry) {
		assert.Equal(t, i+1, e.ItemID)
		assert.Equal(t, entries[i].Name, e.Name)
		assert.Equal(t, entries[i].Value, e.Value)
	}
}

func TestPagination(t *testing.T) {
	from := uint64(10)
	query, args := Pagination{FromItem: &from, Limit: 5, Order: OrderAsc}.
		Apply("SELECT * FROM operation WHERE market = ? ", []interface{}{"m"}, true, "item_id")
	assert.Equal(t, "SELECT * FROM operation WHERE market = ? AND item_id >= ? ORDER BY item_id ASC LIMIT 5;", query)
	assert.Equal(t, []interface{}{"m", from}, args)

	query, args = Pagination{FromItem: &from, Order: OrderDesc}.
		Apply("SELECT * FROM operation ", nil, false, "item_id")
	assert.Equal(t, "SELECT * FROM operation WHERE item_id <= ? ORDER BY item_id DESC ;", query)
	assert.Equal(t, []interface{}{from}, args)

	query, args = Pagination{}.Apply("SELECT * FROM operation ", nil, false, "item_id")
	assert.Equal(t, "SELECT * FROM operation ORDER BY item_id DESC ;", query)
	assert.Empty(t, args)
}

func TestAPIConnectionController(t *testing.T) {
	acc := NewAPIConnectionController(1, 50*time.Millisecond)
	cancel, err := acc.Acquire()
	require.NoError(t, err)
	defer cancel()

	cancel2, err := acc.Acquire()
	cancel2()
	assert.Error(t, err)

	acc.Release()
	cancel3, err := acc.Acquire()
	defer cancel3()
	require.NoError(t, err)
	acc.Release()
}
