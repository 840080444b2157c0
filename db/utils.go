/*
Package db have some common utilities shared by db/historydb and the node, the most relevant ones are:
- SQL connection utilities, for PostgreSQL and SQLite
- Managing the SQL schema: this is done using migration files placed under db/migrations/<driver>. The files are
executed by order of the file name.
- Pagination and connection limiting helpers used by the API queries
*/
package db

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/gobuffalo/packr/v2"
	"github.com/hermeznetwork/forge-node/log"
	"github.com/hermeznetwork/tracerr"
	"github.com/jmoiron/sqlx"

	//nolint:errcheck // driver for postgres DB
	_ "github.com/lib/pq"
	//nolint:errcheck // driver for sqlite DB
	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/russross/meddler"
	"golang.org/x/sync/semaphore"
)

const (
	// OrderAsc indicates ascending order when using pagination
	OrderAsc = "ASC"
	// OrderDesc indicates descending order when using pagination
	OrderDesc = "DESC"
	// DriverPostgres is the name of the PostgreSQL driver
	DriverPostgres = "postgres"
	// DriverSQLite is the name of the SQLite driver
	DriverSQLite = "sqlite3"
)

var migrations map[string]*migrate.PackrMigrationSource

func init() {
	migrations = map[string]*migrate.PackrMigrationSource{
		DriverPostgres: {Box: packr.New("forge-db-migrations-postgres", "./migrations/postgres")},
		DriverSQLite:   {Box: packr.New("forge-db-migrations-sqlite", "./migrations/sqlite")},
	}
	for driver, source := range migrations {
		ms, err := source.FindMigrations()
		if err != nil {
			panic(err)
		}
		if len(ms) == 0 {
			panic(fmt.Errorf("no SQL migrations found for %s", driver))
		}
	}
}

func migrationSource(driver string) (*migrate.PackrMigrationSource, error) {
	source, ok := migrations[driver]
	if !ok {
		return nil, tracerr.Wrap(fmt.Errorf("unsupported SQL driver %q", driver))
	}
	return source, nil
}

// MigrationsUp runs the SQL migrations Up
func MigrationsUp(db *sql.DB, driver string) error {
	source, err := migrationSource(driver)
	if err != nil {
		return tracerr.Wrap(err)
	}
	nMigrations, err := migrate.Exec(db, driver, source, migrate.Up)
	if err != nil {
		return tracerr.Wrap(err)
	}
	log.Info("successfully ran ", nMigrations, " migrations Up")
	return nil
}

// MigrationsDown runs the SQL migrations Down,
// migrationsToRun specifies how many migrations will be run, 0 means any.
func MigrationsDown(db *sql.DB, driver string, migrationsToRun uint) error {
	source, err := migrationSource(driver)
	if err != nil {
		return tracerr.Wrap(err)
	}
	nMigrations, err := migrate.ExecMax(db, driver, source, migrate.Down, int(migrationsToRun))
	if err != nil {
		return tracerr.Wrap(err)
	}
	if migrationsToRun != 0 && nMigrations != int(migrationsToRun) {
		return tracerr.Wrap(
			fmt.Errorf("Unexpected amount of migrations applied. Expected = %d, actual = %d", migrationsToRun, nMigrations),
		)
	}
	log.Info("successfully ran ", nMigrations, " migrations Down")
	return nil
}

// PostgresDSN returns the connection string of a PostgreSQL DB
func PostgresDSN(port int, host, user, password, name string) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host,
		port,
		user,
		password,
		name,
	)
}

// SQLiteDSN returns the connection string of a SQLite DB stored at path
func SQLiteDSN(path string) string {
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path)
}

// ConnectSQLDB connects to the SQL DB
func ConnectSQLDB(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverPostgres:
		meddler.Default = meddler.PostgreSQL
	case DriverSQLite:
		meddler.Default = meddler.SQLite
	default:
		return nil, tracerr.Wrap(fmt.Errorf("unsupported SQL driver %q", driver))
	}
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if driver == DriverSQLite {
		// a single writer avoids SQLITE_BUSY between the engine and the API
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// InitSQLDB connects to the SQL DB and runs the migrations
func InitSQLDB(driver, dsn string) (*sqlx.DB, error) {
	db, err := ConnectSQLDB(driver, dsn)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	// Run DB migrations
	if err := MigrationsUp(db.DB, driver); err != nil {
		return nil, tracerr.Wrap(err)
	}
	return db, nil
}

// APIConnectionController is used to limit the SQL open connections used by the API
type APIConnectionController struct {
	smphr   *semaphore.Weighted
	timeout time.Duration
}

// NewAPIConnectionController initialize APIConnectionController
func NewAPIConnectionController(maxConnections int, timeout time.Duration) *APIConnectionController {
	return &APIConnectionController{
		smphr:   semaphore.NewWeighted(int64(maxConnections)),
		timeout: timeout,
	}
}

// Acquire reserves a SQL connection. If the connection is not acquired
// within the timeout, the function will return an error
func (acc *APIConnectionController) Acquire() (context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(context.Background(), acc.timeout) //nolint:govet
	return cancel, acc.smphr.Acquire(ctx, 1)
}

// Release frees a SQL connection
func (acc *APIConnectionController) Release() {
	acc.smphr.Release(1)
}

// Pagination of a query ordered by item_id
type Pagination struct {
	FromItem *uint64
	Limit    uint
	Order    string
}

// Apply appends the item_id condition, the order and the limit of p to
// query. nextIsAnd tells whether query already has a WHERE clause.
func (p Pagination) Apply(query string, args []interface{}, nextIsAnd bool, column string) (string,
	[]interface{}) {
	if p.FromItem != nil {
		if nextIsAnd {
			query += "AND "
		} else {
			query += "WHERE "
		}
		if p.Order == OrderAsc {
			query += column + " >= ? "
		} else {
			query += column + " <= ? "
		}
		args = append(args, *p.FromItem)
	}
	query += "ORDER BY " + column + " "
	if p.Order == OrderAsc {
		query += "ASC "
	} else {
		query += "DESC "
	}
	if p.Limit > 0 {
		query += fmt.Sprintf("LIMIT %d", p.Limit)
	}
	return query + ";", args
}

// BulkInsert performs a bulk insert with a single statement into the specified table.  Example:
// `db.BulkInsert(myDB, "INSERT INTO event (operation_id, position, type, data) VALUES %s", events[:])`
// Note that all the columns must be specified in the query, and they must be
// in the same order as in the table.
// Note that the fields in the structs need to be defined in the same order as
// in the table columns.
func BulkInsert(db meddler.DB, q string, args interface{}) error {
	arrayValue := reflect.ValueOf(args)
	arrayLen := arrayValue.Len()
	valueStrings := make([]string, 0, arrayLen)
	var arglist = make([]interface{}, 0)
	for i := 0; i < arrayLen; i++ {
		arg := arrayValue.Index(i).Addr().Interface()
		elemArglist, err := meddler.Default.Values(arg, false)
		if err != nil {
			return tracerr.Wrap(err)
		}
		arglist = append(arglist, elemArglist...)
		value := "("
		for j := 0; j < len(elemArglist); j++ {
			value += fmt.Sprintf("$%d, ", i*len(elemArglist)+j+1)
		}
		value = value[:len(value)-2] + ")"
		valueStrings = append(valueStrings, value)
	}
	stmt := fmt.Sprintf(q, strings.Join(valueStrings, ","))
	_, err := db.Exec(stmt, arglist...)
	return tracerr.Wrap(err)
}

// SliceToSlicePtrs converts any []Foo to []*Foo
func SliceToSlicePtrs(slice interface{}) interface{} {
	v := reflect.ValueOf(slice)
	vLen := v.Len()
	typ := v.Type().Elem()
	res := reflect.MakeSlice(reflect.SliceOf(reflect.PtrTo(typ)), vLen, vLen)
	for i := 0; i < vLen; i++ {
		res.Index(i).Set(v.Index(i).Addr())
	}
	return res.Interface()
}

// SlicePtrsToSlice converts any []*Foo to []Foo
func SlicePtrsToSlice(slice interface{}) interface{} {
	v := reflect.ValueOf(slice)
	vLen := v.Len()
	typ := v.Type().Elem().Elem()
	res := reflect.MakeSlice(reflect.SliceOf(typ), vLen, vLen)
	for i := 0; i < vLen; i++ {
		res.Index(i).Set(v.Index(i).Elem())
	}
	return res.Interface()
}

// Rollback an sql transaction, and log the error if it's not nil
func Rollback(txn *sqlx.Tx) {
	if err := txn.Rollback(); err != nil {
		log.Errorw("Rollback", "err", err)
	}
}
