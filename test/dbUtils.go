package test

import (
	"io/ioutil"
	"os"
	"path"
	"strconv"

	dbUtils "github.com/hermeznetwork/forge-node/db"
	"github.com/jmoiron/sqlx"
)

// WipeDB redo all the migrations of the SQL DB, efectively recreating the
// original state
func WipeDB(db *sqlx.DB) {
	driver := db.DriverName()
	if err := dbUtils.MigrationsDown(db.DB, driver, 0); err != nil {
		panic(err)
	}
	if err := dbUtils.MigrationsUp(db.DB, driver); err != nil {
		panic(err)
	}
}

// InitTestSQLDB opens the test SQL database. When PGPASSWORD is set a
// PostgreSQL DB is used, otherwise a SQLite DB is created in a temporary
// directory, which is returned so that the caller can remove it.
func InitTestSQLDB() (*sqlx.DB, string, error) {
	pass := os.Getenv("PGPASSWORD")
	if pass == "" {
		dir, err := ioutil.TempDir("", "forgesqlite")
		if err != nil {
			return nil, "", err
		}
		db, err := dbUtils.InitSQLDB(dbUtils.DriverSQLite,
			dbUtils.SQLiteDSN(path.Join(dir, "history.db")))
		return db, dir, err
	}
	host := os.Getenv("PGHOST")
	if host == "" {
		host = "localhost"
	}
	port, _ := strconv.Atoi(os.Getenv("PGPORT"))
	if port == 0 {
		port = 5432
	}
	user := os.Getenv("PGUSER")
	if user == "" {
		user = "forge"
	}
	dbname := os.Getenv("PGDATABASE")
	if dbname == "" {
		dbname = "forge"
	}
	db, err := dbUtils.InitSQLDB(dbUtils.DriverPostgres,
		dbUtils.PostgresDSN(port, host, user, pass, dbname))
	return db, "", err
}
