package checkers

import (
	"github.com/dimiro1/health"
	dbHealth "github.com/dimiro1/health/db"
	"github.com/jmoiron/sqlx"
)

// SQLChecker struct to check current status of the history db
type SQLChecker struct {
	db       *sqlx.DB
	postgres bool
	checker  dbHealth.Checker
}

// NewCheckerWithDB creates new instance of the SQLChecker. PostgreSQL is
// checked with the dimiro1 checker, SQLite with its version query.
func NewCheckerWithDB(db *sqlx.DB) SQLChecker {
	c := SQLChecker{db: db}
	if db.DriverName() == "postgres" {
		c.postgres = true
		c.checker = dbHealth.NewPostgreSQLChecker(db.DB)
	}
	return c
}

func (c SQLChecker) version() health.Health {
	if c.postgres {
		return c.checker.Check()
	}
	h := health.NewHealth()
	var version string
	if err := c.db.QueryRow("SELECT sqlite_version()").Scan(&version); err != nil {
		h.Down().AddInfo("error", err.Error())
		return h
	}
	h.Up().AddInfo("version", version)
	return h
}

// Check function check is db is responding and returns status, version of db and id of the last migration
func (c SQLChecker) Check() health.Health {
	h := c.version()
	if h.IsDown() {
		return h
	}

	q := `SELECT id FROM gorp_migrations ORDER BY id DESC LIMIT 1`
	row := c.db.QueryRow(q)
	var id string
	err := row.Scan(&id)
	if err != nil {
		h.Down().AddInfo("error", err.Error())
		return h
	}

	h.Up().AddInfo("last_migration", id)

	return h
}
