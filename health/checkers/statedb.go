package checkers

import (
	"github.com/dimiro1/health"
	"github.com/hermeznetwork/forge-node/db/statedb"
)

// StateDBChecker struct for state db connection checker
type StateDBChecker struct {
	stateDB *statedb.StateDB
}

// NewStateDBChecker init state db connection checker
func NewStateDBChecker(sdb *statedb.StateDB) StateDBChecker {
	return StateDBChecker{
		stateDB: sdb,
	}
}

// Check state db health
func (sdb StateDBChecker) Check() health.Health {
	h := health.NewHealth()

	markets, err := sdb.stateDB.Markets()
	if err != nil {
		h.Down().AddInfo("error", err.Error())
		return h
	}

	h.Up().
		AddInfo("checkpoint", sdb.stateDB.CurrentCheckpoint()).
		AddInfo("markets", len(markets))

	return h
}
