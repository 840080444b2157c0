package api

import (
	"net/http"
	"time"

	"github.com/dimiro1/health"
	"github.com/hermeznetwork/forge-node/health/checkers"
)

func (a *API) healthRoute() http.Handler {
	healthHandler := health.NewHandler()

	healthHandler.AddChecker("stateDB", checkers.NewStateDBChecker(a.stateDB))
	if a.historyDB != nil {
		healthHandler.AddChecker("historyDB", checkers.NewCheckerWithDB(a.historyDB.DB()))
	}
	healthHandler.AddInfo("version", a.version)
	t := time.Now().UTC()
	healthHandler.AddInfo("timestamp", t)
	return healthHandler
}
