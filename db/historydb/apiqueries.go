package historydb

import (
	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/db"
	"github.com/hermeznetwork/tracerr"
	"github.com/russross/meddler"
)

// GetOperationAPI returns the last operation stored with hash
func (hdb *HistoryDB) GetOperationAPI(hash ethCommon.Hash) (*OperationAPI, error) {
	cancel, err := hdb.apiConnCon.Acquire()
	defer cancel()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	defer hdb.apiConnCon.Release()
	op := &OperationAPI{}
	if err := meddler.QueryRow(
		hdb.db, op, hdb.db.Rebind(
			`SELECT operation.*, 1 AS total_items FROM operation
			WHERE hash = ? ORDER BY item_id DESC LIMIT 1;`),
		hash,
	); err != nil {
		return nil, tracerr.Wrap(err)
	}
	op.TagName = op.Tag.String()
	return op, nil
}

// GetOperationsAPIRequest is an API request struct for getting operations
type GetOperationsAPIRequest struct {
	Market  *common.Identity
	Tag     *common.InstructionTag
	Success *bool

	db.Pagination
}

// GetOperationsAPI returns the operations applying the given filters,
// together with the number of items that match them
func (hdb *HistoryDB) GetOperationsAPI(request GetOperationsAPIRequest) ([]OperationAPI, uint64, error) {
	cancel, err := hdb.apiConnCon.Acquire()
	defer cancel()
	if err != nil {
		return nil, 0, tracerr.Wrap(err)
	}
	defer hdb.apiConnCon.Release()

	var args []interface{}
	queryStr := `SELECT operation.*, COUNT(*) OVER() AS total_items FROM operation `
	nextIsAnd := false
	if request.Market != nil {
		queryStr += "WHERE market = ? "
		args = append(args, *request.Market)
		nextIsAnd = true
	}
	if request.Tag != nil {
		if nextIsAnd {
			queryStr += "AND "
		} else {
			queryStr += "WHERE "
		}
		queryStr += "tag = ? "
		args = append(args, *request.Tag)
		nextIsAnd = true
	}
	if request.Success != nil {
		if nextIsAnd {
			queryStr += "AND "
		} else {
			queryStr += "WHERE "
		}
		queryStr += "success = ? "
		args = append(args, *request.Success)
		nextIsAnd = true
	}
	queryStr, args = request.Pagination.Apply(queryStr, args, nextIsAnd, "item_id")

	var ops []*OperationAPI
	if err := meddler.QueryAll(hdb.db, &ops, hdb.db.Rebind(queryStr), args...); err != nil {
		return nil, 0, tracerr.Wrap(err)
	}
	if len(ops) == 0 {
		return []OperationAPI{}, 0, nil
	}
	for _, op := range ops {
		op.TagName = op.Tag.String()
	}
	return db.SlicePtrsToSlice(ops).([]OperationAPI), ops[0].TotalItems, nil
}

// GetEventsAPIRequest is an API request struct for getting events
type GetEventsAPIRequest struct {
	Market        *common.Identity
	Type          *common.EventType
	OperationHash *ethCommon.Hash

	db.Pagination
}

// GetEventsAPI returns the events applying the given filters, together
// with the number of items that match them
func (hdb *HistoryDB) GetEventsAPI(request GetEventsAPIRequest) ([]EventAPI, uint64, error) {
	cancel, err := hdb.apiConnCon.Acquire()
	defer cancel()
	if err != nil {
		return nil, 0, tracerr.Wrap(err)
	}
	defer hdb.apiConnCon.Release()

	var args []interface{}
	queryStr := `SELECT event.item_id, operation.hash, operation.market, event.position,
	event.type, event.data, operation.slot, COUNT(*) OVER() AS total_items
	FROM event INNER JOIN operation ON event.operation_id = operation.item_id `
	nextIsAnd := false
	if request.Market != nil {
		queryStr += "WHERE operation.market = ? "
		args = append(args, *request.Market)
		nextIsAnd = true
	}
	if request.Type != nil {
		if nextIsAnd {
			queryStr += "AND "
		} else {
			queryStr += "WHERE "
		}
		queryStr += "event.type = ? "
		args = append(args, *request.Type)
		nextIsAnd = true
	}
	if request.OperationHash != nil {
		if nextIsAnd {
			queryStr += "AND "
		} else {
			queryStr += "WHERE "
		}
		queryStr += "operation.hash = ? "
		args = append(args, *request.OperationHash)
		nextIsAnd = true
	}
	queryStr, args = request.Pagination.Apply(queryStr, args, nextIsAnd, "event.item_id")

	var events []*EventAPI
	if err := meddler.QueryAll(hdb.db, &events, hdb.db.Rebind(queryStr), args...); err != nil {
		return nil, 0, tracerr.Wrap(err)
	}
	if len(events) == 0 {
		return []EventAPI{}, 0, nil
	}
	return db.SlicePtrsToSlice(events).([]EventAPI), events[0].TotalItems, nil
}
