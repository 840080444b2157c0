package historydb

import (
	"encoding/json"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/db"
	"github.com/hermeznetwork/tracerr"
	"github.com/jmoiron/sqlx"
	"github.com/russross/meddler"
)

// HistoryDB persist the history of the executed operations and their events
type HistoryDB struct {
	db         *sqlx.DB
	apiConnCon *db.APIConnectionController
}

// NewHistoryDB initialize the DB. apiConnCon limits the connections used
// by the *API queries.
func NewHistoryDB(db *sqlx.DB, apiConnCon *db.APIConnectionController) *HistoryDB {
	return &HistoryDB{db: db, apiConnCon: apiConnCon}
}

// DB returns a pointer to the HistoryDB.db. This method should be used only
// for internal testing purposes.
func (hdb *HistoryDB) DB() *sqlx.DB {
	return hdb.db
}

// Operation is an operation submitted to the engine, accepted or rejected
type Operation struct {
	ItemID    int                   `meddler:"item_id,pk"`
	Hash      ethCommon.Hash        `meddler:"hash"`
	Tag       common.InstructionTag `meddler:"tag"`
	Market    common.Identity       `meddler:"market"`
	Nonce     uint64                `meddler:"nonce"`
	Accounts  []common.Identity     `meddler:"accounts,json"`
	Success   bool                  `meddler:"success"`
	ErrorCode *int64                `meddler:"error_code"`
	ErrorMsg  *string               `meddler:"error_msg"`
	Slot      uint64                `meddler:"slot"`
	Timestamp int64                 `meddler:"timestamp"`
}

// Event is an event emitted by an operation, stored as JSON
type Event struct {
	ItemID      int              `meddler:"item_id,pk"`
	OperationID int              `meddler:"operation_id"`
	Position    int              `meddler:"position"`
	Type        common.EventType `meddler:"type"`
	Data        []byte           `meddler:"data"`
}

// NewOperation returns the Operation row of op. err is the error returned
// by the engine, nil when the operation was accepted.
func NewOperation(op *common.Operation, tag common.InstructionTag, market common.Identity,
	err error, slot uint64, timestamp int64) *Operation {
	row := &Operation{
		Hash:      ethCommon.BytesToHash(op.Hash()),
		Tag:       tag,
		Market:    market,
		Nonce:     op.Nonce,
		Accounts:  op.Accounts,
		Success:   err == nil,
		Slot:      slot,
		Timestamp: timestamp,
	}
	if row.Accounts == nil {
		row.Accounts = []common.Identity{}
	}
	if err != nil {
		code := int64(common.Code(err))
		msg := tracerr.Unwrap(err).Error()
		row.ErrorCode = &code
		row.ErrorMsg = &msg
	}
	return row
}

// AddOperation inserts the operation and its events in a single SQL
// transaction
func (hdb *HistoryDB) AddOperation(op *Operation, events []common.Event) error {
	txn, err := hdb.db.Beginx()
	if err != nil {
		return tracerr.Wrap(err)
	}
	defer func() {
		if err != nil {
			db.Rollback(txn)
		}
	}()
	if err = hdb.addOperation(txn, op, events); err != nil {
		return tracerr.Wrap(err)
	}
	return tracerr.Wrap(txn.Commit())
}

func (hdb *HistoryDB) addOperation(d meddler.DB, op *Operation, events []common.Event) error {
	if err := meddler.Insert(d, "operation", op); err != nil {
		return tracerr.Wrap(err)
	}
	if len(events) == 0 {
		return nil
	}
	rows := make([]Event, len(events))
	for i, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return tracerr.Wrap(err)
		}
		rows[i] = Event{
			OperationID: op.ItemID,
			Position:    i,
			Type:        ev.Type(),
			Data:        data,
		}
	}
	return tracerr.Wrap(db.BulkInsert(
		d,
		`INSERT INTO event (
			operation_id,
			position,
			type,
			data
		) VALUES %s;`,
		rows[:],
	))
}

// GetOperation returns the last operation stored with hash
func (hdb *HistoryDB) GetOperation(hash ethCommon.Hash) (*Operation, error) {
	op := &Operation{}
	err := meddler.QueryRow(
		hdb.db, op, hdb.db.Rebind(
			"SELECT * FROM operation WHERE hash = ? ORDER BY item_id DESC LIMIT 1;"),
		hash,
	)
	return op, tracerr.Wrap(err)
}

// GetEventsOf returns the events of the operation with itemID, in emission
// order
func (hdb *HistoryDB) GetEventsOf(itemID int) ([]Event, error) {
	var events []*Event
	err := meddler.QueryAll(
		hdb.db, &events, hdb.db.Rebind(
			"SELECT * FROM event WHERE operation_id = ? ORDER BY position;"),
		itemID,
	)
	return db.SlicePtrsToSlice(events).([]Event), tracerr.Wrap(err)
}

// GetLastOperation returns the last stored operation
func (hdb *HistoryDB) GetLastOperation() (*Operation, error) {
	op := &Operation{}
	err := meddler.QueryRow(
		hdb.db, op, "SELECT * FROM operation ORDER BY item_id DESC LIMIT 1;",
	)
	return op, tracerr.Wrap(err)
}

// CountOperations returns the number of stored operations by success
func (hdb *HistoryDB) CountOperations() (accepted, rejected uint64, err error) {
	row := hdb.db.QueryRow(
		`SELECT COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN success THEN 0 ELSE 1 END), 0) FROM operation;`,
	)
	if err := row.Scan(&accepted, &rejected); err != nil {
		return 0, 0, tracerr.Wrap(err)
	}
	return accepted, rejected, nil
}
