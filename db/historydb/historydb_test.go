package historydb

import (
	"database/sql"
	"encoding/json"
	"os"
	"testing"
	"time"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/db"
	"github.com/hermeznetwork/forge-node/log"
	"github.com/hermeznetwork/forge-node/test"
	"github.com/hermeznetwork/tracerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var historyDB *HistoryDB

func TestMain(m *testing.M) {
	// init DB
	sqlDB, dir, err := test.InitTestSQLDB()
	if err != nil {
		panic(err)
	}
	apiConnCon := db.NewAPIConnectionController(1, time.Second)
	historyDB = NewHistoryDB(sqlDB, apiConnCon)
	// Run tests
	result := m.Run()
	// Close DB
	if err := sqlDB.Close(); err != nil {
		log.Error("Error closing the history DB:", err)
	}
	if dir != "" {
		if err := os.RemoveAll(dir); err != nil {
			log.Error(err)
		}
	}
	os.Exit(result)
}

func identity(b byte) common.Identity {
	var id common.Identity
	id[0] = b
	return id
}

func newOperation(nonce uint64, tag common.InstructionTag, market common.Identity, err error) *Operation {
	op := &common.Operation{
		Data:     common.AmountInstructionData(tag, 100),
		Accounts: []common.Identity{market, identity(9)},
		Nonce:    nonce,
	}
	return NewOperation(op, tag, market, err, nonce, int64(1000+nonce))
}

func TestAddOperation(t *testing.T) {
	test.WipeDB(historyDB.DB())

	market := identity(1)
	op := newOperation(1, common.TagMintIngot, market, nil)
	events := []common.Event{
		common.IngotMinted{Market: market, Recipient: identity(9), Amount: 100},
	}
	require.NoError(t, historyDB.AddOperation(op, events))
	assert.NotZero(t, op.ItemID)

	got, err := historyDB.GetOperation(op.Hash)
	require.NoError(t, err)
	assert.Equal(t, op, got)

	dbEvents, err := historyDB.GetEventsOf(op.ItemID)
	require.NoError(t, err)
	require.Equal(t, 1, len(dbEvents))
	assert.Equal(t, common.EventTypeIngotMinted, dbEvents[0].Type)
	var minted common.IngotMinted
	require.NoError(t, json.Unmarshal(dbEvents[0].Data, &minted))
	assert.Equal(t, events[0], minted)

	last, err := historyDB.GetLastOperation()
	require.NoError(t, err)
	assert.Equal(t, op.ItemID, last.ItemID)

	_, err = historyDB.GetOperation(ethCommon.Hash{})
	assert.Equal(t, sql.ErrNoRows, tracerr.Unwrap(err))
}

func TestRejectedOperation(t *testing.T) {
	test.WipeDB(historyDB.DB())

	op := newOperation(1, common.TagSmelt, identity(1), tracerr.Wrap(common.ErrCooldownNotMet))
	require.NoError(t, historyDB.AddOperation(op, nil))
	got, err := historyDB.GetOperation(op.Hash)
	require.NoError(t, err)
	assert.False(t, got.Success)
	require.NotNil(t, got.ErrorCode)
	assert.Equal(t, int64(common.Code(common.ErrCooldownNotMet)), *got.ErrorCode)
	require.NotNil(t, got.ErrorMsg)
	assert.Equal(t, common.ErrCooldownNotMet.Error(), *got.ErrorMsg)

	dbEvents, err := historyDB.GetEventsOf(op.ItemID)
	require.NoError(t, err)
	assert.Empty(t, dbEvents)

	accepted, rejected, err := historyDB.CountOperations()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), accepted)
	assert.Equal(t, uint64(1), rejected)
}

func TestGetOperationsAPI(t *testing.T) {
	test.WipeDB(historyDB.DB())

	marketA, marketB := identity(1), identity(2)
	for i := uint64(1); i <= 6; i++ {
		market := marketA
		if i%2 == 0 {
			market = marketB
		}
		var opErr error
		if i == 5 {
			opErr = common.ErrInvalidAmount
		}
		op := newOperation(i, common.TagTransferOre, market, opErr)
		var events []common.Event
		if opErr == nil {
			events = []common.Event{common.TokensTransferred{Market: market, Amount: i}}
		}
		require.NoError(t, historyDB.AddOperation(op, events))
	}

	// all, descending
	ops, total, err := historyDB.GetOperationsAPI(GetOperationsAPIRequest{
		Pagination: db.Pagination{Order: db.OrderDesc},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(6), total)
	require.Equal(t, 6, len(ops))
	assert.Equal(t, uint64(6), ops[0].Nonce)
	assert.Equal(t, "TransferOre", ops[0].TagName)

	// by market, ascending, paginated
	from := uint64(ops[5].ItemID)
	ops, total, err = historyDB.GetOperationsAPI(GetOperationsAPIRequest{
		Market:     &marketA,
		Pagination: db.Pagination{FromItem: &from, Limit: 2, Order: db.OrderAsc},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
	require.Equal(t, 2, len(ops))
	assert.Equal(t, uint64(1), ops[0].Nonce)
	assert.Equal(t, uint64(3), ops[1].Nonce)

	// rejected only
	success := false
	ops, total, err = historyDB.GetOperationsAPI(GetOperationsAPIRequest{
		Success:    &success,
		Pagination: db.Pagination{Order: db.OrderAsc},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), total)
	require.Equal(t, 1, len(ops))
	assert.Equal(t, uint64(5), ops[0].Nonce)

	// no match
	tag := common.TagSmelt
	ops, total, err = historyDB.GetOperationsAPI(GetOperationsAPIRequest{
		Tag:        &tag,
		Pagination: db.Pagination{Order: db.OrderAsc},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), total)
	assert.Empty(t, ops)

	// events of market B
	events, total, err := historyDB.GetEventsAPI(GetEventsAPIRequest{
		Market:     &marketB,
		Pagination: db.Pagination{Order: db.OrderAsc},
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)
	require.Equal(t, 3, len(events))
	for _, ev := range events {
		assert.Equal(t, marketB, ev.Market)
		assert.Equal(t, common.EventTypeTokensTransferred, ev.Type)
	}
	var transferred common.TokensTransferred
	require.NoError(t, json.Unmarshal(events[0].Data, &transferred))
	assert.Equal(t, uint64(2), transferred.Amount)

	opAPI, err := historyDB.GetOperationAPI(events[0].OperationHash)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), opAPI.Nonce)
	assert.True(t, opAPI.Success)
}
