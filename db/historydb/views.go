package historydb

import (
	"encoding/json"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/hermeznetwork/forge-node/common"
)

// OperationAPI is a representation of an operation with additional
// information required by the API
type OperationAPI struct {
	ItemID     int                   `json:"itemId" meddler:"item_id"`
	Hash       ethCommon.Hash        `json:"hash" meddler:"hash"`
	Tag        common.InstructionTag `json:"-" meddler:"tag"`
	TagName    string                `json:"instruction" meddler:"-"`
	Market     common.Identity       `json:"market" meddler:"market"`
	Nonce      uint64                `json:"nonce" meddler:"nonce"`
	Accounts   []common.Identity     `json:"accounts" meddler:"accounts,json"`
	Success    bool                  `json:"success" meddler:"success"`
	ErrorCode  *int64                `json:"errorCode" meddler:"error_code"`
	ErrorMsg   *string               `json:"errorMessage" meddler:"error_msg"`
	Slot       uint64                `json:"slot" meddler:"slot"`
	Timestamp  int64                 `json:"timestamp" meddler:"timestamp"`
	TotalItems uint64                `json:"-" meddler:"total_items"`
}

// EventAPI is a representation of an event with additional information
// required by the API
type EventAPI struct {
	ItemID        int              `json:"itemId" meddler:"item_id"`
	OperationHash ethCommon.Hash   `json:"operationHash" meddler:"hash"`
	Market        common.Identity  `json:"market" meddler:"market"`
	Position      int              `json:"position" meddler:"position"`
	Type          common.EventType `json:"type" meddler:"type"`
	Data          json.RawMessage  `json:"data" meddler:"data"`
	Slot          uint64           `json:"slot" meddler:"slot"`
	TotalItems    uint64           `json:"-" meddler:"total_items"`
}
