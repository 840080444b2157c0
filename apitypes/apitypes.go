// Package apitypes holds the types exchanged by the node API and its
// clients
package apitypes

import (
	"encoding/json"
	"fmt"
	"reflect"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/tracerr"
)

// EventAPI is an event tagged with its type. Data holds the common.Event
// value, also after decoding.
type EventAPI struct {
	Type common.EventType `json:"type"`
	Data interface{}      `json:"data"`
}

// NewEventsAPI tags every event with its type
func NewEventsAPI(events []common.Event) []EventAPI {
	ret := make([]EventAPI, len(events))
	for i, ev := range events {
		ret[i] = EventAPI{Type: ev.Type(), Data: ev}
	}
	return ret
}

// UnmarshalJSON decodes Data into the concrete event of Type
func (e *EventAPI) UnmarshalJSON(b []byte) error {
	var raw struct {
		Type common.EventType `json:"type"`
		Data json.RawMessage  `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return tracerr.Wrap(err)
	}
	ev, err := newEvent(raw.Type)
	if err != nil {
		return tracerr.Wrap(err)
	}
	if err := json.Unmarshal(raw.Data, ev); err != nil {
		return tracerr.Wrap(err)
	}
	e.Type = raw.Type
	e.Data = reflect.ValueOf(ev).Elem().Interface()
	return nil
}

func newEvent(t common.EventType) (interface{}, error) {
	switch t {
	case common.EventTypeMarketInitialized:
		return &common.MarketInitialized{}, nil
	case common.EventTypeParamsUpdated:
		return &common.ParamsUpdated{}, nil
	case common.EventTypeSmeltingSuccessful:
		return &common.SmeltingSuccessful{}, nil
	case common.EventTypeSmeltingFailed:
		return &common.SmeltingFailed{}, nil
	case common.EventTypeUnsmeltingSuccessful:
		return &common.UnsmeltingSuccessful{}, nil
	case common.EventTypeIngotMinted:
		return &common.IngotMinted{}, nil
	case common.EventTypeTokensTransferred:
		return &common.TokensTransferred{}, nil
	case common.EventTypeGovernanceInitialized:
		return &common.GovernanceInitialized{}, nil
	case common.EventTypeProposalCreated:
		return &common.ProposalCreated{}, nil
	case common.EventTypeProposalApproved:
		return &common.ProposalApproved{}, nil
	case common.EventTypeProposalExecuted:
		return &common.ProposalExecuted{}, nil
	}
	return nil, tracerr.Wrap(fmt.Errorf("unknown event type %q", t))
}

// OperationResult is the response to an accepted operation
type OperationResult struct {
	Hash        ethCommon.Hash  `json:"hash"`
	Instruction string          `json:"instruction"`
	Market      common.Identity `json:"market"`
	Events      []EventAPI      `json:"events"`
}

// ErrorResponse is the body of every non 2xx response. Hash and EngineCode
// are only set when an operation is rejected by the engine.
type ErrorResponse struct {
	Message    string            `json:"message"`
	Code       uint              `json:"code"`
	Type       string            `json:"type"`
	Hash       *ethCommon.Hash   `json:"hash,omitempty"`
	EngineCode *common.ErrorCode `json:"engineCode,omitempty"`
}

func (e ErrorResponse) Error() string {
	if e.EngineCode != nil {
		return fmt.Sprintf("%s (%s, engine code %d)", e.Message, e.Type, *e.EngineCode)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Type)
}

// Markets is the response of GET /markets
type Markets struct {
	Markets []common.Identity `json:"markets"`
}

// Proposals is the response of GET /governances/:id/proposals
type Proposals struct {
	Proposals []ProposalAPI `json:"proposals"`
}

// ProposalAPI is a proposal together with its identity
type ProposalAPI struct {
	ID common.Identity `json:"id"`
	common.Proposal
}

// Events returns the common.Event of every EventAPI
func Events(events []EventAPI) []common.Event {
	ret := make([]common.Event, 0, len(events))
	for _, ev := range events {
		if e, ok := ev.Data.(common.Event); ok {
			ret = append(ret, e)
		}
	}
	return ret
}
