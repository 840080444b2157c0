package common

// EventType identifies the kind of an Event
type EventType string

const (
	EventTypeMarketInitialized     EventType = "MarketInitialized"
	EventTypeParamsUpdated         EventType = "ParamsUpdated"
	EventTypeSmeltingSuccessful    EventType = "SmeltingSuccessful"
	EventTypeSmeltingFailed        EventType = "SmeltingFailed"
	EventTypeUnsmeltingSuccessful  EventType = "UnsmeltingSuccessful"
	EventTypeIngotMinted           EventType = "IngotMinted"
	EventTypeTokensTransferred     EventType = "TokensTransferred"
	EventTypeGovernanceInitialized EventType = "GovernanceInitialized"
	EventTypeProposalCreated       EventType = "ProposalCreated"
	EventTypeProposalApproved      EventType = "ProposalApproved"
	EventTypeProposalExecuted      EventType = "ProposalExecuted"
)

// Valid reports whether t is one of the known event types
func (t EventType) Valid() bool {
	switch t {
	case EventTypeMarketInitialized, EventTypeParamsUpdated, EventTypeSmeltingSuccessful,
		EventTypeSmeltingFailed, EventTypeUnsmeltingSuccessful, EventTypeIngotMinted,
		EventTypeTokensTransferred, EventTypeGovernanceInitialized, EventTypeProposalCreated,
		EventTypeProposalApproved, EventTypeProposalExecuted:
		return true
	}
	return false
}

// Event is an observable effect of a successful operation
type Event interface {
	Type() EventType
}

// MarketInitialized is emitted by Initialize
type MarketInitialized struct {
	Market    Identity     `json:"market"`
	Authority Identity     `json:"authority"`
	Params    MarketParams `json:"params"`
}

// Type implements Event
func (MarketInitialized) Type() EventType { return EventTypeMarketInitialized }

// ParamsUpdated is emitted when the authority changes the market
// parameters directly
type ParamsUpdated struct {
	Market Identity     `json:"market"`
	Params MarketParams `json:"params"`
}

// Type implements Event
func (ParamsUpdated) Type() EventType { return EventTypeParamsUpdated }

// SmeltingSuccessful is emitted when a smelt mints ingot
type SmeltingSuccessful struct {
	Market      Identity `json:"market"`
	User        Identity `json:"user"`
	OreAmount   uint64   `json:"oreAmount"`
	CoalAmount  uint64   `json:"coalAmount"`
	IngotAmount uint64   `json:"ingotAmount"`
}

// Type implements Event
func (SmeltingSuccessful) Type() EventType { return EventTypeSmeltingSuccessful }

// SmeltingFailed is emitted when the outcome draw of a smelt fails
type SmeltingFailed struct {
	Market     Identity `json:"market"`
	User       Identity `json:"user"`
	CoalAmount uint64   `json:"coalAmount"`
}

// Type implements Event
func (SmeltingFailed) Type() EventType { return EventTypeSmeltingFailed }

// UnsmeltingSuccessful is emitted by Unsmelt
type UnsmeltingSuccessful struct {
	Market      Identity `json:"market"`
	User        Identity `json:"user"`
	IngotAmount uint64   `json:"ingotAmount"`
	OreReturned uint64   `json:"oreReturned"`
	Fee         uint64   `json:"fee"`
}

// Type implements Event
func (UnsmeltingSuccessful) Type() EventType { return EventTypeUnsmeltingSuccessful }

// IngotMinted is emitted by MintIngot
type IngotMinted struct {
	Market    Identity `json:"market"`
	Recipient Identity `json:"recipient"`
	Amount    uint64   `json:"amount"`
}

// Type implements Event
func (IngotMinted) Type() EventType { return EventTypeIngotMinted }

// TokensTransferred is emitted by TransferOre and TransferIngot
type TokensTransferred struct {
	Market      Identity `json:"market"`
	Token       Identity `json:"token"`
	Source      Identity `json:"source"`
	Destination Identity `json:"destination"`
	Amount      uint64   `json:"amount"`
}

// Type implements Event
func (TokensTransferred) Type() EventType { return EventTypeTokensTransferred }

// GovernanceInitialized is emitted by InitializeGovernance
type GovernanceInitialized struct {
	Market     Identity   `json:"market"`
	Governance Identity   `json:"governance"`
	Signers    []Identity `json:"signers"`
	Threshold  uint8      `json:"threshold"`
}

// Type implements Event
func (GovernanceInitialized) Type() EventType { return EventTypeGovernanceInitialized }

// ProposalCreated is emitted by Propose
type ProposalCreated struct {
	ProposalID Identity `json:"proposalId"`
	Proposer   Identity `json:"proposer"`
}

// Type implements Event
func (ProposalCreated) Type() EventType { return EventTypeProposalCreated }

// ProposalApproved is emitted by every accepted Approve
type ProposalApproved struct {
	ProposalID Identity `json:"proposalId"`
	Signer     Identity `json:"signer"`
}

// Type implements Event
func (ProposalApproved) Type() EventType { return EventTypeProposalApproved }

// ProposalExecuted is emitted when an approval reaches the threshold
type ProposalExecuted struct {
	ProposalID Identity `json:"proposalId"`
}

// Type implements Event
func (ProposalExecuted) Type() EventType { return EventTypeProposalExecuted }
