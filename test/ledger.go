package test

import (
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/ledger"
)

// CountingLedger wraps a TokenLedger counting the calls that change
// balances. BeforeCall, when set, runs before each of them with the name of
// the call.
type CountingLedger struct {
	ledger.TokenLedger
	Calls      int
	BeforeCall func(call string)
}

func (c *CountingLedger) before(call string) {
	c.Calls++
	if c.BeforeCall != nil {
		c.BeforeCall(call)
	}
}

// Burn implements ledger.TokenLedger
func (c *CountingLedger) Burn(token, from, authority common.Identity, amount uint64) error {
	c.before("Burn")
	return c.TokenLedger.Burn(token, from, authority, amount)
}

// Transfer implements ledger.TokenLedger
func (c *CountingLedger) Transfer(token, from, to, authority common.Identity, amount uint64) error {
	c.before("Transfer")
	return c.TokenLedger.Transfer(token, from, to, authority, amount)
}

// Mint implements ledger.TokenLedger
func (c *CountingLedger) Mint(token, to, mintAuthority common.Identity, amount uint64) error {
	c.before("Mint")
	return c.TokenLedger.Mint(token, to, mintAuthority, amount)
}
