// Package ledger defines the token ledger consumed by the processors and a
// reference implementation stored in the StateDB.
package ledger

import (
	"fmt"

	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/tracerr"
)

// TokenLedger performs balance-accurate token movements. Every call is
// atomic: it either applies completely or fails without effect.
type TokenLedger interface {
	// Burn destroys amount of token from the account from, owned by
	// authority
	Burn(token, from, authority common.Identity, amount uint64) error
	// Transfer moves amount of token from the account from, owned by
	// authority, to the account to
	Transfer(token, from, to, authority common.Identity, amount uint64) error
	// Mint creates amount of token in the account to. mintAuthority must
	// be the mint authority of token.
	Mint(token, to, mintAuthority common.Identity, amount uint64) error
	// TokenAccount returns the token account id
	TokenAccount(id common.Identity) (*TokenAccount, error)
	// MintInfo returns the mint of token
	MintInfo(token common.Identity) (*Mint, error)
	// NativeBalance returns the fee currency balance of owner
	NativeBalance(owner common.Identity) (uint64, error)
	// MinimumBalance is the floor a caller native balance must be above
	MinimumBalance() uint64
}

const (
	// MintLen is the length of the fixed layout of a Mint
	MintLen = 1 + common.IdentityLen + 1 + 8
	// TokenAccountLen is the length of the fixed layout of a TokenAccount
	TokenAccountLen = 1 + common.IdentityLen + common.IdentityLen + 8
)

// Mint is a token definition
type Mint struct {
	IsInitialized bool            `json:"isInitialized"`
	Authority     common.Identity `json:"authority"`
	Decimals      uint8           `json:"decimals"`
	Supply        uint64          `json:"supply"`
}

// Bytes returns the fixed layout of the mint
func (m *Mint) Bytes() [MintLen]byte {
	var b [MintLen]byte
	if m.IsInitialized {
		b[0] = 1
	}
	copy(b[1:33], m.Authority[:])
	b[33] = m.Decimals
	putUint64(b[34:42], m.Supply)
	return b
}

// MintFromBytes decodes the fixed layout of a Mint
func MintFromBytes(b []byte) (*Mint, error) {
	if len(b) != MintLen {
		return nil, tracerr.Wrap(fmt.Errorf("can not parse Mint, bytes len %d, expected %d", len(b), MintLen))
	}
	m := Mint{
		IsInitialized: b[0] == 1,
		Decimals:      b[33],
		Supply:        getUint64(b[34:42]),
	}
	copy(m.Authority[:], b[1:33])
	return &m, nil
}

// TokenAccount holds a balance of one token for one owner
type TokenAccount struct {
	IsInitialized bool            `json:"isInitialized"`
	Mint          common.Identity `json:"mint"`
	Owner         common.Identity `json:"owner"`
	Amount        uint64          `json:"amount"`
}

// Bytes returns the fixed layout of the token account
func (a *TokenAccount) Bytes() [TokenAccountLen]byte {
	var b [TokenAccountLen]byte
	if a.IsInitialized {
		b[0] = 1
	}
	copy(b[1:33], a.Mint[:])
	copy(b[33:65], a.Owner[:])
	putUint64(b[65:73], a.Amount)
	return b
}

// TokenAccountFromBytes decodes the fixed layout of a TokenAccount
func TokenAccountFromBytes(b []byte) (*TokenAccount, error) {
	if len(b) != TokenAccountLen {
		return nil, tracerr.Wrap(fmt.Errorf("can not parse TokenAccount, bytes len %d, expected %d",
			len(b), TokenAccountLen))
	}
	a := TokenAccount{
		IsInitialized: b[0] == 1,
		Amount:        getUint64(b[65:73]),
	}
	copy(a.Mint[:], b[1:33])
	copy(a.Owner[:], b[33:65])
	return &a, nil
}
