package test

import (
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/ledger"
	"github.com/hermeznetwork/tracerr"
)

// NativeBalance is the fee currency balance given to funded users
const NativeBalance = 1_000_000

// Market holds the ledger records that a market needs before it can be
// initialized
type Market struct {
	ID               common.Identity
	Authority        common.Identity
	SigningAuthority common.Identity
	OreMint          common.Identity
	IngotMint        common.Identity
	CoalMint         common.Identity
	OreVault         common.Identity
}

// Identity returns a deterministic identity for name
func Identity(name string) common.Identity {
	id, _, err := common.DeriveAuthority([]byte("test"), []byte(name))
	if err != nil {
		panic(err)
	}
	return id
}

// NewMarket creates the three mints and the ore vault of the market named
// name. Ore and coal are minted by authority, ingot by the derived signing
// authority of the market.
func NewMarket(l *ledger.KVLedger, name string, authority common.Identity,
	oreDecimals, ingotDecimals, coalDecimals uint8) (*Market, error) {
	m := &Market{
		ID:        Identity("market/" + name),
		Authority: authority,
		OreMint:   Identity("ore/" + name),
		IngotMint: Identity("ingot/" + name),
		CoalMint:  Identity("coal/" + name),
		OreVault:  Identity("vault/" + name),
	}
	signing, _, err := common.DeriveAuthority(common.MarketAuthoritySeeds(m.ID)...)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	m.SigningAuthority = signing
	if err := l.CreateMint(m.OreMint, authority, oreDecimals); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if err := l.CreateMint(m.IngotMint, signing, ingotDecimals); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if err := l.CreateMint(m.CoalMint, authority, coalDecimals); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if err := l.CreateTokenAccount(m.OreVault, m.OreMint, signing); err != nil {
		return nil, tracerr.Wrap(err)
	}
	return m, nil
}

// FundUser creates the ore, coal and ingot accounts of u, mints ore and
// coal to them and sets the native balance of u
func (m *Market) FundUser(l *ledger.KVLedger, u *User, ore, coal, native uint64) error {
	for _, token := range []common.Identity{m.OreMint, m.CoalMint, m.IngotMint} {
		err := l.CreateTokenAccount(u.TokenAccount(token), token, u.ID)
		if err != nil && tracerr.Unwrap(err) != common.ErrAlreadyInitialized {
			return tracerr.Wrap(err)
		}
	}
	if ore > 0 {
		if err := l.Mint(m.OreMint, u.TokenAccount(m.OreMint), m.Authority, ore); err != nil {
			return tracerr.Wrap(err)
		}
	}
	if coal > 0 {
		if err := l.Mint(m.CoalMint, u.TokenAccount(m.CoalMint), m.Authority, coal); err != nil {
			return tracerr.Wrap(err)
		}
	}
	return tracerr.Wrap(l.SetNativeBalance(u.ID, native))
}

// Balance returns the amount held by the account of u for token
func Balance(l ledger.TokenLedger, u *User, token common.Identity) uint64 {
	acc, err := l.TokenAccount(u.TokenAccount(token))
	if err != nil {
		panic(err)
	}
	return acc.Amount
}
