package ledger

import (
	"github.com/BurntSushi/toml"
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/log"
	"github.com/hermeznetwork/tracerr"
)

// GenesisMint defines a mint created at startup
type GenesisMint struct {
	ID        common.Identity
	Authority common.Identity
	// AuthorityMarket, when set, makes the derived signing authority of
	// that market the mint authority
	AuthorityMarket *common.Identity
	Decimals        uint8
}

// GenesisAccount defines a token account created at startup
type GenesisAccount struct {
	ID    common.Identity
	Mint  common.Identity
	Owner common.Identity
	// OwnerMarket, when set, makes the derived signing authority of that
	// market the owner
	OwnerMarket *common.Identity
	Amount      uint64
}

// GenesisNative defines a native balance set at startup
type GenesisNative struct {
	Owner  common.Identity
	Amount uint64
}

// Genesis is the initial content of the ledger
type Genesis struct {
	Mint    []GenesisMint
	Account []GenesisAccount
	Native  []GenesisNative
}

// LoadGenesis reads a Genesis from a TOML file
func LoadGenesis(path string) (*Genesis, error) {
	var g Genesis
	if _, err := toml.DecodeFile(path, &g); err != nil {
		return nil, tracerr.Wrap(err)
	}
	return &g, nil
}

func resolveOwner(owner common.Identity, market *common.Identity) (common.Identity, error) {
	if market == nil {
		return owner, nil
	}
	id, _, err := common.DeriveAuthority(common.MarketAuthoritySeeds(*market)...)
	if err != nil {
		return common.EmptyIdentity, tracerr.Wrap(err)
	}
	return id, nil
}

// ApplyGenesis creates the mints, accounts and native balances of g.
// Records that already exist are left untouched so it can run on every
// start.
func (l *KVLedger) ApplyGenesis(g *Genesis) error {
	for _, m := range g.Mint {
		authority, err := resolveOwner(m.Authority, m.AuthorityMarket)
		if err != nil {
			return tracerr.Wrap(err)
		}
		err = l.CreateMint(m.ID, authority, m.Decimals)
		if tracerr.Unwrap(err) == common.ErrAlreadyInitialized {
			continue
		} else if err != nil {
			return tracerr.Wrap(err)
		}
		log.Infow("genesis mint created", "mint", m.ID, "authority", authority, "decimals", m.Decimals)
	}
	for _, a := range g.Account {
		owner, err := resolveOwner(a.Owner, a.OwnerMarket)
		if err != nil {
			return tracerr.Wrap(err)
		}
		err = l.CreateTokenAccount(a.ID, a.Mint, owner)
		if tracerr.Unwrap(err) == common.ErrAlreadyInitialized {
			continue
		} else if err != nil {
			return tracerr.Wrap(err)
		}
		if a.Amount > 0 {
			mint, err := l.MintInfo(a.Mint)
			if err != nil {
				return tracerr.Wrap(err)
			}
			if err := l.Mint(a.Mint, a.ID, mint.Authority, a.Amount); err != nil {
				return tracerr.Wrap(err)
			}
		}
		log.Infow("genesis account created", "account", a.ID, "mint", a.Mint, "owner", owner,
			"amount", a.Amount)
	}
	for _, n := range g.Native {
		if _, err := l.sdb.GetRecord(PrefixKeyNative, n.Owner); err == nil {
			continue
		} else if tracerr.Unwrap(err) != common.ErrAccountNotFound {
			return tracerr.Wrap(err)
		}
		if err := l.SetNativeBalance(n.Owner, n.Amount); err != nil {
			return tracerr.Wrap(err)
		}
	}
	return nil
}
