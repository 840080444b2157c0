package ledger

import (
	"encoding/binary"

	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/db/statedb"
	"github.com/hermeznetwork/forge-node/log"
	"github.com/hermeznetwork/tracerr"
)

var (
	// PrefixKeyMint is the key prefix of Mint records
	PrefixKeyMint = []byte("t:")
	// PrefixKeyTokenAccount is the key prefix of TokenAccount records
	PrefixKeyTokenAccount = []byte("a:")
	// PrefixKeyNative is the key prefix of native balances
	PrefixKeyNative = []byte("n:")
)

func putUint64(b []byte, v uint64) {
	binary.LittleEndian.PutUint64(b, v)
}

func getUint64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

// KVLedger is the reference TokenLedger, storing its records in the same
// StateDB as the engine so that checkpoints cover both
type KVLedger struct {
	sdb            *statedb.StateDB
	minimumBalance uint64
}

// NewKVLedger creates a KVLedger over sdb
func NewKVLedger(sdb *statedb.StateDB, minimumBalance uint64) *KVLedger {
	return &KVLedger{sdb: sdb, minimumBalance: minimumBalance}
}

// MinimumBalance implements TokenLedger
func (l *KVLedger) MinimumBalance() uint64 {
	return l.minimumBalance
}

// MintInfo implements TokenLedger
func (l *KVLedger) MintInfo(token common.Identity) (*Mint, error) {
	b, err := l.sdb.GetRecord(PrefixKeyMint, token)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return MintFromBytes(b)
}

// TokenAccount implements TokenLedger
func (l *KVLedger) TokenAccount(id common.Identity) (*TokenAccount, error) {
	b, err := l.sdb.GetRecord(PrefixKeyTokenAccount, id)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return TokenAccountFromBytes(b)
}

// NativeBalance implements TokenLedger. Owners without a record hold 0.
func (l *KVLedger) NativeBalance(owner common.Identity) (uint64, error) {
	b, err := l.sdb.GetRecord(PrefixKeyNative, owner)
	if tracerr.Unwrap(err) == common.ErrAccountNotFound {
		return 0, nil
	} else if err != nil {
		return 0, tracerr.Wrap(err)
	}
	return getUint64(b), nil
}

// ownedAccount loads the account id of token and checks that authority
// owns it
func (l *KVLedger) ownedAccount(token, id, authority common.Identity) (*TokenAccount, error) {
	acc, err := l.TokenAccount(id)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if acc.Mint != token {
		return nil, tracerr.Wrap(common.ErrTokenMismatch)
	}
	if acc.Owner != authority {
		return nil, tracerr.Wrap(common.ErrUnauthorized)
	}
	return acc, nil
}

// Burn implements TokenLedger
func (l *KVLedger) Burn(token, from, authority common.Identity, amount uint64) error {
	mint, err := l.MintInfo(token)
	if err != nil {
		return tracerr.Wrap(err)
	}
	acc, err := l.ownedAccount(token, from, authority)
	if err != nil {
		return tracerr.Wrap(err)
	}
	if acc.Amount < amount {
		return tracerr.Wrap(common.ErrInsufficientBalance)
	}
	acc.Amount -= amount
	mint.Supply = common.SaturatingSub(mint.Supply, amount)
	err = l.sdb.Update(func(tx *statedb.Tx) error {
		if err := l.putTokenAccount(tx, from, acc); err != nil {
			return tracerr.Wrap(err)
		}
		return tracerr.Wrap(l.putMint(tx, token, mint))
	})
	if err != nil {
		return tracerr.Wrap(err)
	}
	log.Debugw("ledger burn", "token", token, "from", from, "amount", amount)
	return nil
}

// Transfer implements TokenLedger
func (l *KVLedger) Transfer(token, from, to, authority common.Identity, amount uint64) error {
	src, err := l.ownedAccount(token, from, authority)
	if err != nil {
		return tracerr.Wrap(err)
	}
	dst, err := l.TokenAccount(to)
	if err != nil {
		return tracerr.Wrap(err)
	}
	if dst.Mint != token {
		return tracerr.Wrap(common.ErrTokenMismatch)
	}
	if src.Amount < amount {
		return tracerr.Wrap(common.ErrInsufficientBalance)
	}
	if from == to {
		return nil
	}
	if dst.Amount+amount < dst.Amount {
		return tracerr.Wrap(common.ErrInvalidAmount)
	}
	src.Amount -= amount
	dst.Amount += amount
	err = l.sdb.Update(func(tx *statedb.Tx) error {
		if err := l.putTokenAccount(tx, from, src); err != nil {
			return tracerr.Wrap(err)
		}
		return tracerr.Wrap(l.putTokenAccount(tx, to, dst))
	})
	if err != nil {
		return tracerr.Wrap(err)
	}
	log.Debugw("ledger transfer", "token", token, "from", from, "to", to, "amount", amount)
	return nil
}

// Mint implements TokenLedger
func (l *KVLedger) Mint(token, to, mintAuthority common.Identity, amount uint64) error {
	mint, err := l.MintInfo(token)
	if err != nil {
		return tracerr.Wrap(err)
	}
	if mint.Authority != mintAuthority {
		return tracerr.Wrap(common.ErrUnauthorized)
	}
	dst, err := l.TokenAccount(to)
	if err != nil {
		return tracerr.Wrap(err)
	}
	if dst.Mint != token {
		return tracerr.Wrap(common.ErrTokenMismatch)
	}
	if mint.Supply+amount < mint.Supply || dst.Amount+amount < dst.Amount {
		return tracerr.Wrap(common.ErrInvalidAmount)
	}
	mint.Supply += amount
	dst.Amount += amount
	err = l.sdb.Update(func(tx *statedb.Tx) error {
		if err := l.putTokenAccount(tx, to, dst); err != nil {
			return tracerr.Wrap(err)
		}
		return tracerr.Wrap(l.putMint(tx, token, mint))
	})
	if err != nil {
		return tracerr.Wrap(err)
	}
	log.Debugw("ledger mint", "token", token, "to", to, "amount", amount)
	return nil
}

// CreateMint stores a new mint. It fails with common.ErrAlreadyInitialized
// if token exists.
func (l *KVLedger) CreateMint(token, authority common.Identity, decimals uint8) error {
	if _, err := l.MintInfo(token); err == nil {
		return tracerr.Wrap(common.ErrAlreadyInitialized)
	} else if tracerr.Unwrap(err) != common.ErrAccountNotFound {
		return tracerr.Wrap(err)
	}
	mint := &Mint{IsInitialized: true, Authority: authority, Decimals: decimals}
	return l.sdb.Update(func(tx *statedb.Tx) error {
		return l.putMint(tx, token, mint)
	})
}

// CreateTokenAccount stores a new empty account of token owned by owner
func (l *KVLedger) CreateTokenAccount(id, token, owner common.Identity) error {
	if _, err := l.MintInfo(token); err != nil {
		return tracerr.Wrap(err)
	}
	if _, err := l.TokenAccount(id); err == nil {
		return tracerr.Wrap(common.ErrAlreadyInitialized)
	} else if tracerr.Unwrap(err) != common.ErrAccountNotFound {
		return tracerr.Wrap(err)
	}
	acc := &TokenAccount{IsInitialized: true, Mint: token, Owner: owner}
	return l.sdb.Update(func(tx *statedb.Tx) error {
		return l.putTokenAccount(tx, id, acc)
	})
}

// SetNativeBalance sets the fee currency balance of owner
func (l *KVLedger) SetNativeBalance(owner common.Identity, amount uint64) error {
	var b [8]byte
	putUint64(b[:], amount)
	return l.sdb.Update(func(tx *statedb.Tx) error {
		return tx.PutRecord(PrefixKeyNative, owner, b[:])
	})
}

func (l *KVLedger) putMint(tx *statedb.Tx, token common.Identity, m *Mint) error {
	b := m.Bytes()
	return tx.PutRecord(PrefixKeyMint, token, b[:])
}

func (l *KVLedger) putTokenAccount(tx *statedb.Tx, id common.Identity, a *TokenAccount) error {
	b := a.Bytes()
	return tx.PutRecord(PrefixKeyTokenAccount, id, b[:])
}
