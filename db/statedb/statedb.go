// Package statedb stores the fixed-layout records of the engine (markets,
// governances, proposals and the records of the reference ledger) in a
// checkpointed kvdb. Every record is addressed by a prefix and an Identity.
package statedb

import (
	"errors"
	"sync"

	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/db/kvdb"
	"github.com/hermeznetwork/forge-node/log"
	"github.com/hermeznetwork/tracerr"
	"github.com/iden3/go-merkletree/db"
	"github.com/iden3/go-merkletree/db/memory"
)

const (
	// TypePebble is a StateDB stored on disk with checkpoints
	TypePebble = "pebble"
	// TypeMemory is an ephemeral StateDB without checkpoints
	TypeMemory = "memory"
)

// ErrNoCheckpoints is used when a checkpoint method is called on a memory
// StateDB
var ErrNoCheckpoints = errors.New("memory StateDB does not support checkpoints")

var (
	// PrefixKeyMarket is the key prefix of ConversionState records
	PrefixKeyMarket = []byte("m:")
	// PrefixKeyGovernance is the key prefix of GovernanceState records
	PrefixKeyGovernance = []byte("g:")
	// PrefixKeyProposal is the key prefix of Proposal records
	PrefixKeyProposal = []byte("p:")
	// PrefixKeyOperation is the key prefix of the hashes of the executed
	// operations
	PrefixKeyOperation = []byte("o:")
)

// Config of the StateDB
type Config struct {
	// Type is TypePebble (default) or TypeMemory
	Type string
	// Path where the db and its checkpoints are stored
	Path string
	// Keep is the number of checkpoints to keep
	Keep int
}

// StateDB represents the StateDB object
type StateDB struct {
	cfg Config
	// db is nil for TypeMemory
	db  *kvdb.KVDB
	mem db.Storage
	// rw guards mem, pebble handles its own concurrency
	rw sync.RWMutex
}

// NewStateDB creates a new StateDB, or opens the one stored at cfg.Path
func NewStateDB(cfg Config) (*StateDB, error) {
	if cfg.Type == TypeMemory {
		return &StateDB{cfg: cfg, mem: memory.NewMemoryStorage()}, nil
	}
	kv, err := kvdb.NewKVDB(cfg.Path, cfg.Keep)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return &StateDB{cfg: cfg, db: kv}, nil
}

// storage returns the storage of the current state. For pebble it changes
// after a Reset, so it must not be cached.
func (s *StateDB) storage() db.Storage {
	if s.db == nil {
		return s.mem
	}
	return s.db.DB()
}

// rlock locks mem for reading and returns the unlock function
func (s *StateDB) rlock() func() {
	if s.db != nil {
		return func() {}
	}
	s.rw.RLock()
	return s.rw.RUnlock
}

// Close the StateDB
func (s *StateDB) Close() {
	if s.db == nil {
		s.mem.Close()
		return
	}
	s.db.Close()
}

// MakeCheckpoint stores a Checkpoint of the current state
func (s *StateDB) MakeCheckpoint() error {
	if s.db == nil {
		return tracerr.Wrap(ErrNoCheckpoints)
	}
	log.Debugw("Making StateDB checkpoint", "checkpoint", s.CurrentCheckpoint()+1)
	return tracerr.Wrap(s.db.MakeCheckpoint())
}

// Reset restores the StateDB to the given checkpoint
func (s *StateDB) Reset(checkpoint uint64) error {
	if s.db == nil {
		return tracerr.Wrap(ErrNoCheckpoints)
	}
	log.Debugw("Making StateDB Reset", "checkpoint", checkpoint)
	return tracerr.Wrap(s.db.Reset(checkpoint))
}

// CurrentCheckpoint returns the number of the last checkpoint
func (s *StateDB) CurrentCheckpoint() uint64 {
	if s.db == nil {
		return 0
	}
	return s.db.CurrentCheckpoint
}

// ListCheckpoints returns the available checkpoints
func (s *StateDB) ListCheckpoints() ([]int, error) {
	if s.db == nil {
		return []int{}, nil
	}
	list, err := s.db.ListCheckpoints()
	return list, tracerr.Wrap(err)
}

func recordKey(prefix []byte, id common.Identity) []byte {
	k := make([]byte, 0, len(prefix)+common.IdentityLen)
	k = append(k, prefix...)
	return append(k, id[:]...)
}

// GetRecord returns the raw record stored under prefix and id, or
// common.ErrAccountNotFound
func (s *StateDB) GetRecord(prefix []byte, id common.Identity) ([]byte, error) {
	defer s.rlock()()
	v, err := s.storage().Get(recordKey(prefix, id))
	if tracerr.Unwrap(err) == db.ErrNotFound {
		return nil, tracerr.Wrap(common.ErrAccountNotFound)
	} else if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return v, nil
}

// GetConversionState returns the market stored at id
func (s *StateDB) GetConversionState(id common.Identity) (*common.ConversionState, error) {
	b, err := s.GetRecord(PrefixKeyMarket, id)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return common.ConversionStateFromBytes(b)
}

// GetGovernanceState returns the governance stored at id
func (s *StateDB) GetGovernanceState(id common.Identity) (*common.GovernanceState, error) {
	b, err := s.GetRecord(PrefixKeyGovernance, id)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return common.GovernanceStateFromBytes(b)
}

// GetProposal returns the proposal stored at id
func (s *StateDB) GetProposal(id common.Identity) (*common.Proposal, error) {
	b, err := s.GetRecord(PrefixKeyProposal, id)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return common.ProposalFromBytes(b)
}

// HasOperation reports whether an operation with the given hash was
// executed successfully
func (s *StateDB) HasOperation(hash []byte) (bool, error) {
	defer s.rlock()()
	_, err := s.storage().Get(append(append([]byte{}, PrefixKeyOperation...), hash...))
	if tracerr.Unwrap(err) == db.ErrNotFound {
		return false, nil
	} else if err != nil {
		return false, tracerr.Wrap(err)
	}
	return true, nil
}

// iterIdentities calls fn with the identity of every record under prefix
func (s *StateDB) iterIdentities(prefix []byte, fn func(id common.Identity, v []byte) error) error {
	defer s.rlock()()
	return tracerr.Wrap(s.storage().WithPrefix(prefix).Iterate(func(k, v []byte) (bool, error) {
		id, err := common.IdentityFromBytes(k)
		if err != nil {
			return false, tracerr.Wrap(err)
		}
		if err := fn(id, v); err != nil {
			return false, tracerr.Wrap(err)
		}
		return true, nil
	}))
}

// Markets returns the identities of every stored market
func (s *StateDB) Markets() ([]common.Identity, error) {
	ids := []common.Identity{}
	err := s.iterIdentities(PrefixKeyMarket, func(id common.Identity, _ []byte) error {
		ids = append(ids, id)
		return nil
	})
	return ids, tracerr.Wrap(err)
}

// ProposalsOf returns the identities of the proposals of governance
func (s *StateDB) ProposalsOf(governance common.Identity) ([]common.Identity, error) {
	ids := []common.Identity{}
	err := s.iterIdentities(PrefixKeyProposal, func(id common.Identity, v []byte) error {
		p, err := common.ProposalFromBytes(v)
		if err != nil {
			return tracerr.Wrap(err)
		}
		if p.Governance == governance {
			ids = append(ids, id)
		}
		return nil
	})
	return ids, tracerr.Wrap(err)
}

// Tx groups record writes that are committed atomically
type Tx struct {
	s  *StateDB
	tx db.Tx
}

// NewTx opens a write transaction
func (s *StateDB) NewTx() (*Tx, error) {
	tx, err := s.storage().NewTx()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return &Tx{s: s, tx: tx}, nil
}

// PutRecord stores a raw record under prefix and id
func (tx *Tx) PutRecord(prefix []byte, id common.Identity, v []byte) error {
	return tracerr.Wrap(tx.tx.Put(recordKey(prefix, id), v))
}

// PutConversionState stores the market at id
func (tx *Tx) PutConversionState(id common.Identity, state *common.ConversionState) error {
	b := state.Bytes()
	return tracerr.Wrap(tx.PutRecord(PrefixKeyMarket, id, b[:]))
}

// PutGovernanceState stores the governance at id
func (tx *Tx) PutGovernanceState(id common.Identity, gov *common.GovernanceState) error {
	b, err := gov.Bytes()
	if err != nil {
		return tracerr.Wrap(err)
	}
	return tracerr.Wrap(tx.PutRecord(PrefixKeyGovernance, id, b[:]))
}

// PutProposal stores the proposal at id
func (tx *Tx) PutProposal(id common.Identity, p *common.Proposal) error {
	b, err := p.Bytes()
	if err != nil {
		return tracerr.Wrap(err)
	}
	return tracerr.Wrap(tx.PutRecord(PrefixKeyProposal, id, b[:]))
}

// PutOperation marks the operation hash as executed
func (tx *Tx) PutOperation(hash []byte) error {
	return tracerr.Wrap(tx.tx.Put(append(append([]byte{}, PrefixKeyOperation...), hash...), []byte{1}))
}

// Commit writes every Put of the transaction
func (tx *Tx) Commit() error {
	if tx.s.db == nil {
		tx.s.rw.Lock()
		defer tx.s.rw.Unlock()
	}
	return tracerr.Wrap(tx.tx.Commit())
}

// Close discards the transaction if it was not committed
func (tx *Tx) Close() {
	tx.tx.Close()
}

// Update runs fn in a new transaction and commits it if fn succeeds
func (s *StateDB) Update(fn func(tx *Tx) error) error {
	tx, err := s.NewTx()
	if err != nil {
		return tracerr.Wrap(err)
	}
	defer tx.Close()
	if err := fn(tx); err != nil {
		return tracerr.Wrap(err)
	}
	return tracerr.Wrap(tx.Commit())
}

// PutConversionState stores the market at id in its own transaction
func (s *StateDB) PutConversionState(id common.Identity, state *common.ConversionState) error {
	return s.Update(func(tx *Tx) error {
		return tx.PutConversionState(id, state)
	})
}
