/*
Package engine is the entry point of every operation submitted to the node.

Execute takes one common.Operation and runs it to completion before the next
one is considered:

	decode -> authenticate -> bind accounts -> route -> persist -> publish

The instruction is decoded with common.DecodeInstruction, the authenticated
identities are obtained from the auth.Authenticator, and the positional
accounts are bound to the account struct of the instruction. Conversion
instructions are routed to the txprocessor.TxProcessor and the multisig
ones to the governance.Processor; both persist their records in the StateDB
before returning.

Accepted operations are marked in the StateDB by hash so that the same
operation can not be executed twice. Every operation, accepted or rejected,
is recorded in the HistoryDB (when configured) and published as a Result to
the subscribers.
*/
package engine

import (
	"sync"
	"time"

	ethCommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"github.com/hermeznetwork/forge-node/auth"
	"github.com/hermeznetwork/forge-node/clock"
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/db/historydb"
	"github.com/hermeznetwork/forge-node/db/statedb"
	"github.com/hermeznetwork/forge-node/governance"
	"github.com/hermeznetwork/forge-node/ledger"
	"github.com/hermeznetwork/forge-node/log"
	"github.com/hermeznetwork/forge-node/metric"
	"github.com/hermeznetwork/forge-node/txprocessor"
	"github.com/hermeznetwork/tracerr"
)

// Config of the Engine
type Config struct {
	// CheckpointInterval is the number of accepted operations between
	// StateDB checkpoints. 0 disables the automatic checkpoints.
	CheckpointInterval uint64
}

// Result is the outcome of an executed operation
type Result struct {
	Hash   ethCommon.Hash        `json:"hash"`
	Tag    common.InstructionTag `json:"-"`
	Market common.Identity       `json:"market"`
	Events []common.Event        `json:"events"`
	// Err is nil when the operation was accepted
	Err error `json:"-"`
}

// Accepted reports whether the operation was accepted
func (r *Result) Accepted() bool {
	return r.Err == nil
}

// Engine executes operations one at a time
type Engine struct {
	cfg     Config
	rw      sync.Mutex
	sdb     *statedb.StateDB
	hdb     *historydb.HistoryDB
	tp      *txprocessor.TxProcessor
	gov     *governance.Processor
	auth    auth.Authenticator
	clock   clock.Clock
	feed    event.Feed
	pending uint64
}

// NewEngine creates an Engine. hdb can be nil, in which case the history of
// operations is not recorded. A nil r uses txprocessor.SlotHashRandomness.
func NewEngine(cfg Config, sdb *statedb.StateDB, hdb *historydb.HistoryDB, l ledger.TokenLedger,
	a auth.Authenticator, c clock.Clock, r txprocessor.Randomness) *Engine {
	return &Engine{
		cfg:   cfg,
		sdb:   sdb,
		hdb:   hdb,
		tp:    txprocessor.NewTxProcessor(sdb, l, c, r),
		gov:   governance.NewProcessor(sdb),
		auth:  a,
		clock: c,
	}
}

// StateDB returns the StateDB of the Engine
func (e *Engine) StateDB() *statedb.StateDB {
	return e.sdb
}

// SubscribeResults registers ch to receive the Result of every executed
// operation. Sends block the engine, so ch must be drained or buffered.
func (e *Engine) SubscribeResults(ch chan<- Result) event.Subscription {
	return e.feed.Subscribe(ch)
}

// Execute runs op. The returned error is the error of the operation, the
// Result is always returned.
func (e *Engine) Execute(op *common.Operation) (*Result, error) {
	e.rw.Lock()
	defer e.rw.Unlock()
	start := time.Now()

	hash := op.Hash()
	res := &Result{Hash: ethCommon.BytesToHash(hash)}
	if len(op.Data) > 0 {
		res.Tag = common.InstructionTag(op.Data[0])
	}
	res.Events, res.Market, res.Err = e.execute(op, hash)
	if res.Err != nil {
		res.Events = nil
	}

	status := metric.StatusOK
	if res.Err != nil {
		status = metric.StatusRejected
		log.Debugw("Operation rejected", "hash", res.Hash, "instruction", res.Tag,
			"market", res.Market, "err", res.Err)
	} else {
		log.Debugw("Operation accepted", "hash", res.Hash, "instruction", res.Tag,
			"market", res.Market, "events", len(res.Events))
	}
	metric.Operations.WithLabelValues(res.Tag.String(), status).Inc()
	metric.MeasureDuration(metric.OperationDuration, start, res.Tag.String())
	e.collectMetrics(res)

	if e.hdb != nil {
		row := historydb.NewOperation(op, res.Tag, res.Market, res.Err, e.clock.Slot(), e.clock.Now())
		if err := e.hdb.AddOperation(row, res.Events); err != nil {
			log.Errorw("HistoryDB.AddOperation", "hash", res.Hash, "err", err)
			metric.CollectError(err)
		}
	}
	if res.Err == nil {
		if err := e.maybeCheckpoint(); err != nil {
			log.Errorw("StateDB.MakeCheckpoint", "err", err)
			metric.CollectError(err)
		}
	}
	e.feed.Send(*res)
	return res, res.Err
}

// leavesEffects reports whether an operation that returned err modified
// the state. A smelt whose mint exceeds the supply still burns the coal.
func leavesEffects(tag common.InstructionTag, err error) bool {
	return err == nil || (tag == common.TagSmelt && tracerr.Unwrap(err) == common.ErrMaxSupplyExceeded)
}

func (e *Engine) execute(op *common.Operation, hash []byte) ([]common.Event, common.Identity, error) {
	market := e.marketOf(op)
	replayed, err := e.sdb.HasOperation(hash)
	if err != nil {
		return nil, market, tracerr.Wrap(err)
	}
	if replayed {
		return nil, market, tracerr.Wrap(common.ErrOperationReplayed)
	}
	inst, err := common.DecodeInstruction(op.Data)
	if err != nil {
		return nil, market, tracerr.Wrap(err)
	}
	signers, err := e.auth.Authenticate(op)
	if err != nil {
		return nil, market, tracerr.Wrap(err)
	}
	events, err := e.route(signers, inst, op)
	if leavesEffects(inst.Tag, err) {
		if errMark := e.sdb.Update(func(tx *statedb.Tx) error {
			return tx.PutOperation(hash)
		}); errMark != nil {
			return nil, market, tracerr.Wrap(errMark)
		}
	}
	return events, market, tracerr.Wrap(err)
}

func (e *Engine) route(signers auth.Signers, inst *common.Instruction,
	op *common.Operation) ([]common.Event, error) {
	switch inst.Tag {
	case common.TagSmelt:
		acc, err := smeltAccounts(op)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		return e.tp.Smelt(signers, acc, inst.Amount, inst.CoalAmount)
	case common.TagUnsmelt:
		acc, err := unsmeltAccounts(op)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		return e.tp.Unsmelt(signers, acc, inst.Amount)
	case common.TagMintIngot:
		acc, err := mintAccounts(op)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		return e.tp.MintIngot(signers, acc, inst.Amount)
	case common.TagTransferOre, common.TagTransferIngot:
		acc, err := transferAccounts(op)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		if inst.Tag == common.TagTransferOre {
			return e.tp.TransferOre(signers, acc, inst.Amount)
		}
		return e.tp.TransferIngot(signers, acc, inst.Amount)
	case common.TagInitialize:
		acc, err := initializeAccounts(op)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		return e.tp.Initialize(signers, acc, inst.Params)
	case common.TagUpdateParams:
		acc, err := updateParamsAccounts(op)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		return e.tp.UpdateParams(signers, acc, inst.Update)
	case common.TagInitializeGovernance:
		acc, err := initializeGovernanceAccounts(op)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		return e.gov.InitializeGovernance(signers, acc, inst.Signers, inst.Threshold)
	case common.TagPropose:
		acc, err := proposeAccounts(op)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		return e.gov.Propose(signers, acc, inst.Update)
	case common.TagApprove:
		acc, err := approveAccounts(op)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		return e.gov.Approve(signers, acc)
	}
	return nil, tracerr.Wrap(common.ErrInvalidInstructionData)
}

// marketOf returns the market touched by op, or the EmptyIdentity when it
// can not be resolved. Propose and Approve reference the governance, whose
// record points to the market.
func (e *Engine) marketOf(op *common.Operation) common.Identity {
	first, err := op.AccountAt(0)
	if err != nil || len(op.Data) == 0 {
		return common.EmptyIdentity
	}
	switch common.InstructionTag(op.Data[0]) {
	case common.TagPropose, common.TagApprove:
		gov, err := e.sdb.GetGovernanceState(first)
		if err != nil {
			return common.EmptyIdentity
		}
		return gov.Market
	}
	return first
}

func (e *Engine) collectMetrics(res *Result) {
	if res.Err != nil {
		if tracerr.Unwrap(res.Err) == common.ErrMaxSupplyExceeded {
			metric.SmeltOutcomes.WithLabelValues("supply_exceeded").Inc()
		}
		return
	}
	for _, ev := range res.Events {
		switch ev.Type() {
		case common.EventTypeSmeltingSuccessful:
			metric.SmeltOutcomes.WithLabelValues("success").Inc()
		case common.EventTypeSmeltingFailed:
			metric.SmeltOutcomes.WithLabelValues("failure").Inc()
		}
	}
	if res.Market.IsZero() {
		return
	}
	if state, err := e.sdb.GetConversionState(res.Market); err == nil {
		metric.IngotSupply.WithLabelValues(res.Market.String()).Set(float64(state.TotalIngotsMinted))
	}
}

func (e *Engine) maybeCheckpoint() error {
	if e.cfg.CheckpointInterval == 0 {
		return nil
	}
	e.pending++
	if e.pending < e.cfg.CheckpointInterval {
		return nil
	}
	return tracerr.Wrap(e.makeCheckpoint())
}

func (e *Engine) makeCheckpoint() error {
	if err := e.sdb.MakeCheckpoint(); err != nil {
		return tracerr.Wrap(err)
	}
	e.pending = 0
	metric.LastCheckpoint.Set(float64(e.sdb.CurrentCheckpoint()))
	return nil
}

// MakeCheckpoint stores a StateDB checkpoint between two operations
func (e *Engine) MakeCheckpoint() (uint64, error) {
	e.rw.Lock()
	defer e.rw.Unlock()
	if err := e.makeCheckpoint(); err != nil {
		return 0, tracerr.Wrap(err)
	}
	return e.sdb.CurrentCheckpoint(), nil
}

// Reset restores the StateDB to checkpoint. The HistoryDB is not modified.
func (e *Engine) Reset(checkpoint uint64) error {
	e.rw.Lock()
	defer e.rw.Unlock()
	e.pending = 0
	return tracerr.Wrap(e.sdb.Reset(checkpoint))
}
