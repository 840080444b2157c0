package txprocessor

import (
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/db/statedb"
	"github.com/hermeznetwork/forge-node/log"
	"github.com/hermeznetwork/tracerr"
)

// latch holds the IsProcessing flag of a market while an operation calls
// the ledger. A nested operation on the same market reads the persisted
// flag and fails with common.ErrReentrancyDetected.
type latch struct {
	s       *statedb.StateDB
	market  common.Identity
	state   *common.ConversionState
	restore common.ConversionState
	done    bool
}

// acquire persists state with the latch set
func (tp *TxProcessor) acquire(market common.Identity, state *common.ConversionState) (*latch, error) {
	restore := *state
	state.IsProcessing = true
	if err := tp.s.PutConversionState(market, state); err != nil {
		state.IsProcessing = false
		return nil, tracerr.Wrap(err)
	}
	return &latch{s: tp.s, market: market, state: state, restore: restore}, nil
}

// payAttempt records now as the last operation time, also in the state
// restored by release
func (l *latch) payAttempt(now int64) {
	l.state.LastOperationTime = now
	l.restore.LastOperationTime = now
}

// commit persists the state with the latch cleared
func (l *latch) commit() error {
	l.state.IsProcessing = false
	if err := l.s.PutConversionState(l.market, l.state); err != nil {
		return tracerr.Wrap(err)
	}
	l.done = true
	return nil
}

// release restores the state held before acquire, with the latch cleared,
// unless the operation was committed
func (l *latch) release() {
	if l.done {
		return
	}
	restore := l.restore
	restore.IsProcessing = false
	if err := l.s.PutConversionState(l.market, &restore); err != nil {
		log.Errorw("Releasing market latch", "market", l.market, "err", err)
		return
	}
	*l.state = restore
	l.done = true
}
