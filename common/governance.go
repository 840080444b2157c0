package common

import (
	"fmt"

	"github.com/hermeznetwork/tracerr"
)

// GovernanceStateLen is the length of the fixed layout of a GovernanceState
const GovernanceStateLen = 1 + IdentityLen + 1 + MaxSigners*IdentityLen + 1 + 8

// GovernanceState is the multisig roster attached to a market
type GovernanceState struct {
	IsInitialized bool       `json:"isInitialized"`
	Market        Identity   `json:"market"`
	Signers       []Identity `json:"signers"`
	Threshold     uint8      `json:"threshold"`
	// Nonce is incremented once per created proposal
	Nonce uint64 `json:"nonce"`
}

// NewGovernanceState validates the roster and returns a new initialized
// GovernanceState for market
func NewGovernanceState(market Identity, signers []Identity, threshold uint8) (*GovernanceState, error) {
	if threshold == 0 {
		return nil, tracerr.Wrap(ErrInvalidThreshold)
	}
	if len(signers) < int(threshold) {
		return nil, tracerr.Wrap(ErrInvalidSignerCount)
	}
	if len(signers) > MaxSigners {
		return nil, tracerr.Wrap(ErrTooManySigners)
	}
	seen := make(map[Identity]struct{}, len(signers))
	for _, s := range signers {
		if _, ok := seen[s]; ok {
			return nil, tracerr.Wrap(ErrDuplicateSigner)
		}
		seen[s] = struct{}{}
	}
	cp := make([]Identity, len(signers))
	copy(cp, signers)
	return &GovernanceState{
		IsInitialized: true,
		Market:        market,
		Signers:       cp,
		Threshold:     threshold,
	}, nil
}

// SignerIndex returns the position of id in the roster, or -1
func (g *GovernanceState) SignerIndex(id Identity) int {
	for i, s := range g.Signers {
		if s == id {
			return i
		}
	}
	return -1
}

// IsSigner reports whether id is part of the roster
func (g *GovernanceState) IsSigner(id Identity) bool {
	return g.SignerIndex(id) >= 0
}

// Bytes returns the fixed layout of the state. Unused signer slots are
// zero.
func (g *GovernanceState) Bytes() ([GovernanceStateLen]byte, error) {
	var b [GovernanceStateLen]byte
	if len(g.Signers) > MaxSigners {
		return b, tracerr.Wrap(ErrTooManySigners)
	}
	w := byteWriter{b: b[:0]}
	w.flag(g.IsInitialized)
	w.identity(g.Market)
	w.u8(uint8(len(g.Signers)))
	for i := 0; i < MaxSigners; i++ {
		if i < len(g.Signers) {
			w.identity(g.Signers[i])
		} else {
			w.identity(EmptyIdentity)
		}
	}
	w.u8(g.Threshold)
	w.u64(g.Nonce)
	return b, nil
}

// GovernanceStateFromBytes decodes the fixed layout of a GovernanceState
func GovernanceStateFromBytes(b []byte) (*GovernanceState, error) {
	if len(b) != GovernanceStateLen {
		return nil, tracerr.Wrap(fmt.Errorf("can not parse GovernanceState, bytes len %d, expected %d",
			len(b), GovernanceStateLen))
	}
	r := byteReader{b: b}
	g := GovernanceState{
		IsInitialized: r.flag(),
		Market:        r.identity(),
	}
	n := int(r.u8())
	if n > MaxSigners {
		return nil, tracerr.Wrap(ErrTooManySigners)
	}
	g.Signers = make([]Identity, n)
	for i := 0; i < MaxSigners; i++ {
		id := r.identity()
		if i < n {
			g.Signers[i] = id
		}
	}
	g.Threshold = r.u8()
	g.Nonce = r.u64()
	if r.err != nil {
		return nil, tracerr.Wrap(r.err)
	}
	return &g, nil
}
