package common

import (
	"encoding/binary"

	"github.com/hermeznetwork/tracerr"
)

// MarketParams are the operating parameters of a market that can be
// changed by its authority or by governance
type MarketParams struct {
	SuccessRate       uint8  `json:"successRate"`
	MinimumCoalAmount uint64 `json:"minimumCoalAmount"`
	CooldownPeriod    int64  `json:"cooldownPeriod"`
}

// Validate checks the bounds of every parameter
func (p MarketParams) Validate() error {
	if p.SuccessRate > MaxSuccessRate {
		return tracerr.Wrap(ErrInvalidSuccessRate)
	}
	if p.MinimumCoalAmount == 0 {
		return tracerr.Wrap(ErrInvalidAmount)
	}
	if p.CooldownPeriod < 0 {
		return tracerr.Wrap(ErrInvalidCooldownPeriod)
	}
	return nil
}

// ParamsUpdate is a partial change of MarketParams. Nil fields leave the
// current value unchanged.
type ParamsUpdate struct {
	SuccessRate       *uint8  `json:"successRate,omitempty"`
	MinimumCoalAmount *uint64 `json:"minimumCoalAmount,omitempty"`
	CooldownPeriod    *int64  `json:"cooldownPeriod,omitempty"`
}

// Validate checks every present field with the same bounds as
// MarketParams.Validate
func (u ParamsUpdate) Validate() error {
	if u.SuccessRate != nil && *u.SuccessRate > MaxSuccessRate {
		return tracerr.Wrap(ErrInvalidSuccessRate)
	}
	if u.MinimumCoalAmount != nil && *u.MinimumCoalAmount == 0 {
		return tracerr.Wrap(ErrInvalidAmount)
	}
	if u.CooldownPeriod != nil && *u.CooldownPeriod < 0 {
		return tracerr.Wrap(ErrInvalidCooldownPeriod)
	}
	return nil
}

// Apply validates every present field and only then writes them all into
// state. On error state is left untouched.
func (u ParamsUpdate) Apply(state *ConversionState) error {
	if err := u.Validate(); err != nil {
		return tracerr.Wrap(err)
	}
	if u.SuccessRate != nil {
		state.SuccessRate = *u.SuccessRate
	}
	if u.MinimumCoalAmount != nil {
		state.MinimumCoalAmount = *u.MinimumCoalAmount
	}
	if u.CooldownPeriod != nil {
		state.CooldownPeriod = *u.CooldownPeriod
	}
	return nil
}

// Bytes encodes the update as an optional-fields block:
// has_rate:u8 [rate:u8] has_coal:u8 [coal:u64] has_cooldown:u8 [cooldown:i64]
func (u ParamsUpdate) Bytes() []byte {
	b := make([]byte, 0, paramsUpdateMaxLen)
	if u.SuccessRate != nil {
		b = append(b, 1, *u.SuccessRate)
	} else {
		b = append(b, 0)
	}
	if u.MinimumCoalAmount != nil {
		var v [8]byte
		binary.LittleEndian.PutUint64(v[:], *u.MinimumCoalAmount)
		b = append(append(b, 1), v[:]...)
	} else {
		b = append(b, 0)
	}
	if u.CooldownPeriod != nil {
		var v [8]byte
		binary.LittleEndian.PutUint64(v[:], uint64(*u.CooldownPeriod))
		b = append(append(b, 1), v[:]...)
	} else {
		b = append(b, 0)
	}
	return b
}

const paramsUpdateMaxLen = 1 + 1 + 1 + 8 + 1 + 8

// ParamsUpdateFromBytes decodes an optional-fields block and returns the
// number of bytes consumed
func ParamsUpdateFromBytes(b []byte) (ParamsUpdate, int, error) {
	var u ParamsUpdate
	r := byteReader{b: b}
	if r.flag() {
		v := r.u8()
		u.SuccessRate = &v
	}
	if r.flag() {
		v := r.u64()
		u.MinimumCoalAmount = &v
	}
	if r.flag() {
		v := int64(r.u64())
		u.CooldownPeriod = &v
	}
	if r.err != nil {
		return ParamsUpdate{}, 0, tracerr.Wrap(r.err)
	}
	return u, r.pos, nil
}

// byteReader reads little-endian fields, recording ErrInvalidInstructionData
// on the first short read
type byteReader struct {
	b   []byte
	pos int
	err error
}

func (r *byteReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.b)-r.pos < n {
		r.err = ErrInvalidInstructionData
		return nil
	}
	v := r.b[r.pos : r.pos+n]
	r.pos += n
	return v
}

func (r *byteReader) u8() uint8 {
	v := r.take(1)
	if v == nil {
		return 0
	}
	return v[0]
}

func (r *byteReader) flag() bool {
	f := r.u8()
	if f > 1 {
		r.err = ErrInvalidInstructionData
	}
	return f == 1 && r.err == nil
}

func (r *byteReader) u64() uint64 {
	v := r.take(8) //nolint:gomnd
	if v == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(v)
}

func (r *byteReader) identity() Identity {
	var id Identity
	copy(id[:], r.take(IdentityLen))
	return id
}
