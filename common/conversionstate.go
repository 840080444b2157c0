package common

import (
	"encoding/binary"
	"fmt"

	"github.com/hermeznetwork/tracerr"
)

// ConversionStateLen is the length of the fixed layout of a ConversionState
const ConversionStateLen = 1 + IdentityLen + 1 + 4*IdentityLen + 8 + 8 + 3 + 1 + 8 + 8 + 8 + 1 + IdentityLen

// ConversionState is the persistent record of one conversion market
type ConversionState struct {
	IsInitialized bool `json:"isInitialized"`
	// Authority can mint ingot directly and, while no governance is
	// attached, change the market parameters
	Authority Identity `json:"authority"`
	// AuthorityBump is the bump of the derived signing authority of the
	// market, see MarketAuthoritySeeds
	AuthorityBump     uint8    `json:"authorityBump"`
	OreToken          Identity `json:"oreToken"`
	IngotToken        Identity `json:"ingotToken"`
	CoalToken         Identity `json:"coalToken"`
	OreVault          Identity `json:"oreVault"`
	TotalIngotsMinted uint64   `json:"totalIngotsMinted"`
	TotalOreLocked    uint64   `json:"totalOreLocked"`
	OreDecimals       uint8    `json:"oreDecimals"`
	IngotDecimals     uint8    `json:"ingotDecimals"`
	CoalDecimals      uint8    `json:"coalDecimals"`
	SuccessRate       uint8    `json:"successRate"`
	MinimumCoalAmount uint64   `json:"minimumCoalAmount"`
	CooldownPeriod    int64    `json:"cooldownPeriod"`
	LastOperationTime int64    `json:"lastOperationTime"`
	// IsProcessing is the non-reentrancy latch, only observable as true by
	// a nested call
	IsProcessing bool `json:"isProcessing"`
	// Governance is the identity of the attached GovernanceState, empty
	// when none
	Governance Identity `json:"governance"`
}

// String returns a short representation of the market state
func (s *ConversionState) String() string {
	return fmt.Sprintf("ConversionState{minted: %d, locked: %d, rate: %d, coal: %d, cooldown: %d}",
		s.TotalIngotsMinted, s.TotalOreLocked, s.SuccessRate, s.MinimumCoalAmount, s.CooldownPeriod)
}

// Params returns the current operating parameters
func (s *ConversionState) Params() MarketParams {
	return MarketParams{
		SuccessRate:       s.SuccessRate,
		MinimumCoalAmount: s.MinimumCoalAmount,
		CooldownPeriod:    s.CooldownPeriod,
	}
}

// HasGovernance reports whether a GovernanceState is attached
func (s *ConversionState) HasGovernance() bool {
	return !s.Governance.IsZero()
}

// SigningAuthority returns the derived identity that signs ledger calls on
// behalf of market
func (s *ConversionState) SigningAuthority(market Identity) (Identity, error) {
	id, err := CreateDerivedIdentity(MarketAuthoritySeeds(market), s.AuthorityBump)
	if err != nil {
		return EmptyIdentity, tracerr.Wrap(err)
	}
	return id, nil
}

// SuccessThreshold returns floor(success_rate * 256 / 100). A seed byte
// strictly below it is a success.
func (s *ConversionState) SuccessThreshold() uint16 {
	return uint16(s.SuccessRate) * 256 / 100 //nolint:gomnd
}

// CanMintIngot reports whether amount more ingot keeps the supply at or
// under MaxIngotSupply
func (s *ConversionState) CanMintIngot(amount uint64) bool {
	return SaturatingAdd(s.TotalIngotsMinted, amount) <= MaxIngotSupply
}

// CooldownElapsed reports whether now is at or past
// last_operation_time + cooldown_period
func (s *ConversionState) CooldownElapsed(now int64) bool {
	if now < s.LastOperationTime {
		return false
	}
	// unsigned difference, it can not overflow when now >= last
	return uint64(now)-uint64(s.LastOperationTime) >= uint64(s.CooldownPeriod)
}

// UpdateOnSuccessfulSmelt adds the minted ingot and the locked ore to the
// running totals
func (s *ConversionState) UpdateOnSuccessfulSmelt(ingotAmount, oreAmount uint64) error {
	if !s.CanMintIngot(ingotAmount) {
		return tracerr.Wrap(ErrMaxSupplyExceeded)
	}
	s.TotalIngotsMinted += ingotAmount
	s.TotalOreLocked = SaturatingAdd(s.TotalOreLocked, oreAmount)
	return nil
}

// UpdateOnUnsmelt removes the burned ingot and the released ore from the
// totals. The fee stays locked.
func (s *ConversionState) UpdateOnUnsmelt(ingotAmount, oreAmount, fee uint64) {
	s.TotalIngotsMinted = SaturatingSub(s.TotalIngotsMinted, ingotAmount)
	s.TotalOreLocked = SaturatingAdd(SaturatingSub(s.TotalOreLocked, oreAmount), fee)
}

// Bytes returns the fixed layout of the state
func (s *ConversionState) Bytes() [ConversionStateLen]byte {
	var b [ConversionStateLen]byte
	w := byteWriter{b: b[:0]}
	w.flag(s.IsInitialized)
	w.identity(s.Authority)
	w.u8(s.AuthorityBump)
	w.identity(s.OreToken)
	w.identity(s.IngotToken)
	w.identity(s.CoalToken)
	w.identity(s.OreVault)
	w.u64(s.TotalIngotsMinted)
	w.u64(s.TotalOreLocked)
	w.u8(s.OreDecimals)
	w.u8(s.IngotDecimals)
	w.u8(s.CoalDecimals)
	w.u8(s.SuccessRate)
	w.u64(s.MinimumCoalAmount)
	w.u64(uint64(s.CooldownPeriod))
	w.u64(uint64(s.LastOperationTime))
	w.flag(s.IsProcessing)
	w.identity(s.Governance)
	return b
}

// ConversionStateFromBytes decodes the fixed layout of a ConversionState. A
// stored success_rate above MaxSuccessRate fails with ErrInvalidSuccessRate.
func ConversionStateFromBytes(b []byte) (*ConversionState, error) {
	if len(b) != ConversionStateLen {
		return nil, tracerr.Wrap(fmt.Errorf("can not parse ConversionState, bytes len %d, expected %d",
			len(b), ConversionStateLen))
	}
	r := byteReader{b: b}
	s := ConversionState{
		IsInitialized:     r.flag(),
		Authority:         r.identity(),
		AuthorityBump:     r.u8(),
		OreToken:          r.identity(),
		IngotToken:        r.identity(),
		CoalToken:         r.identity(),
		OreVault:          r.identity(),
		TotalIngotsMinted: r.u64(),
		TotalOreLocked:    r.u64(),
		OreDecimals:       r.u8(),
		IngotDecimals:     r.u8(),
		CoalDecimals:      r.u8(),
		SuccessRate:       r.u8(),
		MinimumCoalAmount: r.u64(),
		CooldownPeriod:    int64(r.u64()),
		LastOperationTime: int64(r.u64()),
		IsProcessing:      r.flag(),
		Governance:        r.identity(),
	}
	if r.err != nil {
		return nil, tracerr.Wrap(r.err)
	}
	if s.SuccessRate > MaxSuccessRate {
		return nil, tracerr.Wrap(ErrInvalidSuccessRate)
	}
	return &s, nil
}

// byteWriter appends little-endian fields to b
type byteWriter struct {
	b []byte
}

func (w *byteWriter) u8(v uint8) {
	w.b = append(w.b, v)
}

func (w *byteWriter) flag(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *byteWriter) u64(v uint64) {
	var e [8]byte
	binary.LittleEndian.PutUint64(e[:], v)
	w.b = append(w.b, e[:]...)
}

func (w *byteWriter) identity(id Identity) {
	w.b = append(w.b, id[:]...)
}
