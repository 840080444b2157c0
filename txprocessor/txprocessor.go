/*
Package txprocessor is the module that takes the decoded conversion operations
and processes them, updating the ConversionState of a market in the StateDB and
moving tokens through the TokenLedger.

Every operation follows the same lines:
  - load the ConversionState of the market from the StateDB
  - check the signers required by the operation
  - check the preconditions, in a fixed order, before any ledger call
  - set and persist the IsProcessing latch of the market
  - call the TokenLedger (burn, transfer, mint) signing with the derived
    authority of the market when the tokens belong to the market
  - update the totals, clear the latch and persist the ConversionState
  - return the events of the operation

The latch is released on every return path. If the operation fails after
the latch is set, the ConversionState is restored to its previous value, with
the only exception of LastOperationTime once the coal of a smelt has been
burned: a smelt pays for its attempt even if it can not mint.

Packages dependency overview:

	     Engine
	        |
	        v
	   TxProcessor
	    +       +
	    |       |
	    v       v
	StateDB   TokenLedger
	    +       +
	    |       |
	    v       v
	   KVDB <---+ (KVLedger)

The outcome of a smelt is drawn from the seed byte of the current slot
returned by Randomness: the smelt succeeds when the seed byte is strictly
below floor(SuccessRate * 256 / 100).
*/
package txprocessor

import (
	"encoding/binary"

	ethCrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/hermeznetwork/forge-node/auth"
	"github.com/hermeznetwork/forge-node/clock"
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/db/statedb"
	"github.com/hermeznetwork/forge-node/ledger"
	"github.com/hermeznetwork/forge-node/log"
	"github.com/hermeznetwork/tracerr"
)

// Randomness returns the seed byte used to draw the outcome of a smelt
type Randomness interface {
	SeedByte(slot uint64) byte
}

// SlotHashRandomness uses the first byte of keccak256 of the little endian
// slot number
type SlotHashRandomness struct{}

// SeedByte implements Randomness
func (SlotHashRandomness) SeedByte(slot uint64) byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], slot)
	return ethCrypto.Keccak256(b[:])[0]
}

// SmeltSucceeds reports whether seed draws a success for the threshold of
// state
func SmeltSucceeds(state *common.ConversionState, seed byte) bool {
	return uint16(seed) < state.SuccessThreshold()
}

// TxProcessor represents the TxProcessor object
type TxProcessor struct {
	s      *statedb.StateDB
	ledger ledger.TokenLedger
	clock  clock.Clock
	rand   Randomness
}

// NewTxProcessor returns a new TxProcessor with the given StateDB, ledger,
// clock and randomness source
func NewTxProcessor(sdb *statedb.StateDB, l ledger.TokenLedger, c clock.Clock,
	r Randomness) *TxProcessor {
	if r == nil {
		r = SlotHashRandomness{}
	}
	return &TxProcessor{
		s:      sdb,
		ledger: l,
		clock:  c,
		rand:   r,
	}
}

// StateDB returns a pointer to the StateDB of the TxProcessor
func (tp *TxProcessor) StateDB() *statedb.StateDB {
	return tp.s
}

// loadMarket returns the initialized ConversionState of market
func (tp *TxProcessor) loadMarket(market common.Identity) (*common.ConversionState, error) {
	state, err := tp.s.GetConversionState(market)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if !state.IsInitialized {
		return nil, tracerr.Wrap(common.ErrAccountNotFound)
	}
	return state, nil
}

// checkAmount checks that amount is in (0, MaxAmount]
func checkAmount(amount uint64) error {
	if amount == 0 || amount > common.MaxAmount {
		return tracerr.Wrap(common.ErrInvalidAmount)
	}
	return nil
}

// checkNativeFloor checks that payer holds more native balance than the
// minimum balance of the ledger
func (tp *TxProcessor) checkNativeFloor(payer common.Identity) error {
	native, err := tp.ledger.NativeBalance(payer)
	if err != nil {
		return tracerr.Wrap(err)
	}
	if native <= tp.ledger.MinimumBalance() {
		return tracerr.Wrap(common.ErrInsufficientFunds)
	}
	return nil
}

// checkSmeltAccounts checks that the ore account of a smelt can pay
// oreAmount and that the ingot account can receive the mint, so that once
// the coal is burned the ledger calls that follow can not fail
func (tp *TxProcessor) checkSmeltAccounts(state *common.ConversionState, acc SmeltAccounts,
	oreAmount uint64) error {
	userOre, err := tp.ledger.TokenAccount(acc.UserOre)
	if err != nil {
		return tracerr.Wrap(err)
	}
	if userOre.Mint != state.OreToken {
		return tracerr.Wrap(common.ErrTokenMismatch)
	}
	if userOre.Owner != acc.User {
		return tracerr.Wrap(common.ErrUnauthorized)
	}
	if userOre.Amount < oreAmount {
		return tracerr.Wrap(common.ErrInsufficientBalance)
	}
	userIngot, err := tp.ledger.TokenAccount(acc.UserIngot)
	if err != nil {
		return tracerr.Wrap(err)
	}
	if userIngot.Mint != state.IngotToken {
		return tracerr.Wrap(common.ErrTokenMismatch)
	}
	return nil
}

// Smelt burns the coal of the user and, if the outcome draw succeeds, locks
// the ore in the vault of the market and mints ingot to the user
func (tp *TxProcessor) Smelt(signers auth.Signers, acc SmeltAccounts,
	oreAmount, coalAmount uint64) ([]common.Event, error) {
	state, err := tp.loadMarket(acc.Market)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if !signers.Has(acc.User) {
		return nil, tracerr.Wrap(common.ErrMissingRequiredSignature)
	}
	if state.IsProcessing {
		return nil, tracerr.Wrap(common.ErrReentrancyDetected)
	}
	if err := checkAmount(oreAmount); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if coalAmount > common.MaxAmount {
		return nil, tracerr.Wrap(common.ErrInvalidAmount)
	}
	if coalAmount < state.MinimumCoalAmount {
		return nil, tracerr.Wrap(common.ErrInsufficientCoal)
	}
	now := tp.clock.Now()
	if !state.CooldownElapsed(now) {
		return nil, tracerr.Wrap(common.ErrCooldownNotMet)
	}
	if err := tp.checkNativeFloor(acc.User); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if err := tp.checkSmeltAccounts(state, acc, oreAmount); err != nil {
		return nil, tracerr.Wrap(err)
	}
	marketAuth, err := state.SigningAuthority(acc.Market)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}

	l, err := tp.acquire(acc.Market, state)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	defer l.release()

	if err := tp.ledger.Burn(state.CoalToken, acc.UserCoal, acc.User, coalAmount); err != nil {
		return nil, tracerr.Wrap(err)
	}
	// the coal is gone, the attempt is accounted for whatever happens next
	l.payAttempt(now)

	seed := tp.rand.SeedByte(tp.clock.Slot())
	if !SmeltSucceeds(state, seed) {
		if err := l.commit(); err != nil {
			return nil, tracerr.Wrap(err)
		}
		log.Debugw("Smelt failed", "market", acc.Market, "user", acc.User, "coal", coalAmount, "seed", seed)
		return []common.Event{common.SmeltingFailed{
			Market:     acc.Market,
			User:       acc.User,
			CoalAmount: coalAmount,
		}}, nil
	}

	ingotAmount, err := common.ConvertDecimals(oreAmount, state.OreDecimals, state.IngotDecimals)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if !state.CanMintIngot(ingotAmount) {
		log.Debugw("Smelt exceeds ingot supply", "market", acc.Market, "minted", state.TotalIngotsMinted,
			"ingot", ingotAmount)
		return nil, tracerr.Wrap(common.ErrMaxSupplyExceeded)
	}
	if err := tp.ledger.Transfer(state.OreToken, acc.UserOre, state.OreVault, acc.User,
		oreAmount); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if err := tp.ledger.Mint(state.IngotToken, acc.UserIngot, marketAuth, ingotAmount); err != nil {
		// give the ore back, the mint did not happen
		if errBack := tp.ledger.Transfer(state.OreToken, state.OreVault, acc.UserOre, marketAuth,
			oreAmount); errBack != nil {
			log.Errorw("Smelt: returning ore after a failed mint", "market", acc.Market,
				"user", acc.User, "ore", oreAmount, "err", errBack)
		}
		return nil, tracerr.Wrap(err)
	}
	if err := state.UpdateOnSuccessfulSmelt(ingotAmount, oreAmount); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if err := l.commit(); err != nil {
		return nil, tracerr.Wrap(err)
	}
	log.Debugw("Smelt succeeded", "market", acc.Market, "user", acc.User, "ore", oreAmount,
		"coal", coalAmount, "ingot", ingotAmount)
	return []common.Event{common.SmeltingSuccessful{
		Market:      acc.Market,
		User:        acc.User,
		OreAmount:   oreAmount,
		CoalAmount:  coalAmount,
		IngotAmount: ingotAmount,
	}}, nil
}

// Unsmelt burns ingot of the user and returns the ore locked for it minus
// the unsmelt fee, which stays in the vault
func (tp *TxProcessor) Unsmelt(signers auth.Signers, acc UnsmeltAccounts,
	ingotAmount uint64) ([]common.Event, error) {
	state, err := tp.loadMarket(acc.Market)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if !signers.Has(acc.User) {
		return nil, tracerr.Wrap(common.ErrMissingRequiredSignature)
	}
	if state.IsProcessing {
		return nil, tracerr.Wrap(common.ErrReentrancyDetected)
	}
	if err := checkAmount(ingotAmount); err != nil {
		return nil, tracerr.Wrap(err)
	}
	userIngot, err := tp.ledger.TokenAccount(acc.UserIngot)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if userIngot.Mint != state.IngotToken {
		return nil, tracerr.Wrap(common.ErrTokenMismatch)
	}
	if userIngot.Amount < ingotAmount {
		return nil, tracerr.Wrap(common.ErrInsufficientIngot)
	}

	fee, returned := common.CalcUnsmeltReturn(ingotAmount)
	oreReturned, err := common.ConvertDecimals(returned, state.IngotDecimals, state.OreDecimals)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	oreFee, err := common.ConvertDecimals(fee, state.IngotDecimals, state.OreDecimals)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	vault, err := tp.ledger.TokenAccount(state.OreVault)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if vault.Amount < oreReturned {
		return nil, tracerr.Wrap(common.ErrInsufficientProgramOre)
	}
	if err := tp.checkNativeFloor(acc.User); err != nil {
		return nil, tracerr.Wrap(err)
	}
	marketAuth, err := state.SigningAuthority(acc.Market)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}

	l, err := tp.acquire(acc.Market, state)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	defer l.release()

	if err := tp.ledger.Burn(state.IngotToken, acc.UserIngot, acc.User, ingotAmount); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if err := tp.ledger.Transfer(state.OreToken, state.OreVault, acc.UserOre, marketAuth,
		oreReturned); err != nil {
		// restore the burned ingot, the ore did not move
		if errBack := tp.ledger.Mint(state.IngotToken, acc.UserIngot, marketAuth,
			ingotAmount); errBack != nil {
			log.Errorw("Unsmelt: restoring ingot after a failed transfer", "market", acc.Market,
				"user", acc.User, "ingot", ingotAmount, "err", errBack)
		}
		return nil, tracerr.Wrap(err)
	}
	state.UpdateOnUnsmelt(ingotAmount, common.SaturatingAdd(oreReturned, oreFee), oreFee)
	if err := l.commit(); err != nil {
		return nil, tracerr.Wrap(err)
	}
	log.Debugw("Unsmelt", "market", acc.Market, "user", acc.User, "ingot", ingotAmount,
		"ore", oreReturned, "fee", fee)
	return []common.Event{common.UnsmeltingSuccessful{
		Market:      acc.Market,
		User:        acc.User,
		IngotAmount: ingotAmount,
		OreReturned: oreReturned,
		Fee:         fee,
	}}, nil
}

// MintIngot mints ingot to the recipient. Only the authority of the market
// can mint, and the supply cap is checked before calling the ledger.
func (tp *TxProcessor) MintIngot(signers auth.Signers, acc MintAccounts,
	amount uint64) ([]common.Event, error) {
	state, err := tp.loadMarket(acc.Market)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if !signers.Has(acc.Authority) {
		return nil, tracerr.Wrap(common.ErrMissingRequiredSignature)
	}
	if acc.Authority != state.Authority {
		return nil, tracerr.Wrap(common.ErrUnauthorized)
	}
	if state.IsProcessing {
		return nil, tracerr.Wrap(common.ErrReentrancyDetected)
	}
	if err := checkAmount(amount); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if !state.CanMintIngot(amount) {
		return nil, tracerr.Wrap(common.ErrMaxSupplyExceeded)
	}
	marketAuth, err := state.SigningAuthority(acc.Market)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}

	l, err := tp.acquire(acc.Market, state)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	defer l.release()

	if err := tp.ledger.Mint(state.IngotToken, acc.Recipient, marketAuth, amount); err != nil {
		return nil, tracerr.Wrap(err)
	}
	state.TotalIngotsMinted += amount
	if err := l.commit(); err != nil {
		return nil, tracerr.Wrap(err)
	}
	log.Debugw("MintIngot", "market", acc.Market, "recipient", acc.Recipient, "amount", amount)
	return []common.Event{common.IngotMinted{
		Market:    acc.Market,
		Recipient: acc.Recipient,
		Amount:    amount,
	}}, nil
}

// TransferOre moves ore between two accounts of the market's ore token
func (tp *TxProcessor) TransferOre(signers auth.Signers, acc TransferAccounts,
	amount uint64) ([]common.Event, error) {
	return tp.transfer(signers, acc, amount, func(s *common.ConversionState) common.Identity {
		return s.OreToken
	})
}

// TransferIngot moves ingot between two accounts of the market's ingot token
func (tp *TxProcessor) TransferIngot(signers auth.Signers, acc TransferAccounts,
	amount uint64) ([]common.Event, error) {
	return tp.transfer(signers, acc, amount, func(s *common.ConversionState) common.Identity {
		return s.IngotToken
	})
}

func (tp *TxProcessor) transfer(signers auth.Signers, acc TransferAccounts, amount uint64,
	token func(*common.ConversionState) common.Identity) ([]common.Event, error) {
	state, err := tp.loadMarket(acc.Market)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if !signers.Has(acc.Authority) {
		return nil, tracerr.Wrap(common.ErrMissingRequiredSignature)
	}
	if err := checkAmount(amount); err != nil {
		return nil, tracerr.Wrap(err)
	}
	tokenID := token(state)
	if err := tp.ledger.Transfer(tokenID, acc.Source, acc.Destination, acc.Authority,
		amount); err != nil {
		return nil, tracerr.Wrap(err)
	}
	log.Debugw("Transfer", "market", acc.Market, "token", tokenID, "from", acc.Source,
		"to", acc.Destination, "amount", amount)
	return []common.Event{common.TokensTransferred{
		Market:      acc.Market,
		Token:       tokenID,
		Source:      acc.Source,
		Destination: acc.Destination,
		Amount:      amount,
	}}, nil
}

// Initialize creates the ConversionState of a new market. The ingot mint
// and the ore vault must already belong to the derived authority of the
// market.
func (tp *TxProcessor) Initialize(signers auth.Signers, acc InitializeAccounts,
	params common.MarketParams) ([]common.Event, error) {
	if !signers.Has(acc.Authority) {
		return nil, tracerr.Wrap(common.ErrMissingRequiredSignature)
	}
	if _, err := tp.s.GetConversionState(acc.Market); err == nil {
		return nil, tracerr.Wrap(common.ErrAlreadyInitialized)
	} else if tracerr.Unwrap(err) != common.ErrAccountNotFound {
		return nil, tracerr.Wrap(err)
	}
	if err := params.Validate(); err != nil {
		return nil, tracerr.Wrap(err)
	}
	marketAuth, bump, err := common.DeriveAuthority(common.MarketAuthoritySeeds(acc.Market)...)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}

	ore, err := tp.ledger.MintInfo(acc.OreMint)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	ingot, err := tp.ledger.MintInfo(acc.IngotMint)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	coal, err := tp.ledger.MintInfo(acc.CoalMint)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if ingot.Authority != marketAuth {
		return nil, tracerr.Wrap(common.ErrUnauthorized)
	}
	vault, err := tp.ledger.TokenAccount(acc.OreVault)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if vault.Mint != acc.OreMint {
		return nil, tracerr.Wrap(common.ErrTokenMismatch)
	}
	if vault.Owner != marketAuth {
		return nil, tracerr.Wrap(common.ErrUnauthorized)
	}

	state := &common.ConversionState{
		IsInitialized:     true,
		Authority:         acc.Authority,
		AuthorityBump:     bump,
		OreToken:          acc.OreMint,
		IngotToken:        acc.IngotMint,
		CoalToken:         acc.CoalMint,
		OreVault:          acc.OreVault,
		OreDecimals:       ore.Decimals,
		IngotDecimals:     ingot.Decimals,
		CoalDecimals:      coal.Decimals,
		SuccessRate:       params.SuccessRate,
		MinimumCoalAmount: params.MinimumCoalAmount,
		CooldownPeriod:    params.CooldownPeriod,
	}
	if err := tp.s.PutConversionState(acc.Market, state); err != nil {
		return nil, tracerr.Wrap(err)
	}
	log.Infow("Market initialized", "market", acc.Market, "authority", acc.Authority,
		"signingAuthority", marketAuth, "params", params)
	return []common.Event{common.MarketInitialized{
		Market:    acc.Market,
		Authority: acc.Authority,
		Params:    params,
	}}, nil
}

// UpdateParams changes the parameters of a market directly. Once a
// governance is attached only an executed proposal can change them.
func (tp *TxProcessor) UpdateParams(signers auth.Signers, acc UpdateParamsAccounts,
	update common.ParamsUpdate) ([]common.Event, error) {
	state, err := tp.loadMarket(acc.Market)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	if !signers.Has(acc.Authority) {
		return nil, tracerr.Wrap(common.ErrMissingRequiredSignature)
	}
	if acc.Authority != state.Authority {
		return nil, tracerr.Wrap(common.ErrUnauthorized)
	}
	if state.HasGovernance() {
		return nil, tracerr.Wrap(common.ErrGovernanceActive)
	}
	if state.IsProcessing {
		return nil, tracerr.Wrap(common.ErrReentrancyDetected)
	}
	if err := update.Apply(state); err != nil {
		return nil, tracerr.Wrap(err)
	}
	if err := tp.s.PutConversionState(acc.Market, state); err != nil {
		return nil, tracerr.Wrap(err)
	}
	log.Infow("Market params updated", "market", acc.Market, "params", state.Params())
	return []common.Event{common.ParamsUpdated{
		Market: acc.Market,
		Params: state.Params(),
	}}, nil
}
