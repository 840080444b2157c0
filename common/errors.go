package common

import (
	"errors"

	"github.com/hermeznetwork/tracerr"
)

// ErrorCode is the stable numeric identifier of an engine error. It is the
// value reported by the API and stored in the operation history.
type ErrorCode uint32

// Conversion errors
var (
	// ErrMaxSupplyExceeded is used when an operation would push
	// total_ingots_minted above MaxIngotSupply
	ErrMaxSupplyExceeded = errors.New("max supply of ingot exceeded")
	// ErrInsufficientBalance is used by the ledger when a token account
	// does not hold the requested amount
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidInstructionData is used for an unknown tag or a short
	// payload
	ErrInvalidInstructionData = errors.New("invalid instruction data")
	// ErrInvalidAmount is used for an amount of 0 or above MaxAmount
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInsufficientCoal  = errors.New("insufficient coal amount")
	ErrInsufficientIngot = errors.New("insufficient ingot balance")
	// ErrInsufficientProgramOre is used when the ore vault can not cover
	// an unsmelt
	ErrInsufficientProgramOre = errors.New("insufficient ore in vault")
	// ErrInsufficientFunds is used when the caller native balance is not
	// above the minimum balance floor
	ErrInsufficientFunds        = errors.New("insufficient native funds for operation")
	ErrCooldownNotMet           = errors.New("cooldown period not met")
	ErrUnauthorized             = errors.New("unauthorized")
	ErrMissingRequiredSignature = errors.New("missing required signature")
	ErrReentrancyDetected       = errors.New("reentrancy detected")
	ErrInvalidSuccessRate       = errors.New("invalid success rate")
	ErrInvalidCooldownPeriod    = errors.New("invalid cooldown period")
	ErrNotEnoughAccountKeys     = errors.New("not enough account keys")
	ErrAccountNotFound          = errors.New("account not found")
	ErrAlreadyInitialized       = errors.New("account already initialized")
	// ErrTokenMismatch is used when a token account does not belong to the
	// token the operation expects
	ErrTokenMismatch = errors.New("token mismatch")
	// ErrInvalidDerivation is used when a derived identity would be a
	// curve point
	ErrInvalidDerivation = errors.New("derived identity is on the curve")
	ErrOperationReplayed = errors.New("operation already executed")
)

// Governance errors
var (
	ErrUnauthorizedProposer    = errors.New("unauthorized proposer")
	ErrUnauthorizedSigner      = errors.New("unauthorized signer")
	ErrAlreadyApproved         = errors.New("already approved")
	ErrProposalAlreadyExecuted = errors.New("proposal already executed")
	ErrInvalidThreshold        = errors.New("invalid threshold")
	ErrInvalidSignerCount      = errors.New("invalid signer count")
	ErrTooManySigners          = errors.New("too many signers")
	ErrDuplicateSigner         = errors.New("duplicate signer")
	// ErrGovernanceActive is used when the authority tries to change the
	// parameters of a market that has a governance attached
	ErrGovernanceActive = errors.New("market parameters are governed by multisig")
	ErrInvalidProposal  = errors.New("proposal does not belong to governance")
)

// ErrorCodeUnknown is returned by Code for errors outside the engine
// taxonomy
const ErrorCodeUnknown ErrorCode = 0xffffffff

var errorCodes = map[error]ErrorCode{
	ErrMaxSupplyExceeded:        0,
	ErrInsufficientBalance:      1,
	ErrInvalidInstructionData:   2,
	ErrInvalidAmount:            3,
	ErrInsufficientCoal:         4,
	ErrInsufficientIngot:        5,
	ErrInsufficientProgramOre:   6,
	ErrInsufficientFunds:        7,
	ErrCooldownNotMet:           8,
	ErrUnauthorized:             9,
	ErrMissingRequiredSignature: 10,
	ErrReentrancyDetected:       11,
	ErrInvalidSuccessRate:       12,
	ErrInvalidCooldownPeriod:    13,
	ErrNotEnoughAccountKeys:     14,
	ErrAccountNotFound:          15,
	ErrAlreadyInitialized:       16,
	ErrTokenMismatch:            17,
	ErrInvalidDerivation:        18,
	ErrOperationReplayed:        19,

	ErrUnauthorizedProposer:    100,
	ErrUnauthorizedSigner:      101,
	ErrAlreadyApproved:         102,
	ErrProposalAlreadyExecuted: 103,
	ErrInvalidThreshold:        104,
	ErrInvalidSignerCount:      105,
	ErrTooManySigners:          106,
	ErrDuplicateSigner:         107,
	ErrGovernanceActive:        108,
	ErrInvalidProposal:         109,
}

// Code returns the ErrorCode of err, unwrapping tracerr frames
func Code(err error) ErrorCode {
	if c, ok := errorCodes[tracerr.Unwrap(err)]; ok {
		return c
	}
	return ErrorCodeUnknown
}

// IsEngineError reports whether err belongs to the engine taxonomy
func IsEngineError(err error) bool {
	_, ok := errorCodes[tracerr.Unwrap(err)]
	return ok
}
