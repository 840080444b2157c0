package common

import (
	"encoding/binary"
	"fmt"

	"github.com/hermeznetwork/tracerr"
)

// InstructionTag is the leading byte of an encoded instruction
type InstructionTag uint8

const (
	// TagSmelt payload: ore_amount:u64 [coal_amount:u64]
	TagSmelt InstructionTag = iota
	// TagUnsmelt payload: amount:u64
	TagUnsmelt
	// TagMintIngot payload: amount:u64
	TagMintIngot
	// TagTransferOre payload: amount:u64
	TagTransferOre
	// TagTransferIngot payload: amount:u64
	TagTransferIngot
	// TagInitialize payload: success_rate:u8 minimum_coal:u64 cooldown:i64
	TagInitialize
	// TagUpdateParams payload: optional-fields block
	TagUpdateParams
	// TagInitializeGovernance payload: threshold:u8 n:u8 signers:n*32
	TagInitializeGovernance
	// TagPropose payload: optional-fields block
	TagPropose
	// TagApprove has no payload
	TagApprove
)

var tagNames = map[InstructionTag]string{
	TagSmelt:                "Smelt",
	TagUnsmelt:              "Unsmelt",
	TagMintIngot:            "MintIngot",
	TagTransferOre:          "TransferOre",
	TagTransferIngot:        "TransferIngot",
	TagInitialize:           "Initialize",
	TagUpdateParams:         "UpdateParams",
	TagInitializeGovernance: "InitializeGovernance",
	TagPropose:              "Propose",
	TagApprove:              "Approve",
}

func (t InstructionTag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(%d)", uint8(t))
}

// InstructionTagFromString returns the tag whose name is name
func InstructionTagFromString(name string) (InstructionTag, error) {
	for tag, tagName := range tagNames {
		if tagName == name {
			return tag, nil
		}
	}
	return 0, tracerr.Wrap(fmt.Errorf("unknown instruction %q", name))
}

// Instruction is a decoded operation request. Only the fields of its Tag
// are meaningful.
type Instruction struct {
	Tag InstructionTag
	// Amount is the ore amount of a smelt, or the amount of an unsmelt,
	// mint or transfer
	Amount uint64
	// CoalAmount is the coal burned by a smelt
	CoalAmount uint64
	// Params of an Initialize
	Params MarketParams
	// Update of an UpdateParams or a Propose
	Update ParamsUpdate
	// Threshold and Signers of an InitializeGovernance
	Threshold uint8
	Signers   []Identity
}

// DecodeInstruction parses the encoded instruction b. Any unknown tag, or a
// payload shorter or longer than the tag's encoding, fails with
// ErrInvalidInstructionData.
func DecodeInstruction(b []byte) (*Instruction, error) {
	if len(b) == 0 {
		return nil, tracerr.Wrap(ErrInvalidInstructionData)
	}
	inst := Instruction{Tag: InstructionTag(b[0])}
	r := byteReader{b: b[1:]}
	switch inst.Tag {
	case TagSmelt:
		inst.Amount = r.u64()
		inst.CoalAmount = inst.Amount
		if r.err == nil && len(r.b)-r.pos >= 8 { //nolint:gomnd
			inst.CoalAmount = r.u64()
		}
	case TagUnsmelt, TagMintIngot, TagTransferOre, TagTransferIngot:
		inst.Amount = r.u64()
	case TagInitialize:
		inst.Params.SuccessRate = r.u8()
		inst.Params.MinimumCoalAmount = r.u64()
		inst.Params.CooldownPeriod = int64(r.u64())
	case TagUpdateParams, TagPropose:
		u, n, err := ParamsUpdateFromBytes(r.b)
		if err != nil {
			return nil, tracerr.Wrap(err)
		}
		inst.Update = u
		r.pos += n
	case TagInitializeGovernance:
		inst.Threshold = r.u8()
		n := int(r.u8())
		inst.Signers = make([]Identity, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			inst.Signers = append(inst.Signers, r.identity())
		}
	case TagApprove:
	default:
		return nil, tracerr.Wrap(ErrInvalidInstructionData)
	}
	if r.err != nil {
		return nil, tracerr.Wrap(r.err)
	}
	if r.pos != len(r.b) {
		return nil, tracerr.Wrap(ErrInvalidInstructionData)
	}
	return &inst, nil
}

// Bytes encodes the instruction
func (inst *Instruction) Bytes() ([]byte, error) {
	w := byteWriter{}
	w.u8(uint8(inst.Tag))
	switch inst.Tag {
	case TagSmelt:
		w.u64(inst.Amount)
		w.u64(inst.CoalAmount)
	case TagUnsmelt, TagMintIngot, TagTransferOre, TagTransferIngot:
		w.u64(inst.Amount)
	case TagInitialize:
		w.u8(inst.Params.SuccessRate)
		w.u64(inst.Params.MinimumCoalAmount)
		w.u64(uint64(inst.Params.CooldownPeriod))
	case TagUpdateParams, TagPropose:
		w.b = append(w.b, inst.Update.Bytes()...)
	case TagInitializeGovernance:
		if len(inst.Signers) > 255 { //nolint:gomnd
			return nil, tracerr.Wrap(ErrTooManySigners)
		}
		w.u8(inst.Threshold)
		w.u8(uint8(len(inst.Signers)))
		for _, s := range inst.Signers {
			w.identity(s)
		}
	case TagApprove:
	default:
		return nil, tracerr.Wrap(ErrInvalidInstructionData)
	}
	return w.b, nil
}

// SmeltInstructionData returns the encoded Smelt of oreAmount burning
// coalAmount
func SmeltInstructionData(oreAmount, coalAmount uint64) []byte {
	b := make([]byte, 1+8+8) //nolint:gomnd
	b[0] = byte(TagSmelt)
	binary.LittleEndian.PutUint64(b[1:9], oreAmount)
	binary.LittleEndian.PutUint64(b[9:17], coalAmount)
	return b
}

// AmountInstructionData returns the encoded instruction of an amount-only
// tag
func AmountInstructionData(tag InstructionTag, amount uint64) []byte {
	b := make([]byte, 1+8) //nolint:gomnd
	b[0] = byte(tag)
	binary.LittleEndian.PutUint64(b[1:9], amount)
	return b
}
