package common

import (
	"encoding/binary"
	"math/big"

	ethCrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/hermeznetwork/tracerr"
	"github.com/iden3/go-iden3-crypto/babyjub"
)

// hashToSignLen is the number of bytes of the keccak digest that are kept so
// the message fits in the BabyJubJub scalar field
const hashToSignLen = 31

// OperationSignature is the signature of an Operation by one identity
type OperationSignature struct {
	Signer    Identity              `json:"signer"`
	Signature babyjub.SignatureComp `json:"signature"`
}

// Operation is what a caller submits: an encoded instruction, the
// positional account references it touches and the signatures
// authenticating its callers
type Operation struct {
	Data     []byte     `json:"data"`
	Accounts []Identity `json:"accounts"`
	// Nonce is chosen by the caller to make equal requests distinct
	Nonce      uint64               `json:"nonce"`
	Signatures []OperationSignature `json:"signatures"`
}

// Hash returns keccak256(data_len || data || accounts || nonce), the unique
// identifier of the operation
func (op *Operation) Hash() []byte {
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(op.Data)))
	parts := make([][]byte, 0, len(op.Accounts)+3) //nolint:gomnd
	parts = append(parts, n[:], op.Data)
	for i := range op.Accounts {
		parts = append(parts, op.Accounts[i][:])
	}
	var nonce [8]byte
	binary.LittleEndian.PutUint64(nonce[:], op.Nonce)
	parts = append(parts, nonce[:])
	return ethCrypto.Keccak256(parts...)
}

// HashToSign returns the message that every signer of the operation signs
func (op *Operation) HashToSign() *big.Int {
	return new(big.Int).SetBytes(op.Hash()[:hashToSignLen])
}

// Sign appends the signature of sk over the operation
func (op *Operation) Sign(sk *babyjub.PrivateKey) {
	sig := sk.SignPoseidon(op.HashToSign())
	op.Signatures = append(op.Signatures, OperationSignature{
		Signer:    IdentityFromPublicKey(sk.Public()),
		Signature: sig.Compress(),
	})
}

// VerifySignature checks sig against the operation hash
func (op *Operation) VerifySignature(sig OperationSignature) bool {
	pk, err := sig.Signer.PublicKey()
	if err != nil {
		return false
	}
	s, err := sig.Signature.Decompress()
	if err != nil {
		return false
	}
	return pk.VerifyPoseidon(op.HashToSign(), s)
}

// AccountAt returns the positional account reference i
func (op *Operation) AccountAt(i int) (Identity, error) {
	if i >= len(op.Accounts) {
		return EmptyIdentity, tracerr.Wrap(ErrNotEnoughAccountKeys)
	}
	return op.Accounts[i], nil
}
