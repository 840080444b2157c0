// Package auth tells the engine which identities authenticated an
// operation
package auth

import (
	"github.com/hermeznetwork/forge-node/common"
)

// Authenticator returns the set of identities that presented a valid
// authorization proof for op
type Authenticator interface {
	Authenticate(op *common.Operation) (Signers, error)
}

// Signers is the set of authenticated identities of an operation
type Signers map[common.Identity]struct{}

// NewSigners returns a Signers set with ids
func NewSigners(ids ...common.Identity) Signers {
	s := make(Signers, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports whether id authenticated the operation
func (s Signers) Has(id common.Identity) bool {
	_, ok := s[id]
	return ok
}

// BJJAuthenticator verifies the BabyJubJub signatures carried by the
// operation. Invalid signatures are ignored: the identity is simply not
// authenticated.
type BJJAuthenticator struct{}

// Authenticate implements Authenticator
func (BJJAuthenticator) Authenticate(op *common.Operation) (Signers, error) {
	signers := make(Signers, len(op.Signatures))
	for _, sig := range op.Signatures {
		if op.VerifySignature(sig) {
			signers[sig.Signer] = struct{}{}
		}
	}
	return signers, nil
}

// Static authenticates a fixed set of identities for every operation
type Static struct {
	Signers Signers
}

// Authenticate implements Authenticator
func (s Static) Authenticate(*common.Operation) (Signers, error) {
	return s.Signers, nil
}
