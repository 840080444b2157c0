package auth

import (
	"testing"

	"github.com/hermeznetwork/forge-node/common"
	"github.com/iden3/go-iden3-crypto/babyjub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBJJAuthenticator(t *testing.T) {
	sk1 := babyjub.NewRandPrivKey()
	sk2 := babyjub.NewRandPrivKey()
	id1 := common.IdentityFromPublicKey(sk1.Public())
	id2 := common.IdentityFromPublicKey(sk2.Public())

	op := &common.Operation{
		Data:     common.AmountInstructionData(common.TagUnsmelt, 10),
		Accounts: []common.Identity{id1},
		Nonce:    7,
	}
	op.Sign(&sk1)
	op.Sign(&sk2)
	// a signature claimed by id2 but made by sk1 is not accepted
	forged := op.Signatures[0]
	forged.Signer = id2
	op.Signatures[1] = forged

	var a Authenticator = BJJAuthenticator{}
	signers, err := a.Authenticate(op)
	require.NoError(t, err)
	assert.True(t, signers.Has(id1))
	assert.False(t, signers.Has(id2))
	assert.Len(t, signers, 1)
}

func TestStatic(t *testing.T) {
	var id common.Identity
	id[0] = 1
	a := Static{Signers: NewSigners(id)}
	signers, err := a.Authenticate(&common.Operation{})
	require.NoError(t, err)
	assert.True(t, signers.Has(id))
	assert.False(t, signers.Has(common.EmptyIdentity))
}
