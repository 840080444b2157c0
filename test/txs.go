package test

import (
	"strconv"

	"github.com/hermeznetwork/forge-node/common"
	"github.com/iden3/go-iden3-crypto/babyjub"
)

// User is a BabyJubJub identity used in tests
type User struct {
	Name string
	BJJ  *babyjub.PrivateKey
	ID   common.Identity
}

// GenerateUsers generates BabyJubJub keys for the given list of names in a
// deterministic way. This means, that for the same given 'names' the keys
// will be always the same.
func GenerateUsers(names []string) map[string]*User {
	users := make(map[string]*User)
	for i := 1; i < len(names)+1; i++ {
		var sk babyjub.PrivateKey
		copy(sk[:], []byte(strconv.Itoa(i))) // only for testing
		users[names[i-1]] = &User{
			Name: names[i-1],
			BJJ:  &sk,
			ID:   common.IdentityFromPublicKey(sk.Public()),
		}
	}
	return users
}

// TokenAccount returns the identity of the account of u for token
func (u *User) TokenAccount(token common.Identity) common.Identity {
	id, _, err := common.DeriveAuthority(u.ID.Bytes(), token.Bytes())
	if err != nil {
		panic(err)
	}
	return id
}

// NewOperation builds an unsigned operation
func NewOperation(data []byte, nonce uint64, accounts ...common.Identity) *common.Operation {
	return &common.Operation{
		Data:     data,
		Accounts: accounts,
		Nonce:    nonce,
	}
}

// SignOperation adds the signature of every user to op
func SignOperation(op *common.Operation, users ...*User) *common.Operation {
	for _, u := range users {
		op.Sign(u.BJJ)
	}
	return op
}
