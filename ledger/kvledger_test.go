package ledger

import (
	"io/ioutil"
	"os"
	"path"
	"testing"

	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/db/statedb"
	"github.com/hermeznetwork/tracerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var deleteme []string

func TestMain(m *testing.M) {
	exitVal := m.Run()
	for _, dir := range deleteme {
		if err := os.RemoveAll(dir); err != nil {
			panic(err)
		}
	}
	os.Exit(exitVal)
}

func newTestLedger(t *testing.T) (*KVLedger, *statedb.StateDB) {
	dir, err := ioutil.TempDir("", "tmpledger")
	require.NoError(t, err)
	deleteme = append(deleteme, dir)
	sdb, err := statedb.NewStateDB(statedb.Config{Path: dir, Keep: 8})
	require.NoError(t, err)
	return NewKVLedger(sdb, 890880), sdb
}

func id(b byte) common.Identity {
	var i common.Identity
	i[0] = b
	i[31] = 0xaa
	return i
}

func TestRecordsBytes(t *testing.T) {
	m := &Mint{IsInitialized: true, Authority: id(1), Decimals: 9, Supply: 12345}
	b := m.Bytes()
	m2, err := MintFromBytes(b[:])
	require.NoError(t, err)
	assert.Equal(t, m, m2)

	a := &TokenAccount{IsInitialized: true, Mint: id(1), Owner: id(2), Amount: 99}
	ab := a.Bytes()
	a2, err := TokenAccountFromBytes(ab[:])
	require.NoError(t, err)
	assert.Equal(t, a, a2)

	_, err = TokenAccountFromBytes(b[:])
	assert.Error(t, err)
}

func TestKVLedger(t *testing.T) {
	l, sdb := newTestLedger(t)
	defer sdb.Close()

	token, other := id(1), id(2)
	authority, alice, bob := id(3), id(4), id(5)
	aliceAcc, bobAcc, otherAcc := id(6), id(7), id(8)

	require.NoError(t, l.CreateMint(token, authority, 6))
	assert.Equal(t, common.ErrAlreadyInitialized, tracerr.Unwrap(l.CreateMint(token, authority, 6)))
	require.NoError(t, l.CreateMint(other, authority, 9))
	require.NoError(t, l.CreateTokenAccount(aliceAcc, token, alice))
	require.NoError(t, l.CreateTokenAccount(bobAcc, token, bob))
	require.NoError(t, l.CreateTokenAccount(otherAcc, other, alice))

	// mint
	assert.Equal(t, common.ErrUnauthorized, tracerr.Unwrap(l.Mint(token, aliceAcc, alice, 10)))
	assert.Equal(t, common.ErrTokenMismatch, tracerr.Unwrap(l.Mint(token, otherAcc, authority, 10)))
	require.NoError(t, l.Mint(token, aliceAcc, authority, 1000))

	// transfer
	assert.Equal(t, common.ErrUnauthorized, tracerr.Unwrap(l.Transfer(token, aliceAcc, bobAcc, bob, 1)))
	assert.Equal(t, common.ErrInsufficientBalance,
		tracerr.Unwrap(l.Transfer(token, aliceAcc, bobAcc, alice, 1001)))
	assert.Equal(t, common.ErrTokenMismatch, tracerr.Unwrap(l.Transfer(token, aliceAcc, otherAcc, alice, 1)))
	require.NoError(t, l.Transfer(token, aliceAcc, bobAcc, alice, 400))

	// burn
	assert.Equal(t, common.ErrTokenMismatch, tracerr.Unwrap(l.Burn(other, aliceAcc, alice, 1)))
	assert.Equal(t, common.ErrInsufficientBalance, tracerr.Unwrap(l.Burn(token, bobAcc, bob, 401)))
	require.NoError(t, l.Burn(token, bobAcc, bob, 100))

	a, err := l.TokenAccount(aliceAcc)
	require.NoError(t, err)
	assert.Equal(t, uint64(600), a.Amount)
	b, err := l.TokenAccount(bobAcc)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), b.Amount)
	m, err := l.MintInfo(token)
	require.NoError(t, err)
	assert.Equal(t, uint64(900), m.Supply)
	assert.Equal(t, uint8(6), m.Decimals)

	_, err = l.TokenAccount(id(99))
	assert.Equal(t, common.ErrAccountNotFound, tracerr.Unwrap(err))

	native, err := l.NativeBalance(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), native)
	require.NoError(t, l.SetNativeBalance(alice, 5_000_000))
	native, err = l.NativeBalance(alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000_000), native)
	assert.Equal(t, uint64(890880), l.MinimumBalance())
}

func TestGenesis(t *testing.T) {
	l, sdb := newTestLedger(t)
	defer sdb.Close()

	market := id(10)
	derived, _, err := common.DeriveAuthority(common.MarketAuthoritySeeds(market)...)
	require.NoError(t, err)

	genesisToml := `
[[Mint]]
ID = "` + id(1).String() + `"
Authority = "` + id(3).String() + `"
Decimals = 9

[[Mint]]
ID = "` + id(2).String() + `"
AuthorityMarket = "` + market.String() + `"
Decimals = 9

[[Account]]
ID = "` + id(6).String() + `"
Mint = "` + id(1).String() + `"
Owner = "` + id(4).String() + `"
Amount = 5000

[[Account]]
ID = "` + id(7).String() + `"
Mint = "` + id(1).String() + `"
OwnerMarket = "` + market.String() + `"

[[Native]]
Owner = "` + id(4).String() + `"
Amount = 1000000000
`
	dir, err := ioutil.TempDir("", "tmpgenesis")
	require.NoError(t, err)
	deleteme = append(deleteme, dir)
	genesisPath := path.Join(dir, "genesis.toml")
	require.NoError(t, ioutil.WriteFile(genesisPath, []byte(genesisToml), 0600))

	g, err := LoadGenesis(genesisPath)
	require.NoError(t, err)
	require.Len(t, g.Mint, 2)
	require.NoError(t, l.ApplyGenesis(g))
	// applying twice leaves the balances untouched
	require.NoError(t, l.ApplyGenesis(g))

	m, err := l.MintInfo(id(2))
	require.NoError(t, err)
	assert.Equal(t, derived, m.Authority)
	acc, err := l.TokenAccount(id(6))
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), acc.Amount)
	vault, err := l.TokenAccount(id(7))
	require.NoError(t, err)
	assert.Equal(t, derived, vault.Owner)
	native, err := l.NativeBalance(id(4))
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000_000_000), native)

	// a restart does not refill spent native balances
	require.NoError(t, l.SetNativeBalance(id(4), 7))
	require.NoError(t, l.ApplyGenesis(g))
	native, err = l.NativeBalance(id(4))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), native)
}
