package common

import (
	"database/sql/driver"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/hermeznetwork/tracerr"
	"github.com/iden3/go-iden3-crypto/babyjub"
	"github.com/iden3/go-iden3-crypto/poseidon"
)

// IdentityLen is the length in bytes of an Identity
const IdentityLen = 32

// derivationMarker is appended to the seeds of a derived identity so that
// the preimage space never overlaps with plain keccak hashes of the seeds
var derivationMarker = []byte("ForgeDerivedIdentity")

// Identity addresses every record, token account and signer in the system.
// User identities are compressed BabyJubJub public keys, derived identities
// are 32 byte values that do not decompress to a curve point.
type Identity [IdentityLen]byte

// EmptyIdentity is the zero Identity
var EmptyIdentity Identity

// IdentityFromBytes returns the Identity stored in b
func IdentityFromBytes(b []byte) (Identity, error) {
	var id Identity
	if len(b) != IdentityLen {
		return id, tracerr.Wrap(fmt.Errorf("can not parse Identity, bytes len %d, expected %d",
			len(b), IdentityLen))
	}
	copy(id[:], b)
	return id, nil
}

// HexToIdentity parses a 0x prefixed hex string
func HexToIdentity(s string) (Identity, error) {
	b, err := hexutil.Decode(s)
	if err != nil {
		return EmptyIdentity, tracerr.Wrap(err)
	}
	return IdentityFromBytes(b)
}

// IdentityFromPublicKey returns the Identity of a BabyJubJub public key
func IdentityFromPublicKey(pk *babyjub.PublicKey) Identity {
	return Identity(pk.Compress())
}

// String returns the 0x prefixed hex representation
func (id Identity) String() string {
	return hexutil.Encode(id[:])
}

// Bytes returns a copy of the underlying bytes
func (id Identity) Bytes() []byte {
	b := make([]byte, IdentityLen)
	copy(b, id[:])
	return b
}

// IsZero reports whether id is the EmptyIdentity
func (id Identity) IsZero() bool {
	return id == EmptyIdentity
}

// PublicKey decompresses the identity as a BabyJubJub public key
func (id Identity) PublicKey() (*babyjub.PublicKey, error) {
	comp := babyjub.PublicKeyComp(id)
	pk, err := comp.Decompress()
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return pk, nil
}

// IsOnCurve reports whether id is the compressed form of a valid
// BabyJubJub point, that is, whether a private key can exist for it
func (id Identity) IsOnCurve() bool {
	_, err := id.PublicKey()
	return err == nil
}

// BigInts splits the identity into two field elements (high and low 16
// bytes) so it can be fed to poseidon
func (id Identity) BigInts() [2]*big.Int {
	return [2]*big.Int{
		new(big.Int).SetBytes(id[:16]),
		new(big.Int).SetBytes(id[16:]),
	}
}

// MarshalText implements encoding.TextMarshaler
func (id Identity) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (id *Identity) UnmarshalText(text []byte) error {
	parsed, err := HexToIdentity(string(text))
	if err != nil {
		return tracerr.Wrap(err)
	}
	*id = parsed
	return nil
}

// Scan implements Scanner for database/sql
func (id *Identity) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return tracerr.Wrap(fmt.Errorf("can't scan %T into Identity", src))
	}
	return id.UnmarshalText([]byte(s))
}

// Value implements valuer for database/sql
func (id Identity) Value() (driver.Value, error) {
	return id.String(), nil
}

// CreateDerivedIdentity returns the identity derived from seeds and bump, or
// ErrInvalidDerivation if the resulting value is a curve point
func CreateDerivedIdentity(seeds [][]byte, bump uint8) (Identity, error) {
	preimage := make([][]byte, 0, len(seeds)+2) //nolint:gomnd
	preimage = append(preimage, seeds...)
	preimage = append(preimage, []byte{bump}, derivationMarker)
	id, err := IdentityFromBytes(crypto.Keccak256(preimage...))
	if err != nil {
		return EmptyIdentity, tracerr.Wrap(err)
	}
	if id.IsOnCurve() {
		return EmptyIdentity, tracerr.Wrap(ErrInvalidDerivation)
	}
	return id, nil
}

// DeriveAuthority searches the bump from 255 downwards and returns the first
// derived identity for seeds that is off the curve, together with its bump
func DeriveAuthority(seeds ...[]byte) (Identity, uint8, error) {
	for bump := 255; bump >= 0; bump-- {
		id, err := CreateDerivedIdentity(seeds, uint8(bump))
		if tracerr.Unwrap(err) == ErrInvalidDerivation {
			continue
		} else if err != nil {
			return EmptyIdentity, 0, tracerr.Wrap(err)
		}
		return id, uint8(bump), nil
	}
	return EmptyIdentity, 0, tracerr.Wrap(ErrInvalidDerivation)
}

// MarketAuthoritySeeds returns the seeds of the signing authority of market
func MarketAuthoritySeeds(market Identity) [][]byte {
	return [][]byte{AuthoritySeed, market.Bytes()}
}

// ProposalID returns the identity of the proposal created by governance
// with the given nonce
func ProposalID(governance Identity, nonce uint64) (Identity, error) {
	e := governance.BigInts()
	h, err := poseidon.Hash([]*big.Int{e[0], e[1], new(big.Int).SetUint64(nonce)})
	if err != nil {
		return EmptyIdentity, tracerr.Wrap(err)
	}
	var id Identity
	hb := h.Bytes()
	copy(id[IdentityLen-len(hb):], hb)
	return id, nil
}
