// Package crypto provides the fixed-size key type and the SHA-256 seed
// derivation used by seed-derived stake authorities.
package crypto

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

// KeyPrefix is the human-readable prefix used when rendering a Key32 as a
// bech32 string.
type KeyPrefix string

// StakeKeyPrefix is the prefix used for every key surfaced by this program
// (authorities, voters, the program id itself).
const StakeKeyPrefix KeyPrefix = "nhbstake"

// KeySize is the fixed width of every public key this program deals with.
const KeySize = 32

// Key32 is a 32-byte key: a stake authority, voter, custodian, or program id.
type Key32 [KeySize]byte

// ZeroKey is the all-zero key, used as the default "unset" sentinel for
// optional authority fields such as Lockup.Custodian.
var ZeroKey Key32

// NewKey32 builds a Key32 from a slice, rejecting any other length.
func NewKey32(b []byte) (Key32, error) {
	var k Key32
	if len(b) != KeySize {
		return k, fmt.Errorf("crypto: key must be %d bytes, got %d", KeySize, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// MustNewKey32 builds a Key32 and panics on invalid input; used in tests and
// fixture construction where the length is already known to be correct.
func MustNewKey32(b []byte) Key32 {
	k, err := NewKey32(b)
	if err != nil {
		panic(err)
	}
	return k
}

// Bytes returns a defensive copy of the key bytes.
func (k Key32) Bytes() []byte {
	out := make([]byte, KeySize)
	copy(out, k[:])
	return out
}

// IsZero reports whether the key is the all-zero sentinel.
func (k Key32) IsZero() bool {
	return k == ZeroKey
}

// String renders the key as a bech32 string under StakeKeyPrefix, mirroring
// how the teacher's crypto.Address renders 20-byte addresses.
func (k Key32) String() string {
	conv, err := bech32.ConvertBits(k[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(StakeKeyPrefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// DecodeKey32 parses a bech32-encoded Key32 produced by String.
func DecodeKey32(s string) (Key32, error) {
	_, decoded, err := bech32.Decode(s)
	if err != nil {
		return Key32{}, fmt.Errorf("crypto: invalid bech32 key: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Key32{}, fmt.Errorf("crypto: error converting bits: %w", err)
	}
	return NewKey32(conv)
}

// MaxSeedLen is the longest seed string accepted by CreateWithSeed and the
// seed-derived authority checks in stake/policy.
const MaxSeedLen = 32

// CreateWithSeed derives a key deterministically from a base key, an
// arbitrary seed string (at most MaxSeedLen bytes), and an owner key, via
// SHA-256(base || seed || owner). It is the sole cryptographic primitive
// this program performs: no allocation beyond the fixed input buffer, no
// randomness, and an input bounded at 96 bytes (32 + 32 + 32).
func CreateWithSeed(base Key32, seed string, owner Key32) (Key32, error) {
	if len(seed) > MaxSeedLen {
		return Key32{}, fmt.Errorf("crypto: seed length %d exceeds max %d", len(seed), MaxSeedLen)
	}
	var buf [3 * KeySize]byte
	n := copy(buf[:], base[:])
	n += copy(buf[n:], seed)
	n += copy(buf[n:], owner[:])
	return Key32(sha256.Sum256(buf[:n])), nil
}
