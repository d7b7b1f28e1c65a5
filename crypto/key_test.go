package crypto

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKey32RoundTripsThroughString(t *testing.T) {
	var raw [32]byte
	for i := range raw {
		raw[i] = byte(i)
	}
	k := Key32(raw)

	decoded, err := DecodeKey32(k.String())
	require.NoError(t, err)
	require.Equal(t, k, decoded)
}

func TestNewKey32RejectsWrongLength(t *testing.T) {
	_, err := NewKey32(make([]byte, 31))
	require.Error(t, err)
}

func TestCreateWithSeedMatchesExternalDefinition(t *testing.T) {
	base := MustNewKey32(bytes.Repeat([]byte{0x01}, 32))
	owner := MustNewKey32(bytes.Repeat([]byte{0x02}, 32))
	seed := "validator-stake-account"

	got, err := CreateWithSeed(base, seed, owner)
	require.NoError(t, err)

	h := sha256.New()
	h.Write(base[:])
	h.Write([]byte(seed))
	h.Write(owner[:])
	want, err := NewKey32(h.Sum(nil))
	require.NoError(t, err)

	require.Equal(t, want, got)
}

func TestCreateWithSeedRejectsOverlongSeed(t *testing.T) {
	base := MustNewKey32(bytes.Repeat([]byte{0xAA}, 32))
	owner := MustNewKey32(bytes.Repeat([]byte{0xBB}, 32))
	longSeed := string(bytes.Repeat([]byte{'s'}, MaxSeedLen+1))

	_, err := CreateWithSeed(base, longSeed, owner)
	require.Error(t, err)
}

func TestZeroKeyIsZero(t *testing.T) {
	require.True(t, ZeroKey.IsZero())
	nonZero := MustNewKey32(bytes.Repeat([]byte{0x01}, 32))
	require.False(t, nonZero.IsZero())
}
