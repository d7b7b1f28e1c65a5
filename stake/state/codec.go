package state

import (
	"encoding/binary"
	"fmt"
	"math"

	"nhbstake/crypto"
)

const (
	tagSize        = 4
	authorizedSize = 2 * crypto.KeySize
	lockupSize     = 8 + 8 + crypto.KeySize
	metaSize       = 8 + authorizedSize + lockupSize
	delegationSize = crypto.KeySize + 8 + 8 + 8 + 8
	stakeSize      = delegationSize + 8
	flagsSize      = 1
)

// Size is the fixed on-disk length of a stake account, per spec.md §3
// invariant 1: any other length is rejected with InvalidAccountData before
// the codec is even reached.
const Size = tagSize + metaSize + stakeSize + flagsSize

// Encode writes s into a Size-byte buffer using fixed little-endian layout.
// Unused trailing regions (shorter variants) are zero-filled, never
// generated with stray bits, per spec.md §4.E.
func Encode(s StakeStateV2) ([Size]byte, error) {
	var out [Size]byte
	binary.LittleEndian.PutUint32(out[0:4], uint32(s.Kind))

	switch s.Kind {
	case KindUninitialized, KindRewardsPool:
		// no further payload
	case KindInitialized:
		putMeta(out[tagSize:], s.Meta)
	case KindStake:
		off := tagSize
		putMeta(out[off:], s.Meta)
		off += metaSize
		putStake(out[off:], s.Stake)
		off += stakeSize
		out[off] = byte(s.Flags)
	default:
		return out, fmt.Errorf("state: encode: unknown kind %d", s.Kind)
	}
	return out, nil
}

// Decode parses a Size-byte buffer into a StakeStateV2. Any length other
// than Size is InvalidAccountData territory at the caller (account shape
// check); Decode itself only validates the buffer it is handed.
func Decode(data []byte) (StakeStateV2, error) {
	if len(data) != Size {
		return StakeStateV2{}, fmt.Errorf("state: decode: expected %d bytes, got %d", Size, len(data))
	}
	kind := Kind(binary.LittleEndian.Uint32(data[0:4]))
	switch kind {
	case KindUninitialized:
		return Uninitialized(), nil
	case KindRewardsPool:
		return RewardsPool(), nil
	case KindInitialized:
		meta := getMeta(data[tagSize:])
		return NewInitialized(meta), nil
	case KindStake:
		off := tagSize
		meta := getMeta(data[off:])
		off += metaSize
		stk := getStake(data[off:])
		off += stakeSize
		flags := Flags(data[off])
		return NewStake(meta, stk, flags), nil
	default:
		return StakeStateV2{}, fmt.Errorf("state: decode: unknown tag %d", kind)
	}
}

func putMeta(b []byte, m Meta) {
	binary.LittleEndian.PutUint64(b[0:8], m.RentExemptReserve)
	off := 8
	copy(b[off:off+crypto.KeySize], m.Authorized.Staker[:])
	off += crypto.KeySize
	copy(b[off:off+crypto.KeySize], m.Authorized.Withdrawer[:])
	off += crypto.KeySize
	binary.LittleEndian.PutUint64(b[off:off+8], uint64(m.Lockup.UnixTimestamp))
	off += 8
	binary.LittleEndian.PutUint64(b[off:off+8], m.Lockup.Epoch)
	off += 8
	copy(b[off:off+crypto.KeySize], m.Lockup.Custodian[:])
}

func getMeta(b []byte) Meta {
	var m Meta
	m.RentExemptReserve = binary.LittleEndian.Uint64(b[0:8])
	off := 8
	m.Authorized.Staker = crypto.MustNewKey32(b[off : off+crypto.KeySize])
	off += crypto.KeySize
	m.Authorized.Withdrawer = crypto.MustNewKey32(b[off : off+crypto.KeySize])
	off += crypto.KeySize
	m.Lockup.UnixTimestamp = int64(binary.LittleEndian.Uint64(b[off : off+8]))
	off += 8
	m.Lockup.Epoch = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	m.Lockup.Custodian = crypto.MustNewKey32(b[off : off+crypto.KeySize])
	return m
}

func putStake(b []byte, s Stake) {
	off := 0
	copy(b[off:off+crypto.KeySize], s.Delegation.VoterPubkey[:])
	off += crypto.KeySize
	binary.LittleEndian.PutUint64(b[off:off+8], s.Delegation.Stake)
	off += 8
	binary.LittleEndian.PutUint64(b[off:off+8], s.Delegation.ActivationEpoch)
	off += 8
	binary.LittleEndian.PutUint64(b[off:off+8], s.Delegation.DeactivationEpoch)
	off += 8
	binary.LittleEndian.PutUint64(b[off:off+8], math.Float64bits(s.Delegation.WarmupCooldownRate))
	off += 8
	binary.LittleEndian.PutUint64(b[off:off+8], s.CreditsObserved)
}

func getStake(b []byte) Stake {
	var s Stake
	off := 0
	s.Delegation.VoterPubkey = crypto.MustNewKey32(b[off : off+crypto.KeySize])
	off += crypto.KeySize
	s.Delegation.Stake = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	s.Delegation.ActivationEpoch = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	s.Delegation.DeactivationEpoch = binary.LittleEndian.Uint64(b[off : off+8])
	off += 8
	s.Delegation.WarmupCooldownRate = math.Float64frombits(binary.LittleEndian.Uint64(b[off : off+8]))
	off += 8
	s.CreditsObserved = binary.LittleEndian.Uint64(b[off : off+8])
	return s
}
