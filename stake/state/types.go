// Package state defines the persisted stake account state machine
// (component E of spec.md): the StakeStateV2 sum type and its payload
// types, plus their fixed-layout binary codec (component B, state side).
package state

import "nhbstake/crypto"

// MaxEpoch is the u64::MAX sentinel spec.md uses for a bootstrap
// activation (fully effective from genesis) and "no deactivation scheduled".
const MaxEpoch uint64 = 1<<64 - 1

// Authorized holds the two distinct stake authority roles.
type Authorized struct {
	Staker     crypto.Key32
	Withdrawer crypto.Key32
}

// Lockup restricts withdrawer rotation and withdrawals until both the
// timestamp and epoch thresholds have passed, unless the custodian signs.
type Lockup struct {
	UnixTimestamp int64
	Epoch         uint64
	Custodian     crypto.Key32
}

// IsInForce reports whether the lockup still restricts the operation,
// per spec.md §4.F: a signing custodian always bypasses it; otherwise it is
// in force while either threshold (a nonzero one) hasn't yet passed.
func (l Lockup) IsInForce(clockUnix int64, clockEpoch uint64, custodianSigner *crypto.Key32) bool {
	if custodianSigner != nil && *custodianSigner == l.Custodian {
		return false
	}
	timeInForce := l.UnixTimestamp != 0 && clockUnix < l.UnixTimestamp
	epochInForce := l.Epoch != 0 && clockEpoch < l.Epoch
	return timeInForce || epochInForce
}

// Meta is the authority/lockup/reserve metadata common to Initialized and
// Stake accounts.
type Meta struct {
	RentExemptReserve uint64
	Authorized        Authorized
	Lockup            Lockup
}

// Delegation describes a stake's commitment to a voter account.
type Delegation struct {
	VoterPubkey        crypto.Key32
	Stake              uint64
	ActivationEpoch    uint64
	DeactivationEpoch  uint64
	WarmupCooldownRate float64
}

// IsBootstrap reports whether this delegation was activated at genesis and
// is therefore immediately and fully effective.
func (d Delegation) IsBootstrap() bool {
	return d.ActivationEpoch == MaxEpoch
}

// Stake pairs a Delegation with the vote credits observed at last update.
type Stake struct {
	Delegation      Delegation
	CreditsObserved uint64
}

// Flags is the StakeFlags bitflag set, preserved on merge via set union.
type Flags uint8

const (
	// FlagMustFullyActivateBeforeDeactivationIsPermitted mirrors the
	// native stake program's one defined flag bit.
	FlagMustFullyActivateBeforeDeactivationIsPermitted Flags = 1 << 0
)

// Union returns the bitwise union of two flag sets, the merge combination
// rule spec.md §3 "Invariants" and §4.H's Merge table both require.
func (f Flags) Union(other Flags) Flags {
	return f | other
}

// Has reports whether a flag bit is set.
func (f Flags) Has(bit Flags) bool {
	return f&bit != 0
}

// Kind tags which StakeStateV2 variant an account holds.
type Kind uint32

const (
	KindUninitialized Kind = 0
	KindInitialized   Kind = 1
	KindStake         Kind = 2
	KindRewardsPool   Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindUninitialized:
		return "Uninitialized"
	case KindInitialized:
		return "Initialized"
	case KindStake:
		return "Stake"
	case KindRewardsPool:
		return "RewardsPool"
	default:
		return "Unknown"
	}
}

// StakeStateV2 is the tagged union persisted in every stake account. Only
// the fields relevant to Kind are meaningful; callers should use the
// constructors below rather than building one by hand.
type StakeStateV2 struct {
	Kind  Kind
	Meta  Meta  // valid for Initialized, Stake
	Stake Stake // valid for Stake
	Flags Flags // valid for Stake
}

// Uninitialized constructs the empty variant.
func Uninitialized() StakeStateV2 {
	return StakeStateV2{Kind: KindUninitialized}
}

// NewInitialized constructs the Initialized(meta) variant.
func NewInitialized(meta Meta) StakeStateV2 {
	return StakeStateV2{Kind: KindInitialized, Meta: meta}
}

// NewStake constructs the Stake(meta, stake, flags) variant.
func NewStake(meta Meta, stake Stake, flags Flags) StakeStateV2 {
	return StakeStateV2{Kind: KindStake, Meta: meta, Stake: stake, Flags: flags}
}

// RewardsPool constructs the opaque RewardsPool variant.
func RewardsPool() StakeStateV2 {
	return StakeStateV2{Kind: KindRewardsPool}
}

// MetaOrNil returns the account's Meta for Initialized/Stake, or nil
// otherwise (invariant 1 callers use before reading authority/lockup).
func (s StakeStateV2) MetaOrNil() *Meta {
	switch s.Kind {
	case KindInitialized, KindStake:
		m := s.Meta
		return &m
	default:
		return nil
	}
}
