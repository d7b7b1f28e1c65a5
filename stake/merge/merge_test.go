package merge

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	stakeerr "nhbstake/core/errors"
	"nhbstake/crypto"
	"nhbstake/stake/state"
	"nhbstake/stake/sysvar"
)

func key(b byte) crypto.Key32 {
	return crypto.MustNewKey32(bytes.Repeat([]byte{b}, crypto.KeySize))
}

func TestClassifyInitializedIsInactive(t *testing.T) {
	s := state.NewInitialized(state.Meta{})
	got, err := Classify(s, 500, sysvar.Clock{}, sysvar.History{}, 593)
	require.NoError(t, err)
	require.Equal(t, KindInactive, got.Kind)
	require.Equal(t, uint64(500), got.Lamports)
}

func TestClassifyScheduledDeactivationStillInWindowIsMismatch(t *testing.T) {
	delegation := state.Delegation{Stake: 1000, ActivationEpoch: 0, DeactivationEpoch: 10}
	s := state.NewStake(state.Meta{}, state.Stake{Delegation: delegation}, 0)
	_, err := Classify(s, 1000, sysvar.Clock{Epoch: 5}, sysvar.History{}, 593)
	require.ErrorIs(t, err, stakeerr.ErrMergeMismatch)
}

func TestClassifyPastDeactivationEpochIsInactive(t *testing.T) {
	delegation := state.Delegation{Stake: 1000, ActivationEpoch: 0, DeactivationEpoch: 10}
	s := state.NewStake(state.Meta{}, state.Stake{Delegation: delegation}, 0)
	got, err := Classify(s, 1000, sysvar.Clock{Epoch: 11}, sysvar.History{}, 593)
	require.NoError(t, err)
	require.Equal(t, KindInactive, got.Kind)
}

func TestClassifyPastActivationEpochWithNoDeactivationIsFullyActive(t *testing.T) {
	delegation := state.Delegation{Stake: 1000, ActivationEpoch: 0, DeactivationEpoch: state.MaxEpoch}
	s := state.NewStake(state.Meta{}, state.Stake{Delegation: delegation}, 0)
	got, err := Classify(s, 1000, sysvar.Clock{Epoch: 5}, sysvar.History{}, 593)
	require.NoError(t, err)
	require.Equal(t, KindFullyActive, got.Kind)
}

func TestClassifyAtActivationEpochWithEmptyHistoryIsActivationEpoch(t *testing.T) {
	delegation := state.Delegation{Stake: 1000, ActivationEpoch: 5, DeactivationEpoch: state.MaxEpoch}
	s := state.NewStake(state.Meta{}, state.Stake{Delegation: delegation}, 0)
	got, err := Classify(s, 1000, sysvar.Clock{Epoch: 5}, sysvar.History{}, 593)
	require.NoError(t, err)
	require.Equal(t, KindActivationEpoch, got.Kind)
}

func TestClassifyUndelegatedStakeAccountIsInactive(t *testing.T) {
	delegation := state.Delegation{Stake: 0, ActivationEpoch: state.MaxEpoch, DeactivationEpoch: state.MaxEpoch}
	s := state.NewStake(state.Meta{}, state.Stake{Delegation: delegation}, 0)
	got, err := Classify(s, 1000, sysvar.Clock{Epoch: 5}, sysvar.History{}, 593)
	require.NoError(t, err)
	require.Equal(t, KindInactive, got.Kind)
}

func TestMetasCanMergeRequiresMatchingAuthorities(t *testing.T) {
	dst := state.Meta{Authorized: state.Authorized{Staker: key(1), Withdrawer: key(2)}}
	src := state.Meta{Authorized: state.Authorized{Staker: key(9), Withdrawer: key(2)}}
	err := MetasCanMerge(dst, src, sysvar.Clock{})
	require.ErrorIs(t, err, stakeerr.ErrMergeMismatch)
}

func TestMetasCanMergeAllowsDifferingLockupsWhenBothExpired(t *testing.T) {
	auth := state.Authorized{Staker: key(1), Withdrawer: key(2)}
	dst := state.Meta{Authorized: auth, Lockup: state.Lockup{Epoch: 10}}
	src := state.Meta{Authorized: auth, Lockup: state.Lockup{Epoch: 20}}
	err := MetasCanMerge(dst, src, sysvar.Clock{Epoch: 100})
	require.NoError(t, err)
}

func TestMetasCanMergeRejectsDifferingLockupsWhenOneInForce(t *testing.T) {
	auth := state.Authorized{Staker: key(1), Withdrawer: key(2)}
	dst := state.Meta{Authorized: auth, Lockup: state.Lockup{Epoch: 10}}
	src := state.Meta{Authorized: auth, Lockup: state.Lockup{Epoch: 200}}
	err := MetasCanMerge(dst, src, sysvar.Clock{Epoch: 100})
	require.ErrorIs(t, err, stakeerr.ErrMergeMismatch)
}

func TestActiveDelegationsCanMergeRequiresSameVoterAndNoDeactivation(t *testing.T) {
	dst := state.Delegation{VoterPubkey: key(3), DeactivationEpoch: state.MaxEpoch}
	src := state.Delegation{VoterPubkey: key(3), DeactivationEpoch: state.MaxEpoch}
	require.NoError(t, ActiveDelegationsCanMerge(dst, src))

	src.VoterPubkey = key(4)
	require.ErrorIs(t, ActiveDelegationsCanMerge(dst, src), stakeerr.ErrMergeMismatch)
}

func TestMergeInactiveWithInactiveIsNoOp(t *testing.T) {
	dst := MergeKind{Kind: KindInactive, Lamports: 100}
	src := MergeKind{Kind: KindInactive, Lamports: 200}
	result, err := Merge(dst, src)
	require.NoError(t, err)
	require.Nil(t, result)
}

func TestMergeInactiveIntoActivationEpochAbsorbsLamportsIntoStake(t *testing.T) {
	meta := state.Meta{Authorized: state.Authorized{Staker: key(1)}}
	dst := MergeKind{Kind: KindInactive, Meta: meta, Lamports: 500, Flags: state.FlagMustFullyActivateBeforeDeactivationIsPermitted}
	src := MergeKind{
		Kind: KindActivationEpoch,
		Meta: meta,
		Stake: state.Stake{
			Delegation: state.Delegation{Stake: 1000, VoterPubkey: key(3), DeactivationEpoch: state.MaxEpoch},
		},
	}

	result, err := Merge(dst, src)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Equal(t, uint64(1500), result.Stake.Delegation.Stake)
	require.True(t, result.Flags.Has(state.FlagMustFullyActivateBeforeDeactivationIsPermitted))
}

func TestMergeActivationEpochPlusActivationEpochMismatchedVotersFails(t *testing.T) {
	meta := state.Meta{}
	dst := MergeKind{
		Kind: KindActivationEpoch,
		Meta: meta,
		Stake: state.Stake{
			Delegation: state.Delegation{Stake: 1000, VoterPubkey: key(3), DeactivationEpoch: state.MaxEpoch},
		},
	}
	src := MergeKind{
		Kind: KindActivationEpoch,
		Meta: meta,
		Stake: state.Stake{
			Delegation: state.Delegation{Stake: 500, VoterPubkey: key(9), DeactivationEpoch: state.MaxEpoch},
		},
	}
	_, err := Merge(dst, src)
	require.ErrorIs(t, err, stakeerr.ErrMergeMismatch)
}

func TestMergeActivationEpochPlusActivationEpochAbsorbsRentReserveAndAveragesCredits(t *testing.T) {
	voter := key(3)
	meta := state.Meta{Authorized: state.Authorized{Staker: key(1)}}
	dst := MergeKind{
		Kind: KindActivationEpoch,
		Meta: meta,
		Stake: state.Stake{
			Delegation:      state.Delegation{Stake: 40, VoterPubkey: voter, DeactivationEpoch: state.MaxEpoch},
			CreditsObserved: 10,
		},
	}
	src := MergeKind{
		Kind: KindActivationEpoch,
		Meta: state.Meta{Authorized: meta.Authorized, RentExemptReserve: 10},
		Stake: state.Stake{
			Delegation:      state.Delegation{Stake: 50, VoterPubkey: voter, DeactivationEpoch: state.MaxEpoch},
			CreditsObserved: 20,
		},
	}

	result, err := Merge(dst, src)
	require.NoError(t, err)
	require.NotNil(t, result)
	// src's rent-exempt reserve (10) joins its delegated stake (50) before
	// being absorbed into dst's 40: 40 + (10 + 50) = 100.
	require.Equal(t, uint64(100), result.Stake.Delegation.Stake)
	// weighted = ceil((10*40 + 20*60)/100) = ceil(1600/100) = 16
	require.Equal(t, uint64(16), result.Stake.CreditsObserved)
}

func TestMergeFullyActivePlusFullyActiveAveragesCreditsObservedRoundedUp(t *testing.T) {
	voter := key(3)
	dst := MergeKind{
		Kind: KindFullyActive,
		Stake: state.Stake{
			Delegation:      state.Delegation{Stake: 100, VoterPubkey: voter, DeactivationEpoch: state.MaxEpoch},
			CreditsObserved: 10,
		},
	}
	src := MergeKind{
		Kind: KindFullyActive,
		Stake: state.Stake{
			Delegation:      state.Delegation{Stake: 300, VoterPubkey: voter, DeactivationEpoch: state.MaxEpoch},
			CreditsObserved: 50,
		},
	}

	result, err := Merge(dst, src)
	require.NoError(t, err)
	require.Equal(t, uint64(400), result.Stake.Delegation.Stake)
	// weighted = ceil((10*100 + 50*300)/400) = ceil(16000/400) = 40
	require.Equal(t, uint64(40), result.Stake.CreditsObserved)
	require.Equal(t, state.Flags(0), result.Flags)
}

func TestMergeFullyActivePlusActivationEpochIsMismatch(t *testing.T) {
	voter := key(3)
	dst := MergeKind{Kind: KindFullyActive, Stake: state.Stake{Delegation: state.Delegation{Stake: 100, VoterPubkey: voter, DeactivationEpoch: state.MaxEpoch}}}
	src := MergeKind{Kind: KindActivationEpoch, Stake: state.Stake{Delegation: state.Delegation{Stake: 50, VoterPubkey: voter, DeactivationEpoch: state.MaxEpoch}}}
	_, err := Merge(dst, src)
	require.ErrorIs(t, err, stakeerr.ErrMergeMismatch)
}
