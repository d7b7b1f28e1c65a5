// Package merge implements the MergeKind classifier and merge algebra of
// spec.md §4.G (component G): deciding whether two stake accounts are
// compatible for Merge/MoveStake/MoveLamports, and computing the combined
// state when they are.
package merge

import (
	"math/bits"

	stakeerr "nhbstake/core/errors"
	"nhbstake/stake/history"
	"nhbstake/stake/state"
	"nhbstake/stake/sysvar"
)

// Kind classifies a stake account for merge compatibility.
type Kind int

const (
	KindInactive Kind = iota
	KindActivationEpoch
	KindFullyActive
)

// MergeKind is the classified shape of one side of a merge: which fields
// are meaningful depends on Kind, mirroring state.StakeStateV2's own
// tagged-union discipline.
type MergeKind struct {
	Kind     Kind
	Meta     state.Meta
	Lamports uint64      // valid for Inactive: the account's full lamport balance
	Stake    state.Stake // valid for ActivationEpoch, FullyActive
	Flags    state.Flags // valid for Inactive, ActivationEpoch
}

func (m MergeKind) activeDelegation() (state.Delegation, bool) {
	switch m.Kind {
	case KindActivationEpoch, KindFullyActive:
		return m.Stake.Delegation, true
	default:
		return state.Delegation{}, false
	}
}

// Classify determines the MergeKind of a stake account, given its current
// lamport balance, the clock, and the stake-history window. A scheduled
// deactivation still in its window is never mergeable; once it has passed,
// the account is treated as Inactive.
func Classify(s state.StakeStateV2, accountLamports uint64, clock sysvar.Clock, hist sysvar.History, rateCutoffEpoch uint64) (MergeKind, error) {
	switch s.Kind {
	case state.KindInitialized:
		return MergeKind{Kind: KindInactive, Meta: s.Meta, Lamports: accountLamports}, nil

	case state.KindStake:
		meta, stake, flags := s.Meta, s.Stake, s.Flags
		delegated := stake.Delegation.Stake
		actEpoch := stake.Delegation.ActivationEpoch
		deactEpoch := stake.Delegation.DeactivationEpoch

		if deactEpoch != state.MaxEpoch {
			if clock.Epoch <= deactEpoch {
				return MergeKind{}, stakeerr.ErrMergeMismatch
			}
			return MergeKind{Kind: KindInactive, Meta: meta, Lamports: accountLamports, Flags: flags}, nil
		}

		if delegated > 0 && clock.Epoch > actEpoch {
			return MergeKind{Kind: KindFullyActive, Meta: meta, Stake: stake}, nil
		}

		status := history.StakeActivatingAndDeactivating(stake.Delegation, clock.Epoch, hist, rateCutoffEpoch)
		if status.Deactivating > 0 {
			return MergeKind{}, stakeerr.ErrMergeMismatch
		}

		switch {
		case status.Effective == 0 && status.Activating == 0:
			if delegated == 0 {
				return MergeKind{Kind: KindInactive, Meta: meta, Lamports: accountLamports, Flags: flags}, nil
			}
			if clock.Epoch > actEpoch {
				return MergeKind{Kind: KindFullyActive, Meta: meta, Stake: stake}, nil
			}
			return MergeKind{Kind: KindActivationEpoch, Meta: meta, Stake: stake, Flags: flags}, nil

		case status.Effective == 0:
			if delegated > 0 && clock.Epoch > actEpoch {
				return MergeKind{Kind: KindFullyActive, Meta: meta, Stake: stake}, nil
			}
			if status.Activating > 0 {
				return MergeKind{Kind: KindActivationEpoch, Meta: meta, Stake: stake, Flags: flags}, nil
			}
			return MergeKind{}, stakeerr.ErrMergeMismatch

		case status.Activating == 0 && status.Effective == delegated:
			return MergeKind{Kind: KindFullyActive, Meta: meta, Stake: stake}, nil

		default:
			return MergeKind{}, stakeerr.ErrMergeMismatch
		}

	default:
		return MergeKind{}, stakeerr.ErrMergeMismatch
	}
}

// MetasCanMerge checks the two accounts' Meta compatibility: authorities
// must match exactly; lockups may differ only if both are currently
// expired.
func MetasCanMerge(dst, src state.Meta, clock sysvar.Clock) error {
	if dst.Authorized != src.Authorized {
		return stakeerr.ErrMergeMismatch
	}
	if dst.Lockup == src.Lockup {
		return nil
	}
	dstInForce := dst.Lockup.IsInForce(clock.UnixTimestamp, clock.Epoch, nil)
	srcInForce := src.Lockup.IsInForce(clock.UnixTimestamp, clock.Epoch, nil)
	if !dstInForce && !srcInForce {
		return nil
	}
	return stakeerr.ErrMergeMismatch
}

// ActiveDelegationsCanMerge checks that two active delegations target the
// same voter and neither has a deactivation scheduled.
func ActiveDelegationsCanMerge(dst, src state.Delegation) error {
	if dst.VoterPubkey != src.VoterPubkey {
		return stakeerr.ErrMergeMismatch
	}
	if dst.DeactivationEpoch == state.MaxEpoch && src.DeactivationEpoch == state.MaxEpoch {
		return nil
	}
	return stakeerr.ErrMergeMismatch
}

// Merge combines dst (absorbing) with src (absorbed), both already
// classified and already checked with MetasCanMerge. It returns the new
// StakeStateV2 for the destination account, or nil when no state change is
// needed (Inactive+Inactive: the runtime only needs to move lamports).
// Callers must run MetasCanMerge themselves; Merge only re-validates active
// delegation compatibility, since that check depends on which side (if
// either) actually carries one.
func Merge(dst, src MergeKind) (*state.StakeStateV2, error) {
	if dstDel, ok := dst.activeDelegation(); ok {
		if srcDel, ok := src.activeDelegation(); ok {
			if err := ActiveDelegationsCanMerge(dstDel, srcDel); err != nil {
				return nil, err
			}
		}
	}

	switch {
	case dst.Kind == KindInactive && src.Kind == KindInactive:
		return nil, nil

	case dst.Kind == KindInactive && src.Kind == KindActivationEpoch:
		stake := src.Stake
		sum, ok := checkedAdd(stake.Delegation.Stake, dst.Lamports)
		if !ok {
			return nil, stakeerr.ErrArithmeticOverflow
		}
		stake.Delegation.Stake = sum
		result := state.NewStake(dst.Meta, stake, dst.Flags.Union(src.Flags))
		return &result, nil

	case dst.Kind == KindActivationEpoch && src.Kind == KindInactive:
		stake := dst.Stake
		sum, ok := checkedAdd(stake.Delegation.Stake, src.Lamports)
		if !ok {
			return nil, stakeerr.ErrArithmeticOverflow
		}
		stake.Delegation.Stake = sum
		result := state.NewStake(dst.Meta, stake, dst.Flags.Union(src.Flags))
		return &result, nil

	case dst.Kind == KindActivationEpoch && src.Kind == KindActivationEpoch:
		absorbedLamports, ok := checkedAdd(src.Meta.RentExemptReserve, src.Stake.Delegation.Stake)
		if !ok {
			return nil, stakeerr.ErrArithmeticOverflow
		}
		stake := dst.Stake
		if err := mergeStakeAndCreditsObserved(&stake, absorbedLamports, src.Stake.CreditsObserved); err != nil {
			return nil, err
		}
		result := state.NewStake(dst.Meta, stake, dst.Flags.Union(src.Flags))
		return &result, nil

	case dst.Kind == KindFullyActive && src.Kind == KindFullyActive:
		stake := dst.Stake
		if err := mergeStakeAndCreditsObserved(&stake, src.Stake.Delegation.Stake, src.Stake.CreditsObserved); err != nil {
			return nil, err
		}
		result := state.NewStake(dst.Meta, stake, 0)
		return &result, nil

	default:
		return nil, stakeerr.ErrMergeMismatch
	}
}

func checkedAdd(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}

// mergeStakeAndCreditsObserved absorbs absorbedLamports into stake's
// delegated amount and recomputes its credits_observed as the
// lamport-weighted average of the two sides, rounded up, matching the
// native stake program's merge accounting.
func mergeStakeAndCreditsObserved(stake *state.Stake, absorbedLamports, absorbedCredits uint64) error {
	credits, err := stakeWeightedCreditsObserved(stake.Delegation.Stake, stake.CreditsObserved, absorbedLamports, absorbedCredits)
	if err != nil {
		return err
	}
	sum, ok := checkedAdd(stake.Delegation.Stake, absorbedLamports)
	if !ok {
		return stakeerr.ErrArithmeticOverflow
	}
	stake.Delegation.Stake = sum
	stake.CreditsObserved = credits
	return nil
}

// stakeWeightedCreditsObserved computes ceil((credits*stake +
// absorbedCredits*absorbedLamports) / (stake+absorbedLamports)) using
// exact 128-bit intermediate arithmetic via math/bits, since lamport
// amounts can be large enough that a plain uint64 product overflows.
func stakeWeightedCreditsObserved(stake, credits, absorbedLamports, absorbedCredits uint64) (uint64, error) {
	if credits == absorbedCredits {
		return credits, nil
	}
	totalStake, ok := checkedAdd(stake, absorbedLamports)
	if !ok {
		return 0, stakeerr.ErrArithmeticOverflow
	}
	if totalStake == 0 {
		return 0, stakeerr.ErrArithmeticOverflow
	}

	hi1, lo1 := bits.Mul64(credits, stake)
	hi2, lo2 := bits.Mul64(absorbedCredits, absorbedLamports)

	sumLo, carry := bits.Add64(lo1, lo2, 0)
	sumHi, carry := bits.Add64(hi1, hi2, carry)
	if carry != 0 {
		return 0, stakeerr.ErrArithmeticOverflow
	}

	// round up: add (totalStake - 1) before dividing.
	sumLo, carry = bits.Add64(sumLo, totalStake-1, 0)
	sumHi, carry = bits.Add64(sumHi, 0, carry)
	if carry != 0 {
		return 0, stakeerr.ErrArithmeticOverflow
	}

	if sumHi >= totalStake {
		return 0, stakeerr.ErrArithmeticOverflow
	}
	q, _ := bits.Div64(sumHi, sumLo, totalStake)
	return q, nil
}
