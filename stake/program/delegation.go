package program

import (
	stakeerr "nhbstake/core/errors"
	"nhbstake/crypto"
	"nhbstake/stake/policy"
	"nhbstake/stake/runtime"
	"nhbstake/stake/state"
	"nhbstake/stake/sysvar"
)

// Delegate transitions Initialized -> Stake(active), or updates an
// existing Stake account: rescinding a scheduled deactivation back to the
// same voter, refreshing credits on a still-active same-voter redelegate,
// or rejecting a redelegate to a different voter with TooSoonToRedelegate
// until the existing delegation has fully deactivated.
func (e *Engine) Delegate(programID crypto.Key32, stake, vote runtime.Account, clock sysvar.Clock, signers policy.Signers) error {
	err := e.delegate(programID, stake, vote, clock, signers)
	e.observe("Delegate", err)
	return err
}

func (e *Engine) delegate(programID crypto.Key32, stake, vote runtime.Account, clock sysvar.Clock, signers policy.Signers) error {
	if err := checkOwnedAndWritable(stake, programID); err != nil {
		return err
	}
	s, err := loadState(stake)
	if err != nil {
		return err
	}
	meta := s.MetaOrNil()
	if meta == nil {
		return stakeerr.ErrInvalidAccountData
	}
	if err := policy.AuthorizeStakerOp(*meta, signers); err != nil {
		return err
	}

	if stake.Lamports() < meta.RentExemptReserve {
		return stakeerr.ErrInsufficientFunds
	}
	stakeAmount := stake.Lamports() - meta.RentExemptReserve
	if stakeAmount < e.cfg.MinimumDelegationLamports {
		return stakeerr.ErrInsufficientDelegation
	}

	credits, err := decodeVoteEpochCredits(vote.Data())
	if err != nil {
		return err
	}
	observedCredits := latestCredits(credits)
	voter := vote.Key()

	switch s.Kind {
	case state.KindInitialized:
		delegation := state.Delegation{
			VoterPubkey:       voter,
			Stake:             stakeAmount,
			ActivationEpoch:   clock.Epoch,
			DeactivationEpoch: state.MaxEpoch,
		}
		newStake := state.Stake{Delegation: delegation, CreditsObserved: observedCredits}
		return storeState(stake, state.NewStake(*meta, newStake, 0))

	case state.KindStake:
		existing := s.Stake
		if existing.Delegation.DeactivationEpoch != state.MaxEpoch {
			if existing.Delegation.VoterPubkey != voter {
				return stakeerr.ErrTooSoonToRedelegate
			}
			existing.Delegation.DeactivationEpoch = state.MaxEpoch
			return storeState(stake, state.NewStake(*meta, existing, s.Flags))
		}
		if existing.Delegation.VoterPubkey != voter {
			return stakeerr.ErrTooSoonToRedelegate
		}
		existing.CreditsObserved = observedCredits
		return storeState(stake, state.NewStake(*meta, existing, s.Flags))

	default:
		return stakeerr.ErrInvalidAccountData
	}
}

// Deactivate marks a Stake account's cooldown start.
func (e *Engine) Deactivate(programID crypto.Key32, stake runtime.Account, clock sysvar.Clock, signers policy.Signers) error {
	err := func() error {
		if err := checkOwnedAndWritable(stake, programID); err != nil {
			return err
		}
		s, err := loadState(stake)
		if err != nil {
			return err
		}
		if s.Kind != state.KindStake {
			return stakeerr.ErrInvalidAccountData
		}
		if err := policy.AuthorizeStakerOp(s.Meta, signers); err != nil {
			return err
		}
		if s.Stake.Delegation.DeactivationEpoch != state.MaxEpoch {
			return stakeerr.ErrAlreadyDeactivated
		}
		s.Stake.Delegation.DeactivationEpoch = clock.Epoch
		return storeState(stake, s)
	}()
	e.observe("Deactivate", err)
	return err
}

// DeactivateDelinquent deactivates a stake whose delegated voter has gone
// quiet, once a healthy reference validator's recent voting record proves
// the cluster was otherwise live during that window.
func (e *Engine) DeactivateDelinquent(programID crypto.Key32, stake, delinquentVote, referenceVote runtime.Account, clock sysvar.Clock) error {
	err := e.deactivateDelinquent(programID, stake, delinquentVote, referenceVote, clock)
	e.observe("DeactivateDelinquent", err)
	return err
}

func (e *Engine) deactivateDelinquent(programID crypto.Key32, stake, delinquentVote, referenceVote runtime.Account, clock sysvar.Clock) error {
	if err := checkOwnedAndWritable(stake, programID); err != nil {
		return err
	}
	s, err := loadState(stake)
	if err != nil {
		return err
	}
	if s.Kind != state.KindStake {
		return stakeerr.ErrInvalidAccountData
	}

	n := e.cfg.DelinquentReferenceWindow

	refEntries, err := decodeVoteEpochCredits(referenceVote.Data())
	if err != nil {
		return err
	}
	if !hasConsecutiveRealVotes(refEntries, clock.Epoch, n) {
		return stakeerr.ErrInsufficientReferenceVotes
	}

	delinquentEntries, err := decodeVoteEpochCredits(delinquentVote.Data())
	if err != nil {
		return err
	}
	if !isDelinquentAt(delinquentEntries, clock.Epoch, n) {
		return stakeerr.ErrMinimumDelinquentEpochsForDeactivationNotMet
	}

	if s.Stake.Delegation.VoterPubkey != delinquentVote.Key() {
		return stakeerr.ErrVoteAddressMismatch
	}

	s.Stake.Delegation.DeactivationEpoch = clock.Epoch
	return storeState(stake, s)
}
