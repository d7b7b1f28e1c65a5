package program

import (
	"encoding/binary"

	stakeerr "nhbstake/core/errors"
	"nhbstake/crypto"
	"nhbstake/stake/history"
	"nhbstake/stake/merge"
	"nhbstake/stake/policy"
	"nhbstake/stake/runtime"
	"nhbstake/stake/state"
	"nhbstake/stake/sysvar"
)

// Withdraw moves lamports out of a stake account, down to (but never
// below, except on a full close) the account's reserve plus any still-
// effective delegated stake.
func (e *Engine) Withdraw(programID crypto.Key32, stake, destination runtime.Account, amount uint64, clock sysvar.Clock, hist sysvar.History, signers policy.Signers, custodianSigner *crypto.Key32) error {
	err := e.withdraw(programID, stake, destination, amount, clock, hist, signers, custodianSigner)
	e.observe("Withdraw", err)
	return err
}

func (e *Engine) withdraw(programID crypto.Key32, stake, destination runtime.Account, amount uint64, clock sysvar.Clock, hist sysvar.History, signers policy.Signers, custodianSigner *crypto.Key32) error {
	if stake.Owner() != programID {
		return stakeerr.ErrInvalidAccountOwner
	}
	if !stake.IsWritable() || !destination.IsWritable() {
		return stakeerr.ErrInvalidAccountData
	}
	if amount == 0 {
		return stakeerr.ErrInvalidArgument
	}

	s, err := loadState(stake)
	if err != nil {
		return err
	}

	var floor, effective uint64
	switch s.Kind {
	case state.KindUninitialized:
		if !stake.IsSigner() {
			return stakeerr.ErrMissingRequiredSignature
		}
	case state.KindInitialized:
		if err := policy.AuthorizeWithdraw(s.Meta, signers, custodianSigner, clock); err != nil {
			return err
		}
		floor = s.Meta.RentExemptReserve
	case state.KindStake:
		if err := policy.AuthorizeWithdraw(s.Meta, signers, custodianSigner, clock); err != nil {
			return err
		}
		status := history.StakeActivatingAndDeactivating(s.Stake.Delegation, clock.Epoch, hist, e.cfg.NewWarmupCooldownRateEpoch)
		effective = status.Effective
		floor = s.Meta.RentExemptReserve + effective
	default:
		return stakeerr.ErrInvalidAccountData
	}

	if amount > stake.Lamports() {
		return stakeerr.ErrInsufficientFunds
	}
	remaining := stake.Lamports() - amount
	if remaining == 0 {
		if effective > 0 {
			return stakeerr.ErrInsufficientFunds
		}
	} else if remaining < floor {
		return stakeerr.ErrInsufficientFunds
	}

	if err := moveLamports(stake, destination, amount); err != nil {
		return err
	}
	if remaining == 0 {
		return storeState(stake, state.Uninitialized())
	}
	return nil
}

// Split moves amount lamports (and, for a delegated source, a
// proportional slice of its delegation) from source into an Uninitialized
// destination of the same size.
func (e *Engine) Split(programID crypto.Key32, source, destination runtime.Account, amount uint64, rent sysvar.Rent, signers policy.Signers) error {
	err := e.split(programID, source, destination, amount, rent, signers)
	e.observe("Split", err)
	return err
}

func (e *Engine) split(programID crypto.Key32, source, destination runtime.Account, amount uint64, rent sysvar.Rent, signers policy.Signers) error {
	if source.Owner() != programID {
		return stakeerr.ErrInvalidAccountOwner
	}
	if !source.IsWritable() || !destination.IsWritable() {
		return stakeerr.ErrInvalidAccountData
	}
	if amount == 0 || amount > source.Lamports() {
		return stakeerr.ErrInvalidArgument
	}

	destData := destination.Data()
	if len(destData) != state.Size {
		return stakeerr.ErrInvalidAccountData
	}
	destState, err := state.Decode(destData)
	if err != nil {
		return stakeerr.ErrInvalidAccountData
	}
	if destState.Kind != state.KindUninitialized {
		return stakeerr.ErrInvalidAccountData
	}
	destReserve := rent.MinimumBalance(uint64(len(destData)))

	s, err := loadState(source)
	if err != nil {
		return err
	}

	switch s.Kind {
	case state.KindUninitialized:
		if !source.IsSigner() {
			return stakeerr.ErrMissingRequiredSignature
		}
		if err := moveLamports(source, destination, amount); err != nil {
			return err
		}
		if source.Lamports() == 0 {
			return storeState(source, state.Uninitialized())
		}
		return nil

	case state.KindInitialized:
		if err := policy.AuthorizeStakerOp(s.Meta, signers); err != nil {
			return err
		}
		remaining := source.Lamports() - amount
		if remaining != 0 && remaining < s.Meta.RentExemptReserve {
			return stakeerr.ErrInsufficientFunds
		}
		destMeta := s.Meta
		destMeta.RentExemptReserve = destReserve
		if err := moveLamports(source, destination, amount); err != nil {
			return err
		}
		if err := storeState(destination, state.NewInitialized(destMeta)); err != nil {
			return err
		}
		if source.Lamports() == 0 {
			return storeState(source, state.Uninitialized())
		}
		return nil

	case state.KindStake:
		if err := policy.AuthorizeStakerOp(s.Meta, signers); err != nil {
			return err
		}

		var splitStakeAmount uint64
		remainingBalance := source.Lamports() - amount
		if remainingBalance == 0 {
			if amount < s.Meta.RentExemptReserve {
				return stakeerr.ErrInsufficientFunds
			}
			splitStakeAmount = amount - s.Meta.RentExemptReserve
		} else {
			destShortfall := uint64(0)
			if destReserve > destination.Lamports() {
				destShortfall = destReserve - destination.Lamports()
			}
			if amount < destShortfall {
				return stakeerr.ErrInsufficientFunds
			}
			splitStakeAmount = amount - destShortfall
			if splitStakeAmount > s.Stake.Delegation.Stake {
				return stakeerr.ErrInsufficientFunds
			}
			if s.Stake.Delegation.Stake-splitStakeAmount < e.cfg.MinimumDelegationLamports {
				return stakeerr.ErrInsufficientDelegation
			}
		}
		if splitStakeAmount < e.cfg.MinimumDelegationLamports {
			return stakeerr.ErrInsufficientDelegation
		}
		if splitStakeAmount > s.Stake.Delegation.Stake {
			return stakeerr.ErrInsufficientFunds
		}

		destDelegation := s.Stake.Delegation
		destDelegation.Stake = splitStakeAmount
		destStakeValue := state.Stake{Delegation: destDelegation, CreditsObserved: s.Stake.CreditsObserved}
		destMeta := s.Meta
		destMeta.RentExemptReserve = destReserve

		srcStake := s.Stake
		srcStake.Delegation.Stake -= splitStakeAmount

		if err := moveLamports(source, destination, amount); err != nil {
			return err
		}
		if err := storeState(destination, state.NewStake(destMeta, destStakeValue, s.Flags)); err != nil {
			return err
		}
		if source.Lamports() == 0 {
			return storeState(source, state.Uninitialized())
		}
		s.Stake = srcStake
		return storeState(source, s)

	default:
		return stakeerr.ErrInvalidAccountData
	}
}

// Merge absorbs src into dst per the MergeKind table of spec.md §4.G/§4.H,
// draining all of src's lamports into dst and leaving src Uninitialized.
func (e *Engine) Merge(programID crypto.Key32, dst, src runtime.Account, clock sysvar.Clock, hist sysvar.History, signers policy.Signers) error {
	err := e.merge(programID, dst, src, clock, hist, signers)
	e.observe("Merge", err)
	return err
}

func (e *Engine) merge(programID crypto.Key32, dst, src runtime.Account, clock sysvar.Clock, hist sysvar.History, signers policy.Signers) error {
	if dst.Key() == src.Key() {
		return stakeerr.ErrInvalidArgument
	}
	if err := checkOwnedAndWritable(dst, programID); err != nil {
		return err
	}
	if err := checkOwnedAndWritable(src, programID); err != nil {
		return err
	}

	dstState, err := loadState(dst)
	if err != nil {
		return err
	}
	srcState, err := loadState(src)
	if err != nil {
		return err
	}

	dstMeta := dstState.MetaOrNil()
	if dstMeta == nil {
		return stakeerr.ErrInvalidAccountData
	}
	if err := policy.AuthorizeStakerOp(*dstMeta, signers); err != nil {
		return err
	}
	srcMeta := srcState.MetaOrNil()
	if srcMeta == nil {
		return stakeerr.ErrInvalidAccountData
	}
	if err := merge.MetasCanMerge(*dstMeta, *srcMeta, clock); err != nil {
		return err
	}

	dstClassified, err := e.classify(dstState, dst.Lamports(), clock, hist)
	if err != nil {
		return err
	}
	srcClassified, err := e.classify(srcState, src.Lamports(), clock, hist)
	if err != nil {
		return err
	}

	merged, err := merge.Merge(dstClassified, srcClassified)
	if err != nil {
		return err
	}

	if err := moveLamports(src, dst, src.Lamports()); err != nil {
		return err
	}
	if err := storeState(src, state.Uninitialized()); err != nil {
		return err
	}
	if merged != nil {
		return storeState(dst, *merged)
	}
	return nil
}

// moveContext bundles the shared MoveStake/MoveLamports preflight result:
// both accounts' raw state and their MergeKind classification.
type moveContext struct {
	srcState, dstState           state.StakeStateV2
	srcClassified, dstClassified merge.MergeKind
}

func (e *Engine) movePreflight(programID crypto.Key32, source, destination runtime.Account, amount uint64, clock sysvar.Clock, hist sysvar.History, signers policy.Signers) (moveContext, error) {
	if amount == 0 {
		return moveContext{}, stakeerr.ErrInvalidArgument
	}
	if source.Key() == destination.Key() {
		return moveContext{}, stakeerr.ErrInvalidArgument
	}
	if err := checkOwnedAndWritable(source, programID); err != nil {
		return moveContext{}, err
	}
	if err := checkOwnedAndWritable(destination, programID); err != nil {
		return moveContext{}, err
	}

	srcState, err := loadState(source)
	if err != nil {
		return moveContext{}, err
	}
	dstState, err := loadState(destination)
	if err != nil {
		return moveContext{}, err
	}

	srcMeta := srcState.MetaOrNil()
	if srcMeta == nil {
		return moveContext{}, stakeerr.ErrInvalidAccountData
	}
	if err := policy.AuthorizeStakerOp(*srcMeta, signers); err != nil {
		return moveContext{}, err
	}
	dstMeta := dstState.MetaOrNil()
	if dstMeta == nil {
		return moveContext{}, stakeerr.ErrInvalidAccountData
	}
	if err := merge.MetasCanMerge(*dstMeta, *srcMeta, clock); err != nil {
		return moveContext{}, err
	}

	srcClassified, err := e.classify(srcState, source.Lamports(), clock, hist)
	if err != nil {
		return moveContext{}, err
	}
	dstClassified, err := e.classify(dstState, destination.Lamports(), clock, hist)
	if err != nil {
		return moveContext{}, err
	}

	return moveContext{srcState: srcState, dstState: dstState, srcClassified: srcClassified, dstClassified: dstClassified}, nil
}

// MoveStake moves a slice of an active delegation from source to
// destination: FullyActive -> FullyActive (same voter) tops up an existing
// delegation; FullyActive -> Inactive creates a new one with the same
// voter, activation epoch, and observed credits.
func (e *Engine) MoveStake(programID crypto.Key32, source, destination runtime.Account, amount uint64, clock sysvar.Clock, hist sysvar.History, signers policy.Signers) error {
	err := e.moveStake(programID, source, destination, amount, clock, hist, signers)
	e.observe("MoveStake", err)
	return err
}

func (e *Engine) moveStake(programID crypto.Key32, source, destination runtime.Account, amount uint64, clock sysvar.Clock, hist sysvar.History, signers policy.Signers) error {
	ctx, err := e.movePreflight(programID, source, destination, amount, clock, hist, signers)
	if err != nil {
		return err
	}

	if ctx.srcClassified.Kind != merge.KindFullyActive {
		return stakeerr.ErrMergeMismatch
	}
	if ctx.dstClassified.Kind != merge.KindFullyActive && ctx.dstClassified.Kind != merge.KindInactive {
		return stakeerr.ErrMergeMismatch
	}
	srcDelegation := ctx.srcClassified.Stake.Delegation
	if ctx.dstClassified.Kind == merge.KindFullyActive && ctx.dstClassified.Stake.Delegation.VoterPubkey != srcDelegation.VoterPubkey {
		return stakeerr.ErrMergeMismatch
	}
	if amount > srcDelegation.Stake {
		return stakeerr.ErrInsufficientFunds
	}
	remainingSourceStake := srcDelegation.Stake - amount
	if remainingSourceStake > 0 && remainingSourceStake < e.cfg.MinimumDelegationLamports {
		return stakeerr.ErrInsufficientDelegation
	}

	var destStakeValue state.Stake
	if ctx.dstClassified.Kind == merge.KindFullyActive {
		destStakeValue = ctx.dstClassified.Stake
		destStakeValue.Delegation.Stake += amount
	} else {
		destStakeValue = state.Stake{
			Delegation: state.Delegation{
				VoterPubkey:       srcDelegation.VoterPubkey,
				Stake:             amount,
				ActivationEpoch:   srcDelegation.ActivationEpoch,
				DeactivationEpoch: state.MaxEpoch,
			},
			CreditsObserved: ctx.srcClassified.Stake.CreditsObserved,
		}
	}

	if err := moveLamports(source, destination, amount); err != nil {
		return err
	}
	if err := storeState(destination, state.NewStake(ctx.dstState.Meta, destStakeValue, ctx.dstState.Flags)); err != nil {
		return err
	}

	srcStakeValue := ctx.srcState.Stake
	srcStakeValue.Delegation.Stake = remainingSourceStake
	updatedSrc := ctx.srcState
	updatedSrc.Stake = srcStakeValue
	return storeState(source, updatedSrc)
}

// MoveLamports moves lamports that are neither reserve nor delegated
// between two mergeable accounts.
func (e *Engine) MoveLamports(programID crypto.Key32, source, destination runtime.Account, amount uint64, clock sysvar.Clock, hist sysvar.History, signers policy.Signers) error {
	err := e.moveLamportsOp(programID, source, destination, amount, clock, hist, signers)
	e.observe("MoveLamports", err)
	return err
}

func (e *Engine) moveLamportsOp(programID crypto.Key32, source, destination runtime.Account, amount uint64, clock sysvar.Clock, hist sysvar.History, signers policy.Signers) error {
	ctx, err := e.movePreflight(programID, source, destination, amount, clock, hist, signers)
	if err != nil {
		return err
	}

	budget, err := withdrawableBudget(ctx.srcClassified, source.Lamports())
	if err != nil {
		return err
	}
	if amount > budget {
		return stakeerr.ErrInsufficientFunds
	}
	return moveLamports(source, destination, amount)
}

func withdrawableBudget(k merge.MergeKind, lamports uint64) (uint64, error) {
	switch k.Kind {
	case merge.KindInactive:
		if lamports < k.Meta.RentExemptReserve {
			return 0, stakeerr.ErrInsufficientFunds
		}
		return lamports - k.Meta.RentExemptReserve, nil
	case merge.KindFullyActive:
		floor := k.Meta.RentExemptReserve + k.Stake.Delegation.Stake
		if lamports < floor {
			return 0, stakeerr.ErrInsufficientFunds
		}
		return lamports - floor, nil
	default:
		return 0, stakeerr.ErrMergeMismatch
	}
}

// GetMinimumDelegation writes the configured minimum delegation as 8
// little-endian bytes, the only handler that populates return data.
func (e *Engine) GetMinimumDelegation() []byte {
	e.observe("GetMinimumDelegation", nil)
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, e.cfg.MinimumDelegationLamports)
	return out
}
