package program

import (
	stakeerr "nhbstake/core/errors"
	"nhbstake/crypto"
	"nhbstake/stake/instruction"
	"nhbstake/stake/policy"
	"nhbstake/stake/runtime"
	"nhbstake/stake/state"
	"nhbstake/stake/sysvar"
)

// loadMutableMeta loads the stake account's state and returns a pointer to
// its Meta; only Initialized and Stake accounts carry one.
func loadMutableMeta(acct runtime.Account, programID crypto.Key32) (state.StakeStateV2, *state.Meta, error) {
	if err := checkOwnedAndWritable(acct, programID); err != nil {
		return state.StakeStateV2{}, nil, err
	}
	s, err := loadState(acct)
	if err != nil {
		return state.StakeStateV2{}, nil, err
	}
	meta := s.MetaOrNil()
	if meta == nil {
		return state.StakeStateV2{}, nil, stakeerr.ErrInvalidAccountData
	}
	return s, meta, nil
}

func withUpdatedMeta(s state.StakeStateV2, meta state.Meta) state.StakeStateV2 {
	s.Meta = meta
	return s
}

// Initialize writes Initialized(Meta) over an Uninitialized account of
// exact size holding at least its rent-exempt reserve.
func (e *Engine) Initialize(programID crypto.Key32, stake runtime.Account, rent sysvar.Rent, authorized state.Authorized, lockup state.Lockup) error {
	err := e.initialize(programID, stake, rent, authorized, lockup)
	e.observe("Initialize", err)
	return err
}

// InitializeChecked is Initialize with a zero lockup and a withdrawer
// signature requirement.
func (e *Engine) InitializeChecked(programID crypto.Key32, stake runtime.Account, rent sysvar.Rent, authorized state.Authorized, signers policy.Signers) error {
	err := func() error {
		if !signers.Has(authorized.Withdrawer) {
			return stakeerr.ErrMissingRequiredSignature
		}
		return e.initialize(programID, stake, rent, authorized, state.Lockup{})
	}()
	e.observe("InitializeChecked", err)
	return err
}

func (e *Engine) initialize(programID crypto.Key32, stake runtime.Account, rent sysvar.Rent, authorized state.Authorized, lockup state.Lockup) error {
	if err := checkOwnedAndWritable(stake, programID); err != nil {
		return err
	}
	data := stake.Data()
	if len(data) != state.Size {
		return stakeerr.ErrInvalidAccountData
	}
	current, err := state.Decode(data)
	if err != nil {
		return stakeerr.ErrInvalidAccountData
	}
	if current.Kind != state.KindUninitialized {
		return stakeerr.ErrInvalidAccountData
	}
	reserve := rent.MinimumBalance(uint64(len(data)))
	if stake.Lamports() < reserve {
		return stakeerr.ErrInsufficientFunds
	}
	meta := state.Meta{RentExemptReserve: reserve, Authorized: authorized, Lockup: lockup}
	return storeState(stake, state.NewInitialized(meta))
}

// Authorize rotates meta.authorized.{staker,withdrawer} after the signer
// and lockup checks of spec.md §4.F.
func (e *Engine) Authorize(programID crypto.Key32, stake runtime.Account, newAuthority crypto.Key32, role instruction.Authorize, signers policy.Signers, custodianSigner *crypto.Key32, clock sysvar.Clock) error {
	err := func() error {
		s, meta, err := loadMutableMeta(stake, programID)
		if err != nil {
			return err
		}
		updated, err := policy.AuthorizeUpdate(*meta, newAuthority, role, signers, custodianSigner, clock)
		if err != nil {
			return err
		}
		return storeState(stake, withUpdatedMeta(s, updated))
	}()
	e.observe("Authorize", err)
	return err
}

// AuthorizeChecked is Authorize plus a requirement that newAuthority itself
// sign the transaction.
func (e *Engine) AuthorizeChecked(programID crypto.Key32, stake runtime.Account, newAuthority crypto.Key32, role instruction.Authorize, signers policy.Signers, custodianSigner *crypto.Key32, clock sysvar.Clock) error {
	err := func() error {
		if !signers.Has(newAuthority) {
			return stakeerr.ErrMissingRequiredSignature
		}
		return e.authorizeInner(programID, stake, newAuthority, role, signers, custodianSigner, clock)
	}()
	e.observe("AuthorizeChecked", err)
	return err
}

func (e *Engine) authorizeInner(programID crypto.Key32, stake runtime.Account, newAuthority crypto.Key32, role instruction.Authorize, signers policy.Signers, custodianSigner *crypto.Key32, clock sysvar.Clock) error {
	s, meta, err := loadMutableMeta(stake, programID)
	if err != nil {
		return err
	}
	updated, err := policy.AuthorizeUpdate(*meta, newAuthority, role, signers, custodianSigner, clock)
	if err != nil {
		return err
	}
	return storeState(stake, withUpdatedMeta(s, updated))
}

// AuthorizeWithSeed rotates an authority whose current key was itself
// derived from (baseKey, seed, owner): baseKey must sign, and the
// derivation must reproduce the role's current authority (Staker role
// accepts either current authority, mirroring the non-seed rotation rule).
func (e *Engine) AuthorizeWithSeed(programID crypto.Key32, stake runtime.Account, newAuthority, baseKey, owner crypto.Key32, seed string, role instruction.Authorize, signers policy.Signers, custodianSigner *crypto.Key32, clock sysvar.Clock) error {
	err := e.authorizeWithSeed(programID, stake, newAuthority, baseKey, owner, seed, role, signers, custodianSigner, clock)
	e.observe("AuthorizeWithSeed", err)
	return err
}

// AuthorizeCheckedWithSeed is AuthorizeWithSeed plus a requirement that
// newAuthority sign.
func (e *Engine) AuthorizeCheckedWithSeed(programID crypto.Key32, stake runtime.Account, newAuthority, baseKey, owner crypto.Key32, seed string, role instruction.Authorize, signers policy.Signers, custodianSigner *crypto.Key32, clock sysvar.Clock) error {
	err := func() error {
		if !signers.Has(newAuthority) {
			return stakeerr.ErrMissingRequiredSignature
		}
		return e.authorizeWithSeed(programID, stake, newAuthority, baseKey, owner, seed, role, signers, custodianSigner, clock)
	}()
	e.observe("AuthorizeCheckedWithSeed", err)
	return err
}

func (e *Engine) authorizeWithSeed(programID crypto.Key32, stake runtime.Account, newAuthority, baseKey, owner crypto.Key32, seed string, role instruction.Authorize, signers policy.Signers, custodianSigner *crypto.Key32, clock sysvar.Clock) error {
	s, meta, err := loadMutableMeta(stake, programID)
	if err != nil {
		return err
	}

	switch role {
	case instruction.AuthorizeStaker:
		errStaker := policy.VerifySeedDerivedSigner(meta.Authorized.Staker, baseKey, seed, owner, signers)
		if errStaker != nil {
			if err := policy.VerifySeedDerivedSigner(meta.Authorized.Withdrawer, baseKey, seed, owner, signers); err != nil {
				return errStaker
			}
		}
		meta.Authorized.Staker = newAuthority

	case instruction.AuthorizeWithdrawer:
		if err := policy.VerifySeedDerivedSigner(meta.Authorized.Withdrawer, baseKey, seed, owner, signers); err != nil {
			return err
		}
		if meta.Lockup.IsInForce(clock.UnixTimestamp, clock.Epoch, custodianSigner) {
			return stakeerr.ErrLockupInForce
		}
		meta.Authorized.Withdrawer = newAuthority

	default:
		return stakeerr.ErrInvalidArgument
	}

	return storeState(stake, withUpdatedMeta(s, *meta))
}

// SetLockup applies the optional lockup fields after the custodian/
// withdrawer signer check of spec.md §4.H.
func (e *Engine) SetLockup(programID crypto.Key32, stake runtime.Account, args instruction.LockupArgs, signers policy.Signers, clock sysvar.Clock) error {
	err := func() error {
		s, meta, err := loadMutableMeta(stake, programID)
		if err != nil {
			return err
		}
		if err := policy.AuthorizeSetLockup(*meta, signers, clock); err != nil {
			return err
		}
		applyLockupArgs(meta, args)
		return storeState(stake, withUpdatedMeta(s, *meta))
	}()
	e.observe("SetLockup", err)
	return err
}

// SetLockupChecked is SetLockup with no custodian field in the payload; a
// new custodian may instead be supplied via newCustodian, an additional
// signer account, and only takes effect while the lockup is not in force.
func (e *Engine) SetLockupChecked(programID crypto.Key32, stake runtime.Account, args instruction.LockupArgs, newCustodian *crypto.Key32, signers policy.Signers, clock sysvar.Clock) error {
	err := func() error {
		s, meta, err := loadMutableMeta(stake, programID)
		if err != nil {
			return err
		}
		if err := policy.AuthorizeSetLockup(*meta, signers, clock); err != nil {
			return err
		}
		applyLockupArgs(meta, args)
		if newCustodian != nil && !meta.Lockup.IsInForce(clock.UnixTimestamp, clock.Epoch, nil) {
			meta.Lockup.Custodian = *newCustodian
		}
		return storeState(stake, withUpdatedMeta(s, *meta))
	}()
	e.observe("SetLockupChecked", err)
	return err
}

func applyLockupArgs(meta *state.Meta, args instruction.LockupArgs) {
	if args.UnixTimestamp != nil {
		meta.Lockup.UnixTimestamp = *args.UnixTimestamp
	}
	if args.Epoch != nil {
		meta.Lockup.Epoch = *args.Epoch
	}
	if args.Custodian != nil {
		meta.Lockup.Custodian = *args.Custodian
	}
}
