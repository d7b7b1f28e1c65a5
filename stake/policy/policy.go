// Package policy implements the authority and lockup rules of spec.md §4.F
// (component F): who may rotate the staker/withdrawer authorities, when a
// custodian signature overrides a lockup, and how seed-derived authorities
// are verified.
package policy

import (
	stakeerr "nhbstake/core/errors"
	"nhbstake/crypto"
	"nhbstake/stake/instruction"
	"nhbstake/stake/state"
	"nhbstake/stake/sysvar"
)

// Signers is the set of keys that signed the enclosing transaction. The
// runtime (out of scope for this repo) builds this from the account list;
// policy only ever reads it.
type Signers map[crypto.Key32]bool

// Has reports whether k signed.
func (s Signers) Has(k crypto.Key32) bool { return s[k] }

func (s Signers) has(k crypto.Key32) bool { return s.Has(k) }

// AuthorizeUpdate applies an Authorize(Checked) instruction: it rotates
// meta's staker or withdrawer authority after checking the signer and
// lockup rules spec.md §4.F requires, and returns the updated Meta.
//
// Staker rotation requires either authority's signature and ignores
// lockup. Withdrawer rotation requires the current withdrawer's signature
// and is blocked while the lockup is in force, unless custodianSigner
// matches the lockup's custodian and signed.
func AuthorizeUpdate(meta state.Meta, newAuthority crypto.Key32, role instruction.Authorize, signers Signers, custodianSigner *crypto.Key32, clock sysvar.Clock) (state.Meta, error) {
	switch role {
	case instruction.AuthorizeStaker:
		if !signers.has(meta.Authorized.Staker) && !signers.has(meta.Authorized.Withdrawer) {
			return meta, stakeerr.ErrMissingRequiredSignature
		}
		meta.Authorized.Staker = newAuthority
		return meta, nil

	case instruction.AuthorizeWithdrawer:
		if !signers.has(meta.Authorized.Withdrawer) {
			return meta, stakeerr.ErrMissingRequiredSignature
		}
		if meta.Lockup.IsInForce(clock.UnixTimestamp, clock.Epoch, custodianSigner) {
			return meta, stakeerr.ErrLockupInForce
		}
		meta.Authorized.Withdrawer = newAuthority
		return meta, nil

	default:
		return meta, stakeerr.ErrInvalidArgument
	}
}

// VerifySeedDerivedSigner authenticates an AuthorizeWithSeed/
// AuthorizeCheckedWithSeed instruction: baseKey must have signed, and
// hashing it with seed and owner via crypto.CreateWithSeed must reproduce
// expectedAuthority exactly.
func VerifySeedDerivedSigner(expectedAuthority, baseKey crypto.Key32, seed string, owner crypto.Key32, signers Signers) error {
	if !signers.has(baseKey) {
		return stakeerr.ErrMissingRequiredSignature
	}
	derived, err := crypto.CreateWithSeed(baseKey, seed, owner)
	if err != nil {
		return stakeerr.ErrInvalidArgument
	}
	if derived != expectedAuthority {
		return stakeerr.ErrMissingRequiredSignature
	}
	return nil
}

// AuthorizeSetLockup checks who may change meta's lockup: the custodian
// while the current lockup is in force, otherwise the withdrawer. The
// custodian's own signature is never itself subject to the lockup it
// controls, so IsInForce is evaluated without a bypass candidate here.
func AuthorizeSetLockup(meta state.Meta, signers Signers, clock sysvar.Clock) error {
	if meta.Lockup.IsInForce(clock.UnixTimestamp, clock.Epoch, nil) {
		if !signers.has(meta.Lockup.Custodian) {
			return stakeerr.ErrMissingRequiredSignature
		}
		return nil
	}
	if !signers.has(meta.Authorized.Withdrawer) {
		return stakeerr.ErrMissingRequiredSignature
	}
	return nil
}

// AuthorizeWithdraw checks the signer required to move lamports out of a
// stake account: the withdrawer, with the lockup enforced the same way as
// AuthorizeUpdate's withdrawer branch.
func AuthorizeWithdraw(meta state.Meta, signers Signers, custodianSigner *crypto.Key32, clock sysvar.Clock) error {
	if !signers.has(meta.Authorized.Withdrawer) {
		return stakeerr.ErrMissingRequiredSignature
	}
	if meta.Lockup.IsInForce(clock.UnixTimestamp, clock.Epoch, custodianSigner) {
		return stakeerr.ErrLockupInForce
	}
	return nil
}

// AuthorizeStakerOp checks the signer required for staker-role operations
// that don't rotate an authority (Delegate, Split, Merge, MoveStake): the
// current staker must sign. Lockup never gates these; only withdrawals and
// withdrawer rotation are lockup-restricted.
func AuthorizeStakerOp(meta state.Meta, signers Signers) error {
	if !signers.has(meta.Authorized.Staker) {
		return stakeerr.ErrMissingRequiredSignature
	}
	return nil
}
