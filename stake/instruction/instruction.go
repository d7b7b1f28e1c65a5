// Package instruction implements the instruction wire contract of spec.md
// §4.B (component B, instruction side): the canonical long-form decoder,
// the compact short-form decoder, and the 18-variant Instruction sum type
// they both produce. The canonical long form is the authoritative interop
// contract per spec.md §6; the short form exists for compatibility only.
package instruction

import "nhbstake/crypto"

// Tag selects one of the 18 instruction variants.
type Tag uint32

const (
	TagInitialize               Tag = 0
	TagAuthorize                Tag = 1
	TagDelegate                 Tag = 2
	TagSplit                    Tag = 3
	TagWithdraw                 Tag = 4
	TagDeactivate               Tag = 5
	TagSetLockup                Tag = 6
	TagMerge                    Tag = 7
	TagAuthorizeWithSeed        Tag = 8
	TagInitializeChecked        Tag = 9
	TagAuthorizeChecked         Tag = 10
	TagAuthorizeCheckedWithSeed Tag = 11
	TagSetLockupChecked         Tag = 12
	TagGetMinimumDelegation     Tag = 13
	TagDeactivateDelinquent     Tag = 14
	TagRedelegate               Tag = 15
	TagMoveStake                Tag = 16
	TagMoveLamports             Tag = 17
)

func (t Tag) String() string {
	switch t {
	case TagInitialize:
		return "Initialize"
	case TagAuthorize:
		return "Authorize"
	case TagDelegate:
		return "Delegate"
	case TagSplit:
		return "Split"
	case TagWithdraw:
		return "Withdraw"
	case TagDeactivate:
		return "Deactivate"
	case TagSetLockup:
		return "SetLockup"
	case TagMerge:
		return "Merge"
	case TagAuthorizeWithSeed:
		return "AuthorizeWithSeed"
	case TagInitializeChecked:
		return "InitializeChecked"
	case TagAuthorizeChecked:
		return "AuthorizeChecked"
	case TagAuthorizeCheckedWithSeed:
		return "AuthorizeCheckedWithSeed"
	case TagSetLockupChecked:
		return "SetLockupChecked"
	case TagGetMinimumDelegation:
		return "GetMinimumDelegation"
	case TagDeactivateDelinquent:
		return "DeactivateDelinquent"
	case TagRedelegate:
		return "Redelegate"
	case TagMoveStake:
		return "MoveStake"
	case TagMoveLamports:
		return "MoveLamports"
	default:
		return "Unknown"
	}
}

// Authorize selects which authority role an Authorize-family instruction
// targets.
type Authorize uint32

const (
	AuthorizeStaker     Authorize = 0
	AuthorizeWithdrawer Authorize = 1
)

// LockupArgs carries the optional SetLockup(Checked) fields. A nil pointer
// means "leave unchanged" per spec.md §4.H ("no monotonicity enforced").
type LockupArgs struct {
	UnixTimestamp *int64
	Epoch         *uint64
	Custodian     *crypto.Key32 // always nil for the Checked variant
}

// Authorized mirrors state.Authorized for the Initialize payload, kept
// separate so this package has no dependency on stake/state.
type Authorized struct {
	Staker     crypto.Key32
	Withdrawer crypto.Key32
}

// Lockup mirrors state.Lockup for the Initialize payload.
type Lockup struct {
	UnixTimestamp int64
	Epoch         uint64
	Custodian     crypto.Key32
}

// Instruction is the decoded instruction payload. Only the fields relevant
// to Tag are populated; it plays the same "one struct, many optional
// fields interpreted by a type tag" role as the teacher's Transaction type.
type Instruction struct {
	Tag Tag

	// Initialize
	Authorized Authorized
	InitLockup Lockup

	// Authorize / AuthorizeChecked / AuthorizeWithSeed / AuthorizeCheckedWithSeed
	NewAuthorized crypto.Key32
	Role          Authorize

	// Split / Withdraw / MoveStake / MoveLamports
	Lamports uint64

	// SetLockup / SetLockupChecked
	LockupArgs LockupArgs

	// AuthorizeWithSeed / AuthorizeCheckedWithSeed
	AuthoritySeed  string
	AuthorityOwner crypto.Key32
}
