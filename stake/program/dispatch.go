package program

import (
	"time"

	stakeerr "nhbstake/core/errors"
	"nhbstake/crypto"
	"nhbstake/stake/instruction"
	"nhbstake/stake/policy"
	"nhbstake/stake/runtime"
	"nhbstake/stake/state"
	"nhbstake/stake/sysvar"
)

// Request bundles everything Dispatch needs to route one invocation: the
// raw instruction payload, every account role any of the 18 variants might
// touch, and the signer/sysvar context handlers read. Only the fields
// relevant to the decoded instruction's Tag are consulted; the caller
// (the runtime, out of scope for this repo) is responsible for populating
// the right ones from its own account list before calling Dispatch, which
// is why accounts are named fields here rather than a positional slice.
type Request struct {
	ProgramID crypto.Key32
	Payload   []byte

	Stake          runtime.Account
	Destination    runtime.Account
	Source         runtime.Account
	Vote           runtime.Account
	DelinquentVote runtime.Account
	ReferenceVote  runtime.Account

	// Base is the seed-derivation base signer for AuthorizeWithSeed and
	// AuthorizeCheckedWithSeed.
	Base crypto.Key32

	// NewAuthority is the new authority's own key for the Checked family,
	// which proves its signature via account list membership rather than
	// an instruction-data field.
	NewAuthority crypto.Key32

	// StakerKey and WithdrawerKey supply InitializeChecked's authorities,
	// which (like NewAuthority) arrive as signing accounts, not payload
	// bytes.
	StakerKey     crypto.Key32
	WithdrawerKey crypto.Key32

	Signers         policy.Signers
	CustodianSigner *crypto.Key32
	NewCustodian    *crypto.Key32

	Clock            sysvar.Clock
	Rent             sysvar.Rent
	History          sysvar.History
	EpochRewardsData []byte
}

// Dispatch implements spec.md §4.I: verify the program id, decode the
// payload (empty, short, or canonical), apply the epoch-rewards gate to the
// decoded instruction, and route to the matching Engine method.
func (e *Engine) Dispatch(req Request) (*runtime.Result, error) {
	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.ObserveDispatchSeconds(time.Since(start).Seconds())
		}
	}()

	if req.ProgramID != e.programID {
		return nil, stakeerr.ErrIncorrectProgramId
	}

	ix, err := e.decode(req.Payload)
	if err != nil {
		return nil, err
	}

	if sysvar.EpochRewardsActive(req.EpochRewardsData) && ix.Tag != instruction.TagGetMinimumDelegation {
		return nil, stakeerr.ErrEpochRewardsActive
	}

	return e.route(ix, req)
}

func (e *Engine) decode(payload []byte) (instruction.Instruction, error) {
	switch {
	case len(payload) == 0:
		return instruction.Instruction{Tag: instruction.TagDeactivateDelinquent}, nil
	case len(payload) < 4:
		return instruction.DecodeShortForm(payload, e.cfg.ShortFormCompat)
	default:
		return instruction.DecodeCanonical(payload)
	}
}

func (e *Engine) route(ix instruction.Instruction, req Request) (*runtime.Result, error) {
	switch ix.Tag {
	case instruction.TagInitialize:
		authorized := state.Authorized{Staker: ix.Authorized.Staker, Withdrawer: ix.Authorized.Withdrawer}
		lockup := state.Lockup{UnixTimestamp: ix.InitLockup.UnixTimestamp, Epoch: ix.InitLockup.Epoch, Custodian: ix.InitLockup.Custodian}
		return nil, e.Initialize(e.programID, req.Stake, req.Rent, authorized, lockup)

	case instruction.TagInitializeChecked:
		authorized := state.Authorized{Staker: req.StakerKey, Withdrawer: req.WithdrawerKey}
		return nil, e.InitializeChecked(e.programID, req.Stake, req.Rent, authorized, req.Signers)

	case instruction.TagAuthorize:
		return nil, e.Authorize(e.programID, req.Stake, ix.NewAuthorized, ix.Role, req.Signers, req.CustodianSigner, req.Clock)

	case instruction.TagAuthorizeChecked:
		return nil, e.AuthorizeChecked(e.programID, req.Stake, req.NewAuthority, ix.Role, req.Signers, req.CustodianSigner, req.Clock)

	case instruction.TagAuthorizeWithSeed:
		return nil, e.AuthorizeWithSeed(e.programID, req.Stake, ix.NewAuthorized, req.Base, ix.AuthorityOwner, ix.AuthoritySeed, ix.Role, req.Signers, req.CustodianSigner, req.Clock)

	case instruction.TagAuthorizeCheckedWithSeed:
		return nil, e.AuthorizeCheckedWithSeed(e.programID, req.Stake, req.NewAuthority, req.Base, ix.AuthorityOwner, ix.AuthoritySeed, ix.Role, req.Signers, req.CustodianSigner, req.Clock)

	case instruction.TagSetLockup:
		return nil, e.SetLockup(e.programID, req.Stake, ix.LockupArgs, req.Signers, req.Clock)

	case instruction.TagSetLockupChecked:
		return nil, e.SetLockupChecked(e.programID, req.Stake, ix.LockupArgs, req.NewCustodian, req.Signers, req.Clock)

	case instruction.TagDelegate:
		return nil, e.Delegate(e.programID, req.Stake, req.Vote, req.Clock, req.Signers)

	case instruction.TagDeactivate:
		return nil, e.Deactivate(e.programID, req.Stake, req.Clock, req.Signers)

	case instruction.TagDeactivateDelinquent:
		return nil, e.DeactivateDelinquent(e.programID, req.Stake, req.DelinquentVote, req.ReferenceVote, req.Clock)

	case instruction.TagSplit:
		return nil, e.Split(e.programID, req.Stake, req.Destination, ix.Lamports, req.Rent, req.Signers)

	case instruction.TagWithdraw:
		return nil, e.Withdraw(e.programID, req.Stake, req.Destination, ix.Lamports, req.Clock, req.History, req.Signers, req.CustodianSigner)

	case instruction.TagMerge:
		return nil, e.Merge(e.programID, req.Destination, req.Source, req.Clock, req.History, req.Signers)

	case instruction.TagMoveStake:
		return nil, e.MoveStake(e.programID, req.Source, req.Destination, ix.Lamports, req.Clock, req.History, req.Signers)

	case instruction.TagMoveLamports:
		return nil, e.MoveLamports(e.programID, req.Source, req.Destination, ix.Lamports, req.Clock, req.History, req.Signers)

	case instruction.TagGetMinimumDelegation:
		return &runtime.Result{ReturnData: e.GetMinimumDelegation()}, nil

	default:
		return nil, stakeerr.ErrInvalidInstructionData
	}
}
