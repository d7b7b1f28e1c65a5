// Package program implements the instruction handlers and dispatcher of
// spec.md §4.H/§4.I (components H and I): one method per instruction
// variant, and Dispatch, which decodes a payload and routes it to the
// right one. It follows the same injected-dependency "Engine" shape the
// teacher's native/governance package uses: a small struct holding
// configuration and metrics, with no mutable fields of its own - all
// state lives in the runtime.Account handles passed into each call.
package program

import (
	"nhbstake/config"
	stakeerr "nhbstake/core/errors"
	"nhbstake/crypto"
	"nhbstake/observability/metrics"
	"nhbstake/stake/merge"
	"nhbstake/stake/runtime"
	"nhbstake/stake/state"
	"nhbstake/stake/sysvar"
)

// Engine runs instruction handlers against runtime-provided account
// handles, configured with the operator-tunable constants of config.Config.
type Engine struct {
	programID crypto.Key32
	cfg       config.Config
	metrics   *metrics.StakeMetrics
}

// NewEngine constructs an Engine bound to programID, the key Dispatch
// checks every request against. metrics may be nil to disable
// instrumentation (StakeMetrics's observers are all nil-safe).
func NewEngine(programID crypto.Key32, cfg config.Config, m *metrics.StakeMetrics) *Engine {
	return &Engine{programID: programID, cfg: cfg, metrics: m}
}

// MinimumDelegation returns the domain-defined lower bound on delegated
// stake, the value GetMinimumDelegation returns to callers.
func (e *Engine) MinimumDelegation() uint64 {
	return e.cfg.MinimumDelegationLamports
}

// loadState enforces invariant 1 (exact size) before decoding.
func loadState(acct runtime.Account) (state.StakeStateV2, error) {
	data := acct.Data()
	if len(data) != state.Size {
		return state.StakeStateV2{}, stakeerr.ErrInvalidAccountData
	}
	s, err := state.Decode(data)
	if err != nil {
		return state.StakeStateV2{}, stakeerr.ErrInvalidAccountData
	}
	return s, nil
}

// storeState is the single write-back point for a handler: it is always
// the last mutation on the success path, per spec.md §5's
// write-back-is-the-last-step policy.
func storeState(acct runtime.Account, s state.StakeStateV2) error {
	buf, err := state.Encode(s)
	if err != nil {
		return stakeerr.ErrInvalidAccountData
	}
	acct.SetData(buf[:])
	return nil
}

// checkOwnedAndWritable enforces invariant 2 for any mutating handler.
func checkOwnedAndWritable(acct runtime.Account, programID crypto.Key32) error {
	if acct.Owner() != programID {
		return stakeerr.ErrInvalidAccountOwner
	}
	if !acct.IsWritable() {
		return stakeerr.ErrInvalidAccountData
	}
	return nil
}

// moveLamports transfers amount from src to dst, the last step on every
// handler's success path that touches lamports (spec.md §7: "handlers move
// lamports last on the success path").
func moveLamports(src, dst runtime.Account, amount uint64) error {
	if src.Lamports() < amount {
		return stakeerr.ErrInsufficientFunds
	}
	src.SetLamports(src.Lamports() - amount)
	dst.SetLamports(dst.Lamports() + amount)
	return nil
}

// classify is a small convenience wrapper binding the engine's configured
// rate-cutoff epoch into merge.Classify.
func (e *Engine) classify(s state.StakeStateV2, lamports uint64, clock sysvar.Clock, hist sysvar.History) (merge.MergeKind, error) {
	return merge.Classify(s, lamports, clock, hist, e.cfg.NewWarmupCooldownRateEpoch)
}

func (e *Engine) observe(variant string, err error) {
	if e.metrics == nil {
		return
	}
	if err != nil {
		code, ok := stakeerr.AsCoded(err)
		if ok {
			e.metrics.ObserveError(codeLabel(code))
		} else {
			e.metrics.ObserveError("generic")
		}
		return
	}
	e.metrics.ObserveInstruction(variant)
}

func codeLabel(c stakeerr.Code) string {
	switch c {
	case stakeerr.CodeAlreadyDeactivated:
		return "already_deactivated"
	case stakeerr.CodeInsufficientDelegation:
		return "insufficient_delegation"
	case stakeerr.CodeVoteAddressMismatch:
		return "vote_address_mismatch"
	case stakeerr.CodeMergeMismatch:
		return "merge_mismatch"
	case stakeerr.CodeLockupInForce:
		return "lockup_in_force"
	case stakeerr.CodeTooSoonToRedelegate:
		return "too_soon_to_redelegate"
	case stakeerr.CodeInsufficientReferenceVotes:
		return "insufficient_reference_votes"
	case stakeerr.CodeMinimumDelinquentEpochsForDeactivationNotMet:
		return "minimum_delinquent_epochs_not_met"
	case stakeerr.CodeEpochRewardsActive:
		return "epoch_rewards_active"
	default:
		return "unknown"
	}
}
