// Package errors defines the two-layer error taxonomy of spec.md §7: the
// generic, runtime-shared program errors, and the stake-specific errors
// that carry a stable numeric code the runtime surfaces via Custom(code).
package errors

import (
	stderrors "errors"
	"fmt"
)

// Generic program errors, shared with every other program the runtime
// hosts. The runtime (out of scope for this repo) assigns these their own
// numeric discriminants; we only need the typed sentinel so handlers and
// tests can distinguish kinds with errors.Is.
var (
	ErrNotEnoughAccountKeys     = stderrors.New("stake: not enough account keys")
	ErrInvalidAccountData       = stderrors.New("stake: invalid account data")
	ErrInvalidAccountOwner      = stderrors.New("stake: invalid account owner")
	ErrIncorrectProgramId       = stderrors.New("stake: incorrect program id")
	ErrInvalidInstructionData   = stderrors.New("stake: invalid instruction data")
	ErrInvalidArgument          = stderrors.New("stake: invalid argument")
	ErrMissingRequiredSignature = stderrors.New("stake: missing required signature")
	ErrInsufficientFunds        = stderrors.New("stake: insufficient funds")
	ErrArithmeticOverflow       = stderrors.New("stake: arithmetic overflow")
)

// Code is the stable numeric identifier the runtime surfaces for a
// stake-specific failure, wrapped as Custom(code) per spec.md §7.
type Code uint32

const (
	CodeAlreadyDeactivated                           Code = 0x11
	CodeInsufficientDelegation                       Code = 0x12
	CodeVoteAddressMismatch                          Code = 0x13
	CodeMergeMismatch                                Code = 0x14
	CodeLockupInForce                                Code = 0x15
	CodeTooSoonToRedelegate                          Code = 0x18
	CodeInsufficientReferenceVotes                   Code = 0x19
	CodeMinimumDelinquentEpochsForDeactivationNotMet Code = 0x1A
	CodeEpochRewardsActive                           Code = 0x1B
)

// CodedError is a stake-specific error wrapping a stable numeric Code. The
// runtime maps it to Custom(code) on the exit path; handlers and tests can
// still match it with errors.Is against the package-level sentinels below
// because CodedError implements Is, which compares by Code.
type CodedError struct {
	Code Code
	msg  string
}

func (e *CodedError) Error() string {
	return fmt.Sprintf("stake: %s (code=0x%x)", e.msg, uint32(e.Code))
}

// Is lets errors.Is(err, CodeX) work against the sentinel values below,
// since two *CodedError built by separate newCoded calls compare unequal
// by pointer: comparison is by Code, not identity.
func (e *CodedError) Is(target error) bool {
	other, ok := target.(*CodedError)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

func newCoded(code Code, msg string) *CodedError {
	return &CodedError{Code: code, msg: msg}
}

// Sentinel stake-specific errors. Each is a *CodedError so callers can
// either compare the taxonomy Code directly or use errors.Is against these
// package-level values.
var (
	ErrAlreadyDeactivated                           = newCoded(CodeAlreadyDeactivated, "already deactivated")
	ErrInsufficientDelegation                       = newCoded(CodeInsufficientDelegation, "insufficient delegation")
	ErrVoteAddressMismatch                          = newCoded(CodeVoteAddressMismatch, "vote address mismatch")
	ErrMergeMismatch                                = newCoded(CodeMergeMismatch, "merge mismatch")
	ErrLockupInForce                                = newCoded(CodeLockupInForce, "lockup in force")
	ErrTooSoonToRedelegate                          = newCoded(CodeTooSoonToRedelegate, "too soon to redelegate")
	ErrInsufficientReferenceVotes                   = newCoded(CodeInsufficientReferenceVotes, "insufficient reference votes")
	ErrMinimumDelinquentEpochsForDeactivationNotMet = newCoded(CodeMinimumDelinquentEpochsForDeactivationNotMet, "minimum delinquent epochs for deactivation not met")
	ErrEpochRewardsActive                           = newCoded(CodeEpochRewardsActive, "epoch rewards active")
)

// AsCoded reports whether err is (or wraps) a *CodedError, returning its
// numeric Code for the runtime's exit-code mapping.
func AsCoded(err error) (Code, bool) {
	var coded *CodedError
	if stderrors.As(err, &coded) {
		return coded.Code, true
	}
	return 0, false
}
