package program

import (
	"testing"

	"github.com/stretchr/testify/require"

	stakeerr "nhbstake/core/errors"
	"nhbstake/stake/instruction"
	"nhbstake/stake/state"
	"nhbstake/stake/sysvar"
)

func TestDispatchRejectsWrongProgramID(t *testing.T) {
	e, programID := testEngine()
	_ = programID
	stake := newAccount(testKey(0x10), testKey(0xAA), state.Uninitialized(), 0, false)

	_, err := e.Dispatch(Request{ProgramID: testKey(0xFF), Stake: stake})
	require.ErrorIs(t, err, stakeerr.ErrIncorrectProgramId)
}

func TestDispatchEmptyPayloadRoutesToDeactivateDelinquent(t *testing.T) {
	e, programID := testEngine()
	voter := testKey(0x40)
	meta := state.Meta{RentExemptReserve: 100}
	delegation := state.Delegation{VoterPubkey: voter, Stake: 200, ActivationEpoch: 1, DeactivationEpoch: state.MaxEpoch}
	s := state.NewStake(meta, state.Stake{Delegation: delegation}, 0)
	stake := newAccount(testKey(0x10), programID, s, 300, false)
	referenceVote := healthyReferenceVote(testKey(0x41), 10, 5)
	delinquentVote := voteAccount(voter, []voteEpochCredit{{Epoch: 4, Credits: 10, Previous: 0}})

	_, err := e.Dispatch(Request{
		ProgramID:      programID,
		Payload:        nil,
		Stake:          stake,
		DelinquentVote: delinquentVote,
		ReferenceVote:  referenceVote,
		Clock:          sysvar.Clock{Epoch: 10},
	})
	require.NoError(t, err)

	got, err := loadState(stake)
	require.NoError(t, err)
	require.Equal(t, uint64(10), got.Stake.Delegation.DeactivationEpoch)
}

func TestDispatchCanonicalRoutesDeactivate(t *testing.T) {
	e, programID := testEngine()
	staker := testKey(0x01)
	meta := state.Meta{RentExemptReserve: 100, Authorized: state.Authorized{Staker: staker}}
	delegation := state.Delegation{VoterPubkey: testKey(0x40), Stake: 200, ActivationEpoch: 1, DeactivationEpoch: state.MaxEpoch}
	s := state.NewStake(meta, state.Stake{Delegation: delegation}, 0)
	stake := newAccount(testKey(0x10), programID, s, 300, false)

	payload, err := instruction.EncodeCanonical(instruction.Instruction{Tag: instruction.TagDeactivate})
	require.NoError(t, err)

	_, err = e.Dispatch(Request{
		ProgramID: programID,
		Payload:   payload,
		Stake:     stake,
		Signers:   signerSet(staker),
		Clock:     sysvar.Clock{Epoch: 9},
	})
	require.NoError(t, err)

	got, err := loadState(stake)
	require.NoError(t, err)
	require.Equal(t, uint64(9), got.Stake.Delegation.DeactivationEpoch)
}

func TestDispatchShortFormRoutesDeactivate(t *testing.T) {
	e, programID := testEngine()
	staker := testKey(0x01)
	meta := state.Meta{RentExemptReserve: 100, Authorized: state.Authorized{Staker: staker}}
	delegation := state.Delegation{VoterPubkey: testKey(0x40), Stake: 200, ActivationEpoch: 1, DeactivationEpoch: state.MaxEpoch}
	s := state.NewStake(meta, state.Stake{Delegation: delegation}, 0)
	stake := newAccount(testKey(0x10), programID, s, 300, false)

	payload := []byte{byte(instruction.TagDeactivate)}

	_, err := e.Dispatch(Request{
		ProgramID: programID,
		Payload:   payload,
		Stake:     stake,
		Signers:   signerSet(staker),
		Clock:     sysvar.Clock{Epoch: 9},
	})
	require.NoError(t, err)

	got, err := loadState(stake)
	require.NoError(t, err)
	require.Equal(t, uint64(9), got.Stake.Delegation.DeactivationEpoch)
}

func TestDispatchRejectsDeprecatedRedelegateInBothForms(t *testing.T) {
	e, programID := testEngine()
	stake := newAccount(testKey(0x10), programID, state.Uninitialized(), 0, false)

	canonical, err := instruction.EncodeCanonical(instruction.Instruction{Tag: instruction.TagDelegate})
	require.NoError(t, err)
	canonical[0] = byte(instruction.TagRedelegate)

	_, err = e.Dispatch(Request{ProgramID: programID, Payload: canonical, Stake: stake})
	require.ErrorIs(t, err, stakeerr.ErrInvalidInstructionData)

	_, err = e.Dispatch(Request{ProgramID: programID, Payload: []byte{byte(instruction.TagRedelegate)}, Stake: stake})
	require.ErrorIs(t, err, stakeerr.ErrInvalidInstructionData)
}

func TestDispatchEpochRewardsGateBlocksAllButGetMinimumDelegation(t *testing.T) {
	e, programID := testEngine()
	stake := newAccount(testKey(0x10), programID, state.Uninitialized(), 0, false)
	active := make([]byte, 81)
	active[80] = 1

	payload := []byte{byte(instruction.TagDeactivate)}
	_, err := e.Dispatch(Request{ProgramID: programID, Payload: payload, Stake: stake, EpochRewardsData: active})
	require.ErrorIs(t, err, stakeerr.ErrEpochRewardsActive)

	getMin := []byte{byte(instruction.TagGetMinimumDelegation)}
	result, err := e.Dispatch(Request{ProgramID: programID, Payload: getMin, Stake: stake, EpochRewardsData: active})
	require.NoError(t, err)
	require.Equal(t, e.MinimumDelegation(), leU64(result.ReturnData))
}

func TestDispatchDeterministicAcrossEquivalentPayloads(t *testing.T) {
	e, programID := testEngine()
	staker := testKey(0x01)
	withdrawer := testKey(0x02)
	meta := state.Meta{RentExemptReserve: 100, Authorized: state.Authorized{Staker: staker, Withdrawer: withdrawer}}

	ix := instruction.Instruction{Tag: instruction.TagDeactivate}
	canonical, err := instruction.EncodeCanonical(ix)
	require.NoError(t, err)
	shortForm := []byte{byte(instruction.TagDeactivate)}

	run := func(payload []byte) state.StakeStateV2 {
		delegation := state.Delegation{VoterPubkey: testKey(0x40), Stake: 200, ActivationEpoch: 1, DeactivationEpoch: state.MaxEpoch}
		s := state.NewStake(meta, state.Stake{Delegation: delegation}, 0)
		stake := newAccount(testKey(0x10), programID, s, 300, false)
		_, err := e.Dispatch(Request{ProgramID: programID, Payload: payload, Stake: stake, Signers: signerSet(staker), Clock: sysvar.Clock{Epoch: 9}})
		require.NoError(t, err)
		got, err := loadState(stake)
		require.NoError(t, err)
		return got
	}

	require.Equal(t, run(canonical), run(shortForm))
}
