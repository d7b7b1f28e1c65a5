package program

import (
	"testing"

	"github.com/stretchr/testify/require"

	stakeerr "nhbstake/core/errors"
	"nhbstake/crypto"
	"nhbstake/stake/instruction"
	"nhbstake/stake/runtime"
	"nhbstake/stake/state"
	"nhbstake/stake/sysvar"
)

func TestInitializeRequiresReserveAndExactSize(t *testing.T) {
	e, programID := testEngine()
	authorized := state.Authorized{Staker: testKey(0x01), Withdrawer: testKey(0x02)}
	stake := newAccount(testKey(0x10), programID, state.Uninitialized(), 100, false)

	err := e.Initialize(programID, stake, testRent(), authorized, state.Lockup{})
	require.ErrorIs(t, err, stakeerr.ErrInsufficientFunds)

	shortAcct := runtime.NewMemAccount(testKey(0x11), programID, false, true, testReserve(), make([]byte, state.Size-1))
	err = e.Initialize(programID, shortAcct, testRent(), authorized, state.Lockup{})
	require.ErrorIs(t, err, stakeerr.ErrInvalidAccountData)

	stake2 := newAccount(testKey(0x10), programID, state.Uninitialized(), testReserve(), false)
	err = e.Initialize(programID, stake2, testRent(), authorized, state.Lockup{})
	require.NoError(t, err)

	got, err := loadState(stake2)
	require.NoError(t, err)
	require.Equal(t, state.KindInitialized, got.Kind)
	require.Equal(t, testReserve(), got.Meta.RentExemptReserve)
}

func TestInitializeCheckedRequiresWithdrawerSignature(t *testing.T) {
	e, programID := testEngine()
	withdrawer := testKey(0x02)
	authorized := state.Authorized{Staker: testKey(0x01), Withdrawer: withdrawer}
	stake := newAccount(testKey(0x10), programID, state.Uninitialized(), testReserve(), false)

	err := e.InitializeChecked(programID, stake, testRent(), authorized, signerSet(testKey(0x01)))
	require.ErrorIs(t, err, stakeerr.ErrMissingRequiredSignature)

	err = e.InitializeChecked(programID, stake, testRent(), authorized, signerSet(withdrawer))
	require.NoError(t, err)

	got, err := loadState(stake)
	require.NoError(t, err)
	require.True(t, got.Meta.Lockup.UnixTimestamp == 0 && got.Meta.Lockup.Epoch == 0)
}

func TestAuthorizeStakerAcceptsEitherCurrentAuthority(t *testing.T) {
	e, programID := testEngine()
	staker := testKey(0x01)
	withdrawer := testKey(0x02)
	newStaker := testKey(0x05)
	meta := state.Meta{RentExemptReserve: 100, Authorized: state.Authorized{Staker: staker, Withdrawer: withdrawer}}
	stake := newAccount(testKey(0x10), programID, state.NewInitialized(meta), 100, false)

	err := e.Authorize(programID, stake, newStaker, instruction.AuthorizeStaker, signerSet(withdrawer), nil, sysvar.Clock{})
	require.NoError(t, err)

	got, err := loadState(stake)
	require.NoError(t, err)
	require.Equal(t, newStaker, got.Meta.Authorized.Staker)
}

func TestAuthorizeWithdrawerBlockedByLockupUnlessCustodianSigns(t *testing.T) {
	e, programID := testEngine()
	staker := testKey(0x01)
	withdrawer := testKey(0x02)
	custodian := testKey(0x03)
	newWithdrawer := testKey(0x06)
	meta := state.Meta{
		RentExemptReserve: 100,
		Authorized:        state.Authorized{Staker: staker, Withdrawer: withdrawer},
		Lockup:            state.Lockup{UnixTimestamp: 1000, Custodian: custodian},
	}
	stake := newAccount(testKey(0x10), programID, state.NewInitialized(meta), 100, false)
	clock := sysvar.Clock{UnixTimestamp: 500}

	err := e.Authorize(programID, stake, newWithdrawer, instruction.AuthorizeWithdrawer, signerSet(withdrawer), nil, clock)
	require.ErrorIs(t, err, stakeerr.ErrLockupInForce)

	err = e.Authorize(programID, stake, newWithdrawer, instruction.AuthorizeWithdrawer, signerSet(withdrawer), &custodian, clock)
	require.NoError(t, err)

	got, err := loadState(stake)
	require.NoError(t, err)
	require.Equal(t, newWithdrawer, got.Meta.Authorized.Withdrawer)
}

func TestAuthorizeCheckedRequiresNewAuthoritySignature(t *testing.T) {
	e, programID := testEngine()
	staker := testKey(0x01)
	withdrawer := testKey(0x02)
	newStaker := testKey(0x05)
	meta := state.Meta{RentExemptReserve: 100, Authorized: state.Authorized{Staker: staker, Withdrawer: withdrawer}}
	stake := newAccount(testKey(0x10), programID, state.NewInitialized(meta), 100, false)

	err := e.AuthorizeChecked(programID, stake, newStaker, instruction.AuthorizeStaker, signerSet(staker), nil, sysvar.Clock{})
	require.ErrorIs(t, err, stakeerr.ErrMissingRequiredSignature)

	err = e.AuthorizeChecked(programID, stake, newStaker, instruction.AuthorizeStaker, signerSet(staker, newStaker), nil, sysvar.Clock{})
	require.NoError(t, err)
}

func TestAuthorizeWithSeedReproducesDerivedAuthority(t *testing.T) {
	e, programID := testEngine()
	base := testKey(0x07)
	owner := testKey(0x08)
	seed := "staker-seed"
	derived, err := crypto.CreateWithSeed(base, seed, owner)
	require.NoError(t, err)

	newStaker := testKey(0x05)
	meta := state.Meta{RentExemptReserve: 100, Authorized: state.Authorized{Staker: derived, Withdrawer: testKey(0x02)}}
	stake := newAccount(testKey(0x10), programID, state.NewInitialized(meta), 100, false)

	err = e.AuthorizeWithSeed(programID, stake, newStaker, base, owner, seed, instruction.AuthorizeStaker, signerSet(base), nil, sysvar.Clock{})
	require.NoError(t, err)

	got, err := loadState(stake)
	require.NoError(t, err)
	require.Equal(t, newStaker, got.Meta.Authorized.Staker)
}

func TestAuthorizeWithSeedWrongSeedFails(t *testing.T) {
	e, programID := testEngine()
	base := testKey(0x07)
	owner := testKey(0x08)
	derived, err := crypto.CreateWithSeed(base, "staker-seed", owner)
	require.NoError(t, err)

	meta := state.Meta{RentExemptReserve: 100, Authorized: state.Authorized{Staker: derived, Withdrawer: testKey(0x02)}}
	stake := newAccount(testKey(0x10), programID, state.NewInitialized(meta), 100, false)

	err = e.AuthorizeWithSeed(programID, stake, testKey(0x05), base, owner, "wrong-seed", instruction.AuthorizeStaker, signerSet(base), nil, sysvar.Clock{})
	require.ErrorIs(t, err, stakeerr.ErrMissingRequiredSignature)
}

func TestSetLockupRequiresCustodianWhileInForceElseWithdrawer(t *testing.T) {
	e, programID := testEngine()
	withdrawer := testKey(0x02)
	custodian := testKey(0x03)
	meta := state.Meta{
		RentExemptReserve: 100,
		Authorized:        state.Authorized{Staker: testKey(0x01), Withdrawer: withdrawer},
		Lockup:            state.Lockup{UnixTimestamp: 1000, Custodian: custodian},
	}
	stake := newAccount(testKey(0x10), programID, state.NewInitialized(meta), 100, false)
	clock := sysvar.Clock{UnixTimestamp: 500}
	newTimestamp := int64(2000)

	err := e.SetLockup(programID, stake, instruction.LockupArgs{UnixTimestamp: &newTimestamp}, signerSet(withdrawer), clock)
	require.ErrorIs(t, err, stakeerr.ErrMissingRequiredSignature)

	err = e.SetLockup(programID, stake, instruction.LockupArgs{UnixTimestamp: &newTimestamp}, signerSet(custodian), clock)
	require.NoError(t, err)

	got, err := loadState(stake)
	require.NoError(t, err)
	require.Equal(t, newTimestamp, got.Meta.Lockup.UnixTimestamp)
}

func TestSetLockupCheckedAppliesNewCustodianOnlyWhenNotInForce(t *testing.T) {
	e, programID := testEngine()
	withdrawer := testKey(0x02)
	custodian := testKey(0x03)
	newCustodian := testKey(0x09)
	meta := state.Meta{
		RentExemptReserve: 100,
		Authorized:        state.Authorized{Staker: testKey(0x01), Withdrawer: withdrawer},
		Lockup:            state.Lockup{UnixTimestamp: 0, Custodian: custodian},
	}
	stake := newAccount(testKey(0x10), programID, state.NewInitialized(meta), 100, false)
	clock := sysvar.Clock{UnixTimestamp: 500}

	err := e.SetLockupChecked(programID, stake, instruction.LockupArgs{}, &newCustodian, signerSet(withdrawer), clock)
	require.NoError(t, err)

	got, err := loadState(stake)
	require.NoError(t, err)
	require.Equal(t, newCustodian, got.Meta.Lockup.Custodian)
}
