package program

import (
	"bytes"
	"encoding/binary"

	"nhbstake/config"
	"nhbstake/crypto"
	"nhbstake/stake/policy"
	"nhbstake/stake/runtime"
	"nhbstake/stake/state"
	"nhbstake/stake/sysvar"
)

// testRent gives every account (all of them state.Size bytes) an exact
// rent-exempt reserve of one lamport per byte (state.Size lamports) so test
// fixtures can pick lamport amounts without chasing the real cluster's rent
// formula.
func testRent() sysvar.Rent {
	return sysvar.Rent{LamportsPerByteYear: 1, ExemptionThresholdPct: 1, AccountOverheadBytes: 0}
}

func testReserve() uint64 {
	return testRent().MinimumBalance(state.Size)
}

func testKey(b byte) crypto.Key32 {
	return crypto.MustNewKey32(bytes.Repeat([]byte{b}, crypto.KeySize))
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.MinimumDelegationLamports = 100
	return cfg
}

func testEngine() (*Engine, crypto.Key32) {
	programID := testKey(0xEE)
	return NewEngine(programID, testConfig(), nil), programID
}

func newAccount(key, owner crypto.Key32, s state.StakeStateV2, lamports uint64, signer bool) *runtime.MemAccount {
	buf, err := state.Encode(s)
	if err != nil {
		panic(err)
	}
	return runtime.NewMemAccount(key, owner, signer, true, lamports, buf[:])
}

func encodeVoteCredits(entries []voteEpochCredit) []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(len(entries)))
	for _, e := range entries {
		entry := make([]byte, voteEpochCreditEntrySize)
		binary.LittleEndian.PutUint64(entry[0:8], e.Epoch)
		binary.LittleEndian.PutUint64(entry[8:16], e.Credits)
		binary.LittleEndian.PutUint64(entry[16:24], e.Previous)
		buf = append(buf, entry...)
	}
	return buf
}

func signerSet(keys ...crypto.Key32) policy.Signers {
	s := make(policy.Signers, len(keys))
	for _, k := range keys {
		s[k] = true
	}
	return s
}
