package program

import (
	"encoding/binary"

	stakeerr "nhbstake/core/errors"
)

// voteEpochCreditEntrySize is the on-account width of one epoch_credits
// entry: {epoch u64, credits u64, prev_credits u64}, per spec.md §4.H.
const voteEpochCreditEntrySize = 24

// voteEpochCredit is one entry of a vote account's epoch_credits history.
type voteEpochCredit struct {
	Epoch    uint64
	Credits  uint64
	Previous uint64
}

// decodeVoteEpochCredits parses the vote account's epoch_credits layout: a
// u32 count followed by that many fixed-width entries, oldest first.
func decodeVoteEpochCredits(data []byte) ([]voteEpochCredit, error) {
	if len(data) < 4 {
		return nil, stakeerr.ErrInvalidAccountData
	}
	count := binary.LittleEndian.Uint32(data[:4])
	entries := make([]voteEpochCredit, 0, count)
	off := 4
	for i := uint32(0); i < count; i++ {
		if off+voteEpochCreditEntrySize > len(data) {
			return nil, stakeerr.ErrInvalidAccountData
		}
		entries = append(entries, voteEpochCredit{
			Epoch:    binary.LittleEndian.Uint64(data[off : off+8]),
			Credits:  binary.LittleEndian.Uint64(data[off+8 : off+16]),
			Previous: binary.LittleEndian.Uint64(data[off+16 : off+24]),
		})
		off += voteEpochCreditEntrySize
	}
	return entries, nil
}

// latestCredits returns the most recent entry's credits value, or 0 for a
// vote account with no history yet.
func latestCredits(entries []voteEpochCredit) uint64 {
	if len(entries) == 0 {
		return 0
	}
	return entries[len(entries)-1].Credits
}

// hasConsecutiveRealVotes reports whether entries contain n consecutive
// epochs, ending at clockEpoch or clockEpoch-1, each with credits > prev
// (a real vote cast that epoch).
func hasConsecutiveRealVotes(entries []voteEpochCredit, clockEpoch, n uint64) bool {
	byEpoch := make(map[uint64]voteEpochCredit, len(entries))
	for _, e := range entries {
		byEpoch[e.Epoch] = e
	}
	endsAt := func(end uint64) bool {
		if end+1 < n {
			return false
		}
		for i := uint64(0); i < n; i++ {
			epoch := end - i
			entry, ok := byEpoch[epoch]
			if !ok || entry.Credits <= entry.Previous {
				return false
			}
		}
		return true
	}
	if clockEpoch > 0 && endsAt(clockEpoch-1) {
		return true
	}
	return endsAt(clockEpoch)
}

// lastRealVoteEpoch returns the most recent epoch with credits > prev, if
// any entry qualifies.
func lastRealVoteEpoch(entries []voteEpochCredit) (uint64, bool) {
	found := false
	var last uint64
	for _, e := range entries {
		if e.Credits > e.Previous && (!found || e.Epoch > last) {
			last = e.Epoch
			found = true
		}
	}
	return last, found
}

// isDelinquentAt reports whether a vote account's most recent real vote is
// at least n epochs stale relative to clockEpoch, or it has never voted.
func isDelinquentAt(entries []voteEpochCredit, clockEpoch, n uint64) bool {
	lastVoted, ok := lastRealVoteEpoch(entries)
	if !ok {
		return true
	}
	if clockEpoch < n {
		return false
	}
	return lastVoted <= clockEpoch-n
}
