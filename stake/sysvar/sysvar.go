// Package sysvar adapts the runtime-provided sysvar bytes this program
// consumes (component C of spec.md): Clock, Rent, the stake-history
// window, and the epoch-rewards active flag. None of these own storage or
// perform I/O - they are pure decoders over byte slices the runtime hands
// in, matching spec.md §1's "we specify only the interfaces consumed".
package sysvar

import "encoding/binary"

// Clock is the subset of the Clock sysvar this program reads.
type Clock struct {
	Epoch         uint64
	UnixTimestamp int64
}

// Rent exposes the single rent computation this program needs.
type Rent struct {
	LamportsPerByteYear   uint64
	ExemptionThresholdPct float64
	AccountOverheadBytes  uint64
}

// DefaultRent mirrors the native cluster's long-standing rent parameters.
func DefaultRent() Rent {
	return Rent{
		LamportsPerByteYear:   3480,
		ExemptionThresholdPct: 2.0,
		AccountOverheadBytes:  128,
	}
}

// MinimumBalance returns the rent-exempt reserve for an account of dataLen
// bytes.
func (r Rent) MinimumBalance(dataLen uint64) uint64 {
	bytesCharged := dataLen + r.AccountOverheadBytes
	yearly := float64(bytesCharged) * float64(r.LamportsPerByteYear)
	return uint64(yearly * r.ExemptionThresholdPct)
}

// historyEntryWire is the on-sysvar encoding of one stake-history entry:
// {epoch, effective, activating, deactivating}, each a little-endian u64,
// 32 bytes total.
const historyEntryWire = 32

// HistoryEntry is one epoch's aggregate warmup/cooldown accounting.
type HistoryEntry struct {
	Effective    uint64
	Activating   uint64
	Deactivating uint64
}

// History is the decoded stake-history window: a map from epoch to its
// entry, built once from the raw sysvar bytes.
type History struct {
	byEpoch map[uint64]HistoryEntry
}

// Get returns the entry for epoch, if the window covers it.
func (h History) Get(epoch uint64) (HistoryEntry, bool) {
	if h.byEpoch == nil {
		return HistoryEntry{}, false
	}
	e, ok := h.byEpoch[epoch]
	return e, ok
}

// DecodeHistory parses the stake-history sysvar bytes: an 8-byte LE length
// prefix followed by that many 32-byte entries {epoch, effective,
// activating, deactivating}, newest-first (entry 0 corresponds to
// clock.epoch-1), per spec.md §6.
func DecodeHistory(data []byte) History {
	h := History{byEpoch: map[uint64]HistoryEntry{}}
	if len(data) < 8 {
		return h
	}
	length := binary.LittleEndian.Uint64(data[:8])
	off := 8
	for i := uint64(0); i < length; i++ {
		if off+historyEntryWire > len(data) {
			break
		}
		epoch := binary.LittleEndian.Uint64(data[off : off+8])
		effective := binary.LittleEndian.Uint64(data[off+8 : off+16])
		activating := binary.LittleEndian.Uint64(data[off+16 : off+24])
		deactivating := binary.LittleEndian.Uint64(data[off+24 : off+32])
		h.byEpoch[epoch] = HistoryEntry{Effective: effective, Activating: activating, Deactivating: deactivating}
		off += historyEntryWire
	}
	return h
}

// epochRewardsActiveOffset is the byte offset of the active-flag within the
// epoch-rewards sysvar, per spec.md §4.C / §6.
const epochRewardsActiveOffset = 80

// EpochRewardsActive reads the active-flag byte at offset 80. An
// unreadable (too-short) buffer defaults to false, per spec.md §4.C.
func EpochRewardsActive(data []byte) bool {
	if len(data) <= epochRewardsActiveOffset {
		return false
	}
	return data[epochRewardsActiveOffset] != 0
}
