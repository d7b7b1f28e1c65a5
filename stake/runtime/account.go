// Package runtime defines the account-handle and return-data interfaces
// this program only consumes (spec.md §1, §5): the runtime itself -
// account loading, signature verification, lamport bookkeeping - is an
// external collaborator out of scope for this repo. A handler borrows
// Account values it is handed; it never owns the storage behind them.
package runtime

import "nhbstake/crypto"

// Account is a single borrowed account handle. Implementations are
// expected to enforce the single-mutable-borrow discipline of spec.md §5
// at the call boundary, outside this interface.
type Account interface {
	Key() crypto.Key32
	Owner() crypto.Key32
	SetOwner(crypto.Key32)
	IsSigner() bool
	IsWritable() bool
	Lamports() uint64
	SetLamports(uint64)
	// Data returns the account's raw byte storage. Callers that mutate the
	// returned slice in place are mutating the account; callers that
	// replace the account's contents must use SetData.
	Data() []byte
	SetData([]byte)
}

// Result carries a handler's return-data, the only output channel besides
// account mutation (spec.md §6): only GetMinimumDelegation ever populates
// ReturnData.
type Result struct {
	ReturnData []byte
}

// MemAccount is an in-memory Account used by tests and by any embedder
// that does not need to borrow a live runtime account.
type MemAccount struct {
	key      crypto.Key32
	owner    crypto.Key32
	signer   bool
	writable bool
	lamports uint64
	data     []byte
}

// NewMemAccount constructs a MemAccount. data is copied defensively.
func NewMemAccount(key, owner crypto.Key32, signer, writable bool, lamports uint64, data []byte) *MemAccount {
	cp := make([]byte, len(data))
	copy(cp, data)
	return &MemAccount{key: key, owner: owner, signer: signer, writable: writable, lamports: lamports, data: cp}
}

func (a *MemAccount) Key() crypto.Key32        { return a.key }
func (a *MemAccount) Owner() crypto.Key32      { return a.owner }
func (a *MemAccount) SetOwner(o crypto.Key32)  { a.owner = o }
func (a *MemAccount) IsSigner() bool           { return a.signer }
func (a *MemAccount) IsWritable() bool         { return a.writable }
func (a *MemAccount) Lamports() uint64         { return a.lamports }
func (a *MemAccount) SetLamports(l uint64)     { a.lamports = l }
func (a *MemAccount) Data() []byte             { return a.data }
func (a *MemAccount) SetData(d []byte) {
	a.data = make([]byte, len(d))
	copy(a.data, d)
}
