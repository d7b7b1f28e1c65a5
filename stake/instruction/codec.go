package instruction

import (
	"encoding/binary"
	"fmt"

	stakeerr "nhbstake/core/errors"
	"nhbstake/crypto"
)

// cursor is a bounds-checked little-endian reader over an instruction
// payload. Every read maps a short buffer to InvalidInstructionData, the
// decoder contract spec.md §4.B requires.
type cursor struct {
	buf []byte
	off int
}

func (c *cursor) remaining() int { return len(c.buf) - c.off }

func (c *cursor) need(n int) error {
	if c.remaining() < n {
		return stakeerr.ErrInvalidInstructionData
	}
	return nil
}

func (c *cursor) u8() (byte, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	b := c.buf[c.off]
	c.off++
	return b, nil
}

func (c *cursor) u32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.buf[c.off : c.off+4])
	c.off += 4
	return v, nil
}

func (c *cursor) u64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(c.buf[c.off : c.off+8])
	c.off += 8
	return v, nil
}

func (c *cursor) i64() (int64, error) {
	v, err := c.u64()
	return int64(v), err
}

func (c *cursor) key() (crypto.Key32, error) {
	if err := c.need(crypto.KeySize); err != nil {
		return crypto.Key32{}, err
	}
	k, err := crypto.NewKey32(c.buf[c.off : c.off+crypto.KeySize])
	if err != nil {
		return crypto.Key32{}, stakeerr.ErrInvalidInstructionData
	}
	c.off += crypto.KeySize
	return k, nil
}

// optTag reads the 1-byte Option<T> presence tag: 0/1, anything else is
// malformed.
func (c *cursor) optTag() (bool, error) {
	tag, err := c.u8()
	if err != nil {
		return false, err
	}
	switch tag {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, stakeerr.ErrInvalidInstructionData
	}
}

// seedString reads a length-prefixed (u64) string bounded at
// crypto.MaxSeedLen, per spec.md §4.B "string length ≤ 32 for seeds".
func (c *cursor) seedString() (string, error) {
	length, err := c.u64()
	if err != nil {
		return "", err
	}
	if length > crypto.MaxSeedLen {
		return "", stakeerr.ErrInvalidInstructionData
	}
	if err := c.need(int(length)); err != nil {
		return "", err
	}
	s := string(c.buf[c.off : c.off+int(length)])
	c.off += int(length)
	return s, nil
}

func (c *cursor) authorize() (Authorize, error) {
	v, err := c.u32()
	if err != nil {
		return 0, err
	}
	switch Authorize(v) {
	case AuthorizeStaker, AuthorizeWithdrawer:
		return Authorize(v), nil
	default:
		return 0, stakeerr.ErrInvalidInstructionData
	}
}

func (c *cursor) lockupArgs(allowCustodian bool) (LockupArgs, error) {
	var args LockupArgs
	hasTS, err := c.optTag()
	if err != nil {
		return args, err
	}
	if hasTS {
		ts, err := c.i64()
		if err != nil {
			return args, err
		}
		args.UnixTimestamp = &ts
	}
	hasEpoch, err := c.optTag()
	if err != nil {
		return args, err
	}
	if hasEpoch {
		epoch, err := c.u64()
		if err != nil {
			return args, err
		}
		args.Epoch = &epoch
	}
	if allowCustodian {
		hasCustodian, err := c.optTag()
		if err != nil {
			return args, err
		}
		if hasCustodian {
			k, err := c.key()
			if err != nil {
				return args, err
			}
			args.Custodian = &k
		}
	}
	return args, nil
}

// packedLockupArgs reads the short form's SetLockupChecked encoding: a
// single flags byte (bit0 = has timestamp, bit1 = has epoch, any other bit
// set is malformed) followed by the present fields packed back-to-back with
// no per-field presence tag, matching the original program's
// LockupCheckedData::parse.
func (c *cursor) packedLockupArgs() (LockupArgs, error) {
	var args LockupArgs
	flags, err := c.u8()
	if err != nil {
		return args, err
	}
	if flags&^0x03 != 0 {
		return args, stakeerr.ErrInvalidInstructionData
	}
	if flags&0x01 != 0 {
		ts, err := c.i64()
		if err != nil {
			return args, err
		}
		args.UnixTimestamp = &ts
	}
	if flags&0x02 != 0 {
		epoch, err := c.u64()
		if err != nil {
			return args, err
		}
		args.Epoch = &epoch
	}
	return args, nil
}

func (c *cursor) finished() error {
	if c.remaining() != 0 {
		return stakeerr.ErrInvalidInstructionData
	}
	return nil
}

// decodeFields parses the fields following the tag, shared by the canonical
// and short-form decoders (both forms read AuthorizeWithSeed/
// AuthorizeCheckedWithSeed's u64 seed length prefix identically, since
// both use the same field encoding once the tag has been consumed).
// short selects SetLockupChecked's wire shape: the short form packs a single
// flags byte instead of canonical's two Option presence tags.
func decodeFields(tag Tag, c *cursor, short bool) (Instruction, error) {
	ix := Instruction{Tag: tag}
	switch tag {
	case TagInitialize:
		staker, err := c.key()
		if err != nil {
			return ix, err
		}
		withdrawer, err := c.key()
		if err != nil {
			return ix, err
		}
		ts, err := c.i64()
		if err != nil {
			return ix, err
		}
		epoch, err := c.u64()
		if err != nil {
			return ix, err
		}
		custodian, err := c.key()
		if err != nil {
			return ix, err
		}
		ix.Authorized = Authorized{Staker: staker, Withdrawer: withdrawer}
		ix.InitLockup = Lockup{UnixTimestamp: ts, Epoch: epoch, Custodian: custodian}

	case TagAuthorize:
		newAuth, err := c.key()
		if err != nil {
			return ix, err
		}
		role, err := c.authorize()
		if err != nil {
			return ix, err
		}
		ix.NewAuthorized = newAuth
		ix.Role = role

	case TagDelegate, TagDeactivate, TagMerge, TagInitializeChecked,
		TagGetMinimumDelegation, TagDeactivateDelinquent:
		// no fields

	case TagSplit, TagWithdraw, TagMoveStake, TagMoveLamports:
		lamports, err := c.u64()
		if err != nil {
			return ix, err
		}
		ix.Lamports = lamports

	case TagSetLockup:
		args, err := c.lockupArgs(true)
		if err != nil {
			return ix, err
		}
		ix.LockupArgs = args

	case TagSetLockupChecked:
		var args LockupArgs
		var err error
		if short {
			args, err = c.packedLockupArgs()
		} else {
			args, err = c.lockupArgs(false)
		}
		if err != nil {
			return ix, err
		}
		ix.LockupArgs = args

	case TagAuthorizeWithSeed:
		newAuth, err := c.key()
		if err != nil {
			return ix, err
		}
		role, err := c.authorize()
		if err != nil {
			return ix, err
		}
		seed, err := c.seedString()
		if err != nil {
			return ix, err
		}
		owner, err := c.key()
		if err != nil {
			return ix, err
		}
		ix.NewAuthorized = newAuth
		ix.Role = role
		ix.AuthoritySeed = seed
		ix.AuthorityOwner = owner

	case TagAuthorizeChecked:
		role, err := c.authorize()
		if err != nil {
			return ix, err
		}
		ix.Role = role

	case TagAuthorizeCheckedWithSeed:
		role, err := c.authorize()
		if err != nil {
			return ix, err
		}
		seed, err := c.seedString()
		if err != nil {
			return ix, err
		}
		owner, err := c.key()
		if err != nil {
			return ix, err
		}
		ix.Role = role
		ix.AuthoritySeed = seed
		ix.AuthorityOwner = owner

	case TagRedelegate:
		return ix, stakeerr.ErrInvalidInstructionData

	default:
		return ix, stakeerr.ErrInvalidInstructionData
	}
	return ix, nil
}

// DecodeCanonical decodes the authoritative long-form wire: a 4-byte LE
// discriminant followed by the variant's fields. Any shortage or trailing
// byte is InvalidInstructionData.
func DecodeCanonical(payload []byte) (Instruction, error) {
	c := &cursor{buf: payload}
	rawTag, err := c.u32()
	if err != nil {
		return Instruction{}, err
	}
	if rawTag > uint32(TagMoveLamports) {
		return Instruction{}, stakeerr.ErrInvalidInstructionData
	}
	ix, err := decodeFields(Tag(rawTag), c, false)
	if err != nil {
		return Instruction{}, err
	}
	if err := c.finished(); err != nil {
		return Instruction{}, err
	}
	return ix, nil
}

// DecodeShortForm decodes the compact 1-byte-discriminant wire. When
// allowCompat is false (production interop, the default), an unrecognized
// tag is InvalidInstructionData; when true, it is treated as
// DeactivateDelinquent, matching the "generosity" spec.md's Open Questions
// say must stay feature-gated.
func DecodeShortForm(payload []byte, allowCompat bool) (Instruction, error) {
	if len(payload) == 0 {
		return Instruction{Tag: TagDeactivateDelinquent}, nil
	}
	tagByte := payload[0]
	if tagByte > uint8(TagMoveLamports) {
		if allowCompat {
			return Instruction{Tag: TagDeactivateDelinquent}, nil
		}
		return Instruction{}, stakeerr.ErrInvalidInstructionData
	}
	tag := Tag(tagByte)
	if tag == TagRedelegate {
		return Instruction{}, stakeerr.ErrInvalidInstructionData
	}
	c := &cursor{buf: payload[1:]}
	ix, err := decodeFields(tag, c, true)
	if err != nil {
		return Instruction{}, err
	}
	if err := c.finished(); err != nil {
		return Instruction{}, err
	}
	return ix, nil
}

// EncodeCanonical serializes ix using the authoritative long-form wire, the
// inverse of DecodeCanonical. Wallet/SDK transaction builders are expected
// to target this function's output exactly (spec.md §6).
func EncodeCanonical(ix Instruction) ([]byte, error) {
	var out []byte
	putU32 := func(v uint32) { out = binary.LittleEndian.AppendUint32(out, v) }
	putU64 := func(v uint64) { out = binary.LittleEndian.AppendUint64(out, v) }
	putI64 := func(v int64) { putU64(uint64(v)) }
	putKey := func(k crypto.Key32) { out = append(out, k[:]...) }

	putU32(uint32(ix.Tag))

	switch ix.Tag {
	case TagInitialize:
		putKey(ix.Authorized.Staker)
		putKey(ix.Authorized.Withdrawer)
		putI64(ix.InitLockup.UnixTimestamp)
		putU64(ix.InitLockup.Epoch)
		putKey(ix.InitLockup.Custodian)

	case TagAuthorize:
		putKey(ix.NewAuthorized)
		putU32(uint32(ix.Role))

	case TagDelegate, TagDeactivate, TagMerge, TagInitializeChecked,
		TagGetMinimumDelegation, TagDeactivateDelinquent:
		// no fields

	case TagSplit, TagWithdraw, TagMoveStake, TagMoveLamports:
		putU64(ix.Lamports)

	case TagSetLockup:
		encodeLockupArgs(&out, ix.LockupArgs, true)

	case TagSetLockupChecked:
		encodeLockupArgs(&out, ix.LockupArgs, false)

	case TagAuthorizeWithSeed:
		putKey(ix.NewAuthorized)
		putU32(uint32(ix.Role))
		encodeSeedString(&out, ix.AuthoritySeed)
		putKey(ix.AuthorityOwner)

	case TagAuthorizeChecked:
		putU32(uint32(ix.Role))

	case TagAuthorizeCheckedWithSeed:
		putU32(uint32(ix.Role))
		encodeSeedString(&out, ix.AuthoritySeed)
		putKey(ix.AuthorityOwner)

	default:
		return nil, fmt.Errorf("instruction: encode: unsupported tag %v", ix.Tag)
	}
	return out, nil
}

func encodeSeedString(out *[]byte, seed string) {
	*out = binary.LittleEndian.AppendUint64(*out, uint64(len(seed)))
	*out = append(*out, seed...)
}

func encodeLockupArgs(out *[]byte, args LockupArgs, withCustodian bool) {
	appendOpt := func(present bool, value func()) {
		if present {
			*out = append(*out, 1)
			value()
		} else {
			*out = append(*out, 0)
		}
	}
	appendOpt(args.UnixTimestamp != nil, func() {
		*out = binary.LittleEndian.AppendUint64(*out, uint64(*args.UnixTimestamp))
	})
	appendOpt(args.Epoch != nil, func() {
		*out = binary.LittleEndian.AppendUint64(*out, *args.Epoch)
	})
	if withCustodian {
		appendOpt(args.Custodian != nil, func() {
			*out = append(*out, args.Custodian[:]...)
		})
	}
}
