package registers

import (
	"fmt"
	"math"

	"github.com/ptracer/ptracer/pkg/dbgerr"
)

// Kind discriminates the variant held by a Value.
type Kind uint8

const (
	KindU8 Kind = iota
	KindU16
	KindU32
	KindU64
	KindI8
	KindI16
	KindI32
	KindI64
	KindF32
	KindF64
	KindF80
	KindBytes8
	KindBytes16
)

// Value is a tagged variant over every width/format a register can
// hold. Exactly one of the fields below is meaningful, selected by
// Kind; there is no implicit narrowing between variants.
type Value struct {
	Kind  Kind
	u     uint64
	i     int64
	f     float64
	bytes []byte // used by KindF80 (10 bytes), KindBytes8, KindBytes16
}

func U8(v uint8) Value   { return Value{Kind: KindU8, u: uint64(v)} }
func U16(v uint16) Value { return Value{Kind: KindU16, u: uint64(v)} }
func U32(v uint32) Value { return Value{Kind: KindU32, u: uint64(v)} }
func U64(v uint64) Value { return Value{Kind: KindU64, u: v} }
func I8(v int8) Value    { return Value{Kind: KindI8, i: int64(v)} }
func I16(v int16) Value  { return Value{Kind: KindI16, i: int64(v)} }
func I32(v int32) Value  { return Value{Kind: KindI32, i: int64(v)} }
func I64(v int64) Value  { return Value{Kind: KindI64, i: v} }
func F32(v float32) Value { return Value{Kind: KindF32, f: float64(v)} }
func F64(v float64) Value { return Value{Kind: KindF64, f: v} }

// F80 holds a raw 10-byte x87 extended-precision value; this debugger
// does not decode it, it only carries the bytes through.
func F80(b [10]byte) Value {
	return Value{Kind: KindF80, bytes: append([]byte(nil), b[:]...)}
}

func Bytes8(b [8]byte) Value {
	return Value{Kind: KindBytes8, bytes: append([]byte(nil), b[:]...)}
}

func Bytes16(b [16]byte) Value {
	return Value{Kind: KindBytes16, bytes: append([]byte(nil), b[:]...)}
}

// Uint64 returns v widened to uint64 if v holds an unsigned integer
// variant, and ok=false otherwise.
func (v Value) Uint64() (uint64, bool) {
	switch v.Kind {
	case KindU8, KindU16, KindU32, KindU64:
		return v.u, true
	}
	return 0, false
}

// ByteWidth returns the number of bytes v's variant occupies.
func (v Value) ByteWidth() int {
	switch v.Kind {
	case KindU8, KindI8:
		return 1
	case KindU16, KindI16:
		return 2
	case KindU32, KindI32, KindF32:
		return 4
	case KindU64, KindI64, KindF64, KindBytes8:
		return 8
	case KindF80:
		return 10
	case KindBytes16:
		return 16
	}
	return 0
}

// Bytes renders v as its little-endian byte encoding.
func (v Value) Bytes() []byte {
	switch v.Kind {
	case KindU8:
		return []byte{byte(v.u)}
	case KindU16:
		return le(uint64(v.u), 2)
	case KindU32:
		return le(uint64(v.u), 4)
	case KindU64:
		return le(v.u, 8)
	case KindI8:
		return []byte{byte(int8(v.i))}
	case KindI16:
		return le(uint64(uint16(int16(v.i))), 2)
	case KindI32:
		return le(uint64(uint32(int32(v.i))), 4)
	case KindI64:
		return le(uint64(v.i), 8)
	case KindF32:
		return le(uint64(math.Float32bits(float32(v.f))), 4)
	case KindF64:
		return le(math.Float64bits(v.f), 8)
	case KindF80, KindBytes8, KindBytes16:
		return append([]byte(nil), v.bytes...)
	}
	return nil
}

func le(v uint64, n int) []byte {
	b := make([]byte, n)
	for i := 0; i < n; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

func (v Value) String() string {
	switch v.Kind {
	case KindU8, KindU16, KindU32, KindU64:
		return fmt.Sprintf("%#x", v.u)
	case KindI8, KindI16, KindI32, KindI64:
		return fmt.Sprintf("%d", v.i)
	case KindF32, KindF64:
		return fmt.Sprintf("%g", v.f)
	default:
		return fmt.Sprintf("%x", v.bytes)
	}
}

// FromBytes builds a Value of the variant dictated by format/size from
// a little-endian byte slice of exactly that size.
func FromBytes(format Format, size int, b []byte) (Value, error) {
	if len(b) != size {
		return Value{}, dbgerr.Usagef("register value width mismatch: want %d bytes, got %d", size, len(b))
	}
	switch format {
	case FormatUint:
		switch size {
		case 1:
			return U8(b[0]), nil
		case 2:
			return U16(uint16(leToU64(b))), nil
		case 4:
			return U32(uint32(leToU64(b))), nil
		case 8:
			return U64(leToU64(b)), nil
		}
	case FormatDouble:
		if size == 4 {
			return F32(math.Float32frombits(uint32(leToU64(b)))), nil
		}
		if size == 8 {
			return F64(math.Float64frombits(leToU64(b))), nil
		}
	case FormatLongDouble:
		if size == 10 {
			var a [10]byte
			copy(a[:], b)
			return F80(a), nil
		}
	case FormatVector:
		if size == 8 {
			var a [8]byte
			copy(a[:], b)
			return Bytes8(a), nil
		}
		if size == 16 {
			var a [16]byte
			copy(a[:], b)
			return Bytes16(a), nil
		}
	}
	return Value{}, dbgerr.Usagef("unsupported register format/size combination (%v, %d)", format, size)
}

func leToU64(b []byte) uint64 {
	var v uint64
	for i, c := range b {
		v |= uint64(c) << (8 * i)
	}
	return v
}
