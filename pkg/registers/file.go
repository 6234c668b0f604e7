package registers

import (
	"encoding/binary"

	"github.com/ptracer/ptracer/pkg/dbgerr"
)

// DebugRegOffset is the byte offset of u_debugreg[0] inside the
// kernel-exposed "struct user" on linux/amd64; debug register writes go
// through PTRACE_POKEUSER at this offset plus 8*slot, same as general
// purpose registers, just in a different region of the same structure.
const DebugRegOffset = 848

// Backend is the narrow surface File needs from whatever owns
// the tracee in order to mirror and flush its register state. proc.Controller
// implements this; tests supply a fake.
//
// Kept separate from the process controller (instead of File
// calling ptrace directly) so the catalog/variant/write-back logic here
// can be unit tested without a real tracee, matching the spirit of
// delve's proc.Registers interface which separates register
// representation from the backend that fetches it.
type Backend interface {
	GetGPRBlock() ([]byte, error)
	SetGPRBlock([]byte) error
	GetFPRBlock() ([]byte, error)
	SetFPRBlock([]byte) error
	PeekUser(offset int) (uint64, error)
	PokeUser(offset int, word uint64) error
}

// File is a mutable in-memory mirror of a tracee's general-purpose,
// floating-point and debug register blocks, as of the last stop.
type File struct {
	backend Backend
	gpr     []byte // GPRBlockSize bytes
	fpr     []byte // FPRBlockSize bytes
	dr      [8]uint64
}

// NewFile creates an empty register file bound to backend. Call
// ReadAll before using it.
func NewFile(backend Backend) *File {
	return &File{
		backend: backend,
		gpr:     make([]byte, GPRBlockSize),
		fpr:     make([]byte, FPRBlockSize),
	}
}

// ReadAll refreshes the entire mirror from the tracee: PTRACE_GETREGS,
// PTRACE_GETFPREGS, and DR0-DR7 one PTRACE_PEEKUSER word at a time.
func (f *File) ReadAll() error {
	gpr, err := f.backend.GetGPRBlock()
	if err != nil {
		return dbgerr.OS("get general purpose registers", err)
	}
	fpr, err := f.backend.GetFPRBlock()
	if err != nil {
		return dbgerr.OS("get floating point registers", err)
	}
	copy(f.gpr, gpr)
	copy(f.fpr, fpr)
	for i := 0; i < 8; i++ {
		word, err := f.backend.PeekUser(DebugRegOffset + i*8)
		if err != nil {
			return dbgerr.OS("get debug registers", err)
		}
		f.dr[i] = word
	}
	return nil
}

func (f *File) block(area Area) []byte {
	switch area {
	case AreaGPR:
		return f.gpr
	case AreaFPR:
		return f.fpr
	}
	return nil
}

// Read returns the value held by the register named name, drawn from
// the in-memory mirror (not a fresh kernel read).
func (f *File) Read(name string) (Value, error) {
	d, err := ByName(name)
	if err != nil {
		return Value{}, err
	}
	return f.ReadDescriptor(d)
}

// ReadDescriptor is Read, given an already-resolved Descriptor.
func (f *File) ReadDescriptor(d Descriptor) (Value, error) {
	if d.Area == AreaDebug {
		slot := d.Offset / 8
		b := le64(f.dr[slot])
		return FromBytes(d.Format, d.Size, b[:d.Size])
	}
	block := f.block(d.Area)
	if block == nil || d.Offset+d.Size > len(block) {
		return Value{}, dbgerr.Usagef("register %s out of range of its block", d.Name)
	}
	return FromBytes(d.Format, d.Size, block[d.Offset:d.Offset+d.Size])
}

// Write validates that v's byte width does not exceed d's size (a
// write of a wider value than the register is a failure; a narrower
// integer value is zero-extended), updates the in-memory mirror, and
// flushes the write to the tracee: PTRACE_POKEUSER for GPR/debug
// registers (aligned to an 8-byte boundary, reading back and splicing
// the covering word first), or a full PTRACE_SETFPREGS for any
// floating point register.
func (f *File) Write(name string, v Value) error {
	d, err := ByName(name)
	if err != nil {
		return err
	}
	return f.WriteDescriptor(d, v)
}

// WriteDescriptor is Write, given an already-resolved Descriptor.
func (f *File) WriteDescriptor(d Descriptor, v Value) error {
	if v.ByteWidth() > d.Size {
		return dbgerr.Usagef("value is %d bytes wide, register %s is %d bytes", v.ByteWidth(), d.Name, d.Size)
	}
	payload := make([]byte, d.Size)
	copy(payload, v.Bytes()) // shorter values zero-extend; Bytes() never exceeds d.Size here

	switch d.Area {
	case AreaDebug:
		slot := d.Offset / 8
		var word [8]byte
		copy(word[:], payload)
		f.dr[slot] = binary.LittleEndian.Uint64(word[:])
		if err := f.backend.PokeUser(DebugRegOffset+d.Offset, f.dr[slot]); err != nil {
			return dbgerr.OS("set debug register "+d.Name, err)
		}
		return nil
	case AreaFPR:
		copy(f.fpr[d.Offset:d.Offset+d.Size], payload)
		if err := f.backend.SetFPRBlock(f.fpr); err != nil {
			return dbgerr.OS("set floating point registers", err)
		}
		return nil
	default: // AreaGPR, ClassGPR or ClassSubGPR
		copy(f.gpr[d.Offset:d.Offset+d.Size], payload)
		alignedOff := (d.Offset / 8) * 8
		word := binary.LittleEndian.Uint64(f.gpr[alignedOff : alignedOff+8])
		if err := f.backend.PokeUser(alignedOff, word); err != nil {
			return dbgerr.OS("set register "+d.Name, err)
		}
		return nil
	}
}

func le64(v uint64) [8]byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b
}

// PC returns the current value of rip.
func (f *File) PC() (uint64, error) {
	v, err := f.Read(PC)
	if err != nil {
		return 0, err
	}
	u, _ := v.Uint64()
	return u, nil
}

// SetPC sets rip.
func (f *File) SetPC(addr uint64) error {
	return f.Write(PC, U64(addr))
}

// SP returns the current value of rsp.
func (f *File) SP() (uint64, error) {
	v, err := f.Read(SP)
	if err != nil {
		return 0, err
	}
	u, _ := v.Uint64()
	return u, nil
}

// DebugRegister returns DR[slot] from the in-memory mirror.
func (f *File) DebugRegister(slot int) uint64 { return f.dr[slot] }

// DebugRegisterPointers exposes pointers into the mirror's DR0-DR3, DR6
// and DR7 slots so a debugregs.Allocator can pack/unpack DR7 bits
// in-place; writes through these pointers must be followed by a
// WriteDebugRegister call to flush them to the tracee.
func (f *File) DebugRegisterPointers() (addrs [4]*uint64, dr6, dr7 *uint64) {
	return [4]*uint64{&f.dr[0], &f.dr[1], &f.dr[2], &f.dr[3]}, &f.dr[6], &f.dr[7]
}

// WriteDebugRegister flushes DR[slot] from the in-memory mirror to the
// tracee via PTRACE_POKEUSER. Used after a debugregs.Allocator mutates
// the mirror in-place through the pointers above.
func (f *File) WriteDebugRegister(slot int) error {
	if err := f.backend.PokeUser(DebugRegOffset+slot*8, f.dr[slot]); err != nil {
		return dbgerr.OS("set debug register "+DRName(slot), err)
	}
	return nil
}
