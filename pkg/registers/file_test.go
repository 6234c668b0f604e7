package registers

import (
	"encoding/binary"
	"testing"
)

// fakeBackend is an in-memory stand-in for a tracee, letting the
// catalog/file write-back logic be exercised without a real kernel,
// the same testability goal delve's proc.Registers interface serves.
type fakeBackend struct {
	gpr  [GPRBlockSize]byte
	fpr  [FPRBlockSize]byte
	user map[int]uint64

	setFPRCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{user: make(map[int]uint64)}
}

func (f *fakeBackend) GetGPRBlock() ([]byte, error) { return append([]byte(nil), f.gpr[:]...), nil }
func (f *fakeBackend) SetGPRBlock(b []byte) error   { copy(f.gpr[:], b); return nil }
func (f *fakeBackend) GetFPRBlock() ([]byte, error) { return append([]byte(nil), f.fpr[:]...), nil }
func (f *fakeBackend) SetFPRBlock(b []byte) error {
	f.setFPRCalls++
	copy(f.fpr[:], b)
	return nil
}

func (f *fakeBackend) PeekUser(offset int) (uint64, error) {
	if offset < GPRBlockSize {
		return binary.LittleEndian.Uint64(f.gpr[offset : offset+8]), nil
	}
	return f.user[offset], nil
}

func (f *fakeBackend) PokeUser(offset int, word uint64) error {
	if offset < GPRBlockSize {
		binary.LittleEndian.PutUint64(f.gpr[offset:offset+8], word)
		return nil
	}
	f.user[offset] = word
	return nil
}

func TestFileReadWriteGPR(t *testing.T) {
	backend := newFakeBackend()
	f := NewFile(backend)
	if err := f.ReadAll(); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if err := f.Write("rax", U64(0xdeadbeefcafebabe)); err != nil {
		t.Fatalf("Write(rax): %v", err)
	}
	v, err := f.Read("rax")
	if err != nil {
		t.Fatalf("Read(rax): %v", err)
	}
	u, _ := v.Uint64()
	if u != 0xdeadbeefcafebabe {
		t.Fatalf("got %#x", u)
	}
	// The write must have been flushed to the backend, not just the
	// in-memory mirror.
	backendWord, _ := backend.PeekUser(gprOffsets["rax"])
	if backendWord != 0xdeadbeefcafebabe {
		t.Fatalf("backend not flushed: got %#x", backendWord)
	}
}

func TestFileWriteSubRegisterSplices(t *testing.T) {
	backend := newFakeBackend()
	f := NewFile(backend)
	if err := f.Write("rax", U64(0xffffffffffffffff)); err != nil {
		t.Fatalf("Write(rax): %v", err)
	}
	if err := f.Write("eax", U32(0)); err != nil {
		t.Fatalf("Write(eax): %v", err)
	}
	v, _ := f.Read("rax")
	u, _ := v.Uint64()
	if u != 0xffffffff00000000 {
		t.Fatalf("splice wrong: got %#x, want 0xffffffff00000000", u)
	}
}

func TestFileWriteWidthMismatchFails(t *testing.T) {
	backend := newFakeBackend()
	f := NewFile(backend)
	if err := f.Write("eax", U64(1)); err == nil {
		t.Fatal("expected failure writing a u64 value into a 4-byte register")
	}
}

func TestFileWriteFPRFlushesWholeBlock(t *testing.T) {
	backend := newFakeBackend()
	f := NewFile(backend)
	if err := f.Write("xmm0", Bytes16([16]byte{1, 2, 3})); err != nil {
		t.Fatalf("Write(xmm0): %v", err)
	}
	if backend.setFPRCalls != 1 {
		t.Fatalf("expected one SetFPRBlock call, got %d", backend.setFPRCalls)
	}
}

func TestDebugRegisterWriteBack(t *testing.T) {
	backend := newFakeBackend()
	f := NewFile(backend)
	if err := f.ReadAll(); err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if err := f.Write("dr0", U64(0x401000)); err != nil {
		t.Fatalf("Write(dr0): %v", err)
	}
	word, _ := backend.PeekUser(DebugRegOffset)
	if word != 0x401000 {
		t.Fatalf("dr0 not flushed: got %#x", word)
	}
}

func TestPCAndSP(t *testing.T) {
	backend := newFakeBackend()
	f := NewFile(backend)
	if err := f.SetPC(0x401030); err != nil {
		t.Fatalf("SetPC: %v", err)
	}
	pc, err := f.PC()
	if err != nil || pc != 0x401030 {
		t.Fatalf("PC() = %#x, %v", pc, err)
	}
	if err := f.Write(SP, U64(0x7ffc0000)); err != nil {
		t.Fatalf("Write(rsp): %v", err)
	}
	sp, err := f.SP()
	if err != nil || sp != 0x7ffc0000 {
		t.Fatalf("SP() = %#x, %v", sp, err)
	}
}
