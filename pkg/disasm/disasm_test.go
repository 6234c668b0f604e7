package disasm

import (
	"testing"

	"github.com/ptracer/ptracer/pkg/addr"
)

type fakeMem struct {
	data []byte
}

func (f *fakeMem) ReadMemoryWithoutTraps(a addr.Address, n int) ([]byte, error) {
	buf := make([]byte, n)
	copy(buf, f.data[int(a):])
	return buf, nil
}

func TestDecodeNopSled(t *testing.T) {
	mem := &fakeMem{data: make([]byte, 256)}
	for i := range mem.data {
		mem.data[i] = 0x90 // NOP
	}
	dec, err := NewDecoder(mem, 4)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	insts, err := dec.Decode(0, 3)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(insts) != 3 {
		t.Fatalf("got %d instructions, want 3", len(insts))
	}
	for i, ins := range insts {
		if ins.Address != addr.Address(i) {
			t.Errorf("instruction %d at %s, want %s", i, ins.Address, addr.Address(i))
		}
		if len(ins.Bytes) != 1 || ins.Bytes[0] != 0x90 {
			t.Errorf("instruction %d bytes = %v, want [0x90]", i, ins.Bytes)
		}
	}
}

func TestDecodeCachesRepeatedWindow(t *testing.T) {
	mem := &fakeMem{data: make([]byte, 64)}
	dec, err := NewDecoder(mem, 4)
	if err != nil {
		t.Fatalf("NewDecoder: %v", err)
	}
	first, err := dec.Decode(0, 2)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	second, err := dec.Decode(0, 2)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("cached decode returned a different instruction count")
	}
}
