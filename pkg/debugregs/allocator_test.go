package debugregs

import (
	"testing"

	"github.com/ptracer/ptracer/pkg/addr"
)

func newTestAllocator() (*Allocator, *[4]uint64, *uint64, *uint64) {
	var slots [4]uint64
	var dr6, dr7 uint64
	a := New([4]*uint64{&slots[0], &slots[1], &slots[2], &slots[3]}, &dr6, &dr7)
	return a, &slots, &dr6, &dr7
}

func TestSetPacksAddressAndControlBits(t *testing.T) {
	a, slots, _, dr7 := newTestAllocator()
	if err := a.Set(0, 1, addr.Address(0x401000), ModeExecute, 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if slots[0] != 0x401000 {
		t.Fatalf("DR0 = %#x, want 0x401000", slots[0])
	}
	if *dr7&0x1 == 0 {
		t.Fatal("local-enable bit for slot 0 not set")
	}
}

func TestFindFreeSlotExhaustion(t *testing.T) {
	a, _, _, _ := newTestAllocator()
	for i := 0; i < NumSlots; i++ {
		idx, err := a.FindFreeSlot()
		if err != nil {
			t.Fatalf("FindFreeSlot #%d: %v", i, err)
		}
		if err := a.Set(idx, i+1, addr.Address(0x1000*uint64(i+1)), ModeWrite, 4); err != nil {
			t.Fatalf("Set #%d: %v", i, err)
		}
	}
	if _, err := a.FindFreeSlot(); err == nil {
		t.Fatal("expected exhaustion error after filling all four slots")
	}
}

func TestClearFreesSlotForReuse(t *testing.T) {
	a, _, _, dr7 := newTestAllocator()
	idx, _ := a.FindFreeSlot()
	if err := a.Set(idx, 7, addr.Address(0x2000), ModeReadWrite, 8); err != nil {
		t.Fatalf("Set: %v", err)
	}
	a.Clear(idx)
	if *dr7&(1<<uint(idx*2)) != 0 {
		t.Fatal("local-enable bit should be cleared")
	}
	if a.OwnerOf(idx) != 0 {
		t.Fatalf("OwnerOf after Clear = %d, want 0", a.OwnerOf(idx))
	}
	if got, err := a.FindFreeSlot(); err != nil || got != idx {
		t.Fatalf("FindFreeSlot after Clear = %d, %v, want %d, nil", got, err, idx)
	}
}

func TestSizeEightEncodesSpecialLengthBits(t *testing.T) {
	a, _, _, dr7 := newTestAllocator()
	if err := a.Set(0, 1, addr.Address(0x3000), ModeWrite, 8); err != nil {
		t.Fatalf("Set: %v", err)
	}
	lenBits := (*dr7 >> (16 + 0*4 + 2)) & 0x3
	if lenBits != 0x2 {
		t.Fatalf("size-8 length bits = %#x, want 0x2 (architecture's special encoding)", lenBits)
	}
}

func TestInvalidSizeRejected(t *testing.T) {
	a, _, _, _ := newTestAllocator()
	if err := a.Set(0, 1, addr.Address(0x1000), ModeWrite, 3); err == nil {
		t.Fatal("expected failure for unsupported watchpoint size")
	}
}

func TestActiveSlotsClearsStatusBits(t *testing.T) {
	a, _, dr6, _ := newTestAllocator()
	*dr6 = 0x5 // slots 0 and 2 fired
	active := a.ActiveSlots()
	if len(active) != 2 || active[0] != 0 || active[1] != 2 {
		t.Fatalf("ActiveSlots = %v, want [0 2]", active)
	}
	if *dr6&0xf != 0 {
		t.Fatalf("ActiveSlots should clear the low status bits, dr6 = %#x", *dr6)
	}
}
