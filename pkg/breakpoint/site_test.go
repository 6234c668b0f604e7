package breakpoint

import (
	"testing"

	"github.com/ptracer/ptracer/pkg/addr"
	"github.com/ptracer/ptracer/pkg/dbgerr"
	"github.com/ptracer/ptracer/pkg/debugregs"
)

type fakeMem struct {
	bytes    map[addr.Address]byte
	pokeErr  error
	peekErr  error
	pokes    int
}

func newFakeMem() *fakeMem { return &fakeMem{bytes: map[addr.Address]byte{}} }

func (f *fakeMem) PeekByte(a addr.Address) (byte, error) {
	if f.peekErr != nil {
		return 0, f.peekErr
	}
	return f.bytes[a], nil
}

func (f *fakeMem) PokeByte(a addr.Address, b byte) error {
	if f.pokeErr != nil {
		return f.pokeErr
	}
	f.pokes++
	f.bytes[a] = b
	return nil
}

type fakeHW struct {
	nextSlot int
	freed    []int
	allocErr error
}

func (f *fakeHW) AllocateSlot(id int, a addr.Address, mode debugregs.Mode, size int) (int, error) {
	if f.allocErr != nil {
		return 0, f.allocErr
	}
	slot := f.nextSlot
	f.nextSlot++
	return slot, nil
}

func (f *fakeHW) FreeSlot(slot int) error {
	f.freed = append(f.freed, slot)
	return nil
}

func TestSoftwareEnablePatchesTrapAndSavesByte(t *testing.T) {
	mem := newFakeMem()
	mem.bytes[0x401000] = 0x55
	site := New(1, 0x401000, false, false, mem, &fakeHW{})

	if err := site.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if !site.Enabled() {
		t.Fatal("expected site to be enabled")
	}
	if mem.bytes[0x401000] != TrapOpcode {
		t.Fatalf("tracee byte = %#x, want 0xCC", mem.bytes[0x401000])
	}
	if site.SavedByte() != 0x55 {
		t.Fatalf("SavedByte = %#x, want 0x55", site.SavedByte())
	}
}

func TestSoftwareDisableRestoresByte(t *testing.T) {
	mem := newFakeMem()
	mem.bytes[0x401000] = 0x55
	site := New(1, 0x401000, false, false, mem, &fakeHW{})
	_ = site.Enable()

	if err := site.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if mem.bytes[0x401000] != 0x55 {
		t.Fatalf("byte after disable = %#x, want original 0x55", mem.bytes[0x401000])
	}
	if site.Enabled() {
		t.Fatal("expected site to be disabled")
	}
}

func TestEnableIsIdempotent(t *testing.T) {
	mem := newFakeMem()
	mem.bytes[0x401000] = 0x55
	site := New(1, 0x401000, false, false, mem, &fakeHW{})
	_ = site.Enable()
	_ = site.Enable()
	if mem.pokes != 1 {
		t.Fatalf("expected exactly one poke across two Enable calls, got %d", mem.pokes)
	}
}

func TestSoftwareEnableFailureLeavesSiteDisabled(t *testing.T) {
	mem := newFakeMem()
	mem.peekErr = dbgerr.Usage("boom")
	site := New(1, 0x401000, false, false, mem, &fakeHW{})
	if err := site.Enable(); err == nil {
		t.Fatal("expected Enable to fail")
	}
	if site.Enabled() {
		t.Fatal("site must remain disabled after a failed Enable")
	}
}

func TestHardwareEnableAllocatesSlot(t *testing.T) {
	hw := &fakeHW{}
	site := New(1, 0x401000, true, false, newFakeMem(), hw)
	if err := site.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if site.HardwareSlot() != 0 {
		t.Fatalf("HardwareSlot = %d, want 0", site.HardwareSlot())
	}
	if err := site.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if len(hw.freed) != 1 || hw.freed[0] != 0 {
		t.Fatalf("expected slot 0 freed, got %v", hw.freed)
	}
}
