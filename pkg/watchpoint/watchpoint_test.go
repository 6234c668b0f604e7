package watchpoint

import (
	"testing"

	"github.com/ptracer/ptracer/pkg/addr"
	"github.com/ptracer/ptracer/pkg/dbgerr"
	"github.com/ptracer/ptracer/pkg/debugregs"
)

type fakeMem struct {
	data    []byte
	readErr error
	reads   int
}

func (f *fakeMem) ReadMemory(a addr.Address, n int) ([]byte, error) {
	f.reads++
	if f.readErr != nil {
		return nil, f.readErr
	}
	return append([]byte(nil), f.data[:n]...), nil
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

func TestNewRejectsInvalidSize(t *testing.T) {
	if _, err := New(1, 0x1000, Write, 3, &fakeMem{}, &fakeHW{}); err == nil {
		t.Fatal("expected failure for size 3")
	}
}

func TestEnableSamplesCurrentData(t *testing.T) {
	mem := &fakeMem{data: []byte{0x01, 0x02, 0x03, 0x04}}
	wp, err := New(1, 0x1000, Write, 4, mem, &fakeHW{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := wp.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if string(wp.CurrentData()) != string(mem.data) {
		t.Fatalf("CurrentData = %v, want %v", wp.CurrentData(), mem.data)
	}
	if len(wp.PreviousData()) != 0 {
		t.Fatal("PreviousData should be empty before the first fire")
	}
}

func TestEnableRollsBackSlotOnSampleFailure(t *testing.T) {
	mem := &fakeMem{readErr: dbgerr.Usage("boom")}
	hw := &fakeHW{}
	wp, _ := New(1, 0x1000, Write, 4, mem, hw)
	if err := wp.Enable(); err == nil {
		t.Fatal("expected Enable to fail")
	}
	if wp.Enabled() {
		t.Fatal("watchpoint must remain disabled")
	}
	if len(hw.freed) != 1 {
		t.Fatalf("expected the allocated slot to be freed on rollback, freed=%v", hw.freed)
	}
}

func TestUpdateDataShiftsCurrentToPrevious(t *testing.T) {
	mem := &fakeMem{data: []byte{0, 0, 0, 0}}
	wp, _ := New(1, 0x1000, Write, 4, mem, &fakeHW{})
	_ = wp.Enable()

	mem.data = []byte{9, 9, 9, 9}
	if err := wp.UpdateData(); err != nil {
		t.Fatalf("UpdateData: %v", err)
	}
	if string(wp.PreviousData()) != "\x00\x00\x00\x00" {
		t.Fatalf("PreviousData = %v, want the pre-write value", wp.PreviousData())
	}
	if string(wp.CurrentData()) != "\x09\x09\x09\x09" {
		t.Fatalf("CurrentData = %v, want the new value", wp.CurrentData())
	}
}

func TestDisableFreesSlot(t *testing.T) {
	hw := &fakeHW{}
	mem := &fakeMem{data: []byte{1, 2, 3, 4}}
	wp, _ := New(1, 0x1000, ReadWrite, 4, mem, hw)
	_ = wp.Enable()
	if err := wp.Disable(); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	if wp.Enabled() {
		t.Fatal("expected watchpoint to be disabled")
	}
	if len(hw.freed) != 1 {
		t.Fatalf("expected slot freed, got %v", hw.freed)
	}
}
