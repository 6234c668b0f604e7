// Package watchpoint implements a single hardware data watchpoint:
// mode, size, and last-observed-value tracking across fires.
//
// Grounded on github.com/go-delve/delve's pkg/proc/amd64util.DebugRegisters
// (hardware slot plumbing shared with breakpoint.Site) plus the spec's
// explicit requirement to sample and diff the watched range's data
// across hits, which delve's own watchpoint support does not need
// since it tracks variables, not raw byte ranges.
package watchpoint

import (
	"github.com/ptracer/ptracer/pkg/addr"
	"github.com/ptracer/ptracer/pkg/dbgerr"
	"github.com/ptracer/ptracer/pkg/debugregs"
)

// Mode is the access type a watchpoint traps on. Execute is
// semantically identical to a hardware breakpoint at that address with
// length 1; it exists here so a watchpoint set can list all hardware
// stop-points uniformly.
type Mode = debugregs.Mode

const (
	Execute   = debugregs.ModeExecute
	Write     = debugregs.ModeWrite
	ReadWrite = debugregs.ModeReadWrite
)

// ValidSizes enumerates the byte widths a watchpoint may cover.
var ValidSizes = map[int]bool{1: true, 2: true, 4: true, 8: true}

// MemoryReader is the narrow tracee-memory surface a Watchpoint needs
// to sample the watched range.
type MemoryReader interface {
	ReadMemory(address addr.Address, n int) ([]byte, error)
}

// HardwareAllocator is the narrow debug-register surface a Watchpoint
// needs.
type HardwareAllocator interface {
	AllocateSlot(id int, address addr.Address, mode debugregs.Mode, size int) (slot int, err error)
	FreeSlot(slot int) error
}

// Watchpoint is one hardware data watchpoint.
type Watchpoint struct {
	id      int
	address addr.Address
	mode    Mode
	size    int
	enabled bool
	hwSlot  int

	previousData []byte
	currentData  []byte

	mem MemoryReader
	hw  HardwareAllocator
}

// New creates a disabled watchpoint. size must be one of ValidSizes.
func New(id int, address addr.Address, mode Mode, size int, mem MemoryReader, hw HardwareAllocator) (*Watchpoint, error) {
	if !ValidSizes[size] {
		return nil, dbgerr.Usagef("watchpoint size %d is not one of 1, 2, 4, 8", size)
	}
	return &Watchpoint{id: id, address: address, mode: mode, size: size, mem: mem, hw: hw}, nil
}

func (w *Watchpoint) ID() int                     { return w.id }
func (w *Watchpoint) Address() uint64             { return uint64(w.address) }
func (w *Watchpoint) VirtualAddress() addr.Address { return w.address }
func (w *Watchpoint) Mode() Mode                  { return w.mode }
func (w *Watchpoint) Size() int                   { return w.size }
func (w *Watchpoint) Enabled() bool               { return w.enabled }
func (w *Watchpoint) HardwareSlot() int           { return w.hwSlot }
func (w *Watchpoint) PreviousData() []byte        { return w.previousData }
func (w *Watchpoint) CurrentData() []byte         { return w.currentData }

// Enable arms the watchpoint's debug register slot and samples the
// current data at the watched range; PreviousData stays empty until
// the first observed fire. Idempotent.
func (w *Watchpoint) Enable() error {
	if w.enabled {
		return nil
	}
	armSize := w.size
	if w.mode == Execute {
		armSize = 1 // an execute trap is armed like a hardware breakpoint
	}
	slot, err := w.hw.AllocateSlot(w.id, w.address, w.mode, armSize)
	if err != nil {
		return err
	}
	data, err := w.mem.ReadMemory(w.address, w.size)
	if err != nil {
		_ = w.hw.FreeSlot(slot)
		return dbgerr.OS("sample watched range", err)
	}
	w.hwSlot = slot
	w.currentData = data
	w.enabled = true
	return nil
}

// Disable frees the watchpoint's debug register slot. Idempotent.
func (w *Watchpoint) Disable() error {
	if !w.enabled {
		return nil
	}
	if err := w.hw.FreeSlot(w.hwSlot); err != nil {
		return err
	}
	w.enabled = false
	return nil
}

// UpdateData is called by the controller when this watchpoint fires:
// it shifts CurrentData into PreviousData and re-reads the watched
// range as the new CurrentData.
func (w *Watchpoint) UpdateData() error {
	data, err := w.mem.ReadMemory(w.address, w.size)
	if err != nil {
		return dbgerr.OS("re-read watched range", err)
	}
	w.previousData = w.currentData
	w.currentData = data
	return nil
}
