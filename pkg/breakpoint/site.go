// Package breakpoint implements a single software or hardware
// breakpoint at a virtual address, with an idempotent enable/disable
// lifecycle.
//
// Grounded on github.com/go-delve/delve's proctl/breakpoints_linux_amd64.go
// (peek-save-poke 0xCC for software breakpoints) and
// pkg/proc/amd64util/debugregs.go (slot-backed hardware breakpoints),
// but a Site never calls ptrace itself: it borrows a MemoryPoker and a
// HardwareAllocator from whatever owns the tracee. This is the
// non-owning handle pattern the spec calls for so that a Site can
// enact kernel calls without the stop-point owning (or cycling back
// to) the controller that owns it.
package breakpoint

import (
	"github.com/ptracer/ptracer/pkg/addr"
	"github.com/ptracer/ptracer/pkg/dbgerr"
	"github.com/ptracer/ptracer/pkg/debugregs"
)

// TrapOpcode is the one-byte INT3 instruction software breakpoints
// patch into the tracee.
const TrapOpcode = 0xCC

// MemoryPoker is the narrow tracee-memory surface a software Site
// needs: read and write a single byte.
type MemoryPoker interface {
	PeekByte(address addr.Address) (byte, error)
	PokeByte(address addr.Address, b byte) error
}

// HardwareAllocator is the narrow debug-register surface a hardware
// Site needs.
type HardwareAllocator interface {
	AllocateSlot(id int, address addr.Address, mode debugregs.Mode, size int) (slot int, err error)
	FreeSlot(slot int) error
}

// Site is one software or hardware breakpoint at a virtual address.
type Site struct {
	id         int
	address    addr.Address
	enabled    bool
	isHardware bool
	isInternal bool
	savedByte  byte
	hwSlot     int

	mem MemoryPoker
	hw  HardwareAllocator
}

// New creates a disabled breakpoint site. id is negative for internal
// sites (hidden from listing), positive for user-visible ones; id 0 is
// never used.
func New(id int, address addr.Address, hardware, internal bool, mem MemoryPoker, hw HardwareAllocator) *Site {
	return &Site{id: id, address: address, isHardware: hardware, isInternal: internal, mem: mem, hw: hw}
}

func (s *Site) ID() int            { return s.id }
func (s *Site) Address() uint64    { return uint64(s.address) }
func (s *Site) VirtualAddress() addr.Address { return s.address }
func (s *Site) Enabled() bool      { return s.enabled }
func (s *Site) IsHardware() bool   { return s.isHardware }
func (s *Site) IsInternal() bool   { return s.isInternal }
func (s *Site) SavedByte() byte    { return s.savedByte }
func (s *Site) HardwareSlot() int  { return s.hwSlot }

// Enable installs the trap. Idempotent: a no-op if already enabled.
// On any failure the site's state is left unchanged (still disabled).
func (s *Site) Enable() error {
	if s.enabled {
		return nil
	}
	if s.isHardware {
		slot, err := s.hw.AllocateSlot(s.id, s.address, debugregs.ModeExecute, 1)
		if err != nil {
			return err
		}
		s.hwSlot = slot
		s.enabled = true
		return nil
	}
	orig, err := s.mem.PeekByte(s.address)
	if err != nil {
		return dbgerr.OS("read byte at breakpoint address", err)
	}
	if err := s.mem.PokeByte(s.address, TrapOpcode); err != nil {
		return dbgerr.OS("write breakpoint trap", err)
	}
	s.savedByte = orig
	s.enabled = true
	return nil
}

// Disable removes the trap, restoring the original byte for a
// software site or freeing the debug register slot for a hardware
// one. Idempotent.
func (s *Site) Disable() error {
	if !s.enabled {
		return nil
	}
	if s.isHardware {
		if err := s.hw.FreeSlot(s.hwSlot); err != nil {
			return err
		}
		s.enabled = false
		return nil
	}
	if err := s.mem.PokeByte(s.address, s.savedByte); err != nil {
		return dbgerr.OS("restore byte at breakpoint address", err)
	}
	s.enabled = false
	return nil
}
