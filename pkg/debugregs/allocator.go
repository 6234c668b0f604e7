// Package debugregs implements the x86 debug-register allocator: slot
// assignment across DR0-DR3 and composition of the DR7 control bits
// that arm them, per the Intel 64 and IA-32 Architectures Software
// Developer's Manual, Vol. 3B, section 17.2.
//
// Grounded on github.com/go-delve/delve's pkg/proc/amd64util/debugregs.go,
// adapted to operate on addr.Address, an explicit Mode enum instead of
// read/write bools, and this debugger's own slot-exhaustion error type.
package debugregs

import (
	"github.com/ptracer/ptracer/pkg/addr"
	"github.com/ptracer/ptracer/pkg/dbgerr"
)

// NumSlots is the number of usable hardware breakpoint/watchpoint
// address slots (DR0-DR3); DR4-DR5 are reserved aliases of DR6-DR7 and
// are not modeled as address slots.
const NumSlots = 4

// Mode is the access type a hardware stop-point traps on.
type Mode uint8

const (
	ModeExecute  Mode = iota // DR7 len/rw bits 00
	ModeWrite                // 01
	ModeReadWrite            // 11 ("break on read only" is not supported by the hardware)
)

// Allocator packs/unpacks DR0-DR3 (addresses) and DR7 (control) bits
// in-place through pointers into the register file's debug-register
// mirror. It never talks to the kernel itself; callers flush dirty
// slots through registers.File.WriteDebugRegister after a mutation.
type Allocator struct {
	slots      [NumSlots]*uint64
	dr6, dr7   *uint64
	occupiedBy [NumSlots]int // stop-point id owning the slot, 0 if free
}

// New binds an allocator to the four address-register pointers plus
// DR6/DR7 of a register file.
func New(slots [NumSlots]*uint64, dr6, dr7 *uint64) *Allocator {
	return &Allocator{slots: slots, dr6: dr6, dr7: dr7}
}

func enableBit(idx int) uint64  { return 1 << uint(idx*2) }
func lenrwShift(idx int) uint   { return uint(16 + idx*4) }

func encodeLen(size int) (uint64, error) {
	switch size {
	case 1:
		return 0x0, nil
	case 2:
		return 0x1, nil
	case 4:
		return 0x3, nil
	case 8:
		return 0x2, nil // sic: the architecture encodes an 8-byte region as binary 10
	default:
		return 0, dbgerr.Usagef("hardware stop-point size %d not supported (must be 1, 2, 4 or 8)", size)
	}
}

func encodeMode(m Mode) (uint64, error) {
	switch m {
	case ModeExecute:
		return 0x0, nil
	case ModeWrite:
		return 0x1, nil
	case ModeReadWrite:
		return 0x3, nil
	default:
		return 0, dbgerr.Usagef("unsupported hardware stop-point mode %v", m)
	}
}

// FindFreeSlot returns the lowest-index unoccupied slot, or an error if
// all four are in use (property: at most four hardware stop-points
// enabled simultaneously).
func (a *Allocator) FindFreeSlot() (int, error) {
	for i := 0; i < NumSlots; i++ {
		if a.occupiedBy[i] == 0 {
			return i, nil
		}
	}
	return -1, dbgerr.Usage("hardware stop-points exhausted: all four debug register slots are in use")
}

// Set arms slot idx for id at the given address, mode and size,
// composing the DR7 control bits for that slot and marking it owned by
// id. The caller is responsible for flushing DR[idx] and DR7 to the
// tracee afterward.
func (a *Allocator) Set(idx int, id int, address addr.Address, mode Mode, size int) error {
	if idx < 0 || idx >= NumSlots {
		return dbgerr.Usagef("invalid debug register slot %d", idx)
	}
	lenbits, err := encodeLen(size)
	if err != nil {
		return err
	}
	modebits, err := encodeMode(mode)
	if err != nil {
		return err
	}
	*a.slots[idx] = uint64(address)
	*a.dr7 &^= 0xf << lenrwShift(idx) // clear old len/rw bits for this slot
	*a.dr7 |= (modebits | lenbits<<2) << lenrwShift(idx)
	*a.dr7 |= enableBit(idx) // local-enable
	a.occupiedBy[idx] = id
	return nil
}

// Clear disarms slot idx. The caller is responsible for flushing DR7
// to the tracee afterward. Idempotent.
func (a *Allocator) Clear(idx int) {
	if idx < 0 || idx >= NumSlots {
		return
	}
	*a.dr7 &^= enableBit(idx)
	a.occupiedBy[idx] = 0
}

// OwnerOf returns the stop-point id occupying slot idx, or 0 if free.
func (a *Allocator) OwnerOf(idx int) int {
	if idx < 0 || idx >= NumSlots {
		return 0
	}
	return a.occupiedBy[idx]
}

// ActiveSlots returns the indexes of slots whose DR6 condition bit is
// set (the hardware recorded a trap on that slot since it was last
// cleared), clearing those bits as it goes — it is the caller's
// responsibility to flush DR6 afterward.
func (a *Allocator) ActiveSlots() []int {
	var active []int
	for i := 0; i < NumSlots; i++ {
		if *a.dr6&(1<<uint(i)) != 0 {
			active = append(active, i)
		}
	}
	if len(active) > 0 {
		*a.dr6 &^= 0xf
	}
	return active
}
