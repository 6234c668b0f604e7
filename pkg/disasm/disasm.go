// Package disasm adapts golang.org/x/arch/x86/x86asm to the
// debugger's own (address, text) instruction pairs, feeding it
// trap-free memory so a breakpoint's 0xCC never corrupts a decode.
//
// Grounded on github.com/go-delve/delve's pkg/proc/disasm_amd64.go
// (x86asm.Decode in a loop over a byte window) plus delve's use of
// github.com/hashicorp/golang-lru to cache decoded ranges, adapted
// here to key the cache on the tracee-relative address window instead
// of a compile-unit-relative one since this debugger has no DWARF.
package disasm

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/arch/x86/x86asm"

	"github.com/ptracer/ptracer/pkg/addr"
	"github.com/ptracer/ptracer/pkg/dbgerr"
)

// Instruction pairs a decoded x86 instruction with the address it was
// read from and the raw bytes it consumed.
type Instruction struct {
	Address addr.Address
	Text    string
	Bytes   []byte
}

// MemoryReader is the narrow surface the disassembler needs: a view of
// tracee memory with installed software breakpoints transparently
// masked back to their original bytes.
type MemoryReader interface {
	ReadMemoryWithoutTraps(address addr.Address, n int) ([]byte, error)
}

// maxInstructionLength is the longest possible x86-64 instruction
// encoding; Decoder reads this many trailing bytes past the requested
// window so the last instruction it decodes is never truncated.
const maxInstructionLength = 15

// cacheEntry is what a Decoder caches per (address, count) decode
// request.
type cacheEntry struct {
	instructions []Instruction
}

// Decoder decodes tracee instructions through a MemoryReader, caching
// recent decode windows since the shell re-disassembles around the
// program counter on nearly every stop.
type Decoder struct {
	mem   MemoryReader
	cache *lru.Cache
}

// NewDecoder creates a Decoder backed by mem with room for cacheSize
// recent decode windows.
func NewDecoder(mem MemoryReader, cacheSize int) (*Decoder, error) {
	if cacheSize <= 0 {
		cacheSize = 64
	}
	c, err := lru.New(cacheSize)
	if err != nil {
		return nil, dbgerr.OS("create disassembly cache", err)
	}
	return &Decoder{mem: mem, cache: c}, nil
}

type cacheKey struct {
	address addr.Address
	count   int
}

// Decode returns the first count instructions starting at address,
// reading (and decoding) as many trap-free bytes as needed.
func (d *Decoder) Decode(address addr.Address, count int) ([]Instruction, error) {
	if count <= 0 {
		return nil, nil
	}
	key := cacheKey{address: address, count: count}
	if v, ok := d.cache.Get(key); ok {
		return v.(cacheEntry).instructions, nil
	}

	window := count*maxInstructionLength + maxInstructionLength
	raw, err := d.mem.ReadMemoryWithoutTraps(address, window)
	if err != nil {
		return nil, err
	}

	out := make([]Instruction, 0, count)
	cur := address
	offset := 0
	for len(out) < count && offset < len(raw) {
		inst, err := x86asm.Decode(raw[offset:], 64)
		if err != nil {
			// Undecodable byte: surface it as a one-byte pseudo
			// instruction so a bad disassembly window doesn't abort
			// the whole request, matching how a shell would want to
			// keep stepping through a listing.
			out = append(out, Instruction{Address: cur, Text: fmt.Sprintf("(bad) byte %#02x", raw[offset]), Bytes: raw[offset : offset+1]})
			cur = cur.Add(1)
			offset++
			continue
		}
		out = append(out, Instruction{Address: cur, Text: x86asm.GNUSyntax(inst, uint64(cur), nil), Bytes: raw[offset : offset+inst.Len]})
		cur = cur.Add(int64(inst.Len))
		offset += inst.Len
	}

	d.cache.Add(key, cacheEntry{instructions: out})
	return out, nil
}
