// Package registers implements the register catalog and register file
// described by the debugger's data model: a static, process-wide table
// describing every x86-64 register the kernel exposes for a tracee, and
// a mutable image of that tracee's general-purpose, floating-point and
// debug register blocks.
//
// Grounded on github.com/go-delve/delve's pkg/proc/linutil (AMD64Registers,
// AMD64PtraceRegs) for the GPR layout and pkg/dwarf/regnum/amd64.go for
// DWARF numbering, adapted into a name/offset/format catalog instead of
// a fixed struct, per the debugger's data model.
package registers

import "github.com/ptracer/ptracer/pkg/dbgerr"

// Class classifies a register by the block of tracee state it lives in.
type Class uint8

const (
	ClassGPR Class = iota
	ClassSubGPR
	ClassFPR
	ClassDR
)

// Format selects how a register's raw bytes should be interpreted.
type Format uint8

const (
	FormatUint Format = iota
	FormatDouble
	FormatLongDouble
	FormatVector
)

// Area distinguishes which kernel-exposed block a register's Offset is
// relative to, and therefore which ptrace call writes it back.
type Area uint8

const (
	AreaGPR   Area = iota // user_regs_struct, written via PTRACE_POKEUSER
	AreaFPR               // user_fpregs_struct, written via PTRACE_SETFPREGS (whole block)
	AreaDebug             // u_debugreg[8], written via PTRACE_POKEUSER
)

// Descriptor is one row of the immutable, process-wide register
// catalog: everything needed to locate, size and format a register
// without touching the tracee.
type Descriptor struct {
	Name     string
	ID       int    // dense internal id, index into the catalog slice
	DwarfID  uint64 // meaningful only if HasDwarf
	HasDwarf bool
	Size     int // bytes: 1, 2, 4, 8, 10, or 16
	Area     Area
	Offset   int // byte offset into Area's block
	Class    Class
	Format   Format
}

// Sizes of the kernel-exposed blocks this catalog addresses.
const (
	GPRBlockSize   = 216 // sizeof(struct user_regs_struct) on linux/amd64
	FPRBlockSize   = 512 // sizeof(struct user_fpregs_struct) (FXSAVE layout)
	DebugBlockSize = 64  // 8 * sizeof(uint64), u_debugreg[8]
)

func gpr(name string, dwarf uint64, hasDwarf bool, offset int) Descriptor {
	return Descriptor{Name: name, HasDwarf: hasDwarf, DwarfID: dwarf, Size: 8, Area: AreaGPR, Offset: offset, Class: ClassGPR, Format: FormatUint}
}

func subgpr(name string, size, offset int) Descriptor {
	return Descriptor{Name: name, Size: size, Area: AreaGPR, Offset: offset, Class: ClassSubGPR, Format: FormatUint}
}

// gprOffsets mirrors struct user_regs_struct field order on linux/amd64.
var gprOffsets = map[string]int{
	"r15": 0, "r14": 8, "r13": 16, "r12": 24, "rbp": 32, "rbx": 40,
	"r11": 48, "r10": 56, "r9": 64, "r8": 72, "rax": 80, "rcx": 88,
	"rdx": 96, "rsi": 104, "rdi": 112, "orig_rax": 120, "rip": 128,
	"cs": 136, "eflags": 144, "rsp": 152, "ss": 160, "fs_base": 168,
	"gs_base": 176, "ds": 184, "es": 192, "fs": 200, "gs": 208,
}

// Catalog is the static, process-wide register table, built once at
// package init and never mutated afterward.
var Catalog []Descriptor

// byName and byDwarf index Catalog for O(1) lookup.
var byName map[string]int
var byDwarf map[uint64]int

func init() {
	Catalog = buildCatalog()
	byName = make(map[string]int, len(Catalog))
	byDwarf = make(map[uint64]int, len(Catalog))
	for i, d := range Catalog {
		Catalog[i].ID = i
		byName[d.Name] = i
		if d.HasDwarf {
			byDwarf[d.DwarfID] = i
		}
	}
}

func buildCatalog() []Descriptor {
	var cat []Descriptor

	dwarfGPRs := []string{"rax", "rdx", "rcx", "rbx", "rsi", "rdi", "rbp", "rsp",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15", "rip"}
	dwarfNums := map[string]uint64{
		"rax": 0, "rdx": 1, "rcx": 2, "rbx": 3, "rsi": 4, "rdi": 5, "rbp": 6, "rsp": 7,
		"r8": 8, "r9": 9, "r10": 10, "r11": 11, "r12": 12, "r13": 13, "r14": 14, "r15": 15,
		"rip": 16,
	}
	hasDwarf := map[string]bool{}
	for _, n := range dwarfGPRs {
		hasDwarf[n] = true
	}

	// 64-bit general purpose and pointer registers, plus the ones with
	// no DWARF number (segment selectors, TLS bases, the syscall-restart
	// slot, and rflags, whose DWARF number this table does not model).
	order := []string{"r15", "r14", "r13", "r12", "rbp", "rbx", "r11", "r10", "r9", "r8",
		"rax", "rcx", "rdx", "rsi", "rdi", "orig_rax", "rip", "cs", "eflags", "rsp",
		"ss", "fs_base", "gs_base", "ds", "es", "fs", "gs"}
	for _, name := range order {
		cat = append(cat, gpr(name, dwarfNums[name], hasDwarf[name], gprOffsets[name]))
	}

	// 32/16/8-bit sub-registers alias the low bytes of their parent GPR;
	// x86-64 is little-endian, so the low N bytes sit at the parent's
	// offset (the second byte of the legacy AX/BX/CX/DX pair is at
	// offset+1, e.g. "ah").
	type alias struct {
		parent            string
		d32, d16, d8, d8h string
	}
	aliases := []alias{
		{"rax", "eax", "ax", "al", "ah"},
		{"rbx", "ebx", "bx", "bl", "bh"},
		{"rcx", "ecx", "cx", "cl", "ch"},
		{"rdx", "edx", "dx", "dl", "dh"},
		{"rsi", "esi", "si", "sil", ""},
		{"rdi", "edi", "di", "dil", ""},
		{"rbp", "ebp", "bp", "bpl", ""},
		{"rsp", "esp", "sp", "spl", ""},
		{"r8", "r8d", "r8w", "r8b", ""},
		{"r9", "r9d", "r9w", "r9b", ""},
		{"r10", "r10d", "r10w", "r10b", ""},
		{"r11", "r11d", "r11w", "r11b", ""},
		{"r12", "r12d", "r12w", "r12b", ""},
		{"r13", "r13d", "r13w", "r13b", ""},
		{"r14", "r14d", "r14w", "r14b", ""},
		{"r15", "r15d", "r15w", "r15b", ""},
	}
	for _, a := range aliases {
		off := gprOffsets[a.parent]
		cat = append(cat, subgpr(a.d32, 4, off))
		cat = append(cat, subgpr(a.d16, 2, off))
		cat = append(cat, subgpr(a.d8, 1, off))
		if a.d8h != "" {
			cat = append(cat, subgpr(a.d8h, 1, off+1))
		}
	}

	// Floating point / SSE block (FXSAVE layout, per user_fpregs_struct).
	cat = append(cat, Descriptor{Name: "cwd", Size: 2, Area: AreaFPR, Offset: 0, Class: ClassFPR, Format: FormatUint})
	cat = append(cat, Descriptor{Name: "swd", Size: 2, Area: AreaFPR, Offset: 2, Class: ClassFPR, Format: FormatUint})
	cat = append(cat, Descriptor{Name: "ftw", Size: 2, Area: AreaFPR, Offset: 4, Class: ClassFPR, Format: FormatUint})
	cat = append(cat, Descriptor{Name: "fop", Size: 2, Area: AreaFPR, Offset: 6, Class: ClassFPR, Format: FormatUint})
	cat = append(cat, Descriptor{Name: "mxcsr", Size: 4, Area: AreaFPR, Offset: 24, Class: ClassFPR, Format: FormatUint})
	cat = append(cat, Descriptor{Name: "mxcr_mask", Size: 4, Area: AreaFPR, Offset: 28, Class: ClassFPR, Format: FormatUint})
	for i := 0; i < 8; i++ {
		cat = append(cat, Descriptor{
			Name: stName(i), HasDwarf: true, DwarfID: 33 + uint64(i), Size: 10,
			Area: AreaFPR, Offset: 32 + i*16, Class: ClassFPR, Format: FormatLongDouble,
		})
	}
	for i := 0; i < 16; i++ {
		cat = append(cat, Descriptor{
			Name: xmmName(i), HasDwarf: true, DwarfID: 17 + uint64(i), Size: 16,
			Area: AreaFPR, Offset: 160 + i*16, Class: ClassFPR, Format: FormatVector,
		})
	}

	// Debug registers: DR0-DR3 hold addresses, DR6 is status, DR7 is
	// control. DR4/DR5 are reserved aliases of DR6/DR7 on the hardware;
	// they still get their own rows here, at their own u_debugreg
	// offsets, so all eight slots of the kernel block are addressable.
	drNames := []string{"dr0", "dr1", "dr2", "dr3", "dr4", "dr5", "dr6", "dr7"}
	for i, name := range drNames {
		cat = append(cat, Descriptor{Name: name, Size: 8, Area: AreaDebug, Offset: i * 8, Class: ClassDR, Format: FormatUint})
	}

	return cat
}

func stName(i int) string  { return "st" + itoa(i) }
func xmmName(i int) string { return "xmm" + itoa(i) }

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b []byte
	for i > 0 {
		b = append([]byte{byte('0' + i%10)}, b...)
		i /= 10
	}
	return string(b)
}

// ByName looks up a register descriptor by its assembly name.
func ByName(name string) (Descriptor, error) {
	i, ok := byName[name]
	if !ok {
		return Descriptor{}, dbgerr.Usagef("unknown register %q", name)
	}
	return Catalog[i], nil
}

// ByDwarf looks up a register descriptor by DWARF register number.
func ByDwarf(id uint64) (Descriptor, error) {
	i, ok := byDwarf[id]
	if !ok {
		return Descriptor{}, dbgerr.Usagef("no register with DWARF id %d", id)
	}
	return Catalog[i], nil
}

// PC, SP and DR name the registers the process controller treats
// specially.
const (
	PC = "rip"
	SP = "rsp"
)

func DRName(slot int) string { return "dr" + itoa(slot) }
