// Package regnum carries the System V x86-64 ABI DWARF register
// numbering. pkg/registers does not import it: its catalog keeps its
// own copy of the numbers (and gives eflags no DWARF id). It is
// deliberately narrow: a numbering table, not a DWARF expression
// evaluator or location-list reader (DWARF/symbol handling is a
// Non-goal of this debugger). Grounded on the numbering in
// github.com/go-delve/delve's pkg/dwarf/regnum/amd64.go.
package regnum

// AMD64 DWARF register numbers, per the x86-64 System V psABI.
const (
	AMD64_Rax = 0
	AMD64_Rdx = 1
	AMD64_Rcx = 2
	AMD64_Rbx = 3
	AMD64_Rsi = 4
	AMD64_Rdi = 5
	AMD64_Rbp = 6
	AMD64_Rsp = 7
	AMD64_R8  = 8
	AMD64_R9  = 9
	AMD64_R10 = 10
	AMD64_R11 = 11
	AMD64_R12 = 12
	AMD64_R13 = 13
	AMD64_R14 = 14
	AMD64_R15 = 15
	AMD64_Rip = 16
	AMD64_XMM0 = 17 // xmm0..xmm15 occupy 17..32
	AMD64_ST0  = 33 // st0..st7 occupy 33..40
	AMD64_Rflags = 49
)

// gprDwarf maps the general-purpose registers, rip and eflags to their
// DWARF register numbers; vector and x87 registers are covered by XMM
// and ST below. Everything else (segment registers, fs_base/gs_base,
// orig_rax, the debug registers) has no DWARF number.
var gprDwarf = map[string]uint64{
	"rax": AMD64_Rax, "rdx": AMD64_Rdx, "rcx": AMD64_Rcx, "rbx": AMD64_Rbx,
	"rsi": AMD64_Rsi, "rdi": AMD64_Rdi, "rbp": AMD64_Rbp, "rsp": AMD64_Rsp,
	"r8": AMD64_R8, "r9": AMD64_R9, "r10": AMD64_R10, "r11": AMD64_R11,
	"r12": AMD64_R12, "r13": AMD64_R13, "r14": AMD64_R14, "r15": AMD64_R15,
	"rip": AMD64_Rip, "eflags": AMD64_Rflags,
}

// Lookup returns the DWARF register number for name and whether one
// exists.
func Lookup(name string) (uint64, bool) {
	if n, ok := gprDwarf[name]; ok {
		return n, true
	}
	return 0, false
}

// XMM returns the DWARF register number of xmm<idx>.
func XMM(idx int) uint64 { return AMD64_XMM0 + uint64(idx) }

// ST returns the DWARF register number of st<idx>.
func ST(idx int) uint64 { return AMD64_ST0 + uint64(idx) }
