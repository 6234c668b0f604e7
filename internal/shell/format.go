package shell

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/ptracer/ptracer/pkg/addr"
	"github.com/ptracer/ptracer/pkg/proc"
)

// gprNames is the subset of the register catalog `regs` prints: the
// general-purpose registers and rip, in delve's conventional
// north-to-south listing order.
var gprNames = []string{
	"rip", "rsp", "rbp", "rax", "rbx", "rcx", "rdx", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15", "eflags",
}

// colorsEnabled reports whether stdout is an interactive terminal, the
// same go-isatty check delve's pkg/terminal output formatting uses
// before turning on go-colorable coloring.
func colorsEnabled() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

const (
	ansiYellow = "\x1b[33m"
	ansiReset  = "\x1b[0m"
)

func highlight(s string, on bool) string {
	if !on {
		return s
	}
	return ansiYellow + s + ansiReset
}

// FormatRegisters renders the general-purpose registers, highlighting
// any whose value changed since the previous call within the same
// Session — the kind of diffed register dump a debugger shell
// conventionally shows after a stop.
func FormatRegisters(s *Session) string {
	regs := s.Ctrl.GetRegisters()
	color := colorsEnabled() && s.Cfg.ShowRegisterChanges
	var b strings.Builder
	for _, name := range gprNames {
		v, err := regs.Read(name)
		if err != nil {
			continue
		}
		u, _ := v.Uint64()
		prev, seen := s.prevRegs[name]
		changed := seen && prev != u
		line := fmt.Sprintf("%-8s %#016x", name, u)
		fmt.Fprintln(&b, highlight(line, changed && color))
		s.prevRegs[name] = u
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatStopReason renders a proc.StopReason the way a shell prompt
// would report it after continue/step.
func FormatStopReason(reason proc.StopReason, ctrl *proc.Controller) string {
	switch reason.State {
	case proc.StateExited:
		return fmt.Sprintf("[exited with status %d]", reason.Info)
	case proc.StateTerminated:
		return fmt.Sprintf("[terminated by signal %d]", reason.Info)
	case proc.StateStopped:
		pc, err := ctrl.GetPC()
		if err != nil {
			return fmt.Sprintf("[stopped, signal %d]", reason.Info)
		}
		return fmt.Sprintf("[stopped, signal %d, pc=%s]", reason.Info, pc)
	default:
		return "[unknown stop]"
	}
}

// FormatHexDump renders data as a conventional 16-bytes-per-row hex
// dump starting at base.
func FormatHexDump(base addr.Address, data []byte) string {
	var b strings.Builder
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		row := data[off:end]
		fmt.Fprintf(&b, "%s: ", base.Add(int64(off)))
		for _, byt := range row {
			fmt.Fprintf(&b, "%02x ", byt)
		}
		fmt.Fprintln(&b)
	}
	return strings.TrimRight(b.String(), "\n")
}
