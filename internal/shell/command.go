// Package shell implements the interactive, line-oriented front end to
// a proc.Controller: a builtin command table, liner-backed line
// editing with history and prefix completion, and a small formatter
// for stop reasons, registers and disassembly.
//
// Grounded on github.com/go-delve/delve's command/command.go (the
// name -> handler map keyed by a Commands type, alias resolution, and
// the "fnargs string, aliases []string" shape of each entry) and
// pkg/terminal/terminal.go (wiring that map to a liner.State read-eval
// loop), narrowed to the dozen commands this engine's controller
// exposes instead of delve's full RPC-backed command set.
package shell

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ptracer/ptracer/pkg/addr"
	"github.com/ptracer/ptracer/pkg/breakpoint"
	"github.com/ptracer/ptracer/pkg/config"
	"github.com/ptracer/ptracer/pkg/dbgerr"
	"github.com/ptracer/ptracer/pkg/debugregs"
	"github.com/ptracer/ptracer/pkg/disasm"
	"github.com/ptracer/ptracer/pkg/proc"
	"github.com/ptracer/ptracer/pkg/registers"
	"github.com/ptracer/ptracer/pkg/watchpoint"
)

// HandlerFunc runs one shell command, given the unparsed words after
// the command name.
type HandlerFunc func(s *Session, args []string) (string, error)

// command is one entry in the builtin table: its canonical name,
// short aliases, a one-line help string (delve's command.Command
// carries the same three fields), and the handler.
type command struct {
	name    string
	aliases []string
	help    string
	fn      HandlerFunc
}

// Commands is the ordered, alias-resolving command table, mirroring
// delve's command/command.go Commands type.
type Commands struct {
	cmds []command
}

func (c *Commands) find(name string) *command {
	for i := range c.cmds {
		if c.cmds[i].name == name {
			return &c.cmds[i]
		}
		for _, a := range c.cmds[i].aliases {
			if a == name {
				return &c.cmds[i]
			}
		}
	}
	return nil
}

// Names returns every canonical command name, sorted, for completion.
func (c *Commands) Names() []string {
	names := make([]string, len(c.cmds))
	for i, cmd := range c.cmds {
		names[i] = cmd.name
	}
	sort.Strings(names)
	return names
}

// DefaultCommands builds the builtin command table wired to no
// controller yet; Session.Dispatch supplies the controller per call.
func DefaultCommands() *Commands {
	c := &Commands{}
	c.cmds = []command{
		{"break", []string{"b"}, "break <addr>           set a software breakpoint", cmdBreak},
		{"hbreak", []string{"hb"}, "hbreak <addr>           set a hardware breakpoint", cmdHBreak},
		{"watch", []string{"w"}, "watch <addr> <w|rw|x> <size>  set a watchpoint", cmdWatch},
		{"delete", []string{"d"}, "delete <id>             remove a breakpoint or watchpoint", cmdDelete},
		{"continue", []string{"c", "cont"}, "continue                resume the tracee", cmdContinue},
		{"step", []string{"s", "si"}, "step                    execute one instruction", cmdStep},
		{"regs", []string{"r"}, "regs                    print general purpose registers", cmdRegs},
		{"reg", nil, "reg <name> [value]      read or write one register", cmdReg},
		{"memory", []string{"m", "x"}, "memory <addr> <n>       read n bytes of tracee memory", cmdMemory},
		{"disassemble", []string{"disas"}, "disassemble <addr> [n]  disassemble n instructions", cmdDisassemble},
		{"list", []string{"l"}, "list                    list breakpoints and watchpoints", cmdList},
		{"help", []string{"?"}, "help                    list commands", cmdHelp},
		{"exit", []string{"quit", "q"}, "exit                    detach/kill and quit", cmdExit},
	}
	return c
}

// Session binds the command table to one controller, a config (for
// alias resolution), and a disassembler, for the lifetime of one
// debugging session.
type Session struct {
	Ctrl     *proc.Controller
	Cfg      *config.Config
	Commands *Commands
	disasm   *disasm.Decoder
	prevRegs map[string]uint64
	quit     bool
}

// NewSession creates a session around an already-launched or attached
// controller.
func NewSession(ctrl *proc.Controller, cfg *config.Config) (*Session, error) {
	dec, err := disasm.NewDecoder(decoderAdapter{ctrl}, 64)
	if err != nil {
		return nil, err
	}
	return &Session{
		Ctrl:     ctrl,
		Cfg:      cfg,
		Commands: DefaultCommands(),
		disasm:   dec,
		prevRegs: map[string]uint64{},
	}, nil
}

// decoderAdapter narrows *proc.Controller to disasm.MemoryReader.
type decoderAdapter struct{ c *proc.Controller }

func (d decoderAdapter) ReadMemoryWithoutTraps(address addr.Address, n int) ([]byte, error) {
	return d.c.ReadMemoryWithoutTraps(address, n)
}

// Quit reports whether the exit command has run.
func (s *Session) Quit() bool { return s.quit }

// Dispatch resolves aliases through cfg, looks up the command and
// runs it. An empty line is a no-op, matching delve's terminal REPL.
func (s *Session) Dispatch(line string) (string, error) {
	words, err := Tokenize(line)
	if err != nil {
		return "", dbgerr.Usagef("parse command line: %s", err)
	}
	if len(words) == 0 {
		return "", nil
	}
	name := s.Cfg.ResolveAlias(words[0])
	cmd := s.Commands.find(name)
	if cmd == nil {
		return "", dbgerr.Usagef("unknown command %q (try help)", words[0])
	}
	return cmd.fn(s, words[1:])
}

func parseAddress(text string) (addr.Address, error) {
	text = strings.TrimPrefix(text, "0x")
	v, err := strconv.ParseUint(text, 16, 64)
	if err != nil {
		return 0, dbgerr.Usagef("invalid address %q", text)
	}
	return addr.Address(v), nil
}

func cmdBreak(s *Session, args []string) (string, error) {
	return setBreakpoint(s, args, false)
}

func cmdHBreak(s *Session, args []string) (string, error) {
	return setBreakpoint(s, args, true)
}

func setBreakpoint(s *Session, args []string, hardware bool) (string, error) {
	if len(args) != 1 {
		return "", dbgerr.Usage("usage: break <addr>")
	}
	a, err := parseAddress(args[0])
	if err != nil {
		return "", err
	}
	site, err := s.Ctrl.CreateBreakpointSite(a, hardware, false)
	if err != nil {
		return "", err
	}
	if err := site.Enable(); err != nil {
		return "", err
	}
	kind := "software"
	if hardware {
		kind = "hardware"
	}
	return fmt.Sprintf("%s breakpoint %d set at %s", kind, site.ID(), a), nil
}

func cmdWatch(s *Session, args []string) (string, error) {
	if len(args) != 3 {
		return "", dbgerr.Usage("usage: watch <addr> <w|rw|x> <size>")
	}
	a, err := parseAddress(args[0])
	if err != nil {
		return "", err
	}
	var mode debugregs.Mode
	switch strings.ToLower(args[1]) {
	case "w":
		mode = debugregs.ModeWrite
	case "rw":
		mode = debugregs.ModeReadWrite
	case "x":
		mode = debugregs.ModeExecute
	default:
		return "", dbgerr.Usagef("unknown watch mode %q (want w, rw, or x)", args[1])
	}
	size, err := strconv.Atoi(args[2])
	if err != nil {
		return "", dbgerr.Usagef("invalid size %q", args[2])
	}
	wp, err := s.Ctrl.CreateWatchpoint(a, mode, size)
	if err != nil {
		return "", err
	}
	if err := wp.Enable(); err != nil {
		return "", err
	}
	return fmt.Sprintf("watchpoint %d set at %s", wp.ID(), a), nil
}

func cmdDelete(s *Session, args []string) (string, error) {
	if len(args) != 1 {
		return "", dbgerr.Usage("usage: delete <id>")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return "", dbgerr.Usagef("invalid id %q", args[0])
	}
	if s.Ctrl.BreakpointSites().ContainsID(id) {
		if err := s.Ctrl.BreakpointSites().RemoveByID(id); err != nil {
			return "", err
		}
		return fmt.Sprintf("breakpoint %d deleted", id), nil
	}
	if s.Ctrl.Watchpoints().ContainsID(id) {
		if err := s.Ctrl.Watchpoints().RemoveByID(id); err != nil {
			return "", err
		}
		return fmt.Sprintf("watchpoint %d deleted", id), nil
	}
	return "", dbgerr.Usagef("no breakpoint or watchpoint with id %d", id)
}

func cmdContinue(s *Session, args []string) (string, error) {
	if err := s.Ctrl.Resume(); err != nil {
		return "", err
	}
	reason, err := s.Ctrl.WaitOnSignal()
	if err != nil {
		return "", err
	}
	return FormatStopReason(reason, s.Ctrl), nil
}

func cmdStep(s *Session, args []string) (string, error) {
	reason, err := s.Ctrl.StepInstruction()
	if err != nil {
		return "", err
	}
	return FormatStopReason(reason, s.Ctrl), nil
}

func cmdRegs(s *Session, args []string) (string, error) {
	return FormatRegisters(s), nil
}

func cmdReg(s *Session, args []string) (string, error) {
	if len(args) < 1 {
		return "", dbgerr.Usage("usage: reg <name> [value]")
	}
	regs := s.Ctrl.GetRegisters()
	if len(args) == 1 {
		v, err := regs.Read(args[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s = %s", args[0], v.String()), nil
	}
	text := strings.TrimPrefix(args[1], "0x")
	u, err := strconv.ParseUint(text, 16, 64)
	if err != nil {
		return "", dbgerr.Usagef("invalid value %q", args[1])
	}
	d, err := registers.ByName(args[0])
	if err != nil {
		return "", err
	}
	if err := regs.WriteDescriptor(d, widenUint(d.Size, u)); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s = %#x", args[0], u), nil
}

// widenUint builds the narrowest unsigned Value variant that fits size
// bytes, zero-extending u's low bits; File.WriteDescriptor rejects a
// variant wider than the register regardless, so this only needs to
// not overshoot.
func widenUint(size int, u uint64) registers.Value {
	switch {
	case size <= 1:
		return registers.U8(uint8(u))
	case size <= 2:
		return registers.U16(uint16(u))
	case size <= 4:
		return registers.U32(uint32(u))
	default:
		return registers.U64(u)
	}
}

func cmdMemory(s *Session, args []string) (string, error) {
	if len(args) != 2 {
		return "", dbgerr.Usage("usage: memory <addr> <n>")
	}
	a, err := parseAddress(args[0])
	if err != nil {
		return "", err
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return "", dbgerr.Usagef("invalid length %q", args[1])
	}
	data, err := s.Ctrl.ReadMemoryWithoutTraps(a, n)
	if err != nil {
		return "", err
	}
	return FormatHexDump(a, data), nil
}

func cmdDisassemble(s *Session, args []string) (string, error) {
	if len(args) < 1 {
		return "", dbgerr.Usage("usage: disassemble <addr> [n]")
	}
	a, err := parseAddress(args[0])
	if err != nil {
		return "", err
	}
	n := s.Cfg.DisassembleInstructionCount
	if len(args) > 1 {
		n, err = strconv.Atoi(args[1])
		if err != nil {
			return "", dbgerr.Usagef("invalid instruction count %q", args[1])
		}
	}
	insts, err := s.disasm.Decode(a, n)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, ins := range insts {
		fmt.Fprintf(&b, "%s: %s\n", ins.Address, ins.Text)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func cmdList(s *Session, args []string) (string, error) {
	var b strings.Builder
	s.Ctrl.BreakpointSites().ForEach(func(site *breakpoint.Site) {
		kind := "sw"
		if site.IsHardware() {
			kind = "hw"
		}
		state := "disabled"
		if site.Enabled() {
			state = "enabled"
		}
		fmt.Fprintf(&b, "breakpoint %d %s %s at %s\n", site.ID(), kind, state, site.VirtualAddress())
	})
	s.Ctrl.Watchpoints().ForEach(func(wp *watchpoint.Watchpoint) {
		state := "disabled"
		if wp.Enabled() {
			state = "enabled"
		}
		fmt.Fprintf(&b, "watchpoint %d %s at %s (size %d)\n", wp.ID(), state, wp.VirtualAddress(), wp.Size())
	})
	if b.Len() == 0 {
		return "no breakpoints or watchpoints", nil
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func cmdHelp(s *Session, args []string) (string, error) {
	var b strings.Builder
	for _, name := range s.Commands.Names() {
		cmd := s.Commands.find(name)
		fmt.Fprintln(&b, cmd.help)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func cmdExit(s *Session, args []string) (string, error) {
	s.quit = true
	return "", nil
}
