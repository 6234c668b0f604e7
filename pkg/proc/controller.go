//go:build linux && amd64

// Package proc implements the process controller: the component that
// owns a traced process end to end — launching or attaching to it,
// driving it through PTRACE_CONT/SINGLESTEP and waitpid, and mediating
// every register, memory and stop-point operation the rest of the
// debugger issues against it.
//
// Grounded on github.com/go-delve/delve's pkg/proc/native (the
// "NativeProcess owns ptrace" shape) and the older proctl generation's
// Continue/Step pairing of a breakpoint-aware PC check with a plain
// ptrace call, adapted to this debugger's narrower single-threaded,
// single-tracee, x86-64-Linux-only scope.
package proc

import (
	"encoding/binary"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/ptracer/ptracer/pkg/addr"
	"github.com/ptracer/ptracer/pkg/breakpoint"
	"github.com/ptracer/ptracer/pkg/dbgerr"
	"github.com/ptracer/ptracer/pkg/debugregs"
	"github.com/ptracer/ptracer/pkg/registers"
	"github.com/ptracer/ptracer/pkg/stopset"
	"github.com/ptracer/ptracer/pkg/watchpoint"
)

// Controller owns one tracee. It implements registers.Backend,
// breakpoint.MemoryPoker, breakpoint.HardwareAllocator,
// watchpoint.MemoryReader and watchpoint.HardwareAllocator, so every
// stop-point it creates borrows the controller itself rather than
// holding a second reference to the tracee.
type Controller struct {
	pid      int
	state    State
	attached bool
	owning   bool // terminate-on-close, set by Launch, unset by Attach

	regs    *registers.File
	hwAlloc *debugregs.Allocator

	bpSites     *stopset.Set[*breakpoint.Site]
	watchpoints *stopset.Set[*watchpoint.Watchpoint]

	nextID         int // next positive id handed to create_breakpoint_site/create_watchpoint
	nextInternalID int // next negative id handed to internal breakpoint sites
}

func newController(pid int, attached, owning bool) *Controller {
	c := &Controller{
		pid:            pid,
		state:          StateStopped,
		attached:       attached,
		owning:         owning,
		nextID:         1,
		nextInternalID: -1,
	}
	c.regs = registers.NewFile(c)
	addrs, dr6, dr7 := c.regs.DebugRegisterPointers()
	c.hwAlloc = debugregs.New(addrs, dr6, dr7)
	c.bpSites = stopset.New[*breakpoint.Site]()
	c.watchpoints = stopset.New[*watchpoint.Watchpoint]()
	return c
}

// Launch starts path under ptrace, as argv[0] followed by args, and
// waits for the SIGTRAP the kernel raises at the initial exec. If
// stdoutFD is non-negative the tracee's stdout is replaced with it.
//
// The child's PTRACE_TRACEME + exec sequence runs through
// syscall.ForkExec's SysProcAttr.Ptrace, which performs the fork/traceme/
// exec steps below the Go runtime the same way a hand-rolled fork
// would but without risking a forked child running the Go scheduler;
// an exec failure there is already reported through ForkExec's error
// return via the identical close-on-exec pipe protocol this launch
// pipe models explicitly.
func Launch(path string, args []string, stdoutFD int) (*Controller, error) {
	argv := append([]string{path}, args...)

	p, err := newPipe()
	if err != nil {
		return nil, err
	}
	defer p.close()

	files := []uintptr{uintptr(os.Stdin.Fd()), uintptr(os.Stdout.Fd()), uintptr(os.Stderr.Fd())}
	if stdoutFD >= 0 {
		files[1] = uintptr(stdoutFD)
	}

	pid, err := syscall.ForkExec(path, argv, &syscall.ProcAttr{
		Files: files,
		Sys:   &syscall.SysProcAttr{Ptrace: true},
	})
	if err != nil {
		return nil, dbgerr.OS("launch tracee", err)
	}
	p.closeWrite()
	if errno, msg, _ := p.readChildError(); errno != 0 || msg != "" {
		var ws unix.WaitStatus
		_, _ = unix.Wait4(pid, &ws, 0, nil)
		return nil, dbgerr.Usagef("tracee failed to start: %s (errno %d)", msg, errno)
	}

	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return nil, dbgerr.OS("wait for initial exec-stop", err)
	}

	c := newController(pid, true, true)
	if err := c.regs.ReadAll(); err != nil {
		return nil, err
	}
	return c, nil
}

// Attach takes control of an already-running process via
// PTRACE_ATTACH and waits for the resulting stop. The controller does
// not own the tracee: Close detaches rather than kills it.
func Attach(pid int) (*Controller, error) {
	if err := ptraceAttach(pid); err != nil {
		return nil, dbgerr.OS("attach to pid", err)
	}
	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return nil, dbgerr.OS("wait for attach-stop", err)
	}
	c := newController(pid, true, false)
	if err := c.regs.ReadAll(); err != nil {
		return nil, err
	}
	return c, nil
}

// Pid returns the tracee's process id.
func (c *Controller) Pid() int { return c.pid }

// State returns the controller's current view of tracee state.
func (c *Controller) State() State { return c.state }

// Close tears the controller down: if the tracee is running it is
// stopped first, then detached; an owning controller (one created by
// Launch) also kills and reaps it.
func (c *Controller) Close() error {
	if c.pid == 0 {
		return nil
	}
	if c.state == StateRunning {
		_ = unix.Kill(c.pid, unix.SIGSTOP)
		var ws unix.WaitStatus
		_, _ = unix.Wait4(c.pid, &ws, 0, nil)
		c.state = StateStopped
	}
	if c.attached {
		_ = ptraceDetach(c.pid)
		_ = unix.Kill(c.pid, unix.SIGCONT)
	}
	if c.owning {
		_ = unix.Kill(c.pid, unix.SIGKILL)
		var ws unix.WaitStatus
		_, _ = unix.Wait4(c.pid, &ws, 0, nil)
	}
	c.pid = 0
	return nil
}

// Resume steps over a breakpoint currently sitting under the program
// counter (otherwise PTRACE_CONT would immediately re-trap on the same
// INT3 without making progress), then issues PTRACE_CONT.
func (c *Controller) Resume() error {
	if c.state != StateStopped {
		return dbgerr.Usagef("cannot resume: tracee is %s", c.state)
	}
	pc, err := c.regs.PC()
	if err != nil {
		return err
	}
	if site, ok := c.bpSites.GetByAddress(pc); ok && site.Enabled() && !site.IsHardware() {
		if _, err := c.StepInstruction(); err != nil {
			return err
		}
		if c.state != StateStopped {
			return nil // the step-over itself ran the tracee to exit/termination
		}
	}
	if err := ptraceCont(c.pid, 0); err != nil {
		return dbgerr.OS("resume tracee", err)
	}
	c.state = StateRunning
	return nil
}

// WaitOnSignal blocks in waitpid for the tracee's next state change,
// refreshes the register file on a stop, and resolves software
// breakpoint PC rewind and watchpoint data sampling for a trap stop.
func (c *Controller) WaitOnSignal() (StopReason, error) {
	var ws unix.WaitStatus
	if _, err := unix.Wait4(c.pid, &ws, 0, nil); err != nil {
		return StopReason{}, dbgerr.OS("wait for tracee", err)
	}
	switch {
	case ws.Exited():
		c.state = StateExited
		return StopReason{State: StateExited, Info: ws.ExitStatus()}, nil
	case ws.Signaled():
		c.state = StateTerminated
		return StopReason{State: StateTerminated, Info: int(ws.Signal())}, nil
	case ws.Stopped():
		c.state = StateStopped
		if err := c.regs.ReadAll(); err != nil {
			return StopReason{}, err
		}
		sig := ws.StopSignal()
		if sig == unix.SIGTRAP {
			if err := c.resolveTrapStop(); err != nil {
				return StopReason{}, err
			}
		}
		return StopReason{State: StateStopped, Info: int(sig)}, nil
	default:
		return StopReason{}, dbgerr.Usage("unrecognized wait status")
	}
}

// resolveTrapStop rewinds rip by one byte when the stop landed just
// past an enabled software breakpoint (INT3 leaves PC at address+1),
// and samples any watchpoint whose debug-register slot fired.
func (c *Controller) resolveTrapStop() error {
	pc, err := c.regs.PC()
	if err != nil {
		return err
	}
	if site, ok := c.bpSites.GetByAddress(pc - 1); ok && site.Enabled() && !site.IsHardware() {
		if err := c.regs.SetPC(pc - 1); err != nil {
			return err
		}
	}
	active := c.hwAlloc.ActiveSlots()
	if len(active) == 0 {
		return nil
	}
	for _, slot := range active {
		id := c.hwAlloc.OwnerOf(slot)
		if wp, ok := c.watchpoints.GetByID(id); ok {
			if err := wp.UpdateData(); err != nil {
				return err
			}
		}
	}
	return c.regs.WriteDebugRegister(6)
}

// StepInstruction executes exactly one tracee instruction, transparently
// disabling and re-enabling a software breakpoint sitting under the
// program counter so the step is never swallowed by the trap it would
// otherwise immediately re-enter.
func (c *Controller) StepInstruction() (StopReason, error) {
	if c.state != StateStopped {
		return StopReason{}, dbgerr.Usagef("cannot step: tracee is %s", c.state)
	}
	pc, err := c.regs.PC()
	if err != nil {
		return StopReason{}, err
	}
	var disabled *breakpoint.Site
	if site, ok := c.bpSites.GetByAddress(pc); ok && site.Enabled() && !site.IsHardware() {
		if err := site.Disable(); err != nil {
			return StopReason{}, err
		}
		disabled = site
	}
	if err := ptraceSingleStep(c.pid); err != nil {
		return StopReason{}, dbgerr.OS("single-step tracee", err)
	}
	c.state = StateRunning
	reason, err := c.WaitOnSignal()
	if err != nil {
		return reason, err
	}
	if disabled != nil && reason.State == StateStopped {
		if err := disabled.Enable(); err != nil {
			return reason, err
		}
	}
	return reason, nil
}

// GetPC returns the tracee's current instruction pointer.
func (c *Controller) GetPC() (addr.Address, error) {
	pc, err := c.regs.PC()
	return addr.Address(pc), err
}

// SetPC sets the tracee's instruction pointer, flushing it through
// PTRACE_POKEUSER immediately.
func (c *Controller) SetPC(a addr.Address) error {
	return c.regs.SetPC(uint64(a))
}

// GetRegisters returns the controller's register file.
func (c *Controller) GetRegisters() *registers.File { return c.regs }

// CreateBreakpointSite allocates an id (negative for internal sites)
// and inserts a disabled breakpoint site into the collection. Two
// sites may not share an address.
func (c *Controller) CreateBreakpointSite(address addr.Address, hardware, internal bool) (*breakpoint.Site, error) {
	if c.bpSites.ContainsAddress(uint64(address)) {
		return nil, dbgerr.Usagef("breakpoint site already exists at %s", address)
	}
	site := breakpoint.New(c.allocID(internal), address, hardware, internal, c, c)
	if err := c.bpSites.Insert(site); err != nil {
		return nil, err
	}
	return site, nil
}

// CreateWatchpoint allocates an id and inserts a disabled watchpoint
// into the collection. size must be one of watchpoint.ValidSizes.
func (c *Controller) CreateWatchpoint(address addr.Address, mode debugregs.Mode, size int) (*watchpoint.Watchpoint, error) {
	if c.watchpoints.ContainsAddress(uint64(address)) {
		return nil, dbgerr.Usagef("watchpoint already exists at %s", address)
	}
	wp, err := watchpoint.New(c.allocID(false), address, mode, size, c, c)
	if err != nil {
		return nil, err
	}
	if err := c.watchpoints.Insert(wp); err != nil {
		return nil, err
	}
	return wp, nil
}

// BreakpointSites returns the collection of software and hardware
// breakpoint sites.
func (c *Controller) BreakpointSites() *stopset.Set[*breakpoint.Site] { return c.bpSites }

// Watchpoints returns the collection of watchpoints.
func (c *Controller) Watchpoints() *stopset.Set[*watchpoint.Watchpoint] { return c.watchpoints }

func (c *Controller) allocID(internal bool) int {
	if internal {
		id := c.nextInternalID
		c.nextInternalID--
		return id
	}
	id := c.nextID
	c.nextID++
	return id
}

// ReadMemory reads n bytes from the tracee's address space, preferring
// one process_vm_readv call and falling back to word-scatter
// PTRACE_PEEKDATA when that syscall is unavailable or denied.
func (c *Controller) ReadMemory(address addr.Address, n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	if data, err := processVMReadv(c.pid, uintptr(address), n); err == nil && len(data) == n {
		return data, nil
	}
	return c.readMemoryViaPeek(address, n)
}

func (c *Controller) readMemoryViaPeek(address addr.Address, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	cur := uintptr(address)
	for len(out) < n {
		aligned := cur &^ 7
		word, err := ptracePeekWord(c.pid, aligned)
		if err != nil {
			return nil, dbgerr.OS("read tracee memory", err)
		}
		var wb [8]byte
		binary.LittleEndian.PutUint64(wb[:], word)
		start := int(cur - aligned)
		take := 8 - start
		if remaining := n - len(out); take > remaining {
			take = remaining
		}
		out = append(out, wb[start:start+take]...)
		cur = aligned + 8
	}
	return out, nil
}

// ReadMemoryWithoutTraps is ReadMemory with every enabled software
// breakpoint's 0xCC substituted back to its saved original byte, the
// view the disassembler and any caller that must see real code needs.
func (c *Controller) ReadMemoryWithoutTraps(address addr.Address, n int) ([]byte, error) {
	data, err := c.ReadMemory(address, n)
	if err != nil {
		return nil, err
	}
	c.bpSites.ForEach(func(s *breakpoint.Site) {
		if s.IsHardware() || !s.Enabled() {
			return
		}
		if !addr.Overlaps(address, n, s.VirtualAddress(), 1) {
			return
		}
		data[int(s.VirtualAddress())-int(address)] = s.SavedByte()
	})
	return data, nil
}

// WriteMemory writes data into the tracee word by word: each aligned
// 8-byte word touched is peeked, spliced, and poked back. A failure on
// word N leaves words before it written and aborts the rest; partial
// writes across words are not rolled back.
func (c *Controller) WriteMemory(address addr.Address, data []byte) error {
	cur := uintptr(address)
	written := 0
	for written < len(data) {
		aligned := cur &^ 7
		word, err := ptracePeekWord(c.pid, aligned)
		if err != nil {
			return dbgerr.OS("read tracee memory word before write", err)
		}
		var wb [8]byte
		binary.LittleEndian.PutUint64(wb[:], word)
		start := int(cur - aligned)
		take := 8 - start
		if remaining := len(data) - written; take > remaining {
			take = remaining
		}
		copy(wb[start:start+take], data[written:written+take])
		if err := ptracePokeWord(c.pid, aligned, binary.LittleEndian.Uint64(wb[:])); err != nil {
			return dbgerr.OS("write tracee memory", err)
		}
		written += take
		cur = aligned + 8
	}
	return nil
}

// PeekByte and PokeByte implement breakpoint.MemoryPoker.
func (c *Controller) PeekByte(address addr.Address) (byte, error) {
	b, err := c.ReadMemory(address, 1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *Controller) PokeByte(address addr.Address, b byte) error {
	return c.WriteMemory(address, []byte{b})
}

// AllocateSlot and FreeSlot implement breakpoint.HardwareAllocator and
// watchpoint.HardwareAllocator: find a free DR0-DR3 slot, pack its DR7
// bits, and flush both the slot and DR7 to the tracee.
func (c *Controller) AllocateSlot(id int, address addr.Address, mode debugregs.Mode, size int) (int, error) {
	idx, err := c.hwAlloc.FindFreeSlot()
	if err != nil {
		return 0, err
	}
	if err := c.hwAlloc.Set(idx, id, address, mode, size); err != nil {
		return 0, err
	}
	if err := c.regs.WriteDebugRegister(idx); err != nil {
		return 0, err
	}
	if err := c.regs.WriteDebugRegister(7); err != nil {
		return 0, err
	}
	return idx, nil
}

func (c *Controller) FreeSlot(idx int) error {
	c.hwAlloc.Clear(idx)
	return c.regs.WriteDebugRegister(7)
}

// GetGPRBlock, SetGPRBlock, GetFPRBlock, SetFPRBlock, PeekUser and
// PokeUser implement registers.Backend.
func (c *Controller) GetGPRBlock() ([]byte, error) {
	buf := make([]byte, registers.GPRBlockSize)
	if err := ptraceGetRegs(c.pid, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (c *Controller) SetGPRBlock(b []byte) error { return ptraceSetRegs(c.pid, b) }

func (c *Controller) GetFPRBlock() ([]byte, error) {
	buf := make([]byte, registers.FPRBlockSize)
	if err := ptraceGetFPRegs(c.pid, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func (c *Controller) SetFPRBlock(b []byte) error { return ptraceSetFPRegs(c.pid, b) }

func (c *Controller) PeekUser(offset int) (uint64, error) { return ptracePeekUser(c.pid, offset) }

func (c *Controller) PokeUser(offset int, word uint64) error { return ptracePokeUser(c.pid, offset, word) }
