//go:build linux && amd64

package proc

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Thin wrappers around the ptrace(2) requests this debugger uses,
// grounded on github.com/go-delve/delve's pkg/proc/native/ptrace_linux.go
// (golang.org/x/sys/unix already wraps most of these; the ones it
// doesn't, PEEKUSER/POKEUSER and the raw word PEEKDATA/POKEDATA, go
// through unix.Syscall6 directly, same as delve does).

func ptraceAttach(pid int) error { return unix.PtraceAttach(pid) }

func ptraceDetach(pid int) error { return unix.PtraceDetach(pid) }

func ptraceCont(pid, sig int) error { return unix.PtraceCont(pid, sig) }

func ptraceSingleStep(pid int) error { return unix.PtraceSingleStep(pid) }

func ptraceGetRegs(pid int, out []byte) error {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(pid, &regs); err != nil {
		return err
	}
	copy(out, (*(*[unsafe.Sizeof(regs)]byte)(unsafe.Pointer(&regs)))[:])
	return nil
}

func ptraceSetRegs(pid int, in []byte) error {
	var regs unix.PtraceRegs
	copy((*(*[unsafe.Sizeof(regs)]byte)(unsafe.Pointer(&regs)))[:], in)
	return unix.PtraceSetRegs(pid, &regs)
}

func ptraceGetFPRegs(pid int, out []byte) error {
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_GETFPREGS, uintptr(pid), 0, uintptr(unsafe.Pointer(&out[0])), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func ptraceSetFPRegs(pid int, in []byte) error {
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_SETFPREGS, uintptr(pid), 0, uintptr(unsafe.Pointer(&in[0])), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

func ptracePeekUser(pid int, offset int) (uint64, error) {
	var word uint64
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_PEEKUSR, uintptr(pid), uintptr(offset), uintptr(unsafe.Pointer(&word)), 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return word, nil
}

func ptracePokeUser(pid int, offset int, word uint64) error {
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_POKEUSR, uintptr(pid), uintptr(offset), uintptr(word), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// ptracePeekWord reads one 8-byte word of tracee memory via
// PTRACE_PEEKDATA, the word-granular fallback for readMemory.
func ptracePeekWord(pid int, address uintptr) (uint64, error) {
	var word uint64
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_PEEKDATA, uintptr(pid), address, uintptr(unsafe.Pointer(&word)), 0, 0)
	if errno != 0 {
		return 0, errno
	}
	return word, nil
}

// ptracePokeWord writes one 8-byte word of tracee memory via
// PTRACE_POKEDATA.
func ptracePokeWord(pid int, address uintptr, word uint64) error {
	_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_POKEDATA, uintptr(pid), address, uintptr(word), 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}

// processVMReadv reads n bytes from the tracee's address space in one
// syscall when the kernel supports it; callers fall back to
// word-scatter PTRACE_PEEKDATA on error (e.g. ENOSYS on old kernels, or
// EPERM under some sandboxes).
func processVMReadv(pid int, address uintptr, n int) ([]byte, error) {
	buf := make([]byte, n)
	localIov := unix.Iovec{Base: &buf[0]}
	localIov.SetLen(n)
	remoteIov := remoteIovec{base: address, len: uintptr(n)}
	read, _, errno := unix.Syscall6(unix.SYS_PROCESS_VM_READV,
		uintptr(pid),
		uintptr(unsafe.Pointer(&localIov)), 1,
		uintptr(unsafe.Pointer(&remoteIov)), 1,
		0)
	if errno != 0 {
		return nil, errno
	}
	return buf[:read], nil
}

// remoteIovec is like unix.Iovec but its base field is a plain uintptr
// instead of *byte, since it must hold an address that belongs to the
// tracee, not to this process.
type remoteIovec struct {
	base uintptr
	len  uintptr
}
