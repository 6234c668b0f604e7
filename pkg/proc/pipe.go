//go:build linux

package proc

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/ptracer/ptracer/pkg/dbgerr"
)

// pipe is the anonymous, close-on-exec pipe Launch opens before forking,
// the single-direction channel a child that fails to exec uses to ship
// its errno and a short message back to the parent. Both ends are
// always closed by the end of Launch, on every path.
//
// Go's own os/exec implements the identical protocol internally to
// report exec(2) failures through Cmd.Start's ordinary error return, so
// Launch below drives the fork/exec/traceme sequence through
// syscall.ForkExec rather than a hand-rolled fork (raw fork is unsafe
// in a Go process: the runtime's scheduler and garbage collector must
// not run in the forked child before exec). This type is kept as an
// explicit, separately testable primitive matching the pipe this
// debugger's launch procedure is specified to use, and is the channel
// through which any future pre-exec child-side setup would report
// failure.
type pipe struct {
	r, w int
}

func newPipe() (*pipe, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return nil, dbgerr.OS("create launch pipe", err)
	}
	return &pipe{r: fds[0], w: fds[1]}, nil
}

func (p *pipe) closeRead() {
	if p.r >= 0 {
		unix.Close(p.r)
		p.r = -1
	}
}

func (p *pipe) closeWrite() {
	if p.w >= 0 {
		unix.Close(p.w)
		p.w = -1
	}
}

func (p *pipe) close() {
	p.closeRead()
	p.closeWrite()
}

// readChildError drains the read end. A non-empty result encodes a
// child-reported launch failure: the first four bytes are the errno
// (little-endian int32), the rest is a human-readable message.
func (p *pipe) readChildError() (errno int32, msg string, err error) {
	buf := make([]byte, 4096)
	var all []byte
	for {
		n, rerr := unix.Read(p.r, buf)
		if n > 0 {
			all = append(all, buf[:n]...)
		}
		if n <= 0 || rerr != nil {
			break
		}
	}
	if len(all) < 4 {
		return 0, "", nil
	}
	return int32(binary.LittleEndian.Uint32(all[:4])), string(all[4:]), nil
}
