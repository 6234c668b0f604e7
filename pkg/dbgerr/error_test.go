package dbgerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestOSPreservesErrno(t *testing.T) {
	err := OS("poke tracee", unix.ESRCH)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poke tracee")
	assert.Contains(t, err.Error(), unix.ESRCH.Error())

	errno, ok := Errno(err)
	require.True(t, ok)
	assert.Equal(t, unix.ESRCH, errno)
}

func TestUsageHasNoErrno(t *testing.T) {
	err := Usagef("unknown register %q", "zax")
	assert.Equal(t, `unknown register "zax"`, err.Error())
	_, ok := Errno(err)
	assert.False(t, ok)
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &Error{Msg: "wrap", Cause: cause}
	assert.Equal(t, cause, errors.Unwrap(err))
}
