// Package logflags wires the debugger's --log/--log-output CLI flags
// to a set of named logrus loggers, one per subsystem.
//
// Grounded on github.com/go-delve/delve's pkg/logflags/logflags.go:
// the same idea of a small set of named loggers (there: debugger,
// gdbwire, lldbout, debuglineerr, rpc, dap, minidump, fncall) gated by
// a comma-separated --log-output flag, narrowed here to the
// subsystems this engine actually has.
package logflags

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	ptraceLogger = "ptrace"
	shellLogger  = "shell"
)

var (
	ptrace *logrus.Entry
	shell  *logrus.Entry

	enabled = map[string]bool{}
)

func makeLogger(fields logrus.Fields) *logrus.Entry {
	l := logrus.New()
	l.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	l.Out = logrus.StandardLogger().Out
	l.Level = logrus.ErrorLevel
	return l.WithFields(fields)
}

func init() {
	ptrace = makeLogger(logrus.Fields{"layer": ptraceLogger})
	shell = makeLogger(logrus.Fields{"layer": shellLogger})
}

// Setup parses the --log-output value (a comma-separated subset of
// "ptrace", "shell", "all") and raises matching loggers to debug
// level; verbose, if true and no targets were named, enables all of
// them, matching delve's "--log alone means --log-output=debugger"
// default.
func Setup(verbose bool, logOutput string) error {
	targets := map[string]bool{}
	if logOutput != "" {
		for _, t := range strings.Split(logOutput, ",") {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if t != "all" && t != ptraceLogger && t != shellLogger {
				return fmt.Errorf("unknown log target %q (want ptrace, shell, or all)", t)
			}
			targets[t] = true
		}
	} else if verbose {
		targets["all"] = true
	}

	all := targets["all"]
	for _, name := range []string{ptraceLogger, shellLogger} {
		if all || targets[name] {
			enabled[name] = true
		}
	}
	if enabled[ptraceLogger] {
		ptrace.Logger.SetLevel(logrus.DebugLevel)
	}
	if enabled[shellLogger] {
		shell.Logger.SetLevel(logrus.DebugLevel)
	}
	return nil
}

// Ptrace is the logger for kernel tracing calls: attach/launch,
// resume/step, memory and register I/O.
func Ptrace() *logrus.Entry { return ptrace }

// Shell is the logger for the interactive REPL: command dispatch,
// parse errors, config loading.
func Shell() *logrus.Entry { return shell }

// PtraceEnabled reports whether the ptrace logger is at debug level,
// letting a caller skip formatting a message nobody will see.
func PtraceEnabled() bool { return enabled[ptraceLogger] }

// ShellEnabled reports whether the shell logger is at debug level.
func ShellEnabled() bool { return enabled[shellLogger] }
