// Command pdbg is the CLI entry point: a cobra root command with
// exec/attach subcommands that construct a proc.Controller and hand it
// to the interactive shell.
//
// Grounded on github.com/go-delve/delve's cmd/dlv/main.go (cobra root
// command, --log/--log-output flags, runtime.LockOSThread in main)
// with the rpc/service/DAP server wiring stripped out, since remote
// debugging is an explicit Non-goal here.
package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"

	"github.com/creack/pty"
	"github.com/spf13/cobra"

	"github.com/ptracer/ptracer/internal/shell"
	"github.com/ptracer/ptracer/pkg/config"
	"github.com/ptracer/ptracer/pkg/logflags"
	"github.com/ptracer/ptracer/pkg/proc"
)

var (
	verboseLog bool
	logOutput  string
	useTTY     bool
)

func main() {
	// ptrace requires every request for a given tracee to come from
	// the same OS thread; the Go runtime is otherwise free to migrate
	// a goroutine between threads between calls.
	runtime.LockOSThread()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "pdbg",
		Short: "a native x86-64 Linux process debugger",
	}
	root.PersistentFlags().BoolVar(&verboseLog, "log", false, "enable debug logging")
	root.PersistentFlags().StringVar(&logOutput, "log-output", "", "comma-separated log targets: ptrace, shell, all")

	execCmd := &cobra.Command{
		Use:   "exec <path> [args...]",
		Short: "launch and trace a new process",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runExec,
	}
	execCmd.Flags().BoolVar(&useTTY, "tty", false, "give the tracee its own pty instead of inheriting this terminal's stdout")

	attachCmd := &cobra.Command{
		Use:   "attach <pid>",
		Short: "attach to a running process",
		Args:  cobra.ExactArgs(1),
		RunE:  runAttach,
	}

	root.AddCommand(execCmd, attachCmd)
	return root
}

func setupLogging() error {
	return logflags.Setup(verboseLog, logOutput)
}

func runExec(cmd *cobra.Command, args []string) error {
	if err := setupLogging(); err != nil {
		return err
	}

	stdoutFD := -1
	var ptmx *os.File
	if useTTY {
		m, s, err := pty.Open()
		if err != nil {
			return fmt.Errorf("open pty for tracee: %w", err)
		}
		defer s.Close()
		defer m.Close()
		stdoutFD = int(s.Fd())
		ptmx = m
		go io.Copy(os.Stdout, ptmx)
	}

	ctrl, err := proc.Launch(args[0], args[1:], stdoutFD)
	if err != nil {
		return err
	}
	return runShell(ctrl)
}

func runAttach(cmd *cobra.Command, args []string) error {
	if err := setupLogging(); err != nil {
		return err
	}
	pid, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid pid %q: %w", args[0], err)
	}
	ctrl, err := proc.Attach(pid)
	if err != nil {
		return err
	}
	return runShell(ctrl)
}

func runShell(ctrl *proc.Controller) error {
	defer ctrl.Close()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	session, err := shell.NewSession(ctrl, cfg)
	if err != nil {
		return err
	}
	repl := shell.NewREPL(session)
	defer repl.Close()
	return repl.Run(os.Stdout, "pdbg> ")
}
