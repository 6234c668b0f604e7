package shell

import (
	"fmt"
	"io"
	"strings"

	"github.com/derekparker/trie"
	"github.com/go-delve/liner"

	"github.com/ptracer/ptracer/pkg/logflags"
)

// REPL drives a Session through a liner.State read-eval-print loop:
// history, line editing, and command-name prefix completion, grounded
// on github.com/go-delve/delve's pkg/terminal/terminal.go Run loop.
type REPL struct {
	session *Session
	line    *liner.State
	names   *trie.Trie
}

// NewREPL wraps session in a liner-backed loop with tab completion
// seeded from the command table and history persisted across runs
// within the process only (no history file, unlike delve's terminal,
// since this engine has no notion of a user config location beyond
// the alias file already covered by pkg/config).
func NewREPL(session *Session) *REPL {
	l := liner.NewLiner()
	l.SetCtrlCAborts(true)

	names := trie.New()
	for _, n := range session.Commands.Names() {
		names.Add(n, nil)
	}

	r := &REPL{session: session, line: l, names: names}
	l.SetCompleter(r.complete)
	return r
}

func (r *REPL) complete(line string) []string {
	matches := r.names.PrefixSearch(line)
	return matches
}

// Close releases the underlying terminal state.
func (r *REPL) Close() error { return r.line.Close() }

// Run reads commands from prompt until the user runs exit, sends EOF,
// or aborts the prompt with Ctrl-C.
func (r *REPL) Run(out io.Writer, prompt string) error {
	for !r.session.Quit() {
		line, err := r.line.Prompt(prompt)
		if err == io.EOF {
			return nil
		}
		if err == liner.ErrPromptAborted {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		r.line.AppendHistory(line)

		if logflags.ShellEnabled() {
			logflags.Shell().Debugf("dispatch %q", line)
		}
		result, err := r.session.Dispatch(line)
		if err != nil {
			fmt.Fprintln(out, "error:", err)
			continue
		}
		if result != "" {
			fmt.Fprintln(out, result)
		}
	}
	return nil
}
