package shell

import (
	"strings"

	"github.com/cosiner/argv"
)

// Tokenize splits a shell input line into words, honoring quoting the
// same way a POSIX shell would (so an address expression or a quoted
// alias never gets split on internal whitespace). Grounded on the
// cosiner/argv tokenizer delve's own pkg/terminal pulls in for exactly
// this job.
func Tokenize(line string) ([]string, error) {
	if strings.TrimSpace(line) == "" {
		return nil, nil
	}
	groups, err := argv.Argv(line, nil, nil)
	if err != nil {
		return nil, err
	}
	if len(groups) == 0 {
		return nil, nil
	}
	return groups[0], nil
}
