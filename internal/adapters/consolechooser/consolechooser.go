// Package consolechooser is a terminal MyselfChooser: it lists the
// candidate users a single-chat Telegram export produced and reads the
// operator's pick from stdin. It is the only implementation of
// loader.MyselfChooser this module ships, purely so cmd/loadhistory has
// something runnable; the core loader package depends only on the
// loader.MyselfChooser interface, never on this package.
package consolechooser

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"historyloader/internal/domain/entity"
	"historyloader/internal/errs"
)

// Chooser prompts on an interactive terminal and fails fast on a
// non-interactive one instead of blocking forever on a read that will
// never come.
type Chooser struct {
	Prompt string // defaults to "Which user is you? " when empty
}

// ChooseMyself implements loader.MyselfChooser.
func (c Chooser) ChooseMyself(candidates []entity.User) (int, error) {
	if len(candidates) == 0 {
		return 0, errs.New(errs.MyselfChoiceOutOfRange, "consolechooser: no candidates to choose from")
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return 0, errs.New(errs.MyselfChoiceAborted, "consolechooser: stdin is not a terminal")
	}

	for i, u := range candidates {
		name := strings.TrimSpace(u.FirstName + " " + u.LastName)
		if name == "" {
			name = u.Username
		}
		fmt.Printf("  [%d] %s (id=%d)\n", i, name, u.ID)
	}

	prompt := c.Prompt
	if prompt == "" {
		prompt = "Which user is you? "
	}
	rl, err := readline.New(prompt)
	if err != nil {
		return 0, errs.Wrap(errs.MyselfChoiceAborted, err, "consolechooser: init readline")
	}
	defer rl.Close()

	line, err := rl.Readline()
	if err != nil {
		return 0, errs.Wrap(errs.MyselfChoiceAborted, err, "consolechooser: read answer")
	}

	idx, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, errs.Wrapf(errs.MyselfChoiceAborted, err, "consolechooser: %q is not a number", line)
	}
	if idx < 0 {
		return 0, errs.New(errs.MyselfChoiceAborted, "consolechooser: negative index %d", idx)
	}
	if idx >= len(candidates) {
		return 0, errs.New(errs.MyselfChoiceOutOfRange, "consolechooser: index %d out of range [0,%d)", idx, len(candidates))
	}
	return idx, nil
}
