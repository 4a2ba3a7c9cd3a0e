// Package repl runs the line-editing loop around the hub.
package repl

import (
	"io"
	"strings"

	"github.com/lmorg/readline"

	"github.com/tenorlang/tenor/source/hub"
	"github.com/tenorlang/tenor/source/text"
)

func Start(hub *hub.Hub, in io.Reader, out io.Writer) {
	rline := readline.NewInstance()
	for {
		rline.SetPrompt(makePrompt(hub))
		line, _ := rline.Readline()

		line = strings.TrimSpace(line)

		if line == "" {
			continue
		}

		quit := hub.Do(line)
		if quit {
			break
		}
	}
}

func makePrompt(hub *hub.Hub) string {
	if hub.CurrentContractName() == "" {
		return text.PROMPT
	}
	return hub.CurrentContractName() + " " + text.PROMPT
}
