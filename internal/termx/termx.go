// Package termx reads secrets from the terminal without echo and falls back
// to plain line reads when input is piped.
package termx

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrEmpty is returned when the user enters nothing.
var ErrEmpty = errors.New("termx: empty input")

// Prompter reads answers from In and writes prompts to Out.
type Prompter struct {
	In  *os.File
	Out io.Writer

	lines *bufio.Reader
}

// Stdio returns a Prompter on stdin and stderr.
func Stdio() *Prompter {
	return &Prompter{In: os.Stdin, Out: os.Stderr}
}

// IsTerminal reports whether In is an interactive terminal.
func (p *Prompter) IsTerminal() bool {
	return term.IsTerminal(int(p.In.Fd()))
}

// Line reads one line of visible input.
func (p *Prompter) Line(prompt string) (string, error) {
	fmt.Fprint(p.Out, prompt)
	line, err := p.reader().ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return "", ErrEmpty
	}
	return line, nil
}

// Secret reads one line without echo on a terminal. Piped input is read as a
// plain line.
func (p *Prompter) Secret(prompt string) (string, error) {
	if !p.IsTerminal() {
		line, err := p.Line(prompt)
		if err == nil {
			fmt.Fprintln(p.Out)
		}
		return line, err
	}

	fmt.Fprint(p.Out, prompt)
	b, err := term.ReadPassword(int(p.In.Fd()))
	fmt.Fprintln(p.Out)
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", ErrEmpty
	}
	return string(b), nil
}

// NewSecret asks for a secret twice and requires both answers to match when
// In is a terminal.
func (p *Prompter) NewSecret(prompt, confirm string) (string, error) {
	first, err := p.Secret(prompt)
	if err != nil {
		return "", err
	}
	if !p.IsTerminal() {
		return first, nil
	}
	second, err := p.Secret(confirm)
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("termx: entries do not match")
	}
	return first, nil
}

func (p *Prompter) reader() *bufio.Reader {
	if p.lines == nil {
		p.lines = bufio.NewReader(p.In)
	}
	return p.lines
}
