package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// prompter reads answers from the terminal. Secrets are read without echo
// when the input is a terminal and as plain lines otherwise.
type prompter struct {
	in     *bufio.Reader
	out    io.Writer
	fd     int
	isTerm bool
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
		p.isTerm = true
	}
	return p
}

// Line prompts for one line of input
func (p *prompter) Line(label string) (string, error) {
	line, err := p.raw(label)
	return strings.TrimSpace(line), err
}

// raw reads one line and strips only its terminator
func (p *prompter) raw(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Secret prompts for input that must not be echoed
func (p *prompter) Secret(label string) (string, error) {
	if !p.isTerm {
		return p.raw(label)
	}
	fmt.Fprintf(p.out, "%s: ", label)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
