// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/term"
)

// Prompter is the console capability the driver and authenticator use.
type Prompter interface {
	// Prompt reads one line of visible input.
	Prompt(label string) (string, error)
	// PromptSecret reads one line without echo when the input is a terminal.
	PromptSecret(label string) (string, error)
	// Printf writes to the user.
	Printf(format string, args ...any)
}

// Terminal prompts on an input stream and writes to an output stream.
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
	// fd is the terminal file descriptor, -1 when input is not a terminal.
	fd int
}

// NewTerminal creates a Terminal reading from in. Secrets are read without
// echo when in is a terminal.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	fd := -1
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd = int(f.Fd())
	}
	return &Terminal{in: bufio.NewReader(in), out: out, fd: fd}
}

// Prompt implements Prompter. Returns io.EOF when input ends before any text.
func (t *Terminal) Prompt(label string) (string, error) {
	_, _ = fmt.Fprintf(t.out, "%s: ", label)
	return t.readLine()
}

// PromptSecret implements Prompter.
func (t *Terminal) PromptSecret(label string) (string, error) {
	_, _ = fmt.Fprintf(t.out, "%s: ", label)
	if t.fd < 0 {
		return t.readLine()
	}
	secret, err := term.ReadPassword(t.fd)
	_, _ = fmt.Fprintln(t.out)
	if err != nil {
		return "", oops.Code("CONSOLE_READ_FAILED").With("label", label).Wrap(err)
	}
	return string(secret), nil
}

// Printf implements Prompter.
func (t *Terminal) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(t.out, format, args...)
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", io.EOF
		}
		return "", oops.Code("CONSOLE_READ_FAILED").Wrap(err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
