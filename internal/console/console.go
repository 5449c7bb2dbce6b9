// Package console is the interactive terminal surface of TGArchive: line
// prompts, hidden password input and the rendered panels.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"golang.org/x/term"
)

// Console reads answers from in and renders to out.
type Console struct {
	in  *bufio.Reader
	out io.Writer

	// readSecret reads a line without echo; nil when in is not a terminal.
	readSecret func() (string, error)

	// pending carries the result of a read whose caller gave up on its
	// context. The next prompt takes that answer instead of starting a
	// second read on the same input.
	pending chan readResult
}

type readResult struct {
	line string
	err  error
}

// New creates a Console. Hidden input is used only when in is a terminal.
func New(in io.Reader, out io.Writer) *Console {
	c := &Console{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		c.readSecret = func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(out)
			return string(b), err
		}
	}
	return c
}

func (c *Console) readLine() (string, error) {
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// await runs read in the background and waits for it or for ctx. A read
// abandoned on cancellation stays pending for the next prompt.
func (c *Console) await(ctx context.Context, read func() (string, error)) (string, error) {
	if c.pending == nil {
		ch := make(chan readResult, 1)
		go func() {
			line, err := read()
			ch <- readResult{line: line, err: err}
		}()
		c.pending = ch
	}
	select {
	case r := <-c.pending:
		c.pending = nil
		return r.line, r.err
	case <-ctx.Done():
		fmt.Fprintln(c.out)
		return "", ctx.Err()
	}
}

// Ask prints label and reads one line. An empty answer yields def.
func (c *Console) Ask(ctx context.Context, label, def string) (string, error) {
	prompt := promptStyle.Render(label)
	if def != "" {
		prompt += " " + dimStyle.Render("("+def+")")
	}
	fmt.Fprint(c.out, prompt+": ")
	answer, err := c.await(ctx, c.readLine)
	if err != nil {
		return "", err
	}
	if answer == "" {
		return def, nil
	}
	return answer, nil
}

// Choose asks until the answer is one of choices.
func (c *Console) Choose(ctx context.Context, label string, choices []string, def string) (string, error) {
	full := label + " [" + strings.Join(choices, "/") + "]"
	for {
		answer, err := c.Ask(ctx, full, def)
		if err != nil {
			return "", err
		}
		if slices.Contains(choices, answer) {
			return answer, nil
		}
		fmt.Fprintln(c.out, errorStyle.Render("Please select one of the available options"))
	}
}

// AskSecret reads a line without echo when possible.
func (c *Console) AskSecret(ctx context.Context, label string) (string, error) {
	fmt.Fprint(c.out, promptStyle.Render(label)+": ")
	if c.readSecret == nil {
		return c.await(ctx, c.readLine)
	}
	s, err := c.await(ctx, c.readSecret)
	return strings.TrimSpace(s), err
}

// Code asks for the login code Telegram sent to phone.
func (c *Console) Code(ctx context.Context, phone string) (string, error) {
	c.Warn("Notice: Authorization required. A login code was sent to " + phone + ".")
	return c.Ask(ctx, "Enter the Login Code received on Telegram", "")
}

// Password asks for the two-step verification password.
func (c *Console) Password(ctx context.Context) (string, error) {
	return c.AskSecret(ctx, "Enter your 2FA Password")
}
