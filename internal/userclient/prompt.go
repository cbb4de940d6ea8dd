package userclient

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// TerminalPrompter asks for login input on a console. The password is read
// without echo when the input is a terminal.
type TerminalPrompter struct {
	out io.Writer
	in  *bufio.Reader

	fd         int
	isTerminal func(fd int) bool
	readSecret func(fd int) ([]byte, error)
}

func NewTerminalPrompter(in *os.File, out io.Writer) *TerminalPrompter {
	p := newPrompter(in, out)
	p.fd = int(in.Fd())
	p.isTerminal = term.IsTerminal
	p.readSecret = term.ReadPassword
	return p
}

func newPrompter(in io.Reader, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{
		out:        out,
		in:         bufio.NewReader(in),
		fd:         -1,
		isTerminal: func(int) bool { return false },
	}
}

func (p *TerminalPrompter) Phone(ctx context.Context) (string, error) {
	return p.ask(ctx, "Enter your phone number (international format): ", false)
}

func (p *TerminalPrompter) Code(ctx context.Context) (string, error) {
	return p.ask(ctx, "Enter the code you received: ", false)
}

func (p *TerminalPrompter) Password(ctx context.Context, hint string) (string, error) {
	return p.ask(ctx, fmt.Sprintf("Enter the password (hint %s): ", hint), true)
}

type answer struct {
	text string
	err  error
}

func (p *TerminalPrompter) ask(ctx context.Context, question string, secret bool) (string, error) {
	if _, err := io.WriteString(p.out, question); err != nil {
		return "", err
	}
	ch := make(chan answer, 1)
	go func() {
		if secret && p.readSecret != nil && p.isTerminal(p.fd) {
			b, err := p.readSecret(p.fd)
			_, _ = io.WriteString(p.out, "\n")
			ch <- answer{text: string(b), err: err}
			return
		}
		line, err := p.in.ReadString('\n')
		if err == io.EOF && line != "" {
			err = nil
		}
		ch <- answer{text: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case a := <-ch:
		if a.err != nil {
			return "", fmt.Errorf("read answer: %w", a.err)
		}
		return strings.TrimSpace(a.text), nil
	}
}
