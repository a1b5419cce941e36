package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// lineReader is the input a shell hands to the commands it runs, so that
// prompts read from the same buffer as the shell loop.
type lineReader struct {
	*bufio.Reader
	tty *os.File
}

func newLineReader(in io.Reader) *lineReader {
	switch r := in.(type) {
	case *lineReader:
		return r
	case *os.File:
		return &lineReader{Reader: bufio.NewReader(r), tty: r}
	default:
		return &lineReader{Reader: bufio.NewReader(in)}
	}
}

// readLine reads one trimmed line. EOF is returned only when nothing was
// read.
func (lr *lineReader) readLine() (string, error) {
	s, err := lr.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// prompter reads answers for one command. Passwords are masked when input
// is the terminal; piped input is read line by line.
type prompter struct {
	in  *lineReader
	out io.Writer
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{in: newLineReader(cmd.InOrStdin()), out: cmd.ErrOrStderr()}
}

// line prints prompt and reads one trimmed line.
func (p *prompter) line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	s, err := p.in.readLine()
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return s, nil
}

// password reads a password with masking when input is a terminal.
func (p *prompter) password(prompt string) (string, error) {
	if p.in.tty == nil || !term.IsTerminal(int(p.in.tty.Fd())) {
		return p.line(prompt)
	}
	fmt.Fprint(p.out, prompt)
	bytePassword, err := term.ReadPassword(int(p.in.tty.Fd()))
	fmt.Fprintln(p.out) // Add newline after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(bytePassword)), nil
}

// passwordOr returns flagValue if set, otherwise prompts for it.
func (p *prompter) passwordOr(flagValue, prompt string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	return p.password(prompt)
}
