package term

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
	"golang.org/x/xerrors"
)

// Terminal обеспечивает интерактивный ввод секретов через терминал.
type Terminal struct {
	in      *bufio.Reader
	out     io.Writer
	stdinfd int
}

// NewTerminal создает новый экземпляр Terminal.
func NewTerminal() *Terminal {
	return &Terminal{
		in:      bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		stdinfd: int(os.Stdin.Fd()),
	}
}

// ReadToken запрашивает токен API без отображения вводимых символов.
func (t *Terminal) ReadToken() (string, error) {
	fmt.Fprint(t.out, "Enter API token: ")
	byteToken, err := term.ReadPassword(t.stdinfd)
	if err != nil {
		return "", xerrors.Errorf("failed to read token: %w", err)
	}
	fmt.Fprintln(t.out) // Новая строка после ввода
	return strings.TrimSpace(string(byteToken)), nil
}

// ReadLine запрашивает обычную строку (например, адрес получателя).
func (t *Terminal) ReadLine(prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	line, err := t.in.ReadString('\n')
	if err != nil {
		return "", xerrors.Errorf("failed to read line: %w", err)
	}
	return strings.TrimSpace(line), nil
}
