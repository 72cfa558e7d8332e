package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"golang.org/x/term"
)

// errInterrupted is returned on Ctrl+C at the prompt.
var errInterrupted = errors.New("interrupted")

// lineReader reads one user line at a time.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close() error
}

// newLineReader uses readline with history on a terminal and plain buffered reads otherwise.
func newLineReader(historyFile string) (lineReader, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return &plainReader{r: bufio.NewReader(os.Stdin)}, nil
	}
	if historyFile != "" {
		if err := os.MkdirAll(filepath.Dir(historyFile), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %v", err)
		}
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            color.GreenString("User: "),
		HistoryFile:       historyFile,
		HistorySearchFold: true,
		InterruptPrompt:   "^C",
		EOFPrompt:         "quit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline instance: %v", err)
	}
	return &readlineReader{rl: rl}, nil
}

type readlineReader struct {
	rl *readline.Instance
}

func (r *readlineReader) ReadLine(prompt string) (string, error) {
	r.rl.SetPrompt(color.GreenString(prompt))
	line, err := r.rl.Readline()
	if err == readline.ErrInterrupt {
		return "", errInterrupted
	}
	return strings.TrimSpace(line), err
}

func (r *readlineReader) Close() error { return r.rl.Close() }

type plainReader struct {
	r *bufio.Reader
}

func (p *plainReader) ReadLine(prompt string) (string, error) {
	fmt.Print(prompt)
	line, err := p.r.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	return strings.TrimSpace(line), err
}

func (p *plainReader) Close() error { return nil }

// confirmer asks yes/no questions on the same reader the chat uses.
func confirmer(lr lineReader) func(msg string) (bool, error) {
	return func(msg string) (bool, error) {
		answer, err := lr.ReadLine(color.YellowString(msg) + " [y/N] ")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(answer) {
		case "y", "yes":
			return true, nil
		}
		return false, nil
	}
}
