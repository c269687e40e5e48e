// Package terminal implements the customer prompts over a line-oriented reader and
// writer such as stdin/stdout.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/Zhima-Mochi/juice-vending/internal/application"
)

// CancelWord typed at any prompt cancels it, the same as closing the input.
const CancelWord = "cancel"

const promptMarker = "> "

var _ interface {
	application.Prompter
	application.Notifier
} = (*Console)(nil)

type Console struct {
	mu  sync.Mutex
	in  *bufio.Reader
	out io.Writer
}

func New(in io.Reader, out io.Writer) *Console {
	return &Console{in: bufio.NewReader(in), out: out}
}

// PromptText shows message and reads one line. End of input or the cancel word
// yields application.Cancelled.
func (c *Console) PromptText(ctx context.Context, message string) (application.Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.printf("%s\n%s", message, promptMarker); err != nil {
		return application.Reply{}, err
	}
	line, ok, err := c.readLine(ctx)
	if err != nil || !ok {
		return application.Cancelled, err
	}
	if strings.EqualFold(strings.TrimSpace(line), CancelWord) {
		return application.Cancelled, nil
	}
	return application.Answer(line), nil
}

// PromptChoice accepts an option's 1-based number, its name, or its first letter,
// case-insensitively. Anything else is asked again.
func (c *Console) PromptChoice(ctx context.Context, message string, options []string) (int, bool, error) {
	if len(options) == 0 {
		return 0, false, errors.New("terminal: no options to choose from")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	menu := make([]string, len(options))
	for i, o := range options {
		menu[i] = fmt.Sprintf("%d) %s", i+1, o)
	}

	for {
		if err := c.printf("%s\n%s\n%s", message, strings.Join(menu, "  "), promptMarker); err != nil {
			return 0, false, err
		}
		line, ok, err := c.readLine(ctx)
		if err != nil || !ok {
			return 0, false, err
		}
		answer := strings.TrimSpace(line)
		if strings.EqualFold(answer, CancelWord) {
			return 0, false, nil
		}
		if idx, found := matchOption(answer, options); found {
			return idx, true, nil
		}
		if err := c.printf("Please answer with one of: %s\n", strings.Join(options, ", ")); err != nil {
			return 0, false, err
		}
	}
}

func (c *Console) Notify(_ context.Context, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.printf("%s\n", message)
}

func matchOption(answer string, options []string) (int, bool) {
	if answer == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(answer); err == nil {
		if n >= 1 && n <= len(options) {
			return n - 1, true
		}
		return 0, false
	}
	for i, o := range options {
		if strings.EqualFold(answer, o) {
			return i, true
		}
	}
	if len([]rune(answer)) == 1 {
		match := -1
		for i, o := range options {
			if o != "" && strings.EqualFold(answer, string([]rune(o)[0])) {
				if match >= 0 {
					return 0, false
				}
				match = i
			}
		}
		if match >= 0 {
			return match, true
		}
	}
	return 0, false
}

// readLine returns ok=false at end of input. A final line without a newline is
// still returned.
func (c *Console) readLine(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	line, err := c.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false, fmt.Errorf("terminal: read: %w", err)
	}
	if errors.Is(err, io.EOF) && line == "" {
		return "", false, nil
	}
	return strings.TrimRight(line, "\r\n"), true, nil
}

func (c *Console) printf(format string, args ...any) error {
	if _, err := fmt.Fprintf(c.out, format, args...); err != nil {
		return fmt.Errorf("terminal: write: %w", err)
	}
	return nil
}
