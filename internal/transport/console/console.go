// Package console is a line-oriented transport for running the bot from a
// terminal. Each line is an event from a single sender; replies are printed
// with their choices numbered.
//
// Input:
//
//	photo <path>   send the image file at path
//	#<n>           press the n-th choice of the last reply
//	exit | quit    stop the bot
//	anything else  sent as text
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/dmitrijs2005/supplierbot/internal/models"
	"github.com/dmitrijs2005/supplierbot/internal/netx"
	"golang.org/x/term"
)

// SenderID identifies the console user.
const SenderID = "console"

// maxImageBytes matches what the chat transport accepts.
const maxImageBytes = 20 << 20

// isTerminal is a test seam for term.IsTerminal.
var isTerminal = term.IsTerminal

type Transport struct {
	in     io.Reader
	out    io.Writer
	prompt bool

	mu   sync.Mutex
	last []models.Choice

	outMu sync.Mutex
}

// New reads from in and writes to out. The prompt is shown only when in is
// an interactive terminal.
func New(in io.Reader, out io.Writer) *Transport {
	t := &Transport{in: in, out: out}
	if f, ok := in.(*os.File); ok {
		t.prompt = isTerminal(int(f.Fd()))
	}
	return t
}

// Run reads lines until EOF, exit/quit or ctx cancellation.
func (t *Transport) Run(ctx context.Context, events chan<- models.Event) error {
	lines := make(chan string)
	errs := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(t.in)
		for {
			if t.prompt {
				_ = t.write("> ")
			}
			if !scanner.Scan() {
				errs <- scanner.Err()
				return
			}
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-errs:
					return err
				default:
					return nil
				}
			}

			ev, stop, err := t.parse(line)
			if stop {
				_ = t.write("Bye!\n")
				return nil
			}
			if err != nil {
				_ = t.write(err.Error() + "\n")
				continue
			}
			if ev == nil {
				continue
			}

			select {
			case events <- *ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (t *Transport) parse(line string) (*models.Event, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false, nil
	}

	switch {
	case line == "exit" || line == "quit":
		return nil, true, nil

	case strings.HasPrefix(line, "photo "):
		path := strings.TrimSpace(strings.TrimPrefix(line, "photo "))
		return &models.Event{SenderID: SenderID, Image: &models.ImageRef{ID: path}}, false, nil

	case strings.HasPrefix(line, "#"):
		n, err := strconv.Atoi(line[1:])
		if err != nil {
			break
		}
		t.mu.Lock()
		defer t.mu.Unlock()
		if n < 1 || n > len(t.last) {
			return nil, false, fmt.Errorf("no choice #%d", n)
		}
		return &models.Event{SenderID: SenderID, Choice: t.last[n-1].Token}, false, nil
	}

	return &models.Event{SenderID: SenderID, Text: line}, false, nil
}

// Send prints reply. Choices are numbered for selection with #<n>.
func (t *Transport) Send(_ context.Context, _ string, reply models.Reply) error {
	var b strings.Builder
	if reply.ImageURL != "" {
		fmt.Fprintf(&b, "[image] %s\n", reply.ImageURL)
	}
	b.WriteString(Plain(reply.Text))
	b.WriteString("\n")

	n := 0
	for _, row := range reply.ChoiceRows() {
		var cells []string
		for _, c := range row {
			n++
			cells = append(cells, fmt.Sprintf("#%d %s", n, c.Label))
		}
		fmt.Fprintf(&b, "  %s\n", strings.Join(cells, "   "))
	}

	if len(reply.Choices) > 0 {
		t.mu.Lock()
		t.last = append([]models.Choice(nil), reply.Choices...)
		t.mu.Unlock()
	}

	return t.write(b.String())
}

func (t *Transport) write(s string) error {
	t.outMu.Lock()
	defer t.outMu.Unlock()
	_, err := io.WriteString(t.out, s)
	return err
}

// FetchImage reads the image file named by the photo command.
func (t *Transport) FetchImage(_ context.Context, ref models.ImageRef) ([]byte, error) {
	st, err := os.Stat(ref.ID)
	if err != nil {
		return nil, err
	}
	if st.Size() > maxImageBytes {
		return nil, fmt.Errorf("%w: %d bytes", netx.ErrTooLarge, st.Size())
	}
	return os.ReadFile(ref.ID)
}

// Plain strips the Markdown markup used in replies: bold markers, code
// ticks and backslash escapes.
func Plain(s string) string {
	var b strings.Builder
	r := []rune(s)
	for i := 0; i < len(r); i++ {
		switch {
		case r[i] == '\\' && i+1 < len(r) && isPunct(r[i+1]):
			i++
		case r[i] == '*' && i+1 < len(r) && r[i+1] == '*':
			i++
			continue
		case r[i] == '`':
			continue
		}
		b.WriteRune(r[i])
	}
	return b.String()
}

func isPunct(r rune) bool {
	return r < 0x80 && strings.ContainsRune("!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~", r)
}
