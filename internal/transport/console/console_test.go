package console

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/supplierbot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func runConsole(t *testing.T, tr *Transport) []models.Event {
	t.Helper()
	events := make(chan models.Event, 16)
	require.NoError(t, tr.Run(context.Background(), events))
	close(events)

	var got []models.Event
	for ev := range events {
		got = append(got, ev)
	}
	return got
}

func TestRun_ParsesLines(t *testing.T) {
	in := strings.NewReader("alize\n\n  /add Bravo  \nphoto /tmp/a.jpg\nexit\nnever read\n")
	out := &syncBuffer{}
	tr := New(in, out)

	got := runConsole(t, tr)

	require.Len(t, got, 3)
	assert.Equal(t, models.Event{SenderID: SenderID, Text: "alize"}, got[0])
	assert.Equal(t, models.Event{SenderID: SenderID, Text: "/add Bravo"}, got[1])
	require.NotNil(t, got[2].Image)
	assert.Equal(t, "/tmp/a.jpg", got[2].Image.ID)
	assert.Contains(t, out.String(), "Bye!")
	assert.NotContains(t, out.String(), "> ")
}

func TestRun_StopsAtEOF(t *testing.T) {
	tr := New(strings.NewReader("one"), &syncBuffer{})
	got := runConsole(t, tr)
	require.Len(t, got, 1)
	assert.Equal(t, "one", got[0].Text)
}

func TestRun_SelectsChoiceOfLastReply(t *testing.T) {
	out := &syncBuffer{}
	tr := New(strings.NewReader("#2\n#5\n#x\nquit\n"), out)

	require.NoError(t, tr.Send(context.Background(), SenderID, models.Reply{
		Text:    "found 2",
		Choices: []models.Choice{{Label: "Alize", Token: "v_Alize"}, {Label: "Alizee", Token: "v_Alizee"}},
	}))

	got := runConsole(t, tr)

	require.Len(t, got, 2)
	assert.Equal(t, models.Event{SenderID: SenderID, Choice: "v_Alizee"}, got[0])
	assert.Equal(t, models.Event{SenderID: SenderID, Text: "#x"}, got[1])
	assert.Contains(t, out.String(), "no choice #5")
}

func TestRun_StopsOnCancel(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close(); _ = r.Close() })

	old := isTerminal
	isTerminal = func(int) bool { return false }
	t.Cleanup(func() { isTerminal = old })

	tr := New(r, &syncBuffer{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- tr.Run(ctx, make(chan models.Event)) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("console did not stop")
	}
}

func TestNew_PromptOnTerminal(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	old := isTerminal
	isTerminal = func(int) bool { return true }
	t.Cleanup(func() { isTerminal = old })

	out := &syncBuffer{}
	tr := New(r, out)
	require.True(t, tr.prompt)

	_, _ = w.WriteString("hi\n")
	_ = w.Close()

	got := runConsole(t, tr)
	require.Len(t, got, 1)
	assert.True(t, strings.HasPrefix(out.String(), "> "))
}

func TestSend_PrintsCardAndChoices(t *testing.T) {
	out := &syncBuffer{}
	tr := New(strings.NewReader(""), out)

	err := tr.Send(context.Background(), SenderID, models.Reply{
		Text:          "**Alize**\nnote: \\*fast\\*",
		ImageURL:      "https://img/alize.jpg",
		Choices:       []models.Choice{{Label: "Add", Token: "m_add"}, {Label: "Cancel", Token: "m_cancel"}, {Label: "Refresh", Token: "m_ref"}},
		ChoicesPerRow: 2,
	})
	require.NoError(t, err)

	want := "[image] https://img/alize.jpg\n" +
		"Alize\nnote: *fast*\n" +
		"  #1 Add   #2 Cancel\n" +
		"  #3 Refresh\n"
	assert.Equal(t, want, out.String())
}

func TestPlain(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"**Bravo** saved", "Bravo saved"},
		{"use `/add`", "use /add"},
		{`a\_b\\c`, `a_b\c`},
		{`keep \q`, `keep \q`},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Plain(tt.in), tt.in)
	}
}

func TestFetchImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.jpg")
	require.NoError(t, os.WriteFile(path, []byte("img"), 0o600))

	tr := New(strings.NewReader(""), &syncBuffer{})

	data, err := tr.FetchImage(context.Background(), models.ImageRef{ID: path})
	require.NoError(t, err)
	assert.Equal(t, []byte("img"), data)

	_, err = tr.FetchImage(context.Background(), models.ImageRef{ID: filepath.Join(dir, "missing.jpg")})
	assert.ErrorIs(t, err, os.ErrNotExist)
}
