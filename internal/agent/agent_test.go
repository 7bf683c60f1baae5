package agent

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arox/internal/chat"
	"arox/internal/llm"
	"arox/internal/termio"
)

// fakeClient replays canned responses and records every request. An
// optional hook runs before each response, standing in for side effects
// that happen while a completion is in flight.
type fakeClient struct {
	requests []llm.Request
	text     string
	stream   []string
	err      error
	hook     func(call int)
}

func (c *fakeClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	call := len(c.requests)
	c.requests = append(c.requests, req)
	if c.hook != nil {
		c.hook(call)
	}
	if c.err != nil {
		return nil, c.err
	}
	if c.stream != nil {
		return &llm.Response{Stream: &fakeStream{frags: c.stream}}, nil
	}
	return &llm.Response{Text: c.text}, nil
}

type fakeStream struct {
	frags []string
	pos   int
}

func (s *fakeStream) Next() (string, error) {
	if s.pos >= len(s.frags) {
		return "", io.EOF
	}
	frag := s.frags[s.pos]
	s.pos++
	return frag, nil
}

func newTestAgent(t *testing.T, input string, client llm.CompletionClient, opts func(*Options)) (*Agent, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	ws := t.TempDir()
	o := Options{
		Name:      "tester",
		Workspace: ws,
		Channel:   termio.NewTextChannel(strings.NewReader(input), &out),
		State:     chat.NewState(chat.Params{Workspace: ws, SystemPrompt: "be helpful", ModelRef: "gemini-2.5-flash"}),
		Client:    client,
	}
	if opts != nil {
		opts(&o)
	}
	a, err := New(o)
	require.NoError(t, err)
	return a, &out
}

func TestNew_Validation(t *testing.T) {
	base := func() Options {
		return Options{
			Channel: termio.NewTextChannel(strings.NewReader(""), io.Discard),
			State:   chat.NewState(chat.Params{}),
			Client:  &fakeClient{},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Options)
	}{
		{"missing state", func(o *Options) { o.State = nil }},
		{"missing channel", func(o *Options) { o.Channel = nil }},
		{"missing client", func(o *Options) { o.Client = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := base()
			tt.mutate(&o)
			_, err := New(o)
			assert.Error(t, err)
		})
	}

	o := base()
	a, err := New(o)
	require.NoError(t, err)
	assert.NotEmpty(t, a.ID())
	assert.Equal(t, defaultMaxRounds, a.maxRounds)
}

func TestStart_RoutesCommandsAndTurns(t *testing.T) {
	client := &fakeClient{text: "model reply"}
	a, out := newTestAgent(t, "\n/info\nhello there\n", client, nil)

	require.NoError(t, a.Start(context.Background()))

	// The slash line and the blank line never reach the model.
	require.Len(t, client.requests, 1)
	assert.Contains(t, out.String(), "Current model: gemini-2.5-flash")
	assert.Contains(t, out.String(), "model reply")

	req := client.requests[0]
	assert.Equal(t, "gemini-2.5-flash", req.Model)
	assert.True(t, req.Stream)
	last := req.Messages[len(req.Messages)-1]
	assert.Equal(t, chat.RoleUser, last.Role)
	assert.Contains(t, last.Content, "hello there")
}

func TestStart_TurnFailureDoesNotEndLoop(t *testing.T) {
	client := &fakeClient{err: errors.New("backend down")}
	a, out := newTestAgent(t, "hello\n/reset\n", client, nil)

	require.NoError(t, a.Start(context.Background()))

	assert.Contains(t, out.String(), "Error: completion failed: backend down")
	assert.Contains(t, out.String(), "Reset complete.")
}

func TestStart_UnknownCommandConsumed(t *testing.T) {
	client := &fakeClient{}
	a, out := newTestAgent(t, "/frobnicate now\n", client, nil)

	require.NoError(t, a.Start(context.Background()))
	assert.Empty(t, client.requests)
	assert.Contains(t, out.String(), "Unknown command: /frobnicate")
}

func TestStep_SingleRoundWhenNothingPending(t *testing.T) {
	client := &fakeClient{text: "done"}
	a, _ := newTestAgent(t, "", client, nil)

	require.NoError(t, a.Step(context.Background(), "summarize"))
	assert.Len(t, client.requests, 1)
	assert.Equal(t, "done", a.LastMessage())
}

func TestStep_RunsAnotherRoundForMidTurnPending(t *testing.T) {
	client := &fakeClient{text: "ok"}
	a, _ := newTestAgent(t, "", client, nil)

	path := filepath.Join(a.Workspace(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("n"), 0o644))
	res := a.Files().AddMany([]string{path})
	require.Empty(t, res.NotFound)

	// A change landing during the first completion re-marks the file, so
	// reconciliation must trigger exactly one more round.
	client.hook = func(call int) {
		if call == 0 {
			a.Files().MarkPending(a.Files().List()[0])
		}
	}

	require.NoError(t, a.Step(context.Background(), "look at my notes"))
	assert.Len(t, client.requests, 2)
}

func TestStep_RoundBound(t *testing.T) {
	client := &fakeClient{text: "ok"}
	a, _ := newTestAgent(t, "", client, func(o *Options) { o.MaxRounds = 3 })

	path := filepath.Join(a.Workspace(), "hot.txt")
	require.NoError(t, os.WriteFile(path, []byte("h"), 0o644))
	require.Empty(t, a.Files().AddMany([]string{path}).NotFound)

	// Pathological case: the file is re-marked on every completion.
	client.hook = func(int) {
		a.Files().MarkPending(a.Files().List()[0])
	}

	require.NoError(t, a.Step(context.Background(), "go"))
	assert.Len(t, client.requests, 3)
}

func TestComplete_StreamsFragmentsAndAccumulates(t *testing.T) {
	client := &fakeClient{stream: []string{"Hel", "", "lo!"}}
	a, out := newTestAgent(t, "", client, nil)

	require.NoError(t, a.Step(context.Background(), "greet me"))

	assert.Equal(t, "Hello!", a.LastMessage(), "empty fragments dropped, rest accumulated")
	assert.Contains(t, out.String(), "Hello!\n")
}

func TestStart_EOFExitsClean(t *testing.T) {
	a, _ := newTestAgent(t, "", &fakeClient{}, nil)
	require.NoError(t, a.Start(context.Background()))
}
