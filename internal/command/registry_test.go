package command

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arox/internal/termio"
)

// recordChannel captures writes for assertions.
type recordChannel struct {
	lines []string
}

func (c *recordChannel) ReadLine(ctx context.Context) (string, error) { return "", nil }

func (c *recordChannel) Write(ctx context.Context, content string) error {
	c.lines = append(c.lines, content)
	return nil
}

func (c *recordChannel) Sub(kind termio.Kind, title string) termio.Channel { return c }

func (c *recordChannel) output() string { return strings.Join(c.lines, "\n") }

// stubCommand records executions.
type stubCommand struct {
	aliases    []string
	executions []string
	execErr    error
	completes  []Completion
}

func (c *stubCommand) Aliases() []string    { return c.aliases }
func (c *stubCommand) Description() string  { return "stub" }

func (c *stubCommand) Execute(ctx context.Context, name, arg string) error {
	c.executions = append(c.executions, name+"|"+arg)
	return c.execErr
}

func (c *stubCommand) Completions(name, args string) []Completion { return c.completes }

func TestParse(t *testing.T) {
	tests := []struct {
		line     string
		wantName string
		wantArg  string
		wantOK   bool
	}{
		{"/add a.txt b.txt", "add", "a.txt b.txt", true},
		{"/reset", "reset", "", true},
		{"/", "", "", true},
		{"plain text", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			name, arg, ok := Parse(tt.line)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantArg, arg)
		})
	}
}

func TestRegistry_TryExecute(t *testing.T) {
	t.Run("non-command lines are not consumed", func(t *testing.T) {
		ch := &recordChannel{}
		r := NewRegistry(ch, nil)
		assert.False(t, r.TryExecute(context.Background(), "hello model"))
		assert.Empty(t, ch.lines)
	})

	t.Run("registered command receives name and arg", func(t *testing.T) {
		ch := &recordChannel{}
		r := NewRegistry(ch, nil)
		cmd := &stubCommand{aliases: []string{"add", "drop"}}
		r.Register(cmd)

		require.True(t, r.TryExecute(context.Background(), "/add a.txt b.txt"))
		require.True(t, r.TryExecute(context.Background(), "/drop a.txt"))
		assert.Equal(t, []string{"add|a.txt b.txt", "drop|a.txt"}, cmd.executions)
	})

	t.Run("unknown command is consumed with a notice", func(t *testing.T) {
		ch := &recordChannel{}
		r := NewRegistry(ch, nil)
		assert.True(t, r.TryExecute(context.Background(), "/bogus stuff"))
		assert.Contains(t, ch.output(), "Unknown command: /bogus")
	})

	t.Run("handler error is surfaced, not raised", func(t *testing.T) {
		ch := &recordChannel{}
		r := NewRegistry(ch, nil)
		r.Register(&stubCommand{aliases: []string{"model"}, execErr: assert.AnError})
		assert.True(t, r.TryExecute(context.Background(), "/model"))
		assert.Contains(t, ch.output(), "/model:")
	})
}

func TestRegistry_DuplicateAliasLastWins(t *testing.T) {
	ch := &recordChannel{}
	r := NewRegistry(ch, nil)
	first := &stubCommand{aliases: []string{"save"}}
	second := &stubCommand{aliases: []string{"save"}}
	r.Register(first)
	r.Register(second)

	require.True(t, r.TryExecute(context.Background(), "/save"))
	assert.Empty(t, first.executions)
	assert.Len(t, second.executions, 1)
	assert.Equal(t, []string{"save"}, r.Aliases(), "alias listed once")
}

func TestRegistry_Completions(t *testing.T) {
	ch := &recordChannel{}
	r := NewRegistry(ch, nil)
	r.Register(
		&stubCommand{aliases: []string{"add", "drop"}, completes: []Completion{{Text: "a.txt"}}},
		&stubCommand{aliases: []string{"model"}},
	)

	t.Run("non-command line yields nothing", func(t *testing.T) {
		assert.Empty(t, r.Completions("plain"))
	})

	t.Run("partial name filters aliases by substring", func(t *testing.T) {
		got := r.Completions("/od")
		require.Len(t, got, 1)
		assert.Equal(t, "model", got[0].Text)
		assert.Equal(t, -2, got[0].Start)
	})

	t.Run("past the name the command completes its own domain", func(t *testing.T) {
		got := r.Completions("/add a")
		require.Len(t, got, 1)
		assert.Equal(t, "a.txt", got[0].Text)
	})

	t.Run("unknown command past the name yields nothing", func(t *testing.T) {
		assert.Empty(t, r.Completions("/huh arg"))
	})
}

func TestFilterCandidates(t *testing.T) {
	candidates := []string{"main.go", "main_test.go", "README.md"}

	t.Run("filters by last token substring", func(t *testing.T) {
		got := FilterCandidates(candidates, "other.go main")
		require.Len(t, got, 2)
		assert.Equal(t, "main.go", got[0].Text)
		assert.Equal(t, -4, got[0].Start)
	})

	t.Run("trailing space starts a fresh token", func(t *testing.T) {
		got := FilterCandidates(candidates, "main.go ")
		assert.Len(t, got, 3)
	})

	t.Run("empty args matches everything", func(t *testing.T) {
		assert.Len(t, FilterCandidates(candidates, ""), 3)
	})
}
