package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	tracked []string
	repoMap string

	mapCalls int
}

func (f *fakeRepo) TrackedFiles() []string { return f.tracked }

func (f *fakeRepo) RepoMap(chatFiles []string) string {
	f.mapCalls++
	return f.repoMap
}

func TestCoderState_SplicesRepoContext(t *testing.T) {
	repo := &fakeRepo{tracked: []string{"main.go", "util.go"}, repoMap: "the map"}
	cs := NewCoderState(Params{
		Workspace:    t.TempDir(),
		SystemPrompt: "sys",
	}, repo, true)

	cs.AddUserInput("hello")
	msgs := cs.Transcript().Messages()
	require.GreaterOrEqual(t, len(msgs), 4)

	t.Run("system stays first", func(t *testing.T) {
		assert.Equal(t, RoleSystem, msgs[0].Role)
	})

	t.Run("file list and repo map follow the system item", func(t *testing.T) {
		assert.Equal(t, "file_list", msgs[1].Tag)
		assert.Contains(t, msgs[1].Content, "main.go")
		assert.Equal(t, "repo_map", msgs[2].Tag)
		assert.Contains(t, msgs[2].Content, "the map")
	})

	t.Run("user instruction trails", func(t *testing.T) {
		last := msgs[len(msgs)-1]
		assert.Contains(t, last.Content, "hello")
	})
}

func TestCoderState_OncePerSession(t *testing.T) {
	repo := &fakeRepo{tracked: []string{"main.go"}, repoMap: "map"}
	cs := NewCoderState(Params{Workspace: t.TempDir()}, repo, true)

	cs.AddUserInput("one")
	cs.AddUserInput("two")

	assert.Len(t, cs.Transcript().ByTag("file_list"), 1)
	assert.Len(t, cs.Transcript().ByTag("repo_map"), 1)
	assert.Equal(t, 1, repo.mapCalls)

	t.Run("flags reset with the transcript", func(t *testing.T) {
		cs.Reset()
		cs.AddUserInput("three")
		assert.Len(t, cs.Transcript().ByTag("file_list"), 1)
		assert.Equal(t, 2, repo.mapCalls)
	})
}

func TestCoderState_RepoMapDisabled(t *testing.T) {
	repo := &fakeRepo{tracked: []string{"main.go"}, repoMap: "map"}
	cs := NewCoderState(Params{Workspace: t.TempDir()}, repo, false)

	cs.AddUserInput("hello")
	assert.Empty(t, cs.Transcript().ByTag("repo_map"))
	assert.Len(t, cs.Transcript().ByTag("file_list"), 1)
	assert.Zero(t, repo.mapCalls)
}

func TestCoderState_NoSystemPromptInsertsAtFront(t *testing.T) {
	repo := &fakeRepo{tracked: []string{"main.go"}}
	cs := NewCoderState(Params{Workspace: t.TempDir()}, repo, false)

	cs.AddUserInput("hello")
	msgs := cs.Transcript().Messages()
	require.NotEmpty(t, msgs)
	assert.Equal(t, "file_list", msgs[0].Tag)
}

func TestCoderState_CandidateGenerator(t *testing.T) {
	repo := &fakeRepo{tracked: []string{"x.go"}}
	cs := NewCoderState(Params{Workspace: t.TempDir()}, repo, false)
	assert.Equal(t, []string{"x.go"}, cs.Files().Candidates())
}
