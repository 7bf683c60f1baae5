package chat

import (
	"slices"
	"strings"
)

// RepoContext supplies repository knowledge for coder sessions: the
// tracked-file listing and the generated repository map. Both results
// are opaque text to the state engine.
type RepoContext interface {
	TrackedFiles() []string
	RepoMap(chatFiles []string) string
}

// CoderState specializes State with repository context: a once-per-session
// tracked-file listing and, when enabled, a generated repository map.
// Both are spliced in immediately after the system item (or at the front
// when no system item is present) so they sit ahead of file content and
// the trailing user instruction.
type CoderState struct {
	*State
	repo    RepoContext
	repoMap bool
}

// NewCoderState creates a coder conversation state. The repo collaborator
// also serves as the candidate generator for file-path completion.
func NewCoderState(p Params, repo RepoContext, repoMap bool) *CoderState {
	cs := &CoderState{
		State:   NewState(p),
		repo:    repo,
		repoMap: repoMap,
	}
	cs.State.itemsFn = cs.items
	cs.files.SetCandidateFunc(repo.TrackedFiles)
	return cs
}

func (cs *CoderState) items(userInput string) []item {
	items := cs.State.defaultItems(userInput)
	idx := 0
	if len(items) > 0 && items[0].tag == tagSystem {
		idx = 1
	}
	if cs.repoMap && !cs.meta[tagRepoMap] {
		repoMap := cs.repo.RepoMap(cs.files.List())
		items = slices.Insert(items, idx, item{tagRepoMap, repoMap})
		cs.meta[tagRepoMap] = true
	}
	if !cs.meta[tagFileList] {
		fileList := strings.Join(cs.repo.TrackedFiles(), "\n")
		items = slices.Insert(items, idx, item{tagFileList, fileList})
		cs.meta[tagFileList] = true
	}
	return items
}
