package chat

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// CandidateFunc supplies path-completion candidates for the file set,
// typically a version-control tracked-file listing.
type CandidateFunc func() []string

// FileSet tracks which files are part of the conversation context.
// Committed files survive across turns; the pending subset marks files
// whose content has not been delivered to the model since they were
// added or last invalidated. Pending is always a subset of committed.
type FileSet struct {
	mu          sync.Mutex
	workspace   string
	committed   []string // insertion order
	index       map[string]struct{}
	pending     map[string]struct{}
	candidateFn CandidateFunc
	logger      *zap.Logger
}

// NewFileSet creates a FileSet bound to the given workspace root.
func NewFileSet(workspace string, logger *zap.Logger) *FileSet {
	if logger == nil {
		logger = zap.NewNop()
	}
	if abs, err := filepath.Abs(workspace); err == nil {
		workspace = abs
	}
	return &FileSet{
		workspace: workspace,
		index:     make(map[string]struct{}),
		pending:   make(map[string]struct{}),
		logger:    logger,
	}
}

// Normalize resolves path against the workspace root. Paths under the
// root are stored root-relative; everything else stays absolute.
func (s *FileSet) Normalize(path string) string {
	p := path
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.workspace, p)
	}
	p = filepath.Clean(p)
	rel, err := filepath.Rel(s.workspace, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return rel
}

// AddResult reports the outcome of AddMany per input path.
type AddResult struct {
	Added    []string
	NotFound []string
}

// AddMany normalizes each path and, when the file exists on disk, adds
// it to both the committed and pending sets. Adding is idempotent.
// Missing paths are classified as not-found and skipped; they never
// abort the batch.
func (s *FileSet) AddMany(paths []string) AddResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res AddResult
	for _, path := range paths {
		p := s.Normalize(path)
		if _, err := os.Stat(s.abs(p)); err != nil {
			res.NotFound = append(res.NotFound, path)
			continue
		}
		if _, ok := s.index[p]; !ok {
			s.index[p] = struct{}{}
			s.committed = append(s.committed, p)
		}
		s.pending[p] = struct{}{}
		res.Added = append(res.Added, path)
	}
	return res
}

// Remove deletes a normalized path from both sets. Removing a path that
// was never added is a no-op; the return value reports whether anything
// was removed.
func (s *FileSet) Remove(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, p)
	if _, ok := s.index[p]; !ok {
		return false
	}
	delete(s.index, p)
	for i, f := range s.committed {
		if f == p {
			s.committed = append(s.committed[:i], s.committed[i+1:]...)
			break
		}
	}
	return true
}

// Clear empties both the committed and pending sets.
func (s *FileSet) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.committed = nil
	s.index = make(map[string]struct{})
	s.pending = make(map[string]struct{})
}

// HasPending reports whether any committed file still awaits delivery.
func (s *FileSet) HasPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) > 0
}

// ClearPending empties only the pending set, leaving committed files
// intact. Called once pending content has been read and sent.
func (s *FileSet) ClearPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = make(map[string]struct{})
}

// MarkPending flags an already-committed file for re-delivery, used when
// its on-disk content changed. Unknown paths are ignored; the return
// value reports whether the file was marked.
func (s *FileSet) MarkPending(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[p]; !ok {
		return false
	}
	s.pending[p] = struct{}{}
	return true
}

// List returns the committed files in insertion order.
func (s *FileSet) List() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.committed))
	copy(out, s.committed)
	return out
}

// SetCandidateFunc installs the completion-candidate generator.
func (s *FileSet) SetCandidateFunc(fn CandidateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidateFn = fn
}

// Candidates returns path-completion candidates, or nil when no
// generator is configured.
func (s *FileSet) Candidates() []string {
	s.mu.Lock()
	fn := s.candidateFn
	s.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn()
}

// ReadAll reads every committed file and returns the concatenated
// content plus the paths read successfully. Each file block is prepended,
// so the most recently added file appears earliest in the result. The
// pending set is cleared as a side effect; the committed set is left
// untouched. Unreadable files are skipped with a warning.
//
// Resending the whole committed set whenever anything is pending is the
// contract callers rely on: one stale file invalidates the entire block.
func (s *FileSet) ReadAll() (string, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.committed) == 0 {
		return "", nil
	}
	var content string
	var read []string
	for _, p := range s.committed {
		data, err := os.ReadFile(s.abs(p))
		if err != nil {
			s.logger.Warn("context file unreadable, skipping",
				zap.String("path", p), zap.Error(err))
			continue
		}
		read = append(read, p)
		s.logger.Debug("adding content from context file", zap.String("path", p))
		content = fmt.Sprintf("\n====FILE: %s====\n%s\n\n%s", p, data, content)
	}
	s.pending = make(map[string]struct{})
	return content, read
}

func (s *FileSet) abs(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.workspace, p)
}
