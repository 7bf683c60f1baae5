// Package project discovers repository files for the conversation
// context and renders the repository map injected into coder sessions.
package project

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

const gitTimeout = 10 * time.Second

// Manager answers repository questions for a single workspace root.
type Manager struct {
	workspace string
	logger    *zap.Logger
}

// NewManager creates a Manager for the given workspace root.
func NewManager(workspace string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{workspace: workspace, logger: logger}
}

// TrackedFiles returns the version-controlled files under the workspace,
// sorted. Workspaces that are not a git repository (or have no git
// binary available) yield an empty list, never an error.
func (m *Manager) TrackedFiles() []string {
	ctx, cancel := context.WithTimeout(context.Background(), gitTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files")
	cmd.Dir = m.workspace
	out, err := cmd.Output()
	if err != nil {
		m.logger.Debug("git ls-files failed, no tracked files", zap.Error(err))
		return nil
	}

	var files []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			files = append(files, line)
		}
	}
	sort.Strings(files)
	return files
}

// RepoMap renders a listing of tracked files, marking the ones already
// part of the chat context. The result is opaque text to the state
// engine; an empty repository produces an empty map.
func (m *Manager) RepoMap(chatFiles []string) string {
	files := m.TrackedFiles()
	if len(files) == 0 {
		return ""
	}
	inChat := make(map[string]struct{}, len(chatFiles))
	for _, f := range chatFiles {
		inChat[f] = struct{}{}
	}

	var b strings.Builder
	b.WriteString("Repository files (* marks files already in chat):\n")
	for _, f := range files {
		if _, ok := inChat[f]; ok {
			b.WriteString("* ")
		} else {
			b.WriteString("  ")
		}
		b.WriteString(f)
		b.WriteByte('\n')
	}
	return b.String()
}
