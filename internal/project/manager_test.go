package project

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initRepo creates a git repository with the given tracked files and
// returns its root. Tests calling it are skipped when git is missing.
func initRepo(t *testing.T, files ...string) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	root := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = root
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	run("init", "-q")
	for _, f := range files {
		path := filepath.Join(root, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))
	}
	run(append([]string{"add", "--"}, files...)...)
	return root
}

func TestManager_TrackedFiles(t *testing.T) {
	root := initRepo(t, "main.go", "internal/util.go")
	m := NewManager(root, nil)

	got := m.TrackedFiles()
	assert.Equal(t, []string{"internal/util.go", "main.go"}, got, "sorted, root-relative")
}

func TestManager_TrackedFiles_NotARepo(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	assert.Nil(t, m.TrackedFiles())
}

func TestManager_RepoMap(t *testing.T) {
	root := initRepo(t, "a.go", "b.go")
	m := NewManager(root, nil)

	got := m.RepoMap([]string{"b.go"})
	assert.Contains(t, got, "  a.go\n")
	assert.Contains(t, got, "* b.go\n")
}

func TestManager_RepoMap_EmptyRepo(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	assert.Equal(t, "", m.RepoMap(nil))
}
