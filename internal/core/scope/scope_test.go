package scope

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/barysiuk/promptrow/internal/core/bundle"
	"github.com/barysiuk/promptrow/internal/core/fsutil"
	"github.com/barysiuk/promptrow/internal/core/layout"
	"github.com/barysiuk/promptrow/internal/logging"
)

const testManifest = `id: acme-tools
version: "1.0.0"
name: Acme Tools
prompts:
  - id: review
    file: prompts/review.prompt.md
    type: prompt
  - id: go-style
    file: instructions/go.instructions.md
    type: instructions
  - id: lint
    file: skills/lint/SKILL.md
    type: skill
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// setup returns a layout with a workspace and an install dir holding a
// three-item bundle.
func setup(t *testing.T) (*layout.Layout, string) {
	t.Helper()
	base := t.TempDir()
	ws := filepath.Join(base, "ws")
	if err := os.MkdirAll(filepath.Join(ws, ".git", "info"), 0o755); err != nil {
		t.Fatal(err)
	}
	l, err := layout.New(layout.Options{
		GlobalStorage:  filepath.Join(base, "global"),
		Workspace:      ws,
		UserPromptsDir: filepath.Join(base, "user", "prompts"),
		UserSkillsDir:  filepath.Join(base, "user", "skills"),
		UserMCPConfig:  filepath.Join(base, "user", "mcp.json"),
	})
	if err != nil {
		t.Fatal(err)
	}

	installDir := filepath.Join(base, "install", "acme-tools")
	writeFile(t, filepath.Join(installDir, "deployment-manifest.yml"), testManifest)
	writeFile(t, filepath.Join(installDir, "prompts", "review.prompt.md"), "Review the code.\n")
	writeFile(t, filepath.Join(installDir, "instructions", "go.instructions.md"), "Use gofmt.\n")
	writeFile(t, filepath.Join(installDir, "skills", "lint", "SKILL.md"), "---\nname: lint\n---\n")
	return l, installDir
}

func newScope(t *testing.T, s bundle.Scope, l *layout.Layout) Synchronizer {
	t.Helper()
	sync, err := New(s, l, logging.Discard())
	if err != nil {
		t.Fatalf("New(%s) error = %v", s, err)
	}
	return sync
}

func TestNew(t *testing.T) {
	l, _ := layout.New(layout.Options{GlobalStorage: t.TempDir()})

	if _, err := New(bundle.ScopeUser, l, nil); err != nil {
		t.Errorf("user scope without workspace: %v", err)
	}
	for _, s := range []bundle.Scope{bundle.ScopeWorkspace, bundle.ScopeRepository} {
		if _, err := New(s, l, nil); !errors.Is(err, layout.ErrNoWorkspace) {
			t.Errorf("New(%s) error = %v, want ErrNoWorkspace", s, err)
		}
	}
}

func TestUserScope_SyncAndUnsync(t *testing.T) {
	l, installDir := setup(t)
	s := newScope(t, bundle.ScopeUser, l)

	res, err := s.SyncBundle("acme-tools", installDir, SyncOptions{})
	if err != nil {
		t.Fatalf("SyncBundle() error = %v", err)
	}
	if len(res.Synced) != 3 {
		t.Fatalf("synced %d targets, want 3", len(res.Synced))
	}

	want := []string{
		filepath.Join(l.UserPromptsDir, "review.prompt.md"),
		filepath.Join(l.UserPromptsDir, "go-style.instructions.md"),
		filepath.Join(l.UserSkillsDir, "lint"),
	}
	for _, p := range want {
		if !fsutil.PathExists(p) {
			t.Errorf("expected %s after sync", p)
		}
	}
	data, err := os.ReadFile(want[0])
	if err != nil || string(data) != "Review the code.\n" {
		t.Errorf("synced prompt content = %q, %v", data, err)
	}
	entries, _ := os.ReadDir(l.UserPromptsDir)
	if len(entries) != 2 {
		t.Errorf("prompts dir has %d entries, want 2", len(entries))
	}

	un, err := s.UnsyncBundle("acme-tools")
	if err != nil {
		t.Fatalf("UnsyncBundle() error = %v", err)
	}
	if len(un.Removed) != 3 || len(un.Kept) != 0 {
		t.Errorf("unsync removed %v kept %v", un.Removed, un.Kept)
	}
	for _, p := range want {
		if fsutil.PathExists(p) {
			t.Errorf("%s still exists after unsync", p)
		}
	}

	// A second unsync is a no-op.
	un, err = s.UnsyncBundle("acme-tools")
	if err != nil {
		t.Fatalf("second UnsyncBundle() error = %v", err)
	}
	if len(un.Removed) != 0 {
		t.Errorf("second unsync removed %v", un.Removed)
	}
}

func TestSync_ConflictLeavesUserFile(t *testing.T) {
	l, installDir := setup(t)
	s := newScope(t, bundle.ScopeUser, l)

	userFile := filepath.Join(l.UserPromptsDir, "review.prompt.md")
	writeFile(t, userFile, "my own review prompt\n")

	res, err := s.SyncBundle("acme-tools", installDir, SyncOptions{})
	if err != nil {
		t.Fatalf("SyncBundle() error = %v", err)
	}
	if len(res.Conflicts) != 1 || res.Conflicts[0] != userFile {
		t.Errorf("conflicts = %v, want [%s]", res.Conflicts, userFile)
	}

	if _, err := s.UnsyncBundle("acme-tools"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(userFile)
	if err != nil || string(data) != "my own review prompt\n" {
		t.Errorf("user file changed: %q, %v", data, err)
	}
}

func TestSync_ReplacesBrokenSymlink(t *testing.T) {
	l, installDir := setup(t)
	s := newScope(t, bundle.ScopeUser, l)

	gone := filepath.Join(t.TempDir(), "gone")
	writeFile(t, gone, "x")
	link := filepath.Join(l.UserPromptsDir, "review.prompt.md")
	if err := os.MkdirAll(l.UserPromptsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(gone, link); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(gone); err != nil {
		t.Fatal(err)
	}

	res, err := s.SyncBundle("acme-tools", installDir, SyncOptions{})
	if err != nil {
		t.Fatalf("SyncBundle() error = %v", err)
	}
	if len(res.Conflicts) != 0 {
		t.Errorf("broken link should not be a conflict: %v", res.Conflicts)
	}
	data, err := os.ReadFile(link)
	if err != nil || string(data) != "Review the code.\n" {
		t.Errorf("broken link not replaced: %q, %v", data, err)
	}
}

func TestSync_ResyncIsIdempotent(t *testing.T) {
	l, installDir := setup(t)
	s := newScope(t, bundle.ScopeUser, l)

	for i := 0; i < 2; i++ {
		res, err := s.SyncBundle("acme-tools", installDir, SyncOptions{})
		if err != nil {
			t.Fatalf("sync #%d error = %v", i+1, err)
		}
		if len(res.Conflicts) != 0 || len(res.Synced) != 3 {
			t.Fatalf("sync #%d: synced %d, conflicts %v", i+1, len(res.Synced), res.Conflicts)
		}
	}
}

func TestSync_SkipSkills(t *testing.T) {
	l, installDir := setup(t)
	s := newScope(t, bundle.ScopeUser, l)

	res, err := s.SyncBundle("acme-tools", installDir, SyncOptions{SkipSkills: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Synced) != 2 {
		t.Errorf("synced %d, want 2 without skills", len(res.Synced))
	}
	if fsutil.PathExists(filepath.Join(l.UserSkillsDir, "lint")) {
		t.Error("skill should not be synced")
	}
}

func TestSync_MissingSkill(t *testing.T) {
	l, installDir := setup(t)
	if err := os.RemoveAll(filepath.Join(installDir, "skills")); err != nil {
		t.Fatal(err)
	}
	s := newScope(t, bundle.ScopeUser, l)

	res, err := s.SyncBundle("acme-tools", installDir, SyncOptions{})
	if !errors.Is(err, ErrSkillNotFound) {
		t.Errorf("err = %v, want ErrSkillNotFound", err)
	}
	if res != nil && len(res.Synced) != 0 {
		t.Errorf("Synced = %v, want none after a failed sync", res.Synced)
	}

	// The prompt and instructions placed before the skill failed are gone.
	entries, _ := os.ReadDir(l.UserPromptsDir)
	if len(entries) != 0 {
		t.Errorf("prompts dir has %d entries after a failed sync", len(entries))
	}
	statePath, _ := l.SyncStatePath(bundle.ScopeUser, "acme-tools")
	if fsutil.PathExists(statePath) {
		t.Error("failed sync left a sync state")
	}
}

func TestRepositoryScope_CommitModeCopies(t *testing.T) {
	l, installDir := setup(t)
	s := newScope(t, bundle.ScopeRepository, l)

	res, err := s.SyncBundle("acme-tools", installDir, SyncOptions{CommitMode: bundle.CommitModeCommit})
	if err != nil {
		t.Fatalf("SyncBundle() error = %v", err)
	}
	ws := l.Workspace
	want := map[string]bool{
		filepath.Join(ws, ".github", "prompts", "review.prompt.md"):              true,
		filepath.Join(ws, ".github", "instructions", "go-style.instructions.md"): true,
		filepath.Join(ws, ".github", "skills", "lint"):                           true,
	}
	for _, target := range res.Synced {
		if !want[target.Path] {
			t.Errorf("unexpected target %s", target.Path)
		}
		if target.Linked {
			t.Errorf("commit mode should copy, %s is linked", target.Path)
		}
		st, _ := fsutil.Inspect(target.Path)
		if st.IsSymlink {
			t.Errorf("%s is a symlink", target.Path)
		}
	}

	rel := s.(*RepositoryScope).Relative(res.Paths())
	if len(rel) != 3 || !strings.HasPrefix(rel[0], ".github/") {
		t.Errorf("Relative() = %v", rel)
	}
}

func TestRepositoryScope_ContentPreservingUnsync(t *testing.T) {
	l, installDir := setup(t)
	s := newScope(t, bundle.ScopeRepository, l)

	if _, err := s.SyncBundle("acme-tools", installDir, SyncOptions{CommitMode: bundle.CommitModeCommit}); err != nil {
		t.Fatal(err)
	}
	ws := l.Workspace
	edited := filepath.Join(ws, ".github", "prompts", "review.prompt.md")
	crlf := filepath.Join(ws, ".github", "instructions", "go-style.instructions.md")
	writeFile(t, edited, "I changed this.\n")
	writeFile(t, crlf, "Use gofmt.\r\n")

	res, err := s.UnsyncBundle("acme-tools")
	if err != nil {
		t.Fatalf("UnsyncBundle() error = %v", err)
	}

	if !fsutil.PathExists(edited) {
		t.Error("user-modified copy was removed")
	}
	if fsutil.PathExists(crlf) {
		t.Error("copy differing only in line endings should be removed")
	}
	if fsutil.PathExists(filepath.Join(ws, ".github", "skills", "lint")) {
		t.Error("unmodified skill copy should be removed")
	}
	if len(res.Kept) != 1 || res.Kept[0] != edited {
		t.Errorf("kept = %v, want [%s]", res.Kept, edited)
	}
	if fsutil.PathExists(filepath.Join(ws, ".github", "instructions")) {
		t.Error("empty instructions dir should be cleaned up")
	}
}

func TestRepositoryScope_LocalOnlyExcludes(t *testing.T) {
	l, installDir := setup(t)
	s := newScope(t, bundle.ScopeRepository, l)

	if _, err := s.SyncBundle("acme-tools", installDir, SyncOptions{CommitMode: bundle.CommitModeLocalOnly}); err != nil {
		t.Fatal(err)
	}
	excludePath := filepath.Join(l.Workspace, ".git", "info", "exclude")
	data, err := os.ReadFile(excludePath)
	if err != nil {
		t.Fatalf("reading exclude: %v", err)
	}
	for _, want := range []string{
		"# promptrow:acme-tools begin",
		"/.github/prompts/review.prompt.md",
		"/.github/skills/lint",
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("exclude missing %q:\n%s", want, data)
		}
	}

	if _, err := s.UnsyncBundle("acme-tools"); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(excludePath)
	if strings.Contains(string(data), "promptrow:acme-tools") {
		t.Errorf("exclude block not removed:\n%s", data)
	}
	if fsutil.PathExists(filepath.Join(l.Workspace, ".github", "prompts", "review.prompt.md")) {
		t.Error("local-only entry not removed")
	}
}

func TestWorkspaceScope_FlatPromptsDir(t *testing.T) {
	l, installDir := setup(t)
	s := newScope(t, bundle.ScopeWorkspace, l)

	if _, err := s.SyncBundle("acme-tools", installDir, SyncOptions{}); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{
		filepath.Join(l.Workspace, ".vscode", "prompts", "review.prompt.md"),
		filepath.Join(l.Workspace, ".vscode", "prompts", "go-style.instructions.md"),
		filepath.Join(l.Workspace, ".agents", "skills", "lint"),
	} {
		if !fsutil.PathExists(p) {
			t.Errorf("expected %s", p)
		}
	}
}
