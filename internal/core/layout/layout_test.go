package layout

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/barysiuk/promptrow/internal/core/asset"
	"github.com/barysiuk/promptrow/internal/core/bundle"
)

func testLayout(t *testing.T, workspace string) *Layout {
	t.Helper()
	base := t.TempDir()
	l, err := New(Options{
		GlobalStorage:  filepath.Join(base, "global"),
		Workspace:      workspace,
		UserPromptsDir: filepath.Join(base, "user", "prompts"),
		UserSkillsDir:  filepath.Join(base, "user", "skills"),
		UserMCPConfig:  filepath.Join(base, "user", "mcp.json"),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return l
}

func TestNew_Defaults(t *testing.T) {
	l, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !strings.HasSuffix(l.GlobalStorage, "promptrow") {
		t.Errorf("GlobalStorage = %q", l.GlobalStorage)
	}
	if !strings.HasSuffix(l.UserSkillsDir, filepath.Join(".copilot", "skills")) {
		t.Errorf("UserSkillsDir = %q", l.UserSkillsDir)
	}
	if l.Workspace != "" || l.WorkspaceStorage != "" {
		t.Errorf("no workspace expected, got %q / %q", l.Workspace, l.WorkspaceStorage)
	}
}

func TestWorkspaceStorageIsStable(t *testing.T) {
	ws := t.TempDir()
	a := testLayout(t, ws)
	b, _ := New(Options{GlobalStorage: a.GlobalStorage, Workspace: ws + string(filepath.Separator)})
	if a.WorkspaceStorage != b.WorkspaceStorage {
		t.Errorf("workspace storage differs: %q vs %q", a.WorkspaceStorage, b.WorkspaceStorage)
	}
	if !strings.HasPrefix(a.WorkspaceStorage, a.GlobalStorage) {
		t.Errorf("workspace storage %q not under global %q", a.WorkspaceStorage, a.GlobalStorage)
	}
}

func TestResolveInstallDir(t *testing.T) {
	ws := t.TempDir()
	l := testLayout(t, ws)

	tests := []struct {
		name       string
		scope      bundle.Scope
		sourceType bundle.SourceType
		sourceName string
		id         string
		want       string
	}{
		{"user", bundle.ScopeUser, bundle.SourceTypeGitHub, "", "acme", filepath.Join(l.GlobalStorage, "bundles", "acme")},
		{"workspace", bundle.ScopeWorkspace, bundle.SourceTypeGitHub, "", "acme", filepath.Join(l.WorkspaceStorage, "bundles", "acme")},
		{"external skills by type", bundle.ScopeUser, bundle.SourceTypeExternalSkills, "Vendor Pack", "acme", filepath.Join(ws, ".agents", "skills", "vendor-pack")},
		{"external skills by prefix", bundle.ScopeRepository, "", "", "ext-skills-vendor", filepath.Join(ws, ".agents", "skills", "ext-skills-vendor")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.ResolveInstallDir(tt.id, tt.scope, tt.sourceType, tt.sourceName)
			if err != nil {
				t.Fatalf("ResolveInstallDir() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveInstallDir() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveInstallDir_RepositoryOutsideWorkspace(t *testing.T) {
	ws := t.TempDir()
	l := testLayout(t, ws)

	got, err := l.ResolveInstallDir("acme", bundle.ScopeRepository, bundle.SourceTypeGitHub, "")
	if err != nil {
		t.Fatalf("ResolveInstallDir() error = %v", err)
	}
	if strings.HasPrefix(got, ws) {
		t.Errorf("repository cache %q must not live inside the workspace %q", got, ws)
	}
	if !strings.HasPrefix(got, filepath.Join(l.GlobalStorage, "repository")) {
		t.Errorf("repository cache %q not under global storage", got)
	}

	again, _ := l.ResolveInstallDir("acme", bundle.ScopeRepository, bundle.SourceTypeGitHub, "")
	if again != got {
		t.Errorf("ResolveInstallDir not deterministic: %q vs %q", got, again)
	}
}

func TestResolveInstallDir_Errors(t *testing.T) {
	l := testLayout(t, "")

	if _, err := l.ResolveInstallDir("ext-skills-x", bundle.ScopeUser, "", ""); !errors.Is(err, ErrNoWorkspace) {
		t.Errorf("external skills without workspace: err = %v, want ErrNoWorkspace", err)
	}
	if _, err := l.ResolveInstallDir("acme", bundle.ScopeWorkspace, "", ""); !errors.Is(err, ErrNoWorkspaceStorage) {
		t.Errorf("workspace without storage: err = %v, want ErrNoWorkspaceStorage", err)
	}
	if _, err := l.ResolveInstallDir("acme", bundle.ScopeRepository, "", ""); !errors.Is(err, ErrNoWorkspace) {
		t.Errorf("repository without workspace: err = %v, want ErrNoWorkspace", err)
	}
	if _, err := l.ResolveInstallDir("acme", bundle.ScopeUser, "", ""); err != nil {
		t.Errorf("user scope needs no workspace: %v", err)
	}
}

func TestItemDir(t *testing.T) {
	ws := t.TempDir()
	l := testLayout(t, ws)

	tests := []struct {
		scope bundle.Scope
		kind  asset.Kind
		want  string
	}{
		{bundle.ScopeUser, asset.KindPrompt, l.UserPromptsDir},
		{bundle.ScopeUser, asset.KindSkill, l.UserSkillsDir},
		{bundle.ScopeWorkspace, asset.KindChatmode, filepath.Join(ws, ".vscode", "prompts")},
		{bundle.ScopeWorkspace, asset.KindSkill, filepath.Join(ws, ".agents", "skills")},
		{bundle.ScopeRepository, asset.KindPrompt, filepath.Join(ws, ".github", "prompts")},
		{bundle.ScopeRepository, asset.KindInstructions, filepath.Join(ws, ".github", "instructions")},
		{bundle.ScopeRepository, asset.KindChatmode, filepath.Join(ws, ".github", "chatmodes")},
		{bundle.ScopeRepository, asset.KindAgent, filepath.Join(ws, ".github", "agents")},
		{bundle.ScopeRepository, asset.KindSkill, filepath.Join(ws, ".github", "skills")},
	}
	for _, tt := range tests {
		got, err := l.ItemDir(tt.scope, tt.kind)
		if err != nil {
			t.Errorf("ItemDir(%s, %s) error = %v", tt.scope, tt.kind, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ItemDir(%s, %s) = %q, want %q", tt.scope, tt.kind, got, tt.want)
		}
	}
}

func TestMCPConfigPath(t *testing.T) {
	ws := t.TempDir()
	l := testLayout(t, ws)

	if got, _ := l.MCPConfigPath(bundle.ScopeRepository); got != filepath.Join(ws, ".vscode", "mcp.json") {
		t.Errorf("repository mcp path = %q", got)
	}
	if got, _ := l.MCPConfigPath(bundle.ScopeUser); got != l.UserMCPConfig {
		t.Errorf("user mcp path = %q", got)
	}
	if got, _ := l.MCPConfigPath(bundle.ScopeWorkspace); got != filepath.Join(l.WorkspaceStorage, "mcp.json") {
		t.Errorf("workspace mcp path = %q", got)
	}

	noWS := testLayout(t, "")
	if _, err := noWS.MCPConfigPath(bundle.ScopeRepository); !errors.Is(err, ErrNoWorkspace) {
		t.Errorf("err = %v, want ErrNoWorkspace", err)
	}
}

func TestIsNativeRoot(t *testing.T) {
	ws := t.TempDir()
	l := testLayout(t, ws)

	native := []string{
		l.UserPromptsDir,
		l.UserSkillsDir,
		filepath.Join(ws, ".github"),
		filepath.Join(ws, ".github", "prompts") + string(filepath.Separator),
		filepath.Join(ws, ".agents", "skills"),
		filepath.Join(t.TempDir(), "elsewhere", ".github"),
	}
	for _, p := range native {
		if !l.IsNativeRoot(p) {
			t.Errorf("IsNativeRoot(%q) = false, want true", p)
		}
	}

	owned := []string{
		filepath.Join(l.GlobalStorage, "bundles", "acme"),
		filepath.Join(ws, ".agents", "skills", "vendor"),
		filepath.Join(ws, ".github", "skills", "lint"),
	}
	for _, p := range owned {
		if l.IsNativeRoot(p) {
			t.Errorf("IsNativeRoot(%q) = true, want false", p)
		}
	}
}
