// Package layout computes where bundles live on disk. Every method is a pure
// function of the resolved roots; nothing here creates or touches files.
package layout

import (
	_ "crypto/sha256" // go-digest canonical algorithm
	"errors"
	"fmt"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/opencontainers/go-digest"

	"github.com/barysiuk/promptrow/internal/core/asset"
	"github.com/barysiuk/promptrow/internal/core/bundle"
	"github.com/barysiuk/promptrow/internal/core/fsutil"
)

var (
	ErrNoWorkspace        = errors.New("no workspace is open")
	ErrNoWorkspaceStorage = errors.New("workspace storage is not available")
)

const appName = "promptrow"

// Options overrides the default roots. Empty fields use xdg-derived defaults.
type Options struct {
	GlobalStorage  string
	Workspace      string
	UserPromptsDir string
	UserSkillsDir  string
	UserMCPConfig  string
}

// Layout holds the resolved roots.
type Layout struct {
	GlobalStorage    string
	Workspace        string // empty when no workspace is open
	WorkspaceStorage string // derived from Workspace
	UserPromptsDir   string
	UserSkillsDir    string
	UserMCPConfig    string
}

// New resolves a Layout from opts.
func New(opts Options) (*Layout, error) {
	l := &Layout{
		GlobalStorage:  opts.GlobalStorage,
		UserPromptsDir: opts.UserPromptsDir,
		UserSkillsDir:  opts.UserSkillsDir,
		UserMCPConfig:  opts.UserMCPConfig,
	}
	if l.GlobalStorage == "" {
		l.GlobalStorage = filepath.Join(xdg.DataHome, appName)
	}
	if l.UserPromptsDir == "" {
		l.UserPromptsDir = filepath.Join(xdg.ConfigHome, "Code", "User", "prompts")
	}
	if l.UserSkillsDir == "" {
		l.UserSkillsDir = filepath.Join(xdg.Home, ".copilot", "skills")
	}
	if l.UserMCPConfig == "" {
		l.UserMCPConfig = filepath.Join(xdg.ConfigHome, "Code", "User", "mcp.json")
	}

	if opts.Workspace != "" {
		ws, err := filepath.Abs(opts.Workspace)
		if err != nil {
			return nil, fmt.Errorf("resolving workspace %s: %w", opts.Workspace, err)
		}
		l.Workspace = ws
		l.WorkspaceStorage = filepath.Join(l.GlobalStorage, "workspaces", workspaceKey(ws))
	}
	return l, nil
}

// workspaceKey is a short stable directory name for a workspace root.
func workspaceKey(ws string) string {
	return digest.FromString(filepath.Clean(ws)).Encoded()[:12]
}

// ResolveInstallDir returns the directory a bundle's cache copy is
// materialized into.
func (l *Layout) ResolveInstallDir(bundleID string, scope bundle.Scope, sourceType bundle.SourceType, sourceName string) (string, error) {
	if bundle.IsExternalSkills(bundleID, sourceType) {
		if l.Workspace == "" {
			return "", ErrNoWorkspace
		}
		name := sourceName
		if name == "" {
			name = bundleID
		}
		return filepath.Join(l.Workspace, ".agents", "skills", fsutil.SanitizeName(name)), nil
	}

	switch scope {
	case bundle.ScopeRepository:
		if l.Workspace == "" {
			return "", ErrNoWorkspace
		}
		return filepath.Join(l.GlobalStorage, "repository", workspaceKey(l.Workspace), bundleID), nil
	case bundle.ScopeUser:
		return filepath.Join(l.GlobalStorage, "bundles", bundleID), nil
	case bundle.ScopeWorkspace:
		if l.WorkspaceStorage == "" {
			return "", ErrNoWorkspaceStorage
		}
		return filepath.Join(l.WorkspaceStorage, "bundles", bundleID), nil
	default:
		return "", fmt.Errorf("unknown scope %q", scope)
	}
}

// SkillsDir is the skills root a scope's host tool discovers.
func (l *Layout) SkillsDir(scope bundle.Scope) (string, error) {
	switch scope {
	case bundle.ScopeUser:
		return l.UserSkillsDir, nil
	case bundle.ScopeWorkspace:
		if l.Workspace == "" {
			return "", ErrNoWorkspace
		}
		return filepath.Join(l.Workspace, ".agents", "skills"), nil
	case bundle.ScopeRepository:
		return l.RepositoryDir(asset.KindSkill)
	default:
		return "", fmt.Errorf("unknown scope %q", scope)
	}
}

// PromptsDir is the flat prompts directory for user and workspace scope.
func (l *Layout) PromptsDir(scope bundle.Scope) (string, error) {
	switch scope {
	case bundle.ScopeUser:
		return l.UserPromptsDir, nil
	case bundle.ScopeWorkspace:
		if l.Workspace == "" {
			return "", ErrNoWorkspace
		}
		return filepath.Join(l.Workspace, ".vscode", "prompts"), nil
	default:
		return "", fmt.Errorf("scope %q has no flat prompts directory", scope)
	}
}

// RepositoryDir is the workspace directory items of kind k sync into at
// repository scope.
func (l *Layout) RepositoryDir(k asset.Kind) (string, error) {
	if l.Workspace == "" {
		return "", ErrNoWorkspace
	}
	h, ok := asset.Get(k)
	if !ok {
		return "", fmt.Errorf("unknown item type %q", k)
	}
	return filepath.Join(l.Workspace, filepath.FromSlash(h.RepositoryDir())), nil
}

// ItemDir is the directory an item of kind k syncs into at scope.
func (l *Layout) ItemDir(scope bundle.Scope, k asset.Kind) (string, error) {
	if k == asset.KindSkill {
		return l.SkillsDir(scope)
	}
	if scope == bundle.ScopeRepository {
		return l.RepositoryDir(k)
	}
	return l.PromptsDir(scope)
}

// MCPConfigPath is the mcp.json a scope's servers are written to.
func (l *Layout) MCPConfigPath(scope bundle.Scope) (string, error) {
	switch scope {
	case bundle.ScopeUser:
		return l.UserMCPConfig, nil
	case bundle.ScopeWorkspace:
		if l.WorkspaceStorage == "" {
			return "", ErrNoWorkspaceStorage
		}
		return filepath.Join(l.WorkspaceStorage, "mcp.json"), nil
	case bundle.ScopeRepository:
		if l.Workspace == "" {
			return "", ErrNoWorkspace
		}
		return filepath.Join(l.Workspace, ".vscode", "mcp.json"), nil
	default:
		return "", fmt.Errorf("unknown scope %q", scope)
	}
}

func (l *Layout) stateDir(scope bundle.Scope) (string, error) {
	if scope == bundle.ScopeUser {
		return l.GlobalStorage, nil
	}
	if l.WorkspaceStorage == "" {
		return "", ErrNoWorkspaceStorage
	}
	return l.WorkspaceStorage, nil
}

// RecordsPath is the installed-bundle record file for a scope.
func (l *Layout) RecordsPath(scope bundle.Scope) (string, error) {
	dir, err := l.stateDir(scope)
	if err != nil {
		return "", err
	}
	if scope == bundle.ScopeRepository {
		return filepath.Join(dir, "installed-repository.json"), nil
	}
	return filepath.Join(dir, "installed.json"), nil
}

// SyncStatePath is where the synchronizer remembers what it created for a bundle.
func (l *Layout) SyncStatePath(scope bundle.Scope, bundleID string) (string, error) {
	dir, err := l.stateDir(scope)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sync", string(scope), bundleID+".json"), nil
}

// TempDir is the parent of per-operation extraction directories.
func (l *Layout) TempDir() string {
	return filepath.Join(l.GlobalStorage, "tmp")
}

// LockfileDir is the directory holding the repository lockfile.
func (l *Layout) LockfileDir() (string, error) {
	if l.Workspace == "" {
		return "", ErrNoWorkspace
	}
	return l.Workspace, nil
}

// NativeRoots lists the scope-native directories shared with content the
// engine does not own.
func (l *Layout) NativeRoots() []string {
	roots := []string{l.UserPromptsDir, l.UserSkillsDir}
	if l.Workspace == "" {
		return roots
	}
	roots = append(roots,
		l.Workspace,
		filepath.Join(l.Workspace, ".vscode"),
		filepath.Join(l.Workspace, ".vscode", "prompts"),
		filepath.Join(l.Workspace, ".agents"),
		filepath.Join(l.Workspace, ".agents", "skills"),
		filepath.Join(l.Workspace, ".github"),
	)
	for _, k := range asset.Kinds() {
		if dir, err := l.RepositoryDir(k); err == nil {
			roots = append(roots, dir)
		}
	}
	return roots
}

// IsNativeRoot reports whether path is one of NativeRoots or a directory
// literally named .github.
func (l *Layout) IsNativeRoot(path string) bool {
	clean := filepath.Clean(path)
	if filepath.Base(clean) == ".github" {
		return true
	}
	for _, r := range l.NativeRoots() {
		if r != "" && filepath.Clean(r) == clean {
			return true
		}
	}
	return false
}
