package scope

import (
	"log/slog"

	"github.com/barysiuk/promptrow/internal/core/bundle"
	"github.com/barysiuk/promptrow/internal/core/layout"
)

// WorkspaceScope syncs into the open workspace's .vscode/prompts directory
// and .agents/skills root.
type WorkspaceScope struct {
	baseScope
}

// NewWorkspaceScope returns the workspace-scope synchronizer.
func NewWorkspaceScope(l *layout.Layout, log *slog.Logger) *WorkspaceScope {
	return &WorkspaceScope{
		baseScope: baseScope{
			scope:  bundle.ScopeWorkspace,
			layout: l,
			log:    log.With("scope", bundle.ScopeWorkspace),
		},
	}
}
