package scope

import (
	"log/slog"

	"github.com/barysiuk/promptrow/internal/core/bundle"
	"github.com/barysiuk/promptrow/internal/core/layout"
)

// UserScope syncs into the user-global prompts directory and skills root.
type UserScope struct {
	baseScope
}

// NewUserScope returns the user-scope synchronizer.
func NewUserScope(l *layout.Layout, log *slog.Logger) *UserScope {
	return &UserScope{
		baseScope: baseScope{
			scope:  bundle.ScopeUser,
			layout: l,
			log:    log.With("scope", bundle.ScopeUser),
		},
	}
}
