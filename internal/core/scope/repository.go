package scope

import (
	"log/slog"
	"path/filepath"

	"github.com/barysiuk/promptrow/internal/core/asset"
	"github.com/barysiuk/promptrow/internal/core/bundle"
	"github.com/barysiuk/promptrow/internal/core/fsutil"
	"github.com/barysiuk/promptrow/internal/core/gitexclude"
	"github.com/barysiuk/promptrow/internal/core/layout"
)

// RepositoryScope syncs into type-keyed .github directories of the
// workspace. Commit mode copies files so they can be tracked; local-only
// links them and hides them from git through .git/info/exclude.
type RepositoryScope struct {
	baseScope
}

// NewRepositoryScope returns the repository-scope synchronizer.
func NewRepositoryScope(l *layout.Layout, log *slog.Logger) *RepositoryScope {
	return &RepositoryScope{
		baseScope: baseScope{
			scope:  bundle.ScopeRepository,
			layout: l,
			log:    log.With("scope", bundle.ScopeRepository),
			copyFiles: func(opts SyncOptions) bool {
				return opts.CommitMode != bundle.CommitModeLocalOnly
			},
		},
	}
}

// SyncBundle syncs and, for local-only bundles, records the synced paths in
// the git exclude file.
func (r *RepositoryScope) SyncBundle(bundleID, installDir string, opts SyncOptions) (*SyncResult, error) {
	res, err := r.sync(bundleID, installDir, opts)
	if err != nil {
		return res, err
	}
	if opts.CommitMode == bundle.CommitModeLocalOnly {
		if err := gitexclude.Add(r.layout.Workspace, bundleID, r.Relative(res.Paths())); err != nil {
			r.log.Warn("updating git exclude", "bundle", bundleID, "error", err)
		}
	}
	return res, nil
}

// UnsyncBundle unsyncs, drops the bundle's git exclude block, and removes
// type directories left empty.
func (r *RepositoryScope) UnsyncBundle(bundleID string) (*UnsyncResult, error) {
	res, st, err := r.unsync(bundleID)
	if err != nil {
		return res, err
	}
	if st != nil && st.CommitMode == bundle.CommitModeLocalOnly {
		if err := gitexclude.Remove(r.layout.Workspace, bundleID); err != nil {
			r.log.Warn("updating git exclude", "bundle", bundleID, "error", err)
		}
	}
	for _, k := range asset.Kinds() {
		if dir, err := r.layout.RepositoryDir(k); err == nil {
			fsutil.CleanupEmptyDir(dir)
		}
	}
	return res, nil
}

// Relative converts absolute synced paths to workspace-relative,
// slash-separated paths, as stored in the lockfile.
func (r *RepositoryScope) Relative(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(r.layout.Workspace, p)
		if err != nil {
			continue
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}
