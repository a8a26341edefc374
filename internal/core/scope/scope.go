// Package scope projects installed bundles into the native directories each
// installation scope's host tool discovers, and reverses that projection.
package scope

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/barysiuk/promptrow/internal/core/asset"
	"github.com/barysiuk/promptrow/internal/core/bundle"
	"github.com/barysiuk/promptrow/internal/core/fsutil"
	"github.com/barysiuk/promptrow/internal/core/layout"
	"github.com/barysiuk/promptrow/internal/logging"
)

var (
	ErrSkillNotFound = errors.New("skill not found in bundle")
	ErrItemNotFound  = errors.New("item file not found in bundle")
)

// Synchronizer projects one scope's bundles into native directories.
type Synchronizer interface {
	Scope() bundle.Scope

	// SyncBundle projects every manifest item found in installDir.
	SyncBundle(bundleID, installDir string, opts SyncOptions) (*SyncResult, error)

	// UnsyncBundle removes what SyncBundle created. It is a no-op for a
	// bundle that is not synced.
	UnsyncBundle(bundleID string) (*UnsyncResult, error)
}

// SyncOptions controls a single sync.
type SyncOptions struct {
	CommitMode bundle.CommitMode

	// SkipSkills leaves skill items alone, for bundles whose skills were
	// already installed straight into the skills root.
	SkipSkills bool
}

// Target is one native entry created by a sync.
type Target struct {
	Kind   asset.Kind `json:"kind"`
	ItemID string     `json:"itemId"`
	Path   string     `json:"path"`
	Source string     `json:"source"`
	Linked bool       `json:"linked"`
}

// SyncResult reports what a sync created and what it refused to touch.
type SyncResult struct {
	Synced    []Target
	Conflicts []string
}

// Paths returns the absolute paths of the synced targets.
func (r *SyncResult) Paths() []string {
	out := make([]string, len(r.Synced))
	for i, t := range r.Synced {
		out[i] = t.Path
	}
	return out
}

// UnsyncResult reports what an unsync removed and what it kept because the
// content no longer matched the bundle.
type UnsyncResult struct {
	Removed []string
	Kept    []string
}

// New returns the synchronizer for s.
func New(s bundle.Scope, l *layout.Layout, log *slog.Logger) (Synchronizer, error) {
	if log == nil {
		log = logging.Discard()
	}
	switch s {
	case bundle.ScopeUser:
		return NewUserScope(l, log), nil
	case bundle.ScopeWorkspace:
		if l.Workspace == "" {
			return nil, layout.ErrNoWorkspace
		}
		return NewWorkspaceScope(l, log), nil
	case bundle.ScopeRepository:
		if l.Workspace == "" {
			return nil, layout.ErrNoWorkspace
		}
		return NewRepositoryScope(l, log), nil
	default:
		return nil, fmt.Errorf("unknown scope %q", s)
	}
}

// syncState is persisted per bundle so unsync can reverse exactly what was done.
type syncState struct {
	BundleID   string            `json:"bundleId"`
	Scope      bundle.Scope      `json:"scope"`
	InstallDir string            `json:"installDir"`
	CommitMode bundle.CommitMode `json:"commitMode,omitempty"`
	Targets    []Target          `json:"targets"`
}

func loadState(path string) (*syncState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading sync state: %w", err)
	}
	var st syncState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing sync state %s: %w", path, err)
	}
	return &st, nil
}

func saveState(path string, st *syncState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sync state: %w", err)
	}
	data = append(data, '\n')
	return fsutil.WriteFileAtomic(path, data)
}
