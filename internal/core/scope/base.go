package scope

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/barysiuk/promptrow/internal/core/asset"
	"github.com/barysiuk/promptrow/internal/core/bundle"
	"github.com/barysiuk/promptrow/internal/core/fsutil"
	"github.com/barysiuk/promptrow/internal/core/layout"
	"github.com/barysiuk/promptrow/internal/core/manifest"
)

// baseScope holds the sync logic shared by every scope. Scope variants embed
// it and configure how targets are placed.
type baseScope struct {
	scope  bundle.Scope
	layout *layout.Layout
	log    *slog.Logger

	// copyFiles makes a sync copy instead of linking.
	copyFiles func(opts SyncOptions) bool
}

func (b *baseScope) Scope() bundle.Scope { return b.scope }

// SyncBundle reads the manifest fresh from installDir and projects each item
// into the scope's native directory.
func (b *baseScope) SyncBundle(bundleID, installDir string, opts SyncOptions) (*SyncResult, error) {
	return b.sync(bundleID, installDir, opts)
}

// UnsyncBundle removes the targets recorded by the last sync.
func (b *baseScope) UnsyncBundle(bundleID string) (*UnsyncResult, error) {
	res, _, err := b.unsync(bundleID)
	return res, err
}

func (b *baseScope) sync(bundleID, installDir string, opts SyncOptions) (*SyncResult, error) {
	m, err := manifest.Load(installDir)
	if errors.Is(err, os.ErrNotExist) {
		m, err = manifest.Synthesize(installDir, bundle.Descriptor{ID: bundleID})
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest for %s: %w", bundleID, err)
	}

	statePath, err := b.layout.SyncStatePath(b.scope, bundleID)
	if err != nil {
		return nil, err
	}
	prev, err := loadState(statePath)
	if err != nil {
		return nil, err
	}
	owned := make(map[string]Target)
	if prev != nil {
		for _, t := range prev.Targets {
			owned[t.Path] = t
		}
	}

	copyFiles := b.copyFiles != nil && b.copyFiles(opts)
	result := &SyncResult{}
	st := &syncState{BundleID: bundleID, Scope: b.scope, InstallDir: installDir, CommitMode: opts.CommitMode}

	for _, item := range m.Prompts {
		kind := item.Kind()
		if kind == asset.KindSkill && opts.SkipSkills {
			continue
		}

		t, err := b.target(installDir, item)
		if err != nil {
			return b.abandon(result, err)
		}

		placed, err := b.place(t, owned, copyFiles)
		if err != nil {
			return b.abandon(result, fmt.Errorf("syncing %s %s: %w", kind, item.ID, err))
		}
		if !placed {
			result.Conflicts = append(result.Conflicts, t.Path)
			continue
		}
		delete(owned, t.Path)
		result.Synced = append(result.Synced, *t)
		st.Targets = append(st.Targets, *t)
	}

	// Targets from the previous sync that the manifest no longer declares.
	for _, stale := range owned {
		b.removeTarget(stale, &UnsyncResult{})
	}

	if len(st.Targets) == 0 {
		_ = os.Remove(statePath)
		return result, nil
	}
	if err := saveState(statePath, st); err != nil {
		return result, fmt.Errorf("saving sync state: %w", err)
	}
	return result, nil
}

// abandon removes the targets a failed sync already placed. Nothing has been
// written to the sync state yet, so a later unsync could not find them.
func (b *baseScope) abandon(res *SyncResult, err error) (*SyncResult, error) {
	undone := &UnsyncResult{}
	for _, t := range res.Synced {
		b.removeTarget(t, undone)
	}
	if len(undone.Kept) > 0 {
		b.log.Warn("could not remove entries of failed sync", "paths", undone.Kept)
	}
	return &SyncResult{Conflicts: res.Conflicts}, err
}

// target resolves where an item's source lives and where it goes.
func (b *baseScope) target(installDir string, item manifest.Item) (*Target, error) {
	kind := item.Kind()
	h, ok := asset.Get(kind)
	if !ok {
		return nil, fmt.Errorf("unknown item type %q", kind)
	}

	rel := filepath.FromSlash(item.File)
	if h.IsDirectory() {
		rel = asset.SkillDir(item.File)
	}
	source := filepath.Join(installDir, rel)

	st, err := fsutil.Inspect(source)
	if err != nil {
		return nil, err
	}
	if !st.Exists || st.IsBroken {
		if h.IsDirectory() {
			return nil, fmt.Errorf("%w: %s (%s)", ErrSkillNotFound, item.ID, item.File)
		}
		return nil, fmt.Errorf("%w: %s (%s)", ErrItemNotFound, item.ID, item.File)
	}

	dir, err := b.layout.ItemDir(b.scope, kind)
	if err != nil {
		return nil, err
	}
	return &Target{
		Kind:   kind,
		ItemID: item.ID,
		Path:   filepath.Join(dir, h.FileName(safeID(item.ID))),
		Source: source,
	}, nil
}

// place creates t on disk. It returns false without touching anything when
// an entry the engine does not own is already there.
func (b *baseScope) place(t *Target, owned map[string]Target, copyFiles bool) (bool, error) {
	st, err := fsutil.Inspect(t.Path)
	if err != nil {
		return false, err
	}

	if st.Exists {
		_, ours := owned[t.Path]
		switch {
		case st.IsBroken:
			b.log.Debug("replacing broken symlink", "path", t.Path)
		case st.IsSymlink && linksTo(t.Path, t.Source):
			ours = true
		}
		if !st.IsBroken && !ours {
			b.log.Warn("sync conflict: target exists and is not managed by promptrow, leaving it untouched", "path", t.Path)
			return false, nil
		}
		if err := fsutil.RemoveTree(t.Path); err != nil {
			return false, fmt.Errorf("replacing %s: %w", t.Path, err)
		}
	}

	isDir := t.Kind == asset.KindSkill
	switch {
	case copyFiles && isDir:
		if err := fsutil.CopyTree(t.Source, t.Path); err != nil {
			_ = fsutil.RemoveTree(t.Path)
			return false, err
		}
	case copyFiles:
		if err := fsutil.CopyFile(t.Source, t.Path); err != nil {
			return false, err
		}
	case isDir:
		linked, err := fsutil.LinkOrCopyDir(t.Source, t.Path)
		if err != nil {
			return false, err
		}
		t.Linked = linked
	default:
		linked, err := fsutil.LinkOrCopyFile(t.Source, t.Path)
		if err != nil {
			return false, err
		}
		t.Linked = linked
	}
	if !t.Linked && !copyFiles {
		b.log.Debug("symlink unavailable, copied instead", "path", t.Path)
	}
	return true, nil
}

func (b *baseScope) unsync(bundleID string) (*UnsyncResult, *syncState, error) {
	res := &UnsyncResult{}
	statePath, err := b.layout.SyncStatePath(b.scope, bundleID)
	if err != nil {
		return res, nil, err
	}
	st, err := loadState(statePath)
	if err != nil || st == nil {
		return res, nil, err
	}

	for _, t := range st.Targets {
		b.removeTarget(t, res)
	}
	if err := os.Remove(statePath); err != nil && !os.IsNotExist(err) {
		return res, st, fmt.Errorf("removing sync state: %w", err)
	}
	return res, st, nil
}

// removeTarget deletes a target only if it is still what the sync created:
// a link, or a copy whose content matches the bundle's source.
func (b *baseScope) removeTarget(t Target, res *UnsyncResult) {
	st, err := fsutil.Inspect(t.Path)
	if err != nil {
		b.log.Warn("inspecting synced entry", "path", t.Path, "error", err)
		res.Kept = append(res.Kept, t.Path)
		return
	}
	if !st.Exists {
		return
	}

	if st.IsSymlink {
		if err := os.Remove(t.Path); err != nil {
			b.log.Warn("removing synced link", "path", t.Path, "error", err)
			res.Kept = append(res.Kept, t.Path)
			return
		}
		res.Removed = append(res.Removed, t.Path)
		return
	}

	var equal bool
	if st.IsDir {
		equal, err = fsutil.TreeContentEqual(t.Path, t.Source)
	} else {
		equal, err = fsutil.ContentEqual(t.Path, t.Source)
	}
	if err != nil || !equal {
		b.log.Warn("synced copy was modified, keeping it", "path", t.Path)
		res.Kept = append(res.Kept, t.Path)
		return
	}

	if err := fsutil.RemoveTree(t.Path); err != nil {
		b.log.Warn("removing synced copy", "path", t.Path, "error", err)
		res.Kept = append(res.Kept, t.Path)
		return
	}
	res.Removed = append(res.Removed, t.Path)
}

func linksTo(link, target string) bool {
	dest, err := os.Readlink(link)
	if err != nil {
		return false
	}
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(filepath.Dir(link), dest)
	}
	return filepath.Clean(dest) == filepath.Clean(target)
}

// safeID keeps an item id usable as a single path element.
func safeID(id string) string {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fsutil.SanitizeName(id)
	}
	return id
}
