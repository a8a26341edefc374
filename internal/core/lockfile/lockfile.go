// Package lockfile maintains promptrow.lock.json, the checksum record of the
// bundles synced into a repository.
package lockfile

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/barysiuk/promptrow/internal/core/bundle"
	"github.com/barysiuk/promptrow/internal/core/fsutil"
	"github.com/barysiuk/promptrow/internal/logging"
)

const (
	// FileName is the lockfile name at the workspace root.
	FileName       = "promptrow.lock.json"
	currentVersion = 1
)

// Lockfile is the on-disk document. Bundles is keyed by bundle id, which
// also keeps the written entries sorted.
type Lockfile struct {
	LockfileVersion int              `json:"lockfileVersion"`
	GeneratedAt     time.Time        `json:"generatedAt"`
	Bundles         map[string]Entry `json:"bundles"`
}

// Entry records one installed bundle.
type Entry struct {
	BundleID    string            `json:"bundleId"`
	Version     string            `json:"version"`
	SourceID    string            `json:"sourceId,omitempty"`
	SourceType  bundle.SourceType `json:"sourceType,omitempty"`
	CommitMode  bundle.CommitMode `json:"commitMode,omitempty"`
	InstalledAt time.Time         `json:"installedAt"`
	Source      Source            `json:"source"`
	Files       []FileChecksum    `json:"files"`
	MCPServers  []string          `json:"mcpServers,omitempty"`
}

// Source is where the bundle came from.
type Source struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

// FileChecksum is the digest of one placed file. Path is slash-separated and
// relative to the workspace root, or to the bundle cache copy when Cache is set.
type FileChecksum struct {
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
	Cache    bool   `json:"cache,omitempty"`
}

// Registry hands out one Manager per workspace root.
type Registry struct {
	mu       sync.Mutex
	log      *slog.Logger
	now      func() time.Time
	managers map[string]*Manager
}

// NewRegistry returns an empty Registry. A nil logger discards output.
func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = logging.Discard()
	}
	return &Registry{log: log, now: time.Now, managers: make(map[string]*Manager)}
}

// SetClock overrides the time source used for generatedAt.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
	for _, m := range r.managers {
		m.now = now
	}
}

// For returns the Manager for workspaceRoot, creating it on first use.
func (r *Registry) For(workspaceRoot string) *Manager {
	root := filepath.Clean(workspaceRoot)

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.managers[root]; ok {
		return m
	}
	m := &Manager{root: root, log: r.log.With("lockfile", filepath.Join(root, FileName)), now: r.now}
	r.managers[root] = m
	return m
}

// Manager reads and writes one workspace's lockfile.
type Manager struct {
	root string
	log  *slog.Logger
	now  func() time.Time
}

// Root returns the workspace root.
func (m *Manager) Root() string { return m.root }

// Path returns the full path to the lockfile.
func (m *Manager) Path() string {
	return filepath.Join(m.root, FileName)
}

// Read parses the lockfile. Returns nil, nil if the file does not exist.
func (m *Manager) Read() (*Lockfile, error) {
	data, err := os.ReadFile(m.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading lock file: %w", err)
	}

	var lf Lockfile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parsing lock file: %w", err)
	}
	if lf.Bundles == nil {
		lf.Bundles = make(map[string]Entry)
	}
	return &lf, nil
}

// CreateOrUpdate upserts entry by bundle id, creating the lockfile if needed.
func (m *Manager) CreateOrUpdate(entry Entry) error {
	lf, err := m.Read()
	if err != nil {
		return err
	}
	if lf == nil {
		lf = &Lockfile{LockfileVersion: currentVersion, Bundles: make(map[string]Entry)}
	}
	lf.Bundles[entry.BundleID] = entry
	m.log.Debug("lock entry written", "bundle", entry.BundleID, "files", len(entry.Files))
	return m.write(lf)
}

// Remove drops the entry for bundleID. The lockfile is deleted once it holds
// no entries. No-op if the lockfile or entry does not exist.
func (m *Manager) Remove(bundleID string) error {
	lf, err := m.Read()
	if err != nil || lf == nil {
		return err
	}
	if _, ok := lf.Bundles[bundleID]; !ok {
		return nil
	}
	delete(lf.Bundles, bundleID)

	if len(lf.Bundles) == 0 {
		if err := os.Remove(m.Path()); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing lock file: %w", err)
		}
		m.log.Debug("lock file removed")
		return nil
	}
	return m.write(lf)
}

// Get returns the entry for bundleID, if recorded.
func (m *Manager) Get(bundleID string) (Entry, bool, error) {
	lf, err := m.Read()
	if err != nil || lf == nil {
		return Entry{}, false, err
	}
	e, ok := lf.Bundles[bundleID]
	return e, ok, nil
}

func (m *Manager) write(lf *Lockfile) error {
	lf.LockfileVersion = currentVersion
	lf.GeneratedAt = m.now().UTC()

	data, err := json.MarshalIndent(lf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}
	data = append(data, '\n')

	if err := fsutil.WriteFileAtomic(m.Path(), data); err != nil {
		return fmt.Errorf("saving lock file: %w", err)
	}
	return nil
}
