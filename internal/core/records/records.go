// Package records stores the installed-bundle records, one JSON file per
// scope. A record is the authoritative statement that a bundle is installed.
package records

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/barysiuk/promptrow/internal/core/bundle"
	"github.com/barysiuk/promptrow/internal/core/fsutil"
	"github.com/barysiuk/promptrow/internal/core/layout"
	"github.com/barysiuk/promptrow/internal/core/manifest"
)

// Record describes one installed bundle.
type Record struct {
	BundleID    string             `json:"bundleId"`
	Version     string             `json:"version"`
	InstalledAt time.Time          `json:"installedAt"`
	Scope       bundle.Scope       `json:"scope"`
	InstallPath string             `json:"installPath"`
	Manifest    *manifest.Manifest `json:"manifest,omitempty"`
	SourceID    string             `json:"sourceId,omitempty"`
	SourceType  bundle.SourceType  `json:"sourceType,omitempty"`
	SourceName  string             `json:"sourceName,omitempty"`
	CommitMode  bundle.CommitMode  `json:"commitMode,omitempty"`
	ProfileID   string             `json:"profileId,omitempty"`
	SyncedFiles []string           `json:"syncedFiles,omitempty"`
	Skills      []string           `json:"skills,omitempty"`
	MCPServers  []string           `json:"mcpServers,omitempty"`
}

type document struct {
	Bundles map[string]Record `json:"bundles"`
}

// Store reads and writes records at the layout's per-scope paths.
type Store struct {
	layout *layout.Layout
	mu     sync.RWMutex
}

// NewStore returns a Store over l.
func NewStore(l *layout.Layout) *Store {
	return &Store{layout: l}
}

// Get returns the record for bundleID in scope. ok is false when the
// bundle is not installed there.
func (s *Store) Get(scope bundle.Scope, bundleID string) (rec Record, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.load(scope)
	if err != nil {
		return Record{}, false, err
	}
	rec, ok = doc.Bundles[bundleID]
	return rec, ok, nil
}

// Find looks bundleID up in every scope, in bundle.Scopes order.
func (s *Store) Find(bundleID string) (Record, bool, error) {
	for _, sc := range bundle.Scopes() {
		rec, ok, err := s.Get(sc, bundleID)
		if err != nil {
			if isUnavailable(err) {
				continue
			}
			return Record{}, false, err
		}
		if ok {
			return rec, true, nil
		}
	}
	return Record{}, false, nil
}

// Put stores rec, replacing any record with the same id in its scope.
func (s *Store) Put(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(rec.Scope)
	if err != nil {
		return err
	}
	doc.Bundles[rec.BundleID] = rec
	return s.save(rec.Scope, doc)
}

// Delete removes the record for bundleID. No-op if absent.
func (s *Store) Delete(scope bundle.Scope, bundleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load(scope)
	if err != nil {
		return err
	}
	if _, ok := doc.Bundles[bundleID]; !ok {
		return nil
	}
	delete(doc.Bundles, bundleID)
	return s.save(scope, doc)
}

// List returns the records of scope sorted by bundle id.
func (s *Store) List(scope bundle.Scope) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.load(scope)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(doc.Bundles))
	for _, r := range doc.Bundles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BundleID < out[j].BundleID })
	return out, nil
}

// ListAll returns the records of every scope that has storage available.
func (s *Store) ListAll() ([]Record, error) {
	var all []Record
	for _, sc := range bundle.Scopes() {
		recs, err := s.List(sc)
		if err != nil {
			if isUnavailable(err) {
				continue
			}
			return nil, err
		}
		all = append(all, recs...)
	}
	return all, nil
}

func (s *Store) load(scope bundle.Scope) (*document, error) {
	path, err := s.layout.RecordsPath(scope)
	if err != nil {
		return nil, err
	}
	doc := &document{}
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("reading records: %w", err)
	default:
		if err := json.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("parsing records %s: %w", path, err)
		}
	}
	if doc.Bundles == nil {
		doc.Bundles = make(map[string]Record)
	}
	return doc, nil
}

func (s *Store) save(scope bundle.Scope, doc *document) error {
	path, err := s.layout.RecordsPath(scope)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling records: %w", err)
	}
	if err := fsutil.WriteFileAtomic(path, append(data, '\n')); err != nil {
		return fmt.Errorf("saving records: %w", err)
	}
	return nil
}

func isUnavailable(err error) bool {
	return errors.Is(err, layout.ErrNoWorkspace) || errors.Is(err, layout.ErrNoWorkspaceStorage)
}
