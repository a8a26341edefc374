// Package bundle holds the identity types shared by every promptrow component:
// the bundle descriptor handed over by acquisition adapters, installation
// scopes, source types, and repository commit modes.
package bundle

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// Scope is the installation lifetime/location tier.
type Scope string

const (
	ScopeUser       Scope = "user"
	ScopeWorkspace  Scope = "workspace"
	ScopeRepository Scope = "repository"
)

// Scopes returns all scopes in a stable order.
func Scopes() []Scope {
	return []Scope{ScopeUser, ScopeWorkspace, ScopeRepository}
}

// ParseScope validates a scope name.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeUser:
		return ScopeUser, nil
	case ScopeWorkspace:
		return ScopeWorkspace, nil
	case ScopeRepository:
		return ScopeRepository, nil
	default:
		return "", fmt.Errorf("unknown scope %q; available: user, workspace, repository", s)
	}
}

// SourceType identifies the acquisition adapter that produced a bundle.
type SourceType string

const (
	SourceTypeGitHub SourceType = "github"
	SourceTypeHTTP   SourceType = "http"
	SourceTypeLocal  SourceType = "local"

	// SourceTypeSkills bundles install directly into the scope's skills root.
	SourceTypeSkills SourceType = "skills"

	// SourceTypeLocalSkills bundles are "live" local skill folders, linked
	// rather than copied.
	SourceTypeLocalSkills SourceType = "local-skills"

	// SourceTypeExternalSkills bundles are vendor multi-skill repositories
	// installed into the workspace, namespaced by source name.
	SourceTypeExternalSkills SourceType = "external-skills"
)

// ExternalSkillsIDPrefix marks external-skills bundles whose adapter did not
// declare a source type.
const ExternalSkillsIDPrefix = "ext-skills-"

// IsExternalSkills reports whether a bundle uses the vendor external-skills layout.
func IsExternalSkills(id string, t SourceType) bool {
	return t == SourceTypeExternalSkills || strings.HasPrefix(id, ExternalSkillsIDPrefix)
}

// IsSkillsSource reports whether a bundle installs straight into a skills root.
func IsSkillsSource(t SourceType) bool {
	return t == SourceTypeSkills || t == SourceTypeLocalSkills
}

// CommitMode controls whether repository-scope files are meant to be tracked.
type CommitMode string

const (
	CommitModeCommit    CommitMode = "commit"
	CommitModeLocalOnly CommitMode = "local-only"
)

// ParseCommitMode validates a commit mode. Empty input yields CommitModeCommit.
func ParseCommitMode(s string) (CommitMode, error) {
	switch CommitMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", CommitModeCommit:
		return CommitModeCommit, nil
	case CommitModeLocalOnly:
		return CommitModeLocalOnly, nil
	default:
		return "", fmt.Errorf("unknown commit mode %q; available: commit, local-only", s)
	}
}

// VersionLatest is the descriptor version that skips the manifest version check.
const VersionLatest = "latest"

// Descriptor is the immutable identity of a bundle, produced by an
// acquisition adapter and only ever read by the engine.
type Descriptor struct {
	ID          string     `json:"id"`
	Version     string     `json:"version"`
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	Author      string     `json:"author,omitempty"`
	SourceID    string     `json:"sourceId,omitempty"`
	SourceType  SourceType `json:"sourceType,omitempty"`
	SourceName  string     `json:"sourceName,omitempty"`
	DownloadURL string     `json:"downloadUrl,omitempty"`
	ManifestURL string     `json:"manifestUrl,omitempty"`
}

// LocalPath returns the directory behind a file:// download URL.
func (d Descriptor) LocalPath() (string, bool) {
	return LocalPath(d.DownloadURL)
}

// LocalPath returns the filesystem path of a file:// URL.
func LocalPath(raw string) (string, bool) {
	if !strings.HasPrefix(raw, "file://") {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return "", false
	}
	return filepath.FromSlash(u.Path), true
}

// FileURL builds a file:// URL for an absolute path.
func FileURL(path string) string {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(path)}
	return u.String()
}
