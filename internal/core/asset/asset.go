// Package asset defines the item kinds a bundle can carry.
//
// Every item declared in a deployment manifest has a Kind. Each kind registers
// a Handler that knows how the item is named on disk, whether it is a single
// file or a directory, and which repository directory it belongs in. Handlers
// do NOT know about scopes or install locations.
package asset

import (
	"fmt"
	"strings"
)

// Kind identifies an item type.
type Kind string

const (
	KindPrompt       Kind = "prompt"
	KindInstructions Kind = "instructions"
	KindChatmode     Kind = "chatmode"
	KindAgent        Kind = "agent"
	KindSkill        Kind = "skill"
)

// Handler describes how items of one kind are laid out on disk.
type Handler interface {
	Kind() Kind
	DisplayName() string // Human-readable: "Prompt", "Skill"

	// IsDirectory reports whether items of this kind are directories.
	IsDirectory() bool

	// FileName is the native file (or directory) name for an item id,
	// e.g. "review.prompt.md".
	FileName(id string) string

	// RepositoryDir is the workspace-relative directory for repository scope.
	RepositoryDir() string

	// Match reports whether a tree entry is an item of this kind and, if so,
	// the item id derived from its name.
	Match(path string, isDir bool) (id string, ok bool)
}

// --- Registry ---

var handlers = map[Kind]Handler{}

// Register adds a handler for the given kind.
func Register(h Handler) { handlers[h.Kind()] = h }

// Get returns the handler for the given kind, if registered.
func Get(k Kind) (Handler, bool) { h, ok := handlers[k]; return h, ok }

// Kinds returns all registered kinds in a stable order: file kinds first in
// declaration order, then skills.
func Kinds() []Kind {
	order := []Kind{KindPrompt, KindInstructions, KindChatmode, KindAgent, KindSkill}
	result := make([]Kind, 0, len(handlers))
	for _, k := range order {
		if _, ok := handlers[k]; ok {
			result = append(result, k)
		}
	}
	return result
}

// ParseKind resolves a manifest type string. An empty type means prompt.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return KindPrompt, nil
	}
	if _, ok := handlers[Kind(s)]; ok {
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown item type %q", s)
}

// fileHandler covers the single-file kinds, which differ only by suffix and
// repository directory.
type fileHandler struct {
	kind    Kind
	display string
	repoDir string
}

func (h fileHandler) Kind() Kind            { return h.kind }
func (h fileHandler) DisplayName() string   { return h.display }
func (h fileHandler) IsDirectory() bool     { return false }
func (h fileHandler) RepositoryDir() string { return h.repoDir }

func (h fileHandler) suffix() string { return "." + string(h.kind) + ".md" }

func (h fileHandler) FileName(id string) string { return id + h.suffix() }

func (h fileHandler) Match(path string, isDir bool) (string, bool) {
	if isDir {
		return "", false
	}
	base := path
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	id, ok := strings.CutSuffix(base, h.suffix())
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

func init() {
	Register(fileHandler{kind: KindPrompt, display: "Prompt", repoDir: ".github/prompts"})
	Register(fileHandler{kind: KindInstructions, display: "Instructions", repoDir: ".github/instructions"})
	Register(fileHandler{kind: KindChatmode, display: "Chat Mode", repoDir: ".github/chatmodes"})
	Register(fileHandler{kind: KindAgent, display: "Agent", repoDir: ".github/agents"})
}
