// Package manifest parses and validates deployment-manifest.yml, the
// declarative description of a bundle's contents.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/barysiuk/promptrow/internal/core/asset"
)

// FileName is the manifest file at the root of a bundle tree.
const FileName = "deployment-manifest.yml"

var (
	ErrInvalid         = errors.New("invalid manifest")
	ErrIDMismatch      = errors.New("bundle id mismatch")
	ErrVersionMismatch = errors.New("bundle version mismatch")
)

// Manifest is the parsed deployment manifest. It is read-only once parsed.
type Manifest struct {
	ID             string            `yaml:"id" json:"id"`
	Version        string            `yaml:"version" json:"version"`
	Name           string            `yaml:"name" json:"name"`
	Description    string            `yaml:"description,omitempty" json:"description,omitempty"`
	Author         string            `yaml:"author,omitempty" json:"author,omitempty"`
	Tags           []string          `yaml:"tags,omitempty" json:"tags,omitempty"`
	Environments   []string          `yaml:"environments,omitempty" json:"environments,omitempty"`
	License        string            `yaml:"license,omitempty" json:"license,omitempty"`
	Repository     string            `yaml:"repository,omitempty" json:"repository,omitempty"`
	Prompts        []Item            `yaml:"prompts,omitempty" json:"prompts,omitempty"`
	Dependencies   []Dependency      `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	MCPServers     map[string]Server `yaml:"mcpServers,omitempty" json:"mcpServers,omitempty"`
	Common         Common            `yaml:"common,omitempty" json:"common,omitempty"`
	BundleSettings BundleSettings    `yaml:"bundle_settings,omitempty" json:"bundle_settings,omitempty"`
	Metadata       Metadata          `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// Item is one declared prompt, instructions, chatmode, agent, or skill.
type Item struct {
	ID          string     `yaml:"id" json:"id"`
	Name        string     `yaml:"name,omitempty" json:"name,omitempty"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	File        string     `yaml:"file" json:"file"`
	Type        asset.Kind `yaml:"type,omitempty" json:"type,omitempty"`
	Tags        []string   `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// Kind returns the item kind, defaulting to prompt.
func (i Item) Kind() asset.Kind {
	if i.Type == "" {
		return asset.KindPrompt
	}
	return i.Type
}

// Dependency is another bundle this one expects. The YAML form is either a
// bare id string or a mapping with id and version.
type Dependency struct {
	ID      string `yaml:"id" json:"id"`
	Version string `yaml:"version,omitempty" json:"version,omitempty"`
}

// UnmarshalYAML accepts both the scalar and mapping forms.
func (d *Dependency) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		d.ID = node.Value
		return nil
	}
	type plain Dependency
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*d = Dependency(p)
	return nil
}

// Server is an MCP server definition as written to mcp.json.
type Server struct {
	Type     string            `yaml:"type,omitempty" json:"type,omitempty"` // "stdio", "http", "sse"
	Command  string            `yaml:"command,omitempty" json:"command,omitempty"`
	Args     []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env      map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	EnvFile  string            `yaml:"envFile,omitempty" json:"envFile,omitempty"`
	URL      string            `yaml:"url,omitempty" json:"url,omitempty"`
	Headers  map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Disabled bool              `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// IsStdio returns true if this server uses stdio transport (has a command).
func (s Server) IsStdio() bool { return s.Command != "" }

// Validate checks that a server definition is well-formed.
func (s Server) Validate() error {
	if s.Command == "" && s.URL == "" {
		return fmt.Errorf("server must have either command (stdio) or url (remote)")
	}
	if s.Command != "" && s.URL != "" {
		return fmt.Errorf("server cannot have both command and url")
	}
	switch s.Type {
	case "":
	case "stdio":
		if s.Command == "" {
			return fmt.Errorf("stdio server requires a command")
		}
	case "http", "sse":
		if s.URL == "" {
			return fmt.Errorf("%s server requires a url", s.Type)
		}
	default:
		return fmt.Errorf("unknown server type %q", s.Type)
	}
	return nil
}

// Common lists files shared across environment bundles.
type Common struct {
	Directories []string `yaml:"directories,omitempty" json:"directories,omitempty"`
	Files       []string `yaml:"files,omitempty" json:"files,omitempty"`
	Include     []string `yaml:"include,omitempty" json:"include,omitempty"`
	Exclude     []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
}

// BundleSettings controls how a bundle was packaged.
type BundleSettings struct {
	Compression                      string `yaml:"compression,omitempty" json:"compression,omitempty"`
	Naming                           string `yaml:"naming,omitempty" json:"naming,omitempty"`
	IncludeCommonInEnvironmentBundle bool   `yaml:"include_common_in_environment_bundles,omitempty" json:"include_common_in_environment_bundles,omitempty"`
	CreateCommonBundle               bool   `yaml:"create_common_bundle,omitempty" json:"create_common_bundle,omitempty"`
}

// Metadata describes the manifest document itself.
type Metadata struct {
	ManifestVersion string `yaml:"manifest_version,omitempty" json:"manifest_version,omitempty"`
	Author          string `yaml:"author,omitempty" json:"author,omitempty"`
	Description     string `yaml:"description,omitempty" json:"description,omitempty"`
	LastUpdated     string `yaml:"last_updated,omitempty" json:"last_updated,omitempty"`
}

// ItemsOf returns the declared items of one kind.
func (m *Manifest) ItemsOf(k asset.Kind) []Item {
	var items []Item
	for _, it := range m.Prompts {
		if it.Kind() == k {
			items = append(items, it)
		}
	}
	return items
}

// ServerNames returns the declared MCP server names, sorted.
func (m *Manifest) ServerNames() []string {
	names := make([]string, 0, len(m.MCPServers))
	for name := range m.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse decodes and structurally checks manifest YAML. It does not enforce
// required fields; see Validate.
func Parse(data []byte) (*Manifest, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: parsing yaml: %v", ErrInvalid, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalid)
	}

	raw, err := json.Marshal(jsonCompatible(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := validateSchema(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decoding: %v", ErrInvalid, err)
	}
	for i, it := range m.Prompts {
		kind, err := asset.ParseKind(string(it.Type))
		if err != nil {
			return nil, fmt.Errorf("%w: prompts[%d]: %v", ErrInvalid, i, err)
		}
		m.Prompts[i].Type = kind
	}
	return &m, nil
}

// Load reads and parses the manifest in dir. A missing file is reported as
// an error satisfying errors.Is(err, os.ErrNotExist).
func Load(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// jsonCompatible rewrites decoded YAML so encoding/json accepts it: maps with
// non-string keys are stringified and timestamps become RFC3339 strings.
func jsonCompatible(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = jsonCompatible(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = jsonCompatible(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = jsonCompatible(val)
		}
		return t
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return v
	}
}
