package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barysiuk/promptrow/internal/core/asset"
	"github.com/barysiuk/promptrow/internal/core/bundle"
)

const fullManifest = `id: acme-tools
version: "1.0.0"
name: Acme Tools
description: Prompts for the acme team
author: acme
tags: [review, go]
environments: [vscode]
license: MIT
repository: https://github.com/acme/tools
prompts:
  - id: review
    name: Code review
    file: prompts/review.prompt.md
    type: prompt
    tags: [review]
  - id: go-style
    file: instructions/go.instructions.md
    type: instructions
  - id: lint
    file: skills/lint/SKILL.md
    type: skill
  - id: untyped
    file: prompts/untyped.prompt.md
dependencies:
  - base-prompts
  - id: shared
    version: 2.1.0
mcpServers:
  github:
    command: npx
    args: ["-y", "@modelcontextprotocol/server-github", "${bundlePath}"]
    env:
      LOG_LEVEL: debug
  docs:
    type: http
    url: https://docs.example.com/mcp
common:
  directories: [shared]
  include: ["**/*.md"]
bundle_settings:
  compression: zip
  create_common_bundle: true
metadata:
  manifest_version: 1.0
  last_updated: 2024-05-01
`

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))
	return dir
}

func TestParse(t *testing.T) {
	t.Parallel()

	m, err := Parse([]byte(fullManifest))
	require.NoError(t, err)

	assert.Equal(t, "acme-tools", m.ID)
	assert.Equal(t, "1.0.0", m.Version)
	assert.Equal(t, "Acme Tools", m.Name)
	assert.Equal(t, []string{"review", "go"}, m.Tags)
	require.Len(t, m.Prompts, 4)
	assert.Equal(t, asset.KindInstructions, m.Prompts[1].Kind())
	assert.Equal(t, asset.KindPrompt, m.Prompts[3].Kind(), "missing type defaults to prompt")

	require.Len(t, m.Dependencies, 2)
	assert.Equal(t, Dependency{ID: "base-prompts"}, m.Dependencies[0])
	assert.Equal(t, Dependency{ID: "shared", Version: "2.1.0"}, m.Dependencies[1])

	assert.Equal(t, []string{"docs", "github"}, m.ServerNames())
	assert.True(t, m.MCPServers["github"].IsStdio())
	assert.Equal(t, "debug", m.MCPServers["github"].Env["LOG_LEVEL"])
	assert.Equal(t, "https://docs.example.com/mcp", m.MCPServers["docs"].URL)

	assert.Equal(t, "zip", m.BundleSettings.Compression)
	assert.True(t, m.BundleSettings.CreateCommonBundle)
	assert.Equal(t, "1.0", m.Metadata.ManifestVersion)
	assert.Len(t, m.ItemsOf(asset.KindSkill), 1)
}

func TestParse_NumericScalars(t *testing.T) {
	t.Parallel()

	m, err := Parse([]byte("id: 42\nversion: 2.0\nname: numbers\n"))
	require.NoError(t, err)
	assert.Equal(t, "42", m.ID)
	assert.Equal(t, "2.0", m.Version)
}

func TestParse_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
	}{
		{"bad yaml", "id: [unclosed"},
		{"empty", ""},
		{"not a mapping", "- a\n- b\n"},
		{"prompt without file", "id: a\nversion: 1\nname: a\nprompts:\n  - id: x\n"},
		{"unknown item type", "id: a\nversion: 1\nname: a\nprompts:\n  - id: x\n    file: x.md\n    type: widget\n"},
		{"tags not a list", "id: a\nversion: 1\nname: a\ntags: nope\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.content))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	dir := writeManifest(t, "id: acme-tools\nversion: \"1.0.0\"\nname: Acme\n")

	tests := []struct {
		name    string
		d       bundle.Descriptor
		wantErr error
	}{
		{"exact", bundle.Descriptor{ID: "acme-tools", Version: "1.0.0"}, nil},
		{"latest bypasses version", bundle.Descriptor{ID: "acme-tools", Version: "latest"}, nil},
		{"composite id", bundle.Descriptor{ID: "acme-repo-acme-tools-1.0.0", Version: "1.0.0"}, nil},
		{"composite id with v", bundle.Descriptor{ID: "acme-repo-acme-tools-v1.0.0", Version: "1.0.0"}, nil},
		{"id mismatch", bundle.Descriptor{ID: "other", Version: "1.0.0"}, ErrIDMismatch},
		{"version mismatch", bundle.Descriptor{ID: "acme-tools", Version: "2.0.0"}, ErrVersionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m, err := Validate(dir, tt.d)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "acme-tools", m.ID)
		})
	}
}

func TestValidate_VersionMismatchAgainstLatest(t *testing.T) {
	t.Parallel()

	dir := writeManifest(t, "id: acme-tools\nversion: \"2.0.0\"\nname: Acme\n")

	_, err := Validate(dir, bundle.Descriptor{ID: "acme-tools", Version: "1.0.0"})
	assert.ErrorIs(t, err, ErrVersionMismatch)

	m, err := Validate(dir, bundle.Descriptor{ID: "acme-tools", Version: bundle.VersionLatest})
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", m.Version)
}

func TestValidate_MissingRequired(t *testing.T) {
	t.Parallel()

	for _, content := range []string{
		"version: 1.0.0\nname: a\n",
		"id: a\nname: a\n",
		"id: a\nversion: 1.0.0\n",
		"id: \"\"\nversion: 1.0.0\nname: a\n",
	} {
		dir := writeManifest(t, content)
		_, err := Validate(dir, bundle.Descriptor{ID: "a", Version: "1.0.0"})
		assert.ErrorIs(t, err, ErrInvalid, content)
	}
}

func TestValidate_SynthesizesWhenAbsent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "prompts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prompts", "hello.prompt.md"), []byte("# hi"), 0o644))

	d := bundle.Descriptor{ID: "community-pack", Version: "0.3.0", Description: "From the community", Author: "someone"}
	m, err := Validate(dir, d)
	require.NoError(t, err)

	assert.Equal(t, "community-pack", m.ID)
	assert.Equal(t, "0.3.0", m.Version)
	assert.Equal(t, "community-pack", m.Name)
	assert.Equal(t, []string{"**/*"}, m.Common.Include)
	assert.Empty(t, m.Common.Files)
	assert.Empty(t, m.Common.Directories)
	assert.Equal(t, "none", m.BundleSettings.Compression)
	assert.Equal(t, "From the community", m.Metadata.Description)
	assert.Equal(t, "someone", m.Metadata.Author)

	require.Len(t, m.Prompts, 1)
	assert.Equal(t, Item{ID: "hello", Name: "hello", File: "prompts/hello.prompt.md", Type: asset.KindPrompt}, m.Prompts[0])
}

func TestMatchesID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		manifestID, version, descriptorID string
		want                              bool
	}{
		{"acme", "1.0.0", "acme", true},
		{"acme", "1.0.0", "owner-repo-acme-1.0.0", true},
		{"acme", "1.0.0", "owner-repo-acme-v1.0.0", true},
		{"acme", "v1.0.0", "owner-repo-acme-1.0.0", true},
		{"acme", "1.0.0", "owner-repo-acme", true},
		{"acme", "1.0.0", "owner-repoacme", false},
		{"acme", "1.0.0", "acme-tools", false},
		{"acme", "1.0.0", "owner-repo-acme-2.0.0", false},
		{"", "1.0.0", "anything", false},
	}
	for _, tt := range tests {
		got := MatchesID(tt.manifestID, tt.version, tt.descriptorID)
		assert.Equal(t, tt.want, got, "MatchesID(%q, %q, %q)", tt.manifestID, tt.version, tt.descriptorID)
	}
}

func TestServerValidate(t *testing.T) {
	t.Parallel()

	valid := []Server{
		{Command: "npx"},
		{Type: "stdio", Command: "node", Args: []string{"server.js"}},
		{Type: "http", URL: "https://example.com/mcp"},
		{URL: "https://example.com/sse", Type: "sse"},
	}
	for _, s := range valid {
		assert.NoError(t, s.Validate(), "%+v", s)
	}

	invalid := []Server{
		{},
		{Command: "npx", URL: "https://example.com"},
		{Type: "stdio", URL: "https://example.com"},
		{Type: "http", Command: "npx"},
		{Type: "grpc", Command: "npx"},
	}
	for _, s := range invalid {
		assert.Error(t, s.Validate(), "%+v", s)
	}
}
