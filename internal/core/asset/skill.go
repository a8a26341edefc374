package asset

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SkillFileName is the entry point every skill directory carries.
const SkillFileName = "SKILL.md"

// Skill is the metadata parsed from SKILL.md frontmatter.
type Skill struct {
	Name        string
	Description string
	Author      string
	Version     string
	License     string
}

// skillFrontmatter is the raw YAML structure in a SKILL.md file.
type skillFrontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	License     string `yaml:"license,omitempty"`
	Metadata    struct {
		Author  string `yaml:"author,omitempty"`
		Version string `yaml:"version,omitempty"`
	} `yaml:"metadata,omitempty"`
}

// SkillHandler handles directory-shaped skill items.
type SkillHandler struct{}

func (h *SkillHandler) Kind() Kind            { return KindSkill }
func (h *SkillHandler) DisplayName() string   { return "Skill" }
func (h *SkillHandler) IsDirectory() bool     { return true }
func (h *SkillHandler) RepositoryDir() string { return ".github/skills" }

// FileName returns the skill directory name, which is the id itself.
func (h *SkillHandler) FileName(id string) string { return id }

// Match accepts a directory that contains a SKILL.md. The id is the
// frontmatter name when readable, the directory name otherwise.
func (h *SkillHandler) Match(path string, isDir bool) (string, bool) {
	if !isDir {
		return "", false
	}
	if _, err := os.Stat(filepath.Join(path, SkillFileName)); err != nil {
		return "", false
	}
	if s, err := ParseSkill(path); err == nil {
		return s.Name, true
	}
	return filepath.Base(path), true
}

// SkillDir maps a manifest file reference to the skill directory it names.
// Both "skills/x" and "skills/x/SKILL.md" resolve to "skills/x".
func SkillDir(file string) string {
	file = filepath.Clean(filepath.FromSlash(file))
	if filepath.Base(file) == SkillFileName {
		return filepath.Dir(file)
	}
	return file
}

// ParseSkill reads SKILL.md frontmatter in the given directory.
func ParseSkill(dir string) (*Skill, error) {
	fm, err := parseSkillFrontmatter(filepath.Join(dir, SkillFileName))
	if err != nil {
		return nil, err
	}
	return &Skill{
		Name:        fm.Name,
		Description: fm.Description,
		Author:      fm.Metadata.Author,
		Version:     fm.Metadata.Version,
		License:     fm.License,
	}, nil
}

// parseSkillFrontmatter reads YAML frontmatter from a SKILL.md file.
func parseSkillFrontmatter(path string) (*skillFrontmatter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)

	if !scanner.Scan() {
		return nil, fmt.Errorf("empty file: %s", path)
	}
	if strings.TrimSpace(scanner.Text()) != "---" {
		return nil, fmt.Errorf("no frontmatter in %s", path)
	}

	var frontmatter strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			break
		}
		frontmatter.WriteString(line)
		frontmatter.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var fm skillFrontmatter
	if err := yaml.Unmarshal([]byte(frontmatter.String()), &fm); err != nil {
		return nil, fmt.Errorf("parsing frontmatter in %s: %w", path, err)
	}
	if fm.Name == "" {
		return nil, fmt.Errorf("SKILL.md missing name field: %s", path)
	}
	return &fm, nil
}

func init() { Register(&SkillHandler{}) }
