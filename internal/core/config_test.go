package core

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigManager_DefaultConfig(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigManagerWithDir(dir)

	cfg, err := cm.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}
	if cfg.LogLevel != "warn" || cfg.LogFormat != "text" {
		t.Errorf("defaults = %q/%q, want warn/text", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.GlobalStorage != "" {
		t.Errorf("GlobalStorage = %q, want empty (layout default)", cfg.GlobalStorage)
	}
}

func TestConfigManager_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigManagerWithDir(filepath.Join(dir, "nested"))

	cfg := &Config{
		GlobalStorage: "/data/promptrow",
		UserSkillsDir: "/home/user/.copilot/skills",
		LogLevel:      "debug",
	}
	if err := cm.Save(cfg); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := os.Stat(cm.ConfigPath()); err != nil {
		t.Fatalf("config file not created: %v", err)
	}

	loaded, err := cm.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if loaded.GlobalStorage != "/data/promptrow" || loaded.UserSkillsDir != "/home/user/.copilot/skills" {
		t.Errorf("loaded = %+v", loaded)
	}
	if loaded.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", loaded.LogLevel)
	}
	if loaded.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want default text", loaded.LogFormat)
	}
}

func TestConfigManager_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	cm := NewConfigManagerWithDir(dir)
	if err := os.WriteFile(cm.ConfigPath(), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := cm.Load(); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestNewConfigManager_HonorsHomeEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(HomeEnv, dir)

	cm, err := NewConfigManager()
	if err != nil {
		t.Fatal(err)
	}
	if cm.ConfigDir() != dir {
		t.Errorf("ConfigDir() = %q, want %q", cm.ConfigDir(), dir)
	}
}

func TestConfig_LayoutOptions(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	t.Setenv("PROMPTROW_TEST_ROOT", "/srv")

	cfg := &Config{
		GlobalStorage:  "~/storage",
		UserPromptsDir: "$PROMPTROW_TEST_ROOT/prompts",
	}
	opts := cfg.LayoutOptions("/ws")
	if opts.GlobalStorage != filepath.Join(home, "storage") {
		t.Errorf("GlobalStorage = %q", opts.GlobalStorage)
	}
	if opts.UserPromptsDir != "/srv/prompts" {
		t.Errorf("UserPromptsDir = %q", opts.UserPromptsDir)
	}
	if opts.Workspace != "/ws" || opts.UserSkillsDir != "" {
		t.Errorf("opts = %+v", opts)
	}
}
