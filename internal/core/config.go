package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/adrg/xdg"

	"github.com/barysiuk/promptrow/internal/core/fsutil"
	"github.com/barysiuk/promptrow/internal/core/layout"
)

const (
	configDirName  = ".promptrow"
	configFileName = "config.json"

	// HomeEnv overrides the configuration directory.
	HomeEnv = "PROMPTROW_HOME"
)

// Config is the promptrow configuration stored at ~/.promptrow/config.json.
// Empty paths fall back to the layout defaults.
type Config struct {
	GlobalStorage  string `json:"globalStorage,omitempty"`
	UserPromptsDir string `json:"userPromptsDir,omitempty"`
	UserSkillsDir  string `json:"userSkillsDir,omitempty"`
	UserMCPConfig  string `json:"userMcpConfig,omitempty"`
	LogLevel       string `json:"logLevel,omitempty"`
	LogFormat      string `json:"logFormat,omitempty"`
}

// LayoutOptions maps the configured paths onto layout options for workspace.
func (c *Config) LayoutOptions(workspace string) layout.Options {
	return layout.Options{
		GlobalStorage:  expandPath(c.GlobalStorage),
		Workspace:      workspace,
		UserPromptsDir: expandPath(c.UserPromptsDir),
		UserSkillsDir:  expandPath(c.UserSkillsDir),
		UserMCPConfig:  expandPath(c.UserMCPConfig),
	}
}

// ConfigManager handles reading and writing the promptrow configuration.
type ConfigManager struct {
	configDir string
	mu        sync.RWMutex
}

// NewConfigManager creates a ConfigManager using $PROMPTROW_HOME, or
// ~/.promptrow/ when unset.
func NewConfigManager() (*ConfigManager, error) {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return &ConfigManager{configDir: dir}, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting home directory: %w", err)
	}
	return &ConfigManager{
		configDir: filepath.Join(home, configDirName),
	}, nil
}

// NewConfigManagerWithDir creates a ConfigManager using a custom config directory.
// Useful for testing.
func NewConfigManagerWithDir(dir string) *ConfigManager {
	return &ConfigManager{configDir: dir}
}

// ConfigDir returns the configuration directory path.
func (cm *ConfigManager) ConfigDir() string {
	return cm.configDir
}

// ConfigPath returns the full path to the config file.
func (cm *ConfigManager) ConfigPath() string {
	return filepath.Join(cm.configDir, configFileName)
}

// Load reads the config from disk. Returns default config if file doesn't exist.
func (cm *ConfigManager) Load() (*Config, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	data, err := os.ReadFile(cm.ConfigPath())
	if err != nil {
		if os.IsNotExist(err) {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := defaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to disk, creating the directory if needed.
func (cm *ConfigManager) Save(cfg *Config) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := fsutil.WriteFileAtomic(cm.ConfigPath(), data); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		LogLevel:  "warn",
		LogFormat: "text",
	}
}

// expandPath expands ~ to the home directory and $VAR references to env
// values. $XDG_CONFIG resolves through xdg even when XDG_CONFIG_HOME is unset.
func expandPath(p string) string {
	if p == "" {
		return ""
	}
	if strings.Contains(p, "$") {
		p = os.Expand(p, func(key string) string {
			if key == "XDG_CONFIG" {
				return xdg.ConfigHome
			}
			return os.Getenv(key)
		})
	}

	if strings.HasPrefix(p, "~/") {
		home, _ := os.UserHomeDir()
		p = filepath.Join(home, p[2:])
	} else if p == "~" {
		home, _ := os.UserHomeDir()
		p = home
	}
	return p
}
