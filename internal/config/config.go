package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DirName is the per-user state directory under $HOME.
const DirName = ".expfactory"

// FileName is the configuration file inside DirName.
const FileName = "config.yaml"

// DBPathEnv overrides the configured database file. The dev commands refuse to run
// without it.
const DBPathEnv = "EXPFACTORY_DB_PATH"

// Config holds filesystem locations used by the deployment tooling.
type Config struct {
	// RepoDir is where experiment origins are cloned.
	RepoDir string `yaml:"repo_dir"`
	// DeploymentDir is where commit worktrees are checked out.
	DeploymentDir string `yaml:"deployment_dir"`
	// DBPath is the SQLite database file.
	DBPath string `yaml:"db_path"`
	// Actor is recorded in the audit log when no --actor flag is given.
	Actor string `yaml:"actor,omitempty"`
}

// Default returns the configuration rooted at dir (usually ~/.expfactory).
func Default(dir string) *Config {
	return &Config{
		RepoDir:       filepath.Join(dir, "repos"),
		DeploymentDir: filepath.Join(dir, "deployments"),
		DBPath:        filepath.Join(dir, "expfactory.db"),
	}
}

// HomeDir returns ~/.expfactory.
func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}

// LoadConfig reads config.yaml from dir.
// A missing file yields Default(dir); empty fields are filled from the defaults.
func LoadConfig(dir string) (*Config, error) {
	cfg := Default(dir)

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var loaded Config
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if loaded.RepoDir != "" {
		cfg.RepoDir = expandHome(loaded.RepoDir)
	}
	if loaded.DeploymentDir != "" {
		cfg.DeploymentDir = expandHome(loaded.DeploymentDir)
	}
	if loaded.DBPath != "" {
		cfg.DBPath = expandHome(loaded.DBPath)
	}
	cfg.Actor = loaded.Actor

	return cfg, nil
}

// SaveConfig writes config.yaml to dir.
func SaveConfig(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, FileName), data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Load reads the configuration from ~/.expfactory, applying DBPathEnv when set.
func Load() (*Config, error) {
	dir, err := HomeDir()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadConfig(dir)
	if err != nil {
		return nil, err
	}
	if path := os.Getenv(DBPathEnv); path != "" {
		cfg.DBPath = expandHome(path)
	}
	return cfg, nil
}

func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
