package config

import (
	"os"
	"path/filepath"
)

// DefaultConfigPath returns the default config file location,
// honoring XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "moneto", "config.toml")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		// Last resort: relative path in the working directory.
		return filepath.Join("moneto", "config.toml")
	}

	return filepath.Join(home, ".config", "moneto", "config.toml")
}

// DefaultStateDir returns the default directory for the plan database and
// session file, honoring XDG_STATE_HOME.
func DefaultStateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "moneto")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "moneto"
	}

	return filepath.Join(home, ".local", "state", "moneto")
}
