package config

import (
	"os"
	"path/filepath"
)

// defaultDataDir is ~/.local/share/envforge, falling back to the
// working directory when the home directory is unknown.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".envforge"
	}
	return filepath.Join(home, ".local", "share", "envforge")
}

// homeConfigDir is ~/.config/envforge.
func homeConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "envforge"), nil
}
