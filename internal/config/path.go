package config

import (
	"os"
	"path/filepath"
)

// Dir returns ~/.config/pa-alarm (or a directory under the working dir).
func Dir() string {
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".config", "pa-alarm")
	}
	cwd, _ := os.Getwd()
	return filepath.Join(cwd, ".pa-alarm")
}

// DefaultPath returns the config file path.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.json")
}

// DefaultDataPath returns the data file for the given store kind.
func DefaultDataPath(store string) string {
	if store == StoreSQLite {
		return filepath.Join(Dir(), "data.db")
	}
	return filepath.Join(Dir(), "data.json")
}
