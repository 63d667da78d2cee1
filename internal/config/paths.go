// Package config manages watchguard configuration and filesystem paths.
//
// The data root defaults to ~/.watchguard/ and holds the data/ directory
// (labels, settings, servers, domains, config) plus config.yaml for the
// process settings. WATCHGUARD_ROOT overrides the root.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// EnvRoot overrides the data root.
const EnvRoot = "WATCHGUARD_ROOT"

// Paths contains all the filesystem paths used by watchguard.
type Paths struct {
	// Root is the base directory for all watchguard data (default: ~/.watchguard)
	Root string

	// Data is the directory containing the JSON data files
	Data string

	// Config is the path to the process config file
	Config string
}

// DefaultPaths returns the default paths for watchguard.
func DefaultPaths() (*Paths, error) {
	root := os.Getenv(EnvRoot)
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		root = filepath.Join(home, ".watchguard")
	}
	return PathsAt(root), nil
}

// PathsAt returns the layout rooted at root.
func PathsAt(root string) *Paths {
	return &Paths{
		Root:   root,
		Data:   filepath.Join(root, "data"),
		Config: filepath.Join(root, "config.yaml"),
	}
}

// EnsureDirectories creates all necessary directories if they don't exist.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.Root, p.Data} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
