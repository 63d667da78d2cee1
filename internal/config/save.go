package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var keyComments = map[string]string{
	"data_dir":  "Directory holding the JSON data files. Empty means <root>/data.",
	"sync":      "Reconciler schedule. watch: poll checks file mtimes every interval,\nnotify also reacts to filesystem events after debounce.",
	"log":       "level: debug, info, warn, error. format: json or console.",
	"notify":    "Change notifications for server, domain, settings and label edits.",
	"dashboard": "How long a built dashboard view is served before it is rebuilt.",
}

// WriteDefault writes a commented config.yaml holding Defaults to path.
// An existing file is replaced.
func WriteDefault(path string) error {
	var root yaml.Node
	if err := root.Encode(Defaults()); err != nil {
		return fmt.Errorf("encoding defaults: %w", err)
	}
	root.HeadComment = "watchguard configuration. Every key can be overridden with\nWATCHGUARD_<KEY>, e.g. WATCHGUARD_SYNC_INTERVAL=1m."
	for i := 0; i+1 < len(root.Content); i += 2 {
		if c, ok := keyComments[root.Content[i].Value]; ok {
			root.Content[i].HeadComment = c
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&root); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temp, err := os.CreateTemp(dir, ".watchguard.yaml.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := temp.Name()

	if _, err := temp.Write(buf.Bytes()); err != nil {
		_ = temp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
