package engine

import (
	"strconv"
	"strings"

	"github.com/danieljhkim/watchguard/internal/config"
	"github.com/danieljhkim/watchguard/internal/stores"
)

// Settings returns settings.json, or the defaults when it is absent.
func (e *Engine) Settings() stores.Document {
	return e.settings.Load()
}

// SaveSettings replaces settings.json.
func (e *Engine) SaveSettings(doc stores.Document) error {
	return e.settings.Save(doc)
}

// Config returns config.json.
func (e *Engine) Config() stores.Document {
	return e.config.Load()
}

// SaveConfig replaces config.json.
func (e *Engine) SaveConfig(doc stores.Document) error {
	return e.config.Save(doc)
}

// Version resolves the reported version against build.
func (e *Engine) Version(build string) VersionResult {
	v, _ := e.Settings()["version"].(string)
	return VersionResult{Version: config.ResolveVersion(v, build), Build: build}
}

// recipients lists the CHAT_IDS entries from settings as text.
func (e *Engine) recipients() []string {
	raw, _ := e.Settings()["CHAT_IDS"].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		var id string
		switch v := v.(type) {
		case string:
			id = strings.TrimSpace(v)
		case float64:
			id = strconv.FormatFloat(v, 'f', -1, 64)
		case int:
			id = strconv.Itoa(v)
		}
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
