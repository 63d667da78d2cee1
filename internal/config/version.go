package config

import (
	"os"
	"strings"
)

// EnvVersion overrides the reported version.
const EnvVersion = "WATCHGUARD_VERSION"

// ResolveVersion picks the reported version: WATCHGUARD_VERSION, then the
// "version" value stored in settings, then the build version.
func ResolveVersion(settingsVersion, build string) string {
	if v := strings.TrimSpace(os.Getenv(EnvVersion)); v != "" {
		return v
	}
	if v := strings.TrimSpace(settingsVersion); v != "" {
		return v
	}
	return build
}
