package gateways

import (
	"fmt"
	"os"
	"path/filepath"
)

// localSettings is the fixed settings_local.py used for release builds
const localSettings = `DATABASES = {
    "default": {
        "ENGINE": "django.db.backends.sqlite3",
        "NAME": "reviewboard.db",
    }
}

PRODUCTION = True
DEBUG = False
`

// SettingsWriter generates the local settings file a build needs
type SettingsWriter struct{}

// NewSettingsWriter creates a new settings writer
func NewSettingsWriter() *SettingsWriter {
	return &SettingsWriter{}
}

// Write creates or overwrites name under dir. Output is always identical.
func (w *SettingsWriter) Write(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	//nolint:gosec // G306: settings file is read by the build, not secret
	if err := os.WriteFile(path, []byte(localSettings), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
