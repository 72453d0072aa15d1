package driven

import "github.com/notevault/notevault-cli/internal/core/domain"

// SettingsStore loads and persists application settings.
type SettingsStore interface {
	// Load returns the current settings, with defaults applied for
	// anything not explicitly configured.
	Load() (domain.AppSettings, error)

	// Save persists the given settings.
	Save(settings domain.AppSettings) error

	// Path returns the location of the backing file, for display.
	Path() string
}
