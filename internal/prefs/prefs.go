// Package prefs handles DropIt appearance preferences.
// Preferences are stored as TOML in <data_dir>/prefs.toml.
package prefs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Prefs holds appearance preferences for the terminal client.
type Prefs struct {
	Theme string `toml:"theme"`
	// MapGlyph is the rune drawn for an unselected marker.
	MapGlyph string `toml:"map_glyph"`
	// ShowLegend toggles the category legend under the map.
	ShowLegend bool `toml:"show_legend"`
}

const (
	defaultPrefsPath = "~/.local/share/dropit/prefs.toml"
	defaultTheme     = "Recycle"
	defaultGlyph     = "o"
)

// Defaults returns the preferences used when nothing is saved.
func Defaults() Prefs {
	return Prefs{Theme: defaultTheme, MapGlyph: defaultGlyph, ShowLegend: true}
}

// Load reads preferences from path, falling back to defaults when the file is
// missing, unreadable or malformed.
func Load(path string) Prefs {
	resolved, err := resolvePath(path)
	if err != nil {
		return Defaults()
	}
	bytes, err := os.ReadFile(resolved)
	if err != nil {
		return Defaults()
	}

	p := Defaults()
	if err := toml.Unmarshal(bytes, &p); err != nil {
		return Defaults()
	}
	if strings.TrimSpace(p.Theme) == "" {
		p.Theme = defaultTheme
	}
	if strings.TrimSpace(p.MapGlyph) == "" {
		p.MapGlyph = defaultGlyph
	}
	return p
}

// Save writes preferences to path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}
	bytes, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}
	if err := os.WriteFile(resolved, bytes, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

func resolvePath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		trimmed = defaultPrefsPath
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
