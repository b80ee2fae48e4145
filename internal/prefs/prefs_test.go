package prefs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	p := Load("")
	if p != Defaults() {
		t.Fatalf("Load = %+v, want defaults %+v", p, Defaults())
	}
}

func TestLoad_ReadsDefaultLocation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".local", "share", "dropit")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "prefs.toml"), []byte("theme = \"Night\"\nshow_legend = false\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p := Load("")
	if p.Theme != "Night" {
		t.Fatalf("Theme = %q, want Night", p.Theme)
	}
	if p.ShowLegend {
		t.Fatalf("ShowLegend = true, want false")
	}
	if p.MapGlyph != defaultGlyph {
		t.Fatalf("MapGlyph = %q, want default %q", p.MapGlyph, defaultGlyph)
	}
}

func TestSave_CreatesFileAndDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "prefs.toml")

	if err := Save(path, Prefs{Theme: "Night", MapGlyph: "*"}); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	loaded := Load(path)
	if loaded.Theme != "Night" || loaded.MapGlyph != "*" {
		t.Fatalf("Load after Save = %+v", loaded)
	}
}

func TestLoad_EmptyThemeFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	if err := os.WriteFile(path, []byte("theme = \"\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if p := Load(path); p.Theme != defaultTheme {
		t.Fatalf("Theme = %q, want %q", p.Theme, defaultTheme)
	}
}

func TestLoad_InvalidTOMLFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	if err := os.WriteFile(path, []byte("not valid toml {{{\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if p := Load(path); p != Defaults() {
		t.Fatalf("Load = %+v, want defaults", p)
	}
}
