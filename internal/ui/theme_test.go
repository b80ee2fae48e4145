package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dropit-app/dropit/internal/prefs"
	"github.com/dropit-app/dropit/internal/state"
)

func TestThemeCycle(t *testing.T) {
	names := ThemeNames()
	assert.Equal(t, []string{"Recycle", "Nightfox", "Kanagawa"}, names)

	current := names[0]
	for i := range names {
		next := NextTheme(current)
		assert.Equal(t, names[(i+1)%len(names)], next)
		current = next
	}
	assert.Equal(t, names[0], NextTheme("missing"))
}

func TestGetTheme_FallsBackToDefault(t *testing.T) {
	assert.Equal(t, "Recycle", GetTheme("nope").Name)
	assert.Equal(t, prefs.Defaults().Theme, GetTheme(prefs.Defaults().Theme).Name)
}

func TestThemesColorEveryCategory(t *testing.T) {
	for _, name := range ThemeNames() {
		th := GetTheme(name)
		for _, cat := range state.Categories[1:] {
			assert.NotEmpty(t, th.CategoryColors[cat], "%s: %s", name, cat)
		}
		styles := th.Styles()
		assert.Equal(t, th.CategoryColors[state.CategoryEtc], styles.categoryColor("furniture"),
			"%s: unknown categories use the etc color", name)
	}
}
