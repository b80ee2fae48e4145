package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"hello", 3, "hel"},
		{"hello", 0, ""},
		{"  padded  ", 6, "padded"},
		{"서울시청 의류수거함", 6, "서울시..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncate(tt.in, tt.limit), "truncate(%q, %d)", tt.in, tt.limit)
	}
}

func TestPad(t *testing.T) {
	assert.Equal(t, "ab  ", padRight("ab", 4))
	assert.Equal(t, "  ab", padLeft("ab", 4))
	assert.Equal(t, "abcdef", padRight("abcdef", 4))
	assert.Equal(t, "서울  ", padRight("서울", 4))
}

func TestWrap(t *testing.T) {
	bg := NewBgStyle("#000000")
	out := wrap("one two three four", 9, bg, lipgloss.NewStyle())
	lines := strings.Split(out, "\n")
	assert.Len(t, lines, 3)
	assert.Empty(t, wrap("   ", 10, bg, lipgloss.NewStyle()))
}

func TestNextDistance(t *testing.T) {
	assert.Equal(t, 1.0, nextDistance(0))
	assert.Equal(t, 5.0, nextDistance(3))
	assert.Equal(t, 20.0, nextDistance(10))
	assert.Equal(t, 1.0, nextDistance(20))
	assert.Equal(t, 1.0, nextDistance(50))
}

func TestCycle(t *testing.T) {
	assert.Equal(t, "b", cycle([]string{"a", "b", "c"}, "a"))
	assert.Equal(t, "a", cycle([]string{"a", "b", "c"}, "c"))
	assert.Equal(t, "a", cycle([]string{"a", "b", "c"}, "missing"))
}
