package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWatchCmd_Use(t *testing.T) {
	assert.Equal(t, "watch [paths...]", watchCmd.Use)
}

func TestMatchesExt(t *testing.T) {
	tests := []struct {
		name string
		path string
		exts []string
		want bool
	}{
		{"dotless value", "notes/weekly.md", []string{"md", "txt"}, true},
		{"dotted value", "notes/weekly.md", []string{".md"}, true},
		{"mixed case", "notes/WEEKLY.MD", []string{"md"}, true},
		{"whitespace around value", "notes/todo.txt", []string{" txt "}, true},
		{"non-matching extension", "notes/image.png", []string{"md", "txt"}, false},
		{"no extension on path", "notes/README", []string{"md"}, false},
		{"empty value never matches", "notes/README", []string{""}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchesExt(tt.path, tt.exts))
		})
	}
}
