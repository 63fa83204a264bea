// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfineRelPath(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape")))

	got, err := ConfineRelPath(root, "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, "clip.mp4", filepath.Base(got))

	for _, bad := range []string{"../x", "/etc/passwd", "a\\b", "escape/file"} {
		_, err := ConfineRelPath(root, bad)
		assert.Error(t, err, bad)
	}
}

func TestIsRegularFile(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o600))

	assert.NoError(t, IsRegularFile(f))
	assert.Error(t, IsRegularFile(dir))
	assert.Error(t, IsRegularFile(filepath.Join(dir, "missing")))
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"clip_01.mp4", "clip_01.mp4"},
		{"Größer Clip (HD)", "Gr-er-Clip-HD"},
		{"..", "file"},
		{"", "file"},
		{strings.Repeat("a", 100), strings.Repeat("a", maxSlugLen)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slug(tt.in, "file"), tt.in)
	}
}
