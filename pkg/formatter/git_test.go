package formatter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShortstat(t *testing.T) {
	tests := []struct {
		name string
		line string
		want DiffStat
	}{
		{
			name: "full line",
			line: "1 file changed, 2 insertions(+), 1 deletion(-)",
			want: DiffStat{FilesChanged: 1, LinesAdded: 2, LinesRemoved: 1},
		},
		{
			name: "large numbers",
			line: "100 files changed, 2123 insertions(+), 19999999 deletions(-)",
			want: DiffStat{FilesChanged: 100, LinesAdded: 2123, LinesRemoved: 19999999},
		},
		{
			name: "insertions only",
			line: "3 files changed, 7 insertions(+)",
			want: DiffStat{FilesChanged: 3, LinesAdded: 7},
		},
		{
			name: "deletions only",
			line: "2 files changed, 5 deletions(-)",
			want: DiffStat{FilesChanged: 2, LinesRemoved: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseShortstat(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseShortstatRejectsGarbage(t *testing.T) {
	_, err := parseShortstat("not a shortstat line at all")
	assert.Error(t, err)
}

func TestDiscoverProjects(t *testing.T) {
	root := t.TempDir()

	mkProject := func(parts ...string) {
		dir := filepath.Join(append([]string{root}, parts...)...)
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte("[package]\n"), 0644))
	}

	mkProject()
	mkProject("crates", "sub")
	mkProject("target", "debug") // build output must be skipped
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "objects", "Cargo.toml"), nil, 0644))

	projects, err := discoverProjects(root)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		root,
		filepath.Join(root, "crates", "sub"),
	}, projects)
}
