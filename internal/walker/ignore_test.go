package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRule(t *testing.T) {
	tests := []struct {
		pattern  string
		wantErr  bool
		negate   bool
		dirOnly  bool
		anchored bool
		glob     string
	}{
		{"*.txt", false, false, false, false, "**/*.txt"},
		{"!important.txt", false, true, false, false, "**/important.txt"},
		{"temp/", false, false, true, false, "**/temp"},
		{"/root/file", false, false, false, true, "root/file"},
		{"dir/subdir/", false, false, true, true, "dir/subdir"},
		{"**/*.go", false, false, false, false, "**/*.go"},
		{"#comment", true, false, false, false, ""},
		{"/", true, false, false, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			rule, err := parseRule(tt.pattern, "", 1, "test.gitignore")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.negate, rule.Negate, "negate")
			assert.Equal(t, tt.dirOnly, rule.DirOnly, "dirOnly")
			assert.Equal(t, tt.anchored, rule.Anchored, "anchored")
			assert.Equal(t, tt.glob, rule.Glob)
		})
	}
}

func TestIgnoreRule_Matches(t *testing.T) {
	tests := []struct {
		pattern string
		prefix  string
		path    string
		isDir   bool
		want    bool
	}{
		{"*.txt", "", "file.txt", false, true},
		{"*.txt", "", "deep/dir/file.txt", false, true},
		{"*.txt", "", "file.go", false, false},
		{"temp", "", "temp", true, true},
		{"temp", "", "temp/file.txt", false, true},
		{"temp/", "", "temp", true, true},
		{"temp/", "", "temp", false, false},
		{"temp/", "", "src/temp/a.go", false, true},
		{"/build", "", "build/out.c", false, true},
		{"/build", "", "src/build/out.c", false, false},
		{"src/**", "", "src/deep/file.txt", false, true},
		{"*.gen.go", "pkg", "pkg/api.gen.go", false, true},
		{"*.gen.go", "pkg", "api.gen.go", false, false},
		{"/local.go", "pkg", "pkg/sub/local.go", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+" "+tt.path, func(t *testing.T) {
			rule, err := parseRule(tt.pattern, tt.prefix, 1, "test")
			require.NoError(t, err)
			assert.Equal(t, tt.want, rule.Matches(tt.path, tt.isDir))
		})
	}
}

func TestIgnoreManager_Negation(t *testing.T) {
	im, _ := NewIgnoreManager()
	for _, p := range []string{"*.log", "!keep.log"} {
		require.NoError(t, im.AddRule(p))
	}

	assert.True(t, im.ShouldIgnore("debug.log", false))
	assert.False(t, im.ShouldIgnore("keep.log", false), "keep.log should be re-included")
	assert.Equal(t, 2, im.RuleCount())

	im.SetEnabled(false)
	assert.False(t, im.ShouldIgnore("debug.log", false), "disabled manager should not ignore anything")
}

func TestIgnoreManager_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".gitignore"), []byte("!vendor/\n"), 0644))

	im, _ := NewIgnoreManager()
	im.SetDefaults(true)
	require.NoError(t, im.LoadFromPath(tmpDir))

	assert.True(t, im.ShouldIgnore("web/node_modules", true), "node_modules should be ignored by default")
	assert.False(t, im.ShouldIgnore("vendor", true), ".gitignore negation should override a default pattern")
}

func TestIgnoreManager_LoadDir(t *testing.T) {
	tmpDir := t.TempDir()
	sub := filepath.Join(tmpDir, "pkg")
	require.NoError(t, os.MkdirAll(sub, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, ".gitignore"), []byte("# generated\n*_gen.go\n"), 0644))

	im, _ := NewIgnoreManager()
	require.NoError(t, im.LoadFromPath(tmpDir))
	assert.False(t, im.ShouldIgnore("pkg/api_gen.go", false), "nested rules should not apply before the directory is loaded")

	require.NoError(t, im.LoadDir(sub, "pkg"))
	assert.True(t, im.ShouldIgnore("pkg/api_gen.go", false))
	assert.False(t, im.ShouldIgnore("api_gen.go", false), "nested rules should not apply outside their directory")
}
