package builtin

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileTools(t *testing.T) (*FileTools, string) {
	t.Helper()
	dir := t.TempDir()
	ft, err := NewFileTools(dir)
	require.NoError(t, err)
	return ft, ft.Base()
}

func TestFileTools_ReadWrite(t *testing.T) {
	ft, dir := newFileTools(t)

	n, err := ft.Write("docs/summary_blog.txt", "line one\n", false)
	require.NoError(t, err)
	assert.Equal(t, 9, n)
	_, err = ft.Write("docs/summary_blog.txt", "line two\n", true)
	require.NoError(t, err)

	got, err := ft.Read("docs/summary_blog.txt")
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\n", got)

	got, err = ft.Read(filepath.Join(dir, "docs", "summary_blog.txt"))
	require.NoError(t, err, "absolute paths inside the base are accepted")
	assert.Contains(t, got, "line two")

	_, err = ft.Write("docs/summary_blog.txt", "replaced", false)
	require.NoError(t, err)
	got, _ = ft.Read("docs/summary_blog.txt")
	assert.Equal(t, "replaced", got)
}

func TestFileTools_Confinement(t *testing.T) {
	ft, dir := newFileTools(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("s3cret"), 0o600))
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "link")))

	tests := []struct {
		name string
		path string
	}{
		{name: "parent traversal", path: "../secret.txt"},
		{name: "nested traversal", path: "a/../../secret.txt"},
		{name: "absolute outside", path: filepath.Join(outside, "secret.txt")},
		{name: "symlink out", path: "link/secret.txt"},
		{name: "empty", path: " "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ft.Read(tt.path)
			assert.Error(t, err)
			_, err = ft.Write(tt.path, "x", false)
			assert.Error(t, err)
		})
	}
	_, err := ft.Write(".", "x", false)
	assert.EqualError(t, err, "path must name a file")
}

func TestFileTools_ReadLimits(t *testing.T) {
	ft, dir := newFileTools(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.txt"), []byte(strings.Repeat("a", 100)), 0o600))
	ft.SetMaxReadBytes(10)

	got, err := ft.Read("big.txt")
	require.NoError(t, err)
	assert.Len(t, got, 10)

	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	_, err = ft.Read("sub")
	assert.ErrorContains(t, err, "is a directory")
	_, err = ft.Read("missing.txt")
	assert.Error(t, err)
}

func TestNewFileTools_Rejects(t *testing.T) {
	_, err := NewFileTools(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)

	f := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o600))
	_, err = NewFileTools(f)
	assert.ErrorContains(t, err, "is not a directory")
}

func TestFileTools_AsAgentTools(t *testing.T) {
	ft, _ := newFileTools(t)
	exec := executorFor(t, ft.Tools()...)

	res := call(t, exec, "file_write", `{"path":"notes.txt","content":"hello"}`)
	require.Empty(t, res.Error)
	assert.Equal(t, "Wrote 5 bytes to notes.txt", res.Text())

	res = call(t, exec, "file_read", `{"path":"notes.txt"}`)
	require.Empty(t, res.Error)
	assert.Equal(t, "hello", res.Text())

	res = call(t, exec, "file_read", `{"path":"../../etc/passwd"}`)
	assert.Contains(t, res.Error, "escapes the base directory")
}
