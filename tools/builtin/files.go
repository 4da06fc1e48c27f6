package builtin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	llmtools "github.com/BaSui01/agentswarm/llm/tools"
)

// DefaultMaxReadBytes caps how much of a file file_read returns.
const DefaultMaxReadBytes = 1 << 20

// FileTools reads and writes files below a base directory. Paths are
// resolved through os.Root, so neither ".." nor symlinks can leave it.
type FileTools struct {
	base     string
	maxBytes int64
}

func NewFileTools(base string) (*FileTools, error) {
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("base directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("base directory: %s is not a directory", abs)
	}
	return &FileTools{base: abs, maxBytes: DefaultMaxReadBytes}, nil
}

func (f *FileTools) Base() string { return f.base }

// SetMaxReadBytes changes the read cap; n <= 0 restores the default.
func (f *FileTools) SetMaxReadBytes(n int64) {
	if n <= 0 {
		n = DefaultMaxReadBytes
	}
	f.maxBytes = n
}

// relative turns a model supplied path into one relative to base.
func (f *FileTools) relative(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", errors.New("path is required")
	}
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(f.base, p)
		if err != nil {
			return "", fmt.Errorf("path %s is outside the base directory", p)
		}
		p = rel
	}
	p = filepath.Clean(p)
	if p == ".." || strings.HasPrefix(p, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s escapes the base directory", p)
	}
	return p, nil
}

// Read returns the content of path, truncated to the read cap.
func (f *FileTools) Read(path string) (string, error) {
	rel, err := f.relative(path)
	if err != nil {
		return "", err
	}
	root, err := os.OpenRoot(f.base)
	if err != nil {
		return "", err
	}
	defer root.Close()

	file, err := root.Open(rel)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rel, err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("read %s: is a directory", rel)
	}
	b, err := io.ReadAll(io.LimitReader(file, f.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rel, err)
	}
	return string(b), nil
}

// Write stores content at path, creating parent directories. With
// appendMode set the content is appended instead of replacing the file.
func (f *FileTools) Write(path, content string, appendMode bool) (int, error) {
	rel, err := f.relative(path)
	if err != nil {
		return 0, err
	}
	if rel == "." {
		return 0, errors.New("path must name a file")
	}
	root, err := os.OpenRoot(f.base)
	if err != nil {
		return 0, err
	}
	defer root.Close()

	if err := mkdirAll(root, filepath.Dir(rel)); err != nil {
		return 0, fmt.Errorf("write %s: %w", rel, err)
	}
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := root.OpenFile(rel, flags, 0o644)
	if err != nil {
		return 0, fmt.Errorf("write %s: %w", rel, err)
	}
	n, err := file.WriteString(content)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("write %s: %w", rel, err)
	}
	return n, nil
}

func mkdirAll(root *os.Root, dir string) error {
	if dir == "." || dir == "" {
		return nil
	}
	cur := ""
	for _, part := range strings.Split(dir, string(filepath.Separator)) {
		cur = filepath.Join(cur, part)
		err := root.Mkdir(cur, 0o755)
		if err != nil && !errors.Is(err, fs.ErrExist) {
			return err
		}
	}
	return nil
}

type fileReadArgs struct {
	Path string `json:"path" jsonschema:"description=File path relative to the working directory"`
}

type fileWriteArgs struct {
	Path    string `json:"path" jsonschema:"description=File path relative to the working directory"`
	Content string `json:"content" jsonschema:"description=Text to write"`
	Append  bool   `json:"append,omitempty" jsonschema:"description=Append instead of overwriting"`
}

func (f *FileTools) ReadTool() llmtools.Tool {
	return llmtools.MustFunctionTool("file_read", "Read a text file from the working directory",
		func(_ context.Context, a fileReadArgs) (any, error) {
			return f.Read(a.Path)
		})
}

func (f *FileTools) WriteTool() llmtools.Tool {
	return llmtools.MustFunctionTool("file_write", "Write text to a file in the working directory, creating it if needed",
		func(_ context.Context, a fileWriteArgs) (any, error) {
			n, err := f.Write(a.Path, a.Content, a.Append)
			if err != nil {
				return nil, err
			}
			return fmt.Sprintf("Wrote %d bytes to %s", n, a.Path), nil
		})
}

// Tools returns file_read and file_write.
func (f *FileTools) Tools() []llmtools.Tool {
	return []llmtools.Tool{f.ReadTool(), f.WriteTool()}
}
