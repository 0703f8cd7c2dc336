// Package file provides the file_reader and file_writer tools, both
// sandboxed to a workspace directory.
package file

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/nevindra/catalyst"
)

const maxReadChars = 8000

// resolvePath confines path to root. Absolute paths and traversal are
// rejected, and the joined result must stay inside root.
func resolvePath(root, path string) (string, error) {
	if filepath.IsAbs(path) {
		return "", fmt.Errorf("absolute paths not allowed: %s", path)
	}
	if strings.Contains(path, "..") {
		return "", fmt.Errorf("path traversal not allowed: %s", path)
	}
	resolved := filepath.Join(root, path)
	// Double-check it's still within the workspace
	if !strings.HasPrefix(resolved, filepath.Clean(root)) {
		return "", fmt.Errorf("path escapes workspace: %s", path)
	}
	return resolved, nil
}

// Reader reads text and PDF files from the workspace.
type Reader struct {
	root string
}

var _ catalyst.Tool = (*Reader)(nil)

// NewReader creates a file_reader restricted to root.
func NewReader(root string) *Reader {
	return &Reader{root: root}
}

func (r *Reader) Name() string { return "file_reader" }

func (r *Reader) Description() string {
	return "Reads text content from a file in the workspace. Can read the entire file or a specific line range. PDF files are converted to plain text."
}

func (r *Reader) Schema() catalyst.Schema {
	return catalyst.Schema{
		Params: []catalyst.Param{
			{Name: "path", Type: "string", Description: "File path relative to the workspace", Required: true},
			{Name: "start_line", Type: "integer", Description: "Optional 1-based line to start reading from"},
			{Name: "end_line", Type: "integer", Description: "Optional 1-based line to stop reading at (inclusive)"},
		},
		Example: `file_reader(path="notes.txt", start_line=1, end_line=20)`,
	}
}

func (r *Reader) Execute(ctx context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("missing required parameter: path")
	}

	resolved, err := resolvePath(r.root, path)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(resolved)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("Error reading file: File not found at %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("Error reading file: %v", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("Error reading file: Path %s is a directory, not a file.", path)
	}

	var content string
	if strings.EqualFold(filepath.Ext(resolved), ".pdf") {
		content, err = readPDF(resolved)
	} else {
		content, err = readText(resolved, args)
	}
	if err != nil {
		return nil, fmt.Errorf("Error reading file: %v", err)
	}

	if len(content) > maxReadChars {
		content = content[:maxReadChars] + "\n... (truncated)"
	}
	return content, nil
}

// readText returns the whole file, or the requested 1-based inclusive
// line range. An empty or inverted range yields empty content.
func readText(path string, args map[string]any) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	content := string(data)

	startLine, hasStart := toInt(args["start_line"])
	endLine, hasEnd := toInt(args["end_line"])
	if !hasStart && !hasEnd {
		return content, nil
	}

	lines := strings.SplitAfter(content, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	startIdx := 0
	if hasStart {
		startIdx = startLine - 1
	}
	endIdx := len(lines)
	if hasEnd {
		endIdx = endLine
	}
	if startIdx < 0 {
		startIdx = 0
	}
	if endIdx > len(lines) {
		endIdx = len(lines)
	}
	if startIdx >= endIdx {
		return "", nil
	}
	return strings.Join(lines[startIdx:endIdx], ""), nil
}

// readPDF extracts plain text from a PDF, pages separated by blank lines.
func readPDF(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var text strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}
		if text.Len() > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(pageText)
	}
	return strings.TrimSpace(text.String()), nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

// Writer writes text files inside the workspace.
type Writer struct {
	root string
}

var _ catalyst.Tool = (*Writer)(nil)

// NewWriter creates a file_writer restricted to root.
func NewWriter(root string) *Writer {
	return &Writer{root: root}
}

func (w *Writer) Name() string { return "file_writer" }

func (w *Writer) Description() string {
	return "Writes text content to a file in the workspace, overwriting or appending. Creates parent directories if needed."
}

func (w *Writer) Schema() catalyst.Schema {
	return catalyst.Schema{
		Params: []catalyst.Param{
			{Name: "path", Type: "string", Description: "File path relative to the workspace", Required: true},
			{Name: "content", Type: "string", Description: "Content to write", Required: true},
			{Name: "append", Type: "boolean", Description: "Append to the file instead of overwriting. Defaults to false"},
		},
		Example: `file_writer(path="out/result.txt", content="hello")`,
	}
}

func (w *Writer) Execute(ctx context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("missing required parameter: path")
	}
	content, ok := args["content"].(string)
	if !ok {
		return nil, fmt.Errorf("missing required parameter: content")
	}

	resolved, err := resolvePath(w.root, path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return nil, fmt.Errorf("mkdir error: %v", err)
	}

	if doAppend, _ := args["append"].(bool); doAppend {
		f, err := os.OpenFile(resolved, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("write error: %v", err)
		}
		defer f.Close()
		if _, err := f.WriteString(content); err != nil {
			return nil, fmt.Errorf("write error: %v", err)
		}
	} else {
		if err := os.WriteFile(resolved, []byte(content), 0644); err != nil {
			return nil, fmt.Errorf("write error: %v", err)
		}
	}

	return fmt.Sprintf("Written %d bytes to %s", len(content), path), nil
}
