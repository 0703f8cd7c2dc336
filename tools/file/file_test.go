package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReaderWholeFile(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "test.txt"), []byte("content here"), 0644)
	tool := NewReader(dir)

	result, err := tool.Execute(context.Background(), map[string]any{"path": "test.txt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "content here" {
		t.Errorf("wrong content: %q", result)
	}
}

func TestReaderLineRange(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "lines.txt"), []byte("l1\nl2\nl3\nl4\nl5\n"), 0644)
	tool := NewReader(dir)

	result, err := tool.Execute(context.Background(), map[string]any{
		"path":       "lines.txt",
		"start_line": float64(2),
		"end_line":   float64(4),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "l2\nl3\nl4\n" {
		t.Errorf("wrong range content: %q", result)
	}
}

func TestReaderStartLineOnly(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "lines.txt"), []byte("l1\nl2\nl3\n"), 0644)
	tool := NewReader(dir)

	result, err := tool.Execute(context.Background(), map[string]any{
		"path":       "lines.txt",
		"start_line": float64(3),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "l3\n" {
		t.Errorf("wrong content: %q", result)
	}
}

func TestReaderRangeClamped(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "lines.txt"), []byte("l1\nl2\n"), 0644)
	tool := NewReader(dir)

	result, err := tool.Execute(context.Background(), map[string]any{
		"path":       "lines.txt",
		"start_line": float64(1),
		"end_line":   float64(100),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "l1\nl2\n" {
		t.Errorf("wrong content: %q", result)
	}
}

func TestReaderInvertedRange(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "lines.txt"), []byte("l1\nl2\nl3\n"), 0644)
	tool := NewReader(dir)

	result, err := tool.Execute(context.Background(), map[string]any{
		"path":       "lines.txt",
		"start_line": float64(3),
		"end_line":   float64(2),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "" {
		t.Errorf("expected empty content for inverted range, got %q", result)
	}
}

func TestReaderNonexistent(t *testing.T) {
	tool := NewReader(t.TempDir())
	_, err := tool.Execute(context.Background(), map[string]any{"path": "does_not_exist.txt"})
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
	if !strings.Contains(err.Error(), "File not found at does_not_exist.txt") {
		t.Errorf("wrong error: %v", err)
	}
}

func TestReaderDirectory(t *testing.T) {
	dir := t.TempDir()
	os.Mkdir(filepath.Join(dir, "sub"), 0755)
	tool := NewReader(dir)

	_, err := tool.Execute(context.Background(), map[string]any{"path": "sub"})
	if err == nil {
		t.Fatal("expected error for directory")
	}
	if !strings.Contains(err.Error(), "is a directory, not a file") {
		t.Errorf("wrong error: %v", err)
	}
}

func TestReaderPathTraversal(t *testing.T) {
	tool := NewReader(t.TempDir())
	if _, err := tool.Execute(context.Background(), map[string]any{"path": "../etc/passwd"}); err == nil {
		t.Error("expected path traversal error")
	}
}

func TestReaderAbsolutePath(t *testing.T) {
	tool := NewReader(t.TempDir())
	if _, err := tool.Execute(context.Background(), map[string]any{"path": "/etc/passwd"}); err == nil {
		t.Error("expected absolute path error")
	}
}

func TestReaderMissingPath(t *testing.T) {
	tool := NewReader(t.TempDir())
	if _, err := tool.Execute(context.Background(), map[string]any{}); err == nil {
		t.Error("expected error for missing path")
	}
}

func TestReaderTruncation(t *testing.T) {
	dir := t.TempDir()
	bigContent := make([]byte, 10000)
	for i := range bigContent {
		bigContent[i] = 'A'
	}
	os.WriteFile(filepath.Join(dir, "big.txt"), bigContent, 0644)
	tool := NewReader(dir)

	result, err := tool.Execute(context.Background(), map[string]any{"path": "big.txt"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	content, _ := result.(string)
	if len(content) > 8100 { // 8000 + truncation message
		t.Errorf("content not truncated: %d chars", len(content))
	}
	if !strings.HasSuffix(content, "... (truncated)") {
		t.Error("expected truncation marker")
	}
}

func TestWriterWrite(t *testing.T) {
	dir := t.TempDir()
	tool := NewWriter(dir)

	result, err := tool.Execute(context.Background(), map[string]any{"path": "test.txt", "content": "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "Written 5 bytes to test.txt" {
		t.Errorf("wrong result: %q", result)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "test.txt"))
	if string(data) != "hello" {
		t.Errorf("wrong content: %s", data)
	}
}

func TestWriterSubdir(t *testing.T) {
	dir := t.TempDir()
	tool := NewWriter(dir)

	if _, err := tool.Execute(context.Background(), map[string]any{"path": "sub/dir/file.txt", "content": "nested"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "sub/dir/file.txt"))
	if string(data) != "nested" {
		t.Errorf("wrong content: %s", data)
	}
}

func TestWriterOverwrite(t *testing.T) {
	dir := t.TempDir()
	tool := NewWriter(dir)

	tool.Execute(context.Background(), map[string]any{"path": "ow.txt", "content": "first"})
	if _, err := tool.Execute(context.Background(), map[string]any{"path": "ow.txt", "content": "second"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "ow.txt"))
	if string(data) != "second" {
		t.Errorf("expected 'second', got %q", string(data))
	}
}

func TestWriterAppend(t *testing.T) {
	dir := t.TempDir()
	tool := NewWriter(dir)

	tool.Execute(context.Background(), map[string]any{"path": "log.txt", "content": "one\n"})
	if _, err := tool.Execute(context.Background(), map[string]any{"path": "log.txt", "content": "two\n", "append": true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "log.txt"))
	if string(data) != "one\ntwo\n" {
		t.Errorf("expected appended content, got %q", string(data))
	}
}

func TestWriterEmptyContent(t *testing.T) {
	dir := t.TempDir()
	tool := NewWriter(dir)

	if _, err := tool.Execute(context.Background(), map[string]any{"path": "empty.txt", "content": ""}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info, err := os.Stat(filepath.Join(dir, "empty.txt"))
	if err != nil {
		t.Fatalf("file not created: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("expected 0 bytes, got %d", info.Size())
	}
}

func TestWriterMissingContent(t *testing.T) {
	tool := NewWriter(t.TempDir())
	if _, err := tool.Execute(context.Background(), map[string]any{"path": "x.txt"}); err == nil {
		t.Error("expected error for missing content")
	}
}

func TestWriterPathTraversal(t *testing.T) {
	tool := NewWriter(t.TempDir())
	if _, err := tool.Execute(context.Background(), map[string]any{"path": "../out.txt", "content": "x"}); err == nil {
		t.Error("expected path traversal error")
	}
}

func TestToolIdentity(t *testing.T) {
	r := NewReader(t.TempDir())
	if r.Name() != "file_reader" {
		t.Errorf("expected file_reader, got %s", r.Name())
	}
	if len(r.Schema().Params) != 3 {
		t.Errorf("expected 3 params, got %d", len(r.Schema().Params))
	}

	w := NewWriter(t.TempDir())
	if w.Name() != "file_writer" {
		t.Errorf("expected file_writer, got %s", w.Name())
	}
	if !w.Schema().Params[0].Required {
		t.Error("expected path to be required")
	}
}
