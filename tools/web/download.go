package web

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/nevindra/catalyst"
)

// unsafeFilenameChars matches characters that cannot appear in a saved
// filename on common filesystems.
var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// Download saves remote files into the workspace.
type Download struct {
	root   string
	client *http.Client
}

var _ catalyst.Tool = (*Download)(nil)

// NewDownload creates a download_file tool that saves files under root.
func NewDownload(root string) *Download {
	return &Download{
		root:   root,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (d *Download) Name() string { return "download_file" }

func (d *Download) Description() string {
	return "Downloads a file from a URL and saves it to the workspace. The filename is taken from the response headers or the URL unless given explicitly."
}

func (d *Download) Schema() catalyst.Schema {
	return catalyst.Schema{
		Params: []catalyst.Param{
			{Name: "url", Type: "string", Description: "The URL of the file to download", Required: true},
			{Name: "directory", Type: "string", Description: "Target directory relative to the workspace. Defaults to downloads"},
			{Name: "filename", Type: "string", Description: "Optional filename to save as"},
		},
		Example: `download_file(url="https://example.com/report.pdf")`,
	}
}

func (d *Download) Execute(ctx context.Context, args map[string]any) (any, error) {
	rawURL, _ := args["url"].(string)
	if rawURL == "" {
		return nil, fmt.Errorf("missing required parameter: url")
	}
	parsedURL, err := url.Parse(rawURL)
	if err != nil || parsedURL.Host == "" || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") {
		return nil, fmt.Errorf("invalid URL: %s", rawURL)
	}

	directory, _ := args["directory"].(string)
	if directory == "" {
		directory = "downloads"
	}
	if filepath.IsAbs(directory) {
		return nil, fmt.Errorf("absolute paths not allowed: %s", directory)
	}
	if strings.Contains(directory, "..") {
		return nil, fmt.Errorf("path traversal not allowed: %s", directory)
	}
	dir := filepath.Join(d.root, directory)

	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	contentType := resp.Header.Get("Content-Type")
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mt
	}

	name, _ := args["filename"].(string)
	if name == "" {
		name = filenameFromResponse(resp, parsedURL)
	}
	name = sanitizeFilename(name)
	if name == "" {
		name = fallbackFilename(contentType)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("mkdir error: %v", err)
	}
	name = uniqueName(dir, name)

	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("create file error: %v", err)
	}
	defer f.Close()

	size, err := io.Copy(f, resp.Body)
	if err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("download error: %v", err)
	}

	return map[string]any{
		"local_path":   filepath.Join(directory, name),
		"original_url": rawURL,
		"content_type": contentType,
		"file_size":    size,
		"status":       "Download successful",
	}, nil
}

// filenameFromResponse takes the name from the Content-Disposition header
// when present, otherwise from the URL path.
func filenameFromResponse(resp *http.Response, u *url.URL) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if name := params["filename"]; name != "" {
				return name
			}
		}
	}
	if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
		return base
	}
	return ""
}

// sanitizeFilename strips path components, replaces unsafe characters
// with underscores, and caps the length at 200 keeping the extension.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "/" || name == "." {
		return ""
	}
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	if len(name) > 200 {
		ext := filepath.Ext(name)
		name = name[:200-len(ext)] + ext
	}
	return name
}

func fallbackFilename(contentType string) string {
	ext := ""
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	return "download_" + catalyst.NewID()[:8] + ext
}

// uniqueName suffixes the base name with a counter until the name is
// unused in dir.
func uniqueName(dir, name string) string {
	if _, err := os.Stat(filepath.Join(dir, name)); os.IsNotExist(err) {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 1; i <= 1000; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if _, err := os.Stat(filepath.Join(dir, candidate)); os.IsNotExist(err) {
			return candidate
		}
	}
	return fmt.Sprintf("%s_%s%s", base, catalyst.NewID()[:8], ext)
}
