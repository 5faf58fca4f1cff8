// Package resource models units of fetched provider content and the sinks
// they are rendered to. A resource is created by exactly one owner and must
// be released on every path once it holds a live transport handle.
package resource

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
)

// Metadata describes the content held by a resource.
type Metadata struct {
	ContentType string
	// Size is the content length in bytes, or -1 when unknown.
	Size int64
}

// Resource is a unit of fetched content. Render streams the content into the
// sink; Release frees any held transport resource and is safe to call more
// than once.
type Resource interface {
	Exists() bool
	Render(sink Sink) error
	Release()
}

// copyBufSize is the buffer size used when streaming file and HTTP bodies.
const copyBufSize = 32 * 1024

// Memory is an in-memory resource. It is the only variant that may be cached.
type Memory struct {
	data []byte
	meta Metadata
}

// NewMemory creates an in-memory resource over data.
func NewMemory(data []byte, contentType string) *Memory {
	return &Memory{
		data: data,
		meta: Metadata{ContentType: contentType, Size: int64(len(data))},
	}
}

// Exists always reports true: memory resources are only built from content
// that was successfully fetched.
func (m *Memory) Exists() bool { return true }

// Render writes the buffered content to the sink.
func (m *Memory) Render(sink Sink) error {
	if err := sink.Open(m.meta); err != nil {
		return err
	}
	if _, err := sink.Write(m.data); err != nil {
		return err
	}
	return sink.Close()
}

// Release is a no-op; memory resources hold no transport handle.
func (m *Memory) Release() {}

// Bytes returns the buffered content.
func (m *Memory) Bytes() []byte { return m.data }

// ContentType returns the content type recorded at fetch time.
func (m *Memory) ContentType() string { return m.meta.ContentType }

// File is a resource backed by the local filesystem mirror.
type File struct {
	path string
}

// NewFile creates a filesystem-backed resource for path.
func NewFile(path string) *File {
	return &File{path: path}
}

// Exists reports whether the file is present and not a directory.
func (f *File) Exists() bool {
	info, err := os.Stat(f.path)
	return err == nil && !info.IsDir()
}

// Render streams the file into the sink. The content type is derived from
// the file extension.
func (f *File) Render(sink Sink) error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("open local resource %s: %w", f.path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat local resource %s: %w", f.path, err)
	}

	meta := Metadata{
		ContentType: mime.TypeByExtension(filepath.Ext(f.path)),
		Size:        info.Size(),
	}
	if err := sink.Open(meta); err != nil {
		return err
	}
	buf := make([]byte, copyBufSize)
	if _, err := io.CopyBuffer(sink, file, buf); err != nil {
		return fmt.Errorf("read local resource %s: %w", f.path, err)
	}
	return sink.Close()
}

// Release is a no-op; the file handle only lives for the duration of Render.
func (f *File) Release() {}

// Path returns the filesystem path of the resource.
func (f *File) Path() string { return f.path }

// HTTP is a resource backed by a live backend response. It owns the response
// body until Render or Release is called.
type HTTP struct {
	resp     *http.Response
	released bool
}

// FetchHTTP performs a GET against absURL with the given client. A transport
// failure is returned as an error; a response of any status produces a
// resource whose Exists method reflects whether the backend has the content.
func FetchHTTP(ctx context.Context, client *http.Client, absURL string) (*HTTP, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, absURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build backend request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend fetch %s: %w", absURL, err)
	}
	return &HTTP{resp: resp}, nil
}

// Exists reports whether the backend has the resource. The backend defines
// existence; only an explicit "gone" answer counts as absent.
func (h *HTTP) Exists() bool {
	switch h.resp.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		return false
	default:
		return true
	}
}

// Render streams the response body into the sink and releases the resource.
func (h *HTTP) Render(sink Sink) error {
	defer h.Release()

	meta := Metadata{
		ContentType: h.resp.Header.Get("Content-Type"),
		Size:        h.resp.ContentLength,
	}
	if err := sink.Open(meta); err != nil {
		return err
	}
	buf := make([]byte, copyBufSize)
	if _, err := io.CopyBuffer(sink, h.resp.Body, buf); err != nil {
		return fmt.Errorf("read backend response: %w", err)
	}
	return sink.Close()
}

// Release closes the response body. Safe to call after Render or repeatedly.
func (h *HTTP) Release() {
	if h.released {
		return
	}
	h.released = true
	_ = h.resp.Body.Close()
}

// StatusCode returns the backend status code.
func (h *HTTP) StatusCode() int { return h.resp.StatusCode }
