package resource

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
)

// Sink accepts one rendered resource: Open with the content metadata, any
// number of Writes, then Close. Implementations must tolerate Close without
// a preceding Open.
type Sink interface {
	Open(meta Metadata) error
	Write(p []byte) (n int, err error)
	Close() error
}

// Multi fans every call out to each wrapped sink in order. A failure of any
// sink fails the whole render.
type Multi struct {
	sinks []Sink
}

// NewMulti creates a sink writing to all of the given sinks in one pass.
func NewMulti(sinks ...Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Add appends another sink to the fan-out.
func (m *Multi) Add(sink Sink) {
	m.sinks = append(m.sinks, sink)
}

// Open opens every wrapped sink.
func (m *Multi) Open(meta Metadata) error {
	for _, s := range m.sinks {
		if err := s.Open(meta); err != nil {
			return err
		}
	}
	return nil
}

// Write writes p to every wrapped sink.
func (m *Multi) Write(p []byte) (int, error) {
	for _, s := range m.sinks {
		if _, err := s.Write(p); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Close closes every wrapped sink.
func (m *Multi) Close() error {
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			return err
		}
	}
	return nil
}

// Capture buffers rendered content in memory up to a size cap so it can be
// put in the cache afterwards. Content over the cap keeps flowing to the
// other sinks in the chain; the capture just declines to produce a resource.
type Capture struct {
	buf        bytes.Buffer
	max        int64
	meta       Metadata
	overflowed bool
}

// NewCapture creates a capture sink bounded at max bytes. A non-positive max
// disables the bound.
func NewCapture(max int64) *Capture {
	return &Capture{max: max}
}

// Open records the metadata of the content being captured.
func (c *Capture) Open(meta Metadata) error {
	c.meta = meta
	c.buf.Reset()
	c.overflowed = false
	return nil
}

// Write buffers p unless the cap has been exceeded.
func (c *Capture) Write(p []byte) (int, error) {
	if c.overflowed {
		return len(p), nil
	}
	if c.max > 0 && int64(c.buf.Len())+int64(len(p)) > c.max {
		c.overflowed = true
		c.buf.Reset()
		return len(p), nil
	}
	c.buf.Write(p)
	return len(p), nil
}

// Close is a no-op; the capture is inspected through Resource.
func (c *Capture) Close() error { return nil }

// Resource returns the captured content as a cacheable memory resource.
// ok is false when the content exceeded the cap.
func (c *Capture) Resource() (mem *Memory, ok bool) {
	if c.overflowed {
		return nil, false
	}
	return NewMemory(bytes.Clone(c.buf.Bytes()), c.meta.ContentType), true
}

// FileSink writes rendered content to a local mirror file, creating parent
// directories as needed.
type FileSink struct {
	path string
	file *os.File
}

// NewFileSink creates a sink that writes to path on Open.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Open creates the target file and its parent directories.
func (f *FileSink) Open(Metadata) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create mirror directory for %s: %w", f.path, err)
	}
	file, err := os.Create(f.path)
	if err != nil {
		return fmt.Errorf("create mirror file %s: %w", f.path, err)
	}
	f.file = file
	return nil
}

// Write appends p to the mirror file.
func (f *FileSink) Write(p []byte) (int, error) {
	if f.file == nil {
		return 0, fmt.Errorf("mirror file %s not open", f.path)
	}
	return f.file.Write(p)
}

// Close flushes and closes the mirror file.
func (f *FileSink) Close() error {
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	if err != nil {
		return fmt.Errorf("close mirror file %s: %w", f.path, err)
	}
	return nil
}

// StringSink renders a resource to an in-memory string. Used for pages that
// feed the fragment engine.
type StringSink struct {
	buf  bytes.Buffer
	meta Metadata
}

// NewStringSink creates an empty string sink.
func NewStringSink() *StringSink {
	return &StringSink{}
}

// Open records the metadata and resets the buffer.
func (s *StringSink) Open(meta Metadata) error {
	s.meta = meta
	s.buf.Reset()
	return nil
}

// Write buffers p.
func (s *StringSink) Write(p []byte) (int, error) {
	return s.buf.Write(p)
}

// Close is a no-op.
func (s *StringSink) Close() error { return nil }

// String returns the rendered content.
func (s *StringSink) String() string { return s.buf.String() }

// Metadata returns the metadata recorded on Open.
func (s *StringSink) Metadata() Metadata { return s.meta }
