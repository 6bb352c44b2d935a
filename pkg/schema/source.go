package schema

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// Source is a candidate ledger file.
//
// It can be opened many times, so that validation does not consume
// the content which is uploaded later.
type Source interface {
	// Name is the file name presented to the service.
	Name() string

	// Open starts reading the content from its head.
	Open() (io.ReadCloser, error)
}

type fileSource struct {
	path string
}

// File is a Source backed by a local file.
func File(path string) Source {
	return fileSource{path: path}
}

func (f fileSource) Name() string {
	return filepath.Base(f.path)
}

func (f fileSource) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}

func (f fileSource) String() string {
	return f.path
}

type bytesSource struct {
	name    string
	content []byte
}

// Bytes is a Source on memory.
func Bytes(name string, content []byte) Source {
	return bytesSource{name: name, content: content}
}

func (b bytesSource) Name() string {
	return b.name
}

func (b bytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.content)), nil
}
