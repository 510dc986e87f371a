package dom

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// File is a handle on a user-selected file: either a path on the host's
// disk or an in-memory payload.
type File struct {
	Name string
	Path string
	Data []byte

	size int64
}

// FileFromPath creates a handle for a file on disk.
func FileFromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("file not found: %w", err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}
	return File{Name: filepath.Base(path), Path: path, size: info.Size()}, nil
}

// FileFromBytes creates an in-memory handle.
func FileFromBytes(name string, data []byte) File {
	return File{Name: name, Data: data, size: int64(len(data))}
}

// Size returns the file length in bytes.
func (f File) Size() int64 {
	if f.Data != nil {
		return int64(len(f.Data))
	}
	return f.size
}

// Open returns a reader over the file content.
func (f File) Open() (io.ReadCloser, error) {
	if f.Data != nil || f.Path == "" {
		return io.NopCloser(bytes.NewReader(f.Data)), nil
	}
	return os.Open(f.Path)
}

// ContentType sniffs the MIME type of the content.
func (f File) ContentType() string {
	if f.Data != nil || f.Path == "" {
		return mimetype.Detect(f.Data).String()
	}
	mt, err := mimetype.DetectFile(f.Path)
	if err != nil {
		return "application/octet-stream"
	}
	return mt.String()
}

// Names returns the names of files, for logging.
func Names(files []File) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}
