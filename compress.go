package ges

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Compressor is an optional hook a StoreAdapter may use to shrink an
// EventData's Data/Meta before writing, and reverse it on read. Backends
// that don't opt in leave bytes untouched.
type Compressor interface {
	Compress(p []byte) ([]byte, error)
	Decompress(p []byte) ([]byte, error)
}

// GzipCompressor is a reference Compressor built on klauspost/compress,
// useful for backends storing large JSON payloads (snapshots in particular)
// where the wire format compresses well.
type GzipCompressor struct {
	Level int
}

// NewGzipCompressor builds a GzipCompressor at the given gzip level, or the
// library default when level is 0.
func NewGzipCompressor(level int) GzipCompressor {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	return GzipCompressor{Level: level}
}

func (c GzipCompressor) Compress(p []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, c.Level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(p); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c GzipCompressor) Decompress(p []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(p))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

var _ Compressor = GzipCompressor{}
