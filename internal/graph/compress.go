package graph

import (
	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"

	"github.com/hargabyte/bundlescope/internal/bundle"
)

// countingWriter discards output and counts bytes.
type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

// compressedSize estimates transfer sizes at maximum compression, the level
// production servers use for static assets.
func compressedSize(content []byte) bundle.Size {
	return bundle.Size{
		Raw:    int64(len(content)),
		Gzip:   gzipSize(content),
		Brotli: brotliSize(content),
	}
}

func gzipSize(content []byte) int64 {
	var cw countingWriter
	zw, err := gzip.NewWriterLevel(&cw, gzip.BestCompression)
	if err != nil {
		return 0
	}
	if _, err := zw.Write(content); err != nil {
		return 0
	}
	if err := zw.Close(); err != nil {
		return 0
	}
	return cw.n
}

func brotliSize(content []byte) int64 {
	var cw countingWriter
	bw := brotli.NewWriterLevel(&cw, brotli.BestCompression)
	if _, err := bw.Write(content); err != nil {
		return 0
	}
	if err := bw.Close(); err != nil {
		return 0
	}
	return cw.n
}
