// Package codec provides compression and decompression for snapshot files.
package codec

import (
	"bytes"
	"io"
)

// Codec provides compression and decompression functionality.
type Codec interface {
	// Name returns the stable codec name used in configuration ("zstd", "gzip", "none").
	Name() string
	// Magic returns the leading bytes every stream produced by Writer starts with.
	// Returns nil when the format has no signature.
	Magic() []byte
	// Reader wraps r to decompress data read from it.
	Reader(r io.Reader) (io.ReadCloser, error)
	// Writer wraps w to compress data written to it.
	Writer(w io.Writer) (io.WriteCloser, error)
}

// Detect returns the candidate whose magic bytes prefix header.
// A candidate without magic bytes is used as fallback when no signature matches.
func Detect(header []byte, candidates ...Codec) (Codec, bool) {
	var fallback Codec
	for _, c := range candidates {
		magic := c.Magic()
		if len(magic) == 0 {
			if fallback == nil {
				fallback = c
			}
			continue
		}
		if bytes.HasPrefix(header, magic) {
			return c, true
		}
	}
	return fallback, fallback != nil
}

// MaxMagicLen is the number of leading bytes Detect needs to see.
const MaxMagicLen = 4
