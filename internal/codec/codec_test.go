package codec_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/mangoshelf/libcache/internal/codec"
	"github.com/mangoshelf/libcache/internal/codec/gzipcodec"
	"github.com/mangoshelf/libcache/internal/codec/noopcodec"
	"github.com/mangoshelf/libcache/internal/codec/zstdcodec"
)

func allCodecs() []codec.Codec {
	return []codec.Codec{zstdcodec.New(), gzipcodec.New(), noopcodec.New()}
}

func compress(t *testing.T, c codec.Codec, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := c.Writer(&buf)
	if err != nil {
		t.Fatalf("%s Writer() error = %v", c.Name(), err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("%s Write() error = %v", c.Name(), err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("%s Close() error = %v", c.Name(), err)
	}
	return buf.Bytes()
}

func decompress(t *testing.T, c codec.Codec, data []byte) []byte {
	t.Helper()
	r, err := c.Reader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("%s Reader() error = %v", c.Name(), err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("%s ReadAll() error = %v", c.Name(), err)
	}
	return out
}

func TestCodec_RoundTrip(t *testing.T) {
	inputs := map[string][]byte{
		"empty":  {},
		"small":  []byte("library snapshot payload"),
		"large":  bytes.Repeat([]byte("ABCDEFGHIJ"), 10000),
		"binary": {0x00, 0x01, 0xff, 0x80, 0x1f, 0x8b},
	}

	for _, c := range allCodecs() {
		for name, input := range inputs {
			t.Run(c.Name()+"/"+name, func(t *testing.T) {
				got := decompress(t, c, compress(t, c, input))
				if !bytes.Equal(got, input) {
					t.Errorf("round-trip mismatch: got %d bytes, want %d", len(got), len(input))
				}
			})
		}
	}
}

func TestCodec_CompressesRepetitiveData(t *testing.T) {
	original := bytes.Repeat([]byte("ABCDEFGHIJ"), 10000)
	for _, c := range []codec.Codec{zstdcodec.New(), gzipcodec.New()} {
		compressed := compress(t, c, original)
		if len(compressed) >= len(original) {
			t.Errorf("%s: expected compression, got %d bytes from %d", c.Name(), len(compressed), len(original))
		}
	}
}

func TestCodec_OutputStartsWithMagic(t *testing.T) {
	for _, c := range []codec.Codec{zstdcodec.New(), gzipcodec.New()} {
		out := compress(t, c, []byte("payload"))
		if !bytes.HasPrefix(out, c.Magic()) {
			t.Errorf("%s output %x does not start with magic %x", c.Name(), out[:4], c.Magic())
		}
	}
}

func TestDetect(t *testing.T) {
	candidates := allCodecs()
	tests := []struct {
		name   string
		header []byte
		want   string
	}{
		{"zstd", compress(t, zstdcodec.New(), []byte("x")), "zstd"},
		{"gzip", compress(t, gzipcodec.New(), []byte("x")), "gzip"},
		{"raw falls back to none", []byte{0x83, 0xa1, 'v'}, "none"},
		{"empty falls back to none", nil, "none"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := codec.Detect(tt.header, candidates...)
			if !ok {
				t.Fatal("Detect() ok = false, want true")
			}
			if got.Name() != tt.want {
				t.Errorf("Detect() = %q, want %q", got.Name(), tt.want)
			}
		})
	}
}

func TestDetect_NoFallback(t *testing.T) {
	_, ok := codec.Detect([]byte("not compressed"), zstdcodec.New(), gzipcodec.New())
	if ok {
		t.Error("Detect() ok = true for unknown header without fallback")
	}
}

func TestCodec_Reader_InvalidData(t *testing.T) {
	c := gzipcodec.New()
	if _, err := c.Reader(bytes.NewReader([]byte("not gzip data"))); err == nil {
		t.Error("Reader() expected error for invalid gzip data, got nil")
	}
}
