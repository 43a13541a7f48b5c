// Package snapshot persists the library collection to a single local file.
//
// A snapshot is MessagePack encoded and compressed with a codec. Writes are
// atomic: data goes to a temporary file in the target directory which is
// synced and then renamed over the target, so readers see either the
// previous file or the new one.
package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/mangoshelf/libcache/internal/codec"
	"github.com/mangoshelf/libcache/internal/codec/gzipcodec"
	"github.com/mangoshelf/libcache/internal/codec/noopcodec"
	"github.com/mangoshelf/libcache/internal/codec/zstdcodec"
)

const (
	fileMode = 0o600
	dirMode  = 0o750

	lockRetryDelay = 50 * time.Millisecond
)

// Metadata describes the snapshot file on disk.
type Metadata struct {
	Path      string
	SizeBytes int64
	Modified  time.Time
	Exists    bool
	// Codec is the detected compression of an existing file.
	Codec string
}

// Store reads and writes the snapshot file at a fixed path.
type Store struct {
	path     string
	codec    codec.Codec
	decoders []codec.Codec
	logger   *zap.Logger

	// rename is os.Rename outside tests.
	rename func(oldpath, newpath string) error

	mu sync.Mutex
}

// New creates a store for the file at path. Snapshots are written with c;
// any supported codec is accepted on load.
func New(path string, c codec.Codec, logger *zap.Logger) *Store {
	if c == nil {
		c = zstdcodec.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		path:  path,
		codec: c,
		// The codec without magic bytes must come last; it is the fallback.
		decoders: []codec.Codec{zstdcodec.New(), gzipcodec.New(), noopcodec.New()},
		logger:   logger,
		rename:   os.Rename,
	}
}

// Path returns the snapshot file path.
func (s *Store) Path() string {
	return s.path
}

// Codec returns the codec used for writing.
func (s *Store) Codec() codec.Codec {
	return s.codec
}

// Save atomically replaces the snapshot file with snap.
// The previous file is left untouched if any step fails or ctx is cancelled
// before the final rename.
func (s *Store) Save(ctx context.Context, snap *Snapshot) (Metadata, error) {
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return Metadata{}, fmt.Errorf("%w: creating directory: %w", ErrIO, err)
	}

	lock := flock.New(s.path + ".lock")
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: acquiring lock: %w", ErrIO, err)
	}
	if !locked {
		return Metadata{}, fmt.Errorf("%w: lock %s is held", ErrIO, lock.Path())
	}
	defer lock.Unlock()

	out := *snap
	out.SavedAt = time.Now().UTC()
	payload, err := out.MarshalMsg(make([]byte, 0, out.Msgsize()))
	if err != nil {
		return Metadata{}, fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: creating temp file: %w", ErrIO, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(fileMode); err != nil {
		return Metadata{}, fmt.Errorf("%w: setting permissions: %w", ErrIO, err)
	}
	if err := s.writeCompressed(tmp, payload); err != nil {
		return Metadata{}, err
	}
	if err := tmp.Sync(); err != nil {
		return Metadata{}, fmt.Errorf("%w: syncing temp file: %w", ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return Metadata{}, fmt.Errorf("%w: closing temp file: %w", ErrIO, err)
	}
	if err := ctx.Err(); err != nil {
		return Metadata{}, err
	}
	if err := s.rename(tmpPath, s.path); err != nil {
		return Metadata{}, fmt.Errorf("%w: renaming temp file: %w", ErrIO, err)
	}
	committed = true
	syncDir(dir)

	meta, err := s.stat()
	if err != nil {
		return Metadata{}, err
	}
	meta.Codec = s.codec.Name()
	snap.SavedAt = out.SavedAt

	s.logger.Debug("snapshot written",
		zap.String("path", s.path),
		zap.Int("items", out.Count()),
		zap.Int("rawBytes", len(payload)),
		zap.Int64("fileBytes", meta.SizeBytes),
		zap.String("codec", meta.Codec),
	)
	return meta, nil
}

func (s *Store) writeCompressed(f *os.File, payload []byte) error {
	w, err := s.codec.Writer(f)
	if err != nil {
		return fmt.Errorf("%w: creating compressor: %w", ErrIO, err)
	}
	if _, err := w.Write(payload); err != nil {
		w.Close()
		return fmt.Errorf("%w: writing snapshot: %w", ErrIO, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: flushing compressor: %w", ErrIO, err)
	}
	return nil
}

// syncDir flushes the directory entry of a rename. Errors are ignored since
// not every platform supports syncing directories.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}

// Load reads and validates the snapshot file.
// expectedRoot must equal the stored root and expectedCount the number of
// stored items. Load never deletes the file; callers decide what to do with
// a rejected snapshot.
func (s *Store) Load(ctx context.Context, expectedRoot string, expectedCount int) (*Snapshot, error) {
	snap, err := s.Read(ctx)
	if err != nil {
		return nil, err
	}
	if err := snap.Validate(expectedRoot, expectedCount); err != nil {
		return nil, err
	}
	return snap, nil
}

// Read decodes the snapshot file without validating it against a library.
func (s *Store) Read(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: reading snapshot: %w", ErrIO, err)
	}
	return s.decode(data)
}

func (s *Store) decode(data []byte) (*Snapshot, error) {
	c, ok := codec.Detect(data, s.decoders...)
	if !ok {
		return nil, fmt.Errorf("%w: unknown compression", ErrCorrupt)
	}

	r, err := c.Reader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, c.Name(), err)
	}
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorrupt, c.Name(), err)
	}

	snap := new(Snapshot)
	rest, err := snap.UnmarshalMsg(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding: %w", ErrCorrupt, err)
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, len(rest))
	}
	return snap, nil
}

// Delete removes the snapshot file. Deleting an absent file is not an error.
func (s *Store) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: deleting snapshot: %w", ErrIO, err)
	}
	return nil
}

// Stat returns metadata about the snapshot file. A missing file is reported
// with Exists false and no error.
func (s *Store) Stat() (Metadata, error) {
	meta, err := s.stat()
	if err != nil || !meta.Exists {
		return meta, err
	}
	meta.Codec = s.detectCodec()
	return meta, nil
}

func (s *Store) stat() (Metadata, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Metadata{Path: s.path}, nil
		}
		return Metadata{}, fmt.Errorf("%w: stat snapshot: %w", ErrIO, err)
	}
	return Metadata{
		Path:      s.path,
		SizeBytes: info.Size(),
		Modified:  info.ModTime(),
		Exists:    true,
	}, nil
}

func (s *Store) detectCodec() string {
	f, err := os.Open(s.path)
	if err != nil {
		return ""
	}
	defer f.Close()

	header := make([]byte, codec.MaxMagicLen)
	n, _ := io.ReadFull(f, header)
	c, ok := codec.Detect(header[:n], s.decoders...)
	if !ok {
		return ""
	}
	return c.Name()
}
