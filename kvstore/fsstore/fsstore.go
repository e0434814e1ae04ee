// Package fsstore implements a filesystem-directory kvstore.Backend. Each
// key maps to a file path under a root directory, with "." translated to
// "/" so dotted keys (as used by the index and object layers) fan out into
// subdirectories instead of colliding in one flat folder.
package fsstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/loqor/objectstore/kvstore"
)

const dataExt = ".json"

// Store is a kvstore.Backend rooted at a directory on disk. Writes go to a
// temp file in the same directory and are renamed into place, so a crash
// mid-write never leaves a partially written value visible.
type Store struct {
	root string
}

// New returns a Store rooted at root, creating the directory if needed.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: filepath.Clean(root)}, nil
}

func (s *Store) Capabilities() kvstore.Capability {
	return kvstore.HasRead | kvstore.HasWrite | kvstore.HasFile | kvstore.HasOrdering | kvstore.HasRaw | kvstore.HasStream
}

func (s *Store) pathFor(key string) string {
	return s.pathForExt(key, dataExt)
}

// pathForExt maps a dotted key to a file path under root with the given
// extension, the same "." -> "/" fan-out pathFor uses for .json metadata,
// reused by the RawBackend methods to place blob files (typically .blob)
// alongside them.
func (s *Store) pathForExt(key, ext string) string {
	parts := strings.Split(key, ".")
	parts[len(parts)-1] += ext
	return filepath.Join(append([]string{s.root}, parts...)...)
}

func (s *Store) Add(ctx context.Context, key string, data kvstore.Value) error {
	p := s.pathFor(key)
	if _, err := os.Stat(p); err == nil {
		return kvstore.ErrExists
	} else if !os.IsNotExist(err) {
		return err
	}
	return s.writeAtomic(p, data)
}

func (s *Store) Update(ctx context.Context, key string, data kvstore.Value) error {
	p := s.pathFor(key)
	if _, err := os.Stat(p); os.IsNotExist(err) {
		return kvstore.ErrNotFound
	} else if err != nil {
		return err
	}
	return s.writeAtomic(p, data)
}

// writeAtomic writes data to a sibling temp file and renames it over path,
// rolling back (removing the temp file) on any failure before the rename.
func (s *Store) writeAtomic(path string, data kvstore.Value) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, key string) error {
	p := s.pathFor(key)
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return kvstore.ErrNotFound
		}
		return err
	}
	s.pruneEmptyParents(filepath.Dir(p))
	return nil
}

// pruneEmptyParents removes dir and any now-empty ancestor, stopping at (and
// never removing) the store root.
func (s *Store) pruneEmptyParents(dir string) {
	for dir != s.root && strings.HasPrefix(dir, s.root) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func (s *Store) Has(ctx context.Context, key string) (bool, error) {
	_, err := os.Stat(s.pathFor(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (s *Store) Get(ctx context.Context, key string) (kvstore.Value, error) {
	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kvstore.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// walkKeys returns every key whose file lives under root, reconstructed
// from its path by reversing pathFor's dot-to-slash mapping.
func (s *Store) walkKeys(prefix string) ([]string, error) {
	var keys []string
	err := filepath.Walk(s.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, dataExt) {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		rel = strings.TrimSuffix(rel, dataExt)
		key := strings.ReplaceAll(rel, string(filepath.Separator), ".")
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (s *Store) Keys(ctx context.Context, prefix string, order kvstore.Order) (kvstore.KeyIterator, error) {
	keys, err := s.walkKeys(prefix)
	if err != nil {
		return nil, err
	}
	kvstore.SortKeys(keys, order)
	return kvstore.NewSliceKeyIterator(keys), nil
}

func (s *Store) List(ctx context.Context, prefix string) (kvstore.ValueIterator, error) {
	keys, err := s.walkKeys(prefix)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	values := make([]kvstore.Value, 0, len(keys))
	for _, k := range keys {
		v, err := s.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return kvstore.NewSliceValueIterator(values), nil
}

func (s *Store) Count(ctx context.Context, prefix string) (int, error) {
	keys, err := s.walkKeys(prefix)
	if err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (s *Store) Clear(ctx context.Context) error {
	if err := os.RemoveAll(s.root); err != nil {
		return err
	}
	return os.MkdirAll(s.root, 0o755)
}

func (s *Store) Sync(ctx context.Context) error { return nil }

// Path implements kvstore.FileBackend, exposing the on-disk location of key
// directly so callers can stream large values without loading them.
func (s *Store) Path(ctx context.Context, key string) (string, error) {
	p := s.pathFor(key)
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return "", kvstore.ErrNotFound
		}
		return "", err
	}
	return p, nil
}

// HasRawData implements kvstore.RawBackend.
func (s *Store) HasRawData(ctx context.Context, key, ext string) (bool, error) {
	_, err := os.Stat(s.pathForExt(key, ext))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// SaveRawData implements kvstore.RawBackend, writing data atomically to a
// sibling file under key with the given extension (conventionally ".blob").
func (s *Store) SaveRawData(ctx context.Context, key, ext string, data []byte) error {
	return s.writeAtomic(s.pathForExt(key, ext), data)
}

// RemoveRawData implements kvstore.RawBackend.
func (s *Store) RemoveRawData(ctx context.Context, key, ext string) error {
	p := s.pathForExt(key, ext)
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return kvstore.ErrNotFound
		}
		return err
	}
	s.pruneEmptyParents(filepath.Dir(p))
	return nil
}

// GetRawDataPath implements kvstore.RawBackend.
func (s *Store) GetRawDataPath(ctx context.Context, key, ext string) (string, error) {
	p := s.pathForExt(key, ext)
	if _, err := os.Stat(p); err != nil {
		if os.IsNotExist(err) {
			return "", kvstore.ErrNotFound
		}
		return "", err
	}
	return p, nil
}

// StreamRawData implements kvstore.RawBackend, reading the blob file back
// in chunkSize-sized pieces without loading it into memory all at once.
func (s *Store) StreamRawData(ctx context.Context, key, ext string, chunkSize int) (kvstore.ByteIterator, error) {
	f, err := os.Open(s.pathForExt(key, ext))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kvstore.ErrNotFound
		}
		return nil, err
	}
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	return &fileChunkIterator{f: f, chunkSize: chunkSize}, nil
}

// Stream implements kvstore.StreamBackend over the primary (.json) value,
// for consistency with RawBackend's chunked reads on large metadata values.
func (s *Store) Stream(ctx context.Context, key string, chunkSize int) (kvstore.ByteIterator, error) {
	f, err := os.Open(s.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, kvstore.ErrNotFound
		}
		return nil, err
	}
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	return &fileChunkIterator{f: f, chunkSize: chunkSize}, nil
}

// fileChunkIterator implements kvstore.ByteIterator over an *os.File.
type fileChunkIterator struct {
	f         *os.File
	chunkSize int
	chunk     []byte
	err       error
	done      bool
}

func (it *fileChunkIterator) Next() bool {
	if it.done {
		return false
	}
	buf := make([]byte, it.chunkSize)
	n, err := it.f.Read(buf)
	if n > 0 {
		it.chunk = buf[:n]
	}
	if err != nil {
		it.done = true
		if !errors.Is(err, io.EOF) {
			it.err = err
		}
		return n > 0
	}
	return true
}

func (it *fileChunkIterator) Chunk() []byte { return it.chunk }
func (it *fileChunkIterator) Err() error    { return it.err }
func (it *fileChunkIterator) Close() error  { return it.f.Close() }
