package storage

import (
	"fmt"
	"io"
	"os"

	"github.com/beam-cloud/ristretto"

	"github.com/mono-ball/ball/pkg/codec"
	"github.com/mono-ball/ball/pkg/common"
)

const (
	contentCacheNumCounters = 1e5
	contentCacheMaxCost     = 256 * 1024 * 1024 // decompressed bytes held at most
	contentCacheBufferItems = 64
)

// LocalBallStorage serves random-access reads of entry contents from an
// archive on local disk. Entries are LZ4 blocks, so a read at any offset
// decompresses the whole entry once; the decompressed payload is kept in a
// content cache so repeated reads of the same entry skip the codec.
type LocalBallStorage struct {
	archivePath  string
	metadata     *common.BallArchiveMetadata
	fileHandle   *os.File
	contentCache *ristretto.Cache[string, []byte]
}

type LocalBallStorageOpts struct {
	ArchivePath string
}

func NewLocalBallStorage(metadata *common.BallArchiveMetadata, opts LocalBallStorageOpts) (*LocalBallStorage, error) {
	fileHandle, err := os.Open(opts.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("unable to open archive %s: %w", opts.ArchivePath, err)
	}

	contentCache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: contentCacheNumCounters,
		MaxCost:     contentCacheMaxCost,
		BufferItems: contentCacheBufferItems,
	})
	if err != nil {
		fileHandle.Close()
		return nil, err
	}

	return &LocalBallStorage{
		metadata:     metadata,
		archivePath:  opts.ArchivePath,
		fileHandle:   fileHandle,
		contentCache: contentCache,
	}, nil
}

// ReadFile copies entry content starting at off into dest and returns the
// number of bytes copied. Reading at or past the end of the entry returns
// io.EOF.
func (s *LocalBallStorage) ReadFile(entry *common.BallEntry, dest []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative offset %d for %s", off, entry.Path)
	}

	raw, err := s.content(entry)
	if err != nil {
		return 0, err
	}

	if off >= int64(len(raw)) {
		if len(dest) == 0 && off == int64(len(raw)) {
			return 0, nil
		}
		return 0, io.EOF
	}

	return copy(dest, raw[off:]), nil
}

// ReadEntry returns the full decompressed content of an entry.
func (s *LocalBallStorage) ReadEntry(entry *common.BallEntry) ([]byte, error) {
	raw, err := s.content(entry)
	if err != nil {
		return nil, err
	}

	// Hand out a copy, cached bytes are shared across callers.
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func (s *LocalBallStorage) content(entry *common.BallEntry) ([]byte, error) {
	if entry.CompressedSize == 0 {
		return nil, nil
	}

	if cached, found := s.contentCache.Get(entry.Path); found {
		return cached, nil
	}

	compressed := make([]byte, entry.CompressedSize)
	if _, err := s.fileHandle.ReadAt(compressed, int64(entry.DataOffset)); err != nil {
		return nil, fmt.Errorf("%w: unable to read payload of %s: %v", common.ErrCorruptArchive, entry.Path, err)
	}

	raw, err := codec.Decompress(compressed, entry.UncompressedSize)
	if err != nil {
		return nil, fmt.Errorf("entry %s: %w", entry.Path, err)
	}

	s.contentCache.Set(entry.Path, raw, int64(len(raw)))
	return raw, nil
}

func (s *LocalBallStorage) CachedLocally() bool {
	return true
}

func (s *LocalBallStorage) Metadata() *common.BallArchiveMetadata {
	return s.metadata
}

func (s *LocalBallStorage) Cleanup() error {
	s.contentCache.Close()
	return s.fileHandle.Close()
}
