package ball

import (
	"fmt"

	"github.com/mono-ball/ball/pkg/common"
	"github.com/mono-ball/ball/pkg/storage"
)

// Archive is an open handle on a ball file. The table of contents is parsed
// eagerly on Open; entry payloads are read lazily and randomly by path. The
// handle owns the underlying file and must be released with Close.
type Archive struct {
	path     string
	metadata *common.BallArchiveMetadata
	storage  storage.BallStorageInterface
}

func Open(archivePath string) (*Archive, error) {
	archiver := NewBallArchiver()
	metadata, err := archiver.ExtractMetadata(archivePath)
	if err != nil {
		return nil, err
	}

	s, err := storage.NewBallStorage(storage.BallStorageOpts{
		ArchivePath: archivePath,
		Metadata:    metadata,
	})
	if err != nil {
		return nil, err
	}

	return &Archive{
		path:     archivePath,
		metadata: metadata,
		storage:  s,
	}, nil
}

// ReadEntry returns the decompressed content of the entry at the given
// normalized relative path. A missing path is ErrEntryNotFound, which is not
// a corruption condition: the archive is fine, the entry just isn't in it.
func (a *Archive) ReadEntry(path string) ([]byte, error) {
	entry := a.metadata.Get(path)
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", common.ErrEntryNotFound, path)
	}
	if entry.CompressedSize == 0 {
		return []byte{}, nil
	}
	return a.storage.ReadEntry(entry)
}

// ListEntries returns every entry in lexicographic path order, without
// touching payload data.
func (a *Archive) ListEntries() []*common.BallEntry {
	return a.metadata.List()
}

func (a *Archive) Metadata() *common.BallArchiveMetadata {
	return a.metadata
}

func (a *Archive) Close() error {
	return a.storage.Cleanup()
}
