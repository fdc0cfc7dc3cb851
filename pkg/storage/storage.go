package storage

import (
	"github.com/mono-ball/ball/pkg/common"
)

type BallStorageInterface interface {
	ReadFile(entry *common.BallEntry, dest []byte, offset int64) (int, error)
	ReadEntry(entry *common.BallEntry) ([]byte, error)
	Metadata() *common.BallArchiveMetadata
	CachedLocally() bool
	Cleanup() error
}

type BallStorageOpts struct {
	ArchivePath string
	Metadata    *common.BallArchiveMetadata
}

func NewBallStorage(opts BallStorageOpts) (BallStorageInterface, error) {
	return NewLocalBallStorage(opts.Metadata, LocalBallStorageOpts{
		ArchivePath: opts.ArchivePath,
	})
}
