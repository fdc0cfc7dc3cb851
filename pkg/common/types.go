package common

import (
	"github.com/tidwall/btree"
)

// BallEntry is one packed file: its TOC record. The payload itself lives at
// DataOffset inside the archive. Directories are not first-class entries,
// they are implied by the path separators.
type BallEntry struct {
	Path             string
	UncompressedSize uint64
	CompressedSize   uint64 // 0 means the payload is zero bytes (empty source file)
	DataOffset       uint64 // absolute offset of the compressed payload
}

type BallArchiveMetadata struct {
	Header BallArchiveHeader
	Index  *btree.BTree
}

func NewIndex() *btree.BTree {
	compare := func(a, b interface{}) bool {
		return a.(*BallEntry).Path < b.(*BallEntry).Path
	}
	return btree.New(compare)
}

// Insert adds an entry to the index. It returns the previously stored entry
// when the path was already present, which callers must treat as a
// duplicate-path failure.
func (m *BallArchiveMetadata) Insert(entry *BallEntry) *BallEntry {
	prev := m.Index.Set(entry)
	if prev == nil {
		return nil
	}
	return prev.(*BallEntry)
}

func (m *BallArchiveMetadata) Get(path string) *BallEntry {
	item := m.Index.Get(&BallEntry{Path: path})
	if item == nil {
		return nil
	}
	return item.(*BallEntry)
}

// List returns every entry in lexicographic path order.
func (m *BallArchiveMetadata) List() []*BallEntry {
	entries := make([]*BallEntry, 0, m.Index.Len())
	m.Index.Ascend(m.Index.Min(), func(a interface{}) bool {
		entries = append(entries, a.(*BallEntry))
		return true
	})
	return entries
}

// Progress describes one completed file during packing. Index counts files
// done so far including the current one, BytesProcessed accumulates
// uncompressed bytes.
type Progress struct {
	Index          int
	Total          int
	Path           string
	BytesProcessed uint64
	TotalBytes     uint64
}

// ProgressFunc receives progress updates during packing. It is invoked from
// the write goroutine only, in entry order.
type ProgressFunc func(Progress)
