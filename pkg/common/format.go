package common

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

var BallFileMagic []byte = []byte("MONOBALL")

const (
	BallHeaderLength             = 18
	BallFileFormatVersion uint16 = 1

	// Byte offset of the TocOffset field inside the header, right after
	// the 8-byte magic and the 2-byte version.
	TocOffsetFieldPos = 10

	// Entry paths are length-prefixed with a uint16.
	MaxPathLength = math.MaxUint16

	// Smallest possible TOC record: path length prefix, empty path, three
	// uint64 size fields.
	minTocRecordLength = 2 + 8 + 8 + 8
)

type BallArchiveHeader struct {
	Magic     [8]byte
	Version   uint16
	TocOffset uint64
}

/*

Layout of a ball archive, all integers little-endian:

	Header      18 bytes (magic, version, tocOffset)
	Payloads    concatenated per-entry LZ4 blocks, in TOC order
	TOC         entryCount uint32, then per entry:
	            pathLen uint16, path UTF-8, uncompressedSize uint64,
	            compressedSize uint64, dataOffset uint64

The tocOffset field is written as zero at the start of packing and patched
once every payload has been streamed.

*/

func EncodeHeader(header *BallArchiveHeader) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeHeader(headerBytes []byte) (*BallArchiveHeader, error) {
	header := new(BallArchiveHeader)
	buf := bytes.NewBuffer(headerBytes)
	if err := binary.Read(buf, binary.LittleEndian, header); err != nil {
		return nil, err
	}
	return header, nil
}

// EncodeToc serializes the table of contents in entry order. Paths longer
// than MaxPathLength cannot be represented and fail with ErrPathTooLong.
func EncodeToc(entries []*BallEntry) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(entries))); err != nil {
		return nil, err
	}

	for _, entry := range entries {
		pathBytes := []byte(entry.Path)
		if len(pathBytes) > MaxPathLength {
			return nil, fmt.Errorf("%w: %.64s... (%d bytes)", ErrPathTooLong, entry.Path, len(pathBytes))
		}

		if err := binary.Write(buf, binary.LittleEndian, uint16(len(pathBytes))); err != nil {
			return nil, err
		}
		if _, err := buf.Write(pathBytes); err != nil {
			return nil, err
		}
		for _, v := range []uint64{entry.UncompressedSize, entry.CompressedSize, entry.DataOffset} {
			if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
				return nil, err
			}
		}
	}

	return buf.Bytes(), nil
}

// DecodeToc parses the table of contents from its serialized form. Entries
// are returned in the order they were written.
func DecodeToc(tocBytes []byte) ([]*BallEntry, error) {
	r := bytes.NewReader(tocBytes)

	var entryCount uint32
	if err := binary.Read(r, binary.LittleEndian, &entryCount); err != nil {
		return nil, fmt.Errorf("%w: truncated table of contents", ErrCorruptArchive)
	}

	// The count is untrusted. Bound it by the bytes actually present before
	// allocating, so a lying count fails as corruption instead of an
	// enormous allocation.
	if uint64(entryCount)*minTocRecordLength > uint64(r.Len()) {
		return nil, fmt.Errorf("%w: table of contents claims %d entries in %d bytes", ErrCorruptArchive, entryCount, len(tocBytes))
	}

	entries := make([]*BallEntry, 0, entryCount)
	for i := uint32(0); i < entryCount; i++ {
		var pathLen uint16
		if err := binary.Read(r, binary.LittleEndian, &pathLen); err != nil {
			return nil, fmt.Errorf("%w: truncated entry %d", ErrCorruptArchive, i)
		}

		pathBytes := make([]byte, pathLen)
		if _, err := io.ReadFull(r, pathBytes); err != nil {
			return nil, fmt.Errorf("%w: truncated path in entry %d", ErrCorruptArchive, i)
		}

		entry := &BallEntry{Path: string(pathBytes)}
		for _, v := range []*uint64{&entry.UncompressedSize, &entry.CompressedSize, &entry.DataOffset} {
			if err := binary.Read(r, binary.LittleEndian, v); err != nil {
				return nil, fmt.Errorf("%w: truncated entry %d (%s)", ErrCorruptArchive, i, entry.Path)
			}
		}

		entries = append(entries, entry)
	}

	return entries, nil
}
