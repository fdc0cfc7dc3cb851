package ball

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mono-ball/ball/pkg/codec"
	"github.com/mono-ball/ball/pkg/common"
)

// craftArchive writes an archive byte-for-byte from the given entries and
// payloads, filling in DataOffset and TocOffset. CompressedSize is left to
// the caller so tests can record lies in the TOC.
func craftArchive(t *testing.T, entries []*common.BallEntry, payloads [][]byte) string {
	t.Helper()
	require.Equal(t, len(entries), len(payloads))

	var body bytes.Buffer
	pos := uint64(common.BallHeaderLength)
	for i, payload := range payloads {
		entries[i].DataOffset = pos
		body.Write(payload)
		pos += uint64(len(payload))
	}

	header := common.BallArchiveHeader{
		Version:   common.BallFileFormatVersion,
		TocOffset: pos,
	}
	copy(header.Magic[:], common.BallFileMagic)

	headerBytes, err := common.EncodeHeader(&header)
	require.NoError(t, err)
	tocBytes, err := common.EncodeToc(entries)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "crafted.ball")
	var file bytes.Buffer
	file.Write(headerBytes)
	file.Write(body.Bytes())
	file.Write(tocBytes)
	require.NoError(t, os.WriteFile(out, file.Bytes(), 0644))
	return out
}

// mutateCopy clones an archive and lets the test damage specific bytes.
func mutateCopy(t *testing.T, archivePath string, mutate func([]byte) []byte) string {
	t.Helper()
	raw, err := os.ReadFile(archivePath)
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "mutated.ball")
	require.NoError(t, os.WriteFile(out, mutate(raw), 0644))
	return out
}

func TestOpenBadMagic(t *testing.T) {
	out := packDir(t, map[string][]byte{"a.txt": []byte("hello")}, 1)

	mutated := mutateCopy(t, out, func(raw []byte) []byte {
		raw[0] ^= 0xFF
		return raw
	})

	_, err := Open(mutated)
	assert.ErrorIs(t, err, common.ErrHeaderMismatch)
}

func TestOpenUnsupportedVersion(t *testing.T) {
	out := packDir(t, map[string][]byte{"a.txt": []byte("hello")}, 1)

	mutated := mutateCopy(t, out, func(raw []byte) []byte {
		raw[8] = 0xFF
		return raw
	})

	_, err := Open(mutated)
	assert.ErrorIs(t, err, common.ErrUnsupportedVersion)
}

func TestOpenTruncated(t *testing.T) {
	out := packDir(t, map[string][]byte{"a.txt": []byte("hello"), "b.txt": []byte("world")}, 1)

	t.Run("shorter than header", func(t *testing.T) {
		mutated := mutateCopy(t, out, func(raw []byte) []byte { return raw[:10] })
		_, err := Open(mutated)
		assert.ErrorIs(t, err, common.ErrHeaderMismatch)
	})

	t.Run("cut before table of contents", func(t *testing.T) {
		md, err := NewBallArchiver().ExtractMetadata(out)
		require.NoError(t, err)

		mutated := mutateCopy(t, out, func(raw []byte) []byte { return raw[:md.Header.TocOffset-1] })
		_, err = Open(mutated)
		assert.ErrorIs(t, err, common.ErrCorruptArchive)
	})

	t.Run("cut inside table of contents", func(t *testing.T) {
		mutated := mutateCopy(t, out, func(raw []byte) []byte { return raw[:len(raw)-3] })
		_, err := Open(mutated)
		assert.ErrorIs(t, err, common.ErrCorruptArchive)
	})
}

func TestOpenHugeEntryCount(t *testing.T) {
	// Valid header, then a TOC that is nothing but a count of 0xFFFFFFFF.
	// Opening must fail as corruption without allocating for the claimed
	// entries.
	header := common.BallArchiveHeader{
		Version:   common.BallFileFormatVersion,
		TocOffset: common.BallHeaderLength,
	}
	copy(header.Magic[:], common.BallFileMagic)

	headerBytes, err := common.EncodeHeader(&header)
	require.NoError(t, err)

	toc := make([]byte, 4)
	binary.LittleEndian.PutUint32(toc, 0xFFFFFFFF)

	out := filepath.Join(t.TempDir(), "lying.ball")
	require.NoError(t, os.WriteFile(out, append(headerBytes, toc...), 0644))

	_, err = Open(out)
	assert.ErrorIs(t, err, common.ErrCorruptArchive)
}

func TestOpenImplausibleSizes(t *testing.T) {
	t.Run("uncompressed size beyond expansion bound", func(t *testing.T) {
		payload, err := codec.Compress([]byte("hello"), 1)
		require.NoError(t, err)

		entry := &common.BallEntry{
			Path: "a.txt",
			// Lies: no LZ4 block this small decodes to a terabyte.
			UncompressedSize: 1 << 40,
			CompressedSize:   uint64(len(payload)),
		}
		out := craftArchive(t, []*common.BallEntry{entry}, [][]byte{payload})

		_, err = Open(out)
		assert.ErrorIs(t, err, common.ErrCorruptArchive)
	})

	t.Run("nonzero size with empty payload", func(t *testing.T) {
		entry := &common.BallEntry{Path: "empty.dat", UncompressedSize: 7}
		out := craftArchive(t, []*common.BallEntry{entry}, [][]byte{nil})

		_, err := Open(out)
		assert.ErrorIs(t, err, common.ErrCorruptArchive)
	})
}

func TestOpenPayloadOverrun(t *testing.T) {
	payload, err := codec.Compress([]byte("hello"), 1)
	require.NoError(t, err)

	entry := &common.BallEntry{
		Path:             "a.txt",
		UncompressedSize: 5,
		// Lies: claims far more payload bytes than the archive holds.
		CompressedSize: 1 << 40,
	}
	out := craftArchive(t, []*common.BallEntry{entry}, [][]byte{payload})

	_, err = Open(out)
	assert.ErrorIs(t, err, common.ErrCorruptArchive)
}

func TestOpenOffsetBeforeDataSection(t *testing.T) {
	payload, err := codec.Compress([]byte("hello"), 1)
	require.NoError(t, err)

	entry := &common.BallEntry{Path: "a.txt", UncompressedSize: 5, CompressedSize: uint64(len(payload))}
	out := craftArchive(t, []*common.BallEntry{entry}, [][]byte{payload})

	mutated := mutateCopy(t, out, func(raw []byte) []byte {
		// Rewrite the entry's dataOffset field (last 8 bytes of its TOC
		// record) to land inside the header.
		copy(raw[len(raw)-8:], []byte{5, 0, 0, 0, 0, 0, 0, 0})
		return raw
	})

	_, err = Open(mutated)
	assert.ErrorIs(t, err, common.ErrCorruptArchive)
}

func TestOpenDuplicatePath(t *testing.T) {
	payload, err := codec.Compress([]byte("hello"), 1)
	require.NoError(t, err)

	entries := []*common.BallEntry{
		{Path: "a.txt", UncompressedSize: 5, CompressedSize: uint64(len(payload))},
		{Path: "a.txt", UncompressedSize: 5, CompressedSize: uint64(len(payload))},
	}
	out := craftArchive(t, entries, [][]byte{payload, payload})

	_, err = Open(out)
	assert.ErrorIs(t, err, common.ErrDuplicatePath)
}

func TestReadEntryCorruptPayload(t *testing.T) {
	payload, err := codec.Compress(bytes.Repeat([]byte("abcd"), 512), 1)
	require.NoError(t, err)

	entry := &common.BallEntry{Path: "a.bin", UncompressedSize: 2048, CompressedSize: uint64(len(payload))}
	out := craftArchive(t, []*common.BallEntry{entry}, [][]byte{payload})

	mutated := mutateCopy(t, out, func(raw []byte) []byte {
		// Destroy the block structure: an all-0xFF payload demands a
		// literal run far longer than the block itself.
		for i := 0; i < len(payload); i++ {
			raw[common.BallHeaderLength+i] = 0xFF
		}
		return raw
	})

	archive, err := Open(mutated)
	require.NoError(t, err)
	defer archive.Close()

	_, err = archive.ReadEntry("a.bin")
	assert.Error(t, err)
}

func TestReadEntryEmptyWithoutDecompressor(t *testing.T) {
	entry := &common.BallEntry{Path: "empty.dat"}
	out := craftArchive(t, []*common.BallEntry{entry}, [][]byte{nil})

	archive, err := Open(out)
	require.NoError(t, err)
	defer archive.Close()

	raw, err := archive.ReadEntry("empty.dat")
	require.NoError(t, err)
	assert.Empty(t, raw)
}
