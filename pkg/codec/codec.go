// Package codec wraps LZ4 block compression for individual archive entries.
// Every entry is compressed as a single block so it can be decompressed on
// its own during random-access reads, without touching the rest of the
// archive.
package codec

import (
	"fmt"
	"math"

	"github.com/pierrec/lz4/v4"

	"github.com/mono-ball/ball/pkg/common"
)

const (
	MinLevel = 1
	MaxLevel = 9

	// MaxBlockExpansion bounds the ratio of a decoded block to its
	// compressed form. An LZ4 block cannot expand more than 255x, so a
	// recorded size pair exceeding it cannot have come from the codec.
	MaxBlockExpansion = 255
)

// TierFor maps an archive compression level to an LZ4 effort tier. Levels 1
// and 2 both select the fast path; 3 through 9 select the matching HC level.
func TierFor(level int) (lz4.CompressionLevel, error) {
	switch level {
	case 1, 2:
		return lz4.Fast, nil
	case 3:
		return lz4.Level3, nil
	case 4:
		return lz4.Level4, nil
	case 5:
		return lz4.Level5, nil
	case 6:
		return lz4.Level6, nil
	case 7:
		return lz4.Level7, nil
	case 8:
		return lz4.Level8, nil
	case 9:
		return lz4.Level9, nil
	default:
		return lz4.Fast, fmt.Errorf("%w: got %d", common.ErrInvalidCompressionLevel, level)
	}
}

// Compress compresses raw into a single LZ4 block. Empty input returns an
// empty result without invoking the codec. The destination buffer is sized
// by the block bound, so incompressible input is still emitted as literals
// rather than reported as a failure.
func Compress(raw []byte, level int) ([]byte, error) {
	tier, err := TierFor(level)
	if err != nil {
		return nil, err
	}

	if len(raw) == 0 {
		return nil, nil
	}

	dst := make([]byte, lz4.CompressBlockBound(len(raw)))

	var n int
	if tier == lz4.Fast {
		var c lz4.Compressor
		n, err = c.CompressBlock(raw, dst)
	} else {
		c := lz4.CompressorHC{Level: tier}
		n, err = c.CompressBlock(raw, dst)
	}
	if err != nil {
		return nil, fmt.Errorf("lz4 compression failed: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("lz4 compression produced no output for %d input bytes", len(raw))
	}

	return dst[:n], nil
}

// Decompress decompresses a single LZ4 block into exactly uncompressedSize
// bytes. A length disagreement with the TOC record means the archive is
// truncated or corrupted and fails with ErrSizeMismatch.
func Decompress(compressed []byte, uncompressedSize uint64) ([]byte, error) {
	if uncompressedSize == 0 && len(compressed) == 0 {
		return nil, nil
	}
	if uncompressedSize > uint64(math.MaxInt) {
		return nil, fmt.Errorf("%w: recorded size %d overflows", common.ErrCorruptArchive, uncompressedSize)
	}

	raw := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(compressed, raw)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompression failed: %w", err)
	}
	if uint64(n) != uncompressedSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", common.ErrSizeMismatch, uncompressedSize, n)
	}

	return raw, nil
}
