package ball

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/btree"
	"golang.org/x/sync/errgroup"

	"github.com/mono-ball/ball/pkg/codec"
	"github.com/mono-ball/ball/pkg/common"
	"github.com/mono-ball/ball/pkg/storage"
)

type BallArchiverOptions struct {
	SourcePath       string // directory to pack
	OutputFile       string // archive file to produce
	ArchivePath      string // archive file to extract
	OutputPath       string // directory to extract into
	CompressionLevel int
	Progress         common.ProgressFunc
}

type BallArchiver struct {
}

func NewBallArchiver() *BallArchiver {
	return &BallArchiver{}
}

// populateIndex enumerates regular files under sourcePath into the index,
// keyed by normalized relative path. Iterating the index yields the
// lexicographic order the archive is written in, so identical source trees
// produce byte-identical archives. Returns the total uncompressed size.
func (ba *BallArchiver) populateIndex(index *btree.BTree, sourcePath string) (uint64, error) {
	var totalBytes uint64

	err := godirwalk.Walk(sourcePath, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			if !de.IsRegular() {
				log.Debug().Msgf("skipping non-regular file: %s", path)
				return nil
			}

			rel, err := filepath.Rel(sourcePath, path)
			if err != nil {
				return fmt.Errorf("relative path for %s: %w", path, err)
			}
			relPath := strings.TrimPrefix(filepath.ToSlash(rel), "/")
			if len(relPath) > common.MaxPathLength {
				return fmt.Errorf("%w: %.64s... (%d bytes)", common.ErrPathTooLong, relPath, len(relPath))
			}

			fi, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("unable to stat %s: %w", path, err)
			}

			entry := &common.BallEntry{Path: relPath, UncompressedSize: uint64(fi.Size())}
			if prev := index.Set(entry); prev != nil {
				return fmt.Errorf("%w: %s", common.ErrDuplicatePath, relPath)
			}
			totalBytes += uint64(fi.Size())

			return nil
		},
		Unsorted: false,
	})

	return totalBytes, err
}

func (ba *BallArchiver) Create(ctx context.Context, opts BallArchiverOptions) error {
	if _, err := codec.TierFor(opts.CompressionLevel); err != nil {
		return err
	}

	info, err := os.Stat(opts.SourcePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", common.ErrSourceNotFound, opts.SourcePath)
	}
	if err != nil {
		return fmt.Errorf("unable to stat source %s: %w", opts.SourcePath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", common.ErrSourceNotFound, opts.SourcePath)
	}

	if dir := filepath.Dir(opts.OutputFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("unable to create output directory %s: %w", dir, err)
		}
	}

	// Guard the output against a concurrent pack of the same archive.
	lockPath := opts.OutputFile + ".lock"
	fileLock := flock.New(lockPath)
	locked, err := fileLock.TryLock()
	if err != nil {
		return fmt.Errorf("unable to acquire lock %s: %w", lockPath, err)
	}
	if !locked {
		return fmt.Errorf("%w: %s", common.ErrArchiveLocked, opts.OutputFile)
	}
	defer func() {
		fileLock.Unlock()
		os.Remove(lockPath)
	}()

	index := common.NewIndex()
	totalBytes, err := ba.populateIndex(index, opts.SourcePath)
	if err != nil {
		return err
	}

	entries := make([]*common.BallEntry, 0, index.Len())
	index.Ascend(index.Min(), func(a interface{}) bool {
		entries = append(entries, a.(*common.BallEntry))
		return true
	})

	// Write into a temp file and rename once complete, so an aborted pack
	// never leaves a partial archive at the output path.
	tmpFile := fmt.Sprintf("%s.%s.tmp", opts.OutputFile, uuid.New().String()[:6])
	outFile, err := os.Create(tmpFile)
	if err != nil {
		return fmt.Errorf("unable to create output file %s: %w", tmpFile, err)
	}

	if err := ba.writeArchive(ctx, outFile, entries, totalBytes, opts); err != nil {
		outFile.Close()
		os.Remove(tmpFile)
		return err
	}

	if err := outFile.Close(); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("unable to close output file: %w", err)
	}
	if err := os.Rename(tmpFile, opts.OutputFile); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("unable to move archive into place: %w", err)
	}

	return nil
}

func (ba *BallArchiver) writeArchive(ctx context.Context, outFile *os.File, entries []*common.BallEntry, totalBytes uint64, opts BallArchiverOptions) error {
	header := common.BallArchiveHeader{
		Version:   common.BallFileFormatVersion,
		TocOffset: 0, // patched after the payloads are streamed
	}
	copy(header.Magic[:], common.BallFileMagic)

	headerBytes, err := common.EncodeHeader(&header)
	if err != nil {
		return err
	}
	if _, err := outFile.Write(headerBytes); err != nil {
		return fmt.Errorf("unable to write header: %w", err)
	}

	compressed, err := ba.compressEntries(ctx, entries, opts)
	if err != nil {
		return err
	}

	// Only the write order determines offsets, so compression above runs in
	// parallel while this loop stays single-threaded and ordered.
	writer := bufio.NewWriterSize(outFile, 512*1024)

	var pos int64 = common.BallHeaderLength
	var bytesProcessed uint64
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		entry.DataOffset = uint64(pos)
		entry.CompressedSize = uint64(len(compressed[i]))
		if len(compressed[i]) > 0 {
			n, err := writer.Write(compressed[i])
			if err != nil {
				return fmt.Errorf("unable to write payload of %s: %w", entry.Path, err)
			}
			pos += int64(n)
		}
		compressed[i] = nil

		bytesProcessed += entry.UncompressedSize
		if opts.Progress != nil {
			opts.Progress(common.Progress{
				Index:          i + 1,
				Total:          len(entries),
				Path:           entry.Path,
				BytesProcessed: bytesProcessed,
				TotalBytes:     totalBytes,
			})
		}
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("unable to flush payloads: %w", err)
	}

	tocOffset, err := outFile.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	tocBytes, err := common.EncodeToc(entries)
	if err != nil {
		return err
	}
	if _, err := outFile.Write(tocBytes); err != nil {
		return fmt.Errorf("unable to write table of contents: %w", err)
	}

	// Patch the real TOC position into the header.
	if _, err := outFile.Seek(common.TocOffsetFieldPos, io.SeekStart); err != nil {
		return err
	}
	var tocField [8]byte
	binary.LittleEndian.PutUint64(tocField[:], uint64(tocOffset))
	if _, err := outFile.Write(tocField[:]); err != nil {
		return fmt.Errorf("unable to patch tocOffset: %w", err)
	}

	return nil
}

// compressEntries reads and compresses every entry into an in-memory buffer,
// bounded by the CPU count. Entry order is untouched.
func (ba *BallArchiver) compressEntries(ctx context.Context, entries []*common.BallEntry, opts BallArchiverOptions) ([][]byte, error) {
	compressed := make([][]byte, len(entries))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			data, err := os.ReadFile(filepath.Join(opts.SourcePath, filepath.FromSlash(entry.Path)))
			if err != nil {
				return fmt.Errorf("unable to read %s: %w", entry.Path, err)
			}
			entry.UncompressedSize = uint64(len(data))

			blob, err := codec.Compress(data, opts.CompressionLevel)
			if err != nil {
				return fmt.Errorf("unable to compress %s: %w", entry.Path, err)
			}
			compressed[i] = blob

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return compressed, nil
}

// ExtractMetadata validates the header and parses the table of contents into
// an in-memory index. Payloads are not touched.
func (ba *BallArchiver) ExtractMetadata(archivePath string) (*common.BallArchiveMetadata, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("unable to open archive %s: %w", archivePath, err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("unable to stat archive %s: %w", archivePath, err)
	}
	fileSize := uint64(stat.Size())

	headerBytes := make([]byte, common.BallHeaderLength)
	if _, err := io.ReadFull(file, headerBytes); err != nil {
		return nil, common.ErrHeaderMismatch
	}

	header, err := common.DecodeHeader(headerBytes)
	if err != nil {
		return nil, common.ErrHeaderMismatch
	}

	if !bytes.Equal(header.Magic[:], common.BallFileMagic) {
		return nil, common.ErrHeaderMismatch
	}
	if header.Version != common.BallFileFormatVersion {
		return nil, fmt.Errorf("%w: version %d", common.ErrUnsupportedVersion, header.Version)
	}

	if header.TocOffset < common.BallHeaderLength || header.TocOffset > fileSize {
		return nil, fmt.Errorf("%w: tocOffset %d outside file of %d bytes", common.ErrCorruptArchive, header.TocOffset, fileSize)
	}

	if _, err := file.Seek(int64(header.TocOffset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("error seeking to table of contents: %w", err)
	}
	tocBytes := make([]byte, fileSize-header.TocOffset)
	if _, err := io.ReadFull(file, tocBytes); err != nil {
		return nil, fmt.Errorf("%w: error reading table of contents: %v", common.ErrCorruptArchive, err)
	}

	entries, err := common.DecodeToc(tocBytes)
	if err != nil {
		return nil, err
	}

	metadata := &common.BallArchiveMetadata{
		Header: *header,
		Index:  common.NewIndex(),
	}
	for _, entry := range entries {
		if entry.DataOffset < common.BallHeaderLength ||
			entry.CompressedSize > header.TocOffset ||
			entry.DataOffset > header.TocOffset-entry.CompressedSize {
			return nil, fmt.Errorf("%w: payload of %s (offset %d, %d bytes) overruns the data section",
				common.ErrCorruptArchive, entry.Path, entry.DataOffset, entry.CompressedSize)
		}
		// Decompression allocates UncompressedSize bytes, so the recorded
		// size pair must be one the codec could actually have produced.
		if entry.CompressedSize == 0 && entry.UncompressedSize != 0 {
			return nil, fmt.Errorf("%w: %s records %d bytes with no payload",
				common.ErrCorruptArchive, entry.Path, entry.UncompressedSize)
		}
		if entry.UncompressedSize > entry.CompressedSize*codec.MaxBlockExpansion {
			return nil, fmt.Errorf("%w: %s records implausible sizes (%d from %d compressed bytes)",
				common.ErrCorruptArchive, entry.Path, entry.UncompressedSize, entry.CompressedSize)
		}
		if prev := metadata.Insert(entry); prev != nil {
			return nil, fmt.Errorf("%w: %s appears twice in table of contents", common.ErrDuplicatePath, entry.Path)
		}
	}

	return metadata, nil
}

func (ba *BallArchiver) Extract(opts BallArchiverOptions) error {
	metadata, err := ba.ExtractMetadata(opts.ArchivePath)
	if err != nil {
		return err
	}

	s, err := storage.NewBallStorage(storage.BallStorageOpts{
		ArchivePath: opts.ArchivePath,
		Metadata:    metadata,
	})
	if err != nil {
		return err
	}
	defer s.Cleanup()

	if err := os.MkdirAll(opts.OutputPath, 0755); err != nil {
		return fmt.Errorf("unable to create output path %s: %w", opts.OutputPath, err)
	}
	outRoot, err := filepath.Abs(opts.OutputPath)
	if err != nil {
		return err
	}

	for _, entry := range metadata.List() {
		target := filepath.Join(outRoot, filepath.FromSlash(entry.Path))
		if !strings.HasPrefix(target, outRoot+string(os.PathSeparator)) {
			return fmt.Errorf("%w: entry path %s escapes the output directory", common.ErrCorruptArchive, entry.Path)
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("unable to create directory for %s: %w", entry.Path, err)
		}

		raw, err := s.ReadEntry(entry)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, raw, 0644); err != nil {
			return fmt.Errorf("unable to write %s: %w", entry.Path, err)
		}
	}

	return nil
}
