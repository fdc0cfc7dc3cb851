package common

import "errors"

var (
	ErrHeaderMismatch          = errors.New("unexpected archive header")
	ErrUnsupportedVersion      = errors.New("unsupported archive format version")
	ErrCorruptArchive          = errors.New("corrupt archive")
	ErrDuplicatePath           = errors.New("duplicate entry path")
	ErrEntryNotFound           = errors.New("entry not found")
	ErrPathTooLong             = errors.New("entry path exceeds maximum length")
	ErrSizeMismatch            = errors.New("decompressed size mismatch")
	ErrInvalidCompressionLevel = errors.New("compression level must be between 1 and 9")
	ErrSourceNotFound          = errors.New("source directory does not exist")
	ErrArchiveLocked           = errors.New("archive is being written by another process")
)
