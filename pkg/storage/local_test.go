package storage_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mono-ball/ball/pkg/ball"
	"github.com/mono-ball/ball/pkg/storage"
)

func openStorage(t *testing.T, files map[string][]byte) *storage.LocalBallStorage {
	t.Helper()

	srcDir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(srcDir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, content, 0644))
	}

	archivePath := filepath.Join(t.TempDir(), "mod.ball")
	require.NoError(t, ball.CreateArchive(context.Background(), ball.CreateOptions{
		InputPath:  srcDir,
		OutputPath: archivePath,
	}))

	metadata, err := ball.NewBallArchiver().ExtractMetadata(archivePath)
	require.NoError(t, err)

	s, err := storage.NewLocalBallStorage(metadata, storage.LocalBallStorageOpts{ArchivePath: archivePath})
	require.NoError(t, err)
	t.Cleanup(func() { s.Cleanup() })
	return s
}

func TestReadFileAtOffset(t *testing.T) {
	s := openStorage(t, map[string][]byte{"notes.txt": []byte("0123456789")})
	entry := s.Metadata().Get("notes.txt")
	require.NotNil(t, entry)

	t.Run("full read", func(t *testing.T) {
		dest := make([]byte, 10)
		n, err := s.ReadFile(entry, dest, 0)
		require.NoError(t, err)
		assert.Equal(t, 10, n)
		assert.Equal(t, []byte("0123456789"), dest)
	})

	t.Run("tail read", func(t *testing.T) {
		dest := make([]byte, 16)
		n, err := s.ReadFile(entry, dest, 7)
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, []byte("789"), dest[:n])
	})

	t.Run("offset past end", func(t *testing.T) {
		dest := make([]byte, 4)
		_, err := s.ReadFile(entry, dest, 10)
		assert.ErrorIs(t, err, io.EOF)
	})

	t.Run("negative offset", func(t *testing.T) {
		dest := make([]byte, 4)
		_, err := s.ReadFile(entry, dest, -1)
		assert.Error(t, err)
	})
}

func TestReadFileEmptyEntry(t *testing.T) {
	s := openStorage(t, map[string][]byte{"empty.dat": {}})
	entry := s.Metadata().Get("empty.dat")
	require.NotNil(t, entry)

	dest := make([]byte, 4)
	_, err := s.ReadFile(entry, dest, 0)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadEntryReturnsCopy(t *testing.T) {
	s := openStorage(t, map[string][]byte{"a.bin": []byte("immutable")})
	entry := s.Metadata().Get("a.bin")
	require.NotNil(t, entry)

	first, err := s.ReadEntry(entry)
	require.NoError(t, err)
	first[0] = 'X'

	second, err := s.ReadEntry(entry)
	require.NoError(t, err)
	assert.Equal(t, []byte("immutable"), second)
}

func TestCachedLocally(t *testing.T) {
	s := openStorage(t, map[string][]byte{"a.txt": []byte("x")})
	assert.True(t, s.CachedLocally())
}
