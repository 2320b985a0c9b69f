package vfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenReadWriteLength(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0600))

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	length, err := f.Length()
	require.NoError(t, err)
	require.EqualValues(t, len("hello world"), length)

	buf := make([]byte, 5)
	n, err := f.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf))

	_, err = f.WriteAt([]byte("HELLO"), 0)
	require.NoError(t, err)

	n, err = f.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, "HELLO", string(buf[:n]))
}

func TestReopenGivesIndependentFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("abcdef"), 0600))

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	g, err := f.Reopen()
	require.NoError(t, err)
	defer g.Close()

	gOS, ok := g.(*OSFile)
	require.True(t, ok)
	require.NotSame(t, f, gOS)
}

func TestOpenRejectsReservedPaths(t *testing.T) {
	_, err := Open("/dev/stdin")
	require.ErrorIs(t, err, ErrReservedHandle)

	_, err = Open("/dev/stdout")
	require.ErrorIs(t, err, ErrReservedHandle)
}
