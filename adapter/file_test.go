package adapter

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileAdapterSend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "printer")
	f, err := os.Create(path)
	require.NoError(t, err)

	a := NewFileAdapter(f)
	require.NoError(t, a.Send([]byte{0x10, 0xff, 0xfe, 0x45}, time.Second))
	require.NoError(t, a.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x10, 0xff, 0xfe, 0x45}, data)
}

func TestFileAdapterRecvShortOnEOF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "printer")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3}, 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	a := NewFileAdapter(f)
	defer a.Close()

	buf := make([]byte, 16)
	n, err := a.Recv(buf, time.Second)
	require.NoError(t, err, "EOF before the buffer fills is a short count, not an error")
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{1, 2, 3}, buf[:n])
}

func TestFileAdapterRecvFillsBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "printer")
	require.NoError(t, os.WriteFile(path, []byte{1, 2, 3, 4, 5, 6}, 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	a := NewFileAdapter(f)
	defer a.Close()

	buf := make([]byte, 4)
	n, err := a.Recv(buf, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)
}

func TestFileAdapterRecvAcrossPipeWrites(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	a := NewFileAdapter(r)
	defer a.Close()

	go func() {
		w.Write([]byte{0xaa, 0xbb})
		w.Write([]byte{0xcc})
		w.Close()
	}()

	buf := make([]byte, 8)
	n, err := a.Recv(buf, time.Second)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc}, buf[:n])
}

func TestFileAdapterClaimRelease(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "printer"))
	require.NoError(t, err)
	a := NewFileAdapter(f)
	defer a.Close()

	assert.NoError(t, a.Claim())
	assert.NoError(t, a.Release())
}

func TestOpenFileMissing(t *testing.T) {
	_, err := OpenFile(filepath.Join(t.TempDir(), "does-not-exist"))
	assert.Error(t, err)
}
