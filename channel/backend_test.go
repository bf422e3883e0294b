package channel

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNullBackendDiscardsWritesAndReportsEOF(t *testing.T) {
	c := New()
	require.NoError(t, c.Open("Null://", RdWr, 0))
	n, err := c.Write([]byte("discarded"))
	require.NoError(t, err)
	require.Equal(t, 9, n)
	require.NoError(t, c.Flush())

	got := make([]byte, 1)
	_, err = c.Read(got)
	require.Equal(t, io.EOF, err)
}

func TestCalcBackendCountsWithoutStoring(t *testing.T) {
	c := New()
	require.NoError(t, c.Open("Calc://", WrOnly, 0))
	_, err := c.Write([]byte("12345"))
	require.NoError(t, err)
	require.NoError(t, c.Flush())

	backend, err := c.backend()
	require.NoError(t, err)
	calc, ok := backend.(*calcBackend)
	require.True(t, ok)
	require.Equal(t, int64(5), calc.Count())
}

func TestCalcBackendRejectsReads(t *testing.T) {
	c := New()
	require.NoError(t, c.Open("Calc://", RdOnly, 0))
	_, err := c.Read(make([]byte, 1))
	require.Error(t, err)
}

func TestFileBackendRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")

	w := New()
	require.NoError(t, w.Open("File://"+path, WrOnly|Create|Truncate, 0))
	_, err := w.Write([]byte("file contents"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r := New()
	require.NoError(t, r.Open("File://"+path, RdOnly, 0))
	got := make([]byte, len("file contents"))
	_, err = io.ReadFull(r, got)
	require.NoError(t, err)
	require.Equal(t, "file contents", string(got))
	require.NoError(t, r.Close())
}

func TestAnsiFileBackendBuffersThroughFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ansi.txt")

	w := New()
	require.NoError(t, w.Open("AnsiFILE://"+path, WrOnly|Create|Truncate, 0))
	_, err := w.Write([]byte("buffered"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r := New()
	require.NoError(t, r.Open("AnsiFILE://"+path, RdOnly, 0))
	got := make([]byte, len("buffered"))
	_, err = io.ReadFull(r, got)
	require.NoError(t, err)
	require.Equal(t, "buffered", string(got))
	require.NoError(t, r.Close())
}

func TestPipeCmdBackendReadsSubprocessOutput(t *testing.T) {
	c := New()
	require.NoError(t, c.Open("PipeCmd://echo piped-output", RdOnly, 0))
	got := make([]byte, 0, 64)
	buf := make([]byte, 64)
	for {
		n, err := c.Read(buf)
		got = append(got, buf[:n]...)
		if err != nil {
			break
		}
	}
	require.Contains(t, string(got), "piped-output")
	require.NoError(t, c.Close())
}

func TestPipeCmdBackendRejectsBidirectionalMode(t *testing.T) {
	c := New()
	err := c.Open("PipeCmd://cat", RdWr, 0)
	require.Error(t, err)
}

func TestFdBackendWrapsExistingDescriptor(t *testing.T) {
	rf, wf, err := os.Pipe()
	require.NoError(t, err)
	defer rf.Close()

	go func() {
		wf.Write([]byte("piped"))
		wf.Close()
	}()

	c := New()
	require.NoError(t, c.Open("Fd://"+strconv.Itoa(int(rf.Fd())), RdOnly|NotClose, 0))
	got := make([]byte, len("piped"))
	_, err = io.ReadFull(c, got)
	require.NoError(t, err)
	require.Equal(t, "piped", string(got))
	require.NoError(t, c.Close())
}
