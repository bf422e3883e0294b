package channel

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrisio/hris/errors"
)

func openMem(t *testing.T, mode Mode) *Channel {
	t.Helper()
	c := New()
	require.NoError(t, c.Open("Mem://", mode, 0))
	return c
}

func TestWriteReadRoundTrip(t *testing.T) {
	c := openMem(t, RdWr)
	n, err := c.Write([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, 11, n)
	require.NoError(t, c.Rewind())

	got := make([]byte, 11)
	n, err = c.Read(got)
	require.NoError(t, err)
	require.Equal(t, 11, n)
	require.Equal(t, "hello world", string(got))
}

func TestUngetIsLIFO(t *testing.T) {
	c := openMem(t, RdWr)
	_, err := c.Write([]byte("abcdef"))
	require.NoError(t, err)
	require.NoError(t, c.Rewind())

	buf := make([]byte, 3)
	_, err = c.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "abc", string(buf))

	require.NoError(t, c.Unget([]byte("bc")))

	one := make([]byte, 1)
	_, err = c.Read(one)
	require.NoError(t, err)
	require.Equal(t, byte('b'), one[0])
	_, err = c.Read(one)
	require.NoError(t, err)
	require.Equal(t, byte('c'), one[0])

	rest := make([]byte, 3)
	n, err := c.Read(rest)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, "def", string(rest))
}

func TestUngetIsIdempotentAcrossReads(t *testing.T) {
	c := openMem(t, RdWr)
	_, err := c.Write([]byte("xy"))
	require.NoError(t, err)
	require.NoError(t, c.Rewind())

	buf := make([]byte, 2)
	_, err = c.Read(buf)
	require.NoError(t, err)
	require.NoError(t, c.Unget(buf))

	first := make([]byte, 2)
	n, err := c.Read(first)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, "xy", string(first))
}

func TestTooManyUngetFailsWithoutCorruption(t *testing.T) {
	c := openMem(t, RdWr)
	_, err := c.Write([]byte("a"))
	require.NoError(t, err)
	require.NoError(t, c.Rewind())

	buf := make([]byte, 1)
	_, err = c.Read(buf)
	require.NoError(t, err)

	err = c.Unget([]byte("aa"))
	require.Error(t, err)
	require.Equal(t, errors.TooManyUnget, errors.KindOf(err))

	// The failed Unget must not have corrupted the unget buffer: the single
	// byte we legitimately read can still be ungotten and reread.
	require.NoError(t, c.Unget(buf))
	again := make([]byte, 1)
	n, err := c.Read(again)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, byte('a'), again[0])
}

func TestPeekDoesNotConsume(t *testing.T) {
	c := openMem(t, RdWr)
	_, err := c.Write([]byte("peekme"))
	require.NoError(t, err)
	require.NoError(t, c.Rewind())

	peeked := make([]byte, 4)
	n, err := c.Peek(peeked)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, "peek", string(peeked))

	full := make([]byte, 6)
	n, err = c.Read(full)
	require.NoError(t, err)
	require.Equal(t, 6, n)
	require.Equal(t, "peekme", string(full))
}

func TestWriteBufferAutoGrows(t *testing.T) {
	c := openMem(t, RdWr)
	big := make([]byte, defaultWriteBufCapacity*3)
	for i := range big {
		big[i] = byte(i)
	}
	n, err := c.Write(big)
	require.NoError(t, err)
	require.Equal(t, len(big), n)
	require.NoError(t, c.Flush())

	require.NoError(t, c.Rewind())
	got := make([]byte, len(big))
	n, err = io.ReadFull(c, got)
	require.NoError(t, err)
	require.Equal(t, len(big), n)
	require.Equal(t, big, got)
}

func TestReadFailsWithoutOpen(t *testing.T) {
	c := New()
	_, err := c.Read(make([]byte, 1))
	require.Error(t, err)
	require.Equal(t, errors.IoCallBeforeOpen, errors.KindOf(err))
}

func TestModeValidateRejectsAmbiguousAccess(t *testing.T) {
	require.Error(t, Mode(0).Validate())
	require.Error(t, (RdOnly | WrOnly).Validate())
	require.Error(t, (RdOnly | Close | NotClose).Validate())
	require.NoError(t, RdWr.Validate())
}

func TestBadInfoStringKinds(t *testing.T) {
	c := New()
	err := c.Open("nonsense", RdOnly, 0)
	require.Error(t, err)
	require.Equal(t, errors.BadInfoString, errors.KindOf(err))

	c2 := New()
	err = c2.Open("File:/tmp/x", RdOnly, 0)
	require.Error(t, err)
	require.Equal(t, errors.MissingSlashes, errors.KindOf(err))
}

func TestUnregisteredSchemeFails(t *testing.T) {
	c := New()
	err := c.Open("NoSuchScheme://x", RdOnly, 0)
	require.Error(t, err)
	require.Equal(t, errors.BadInfoString, errors.KindOf(err))
}

func TestSeekFlushesPendingWrites(t *testing.T) {
	c := openMem(t, RdWr)
	_, err := c.Write([]byte("hello"))
	require.NoError(t, err)

	pos, err := c.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	require.Equal(t, int64(5), pos)

	require.NoError(t, c.Rewind())
	got := make([]byte, 5)
	_, err = io.ReadFull(c, got)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestCloseIsIdempotent(t *testing.T) {
	c := openMem(t, RdWr)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestNotCloseFlagSkipsBackendClose(t *testing.T) {
	c := New()
	require.NoError(t, c.Open("Mem://", RdWr|NotClose, 0))
	require.NoError(t, c.Close())
}
