package channel

import (
	"os"
	"strconv"

	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/refvalue"
)

func init() {
	RegisterBackend("Fd", func() Backend { return &fdBackend{} })
}

// fdBackend wraps an already-open OS file descriptor, given numerically in
// the info-string tail (e.g. "Fd://3").
type fdBackend struct {
	baseBackend
	f *os.File
}

func (fb *fdBackend) Open(tail string, mode Mode, perm uint32) error {
	n, err := strconv.Atoi(tail)
	if err != nil {
		return errors.E(errors.BadInfoString, "Fd:// tail must be a numeric descriptor")
	}
	fb.f = os.NewFile(uintptr(n), "fd"+tail)
	if fb.f == nil {
		return errors.E(errors.BadFd, "invalid file descriptor "+tail)
	}
	return nil
}

func (fb *fdBackend) OpenFromString(rv *refvalue.List, mode Mode) error {
	tail, ok := rv.Get("fd")
	if !ok {
		return errors.E(errors.BadInfoString, "Fd backend requires an 'fd' key")
	}
	return fb.Open(tail, mode, 0)
}

func (fb *fdBackend) Read(p []byte) (int, error)  { return fb.f.Read(p) }
func (fb *fdBackend) Write(p []byte) (int, error) { return fb.f.Write(p) }
func (fb *fdBackend) CanSeek() bool                { return true }

func (fb *fdBackend) Seek(offset int64, whence int) (int64, error) {
	return fb.f.Seek(offset, whence)
}

func (fb *fdBackend) Close() error { return fb.f.Close() }

func (fb *fdBackend) Type() SemanticType { return TypeFd }

func (fb *fdBackend) Fd() (uintptr, bool) {
	if fb.f == nil {
		return 0, false
	}
	return fb.f.Fd(), true
}
