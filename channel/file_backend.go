package channel

import (
	"os"

	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/refvalue"
)

func init() {
	RegisterBackend("File", func() Backend { return &fileBackend{} })
}

// fileBackend wraps an *os.File, translating spec §4.1 Mode flags into the
// standard library's os.OpenFile flag bits.
type fileBackend struct {
	baseBackend
	f *os.File
}

func (fb *fileBackend) Open(tail string, mode Mode, perm uint32) error {
	flag, err := toOSFlag(mode)
	if err != nil {
		return err
	}
	if perm == 0 {
		perm = 0644
	}
	f, err := os.OpenFile(tail, flag, os.FileMode(perm))
	if err != nil {
		return errors.Wrap(errors.KindOf(err), "opening File backend", err)
	}
	fb.f = f
	return nil
}

func (fb *fileBackend) OpenFromString(rv *refvalue.List, mode Mode) error {
	path, ok := rv.Get("path")
	if !ok {
		return errors.E(errors.BadInfoString, "File backend requires a 'path' key")
	}
	return fb.Open(path, mode, 0)
}

func toOSFlag(mode Mode) (int, error) {
	var flag int
	switch mode & accessMask {
	case RdOnly:
		flag = os.O_RDONLY
	case WrOnly:
		flag = os.O_WRONLY
	case RdWr:
		flag = os.O_RDWR
	}
	if mode&Create != 0 {
		flag |= os.O_CREATE
	}
	if mode&Truncate != 0 {
		flag |= os.O_TRUNC
	}
	if mode&Append != 0 {
		flag |= os.O_APPEND
	}
	return flag, nil
}

func (fb *fileBackend) Read(p []byte) (int, error)  { return fb.f.Read(p) }
func (fb *fileBackend) Write(p []byte) (int, error) { return fb.f.Write(p) }
func (fb *fileBackend) Flush() error                { return fb.f.Sync() }
func (fb *fileBackend) CanSeek() bool                { return true }

func (fb *fileBackend) Seek(offset int64, whence int) (int64, error) {
	return fb.f.Seek(offset, whence)
}

func (fb *fileBackend) Close() error { return fb.f.Close() }

func (fb *fileBackend) Type() SemanticType { return TypeFd }

func (fb *fileBackend) Fd() (uintptr, bool) {
	if fb.f == nil {
		return 0, false
	}
	return fb.f.Fd(), true
}
