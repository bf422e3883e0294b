package channel

import (
	"bufio"
	"os"

	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/refvalue"
)

func init() {
	RegisterBackend("AnsiFILE", func() Backend { return &ansiFileBackend{} })
}

// ansiFileBackend wraps a buffered stdio-style handle over an *os.File,
// the way the C source's AnsiFile backend wraps a FILE*. Because it is
// internally buffered, seeking through the Channel is not supported; use
// the File backend when seeking is required.
type ansiFileBackend struct {
	baseBackend
	f *os.File
	r *bufio.Reader
	w *bufio.Writer
}

func (a *ansiFileBackend) Open(tail string, mode Mode, perm uint32) error {
	flag, err := toOSFlag(mode)
	if err != nil {
		return err
	}
	if perm == 0 {
		perm = 0644
	}
	f, err := os.OpenFile(tail, flag, os.FileMode(perm))
	if err != nil {
		return errors.Wrap(errors.KindOf(err), "opening AnsiFILE backend", err)
	}
	a.f = f
	if mode.CanRead() {
		a.r = bufio.NewReader(f)
	}
	if mode.CanWrite() {
		a.w = bufio.NewWriter(f)
	}
	return nil
}

func (a *ansiFileBackend) OpenFromString(rv *refvalue.List, mode Mode) error {
	path, ok := rv.Get("path")
	if !ok {
		return errors.E(errors.BadInfoString, "AnsiFILE backend requires a 'path' key")
	}
	return a.Open(path, mode, 0)
}

func (a *ansiFileBackend) Read(p []byte) (int, error) {
	if a.r == nil {
		return 0, errors.E(errors.AccessViolation, "AnsiFILE backend not opened for reading")
	}
	return a.r.Read(p)
}

func (a *ansiFileBackend) Write(p []byte) (int, error) {
	if a.w == nil {
		return 0, errors.E(errors.AccessViolation, "AnsiFILE backend not opened for writing")
	}
	return a.w.Write(p)
}

func (a *ansiFileBackend) Flush() error {
	if a.w == nil {
		return nil
	}
	return a.w.Flush()
}

func (a *ansiFileBackend) Close() error {
	if a.w != nil {
		if err := a.w.Flush(); err != nil {
			return err
		}
	}
	return a.f.Close()
}

func (a *ansiFileBackend) Type() SemanticType { return TypeAnsiFile }

func (a *ansiFileBackend) Fd() (uintptr, bool) {
	if a.f == nil {
		return 0, false
	}
	return a.f.Fd(), true
}
