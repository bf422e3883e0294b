//go:build unix

package channel

import (
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/refvalue"
)

func init() {
	RegisterBackend("MemMapFd", func() Backend { return &mmapFdBackend{} })
}

// mmapFdBackend is a file-descriptor-backed mmap of fixed capacity (spec
// §4.2). The tail of the info-string is "<path>:<size>"; the mapping is
// sized once at Open and does not grow.
type mmapFdBackend struct {
	baseBackend
	f    *os.File
	data []byte
	pos  int
}

func (m *mmapFdBackend) Open(tail string, mode Mode, perm uint32) error {
	path, size, err := splitPathSize(tail)
	if err != nil {
		return err
	}
	flag, err := toOSFlag(mode)
	if err != nil {
		return err
	}
	if perm == 0 {
		perm = 0644
	}
	f, err := os.OpenFile(path, flag|os.O_CREATE, os.FileMode(perm))
	if err != nil {
		return errors.Wrap(errors.KindOf(err), "opening MemMapFd backend file", err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return errors.E(errors.BadMmpSize, "truncating MemMapFd backing file", err)
	}
	prot := unix.PROT_READ
	if mode.CanWrite() {
		prot |= unix.PROT_WRITE
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, prot, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return errors.E(errors.BadMemPtr, "mmap failed", err)
	}
	m.f = f
	m.data = data
	return nil
}

func splitPathSize(tail string) (path string, size int, err error) {
	idx := -1
	for i := len(tail) - 1; i >= 0; i-- {
		if tail[i] == ':' {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", 0, errors.E(errors.BadInfoString, "MemMapFd:// requires <path>:<size>")
	}
	path = tail[:idx]
	size, perr := parseUint(tail[idx+1:])
	if perr != nil {
		return "", 0, errors.E(errors.BadMmpSize, "invalid MemMapFd size")
	}
	return path, size, nil
}

func (m *mmapFdBackend) OpenFromString(rv *refvalue.List, mode Mode) error {
	path, ok := rv.Get("path")
	if !ok {
		return errors.E(errors.BadInfoString, "MemMapFd backend requires a 'path' key")
	}
	sizeStr, ok := rv.Get("size")
	if !ok {
		return errors.E(errors.BadInfoString, "MemMapFd backend requires a 'size' key")
	}
	return m.Open(path+":"+sizeStr, mode, 0)
}

func (m *mmapFdBackend) Read(p []byte) (int, error) {
	if m.pos >= len(m.data) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.pos:])
	m.pos += n
	return n, nil
}

func (m *mmapFdBackend) Write(p []byte) (int, error) {
	if m.pos >= len(m.data) {
		return 0, errors.E(errors.BadMmpSize, "write exceeds fixed mmap capacity")
	}
	n := copy(m.data[m.pos:], p)
	m.pos += n
	if n < len(p) {
		return n, errors.E(errors.BadMmpSize, "write exceeds fixed mmap capacity")
	}
	return n, nil
}

func (m *mmapFdBackend) CanSeek() bool { return true }

func (m *mmapFdBackend) Seek(offset int64, whence int) (int64, error) {
	var base int
	switch whence {
	case 0:
		base = 0
	case 1:
		base = m.pos
	case 2:
		base = len(m.data)
	default:
		return 0, errors.E(errors.BadWhence, "invalid whence")
	}
	newPos := base + int(offset)
	if newPos < 0 || newPos > len(m.data) {
		return 0, errors.E(errors.BadSeek, "seek out of mmap range")
	}
	m.pos = newPos
	return int64(newPos), nil
}

func (m *mmapFdBackend) Flush() error {
	if m.data == nil {
		return nil
	}
	return unix.Msync(m.data, unix.MS_SYNC)
}

func (m *mmapFdBackend) Close() (err error) {
	if m.data != nil {
		errors.CleanUp(func() error { return unix.Munmap(m.data) }, &err)
	}
	if m.f != nil {
		errors.CleanUp(m.f.Close, &err)
	}
	return err
}

func (m *mmapFdBackend) Type() SemanticType { return TypeMemPtr }

func (m *mmapFdBackend) Fd() (uintptr, bool) {
	if m.f == nil {
		return 0, false
	}
	return m.f.Fd(), true
}
