//go:build unix

package channel

import (
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/log"
	"github.com/hrisio/hris/refvalue"
)

func init() {
	RegisterBackend("Shm", func() Backend { return &shmBackend{} })
}

// shmDir is where named shared-memory segments are created. Linux exposes
// POSIX shm objects as files under /dev/shm; this backend mmaps a file
// there rather than calling shm_open directly, since the effect -- a
// named, size-fixed, process-shared mapping -- is identical and avoids a
// cgo dependency.
const shmDir = "/dev/shm"

// shmBackend is a named shared-memory region of fixed size, R/W via
// offsets (spec §4.2). The info-string tail is "<name>:<size>".
type shmBackend struct {
	baseBackend
	name string
	f    *os.File
	data []byte
	pos  int
}

func (s *shmBackend) Open(tail string, mode Mode, perm uint32) error {
	name, size, err := splitPathSize(tail)
	if err != nil {
		return err
	}
	if filepath.Base(name) != name {
		return errors.E(errors.BadShmName, "Shm name must not contain path separators")
	}
	s.name = name
	flag, err := toOSFlag(mode)
	if err != nil {
		return err
	}
	if perm == 0 {
		perm = 0644
	}
	path := filepath.Join(shmDir, name)
	f, err := os.OpenFile(path, flag|os.O_CREATE, os.FileMode(perm))
	if err != nil {
		return errors.E(errors.BadShmName, "opening shared-memory segment "+name, err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return errors.E(errors.BadMmpSize, "sizing shared-memory segment", err)
	}
	prot := unix.PROT_READ
	if mode.CanWrite() {
		prot |= unix.PROT_WRITE
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, prot, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return errors.E(errors.BadMemPtr, "mmap of shared-memory segment failed", err)
	}
	s.f = f
	s.data = data
	return nil
}

func (s *shmBackend) OpenFromString(rv *refvalue.List, mode Mode) error {
	name, ok := rv.Get("name")
	if !ok {
		return errors.E(errors.BadShmName, "Shm backend requires a 'name' key")
	}
	size, ok := rv.Get("size")
	if !ok {
		return errors.E(errors.BadInfoString, "Shm backend requires a 'size' key")
	}
	return s.Open(name+":"+size, mode, 0)
}

func (s *shmBackend) Read(p []byte) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	n := copy(p, s.data[s.pos:])
	s.pos += n
	return n, nil
}

func (s *shmBackend) Write(p []byte) (int, error) {
	if s.pos+len(p) > len(s.data) {
		return 0, errors.E(errors.BadMmpSize, "write exceeds fixed Shm segment capacity")
	}
	n := copy(s.data[s.pos:], p)
	s.pos += n
	return n, nil
}

func (s *shmBackend) CanSeek() bool { return true }

func (s *shmBackend) Seek(offset int64, whence int) (int64, error) {
	var base int
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = s.pos
	case io.SeekEnd:
		base = len(s.data)
	default:
		return 0, errors.E(errors.BadWhence, "invalid whence")
	}
	newPos := base + int(offset)
	if newPos < 0 || newPos > len(s.data) {
		return 0, errors.E(errors.BadSeek, "seek out of Shm segment range")
	}
	s.pos = newPos
	return int64(newPos), nil
}

func (s *shmBackend) Close() (err error) {
	if s.data != nil {
		errors.CleanUp(func() error { return unix.Munmap(s.data) }, &err)
	}
	if s.f != nil {
		errors.CleanUp(s.f.Close, &err)
	}
	return err
}

// Unlink removes the named segment from shmDir. The destructor does not
// call this implicitly (a Shm segment's lifetime is normally independent
// of any one process attaching to it); callers that want POSIX
// shm_unlink-like teardown call it explicitly. Failures are logged rather
// than returned, matching the best-effort cleanup spec §4.5 describes for
// IOChannel's verbose/debug-only diagnostics.
func (s *shmBackend) Unlink() {
	if s.name == "" {
		return
	}
	if err := os.Remove(filepath.Join(shmDir, s.name)); err != nil {
		log.Printf("channel: failed to unlink Shm segment %s: %v", s.name, err)
	}
}

func (s *shmBackend) Type() SemanticType { return TypeMemPtr }

func (s *shmBackend) Fd() (uintptr, bool) {
	if s.f == nil {
		return 0, false
	}
	return s.f.Fd(), true
}
