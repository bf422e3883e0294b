package channel

import (
	"io"

	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/refvalue"
)

func init() {
	RegisterBackend("Mem", func() Backend { return &memBackend{} })
}

// memBackend is an in-memory buffer backend. It may be foreign-owned (the
// caller supplied the backing array and auto-growth is disabled) or
// internally owned (growable), matching spec §4.2's "pointer + size, may
// be foreign-owned" contract and DESIGN NOTES §9's Owned/Borrowed split.
type memBackend struct {
	baseBackend
	buf      []byte
	pos      int
	external bool // true when the backing array is foreign-owned
}

// NewMemBackendBorrowed constructs a Mem backend over a caller-owned byte
// slice; writes past cap(buf) fail rather than growing it.
func NewMemBackendBorrowed(buf []byte) Backend {
	return &memBackend{buf: buf, external: true}
}

func (m *memBackend) Open(tail string, mode Mode, perm uint32) error {
	// The bare "Mem://" form opens a fresh, internally owned, growable
	// buffer; any non-empty tail is treated as an initial-capacity hint.
	if tail != "" {
		n, err := parseUint(tail)
		if err != nil {
			return errors.E(errors.BadInfoString, "Mem:// tail must be a capacity hint")
		}
		m.buf = make([]byte, 0, n)
	}
	return nil
}

func (m *memBackend) OpenFromString(rv *refvalue.List, mode Mode) error {
	return nil
}

func (m *memBackend) Read(p []byte) (int, error) {
	if m.pos >= len(m.buf) {
		return 0, io.EOF
	}
	n := copy(p, m.buf[m.pos:])
	m.pos += n
	return n, nil
}

func (m *memBackend) Write(p []byte) (int, error) {
	need := m.pos + len(p)
	if need > cap(m.buf) {
		if m.external {
			return 0, errors.E(errors.BadBuffer, "write exceeds foreign-owned Mem buffer")
		}
		grown := make([]byte, len(m.buf), need*2+defaultWriteBufCapacity)
		copy(grown, m.buf)
		m.buf = grown
	}
	if need > len(m.buf) {
		m.buf = m.buf[:need]
	}
	n := copy(m.buf[m.pos:need], p)
	m.pos += n
	return n, nil
}

func (m *memBackend) CanSeek() bool { return true }

func (m *memBackend) Seek(offset int64, whence int) (int64, error) {
	var base int
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = m.pos
	case io.SeekEnd:
		base = len(m.buf)
	default:
		return 0, errors.E(errors.BadWhence, "invalid whence")
	}
	newPos := base + int(offset)
	if newPos < 0 {
		return 0, errors.E(errors.BadSeek, "negative seek result")
	}
	m.pos = newPos
	return int64(newPos), nil
}

func (m *memBackend) Close() error { return nil }

func (m *memBackend) Type() SemanticType { return TypeMemPtr }

// Bytes returns the valid contents of the backing buffer, for tests and
// for the auto-calc header patch that rewrites a memory-backed header
// in place.
func (m *memBackend) Bytes() []byte { return m.buf }

func parseUint(s string) (int, error) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errors.New("not a number")
		}
		n = n*10 + int(r-'0')
	}
	return n, nil
}
