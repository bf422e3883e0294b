package channel

import (
	"io"
	"os"

	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/iofmt"
	"github.com/hrisio/hris/refvalue"
)

func init() {
	RegisterBackend("StdIn", func() Backend { return &stdioBackend{f: os.Stdin, kind: errors.StdinAccess} })
	RegisterBackend("StdOut", func() Backend { return newStdioWriteBackend(os.Stdout, errors.StdoutAccess) })
	RegisterBackend("StdErr", func() Backend { return newStdioWriteBackend(os.Stderr, errors.StdoutAccess) })
}

func newStdioWriteBackend(f *os.File, kind errors.Kind) *stdioBackend {
	return &stdioBackend{f: f, kind: kind, lw: iofmt.LineWriter(f)}
}

// stdioBackend wraps one of the three standard streams. It is never
// seekable and is never closed by the Channel, matching real terminal and
// pipe semantics. Writes to StdOut/StdErr go through a line-buffering
// iofmt.LineWriter, since every text Format Plugin emits whole,
// newline-terminated statements and this keeps those statements from
// interleaving with unrelated output on the same stream.
type stdioBackend struct {
	baseBackend
	f    *os.File
	kind errors.Kind
	lw   io.WriteCloser
}

func (s *stdioBackend) Open(string, Mode, uint32) error           { return nil }
func (s *stdioBackend) OpenFromString(*refvalue.List, Mode) error { return nil }

func (s *stdioBackend) Read(p []byte) (int, error) {
	n, err := s.f.Read(p)
	if err != nil && err.Error() != "EOF" {
		return n, errors.E(s.kind, "stdio read failed", err)
	}
	return n, err
}

func (s *stdioBackend) Write(p []byte) (int, error) {
	var (
		n   int
		err error
	)
	if s.lw != nil {
		n, err = s.lw.Write(p)
	} else {
		n, err = s.f.Write(p)
	}
	if err != nil {
		return n, errors.E(s.kind, "stdio write failed", err)
	}
	return n, nil
}

func (s *stdioBackend) Close() error {
	if s.lw == nil {
		return nil
	}
	if err := s.lw.Close(); err != nil {
		return errors.E(s.kind, "stdio flush failed", err)
	}
	return nil
}

func (s *stdioBackend) Type() SemanticType { return TypeFd }

func (s *stdioBackend) Fd() (uintptr, bool) { return s.f.Fd(), true }
