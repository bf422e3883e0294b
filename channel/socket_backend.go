package channel

import (
	"net"
	"os"
	"strconv"

	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/refvalue"
)

func init() {
	RegisterBackend("Socket", func() Backend { return &socketBackend{} })
}

// socketBackend wraps an already-connected socket, given either as a
// numeric file descriptor (Socket://<fd>) or directly via
// NewSocketBackend when the caller already has a net.Conn in hand.
type socketBackend struct {
	baseBackend
	conn net.Conn
}

// NewSocketBackend wraps an already-connected net.Conn as a Backend,
// without going through Open.
func NewSocketBackend(conn net.Conn) Backend {
	return &socketBackend{conn: conn}
}

func (s *socketBackend) Open(tail string, mode Mode, perm uint32) error {
	n, err := strconv.Atoi(tail)
	if err != nil {
		return errors.E(errors.BadInfoString, "Socket:// tail must be a numeric descriptor")
	}
	f := os.NewFile(uintptr(n), "socket"+tail)
	conn, err := net.FileConn(f)
	if err != nil {
		return errors.E(errors.BadFd, "descriptor is not a socket", err)
	}
	s.conn = conn
	return nil
}

func (s *socketBackend) OpenFromString(rv *refvalue.List, mode Mode) error {
	fd, ok := rv.Get("fd")
	if !ok {
		return errors.E(errors.BadInfoString, "Socket backend requires an 'fd' key")
	}
	return s.Open(fd, mode, 0)
}

func (s *socketBackend) Read(p []byte) (int, error) {
	n, err := s.conn.Read(p)
	if err != nil && err.Error() != "EOF" {
		return n, errors.E(errors.SocketRead, "socket read failed", err)
	}
	return n, err
}

func (s *socketBackend) Write(p []byte) (int, error) {
	n, err := s.conn.Write(p)
	if err != nil {
		return n, errors.E(errors.SocketWrite, "socket write failed", err)
	}
	return n, nil
}

func (s *socketBackend) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *socketBackend) Type() SemanticType { return TypeSocket }
