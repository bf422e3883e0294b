package channel

import (
	"net"

	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/refvalue"
)

func init() {
	RegisterBackend("ServerTcp", func() Backend { return &serverTCPBackend{} })
	RegisterBackend("ServerUdp", func() Backend { return &serverUDPBackend{} })
}

// serverTCPBackend listens on tail, accepts exactly one connection, and
// thereafter behaves like a plain Tcp socket backend (spec §4.2:
// "accept-once servers").
type serverTCPBackend struct {
	baseBackend
	ln   net.Listener
	conn net.Conn
}

func (s *serverTCPBackend) Open(tail string, mode Mode, perm uint32) error {
	ln, err := net.Listen("tcp", tail)
	if err != nil {
		return errors.E(errors.UnableToConnect, "listening on "+tail, err)
	}
	s.ln = ln
	conn, err := ln.Accept()
	if err != nil {
		return errors.E(errors.UnableToConnect, "accepting connection", err)
	}
	s.conn = conn
	return nil
}

func (s *serverTCPBackend) OpenFromString(rv *refvalue.List, mode Mode) error {
	addr, ok := rv.Get("addr")
	if !ok {
		return errors.E(errors.BadInfoString, "ServerTcp backend requires an 'addr' key")
	}
	return s.Open(addr, mode, 0)
}

func (s *serverTCPBackend) Read(p []byte) (int, error) {
	n, err := s.conn.Read(p)
	if err != nil && err.Error() != "EOF" {
		return n, errors.E(errors.SocketRead, "socket read failed", err)
	}
	return n, err
}

func (s *serverTCPBackend) Write(p []byte) (int, error) {
	n, err := s.conn.Write(p)
	if err != nil {
		return n, errors.E(errors.SocketWrite, "socket write failed", err)
	}
	return n, nil
}

func (s *serverTCPBackend) Close() error {
	var err error
	if s.conn != nil {
		err = s.conn.Close()
	}
	if s.ln != nil {
		if lnErr := s.ln.Close(); lnErr != nil && err == nil {
			err = lnErr
		}
	}
	return err
}

func (s *serverTCPBackend) Type() SemanticType { return TypeSocket }

// serverUDPBackend listens on tail and learns its single peer from the first
// datagram received -- the connectionless analogue of "accept-once" for
// Udp. Writes go to that peer; reads accept datagrams from any sender.
type serverUDPBackend struct {
	baseBackend
	pc     net.PacketConn
	peer   net.Addr
	peerOK bool
}

func (s *serverUDPBackend) Open(tail string, mode Mode, perm uint32) error {
	pc, err := net.ListenPacket("udp", tail)
	if err != nil {
		return errors.E(errors.UnableToConnect, "listening on "+tail, err)
	}
	s.pc = pc
	return nil
}

func (s *serverUDPBackend) OpenFromString(rv *refvalue.List, mode Mode) error {
	addr, ok := rv.Get("addr")
	if !ok {
		return errors.E(errors.BadInfoString, "ServerUdp backend requires an 'addr' key")
	}
	return s.Open(addr, mode, 0)
}

func (s *serverUDPBackend) Read(p []byte) (int, error) {
	n, addr, err := s.pc.ReadFrom(p)
	if err != nil {
		return n, errors.E(errors.SocketRead, "datagram read failed", err)
	}
	if !s.peerOK {
		s.peer = addr
		s.peerOK = true
	}
	return n, nil
}

func (s *serverUDPBackend) Write(p []byte) (int, error) {
	if !s.peerOK {
		return 0, errors.E(errors.SocketWrite, "ServerUdp backend has no peer yet; read a datagram first")
	}
	n, err := s.pc.WriteTo(p, s.peer)
	if err != nil {
		return n, errors.E(errors.SocketWrite, "datagram write failed", err)
	}
	return n, nil
}

func (s *serverUDPBackend) Close() error {
	if s.pc == nil {
		return nil
	}
	return s.pc.Close()
}

func (s *serverUDPBackend) Type() SemanticType { return TypeSocket }
