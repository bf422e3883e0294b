package channel

import (
	"context"
	"net"
	"time"

	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/refvalue"
	"github.com/hrisio/hris/retry"
)

func init() {
	RegisterBackend("Tcp", func() Backend { return &netConnBackend{network: "tcp", kind: errors.SocketRead} })
	RegisterBackend("Udp", func() Backend { return &netConnBackend{network: "udp", kind: errors.SocketRead} })
}

// connectRetryPolicy bounds the number of dial attempts a Tcp/Udp client
// backend makes before giving up with UnableToConnect.
var connectRetryPolicy = retry.MaxRetries(retry.Backoff(10*time.Millisecond, 200*time.Millisecond, 2), 4)

// netConnBackend wraps a client net.Conn (Tcp or Udp), dialing with a
// bounded backoff retry policy so that a server that is still coming up
// doesn't fail the first connection attempt outright.
type netConnBackend struct {
	baseBackend
	network string
	kind    errors.Kind
	conn    net.Conn
}

func (b *netConnBackend) Open(tail string, mode Mode, perm uint32) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var lastErr error
	for retries := 0; ; retries++ {
		conn, err := net.Dial(b.network, tail)
		if err == nil {
			b.conn = conn
			return nil
		}
		lastErr = err
		if waitErr := retry.Wait(ctx, connectRetryPolicy, retries); waitErr != nil {
			return errors.E(errors.UnableToConnect, "dialing "+b.network+" "+tail, lastErr)
		}
	}
}

func (b *netConnBackend) OpenFromString(rv *refvalue.List, mode Mode) error {
	addr, ok := rv.Get("addr")
	if !ok {
		return errors.E(errors.BadInfoString, b.network+" backend requires an 'addr' key")
	}
	return b.Open(addr, mode, 0)
}

func (b *netConnBackend) Read(p []byte) (int, error) {
	n, err := b.conn.Read(p)
	if err != nil && err.Error() != "EOF" {
		if isTimeout(err) {
			return n, errors.E(errors.SocketTimeout, "socket read timed out", err)
		}
		return n, errors.E(errors.SocketRead, "socket read failed", err)
	}
	return n, err
}

func (b *netConnBackend) Write(p []byte) (int, error) {
	n, err := b.conn.Write(p)
	if err != nil {
		if isTimeout(err) {
			return n, errors.E(errors.SocketTimeout, "socket write timed out", err)
		}
		return n, errors.E(errors.SocketWrite, "socket write failed", err)
	}
	return n, nil
}

func (b *netConnBackend) Close() error {
	if b.conn == nil {
		return nil
	}
	return b.conn.Close()
}

func (b *netConnBackend) Type() SemanticType { return TypeSocket }

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	t, ok := err.(timeouter)
	return ok && t.Timeout()
}
