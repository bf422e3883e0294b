package channel

import (
	"io"

	"github.com/hrisio/hris/refvalue"
)

func init() {
	RegisterBackend("Null", func() Backend { return &nullBackend{} })
}

// nullBackend is the /dev/null-style sink: writes succeed and discard their
// payload, reads always report EOF.
type nullBackend struct {
	baseBackend
}

func (n *nullBackend) Open(string, Mode, uint32) error                 { return nil }
func (n *nullBackend) OpenFromString(*refvalue.List, Mode) error       { return nil }
func (n *nullBackend) Read([]byte) (int, error)                        { return 0, io.EOF }
func (n *nullBackend) Write(p []byte) (int, error)                     { return len(p), nil }
func (n *nullBackend) Close() error                                    { return nil }
func (n *nullBackend) Type() SemanticType                              { return TypeGenericHandle }
