package channel

import (
	"io"

	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/refvalue"
)

func init() {
	RegisterBackend("Calc", func() Backend { return &calcBackend{} })
}

// calcBackend is write-only: it records the number of bytes that would be
// written without storing them, used by the Serialize engine's Calc mode
// to precompute payload size (spec §4.2: "write-only, records bytes but
// stores none").
type calcBackend struct {
	baseBackend
	count int64
}

func (c *calcBackend) Open(string, Mode, uint32) error           { return nil }
func (c *calcBackend) OpenFromString(*refvalue.List, Mode) error { return nil }

func (c *calcBackend) Read([]byte) (int, error) {
	return 0, errors.E(errors.AccessViolation, "Calc backend does not support reads")
}

func (c *calcBackend) Write(p []byte) (int, error) {
	c.count += int64(len(p))
	return len(p), nil
}

func (c *calcBackend) Close() error { return nil }

func (c *calcBackend) Type() SemanticType { return TypeGenericHandle }

// Count returns the number of bytes written so far.
func (c *calcBackend) Count() int64 { return c.count }

// Reset zeroes the counter, for reuse across successive Calc passes.
func (c *calcBackend) Reset() { c.count = 0 }

var _ io.Writer = (*calcBackend)(nil)
