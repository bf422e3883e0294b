package channel

import (
	"crypto/rand"

	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/refvalue"
)

func init() {
	RegisterBackend("Rand", func() Backend { return &randBackend{} })
}

// randBackend is a read-only source of cryptographically random bytes,
// named in spec §6's scheme list but not elaborated in §4.2; it is never
// writable or seekable.
type randBackend struct {
	baseBackend
}

func (r *randBackend) Open(string, Mode, uint32) error           { return nil }
func (r *randBackend) OpenFromString(*refvalue.List, Mode) error { return nil }

func (r *randBackend) Read(p []byte) (int, error) { return rand.Read(p) }

func (r *randBackend) Write([]byte) (int, error) {
	return 0, errors.E(errors.AccessViolation, "Rand backend is read-only")
}

func (r *randBackend) Close() error { return nil }

func (r *randBackend) Type() SemanticType { return TypeGenericHandle }
