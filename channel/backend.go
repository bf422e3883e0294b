package channel

import (
	"io"
	"sync"

	"github.com/hrisio/hris/refvalue"
)

// Backend is the interface contract every Channel backend implements (spec
// §4.2). A Backend is constructed fresh for each Open call via its
// BackendFactory; New/Init from the source's contract collapse into Go's
// usual "construct via factory, configure via Open" idiom.
type Backend interface {
	// Open parses the scheme-specific tail of an info-string (the part
	// after "<scheme>://") and attaches backend resources.
	Open(tail string, mode Mode, perm uint32) error

	// OpenFromString opens the backend from a parsed RefValue set (the
	// channel key=value form), for backends that support it.
	OpenFromString(rv *refvalue.List, mode Mode) error

	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Flush() error

	// CanSeek reports whether Seek is meaningful for this backend.
	CanSeek() bool
	Seek(offset int64, whence int) (int64, error)

	Close() error

	GetProperty(name string) (string, bool)
	SetProperty(name, value string)

	// Type returns the semantic type tag set when the backend is opened
	// (spec §3: NotSet, Fd, Socket, MemPtr, AnsiFile, GenericHandle).
	Type() SemanticType

	// Fd returns the underlying OS descriptor for readiness polling, and
	// whether one exists (pure in-memory backends do not have one).
	Fd() (uintptr, bool)
}

// SemanticType is the Channel's semantic handle-type tag (spec §3).
type SemanticType int

const (
	TypeNotSet SemanticType = iota
	TypeFd
	TypeSocket
	TypeMemPtr
	TypeAnsiFile
	TypeGenericHandle
)

// BackendFactory constructs a new, unopened Backend instance.
type BackendFactory func() Backend

var (
	registryMu sync.Mutex
	registry   = map[string]BackendFactory{}
)

// RegisterBackend statically registers factory under scheme (spec §1:
// "all plugins are statically registered in the target"; the same
// requirement applies to Channel backends). It is called from each
// backend file's init(), mirroring the teacher's
// file.RegisterImplementation / recordio.RegisterTransformer pattern.
// Registering the same scheme twice panics, since that can only be a
// programming error in this statically-linked registry.
func RegisterBackend(scheme string, factory BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[scheme]; ok {
		panic("channel: backend already registered for scheme " + scheme)
	}
	registry[scheme] = factory
}

// findBackend looks up the factory registered for scheme.
func findBackend(scheme string) (BackendFactory, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	f, ok := registry[scheme]
	return f, ok
}

// baseBackend gives zero-value implementations of the property bag and
// the optional capabilities, so that concrete backends only need to embed
// it and override what they actually support.
type baseBackend struct {
	props map[string]string
}

func (b *baseBackend) GetProperty(name string) (string, bool) {
	if b.props == nil {
		return "", false
	}
	v, ok := b.props[name]
	return v, ok
}

func (b *baseBackend) SetProperty(name, value string) {
	if b.props == nil {
		b.props = map[string]string{}
	}
	b.props[name] = value
}

func (b *baseBackend) CanSeek() bool { return false }

func (b *baseBackend) Seek(int64, int) (int64, error) {
	return 0, errNotSupported("seek not supported on this backend")
}

func (b *baseBackend) Flush() error { return nil }

func (b *baseBackend) Fd() (uintptr, bool) { return 0, false }

func (b *baseBackend) Type() SemanticType { return TypeNotSet }

func (b *baseBackend) OpenFromString(rv *refvalue.List, mode Mode) error {
	return errNotSupported("openFromString not supported on this backend")
}

var _ io.ReadWriter = (Backend)(nil)
