package channel

import "github.com/hrisio/hris/refvalue"

func init() {
	RegisterBackend("RTBOS", func() Backend { return &rtbosBackend{} })
}

// rtbosBackend is a registration hook for a scheme the original
// implementation declares but never defines (spec §9 Open Questions:
// "treat it as an external collaborator; spec only the registration
// hook"). Open, OpenFromString, Read and Write fail with NotSupported;
// Close is a no-op.
type rtbosBackend struct {
	baseBackend
}

func (r *rtbosBackend) Open(string, Mode, uint32) error {
	return errNotSupported("RTBOS backend is an external collaborator hook; no implementation is registered")
}

func (r *rtbosBackend) OpenFromString(*refvalue.List, Mode) error {
	return errNotSupported("RTBOS backend is an external collaborator hook; no implementation is registered")
}

func (r *rtbosBackend) Read([]byte) (int, error) {
	return 0, errNotSupported("RTBOS backend has no implementation")
}

func (r *rtbosBackend) Write([]byte) (int, error) {
	return 0, errNotSupported("RTBOS backend has no implementation")
}

func (r *rtbosBackend) Close() error { return nil }
