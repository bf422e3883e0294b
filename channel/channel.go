// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package channel implements the polymorphic byte-stream abstraction: a
// single Channel type backed by a pluggable Backend (file, memory, socket,
// pipe, ...), offering uniform read/write/seek/peek, a growable write
// buffer, an unget push-back buffer, and a property bag. Backends are
// looked up by scheme from a static registry populated by each backend
// file's init(), the way grailbio/base/file dispatches by scheme through
// RegisterImplementation/FindImplementation.
package channel

import (
	"io"
	"strings"

	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/log"
	"github.com/hrisio/hris/refvalue"
)

// defaultUngetCapacity bounds the unget push-back buffer. It is large
// enough for serialize.PeekHeader to push back a whole header line.
const defaultUngetCapacity = 1024

// defaultWriteBufCapacity is the initial size of the internal write buffer.
const defaultWriteBufCapacity = 4096

// Channel is a polymorphic byte stream. The zero value is an uninitialised
// Channel ready for Open.
type Channel struct {
	st state

	// writeBuf is the growable write buffer; writeCursor is the number of
	// valid bytes currently queued in it.
	writeBuf    []byte
	writeCursor int
	bufferingOK bool

	// ungetBuf is a LIFO push-back stack: ungetBuf[:ungetCursor] holds the
	// pushed bytes with the next byte to read at the tail. Unget stores each
	// chunk reversed, so popping from the tail returns a chunk in its
	// original order, and a later chunk before an earlier one.
	ungetBuf    []byte
	ungetCursor int

	bytesWrittenSinceRead  int64
	bytesReadSinceWrite    int64
	bytesReadSinceUnget    int64
	position               int64
	eof                    bool
	errKind                errors.Kind
	lastErr                error
}

// New returns an uninitialised Channel.
func New() *Channel {
	return &Channel{
		ungetBuf:    make([]byte, defaultUngetCapacity),
		bufferingOK: true,
	}
}

// Open parses info of the form "<scheme>://<rest>", locates the registered
// backend for scheme, and opens it with the given mode and permission bits.
func (c *Channel) Open(info string, mode Mode, perm uint32) error {
	if err := mode.Validate(); err != nil {
		return c.fail(err)
	}
	scheme, tail, err := splitInfoString(info)
	if err != nil {
		return c.fail(err)
	}
	factory, ok := findBackend(scheme)
	if !ok {
		return c.fail(errors.E(errors.BadInfoString, "no backend registered for scheme "+scheme))
	}
	b := factory()
	if err := b.Open(tail, mode, perm); err != nil {
		return c.fail(err)
	}
	c.attach(b, mode)
	return nil
}

// OpenFromString opens a Channel from a RefValue set of the form
// { stream: <scheme>, mode: <mode-string>, ...backend-specific }.
func (c *Channel) OpenFromString(rv *refvalue.List, mode Mode) error {
	if err := mode.Validate(); err != nil {
		return c.fail(err)
	}
	scheme, ok := rv.Get("stream")
	if !ok {
		return c.fail(errors.E(errors.BadInfoString, "missing 'stream' key"))
	}
	factory, ok := findBackend(scheme)
	if !ok {
		return c.fail(errors.E(errors.BadInfoString, "no backend registered for scheme "+scheme))
	}
	b := factory()
	if err := b.OpenFromString(rv, mode); err != nil {
		return c.fail(err)
	}
	c.attach(b, mode)
	return nil
}

func (c *Channel) attach(b Backend, mode Mode) {
	c.st = openState{backend: b, mode: mode}
	c.writeBuf = c.writeBuf[:0]
	c.writeCursor = 0
	c.ungetCursor = 0
	c.bytesWrittenSinceRead = 0
	c.bytesReadSinceWrite = 0
	c.bytesReadSinceUnget = 0
	c.position = 0
	c.eof = false
	c.errKind = errors.None
	c.lastErr = nil
}

// splitInfoString parses "<scheme>://<tail>", requiring the literal "://"
// separator (spec §4.1: "fails with BadInfoString ... or MissingSlashes").
func splitInfoString(info string) (scheme, tail string, err error) {
	idx := strings.Index(info, "://")
	if idx < 0 {
		if strings.Contains(info, ":/") {
			return "", "", errors.E(errors.MissingSlashes, "info string is missing '//' after scheme")
		}
		return "", "", errors.E(errors.BadInfoString, "info string must be of the form scheme://rest")
	}
	return info[:idx], info[idx+3:], nil
}

// openBackend returns the attached Backend, failing with IoCallBeforeOpen
// if the Channel hasn't been successfully opened.
func (c *Channel) openBackend() (Backend, *openState, error) {
	switch st := c.st.(type) {
	case openState:
		return st.backend, &st, nil
	case closedState:
		return nil, nil, errBeforeOpen()
	default:
		return nil, nil, errBeforeOpen()
	}
}

func (c *Channel) fail(err error) error {
	c.errKind = errors.KindOf(err)
	c.lastErr = err
	return err
}

// ErrorKind returns the sticky error kind set by the last failing
// primitive, or errors.None if the Channel is healthy.
func (c *Channel) ErrorKind() errors.Kind { return c.errKind }

// LastError returns the last error set on the Channel, or nil.
func (c *Channel) LastError() error { return c.lastErr }

// ClearError clears the sticky error state.
func (c *Channel) ClearError() {
	c.errKind = errors.None
	c.lastErr = nil
}

// IsEOF reports whether the Channel has hit a sticky end-of-file condition.
func (c *Channel) IsEOF() bool { return c.eof }

// Position returns the Channel's current absolute stream position.
func (c *Channel) Position() int64 { return c.position }

// Read implements the algorithm in spec §4.1: flush any pending write
// buffer, then drain the unget buffer, then dispatch to the backend.
func (c *Channel) Read(p []byte) (int, error) {
	backend, st, err := c.openBackend()
	if err != nil {
		return 0, c.fail(err)
	}
	if !st.mode.CanRead() {
		return 0, c.fail(errors.E(errors.AccessViolation, "channel is not open for reading"))
	}
	if c.writeCursor > 0 {
		if err := c.Flush(); err != nil {
			return 0, err
		}
	}

	total := 0
	if c.ungetCursor > 0 && len(p) > 0 {
		n := c.ungetCursor
		if n > len(p) {
			n = len(p)
		}
		// Pop LIFO: the next byte to read is always at the tail of
		// ungetBuf[:ungetCursor].
		for i := 0; i < n; i++ {
			p[i] = c.ungetBuf[c.ungetCursor-1-i]
		}
		c.ungetCursor -= n
		c.bytesReadSinceUnget += int64(n)
		total += n
	}

	if total < len(p) {
		n, err := c.readFromBackend(backend, p[total:])
		total += n
		if err != nil && err != io.EOF {
			return total, c.fail(err)
		}
		if n == 0 && total == 0 {
			c.eof = true
			return 0, io.EOF
		}
	}
	if total > 0 {
		c.bytesWrittenSinceRead = 0
		c.bytesReadSinceWrite += int64(total)
	}
	return total, nil
}

func (c *Channel) readFromBackend(b Backend, p []byte) (int, error) {
	n, err := b.Read(p)
	c.position += int64(n)
	return n, err
}

// Write implements the algorithm in spec §4.1.
func (c *Channel) Write(p []byte) (int, error) {
	backend, st, err := c.openBackend()
	if err != nil {
		return 0, c.fail(err)
	}
	if !st.mode.CanWrite() {
		return 0, c.fail(errors.E(errors.AccessViolation, "channel is not open for writing"))
	}

	if c.writeCursor == 0 && !c.bufferingOK {
		n, err := backend.Write(p)
		c.position += int64(n)
		if err != nil {
			return n, c.fail(err)
		}
		c.bytesWrittenSinceRead += int64(n)
		c.bytesReadSinceWrite = 0
		return n, nil
	}

	if c.ungetCursor > 0 {
		if st.backend.CanSeek() {
			if _, err := backend.Seek(-int64(c.ungetCursor), io.SeekCurrent); err != nil {
				log.Printf("channel: unget rewind failed on seekable backend, dropping %d bytes: %v", c.ungetCursor, err)
			}
		} else {
			log.Printf("channel: unget rewind not possible on unseekable backend, dropping %d bytes", c.ungetCursor)
		}
		c.ungetCursor = 0
	}

	need := c.writeCursor + len(p)
	if need > cap(c.writeBuf) {
		c.growWriteBuf(need)
	}
	if cap(c.writeBuf) < need {
		// Still too small (e.g. first allocation): flush what we have and
		// retry once against a freshly sized buffer.
		if c.writeCursor > 0 {
			if err := c.Flush(); err != nil {
				return 0, err
			}
		}
		c.growWriteBuf(len(p))
	}
	c.writeBuf = c.writeBuf[:cap(c.writeBuf)]
	copy(c.writeBuf[c.writeCursor:], p)
	c.writeCursor += len(p)
	c.writeBuf = c.writeBuf[:c.writeCursor]
	c.bytesWrittenSinceRead += int64(len(p))
	c.bytesReadSinceWrite = 0
	// position tracks the logical stream cursor, which already advances
	// past buffered-but-unflushed bytes -- the same convention C stdio's
	// ftell uses for a buffered stream (fflush failure is reported
	// separately, at flush time).
	c.position += int64(len(p))
	return len(p), nil
}

// growWriteBuf doubles the write buffer's capacity plus the incoming
// chunk's remaining size (spec §4.1 Write step 3: "auto-growth doubles
// capacity plus the incoming chunk's remaining size").
func (c *Channel) growWriteBuf(need int) {
	cur := cap(c.writeBuf)
	if cur == 0 {
		cur = defaultWriteBufCapacity
	}
	newCap := cur*2 + need
	buf := make([]byte, c.writeCursor, newCap)
	copy(buf, c.writeBuf[:c.writeCursor])
	c.writeBuf = buf
}

// Flush writes the entire write buffer to the backend, retrying on partial
// backend writes until fully drained or the backend fails.
func (c *Channel) Flush() error {
	backend, _, err := c.openBackend()
	if err != nil {
		return c.fail(err)
	}
	buf := c.writeBuf[:c.writeCursor]
	for len(buf) > 0 {
		// position was already advanced when these bytes were queued by
		// Write (see the buffered-append branch above); Flush only moves
		// them to the backend and must not double-count.
		n, err := backend.Write(buf)
		buf = buf[n:]
		if err != nil {
			remaining := len(buf)
			c.writeBuf = c.writeBuf[:copy(c.writeBuf, buf)]
			c.writeCursor = remaining
			return c.fail(errors.E(errors.LowLevelWrite, "flush failed", err))
		}
	}
	c.writeCursor = 0
	c.writeBuf = c.writeBuf[:0]
	return backend.Flush()
}

// Unget pushes up to bytesReadSinceWrite bytes back onto the unget buffer.
func (c *Channel) Unget(p []byte) error {
	if _, _, err := c.openBackend(); err != nil {
		return c.fail(err)
	}
	if c.ungetBuf == nil {
		c.ungetBuf = make([]byte, defaultUngetCapacity)
	}
	if int64(len(p)) > c.bytesReadSinceWrite {
		return c.fail(errors.E(errors.TooManyUnget, "unget exceeds bytes read since last write"))
	}
	if len(p)+c.ungetCursor > len(c.ungetBuf) {
		return c.fail(errors.E(errors.TooManyUnget, "unget exceeds unget buffer capacity"))
	}
	// Push p reversed so that Read pops p[0] first.
	for i := len(p) - 1; i >= 0; i-- {
		c.ungetBuf[c.ungetCursor] = p[i]
		c.ungetCursor++
	}
	c.bytesReadSinceWrite -= int64(len(p))
	return nil
}

// UngetByte pushes a single byte back; a convenience wrapper used heavily by
// the formatted scanf layer.
func (c *Channel) UngetByte(b byte) error {
	return c.Unget([]byte{b})
}

// Seek requires the backend support seeking. On success it clears the
// sticky EOF flag.
func (c *Channel) Seek(offset int64, whence int) (int64, error) {
	backend, _, err := c.openBackend()
	if err != nil {
		return 0, c.fail(err)
	}
	if !backend.CanSeek() {
		return 0, c.fail(errors.E(errors.BadSeek, "backend does not support seeking"))
	}
	if c.writeCursor > 0 {
		if err := c.Flush(); err != nil {
			return 0, err
		}
	}
	c.ungetCursor = 0
	pos, err := backend.Seek(offset, whence)
	if err != nil {
		return 0, c.fail(errors.E(errors.BadSeek, "seek failed", err))
	}
	c.position = pos
	c.eof = false
	return pos, nil
}

// Tell returns the Channel's current position via Seek(0, io.SeekCurrent).
func (c *Channel) Tell() (int64, error) {
	return c.Seek(0, io.SeekCurrent)
}

// Rewind seeks to the start of the stream and clears EOF.
func (c *Channel) Rewind() error {
	_, err := c.Seek(0, io.SeekStart)
	return err
}

// Peek performs a non-destructive read of up to len(p) bytes: the bytes
// read are immediately pushed back onto the unget buffer, preserving read
// order on the next real Read.
func (c *Channel) Peek(p []byte) (int, error) {
	n, err := c.Read(p)
	if n == 0 && err == io.EOF {
		// spec §4.1: eof under Peek is reported (n == 0, err == nil) without
		// setting an error, but the sticky eof flag Read already set is left
		// untouched -- it clears only via Seek/Rewind/reopen, never via Peek.
		return 0, nil
	}
	if err != nil {
		return n, err
	}
	if err := c.Unget(p[:n]); err != nil {
		return n, err
	}
	return n, nil
}

// Close releases backend resources unless the NotClose flag was set at
// Open time, then transitions to the closed state.
func (c *Channel) Close() error {
	backend, st, err := c.openBackend()
	if err != nil {
		return nil // closing an unopened or already-closed Channel is a no-op
	}
	if c.writeCursor > 0 {
		_ = c.Flush()
	}
	var closeErr error
	if st.mode&NotClose == 0 {
		closeErr = backend.Close()
	}
	c.st = closedState{}
	return closeErr
}

// Clear returns the Channel to the uninitialised state, regardless of
// whether it is currently open or closed.
func (c *Channel) Clear() {
	c.st = uninitState{}
	c.ClearError()
	c.eof = false
	c.writeCursor = 0
	c.ungetCursor = 0
	c.position = 0
}

// GetProperty / SetProperty delegate to the attached backend's property
// bag (spec §4.5 "Property bag on Channel").
func (c *Channel) GetProperty(name string) (string, bool) {
	backend, _, err := c.openBackend()
	if err != nil {
		return "", false
	}
	return backend.GetProperty(name)
}

func (c *Channel) SetProperty(name, value string) {
	backend, _, err := c.openBackend()
	if err != nil {
		return
	}
	backend.SetProperty(name, value)
}

// SetBuffering toggles write buffering; when disabled, Write dispatches
// directly to the backend whenever the write buffer is currently empty.
func (c *Channel) SetBuffering(on bool) { c.bufferingOK = on }

// backend exposes the attached Backend for package-internal callers (the
// wait.go readiness helpers and the formatted I/O layer) that need direct
// access beyond the buffered Read/Write path.
func (c *Channel) backend() (Backend, error) {
	b, _, err := c.openBackend()
	return b, err
}
