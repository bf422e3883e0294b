// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package errors implements the error taxonomy used throughout the channel
// and serialize packages. Errors carry an interpretable Kind so that callers
// (and the serialize engine's error-sampling loop) can distinguish, say, a
// closed descriptor from a bad seek without string matching. Errors can be
// chained: one error can attribute its cause to another, and the full chain
// is printed by Error().
package errors

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"syscall"

	pkgerrors "github.com/pkg/errors"
)

// Separator is inserted between chained errors in error messages.
var Separator = ":\n\t"

// Kind classifies an error. The set below mirrors the taxonomy every Channel
// primitive draws from: at most one Kind is set per failing call, and it
// stays sticky on the Channel until Clear is invoked.
type Kind int

const (
	// None indicates no error has occurred. Channel.ErrorKind returns this
	// when the channel is healthy.
	None Kind = iota
	Other
	AccessViolation
	IncorrectFormat
	BadBuffer
	BadInfoString
	BadSeek
	BadSize
	BadMemPtr
	BadMmpSize
	BadWhence
	BadEndSeek
	IoCallBeforeOpen
	MissingSlashes
	BadMode
	BadShmName
	SocketRead
	SocketWrite
	NotDefined
	LowLevelWrite
	StdinAccess
	StdoutAccess
	BadFlags
	BadOpenArg
	BadMemFlags
	UnableToConnect
	SocketTimeout
	BadPrintfCallback
	BadScanfCallback
	TooManyUnget
	NotSupported
	HeaderMismatch

	// OS-mapped kinds. These are produced by KindOf when the underlying
	// error is a syscall.Errno or an os.PathError wrapping one.
	NoEntry
	NotDir
	IsDir
	Permission
	NameTooLong
	Exists
	NoSuchDevice
	NoDevice
	ReadOnlyFs
	TextBusy
	Fault
	Loop
	NoSpace
	NoMem
	TooManyOpen
	SysFileLimit
	Interrupted
	Again
	IoError
	BadFd
	Invalid
	TooBig
	BrokenPipe
	BadPipe
	Overflow

	maxKind
)

var kindText = map[Kind]string{
	None:              "no error",
	Other:             "unknown error",
	AccessViolation:   "access violation",
	IncorrectFormat:   "incorrect format",
	BadBuffer:         "bad buffer",
	BadInfoString:     "bad info string",
	BadSeek:           "bad seek",
	BadSize:           "bad size",
	BadMemPtr:         "bad memory pointer",
	BadMmpSize:        "bad mmap size",
	BadWhence:         "bad whence",
	BadEndSeek:        "bad end seek",
	IoCallBeforeOpen:  "I/O call before open",
	MissingSlashes:    "missing slashes in info string",
	BadMode:           "bad mode",
	BadShmName:        "bad shared-memory name",
	SocketRead:        "socket read error",
	SocketWrite:       "socket write error",
	NotDefined:        "not defined",
	LowLevelWrite:     "low level write error",
	StdinAccess:       "stdin access error",
	StdoutAccess:      "stdout access error",
	BadFlags:          "bad flags",
	BadOpenArg:        "bad open argument",
	BadMemFlags:       "bad memory flags",
	UnableToConnect:   "unable to connect",
	SocketTimeout:     "socket timeout",
	BadPrintfCallback: "bad printf callback",
	BadScanfCallback:  "bad scanf callback",
	TooManyUnget:      "too many unget bytes",
	NotSupported:      "not supported",
	HeaderMismatch:    "header type mismatch",
	NoEntry:           "no such file or directory",
	NotDir:            "not a directory",
	IsDir:             "is a directory",
	Permission:        "permission denied",
	NameTooLong:       "name too long",
	Exists:            "already exists",
	NoSuchDevice:      "no such device",
	NoDevice:          "no device",
	ReadOnlyFs:        "read-only file system",
	TextBusy:          "text file busy",
	Fault:             "bad address",
	Loop:              "too many levels of symbolic links",
	NoSpace:           "no space left on device",
	NoMem:             "out of memory",
	TooManyOpen:       "too many open files",
	SysFileLimit:      "system file table overflow",
	Interrupted:       "interrupted system call",
	Again:             "resource temporarily unavailable",
	IoError:           "I/O error",
	BadFd:             "bad file descriptor",
	Invalid:           "invalid argument",
	TooBig:            "argument list too long",
	BrokenPipe:        "broken pipe",
	BadPipe:           "bad pipe",
	Overflow:          "value too large",
}

// String returns a human-readable description of k.
func (k Kind) String() string {
	if s, ok := kindText[k]; ok {
		return s
	}
	return "unknown kind"
}

var errnoKinds = map[syscall.Errno]Kind{
	syscall.ENOENT:       NoEntry,
	syscall.ENOTDIR:      NotDir,
	syscall.EISDIR:       IsDir,
	syscall.EACCES:       Permission,
	syscall.ENAMETOOLONG: NameTooLong,
	syscall.EEXIST:       Exists,
	syscall.ENODEV:       NoDevice,
	syscall.EROFS:        ReadOnlyFs,
	syscall.ETXTBSY:      TextBusy,
	syscall.EFAULT:       Fault,
	syscall.ELOOP:        Loop,
	syscall.ENOSPC:       NoSpace,
	syscall.ENOMEM:       NoMem,
	syscall.EMFILE:       TooManyOpen,
	syscall.ENFILE:       SysFileLimit,
	syscall.EINTR:        Interrupted,
	syscall.EAGAIN:       Again,
	syscall.EIO:          IoError,
	syscall.EBADF:        BadFd,
	syscall.EINVAL:       Invalid,
	syscall.E2BIG:        TooBig,
	syscall.EPIPE:        BrokenPipe,
}

// KindOf classifies err into a Kind, walking syscall.Errno and os.PathError
// wrappers the way the Channel backends need to in order to map a raw OS
// failure onto the taxonomy in spec §7.
func KindOf(err error) Kind {
	if err == nil {
		return None
	}
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	var errno syscall.Errno
	if stderrors.As(err, &errno) {
		if k, ok := errnoKinds[errno]; ok {
			return k
		}
		return Other
	}
	if stderrors.Is(err, os.ErrNotExist) {
		return NoEntry
	}
	if stderrors.Is(err, os.ErrPermission) {
		return Permission
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return Again
	}
	return Other
}

// Error is the taxonomy-carrying error type returned by every Channel and
// Serialize primitive that can fail.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// E constructs a new *Error from its arguments, in the style of fmt.Errorf
// but typed on Kind. Arguments are interpreted by type:
//   - Kind: sets the error's Kind
//   - string: appended to the message (space separated)
//   - error: sets the wrapped cause; if the Kind was not otherwise given
//     and the cause classifies via KindOf, that Kind is adopted.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("errors.E: no args")
	}
	e := &Error{}
	var msg strings.Builder
	for _, arg := range args {
		switch a := arg.(type) {
		case Kind:
			e.Kind = a
		case string:
			if msg.Len() > 0 {
				msg.WriteByte(' ')
			}
			msg.WriteString(a)
		case error:
			e.Err = a
		default:
			_, file, line, _ := runtime.Caller(1)
			msg.WriteString(fmt.Sprintf("unrecognized errors.E arg %T at %s:%d", a, file, line))
		}
	}
	e.Message = msg.String()
	if e.Kind == None && e.Err != nil {
		e.Kind = KindOf(e.Err)
	}
	return e
}

// Wrap annotates err with a Kind and message, preserving err as the cause. It
// attaches a stack trace via github.com/pkg/errors when err does not already
// carry one, the way the teacher's error helpers wrap OS failures.
func Wrap(kind Kind, msg string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(stackTracer); !ok {
		err = pkgerrors.WithStack(err)
	}
	return E(kind, msg, err)
}

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b bytes.Buffer
	e.writeError(&b)
	return b.String()
}

func (e *Error) writeError(b *bytes.Buffer) {
	if e.Message != "" {
		pad(b, ": ")
		b.WriteString(e.Message)
	}
	if e.Kind != None && e.Kind != Other {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Err == nil {
		return
	}
	if err, ok := e.Err.(*Error); ok {
		pad(b, Separator)
		b.WriteString(err.Error())
	} else {
		pad(b, ": ")
		b.WriteString(e.Err.Error())
	}
}

func pad(b *bytes.Buffer, s string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(s)
}

// Unwrap lets the standard library's errors.{Is,As} traverse the chain.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether e.Kind matches the Kind carried by target, if target is
// also an *Error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Timeout reports whether e represents a timeout condition.
func (e *Error) Timeout() bool {
	return e.Kind == SocketTimeout || e.Kind == Again
}

// New is synonymous with the standard library's errors.New, provided here so
// that callers need only import one errors package.
func New(msg string) error {
	return stderrors.New(msg)
}

// Recover coerces any error into *Error, classifying it with KindOf if it
// isn't one already.
func Recover(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return &Error{Kind: KindOf(err), Message: err.Error()}
}
