// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package serialize

// Mode selects the engine's direction: Write emits a value to the stream,
// Read parses one back, Calc drives the same write path against a counting
// sink to precompute payload size, and Null means no stream has been
// attached yet.
type Mode int

const (
	ModeNull Mode = iota
	ModeWrite
	ModeRead
	ModeCalc
)

func (m Mode) String() string {
	switch m {
	case ModeWrite:
		return "write"
	case ModeRead:
		return "read"
	case ModeCalc:
		return "calc"
	default:
		return "null"
	}
}

// StreamMode governs what happens to the channel at top-level exit.
type StreamMode int

const (
	// StreamNormal does nothing extra at top-level exit.
	StreamNormal StreamMode = iota
	// StreamFlush flushes the channel's write buffer at top-level exit.
	StreamFlush
	// StreamLoop seeks back to the recorded top-level offset at exit, so
	// the next top-level serialize overwrites the same byte range.
	StreamLoop
	// StreamCompat tolerates a payload shorter than the destination struct
	// on read (a version-skew allowance), zero-filling the remainder. Only
	// the Binary plugin honors it; SERIALIZE_STREAM_COMPATMODE in the
	// original implementation.
	StreamCompat
)

// Flags is a bitset of engine-wide behavior toggles.
type Flags uint32

const (
	// FlagAutoCalc rewrites the header's objSize field in place once the
	// payload size is known, at top-level exit (Write mode only).
	FlagAutoCalc Flags = 1 << iota
	// FlagTranslate marks a streaming reformat (read one format, write
	// another) rather than an in-memory round trip; plugins that cannot
	// support it report so via AllowedModes.
	FlagTranslate
	// FlagNoHeader skips header I/O entirely at top-level entry/exit.
	FlagNoHeader
	// FlagInit marks the Serialize as freshly constructed and not yet
	// bound to a stream (mirrors the source's "init mode" before
	// setStream/setFormat/setMode have all been called).
	FlagInit
)
