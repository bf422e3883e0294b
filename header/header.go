// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package header encodes and decodes the self-describing preamble that opens
// every top-level serialized value: the fixed ASCII marker HRIS- followed by
// a major.minor version, then either positional (v1.0) or key=value (v2.0)
// fields. It is grounded on recordio/header.go's encoder/decoder split, but
// the wire grammar here is textual, not recordio's binary varint encoding.
package header

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/refvalue"
)

// Preamble is the literal marker that opens every header.
const Preamble = "HRIS-"

// ObjSizeWidth is the fixed width of the right-justified objSize field in a
// v2.0 header, chosen so that auto-calc can overwrite it in place once the
// real payload size is known.
const ObjSizeWidth = 10

// Header is a versioned record describing the top-level value that follows
// it on the channel.
type Header struct {
	Major, Minor int
	Type         string
	Name         string
	ObjSize      int64
	Format       string
	Opts         string

	// ByteLen is the number of bytes the encoded header occupied, including
	// its terminating newline. It is populated by Decode and by Encode.
	ByteLen int
}

// V2 is the canonical current version emitted on write.
const (
	V2Major = 2
	V2Minor = 0
)

// Encode renders h as a v2.0 header line: "HRIS-2.0 type = T name = n
// objSize =          N format = F [opts = O]\n", quoting a value only when
// it contains whitespace, a quote or a backslash. If h.ObjSize is the
// sentinel -1 ("not yet known"), the objSize field is emitted as 0
// (right-justified like any other size), ready for an auto-calc patch.
func Encode(h *Header) string {
	// objSize is written outside the refvalue list, which would quote its
	// space padding; ObjSizeFieldOffset relies on the padded digits
	// starting right after "objSize = ".
	var head, tail refvalue.List
	head.Set("type", h.Type)
	head.Set("name", h.Name)
	tail.Set("format", h.Format)
	if h.Opts != "" {
		tail.Set("opts", h.Opts)
	}
	line := fmt.Sprintf("%s%d.%d %s objSize = %s %s\n", Preamble, V2Major, V2Minor,
		head.Format(), formatObjSize(h.ObjSize), tail.Format())
	h.ByteLen = len(line)
	return line
}

func formatObjSize(n int64) string {
	if n < 0 {
		n = 0
	}
	s := strconv.FormatInt(n, 10)
	if len(s) < ObjSizeWidth {
		s = strings.Repeat(" ", ObjSizeWidth-len(s)) + s
	}
	return s
}

// ObjSizeFieldOffset returns the byte offset, within the encoded header
// line, at which the objSize field's digits begin -- the location an
// auto-calc patch seeks back to before overwriting it. It returns -1 if the
// header has no objSize field (should not happen for headers produced by
// Encode).
func ObjSizeFieldOffset(line string) int {
	const key = "objSize = "
	idx := strings.Index(line, key)
	if idx < 0 {
		return -1
	}
	return idx + len(key)
}

// Decode parses a single header line (preamble, version, and body) into a
// Header. It dispatches to the v1.0 positional parser or the v2.0 key=value
// parser based on the version found in the preamble (1.0 is positional,
// any other version is key=value), per DESIGN NOTES
// §9 ("reads accept both, writes emit v2.0 only").
func Decode(line string) (*Header, error) {
	if !strings.HasPrefix(line, Preamble) {
		return nil, errors.E(errors.IncorrectFormat, "missing HRIS- preamble")
	}
	rest := line[len(Preamble):]
	sp := strings.IndexAny(rest, " \t")
	if sp < 0 {
		return nil, errors.E(errors.IncorrectFormat, "truncated header: no version/body separator")
	}
	version := rest[:sp]
	body := strings.TrimSuffix(rest[sp+1:], "\n")

	major, minor, err := parseVersion(version)
	if err != nil {
		return nil, err
	}

	var l *refvalue.List
	if minor == 0 && major == 1 {
		l, err = refvalue.ParseV1(body)
	} else {
		l, err = refvalue.Parse(body)
	}
	if err != nil {
		return nil, err
	}

	h := &Header{Major: major, Minor: minor, ByteLen: len(line)}
	h.Type = l.MustGet("type")
	h.Name = l.MustGet("name")
	h.Format = l.MustGet("format")
	h.Opts = l.MustGet("opts")
	sizeStr := strings.TrimSpace(l.MustGet("objSize"))
	if sizeStr != "" {
		n, err := strconv.ParseInt(sizeStr, 10, 64)
		if err != nil {
			return nil, errors.E(errors.BadSize, "malformed objSize field", err)
		}
		h.ObjSize = n
	}
	return h, nil
}

func parseVersion(v string) (major, minor int, err error) {
	parts := strings.SplitN(v, ".", 2)
	if len(parts) != 2 {
		return 0, 0, errors.E(errors.IncorrectFormat, "malformed version "+v)
	}
	major, err1 := strconv.Atoi(parts[0])
	minor, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, errors.E(errors.IncorrectFormat, "malformed version "+v)
	}
	return major, minor, nil
}
