// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package serialize implements the mode-driven engine that walks composite
// values through a selected FormatPlugin, carrying a versioned
// self-describing header, nesting, stream modes, and an auto-calc header
// patch. It is grounded on the Channel abstraction (package channel) for
// all I/O and on recordio.RegisterTransformer for its plugin registry.
package serialize

import (
	"fmt"
	"io"
	"strings"

	"github.com/hrisio/hris/channel"
	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/header"
	"github.com/hrisio/hris/log"
	"github.com/hrisio/hris/serializetype"
)

// Serialize drives a single top-level value (and any nested structs,
// arrays, and struct-arrays within it) across a Channel using the active
// FormatPlugin. The zero value is not usable; construct with New.
type Serialize struct {
	ch   *channel.Channel
	calc *channel.Channel

	plugin FormatPlugin
	opts   *Options

	mode       Mode
	streamMode StreamMode
	flags      Flags

	columnWrap int
	indent     int

	nesting      int
	flattenStack []bool

	headerLine        string
	headerStartOffset int64
	objInitialOffset  int64
	loopOffset        int64
	typeTag           string
	instanceName      string

	// textArrayElems buffers one array's element literals for the plugins
	// that render (write) or must parse (read) a whole array as a single
	// statement -- Ascii and Matlab both need the complete element list
	// before they can wrap or close that statement. Python and Json keep
	// arrays in their own container stacks below, and Binary and Xml stream
	// per element; those four leave this unused. Only one array is ever
	// open at a time, so a single slice suffices.
	textArrayElems []string

	// pathStack and structArrayNames support the Matlab plugin's dotted-path
	// naming convention ("a.b.c = v;", "arr(3).field = v;"), which carries
	// structure in the field name itself rather than in bracketing
	// statements. Harmless (always empty) for every other plugin.
	pathStack       []string
	structArrayNames []string

	// pyWriteStack and pyReadStack hold the Python plugin's nested
	// container-under-construction (write) or already-parsed-and-being-
	// walked (read) state; see format_python.go. Unused by every other
	// plugin.
	pyWriteStack []*pyWriteNode
	pyReadStack  []*pyCursor

	// jsonWriteStack and jsonReadStack are the Json plugin's analogous
	// nested-container state, built from plain interface{} values so the
	// whole tree can go through a single encoding/json.Marshal/Unmarshal
	// call rather than hand-rolled text assembly. Unused by every other
	// plugin.
	jsonWriteStack []*jsonContainer
	jsonReadStack  []*jsonCursor

	// err latches the first error observed by any engine method; once set,
	// every subsequent call on this Serialize is a no-op that returns it
	// immediately. This is the result-type short-circuit combinator DESIGN
	// NOTES §9 prescribes in place of setjmp/longjmp: callers of Run don't
	// need to check every intermediate call, only the final return value.
	err error

	// eofDuringRead distinguishes a short read (io.EOF observed mid-object)
	// from other failures, per spec §7 "tagged so the caller can
	// distinguish short read from bad input".
	eofDuringRead bool
}

// New returns a freshly constructed Serialize, in Null mode with no stream
// attached (FlagInit is set until SetStream/SetFormat/SetMode complete).
func New() *Serialize {
	calc := channel.New()
	// Calc:// never fails to open; it takes no resources.
	_ = calc.Open("Calc://", channel.WrOnly, 0)
	return &Serialize{
		calc:       calc,
		columnWrap: 72,
		flags:      FlagInit,
	}
}

// SetStream attaches ch as the user-visible stream. It is ignored while the
// engine is in Calc mode, since Calc always targets the internal sink.
func (s *Serialize) SetStream(ch *channel.Channel) {
	s.ch = ch
}

// SetFormat locates the named plugin and parses opts for it. Fails with
// NotDefined if no such plugin is registered.
func (s *Serialize) SetFormat(name, opts string) error {
	p, ok := lookupFormat(name)
	if !ok {
		return errors.E(errors.NotDefined, "no format plugin registered: "+name)
	}
	s.plugin = p
	s.opts = ParseOptions(opts)
	return nil
}

// SetMode decodes the direction/stream-mode/flag bits. When mode is
// ModeCalc, subsequent I/O is redirected to the internal counting sink
// channel regardless of what SetStream attached (spec §4.3 setMode: "when
// mode is Calc the calc-channel is substituted for the user channel").
func (s *Serialize) SetMode(mode Mode, streamMode StreamMode, flags Flags) error {
	if s.plugin == nil {
		return errors.E(errors.NotDefined, "setMode called before setFormat")
	}
	if s.plugin.AllowedModes()&modeBit(mode) == 0 {
		return errors.E(errors.NotDefined, fmt.Sprintf("format %s does not support %s mode", s.plugin.Name(), mode))
	}
	s.mode = mode
	s.streamMode = streamMode
	s.flags = flags &^ FlagInit
	return nil
}

// channelInUse returns the Channel all I/O in the current mode is directed
// at: the calc sink in Calc mode, the user stream otherwise.
func (s *Serialize) channelInUse() (*channel.Channel, error) {
	if s.mode == ModeCalc {
		return s.calc, nil
	}
	if s.ch == nil {
		return nil, errors.E(errors.NotDefined, "no stream attached")
	}
	return s.ch, nil
}

// Run invokes fn, which drives the engine via BeginStruct/Field/.../EndStruct
// calls, and returns the first error observed by any of them (the
// short-circuit "recovery point" described in DESIGN NOTES §9). fn need not
// check every intermediate call's return value; once an error latches,
// further engine calls become no-ops that return it immediately.
func (s *Serialize) Run(fn func(*Serialize) error) error {
	s.err = nil
	s.eofDuringRead = false
	if err := fn(s); err != nil && s.err == nil {
		s.err = err
	}
	return s.err
}

// EofDuringRead reports whether the last Run's error (if any) was observed
// as an end-of-file condition partway through reading a value, rather than
// a format/IO error (spec §7: unwind "tagged" for short-read vs bad-input).
func (s *Serialize) EofDuringRead() bool { return s.eofDuringRead }

func (s *Serialize) fail(err error) error {
	if err == io.EOF {
		s.eofDuringRead = true
	}
	s.err = err
	return err
}

// BeginStruct opens a (possibly nested) struct scope named name of tag
// typeName. At nesting 0→1 this is the top-level entry point: it performs
// header I/O unless FlagNoHeader is set (spec §4.3 "Top-level entry").
func (s *Serialize) BeginStruct(typeName, name string) error {
	return s.beginStruct(typeName, name, false)
}

// BeginBaseStruct is BeginStruct with base-type flattening: the plugin
// folds the struct's fields into the enclosing scope instead of opening a
// nested one (spec §3 Data Model: "a flag whether the current beginType
// was opened as base type").
func (s *Serialize) BeginBaseStruct(name string) error {
	return s.beginStruct("", name, true)
}

func (s *Serialize) beginStruct(typeName, name string, flatten bool) error {
	if s.err != nil {
		return s.err
	}
	if s.plugin == nil {
		return s.fail(errors.E(errors.NotDefined, "no format plugin selected"))
	}
	s.nesting++
	s.flattenStack = append(s.flattenStack, flatten)
	if s.nesting == 1 {
		if err := s.topLevelBegin(typeName, name); err != nil {
			s.nesting--
			s.flattenStack = s.flattenStack[:len(s.flattenStack)-1]
			return s.fail(err)
		}
	}
	if err := s.plugin.BeginType(s, typeName, name, flatten); err != nil {
		return s.fail(err)
	}
	if !flatten {
		s.indent++
	}
	return nil
}

// EndStruct closes the scope most recently opened by BeginStruct or
// BeginBaseStruct. At nesting 1→0 this is the top-level exit point: payload
// size computation, auto-calc header patch, and stream-mode handling (spec
// §4.3 "Top-level exit").
func (s *Serialize) EndStruct(typeName, name string) error {
	if s.err != nil {
		return s.err
	}
	if s.nesting == 0 {
		return s.fail(errors.E(errors.NotDefined, "endStruct called with nesting already 0"))
	}
	flatten := s.flattenStack[len(s.flattenStack)-1]
	s.flattenStack = s.flattenStack[:len(s.flattenStack)-1]
	if !flatten {
		s.indent--
	}
	if err := s.plugin.EndType(s, typeName, name, flatten); err != nil {
		return s.fail(err)
	}
	s.nesting--
	if s.nesting == 0 {
		if err := s.topLevelEnd(); err != nil {
			return s.fail(err)
		}
	}
	return nil
}

// Field serializes (write) or parses (read) a single scalar leaf value.
func (s *Serialize) Field(name string, v serializetype.ValueRef) error {
	if s.err != nil {
		return s.err
	}
	if err := s.plugin.DoSerialize(s, name, v); err != nil {
		return s.fail(err)
	}
	return nil
}

// Array serializes a scalar-element sequence of count elements, reading
// each element's ValueRef from get(i) (write) or writing into it (read).
func (s *Serialize) Array(name string, elemType serializetype.Type, count int, get func(i int) serializetype.ValueRef) error {
	if s.err != nil {
		return s.err
	}
	if err := s.plugin.BeginArray(s, name, elemType, count); err != nil {
		return s.fail(err)
	}
	for i := 0; i < count; i++ {
		if err := s.plugin.ArrayElement(s, i, get(i)); err != nil {
			return s.fail(err)
		}
	}
	if err := s.plugin.EndArray(s, name, count); err != nil {
		return s.fail(err)
	}
	return nil
}

// BeginStructArray opens a sequence of count composite elements; each
// element must be bracketed by StructArrayElement (which itself wraps the
// element's own BeginStruct/.../EndStruct).
func (s *Serialize) BeginStructArray(name string, count int) error {
	if s.err != nil {
		return s.err
	}
	if err := s.plugin.BeginStructArray(s, name, count); err != nil {
		return s.fail(err)
	}
	return nil
}

// StructArrayElement wraps one element of a struct array: it calls the
// plugin's separator hooks before and after fn runs (fn is expected to call
// BeginStruct/.../EndStruct for the element itself).
func (s *Serialize) StructArrayElement(index int, fn func() error) error {
	if s.err != nil {
		return s.err
	}
	if err := s.plugin.StructArraySeparator(s, index, true); err != nil {
		return s.fail(err)
	}
	if err := fn(); err != nil {
		return s.fail(err)
	}
	if err := s.plugin.StructArraySeparator(s, index, false); err != nil {
		return s.fail(err)
	}
	return nil
}

// EndStructArray closes the scope opened by BeginStructArray.
func (s *Serialize) EndStructArray(name string) error {
	if s.err != nil {
		return s.err
	}
	if err := s.plugin.EndStructArray(s, name); err != nil {
		return s.fail(err)
	}
	return nil
}

func (s *Serialize) topLevelBegin(typeName, name string) error {
	s.typeTag = typeName
	s.instanceName = name
	ch, err := s.channelInUse()
	if err != nil {
		return err
	}
	s.loopOffset = ch.Position()

	if s.flags&FlagNoHeader != 0 {
		s.headerLine = ""
		s.objInitialOffset = ch.Position()
		return nil
	}

	switch s.mode {
	case ModeWrite, ModeCalc:
		h := &header.Header{
			Major:  header.V2Major,
			Minor:  header.V2Minor,
			Type:   typeName,
			Name:   name,
			Format: s.plugin.Name(),
			Opts:   s.opts.String(),
		}
		if s.flags&FlagAutoCalc != 0 {
			h.ObjSize = -1
		}
		line := header.Encode(h)
		s.headerStartOffset = ch.Position()
		if _, err := ch.Write([]byte(line)); err != nil {
			return err
		}
		s.headerLine = line
		s.objInitialOffset = ch.Position()
		return nil

	case ModeRead:
		line, err := readLine(ch)
		if err != nil {
			return err
		}
		h, err := header.Decode(line)
		if err != nil {
			return err
		}
		if h.Type != typeName {
			return errors.E(errors.HeaderMismatch, fmt.Sprintf("header type %q does not match requested type %q", h.Type, typeName))
		}
		if p, ok := lookupFormat(h.Format); ok {
			s.plugin = p
		}
		s.opts = ParseOptions(h.Opts)
		s.headerLine = line
		s.objInitialOffset = ch.Position()
		return nil

	default:
		return errors.E(errors.NotDefined, "beginStruct called with mode Null")
	}
}

func (s *Serialize) topLevelEnd() error {
	ch, err := s.channelInUse()
	if err != nil {
		return err
	}
	payloadSize := ch.Position() - s.objInitialOffset

	if s.mode == ModeWrite && s.flags&FlagAutoCalc != 0 && s.headerLine != "" {
		s.patchObjSize(ch, payloadSize)
	}

	switch s.streamMode {
	case StreamFlush:
		if err := ch.Flush(); err != nil {
			return err
		}
	case StreamLoop:
		if _, err := ch.Seek(s.loopOffset, io.SeekStart); err != nil {
			return err
		}
	}
	return nil
}

// patchObjSize overwrites the already-emitted header's objSize field in
// place (spec §4.3 step 2). Failure to seek is logged, not propagated: the
// serialization itself already succeeded, it just carries a zeroed size.
func (s *Serialize) patchObjSize(ch *channel.Channel, payloadSize int64) {
	fieldOffset := header.ObjSizeFieldOffset(s.headerLine)
	if fieldOffset < 0 {
		return
	}
	patchOffset := s.headerStartOffset + int64(fieldOffset)
	endOffset := ch.Position()

	if _, err := ch.Seek(patchOffset, io.SeekStart); err != nil {
		log.Printf("serialize: auto-calc header patch skipped, channel is not seekable: %v", err)
		return
	}
	if _, err := ch.Write([]byte(formatObjSize(payloadSize))); err != nil {
		log.Printf("serialize: auto-calc header patch write failed: %v", err)
	}
	if _, err := ch.Seek(endOffset, io.SeekStart); err != nil {
		log.Printf("serialize: auto-calc header patch could not restore position: %v", err)
	}
}

func formatObjSize(n int64) string {
	s := fmt.Sprintf("%d", n)
	if len(s) < header.ObjSizeWidth {
		s = strings.Repeat(" ", header.ObjSizeWidth-len(s)) + s
	}
	return s
}

// readLine reads a single '\n'-terminated line from ch, byte by byte (the
// header is short and read exactly once per top-level object, so this is
// not a hot path worth a buffered reader).
func readLine(ch *channel.Channel) (string, error) {
	var b strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := ch.Read(buf)
		if n > 0 {
			b.WriteByte(buf[0])
			if buf[0] == '\n' {
				return b.String(), nil
			}
		}
		if err != nil {
			if err == io.EOF && b.Len() > 0 {
				return b.String(), nil
			}
			return "", err
		}
	}
}

// PeekHeader reads the next line as a Header without disturbing the
// channel's position (spec §8: "peekHeader() does not change the channel
// position").
func PeekHeader(ch *channel.Channel) (*header.Header, error) {
	line, err := peekLine(ch)
	if err != nil {
		return nil, err
	}
	return header.Decode(line)
}

// peekLine reads one line and pushes it straight back as a single Unget
// call, which restores both the channel position and the original byte
// order (Unget/Read agree on ordering within one call; see channel.Unget).
func peekLine(ch *channel.Channel) (string, error) {
	line, err := readLine(ch)
	if err != nil {
		return "", err
	}
	if err := ch.Unget([]byte(line)); err != nil {
		return "", err
	}
	return line, nil
}
