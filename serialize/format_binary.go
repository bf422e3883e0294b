// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package serialize

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/hrisio/hris/channel"
	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/serializetype"
)

func init() {
	RegisterFormat("Binary", binaryFormat{})
}

// binaryFormat is the wire-compact plugin (spec §4.4 "Binary"). Structure
// boundaries and array framing emit no bytes; only leaf scalars and string
// length prefixes are written. Byte order is selected by the opts string
// ("LITTLE_ENDIAN" or "BIG_ENDIAN", default little), grounded directly on
// encoding/binary.LittleEndian/BigEndian the way recordio/internal encodes
// its chunk headers, rather than a separate endian-abstraction package.
type binaryFormat struct{}

func (binaryFormat) Name() string { return "Binary" }

func (binaryFormat) AllowedModes() Mode {
	return modeBit(ModeWrite) | modeBit(ModeRead) | modeBit(ModeCalc)
}

func (binaryFormat) BeginType(*Serialize, string, string, bool) error { return nil }
func (binaryFormat) EndType(*Serialize, string, string, bool) error   { return nil }

func (binaryFormat) BeginArray(*Serialize, string, serializetype.Type, int) error { return nil }
func (binaryFormat) EndArray(*Serialize, string, int) error                      { return nil }

func (binaryFormat) BeginStructArray(*Serialize, string, int) error       { return nil }
func (binaryFormat) StructArraySeparator(*Serialize, int, bool) error     { return nil }
func (binaryFormat) EndStructArray(*Serialize, string) error              { return nil }

func byteOrder(opts *Options) binary.ByteOrder {
	if opts.Is("BIG_ENDIAN") {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (binaryFormat) DoSerialize(s *Serialize, name string, v serializetype.ValueRef) error {
	ch, err := s.channelInUse()
	if err != nil {
		return err
	}
	order := byteOrder(s.opts)
	if s.mode == ModeRead {
		return readBinaryScalar(s, ch, order, v)
	}
	return writeBinaryScalar(ch, order, v)
}

func (binaryFormat) ArrayElement(s *Serialize, _ int, v serializetype.ValueRef) error {
	ch, err := s.channelInUse()
	if err != nil {
		return err
	}
	order := byteOrder(s.opts)
	if s.mode == ModeRead {
		return readBinaryScalar(s, ch, order, v)
	}
	return writeBinaryScalar(ch, order, v)
}

func writeBinaryScalar(ch *channel.Channel, order binary.ByteOrder, v serializetype.ValueRef) error {
	var buf []byte
	switch v.Type {
	case serializetype.Int8:
		buf = []byte{byte(*v.I8)}
	case serializetype.Uint8:
		buf = []byte{*v.U8}
	case serializetype.Int16:
		buf = make([]byte, 2)
		order.PutUint16(buf, uint16(*v.I16))
	case serializetype.Uint16:
		buf = make([]byte, 2)
		order.PutUint16(buf, *v.U16)
	case serializetype.Int32:
		buf = make([]byte, 4)
		order.PutUint32(buf, uint32(*v.I32))
	case serializetype.Uint32:
		buf = make([]byte, 4)
		order.PutUint32(buf, *v.U32)
	case serializetype.Float32:
		buf = make([]byte, 4)
		order.PutUint32(buf, math.Float32bits(*v.F32))
	case serializetype.Int64, serializetype.Long:
		buf = make([]byte, 8)
		order.PutUint64(buf, uint64(*v.I64))
	case serializetype.Uint64:
		buf = make([]byte, 8)
		order.PutUint64(buf, *v.U64)
	case serializetype.Float64:
		buf = make([]byte, 8)
		order.PutUint64(buf, math.Float64bits(*v.F64))
	case serializetype.LongDouble:
		// No native 80/128-bit float in Go; represented on the wire as a
		// float64 zero-extended to 16 bytes.
		buf = make([]byte, 16)
		order.PutUint64(buf, math.Float64bits(*v.F64))
	case serializetype.String:
		s := ""
		if v.Str != nil {
			s = *v.Str
		}
		lenBuf := make([]byte, 2)
		order.PutUint16(lenBuf, uint16(len(s)))
		buf = append(lenBuf, s...)
	default:
		return errors.E(errors.IncorrectFormat, "Binary: unsupported type "+v.Type.String())
	}
	_, err := ch.Write(buf)
	return err
}

func readBinaryScalar(s *Serialize, ch *channel.Channel, order binary.ByteOrder, v serializetype.ValueRef) error {
	readN := func(n int) ([]byte, error) {
		buf := make([]byte, n)
		if _, err := readFull(s, ch, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}
	switch v.Type {
	case serializetype.Int8:
		b, err := readN(1)
		if err != nil {
			return err
		}
		*v.I8 = int8(b[0])
	case serializetype.Uint8:
		b, err := readN(1)
		if err != nil {
			return err
		}
		*v.U8 = b[0]
	case serializetype.Int16:
		b, err := readN(2)
		if err != nil {
			return err
		}
		*v.I16 = int16(order.Uint16(b))
	case serializetype.Uint16:
		b, err := readN(2)
		if err != nil {
			return err
		}
		*v.U16 = order.Uint16(b)
	case serializetype.Int32:
		b, err := readN(4)
		if err != nil {
			return err
		}
		*v.I32 = int32(order.Uint32(b))
	case serializetype.Uint32:
		b, err := readN(4)
		if err != nil {
			return err
		}
		*v.U32 = order.Uint32(b)
	case serializetype.Float32:
		b, err := readN(4)
		if err != nil {
			return err
		}
		*v.F32 = math.Float32frombits(order.Uint32(b))
	case serializetype.Int64, serializetype.Long:
		b, err := readN(8)
		if err != nil {
			return err
		}
		*v.I64 = int64(order.Uint64(b))
	case serializetype.Uint64:
		b, err := readN(8)
		if err != nil {
			return err
		}
		*v.U64 = order.Uint64(b)
	case serializetype.Float64:
		b, err := readN(8)
		if err != nil {
			return err
		}
		*v.F64 = math.Float64frombits(order.Uint64(b))
	case serializetype.LongDouble:
		b, err := readN(16)
		if err != nil {
			return err
		}
		*v.F64 = math.Float64frombits(order.Uint64(b[:8]))
	case serializetype.String:
		lb, err := readN(2)
		if err != nil {
			return err
		}
		n := int(order.Uint16(lb))
		sb, err := readN(n)
		if err != nil {
			return err
		}
		*v.Str = string(sb)
	default:
		return errors.E(errors.IncorrectFormat, "Binary: unsupported type "+v.Type.String())
	}
	return nil
}

// readFull reads exactly len(buf) bytes from ch, the way io.ReadFull does
// for a standard io.Reader -- unless s.streamMode is StreamCompat, in which
// case a payload that runs out early is tolerated: buf was allocated via
// make() and is already zero, so simply stopping short of an error leaves
// the unread tail zero-filled, matching SERIALIZE_STREAM_COMPATMODE's
// version-skew allowance for a struct that grew new trailing fields since
// the payload was written.
func readFull(s *Serialize, ch *channel.Channel, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := ch.Read(buf[total:])
		total += n
		if err != nil {
			if s.streamMode == StreamCompat && err == io.EOF {
				return len(buf), nil
			}
			return total, err
		}
		if n == 0 {
			if s.streamMode == StreamCompat {
				return len(buf), nil
			}
			return total, errors.E(errors.IncorrectFormat, "Binary: unexpected eof")
		}
	}
	return total, nil
}
