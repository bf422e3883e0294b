// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package serialize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/serializetype"
)

func init() {
	RegisterFormat("Matlab", matlabFormat{})
}

// matlabFormat is the scripting plugin (spec §4.4 "Matlab"): no bracketing
// statements at all, structure is carried entirely in the assignment's
// left-hand side -- "dottedPath = value;" for scalars, a row vector for
// arrays, and 1-indexed "name(i+1).field = value;" for struct arrays. Chars
// are cast through a float64 both ways, since Matlab has no narrower
// numeric type than double.
type matlabFormat struct{}

func (matlabFormat) Name() string { return "Matlab" }

func (matlabFormat) AllowedModes() Mode {
	return modeBit(ModeWrite) | modeBit(ModeRead) | modeBit(ModeCalc)
}

func matlabPath(s *Serialize, name string) string {
	segs := append(append([]string{}, s.pathStack...), name)
	var nonEmpty []string
	for _, seg := range segs {
		if seg != "" {
			nonEmpty = append(nonEmpty, seg)
		}
	}
	return strings.Join(nonEmpty, ".")
}

func matlabLiteral(v serializetype.ValueRef) (string, error) {
	switch v.Type {
	case serializetype.Int8:
		return strconv.FormatFloat(float64(v.Int64Value()), 'f', -1, 64), nil
	case serializetype.Uint8:
		return strconv.FormatFloat(float64(v.Uint64Value()), 'f', -1, 64), nil
	default:
		return scalarLiteral(v)
	}
}

func parseMatlabLiteral(tok string, v serializetype.ValueRef) error {
	switch v.Type {
	case serializetype.Int8, serializetype.Uint8:
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return errors.E(errors.IncorrectFormat, "bad char-as-double literal: "+tok, err)
		}
		if v.Type == serializetype.Int8 {
			v.SetInt64(int64(f))
		} else {
			v.SetUint64(uint64(f))
		}
		return nil
	default:
		return parseScalarLiteral(tok, v)
	}
}

func (matlabFormat) BeginType(s *Serialize, typeName, name string, flatten bool) error {
	if flatten || name == "" {
		return nil
	}
	s.pathStack = append(s.pathStack, name)
	return nil
}

func (matlabFormat) EndType(s *Serialize, typeName, name string, flatten bool) error {
	if flatten || name == "" {
		return nil
	}
	s.pathStack = s.pathStack[:len(s.pathStack)-1]
	return nil
}

func (matlabFormat) DoSerialize(s *Serialize, name string, v serializetype.ValueRef) error {
	ch, err := s.channelInUse()
	if err != nil {
		return err
	}
	if s.mode == ModeRead {
		stmt, err := readStatement(ch)
		if err != nil {
			return err
		}
		eq := strings.Index(stmt, "=")
		if eq < 0 {
			return errors.E(errors.IncorrectFormat, "malformed assignment: "+stmt)
		}
		tok := strings.TrimSuffix(strings.TrimSpace(stmt[eq+1:]), ";")
		return parseMatlabLiteral(strings.TrimSpace(tok), v)
	}
	lit, err := matlabLiteral(v)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("%s = %s;\n", matlabPath(s, name), lit)
	_, err = ch.Write([]byte(line))
	return err
}

func (matlabFormat) BeginArray(s *Serialize, name string, elemType serializetype.Type, count int) error {
	s.textArrayElems = nil
	if s.mode != ModeRead {
		return nil
	}
	ch, err := s.channelInUse()
	if err != nil {
		return err
	}
	stmt, err := readStatement(ch)
	if err != nil {
		return err
	}
	open := strings.IndexByte(stmt, '[')
	closeIdx := strings.LastIndexByte(stmt, ']')
	if open < 0 || closeIdx < open {
		return errors.E(errors.IncorrectFormat, "malformed row vector: "+stmt)
	}
	elems := tokenizeElements(strings.TrimSpace(stmt[open+1 : closeIdx]))
	if len(elems) != count {
		return errors.E(errors.IncorrectFormat, fmt.Sprintf("array %s: found %d elements, expected %d", name, len(elems), count))
	}
	s.textArrayElems = elems
	return nil
}

func (matlabFormat) ArrayElement(s *Serialize, index int, v serializetype.ValueRef) error {
	if s.mode == ModeRead {
		return parseMatlabLiteral(s.textArrayElems[index], v)
	}
	lit, err := matlabLiteral(v)
	if err != nil {
		return err
	}
	s.textArrayElems = append(s.textArrayElems, lit)
	return nil
}

func (matlabFormat) EndArray(s *Serialize, name string, count int) error {
	defer func() { s.textArrayElems = nil }()
	if s.mode == ModeRead {
		return nil
	}
	ch, err := s.channelInUse()
	if err != nil {
		return err
	}
	prefix := matlabPath(s, name) + " = ["
	line := wrapJoin("", prefix, s.textArrayElems, s.columnWrap) + "];\n"
	_, err = ch.Write([]byte(line))
	return err
}

func (matlabFormat) BeginStructArray(s *Serialize, name string, count int) error {
	s.structArrayNames = append(s.structArrayNames, name)
	return nil
}

func (matlabFormat) StructArraySeparator(s *Serialize, index int, before bool) error {
	if before {
		base := s.structArrayNames[len(s.structArrayNames)-1]
		s.pathStack = append(s.pathStack, fmt.Sprintf("%s(%d)", base, index+1))
		return nil
	}
	s.pathStack = s.pathStack[:len(s.pathStack)-1]
	return nil
}

func (matlabFormat) EndStructArray(s *Serialize, name string) error {
	s.structArrayNames = s.structArrayNames[:len(s.structArrayNames)-1]
	return nil
}
