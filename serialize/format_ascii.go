// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package serialize

import (
	"fmt"
	"strings"

	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/serializetype"
)

func init() {
	RegisterFormat("Ascii", asciiFormat{})
}

// asciiFormat is the textual, C-like plugin (spec §4.4 "Ascii"). Each scalar
// field is one "name = value;" statement at the current indent; arrays are a
// single "name[len] = v0 v1 ... ;" statement wrapped at columnWrap columns;
// structures open "{" and close "}" on their own line, nested two spaces per
// level. Chars serialize as their integer code (scalarLiteral), never as a
// quoted character, so a reader never has to disambiguate '0' from 0.
type asciiFormat struct{}

func (asciiFormat) Name() string { return "Ascii" }

func (asciiFormat) AllowedModes() Mode {
	return modeBit(ModeWrite) | modeBit(ModeRead) | modeBit(ModeCalc)
}

func indentOf(s *Serialize) string {
	return strings.Repeat("  ", s.indent)
}

func (asciiFormat) BeginType(s *Serialize, typeName, name string, flatten bool) error {
	ch, err := s.channelInUse()
	if err != nil {
		return err
	}
	if flatten {
		return nil
	}
	label := name
	if label == "" {
		label = typeName
	}
	if s.mode == ModeRead {
		if _, err := readLine(ch); err != nil {
			return err
		}
		return nil
	}
	line := indentOf(s) + fieldLabel(s.opts, typeName, label) + " {\n"
	_, err = ch.Write([]byte(line))
	return err
}

func (asciiFormat) EndType(s *Serialize, typeName, name string, flatten bool) error {
	ch, err := s.channelInUse()
	if err != nil {
		return err
	}
	if flatten {
		return nil
	}
	if s.mode == ModeRead {
		line, err := readLine(ch)
		if err != nil {
			return err
		}
		if strings.TrimSpace(line) != "}" {
			return errors.E(errors.IncorrectFormat, "expected '}', got: "+line)
		}
		return nil
	}
	_, err = ch.Write([]byte(indentOf(s) + "}\n"))
	return err
}

func (asciiFormat) DoSerialize(s *Serialize, name string, v serializetype.ValueRef) error {
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
			return errors.E(errors.IncorrectFormat, "malformed field statement: "+stmt)
		}
		tok := strings.TrimSuffix(strings.TrimSpace(stmt[eq+1:]), ";")
		return parseScalarLiteral(strings.TrimSpace(tok), v)
	}
	lit, err := scalarLiteral(v)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("%s%s = %s;\n", indentOf(s), fieldLabel(s.opts, v.Type.String(), name), lit)
	_, err = ch.Write([]byte(line))
	return err
}

func (asciiFormat) BeginArray(s *Serialize, name string, elemType serializetype.Type, count int) error {
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
	n, rest, err := splitArrayHeader(stmt)
	if err != nil {
		return err
	}
	if n != count {
		return errors.E(errors.IncorrectFormat, fmt.Sprintf("array %s: header length %d does not match requested %d", name, n, count))
	}
	s.textArrayElems = tokenizeElements(rest)
	if len(s.textArrayElems) != count {
		return errors.E(errors.IncorrectFormat, fmt.Sprintf("array %s: found %d elements, expected %d", name, len(s.textArrayElems), count))
	}
	return nil
}

func (asciiFormat) ArrayElement(s *Serialize, index int, v serializetype.ValueRef) error {
	if s.mode == ModeRead {
		return parseScalarLiteral(s.textArrayElems[index], v)
	}
	lit, err := scalarLiteral(v)
	if err != nil {
		return err
	}
	s.textArrayElems = append(s.textArrayElems, lit)
	return nil
}

func (asciiFormat) EndArray(s *Serialize, name string, count int) error {
	defer func() { s.textArrayElems = nil }()
	if s.mode == ModeRead {
		return nil
	}
	ch, err := s.channelInUse()
	if err != nil {
		return err
	}
	prefix := fmt.Sprintf("%s[%d] = ", fieldLabel(s.opts, "", name), count)
	line := wrapJoin(indentOf(s), prefix, s.textArrayElems, s.columnWrap) + ";\n"
	_, err = ch.Write([]byte(line))
	return err
}

func (asciiFormat) BeginStructArray(s *Serialize, name string, count int) error {
	ch, err := s.channelInUse()
	if err != nil {
		return err
	}
	if s.mode == ModeRead {
		stmt, err := readLine(ch)
		if err != nil {
			return err
		}
		if !strings.HasSuffix(strings.TrimSpace(stmt), "(") {
			return errors.E(errors.IncorrectFormat, "expected struct array open, got: "+stmt)
		}
		return nil
	}
	line := fmt.Sprintf("%s%s[%d] = (\n", indentOf(s), name, count)
	if _, err := ch.Write([]byte(line)); err != nil {
		return err
	}
	s.indent++
	return nil
}

func (asciiFormat) StructArraySeparator(s *Serialize, index int, before bool) error {
	if !before || s.mode == ModeRead {
		return nil
	}
	return nil
}

func (asciiFormat) EndStructArray(s *Serialize, name string) error {
	s.indent--
	ch, err := s.channelInUse()
	if err != nil {
		return err
	}
	if s.mode == ModeRead {
		stmt, err := readStatement(ch)
		if err != nil {
			return err
		}
		if strings.TrimSpace(stmt) != ");" {
			return errors.E(errors.IncorrectFormat, "expected struct array close, got: "+stmt)
		}
		return nil
	}
	_, err = ch.Write([]byte(indentOf(s) + ");\n"))
	return err
}
