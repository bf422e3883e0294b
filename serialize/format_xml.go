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
	RegisterFormat("Xml", xmlFormat{})
}

// xmlFormat is the markup plugin (spec §4.4 "Xml"): structs become
// <struct type="T" name="n">...</struct>, a scalar field
// <field type="T" name="n">value</field> with the value as element content,
// and arrays <array type="T" name="n" size="k"> wrapping one
// <element index="i">value</element> per item. Struct arrays reuse that
// same <array>/<element index="i"> wrapper, with each <element> containing
// a nested <struct>...</struct> instead of raw value content. Elements
// stream one at a time -- an XML array's length is already carried in the
// size attribute, so nothing needs the full element list before it can be
// written.
type xmlFormat struct{}

func (xmlFormat) Name() string { return "Xml" }

func (xmlFormat) AllowedModes() Mode {
	return modeBit(ModeWrite) | modeBit(ModeRead) | modeBit(ModeCalc)
}

var xmlEscaper = strings.NewReplacer(`&`, "&amp;", `<`, "&lt;", `>`, "&gt;", `"`, "&quot;", `'`, "&apos;")
var xmlUnescaper = strings.NewReplacer("&amp;", `&`, "&lt;", `<`, "&gt;", `>`, "&quot;", `"`, "&apos;", `'`)

func xmlEscape(s string) string   { return xmlEscaper.Replace(s) }
func xmlUnescape(s string) string { return xmlUnescaper.Replace(s) }

// xmlAttrStr renders one double-quoted, entity-escaped XML attribute.
func xmlAttrStr(key, val string) string {
	return fmt.Sprintf(`%s="%s"`, key, xmlEscape(val))
}

// xmlAttr extracts the value of attribute key from a tag line, e.g.
// xmlAttr(`<array type="Int32" name="v" size="3">`, "size") == "3", true.
func xmlAttr(line, key string) (string, bool) {
	marker := key + `="`
	i := strings.Index(line, marker)
	if i < 0 {
		return "", false
	}
	rest := line[i+len(marker):]
	j := strings.IndexByte(rest, '"')
	if j < 0 {
		return "", false
	}
	return xmlUnescape(rest[:j]), true
}

// xmlContent extracts the text between the end of a tag's opening bracket
// and its matching "</tag>", e.g. xmlContent(`<field ...>3</field>`,
// "field") == "3", true. Value content is always on one line, since the
// literal it wraps is produced by the same scalarLiteral/xmlEscape pair the
// other text plugins use.
func xmlContent(line, tag string) (string, bool) {
	open := strings.IndexByte(line, '>')
	if open < 0 {
		return "", false
	}
	closeMarker := "</" + tag + ">"
	closeIdx := strings.LastIndex(line, closeMarker)
	if closeIdx < 0 || closeIdx < open+1 {
		return "", false
	}
	return xmlUnescape(line[open+1 : closeIdx]), true
}

func (xmlFormat) BeginType(s *Serialize, typeName, name string, flatten bool) error {
	ch, err := s.channelInUse()
	if err != nil {
		return err
	}
	if flatten {
		return nil
	}
	if s.mode == ModeRead {
		_, err := readLine(ch)
		return err
	}
	root := s.opts.GetOr("root", "struct")
	line := fmt.Sprintf("%s<%s %s %s>\n", indentOf(s), root, xmlAttrStr("type", typeName), xmlAttrStr("name", name))
	_, err = ch.Write([]byte(line))
	return err
}

func (xmlFormat) EndType(s *Serialize, typeName, name string, flatten bool) error {
	ch, err := s.channelInUse()
	if err != nil {
		return err
	}
	if flatten {
		return nil
	}
	root := s.opts.GetOr("root", "struct")
	if s.mode == ModeRead {
		_, err := readLine(ch)
		return err
	}
	_, err = ch.Write([]byte(fmt.Sprintf("%s</%s>\n", indentOf(s), root)))
	return err
}

func (xmlFormat) DoSerialize(s *Serialize, name string, v serializetype.ValueRef) error {
	ch, err := s.channelInUse()
	if err != nil {
		return err
	}
	if s.mode == ModeRead {
		line, err := readLine(ch)
		if err != nil {
			return err
		}
		val, ok := xmlContent(line, "field")
		if !ok {
			return errors.E(errors.IncorrectFormat, "malformed field element: "+line)
		}
		return parseScalarLiteral(val, v)
	}
	lit, err := scalarLiteral(v)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("%s<field %s %s>%s</field>\n", indentOf(s), xmlAttrStr("type", v.Type.String()), xmlAttrStr("name", name), xmlEscape(lit))
	_, err = ch.Write([]byte(line))
	return err
}

func (xmlFormat) BeginArray(s *Serialize, name string, elemType serializetype.Type, count int) error {
	ch, err := s.channelInUse()
	if err != nil {
		return err
	}
	if s.mode == ModeRead {
		line, err := readLine(ch)
		if err != nil {
			return err
		}
		ss, ok := xmlAttr(line, "size")
		if !ok {
			return errors.E(errors.IncorrectFormat, "array missing size attribute: "+line)
		}
		n, convErr := strconv.Atoi(ss)
		if convErr != nil {
			return errors.E(errors.IncorrectFormat, "bad array size: "+ss, convErr)
		}
		if n != count {
			return errors.E(errors.IncorrectFormat, fmt.Sprintf("array %s: size %d does not match requested %d", name, n, count))
		}
		s.indent++
		return nil
	}
	line := fmt.Sprintf("%s<array %s %s %s>\n", indentOf(s),
		xmlAttrStr("type", elemType.String()), xmlAttrStr("name", name), xmlAttrStr("size", strconv.Itoa(count)))
	if _, err := ch.Write([]byte(line)); err != nil {
		return err
	}
	s.indent++
	return nil
}

func (xmlFormat) ArrayElement(s *Serialize, index int, v serializetype.ValueRef) error {
	ch, err := s.channelInUse()
	if err != nil {
		return err
	}
	if s.mode == ModeRead {
		line, err := readLine(ch)
		if err != nil {
			return err
		}
		val, ok := xmlContent(line, "element")
		if !ok {
			return errors.E(errors.IncorrectFormat, "malformed element: "+line)
		}
		return parseScalarLiteral(val, v)
	}
	lit, err := scalarLiteral(v)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("%s<element %s>%s</element>\n", indentOf(s), xmlAttrStr("index", strconv.Itoa(index)), xmlEscape(lit))
	_, err = ch.Write([]byte(line))
	return err
}

func (xmlFormat) EndArray(s *Serialize, name string, count int) error {
	s.indent--
	ch, err := s.channelInUse()
	if err != nil {
		return err
	}
	if s.mode == ModeRead {
		_, err := readLine(ch)
		return err
	}
	_, err = ch.Write([]byte(indentOf(s) + "</array>\n"))
	return err
}

// BeginStructArray/EndStructArray reuse the scalar array's own <array> tag
// (spec §4.4: "struct arrays use the same <element index="i"> wrapper
// around nested <struct>s"), rather than a bespoke struct-array element.
// There is no scalar elemType here, so the size attribute is the array
// tag's only content-describing attribute.
func (xmlFormat) BeginStructArray(s *Serialize, name string, count int) error {
	ch, err := s.channelInUse()
	if err != nil {
		return err
	}
	if s.mode == ModeRead {
		line, err := readLine(ch)
		if err != nil {
			return err
		}
		ss, ok := xmlAttr(line, "size")
		if !ok {
			return errors.E(errors.IncorrectFormat, "array missing size attribute: "+line)
		}
		n, convErr := strconv.Atoi(ss)
		if convErr != nil {
			return errors.E(errors.IncorrectFormat, "bad array size: "+ss, convErr)
		}
		if n != count {
			return errors.E(errors.IncorrectFormat, fmt.Sprintf("array %s: size %d does not match requested %d", name, n, count))
		}
		s.indent++
		return nil
	}
	line := fmt.Sprintf("%s<array %s %s>\n", indentOf(s), xmlAttrStr("name", name), xmlAttrStr("size", strconv.Itoa(count)))
	if _, err := ch.Write([]byte(line)); err != nil {
		return err
	}
	s.indent++
	return nil
}

// StructArraySeparator opens (before==true) or closes (before==false) the
// <element index="i"> wrapper around one struct-array entry's nested
// <struct>...</struct>.
func (xmlFormat) StructArraySeparator(s *Serialize, index int, before bool) error {
	ch, err := s.channelInUse()
	if err != nil {
		return err
	}
	if s.mode == ModeRead {
		if _, err := readLine(ch); err != nil {
			return err
		}
		if before {
			s.indent++
		} else {
			s.indent--
		}
		return nil
	}
	if before {
		line := fmt.Sprintf("%s<element %s>\n", indentOf(s), xmlAttrStr("index", strconv.Itoa(index)))
		if _, err := ch.Write([]byte(line)); err != nil {
			return err
		}
		s.indent++
		return nil
	}
	s.indent--
	_, err = ch.Write([]byte(indentOf(s) + "</element>\n"))
	return err
}

func (xmlFormat) EndStructArray(s *Serialize, name string) error {
	s.indent--
	ch, err := s.channelInUse()
	if err != nil {
		return err
	}
	if s.mode == ModeRead {
		_, err := readLine(ch)
		return err
	}
	_, err = ch.Write([]byte(indentOf(s) + "</array>\n"))
	return err
}
