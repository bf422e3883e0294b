// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package serialize

import (
	"strconv"
	"strings"

	"github.com/hrisio/hris/channel"
	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/serializetype"
)

// quoteString and unquoteString give the text-based plugins (Ascii, Xml,
// Matlab, Python; Json goes through encoding/json instead) a single
// C-escaped string literal convention, built
// on strconv's Go-syntax quoting: the escape set (\", \\, \n, \t, ...) agrees
// with C's for the characters these formats actually emit.
func quoteString(s string) string {
	return strconv.Quote(s)
}

func unquoteString(s string) (string, error) {
	v, err := strconv.Unquote(s)
	if err != nil {
		return "", errors.E(errors.IncorrectFormat, "malformed quoted string: "+s, err)
	}
	return v, nil
}

// scalarLiteral renders v as the bare token a text plugin writes for one
// scalar field or array element. Chars (Int8/Uint8) are rendered as their
// integer code, never as a quoted character, to avoid ambiguity (spec §4.4
// "Chars are always serialized as their integer code").
func scalarLiteral(v serializetype.ValueRef) (string, error) {
	switch v.Type {
	case serializetype.String:
		s := ""
		if v.Str != nil {
			s = *v.Str
		}
		return quoteString(s), nil
	case serializetype.Float32, serializetype.Float64, serializetype.LongDouble:
		return strconv.FormatFloat(v.Float64Value(), 'g', -1, 64), nil
	case serializetype.Uint8, serializetype.Uint16, serializetype.Uint32, serializetype.Uint64:
		return strconv.FormatUint(v.Uint64Value(), 10), nil
	case serializetype.Int8, serializetype.Int16, serializetype.Int32, serializetype.Int64, serializetype.Long:
		return strconv.FormatInt(v.Int64Value(), 10), nil
	default:
		return "", errors.E(errors.IncorrectFormat, "unsupported scalar type "+v.Type.String())
	}
}

// parseScalarLiteral is scalarLiteral's inverse: it parses tok and stores the
// result into v's destination.
func parseScalarLiteral(tok string, v serializetype.ValueRef) error {
	switch v.Type {
	case serializetype.String:
		s, err := unquoteString(tok)
		if err != nil {
			return err
		}
		*v.Str = s
		return nil
	case serializetype.Float32, serializetype.Float64, serializetype.LongDouble:
		f, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return errors.E(errors.IncorrectFormat, "bad float literal: "+tok, err)
		}
		v.SetFloat64(f)
		return nil
	case serializetype.Uint8, serializetype.Uint16, serializetype.Uint32, serializetype.Uint64:
		n, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return errors.E(errors.IncorrectFormat, "bad unsigned literal: "+tok, err)
		}
		v.SetUint64(n)
		return nil
	case serializetype.Int8, serializetype.Int16, serializetype.Int32, serializetype.Int64, serializetype.Long:
		n, err := strconv.ParseInt(tok, 10, 64)
		if err != nil {
			return errors.E(errors.IncorrectFormat, "bad integer literal: "+tok, err)
		}
		v.SetInt64(n)
		return nil
	default:
		return errors.E(errors.IncorrectFormat, "unsupported scalar type "+v.Type.String())
	}
}

// fieldLabel builds the name a field or struct statement opens with, honoring
// the WITH_TYPE option (spec §4.4 Ascii: "An optional WITH_TYPE=TRUE option
// prefixes every field with its type name").
func fieldLabel(opts *Options, typeTag, name string) string {
	if opts.Is("WITH_TYPE") && typeTag != "" {
		return typeTag + " " + name
	}
	return name
}

// wrapJoin renders elems as a space-separated token list, folding onto a
// continuation line (indented to align under prefix) whenever the current
// line would exceed width columns. The caller supplies prefix ("name[3] = ")
// already including trailing " = " so continuation indent lines up with the
// first element.
func wrapJoin(indent, prefix string, elems []string, width int) string {
	var b strings.Builder
	b.WriteString(indent)
	b.WriteString(prefix)
	col := len(indent) + len(prefix)
	contIndent := indent + strings.Repeat(" ", len(prefix))
	for i, e := range elems {
		sep := ""
		if i > 0 {
			sep = " "
		}
		if i > 0 && col+len(sep)+len(e) > width {
			b.WriteString("\n")
			b.WriteString(contIndent)
			col = len(contIndent)
			sep = ""
		}
		b.WriteString(sep)
		b.WriteString(e)
		col += len(sep) + len(e)
	}
	return b.String()
}

// readStatement reads whole lines from ch, joining them with a single space,
// until a line's trimmed form ends with ';' or EOF is hit. This lets a text
// plugin's own wrapJoin output (which may fold an array statement across
// several lines) be read back as one logical statement.
func readStatement(ch *channel.Channel) (string, error) {
	var parts []string
	for {
		line, err := readLine(ch)
		trimmed := strings.TrimRight(line, "\n")
		trimmed = strings.TrimSpace(trimmed)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
		if err != nil {
			if len(parts) == 0 {
				return "", err
			}
			break
		}
		if strings.HasSuffix(trimmed, ";") {
			break
		}
	}
	return strings.Join(parts, " "), nil
}

// splitArrayHeader parses a "label[count] = " prefix (as emitted by
// wrapJoin/fieldLabel for an array statement) off of stmt, returning the
// element count and the remaining tokens.
func splitArrayHeader(stmt string) (count int, rest string, err error) {
	eq := strings.Index(stmt, "=")
	if eq < 0 {
		return 0, "", errors.E(errors.IncorrectFormat, "malformed array statement: "+stmt)
	}
	head := strings.TrimSpace(stmt[:eq])
	rest = strings.TrimSpace(stmt[eq+1:])
	rest = strings.TrimSuffix(strings.TrimSpace(rest), ";")
	open := strings.LastIndexByte(head, '[')
	close := strings.LastIndexByte(head, ']')
	if open < 0 || close < 0 || close < open {
		return 0, "", errors.E(errors.IncorrectFormat, "malformed array length in: "+head)
	}
	n, convErr := strconv.Atoi(strings.TrimSpace(head[open+1 : close]))
	if convErr != nil {
		return 0, "", errors.E(errors.IncorrectFormat, "bad array length in: "+head, convErr)
	}
	return n, rest, nil
}

// tokenizeElements splits a whitespace-separated element list into tokens,
// treating a double-quoted run (with backslash escapes) as a single token so
// a string array's elements survive embedded spaces.
func tokenizeElements(s string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	escaped := false
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && inQuote:
			cur.WriteRune(r)
			escaped = true
		case r == '"':
			cur.WriteRune(r)
			inQuote = !inQuote
		case !inQuote && (r == ' ' || r == '\t'):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}
