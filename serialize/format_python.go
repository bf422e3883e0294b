// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package serialize

import (
	"fmt"
	"strings"

	"github.com/hrisio/hris/channel"
	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/serializetype"
)

func init() {
	RegisterFormat("Python", pythonFormat{})
}

// pythonFormat renders the whole top-level value as one Python literal
// expression (spec §4.4 "Python"), wrapped across lines with a trailing
// backslash continuation once it exceeds columnWrap. The container each
// nesting level renders as is selected by the "type"/"arrayType"/
// "structArrayType" options (AS_TUPLE, AS_LIST, AS_DICT, AS_TUPLE_NO_KEY,
// AS_LIST_NO_KEY); "_NO_KEY" variants omit the "name": prefix Go's %q gives
// every other element. Chars serialize as plain integers, same as every
// other scalar -- Python has no narrower numeric literal to fall back to.
type pythonFormat struct{}

func (pythonFormat) Name() string { return "Python" }

func (pythonFormat) AllowedModes() Mode {
	return modeBit(ModeWrite) | modeBit(ModeRead) | modeBit(ModeCalc)
}

// pyWriteNode is one container (struct, array, or struct-array) under
// construction on the write side: parts accumulates each child's already-
// rendered text, in order.
type pyWriteNode struct {
	open, close string
	keyed       bool
	parts       []string
}

func pyKind(opt string) (open, close string, keyed bool) {
	switch opt {
	case "AS_TUPLE":
		return "(", ")", true
	case "AS_LIST":
		return "[", "]", true
	case "AS_TUPLE_NO_KEY":
		return "(", ")", false
	case "AS_LIST_NO_KEY":
		return "[", "]", false
	default: // AS_DICT
		return "{", "}", true
	}
}

func (pythonFormat) pushWrite(s *Serialize, optKey, def string) *pyWriteNode {
	open, close, keyed := pyKind(s.opts.GetOr(optKey, def))
	n := &pyWriteNode{open: open, close: close, keyed: keyed}
	s.pyWriteStack = append(s.pyWriteStack, n)
	return n
}

func (pythonFormat) popWrite(s *Serialize) *pyWriteNode {
	n := s.pyWriteStack[len(s.pyWriteStack)-1]
	s.pyWriteStack = s.pyWriteStack[:len(s.pyWriteStack)-1]
	return n
}

func renderPyNode(n *pyWriteNode) string {
	return n.open + strings.Join(n.parts, ", ") + n.close
}

// attachWrite appends text as a new element of the current top write
// container, prefixed with "name": when that container renders keys.
func attachWrite(s *Serialize, name, text string) {
	if len(s.pyWriteStack) == 0 {
		return
	}
	top := s.pyWriteStack[len(s.pyWriteStack)-1]
	if top.keyed && name != "" {
		top.parts = append(top.parts, fmt.Sprintf("%q: %s", name, text))
		return
	}
	top.parts = append(top.parts, text)
}

// pythonWrap folds text onto continuation lines once it exceeds width,
// joining each fold with a trailing backslash the way a hand-wrapped Python
// statement would.
func pythonWrap(text string, width int) string {
	if width <= 0 || len(text) <= width {
		return text
	}
	var lines []string
	for len(text) > width {
		lines = append(lines, text[:width]+` \`)
		text = text[width:]
	}
	lines = append(lines, text)
	return strings.Join(lines, "\n")
}

// pyNode is one node of a parsed Python literal: either a bare scalar token
// or a container (list/tuple, scalar field set by position) or a dict
// (container, field set by quoted-string key).
type pyNode struct {
	isScalar bool
	scalar   string
	list     []*pyNode
	dict     map[string]*pyNode
	keys     []string
}

// pyCursor walks one container on the read side: idx advances across
// positional fetches (array/tuple-without-keys elements, or struct fields
// in a _NO_KEY container read back in declaration order).
type pyCursor struct {
	node *pyNode
	idx  int
}

func pyFetch(s *Serialize, name string) (*pyNode, error) {
	if len(s.pyReadStack) == 0 {
		return nil, errors.E(errors.IncorrectFormat, "no python container open")
	}
	cur := s.pyReadStack[len(s.pyReadStack)-1]
	if cur.node.dict != nil && name != "" {
		child, ok := cur.node.dict[name]
		if !ok {
			return nil, errors.E(errors.IncorrectFormat, "missing field: "+name)
		}
		return child, nil
	}
	if cur.node.dict != nil {
		if cur.idx >= len(cur.node.keys) {
			return nil, errors.E(errors.IncorrectFormat, "too few fields for: "+name)
		}
		child := cur.node.dict[cur.node.keys[cur.idx]]
		cur.idx++
		return child, nil
	}
	if cur.idx >= len(cur.node.list) {
		return nil, errors.E(errors.IncorrectFormat, "too few elements for: "+name)
	}
	child := cur.node.list[cur.idx]
	cur.idx++
	return child, nil
}

func (pythonFormat) pushRead(s *Serialize, name string) error {
	if len(s.pyReadStack) == 0 {
		ch, err := s.channelInUse()
		if err != nil {
			return err
		}
		expr, err := readPythonExpr(ch)
		if err != nil {
			return err
		}
		root, err := parsePythonLiteral(expr)
		if err != nil {
			return err
		}
		s.pyReadStack = append(s.pyReadStack, &pyCursor{node: root})
		return nil
	}
	child, err := pyFetch(s, name)
	if err != nil {
		return err
	}
	s.pyReadStack = append(s.pyReadStack, &pyCursor{node: child})
	return nil
}

func (pythonFormat) popRead(s *Serialize) {
	s.pyReadStack = s.pyReadStack[:len(s.pyReadStack)-1]
}

// readPythonExpr reads whole lines, joining backslash-continued ones with no
// intervening separator (pythonWrap may have folded mid-token), until a line
// without a trailing continuation marker ends the statement.
func readPythonExpr(ch *channel.Channel) (string, error) {
	var b strings.Builder
	for {
		line, err := readLine(ch)
		if err != nil {
			return "", err
		}
		trimmed := strings.TrimRight(line, "\n")
		if strings.HasSuffix(trimmed, ` \`) {
			b.WriteString(strings.TrimSuffix(trimmed, ` \`))
			continue
		}
		b.WriteString(trimmed)
		return b.String(), nil
	}
}

func tokenizePython(s string) []string {
	var toks []string
	n := len(s)
	i := 0
	for i < n {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(' || c == ')' || c == '[' || c == ']' || c == '{' || c == '}' || c == ',' || c == ':':
			toks = append(toks, string(c))
			i++
		case c == '"':
			j := i + 1
			for j < n && s[j] != '"' {
				if s[j] == '\\' {
					j++
				}
				j++
			}
			if j < n {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		default:
			j := i
			for j < n {
				switch s[j] {
				case ' ', '\t', '\n', '\r', '(', ')', '[', ']', '{', '}', ',', ':':
				default:
					j++
					continue
				}
				break
			}
			toks = append(toks, s[i:j])
			i = j
		}
	}
	return toks
}

type pyParser struct {
	toks []string
	pos  int
}

func (p *pyParser) peek() string {
	if p.pos < len(p.toks) {
		return p.toks[p.pos]
	}
	return ""
}

func (p *pyParser) next() string {
	t := p.peek()
	p.pos++
	return t
}

func (p *pyParser) parseValue() (*pyNode, error) {
	switch t := p.peek(); t {
	case "(", "[":
		close := ")"
		if t == "[" {
			close = "]"
		}
		p.next()
		n := &pyNode{}
		for p.peek() != close && p.peek() != "" {
			child, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			n.list = append(n.list, child)
			if p.peek() == "," {
				p.next()
			}
		}
		if p.peek() != close {
			return nil, errors.E(errors.IncorrectFormat, "unterminated python container")
		}
		p.next()
		return n, nil
	case "{":
		p.next()
		n := &pyNode{dict: map[string]*pyNode{}}
		for p.peek() != "}" && p.peek() != "" {
			keyTok := p.next()
			key, err := unquoteString(keyTok)
			if err != nil {
				return nil, err
			}
			if p.peek() == ":" {
				p.next()
			}
			child, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			n.dict[key] = child
			n.keys = append(n.keys, key)
			if p.peek() == "," {
				p.next()
			}
		}
		if p.peek() != "}" {
			return nil, errors.E(errors.IncorrectFormat, "unterminated python dict")
		}
		p.next()
		return n, nil
	case "":
		return nil, errors.E(errors.IncorrectFormat, "unexpected end of python literal")
	default:
		p.next()
		return &pyNode{isScalar: true, scalar: t}, nil
	}
}

func parsePythonLiteral(expr string) (*pyNode, error) {
	p := &pyParser{toks: tokenizePython(expr)}
	return p.parseValue()
}

func (f pythonFormat) BeginType(s *Serialize, typeName, name string, flatten bool) error {
	if flatten {
		return nil
	}
	if s.mode == ModeRead {
		return f.pushRead(s, name)
	}
	f.pushWrite(s, "type", "AS_DICT")
	return nil
}

func (f pythonFormat) EndType(s *Serialize, typeName, name string, flatten bool) error {
	if flatten {
		return nil
	}
	if s.mode == ModeRead {
		f.popRead(s)
		return nil
	}
	node := f.popWrite(s)
	text := renderPyNode(node)
	if s.nesting == 1 {
		ch, err := s.channelInUse()
		if err != nil {
			return err
		}
		_, err = ch.Write([]byte(pythonWrap(text, s.columnWrap) + "\n"))
		return err
	}
	attachWrite(s, name, text)
	return nil
}

func (pythonFormat) DoSerialize(s *Serialize, name string, v serializetype.ValueRef) error {
	if s.mode == ModeRead {
		node, err := pyFetch(s, name)
		if err != nil {
			return err
		}
		return parseScalarLiteral(node.scalar, v)
	}
	lit, err := scalarLiteral(v)
	if err != nil {
		return err
	}
	attachWrite(s, name, lit)
	return nil
}

func (f pythonFormat) BeginArray(s *Serialize, name string, elemType serializetype.Type, count int) error {
	if s.mode == ModeRead {
		return f.pushRead(s, name)
	}
	f.pushWrite(s, "arrayType", "AS_LIST_NO_KEY")
	return nil
}

func (pythonFormat) ArrayElement(s *Serialize, index int, v serializetype.ValueRef) error {
	if s.mode == ModeRead {
		node, err := pyFetch(s, "")
		if err != nil {
			return err
		}
		return parseScalarLiteral(node.scalar, v)
	}
	lit, err := scalarLiteral(v)
	if err != nil {
		return err
	}
	attachWrite(s, "", lit)
	return nil
}

func (f pythonFormat) EndArray(s *Serialize, name string, count int) error {
	if s.mode == ModeRead {
		f.popRead(s)
		return nil
	}
	node := f.popWrite(s)
	attachWrite(s, name, renderPyNode(node))
	return nil
}

func (f pythonFormat) BeginStructArray(s *Serialize, name string, count int) error {
	if s.mode == ModeRead {
		return f.pushRead(s, name)
	}
	f.pushWrite(s, "structArrayType", "AS_LIST_NO_KEY")
	return nil
}

func (pythonFormat) StructArraySeparator(s *Serialize, index int, before bool) error {
	return nil
}

func (f pythonFormat) EndStructArray(s *Serialize, name string) error {
	if s.mode == ModeRead {
		f.popRead(s)
		return nil
	}
	node := f.popWrite(s)
	attachWrite(s, name, renderPyNode(node))
	return nil
}
