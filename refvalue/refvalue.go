// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package refvalue parses and produces the key=value pairs that make up the
// body of a v2.0 header. A List is ordered and holds each key once: a Set
// for a key that is already present overwrites its value in place, so the
// last Set for a key wins on Get, matching the header parser's "later
// key-value wins" rule.
package refvalue

import (
	"strings"

	"github.com/hrisio/hris/errors"
)

// A Pair is one (key, value) entry in a List.
type Pair struct {
	Key   string
	Value string
}

// A List is an ordered sequence of Pairs, produced by Parse or built up with
// Set calls on write.
type List struct {
	pairs []Pair
}

// Set appends key=value, or overwrites the existing entry for key if one is
// already present.
func (l *List) Set(key, value string) {
	for i := range l.pairs {
		if l.pairs[i].Key == key {
			l.pairs[i].Value = value
			return
		}
	}
	l.pairs = append(l.pairs, Pair{key, value})
}

// Get returns the value for key and whether it was present.
func (l *List) Get(key string) (string, bool) {
	for i := range l.pairs {
		if l.pairs[i].Key == key {
			return l.pairs[i].Value, true
		}
	}
	return "", false
}

// MustGet returns the value for key, or an empty string if absent.
func (l *List) MustGet(key string) string {
	v, _ := l.Get(key)
	return v
}

// Pairs returns the list's entries in encounter order.
func (l *List) Pairs() []Pair {
	return l.pairs
}

// Reset empties the list for reuse, avoiding a fresh allocation on the next
// header parse the way the source's free-pool avoided allocator churn.
func (l *List) Reset() {
	l.pairs = l.pairs[:0]
}

// Format renders the list as `key = value` / `key = 'quoted value'` pairs
// separated by single spaces, in encounter order.
func (l *List) Format() string {
	var b strings.Builder
	for i, p := range l.pairs {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p.Key)
		b.WriteString(" = ")
		if needsQuoting(p.Value) {
			b.WriteByte('\'')
			b.WriteString(escape(p.Value))
			b.WriteByte('\'')
		} else {
			b.WriteString(p.Value)
		}
	}
	return b.String()
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\'' || r == '\\' {
			return true
		}
	}
	return false
}

func escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Parse reads a sequence of `key = value` / `key = 'quoted value'` pairs from
// s, in any order, returning the populated List. Parse is used by the v2.0
// header decoder on the text following the preamble and version.
func Parse(s string) (*List, error) {
	l := &List{}
	i := 0
	n := len(s)
	for i < n {
		i = skipSpace(s, i)
		if i >= n {
			break
		}
		keyStart := i
		for i < n && s[i] != '=' && s[i] != ' ' && s[i] != '\t' {
			i++
		}
		key := s[keyStart:i]
		if key == "" {
			return nil, errors.E(errors.BadInfoString, "expected key in refvalue list")
		}
		i = skipSpace(s, i)
		if i >= n || s[i] != '=' {
			return nil, errors.E(errors.BadInfoString, "expected '=' after key "+key)
		}
		i++ // consume '='
		i = skipSpace(s, i)
		if i >= n {
			return nil, errors.E(errors.BadInfoString, "expected value for key "+key)
		}
		var value string
		if s[i] == '\'' {
			i++
			var b strings.Builder
			for i < n && s[i] != '\'' {
				if s[i] == '\\' && i+1 < n {
					i++
				}
				b.WriteByte(s[i])
				i++
			}
			if i >= n {
				return nil, errors.E(errors.BadInfoString, "unterminated quoted value for key "+key)
			}
			i++ // consume closing quote
			value = b.String()
		} else {
			valStart := i
			for i < n && s[i] != ' ' && s[i] != '\t' && s[i] != '\n' {
				i++
			}
			value = s[valStart:i]
		}
		l.Set(key, value)
	}
	return l, nil
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return i
}

// ParseV1 reads the legacy positional v1.0 body: whitespace-separated
// `type name objSize format [opts to end-of-line]`.
func ParseV1(s string) (*List, error) {
	fields := strings.Fields(s)
	if len(fields) < 4 {
		return nil, errors.E(errors.BadInfoString, "v1.0 header requires at least 4 fields")
	}
	l := &List{}
	l.Set("type", fields[0])
	l.Set("name", fields[1])
	l.Set("objSize", fields[2])
	l.Set("format", fields[3])
	if len(fields) > 4 {
		// opts runs to end-of-line verbatim, so recover it from the original
		// string rather than the already-split fields.
		idx := strings.Index(s, fields[3])
		rest := strings.TrimSpace(s[idx+len(fields[3]):])
		if rest != "" {
			l.Set("opts", rest)
		}
	}
	return l, nil
}
