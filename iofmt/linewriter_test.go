// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package iofmt_test

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrisio/hris/iofmt"
)

// saveWriter saves the calls made to Write for later comparison.
type saveWriter struct {
	writes [][]byte
}

func (w *saveWriter) Write(p []byte) (int, error) {
	pCopy := make([]byte, len(p))
	copy(pCopy, p)
	w.writes = append(w.writes, pCopy)
	return len(p), nil
}

// TestLineWriter verifies that a LineWriter calls Write on its underlying
// writer with complete lines.
func TestLineWriter(t *testing.T) {
	for _, c := range []struct {
		name      string
		makeLines func() []string
	}{
		{
			name:      "Empty",
			makeLines: func() []string { return []string{} },
		},
		{
			name: "Numbered",
			makeLines: func() []string {
				const Nlines = 1000
				lines := make([]string, Nlines)
				for i := range lines {
					lines[i] = fmt.Sprintf("line %04d", i)
				}
				return lines
			},
		},
		{
			name: "SomeEmpty",
			makeLines: func() []string {
				const Nlines = 1000
				lines := make([]string, Nlines)
				for i := range lines {
					if rand.Intn(2) == 0 {
						continue
					}
					lines[i] = fmt.Sprintf("line %04d", i)
				}
				return lines
			},
		},
		{
			name: "SomeLong",
			makeLines: func() []string {
				const Nlines = 1000
				lines := make([]string, Nlines)
				for i := range lines {
					var b strings.Builder
					fmt.Fprintf(&b, "line %04d:", i)
					for j := 0; j < rand.Intn(100); j++ {
						b.WriteString(" lorem ipsum")
					}
					lines[i] = b.String()
				}
				return lines
			},
		},
	} {
		t.Run(c.name, func(t *testing.T) {
			lines := c.makeLines()
			// bs is a concatenation of all the lines. We write this to a
			// LineWriter in random segments.
			var bs []byte
			for _, line := range lines {
				bs = append(bs, []byte(fmt.Sprintf("%s\n", line))...)
			}
			s := &saveWriter{}
			w := iofmt.LineWriter(s)
			defer func() {
				require.NoError(t, w.Close())
			}()
			for len(bs) > 0 {
				// Write in random segments.
				n := rand.Intn(20)
				if len(bs) < n {
					n = len(bs)
				}
				m, err := w.Write(bs[:n])
				require.NoError(t, err)
				require.Equal(t, n, m)
				bs = bs[n:]
			}
			var want [][]byte
			for _, line := range lines {
				want = append(want, []byte(fmt.Sprintf("%s\n", line)))
			}
			require.Equal(t, want, s.writes)
		})
	}
}

// TestLineWriterClose verifies that (*LineWriter).Close writes any remaining
// partial line to the underlying writer.
func TestLineWriterClose(t *testing.T) {
	for _, c := range []struct {
		name string
		bs   []byte
	}{
		{
			name: "Empty",
			bs:   []byte{},
		},
		{
			name: "PartialOnly",
			bs:   []byte("no terminal newline"),
		},
		{
			name: "Partial",
			bs:   []byte("line 0\nline 1\nline 2\nno terminal newline"),
		},
	} {
		t.Run(c.name, func(t *testing.T) {
			var b bytes.Buffer
			w := iofmt.LineWriter(&b)
			_, err := w.Write(c.bs)
			require.NoError(t, err)
			require.NoError(t, w.Close())
			require.Equal(t, string(c.bs), b.String())
		})
	}
}
