// Copyright 2021 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package iofmt

import (
	"bytes"
	"io"
)

type lineWriter struct {
	w   io.Writer
	buf []byte
}

var newline = []byte{'\n'}

// LineWriter returns an io.WriteCloser that only calls w.Write with
// complete lines, buffering any trailing partial line until the next
// Write supplies its newline or Close flushes it. The StdOut/StdErr
// backends (spec §4.2) wrap the underlying file descriptor in one of
// these so a struct's text-format output -- written scalar by scalar,
// field by field -- reaches the terminal a whole line at a time rather
// than interleaved with another writer sharing the same fd.
//
//  linew := iofmt.LineWriter(os.Stdout)
//  defer linew.Close()
//
// Close writes any remaining partial line to the underlying writer.
func LineWriter(w io.Writer) io.WriteCloser {
	return &lineWriter{w: w}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	var n int
	for {
		i := bytes.Index(p, newline)
		switch i {
		case -1:
			w.buf = append(w.buf, p...)
			return n + len(p), nil
		default:
			var err error
			if len(w.buf) > 0 {
				w.buf = append(w.buf, p[:i+1]...)
				_, err = w.w.Write(w.buf)
				w.buf = w.buf[:0]
			} else {
				_, err = w.w.Write(p[:i+1])
			}
			n += i + 1
			if err != nil {
				return n, err
			}
			p = p[i+1:]
		}
	}
}

func (w *lineWriter) Close() error {
	if len(w.buf) == 0 {
		return nil
	}
	_, err := w.w.Write(w.buf)
	w.buf = nil
	return err
}
