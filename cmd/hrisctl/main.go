// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Command hrisctl is a small demonstration CLI: it translates a single
// top-level record between two of the registered Format Plugins, reading
// from one info string and writing to another.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/google/gops/agent"

	"github.com/hrisio/hris/channel"
	"github.com/hrisio/hris/log"
	"github.com/hrisio/hris/serialize"
	"github.com/hrisio/hris/serializetype"
)

var (
	gopsFlag   = flag.Bool("gops", false, "enable the gops diagnostics agent")
	fromInfo   = flag.String("from", "StdIn://", "Channel info string to read from")
	toInfo     = flag.String("to", "StdOut://", "Channel info string to write to")
	fromFormat = flag.String("from-format", "Json", "format plugin to decode -from with")
	toFormat   = flag.String("to-format", "Ascii", "format plugin to encode -to with")
)

func main() {
	log.AddFlags()
	flag.Parse()

	if *gopsFlag {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Printf("hrisctl: gops agent did not start: %v", err)
		}
	}

	if err := translate(*fromInfo, *fromFormat, *toInfo, *toFormat); err != nil {
		fmt.Fprintln(os.Stderr, "hrisctl:", err)
		os.Exit(1)
	}
}

// record is the demonstration payload: a single named tag and a count,
// representative of the scalar-plus-string shape every Format Plugin must
// round-trip identically (spec §8 scenario 1).
type record struct {
	Tag   string
	Count int32
}

func translate(fromInfo, fromFormat, toInfo, toFormat string) error {
	src := channel.New()
	if err := src.Open(fromInfo, channel.RdOnly, 0); err != nil {
		return err
	}
	defer src.Close()

	dst := channel.New()
	if err := dst.Open(toInfo, channel.WrOnly, 0); err != nil {
		return err
	}
	defer dst.Close()

	r := serialize.New()
	r.SetStream(src)
	if err := r.SetFormat(fromFormat, ""); err != nil {
		return err
	}
	if err := r.SetMode(serialize.ModeRead, serialize.StreamNormal, 0); err != nil {
		return err
	}

	var rec record
	if err := r.Run(func(s *serialize.Serialize) error {
		if err := s.BeginStruct("Record", "rec"); err != nil {
			return err
		}
		if err := s.Field("tag", serializetype.ValueRef{Type: serializetype.String, Str: &rec.Tag}); err != nil {
			return err
		}
		if err := s.Field("count", serializetype.ValueRef{Type: serializetype.Int32, I32: &rec.Count}); err != nil {
			return err
		}
		return s.EndStruct("Record", "rec")
	}); err != nil {
		return err
	}

	w := serialize.New()
	w.SetStream(dst)
	if err := w.SetFormat(toFormat, ""); err != nil {
		return err
	}
	if err := w.SetMode(serialize.ModeWrite, serialize.StreamFlush, serialize.FlagAutoCalc); err != nil {
		return err
	}
	return w.Run(func(s *serialize.Serialize) error {
		if err := s.BeginStruct("Record", "rec"); err != nil {
			return err
		}
		if err := s.Field("tag", serializetype.ValueRef{Type: serializetype.String, Str: &rec.Tag}); err != nil {
			return err
		}
		if err := s.Field("count", serializetype.ValueRef{Type: serializetype.Int32, I32: &rec.Count}); err != nil {
			return err
		}
		return s.EndStruct("Record", "rec")
	})
}
