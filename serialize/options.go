// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package serialize

import "strings"

// Options holds a plugin's parsed opts string: whitespace-separated bare
// flags (e.g. "LITTLE_ENDIAN") or key=value pairs (e.g. "root=Point"),
// mirroring the FormatPlugin record's optionsNew/optionsInit/optionsSet
// family collapsed into a single parsed value, since every plugin here is
// stateless and options are threaded through call arguments instead of
// plugin-owned storage.
type Options struct {
	raw string
	kv  map[string]string
}

// ParseOptions parses an opts string into an Options value. An empty string
// yields an empty, valid Options.
func ParseOptions(s string) *Options {
	o := &Options{raw: s, kv: map[string]string{}}
	for _, tok := range strings.Fields(s) {
		if i := strings.IndexByte(tok, '='); i >= 0 {
			o.kv[tok[:i]] = tok[i+1:]
		} else {
			o.kv[tok] = "TRUE"
		}
	}
	return o
}

// Get returns the value associated with key, and whether key was present.
func (o *Options) Get(key string) (string, bool) {
	if o == nil {
		return "", false
	}
	v, ok := o.kv[key]
	return v, ok
}

// GetOr returns the value for key, or def if key is absent.
func (o *Options) GetOr(key, def string) string {
	if v, ok := o.Get(key); ok {
		return v
	}
	return def
}

// Is reports whether key is present as a bare flag (or set to "TRUE").
func (o *Options) Is(key string) bool {
	v, ok := o.Get(key)
	return ok && v == "TRUE"
}

// String returns the original opts string Options was parsed from.
func (o *Options) String() string {
	if o == nil {
		return ""
	}
	return o.raw
}

// SetProperty and GetProperty give plugins a uniform property-bag view over
// Options, matching the FormatPlugin record's optionsSetProperty/
// optionsGetProperty pair (§3 Data Model).
func (o *Options) SetProperty(key, value string) {
	if o.kv == nil {
		o.kv = map[string]string{}
	}
	o.kv[key] = value
}

func (o *Options) GetProperty(key string) (string, bool) {
	return o.Get(key)
}
