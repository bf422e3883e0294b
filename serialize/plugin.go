// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package serialize

import (
	"sync"

	"github.com/hrisio/hris/serializetype"
)

// FormatPlugin implements one wire format, symmetrically for Write, Read,
// and Calc modes (spec §4.4). Every method is called with the engine's
// current Options (already parsed from the opts string passed to SetFormat
// or recovered from a read header) reachable via s.opts; plugins are
// stateless values, registered once at init time, exactly like a Channel
// BackendFactory.
type FormatPlugin interface {
	// Name is the identifier written into and matched against the header's
	// format field.
	Name() string

	// BeginType opens a (possibly nested) struct scope. flatten is true
	// when the caller used BeginBaseStruct: the plugin should fold the
	// struct's fields into the enclosing scope rather than opening a new
	// one (base-type flattening, §3 Data Model).
	BeginType(s *Serialize, typeName, name string, flatten bool) error
	EndType(s *Serialize, typeName, name string, flatten bool) error

	// DoSerialize reads or writes one scalar leaf value.
	DoSerialize(s *Serialize, name string, v serializetype.ValueRef) error

	// BeginArray/EndArray bracket a scalar-element sequence; ArrayElement
	// is called once per element in between.
	BeginArray(s *Serialize, name string, elemType serializetype.Type, count int) error
	ArrayElement(s *Serialize, index int, v serializetype.ValueRef) error
	EndArray(s *Serialize, name string, count int) error

	// BeginStructArray/EndStructArray bracket a sequence of composite
	// elements; the caller wraps each element's own BeginStruct/.../EndStruct
	// in a StructArraySeparator call so the plugin can emit delimiters or
	// indices around it.
	BeginStructArray(s *Serialize, name string, count int) error
	StructArraySeparator(s *Serialize, index int, before bool) error
	EndStructArray(s *Serialize, name string) error

	// AllowedModes reports which of ModeWrite/ModeRead/ModeCalc (OR'd
	// together as bits, see modeBit) the plugin supports. Every plugin
	// must support at least Calc (spec §4.4).
	AllowedModes() Mode
}

func modeBit(m Mode) Mode { return 1 << m }

var (
	registryMu sync.Mutex
	registry   = map[string]FormatPlugin{}
)

// RegisterFormat adds p to the process-wide format registry under name,
// modeled on recordio.RegisterTransformer: later registrations for the same
// name override earlier ones, so a caller may shadow a built-in plugin at
// startup (spec §5 "statically linked Format plugins").
func RegisterFormat(name string, p FormatPlugin) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = p
}

func lookupFormat(name string) (FormatPlugin, bool) {
	registryMu.Lock()
	defer registryMu.Unlock()
	p, ok := registry[name]
	return p, ok
}
