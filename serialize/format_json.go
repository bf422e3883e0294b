// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package serialize

import (
	"encoding/json"
	"io"

	"github.com/hrisio/hris/errors"
	"github.com/hrisio/hris/serializetype"
)

func init() {
	RegisterFormat("Json", jsonFormat{})
}

// jsonFormat emits a single valid, indented JSON value per top-level object
// (spec §4.4 "Json"), wrapped under its type name -- {"Point": {"x": 123,
// "y": 456}} -- exactly as spec §8 scenario 2 requires, not the bare
// {"x":123,"y":456} a caller might otherwise expect from a naive encoding of
// just the field dict. Arrays and struct-arrays are JSON arrays, chars
// serialize as integers like every numeric field. It builds the value as
// plain interface{} (map[string]interface{}/[]interface{}/float64/string)
// and defers to encoding/json for the actual text, rather than assembling
// JSON syntax by hand the way the other text plugins assemble their own
// grammar. A header line (when FlagNoHeader is not set) is its own
// statement ending in '\n' before the JSON payload's own (now multi-line)
// text, so there is no "stray comma" needed between header and body -- see
// DESIGN.md.
type jsonFormat struct{}

func (jsonFormat) Name() string { return "Json" }

func (jsonFormat) AllowedModes() Mode {
	return modeBit(ModeWrite) | modeBit(ModeRead) | modeBit(ModeCalc)
}

// jsonContainer is one object or array under construction on the write
// side.
type jsonContainer struct {
	isDict bool
	dict   map[string]interface{}
	list   []interface{}
}

func pushJSONWrite(s *Serialize, isDict bool) {
	c := &jsonContainer{isDict: isDict}
	if isDict {
		c.dict = map[string]interface{}{}
	}
	s.jsonWriteStack = append(s.jsonWriteStack, c)
}

func popJSONWrite(s *Serialize) interface{} {
	c := s.jsonWriteStack[len(s.jsonWriteStack)-1]
	s.jsonWriteStack = s.jsonWriteStack[:len(s.jsonWriteStack)-1]
	if c.isDict {
		return c.dict
	}
	if c.list == nil {
		return []interface{}{}
	}
	return c.list
}

func attachJSON(s *Serialize, name string, value interface{}) {
	if len(s.jsonWriteStack) == 0 {
		return
	}
	top := s.jsonWriteStack[len(s.jsonWriteStack)-1]
	if top.isDict {
		top.dict[name] = value
		return
	}
	top.list = append(top.list, value)
}

// jsonCursor walks one already-parsed JSON value on the read side.
type jsonCursor struct {
	value interface{}
	idx   int
}

func jsonFetch(s *Serialize, name string) (interface{}, error) {
	if len(s.jsonReadStack) == 0 {
		return nil, errors.E(errors.IncorrectFormat, "no json container open")
	}
	cur := s.jsonReadStack[len(s.jsonReadStack)-1]
	switch v := cur.value.(type) {
	case map[string]interface{}:
		child, ok := v[name]
		if !ok {
			return nil, errors.E(errors.IncorrectFormat, "missing json field: "+name)
		}
		return child, nil
	case []interface{}:
		if cur.idx >= len(v) {
			return nil, errors.E(errors.IncorrectFormat, "too few json elements for: "+name)
		}
		child := v[cur.idx]
		cur.idx++
		return child, nil
	default:
		return nil, errors.E(errors.IncorrectFormat, "json value is not a container")
	}
}

func assignJSONValue(raw interface{}, v serializetype.ValueRef) error {
	switch v.Type {
	case serializetype.String:
		s, ok := raw.(string)
		if !ok {
			return errors.E(errors.IncorrectFormat, "expected json string")
		}
		*v.Str = s
		return nil
	case serializetype.Float32, serializetype.Float64, serializetype.LongDouble:
		f, ok := raw.(float64)
		if !ok {
			return errors.E(errors.IncorrectFormat, "expected json number")
		}
		v.SetFloat64(f)
		return nil
	case serializetype.Uint8, serializetype.Uint16, serializetype.Uint32, serializetype.Uint64:
		f, ok := raw.(float64)
		if !ok {
			return errors.E(errors.IncorrectFormat, "expected json number")
		}
		v.SetUint64(uint64(f))
		return nil
	default:
		f, ok := raw.(float64)
		if !ok {
			return errors.E(errors.IncorrectFormat, "expected json number")
		}
		v.SetInt64(int64(f))
		return nil
	}
}

func jsonValueOf(v serializetype.ValueRef) (interface{}, error) {
	switch v.Type {
	case serializetype.String:
		if v.Str == nil {
			return "", nil
		}
		return *v.Str, nil
	case serializetype.Float32, serializetype.Float64, serializetype.LongDouble:
		return v.Float64Value(), nil
	case serializetype.Uint8, serializetype.Uint16, serializetype.Uint32, serializetype.Uint64:
		return v.Uint64Value(), nil
	case serializetype.Int8, serializetype.Int16, serializetype.Int32, serializetype.Int64, serializetype.Long:
		return v.Int64Value(), nil
	default:
		return nil, errors.E(errors.IncorrectFormat, "unsupported scalar type "+v.Type.String())
	}
}

// pushJSONRead opens a new read scope. For the outermost scope (empty
// stack) it decodes one whole JSON value directly off the channel with
// encoding/json's streaming Decoder -- necessary now that the value is
// pretty-printed across multiple lines rather than confined to one line --
// and pushes back whatever trailing bytes (typically just the final '\n')
// the decoder buffered but didn't need, so a subsequent top-level read on
// the same channel isn't starved of them. wrapKey, when non-empty, is the
// top-level type-name key the value must be unwrapped from (spec §4.4:
// a struct's JSON form is wrapped under its type name).
func pushJSONRead(s *Serialize, wrapKey, name string) error {
	if len(s.jsonReadStack) == 0 {
		ch, err := s.channelInUse()
		if err != nil {
			return err
		}
		dec := json.NewDecoder(ch)
		var root interface{}
		if err := dec.Decode(&root); err != nil {
			return errors.E(errors.IncorrectFormat, "malformed json payload", err)
		}
		if leftover, lerr := io.ReadAll(dec.Buffered()); lerr == nil && len(leftover) > 0 {
			if err := ch.Unget(leftover); err != nil {
				return err
			}
		}
		if wrapKey != "" {
			wrapped, ok := root.(map[string]interface{})
			if !ok {
				return errors.E(errors.IncorrectFormat, "json payload is not an object")
			}
			value, ok := wrapped[wrapKey]
			if !ok {
				return errors.E(errors.IncorrectFormat, "missing json top-level key: "+wrapKey)
			}
			root = value
		}
		s.jsonReadStack = append(s.jsonReadStack, &jsonCursor{value: root})
		return nil
	}
	child, err := jsonFetch(s, name)
	if err != nil {
		return err
	}
	s.jsonReadStack = append(s.jsonReadStack, &jsonCursor{value: child})
	return nil
}

func popJSONRead(s *Serialize) {
	s.jsonReadStack = s.jsonReadStack[:len(s.jsonReadStack)-1]
}

func (jsonFormat) BeginType(s *Serialize, typeName, name string, flatten bool) error {
	if flatten {
		return nil
	}
	if s.mode == ModeRead {
		wrapKey := ""
		if s.nesting == 1 {
			wrapKey = typeName
		}
		return pushJSONRead(s, wrapKey, name)
	}
	pushJSONWrite(s, true)
	return nil
}

func (jsonFormat) EndType(s *Serialize, typeName, name string, flatten bool) error {
	if flatten {
		return nil
	}
	if s.mode == ModeRead {
		popJSONRead(s)
		return nil
	}
	value := popJSONWrite(s)
	if s.nesting == 1 {
		ch, err := s.channelInUse()
		if err != nil {
			return err
		}
		wrapped := map[string]interface{}{typeName: value}
		buf, err := json.MarshalIndent(wrapped, "", "  ")
		if err != nil {
			return errors.E(errors.IncorrectFormat, "json marshal failed", err)
		}
		_, err = ch.Write(append(buf, '\n'))
		return err
	}
	attachJSON(s, name, value)
	return nil
}

func (jsonFormat) DoSerialize(s *Serialize, name string, v serializetype.ValueRef) error {
	if s.mode == ModeRead {
		raw, err := jsonFetch(s, name)
		if err != nil {
			return err
		}
		return assignJSONValue(raw, v)
	}
	val, err := jsonValueOf(v)
	if err != nil {
		return err
	}
	attachJSON(s, name, val)
	return nil
}

func (jsonFormat) BeginArray(s *Serialize, name string, elemType serializetype.Type, count int) error {
	if s.mode == ModeRead {
		return pushJSONRead(s, "", name)
	}
	pushJSONWrite(s, false)
	return nil
}

func (jsonFormat) ArrayElement(s *Serialize, index int, v serializetype.ValueRef) error {
	if s.mode == ModeRead {
		raw, err := jsonFetch(s, "")
		if err != nil {
			return err
		}
		return assignJSONValue(raw, v)
	}
	val, err := jsonValueOf(v)
	if err != nil {
		return err
	}
	attachJSON(s, "", val)
	return nil
}

func (jsonFormat) EndArray(s *Serialize, name string, count int) error {
	if s.mode == ModeRead {
		popJSONRead(s)
		return nil
	}
	attachParentList(s, name)
	return nil
}

func attachParentList(s *Serialize, name string) {
	value := popJSONWrite(s)
	attachJSON(s, name, value)
}

func (jsonFormat) BeginStructArray(s *Serialize, name string, count int) error {
	if s.mode == ModeRead {
		return pushJSONRead(s, "", name)
	}
	pushJSONWrite(s, false)
	return nil
}

func (jsonFormat) StructArraySeparator(s *Serialize, index int, before bool) error {
	return nil
}

func (jsonFormat) EndStructArray(s *Serialize, name string) error {
	if s.mode == ModeRead {
		popJSONRead(s)
		return nil
	}
	attachParentList(s, name)
	return nil
}
