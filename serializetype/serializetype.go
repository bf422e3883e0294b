// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package serializetype defines the closed set of primitive types the
// serialize engine and its format plugins operate on, plus a typed ValueRef
// that replaces the C source's printf/scanf variadic argument list with an
// explicit, self-describing sum type (DESIGN NOTES §9, "From printf-macro
// family to a typed I/O layer").
package serializetype

import "fmt"

// Type is a closed enumeration naming a primitive serializable kind.
type Type int

const (
	Invalid Type = iota
	Int8
	Uint8
	Int16
	Uint16
	Int32
	Uint32
	Int64
	Uint64
	Long
	Float32
	Float64
	LongDouble
	String

	// Array variants: a scalar-valued contiguous sequence of statically
	// known element size. ArrayOf(t) maps a scalar Type to its array Type.
	ArrayInt8
	ArrayUint8
	ArrayInt16
	ArrayUint16
	ArrayInt32
	ArrayUint32
	ArrayInt64
	ArrayUint64
	ArrayLong
	ArrayFloat32
	ArrayFloat64
	ArrayLongDouble
)

var names = map[Type]string{
	Invalid:         "invalid",
	Int8:            "int8",
	Uint8:           "uint8",
	Int16:           "int16",
	Uint16:          "uint16",
	Int32:           "int32",
	Uint32:          "uint32",
	Int64:           "int64",
	Uint64:          "uint64",
	Long:            "long",
	Float32:         "float",
	Float64:         "double",
	LongDouble:      "long double",
	String:          "string",
	ArrayInt8:       "int8[]",
	ArrayUint8:      "uint8[]",
	ArrayInt16:      "int16[]",
	ArrayUint16:     "uint16[]",
	ArrayInt32:      "int32[]",
	ArrayUint32:     "uint32[]",
	ArrayInt64:      "int64[]",
	ArrayUint64:     "uint64[]",
	ArrayLong:       "long[]",
	ArrayFloat32:    "float[]",
	ArrayFloat64:    "double[]",
	ArrayLongDouble: "long double[]",
}

func (t Type) String() string {
	if s, ok := names[t]; ok {
		return s
	}
	return fmt.Sprintf("serializetype.Type(%d)", int(t))
}

// ElemSize returns the natural wire width, in bytes, of one scalar element of
// t (or of one element of an array Type). Strings have no fixed element
// size and return 0.
func (t Type) ElemSize() int {
	switch t {
	case Int8, Uint8, ArrayInt8, ArrayUint8:
		return 1
	case Int16, Uint16, ArrayInt16, ArrayUint16:
		return 2
	case Int32, Uint32, Float32, ArrayInt32, ArrayUint32, ArrayFloat32:
		return 4
	case Int64, Uint64, Long, Float64, ArrayInt64, ArrayUint64, ArrayLong, ArrayFloat64:
		return 8
	case LongDouble, ArrayLongDouble:
		return 16
	default:
		return 0
	}
}

// IsArray reports whether t is one of the Array* variants.
func (t Type) IsArray() bool {
	return t >= ArrayInt8 && t <= ArrayLongDouble
}

// Scalar returns the scalar Type underlying an array Type; it is the
// identity on scalar Types.
func (t Type) Scalar() Type {
	switch t {
	case ArrayInt8:
		return Int8
	case ArrayUint8:
		return Uint8
	case ArrayInt16:
		return Int16
	case ArrayUint16:
		return Uint16
	case ArrayInt32:
		return Int32
	case ArrayUint32:
		return Uint32
	case ArrayInt64:
		return Int64
	case ArrayUint64:
		return Uint64
	case ArrayLong:
		return Long
	case ArrayFloat32:
		return Float32
	case ArrayFloat64:
		return Float64
	case ArrayLongDouble:
		return LongDouble
	default:
		return t
	}
}

// ArrayOf returns the Array variant of scalar Type t.
func ArrayOf(t Type) Type {
	switch t {
	case Int8:
		return ArrayInt8
	case Uint8:
		return ArrayUint8
	case Int16:
		return ArrayInt16
	case Uint16:
		return ArrayUint16
	case Int32:
		return ArrayInt32
	case Uint32:
		return ArrayUint32
	case Int64:
		return ArrayInt64
	case Uint64:
		return ArrayUint64
	case Long:
		return ArrayLong
	case Float32:
		return ArrayFloat32
	case Float64:
		return ArrayFloat64
	case LongDouble:
		return ArrayLongDouble
	default:
		return Invalid
	}
}

// A ValueRef is a typed reference to a single in-memory value or array that
// a FormatPlugin reads from or writes into. It replaces the variadic
// interface{} arguments a naive port would reach for: every scan/print call
// site names its Type explicitly and carries a pointer to the destination
// (on read) or the value (on write).
type ValueRef struct {
	Type Type

	I8  *int8
	U8  *uint8
	I16 *int16
	U16 *uint16
	I32 *int32
	U32 *uint32
	I64 *int64
	U64 *uint64
	F32 *float32
	F64 *float64
	Str *string

	// Array points at a slice header of the appropriate element type; the
	// concrete slice type is recovered with a type switch by callers that
	// need direct access (the format plugins), keeping this struct
	// reflection-free for the scalar case that dominates usage.
	Array interface{}
}

// Int64Value returns v's value widened to int64, for the signed integer
// Types. It panics if v's Type is not a signed scalar integer.
func (v ValueRef) Int64Value() int64 {
	switch v.Type {
	case Int8:
		return int64(*v.I8)
	case Int16:
		return int64(*v.I16)
	case Int32:
		return int64(*v.I32)
	case Int64, Long:
		return *v.I64
	default:
		panic("serializetype: Int64Value on non-signed-integer ValueRef")
	}
}

// Uint64Value returns v's value widened to uint64, for the unsigned integer
// Types. It panics if v's Type is not an unsigned scalar integer.
func (v ValueRef) Uint64Value() uint64 {
	switch v.Type {
	case Uint8:
		return uint64(*v.U8)
	case Uint16:
		return uint64(*v.U16)
	case Uint32:
		return uint64(*v.U32)
	case Uint64:
		return *v.U64
	default:
		panic("serializetype: Uint64Value on non-unsigned-integer ValueRef")
	}
}

// Float64Value returns v's value widened to float64, for Float32/Float64.
func (v ValueRef) Float64Value() float64 {
	switch v.Type {
	case Float32:
		return float64(*v.F32)
	case Float64, LongDouble:
		return *v.F64
	default:
		panic("serializetype: Float64Value on non-floating ValueRef")
	}
}

// SetInt64 stores n into v's destination, narrowing per v's Type. It panics
// if v's Type is not a signed scalar integer.
func (v ValueRef) SetInt64(n int64) {
	switch v.Type {
	case Int8:
		*v.I8 = int8(n)
	case Int16:
		*v.I16 = int16(n)
	case Int32:
		*v.I32 = int32(n)
	case Int64, Long:
		*v.I64 = n
	default:
		panic("serializetype: SetInt64 on non-signed-integer ValueRef")
	}
}

// SetUint64 stores n into v's destination, narrowing per v's Type.
func (v ValueRef) SetUint64(n uint64) {
	switch v.Type {
	case Uint8:
		*v.U8 = uint8(n)
	case Uint16:
		*v.U16 = uint16(n)
	case Uint32:
		*v.U32 = uint32(n)
	case Uint64:
		*v.U64 = n
	default:
		panic("serializetype: SetUint64 on non-unsigned-integer ValueRef")
	}
}

// SetFloat64 stores f into v's destination, narrowing per v's Type.
func (v ValueRef) SetFloat64(f float64) {
	switch v.Type {
	case Float32:
		*v.F32 = float32(f)
	case Float64, LongDouble:
		*v.F64 = f
	default:
		panic("serializetype: SetFloat64 on non-floating ValueRef")
	}
}
