// Package valuecodec implements the lossless projection between the wire
// string form carried in uplink JSON payloads and the typed values the
// parambus expects, per the closed set of wire-type codes.
package valuecodec

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/tenzoki/agen/paramgw/internal/gwerr"
)

// WireType is one of the closed set of wire-type codes observed on the
// uplink wire.
type WireType int

const (
	TypeString WireType = 0
	TypeInt    WireType = 1
	TypeUint   WireType = 2
	TypeBool   WireType = 3
	TypeFloat  WireType = 4
	TypeTime   WireType = 5
	TypeBytes  WireType = 6
	TypeLong   WireType = 7
	TypeUlong  WireType = 8
	TypeByte   WireType = 9
	TypeNone   WireType = 10
	TypeGroup  WireType = 11
)

// TypedValue is a (string-rendering, wire-type) pair, the canonical
// representation of a parameter value on the wire.
type TypedValue struct {
	Value string
	Type  WireType
}

// NativeType enumerates the parambus-native value kinds the codec maps
// into wire-type codes, independent of wire rendering.
type NativeType int

const (
	NativeString NativeType = iota
	NativeInt
	NativeUint
	NativeBool
	NativeFloat
	NativeTime
	NativeBytes
	NativeLong
	NativeUlong
	NativeByte
	NativeNone
	NativeGroup
)

// MapNativeToWire maps every native kind to exactly one wire-type
// code, with unknowns defaulting to TypeString except NativeNone,
// which maps to TypeNone.
func MapNativeToWire(native NativeType) WireType {
	switch native {
	case NativeInt:
		return TypeInt
	case NativeUint:
		return TypeUint
	case NativeBool:
		return TypeBool
	case NativeFloat:
		return TypeFloat
	case NativeTime:
		return TypeTime
	case NativeBytes:
		return TypeBytes
	case NativeLong:
		return TypeLong
	case NativeUlong:
		return TypeUlong
	case NativeByte:
		return TypeByte
	case NativeNone:
		return TypeNone
	case NativeGroup:
		return TypeGroup
	case NativeString:
		fallthrough
	default:
		return TypeString
	}
}

// Decode parses a wire string under the given wire type into a
// TypedValue, validating range and literal form. Returns an
// Unprocessable gwerr.Error on a malformed literal.
func Decode(wire string, wireType WireType) (TypedValue, error) {
	switch wireType {
	case TypeBool:
		if wire != "true" && wire != "false" {
			return TypedValue{}, gwerr.Newf(gwerr.Unprocessable, "invalid bool literal %q", wire)
		}
	case TypeInt:
		if _, err := strconv.ParseInt(wire, 10, 32); err != nil {
			return TypedValue{}, gwerr.Newf(gwerr.Unprocessable, "invalid int literal %q: %v", wire, err)
		}
	case TypeLong:
		if _, err := strconv.ParseInt(wire, 10, 64); err != nil {
			return TypedValue{}, gwerr.Newf(gwerr.Unprocessable, "invalid long literal %q: %v", wire, err)
		}
	case TypeUint:
		if _, err := strconv.ParseUint(wire, 10, 32); err != nil {
			return TypedValue{}, gwerr.Newf(gwerr.Unprocessable, "invalid uint literal %q: %v", wire, err)
		}
	case TypeUlong:
		if _, err := strconv.ParseUint(wire, 10, 64); err != nil {
			return TypedValue{}, gwerr.Newf(gwerr.Unprocessable, "invalid ulong literal %q: %v", wire, err)
		}
	case TypeByte:
		if _, err := strconv.ParseUint(wire, 10, 8); err != nil {
			return TypedValue{}, gwerr.Newf(gwerr.Unprocessable, "invalid byte literal %q: %v", wire, err)
		}
	case TypeFloat:
		if _, err := strconv.ParseFloat(wire, 64); err != nil {
			return TypedValue{}, gwerr.Newf(gwerr.Unprocessable, "invalid float literal %q: %v", wire, err)
		}
	case TypeBytes:
		if _, err := base64.StdEncoding.DecodeString(wire); err != nil {
			return TypedValue{}, gwerr.Newf(gwerr.Unprocessable, "invalid base64 literal: %v", err)
		}
	case TypeString, TypeTime, TypeNone, TypeGroup:
		// no literal constraint beyond being a string
	default:
		return TypedValue{}, gwerr.Newf(gwerr.Unprocessable, "unknown wire type %d", wireType)
	}
	return TypedValue{Value: wire, Type: wireType}, nil
}

// Encode produces the canonical wire rendering for a TypedValue: no
// trailing whitespace, booleans lowercase.
func Encode(tv TypedValue) (string, WireType) {
	v := strings.TrimRight(tv.Value, " \t\r\n")
	if tv.Type == TypeBool {
		v = strings.ToLower(v)
	}
	return v, tv.Type
}

// String renders a WireType for logging.
func (w WireType) String() string {
	switch w {
	case TypeString:
		return "string"
	case TypeInt:
		return "int"
	case TypeUint:
		return "uint"
	case TypeBool:
		return "bool"
	case TypeFloat:
		return "float"
	case TypeTime:
		return "datetime"
	case TypeBytes:
		return "bytes"
	case TypeLong:
		return "long"
	case TypeUlong:
		return "ulong"
	case TypeByte:
		return "byte"
	case TypeNone:
		return "none"
	case TypeGroup:
		return "group"
	default:
		return fmt.Sprintf("wire(%d)", int(w))
	}
}
