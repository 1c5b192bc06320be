// Copyright 2015 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package nestbox

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Kind is the wire type of a bound parameter value.
type Kind int

const (
	KindNull Kind = iota
	KindInt
	KindBool
	KindText
)

// Value is a bindable parameter value as an explicit tagged variant.
// Values are normally inferred once at the boundary by BindValue; callers
// holding typed data can construct them directly.
type Value struct {
	kind Kind
	i    int64
	b    bool
	s    string
}

func NullValue() Value         { return Value{kind: KindNull} }
func IntValue(i int64) Value   { return Value{kind: KindInt, i: i} }
func BoolValue(b bool) Value   { return Value{kind: KindBool, b: b} }
func TextValue(s string) Value { return Value{kind: KindText, s: s} }

func (v Value) Kind() Kind { return v.kind }

// arg returns the driver-level argument for the value.
func (v Value) arg() interface{} {
	switch v.kind {
	case KindInt:
		return v.i
	case KindBool:
		return v.b
	case KindText:
		return v.s
	default:
		return nil
	}
}

// BindValue infers a Value from a native Go value: integers map to KindInt,
// booleans to KindBool, nil to KindNull, and everything else to KindText.
// Slice, array and map values are rejected with ErrCannotBindArray; []byte
// is the exception and binds as text.
func BindValue(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return NullValue(), nil
	case Value:
		return t, nil
	case int:
		return IntValue(int64(t)), nil
	case int8:
		return IntValue(int64(t)), nil
	case int16:
		return IntValue(int64(t)), nil
	case int32:
		return IntValue(int64(t)), nil
	case int64:
		return IntValue(t), nil
	case uint:
		return IntValue(int64(t)), nil
	case uint8:
		return IntValue(int64(t)), nil
	case uint16:
		return IntValue(int64(t)), nil
	case uint32:
		return IntValue(int64(t)), nil
	case uint64:
		// Values past the int64 range would wrap negative; bind them as text.
		if t > math.MaxInt64 {
			return TextValue(strconv.FormatUint(t, 10)), nil
		}
		return IntValue(int64(t)), nil
	case bool:
		return BoolValue(t), nil
	case string:
		return TextValue(t), nil
	case []byte:
		return TextValue(string(t)), nil
	case float32:
		return TextValue(strconv.FormatFloat(float64(t), 'f', -1, 32)), nil
	case float64:
		return TextValue(strconv.FormatFloat(t, 'f', -1, 64)), nil
	case time.Time:
		return TextValue(t.UTC().Format("2006-01-02 15:04:05")), nil
	}
	switch reflect.ValueOf(raw).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return Value{}, ErrCannotBindArray
	}
	return TextValue(fmt.Sprint(raw)), nil
}

// normalizeParam strips the leading placeholder marker, if any, so that
// parameter names are keyed consistently regardless of caller convention.
func normalizeParam(name string) string {
	return strings.TrimPrefix(name, ":")
}
