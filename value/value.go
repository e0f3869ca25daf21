// Copyright 2025 Binaek Sarkar
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package value implements CORINT's universal datum: a tagged
// variant over Null, Bool, Number, String, Array, and Object, with a
// JSON-isomorphic round trip and the ordering/equality/truthiness rules the
// expression evaluator relies on.
//
// Runtime values are plain Go values wrapped in the Value struct:
//   - Null:   Kind == KindNull
//   - Bool:   bool
//   - Number: float64 (IEEE-754 double)
//   - String: string
//   - Array:  []Value (ordered)
//   - Object: *Object (insertion-order preserved, for trace stability)
package value

import (
	"fmt"
	"math"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is CORINT's tagged variant datum.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  *Object
}

func Null() Value               { return Value{kind: KindNull} }
func Bool(b bool) Value         { return Value{kind: KindBool, b: b} }
func Number(n float64) Value    { return Value{kind: KindNumber, n: n} }
func String(s string) Value     { return Value{kind: KindString, s: s} }
func Array(items []Value) Value { return Value{kind: KindArray, arr: items} }
func FromObject(o *Object) Value {
	if o == nil {
		o = NewObject()
	}
	return Value{kind: KindObject, obj: o}
}

func (v Value) Kind() Kind  { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) AsNumber() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.n, true
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

func (v Value) AsObject() (*Object, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.obj, true
}

// Truthy implements the boolean coercion table:
// Null -> false; Bool -> itself; Number -> != 0 && != NaN;
// String -> non-empty; Array/Object -> non-empty.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0 && !math.IsNaN(v.n)
	case KindString:
		return v.s != ""
	case KindArray:
		return len(v.arr) > 0
	case KindObject:
		return v.obj != nil && v.obj.Len() > 0
	default:
		return false
	}
}

// Equal is structural equality with strict bitwise equality on Number
// (NaN != NaN), structural equality elsewhere.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.n == other.n // NaN != NaN falls out of IEEE-754 comparison
	case KindString:
		return v.s == other.s
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return v.obj.Equal(other.obj)
	default:
		return false
	}
}

// Compare implements the total order on matching numeric/string operands.
// Ordering across disjoint kinds is undefined: the second
// return is false in that case, signaling the caller to raise TypeError.
func (v Value) Compare(other Value) (cmp int, ok bool) {
	if v.kind != other.kind {
		return 0, false
	}
	switch v.kind {
	case KindNumber:
		switch {
		case v.n < other.n:
			return -1, true
		case v.n > other.n:
			return 1, true
		case v.n == other.n:
			return 0, true
		default:
			// NaN on either side: undefined ordering.
			return 0, false
		}
	case KindString:
		switch {
		case v.s < other.s:
			return -1, true
		case v.s > other.s:
			return 1, true
		default:
			return 0, true
		}
	default:
		return 0, false
	}
}

// CoerceString renders a Value as a string for membership-test string
// coercion (`in list.<id>`) and reason-template interpolation.
func (v Value) CoerceString() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.n)
	case KindString:
		return v.s
	default:
		b, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func formatNumber(n float64) string {
	if n == math.Trunc(n) && !math.IsInf(n, 0) && math.Abs(n) < 1e15 {
		return fmt.Sprintf("%d", int64(n))
	}
	return fmt.Sprintf("%g", n)
}

func (v Value) String() string {
	return v.CoerceString()
}
