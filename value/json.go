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

package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"
)

// numberFromJSON parses a json.Number into a float64, enforcing that an
// integer-looking literal (no fraction, no exponent) round-trips exactly
// through float64: beyond 2^53 a double cannot represent every integer,
// so parsing fails rather than silently losing precision.
func numberFromJSON(n json.Number) (float64, error) {
	s := n.String()
	if strings.ContainsAny(s, ".eE") {
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("value: number %q is not a valid double: %w", s, err)
		}
		return f, nil
	}

	bi, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return 0, fmt.Errorf("value: %q is not a valid integer literal", s)
	}
	f := new(big.Float).SetInt(bi)
	asFloat64, _ := f.Float64()
	back, _ := big.NewFloat(asFloat64).Int(nil)
	if back.Cmp(bi) != 0 {
		return 0, fmt.Errorf("value: integer literal %q exceeds double precision", s)
	}
	return asFloat64, nil
}

// MarshalJSON and FromAny together give Value a JSON-isomorphic round
// trip; encoding/json is used directly.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			return nil, fmt.Errorf("value: cannot marshal non-finite number %v to JSON", v.n)
		}
		return json.Marshal(v.n)
	case KindString:
		return json.Marshal(v.s)
	case KindArray:
		buf := bytes.NewBufferString("[")
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindObject:
		buf := bytes.NewBufferString("{")
		for i, k := range v.obj.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			fv, _ := v.obj.Get(k)
			vb, err := fv.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("value: unknown kind %d", v.kind)
	}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var raw any
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

// FromAny converts a decoded-JSON Go value (as produced by
// json.Decoder.UseNumber) into a Value. Integer-looking literals that
// exceed double precision fail rather than silently losing precision.
func FromAny(raw any) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		f, err := numberFromJSON(t)
		if err != nil {
			return Value{}, err
		}
		return Number(f), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return numberFromInt64(t)
	case uint64:
		if t > 1<<53 {
			return Value{}, fmt.Errorf("value: integer %d exceeds double precision", t)
		}
		return Number(float64(t)), nil
	case string:
		return String(t), nil
	case []any:
		items := make([]Value, 0, len(t))
		for _, it := range t {
			v, err := FromAny(it)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return Array(items), nil
	case map[string]any:
		obj := NewObject()
		for _, k := range sortedKeys(t) {
			v, err := FromAny(t[k])
			if err != nil {
				return Value{}, err
			}
			obj.Set(k, v)
		}
		return FromObject(obj), nil
	case Value:
		return t, nil
	default:
		return Value{}, fmt.Errorf("value: unsupported Go type %T", raw)
	}
}

func numberFromInt64(n int64) (Value, error) {
	if n > 1<<53 || n < -(1<<53) {
		return Value{}, fmt.Errorf("value: integer %d exceeds double precision", n)
	}
	return Number(float64(n)), nil
}

// ParseNumber parses a numeric string under the same precision rules as
// JSON number parsing: integer-looking strings that cannot round-trip
// through a double fail instead of rounding.
func ParseNumber(s string) (float64, error) {
	return numberFromJSON(json.Number(strings.TrimSpace(s)))
}

// sortedKeys gives map[string]any (which has no inherent order) a
// deterministic iteration order when no insertion order is recoverable --
// used only for plain Go maps supplied by callers (e.g. a pre-supplied
// `features` override), never for values the engine itself produced.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
