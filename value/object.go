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

// Object is an insertion-order-preserving string-keyed map, the
// representation that keeps serialized output stable across runs.
type Object struct {
	keys   []string
	values map[string]Value
}

func NewObject() *Object {
	return &Object{values: make(map[string]Value)}
}

func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return Null(), false
	}
	v, ok := o.values[key]
	return v, ok
}

// Set inserts or updates key, preserving first-insertion order.
func (o *Object) Set(key string, v Value) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = v
}

func (o *Object) Delete(key string) {
	if _, exists := o.values[key]; !exists {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Clone makes a shallow copy with its own key/value storage (so mutating
// the clone, e.g. memoizing a feature value, never affects the source).
func (o *Object) Clone() *Object {
	clone := NewObject()
	if o == nil {
		return clone
	}
	for _, k := range o.keys {
		clone.Set(k, o.values[k])
	}
	return clone
}

// MarshalJSON emits the object's fields in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	return FromObject(o).MarshalJSON()
}

func (o *Object) Equal(other *Object) bool {
	if o == nil || other == nil {
		return o.Len() == 0 && other.Len() == 0
	}
	if o.Len() != other.Len() {
		return false
	}
	for _, k := range o.keys {
		ov, ok := other.Get(k)
		if !ok {
			return false
		}
		v, _ := o.Get(k)
		if !v.Equal(ov) {
			return false
		}
	}
	return true
}
