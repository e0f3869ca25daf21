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
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTruthy(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"null", Null(), false},
		{"false", Bool(false), false},
		{"true", Bool(true), true},
		{"zero", Number(0), false},
		{"nan", Number(math.NaN()), false},
		{"nonzero", Number(1), true},
		{"empty string", String(""), false},
		{"nonempty string", String("x"), true},
		{"empty array", Array(nil), false},
		{"nonempty array", Array([]Value{Number(1)}), true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			require.Equal(t, c.want, c.v.Truthy())
		})
	}
}

func TestNumberEqualityNaN(t *testing.T) {
	nan := Number(math.NaN())
	require.False(t, nan.Equal(nan), "NaN != NaN even under bitwise equality")
	require.True(t, Number(1).Equal(Number(1)))
}

func TestCompareAcrossKindsUndefined(t *testing.T) {
	_, ok := Number(1).Compare(String("1"))
	require.False(t, ok, "ordering across disjoint kinds must be undefined")
}

func TestJSONRoundTrip(t *testing.T) {
	obj := NewObject()
	obj.Set("b", Number(2))
	obj.Set("a", Array([]Value{String("x"), Bool(true), Null()}))
	v := FromObject(obj)

	b, err := v.MarshalJSON()
	require.NoError(t, err)

	var out Value
	require.NoError(t, out.UnmarshalJSON(b))
	require.True(t, v.Equal(out))

	// insertion order preserved through the round trip
	o2, ok := out.AsObject()
	require.True(t, ok)
	require.Equal(t, []string{"b", "a"}, o2.Keys())
}

func TestFromAnyRejectsImpreciseIntegers(t *testing.T) {
	// 2^63 cannot be represented exactly as a float64-backed json.Number
	// the same way it can as an int64; parsing must fail, not silently
	// truncation, for integer-looking literals that exceed double precision.
	huge := "92233720368547758070" // far beyond 2^63 and beyond float64 precision of integers
	var out Value
	err := out.UnmarshalJSON([]byte(huge))
	require.Error(t, err)
}
