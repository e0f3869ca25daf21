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

package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corint-run/corint/ast"
	"github.com/corint-run/corint/ir"
	"github.com/corint-run/corint/parser"
	"github.com/corint-run/corint/value"
)

func mustParse(t *testing.T, src string) ast.Expression {
	t.Helper()
	e, err := parser.Parse(src, "test")
	require.NoError(t, err)
	return e
}

func arts(t *testing.T) *ir.Artifacts {
	return &ir.Artifacts{
		Pipelines: map[string]*ir.Pipeline{
			"transactions": {ID: "transactions"},
			"logins":       {ID: "logins"},
			"default":      {ID: "default"},
		},
		Registry: []ir.RegistryEntry{
			{PipelineID: "transactions", When: mustParse(t, `type == "transaction"`)},
			{PipelineID: "logins", When: mustParse(t, `type == "login"`)},
			{PipelineID: "logins", When: mustParse(t, `amount > 0`)},
		},
	}
}

func ev(t *testing.T, pairs ...any) *value.Object {
	t.Helper()
	o := value.NewObject()
	for i := 0; i+1 < len(pairs); i += 2 {
		v, err := value.FromAny(pairs[i+1])
		require.NoError(t, err)
		o.Set(pairs[i].(string), v)
	}
	return o
}

func TestFirstMatchWins(t *testing.T) {
	r := New(arts(t))
	// both the first and third entries match; the first wins
	pl, ok := r.Select(context.Background(), ev(t, "type", "transaction", "amount", 10))
	require.True(t, ok)
	require.Equal(t, "transactions", pl.ID)
}

func TestSecondEntryMatches(t *testing.T) {
	r := New(arts(t))
	pl, ok := r.Select(context.Background(), ev(t, "type", "login"))
	require.True(t, ok)
	require.Equal(t, "logins", pl.ID)
}

func TestUnmatchedFallsBackToDefaultPipeline(t *testing.T) {
	r := New(arts(t))
	pl, ok := r.Select(context.Background(), ev(t, "type", "unknown_t"))
	require.True(t, ok)
	require.Equal(t, "default", pl.ID)
}

func TestNoMatchAndNoDefault(t *testing.T) {
	a := arts(t)
	delete(a.Pipelines, "default")
	r := New(a)
	_, ok := r.Select(context.Background(), ev(t, "type", "unknown_t"))
	require.False(t, ok)
}

func TestExplicitDefaultBeatsConventional(t *testing.T) {
	a := arts(t)
	a.DefaultPL = "logins"
	r := New(a)
	pl, ok := r.Select(context.Background(), ev(t, "type", "unknown_t"))
	require.True(t, ok)
	require.Equal(t, "logins", pl.ID)
}
