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

package dsl

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseMultiDocument(t *testing.T) {
	docs, err := ParseAll(strings.NewReader(`
rule:
  id: r1
  when:
    all: ["amount > 10"]
  score: 5
---
ruleset:
  id: rs1
  rules:
    - r1
  conclusion:
    - default: true
      signal: approve
---
pipeline:
  id: p1
  entry: s
  steps:
    - id: s
      type: ruleset
      ruleset_ref: rs1
      next: end
`), "mixed.yaml")
	require.NoError(t, err)
	require.Len(t, docs, 3)
	require.NotNil(t, docs[0].Rule)
	require.NotNil(t, docs[1].Ruleset)
	require.NotNil(t, docs[2].Pipeline)
	require.Equal(t, "mixed.yaml", docs[0].Source)
}

func TestWhenDesugaring(t *testing.T) {
	docs, err := ParseAll(strings.NewReader(`
rule:
  id: bare
  when:
    - "a > 1"
    - "b > 2"
  score: 1
---
rule:
  id: any_form
  when:
    any: ["a > 1", "b > 2"]
  score: 1
---
rule:
  id: gated
  when:
    event_type: login
    all: ["a > 1"]
  score: 1
`), "when.yaml")
	require.NoError(t, err)

	bare := docs[0].Rule.When
	require.Equal(t, "all", bare.Combinator())
	require.Equal(t, []string{"a > 1", "b > 2"}, bare.Conditions())

	anyForm := docs[1].Rule.When
	require.Equal(t, "any", anyForm.Combinator())

	gated := docs[2].Rule.When
	require.Equal(t, "login", gated.EventType)
}

func TestRuleRefForms(t *testing.T) {
	docs, err := ParseAll(strings.NewReader(`
ruleset:
  id: rs
  rules:
    - shared_rule
    - id: parameterized
      params:
        threshold: 50
    - id: inline_rule
      when:
        all: ["x > 1"]
      score: 3
  conclusion:
    - default: true
      signal: ok
`), "refs.yaml")
	require.NoError(t, err)

	rules := docs[0].Ruleset.Rules
	require.Len(t, rules, 3)

	require.Equal(t, "shared_rule", rules[0].ID)
	require.Nil(t, rules[0].Inline)

	require.Equal(t, "parameterized", rules[1].ID)
	require.Equal(t, 50, rules[1].Params["threshold"])
	require.Nil(t, rules[1].Inline)

	require.NotNil(t, rules[2].Inline)
	require.Equal(t, "inline_rule", rules[2].Inline.ID)
	require.Equal(t, 3, rules[2].Inline.Score)
}

func TestDocumentMustHaveExactlyOneVariant(t *testing.T) {
	_, err := ParseAll(strings.NewReader(`
rule:
  id: r
  when:
    all: ["a > 1"]
  score: 1
list:
  id: l
  backend: memory
`), "bad.yaml")
	require.Error(t, err)
}

func TestEmptyDocumentsSkipped(t *testing.T) {
	docs, err := ParseAll(strings.NewReader(`
---
rule:
  id: r
  when:
    all: ["a > 1"]
  score: 1
---
`), "sparse.yaml")
	require.NoError(t, err)
	require.Len(t, docs, 1)
}
