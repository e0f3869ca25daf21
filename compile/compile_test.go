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

package compile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corint-run/corint/ast"
	"github.com/corint-run/corint/dsl"
	"github.com/corint-run/corint/ir"
	"github.com/corint-run/corint/xerr"
)

func compileDocs(t *testing.T, docs string) (*ir.Artifacts, error) {
	t.Helper()
	parsed, err := dsl.ParseAll(strings.NewReader(docs), "test.yaml")
	require.NoError(t, err)
	c := NewCompiler()
	for _, d := range parsed {
		require.NoError(t, c.Add(d))
	}
	return c.Compile()
}

func TestExtendsFlattening(t *testing.T) {
	arts, err := compileDocs(t, `
ruleset:
  id: base
  rules:
    - id: base_rule
      when:
        all: ["amount > 10"]
      score: 10
  conclusion:
    - condition: "score >= 10"
      signal: base_signal
    - default: true
      signal: approve
---
ruleset:
  id: derived
  extends: base
  rules:
    - id: derived_rule
      when:
        all: ["amount > 100"]
      score: 20
  conclusion:
    - condition: "score >= 30"
      signal: derived_signal
`)
	require.NoError(t, err)

	derived := arts.Rulesets["derived"]
	require.NotNil(t, derived)

	// base rules first, derived appended after
	require.Len(t, derived.Rules, 2)
	require.Equal(t, "base_rule", derived.Rules[0].ID)
	require.Equal(t, "derived_rule", derived.Rules[1].ID)

	// derived conclusion clauses prepend before base clauses
	require.Equal(t, "derived_signal", derived.Conclusion[0].Signal)
	require.Equal(t, "base_signal", derived.Conclusion[1].Signal)
}

func TestCircularExtendsFatal(t *testing.T) {
	_, err := compileDocs(t, `
ruleset:
  id: a
  extends: b
  rules: []
  conclusion:
    - default: true
      signal: x
---
ruleset:
  id: b
  extends: a
  rules: []
  conclusion:
    - default: true
      signal: y
`)
	require.Error(t, err)
	var ce xerr.CompileError
	require.ErrorAs(t, err, &ce)
}

func TestUnresolvedRuleReference(t *testing.T) {
	_, err := compileDocs(t, `
ruleset:
  id: rs
  rules:
    - no_such_rule
  conclusion:
    - default: true
      signal: x
`)
	require.Error(t, err)
}

func TestUnresolvedListReference(t *testing.T) {
	_, err := compileDocs(t, `
ruleset:
  id: rs
  rules:
    - id: r
      when:
        all: ["user_id in list.missing"]
      score: 1
  conclusion:
    - default: true
      signal: x
`)
	require.Error(t, err)
}

func TestInvalidRegexFailsCompile(t *testing.T) {
	_, err := compileDocs(t, `
ruleset:
  id: rs
  rules:
    - id: r
      when:
        all: ['email regex "[unclosed"']
      score: 1
  conclusion:
    - default: true
      signal: x
`)
	require.Error(t, err)
}

func TestConstantFolding(t *testing.T) {
	arts, err := compileDocs(t, `
ruleset:
  id: rs
  rules:
    - id: r
      when:
        all: ["amount > 10 * 6"]
      score: 1
  conclusion:
    - default: true
      signal: x
`)
	require.NoError(t, err)

	cond := arts.Rulesets["rs"].Rules[0].When.Conditions[0]
	bin, ok := cond.(*ast.Binary)
	require.True(t, ok)
	lit, ok := bin.Right.(*ast.Literal)
	require.True(t, ok)
	n, _ := lit.Value.AsNumber()
	require.Equal(t, 60.0, n)
}

func TestConditionReorderingByCost(t *testing.T) {
	arts, err := compileDocs(t, `
feature:
  name: velocity
  operator: count
  datasource: events
  entity: t
  dimension: d
  dimension_value: "{event.user_id}"
---
ruleset:
  id: rs
  rules:
    - id: r
      when:
        all:
          - "features.velocity > 5"
          - "amount > 10"
      score: 1
  conclusion:
    - default: true
      signal: x
`)
	require.NoError(t, err)

	// the cheap local-field condition moves ahead of the feature access
	conds := arts.Rulesets["rs"].Rules[0].When.Conditions
	require.Len(t, conds, 2)
	first := conds[0].(*ast.Binary).Left.(*ast.FieldAccess)
	require.Equal(t, []string{"amount"}, first.Path)
}

func TestLiteralArithmeticTypeErrorFailsCompile(t *testing.T) {
	_, err := compileDocs(t, `
ruleset:
  id: rs
  rules:
    - id: r
      when:
        all: ['1 + "x" > 0']
      score: 1
  conclusion:
    - default: true
      signal: x
`)
	require.Error(t, err)
	var ce xerr.CompileError
	require.ErrorAs(t, err, &ce)
}

func TestMixedKindLiteralComparisonStillCompiles(t *testing.T) {
	// comparisons across kinds are a runtime concern, not a compile error
	_, err := compileDocs(t, `
ruleset:
  id: rs
  rules:
    - id: r
      when:
        all: ['1 < "a"']
      score: 1
  conclusion:
    - default: true
      signal: x
`)
	require.NoError(t, err)
}

func TestDeadClauseElimination(t *testing.T) {
	arts, err := compileDocs(t, `
ruleset:
  id: rs
  rules: []
  conclusion:
    - condition: "true"
      signal: always
    - condition: "score >= 100"
      signal: unreachable
    - default: true
      signal: also_unreachable
`)
	require.NoError(t, err)
	require.Len(t, arts.Rulesets["rs"].Conclusion, 1)
	require.Equal(t, "always", arts.Rulesets["rs"].Conclusion[0].Signal)
}

func TestDuplicateDefaultClauseRejected(t *testing.T) {
	_, err := compileDocs(t, `
ruleset:
  id: rs
  rules: []
  conclusion:
    - default: true
      signal: a
    - default: true
      signal: b
`)
	require.Error(t, err)
}

func TestParamSubstitution(t *testing.T) {
	arts, err := compileDocs(t, `
rule:
  id: threshold_check
  when:
    all: ["amount > params.threshold"]
  score: 50
---
ruleset:
  id: strict
  rules:
    - id: threshold_check
      params:
        threshold: 100
  conclusion:
    - default: true
      signal: x
---
ruleset:
  id: lenient
  rules:
    - id: threshold_check
      params:
        threshold: 10000
  conclusion:
    - default: true
      signal: x
`)
	require.NoError(t, err)

	strictCond := arts.Rulesets["strict"].Rules[0].When.Conditions[0].(*ast.Binary)
	n, _ := strictCond.Right.(*ast.Literal).Value.AsNumber()
	require.Equal(t, 100.0, n)

	lenientCond := arts.Rulesets["lenient"].Rules[0].When.Conditions[0].(*ast.Binary)
	n, _ = lenientCond.Right.(*ast.Literal).Value.AsNumber()
	require.Equal(t, 10000.0, n)
}

func TestMissingParamFailsCompile(t *testing.T) {
	_, err := compileDocs(t, `
rule:
  id: threshold_check
  when:
    all: ["amount > params.threshold"]
  score: 50
---
ruleset:
  id: rs
  rules:
    - id: threshold_check
      params:
        wrong_name: 1
  conclusion:
    - default: true
      signal: x
`)
	require.Error(t, err)
}

func TestStepGraphValidation(t *testing.T) {
	_, err := compileDocs(t, `
ruleset:
  id: rs
  rules: []
  conclusion:
    - default: true
      signal: x
---
pipeline:
  id: p
  entry: a
  steps:
    - id: a
      type: ruleset
      ruleset_ref: rs
      next: missing_step
`)
	require.Error(t, err)
}

func TestDuplicateIDsRejected(t *testing.T) {
	parsed, err := dsl.ParseAll(strings.NewReader(`
rule:
  id: dup
  when:
    all: ["true"]
  score: 1
---
rule:
  id: dup
  when:
    all: ["true"]
  score: 2
`), "test.yaml")
	require.NoError(t, err)

	c := NewCompiler()
	require.NoError(t, c.Add(parsed[0]))
	require.Error(t, c.Add(parsed[1]))
}
