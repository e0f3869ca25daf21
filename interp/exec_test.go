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

package interp_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/corint-run/corint/compile"
	"github.com/corint-run/corint/datasource"
	"github.com/corint-run/corint/dsl"
	"github.com/corint-run/corint/feature"
	"github.com/corint-run/corint/interp"
	"github.com/corint-run/corint/ir"
	"github.com/corint-run/corint/list"
	"github.com/corint-run/corint/value"
	"github.com/corint-run/corint/xerr"
)

// countingAdapter returns a fixed scalar and counts Execute calls, so
// tests can observe memoization and short-circuit behavior.
type countingAdapter struct {
	calls  int
	scalar value.Value
	err    error
}

func (a *countingAdapter) Execute(_ context.Context, _ datasource.Query) (*datasource.QueryResult, error) {
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return &datasource.QueryResult{Rows: []datasource.Row{{"v": a.scalar}}}, nil
}

func (a *countingAdapter) HealthCheck(context.Context) bool { return true }
func (a *countingAdapter) Close() error                     { return nil }

const transactionDocs = `
rule:
  id: blocked_user_check
  name: Blocked user
  when:
    event_type: transaction
    all:
      - "user_id in list.blocked_users"
  score: 1000
---
rule:
  id: high_amount
  when:
    all:
      - "amount > 1000"
  score: 80
---
rule:
  id: velocity_check
  when:
    all:
      - "features.txn_count_24h > 5"
      - "features.txn_count_24h < 1000"
  score: 80
---
ruleset:
  id: transaction_checks
  rules:
    - blocked_user_check
    - high_amount
    - velocity_check
  conclusion:
    - condition: "score >= 150"
      signal: deny
      actions: [block]
      reason: "score {score} from rules {results.transaction_checks.score}"
    - condition: "score >= 80"
      signal: review
      actions: [manual_review]
      reason: "borderline score {score}"
    - default: true
      signal: approve
---
pipeline:
  id: transaction_test
  name: Transaction screening
  entry: checks
  steps:
    - id: checks
      type: ruleset
      ruleset_ref: transaction_checks
      next: end
  decision:
    - condition: "total_score >= 150"
      action: decline
      reason: "risk too high"
      actions: [block]
    - condition: "total_score >= 80"
      action: review
      reason: "needs manual review"
      actions: [manual_review]
    - default: true
      action: approve
      reason: "low risk"
---
feature:
  name: txn_count_24h
  operator: count
  datasource: events
  entity: transactions
  dimension: user_id
  dimension_value: "{event.user_id}"
  window:
    value: 24
    unit: hours
  on_error: skip_rule
---
list:
  id: blocked_users
  backend: memory
  entries:
    - value: sus_0001
    - value: sus_expired
      expires_at: 2020-01-01T00:00:00Z
`

type fixture struct {
	arts    *ir.Artifacts
	adapter *countingAdapter
	in      *interp.Interpreter
}

func buildFixture(t *testing.T, docs string) *fixture {
	t.Helper()

	parsed, err := dsl.ParseAll(strings.NewReader(docs), "test.yaml")
	require.NoError(t, err)

	c := compile.NewCompiler()
	for _, d := range parsed {
		require.NoError(t, c.Add(d))
	}
	arts, err := c.Compile()
	require.NoError(t, err)

	adapter := &countingAdapter{scalar: value.Number(7)}
	reg := datasource.NewFromAdapters(map[string]datasource.Adapter{"events": adapter})

	lists := map[string]list.List{}
	for id, def := range arts.Lists {
		lists[id] = list.NewMemory(def)
	}

	return &fixture{
		arts:    arts,
		adapter: adapter,
		in: &interp.Interpreter{
			Rulesets: arts.Rulesets,
			Resolver: feature.NewResolver(arts.Features, reg),
			Lists:    lists,
		},
	}
}

func event(pairs ...any) *value.Object {
	o := value.NewObject()
	for i := 0; i+1 < len(pairs); i += 2 {
		v, err := value.FromAny(pairs[i+1])
		if err != nil {
			panic(err)
		}
		o.Set(pairs[i].(string), v)
	}
	return o
}

func TestApproveLowRiskTransaction(t *testing.T) {
	f := buildFixture(t, transactionDocs)
	f.adapter.scalar = value.Number(0)
	ev := event("type", "transaction", "user_id", "u1", "amount", 50, "country", "US")

	res, err := f.in.Execute(context.Background(), f.arts.Pipelines["transaction_test"], ev, nil, false)
	require.NoError(t, err)
	require.Equal(t, "approve", res.Action)
	require.Equal(t, 0, res.Score)
	require.Empty(t, res.TriggeredRules)
}

func TestDeclineBlockedUser(t *testing.T) {
	f := buildFixture(t, transactionDocs)
	ev := event("type", "transaction", "user_id", "sus_0001", "amount", 100, "country", "US")

	res, err := f.in.Execute(context.Background(), f.arts.Pipelines["transaction_test"], ev, nil, false)
	require.NoError(t, err)
	require.Equal(t, "decline", res.Action)
	require.Contains(t, res.TriggeredRules, "blocked_user_check")
	require.GreaterOrEqual(t, res.Score, 150)
}

func TestReviewOnScoreBoundary(t *testing.T) {
	f := buildFixture(t, transactionDocs)
	f.adapter.scalar = value.Number(0)
	ev := event("type", "transaction", "user_id", "u1", "amount", 2000)

	res, err := f.in.Execute(context.Background(), f.arts.Pipelines["transaction_test"], ev, nil, false)
	require.NoError(t, err)
	require.Equal(t, "review", res.Action)
	require.Equal(t, 80, res.Score)
	require.Equal(t, []string{"high_amount"}, res.TriggeredRules)
	require.Equal(t, "review", res.RulesetResults["transaction_checks"].Signal)
}

func TestFeatureComputedOnceAndCached(t *testing.T) {
	f := buildFixture(t, transactionDocs)
	// velocity_check references the feature in two conditions; one query.
	ev := event("type", "transaction", "user_id", "u7", "amount", 10)

	res, err := f.in.Execute(context.Background(), f.arts.Pipelines["transaction_test"], ev, nil, false)
	require.NoError(t, err)
	require.Equal(t, 1, f.adapter.calls)
	require.Contains(t, res.TriggeredRules, "velocity_check")

	got, ok := res.Features["txn_count_24h"]
	require.True(t, ok)
	n, _ := got.AsNumber()
	require.Equal(t, 7.0, n)
}

func TestPreSuppliedFeatureSkipsDatasource(t *testing.T) {
	f := buildFixture(t, transactionDocs)
	ev := event("type", "transaction", "user_id", "u7", "amount", 10)

	pre := value.NewObject()
	pre.Set("txn_count_24h", value.Number(2))
	res, err := f.in.Execute(context.Background(), f.arts.Pipelines["transaction_test"], ev, pre, false)
	require.NoError(t, err)
	require.Zero(t, f.adapter.calls)
	require.Equal(t, "approve", res.Action)
}

func TestExpiredListEntryDoesNotMatch(t *testing.T) {
	f := buildFixture(t, transactionDocs)
	f.adapter.scalar = value.Number(0)
	ev := event("type", "transaction", "user_id", "sus_expired", "amount", 10)

	res, err := f.in.Execute(context.Background(), f.arts.Pipelines["transaction_test"], ev, nil, false)
	require.NoError(t, err)
	require.Equal(t, "approve", res.Action)
	require.NotContains(t, res.TriggeredRules, "blocked_user_check")
}

func TestShortCircuitSkipsFeatureQuery(t *testing.T) {
	const docs = `
feature:
  name: txn_count_24h
  operator: count
  datasource: events
  entity: transactions
  dimension: user_id
  dimension_value: "{event.user_id}"
  on_error: skip_rule
---
ruleset:
  id: rs
  rules:
    - id: gated
      when:
        all:
          - "amount > 100"
          - "features.txn_count_24h > 5"
      score: 10
  conclusion:
    - default: true
      signal: approve
---
pipeline:
  id: p
  entry: s
  steps:
    - id: s
      type: ruleset
      ruleset_ref: rs
      next: end
  decision:
    - default: true
      action: approve
      reason: ok
`
	f := buildFixture(t, docs)
	ev := event("type", "transaction", "user_id", "u1", "amount", 50)

	_, err := f.in.Execute(context.Background(), f.arts.Pipelines["p"], ev, nil, false)
	require.NoError(t, err)
	// amount > 100 is falsy, so the feature condition is never evaluated.
	require.Zero(t, f.adapter.calls)
}

func TestRuleFiresAtMostOnceAndScoreSums(t *testing.T) {
	f := buildFixture(t, transactionDocs)
	f.adapter.scalar = value.Number(0)
	ev := event("type", "transaction", "user_id", "sus_0001", "amount", 2000)

	res, err := f.in.Execute(context.Background(), f.arts.Pipelines["transaction_test"], ev, nil, false)
	require.NoError(t, err)
	require.Equal(t, []string{"blocked_user_check", "high_amount"}, res.TriggeredRules)
	require.Equal(t, 1080, res.Score)
}

func TestEventTypeGateSkipsRule(t *testing.T) {
	f := buildFixture(t, transactionDocs)
	ev := event("type", "login", "user_id", "sus_0001", "amount", 10)

	res, err := f.in.Execute(context.Background(), f.arts.Pipelines["transaction_test"], ev, nil, false)
	require.NoError(t, err)
	require.NotContains(t, res.TriggeredRules, "blocked_user_check")
}

func TestTypeErrorSkipsRuleOnly(t *testing.T) {
	const docs = `
ruleset:
  id: rs
  rules:
    - id: broken
      when:
        all:
          - "country * 2 > 1"
      score: 50
    - id: fine
      when:
        all:
          - "amount > 10"
      score: 30
  conclusion:
    - condition: "score >= 30"
      signal: review
    - default: true
      signal: approve
---
pipeline:
  id: p
  entry: s
  steps:
    - id: s
      type: ruleset
      ruleset_ref: rs
      next: end
  decision:
    - condition: "total_score >= 30"
      action: review
      reason: r
    - default: true
      action: approve
      reason: a
`
	f := buildFixture(t, docs)
	ev := event("type", "transaction", "country", "US", "amount", 50)

	res, err := f.in.Execute(context.Background(), f.arts.Pipelines["p"], ev, nil, false)
	require.NoError(t, err)
	require.Equal(t, []string{"fine"}, res.TriggeredRules)
	require.Equal(t, "review", res.Action)
}

func TestRouterStepSelectsFirstMatch(t *testing.T) {
	const docs = `
ruleset:
  id: high
  rules:
    - id: r1
      when:
        all: ["true"]
      score: 90
  conclusion:
    - default: true
      signal: review
---
ruleset:
  id: low
  rules: []
  conclusion:
    - default: true
      signal: approve
---
pipeline:
  id: p
  entry: route
  steps:
    - id: route
      type: router
      routes:
        - when: "amount > 1000"
          next: high_step
        - when: "amount > 0"
          next: low_step
      default: low_step
    - id: high_step
      type: ruleset
      ruleset_ref: high
      next: end
    - id: low_step
      type: ruleset
      ruleset_ref: low
      next: end
  decision:
    - condition: "total_score >= 80"
      action: review
      reason: r
    - default: true
      action: approve
      reason: a
`
	f := buildFixture(t, docs)

	res, err := f.in.Execute(context.Background(), f.arts.Pipelines["p"], event("amount", 5000), nil, false)
	require.NoError(t, err)
	require.Equal(t, "review", res.Action)

	res, err = f.in.Execute(context.Background(), f.arts.Pipelines["p"], event("amount", 10), nil, false)
	require.NoError(t, err)
	require.Equal(t, "approve", res.Action)
}

func TestStepBudgetExceeded(t *testing.T) {
	const docs = `
pipeline:
  id: p
  entry: a
  steps:
    - id: a
      type: router
      routes:
        - when: "true"
          next: b
      default: end
    - id: b
      type: router
      routes:
        - when: "true"
          next: a
      default: end
`
	f := buildFixture(t, docs)

	_, err := f.in.Execute(context.Background(), f.arts.Pipelines["p"], event("amount", 1), nil, false)
	require.Error(t, err)
	var de xerr.DecisionError
	require.ErrorAs(t, err, &de)
	require.Equal(t, xerr.DecisionBudgetExceeded, de.Kind)
}

type staticCaller struct {
	reply value.Value
}

func (c staticCaller) Call(_ context.Context, _ string, _ map[string]any, _ *value.Object) (value.Value, error) {
	return c.reply, nil
}

func TestExternalCallBindsReply(t *testing.T) {
	const docs = `
ruleset:
  id: rs
  rules:
    - id: flagged
      when:
        all:
          - 'llm_check.risk == "high"'
      score: 100
  conclusion:
    - condition: "score >= 100"
      signal: deny
    - default: true
      signal: approve
---
pipeline:
  id: p
  entry: llm_check
  steps:
    - id: llm_check
      type: external_call
      provider: llm
      config:
        model: risk-analyst-v2
      next: s
    - id: s
      type: ruleset
      ruleset_ref: rs
      next: end
  decision:
    - condition: "total_score >= 100"
      action: decline
      reason: "model flagged"
    - default: true
      action: approve
      reason: ok
`
	f := buildFixture(t, docs)

	reply := value.NewObject()
	reply.Set("risk", value.String("high"))
	f.in.External = staticCaller{reply: value.FromObject(reply)}

	res, err := f.in.Execute(context.Background(), f.arts.Pipelines["p"], event("type", "transaction"), nil, false)
	require.NoError(t, err)
	require.Equal(t, "decline", res.Action)
	require.Equal(t, []string{"flagged"}, res.TriggeredRules)
}

func TestDeadlineAborts(t *testing.T) {
	f := buildFixture(t, transactionDocs)
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := f.in.Execute(ctx, f.arts.Pipelines["transaction_test"], event("type", "transaction"), nil, false)
	require.Error(t, err)
	var de xerr.DecisionError
	require.ErrorAs(t, err, &de)
	require.Equal(t, xerr.DecisionTimeout, de.Kind)
}

func TestReasonTemplateRendering(t *testing.T) {
	f := buildFixture(t, transactionDocs)
	f.adapter.scalar = value.Number(0)
	ev := event("type", "transaction", "user_id", "sus_0001", "amount", 100)

	res, err := f.in.Execute(context.Background(), f.arts.Pipelines["transaction_test"], ev, nil, false)
	require.NoError(t, err)
	rr := res.RulesetResults["transaction_checks"]
	require.Equal(t, "score 1000 from rules 1000", rr.Reason)
}

func TestTraceRecordsRulesAndFeatures(t *testing.T) {
	f := buildFixture(t, transactionDocs)
	ev := event("type", "transaction", "user_id", "u7", "amount", 10)

	res, err := f.in.Execute(context.Background(), f.arts.Pipelines["transaction_test"], ev, nil, true)
	require.NoError(t, err)
	require.NotNil(t, res.Trace)

	kinds := map[string]int{}
	for _, c := range res.Trace.Children {
		kinds[c.Kind]++
	}
	require.Positive(t, kinds["step"])
	require.Positive(t, kinds["feature"])
}

func TestEmptyRulesetDefaultConclusion(t *testing.T) {
	const docs = `
ruleset:
  id: empty
  rules: []
  conclusion:
    - default: true
      signal: pass
---
pipeline:
  id: p
  entry: s
  steps:
    - id: s
      type: ruleset
      ruleset_ref: empty
      next: end
`
	f := buildFixture(t, docs)
	res, err := f.in.Execute(context.Background(), f.arts.Pipelines["p"], event("type", "x"), nil, false)
	require.NoError(t, err)
	require.Equal(t, "pass", res.Action)
	require.Equal(t, "No decision", res.Reason)
	require.Zero(t, res.Score)
	require.Equal(t, "pass", res.RulesetResults["empty"].Signal)
}

func TestNegativeScoreNotClamped(t *testing.T) {
	const docs = `
ruleset:
  id: rs
  rules:
    - id: risky
      when:
        all: ["amount > 100"]
      score: 90
    - id: trusted_user_bonus
      when:
        all: ["trusted == true"]
      score: -20
  conclusion:
    - condition: "score >= 80"
      signal: review
    - default: true
      signal: approve
---
pipeline:
  id: p
  entry: s
  steps:
    - id: s
      type: ruleset
      ruleset_ref: rs
      next: end
  decision:
    - condition: "total_score >= 80"
      action: review
      reason: r
    - default: true
      action: approve
      reason: a
`
	f := buildFixture(t, docs)
	res, err := f.in.Execute(context.Background(), f.arts.Pipelines["p"], event("amount", 500, "trusted", true), nil, false)
	require.NoError(t, err)
	require.Equal(t, 70, res.Score)
	require.Equal(t, "approve", res.Action)
}
