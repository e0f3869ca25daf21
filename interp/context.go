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

// Package interp executes compiled IR: the pipeline/ruleset
// interpreter walks a Pipeline's step graph, evaluates WhenBlocks and
// conclusion/decision clauses through package ast's Expression tree, fires
// rules, accumulates scores, and resolves feature/list references lazily.
package interp

import (
	"context"

	"github.com/corint-run/corint/feature"
	"github.com/corint-run/corint/list"
	"github.com/corint-run/corint/trace"
	"github.com/corint-run/corint/value"
)

// TriggeredRule is one entry of the request's triggered_rules log:
// a fired rule id paired with the score it contributed.
type TriggeredRule struct {
	RuleID string
	Score  int
}

// RulesetResult is one `ruleset_results[rsid]` entry.
type RulesetResult struct {
	Signal         string
	Actions        []string
	Reason         string
	TriggeredRules []string
	Score          int
}

// ExecutionContext is the per-request, single-threaded, mutable state:
// owned exclusively by one Interpreter.Execute call, created at
// request start and discarded on completion. It is never shared across
// requests and never held past the request it was built for.
type ExecutionContext struct {
	Ctx context.Context

	EventData *value.Object
	Variables *value.Object

	// FeatureCache backs event_data["features"].
	FeatureCache map[string]value.Value

	TriggeredRules []TriggeredRule
	RulesetResults map[string]*RulesetResult
	RulesetOrder   []string

	TraceEnabled bool
	Trace        *trace.Node

	Resolver *feature.Resolver
	Lists    map[string]list.List

	EventType string
}

// New builds a fresh ExecutionContext for one request. event is the
// inbound event payload, seeded directly as event_data; a pre-supplied
// `features` override is merged into FeatureCache so the lazy resolver
// never re-queries it.
func New(ctx context.Context, event *value.Object, resolver *feature.Resolver, lists map[string]list.List, preloadedFeatures *value.Object, enableTrace bool) *ExecutionContext {
	ec := &ExecutionContext{
		Ctx:            ctx,
		EventData:      event,
		Variables:      value.NewObject(),
		FeatureCache:   map[string]value.Value{},
		RulesetResults: map[string]*RulesetResult{},
		TraceEnabled:   enableTrace,
		Resolver:       resolver,
		Lists:          lists,
	}
	if et, ok := event.Get("type"); ok {
		ec.EventType = et.CoerceString()
	}
	if preloadedFeatures != nil {
		for _, k := range preloadedFeatures.Keys() {
			v, _ := preloadedFeatures.Get(k)
			ec.FeatureCache[k] = v
		}
	}
	if enableTrace {
		ec.Trace = &trace.Node{Kind: "request"}
	}
	return ec
}

// TotalScore sums every fired rule's score across the whole request so
// far. Summed
// from the chronological TriggeredRules log rather than RulesetResults
// (a map, whose iteration order is not stable) so the sum is computed the
// same way regardless of Go's map ordering.
func (ec *ExecutionContext) TotalScore() int {
	total := 0
	for _, tr := range ec.TriggeredRules {
		total += tr.Score
	}
	return total
}

// TriggeredRuleIDs returns the ordered ids of every rule fired so far,
// across every ruleset executed by this request.
func (ec *ExecutionContext) TriggeredRuleIDs() []string {
	ids := make([]string, len(ec.TriggeredRules))
	for i, tr := range ec.TriggeredRules {
		ids[i] = tr.RuleID
	}
	return ids
}

// syncResultBindings refreshes the `results` and `total_score` variables
// so decision clauses and router `when` expressions can reference prior
// ruleset outcomes as ordinary FieldAccess paths (e.g. `results.r1.signal`,
// `total_score`) rather than only through reason-template interpolation.
func (ec *ExecutionContext) syncResultBindings() {
	// Walk RulesetOrder, not the RulesetResults map: the `results` object
	// must keep execution order so serialized output is identical run to
	// run.
	results := value.NewObject()
	for _, rsid := range ec.RulesetOrder {
		r := ec.RulesetResults[rsid]
		if r == nil {
			continue
		}
		o := value.NewObject()
		o.Set("signal", value.String(r.Signal))
		o.Set("score", value.Number(float64(r.Score)))
		o.Set("reason", value.String(r.Reason))
		actions := make([]value.Value, len(r.Actions))
		for i, a := range r.Actions {
			actions[i] = value.String(a)
		}
		o.Set("actions", value.Array(actions))
		ids := make([]value.Value, len(r.TriggeredRules))
		for i, id := range r.TriggeredRules {
			ids[i] = value.String(id)
		}
		o.Set("triggered_rules", value.Array(ids))
		results.Set(rsid, value.FromObject(o))
	}
	ec.Variables.Set("results", value.FromObject(results))
	ec.Variables.Set("total_score", value.Number(float64(ec.TotalScore())))
}
