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

package interp

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/corint-run/corint/feature"
	"github.com/corint-run/corint/ir"
	"github.com/corint-run/corint/list"
	"github.com/corint-run/corint/trace"
	"github.com/corint-run/corint/value"
	"github.com/corint-run/corint/xerr"
)

// DefaultMaxSteps bounds step transitions per pipeline execution; a
// run that exceeds it fails with DecisionError{BudgetExceeded}.
const DefaultMaxSteps = 256

// ExternalCaller is the provider capability an external_call step
// delegates to. The reply is bound under `variables.<step_id>` and the
// call itself is opaque to the interpreter.
type ExternalCaller interface {
	Call(ctx context.Context, provider string, params map[string]any, event *value.Object) (value.Value, error)
}

// Interpreter walks one compiled Pipeline per Execute call. It is
// stateless between calls and safe for concurrent use: all per-request
// state lives in the ExecutionContext built inside Execute.
type Interpreter struct {
	Rulesets map[string]*ir.Ruleset
	Resolver *feature.Resolver
	Lists    map[string]list.List
	External ExternalCaller
	MaxSteps int
}

// Result is the interpreter-level outcome of one pipeline execution,
// before the response envelope is assembled around it.
type Result struct {
	PipelineID     string
	Action         string
	Reason         string
	Actions        []string
	Signal         string
	Score          int
	TriggeredRules []string
	RulesetResults map[string]*RulesetResult
	Features       map[string]value.Value
	Trace          *trace.Node
}

// Execute runs pl against event. preFeatures, when non-nil, pre-populates
// the request's feature cache so those features are never recomputed.
// Fatal failures (deadline, step budget, a feature configured
// on_error: fail_request) return a DecisionError; everything else
// degrades into the decision itself.
func (in *Interpreter) Execute(ctx context.Context, pl *ir.Pipeline, event *value.Object, preFeatures *value.Object, enableTrace bool) (*Result, error) {
	ec := New(ctx, event, in.Resolver, in.Lists, preFeatures, enableTrace)

	applies, err := in.pipelineApplies(ec, pl)
	if err != nil {
		return nil, err
	}
	if applies {
		if err := in.runSteps(ec, pl); err != nil {
			return nil, err
		}
	} else if ec.TraceEnabled {
		n, done := trace.New("pipeline", "gate", map[string]any{"pipeline": pl.ID})
		done()
		ec.Trace.Attach(n.SetResult(false))
	}

	res := in.decide(ec, pl, applies)
	res.Features = ec.FeatureCache
	if ec.TraceEnabled {
		res.Trace = ec.Trace
	}
	return res, nil
}

// pipelineApplies evaluates the pipeline's `when` gate. An evaluation
// error in the gate counts as "does not apply" rather than failing the
// request: the gate is routing, not business logic.
func (in *Interpreter) pipelineApplies(ec *ExecutionContext, pl *ir.Pipeline) (bool, error) {
	if pl.When == nil {
		return true, nil
	}
	v, err := Evaluate(ec, pl.When)
	if err != nil {
		if fatal := in.fatalFeatureError(err); fatal != nil {
			return false, fatal
		}
		return false, nil
	}
	return v.Truthy(), nil
}

func (in *Interpreter) runSteps(ec *ExecutionContext, pl *ir.Pipeline) error {
	maxSteps := in.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	current := pl.Entry
	for transitions := 0; ; transitions++ {
		if current == "end" || current == "" {
			return nil
		}
		if transitions >= maxSteps {
			return xerr.ErrDecision(xerr.DecisionBudgetExceeded, errors.Errorf("pipeline %q exceeded %d step transitions", pl.ID, maxSteps))
		}
		if err := ec.Ctx.Err(); err != nil {
			return xerr.ErrDecision(xerr.DecisionTimeout, err)
		}

		step, ok := pl.Steps[current]
		if !ok {
			return xerr.ErrDecision(xerr.DecisionInternalError, errors.Errorf("pipeline %q references unknown step %q", pl.ID, current))
		}

		next, err := in.runStep(ec, step)
		if err != nil {
			return err
		}
		current = next
	}
}

func (in *Interpreter) runStep(ec *ExecutionContext, step *ir.Step) (next string, err error) {
	var node *trace.Node
	var done trace.DoneFn
	if ec.TraceEnabled {
		node, done = trace.New("step", string(step.Kind), map[string]any{"id": step.ID})
		defer func() {
			done()
			node.SetMeta("next", next).SetErr(err)
			ec.Trace.Attach(node)
		}()
	}

	switch step.Kind {
	case ir.StepRuleset:
		rs, ok := in.Rulesets[step.RulesetRef]
		if !ok {
			return "", xerr.ErrDecision(xerr.DecisionInternalError, errors.Errorf("step %q references unknown ruleset %q", step.ID, step.RulesetRef))
		}
		if err := in.runRuleset(ec, rs, node); err != nil {
			return "", err
		}
		return step.Next, nil

	case ir.StepRouter:
		for i, route := range step.Routes {
			ec.syncResultBindings()
			v, evalErr := Evaluate(ec, route.When)
			if evalErr != nil {
				if fatal := in.fatalFeatureError(evalErr); fatal != nil {
					return "", fatal
				}
				if node != nil {
					node.SetMeta("route_error", evalErr.Error())
				}
				continue
			}
			if v.Truthy() {
				if node != nil {
					node.SetMeta("route", i)
				}
				return route.Next, nil
			}
		}
		return step.Default, nil

	case ir.StepExternal:
		if in.External == nil {
			return "", xerr.ErrDecision(xerr.DecisionInternalError, errors.Errorf("step %q requires provider %q but no external caller is configured", step.ID, step.External.Provider))
		}
		reply, callErr := in.External.Call(ec.Ctx, step.External.Provider, step.External.Params, ec.EventData)
		if callErr != nil {
			if ec.Ctx.Err() != nil {
				return "", xerr.ErrDecision(xerr.DecisionTimeout, callErr)
			}
			// A provider failure binds Null; the pipeline's own clauses
			// decide whether a missing reply matters.
			if node != nil {
				node.SetErr(callErr)
			}
			reply = value.Null()
		}
		ec.Variables.Set(step.ID, reply)
		return step.Next, nil

	default:
		return "", xerr.ErrDecision(xerr.DecisionInternalError, errors.Errorf("unknown step kind %q", step.Kind))
	}
}

// runRuleset evaluates every rule in declaration order against a
// ruleset-local score accumulator, then resolves the conclusion. A rule
// fires at most once; rule-local evaluation errors skip the rule and are
// visible only in the trace.
func (in *Interpreter) runRuleset(ec *ExecutionContext, rs *ir.Ruleset, stepNode *trace.Node) error {
	localScore := 0
	var localTriggered []string

	for _, rule := range rs.Rules {
		fired, err := in.evalRule(ec, rule, stepNode)
		if err != nil {
			return err
		}
		if fired {
			localScore += rule.Score
			localTriggered = append(localTriggered, rule.ID)
			ec.TriggeredRules = append(ec.TriggeredRules, TriggeredRule{RuleID: rule.ID, Score: rule.Score})
		}
	}

	result := &RulesetResult{Score: localScore, TriggeredRules: localTriggered}
	ec.RulesetResults[rs.ID] = result
	ec.RulesetOrder = append(ec.RulesetOrder, rs.ID)
	ec.syncResultBindings()

	// Conclusion clauses see the ruleset-local accumulator as `score` and
	// `triggered_rules`, rebound for the duration of clause evaluation.
	ec.Variables.Set("score", value.Number(float64(localScore)))
	ids := make([]value.Value, len(localTriggered))
	for i, id := range localTriggered {
		ids[i] = value.String(id)
	}
	ec.Variables.Set("triggered_rules", value.Array(ids))

	for _, clause := range rs.Conclusion {
		matched := clause.Default
		if !matched {
			v, err := Evaluate(ec, clause.Condition)
			if err != nil {
				if fatal := in.fatalFeatureError(err); fatal != nil {
					return fatal
				}
				if stepNode != nil {
					stepNode.SetMeta("conclusion_error", err.Error())
				}
				continue
			}
			matched = v.Truthy()
		}
		if matched {
			result.Signal = clause.Signal
			result.Actions = append([]string{}, clause.Actions...)
			result.Reason = renderReason(ec, clause.ReasonTemplate)
			break
		}
	}

	ec.syncResultBindings()
	if stepNode != nil {
		stepNode.SetResult(map[string]any{
			"ruleset": rs.ID,
			"signal":  result.Signal,
			"score":   result.Score,
		})
	}
	return nil
}

// evalRule reports whether rule fires. Local errors (TypeError,
// UndefinedField, a feature whose policy is skip_rule) mean it does not;
// only a feature configured on_error: fail_request escalates.
func (in *Interpreter) evalRule(ec *ExecutionContext, rule *ir.Rule, stepNode *trace.Node) (bool, error) {
	var node *trace.Node
	var done trace.DoneFn
	if ec.TraceEnabled && stepNode != nil {
		node, done = trace.New("rule", rule.ID, nil)
	}

	fired, err := in.evalWhen(ec, rule.When)
	if node != nil {
		done()
		node.SetResult(fired)
		if err != nil {
			node.SetErr(err)
		}
		stepNode.Attach(node)
	}
	if err != nil {
		if fatal := in.fatalFeatureError(err); fatal != nil {
			return false, fatal
		}
		return false, nil
	}
	return fired, nil
}

// evalWhen applies the combinator with short-circuit in list order:
// `all` stops at the first falsy condition, `any` at the first truthy.
func (in *Interpreter) evalWhen(ec *ExecutionContext, when ir.WhenBlock) (bool, error) {
	if when.EventType != "" && when.EventType != ec.EventType {
		return false, nil
	}
	if len(when.Conditions) == 0 {
		return true, nil
	}

	for _, cond := range when.Conditions {
		v, err := Evaluate(ec, cond)
		if err != nil {
			return false, err
		}
		if when.Combinator == ir.Any {
			if v.Truthy() {
				return true, nil
			}
		} else if !v.Truthy() {
			return false, nil
		}
	}
	return when.Combinator != ir.Any, nil
}

// decide evaluates the pipeline-level decision clauses against the
// accumulated ruleset_results. No matching clause (or an inapplicable
// pipeline with no default clause) falls back to pass / "No decision".
func (in *Interpreter) decide(ec *ExecutionContext, pl *ir.Pipeline, applied bool) *Result {
	res := &Result{
		PipelineID:     pl.ID,
		Score:          ec.TotalScore(),
		TriggeredRules: ec.TriggeredRuleIDs(),
		RulesetResults: ec.RulesetResults,
	}

	ec.syncResultBindings()
	ec.Variables.Set("score", value.Number(float64(ec.TotalScore())))

	for _, clause := range pl.Decision {
		matched := clause.Default
		if !matched {
			if !applied {
				continue
			}
			v, err := Evaluate(ec, clause.Condition)
			if err != nil {
				continue
			}
			matched = v.Truthy()
		}
		if matched {
			res.Action = clause.Action
			res.Reason = renderReason(ec, clause.Reason)
			res.Actions = append([]string{}, clause.Actions...)
			res.Signal = lastSignal(ec)
			return res
		}
	}

	res.Action = "pass"
	res.Reason = "No decision"
	res.Signal = lastSignal(ec)
	return res
}

// lastSignal surfaces the most recently concluded ruleset's signal, in
// execution order.
func lastSignal(ec *ExecutionContext) string {
	for i := len(ec.RulesetOrder) - 1; i >= 0; i-- {
		if r := ec.RulesetResults[ec.RulesetOrder[i]]; r != nil && r.Signal != "" {
			return r.Signal
		}
	}
	return ""
}

// renderReason substitutes `{results.<rsid>.<field>}` references (plus
// the local `{score}` / `{triggered_rules}` bindings) into a reason
// template. Unresolved references render as empty string.
func renderReason(ec *ExecutionContext, tmpl string) string {
	if tmpl == "" || !strings.Contains(tmpl, "{") {
		return tmpl
	}
	var out strings.Builder
	i := 0
	for i < len(tmpl) {
		start := strings.IndexByte(tmpl[i:], '{')
		if start < 0 {
			out.WriteString(tmpl[i:])
			break
		}
		start += i
		end := strings.IndexByte(tmpl[start:], '}')
		if end < 0 {
			out.WriteString(tmpl[i:])
			break
		}
		end += start
		out.WriteString(tmpl[i:start])
		out.WriteString(resolveReasonRef(ec, tmpl[start+1:end]))
		i = end + 1
	}
	return out.String()
}

func resolveReasonRef(ec *ExecutionContext, ref string) string {
	path := strings.Split(ref, ".")
	cur, ok := value.FromObject(ec.Variables), true
	for _, seg := range path {
		obj, isObj := cur.AsObject()
		if !isObj {
			return ""
		}
		cur, ok = obj.Get(seg)
		if !ok {
			return ""
		}
	}
	return cur.CoerceString()
}

// fatalFeatureError returns a DecisionError when err is a FeatureError
// whose feature is configured on_error: fail_request; nil otherwise.
func (in *Interpreter) fatalFeatureError(err error) error {
	var fe xerr.FeatureError
	if !errors.As(err, &fe) {
		return nil
	}
	if in.Resolver != nil && in.Resolver.OnErrorPolicy(fe.Feature) == ir.OnErrorFailRequest {
		return xerr.ErrDecision(xerr.DecisionInternalError, err)
	}
	return nil
}
