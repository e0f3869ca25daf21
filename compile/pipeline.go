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
	"fmt"

	"github.com/corint-run/corint/dsl"
	"github.com/corint-run/corint/ir"
	"github.com/corint-run/corint/tokens"
	"github.com/corint-run/corint/xerr"
)

func compilePipelines(docs map[string]dsl.PipelineDoc, rulesets map[string]*ir.Ruleset, lists map[string]*ir.List, features map[string]*ir.Feature) (map[string]*ir.Pipeline, error) {
	out := map[string]*ir.Pipeline{}
	for _, id := range sortedKeys(docs) {
		d := docs[id]
		p, err := compilePipeline(d, rulesets, lists, features)
		if err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, nil
}

func compilePipeline(d dsl.PipelineDoc, rulesets map[string]*ir.Ruleset, lists map[string]*ir.List, features map[string]*ir.Feature) (*ir.Pipeline, error) {
	p := &ir.Pipeline{
		ID:    d.ID,
		Name:  d.Name,
		Entry: d.Entry,
		Steps: map[string]*ir.Step{},
	}

	if d.When != "" {
		field := fmt.Sprintf("pipeline:%s/when", d.ID)
		expr, err := parseExpr(d.When, field)
		if err != nil {
			return nil, err
		}
		if err := checkFeatureRefs(expr, features, field); err != nil {
			return nil, err
		}
		expr, err = rewriteListRefs(expr, lists, field)
		if err != nil {
			return nil, err
		}
		p.When, err = foldConstants(expr, field)
		if err != nil {
			return nil, err
		}
	}

	for _, sd := range d.Steps {
		step, err := compileStep(d.ID, sd, rulesets, lists, features)
		if err != nil {
			return nil, err
		}
		if _, dup := p.Steps[step.ID]; dup {
			return nil, fmt.Errorf("compile: pipeline %q has duplicate step id %q", d.ID, step.ID)
		}
		p.Steps[step.ID] = step
	}

	if p.Entry == "" {
		return nil, fmt.Errorf("compile: pipeline %q is missing an entry step", d.ID)
	}
	if _, ok := p.Steps[p.Entry]; !ok {
		return nil, xerr.ErrUnresolvedReference("step", p.Entry, tokens.Range{})
	}
	if err := validateStepReachability(p); err != nil {
		return nil, err
	}

	for i, dc := range d.Decision {
		field := fmt.Sprintf("pipeline:%s/decision[%d]", d.ID, i)
		clause := ir.DecisionClause{Default: dc.Default, Action: dc.Action, Reason: dc.Reason, Actions: append([]string{}, dc.Actions...)}
		if !dc.Default {
			expr, err := parseExpr(dc.Condition, field)
			if err != nil {
				return nil, err
			}
			if err := checkFeatureRefs(expr, features, field); err != nil {
				return nil, err
			}
			expr, err = rewriteListRefs(expr, lists, field)
			if err != nil {
				return nil, err
			}
			clause.Condition, err = foldConstants(expr, field)
			if err != nil {
				return nil, err
			}
		}
		p.Decision = append(p.Decision, clause)
	}

	return p, nil
}

func compileStep(pipelineID string, sd dsl.StepDoc, rulesets map[string]*ir.Ruleset, lists map[string]*ir.List, features map[string]*ir.Feature) (*ir.Step, error) {
	step := &ir.Step{ID: sd.ID, Next: sd.Next}
	switch sd.Type {
	case "ruleset":
		step.Kind = ir.StepRuleset
		if _, ok := rulesets[sd.RulesetRef]; !ok {
			return nil, xerr.ErrUnresolvedReference("ruleset", sd.RulesetRef, tokens.Range{})
		}
		step.RulesetRef = sd.RulesetRef
	case "router":
		step.Kind = ir.StepRouter
		step.Default = sd.Default
		for i, rd := range sd.Routes {
			field := fmt.Sprintf("pipeline:%s/step:%s/route[%d]", pipelineID, sd.ID, i)
			expr, err := parseExpr(rd.When, field)
			if err != nil {
				return nil, err
			}
			if err := checkFeatureRefs(expr, features, field); err != nil {
				return nil, err
			}
			expr, err = rewriteListRefs(expr, lists, field)
			if err != nil {
				return nil, err
			}
			expr, err = foldConstants(expr, field)
			if err != nil {
				return nil, err
			}
			step.Routes = append(step.Routes, ir.Route{When: expr, Next: rd.Next})
		}
	case "external_call":
		step.Kind = ir.StepExternal
		if sd.Provider != "llm" && sd.Provider != "service" {
			return nil, fmt.Errorf("compile: step %q has unknown provider %q", sd.ID, sd.Provider)
		}
		step.External = ir.ExternalCallConfig{Provider: sd.Provider, Params: sd.Config}
	default:
		return nil, fmt.Errorf("compile: step %q has unknown type %q", sd.ID, sd.Type)
	}
	return step, nil
}

// validateStepReachability checks every step of the pipeline, confirming
// every `next`/route/default target resolves to a real step or "end";
// the runtime step budget guards loops, this guards dangling references.
func validateStepReachability(p *ir.Pipeline) error {
	resolves := func(id string) bool {
		return id == "end" || id == "" || p.Steps[id] != nil
	}
	for _, s := range p.Steps {
		if !resolves(s.Next) {
			return xerr.ErrUnresolvedReference("step", s.Next, tokens.Range{})
		}
		if s.Kind == ir.StepRouter {
			if !resolves(s.Default) {
				return xerr.ErrUnresolvedReference("step", s.Default, tokens.Range{})
			}
			for _, r := range s.Routes {
				if !resolves(r.Next) {
					return xerr.ErrUnresolvedReference("step", r.Next, tokens.Range{})
				}
			}
		}
	}
	return nil
}
