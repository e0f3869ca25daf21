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
	"slices"
	"sort"

	"github.com/corint-run/corint/ast"
	"github.com/corint-run/corint/dag"
	"github.com/corint-run/corint/dsl"
	"github.com/corint-run/corint/ir"
	"github.com/corint-run/corint/tokens"
	"github.com/corint-run/corint/xerr"
)

// stringNode lets a plain ruleset-id string participate in dag.G[T], which
// requires fmt.Stringer nodes.
type stringNode string

func (s stringNode) String() string { return string(s) }

type rulesetCompiler struct {
	compiler *Compiler
	lists    map[string]*ir.List
	features map[string]*ir.Feature
	resolved map[string]*ir.Ruleset
}

// compileAll flattens every ruleset's `extends` chain in dependency
// order, using package dag to fail fast on any circular chain.
func (rc *rulesetCompiler) compileAll() (map[string]*ir.Ruleset, error) {
	g := dag.New[stringNode]()
	for id := range rc.compiler.rulesets {
		g.AddNode(stringNode(id))
	}
	for id, rs := range rc.compiler.rulesets {
		if rs.Extends != "" {
			if _, ok := rc.compiler.rulesets[rs.Extends]; !ok {
				return nil, xerr.ErrUnresolvedReference("ruleset", rs.Extends, tokens.Range{})
			}
			if err := g.AddEdge(stringNode(id), stringNode(rs.Extends)); err != nil {
				return nil, fmt.Errorf("compile: ruleset %q extends itself", id)
			}
		}
	}
	if cycle := g.DetectFirstCycle(); len(cycle) > 0 {
		chain := make([]string, len(cycle))
		for i, n := range cycle {
			chain[i] = string(n)
		}
		return nil, xerr.ErrCircularExtends(chain)
	}
	order, err := g.TopoSort()
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	// TopoSort, for edges AddEdge(derived, base), returns derived before
	// base; reverse so each base is compiled before anything extending it.
	slices.Reverse(order)

	out := map[string]*ir.Ruleset{}
	for _, n := range order {
		id := string(n)
		rs, err := rc.compileOne(id, out)
		if err != nil {
			return nil, err
		}
		out[id] = rs
	}
	return out, nil
}

func (rc *rulesetCompiler) compileOne(id string, already map[string]*ir.Ruleset) (*ir.Ruleset, error) {
	doc := rc.compiler.rulesets[id]

	rules, err := rc.compileRules(doc, id)
	if err != nil {
		return nil, err
	}
	conclusion, err := rc.compileConclusion(doc, id)
	if err != nil {
		return nil, err
	}

	result := &ir.Ruleset{ID: id, Rules: rules, Conclusion: conclusion}

	if doc.Extends != "" {
		base, ok := already[doc.Extends]
		if !ok {
			return nil, fmt.Errorf("compile: ruleset %q extends %q which was not compiled yet", id, doc.Extends)
		}
		// Derived rules are appended after base rules; derived conclusion
		// clauses prepend before base clauses so the derived ruleset wins
		// on match.
		result.Rules = append(append([]*ir.Rule{}, base.Rules...), result.Rules...)
		result.Conclusion = append(append([]ir.ConclusionClause{}, result.Conclusion...), base.Conclusion...)
	}

	result.Conclusion = eliminateDeadClauses(result.Conclusion)
	return result, nil
}

func (rc *rulesetCompiler) compileRules(doc dsl.RulesetDoc, rsID string) ([]*ir.Rule, error) {
	var out []*ir.Rule
	for _, ref := range doc.Rules {
		var rd dsl.RuleDoc
		if ref.Inline != nil {
			rd = *ref.Inline
		} else {
			found, ok := rc.compiler.rules[ref.ID]
			if !ok {
				return nil, xerr.ErrUnresolvedReference("rule", ref.ID, tokens.Range{})
			}
			rd = found
		}
		rule, err := rc.compileRule(rd, rsID, ref.Params)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

func (rc *rulesetCompiler) compileRule(rd dsl.RuleDoc, rsID string, params map[string]any) (*ir.Rule, error) {
	field := fmt.Sprintf("ruleset:%s/rule:%s", rsID, rd.ID)
	when, err := rc.compileWhen(rd.When, field, params)
	if err != nil {
		return nil, err
	}
	return &ir.Rule{
		ID:          rd.ID,
		Name:        rd.Name,
		Description: rd.Description,
		When:        when,
		Score:       rd.Score,
	}, nil
}

func (rc *rulesetCompiler) compileWhen(w dsl.WhenSpec, field string, params map[string]any) (ir.WhenBlock, error) {
	var conds []ast.Expression
	for i, src := range w.Conditions() {
		expr, err := parseExpr(src, fmt.Sprintf("%s/when[%d]", field, i))
		if err != nil {
			return ir.WhenBlock{}, err
		}
		if len(params) > 0 {
			expr, err = substituteParams(expr, params, field)
			if err != nil {
				return ir.WhenBlock{}, err
			}
		}
		if err := checkRegexLiterals(expr, field); err != nil {
			return ir.WhenBlock{}, err
		}
		if err := checkFeatureRefs(expr, rc.features, field); err != nil {
			return ir.WhenBlock{}, err
		}
		expr, err = rewriteListRefs(expr, rc.lists, field)
		if err != nil {
			return ir.WhenBlock{}, err
		}
		expr, err = foldConstants(expr, field)
		if err != nil {
			return ir.WhenBlock{}, err
		}
		conds = append(conds, expr)
	}
	conds = reorderByCost(conds)
	return ir.WhenBlock{
		EventType:  w.EventType,
		Conditions: conds,
		Combinator: ir.Combinator(w.Combinator()),
	}, nil
}

// reorderByCost moves cheap subterms before
// expensive ones within the same combinator, using a stable sort so ties
// preserve declaration order -- reordering changes only short-circuit
// count, never which expressions fire, since each condition's truth value
// does not depend on evaluation order within a pure-boolean list.
func reorderByCost(conds []ast.Expression) []ast.Expression {
	out := make([]ast.Expression, len(conds))
	copy(out, conds)
	sort.SliceStable(out, func(i, j int) bool {
		return costOf(out[i]) < costOf(out[j])
	})
	return out
}

func (rc *rulesetCompiler) compileConclusion(doc dsl.RulesetDoc, rsID string) ([]ir.ConclusionClause, error) {
	var out []ir.ConclusionClause
	seenDefault := false
	for i, c := range doc.Conclusion {
		field := fmt.Sprintf("ruleset:%s/conclusion[%d]", rsID, i)
		clause := ir.ConclusionClause{
			Default:        c.Default,
			Signal:         c.Signal,
			Actions:        append([]string{}, c.Actions...),
			ReasonTemplate: c.Reason,
		}
		if c.Default {
			if seenDefault {
				return nil, fmt.Errorf("compile: ruleset %q has more than one default conclusion clause", rsID)
			}
			seenDefault = true
		} else {
			expr, err := parseExpr(c.Condition, field)
			if err != nil {
				return nil, err
			}
			if err := checkFeatureRefs(expr, rc.features, field); err != nil {
				return nil, err
			}
			expr, err = rewriteListRefs(expr, rc.lists, field)
			if err != nil {
				return nil, err
			}
			clause.Condition, err = foldConstants(expr, field)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, clause)
	}
	return out, nil
}

// eliminateDeadClauses drops conclusion clauses that can never be reached
// because a prior clause is a constant-true literal or an unconditional
// default.
func eliminateDeadClauses(clauses []ir.ConclusionClause) []ir.ConclusionClause {
	var out []ir.ConclusionClause
	for _, c := range clauses {
		out = append(out, c)
		if c.Default || isConstantTrue(c.Condition) {
			break
		}
	}
	return out
}

func isConstantTrue(expr ast.Expression) bool {
	lit, ok := expr.(*ast.Literal)
	if !ok {
		return false
	}
	b, ok := lit.Value.AsBool()
	return ok && b
}
