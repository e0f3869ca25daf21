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
	"regexp"

	"github.com/pkg/errors"

	"github.com/corint-run/corint/ast"
	"github.com/corint-run/corint/ir"
	"github.com/corint-run/corint/parser"
	"github.com/corint-run/corint/value"
	"github.com/corint-run/corint/xerr"
)

// parseExpr parses one DSL expression field, wrapping parser errors as
// xerr.ParseError/CompileError for uniform reporting at repository load.
func parseExpr(src, field string) (ast.Expression, error) {
	if src == "" {
		return nil, fmt.Errorf("compile: %s: empty expression", field)
	}
	expr, err := parser.Parse(src, field)
	if err != nil {
		return nil, xerr.Wrap(err, "compile: %s", field)
	}
	return expr, nil
}

// rewriteListRefs walks expr, replacing any `X in list.<id>` /
// `X not_in list.<id>` right-hand FieldAccess(["list", id]) with a
// resolved ast.ListRef, validating id against the compiled list table.
func rewriteListRefs(expr ast.Expression, lists map[string]*ir.List, field string) (ast.Expression, error) {
	if expr == nil {
		return nil, nil
	}
	switch e := expr.(type) {
	case *ast.Binary:
		left, err := rewriteListRefs(e.Left, lists, field)
		if err != nil {
			return nil, err
		}
		e.Left = left

		if (e.Op == ast.OpIn || e.Op == ast.OpNotIn) && isListDesignator(e.Right) {
			fa := e.Right.(*ast.FieldAccess)
			id := fa.Path[1]
			if _, ok := lists[id]; !ok {
				return nil, xerr.ErrUnresolvedReference("list", id, tokensRangeOf(fa.Position()))
			}
			e.Right = ast.NewListRef(id, fa.Position())
			return e, nil
		}
		right, err := rewriteListRefs(e.Right, lists, field)
		if err != nil {
			return nil, err
		}
		e.Right = right
		return e, nil
	case *ast.Unary:
		operand, err := rewriteListRefs(e.Operand, lists, field)
		if err != nil {
			return nil, err
		}
		e.Operand = operand
		return e, nil
	case *ast.Ternary:
		cond, err := rewriteListRefs(e.Cond, lists, field)
		if err != nil {
			return nil, err
		}
		then, err := rewriteListRefs(e.Then, lists, field)
		if err != nil {
			return nil, err
		}
		els, err := rewriteListRefs(e.Else, lists, field)
		if err != nil {
			return nil, err
		}
		e.Cond, e.Then, e.Else = cond, then, els
		return e, nil
	case *ast.FunctionCall:
		for i, a := range e.Args {
			rewritten, err := rewriteListRefs(a, lists, field)
			if err != nil {
				return nil, err
			}
			e.Args[i] = rewritten
		}
		return e, nil
	case *ast.ArrayLiteral:
		for i, el := range e.Elements {
			rewritten, err := rewriteListRefs(el, lists, field)
			if err != nil {
				return nil, err
			}
			e.Elements[i] = rewritten
		}
		return e, nil
	default:
		return expr, nil
	}
}

func isListDesignator(expr ast.Expression) bool {
	fa, ok := expr.(*ast.FieldAccess)
	return ok && len(fa.Path) == 2 && fa.Path[0] == "list"
}

// checkFeatureRefs verifies every `features.<name>` access against the
// compiled feature table, so an unresolved feature is a load-time error
// rather than a per-request FeatureError.
func checkFeatureRefs(expr ast.Expression, features map[string]*ir.Feature, field string) error {
	if expr == nil {
		return nil
	}
	switch e := expr.(type) {
	case *ast.FieldAccess:
		if len(e.Path) >= 2 && e.Path[0] == "features" {
			if _, ok := features[e.Path[1]]; !ok {
				return xerr.ErrUnresolvedReference("feature", e.Path[1], tokensRangeOf(e.Position()))
			}
		}
		return nil
	case *ast.Unary:
		return checkFeatureRefs(e.Operand, features, field)
	case *ast.Binary:
		if err := checkFeatureRefs(e.Left, features, field); err != nil {
			return err
		}
		return checkFeatureRefs(e.Right, features, field)
	case *ast.Ternary:
		if err := checkFeatureRefs(e.Cond, features, field); err != nil {
			return err
		}
		if err := checkFeatureRefs(e.Then, features, field); err != nil {
			return err
		}
		return checkFeatureRefs(e.Else, features, field)
	case *ast.FunctionCall:
		for _, a := range e.Args {
			if err := checkFeatureRefs(a, features, field); err != nil {
				return err
			}
		}
		return nil
	case *ast.ArrayLiteral:
		for _, el := range e.Elements {
			if err := checkFeatureRefs(el, features, field); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

// checkRegexLiterals compiles every literal `regex` operand at compile
// time.
func checkRegexLiterals(expr ast.Expression, field string) error {
	if expr == nil {
		return nil
	}
	switch e := expr.(type) {
	case *ast.Binary:
		if e.Op == ast.OpRegex {
			if lit, ok := e.Right.(*ast.Literal); ok {
				if s, ok := lit.Value.AsString(); ok {
					if _, err := regexp.Compile(s); err != nil {
						return xerr.ErrCompile(tokensRangeOf(e.Position()), "%s: invalid regex %q: %s", field, s, err)
					}
				}
			}
		}
		if err := checkRegexLiterals(e.Left, field); err != nil {
			return err
		}
		return checkRegexLiterals(e.Right, field)
	case *ast.Unary:
		return checkRegexLiterals(e.Operand, field)
	case *ast.Ternary:
		if err := checkRegexLiterals(e.Cond, field); err != nil {
			return err
		}
		if err := checkRegexLiterals(e.Then, field); err != nil {
			return err
		}
		return checkRegexLiterals(e.Else, field)
	case *ast.FunctionCall:
		for _, a := range e.Args {
			if err := checkRegexLiterals(a, field); err != nil {
				return err
			}
		}
	case *ast.ArrayLiteral:
		for _, el := range e.Elements {
			if err := checkRegexLiterals(el, field); err != nil {
				return err
			}
		}
	}
	return nil
}

// substituteParams replaces every `params.<name>` access in expr with the
// constant bound for <name>, erroring on a parameter the caller did not
// supply. Substitution runs before folding so a fully-parameterized
// condition can still collapse to a literal.
func substituteParams(expr ast.Expression, params map[string]any, field string) (ast.Expression, error) {
	switch e := expr.(type) {
	case *ast.FieldAccess:
		if len(e.Path) == 2 && e.Path[0] == "params" {
			raw, ok := params[e.Path[1]]
			if !ok {
				return nil, fmt.Errorf("compile: %s: missing rule parameter %q", field, e.Path[1])
			}
			v, err := value.FromAny(raw)
			if err != nil {
				return nil, fmt.Errorf("compile: %s: parameter %q: %w", field, e.Path[1], err)
			}
			return ast.NewLiteral(v, e.Position()), nil
		}
		return e, nil
	case *ast.Unary:
		operand, err := substituteParams(e.Operand, params, field)
		if err != nil {
			return nil, err
		}
		e.Operand = operand
		return e, nil
	case *ast.Binary:
		left, err := substituteParams(e.Left, params, field)
		if err != nil {
			return nil, err
		}
		right, err := substituteParams(e.Right, params, field)
		if err != nil {
			return nil, err
		}
		e.Left, e.Right = left, right
		return e, nil
	case *ast.Ternary:
		cond, err := substituteParams(e.Cond, params, field)
		if err != nil {
			return nil, err
		}
		then, err := substituteParams(e.Then, params, field)
		if err != nil {
			return nil, err
		}
		els, err := substituteParams(e.Else, params, field)
		if err != nil {
			return nil, err
		}
		e.Cond, e.Then, e.Else = cond, then, els
		return e, nil
	case *ast.FunctionCall:
		for i, a := range e.Args {
			sub, err := substituteParams(a, params, field)
			if err != nil {
				return nil, err
			}
			e.Args[i] = sub
		}
		return e, nil
	case *ast.ArrayLiteral:
		for i, el := range e.Elements {
			sub, err := substituteParams(el, params, field)
			if err != nil {
				return nil, err
			}
			e.Elements[i] = sub
		}
		return e, nil
	default:
		return expr, nil
	}
}

// isPure reports whether expr can be evaluated with no field/feature/list
// access -- a precondition for constant folding.
func isPure(expr ast.Expression) bool {
	switch e := expr.(type) {
	case *ast.Literal:
		return true
	case *ast.Unary:
		return isPure(e.Operand)
	case *ast.Binary:
		return isPure(e.Left) && isPure(e.Right)
	case *ast.Ternary:
		return isPure(e.Cond) && isPure(e.Then) && isPure(e.Else)
	case *ast.ArrayLiteral:
		for _, el := range e.Elements {
			if !isPure(el) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// costOf gives expr a rough evaluation-cost rank for pass 5's reordering:
// pure/local terms are cheap, feature/list/function-call terms expensive.
func costOf(expr ast.Expression) int {
	switch e := expr.(type) {
	case *ast.Literal:
		return 0
	case *ast.FieldAccess:
		if len(e.Path) > 0 && e.Path[0] == "features" {
			return 100
		}
		return 1
	case *ast.ListRef:
		return 50
	case *ast.Unary:
		return costOf(e.Operand) + 1
	case *ast.Binary:
		c := costOf(e.Left) + costOf(e.Right) + 1
		if e.Op == ast.OpRegex {
			c += 10
		}
		return c
	case *ast.Ternary:
		return costOf(e.Cond) + 1
	case *ast.FunctionCall:
		c := 5
		for _, a := range e.Args {
			c += costOf(a)
		}
		return c
	default:
		return 10
	}
}

// foldConstants evaluates pure sub-expressions at compile time, replacing
// them with their resulting Literal. Arithmetic on non-numeric literal
// operands is a compile error here; other evaluation failures (a literal
// division by zero, mixed-kind comparisons) keep their runtime semantics.
func foldConstants(expr ast.Expression, field string) (ast.Expression, error) {
	if expr == nil || !isPure(expr) {
		return foldChildren(expr, field)
	}
	v, err := evalPure(expr)
	if err != nil {
		var te xerr.TypeError
		if errors.As(err, &te) && isArithmeticOp(te.Op) {
			return nil, xerr.ErrCompile(tokensRangeOf(expr.Position()), "%s: %s", field, te.Error())
		}
		return foldChildren(expr, field)
	}
	return ast.NewLiteral(v, expr.Position()), nil
}

func isArithmeticOp(op string) bool {
	switch op {
	case "+", "-", "*", "/", "%":
		return true
	default:
		return false
	}
}

func foldChildren(expr ast.Expression, field string) (ast.Expression, error) {
	var err error
	switch e := expr.(type) {
	case *ast.Unary:
		if e.Operand, err = foldConstants(e.Operand, field); err != nil {
			return nil, err
		}
		return e, nil
	case *ast.Binary:
		if e.Left, err = foldConstants(e.Left, field); err != nil {
			return nil, err
		}
		if e.Right, err = foldConstants(e.Right, field); err != nil {
			return nil, err
		}
		return e, nil
	case *ast.Ternary:
		if e.Cond, err = foldConstants(e.Cond, field); err != nil {
			return nil, err
		}
		if e.Then, err = foldConstants(e.Then, field); err != nil {
			return nil, err
		}
		if e.Else, err = foldConstants(e.Else, field); err != nil {
			return nil, err
		}
		return e, nil
	case *ast.FunctionCall:
		for i, a := range e.Args {
			if e.Args[i], err = foldConstants(a, field); err != nil {
				return nil, err
			}
		}
		return e, nil
	case *ast.ArrayLiteral:
		for i, el := range e.Elements {
			if e.Elements[i], err = foldConstants(el, field); err != nil {
				return nil, err
			}
		}
		return e, nil
	default:
		return expr, nil
	}
}

// evalPure evaluates a provably side-effect-free expression without an
// ExecutionContext. This intentionally duplicates a slice of the
// interpreter's expression semantics rather than importing package interp,
// which depends on compile's output (ir) and would otherwise cycle.
func evalPure(expr ast.Expression) (value.Value, error) {
	switch e := expr.(type) {
	case *ast.Literal:
		return e.Value, nil
	case *ast.Unary:
		v, err := evalPure(e.Operand)
		if err != nil {
			return value.Value{}, err
		}
		switch e.Op {
		case ast.OpNot:
			return value.Bool(!v.Truthy()), nil
		case ast.OpNeg:
			n, ok := v.AsNumber()
			if !ok {
				return value.Value{}, xerr.ErrType("-", v.Kind().String(), "Number")
			}
			return value.Number(-n), nil
		}
		return value.Value{}, fmt.Errorf("compile: unknown unary op %s", e.Op)
	case *ast.Binary:
		return evalPureBinary(e)
	case *ast.Ternary:
		cond, err := evalPure(e.Cond)
		if err != nil {
			return value.Value{}, err
		}
		if cond.Truthy() {
			return evalPure(e.Then)
		}
		return evalPure(e.Else)
	default:
		return value.Value{}, fmt.Errorf("compile: not a pure expression: %T", expr)
	}
}

func evalPureBinary(e *ast.Binary) (value.Value, error) {
	if e.Op == ast.OpAnd {
		l, err := evalPure(e.Left)
		if err != nil {
			return value.Value{}, err
		}
		if !l.Truthy() {
			return value.Bool(false), nil
		}
		r, err := evalPure(e.Right)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(r.Truthy()), nil
	}
	if e.Op == ast.OpOr {
		l, err := evalPure(e.Left)
		if err != nil {
			return value.Value{}, err
		}
		if l.Truthy() {
			return value.Bool(true), nil
		}
		r, err := evalPure(e.Right)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(r.Truthy()), nil
	}

	l, err := evalPure(e.Left)
	if err != nil {
		return value.Value{}, err
	}
	r, err := evalPure(e.Right)
	if err != nil {
		return value.Value{}, err
	}

	switch e.Op {
	case ast.OpEq:
		return value.Bool(l.Equal(r)), nil
	case ast.OpNeq:
		return value.Bool(!l.Equal(r)), nil
	case ast.OpLt, ast.OpGt, ast.OpLte, ast.OpGte:
		cmp, ok := l.Compare(r)
		if !ok {
			return value.Value{}, xerr.ErrType(string(e.Op), l.Kind().String(), r.Kind().String())
		}
		switch e.Op {
		case ast.OpLt:
			return value.Bool(cmp < 0), nil
		case ast.OpGt:
			return value.Bool(cmp > 0), nil
		case ast.OpLte:
			return value.Bool(cmp <= 0), nil
		default:
			return value.Bool(cmp >= 0), nil
		}
	case ast.OpAdd, ast.OpSub, ast.OpMul, ast.OpDiv, ast.OpMod:
		ln, lok := l.AsNumber()
		rn, rok := r.AsNumber()
		if !lok || !rok {
			return value.Value{}, xerr.ErrType(string(e.Op), "non-number", "Number")
		}
		switch e.Op {
		case ast.OpAdd:
			return value.Number(ln + rn), nil
		case ast.OpSub:
			return value.Number(ln - rn), nil
		case ast.OpMul:
			return value.Number(ln * rn), nil
		case ast.OpDiv:
			if rn == 0 {
				return value.Value{}, xerr.ErrArithmetic("division by zero")
			}
			return value.Number(ln / rn), nil
		case ast.OpMod:
			if rn == 0 {
				return value.Value{}, xerr.ErrArithmetic("modulo by zero")
			}
			return value.Number(float64(int64(ln) % int64(rn))), nil
		}
	case ast.OpContains, ast.OpStartsWith, ast.OpEndsWith:
		// String-only; left as a runtime concern if operands aren't both
		// provably string literals (kept simple, constant folding is an
		// optimization, not required for correctness).
		return value.Value{}, fmt.Errorf("compile: string op %s not folded at compile time", e.Op)
	}
	return value.Value{}, fmt.Errorf("compile: cannot fold operator %s at compile time", e.Op)
}
