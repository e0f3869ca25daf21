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
	"regexp"
	"strings"
	"sync"

	"github.com/corint-run/corint/ast"
	"github.com/corint-run/corint/trace"
	"github.com/corint-run/corint/value"
	"github.com/corint-run/corint/xerr"
)

// Evaluate implements the `evaluate(expr, context) -> Value | TypeError |
// UndefinedField` contract. Errors it returns are always one
// of xerr's runtime kinds (TypeError, ArithmeticError, xerr.FeatureError)
// -- ParseError/CompileError never reach here, having already been
// surfaced at repository load.
func Evaluate(ec *ExecutionContext, expr ast.Expression) (value.Value, error) {
	switch e := expr.(type) {
	case *ast.Literal:
		return e.Value, nil
	case *ast.ArrayLiteral:
		return evalArrayLiteral(ec, e)
	case *ast.FieldAccess:
		return evalFieldAccess(ec, e)
	case *ast.Unary:
		return evalUnary(ec, e)
	case *ast.Binary:
		return evalBinary(ec, e)
	case *ast.Ternary:
		return evalTernary(ec, e)
	case *ast.FunctionCall:
		return evalCall(ec, e)
	case *ast.ListRef:
		// A bare ListRef only appears as the right operand of in/not_in,
		// handled directly in evalBinary; reaching here means a ListRef
		// was used somewhere else in the tree, which compile never
		// produces (rewriteListRefs only rewrites in/not_in operands).
		return value.Value{}, xerr.ErrType("list-reference", "list.<id>", "value")
	default:
		return value.Value{}, xerr.ErrType("evaluate", "unknown node", "expression")
	}
}

func evalArrayLiteral(ec *ExecutionContext, e *ast.ArrayLiteral) (value.Value, error) {
	items := make([]value.Value, len(e.Elements))
	for i, el := range e.Elements {
		v, err := Evaluate(ec, el)
		if err != nil {
			return value.Value{}, err
		}
		items[i] = v
	}
	return value.Array(items), nil
}

// evalFieldAccess resolves a dotted path: first through event_data, then
// variables, then (gated on the literal first segment "features") a lazy
// feature lookup through the feature executor. Missing intermediate
// fields degrade to Null rather than raising UndefinedField; an explicit
// `!= null` guard already behaves correctly against Null, and the
// `required` builtin raises UndefinedField where a rule wants one.
func evalFieldAccess(ec *ExecutionContext, fa *ast.FieldAccess) (value.Value, error) {
	if len(fa.Path) == 0 {
		return value.Null(), nil
	}
	if fa.Path[0] == "features" {
		if len(fa.Path) < 2 {
			return value.Null(), nil
		}
		return evalFeatureAccess(ec, fa.Path[1:])
	}

	if v, ok := lookupPath(ec.EventData, fa.Path); ok {
		return v, nil
	}
	if v, ok := lookupPath(ec.Variables, fa.Path); ok {
		return v, nil
	}
	return value.Null(), nil
}

func evalFeatureAccess(ec *ExecutionContext, rest []string) (value.Value, error) {
	name := rest[0]
	if ec.Resolver == nil {
		if v, ok := ec.FeatureCache[name]; ok {
			return v, nil
		}
		return value.Value{}, xerr.ErrFeature(xerr.FeatureUnavailable, name, nil)
	}
	_, cached := ec.FeatureCache[name]
	v, err := ec.Resolver.Resolve(ec.Ctx, name, ec.EventData, ec.FeatureCache)
	if ec.TraceEnabled && ec.Trace != nil {
		n, done := trace.New("feature", name, map[string]any{"cache": cached})
		done()
		if !cached {
			if meta, ok := ec.Resolver.QueryMeta(name, ec.EventData); ok {
				n.SetMeta("query", meta)
			}
		}
		ec.Trace.Attach(n.SetErr(err))
	}
	if err != nil {
		return value.Value{}, err
	}
	if len(rest) == 1 {
		return v, nil
	}
	cur := v
	for _, seg := range rest[1:] {
		obj, ok := cur.AsObject()
		if !ok {
			return value.Null(), nil
		}
		next, ok := obj.Get(seg)
		if !ok {
			return value.Null(), nil
		}
		cur = next
	}
	return cur, nil
}

func lookupPath(root *value.Object, path []string) (value.Value, bool) {
	cur := value.FromObject(root)
	for _, seg := range path {
		obj, ok := cur.AsObject()
		if !ok {
			return value.Null(), false
		}
		next, ok := obj.Get(seg)
		if !ok {
			return value.Null(), false
		}
		cur = next
	}
	return cur, true
}

func evalUnary(ec *ExecutionContext, e *ast.Unary) (value.Value, error) {
	v, err := Evaluate(ec, e.Operand)
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
	default:
		return value.Value{}, xerr.ErrType(string(e.Op), "unknown", "unary operator")
	}
}

func evalTernary(ec *ExecutionContext, e *ast.Ternary) (value.Value, error) {
	cond, err := Evaluate(ec, e.Cond)
	if err != nil {
		return value.Value{}, err
	}
	// Ternary evaluates lazily: only the selected branch runs.
	if cond.Truthy() {
		return Evaluate(ec, e.Then)
	}
	return Evaluate(ec, e.Else)
}

func evalBinary(ec *ExecutionContext, e *ast.Binary) (value.Value, error) {
	switch e.Op {
	case ast.OpAnd:
		l, err := Evaluate(ec, e.Left)
		if err != nil {
			return value.Value{}, err
		}
		if !l.Truthy() {
			return value.Bool(false), nil // short-circuit: Right never evaluated
		}
		r, err := Evaluate(ec, e.Right)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(r.Truthy()), nil
	case ast.OpOr:
		l, err := Evaluate(ec, e.Left)
		if err != nil {
			return value.Value{}, err
		}
		if l.Truthy() {
			return value.Bool(true), nil // short-circuit: Right never evaluated
		}
		r, err := Evaluate(ec, e.Right)
		if err != nil {
			return value.Value{}, err
		}
		return value.Bool(r.Truthy()), nil
	case ast.OpIn, ast.OpNotIn:
		return evalMembership(ec, e)
	}

	l, err := Evaluate(ec, e.Left)
	if err != nil {
		return value.Value{}, err
	}
	r, err := Evaluate(ec, e.Right)
	if err != nil {
		return value.Value{}, err
	}
	return evalBinaryValues(e.Op, l, r)
}

func evalBinaryValues(op ast.BinaryOp, l, r value.Value) (value.Value, error) {
	switch op {
	case ast.OpEq:
		return value.Bool(l.Equal(r)), nil
	case ast.OpNeq:
		return value.Bool(!l.Equal(r)), nil
	case ast.OpLt, ast.OpGt, ast.OpLte, ast.OpGte:
		// "Binary comparisons on Null are false except ==/!=".
		if l.IsNull() || r.IsNull() {
			return value.Bool(false), nil
		}
		cmp, ok := l.Compare(r)
		if !ok {
			return value.Value{}, xerr.ErrType(string(op), l.Kind().String(), r.Kind().String())
		}
		switch op {
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
			return value.Value{}, xerr.ErrType(string(op), "non-number", "Number")
		}
		switch op {
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
		if l.IsNull() || r.IsNull() {
			return value.Bool(false), nil
		}
		ls, lok := l.AsString()
		rs, rok := r.AsString()
		if !lok || !rok {
			return value.Value{}, xerr.ErrType(string(op), "non-string", "String")
		}
		switch op {
		case ast.OpContains:
			return value.Bool(strings.Contains(ls, rs)), nil
		case ast.OpStartsWith:
			return value.Bool(strings.HasPrefix(ls, rs)), nil
		default:
			return value.Bool(strings.HasSuffix(ls, rs)), nil
		}
	case ast.OpRegex:
		if l.IsNull() || r.IsNull() {
			return value.Bool(false), nil
		}
		ls, lok := l.AsString()
		pattern, rok := r.AsString()
		if !lok || !rok {
			return value.Value{}, xerr.ErrType(string(op), "non-string", "String")
		}
		re, err := compiledRegex(pattern)
		if err != nil {
			return value.Value{}, xerr.ErrType("regex", "invalid pattern", err.Error())
		}
		return value.Bool(re.MatchString(ls)), nil
	}
	return value.Value{}, xerr.ErrType(string(op), "unsupported operator", "")
}

// regexCache holds compiled patterns across requests. Literal patterns
// are validated at repository load; this keeps their compiled form, and
// covers the rare dynamically-built pattern too.
var regexCache sync.Map // pattern string -> *regexp.Regexp

func compiledRegex(pattern string) (*regexp.Regexp, error) {
	if cached, ok := regexCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	regexCache.Store(pattern, re)
	return re, nil
}

// evalMembership implements `in`/`not_in`: the right
// operand is either an array-valued expression (tested by Value equality)
// or a compiled list.<id> designator (tested by the list backend's string
// coercion rule).
func evalMembership(ec *ExecutionContext, e *ast.Binary) (value.Value, error) {
	l, err := Evaluate(ec, e.Left)
	if err != nil {
		return value.Value{}, err
	}

	var contains bool
	if lr, ok := e.Right.(*ast.ListRef); ok {
		if l.IsNull() {
			contains = false
		} else {
			lst, ok := ec.Lists[lr.ListID]
			if !ok {
				return value.Value{}, xerr.ErrType("in", "unknown list", lr.ListID)
			}
			contains, err = lst.Contains(ec.Ctx, l.CoerceString())
			if err != nil {
				return value.Value{}, err
			}
		}
	} else {
		r, err := Evaluate(ec, e.Right)
		if err != nil {
			return value.Value{}, err
		}
		arr, ok := r.AsArray()
		if !ok {
			return value.Value{}, xerr.ErrType(string(e.Op), r.Kind().String(), "Array")
		}
		if !l.IsNull() {
			for _, item := range arr {
				if l.Equal(item) {
					contains = true
					break
				}
			}
		}
	}

	if e.Op == ast.OpNotIn {
		return value.Bool(!contains), nil
	}
	return value.Bool(contains), nil
}
