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
	"math"
	"strings"
	"time"

	"github.com/corint-run/corint/ast"
	"github.com/corint-run/corint/value"
	"github.com/corint-run/corint/xerr"
)

// Builtin is one callable available to the expression grammar's
// `name(arg1, arg2, ...)` form. Arguments arrive already evaluated;
// evaluation order is left-to-right and not short-circuited.
type Builtin func(ec *ExecutionContext, args []value.Value) (value.Value, error)

// builtins is the fixed callable table. There is no user registration
// hook: anything riskier than these helpers belongs in an external-call
// step, where it is sandboxed and traced.
var builtins = map[string]Builtin{
	"now":       builtinNow,
	"len":       builtinLen,
	"abs":       builtinAbs,
	"min":       builtinMin,
	"max":       builtinMax,
	"floor":     builtinFloor,
	"ceil":      builtinCeil,
	"round":     builtinRound,
	"lower":     builtinLower,
	"upper":     builtinUpper,
	"trim":      builtinTrim,
	"coalesce":  builtinCoalesce,
	"to_number": builtinToNumber,
	"to_string": builtinToString,
	"required":  builtinRequired,
	"index":     builtinIndex,
}

func evalCall(ec *ExecutionContext, call *ast.FunctionCall) (value.Value, error) {
	fn, ok := builtins[call.Name]
	if !ok {
		return value.Value{}, xerr.ErrType(call.Name, "unknown function", "builtin")
	}
	args := make([]value.Value, len(call.Args))
	for i, a := range call.Args {
		v, err := Evaluate(ec, a)
		if err != nil {
			return value.Value{}, err
		}
		args[i] = v
	}
	return fn(ec, args)
}

func builtinNow(_ *ExecutionContext, args []value.Value) (value.Value, error) {
	if len(args) != 0 {
		return value.Value{}, xerr.ErrType("now", "arguments", "none")
	}
	return value.Number(float64(time.Now().Unix())), nil
}

func builtinLen(_ *ExecutionContext, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, xerr.ErrType("len", "argument count", "1")
	}
	v := args[0]
	if s, ok := v.AsString(); ok {
		return value.Number(float64(len(s))), nil
	}
	if arr, ok := v.AsArray(); ok {
		return value.Number(float64(len(arr))), nil
	}
	if obj, ok := v.AsObject(); ok {
		return value.Number(float64(obj.Len())), nil
	}
	if v.IsNull() {
		return value.Number(0), nil
	}
	return value.Value{}, xerr.ErrType("len", v.Kind().String(), "string, array or object")
}

func oneNumber(name string, args []value.Value) (float64, error) {
	if len(args) != 1 {
		return 0, xerr.ErrType(name, "argument count", "1")
	}
	n, ok := args[0].AsNumber()
	if !ok {
		return 0, xerr.ErrType(name, args[0].Kind().String(), "number")
	}
	return n, nil
}

func builtinAbs(_ *ExecutionContext, args []value.Value) (value.Value, error) {
	n, err := oneNumber("abs", args)
	if err != nil {
		return value.Value{}, err
	}
	return value.Number(math.Abs(n)), nil
}

func builtinFloor(_ *ExecutionContext, args []value.Value) (value.Value, error) {
	n, err := oneNumber("floor", args)
	if err != nil {
		return value.Value{}, err
	}
	return value.Number(math.Floor(n)), nil
}

func builtinCeil(_ *ExecutionContext, args []value.Value) (value.Value, error) {
	n, err := oneNumber("ceil", args)
	if err != nil {
		return value.Value{}, err
	}
	return value.Number(math.Ceil(n)), nil
}

func builtinRound(_ *ExecutionContext, args []value.Value) (value.Value, error) {
	n, err := oneNumber("round", args)
	if err != nil {
		return value.Value{}, err
	}
	return value.Number(math.Round(n)), nil
}

func builtinMin(_ *ExecutionContext, args []value.Value) (value.Value, error) {
	return foldNumbers("min", args, math.Min)
}

func builtinMax(_ *ExecutionContext, args []value.Value) (value.Value, error) {
	return foldNumbers("max", args, math.Max)
}

func foldNumbers(name string, args []value.Value, f func(a, b float64) float64) (value.Value, error) {
	if len(args) < 2 {
		return value.Value{}, xerr.ErrType(name, "argument count", ">= 2")
	}
	acc, ok := args[0].AsNumber()
	if !ok {
		return value.Value{}, xerr.ErrType(name, args[0].Kind().String(), "number")
	}
	for _, a := range args[1:] {
		n, ok := a.AsNumber()
		if !ok {
			return value.Value{}, xerr.ErrType(name, a.Kind().String(), "number")
		}
		acc = f(acc, n)
	}
	return value.Number(acc), nil
}

func oneString(name string, args []value.Value) (string, error) {
	if len(args) != 1 {
		return "", xerr.ErrType(name, "argument count", "1")
	}
	s, ok := args[0].AsString()
	if !ok {
		return "", xerr.ErrType(name, args[0].Kind().String(), "string")
	}
	return s, nil
}

func builtinLower(_ *ExecutionContext, args []value.Value) (value.Value, error) {
	s, err := oneString("lower", args)
	if err != nil {
		return value.Value{}, err
	}
	return value.String(strings.ToLower(s)), nil
}

func builtinUpper(_ *ExecutionContext, args []value.Value) (value.Value, error) {
	s, err := oneString("upper", args)
	if err != nil {
		return value.Value{}, err
	}
	return value.String(strings.ToUpper(s)), nil
}

func builtinTrim(_ *ExecutionContext, args []value.Value) (value.Value, error) {
	s, err := oneString("trim", args)
	if err != nil {
		return value.Value{}, err
	}
	return value.String(strings.TrimSpace(s)), nil
}

// builtinCoalesce returns the first non-null argument, or Null.
func builtinCoalesce(_ *ExecutionContext, args []value.Value) (value.Value, error) {
	for _, a := range args {
		if !a.IsNull() {
			return a, nil
		}
	}
	return value.Null(), nil
}

func builtinToNumber(_ *ExecutionContext, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, xerr.ErrType("to_number", "argument count", "1")
	}
	v := args[0]
	switch {
	case v.Kind() == value.KindNumber:
		return v, nil
	case v.IsNull():
		return value.Number(0), nil
	default:
		if b, ok := v.AsBool(); ok {
			if b {
				return value.Number(1), nil
			}
			return value.Number(0), nil
		}
		if s, ok := v.AsString(); ok {
			n, err := value.ParseNumber(s)
			if err != nil {
				return value.Value{}, xerr.ErrType("to_number", s, "numeric string")
			}
			return value.Number(n), nil
		}
		return value.Value{}, xerr.ErrType("to_number", v.Kind().String(), "scalar")
	}
}

func builtinToString(_ *ExecutionContext, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, xerr.ErrType("to_string", "argument count", "1")
	}
	return value.String(args[0].CoerceString()), nil
}

// builtinIndex reads one element out of an array; the grammar has no
// bracket syntax, so `index(items, 0)` is the subscript form. An
// out-of-range index yields Null.
func builtinIndex(_ *ExecutionContext, args []value.Value) (value.Value, error) {
	if len(args) != 2 {
		return value.Value{}, xerr.ErrType("index", "argument count", "2")
	}
	arr, ok := args[0].AsArray()
	if !ok {
		return value.Value{}, xerr.ErrType("index", args[0].Kind().String(), "array")
	}
	n, ok := args[1].AsNumber()
	if !ok {
		return value.Value{}, xerr.ErrType("index", args[1].Kind().String(), "number")
	}
	i := int(n)
	if i < 0 || i >= len(arr) {
		return value.Null(), nil
	}
	return arr[i], nil
}

// builtinRequired passes its argument through unless it is Null, in which
// case the access is treated as an UndefinedField rather than the usual
// degrade-to-Null lookup.
func builtinRequired(_ *ExecutionContext, args []value.Value) (value.Value, error) {
	if len(args) != 1 {
		return value.Value{}, xerr.ErrType("required", "argument count", "1")
	}
	if args[0].IsNull() {
		return value.Value{}, xerr.ErrUndefinedField(nil)
	}
	return args[0], nil
}
