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

package parser

import (
	"testing"

	"github.com/corint-run/corint/ast"
	"github.com/stretchr/testify/require"
)

func TestParsePrecedenceArithmeticBeforeComparison(t *testing.T) {
	expr, err := Parse("1 + 2 * 3 > 5", "test")
	require.NoError(t, err)
	bin, ok := expr.(*ast.Binary)
	require.True(t, ok)
	require.Equal(t, ast.OpGt, bin.Op)
	left, ok := bin.Left.(*ast.Binary)
	require.True(t, ok)
	require.Equal(t, ast.OpAdd, left.Op)
}

func TestParseLogicalPrecedenceAndBeforeOr(t *testing.T) {
	expr, err := Parse("a && b || c && d", "test")
	require.NoError(t, err)
	top, ok := expr.(*ast.Binary)
	require.True(t, ok)
	require.Equal(t, ast.OpOr, top.Op)
	_, leftIsAnd := top.Left.(*ast.Binary)
	require.True(t, leftIsAnd)
}

func TestParseTernaryLowestPrecedence(t *testing.T) {
	expr, err := Parse(`a > 0 ? "pos" : "nonpos"`, "test")
	require.NoError(t, err)
	tern, ok := expr.(*ast.Ternary)
	require.True(t, ok)
	_, condIsBinary := tern.Cond.(*ast.Binary)
	require.True(t, condIsBinary)
}

func TestParseFieldAccessPath(t *testing.T) {
	expr, err := Parse("event.user.id", "test")
	require.NoError(t, err)
	fa, ok := expr.(*ast.FieldAccess)
	require.True(t, ok)
	require.Equal(t, []string{"event", "user", "id"}, fa.Path)
}

func TestParseFunctionCall(t *testing.T) {
	expr, err := Parse(`len(event.items)`, "test")
	require.NoError(t, err)
	call, ok := expr.(*ast.FunctionCall)
	require.True(t, ok)
	require.Equal(t, "len", call.Name)
	require.Len(t, call.Args, 1)
}

func TestParseInOperatorAgainstArrayLiteral(t *testing.T) {
	expr, err := Parse(`event.country in ["US", "CA"]`, "test")
	require.NoError(t, err)
	bin, ok := expr.(*ast.Binary)
	require.True(t, ok)
	require.Equal(t, ast.OpIn, bin.Op)
	_, rightIsArray := bin.Right.(*ast.ArrayLiteral)
	require.True(t, rightIsArray)
}

func TestParseUnaryNegationBindsTighterThanProduct(t *testing.T) {
	expr, err := Parse("-a * b", "test")
	require.NoError(t, err)
	bin, ok := expr.(*ast.Binary)
	require.True(t, ok)
	require.Equal(t, ast.OpMul, bin.Op)
	_, leftIsUnary := bin.Left.(*ast.Unary)
	require.True(t, leftIsUnary)
}

func TestParseTrailingTokenIsError(t *testing.T) {
	_, err := Parse("1 + 2)", "test")
	require.Error(t, err)
}

func TestParseGroupedExpressionOverridesPrecedence(t *testing.T) {
	expr, err := Parse("(1 + 2) * 3", "test")
	require.NoError(t, err)
	bin, ok := expr.(*ast.Binary)
	require.True(t, ok)
	require.Equal(t, ast.OpMul, bin.Op)
	_, leftIsBinary := bin.Left.(*ast.Binary)
	require.True(t, leftIsBinary)
}
