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

package ast

import (
	"fmt"
	"strings"

	"github.com/corint-run/corint/tokens"
)

// FunctionCall is `name(arg1, arg2, ...)`. The callee is resolved by the
// compiler against the builtin function table; there are no
// user-defined functions.
type FunctionCall struct {
	base
	Name string
	Args []Expression
}

func NewFunctionCall(name string, args []Expression, pos tokens.Position) *FunctionCall {
	return &FunctionCall{base: base{Pos: pos}, Name: name, Args: args}
}

func (c *FunctionCall) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.Name, strings.Join(parts, ", "))
}
func (c *FunctionCall) expressionNode() {}

var _ Expression = (*FunctionCall)(nil)

// Ternary is `cond ? then : else`; Then/Else are evaluated lazily, only the
// taken branch runs.
type Ternary struct {
	base
	Cond Expression
	Then Expression
	Else Expression
}

func NewTernary(cond, then, els Expression, pos tokens.Position) *Ternary {
	return &Ternary{base: base{Pos: pos}, Cond: cond, Then: then, Else: els}
}

func (t *Ternary) String() string {
	return fmt.Sprintf("(%s ? %s : %s)", t.Cond.String(), t.Then.String(), t.Else.String())
}
func (t *Ternary) expressionNode() {}

var _ Expression = (*Ternary)(nil)
