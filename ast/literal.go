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
	"github.com/corint-run/corint/tokens"
	"github.com/corint-run/corint/value"
)

// Literal wraps a constant Value.
type Literal struct {
	base
	Value value.Value
}

func NewLiteral(v value.Value, pos tokens.Position) *Literal {
	return &Literal{base: base{Pos: pos}, Value: v}
}

func (l *Literal) String() string      { return l.Value.String() }
func (l *Literal) expressionNode()     {}

var _ Expression = (*Literal)(nil)

// ArrayLiteral is a parsed `[a, b, c]` expression; each element may itself
// be any expression, so it is not folded into a Literal until compile time.
type ArrayLiteral struct {
	base
	Elements []Expression
}

func NewArrayLiteral(elements []Expression, pos tokens.Position) *ArrayLiteral {
	return &ArrayLiteral{base: base{Pos: pos}, Elements: elements}
}

func (a *ArrayLiteral) String() string  { return "[...]" }
func (a *ArrayLiteral) expressionNode() {}

var _ Expression = (*ArrayLiteral)(nil)
