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

	"github.com/corint-run/corint/tokens"
)

// Binary is a two-operand expression; Left and Right are evaluated under
// the short-circuit rules for OpAnd/OpOr.
type Binary struct {
	base
	Left  Expression
	Op    BinaryOp
	Right Expression
}

func NewBinary(left Expression, op BinaryOp, right Expression, pos tokens.Position) *Binary {
	return &Binary{base: base{Pos: pos}, Left: left, Op: op, Right: right}
}

func (b *Binary) String() string {
	return fmt.Sprintf("(%s %s %s)", b.Left.String(), b.Op, b.Right.String())
}
func (b *Binary) expressionNode() {}

var _ Expression = (*Binary)(nil)

// Unary is a single-operand prefix expression (`-x`, `!x`).
type Unary struct {
	base
	Op      UnaryOp
	Operand Expression
}

func NewUnary(op UnaryOp, operand Expression, pos tokens.Position) *Unary {
	return &Unary{base: base{Pos: pos}, Op: op, Operand: operand}
}

func (u *Unary) String() string  { return fmt.Sprintf("(%s%s)", u.Op, u.Operand.String()) }
func (u *Unary) expressionNode() {}

var _ Expression = (*Unary)(nil)
