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

// Package ast defines CORINT's expression syntax tree: Literal,
// FieldAccess, Binary, Unary, FunctionCall, and Ternary nodes, produced by
// the recursive-descent parser in package parser and consumed by both the
// AST->IR compiler (package compile) and, for constant sub-expressions, the
// evaluator directly.
package ast

import "github.com/corint-run/corint/tokens"

// Node is the common interface implemented by every expression node.
type Node interface {
	String() string
	Position() tokens.Position
}

// Expression is any node that can appear as an operand.
type Expression interface {
	Node
	expressionNode()
}

type base struct {
	Pos tokens.Position
}

func (b base) Position() tokens.Position { return b.Pos }
