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

import "github.com/corint-run/corint/tokens"

// BinaryOp enumerates the binary operators of the precedence table.
type BinaryOp string

const (
	OpAdd BinaryOp = "+"
	OpSub BinaryOp = "-"
	OpMul BinaryOp = "*"
	OpDiv BinaryOp = "/"
	OpMod BinaryOp = "%"

	OpEq  BinaryOp = "=="
	OpNeq BinaryOp = "!="
	OpLt  BinaryOp = "<"
	OpGt  BinaryOp = ">"
	OpLte BinaryOp = "<="
	OpGte BinaryOp = ">="

	OpAnd BinaryOp = "&&"
	OpOr  BinaryOp = "||"

	OpIn         BinaryOp = "in"
	OpNotIn      BinaryOp = "not_in"
	OpContains   BinaryOp = "contains"
	OpStartsWith BinaryOp = "starts_with"
	OpEndsWith   BinaryOp = "ends_with"
	OpRegex      BinaryOp = "regex"
)

// BinaryOpFromToken maps a lexed operator/keyword token to a BinaryOp.
func BinaryOpFromToken(k tokens.Kind) (BinaryOp, bool) {
	switch k {
	case tokens.TokenPlus:
		return OpAdd, true
	case tokens.TokenMinus:
		return OpSub, true
	case tokens.TokenMul:
		return OpMul, true
	case tokens.TokenDiv:
		return OpDiv, true
	case tokens.TokenMod:
		return OpMod, true
	case tokens.TokenEq:
		return OpEq, true
	case tokens.TokenNeq:
		return OpNeq, true
	case tokens.TokenLt:
		return OpLt, true
	case tokens.TokenGt:
		return OpGt, true
	case tokens.TokenLte:
		return OpLte, true
	case tokens.TokenGte:
		return OpGte, true
	case tokens.TokenAnd:
		return OpAnd, true
	case tokens.TokenOr:
		return OpOr, true
	case tokens.KeywordIn:
		return OpIn, true
	case tokens.KeywordNotIn:
		return OpNotIn, true
	case tokens.KeywordContains:
		return OpContains, true
	case tokens.KeywordStartsWith:
		return OpStartsWith, true
	case tokens.KeywordEndsWith:
		return OpEndsWith, true
	case tokens.KeywordRegex:
		return OpRegex, true
	default:
		return "", false
	}
}

// UnaryOp enumerates the two unary operators CORINT's grammar supports.
type UnaryOp string

const (
	OpNeg UnaryOp = "-"
	OpNot UnaryOp = "!"
)
