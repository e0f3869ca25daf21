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

import "github.com/corint-run/corint/tokens"

// Precedence implements the Pratt-parser binding power ladder:
// unary > mul/div/mod > add/sub > comparison > logical-and >
// logical-or > ternary.
type Precedence uint8

const (
	LOWEST Precedence = iota
	TERNARY
	LOGICAL_OR
	LOGICAL_AND
	COMPARISON
	SUM
	PRODUCT
	UNARY
	CALL
	PRIMARY
)

var precedences = map[tokens.Kind]Precedence{
	tokens.TokenQuestion: TERNARY,
	tokens.TokenOr:       LOGICAL_OR,
	tokens.TokenAnd:      LOGICAL_AND,

	tokens.TokenEq:          COMPARISON,
	tokens.TokenNeq:         COMPARISON,
	tokens.TokenLt:          COMPARISON,
	tokens.TokenGt:          COMPARISON,
	tokens.TokenLte:         COMPARISON,
	tokens.TokenGte:         COMPARISON,
	tokens.KeywordIn:        COMPARISON,
	tokens.KeywordNotIn:     COMPARISON,
	tokens.KeywordContains:  COMPARISON,
	tokens.KeywordStartsWith: COMPARISON,
	tokens.KeywordEndsWith:  COMPARISON,
	tokens.KeywordRegex:     COMPARISON,

	tokens.TokenPlus:  SUM,
	tokens.TokenMinus: SUM,

	tokens.TokenMul: PRODUCT,
	tokens.TokenDiv: PRODUCT,
	tokens.TokenMod: PRODUCT,

	tokens.PunctLeftParentheses: CALL,
	tokens.TokenDot:             CALL,
}

func precedenceOf(k tokens.Kind) Precedence {
	if p, ok := precedences[k]; ok {
		return p
	}
	return LOWEST
}
