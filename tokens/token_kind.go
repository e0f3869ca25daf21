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

package tokens

// Kind identifies a lexical token produced by the expression lexer.
type Kind string

const (
	EOF     Kind = "EOF"
	Error   Kind = "Error"
	Unknown Kind = "Unknown"

	// Literals
	Ident  Kind = "Ident"
	String Kind = "String"
	Int    Kind = "Int"
	Float  Kind = "Float"

	// Keywords
	KeywordTrue       Kind = "true"
	KeywordFalse      Kind = "false"
	KeywordNull       Kind = "null"
	KeywordIn         Kind = "in"
	KeywordNotIn      Kind = "not_in"
	KeywordContains   Kind = "contains"
	KeywordStartsWith Kind = "starts_with"
	KeywordEndsWith   Kind = "ends_with"
	KeywordRegex      Kind = "regex"

	// Operators
	TokenPlus  Kind = "+"
	TokenMinus Kind = "-"
	TokenMul   Kind = "*"
	TokenDiv   Kind = "/"
	TokenMod   Kind = "%"

	TokenEq  Kind = "=="
	TokenNeq Kind = "!="
	TokenLt  Kind = "<"
	TokenGt  Kind = ">"
	TokenLte Kind = "<="
	TokenGte Kind = ">="

	TokenAnd Kind = "&&"
	TokenOr  Kind = "||"
	TokenNot Kind = "!"

	TokenQuestion Kind = "?"
	TokenColon    Kind = ":"
	TokenComma    Kind = ","
	TokenDot      Kind = "."

	PunctLeftParentheses  Kind = "("
	PunctRightParentheses Kind = ")"
	PunctLeftBracket      Kind = "["
	PunctRightBracket     Kind = "]"
)

// Instance is a scanned token: its kind, literal text, and source range.
type Instance struct {
	Kind  Kind
	Value string
	Range Range
}

func New(kind Kind, value string, pos Position) Instance {
	return Instance{Kind: kind, Value: value, Range: Range{Start: pos, End: pos}}
}

func Err(rng Range, msg string) Instance {
	return Instance{Kind: Error, Value: msg, Range: rng}
}

func (t Instance) IsOfKind(k Kind) bool {
	return t.Kind == k
}

func (t Instance) Position() Position {
	return t.Range.Start
}
