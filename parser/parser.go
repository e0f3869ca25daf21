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

// Package parser implements a recursive-descent/Pratt parser turning a
// lexed CORINT expression into an ast.Expression tree, the way
// compilers for small expression grammars usually do.
package parser

import (
	"errors"
	"fmt"

	"github.com/corint-run/corint/ast"
	"github.com/corint-run/corint/lexer"
	"github.com/corint-run/corint/tokens"
	"github.com/corint-run/corint/value"
)

type prefixParser func(p *Parser) ast.Expression
type infixParser func(p *Parser, left ast.Expression) ast.Expression

type Parser struct {
	lexer  *lexer.Lexer
	source string

	current tokens.Instance
	next    tokens.Instance
	atEOF   bool

	err error

	prefixHandlers map[tokens.Kind]prefixParser
	infixHandlers  map[tokens.Kind]infixParser
}

// New builds a Parser reading expr, an expression string taken from a
// rule's `when`, a feature's `dimension_value`, or any other expression
// field of the DSL. source identifies the field for error messages.
func New(expr, source string) *Parser {
	p := &Parser{
		lexer:  lexer.FromString(expr, source),
		source: source,
	}
	p.prefixHandlers = map[tokens.Kind]prefixParser{
		tokens.Ident:                 parseIdentOrCall,
		tokens.Int:                   parseNumberLiteral,
		tokens.Float:                 parseNumberLiteral,
		tokens.String:                parseStringLiteral,
		tokens.KeywordTrue:           parseBoolLiteral,
		tokens.KeywordFalse:          parseBoolLiteral,
		tokens.KeywordNull:           parseNullLiteral,
		tokens.TokenMinus:            parseUnary,
		tokens.TokenNot:              parseUnary,
		tokens.PunctLeftParentheses:  parseGrouped,
		tokens.PunctLeftBracket:      parseArrayLiteral,
	}
	p.infixHandlers = map[tokens.Kind]infixParser{
		tokens.TokenPlus:  parseBinary,
		tokens.TokenMinus: parseBinary,
		tokens.TokenMul:   parseBinary,
		tokens.TokenDiv:   parseBinary,
		tokens.TokenMod:   parseBinary,

		tokens.TokenEq:  parseBinary,
		tokens.TokenNeq: parseBinary,
		tokens.TokenLt:  parseBinary,
		tokens.TokenGt:  parseBinary,
		tokens.TokenLte: parseBinary,
		tokens.TokenGte: parseBinary,

		tokens.TokenAnd: parseBinary,
		tokens.TokenOr:  parseBinary,

		tokens.KeywordIn:          parseBinary,
		tokens.KeywordNotIn:       parseBinary,
		tokens.KeywordContains:    parseBinary,
		tokens.KeywordStartsWith:  parseBinary,
		tokens.KeywordEndsWith:    parseBinary,
		tokens.KeywordRegex:       parseBinary,

		tokens.TokenDot:             parseFieldAccess,
		tokens.TokenQuestion:        parseTernary,
		tokens.PunctLeftParentheses: parseCall,
	}
	p.advance()
	p.advance()
	return p
}

// Parse parses a complete expression and returns an error if any trailing
// tokens remain or any parse error was recorded.
func Parse(expr, source string) (ast.Expression, error) {
	p := New(expr, source)
	result := p.parseExpression(LOWEST)
	if p.err != nil {
		return nil, p.err
	}
	if !p.current.IsOfKind(tokens.EOF) {
		return nil, fmt.Errorf("parser: unexpected trailing token %q at %s", p.current.Value, p.current.Range)
	}
	return result, nil
}

func (p *Parser) advance() tokens.Instance {
	cur := p.current
	p.current = p.next
	if p.current.Kind == tokens.EOF {
		p.atEOF = true
	}
	p.next = p.lexer.NextToken()
	return cur
}

func (p *Parser) expect(kind tokens.Kind) bool {
	if p.current.Kind != kind {
		p.errorf("expected %s, got %s", kind, p.current.Kind)
		return false
	}
	p.advance()
	return true
}

func (p *Parser) errorf(format string, args ...any) {
	args = append([]any{p.current.Range.String()}, args...)
	p.err = errors.Join(p.err, fmt.Errorf("parse error at %s: "+format, args...))
}

func (p *Parser) noPrefix() ast.Expression {
	p.errorf("unexpected token %s", p.current.Kind)
	return nil
}

func (p *Parser) parseExpression(precedence Precedence) ast.Expression {
	if p.current.Kind == tokens.Error {
		p.errorf("%s", p.current.Value)
		return nil
	}
	prefix, ok := p.prefixHandlers[p.current.Kind]
	if !ok {
		return p.noPrefix()
	}
	left := prefix(p)

	for precedenceOf(p.current.Kind) > precedence {
		infix, ok := p.infixHandlers[p.current.Kind]
		if !ok {
			break
		}
		left = infix(p, left)
	}
	return left
}

func parseNumberLiteral(p *Parser) ast.Expression {
	tok := p.current
	// value.ParseNumber rejects integer-looking literals that do not
	// round-trip through a double, instead of silently rounding them.
	n, err := value.ParseNumber(tok.Value)
	if err != nil {
		p.errorf("invalid number literal %q", tok.Value)
		p.advance()
		return nil
	}
	p.advance()
	return ast.NewLiteral(value.Number(n), tok.Range.Start)
}

func parseStringLiteral(p *Parser) ast.Expression {
	tok := p.current
	p.advance()
	return ast.NewLiteral(value.String(tok.Value), tok.Range.Start)
}

func parseBoolLiteral(p *Parser) ast.Expression {
	tok := p.current
	p.advance()
	return ast.NewLiteral(value.Bool(tok.Kind == tokens.KeywordTrue), tok.Range.Start)
}

func parseNullLiteral(p *Parser) ast.Expression {
	tok := p.current
	p.advance()
	return ast.NewLiteral(value.Null(), tok.Range.Start)
}

func parseIdentOrCall(p *Parser) ast.Expression {
	tok := p.current
	p.advance()
	path := []string{tok.Value}
	for p.current.Kind == tokens.TokenDot {
		p.advance()
		if p.current.Kind != tokens.Ident {
			p.errorf("expected identifier after '.', got %s", p.current.Kind)
			return ast.NewFieldAccess(path, tok.Range.Start)
		}
		path = append(path, p.current.Value)
		p.advance()
	}
	if p.current.Kind == tokens.PunctLeftParentheses && len(path) == 1 {
		return parseCallWithName(p, path[0], tok.Range.Start)
	}
	return ast.NewFieldAccess(path, tok.Range.Start)
}

func parseCall(p *Parser, left ast.Expression) ast.Expression {
	// Only a bare identifier can be a callee; this handler exists so "("
	// registers a precedence entry, but parseIdentOrCall handles the common
	// path directly. Reachable only if a non-ident expression is immediately
	// followed by '(', which the grammar does not otherwise support.
	p.errorf("cannot call non-function expression %s", left.String())
	return left
}

func parseCallWithName(p *Parser, name string, pos tokens.Position) ast.Expression {
	p.advance() // consume '('
	var args []ast.Expression
	for p.current.Kind != tokens.PunctRightParentheses {
		args = append(args, p.parseExpression(LOWEST))
		if p.current.Kind == tokens.TokenComma {
			p.advance()
			continue
		}
		break
	}
	p.expect(tokens.PunctRightParentheses)
	return ast.NewFunctionCall(name, args, pos)
}

func parseFieldAccess(p *Parser, left ast.Expression) ast.Expression {
	pos := p.current.Range.Start
	p.advance() // consume '.'
	fa, ok := left.(*ast.FieldAccess)
	if !ok {
		p.errorf("'.' may only follow a field path")
		return left
	}
	if p.current.Kind != tokens.Ident {
		p.errorf("expected identifier after '.', got %s", p.current.Kind)
		return left
	}
	path := append(append([]string{}, fa.Path...), p.current.Value)
	p.advance()
	return ast.NewFieldAccess(path, pos)
}

func parseUnary(p *Parser) ast.Expression {
	tok := p.current
	var op ast.UnaryOp
	switch tok.Kind {
	case tokens.TokenMinus:
		op = ast.OpNeg
	case tokens.TokenNot:
		op = ast.OpNot
	}
	p.advance()
	operand := p.parseExpression(UNARY)
	return ast.NewUnary(op, operand, tok.Range.Start)
}

func parseBinary(p *Parser, left ast.Expression) ast.Expression {
	tok := p.current
	op, ok := ast.BinaryOpFromToken(tok.Kind)
	if !ok {
		p.errorf("unknown binary operator %s", tok.Kind)
		return left
	}
	precedence := precedenceOf(tok.Kind)
	p.advance()
	right := p.parseExpression(precedence)
	return ast.NewBinary(left, op, right, tok.Range.Start)
}

func parseTernary(p *Parser, cond ast.Expression) ast.Expression {
	pos := p.current.Range.Start
	p.advance() // consume '?'
	then := p.parseExpression(TERNARY)
	if !p.expect(tokens.TokenColon) {
		return nil
	}
	els := p.parseExpression(TERNARY)
	return ast.NewTernary(cond, then, els, pos)
}

func parseGrouped(p *Parser) ast.Expression {
	p.advance() // consume '('
	expr := p.parseExpression(LOWEST)
	p.expect(tokens.PunctRightParentheses)
	return expr
}

func parseArrayLiteral(p *Parser) ast.Expression {
	pos := p.current.Range.Start
	p.advance() // consume '['
	var elements []ast.Expression
	for p.current.Kind != tokens.PunctRightBracket && p.current.Kind != tokens.EOF {
		elements = append(elements, p.parseExpression(LOWEST))
		if p.current.Kind == tokens.TokenComma {
			p.advance()
			continue
		}
		break
	}
	p.expect(tokens.PunctRightBracket)
	return ast.NewArrayLiteral(elements, pos)
}
