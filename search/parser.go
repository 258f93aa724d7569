package search

import (
	"fmt"
	"strconv"
	"strings"

	"entitysvc/core"
)

// TokenType represents the type of token
type TokenType int

const (
	TokenWord TokenType = iota
	TokenString
	TokenNumber
	TokenOperator
	TokenLParen
	TokenRParen
	TokenEOF
)

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value string
	Pos   int
}

// symbolOperators are matched longest first
var symbolOperators = []struct {
	text string
	op   core.FilterOperator
}{
	{"<>", core.OpNe},
	{"!=", core.OpNe},
	{"<=", core.OpLe},
	{">=", core.OpGe},
	{"=", core.OpEq},
	{"<", core.OpLt},
	{">", core.OpGt},
}

var wordOperators = map[string]core.FilterOperator{
	"like": core.OpLike,
	"eq":   core.OpEq,
	"ne":   core.OpNe,
	"lt":   core.OpLt,
	"gt":   core.OpGt,
	"le":   core.OpLe,
	"ge":   core.OpGe,
}

// Parser parses the textual filter syntax, e.g.
//
//	status = 'active' and (age > 30 or country = 'PT')
//
// into a filter expression tree. "and" binds tighter than "or".
type Parser struct {
	input   string
	tokens  []Token
	current int
}

// NewParser creates a new parser
func NewParser(query string) *Parser {
	return &Parser{input: strings.TrimSpace(query)}
}

// ParseFilter parses a textual filter in one call
func ParseFilter(text string) (*core.FilterExpr, error) {
	return NewParser(text).Parse()
}

// Parse parses the input and returns the expression tree
func (p *Parser) Parse() (*core.FilterExpr, error) {
	if err := p.tokenize(); err != nil {
		return nil, p.fail(err)
	}
	expr, err := p.parseOr()
	if err != nil {
		return nil, p.fail(err)
	}
	if !p.isAtEnd() {
		return nil, p.fail(fmt.Errorf("unexpected %q at position %d", p.peek().Value, p.peek().Pos))
	}
	return &expr, nil
}

func (p *Parser) fail(err error) error {
	return fmt.Errorf("%w: %s: %w", core.ErrInvalidParameter, core.KeyFilter, err)
}

// tokenize breaks the input into tokens
func (p *Parser) tokenize() error {
	input := p.input
	pos := 0

	for pos < len(input) {
		c := input[pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			pos++

		case c == '(':
			p.tokens = append(p.tokens, Token{Type: TokenLParen, Value: "(", Pos: pos})
			pos++

		case c == ')':
			p.tokens = append(p.tokens, Token{Type: TokenRParen, Value: ")", Pos: pos})
			pos++

		case c == '\'' || c == '"':
			value, next, err := scanQuoted(input, pos)
			if err != nil {
				return err
			}
			p.tokens = append(p.tokens, Token{Type: TokenString, Value: value, Pos: pos})
			pos = next

		case isDigit(c) || (c == '-' && pos+1 < len(input) && isDigit(input[pos+1])):
			start := pos
			pos++
			for pos < len(input) && (isDigit(input[pos]) || input[pos] == '.') {
				pos++
			}
			p.tokens = append(p.tokens, Token{Type: TokenNumber, Value: input[start:pos], Pos: start})

		case isWordChar(c):
			start := pos
			for pos < len(input) && (isWordChar(input[pos]) || isDigit(input[pos]) || input[pos] == '.') {
				pos++
			}
			p.tokens = append(p.tokens, Token{Type: TokenWord, Value: input[start:pos], Pos: start})

		default:
			matched := false
			for _, sym := range symbolOperators {
				if strings.HasPrefix(input[pos:], sym.text) {
					p.tokens = append(p.tokens, Token{Type: TokenOperator, Value: sym.text, Pos: pos})
					pos += len(sym.text)
					matched = true
					break
				}
			}
			if !matched {
				return fmt.Errorf("unexpected character '%c' at position %d", c, pos)
			}
		}
	}

	p.tokens = append(p.tokens, Token{Type: TokenEOF, Pos: len(input)})
	return nil
}

// scanQuoted reads a quoted string starting at pos. A doubled quote or a
// backslash escapes the quote character.
func scanQuoted(input string, pos int) (string, int, error) {
	quote := input[pos]
	var sb strings.Builder
	i := pos + 1
	for i < len(input) {
		c := input[i]
		switch {
		case c == '\\' && i+1 < len(input):
			sb.WriteByte(input[i+1])
			i += 2
		case c == quote && i+1 < len(input) && input[i+1] == quote:
			sb.WriteByte(quote)
			i += 2
		case c == quote:
			return sb.String(), i + 1, nil
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return "", 0, fmt.Errorf("unterminated string at position %d", pos)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isWordChar(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

// parseOr handles "or" chains
func (p *Parser) parseOr() (core.FilterExpr, error) {
	return p.parseChain(core.OpOr, p.parseAnd)
}

// parseAnd handles "and" chains
func (p *Parser) parseAnd() (core.FilterExpr, error) {
	return p.parseChain(core.OpAnd, p.parsePrimary)
}

// parseChain collects operands joined by one boolean keyword into a single
// n-ary node. A lone operand is returned as is.
func (p *Parser) parseChain(op core.FilterOperator, operand func() (core.FilterExpr, error)) (core.FilterExpr, error) {
	first, err := operand()
	if err != nil {
		return core.FilterExpr{}, err
	}
	children := []core.FilterExpr{first}
	for p.matchKeyword(string(op)) {
		next, err := operand()
		if err != nil {
			return core.FilterExpr{}, err
		}
		children = append(children, next)
	}
	if len(children) == 1 {
		return first, nil
	}
	return core.FilterExpr{Operator: op, Children: children}, nil
}

// parsePrimary parses a parenthesised group or a comparison
func (p *Parser) parsePrimary() (core.FilterExpr, error) {
	if p.match(TokenLParen) {
		expr, err := p.parseOr()
		if err != nil {
			return core.FilterExpr{}, err
		}
		if !p.match(TokenRParen) {
			return core.FilterExpr{}, fmt.Errorf("expected closing parenthesis at position %d", p.peek().Pos)
		}
		return expr, nil
	}
	return p.parseComparison()
}

// parseComparison parses "field op value"
func (p *Parser) parseComparison() (core.FilterExpr, error) {
	if !p.match(TokenWord) {
		return core.FilterExpr{}, fmt.Errorf("expected field name at position %d", p.peek().Pos)
	}
	field := p.previous().Value

	tok := p.advance()
	var op core.FilterOperator
	switch tok.Type {
	case TokenOperator:
		for _, sym := range symbolOperators {
			if sym.text == tok.Value {
				op = sym.op
			}
		}
	case TokenWord:
		known, ok := wordOperators[strings.ToLower(tok.Value)]
		if !ok {
			return core.FilterExpr{}, fmt.Errorf("%w: %q at position %d", core.ErrInvalidFilterOperator, tok.Value, tok.Pos)
		}
		op = known
	default:
		return core.FilterExpr{}, fmt.Errorf("expected operator at position %d", tok.Pos)
	}

	value, err := p.parseValue()
	if err != nil {
		return core.FilterExpr{}, err
	}
	return core.Compare(field, op, value), nil
}

// parseValue converts the next token to a literal
func (p *Parser) parseValue() (any, error) {
	tok := p.advance()
	switch tok.Type {
	case TokenString:
		return tok.Value, nil
	case TokenNumber:
		if n, err := strconv.ParseInt(tok.Value, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", tok.Value, tok.Pos)
		}
		return f, nil
	case TokenWord:
		switch strings.ToLower(tok.Value) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "null":
			return nil, nil
		default:
			return tok.Value, nil
		}
	default:
		return nil, fmt.Errorf("expected value at position %d", tok.Pos)
	}
}

func (p *Parser) match(t TokenType) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) matchKeyword(word string) bool {
	if p.check(TokenWord) && strings.EqualFold(p.peek().Value, word) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) check(t TokenType) bool {
	return p.peek().Type == t
}

func (p *Parser) advance() Token {
	tok := p.peek()
	if !p.isAtEnd() {
		p.current++
	}
	return tok
}

func (p *Parser) isAtEnd() bool {
	return p.peek().Type == TokenEOF
}

func (p *Parser) peek() Token {
	return p.tokens[p.current]
}

func (p *Parser) previous() Token {
	return p.tokens[p.current-1]
}
