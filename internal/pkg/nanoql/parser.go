package nanoql

import (
	"fmt"
)

// SyntaxError reports where parsing stopped.
type SyntaxError struct {
	Pos int
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Msg)
}

// Parser parses NanoQL queries into an AST.
type Parser struct {
	lexer   *Lexer
	current Token
}

// Parse parses the input string and returns the AST root node.
// An empty input yields a nil node.
func Parse(input string) (Node, error) {
	p := &Parser{lexer: NewLexer(input)}
	p.advance()
	if p.current.Type == TokenEOF {
		return nil, nil
	}
	node, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.current.Type != TokenEOF {
		return nil, p.unexpected("AND, OR or end of input")
	}
	return node, nil
}

func (p *Parser) advance() {
	p.current = p.lexer.NextToken()
}

func (p *Parser) unexpected(want string) error {
	got := p.current.Type.String()
	if p.current.Value != "" && p.current.Type != TokenEOF {
		got = fmt.Sprintf("%s %q", got, p.current.Value)
	}
	return &SyntaxError{Pos: p.current.Pos, Msg: fmt.Sprintf("expected %s, got %s", want, got)}
}

// parseOr handles OR expressions (lowest precedence).
func (p *Parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.current.Type == TokenOr {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: "OR", Left: left, Right: right}
	}

	return left, nil
}

// parseAnd handles AND expressions.
func (p *Parser) parseAnd() (Node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}

	for p.current.Type == TokenAnd {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = BinaryExpr{Op: "AND", Left: left, Right: right}
	}

	return left, nil
}

// parseNot handles NOT expressions.
func (p *Parser) parseNot() (Node, error) {
	if p.current.Type == TokenNot {
		p.advance()
		expr, err := p.parseNot() // NOT is right-associative
		if err != nil {
			return nil, err
		}
		return NotExpr{Expr: expr}, nil
	}
	return p.parsePrimary()
}

// parsePrimary handles (expr) and field comparisons.
func (p *Parser) parsePrimary() (Node, error) {
	switch p.current.Type {
	case TokenLParen:
		p.advance()
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.current.Type != TokenRParen {
			return nil, p.unexpected("')'")
		}
		p.advance()
		return expr, nil

	case TokenIdent, TokenString:
		key := p.current.Value
		p.advance()

		switch p.current.Type {
		case TokenColon:
			p.advance()
			return p.parseColon(key)
		case TokenNeq:
			p.advance()
			return p.parseValue(key, OpNeq)
		case TokenGte:
			p.advance()
			return p.parseValue(key, OpGte)
		case TokenLte:
			p.advance()
			return p.parseValue(key, OpLte)
		default:
			return nil, p.unexpected("':', '!=', '>=' or '<=' after field " + key)
		}

	default:
		return nil, p.unexpected("field or '('")
	}
}

// parseColon parses what follows key: a value, '*', or a parenthesized list
// of values separated by OR.
func (p *Parser) parseColon(key string) (Node, error) {
	switch p.current.Type {
	case TokenStar:
		p.advance()
		return MatchExpr{Key: key, Op: OpExists}, nil

	case TokenLParen:
		p.advance()
		var values []string
		for {
			v, err := p.value(key, OpEq)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
			if p.current.Type != TokenOr {
				break
			}
			p.advance()
		}
		if p.current.Type != TokenRParen {
			return nil, p.unexpected("OR or ')'")
		}
		p.advance()
		return MatchExpr{Key: key, Op: OpEq, Values: values}, nil
	}
	return p.parseValue(key, OpEq)
}

// parseValue parses the value part after key:, key!=, key>= or key<=.
func (p *Parser) parseValue(key, op string) (Node, error) {
	v, err := p.value(key, op)
	if err != nil {
		return nil, err
	}
	return MatchExpr{Key: key, Op: op, Values: []string{v}}, nil
}

func (p *Parser) value(key, op string) (string, error) {
	switch p.current.Type {
	case TokenString, TokenIdent:
		v := p.current.Value
		p.advance()
		return v, nil
	default:
		return "", p.unexpected(fmt.Sprintf("value after '%s%s'", key, op))
	}
}
