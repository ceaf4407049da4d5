package query

import (
	"errors"
	"strconv"
	"strings"

	"github.com/filereduce/filereduce/internal/model"
	ferrors "github.com/filereduce/filereduce/pkg/errors"
)

var (
	// ErrUnexpectedEOF is returned when the query ends before a complete expression.
	ErrUnexpectedEOF = errors.New("query: unexpected end of input")

	// ErrUnexpectedToken is returned when a token does not match the grammar.
	ErrUnexpectedToken = errors.New("query: unexpected token")

	// ErrUnsupportedOperator is returned for comparison operators outside the grammar.
	ErrUnsupportedOperator = errors.New("query: unsupported operator")

	// ErrInvalidNumber is returned when a bare literal is not a number.
	ErrInvalidNumber = errors.New("query: invalid number")
)

// Parser is a recursive descent parser over a token stream.
//
// Precedence, lowest first: OR, AND, NOT, parenthesized group, comparison.
type Parser struct {
	tokens []string
	pos    int
}

// NewParser tokenizes input and returns a parser positioned at its start.
func NewParser(input string) *Parser {
	return &Parser{tokens: Tokenize(input)}
}

// ParseExpr parses a complete filter expression.
func ParseExpr(input string) (Expr, error) {
	return NewParser(input).Parse()
}

// Parse parses the whole token stream as one expression.
func (p *Parser) Parse() (Expr, error) {
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if err := p.expectEnd(); err != nil {
		return nil, err
	}
	return e, nil
}

// ParseQuery parses either a bare filter expression or a SELECT statement:
//
//	SELECT (* | f, ... | agg, ...) [WHERE expr] [ORDER BY f [ASC|DESC]] [LIMIT n]
func ParseQuery(input string) (Query, error) {
	p := NewParser(input)
	if p.peek() != "SELECT" {
		filter, err := p.Parse()
		if err != nil {
			return Query{}, err
		}
		return Query{Filter: filter}, nil
	}
	return p.parseStatement()
}

func (p *Parser) parseStatement() (Query, error) {
	var q Query
	p.pos++ // SELECT

	if !p.match("*") {
		for {
			tok, err := p.next()
			if err != nil {
				return Query{}, err
			}
			if fn, ok := aggregateFunc(tok); ok && p.peek() == "(" {
				agg, err := p.parseAggregate(fn)
				if err != nil {
					return Query{}, err
				}
				q.Aggregates = append(q.Aggregates, agg)
			} else {
				q.Select = append(q.Select, tok)
			}
			if !p.match(",") {
				break
			}
		}
		if len(q.Select) > 0 && len(q.Aggregates) > 0 {
			return Query{}, p.syntaxError("cannot mix fields and aggregates in SELECT", ErrUnexpectedToken)
		}
	}

	if p.match("WHERE") {
		filter, err := p.parseOr()
		if err != nil {
			return Query{}, err
		}
		q.Filter = filter
	}

	if p.match("ORDER") {
		if err := p.expect("BY"); err != nil {
			return Query{}, err
		}
		field, err := p.next()
		if err != nil {
			return Query{}, err
		}
		order := Asc
		if p.match("DESC") {
			order = Desc
		} else {
			p.match("ASC")
		}
		q.OrderBy = &OrderBy{Field: field, Order: order}
	}

	if p.match("LIMIT") {
		tok, err := p.next()
		if err != nil {
			return Query{}, err
		}
		n, err := strconv.Atoi(tok)
		if err != nil || n < 0 {
			return Query{}, ferrors.Wrap(ErrInvalidNumber, ferrors.CodeInvalidLiteral, "invalid LIMIT").
				WithContext("literal", tok)
		}
		q.Limit = &n
	}

	if err := p.expectEnd(); err != nil {
		return Query{}, err
	}
	return q, nil
}

func (p *Parser) parseAggregate(fn AggregateFunc) (Aggregate, error) {
	if err := p.expect("("); err != nil {
		return Aggregate{}, err
	}
	field, err := p.next()
	if err != nil {
		return Aggregate{}, err
	}
	if field == "*" && fn != AggCount {
		return Aggregate{}, p.syntaxError(fn.String()+" requires a field", ErrUnexpectedToken)
	}
	if err := p.expect(")"); err != nil {
		return Aggregate{}, err
	}
	return Aggregate{Func: fn, Field: field}, nil
}

func aggregateFunc(tok string) (AggregateFunc, bool) {
	for i, name := range aggregateNames {
		if tok == name {
			return AggregateFunc(i), true
		}
	}
	return 0, false
}

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.match("OR") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Or{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.match("AND") {
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &And{Left: left, Right: right}
	}
	return left, nil
}

func (p *Parser) parseTerm() (Expr, error) {
	if p.match("(") {
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return e, nil
	}
	if p.match("NOT") {
		inner, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return &Not{Inner: inner}, nil
	}
	return p.parseFactor()
}

func (p *Parser) parseFactor() (Expr, error) {
	field, err := p.next()
	if err != nil {
		return nil, err
	}
	op, err := p.next()
	if err != nil {
		return nil, err
	}

	if field == "KIND" && op == "=" {
		return p.parseKind()
	}

	switch op {
	case "=", ">", "<", ">=", "<=":
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		switch op {
		case "=":
			return &Eq{Field: field, Value: v}, nil
		case ">":
			return &Gt{Field: field, Value: v}, nil
		case "<":
			return &Lt{Field: field, Value: v}, nil
		case ">=":
			return &Gte{Field: field, Value: v}, nil
		default:
			return &Lte{Field: field, Value: v}, nil
		}

	case "LIKE":
		tok, err := p.next()
		if err != nil {
			return nil, err
		}
		if !strings.HasPrefix(tok, "'") {
			return nil, p.syntaxError("LIKE requires a quoted pattern", ErrUnexpectedToken)
		}
		return NewLike(field, strings.Trim(tok, "'")), nil

	case "IN":
		if err := p.expect("("); err != nil {
			return nil, err
		}
		in := &In{Field: field}
		for !p.match(")") {
			v, err := p.parseValue()
			if err != nil {
				return nil, err
			}
			in.Values = append(in.Values, v)
			p.match(",")
		}
		return in, nil

	case "BETWEEN":
		lo, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if err := p.expect("AND"); err != nil {
			return nil, err
		}
		hi, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return &Between{Field: field, Lo: lo, Hi: hi}, nil
	}

	return nil, ferrors.Wrap(ErrUnsupportedOperator, ferrors.CodeUnsupportedOperator, "unsupported operator").
		WithContext("operator", op).
		WithContext("token", p.pos-1)
}

func (p *Parser) parseKind() (Expr, error) {
	tok, err := p.next()
	if err != nil {
		return nil, err
	}
	kind, ok := model.ParseRowKind(strings.Trim(tok, "'"))
	if !ok {
		return nil, p.syntaxError("unknown row kind "+tok, ErrUnexpectedToken)
	}
	return &KindEq{Kind: kind}, nil
}

// parseValue reads one literal: quoted tokens are Text, anything else must
// parse as a float.
func (p *Parser) parseValue() (model.Value, error) {
	tok, err := p.next()
	if err != nil {
		return model.Value{}, err
	}
	if strings.HasPrefix(tok, "'") {
		return model.Text(strings.Trim(tok, "'")), nil
	}
	f, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return model.Value{}, ferrors.Wrap(ErrInvalidNumber, ferrors.CodeInvalidLiteral, "invalid number").
			WithContext("literal", tok).
			WithContext("token", p.pos-1)
	}
	return model.Number(f), nil
}

func (p *Parser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *Parser) match(expected string) bool {
	if p.pos < len(p.tokens) && p.tokens[p.pos] == expected {
		p.pos++
		return true
	}
	return false
}

func (p *Parser) next() (string, error) {
	if p.pos >= len(p.tokens) {
		return "", p.syntaxError("unexpected end of query", ErrUnexpectedEOF)
	}
	tok := p.tokens[p.pos]
	p.pos++
	return tok, nil
}

func (p *Parser) expect(expected string) error {
	tok, err := p.next()
	if err != nil {
		return err
	}
	if tok != expected {
		return p.syntaxError("expected "+expected+", found "+tok, ErrUnexpectedToken)
	}
	return nil
}

func (p *Parser) expectEnd() error {
	if p.pos < len(p.tokens) {
		return p.syntaxError("unexpected trailing token "+p.tokens[p.pos], ErrUnexpectedToken)
	}
	return nil
}

func (p *Parser) syntaxError(message string, cause error) error {
	return ferrors.Wrap(cause, ferrors.CodeQuerySyntax, message).WithContext("token", p.pos)
}
