package compiler

import "github.com/loxscript/loxvm/lang/token"

// precedence mirrors spec.md §4.2's table, lowest to highest binding power.
type precedence int

const (
	precNone precedence = iota
	precAssignment
	precOr
	precAnd
	precEquality
	precComparison
	precTerm
	precFactor
	precUnary
	precCall
	precPrimary
)

type parseFn func(c *compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

// rules is indexed by token.Type; it is the Pratt parser's prefix/infix
// dispatch table, built once at init time rather than per parse.
var rules [token.EOF + 1]parseRule

func rule(t token.Type, prefix, infix parseFn, prec precedence) {
	rules[t] = parseRule{prefix: prefix, infix: infix, precedence: prec}
}

func getRule(t token.Type) parseRule { return rules[t] }

func init() {
	rule(token.LeftParen, (*compiler).grouping, (*compiler).call, precCall)
	rule(token.RightParen, nil, nil, precNone)
	rule(token.LeftBrace, nil, nil, precNone)
	rule(token.RightBrace, nil, nil, precNone)
	rule(token.Comma, nil, nil, precNone)
	rule(token.Dot, nil, nil, precNone)
	rule(token.Minus, (*compiler).unary, (*compiler).binary, precTerm)
	rule(token.Plus, nil, (*compiler).binary, precTerm)
	rule(token.Semicolon, nil, nil, precNone)
	rule(token.Slash, nil, (*compiler).binary, precFactor)
	rule(token.Star, nil, (*compiler).binary, precFactor)

	rule(token.Bang, (*compiler).unary, nil, precNone)
	rule(token.BangEqual, nil, (*compiler).binary, precEquality)
	rule(token.Equal, nil, nil, precNone)
	rule(token.EqualEqual, nil, (*compiler).binary, precEquality)
	rule(token.Greater, nil, (*compiler).binary, precComparison)
	rule(token.GreaterEqual, nil, (*compiler).binary, precComparison)
	rule(token.Less, nil, (*compiler).binary, precComparison)
	rule(token.LessEqual, nil, (*compiler).binary, precComparison)

	rule(token.Identifier, (*compiler).variable, nil, precNone)
	rule(token.String, (*compiler).str, nil, precNone)
	rule(token.Number, (*compiler).number, nil, precNone)

	rule(token.And, nil, (*compiler).and_, precAnd)
	rule(token.Class, nil, nil, precNone)
	rule(token.Else, nil, nil, precNone)
	rule(token.False, (*compiler).literal, nil, precNone)
	rule(token.For, nil, nil, precNone)
	rule(token.Fun, nil, nil, precNone)
	rule(token.If, nil, nil, precNone)
	rule(token.Nil, (*compiler).literal, nil, precNone)
	rule(token.Or, nil, (*compiler).or_, precOr)
	rule(token.Print, nil, nil, precNone)
	rule(token.Return, nil, nil, precNone)
	rule(token.Super, nil, nil, precNone)
	rule(token.This, nil, nil, precNone)
	rule(token.True, (*compiler).literal, nil, precNone)
	rule(token.Var, nil, nil, precNone)
	rule(token.While, nil, nil, precNone)

	rule(token.Error, nil, nil, precNone)
	rule(token.EOF, nil, nil, precNone)
}
