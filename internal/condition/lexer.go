package condition

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenNumber
	tokenString
	tokenTrue
	tokenFalse
	tokenNull
	tokenEq     // == or ===
	tokenNeq    // != or !==
	tokenLt     // <
	tokenLte    // <=
	tokenGt     // >
	tokenGte    // >=
	tokenAnd    // &&
	tokenOr     // ||
	tokenNot    // !
	tokenLParen // (
	tokenRParen // )
)

type token struct {
	kind tokenKind
	text string  // raw text for ident/string
	num  float64 // parsed value for number
	pos  int     // byte offset in input
}

// ParseError reports a lexing or parsing failure with its position.
// Callers treat any ParseError as "condition satisfied" (fail-open).
type ParseError struct {
	Pos     int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("condition parse error at offset %d: %s", e.Pos, e.Message)
}

// lex tokenizes a condition expression. Strings accept single or double
// quotes so users can quote either way inside templates.
func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokenLParen, pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokenRParen, pos: i})
			i++
		case c == '=':
			if strings.HasPrefix(input[i:], "===") {
				tokens = append(tokens, token{kind: tokenEq, pos: i})
				i += 3
			} else if strings.HasPrefix(input[i:], "==") {
				tokens = append(tokens, token{kind: tokenEq, pos: i})
				i += 2
			} else {
				return nil, &ParseError{Pos: i, Message: "single '=' is not an operator, use '=='"}
			}
		case c == '!':
			if strings.HasPrefix(input[i:], "!==") {
				tokens = append(tokens, token{kind: tokenNeq, pos: i})
				i += 3
			} else if strings.HasPrefix(input[i:], "!=") {
				tokens = append(tokens, token{kind: tokenNeq, pos: i})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokenNot, pos: i})
				i++
			}
		case c == '<':
			if strings.HasPrefix(input[i:], "<=") {
				tokens = append(tokens, token{kind: tokenLte, pos: i})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokenLt, pos: i})
				i++
			}
		case c == '>':
			if strings.HasPrefix(input[i:], ">=") {
				tokens = append(tokens, token{kind: tokenGte, pos: i})
				i += 2
			} else {
				tokens = append(tokens, token{kind: tokenGt, pos: i})
				i++
			}
		case c == '&':
			if strings.HasPrefix(input[i:], "&&") {
				tokens = append(tokens, token{kind: tokenAnd, pos: i})
				i += 2
			} else {
				return nil, &ParseError{Pos: i, Message: "single '&' is not an operator, use '&&'"}
			}
		case c == '|':
			if strings.HasPrefix(input[i:], "||") {
				tokens = append(tokens, token{kind: tokenOr, pos: i})
				i += 2
			} else {
				return nil, &ParseError{Pos: i, Message: "single '|' is not an operator, use '||'"}
			}
		case c == '\'' || c == '"':
			str, next, err := lexString(input, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenString, text: str, pos: i})
			i = next
		case c >= '0' && c <= '9' || (c == '-' && i+1 < len(input) && input[i+1] >= '0' && input[i+1] <= '9' && startsValue(tokens)):
			num, next, err := lexNumber(input, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenNumber, num: num, pos: i})
			i = next
		case isIdentStart(c):
			start := i
			for i < len(input) && isIdentChar(input[i]) {
				i++
			}
			word := input[start:i]
			switch word {
			case "true":
				tokens = append(tokens, token{kind: tokenTrue, pos: start})
			case "false":
				tokens = append(tokens, token{kind: tokenFalse, pos: start})
			case "null", "undefined":
				tokens = append(tokens, token{kind: tokenNull, pos: start})
			default:
				tokens = append(tokens, token{kind: tokenIdent, text: word, pos: start})
			}
		default:
			return nil, &ParseError{Pos: i, Message: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	tokens = append(tokens, token{kind: tokenEOF, pos: len(input)})
	return tokens, nil
}

// startsValue reports whether the next token position can begin a value,
// which is how a leading '-' is disambiguated from subtraction (which the
// grammar does not have anyway, but the check keeps errors precise).
func startsValue(tokens []token) bool {
	if len(tokens) == 0 {
		return true
	}
	switch tokens[len(tokens)-1].kind {
	case tokenNumber, tokenString, tokenIdent, tokenTrue, tokenFalse, tokenNull, tokenRParen:
		return false
	}
	return true
}

func lexString(input string, start int) (string, int, error) {
	quote := input[start]
	var b strings.Builder
	i := start + 1
	for i < len(input) {
		c := input[i]
		if c == quote {
			return b.String(), i + 1, nil
		}
		if c == '\\' && i+1 < len(input) {
			i++
			c = input[i]
		}
		b.WriteByte(c)
		i++
	}
	return "", 0, &ParseError{Pos: start, Message: "unterminated string literal"}
}

func lexNumber(input string, start int) (float64, int, error) {
	i := start
	if input[i] == '-' {
		i++
	}
	for i < len(input) && (input[i] >= '0' && input[i] <= '9' || input[i] == '.') {
		i++
	}
	num, err := strconv.ParseFloat(input[start:i], 64)
	if err != nil {
		return 0, 0, &ParseError{Pos: start, Message: fmt.Sprintf("invalid number %q", input[start:i])}
	}
	return num, i, nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
