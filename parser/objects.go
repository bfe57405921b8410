package parser

import (
	"errors"
	"fmt"

	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/scanner"
)

var (
	ErrUnexpectedToken = errors.New("unexpected token")
	ErrNestingTooDeep  = errors.New("object nesting too deep")
)

// tokenReader adds pushback to a scanner so references ("n g R") can be
// recognised with two tokens of lookahead.
type tokenReader struct {
	s    scanner.Scanner
	back []scanner.Token
}

func newTokenReader(s scanner.Scanner) *tokenReader { return &tokenReader{s: s} }

func (r *tokenReader) next() (scanner.Token, error) {
	if n := len(r.back); n > 0 {
		tok := r.back[n-1]
		r.back = r.back[:n-1]
		return tok, nil
	}
	return r.s.Next()
}

func (r *tokenReader) unread(tok scanner.Token) { r.back = append(r.back, tok) }

// parseObject reads one direct object. maxDepth bounds array/dict nesting.
func parseObject(tr *tokenReader, maxDepth int) (raw.Object, error) {
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	return parseFrom(tr, tok, maxDepth)
}

func parseFrom(tr *tokenReader, tok scanner.Token, depth int) (raw.Object, error) {
	switch tok.Type {
	case scanner.TokenName:
		return raw.Name(tok.Str), nil
	case scanner.TokenString:
		return raw.Str(tok.Bytes), nil
	case scanner.TokenHexString:
		return raw.HexStr(tok.Bytes), nil
	case scanner.TokenBoolean:
		return raw.Bool(tok.Bool), nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenNumber:
		if !tok.IsInt {
			return raw.NumberFloat(tok.Float), nil
		}
		if tok.Int >= 0 {
			if ref, ok := tryRef(tr, tok); ok {
				return ref, nil
			}
		}
		return raw.NumberInt(tok.Int), nil
	case scanner.TokenArray:
		if depth <= 0 {
			return nil, ErrNestingTooDeep
		}
		arr := raw.NewArray()
		for {
			t, err := tr.next()
			if err != nil {
				return nil, fmt.Errorf("array: %w", err)
			}
			if t.IsKeyword("]") {
				return arr, nil
			}
			item, err := parseFrom(tr, t, depth-1)
			if err != nil {
				return nil, err
			}
			arr.Append(item)
		}
	case scanner.TokenDict:
		if depth <= 0 {
			return nil, ErrNestingTooDeep
		}
		dict := raw.Dict()
		for {
			t, err := tr.next()
			if err != nil {
				return nil, fmt.Errorf("dict: %w", err)
			}
			if t.IsKeyword(">>") {
				return dict, nil
			}
			if t.Type != scanner.TokenName {
				// Skip junk keys rather than abandon the dictionary.
				continue
			}
			vt, err := tr.next()
			if err != nil {
				return nil, fmt.Errorf("dict value for /%s: %w", t.Str, err)
			}
			if vt.IsKeyword(">>") {
				dict.Set(t.Str, raw.NullObj{})
				return dict, nil
			}
			val, err := parseFrom(tr, vt, depth-1)
			if err != nil {
				return nil, err
			}
			dict.Set(t.Str, val)
		}
	}
	return nil, fmt.Errorf("%w %q at %d", ErrUnexpectedToken, tok.Str, tok.Pos)
}

func tryRef(tr *tokenReader, first scanner.Token) (raw.Object, bool) {
	second, err := tr.next()
	if err != nil {
		return nil, false
	}
	if second.Type != scanner.TokenNumber || !second.IsInt || second.Int < 0 {
		tr.unread(second)
		return nil, false
	}
	third, err := tr.next()
	if err != nil {
		tr.unread(second)
		return nil, false
	}
	if third.IsKeyword("R") {
		return raw.Ref(int(first.Int), int(second.Int)), true
	}
	tr.unread(third)
	tr.unread(second)
	return nil, false
}
