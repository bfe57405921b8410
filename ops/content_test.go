package ops

import (
	"fmt"
	"io"

	"github.com/wudi/pdftools/contentstream"
	"github.com/wudi/pdftools/ir/raw"
	"github.com/wudi/pdftools/scanner"
)

// parseContent splits a content stream into operations. Operands may be
// scalars or arrays of scalars.
func parseContent(data []byte) ([]contentstream.Operation, error) {
	s := scanner.New(data, scanner.Config{})
	var ops []contentstream.Operation
	var stack []raw.Object
	for {
		tok, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case scanner.TokenKeyword:
			ops = append(ops, contentstream.Operation{Operator: tok.Str, Operands: stack})
			stack = nil
		case scanner.TokenArray:
			arr, err := parseContentArray(s)
			if err != nil {
				return nil, err
			}
			stack = append(stack, arr)
		default:
			o, err := contentOperand(tok)
			if err != nil {
				return nil, err
			}
			stack = append(stack, o)
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("%d operands without operator", len(stack))
	}
	return ops, nil
}

func parseContentArray(s scanner.Scanner) (*raw.ArrayObj, error) {
	arr := raw.NewArray()
	for {
		tok, err := s.Next()
		if err != nil {
			return nil, fmt.Errorf("unterminated array: %w", err)
		}
		if tok.IsKeyword("]") {
			return arr, nil
		}
		o, err := contentOperand(tok)
		if err != nil {
			return nil, err
		}
		arr.Append(o)
	}
}

func contentOperand(tok scanner.Token) (raw.Object, error) {
	switch tok.Type {
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NumberInt(tok.Int), nil
		}
		return raw.NumberFloat(tok.Float), nil
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
	}
	return nil, fmt.Errorf("unsupported operand %q at %d", tok.Str, tok.Pos)
}
