package scanner

import (
	"errors"
	"io"
	"testing"
)

func newScanner(t *testing.T, data string, cfg Config) Scanner {
	t.Helper()
	return New([]byte(data), cfg)
}

func nextToken(t *testing.T, s Scanner) Token {
	t.Helper()
	tok, err := s.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tok
}

func TestScanner_BasicTokens(t *testing.T) {
	s := newScanner(t, "%PDF-1.7\n1 0 obj\n<< /Name /Value /Nums [1 2 3] /Flag true /Null null >>\nendobj", Config{})

	tok := nextToken(t, s)
	if tok.Type != TokenNumber || !tok.IsInt || tok.Int != 1 {
		t.Fatalf("expected first token number 1, got %+v", tok)
	}
	tok = nextToken(t, s)
	if tok.Type != TokenNumber || !tok.IsInt || tok.Int != 0 {
		t.Fatalf("expected generation number 0, got %+v", tok)
	}
	if tok = nextToken(t, s); !tok.IsKeyword("obj") {
		t.Fatalf("expected obj keyword, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenDict {
		t.Fatalf("expected dict start, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Name" {
		t.Fatalf("expected Name key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Value" {
		t.Fatalf("expected Name value, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenName || tok.Str != "Nums" {
		t.Fatalf("expected Nums key, got %+v", tok)
	}
	if tok = nextToken(t, s); tok.Type != TokenArray {
		t.Fatalf("expected array start, got %+v", tok)
	}
	for i := int64(1); i <= 3; i++ {
		tok = nextToken(t, s)
		if tok.Type != TokenNumber || !tok.IsInt || tok.Int != i {
			t.Fatalf("expected array number %d, got %+v", i, tok)
		}
	}
	if tok = nextToken(t, s); !tok.IsKeyword("]") {
		t.Fatalf("expected array end, got %+v", tok)
	}
	nextToken(t, s) // /Flag
	if tok = nextToken(t, s); tok.Type != TokenBoolean || !tok.Bool {
		t.Fatalf("expected true, got %+v", tok)
	}
	nextToken(t, s) // /Null
	if tok = nextToken(t, s); tok.Type != TokenNull {
		t.Fatalf("expected null, got %+v", tok)
	}
	if tok = nextToken(t, s); !tok.IsKeyword(">>") {
		t.Fatalf("expected dict end, got %+v", tok)
	}
	if tok = nextToken(t, s); !tok.IsKeyword("endobj") {
		t.Fatalf("expected endobj, got %+v", tok)
	}
	if _, err := s.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestScanner_Strings(t *testing.T) {
	cases := []struct {
		in   string
		typ  TokenType
		want string
	}{
		{`(Hello)`, TokenString, "Hello"},
		{`(a (nested) b)`, TokenString, "a (nested) b"},
		{`(line\nbreak)`, TokenString, "line\nbreak"},
		{`(\101\102C)`, TokenString, "ABC"},
		{"(split\\\nline)", TokenString, "splitline"},
		{`<48656C6C6F>`, TokenHexString, "Hello"},
		{`<48 65 6c 6>`, TokenHexString, "Hel`"},
	}
	for _, tc := range cases {
		tok := nextToken(t, newScanner(t, tc.in, Config{}))
		if tok.Type != tc.typ || string(tok.Bytes) != tc.want {
			t.Fatalf("%q: got type %v value %q, want %q", tc.in, tok.Type, tok.Bytes, tc.want)
		}
	}
}

func TestScanner_NameEscapes(t *testing.T) {
	tok := nextToken(t, newScanner(t, "/A#20B", Config{}))
	if tok.Type != TokenName || tok.Str != "A B" {
		t.Fatalf("unexpected name %+v", tok)
	}
}

func TestScanner_Numbers(t *testing.T) {
	s := newScanner(t, "-.5 3.25 +7 -12 5.", Config{})
	want := []float64{-0.5, 3.25, 7, -12, 5}
	for _, w := range want {
		tok := nextToken(t, s)
		if tok.Type != TokenNumber {
			t.Fatalf("expected number, got %+v", tok)
		}
		got := tok.Float
		if tok.IsInt {
			got = float64(tok.Int)
		}
		if got != w {
			t.Fatalf("got %v want %v", got, w)
		}
	}
}

func TestScanner_StringLimit(t *testing.T) {
	s := newScanner(t, "(abcdef)", Config{MaxStringLength: 3})
	if _, err := s.Next(); !errors.Is(err, ErrStringTooLong) {
		t.Fatalf("expected ErrStringTooLong, got %v", err)
	}
}

func TestScanner_SeekTo(t *testing.T) {
	s := newScanner(t, "1 2 3", Config{})
	if err := s.SeekTo(4); err != nil {
		t.Fatalf("seek: %v", err)
	}
	if tok := nextToken(t, s); tok.Int != 3 {
		t.Fatalf("expected 3 after seek, got %+v", tok)
	}
	if err := s.SeekTo(99); !errors.Is(err, ErrSeekRange) {
		t.Fatalf("expected ErrSeekRange, got %v", err)
	}
}
