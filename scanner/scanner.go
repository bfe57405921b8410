package scanner

import (
	"bytes"
	"errors"
	"io"
	"strconv"
)

type TokenType int

const (
	TokenDict      TokenType = iota // '<<'
	TokenArray                      // '['
	TokenName                       // '/Name'
	TokenString                     // literal string
	TokenHexString                  // hex string
	TokenNumber                     // numeric value
	TokenBoolean                    // true/false
	TokenNull                       // null
	TokenKeyword                    // other keywords (obj, endobj, stream, R, >>, ], etc.)
)

// Token is a single lexical element. Only the fields relevant to Type are set.
type Token struct {
	Type  TokenType
	Str   string // names and keywords
	Bytes []byte // string payloads
	Int   int64
	Float float64
	IsInt bool
	Bool  bool
	Pos   int64
}

// IsKeyword reports whether the token is the given keyword.
func (t Token) IsKeyword(kw string) bool { return t.Type == TokenKeyword && t.Str == kw }

type Scanner interface {
	Next() (Token, error)
	Position() int64
	SeekTo(offset int64) error
	Data() []byte
}

type Config struct {
	MaxStringLength int64
}

var (
	ErrSeekRange     = errors.New("seek out of range")
	ErrStringTooLong = errors.New("string too long")
)

// pdfScanner tokenizes an in-memory PDF buffer.
type pdfScanner struct {
	data []byte
	pos  int64
	cfg  Config
}

// New returns a scanner positioned at the start of data.
func New(data []byte, cfg Config) Scanner {
	return &pdfScanner{data: data, cfg: cfg}
}

func (s *pdfScanner) Position() int64 { return s.pos }
func (s *pdfScanner) Data() []byte    { return s.data }
func (s *pdfScanner) SeekTo(offset int64) error {
	if offset < 0 || offset > int64(len(s.data)) {
		return ErrSeekRange
	}
	s.pos = offset
	return nil
}

func (s *pdfScanner) Next() (Token, error) {
	s.skipWSAndComments()
	if s.pos >= int64(len(s.data)) {
		return Token{}, io.EOF
	}
	start := s.pos
	c := s.data[s.pos]
	switch c {
	case '<':
		if s.peek(1) == '<' {
			s.pos += 2
			return Token{Type: TokenDict, Str: "<<", Pos: start}, nil
		}
		return s.scanHexString()
	case '>':
		if s.peek(1) == '>' {
			s.pos += 2
			return Token{Type: TokenKeyword, Str: ">>", Pos: start}, nil
		}
		s.pos++
		return Token{Type: TokenKeyword, Str: ">", Pos: start}, nil
	case '[':
		s.pos++
		return Token{Type: TokenArray, Str: "[", Pos: start}, nil
	case ']', '{', '}':
		s.pos++
		return Token{Type: TokenKeyword, Str: string(c), Pos: start}, nil
	case '(':
		return s.scanLiteralString()
	case '/':
		return s.scanName()
	}
	if isDigitStart(c) {
		return s.scanNumber()
	}
	return s.scanKeyword()
}

func (s *pdfScanner) peek(n int64) byte {
	if s.pos+n >= int64(len(s.data)) {
		return 0
	}
	return s.data[s.pos+n]
}

func (s *pdfScanner) skipWSAndComments() {
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if IsWhitespace(c) {
			s.pos++
			continue
		}
		if c == '%' {
			for s.pos < int64(len(s.data)) && s.data[s.pos] != '\n' && s.data[s.pos] != '\r' {
				s.pos++
			}
			continue
		}
		return
	}
}

func (s *pdfScanner) scanName() (Token, error) {
	start := s.pos
	s.pos++
	var out bytes.Buffer
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		if IsDelimiter(c) {
			break
		}
		if c == '#' && s.pos+2 < int64(len(s.data)) && isHex(s.data[s.pos+1]) && isHex(s.data[s.pos+2]) {
			out.WriteByte(fromHex(s.data[s.pos+1])<<4 | fromHex(s.data[s.pos+2]))
			s.pos += 3
			continue
		}
		out.WriteByte(c)
		s.pos++
	}
	return Token{Type: TokenName, Str: out.String(), Pos: start}, nil
}

func (s *pdfScanner) scanLiteralString() (Token, error) {
	start := s.pos
	s.pos++
	var buf bytes.Buffer
	depth := 1
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '\\':
			if s.pos >= int64(len(s.data)) {
				break
			}
			esc := s.data[s.pos]
			s.pos++
			switch {
			case esc == '\r':
				if s.pos < int64(len(s.data)) && s.data[s.pos] == '\n' {
					s.pos++
				}
			case esc == '\n':
			case esc >= '0' && esc <= '7':
				val := int(esc - '0')
				for k := 0; k < 2 && s.pos < int64(len(s.data)); k++ {
					d := s.data[s.pos]
					if d < '0' || d > '7' {
						break
					}
					val = val<<3 + int(d-'0')
					s.pos++
				}
				buf.WriteByte(byte(val))
			default:
				buf.WriteByte(translateEscape(esc))
			}
		case '(':
			depth++
			buf.WriteByte(c)
		case ')':
			depth--
			if depth == 0 {
				return Token{Type: TokenString, Bytes: buf.Bytes(), Pos: start}, nil
			}
			buf.WriteByte(c)
		default:
			buf.WriteByte(c)
		}
		if s.cfg.MaxStringLength > 0 && int64(buf.Len()) > s.cfg.MaxStringLength {
			return Token{}, ErrStringTooLong
		}
	}
	return Token{}, errors.New("unterminated literal string")
}

func (s *pdfScanner) scanHexString() (Token, error) {
	start := s.pos
	s.pos++
	var nibbles []byte
	for s.pos < int64(len(s.data)) {
		c := s.data[s.pos]
		s.pos++
		if c == '>' {
			if len(nibbles)%2 == 1 {
				nibbles = append(nibbles, '0')
			}
			out := make([]byte, len(nibbles)/2)
			for i := range out {
				out[i] = fromHex(nibbles[2*i])<<4 | fromHex(nibbles[2*i+1])
			}
			if s.cfg.MaxStringLength > 0 && int64(len(out)) > s.cfg.MaxStringLength {
				return Token{}, ErrStringTooLong
			}
			return Token{Type: TokenHexString, Bytes: out, Pos: start}, nil
		}
		if IsWhitespace(c) {
			continue
		}
		if !isHex(c) {
			return Token{}, errors.New("invalid hex string")
		}
		nibbles = append(nibbles, c)
	}
	return Token{}, errors.New("unterminated hex string")
}

func (s *pdfScanner) scanNumber() (Token, error) {
	start := s.pos
	for s.pos < int64(len(s.data)) && !IsDelimiter(s.data[s.pos]) {
		s.pos++
	}
	lit := string(s.data[start:s.pos])
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return Token{Type: TokenNumber, Int: i, Float: float64(i), IsInt: true, Pos: start}, nil
	}
	// Writers emit forms like "-.5", "5." and "--3"; tolerate them.
	cleaned := lit
	for len(cleaned) > 1 && (cleaned[0] == '-' || cleaned[0] == '+') && (cleaned[1] == '-' || cleaned[1] == '+') {
		cleaned = cleaned[1:]
	}
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		if cleaned == "-" || cleaned == "+" || cleaned == "." {
			return Token{Type: TokenNumber, IsInt: true, Pos: start}, nil
		}
		return Token{Type: TokenKeyword, Str: lit, Pos: start}, nil
	}
	return Token{Type: TokenNumber, Float: f, Int: int64(f), Pos: start}, nil
}

func (s *pdfScanner) scanKeyword() (Token, error) {
	start := s.pos
	for s.pos < int64(len(s.data)) && !IsDelimiter(s.data[s.pos]) {
		s.pos++
	}
	if s.pos == start {
		// Stray delimiter such as ')'.
		s.pos++
	}
	kw := string(s.data[start:s.pos])
	switch kw {
	case "true":
		return Token{Type: TokenBoolean, Bool: true, Str: kw, Pos: start}, nil
	case "false":
		return Token{Type: TokenBoolean, Str: kw, Pos: start}, nil
	case "null":
		return Token{Type: TokenNull, Str: kw, Pos: start}, nil
	}
	return Token{Type: TokenKeyword, Str: kw, Pos: start}, nil
}

func isDigitStart(c byte) bool { return c == '+' || c == '-' || c == '.' || (c >= '0' && c <= '9') }

// IsWhitespace reports PDF whitespace (NUL, TAB, LF, FF, CR, SP).
func IsWhitespace(c byte) bool {
	return c == 0x00 || c == 0x09 || c == 0x0A || c == 0x0C || c == 0x0D || c == 0x20
}

// IsDelimiter reports whitespace or a PDF delimiter character.
func IsDelimiter(c byte) bool {
	if IsWhitespace(c) {
		return true
	}
	switch c {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func fromHex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}

func translateEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 'r':
		return '\r'
	case 't':
		return '\t'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	default:
		return c
	}
}
