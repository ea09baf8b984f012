package pdf

import (
	"bytes"
	"fmt"
	"strconv"
)

// TokenType represents the type of a lexical token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenNull
	TokenBoolean
	TokenInteger
	TokenReal
	TokenString
	TokenHexString
	TokenName
	TokenArrayStart
	TokenArrayEnd
	TokenDictStart
	TokenDictEnd
	TokenStreamStart
	TokenStreamEnd
	TokenObjStart
	TokenObjEnd
	TokenRef
	TokenXRef
	TokenTrailer
	TokenStartXRef
	// TokenKeyword is any other bare word, such as a content stream operator.
	TokenKeyword
)

// Token represents a lexical token. Keyword tokens carry their spelling in
// Value as a string.
type Token struct {
	Type  TokenType
	Value interface{}
	Pos   int64
}

// Keyword returns the spelling of a bare-word token, or "" for literals,
// names and delimiters.
func (t Token) Keyword() string {
	switch t.Type {
	case TokenKeyword, TokenStreamStart, TokenStreamEnd, TokenObjStart, TokenObjEnd,
		TokenRef, TokenXRef, TokenTrailer, TokenStartXRef:
		s, _ := t.Value.(string)
		return s
	}
	return ""
}

// Lexer performs lexical analysis on an in-memory PDF buffer.
type Lexer struct {
	data []byte
	pos  int
}

// NewLexerFromBytes creates a new lexer over data. The lexer never modifies
// data.
func NewLexerFromBytes(data []byte) *Lexer {
	return &Lexer{data: data}
}

// Position returns the current position
func (l *Lexer) Position() int64 {
	return int64(l.pos)
}

// Seek moves the lexer to an absolute offset.
func (l *Lexer) Seek(pos int64) {
	switch {
	case pos < 0:
		l.pos = 0
	case pos > int64(len(l.data)):
		l.pos = len(l.data)
	default:
		l.pos = int(pos)
	}
}

func (l *Lexer) eof() bool { return l.pos >= len(l.data) }

func (l *Lexer) peek() (byte, bool) {
	if l.pos >= len(l.data) {
		return 0, false
	}
	return l.data[l.pos], true
}

// skipWhitespace skips whitespace and comments
func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if isWhitespace(b) {
			l.pos++
			continue
		}
		if b == '%' {
			for l.pos < len(l.data) && l.data[l.pos] != '\r' && l.data[l.pos] != '\n' {
				l.pos++
			}
			continue
		}
		return
	}
}

// isWhitespace checks if a byte is PDF whitespace
func isWhitespace(b byte) bool {
	return b == 0 || b == '\t' || b == '\n' || b == '\f' || b == '\r' || b == ' '
}

// isDelimiter checks if a byte is a PDF delimiter
func isDelimiter(b byte) bool {
	return b == '(' || b == ')' || b == '<' || b == '>' ||
		b == '[' || b == ']' || b == '{' || b == '}' ||
		b == '/' || b == '%'
}

// NextToken returns the next token
func (l *Lexer) NextToken() (Token, error) {
	l.skipWhitespace()

	pos := int64(l.pos)
	b, ok := l.peek()
	if !ok {
		return Token{Type: TokenEOF, Pos: pos}, nil
	}

	switch b {
	case '[':
		l.pos++
		return Token{Type: TokenArrayStart, Pos: pos}, nil
	case ']':
		l.pos++
		return Token{Type: TokenArrayEnd, Pos: pos}, nil
	case '(':
		l.pos++
		return l.readLiteralString(pos)
	case '<':
		l.pos++
		if next, ok := l.peek(); ok && next == '<' {
			l.pos++
			return Token{Type: TokenDictStart, Pos: pos}, nil
		}
		return l.readHexString(pos)
	case '>':
		l.pos++
		if next, ok := l.peek(); ok && next == '>' {
			l.pos++
			return Token{Type: TokenDictEnd, Pos: pos}, nil
		}
		return Token{}, fmt.Errorf("unexpected '>' at position %d", pos)
	case '/':
		l.pos++
		return l.readName(pos)
	case ')':
		return Token{}, fmt.Errorf("unexpected ')' at position %d", pos)
	case '{', '}':
		l.pos++
		return Token{Type: TokenKeyword, Value: string(b), Pos: pos}, nil
	case '+', '-', '.':
		return l.readNumber(pos)
	}
	if b >= '0' && b <= '9' {
		return l.readNumber(pos)
	}
	return l.readKeyword(pos)
}

// readLiteralString reads a literal string (...)
func (l *Lexer) readLiteralString(pos int64) (Token, error) {
	var buf bytes.Buffer
	depth := 1

	for depth > 0 {
		if l.eof() {
			return Token{}, fmt.Errorf("unterminated string at position %d", pos)
		}
		b := l.data[l.pos]
		l.pos++

		switch b {
		case '(':
			depth++
			buf.WriteByte(b)
		case ')':
			depth--
			if depth > 0 {
				buf.WriteByte(b)
			}
		case '\\':
			buf.Write(l.readEscapeSequence())
		default:
			buf.WriteByte(b)
		}
	}

	return Token{Type: TokenString, Value: buf.Bytes(), Pos: pos}, nil
}

// readEscapeSequence reads an escape sequence in a literal string
func (l *Lexer) readEscapeSequence() []byte {
	if l.eof() {
		return nil
	}
	b := l.data[l.pos]
	l.pos++

	switch b {
	case 'n':
		return []byte{'\n'}
	case 'r':
		return []byte{'\r'}
	case 't':
		return []byte{'\t'}
	case 'b':
		return []byte{'\b'}
	case 'f':
		return []byte{'\f'}
	case '\r':
		if next, ok := l.peek(); ok && next == '\n' {
			l.pos++
		}
		return nil
	case '\n':
		return nil
	}
	if b >= '0' && b <= '7' {
		val := int(b - '0')
		for i := 0; i < 2; i++ {
			next, ok := l.peek()
			if !ok || next < '0' || next > '7' {
				break
			}
			l.pos++
			val = val*8 + int(next-'0')
		}
		return []byte{byte(val)}
	}
	// \( \) \\ and unknown escapes yield the character itself.
	return []byte{b}
}

// readHexString reads a hexadecimal string <...>
func (l *Lexer) readHexString(pos int64) (Token, error) {
	var decoded []byte
	var nibble byte
	half := false

	for {
		if l.eof() {
			return Token{}, fmt.Errorf("unterminated hex string at position %d", pos)
		}
		b := l.data[l.pos]
		l.pos++
		if b == '>' {
			break
		}
		if isWhitespace(b) {
			continue
		}
		v, ok := unhex(b)
		if !ok {
			return Token{}, fmt.Errorf("invalid hex string at position %d", pos)
		}
		if half {
			decoded = append(decoded, nibble<<4|v)
		} else {
			nibble = v
		}
		half = !half
	}
	if half {
		decoded = append(decoded, nibble<<4)
	}

	return Token{Type: TokenHexString, Value: decoded, Pos: pos}, nil
}

// readName reads a name object /...
func (l *Lexer) readName(pos int64) (Token, error) {
	var buf bytes.Buffer

	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		l.pos++

		if b == '#' && l.pos+1 < len(l.data) {
			hi, ok1 := unhex(l.data[l.pos])
			lo, ok2 := unhex(l.data[l.pos+1])
			if ok1 && ok2 {
				buf.WriteByte(hi<<4 | lo)
				l.pos += 2
				continue
			}
		}
		buf.WriteByte(b)
	}

	return Token{Type: TokenName, Value: buf.String(), Pos: pos}, nil
}

// readNumber reads a number (integer or real)
func (l *Lexer) readNumber(pos int64) (Token, error) {
	start := l.pos
	hasDecimal := false
	hasDigit := false

	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if b == '+' || b == '-' {
			if l.pos > start {
				break
			}
		} else if b == '.' {
			if hasDecimal {
				break
			}
			hasDecimal = true
		} else if b >= '0' && b <= '9' {
			hasDigit = true
		} else {
			break
		}
		l.pos++
	}

	str := string(l.data[start:l.pos])
	if !hasDigit {
		// A lone sign or dot reads as zero, as most viewers do.
		return Token{Type: TokenInteger, Value: int64(0), Pos: pos}, nil
	}

	if hasDecimal {
		val, err := strconv.ParseFloat(str, 64)
		if err != nil {
			return Token{}, fmt.Errorf("invalid real number at position %d", pos)
		}
		return Token{Type: TokenReal, Value: val, Pos: pos}, nil
	}

	val, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(str, 64)
		if ferr != nil {
			return Token{}, fmt.Errorf("invalid integer at position %d", pos)
		}
		return Token{Type: TokenReal, Value: f, Pos: pos}, nil
	}
	return Token{Type: TokenInteger, Value: val, Pos: pos}, nil
}

// readKeyword reads a bare word: true, false, null, obj, endobj, an
// operator, etc.
func (l *Lexer) readKeyword(pos int64) (Token, error) {
	start := l.pos
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		l.pos++
	}
	keyword := string(l.data[start:l.pos])

	switch keyword {
	case "true":
		return Token{Type: TokenBoolean, Value: true, Pos: pos}, nil
	case "false":
		return Token{Type: TokenBoolean, Value: false, Pos: pos}, nil
	case "null":
		return Token{Type: TokenNull, Pos: pos}, nil
	case "obj":
		return Token{Type: TokenObjStart, Value: keyword, Pos: pos}, nil
	case "endobj":
		return Token{Type: TokenObjEnd, Value: keyword, Pos: pos}, nil
	case "stream":
		return Token{Type: TokenStreamStart, Value: keyword, Pos: pos}, nil
	case "endstream":
		return Token{Type: TokenStreamEnd, Value: keyword, Pos: pos}, nil
	case "R":
		return Token{Type: TokenRef, Value: keyword, Pos: pos}, nil
	case "xref":
		return Token{Type: TokenXRef, Value: keyword, Pos: pos}, nil
	case "trailer":
		return Token{Type: TokenTrailer, Value: keyword, Pos: pos}, nil
	case "startxref":
		return Token{Type: TokenStartXRef, Value: keyword, Pos: pos}, nil
	}
	return Token{Type: TokenKeyword, Value: keyword, Pos: pos}, nil
}

// ReadLine reads until end of line
func (l *Lexer) ReadLine() []byte {
	start := l.pos
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if b == '\r' || b == '\n' {
			line := l.data[start:l.pos]
			l.pos++
			if b == '\r' && l.pos < len(l.data) && l.data[l.pos] == '\n' {
				l.pos++
			}
			return line
		}
		l.pos++
	}
	return l.data[start:]
}

// ReadBytes reads n bytes. The returned slice aliases the lexer's buffer.
func (l *Lexer) ReadBytes(n int) ([]byte, error) {
	if n < 0 || l.pos+n > len(l.data) {
		return nil, fmt.Errorf("read of %d bytes at position %d exceeds data", n, l.pos)
	}
	b := l.data[l.pos : l.pos+n]
	l.pos += n
	return b, nil
}

// skipEOL consumes a single end-of-line marker if present.
func (l *Lexer) skipEOL() {
	if b, ok := l.peek(); ok {
		switch b {
		case '\r':
			l.pos++
			if next, ok := l.peek(); ok && next == '\n' {
				l.pos++
			}
		case '\n':
			l.pos++
		}
	}
}
