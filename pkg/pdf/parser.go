package pdf

import (
	"bytes"
	"fmt"
	"io"
)

// Parser parses PDF objects from tokens
type Parser struct {
	lexer  *Lexer
	tokens []Token
	pos    int

	// resolveLength resolves an indirect /Length while reading a stream.
	resolveLength func(Reference) (int, bool)
}

// NewParser creates a new parser for the given lexer
func NewParser(lexer *Lexer) *Parser {
	return &Parser{lexer: lexer}
}

// NewParserFromBytes creates a new parser from byte slice
func NewParserFromBytes(data []byte) *Parser {
	return NewParser(NewLexerFromBytes(data))
}

// nextToken gets the next token, buffering for lookahead
func (p *Parser) nextToken() (Token, error) {
	if p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		p.pos++
		if p.pos == len(p.tokens) {
			p.tokens = p.tokens[:0]
			p.pos = 0
		}
		return tok, nil
	}
	return p.lexer.NextToken()
}

// peekTokenN peeks at the nth token ahead (0-indexed)
func (p *Parser) peekTokenN(n int) (Token, error) {
	for len(p.tokens) <= p.pos+n {
		tok, err := p.lexer.NextToken()
		if err != nil {
			return Token{}, err
		}
		p.tokens = append(p.tokens, tok)
	}
	return p.tokens[p.pos+n], nil
}

// peekToken peeks at the next token without consuming it
func (p *Parser) peekToken() (Token, error) {
	return p.peekTokenN(0)
}

// ParseObject parses a single PDF object
func (p *Parser) ParseObject() (Object, error) {
	tok, err := p.nextToken()
	if err != nil {
		return nil, err
	}

	switch tok.Type {
	case TokenEOF:
		return nil, io.ErrUnexpectedEOF
	case TokenNull:
		return Null{}, nil
	case TokenBoolean:
		return Boolean(tok.Value.(bool)), nil
	case TokenInteger:
		// num gen R
		next1, err := p.peekToken()
		if err == nil && next1.Type == TokenInteger {
			next2, err := p.peekTokenN(1)
			if err == nil && next2.Type == TokenRef {
				p.nextToken()
				p.nextToken()
				return Reference{
					ObjectNumber:     int(tok.Value.(int64)),
					GenerationNumber: int(next1.Value.(int64)),
				}, nil
			}
		}
		return Integer(tok.Value.(int64)), nil
	case TokenReal:
		return Real(tok.Value.(float64)), nil
	case TokenString:
		return String{Value: tok.Value.([]byte)}, nil
	case TokenHexString:
		return String{Value: tok.Value.([]byte), IsHex: true}, nil
	case TokenName:
		return Name(tok.Value.(string)), nil
	case TokenArrayStart:
		return p.parseArray()
	case TokenDictStart:
		return p.parseDictionary()
	default:
		return nil, fmt.Errorf("unexpected token %q at position %d", tok.Keyword(), tok.Pos)
	}
}

// parseArray parses a PDF array [...]
func (p *Parser) parseArray() (Array, error) {
	arr := Array{}
	for {
		tok, err := p.peekToken()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenArrayEnd {
			p.nextToken()
			return arr, nil
		}
		obj, err := p.ParseObject()
		if err != nil {
			return nil, err
		}
		arr = append(arr, obj)
	}
}

// parseDictionary parses a PDF dictionary <<...>>
func (p *Parser) parseDictionary() (Dictionary, error) {
	dict := make(Dictionary)
	for {
		tok, err := p.peekToken()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenDictEnd {
			p.nextToken()
			return dict, nil
		}

		keyTok, err := p.nextToken()
		if err != nil {
			return nil, err
		}
		if keyTok.Type != TokenName {
			return nil, fmt.Errorf("expected name as dictionary key at position %d", keyTok.Pos)
		}

		value, err := p.ParseObject()
		if err != nil {
			return nil, err
		}
		// A null value is equivalent to an absent entry.
		if _, isNull := value.(Null); isNull {
			continue
		}
		dict[Name(keyTok.Value.(string))] = value
	}
}

// ParseIndirectObject parses an indirect object definition (num gen obj ... endobj)
func (p *Parser) ParseIndirectObject() (int, int, Object, error) {
	numTok, err := p.nextToken()
	if err != nil {
		return 0, 0, nil, err
	}
	if numTok.Type != TokenInteger {
		return 0, 0, nil, fmt.Errorf("expected object number at position %d", numTok.Pos)
	}
	objNum := int(numTok.Value.(int64))

	genTok, err := p.nextToken()
	if err != nil {
		return 0, 0, nil, err
	}
	if genTok.Type != TokenInteger {
		return 0, 0, nil, fmt.Errorf("expected generation number at position %d", genTok.Pos)
	}
	genNum := int(genTok.Value.(int64))

	objTok, err := p.nextToken()
	if err != nil {
		return 0, 0, nil, err
	}
	if objTok.Type != TokenObjStart {
		return 0, 0, nil, fmt.Errorf("expected 'obj' keyword at position %d", objTok.Pos)
	}

	obj, err := p.ParseObject()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("object %d: %w", objNum, err)
	}

	nextTok, err := p.peekToken()
	if err == nil && nextTok.Type == TokenStreamStart {
		p.nextToken()
		dict, ok := obj.(Dictionary)
		if !ok {
			return 0, 0, nil, fmt.Errorf("stream must have dictionary at position %d", nextTok.Pos)
		}
		if p.pos != len(p.tokens) {
			return 0, 0, nil, fmt.Errorf("unexpected tokens before stream data at position %d", nextTok.Pos)
		}

		data, err := p.readStreamData(dict)
		if err != nil {
			return 0, 0, nil, fmt.Errorf("object %d: %w", objNum, err)
		}
		obj = Stream{Dictionary: dict, Data: data}

		endTok, err := p.nextToken()
		if err != nil {
			return 0, 0, nil, err
		}
		if endTok.Type != TokenStreamEnd {
			return 0, 0, nil, fmt.Errorf("expected 'endstream' at position %d", endTok.Pos)
		}
	}

	// A missing endobj is common in damaged files and harmless once the
	// object body has been read.
	if tok, err := p.peekToken(); err == nil && tok.Type == TokenObjEnd {
		p.nextToken()
	}

	return objNum, genNum, obj, nil
}

var endstreamMarker = []byte("endstream")

// readStreamData returns the raw bytes between 'stream' and 'endstream'.
// The declared /Length is trusted only when 'endstream' follows it;
// otherwise the data is delimited by scanning for the marker.
func (p *Parser) readStreamData(dict Dictionary) ([]byte, error) {
	l := p.lexer
	l.skipEOL()
	start := l.pos

	length := -1
	switch v := dict.Get("Length").(type) {
	case Integer:
		length = int(v)
	case Real:
		length = int(v)
	case Reference:
		if p.resolveLength != nil {
			if n, ok := p.resolveLength(v); ok {
				length = n
			}
		}
	}

	if length >= 0 && start+length <= len(l.data) && endstreamAt(l.data, start+length) {
		l.pos = start + length
		return l.data[start : start+length], nil
	}

	idx := bytes.Index(l.data[start:], endstreamMarker)
	if idx < 0 {
		return nil, fmt.Errorf("unterminated stream at position %d", start)
	}
	end := start + idx
	if end > start && l.data[end-1] == '\n' {
		end--
	}
	if end > start && l.data[end-1] == '\r' {
		end--
	}
	l.pos = start + idx
	return l.data[start:end], nil
}

func endstreamAt(data []byte, pos int) bool {
	for pos < len(data) && isWhitespace(data[pos]) {
		pos++
	}
	return bytes.HasPrefix(data[pos:], endstreamMarker)
}

// ContentStreamParser parses content streams
type ContentStreamParser struct {
	lexer *Lexer
}

// NewContentStreamParser creates a new content stream parser
func NewContentStreamParser(data []byte) *ContentStreamParser {
	return &ContentStreamParser{lexer: NewLexerFromBytes(data)}
}

// Operation represents a content stream operation. An inline image is
// reported as operator "BI" with the image as its only operand, a Stream
// whose dictionary uses the expanded key names.
type Operation struct {
	Operator string
	Operands []Object
}

// ParseOperations parses all operations from a content stream
func (p *ContentStreamParser) ParseOperations() ([]Operation, error) {
	var operations []Operation
	var operands []Object

	for {
		tok, err := p.lexer.NextToken()
		if err != nil {
			return operations, err
		}
		if tok.Type == TokenEOF {
			return operations, nil
		}

		if op := tok.Keyword(); op != "" {
			if op == "BI" {
				img, err := p.parseInlineImage()
				if err != nil {
					return operations, err
				}
				operations = append(operations, Operation{Operator: "BI", Operands: []Object{img}})
				operands = nil
				continue
			}
			operations = append(operations, Operation{Operator: op, Operands: operands})
			operands = nil
			continue
		}

		obj, err := p.parseOperand(tok)
		if err != nil {
			return operations, err
		}
		operands = append(operands, obj)
	}
}

// parseOperand parses a content stream operand
func (p *ContentStreamParser) parseOperand(tok Token) (Object, error) {
	switch tok.Type {
	case TokenNull:
		return Null{}, nil
	case TokenBoolean:
		return Boolean(tok.Value.(bool)), nil
	case TokenInteger:
		return Integer(tok.Value.(int64)), nil
	case TokenReal:
		return Real(tok.Value.(float64)), nil
	case TokenString:
		return String{Value: tok.Value.([]byte)}, nil
	case TokenHexString:
		return String{Value: tok.Value.([]byte), IsHex: true}, nil
	case TokenName:
		return Name(tok.Value.(string)), nil
	case TokenArrayStart:
		return p.parseArray()
	case TokenDictStart:
		return p.parseDictionary()
	case TokenEOF:
		return nil, io.ErrUnexpectedEOF
	default:
		return nil, fmt.Errorf("unexpected token in content stream at position %d", tok.Pos)
	}
}

// parseArray parses an array in content stream
func (p *ContentStreamParser) parseArray() (Array, error) {
	arr := Array{}
	for {
		tok, err := p.lexer.NextToken()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenArrayEnd {
			return arr, nil
		}
		obj, err := p.parseOperand(tok)
		if err != nil {
			return nil, err
		}
		arr = append(arr, obj)
	}
}

// parseDictionary parses a dictionary in content stream
func (p *ContentStreamParser) parseDictionary() (Dictionary, error) {
	dict := make(Dictionary)
	for {
		tok, err := p.lexer.NextToken()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenDictEnd {
			return dict, nil
		}
		if tok.Type != TokenName {
			return nil, fmt.Errorf("expected name as dictionary key at position %d", tok.Pos)
		}
		valueTok, err := p.lexer.NextToken()
		if err != nil {
			return nil, err
		}
		value, err := p.parseOperand(valueTok)
		if err != nil {
			return nil, err
		}
		dict[Name(tok.Value.(string))] = value
	}
}

var inlineKeys = map[Name]Name{
	"BPC": "BitsPerComponent",
	"CS":  "ColorSpace",
	"D":   "Decode",
	"DP":  "DecodeParms",
	"F":   "Filter",
	"H":   "Height",
	"IM":  "ImageMask",
	"I":   "Interpolate",
	"W":   "Width",
	"L":   "Length",
}

var inlineNames = map[Name]Name{
	"G":    "DeviceGray",
	"RGB":  "DeviceRGB",
	"CMYK": "DeviceCMYK",
	"I":    "Indexed",
}

// parseInlineImage reads the dictionary and data of a BI ... ID ... EI
// sequence. The lexer is positioned just after BI.
func (p *ContentStreamParser) parseInlineImage() (Stream, error) {
	dict := make(Dictionary)
	for {
		tok, err := p.lexer.NextToken()
		if err != nil {
			return Stream{}, err
		}
		if tok.Type == TokenEOF {
			return Stream{}, fmt.Errorf("inline image without ID at position %d", tok.Pos)
		}
		if tok.Keyword() == "ID" {
			break
		}
		if tok.Type != TokenName {
			return Stream{}, fmt.Errorf("expected name in inline image dictionary at position %d", tok.Pos)
		}
		key := Name(tok.Value.(string))
		if full, ok := inlineKeys[key]; ok {
			key = full
		}
		valueTok, err := p.lexer.NextToken()
		if err != nil {
			return Stream{}, err
		}
		value, err := p.parseOperand(valueTok)
		if err != nil {
			return Stream{}, err
		}
		if n, ok := value.(Name); ok && key == "ColorSpace" {
			if full, ok := inlineNames[n]; ok {
				value = full
			}
		}
		dict[key] = value
	}

	l := p.lexer
	// Exactly one whitespace byte separates ID from the data.
	if b, ok := l.peek(); ok && isWhitespace(b) {
		l.pos++
	}
	start := l.pos

	if n := inlineImageLength(dict); n >= 0 && start+n <= len(l.data) {
		end := start + n
		q := end
		for q < len(l.data) && isWhitespace(l.data[q]) {
			q++
		}
		if bytes.HasPrefix(l.data[q:], []byte("EI")) && (q+2 == len(l.data) || isWhitespace(l.data[q+2]) || isDelimiter(l.data[q+2])) {
			l.pos = q + 2
			return Stream{Dictionary: dict, Data: l.data[start:end]}, nil
		}
	}

	for i := start; i+2 <= len(l.data); i++ {
		if l.data[i] != 'E' || l.data[i+1] != 'I' {
			continue
		}
		if i > start && !isWhitespace(l.data[i-1]) {
			continue
		}
		if i+2 < len(l.data) && !isWhitespace(l.data[i+2]) && !isDelimiter(l.data[i+2]) {
			continue
		}
		end := i
		if end > start {
			end--
		}
		l.pos = i + 2
		return Stream{Dictionary: dict, Data: l.data[start:end]}, nil
	}
	return Stream{}, fmt.Errorf("inline image without EI at position %d", start)
}

// inlineImageLength computes the byte length of unfiltered inline image
// data, or -1 when it cannot be known up front.
func inlineImageLength(dict Dictionary) int {
	if n, ok := dict.GetInt("Length"); ok {
		return int(n)
	}
	if dict.Has("Filter") {
		return -1
	}
	w, ok1 := dict.GetInt("Width")
	h, ok2 := dict.GetInt("Height")
	if !ok1 || !ok2 || w <= 0 || h <= 0 {
		return -1
	}
	bpc, _ := dict.GetInt("BitsPerComponent")
	comps := int64(1)
	if mask, _ := dict.Get("ImageMask").(Boolean); mask {
		bpc = 1
	} else {
		switch cs := dict.Get("ColorSpace").(type) {
		case Name:
			switch cs {
			case "DeviceRGB", "CalRGB":
				comps = 3
			case "DeviceCMYK":
				comps = 4
			case "DeviceGray", "CalGray":
			default:
				return -1
			}
		case Array:
			if len(cs) > 0 && cs[0] == Name("Indexed") {
				break
			}
			return -1
		default:
			return -1
		}
	}
	if bpc <= 0 {
		bpc = 8
	}
	return int(h * ((w*comps*bpc + 7) / 8))
}

// ContentStreamOperators lists the content stream operators the rasterizer
// understands, with a descriptive name for diagnostics.
var ContentStreamOperators = map[string]string{
	"w":  "SetLineWidth",
	"J":  "SetLineCap",
	"j":  "SetLineJoin",
	"M":  "SetMiterLimit",
	"d":  "SetDashPattern",
	"ri": "SetRenderingIntent",
	"i":  "SetFlatness",
	"gs": "SetGraphicsState",

	"q":  "SaveGraphicsState",
	"Q":  "RestoreGraphicsState",
	"cm": "ConcatMatrix",

	"m":  "MoveTo",
	"l":  "LineTo",
	"c":  "CurveTo",
	"v":  "CurveToV",
	"y":  "CurveToY",
	"h":  "ClosePath",
	"re": "Rectangle",

	"S":  "Stroke",
	"s":  "CloseAndStroke",
	"f":  "Fill",
	"F":  "FillOld",
	"f*": "FillEvenOdd",
	"B":  "FillAndStroke",
	"B*": "FillAndStrokeEvenOdd",
	"b":  "CloseAndFillAndStroke",
	"b*": "CloseAndFillAndStrokeEvenOdd",
	"n":  "EndPath",

	"W":  "Clip",
	"W*": "ClipEvenOdd",

	"BT": "BeginText",
	"ET": "EndText",

	"Tc": "SetCharSpacing",
	"Tw": "SetWordSpacing",
	"Tz": "SetHorizontalScaling",
	"TL": "SetTextLeading",
	"Tf": "SetFont",
	"Tr": "SetTextRenderingMode",
	"Ts": "SetTextRise",

	"Td": "MoveText",
	"TD": "MoveTextAndSetLeading",
	"Tm": "SetTextMatrix",
	"T*": "MoveToNextLine",

	"Tj": "ShowText",
	"TJ": "ShowTextArray",
	"'":  "MoveAndShowText",
	"\"": "MoveAndShowTextWithSpacing",

	"d0": "SetCharWidth",
	"d1": "SetCharWidthAndBBox",

	"CS":  "SetStrokeColorSpace",
	"cs":  "SetFillColorSpace",
	"SC":  "SetStrokeColor",
	"SCN": "SetStrokeColorN",
	"sc":  "SetFillColor",
	"scn": "SetFillColorN",
	"G":   "SetStrokeGray",
	"g":   "SetFillGray",
	"RG":  "SetStrokeRGB",
	"rg":  "SetFillRGB",
	"K":   "SetStrokeCMYK",
	"k":   "SetFillCMYK",

	"sh": "PaintShading",

	"BI": "InlineImage",

	"Do": "PaintXObject",

	"MP":  "MarkPoint",
	"DP":  "MarkPointWithProperties",
	"BMC": "BeginMarkedContent",
	"BDC": "BeginMarkedContentWithProperties",
	"EMC": "EndMarkedContent",

	"BX": "BeginCompatibility",
	"EX": "EndCompatibility",
}
