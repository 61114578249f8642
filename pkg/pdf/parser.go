package pdf

import (
	"bytes"
	"fmt"
	"io"
)

// Parser parses PDF objects from tokens.
type Parser struct {
	lexer  *Lexer
	tokens []Token
	pos    int
}

// NewParser creates a new parser for the given lexer.
func NewParser(lexer *Lexer) *Parser {
	return &Parser{lexer: lexer}
}

// NewParserFromBytes creates a new parser from a byte slice.
func NewParserFromBytes(data []byte) *Parser {
	return NewParser(NewLexerFromBytes(data))
}

// nextToken gets the next token, buffering for lookahead.
func (p *Parser) nextToken() (Token, error) {
	if p.pos < len(p.tokens) {
		tok := p.tokens[p.pos]
		p.pos++
		return tok, nil
	}

	tok, err := p.lexer.NextToken()
	if err != nil {
		return Token{}, err
	}
	p.tokens = append(p.tokens, tok)
	p.pos++
	return tok, nil
}

// peekToken peeks at the next token without consuming it.
func (p *Parser) peekToken() (Token, error) {
	tok, err := p.nextToken()
	if err != nil {
		return Token{}, err
	}
	p.pos--
	return tok, nil
}

// peekTokenN peeks at the nth token ahead (0-indexed).
func (p *Parser) peekTokenN(n int) (Token, error) {
	for i := len(p.tokens); i <= p.pos+n; i++ {
		tok, err := p.lexer.NextToken()
		if err != nil {
			return Token{}, err
		}
		p.tokens = append(p.tokens, tok)
	}
	return p.tokens[p.pos+n], nil
}

// ParseObject parses a single PDF object.
func (p *Parser) ParseObject() (Object, error) {
	tok, err := p.nextToken()
	if err != nil {
		return nil, err
	}

	switch tok.Type {
	case TokenEOF:
		return nil, io.EOF

	case TokenNull:
		return Null{}, nil

	case TokenBoolean:
		return Boolean(tok.Value.(bool)), nil

	case TokenInteger:
		// Check if this is a reference (num gen R)
		next1, err := p.peekToken()
		if err == nil && next1.Type == TokenInteger {
			next2, err := p.peekTokenN(1)
			if err == nil && next2.Type == TokenRef {
				p.nextToken() // generation number
				p.nextToken() // R
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
		return nil, fmt.Errorf("unexpected token type %d at position %d", tok.Type, tok.Pos)
	}
}

// parseArray parses a PDF array [...].
func (p *Parser) parseArray() (Array, error) {
	var arr Array
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

// parseDictionary parses a PDF dictionary <<...>>.
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
		key := Name(keyTok.Value.(string))

		value, err := p.ParseObject()
		if err != nil {
			return nil, err
		}
		dict[key] = value
	}
}

// ParseIndirectObject parses an indirect object definition (num gen obj ... endobj).
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
		return 0, 0, nil, err
	}

	nextTok, err := p.peekToken()
	if err == nil && nextTok.Type == TokenStreamStart {
		p.nextToken() // stream keyword

		dict, ok := obj.(Dictionary)
		if !ok {
			return 0, 0, nil, fmt.Errorf("stream must have dictionary at position %d", nextTok.Pos)
		}

		streamData, err := p.readStreamData(dict)
		if err != nil {
			return 0, 0, nil, err
		}
		obj = Stream{Dictionary: dict, Data: streamData}

		endTok, err := p.nextToken()
		if err != nil {
			return 0, 0, nil, err
		}
		if endTok.Type != TokenStreamEnd {
			return 0, 0, nil, fmt.Errorf("expected 'endstream' at position %d", endTok.Pos)
		}
	}

	endTok, err := p.nextToken()
	if err != nil {
		return 0, 0, nil, err
	}
	if endTok.Type != TokenObjEnd {
		return 0, 0, nil, fmt.Errorf("expected 'endobj' keyword at position %d", endTok.Pos)
	}

	return objNum, genNum, obj, nil
}

// readStreamData reads the raw stream data following a 'stream' keyword.
func (p *Parser) readStreamData(dict Dictionary) ([]byte, error) {
	// Skip to the end of the 'stream' line; anything on it belongs to the data.
	line, err := p.lexer.ReadLine()
	if err != nil {
		return nil, err
	}
	var prefix []byte
	if len(line) > 0 {
		prefix = line
	}

	lengthObj := dict.Get("Length")
	if lengthObj == nil {
		return nil, fmt.Errorf("stream missing Length")
	}

	var length int64
	switch l := lengthObj.(type) {
	case Integer:
		length = int64(l)
	case Reference:
		// Indirect Length: scan for the endstream marker instead.
		return p.readStreamUntilEnd(prefix)
	default:
		return nil, fmt.Errorf("invalid stream Length type")
	}

	data, err := p.lexer.ReadBytes(int(length))
	if err != nil {
		return nil, err
	}
	if len(prefix) > 0 {
		data = append(prefix, data...)
	}
	return data, nil
}

// readStreamUntilEnd reads stream data until 'endstream' is found.
func (p *Parser) readStreamUntilEnd(prefix []byte) ([]byte, error) {
	var buf bytes.Buffer
	if len(prefix) > 0 {
		buf.Write(prefix)
		buf.WriteByte('\n')
	}

	endMarker := []byte("endstream")
	for {
		line, err := p.lexer.ReadLine()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if idx := bytes.Index(line, endMarker); idx >= 0 {
			if idx > 0 {
				buf.Write(line[:idx])
			}
			break
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	data := buf.Bytes()
	for len(data) > 0 && (data[len(data)-1] == '\n' || data[len(data)-1] == '\r') {
		data = data[:len(data)-1]
	}
	return data, nil
}

// Operation represents a content stream operation.
type Operation struct {
	Operator string
	Operands []Object
}

// ContentStreamParser parses page content streams into operations.
type ContentStreamParser struct {
	lexer *Lexer
}

// NewContentStreamParser creates a new content stream parser.
func NewContentStreamParser(data []byte) *ContentStreamParser {
	return &ContentStreamParser{lexer: NewLexerFromBytes(data)}
}

// ParseOperations parses all operations from a content stream. Operands
// accumulate until an operator keyword flushes them into an Operation.
func (p *ContentStreamParser) ParseOperations() ([]Operation, error) {
	var operations []Operation
	var operands []Object

	for {
		tok, err := p.lexer.NextToken()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if tok.Type == TokenEOF {
			break
		}

		switch tok.Type {
		case TokenKeyword:
			operations = append(operations, Operation{
				Operator: tok.Value.(string),
				Operands: operands,
			})
			operands = nil
		case TokenRef:
			// Bare 'R' inside a content stream is an operator too
			// (close and fill path in some producers' output).
			operations = append(operations, Operation{Operator: "R", Operands: operands})
			operands = nil
		default:
			obj, err := p.parseOperand(tok)
			if err != nil {
				return nil, err
			}
			operands = append(operands, obj)
		}
	}

	return operations, nil
}

// parseOperand parses a content stream operand.
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
	default:
		return nil, fmt.Errorf("unexpected token in content stream at position %d", tok.Pos)
	}
}

// parseArray parses an array operand.
func (p *ContentStreamParser) parseArray() (Array, error) {
	var arr Array
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

// parseDictionary parses a dictionary operand.
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
		key := Name(tok.Value.(string))

		valueTok, err := p.lexer.NextToken()
		if err != nil {
			return nil, err
		}
		value, err := p.parseOperand(valueTok)
		if err != nil {
			return nil, err
		}
		dict[key] = value
	}
}
