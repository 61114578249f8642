package pdf

import "testing"

// TestLexerTokens tests tokenization of common object syntax
func TestLexerTokens(t *testing.T) {
	tests := []struct {
		input string
		typ   TokenType
		value interface{}
	}{
		{"null", TokenNull, nil},
		{"true", TokenBoolean, true},
		{"false", TokenBoolean, false},
		{"42", TokenInteger, int64(42)},
		{"-17", TokenInteger, int64(-17)},
		{"3.14", TokenReal, 3.14},
		{".5", TokenReal, 0.5},
		{"/Name", TokenName, "Name"},
		{"/A#20B", TokenName, "A B"},
		{"(hello)", TokenString, "hello"},
		{"(a\\(b\\)c)", TokenString, "a(b)c"},
		{"<48656C6C6F>", TokenHexString, "Hello"},
		{"<<", TokenDictStart, nil},
		{">>", TokenDictEnd, nil},
		{"[", TokenArrayStart, nil},
		{"]", TokenArrayEnd, nil},
	}
	for _, tt := range tests {
		lex := NewLexerFromBytes([]byte(tt.input))
		tok, err := lex.NextToken()
		if err != nil {
			t.Errorf("NextToken(%q) failed: %v", tt.input, err)
			continue
		}
		if tok.Type != tt.typ {
			t.Errorf("NextToken(%q): expected type %v, got %v", tt.input, tt.typ, tok.Type)
		}
		if tt.value == nil {
			continue
		}
		// String and hex string tokens carry their bytes.
		if want, ok := tt.value.(string); ok {
			if b, isBytes := tok.Value.([]byte); isBytes {
				if string(b) != want {
					t.Errorf("NextToken(%q): expected value %q, got %q", tt.input, want, b)
				}
				continue
			}
		}
		if tok.Value != tt.value {
			t.Errorf("NextToken(%q): expected value %v, got %v", tt.input, tt.value, tok.Value)
		}
	}
}

// TestLexerOperatorKeywords tests that content operators lex as keywords
func TestLexerOperatorKeywords(t *testing.T) {
	lex := NewLexerFromBytes([]byte("q 1 0 0 1 10 20 cm Q"))
	var keywords []string
	for {
		tok, err := lex.NextToken()
		if err != nil {
			t.Fatalf("NextToken failed: %v", err)
		}
		if tok.Type == TokenEOF {
			break
		}
		if tok.Type == TokenKeyword {
			keywords = append(keywords, tok.Value.(string))
		}
	}
	want := []string{"q", "cm", "Q"}
	if len(keywords) != len(want) {
		t.Fatalf("Expected %d keywords, got %v", len(want), keywords)
	}
	for i, kw := range want {
		if keywords[i] != kw {
			t.Errorf("Keyword %d: expected %q, got %q", i, kw, keywords[i])
		}
	}
}

// TestLexerSkipsComments tests comment handling
func TestLexerSkipsComments(t *testing.T) {
	lex := NewLexerFromBytes([]byte("% a comment\n7"))
	tok, err := lex.NextToken()
	if err != nil {
		t.Fatalf("NextToken failed: %v", err)
	}
	if tok.Type != TokenInteger || tok.Value != int64(7) {
		t.Errorf("Expected integer 7 after the comment, got %v %v", tok.Type, tok.Value)
	}
}

// TestContentStreamParser tests operand grouping into operations
func TestContentStreamParser(t *testing.T) {
	ops, err := NewContentStreamParser([]byte("q 2 0 0 2 0 0 cm BT /F1 12 Tf (hi) Tj ET Q")).ParseOperations()
	if err != nil {
		t.Fatalf("ParseOperations failed: %v", err)
	}

	want := []struct {
		operator string
		operands int
	}{
		{"q", 0},
		{"cm", 6},
		{"BT", 0},
		{"Tf", 2},
		{"Tj", 1},
		{"ET", 0},
		{"Q", 0},
	}
	if len(ops) != len(want) {
		t.Fatalf("Expected %d operations, got %d", len(want), len(ops))
	}
	for i, w := range want {
		if ops[i].Operator != w.operator {
			t.Errorf("Operation %d: expected %q, got %q", i, w.operator, ops[i].Operator)
		}
		if len(ops[i].Operands) != w.operands {
			t.Errorf("Operation %d (%s): expected %d operands, got %d", i, w.operator, w.operands, len(ops[i].Operands))
		}
	}

	if name, ok := ops[3].Operands[0].(Name); !ok || name != "F1" {
		t.Errorf("Expected /F1 operand on Tf, got %v", ops[3].Operands[0])
	}
	if s, ok := ops[4].Operands[0].(String); !ok || string(s.Value) != "hi" {
		t.Errorf("Expected string operand on Tj, got %v", ops[4].Operands[0])
	}
}
