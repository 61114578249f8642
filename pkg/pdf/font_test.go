package pdf

import (
	"math"
	"testing"
)

// TestIsStandardFont tests base-14 family detection
func TestIsStandardFont(t *testing.T) {
	for _, name := range []string{"Helvetica", "Helvetica-BoldOblique", "Times-Roman", "Courier", "Symbol", "ZapfDingbats"} {
		if !IsStandardFont(name) {
			t.Errorf("Expected %s to be a standard font", name)
		}
	}
	for _, name := range []string{"Arial", "helvetica", "Comic Sans MS", ""} {
		if IsStandardFont(name) {
			t.Errorf("Did not expect %s to be a standard font", name)
		}
	}
}

// TestStandardFontDescender tests descender metrics scaling
func TestStandardFontDescender(t *testing.T) {
	d, ok := StandardFontDescender("Helvetica", 12)
	if !ok {
		t.Fatal("Expected Helvetica metrics")
	}
	if math.Abs(d-2.484) > 1e-9 {
		t.Errorf("Expected descender 2.484 for Helvetica at 12pt, got %v", d)
	}

	d, ok = StandardFontDescender("Times-Roman", 10)
	if !ok || math.Abs(d-2.19) > 1e-9 {
		t.Errorf("Expected descender 2.19 for Times-Roman at 10pt, got %v (ok %v)", d, ok)
	}

	if _, ok := StandardFontDescender("Arial", 12); ok {
		t.Error("Did not expect metrics for a non-standard family")
	}
}

// TestEmbedSimpleFontStandard tests Type1 embedding of base-14 fonts
func TestEmbedSimpleFontStandard(t *testing.T) {
	doc, err := NewDocument(testContext(), buildTestPDF())
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	defer doc.Close()

	ref, err := doc.EmbedSimpleFont("Helvetica", EncodingLatin)
	if err != nil {
		t.Fatalf("EmbedSimpleFont failed: %v", err)
	}
	obj, err := doc.GetObject(ref.ObjectNumber)
	if err != nil {
		t.Fatalf("GetObject failed: %v", err)
	}
	dict, ok := obj.(Dictionary)
	if !ok {
		t.Fatalf("Expected a font dictionary, got %T", obj)
	}
	if dict.Get("Subtype") != Name("Type1") {
		t.Errorf("Expected Type1 subtype, got %v", dict.Get("Subtype"))
	}
	if dict.Get("BaseFont") != Name("Helvetica") {
		t.Errorf("Expected Helvetica base font, got %v", dict.Get("BaseFont"))
	}
	if dict.Get("Encoding") != Name("WinAnsiEncoding") {
		t.Errorf("Expected WinAnsiEncoding, got %v", dict.Get("Encoding"))
	}
}

// TestEmbedSimpleFontSymbolic tests that symbolic fonts keep their
// built-in encodings
func TestEmbedSimpleFontSymbolic(t *testing.T) {
	doc, err := NewDocument(testContext(), buildTestPDF())
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	defer doc.Close()

	ref, err := doc.EmbedSimpleFont("ZapfDingbats", EncodingLatin)
	if err != nil {
		t.Fatalf("EmbedSimpleFont failed: %v", err)
	}
	obj, err := doc.GetObject(ref.ObjectNumber)
	if err != nil {
		t.Fatalf("GetObject failed: %v", err)
	}
	dict := obj.(Dictionary)
	if _, present := dict["Encoding"]; present {
		t.Error("Symbolic fonts must not carry an Encoding entry")
	}
}

// TestBuiltinFont tests the rasterization substitutes
func TestBuiltinFont(t *testing.T) {
	engine := NewEngine()
	for _, family := range []string{"Helvetica", "Courier-Bold", "Times-Italic", "NoSuchFamily"} {
		f, err := engine.BuiltinFont(family)
		if err != nil {
			t.Errorf("BuiltinFont(%s) failed: %v", family, err)
			continue
		}
		if f == nil {
			t.Errorf("BuiltinFont(%s) returned nil", family)
		}
	}

	// Cached lookup returns the same parsed font.
	a, _ := engine.BuiltinFont("Helvetica")
	b, _ := engine.BuiltinFont("Helvetica")
	if a != b {
		t.Error("Expected cached builtin font instances to be shared")
	}
}
