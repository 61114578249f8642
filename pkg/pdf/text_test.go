package pdf

import (
	"math"
	"testing"
)

// TestExtractTextSpans tests positioned text extraction
func TestExtractTextSpans(t *testing.T) {
	content := "BT /F1 12 Tf 72 720 Td (Hello) Tj ET"
	doc, err := NewDocument(testContext(), buildContentPDF("[0 0 612 792]", content))
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	defer doc.Close()

	spans, err := doc.ExtractTextSpans(1, RasterOptions{Scale: 1})
	if err != nil {
		t.Fatalf("ExtractTextSpans failed: %v", err)
	}
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}

	span := spans[0]
	if span.Text != "Hello" {
		t.Errorf("Expected text %q, got %q", "Hello", span.Text)
	}
	// Device space is y-down: user (72, 720) lands at (72, 792-720).
	if math.Abs(span.X-72) > 0.5 {
		t.Errorf("Expected X near 72, got %v", span.X)
	}
	if math.Abs(span.Baseline-72) > 0.5 {
		t.Errorf("Expected baseline near 72, got %v", span.Baseline)
	}
	if math.Abs(span.Size-12) > 0.5 {
		t.Errorf("Expected size near 12, got %v", span.Size)
	}
	if span.Width <= 0 {
		t.Errorf("Expected positive advance width, got %v", span.Width)
	}
}

// TestExtractTextSpansScaled tests that coordinates follow the scale
func TestExtractTextSpansScaled(t *testing.T) {
	content := "BT /F1 12 Tf 72 720 Td (Hi) Tj ET"
	doc, err := NewDocument(testContext(), buildContentPDF("[0 0 612 792]", content))
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	defer doc.Close()

	spans, err := doc.ExtractTextSpans(1, RasterOptions{Scale: 2})
	if err != nil {
		t.Fatalf("ExtractTextSpans failed: %v", err)
	}
	if len(spans) != 1 {
		t.Fatalf("Expected 1 span, got %d", len(spans))
	}
	if math.Abs(spans[0].X-144) > 1 {
		t.Errorf("Expected X near 144 at scale 2, got %v", spans[0].X)
	}
	if math.Abs(spans[0].Size-24) > 1 {
		t.Errorf("Expected size near 24 at scale 2, got %v", spans[0].Size)
	}
}

// TestExtractTextSpansMultiline tests T* line advances
func TestExtractTextSpansMultiline(t *testing.T) {
	content := "BT /F1 10 Tf 14 TL 50 700 Td (first) Tj T* (second) Tj ET"
	doc, err := NewDocument(testContext(), buildContentPDF("[0 0 612 792]", content))
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	defer doc.Close()

	spans, err := doc.ExtractTextSpans(1, RasterOptions{Scale: 1})
	if err != nil {
		t.Fatalf("ExtractTextSpans failed: %v", err)
	}
	if len(spans) != 2 {
		t.Fatalf("Expected 2 spans, got %d", len(spans))
	}
	if spans[0].Text != "first" || spans[1].Text != "second" {
		t.Errorf("Unexpected span texts: %q, %q", spans[0].Text, spans[1].Text)
	}
	if spans[1].Baseline <= spans[0].Baseline {
		t.Errorf("Expected the second line lower on the page: %v vs %v", spans[0].Baseline, spans[1].Baseline)
	}
}

// TestExtractTextSpansEmptyPage tests extraction from a blank page
func TestExtractTextSpansEmptyPage(t *testing.T) {
	doc, err := NewDocument(testContext(), buildContentPDF("[0 0 612 792]", ""))
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	defer doc.Close()

	spans, err := doc.ExtractTextSpans(1, RasterOptions{Scale: 1})
	if err != nil {
		t.Fatalf("ExtractTextSpans failed: %v", err)
	}
	if len(spans) != 0 {
		t.Errorf("Expected no spans on a blank page, got %d", len(spans))
	}
}
