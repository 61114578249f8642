package pdf

import (
	"bytes"
	"fmt"
	"testing"
)

// buildTestPDF assembles a small classic-xref document in memory. Each
// page entry is a raw dictionary body (without the Type key).
func buildTestPDF(pages ...string) []byte {
	if len(pages) == 0 {
		pages = []string{"/MediaBox[0 0 612 792]"}
	}

	var buf bytes.Buffer
	var offsets []int
	record := func() { offsets = append(offsets, buf.Len()) }

	buf.WriteString("%PDF-1.7\n")

	record()
	buf.WriteString("1 0 obj\n<</Type/Catalog/Pages 2 0 R>>\nendobj\n")

	record()
	buf.WriteString("2 0 obj\n<</Type/Pages/Kids[")
	for i := range pages {
		fmt.Fprintf(&buf, "%d 0 R ", 3+i)
	}
	fmt.Fprintf(&buf, "]/Count %d>>\nendobj\n", len(pages))

	for i, body := range pages {
		record()
		fmt.Fprintf(&buf, "%d 0 obj\n<</Type/Page/Parent 2 0 R%s>>\nendobj\n", 3+i, body)
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \r\n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \r\n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<</Size %d/Root 1 0 R>>\nstartxref\n%d\n%%%%EOF", len(offsets)+1, xrefOffset)

	return buf.Bytes()
}

func testContext() *Context {
	return NewContext(NewEngine())
}

// TestNewDocument tests opening a minimal document
func TestNewDocument(t *testing.T) {
	doc, err := NewDocument(testContext(), buildTestPDF())
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	defer doc.Close()

	if doc.Version != "1.7" {
		t.Errorf("Expected version 1.7, got %q", doc.Version)
	}

	count, err := doc.PageCount()
	if err != nil {
		t.Fatalf("PageCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 page, got %d", count)
	}
}

// TestPageCountMultiple tests counting several pages
func TestPageCountMultiple(t *testing.T) {
	doc, err := NewDocument(testContext(), buildTestPDF(
		"/MediaBox[0 0 612 792]",
		"/MediaBox[0 0 612 792]",
		"/MediaBox[0 0 792 612]",
	))
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	defer doc.Close()

	count, err := doc.PageCount()
	if err != nil {
		t.Fatalf("PageCount failed: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 pages, got %d", count)
	}
}

// TestLoadPage tests loading pages and reading their boxes
func TestLoadPage(t *testing.T) {
	doc, err := NewDocument(testContext(), buildTestPDF(
		"/MediaBox[0 0 612 792]/Rotate 90",
		"/MediaBox[0 0 200 100]/CropBox[10 10 190 90]",
	))
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	defer doc.Close()

	page, err := doc.LoadPage(1)
	if err != nil {
		t.Fatalf("LoadPage(1) failed: %v", err)
	}
	media, err := page.MediaBox()
	if err != nil {
		t.Fatalf("MediaBox failed: %v", err)
	}
	if media.Width() != 612 || media.Height() != 792 {
		t.Errorf("Unexpected media box %+v", media)
	}
	rot, err := page.RawRotation()
	if err != nil || rot != 90 {
		t.Errorf("Expected rotation 90, got %d (err %v)", rot, err)
	}

	page2, err := doc.LoadPage(2)
	if err != nil {
		t.Fatalf("LoadPage(2) failed: %v", err)
	}
	crop, err := page2.CropBox()
	if err != nil {
		t.Fatalf("CropBox failed: %v", err)
	}
	if crop.X0 != 10 || crop.Y1 != 90 {
		t.Errorf("Unexpected crop box %+v", crop)
	}

	// Crop box falls back to the media box when absent
	crop1, err := page.CropBox()
	if err != nil {
		t.Fatalf("CropBox fallback failed: %v", err)
	}
	if crop1 != media {
		t.Errorf("Expected crop box to default to media box, got %+v", crop1)
	}
}

// TestLoadPageOutOfRange tests the error on bad page numbers
func TestLoadPageOutOfRange(t *testing.T) {
	doc, err := NewDocument(testContext(), buildTestPDF())
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	defer doc.Close()

	if _, err := doc.LoadPage(2); err == nil {
		t.Error("Expected error for page 2 of a 1-page document")
	}
	if _, err := doc.LoadPage(0); err == nil {
		t.Error("Expected error for page 0, pages are 1-based")
	}
}

// TestInheritedAttr tests attribute inheritance from the page tree
func TestInheritedAttr(t *testing.T) {
	// MediaBox lives on the Pages node here, not the page itself
	data := []byte("%PDF-1.4\n")
	var buf bytes.Buffer
	buf.Write(data)

	offsets := []int{}
	record := func() { offsets = append(offsets, buf.Len()) }

	record()
	buf.WriteString("1 0 obj\n<</Type/Catalog/Pages 2 0 R>>\nendobj\n")
	record()
	buf.WriteString("2 0 obj\n<</Type/Pages/Kids[3 0 R]/Count 1/MediaBox[0 0 300 400]>>\nendobj\n")
	record()
	buf.WriteString("3 0 obj\n<</Type/Page/Parent 2 0 R>>\nendobj\n")

	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 4\n0000000000 65535 f \r\n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \r\n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<</Size 4/Root 1 0 R>>\nstartxref\n%d\n%%%%EOF", xrefOffset)

	doc, err := NewDocument(testContext(), buf.Bytes())
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	defer doc.Close()

	page, err := doc.LoadPage(1)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	media, err := page.MediaBox()
	if err != nil {
		t.Fatalf("MediaBox failed: %v", err)
	}
	if media.Width() != 300 || media.Height() != 400 {
		t.Errorf("Expected inherited 300x400 media box, got %+v", media)
	}
}

// TestCorruptDocument tests that junk input fails cleanly
func TestCorruptDocument(t *testing.T) {
	if _, err := NewDocument(testContext(), []byte("definitely not a pdf")); err == nil {
		t.Error("Expected error for corrupt input")
	}
}

// TestAddObject tests fresh object number allocation
func TestAddObject(t *testing.T) {
	doc, err := NewDocument(testContext(), buildTestPDF())
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	defer doc.Close()

	ref1 := doc.AddObject(Integer(1))
	ref2 := doc.AddStream(nil, []byte("q Q"))
	if ref1.ObjectNumber == ref2.ObjectNumber {
		t.Error("AddObject must hand out distinct object numbers")
	}

	obj, err := doc.GetObject(ref2.ObjectNumber)
	if err != nil {
		t.Fatalf("GetObject failed: %v", err)
	}
	stream, ok := obj.(Stream)
	if !ok {
		t.Fatalf("Expected stream, got %T", obj)
	}
	if length, _ := stream.Dictionary.GetInt("Length"); length != 3 {
		t.Errorf("Expected Length 3, got %d", length)
	}
}
