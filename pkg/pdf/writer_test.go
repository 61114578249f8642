package pdf

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// TestSaveRoundTrip tests that a saved document opens again intact
func TestSaveRoundTrip(t *testing.T) {
	doc, err := NewDocument(testContext(), buildContentPDF("[0 0 612 792]", "q Q"))
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	defer doc.Close()

	out, err := doc.Save(SaveOptions{})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Error("Saved output is missing the PDF header")
	}

	reopened, err := NewDocument(testContext(), out)
	if err != nil {
		t.Fatalf("Reopening saved output failed: %v", err)
	}
	defer reopened.Close()

	count, err := reopened.PageCount()
	if err != nil {
		t.Fatalf("PageCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 page after round trip, got %d", count)
	}

	page, err := reopened.LoadPage(1)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	contents, err := page.Contents()
	if err != nil {
		t.Fatalf("Contents failed: %v", err)
	}
	if !bytes.Contains(contents, []byte("q Q")) {
		t.Errorf("Content stream lost in round trip: %q", contents)
	}
}

// TestSaveGarbageCollect tests that unreferenced objects are dropped
func TestSaveGarbageCollect(t *testing.T) {
	doc, err := NewDocument(testContext(), buildTestPDF())
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	defer doc.Close()

	// An object nothing points at.
	doc.AddStream(Dictionary{"Loose": Name("Yes")}, []byte("orphan-marker"))

	out, err := doc.Save(SaveOptions{Garbage: true})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if bytes.Contains(out, []byte("orphan-marker")) {
		t.Error("Garbage collection kept an unreferenced stream")
	}

	reopened, err := NewDocument(testContext(), out)
	if err != nil {
		t.Fatalf("Reopening saved output failed: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.Catalog(); err != nil {
		t.Errorf("Catalog lost during garbage collection: %v", err)
	}
}

// TestSaveCompress tests stream compression on save
func TestSaveCompress(t *testing.T) {
	content := bytes.Repeat([]byte("0 0 m 100 100 l S\n"), 50)
	doc, err := NewDocument(testContext(), buildContentPDF("[0 0 612 792]", string(content)))
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	defer doc.Close()

	out, err := doc.Save(SaveOptions{Compress: true})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if !bytes.Contains(out, []byte("FlateDecode")) {
		t.Error("Expected FlateDecode filters in compressed output")
	}

	reopened, err := NewDocument(testContext(), out)
	if err != nil {
		t.Fatalf("Reopening compressed output failed: %v", err)
	}
	defer reopened.Close()

	page, err := reopened.LoadPage(1)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	contents, err := page.Contents()
	if err != nil {
		t.Fatalf("Contents failed: %v", err)
	}
	if !bytes.Contains(contents, []byte("0 0 m 100 100 l S")) {
		t.Error("Decoded contents do not match the original stream")
	}
}

// TestSaveFile tests writing to disk
func TestSaveFile(t *testing.T) {
	doc, err := NewDocument(testContext(), buildTestPDF())
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	defer doc.Close()

	path := filepath.Join(t.TempDir(), "out.pdf")
	if err := doc.SaveFile(path, SaveOptions{}); err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Reading saved file failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Error("Saved file is missing the PDF header")
	}
}

// TestSaveAfterMutation tests that in-memory edits survive a save
func TestSaveAfterMutation(t *testing.T) {
	doc, err := NewDocument(testContext(), buildTestPDF())
	if err != nil {
		t.Fatalf("NewDocument failed: %v", err)
	}
	defer doc.Close()

	page, err := doc.LoadPage(1)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	ref := doc.AddStream(nil, []byte("1 0 0 1 5 5 cm"))
	page.Dictionary["Contents"] = ref
	doc.SetObject(page.Ref.ObjectNumber, page.Dictionary)

	out, err := doc.Save(SaveOptions{})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reopened, err := NewDocument(testContext(), out)
	if err != nil {
		t.Fatalf("Reopening saved output failed: %v", err)
	}
	defer reopened.Close()

	page2, err := reopened.LoadPage(1)
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	contents, err := page2.Contents()
	if err != nil {
		t.Fatalf("Contents failed: %v", err)
	}
	if !bytes.Contains(contents, []byte("1 0 0 1 5 5 cm")) {
		t.Errorf("Mutated contents lost in save: %q", contents)
	}
}
