package lazypdf

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T) *PdfHandler {
	t.Helper()
	return NewPdfHandler(context.Background(), slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

func openFixture(t *testing.T, h *PdfHandler) PdfDocument {
	t.Helper()

	doc, err := h.OpenPDF(bytes.NewReader(fixturePDF("", "", "")))
	require.NoError(t, err)
	t.Cleanup(func() { h.ClosePDF(doc) })
	return doc
}

func writeTestImage(t *testing.T) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := 0; i < 8; i++ {
		img.Set(i, i, color.RGBA{R: 255, A: 255})
	}
	path := filepath.Join(t.TempDir(), "stamp.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestOpenPDFRejectsNilPayload(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)
	_, err := h.OpenPDF(nil)
	require.Error(t, err)
}

func TestOpenPDFRejectsCorruptPayload(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)
	_, err := h.OpenPDF(strings.NewReader("this is not a pdf"))
	require.Error(t, err)
}

func TestGetPageSize(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)
	doc := openFixture(t, h)

	size, err := h.GetPageSize(doc, 0)
	require.NoError(t, err)
	require.InDelta(t, 612, size.Width, 1e-9)
	require.InDelta(t, 792, size.Height, 1e-9)

	_, err = h.GetPageSize(doc, 5)
	require.Error(t, err)
	require.True(t, IsBadPage(err))
}

func TestLocationSizeToPdfPoints(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)
	doc := openFixture(t, h)

	x, y, w, hh, err := h.LocationSizeToPdfPoints(context.Background(), doc, 0, 0.5, 0.25, 0.1, 0.05)
	require.NoError(t, err)
	require.InDelta(t, 306, x, 1e-9)
	require.InDelta(t, (1.0-0.25-0.05)*792, y, 1e-9)
	require.InDelta(t, 61.2, w, 1e-9)
	require.InDelta(t, 39.6, hh, 1e-9)

	_, _, _, _, err = h.LocationSizeToPdfPoints(context.Background(), doc, 0, 1.5, 0, 0, 0)
	require.Error(t, err)
}

func TestAddTextBoxToPage(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)
	doc := openFixture(t, h)

	params := TextParams{
		Value:    "Signed by Jane Doe",
		Page:     0,
		Location: Location{X: 0.1, Y: 0.8},
		Size:     Size{Width: 0.3, Height: 0.05},
	}
	params.Font.Family = "Helvetica"
	params.Font.Size = 12
	require.NoError(t, h.AddTextBoxToPage(doc, params))

	out := filepath.Join(t.TempDir(), "signed.pdf")
	require.NoError(t, h.SavePDF(doc, out))

	saved, err := os.ReadFile(out)
	require.NoError(t, err)
	require.NotEmpty(t, saved)

	// The mutated document must still open and keep its page count.
	count, err := PageCount(context.Background(), bytes.NewReader(saved))
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestAddTextBoxToPageLengthLimit(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)
	doc := openFixture(t, h)

	params := TextParams{
		Value:    strings.Repeat("a", MaxTextLength),
		Page:     0,
		Location: Location{X: 0.1, Y: 0.1},
		Size:     Size{Width: 0.5, Height: 0.05},
	}
	params.Font.Family = "Helvetica"
	params.Font.Size = 10
	require.NoError(t, h.AddTextBoxToPage(doc, params))

	params.Value = strings.Repeat("a", MaxTextLength+1)
	err := h.AddTextBoxToPage(doc, params)
	require.Error(t, err)
	require.Contains(t, err.Error(), "maximum allowed size")
}

func TestAddTextBoxToPageUnknownEncoding(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)
	doc := openFixture(t, h)

	params := TextParams{
		Value:    "hello",
		Page:     0,
		Location: Location{X: 0.1, Y: 0.1},
		Size:     Size{Width: 0.5, Height: 0.05},
		Encoding: "Klingon",
	}
	params.Font.Family = "Helvetica"
	params.Font.Size = 10
	err := h.AddTextBoxToPage(doc, params)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown text encoding")
}

func TestAddTextBoxToPageMissingFont(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)
	doc := openFixture(t, h)

	params := TextParams{
		Value:    "hello",
		Page:     0,
		Location: Location{X: 0.1, Y: 0.1},
		Size:     Size{Width: 0.5, Height: 0.05},
	}
	params.Font.Family = "NoSuchFamily842"
	params.Font.Size = 10
	err := h.AddTextBoxToPage(doc, params)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to find font path")
	// The underlying lookup failure must stay in the chain.
	require.Contains(t, err.Error(), "not found")
}

func TestAddImageToPage(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)
	doc := openFixture(t, h)

	err := h.AddImageToPage(doc, ImageParams{
		Page:      0,
		Location:  Location{X: 0.2, Y: 0.2},
		Size:      Size{Width: 0.25, Height: 0.25},
		ImagePath: writeTestImage(t),
	})
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "stamped.pdf")
	require.NoError(t, h.SavePDF(doc, out))

	saved, err := os.ReadFile(out)
	require.NoError(t, err)
	require.Contains(t, string(saved), "/Img")
}

func TestAddImageToPageMissingFile(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)
	doc := openFixture(t, h)

	err := h.AddImageToPage(doc, ImageParams{
		Page:      0,
		Location:  Location{X: 0.2, Y: 0.2},
		Size:      Size{Width: 0.25, Height: 0.25},
		ImagePath: filepath.Join(t.TempDir(), "missing.png"),
	})
	require.Error(t, err)
}

func TestAddCheckboxToPage(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)

	render := func(checked bool) []byte {
		doc, err := h.OpenPDF(bytes.NewReader(fixturePDF("", "", "")))
		require.NoError(t, err)
		defer h.ClosePDF(doc)

		err = h.AddCheckboxToPage(doc, CheckboxParams{
			Value:    checked,
			Page:     0,
			Location: Location{X: 0.4, Y: 0.4},
			Size:     Size{Width: 0.1, Height: 0.1},
		})
		require.NoError(t, err)

		var buf bytes.Buffer
		require.NoError(t, h.SaveToPNG(doc, 0, 0, 1, 0, &buf))
		return buf.Bytes()
	}

	unchecked := render(false)
	checked := render(true)
	require.NotEmpty(t, unchecked)
	require.NotEmpty(t, checked)
	// The check mark has to change the rendered pixels.
	require.NotEqual(t, unchecked, checked)
}

func TestSaveToPNG(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)
	doc := openFixture(t, h)

	var buf bytes.Buffer
	require.NoError(t, h.SaveToPNG(doc, 0, 0, 0, 0, &buf))
	require.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))

	require.Error(t, h.SaveToPNG(doc, 0, 0, 0, 0, nil))

	err := h.SaveToPNG(doc, 9, 0, 0, 0, &buf)
	require.Error(t, err)
	require.True(t, IsBadPage(err))
}

func TestClosePDFRemovesTempFile(t *testing.T) {
	t.Parallel()

	h := newTestHandler(t)
	doc, err := h.OpenPDF(bytes.NewReader(fixturePDF("", "", "")))
	require.NoError(t, err)

	_, statErr := os.Stat(doc.file)
	require.NoError(t, statErr)

	require.NoError(t, h.ClosePDF(doc))
	_, statErr = os.Stat(doc.file)
	require.True(t, os.IsNotExist(statErr))
}
