// Package lazypdf renders and mutates PDF documents: page rasterization
// to PNG, text extraction to HTML, and stamping of images, text boxes
// and checkboxes onto existing pages.
package lazypdf

import (
	"context"
	"errors"
	"fmt"
	"io"

	ddTracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/Nitro/lazypdf/pkg/pdf"
)

// defaultEngine backs the package-level stateless calls. Handlers that
// want their own cache limits use NewPdfHandlerWithEngine instead.
var defaultEngine = pdf.NewEngine()

// openPayload reads the whole payload and opens it under a fresh
// context carrying a cookie wired to ctx cancellation. The returned
// stop function must be called before the document is discarded.
func openPayload(ctx context.Context, rawPayload io.Reader) (*pdf.Document, func(), error) {
	payload, err := io.ReadAll(rawPayload)
	if err != nil {
		return nil, nil, fmt.Errorf("fail to read the payload: %w", err)
	}

	cookie := &pdf.Cookie{}
	doc, err := pdf.NewDocument(pdf.NewContext(defaultEngine).WithCookie(cookie), payload)
	if err != nil {
		return nil, nil, fmt.Errorf("fail to open the payload: %w", err)
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cookie.Abort()
		case <-done:
		}
	}()
	stop := func() {
		close(done)
		doc.Close()
	}
	return doc, stop, nil
}

// SaveToPNG is used to convert a page from a PDF file to PNG. The page
// number is zero-based.
func SaveToPNG(ctx context.Context, page, width uint16, scale float32, rawPayload io.Reader, output io.Writer) error {
	span, ctx := ddTracer.StartSpanFromContext(ctx, "lazypdf.SaveToPNG")
	defer span.Finish()

	if rawPayload == nil {
		return errors.New("payload can't be nil")
	}
	if output == nil {
		return errors.New("output can't be nil")
	}

	doc, stop, err := openPayload(ctx, rawPayload)
	if err != nil {
		return err
	}
	defer stop()

	count, err := doc.PageCount()
	if err != nil {
		return fmt.Errorf("fail to count the pages: %w", err)
	}
	if int(page) >= count {
		return ErrBadPage
	}

	loaded, err := doc.LoadPage(int(page) + 1)
	if err != nil {
		return fmt.Errorf("fail to load the page: %w", err)
	}
	resolved, err := resolveScale(loaded, RenderParams{
		Page:  int(page),
		Width: int(width),
		Scale: float64(scale),
	})
	if err != nil {
		return fmt.Errorf("fail to resolve the page scale: %w", err)
	}

	png, err := doc.RenderPagePNG(int(page)+1, pdf.RasterOptions{Scale: resolved})
	if err != nil {
		return fmt.Errorf("fail to render the page: %w", err)
	}
	if _, err = output.Write(png); err != nil {
		return fmt.Errorf("fail to write the result at the output: %w", err)
	}
	return nil
}

// ExtractHTML extracts the text of a page as minimal HTML with
// absolutely positioned spans. The page number is zero-based and the
// coordinates match what SaveToPNG produces for the same parameters.
func ExtractHTML(ctx context.Context, page, width uint16, scale float32, rawPayload io.Reader, output io.Writer) error {
	span, ctx := ddTracer.StartSpanFromContext(ctx, "lazypdf.ExtractHTML")
	defer span.Finish()

	if rawPayload == nil {
		return errors.New("payload can't be nil")
	}
	if output == nil {
		return errors.New("output can't be nil")
	}

	doc, stop, err := openPayload(ctx, rawPayload)
	if err != nil {
		return err
	}
	defer stop()

	count, err := doc.PageCount()
	if err != nil {
		return fmt.Errorf("fail to count the pages: %w", err)
	}
	if int(page) >= count {
		return ErrBadPage
	}

	loaded, err := doc.LoadPage(int(page) + 1)
	if err != nil {
		return fmt.Errorf("fail to load the page: %w", err)
	}
	resolved, err := resolveScale(loaded, RenderParams{
		Page:  int(page),
		Width: int(width),
		Scale: float64(scale),
	})
	if err != nil {
		return fmt.Errorf("fail to resolve the page scale: %w", err)
	}

	html, err := extractPageHTML(doc, int(page)+1, pdf.RasterOptions{Scale: resolved})
	if err != nil {
		return fmt.Errorf("fail to extract the page text: %w", err)
	}
	if _, err = output.Write(html); err != nil {
		return fmt.Errorf("fail to write the result at the output: %w", err)
	}
	return nil
}

// PageCount is used to return the page count of the document.
func PageCount(ctx context.Context, rawPayload io.Reader) (int, error) {
	span, ctx := ddTracer.StartSpanFromContext(ctx, "lazypdf.PageCount")
	defer span.Finish()

	if rawPayload == nil {
		return 0, errors.New("payload can't be nil")
	}

	doc, stop, err := openPayload(ctx, rawPayload)
	if err != nil {
		return 0, err
	}
	defer stop()

	count, err := doc.PageCount()
	if err != nil {
		return 0, fmt.Errorf("fail to count the pages: %w", err)
	}
	return count, nil
}
