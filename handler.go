package lazypdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	ddTracer "gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/Nitro/lazypdf/pkg/pdf"
)

// PdfHandler exposes the document mutation and rendering operations
// over an open-handle calling convention: open once, mutate and render
// any number of times, save, close.
type PdfHandler struct {
	Logger *slog.Logger
	ctx    context.Context
	engine *pdf.Engine

	// MaxTextLength bounds a single AddTextBoxToPage value.
	MaxTextLength int
}

// NewPdfHandler creates a new PdfHandler with the given context and logger.
func NewPdfHandler(ctx context.Context, logger *slog.Logger) *PdfHandler {
	return &PdfHandler{
		Logger:        logger,
		ctx:           ctx,
		engine:        pdf.NewEngine(),
		MaxTextLength: MaxTextLength,
	}
}

// NewPdfHandlerWithEngine creates a PdfHandler sharing an existing
// engine, so several handlers reuse one font cache.
func NewPdfHandlerWithEngine(ctx context.Context, logger *slog.Logger, engine *pdf.Engine) *PdfHandler {
	h := NewPdfHandler(ctx, logger)
	h.engine = engine
	return h
}

// PdfDocument is an open document handle. The zero value is not
// usable; handles come from OpenPDF and must be released with
// ClosePDF.
type PdfDocument struct {
	doc    *pdf.Document
	cookie *pdf.Cookie
	file   string
	state  *documentState
}

// documentState is the mutable part of a handle, shared between the
// copies of a PdfDocument value.
type documentState struct {
	mu           sync.Mutex
	wrappedPages map[int]bool
}

type Location struct {
	X float64
	Y float64
}

type Size struct {
	Width  float64
	Height float64
}

type ImageParams struct {
	Page int
	// Specify location as percentages relative to page dimensions:
	//   (0,0) represents the upper-left corner.
	//   (1,1) represents the bottom-right corner.
	Location Location
	// Specify size as a percentage of page dimensions:
	//   0 represents zero size.
	//   1 represents the full page width or height
	Size      Size
	ImagePath string
}

type TextParams struct {
	Value string
	Page  int
	// Specify location as percentages relative to page dimensions:
	//   (0,0) represents the upper-left corner.
	//   (1,1) represents the bottom-right corner.
	Location Location
	// Set the text bounding box size as a percentage of the page size:
	//   0 represents zero size.
	//   1 represents the full page width or height
	Size Size
	Font struct {
		Family string
		Size   float64 // In "Point" where 1 point = 1/72 inch
	}
	// Encoding selects the simple text encoding: "Latin" (default),
	// "Greek" or "Cyrillic".
	Encoding string
}

type CheckboxParams struct {
	Value bool
	Page  int
	// Specify location as percentages relative to page dimensions:
	//   (0,0) represents the upper-left corner.
	//   (1,1) represents the bottom-right corner.
	Location Location
	// Specify size as a percentage of page dimensions:
	//   0 represents zero size.
	//   1 represents the full page width or height
	Size Size
}

type PageSize struct {
	Width  float64 // In "Point" where 1 point = 1/72 inch
	Height float64 // In "Point" where 1 point = 1/72 inch
}

func savePayloadToTempFile(ctx context.Context, r io.Reader) (filename string, err error) {
	span, _ := ddTracer.StartSpanFromContext(ctx, "savePayloadToTempFile")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	if r == nil {
		return "", errors.New("payload can't be nil")
	}

	tmpFile, err := os.CreateTemp("", "pdf_handler_*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer tmpFile.Close()

	if _, err = io.Copy(tmpFile, r); err != nil {
		removeErr := os.Remove(tmpFile.Name())
		if removeErr != nil {
			return "", fmt.Errorf("failed to write payload to temp file: %w; also failed to remove temp file: %v", err, removeErr)
		}
		return "", fmt.Errorf("failed to write payload to temp file: %w", err)
	}

	return tmpFile.Name(), nil
}

// OpenPDF reads the payload into a temp file and opens it as a
// document handle.
func (p *PdfHandler) OpenPDF(rawPayload io.Reader) (document PdfDocument, err error) {
	span, ctx := ddTracer.StartSpanFromContext(p.ctx, "PdfHandler.OpenPDF")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	filename, err := savePayloadToTempFile(ctx, rawPayload)
	if err != nil {
		return PdfDocument{}, err
	}

	cookie := &pdf.Cookie{}
	doc, err := pdf.Open(pdf.NewContext(p.engine).WithCookie(cookie), filename)
	if err != nil {
		if removeErr := os.Remove(filename); removeErr != nil {
			p.Logger.Warn("failed to remove temp file", "file", filename, "error", removeErr)
		}
		return PdfDocument{}, fmt.Errorf("failure at the open_pdf function: %w", err)
	}

	return PdfDocument{
		doc:    doc,
		cookie: cookie,
		file:   filename,
		state:  &documentState{wrappedPages: make(map[int]bool)},
	}, nil
}

// ClosePDF releases the handle and removes its temp file.
func (p *PdfHandler) ClosePDF(document PdfDocument) (err error) {
	span, _ := ddTracer.StartSpanFromContext(p.ctx, "PdfHandler.ClosePDF")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	closeErr := document.doc.Close()
	removeErr := os.Remove(document.file)

	var errs []error
	if closeErr != nil {
		errs = append(errs, fmt.Errorf("close_pdf failed: %w", closeErr))
	}
	if removeErr != nil {
		errs = append(errs, fmt.Errorf("failed to remove temp file: %w", removeErr))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// loadPage loads a zero-based page number, mapping out-of-range pages
// onto ErrBadPage.
func (p *PdfHandler) loadPage(document PdfDocument, page int) (*pdf.Page, error) {
	count, err := document.doc.PageCount()
	if err != nil {
		return nil, fmt.Errorf("failed to count pages: %w", err)
	}
	if page < 0 || page >= count {
		return nil, fmt.Errorf("%w: %d of %d", ErrBadPage, page, count)
	}
	return document.doc.LoadPage(page + 1)
}

func (p *PdfHandler) GetPageSize(document PdfDocument, page int) (pageSize PageSize, err error) {
	span, ctx := ddTracer.StartSpanFromContext(p.ctx, "PdfHandler.GetPageSize")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	return p.GetPageSizeWithContext(ctx, document, page)
}

// GetPageSizeWithContext returns the crop box dimensions of a
// zero-based page, in points.
func (p *PdfHandler) GetPageSizeWithContext(ctx context.Context, document PdfDocument, page int) (pageSize PageSize, err error) {
	span, _ := ddTracer.StartSpanFromContext(ctx, "PdfHandler.GetPageSize")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	loaded, err := p.loadPage(document, page)
	if err != nil {
		return PageSize{}, fmt.Errorf("failure at the get_page_size function: %w", err)
	}
	crop, err := loaded.CropBox()
	if err != nil {
		return PageSize{}, fmt.Errorf("failure at the get_page_size function: %w", err)
	}
	crop = crop.Normalize()

	return PageSize{Width: crop.Width(), Height: crop.Height()}, nil
}

// LocationSizeToPdfPoints converts percentages relative to page
// dimensions to PDF points.
func (p *PdfHandler) LocationSizeToPdfPoints(ctx context.Context, document PdfDocument, page int, x, y, width, height float64) (float64, float64, float64, float64, error) {
	span, _ := ddTracer.StartSpanFromContext(ctx, "PdfHandler.LocationSizeToPdfPoints")
	defer span.Finish()

	pageSize, err := p.GetPageSizeWithContext(ctx, document, page)
	if err != nil {
		return 0, 0, 0, 0, fmt.Errorf("failed to get page size: %w", err)
	}
	if x < 0 || x > 1 || y < 0 || y > 1 || width < 0 || width > 1 || height < 0 || height > 1 {
		return 0, 0, 0, 0, fmt.Errorf("invalid input percentages: x=%f, y=%f, width=%f, height=%f", x, y, width, height)
	}
	return x * pageSize.Width,
		(1.0 - y - height) * pageSize.Height,
		width * pageSize.Width,
		height * pageSize.Height,
		nil
}

// wrapPageContents balances the page's graphics state once per page
// and handle. Repeated mutations on the same page skip the rescan.
func (p *PdfHandler) wrapPageContents(ctx context.Context, document PdfDocument, pageNum int) (err error) {
	span, _ := ddTracer.StartSpanFromContext(ctx, "PdfHandler.wrapPageContents")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	document.state.mu.Lock()
	defer document.state.mu.Unlock()

	if document.state.wrappedPages[pageNum] {
		return nil
	}

	page, err := p.loadPage(document, pageNum)
	if err != nil {
		return err
	}
	if err := wrapPageContents(document.doc, page); err != nil {
		return fmt.Errorf("failure at the wrap_page_contents function: %w", err)
	}

	document.state.wrappedPages[pageNum] = true
	return nil
}

func (p *PdfHandler) AddImageToPage(document PdfDocument, params ImageParams) (err error) {
	span, ctx := ddTracer.StartSpanFromContext(p.ctx, "PdfHandler.AddImageToPage")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	err = p.wrapPageContents(ctx, document, params.Page)
	if err != nil {
		return fmt.Errorf("failure at wrapPageContents in AddImageToPage: %w", err)
	}

	x, y, width, height, err := p.LocationSizeToPdfPoints(
		ctx,
		document,
		params.Page,
		params.Location.X,
		params.Location.Y,
		params.Size.Width,
		params.Size.Height,
	)
	if err != nil {
		return fmt.Errorf("failure at the AddImageToPage function: %w", err)
	}

	page, err := p.loadPage(document, params.Page)
	if err != nil {
		return fmt.Errorf("failure at the AddImageToPage function: %w", err)
	}

	position := pdf.Rect{X0: x, Y0: y, X1: x + width, Y1: y + height}
	if err := pageAddImage(document.doc, page, params.ImagePath, position); err != nil {
		return fmt.Errorf("failure at the add_image_to_page function: %w", err)
	}
	return nil
}

// getFontAttributes resolves the font the same way text embedding
// does: standard fonts need no file and use tabled metrics, anything
// else is looked up on disk and measured through its font program.
func (p *PdfHandler) getFontAttributes(ctx context.Context, family string, fontSize float64) (fontPath string, descender float64, err error) {
	span, _ := ddTracer.StartSpanFromContext(ctx, "PdfHandler.getFontAttributes")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	if d, ok := pdf.StandardFontDescender(family, fontSize); ok {
		return "", d, nil
	}

	path, err := pdf.FindFontFile(family)
	if err != nil {
		return "", 0, err
	}
	descender, err = p.engine.DescenderToBaseline(path, fontSize)
	if err != nil {
		return "", 0, fmt.Errorf("failed to compute descender: %w", err)
	}
	return path, descender, nil
}

func (p *PdfHandler) AddTextBoxToPage(document PdfDocument, params TextParams) (err error) {
	span, ctx := ddTracer.StartSpanFromContext(p.ctx, "PdfHandler.AddTextBoxToPage")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	err = p.wrapPageContents(ctx, document, params.Page)
	if err != nil {
		return fmt.Errorf("failure at wrapPageContents in AddTextBoxToPage: %w", err)
	}

	encoding, err := ParseEncoding(params.Encoding)
	if err != nil {
		return fmt.Errorf("failure at the AddTextBoxToPage function: %w", err)
	}

	_, descender, err := p.getFontAttributes(ctx, params.Font.Family, params.Font.Size)
	if err != nil {
		return fmt.Errorf("failure at the AddTextBoxToPage function: failed to find font path for %q: %w", params.Font.Family, err)
	}

	x, y, _, _, err := p.LocationSizeToPdfPoints(
		ctx,
		document,
		params.Page,
		params.Location.X,
		params.Location.Y,
		params.Size.Width,
		params.Size.Height,
	)
	if err != nil {
		return fmt.Errorf("failure at the AddTextBoxToPage function: %w", err)
	}
	// Text positioning is baseline-relative, but the caller provides
	// the top-left corner and height of a box. Raising Y by the
	// descender puts the descender at the bottom of that box.
	y = y + descender

	page, err := p.loadPage(document, params.Page)
	if err != nil {
		return fmt.Errorf("failure at the AddTextBoxToPage function: %w", err)
	}

	maxLength := p.MaxTextLength
	if maxLength <= 0 {
		maxLength = MaxTextLength
	}
	err = pageAddText(document.doc, page, params.Value, pdf.Point{X: x, Y: y},
		params.Font.Family, params.Font.Size, encoding, maxLength)
	if err != nil {
		return fmt.Errorf("failure at the add_text_to_page function: %w", err)
	}
	return nil
}

func (p *PdfHandler) AddCheckboxToPage(document PdfDocument, params CheckboxParams) (err error) {
	span, ctx := ddTracer.StartSpanFromContext(p.ctx, "PdfHandler.AddCheckboxToPage")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	err = p.wrapPageContents(ctx, document, params.Page)
	if err != nil {
		return fmt.Errorf("failure at wrapPageContents in AddCheckboxToPage: %w", err)
	}

	x, y, width, height, err := p.LocationSizeToPdfPoints(
		ctx,
		document,
		params.Page,
		params.Location.X,
		params.Location.Y,
		params.Size.Width,
		params.Size.Height,
	)
	if err != nil {
		return fmt.Errorf("failure at the AddCheckboxToPage function: %w", err)
	}

	page, err := p.loadPage(document, params.Page)
	if err != nil {
		return fmt.Errorf("failure at the AddCheckboxToPage function: %w", err)
	}

	position := pdf.Rect{X0: x, Y0: y, X1: x + width, Y1: y + height}
	if err := pageAddCheckbox(document.doc, page, position, params.Value); err != nil {
		return fmt.Errorf("failure at the add_checkbox_to_page function: %w", err)
	}
	return nil
}

// SavePDF writes the mutated document to filePath. Structure streams
// are compressed, unreachable objects dropped; embedded image and font
// streams pass through untouched.
func (p *PdfHandler) SavePDF(document PdfDocument, filePath string) (err error) {
	span, _ := ddTracer.StartSpanFromContext(p.ctx, "PdfHandler.SavePDF")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	opts := pdf.SaveOptions{Garbage: true, Compress: true}
	if err := document.doc.SaveFile(filePath, opts); err != nil {
		return fmt.Errorf("failure at the save_pdf function: %w", err)
	}
	return nil
}

// SaveToPNG rasterizes a zero-based page into output as PNG. A width
// of 0 defers to scale, and both at zero defer to the page-shape
// default. dpi values below 72 are raised to 72.
func (p *PdfHandler) SaveToPNG(document PdfDocument, page, width uint16, scale float32, dpi int, output io.Writer) (err error) {
	span, _ := ddTracer.StartSpanFromContext(p.ctx, "PdfHandler.SaveToPNG")
	defer func() { span.Finish(ddTracer.WithError(err)) }()

	if output == nil {
		return errors.New("output can't be nil")
	}

	loaded, err := p.loadPage(document, int(page))
	if err != nil {
		return fmt.Errorf("failure at the save_to_png_file function: %w", err)
	}

	resolved, err := resolveScale(loaded, RenderParams{
		Page:  int(page),
		Width: int(width),
		Scale: float64(scale),
		DPI:   dpi,
	})
	if err != nil {
		return fmt.Errorf("failure at the save_to_png_file function: %w", err)
	}

	// Stop the renderer as soon as the handler context goes away.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-p.ctx.Done():
			document.cookie.Abort()
		case <-done:
		}
	}()

	payload, err := document.doc.RenderPagePNG(int(page)+1, pdf.RasterOptions{Scale: resolved})
	if err != nil {
		return fmt.Errorf("failure at the save_to_png_file function: %w", err)
	}

	if _, err := output.Write(payload); err != nil {
		return fmt.Errorf("fail to write to the output: %w", err)
	}
	return nil
}
