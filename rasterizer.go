package lazypdf

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/Nitro/lazypdf/pkg/pdf"
)

// RasterTimeout is how long a single page render may take before the
// request is abandoned.
const RasterTimeout = 10 * time.Second

type rasterType int

const (
	// RasterImage requests a rendered image.Image reply.
	RasterImage rasterType = iota
	// RasterHTML requests a positioned-text HTML reply.
	RasterHTML
)

// ReplyWrapper is the interface replies implement so the request path
// can check for errors without knowing the payload type.
type ReplyWrapper interface {
	Error() error
}

// RasterReply is the base reply carrying only an error.
type RasterReply struct {
	err error
}

func (r *RasterReply) Error() error { return r.err }

// RasterImageReply wraps a rendered page image.
type RasterImageReply struct {
	RasterReply
	Image image.Image
}

// RasterHTMLReply wraps the extracted page markup.
type RasterHTMLReply struct {
	RasterReply
	HTML []byte
}

// RasterRequest is what is passed into the rasterizer event loop via
// the RequestChan.
type RasterRequest struct {
	ctx        context.Context
	PageNumber int
	Width      int
	Scale      float64
	RasterType rasterType
	ReplyChan  chan ReplyWrapper
}

// Rasterizer is an actor that owns one open document and serializes
// page render requests against it through an event loop.
type Rasterizer struct {
	Filename    string
	RequestChan chan *RasterRequest

	engine             *pdf.Engine
	doc                *pdf.Document
	docPageCount       int
	hasRun             bool
	quitChan           chan struct{}
	backgroundRenderWg sync.WaitGroup

	// stopCompleted is only allocated by tests that need to know when
	// cleanup has fully finished.
	stopCompleted chan struct{}
}

// NewRasterizer returns a rasterizer for the file, with a request
// buffer of the given size. Run must be called before use.
func NewRasterizer(filename string, rasterBufferSize int) *Rasterizer {
	return &Rasterizer{
		Filename:    filename,
		RequestChan: make(chan *RasterRequest, rasterBufferSize),
		quitChan:    make(chan struct{}),
	}
}

// Run opens the document and starts the event loop. It needs to be
// called before making any requests to rasterize pages.
func (r *Rasterizer) Run() error {
	// To prevent nasty lifecycle surprises, a rasterizer cannot be
	// recycled. Just make a new one instead.
	if r.hasRun {
		return errors.New("Rasterizer has already been run and cannot be recycled!")
	}
	r.hasRun = true

	r.engine = pdf.NewEngine()

	doc, err := pdf.Open(pdf.NewContext(r.engine), r.Filename)
	if err != nil {
		return errors.New("Unable to open document: " + r.Filename + "!")
	}
	r.doc = doc

	count, err := doc.PageCount()
	if err != nil {
		doc.Close()
		r.doc = nil
		return fmt.Errorf("unable to count pages in %s: %w", r.Filename, err)
	}
	r.docPageCount = count

	go r.mainEventLoop()

	return nil
}

// GetPageCount returns the number of pages in the document.
func (r *Rasterizer) GetPageCount() int {
	return r.docPageCount
}

// Stop shuts down the rasterizer and releases the document once all
// in-flight work completes.
func (r *Rasterizer) Stop() {
	if r.quitChan != nil {
		close(r.quitChan)
	}
}

// generatePage is a synchronous interface to the processing engine.
// Asynchronous requests can be put directly into the RequestChan if
// needed rather than calling this function.
func (r *Rasterizer) generatePage(ctx context.Context, pageNumber int, width int, scale float64, kind rasterType) (ReplyWrapper, error) {
	if !r.hasRun {
		return nil, errors.New("Rasterizer has not been started!")
	}

	if r.quitChan == nil {
		return nil, errors.New("Rasterizer has been stopped!")
	}

	if r.doc == nil {
		return nil, errors.New("Rasterizer has been cleaned up! Cannot re-use")
	}

	// This channel must be buffered, or there is a race on the reply.
	// If we aren't listening yet when the reply comes, we would wait
	// out the RasterTimeout and miss the response.
	replyChan := make(chan ReplyWrapper, 1)

	ctx, cancelFunc := context.WithTimeout(ctx, RasterTimeout)
	defer cancelFunc()

	req := RasterRequest{
		ctx:        ctx,
		PageNumber: pageNumber,
		Width:      width,
		Scale:      scale,
		RasterType: kind,
		ReplyChan:  replyChan,
	}
	select {
	case r.RequestChan <- &req:
		// Proceed to wait for the response
	case <-ctx.Done():
		// Bail out early if the pipeline is still full or the caller gave up
		return nil, ErrRasterTimeout
	}

	select {
	case response := <-replyChan:
		close(replyChan)

		if err := response.Error(); err != nil {
			return nil, err
		}
		return response, nil

	case <-ctx.Done():
		// We waited enough. Discard whatever we eventually render and bail out
		return nil, ErrRasterTimeout
	}
}

// GeneratePageImage renders a page synchronously and returns a Go
// stdlib image.Image. The page number is one-based.
func (r *Rasterizer) GeneratePageImage(ctx context.Context, pageNumber int, width int, scale float64) (image.Image, error) {
	response, err := r.generatePage(ctx, pageNumber, width, scale, RasterImage)
	if err != nil {
		return nil, err
	}

	return response.(*RasterImageReply).Image, nil
}

// GeneratePageHTML extracts a page's text synchronously as positioned
// HTML markup. The page number is one-based.
func (r *Rasterizer) GeneratePageHTML(ctx context.Context, pageNumber int, width int, scale float64) ([]byte, error) {
	response, err := r.generatePage(ctx, pageNumber, width, scale, RasterHTML)
	if err != nil {
		return nil, err
	}

	return response.(*RasterHTMLReply).HTML, nil
}

// mainEventLoop processes requests one at a time so the shared
// document never sees concurrent access. It runs in the background
// until quitChan is closed.
func (r *Rasterizer) mainEventLoop() {
OUTER:
	for {
		select {
		case req := <-r.RequestChan:
			if req == nil {
				continue // happens on channel close
			}
			r.processOne(req)
		case <-r.quitChan:
			r.quitChan = nil
			break OUTER
		}
	}

	r.finalCleanUp()
}

// finalCleanUp runs after the event loop has shut down and releases
// the document and channels.
func (r *Rasterizer) finalCleanUp() {
	// Wait for every in-flight reply to be delivered
	r.backgroundRenderWg.Wait()

	if r.doc != nil {
		r.doc.Close()
		r.doc = nil
	}

	if r.RequestChan != nil {
		close(r.RequestChan)
		r.RequestChan = nil
	}

	if r.stopCompleted != nil {
		close(r.stopCompleted)
	}
}

func (req *RasterRequest) sendErrorReply(filename string, err error) {
	select {
	case req.ReplyChan <- &RasterReply{err: err}:
		// nothing
	default:
		log.Warnf("Failed to send reply for %q page %d", filename, req.PageNumber)
	}
}

// runCancellableOperation aborts the cookie if the caller bailed out
// early so the renderer terminates the pending operation as soon as
// possible.
func (req *RasterRequest) runCancellableOperation(filename string, fn func(*pdf.Cookie)) error {
	if req.ctx == nil {
		// In this case the caller doesn't want to bail out early
		fn(nil)

		return nil
	}

	cookie := &pdf.Cookie{}
	done := make(chan struct{})
	go func() {
		select {
		case <-req.ctx.Done():
			cookie.Abort()
		case <-done:
			// Processing finished
		}
	}()

	fn(cookie)

	close(done)

	if err := req.ctx.Err(); err != nil || cookie.Errors.Load() > 0 {
		log.Infof("Operation cancelled upstream: %s", err)
		req.sendErrorReply(filename, ErrBadPage)
		return ErrBadPage
	}

	return nil
}

// processOne does the work of actually rendering a page. In rendering
// you can supply either a fixed output width or a scale factor. Width
// overrides any scale factor; with neither set the page shape picks
// the default.
func (r *Rasterizer) processOne(req *RasterRequest) {
	if r.quitChan == nil || r.doc == nil {
		req.sendErrorReply(r.Filename, fmt.Errorf("Tried to process a page from a closed document %q", r.Filename))
		return
	}

	if req.PageNumber < 1 || req.PageNumber > r.docPageCount {
		log.Warnf("Requested invalid page %d out of total page count %d from file %q", req.PageNumber, r.docPageCount, r.Filename)
		req.sendErrorReply(r.Filename, ErrBadPage)
		return
	}

	page, err := r.doc.LoadPage(req.PageNumber)
	if err != nil {
		req.sendErrorReply(r.Filename, ErrBadPage)
		return
	}

	scaleFactor, err := resolveScale(page, RenderParams{
		Page:  req.PageNumber - 1,
		Width: req.Width,
		Scale: req.Scale,
	})
	if err != nil {
		req.sendErrorReply(r.Filename, err)
		return
	}
	opts := pdf.RasterOptions{Scale: scaleFactor}

	var reply ReplyWrapper
	var renderErr error
	err = req.runCancellableOperation(r.Filename, func(cookie *pdf.Cookie) {
		doc := r.doc
		if cookie != nil {
			doc = doc.WithContext(pdf.NewContext(r.engine).WithCookie(cookie))
		}

		switch req.RasterType {
		case RasterHTML:
			var html []byte
			if html, renderErr = extractPageHTML(doc, req.PageNumber, opts); renderErr == nil {
				reply = &RasterHTMLReply{HTML: html}
			}
		default:
			var img image.Image
			if img, renderErr = doc.RenderLoadedPage(page, opts); renderErr == nil {
				reply = &RasterImageReply{Image: img}
			}
		}
	})
	if err != nil {
		// runCancellableOperation already replied with an error
		return
	}
	if renderErr != nil {
		req.sendErrorReply(r.Filename, fmt.Errorf("failed to render page %d of %q: %w", req.PageNumber, r.Filename, renderErr))
		return
	}

	// Delivery can background; the event loop moves on to the next page.
	r.backgroundRenderWg.Add(1)
	go func() {
		defer r.backgroundRenderWg.Done()
		select {
		case req.ReplyChan <- reply:
			// nothing
		default:
			log.Warnf("Failed to reply for %s, page %d", r.Filename, req.PageNumber)
		}
	}()
}
