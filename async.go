package lazypdf

import (
	"bytes"
	"context"
	"io"
	"sync"
)

// AsyncResult is delivered to the callback when an asynchronous
// operation finishes. ID matches the one the caller supplied with the
// request.
type AsyncResult struct {
	ID        string
	Payload   []byte
	PageCount int
	Err       error
}

// AsyncHandler runs the package-level operations on background
// goroutines and delivers results through a single callback. It exists
// for callers that multiplex many documents and correlate replies by
// ID instead of blocking per call.
type AsyncHandler struct {
	callback func(AsyncResult)
	wg       sync.WaitGroup
}

// NewAsyncHandler creates an AsyncHandler delivering results to
// callback. The callback may be invoked from multiple goroutines at
// once and must be safe for concurrent use.
func NewAsyncHandler(callback func(AsyncResult)) *AsyncHandler {
	return &AsyncHandler{callback: callback}
}

// Wait blocks until every operation issued so far has delivered its
// result.
func (a *AsyncHandler) Wait() {
	a.wg.Wait()
}

func (a *AsyncHandler) run(fn func() AsyncResult) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.callback(fn())
	}()
}

// SaveToPNG renders a zero-based page to PNG in the background.
func (a *AsyncHandler) SaveToPNG(ctx context.Context, id string, page, width uint16, scale float32, rawPayload io.Reader) {
	a.run(func() AsyncResult {
		var buf bytes.Buffer
		if err := SaveToPNG(ctx, page, width, scale, rawPayload, &buf); err != nil {
			return AsyncResult{ID: id, Err: err}
		}
		return AsyncResult{ID: id, Payload: buf.Bytes()}
	})
}

// ExtractHTML extracts a zero-based page's text markup in the
// background.
func (a *AsyncHandler) ExtractHTML(ctx context.Context, id string, page, width uint16, scale float32, rawPayload io.Reader) {
	a.run(func() AsyncResult {
		var buf bytes.Buffer
		if err := ExtractHTML(ctx, page, width, scale, rawPayload, &buf); err != nil {
			return AsyncResult{ID: id, Err: err}
		}
		return AsyncResult{ID: id, Payload: buf.Bytes()}
	})
}

// PageCount counts the document's pages in the background.
func (a *AsyncHandler) PageCount(ctx context.Context, id string, rawPayload io.Reader) {
	a.run(func() AsyncResult {
		count, err := PageCount(ctx, rawPayload)
		if err != nil {
			return AsyncResult{ID: id, Err: err}
		}
		return AsyncResult{ID: id, PageCount: count}
	})
}
