package lazypdf

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAsyncHandlerDeliversByID(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	results := make(map[string]AsyncResult)

	a := NewAsyncHandler(func(r AsyncResult) {
		mu.Lock()
		defer mu.Unlock()
		results[r.ID] = r
	})

	ctx := context.Background()
	a.PageCount(ctx, "count-1", bytes.NewReader(fixturePDF("", "", "")))
	a.SaveToPNG(ctx, "png-1", 0, 0, 0, bytes.NewReader(fixturePDF("", "", "")))
	a.ExtractHTML(ctx, "html-1", 0, 0, 0, bytes.NewReader(fixturePDF("", "", "")))
	a.PageCount(ctx, "count-bad", bytes.NewReader([]byte("garbage")))
	a.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 4)

	require.NoError(t, results["count-1"].Err)
	require.Equal(t, 1, results["count-1"].PageCount)

	require.NoError(t, results["png-1"].Err)
	require.True(t, bytes.HasPrefix(results["png-1"].Payload, []byte("\x89PNG")))

	require.NoError(t, results["html-1"].Err)
	require.Contains(t, string(results["html-1"].Payload), "Hello World")

	require.Error(t, results["count-bad"].Err)
}
