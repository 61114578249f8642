package lazypdf

import (
	"fmt"

	"github.com/Nitro/lazypdf/pkg/pdf"
)

// insertPageContents registers data as a new content stream on the page,
// either after the existing content (tail) or before it (head). A page
// holding a single content stream is promoted to an array with the
// original stream kept in place. The new stream's object number is
// returned so callers can derive resource names from it.
func insertPageContents(doc *pdf.Document, page *pdf.Page, data []byte, tail bool) (int, error) {
	ref := doc.AddStream(nil, data)

	existing, err := doc.ResolveObject(page.Dictionary.Get("Contents"))
	if err != nil {
		return 0, fmt.Errorf("failed to resolve page contents: %w", err)
	}

	if arr, ok := existing.(pdf.Array); ok {
		if tail {
			arr = append(arr, ref)
		} else {
			arr = append(pdf.Array{ref}, arr...)
		}
		page.Dictionary["Contents"] = arr
	} else {
		arr := pdf.Array{}
		// A direct stream has no object number and cannot live inside
		// a Contents array, so it would be dropped here just like the
		// reference implementation drops it.
		if orig, ok := page.Dictionary.Get("Contents").(pdf.Reference); ok && orig.ObjectNumber != 0 {
			arr = append(arr, orig)
		}
		if tail {
			arr = append(arr, ref)
		} else {
			arr = append(pdf.Array{ref}, arr...)
		}
		page.Dictionary["Contents"] = arr
	}

	if page.Ref.ObjectNumber != 0 {
		doc.SetObject(page.Ref.ObjectNumber, page.Dictionary)
	}
	return ref.ObjectNumber, nil
}

// appendPageContents adds data after the page's existing content.
func appendPageContents(doc *pdf.Document, page *pdf.Page, data []byte) (int, error) {
	return insertPageContents(doc, page, data, true)
}

// prependPageContents adds data before the page's existing content.
func prependPageContents(doc *pdf.Document, page *pdf.Page, data []byte) (int, error) {
	return insertPageContents(doc, page, data, false)
}
