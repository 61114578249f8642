package lazypdf

import (
	"bytes"
	"fmt"

	"github.com/Nitro/lazypdf/pkg/pdf"
)

// countQBalance scans the page's concatenated content streams and
// reports how many graphics state pushes must be prepended and how many
// pops appended so that the combined content starts and ends at the
// initial state. A page that pops below its starting depth needs
// prepended q operators to absorb the underflow; any depth left at the
// end needs matching Q operators appended.
func countQBalance(page *pdf.Page) (prepend, append int, err error) {
	content, err := page.Contents()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read page contents: %w", err)
	}

	ops, err := pdf.NewContentStreamParser(content).ParseOperations()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to parse page contents: %w", err)
	}

	depth := 0
	minDepth := 0
	for _, op := range ops {
		switch op.Operator {
		case "q":
			depth++
		case "Q":
			depth--
			if depth < minDepth {
				minDepth = depth
			}
		}
	}

	prepend = -minDepth
	append = depth + prepend
	return prepend, append, nil
}

// wrapPageContents injects the correction streams computed by
// countQBalance. Calling it on an already balanced page is a no-op, so
// it is safe to run before every mutation.
func wrapPageContents(doc *pdf.Document, page *pdf.Page) error {
	prepend, append, err := countQBalance(page)
	if err != nil {
		return err
	}

	if prepend > 0 {
		head := bytes.Repeat([]byte("q\n"), prepend)
		if _, err := prependPageContents(doc, page, head); err != nil {
			return fmt.Errorf("failed to prepend state corrections: %w", err)
		}
	}

	if append > 0 {
		tail := bytes.Repeat([]byte("Q\n"), append)
		if _, err := appendPageContents(doc, page, tail); err != nil {
			return fmt.Errorf("failed to append state corrections: %w", err)
		}
	}

	return nil
}
