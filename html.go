package lazypdf

import (
	"bytes"
	"fmt"
	"html"

	"github.com/Nitro/lazypdf/pkg/pdf"
)

// extractPageHTML renders the page's text runs into a self-contained
// HTML fragment. Every run becomes an absolutely positioned span whose
// pixel coordinates line up with the PNG raster of the same page under
// the same options, so the markup can overlay the image.
func extractPageHTML(doc *pdf.Document, pageNum int, opts pdf.RasterOptions) ([]byte, error) {
	spans, err := doc.ExtractTextSpans(pageNum, opts)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("<div style=\"position:relative\">\n")
	for _, s := range spans {
		if s.Text == "" {
			continue
		}
		// Spans carry the baseline; CSS positions the box top, so the
		// top offset backs up by the font size.
		fmt.Fprintf(&buf,
			"<span style=\"position:absolute;white-space:pre;left:%.2fpx;top:%.2fpx;font-size:%.2fpx\">%s</span>\n",
			s.X, s.Baseline-s.Size, s.Size, html.EscapeString(s.Text))
	}
	buf.WriteString("</div>\n")
	return buf.Bytes(), nil
}
