package lazypdf

import (
	"bytes"
	"fmt"
)

// fixturePDF builds a single-page document in memory with a classic
// cross-reference table. rotate is a raw /Rotate value ("" for none),
// content is the page content stream body.
func fixturePDF(mediaBox, rotate, content string) []byte {
	if mediaBox == "" {
		mediaBox = "[0 0 612 792]"
	}
	if content == "" {
		content = "BT /F1 12 Tf 72 720 Td (Hello World) Tj ET\n"
	}
	rotateEntry := ""
	if rotate != "" {
		rotateEntry = "/Rotate " + rotate
	}

	var buf bytes.Buffer
	offsets := make([]int, 6)

	buf.WriteString("%PDF-1.7\n")

	offsets[1] = buf.Len()
	buf.WriteString("1 0 obj\n<</Type/Catalog/Pages 2 0 R>>\nendobj\n")

	offsets[2] = buf.Len()
	buf.WriteString("2 0 obj\n<</Type/Pages/Kids[3 0 R]/Count 1>>\nendobj\n")

	offsets[3] = buf.Len()
	fmt.Fprintf(&buf, "3 0 obj\n<</Type/Page/Parent 2 0 R/MediaBox%s%s/Resources<</Font<</F1 4 0 R>>>>/Contents 5 0 R>>\nendobj\n",
		mediaBox, rotateEntry)

	offsets[4] = buf.Len()
	buf.WriteString("4 0 obj\n<</Type/Font/Subtype/Type1/BaseFont/Helvetica>>\nendobj\n")

	offsets[5] = buf.Len()
	fmt.Fprintf(&buf, "5 0 obj\n<</Length %d>>\nstream\n%s\nendstream\nendobj\n", len(content), content)

	xrefOffset := buf.Len()
	buf.WriteString("xref\n0 6\n")
	buf.WriteString("0000000000 65535 f \r\n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&buf, "%010d 00000 n \r\n", offsets[i])
	}
	buf.WriteString("trailer\n<</Size 6/Root 1 0 R>>\nstartxref\n")
	fmt.Fprintf(&buf, "%d\n%%%%EOF", xrefOffset)

	return buf.Bytes()
}
