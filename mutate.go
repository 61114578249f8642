package lazypdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Nitro/lazypdf/pkg/pdf"
)

// MaxTextLength is the default limit on a single text box.
const MaxTextLength = 300

// ParseEncoding maps an encoding name onto the engine's simple
// encoding enum. The empty string selects Latin.
func ParseEncoding(name string) (pdf.SimpleEncoding, error) {
	switch name {
	case "", "Latin":
		return pdf.EncodingLatin, nil
	case "Greek":
		return pdf.EncodingGreek, nil
	case "Cyrillic":
		return pdf.EncodingCyrillic, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
	}
}

func appendMatrix(buf *bytes.Buffer, m pdf.Matrix) {
	fmt.Fprintf(buf, "%g %g %g %g %g %g cm\n", m.A, m.B, m.C, m.D, m.E, m.F)
}

// escapeTextString escapes the characters that terminate or alter a
// literal PDF string.
func escapeTextString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

// pageAddImage embeds the image file and stamps it over position. The
// drawn image fills the unit square, so the page-space transform
// carries both placement and scaling.
func pageAddImage(doc *pdf.Document, page *pdf.Page, imagePath string, position pdf.Rect) error {
	resources, err := pageResources(doc, page)
	if err != nil {
		return err
	}
	xobjects, err := getOrCreateDict(doc, resources, "XObject")
	if err != nil {
		return err
	}

	imageRef, err := doc.EmbedImageFile(imagePath)
	if err != nil {
		return fmt.Errorf("failed to embed image %q: %w", imagePath, err)
	}
	name := imageResourceName(imageRef.ObjectNumber)
	xobjects[pdf.Name(name)] = imageRef

	matrix, err := RectToPageSpace(page, position)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString("q\n")
	appendMatrix(&buf, matrix)
	fmt.Fprintf(&buf, "/%s Do\n", name)
	buf.WriteString("Q\n")

	_, err = appendPageContents(doc, page, buf.Bytes())
	return err
}

// pageAddText draws text at position with its baseline on the
// transform origin. The caller is responsible for descender
// compensation; position is the baseline, not the box corner.
func pageAddText(doc *pdf.Document, page *pdf.Page, text string, position pdf.Point, family string, size float64, enc pdf.SimpleEncoding, maxLength int) error {
	if len(text) > maxLength {
		return fmt.Errorf("%w: expected at most %d, got %d", ErrTextTooLong, maxLength, len(text))
	}

	resources, err := pageResources(doc, page)
	if err != nil {
		return err
	}
	fonts, err := getOrCreateDict(doc, resources, "Font")
	if err != nil {
		return err
	}

	fontRef, err := doc.EmbedSimpleFont(family, enc)
	if err != nil {
		return fmt.Errorf("failed to embed font %q: %w", family, err)
	}
	name := fontResourceName(fontRef.ObjectNumber)
	fonts[pdf.Name(name)] = fontRef

	matrix, err := PointToPageSpace(page, position)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString("q\n")
	appendMatrix(&buf, matrix)
	buf.WriteString("BT\n")
	fmt.Fprintf(&buf, "/%s %g Tf\n", name, size)
	buf.WriteString("0 0 Td\n")
	fmt.Fprintf(&buf, "(%s) Tj\n", escapeTextString(text))
	buf.WriteString("ET\n")
	buf.WriteString("Q\n")

	_, err = appendPageContents(doc, page, buf.Bytes())
	return err
}

// pageAddCheckbox strokes a square over position and, when checked,
// draws a ZapfDingbats check mark inside it. The content is emitted in
// a unit box; the page-space transform stretches it over position.
func pageAddCheckbox(doc *pdf.Document, page *pdf.Page, position pdf.Rect, checked bool) error {
	matrix, err := RectToPageSpace(page, position)
	if err != nil {
		return err
	}

	const lineWidth = 0.1

	var buf bytes.Buffer
	buf.WriteString("q\n")
	appendMatrix(&buf, matrix)
	// Everything below draws inside the 0,0,1,1 box. The border is
	// inset by half the line width so the stroke stays inside it.
	buf.WriteString("0.0 G\n")
	buf.WriteString("0.1 w\n")
	fmt.Fprintf(&buf, "%g %g %g %g re\n", lineWidth/2, lineWidth/2, 1.0-lineWidth/2, 1.0-lineWidth/2)
	buf.WriteString("s\n")

	if checked {
		resources, err := pageResources(doc, page)
		if err != nil {
			return err
		}
		fonts, err := getOrCreateDict(doc, resources, "Font")
		if err != nil {
			return err
		}
		fontRef, err := doc.EmbedSimpleFont("ZapfDingbats", pdf.EncodingLatin)
		if err != nil {
			return fmt.Errorf("failed to embed check mark font: %w", err)
		}
		fonts[checkMarkFontName] = fontRef

		// Glyph "4" is the check mark in ZapfDingbats.
		fontSize := 1.0 - lineWidth*2
		buf.WriteString("q\n")
		buf.WriteString("BT\n")
		fmt.Fprintf(&buf, "/%s %g Tf\n", checkMarkFontName, fontSize)
		fmt.Fprintf(&buf, "%g %g Td\n", lineWidth+0.2, lineWidth+0.2)
		buf.WriteString("(4) Tj\n")
		buf.WriteString("ET\n")
		buf.WriteString("Q\n")
	}
	buf.WriteString("Q\n")

	_, err = appendPageContents(doc, page, buf.Bytes())
	return err
}
