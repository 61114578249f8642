package lazypdf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Nitro/lazypdf/pkg/pdf"
)

func TestGetOrCreateDictReturnsExisting(t *testing.T) {
	t.Parallel()

	doc, page := fixtureDoc(t, "")
	res, err := pageResources(doc, page)
	require.NoError(t, err)

	first, err := getOrCreateDict(doc, res, "XObject")
	require.NoError(t, err)
	first["Img1"] = pdf.Integer(1)

	second, err := getOrCreateDict(doc, res, "XObject")
	require.NoError(t, err)
	require.Equal(t, pdf.Integer(1), second.Get("Img1"), "same dictionary must come back")
}

func TestGetOrCreateDictRejectsNonDict(t *testing.T) {
	t.Parallel()

	doc, page := fixtureDoc(t, "")
	page.Dictionary["Resources"] = pdf.Integer(7)

	_, err := pageResources(doc, page)
	require.Error(t, err)
}

func TestResourceNamesDeriveFromObjectNumbers(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Img12", imageResourceName(12))
	require.Equal(t, "Font7", fontResourceName(7))
}

func TestTextRegistersFontResource(t *testing.T) {
	t.Parallel()

	doc, page := fixtureDoc(t, "")
	err := pageAddText(doc, page, "hi", pdf.Point{X: 10, Y: 10}, "Helvetica", 12, pdf.EncodingLatin, MaxTextLength)
	require.NoError(t, err)

	res, err := page.Resources()
	require.NoError(t, err)
	fonts, ok := res.GetDict("Font")
	require.True(t, ok, "text must create the Font resource dictionary")

	found := false
	for name := range fonts {
		if strings.HasPrefix(string(name), "Font") {
			found = true
		}
	}
	require.True(t, found, "font entry must be stored under its derived name")
}

func TestTwoImagesGetDistinctNames(t *testing.T) {
	t.Parallel()

	doc, _ := fixtureDoc(t, "")
	a := doc.AddStream(pdf.Dictionary{"Subtype": pdf.Name("Image")}, []byte{0})
	b := doc.AddStream(pdf.Dictionary{"Subtype": pdf.Name("Image")}, []byte{0})
	require.NotEqual(t, imageResourceName(a.ObjectNumber), imageResourceName(b.ObjectNumber))
}
