package lazypdf

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Nitro/lazypdf/pkg/pdf"
)

func TestAppendPromotesSingleStreamToArray(t *testing.T) {
	t.Parallel()

	doc, page := fixtureDoc(t, "q Q\n")
	original := page.Dictionary.Get("Contents")

	num, err := appendPageContents(doc, page, []byte("BT ET\n"))
	require.NoError(t, err)
	require.NotZero(t, num)

	contents, ok := page.Dictionary.Get("Contents").(pdf.Array)
	require.True(t, ok)
	require.Len(t, contents, 2)
	require.Equal(t, original, contents[0], "original stream must stay first")
	require.Equal(t, pdf.Reference{ObjectNumber: num}, contents[1])
}

func TestPrependInsertsAtHead(t *testing.T) {
	t.Parallel()

	doc, page := fixtureDoc(t, "q Q\n")

	num, err := prependPageContents(doc, page, []byte("q\n"))
	require.NoError(t, err)

	contents, ok := page.Dictionary.Get("Contents").(pdf.Array)
	require.True(t, ok)
	require.Len(t, contents, 2)
	require.Equal(t, pdf.Reference{ObjectNumber: num}, contents[0])
}

func TestInsertKeepsArrayOrder(t *testing.T) {
	t.Parallel()

	doc, page := fixtureDoc(t, "q Q\n")

	first, err := appendPageContents(doc, page, []byte("1 0 0 1 0 0 cm\n"))
	require.NoError(t, err)
	second, err := appendPageContents(doc, page, []byte("0 g\n"))
	require.NoError(t, err)
	head, err := prependPageContents(doc, page, []byte("q\n"))
	require.NoError(t, err)

	contents, ok := page.Dictionary.Get("Contents").(pdf.Array)
	require.True(t, ok)
	require.Len(t, contents, 4)
	require.Equal(t, pdf.Reference{ObjectNumber: head}, contents[0])
	require.Equal(t, pdf.Reference{ObjectNumber: first}, contents[2])
	require.Equal(t, pdf.Reference{ObjectNumber: second}, contents[3])
}

func TestInsertedContentIsReadBack(t *testing.T) {
	t.Parallel()

	doc, page := fixtureDoc(t, "q Q\n")
	_, err := appendPageContents(doc, page, []byte("BT (tail) Tj ET\n"))
	require.NoError(t, err)

	full, err := page.Contents()
	require.NoError(t, err)
	require.Contains(t, string(full), "q Q")
	require.Contains(t, string(full), "(tail) Tj")
}
