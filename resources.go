package lazypdf

import (
	"fmt"

	"github.com/Nitro/lazypdf/pkg/pdf"
)

// getOrCreateDict fetches the dictionary stored under key in parent,
// creating an empty one when the key is absent. Indirect values are
// resolved first; a present value of any other type is an error rather
// than being silently replaced.
func getOrCreateDict(doc *pdf.Document, parent pdf.Dictionary, key string) (pdf.Dictionary, error) {
	obj := parent.Get(key)
	if obj != nil {
		resolved, err := doc.ResolveObject(obj)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve /%s: %w", key, err)
		}
		if dict, ok := resolved.(pdf.Dictionary); ok {
			return dict, nil
		}
		if _, ok := resolved.(pdf.Null); !ok {
			return nil, fmt.Errorf("/%s is a %v, not a dictionary", key, resolved.Type())
		}
	}

	dict := make(pdf.Dictionary)
	parent[pdf.Name(key)] = dict
	return dict, nil
}

// pageResources returns the page's direct Resources dictionary,
// creating it when missing. Inherited resources are left on the
// ancestor; new entries always land on the page itself.
func pageResources(doc *pdf.Document, page *pdf.Page) (pdf.Dictionary, error) {
	res, err := getOrCreateDict(doc, page.Dictionary, "Resources")
	if err != nil {
		return nil, err
	}
	if page.Ref.ObjectNumber != 0 {
		doc.SetObject(page.Ref.ObjectNumber, page.Dictionary)
	}
	return res, nil
}

// Resource names derive from the referenced object's number, which
// keeps them unique within the document without tracking a counter.
func imageResourceName(objNum int) string { return fmt.Sprintf("Img%d", objNum) }
func fontResourceName(objNum int) string  { return fmt.Sprintf("Font%d", objNum) }

// checkMarkFontName is the resource name used for the ZapfDingbats
// font that draws checkbox marks.
const checkMarkFontName = "ZaDb"
