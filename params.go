package lazypdf

import (
	"github.com/Nitro/lazypdf/pkg/pdf"
)

const (
	// LandscapeScale is the default scale for landscape pages. They
	// already fill the width of a viewer, so they render smaller.
	LandscapeScale = 1.0
	// PortraitScale is the default scale for portrait pages.
	PortraitScale = 1.5

	defaultDPI = 72
)

// RenderParams selects how a page is rasterized. Width wins over
// Scale; with neither set the page aspect and rotation pick a default.
type RenderParams struct {
	Page  int
	Width int
	Scale float64
	DPI   int
}

// resolveScale turns the request into a single scale factor for the
// page's untransformed bounds.
func resolveScale(page *pdf.Page, params RenderParams) (float64, error) {
	bounds, err := page.MediaBox()
	if err != nil {
		return 0, err
	}
	bounds = bounds.Normalize()

	scale := PortraitScale
	switch {
	case params.Width != 0 && bounds.X1 != 0:
		scale = float64(params.Width) / bounds.X1
	case params.Scale != 0:
		scale = params.Scale
	case bounds.Width() > bounds.Height():
		// Landscape-shaped pages scale down, unless the shape comes
		// from a sideways-rotated portrait page.
		raw, err := page.RawRotation()
		if err != nil {
			return 0, err
		}
		if rot := pdf.NormalizeRotation(raw); rot == 0 || rot == 180 {
			scale = LandscapeScale
		}
	}

	dpi := params.DPI
	if dpi < defaultDPI {
		dpi = defaultDPI
	}
	return scale * (float64(dpi) / defaultDPI), nil
}
