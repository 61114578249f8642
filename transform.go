package lazypdf

import (
	"fmt"

	"github.com/Nitro/lazypdf/pkg/pdf"
)

// pageGeometry captures the values every page-space transform needs:
// the crop box origin before rotation, the page dimensions after
// rotation, and the normalized rotation itself.
type pageGeometry struct {
	rotation   int
	width      float64
	height     float64
	cropOffset pdf.Point
}

func geometryForPage(page *pdf.Page) (pageGeometry, error) {
	crop, err := page.CropBox()
	if err != nil {
		return pageGeometry{}, fmt.Errorf("failed to read crop box: %w", err)
	}
	crop = crop.Normalize()

	raw, err := page.RawRotation()
	if err != nil {
		return pageGeometry{}, fmt.Errorf("failed to read rotation: %w", err)
	}

	geo := pageGeometry{
		rotation:   pdf.NormalizeRotation(raw),
		width:      crop.Width(),
		height:     crop.Height(),
		cropOffset: pdf.Point{X: crop.X0, Y: crop.Y0},
	}
	// The page box swaps dimensions when the page is rotated sideways.
	if geo.rotation == 90 || geo.rotation == 270 {
		geo.width, geo.height = geo.height, geo.width
	}
	return geo, nil
}

// RectToPageSpace builds the transform that maps the unit square onto
// the given rectangle, expressed in rotated page coordinates with the
// origin at the visible page's lower-left corner. Content drawn inside
// a 0,0,1,1 box under the returned matrix lands exactly on position,
// upright regardless of the page /Rotate value.
func RectToPageSpace(page *pdf.Page, position pdf.Rect) (pdf.Matrix, error) {
	geo, err := geometryForPage(page)
	if err != nil {
		return pdf.Matrix{}, err
	}

	width := position.X1 - position.X0
	height := position.Y1 - position.Y0

	transform := pdf.Rotate(float64(geo.rotation))
	switch geo.rotation {
	case 0:
		transform = transform.Mul(pdf.Scale(width, height))
		transform = transform.Mul(pdf.Translate(position.X0, position.Y0))
	case 90:
		transform = transform.Mul(pdf.Scale(height, width))
		transform = transform.Mul(pdf.Translate(geo.height-position.Y0, position.X0))
	case 180:
		transform = transform.Mul(pdf.Scale(width, height))
		transform = transform.Mul(pdf.Translate(geo.width-position.X0, geo.height-position.Y0))
	case 270:
		transform = transform.Mul(pdf.Scale(height, width))
		transform = transform.Mul(pdf.Translate(position.Y0, geo.width-position.X0))
	default:
		return pdf.Matrix{}, fmt.Errorf("%w: %d", ErrBadRotation, geo.rotation)
	}
	transform = transform.Mul(pdf.Translate(geo.cropOffset.X, geo.cropOffset.Y))
	return transform, nil
}

// PointToPageSpace is RectToPageSpace without the scaling step: it
// positions a point in rotated page coordinates. Used for text, whose
// size comes from the font rather than from the transform.
func PointToPageSpace(page *pdf.Page, position pdf.Point) (pdf.Matrix, error) {
	geo, err := geometryForPage(page)
	if err != nil {
		return pdf.Matrix{}, err
	}

	transform := pdf.Rotate(float64(geo.rotation))
	switch geo.rotation {
	case 0:
		transform = transform.Mul(pdf.Translate(position.X, position.Y))
	case 90:
		transform = transform.Mul(pdf.Translate(geo.height-position.Y, position.X))
	case 180:
		transform = transform.Mul(pdf.Translate(geo.width-position.X, geo.height-position.Y))
	case 270:
		transform = transform.Mul(pdf.Translate(position.Y, geo.width-position.X))
	default:
		return pdf.Matrix{}, fmt.Errorf("%w: %d", ErrBadRotation, geo.rotation)
	}
	transform = transform.Mul(pdf.Translate(geo.cropOffset.X, geo.cropOffset.Y))
	return transform, nil
}
