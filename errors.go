package lazypdf

import "errors"

var (
	// ErrBadPage is returned when the requested page does not exist in
	// the document.
	ErrBadPage = errors.New("invalid page number")

	// ErrRasterTimeout is returned when rendering a page took longer
	// than RasterTimeout.
	ErrRasterTimeout = errors.New("rasterizer timed out!")

	// ErrTextTooLong is returned when a text box exceeds the maximum
	// allowed length.
	ErrTextTooLong = errors.New("text exceeds maximum allowed size")

	// ErrUnknownEncoding is returned for encoding names other than
	// Latin, Greek and Cyrillic.
	ErrUnknownEncoding = errors.New("unknown text encoding")

	// ErrBadRotation is returned when a page carries a rotation that
	// does not normalize to a right angle.
	ErrBadRotation = errors.New("unsupported page rotation")
)

// IsBadPage tells whether err is a bad page number error.
func IsBadPage(err error) bool {
	return errors.Is(err, ErrBadPage)
}

// IsRasterTimeout tells whether err is a rasterization timeout.
func IsRasterTimeout(err error) bool {
	return errors.Is(err, ErrRasterTimeout)
}
