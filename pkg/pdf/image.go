package pdf

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"

	_ "image/gif"
	_ "image/png"
)

// EmbedImageFile reads an image file and installs it as an image XObject,
// returning a reference to the new stream. JPEG data is embedded as-is
// under DCTDecode; other formats are decoded and re-encoded as flate RGB
// with an optional soft mask for transparency.
func (d *Document) EmbedImageFile(path string) (Reference, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Reference{}, fmt.Errorf("failed to read image: %w", err)
	}
	return d.EmbedImageData(data)
}

// EmbedImageData installs image bytes as an image XObject.
func (d *Document) EmbedImageData(data []byte) (Reference, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Reference{}, fmt.Errorf("unsupported image data: %w", err)
	}

	if format == "jpeg" {
		return d.embedJPEG(data, cfg), nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Reference{}, fmt.Errorf("decoding image: %w", err)
	}
	return d.EmbedImage(img)
}

func (d *Document) embedJPEG(data []byte, cfg image.Config) Reference {
	colorSpace := Name("DeviceRGB")
	if cfg.ColorModel == color.GrayModel || cfg.ColorModel == color.Gray16Model {
		colorSpace = Name("DeviceGray")
	}
	return d.AddObject(Stream{
		Dictionary: Dictionary{
			"Type":             Name("XObject"),
			"Subtype":          Name("Image"),
			"Width":            Integer(cfg.Width),
			"Height":           Integer(cfg.Height),
			"ColorSpace":       colorSpace,
			"BitsPerComponent": Integer(8),
			"Filter":           Name("DCTDecode"),
			"Length":           Integer(len(data)),
		},
		Data: data,
	})
}

// EmbedImage installs a decoded image as a flate-compressed RGB XObject.
// Images with transparency get an SMask alpha channel.
func (d *Document) EmbedImage(img image.Image) (Reference, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return Reference{}, fmt.Errorf("empty image")
	}

	rgb := make([]byte, 0, w*h*3)
	alpha := make([]byte, 0, w*h)
	hasAlpha := false

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			if a > 0 && a < 0xffff {
				// Un-premultiply.
				r = r * 0xffff / a
				g = g * 0xffff / a
				b = b * 0xffff / a
			}
			rgb = append(rgb, byte(r>>8), byte(g>>8), byte(b>>8))
			alpha = append(alpha, byte(a>>8))
			if a < 0xffff {
				hasAlpha = true
			}
		}
	}

	dict := Dictionary{
		"Type":             Name("XObject"),
		"Subtype":          Name("Image"),
		"Width":            Integer(w),
		"Height":           Integer(h),
		"ColorSpace":       Name("DeviceRGB"),
		"BitsPerComponent": Integer(8),
		"Filter":           Name("FlateDecode"),
	}

	if hasAlpha {
		maskData := flateEncode(alpha)
		maskRef := d.AddObject(Stream{
			Dictionary: Dictionary{
				"Type":             Name("XObject"),
				"Subtype":          Name("Image"),
				"Width":            Integer(w),
				"Height":           Integer(h),
				"ColorSpace":       Name("DeviceGray"),
				"BitsPerComponent": Integer(8),
				"Filter":           Name("FlateDecode"),
				"Length":           Integer(len(maskData)),
			},
			Data: maskData,
		})
		dict["SMask"] = maskRef
	}

	data := flateEncode(rgb)
	dict["Length"] = Integer(len(data))
	return d.AddObject(Stream{Dictionary: dict, Data: data}), nil
}

// decodeImageXObject turns an image XObject stream back into a Go image
// for rasterization. Unsupported variants return an error.
func (d *Document) decodeImageXObject(stream Stream) (image.Image, error) {
	filter, _ := stream.Dictionary.GetName("Filter")
	if filter == "DCTDecode" {
		return jpeg.Decode(bytes.NewReader(stream.Data))
	}
	if filter == "JPXDecode" {
		return nil, fmt.Errorf("JPX images not supported")
	}

	data, err := stream.Decode()
	if err != nil {
		return nil, err
	}

	width, _ := stream.Dictionary.GetInt("Width")
	height, _ := stream.Dictionary.GetInt("Height")
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image dimensions")
	}
	w, h := int(width), int(height)

	bpc, ok := stream.Dictionary.GetInt("BitsPerComponent")
	if !ok {
		bpc = 8
	}
	colorSpaceObj, err := d.ResolveObject(stream.Dictionary.Get("ColorSpace"))
	if err != nil {
		return nil, err
	}
	colorSpace, _ := colorSpaceObj.(Name)

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	switch {
	case colorSpace == "DeviceRGB" && bpc == 8:
		if len(data) < w*h*3 {
			return nil, fmt.Errorf("truncated image data")
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := (y*w + x) * 3
				img.SetRGBA(x, y, color.RGBA{data[i], data[i+1], data[i+2], 255})
			}
		}
	case colorSpace == "DeviceGray" && bpc == 8:
		if len(data) < w*h {
			return nil, fmt.Errorf("truncated image data")
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				v := data[y*w+x]
				img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
			}
		}
	case colorSpace == "DeviceGray" && bpc == 1:
		stride := (w + 7) / 8
		if len(data) < stride*h {
			return nil, fmt.Errorf("truncated image data")
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				bit := data[y*stride+x/8] >> (7 - uint(x%8)) & 1
				v := byte(0)
				if bit == 1 {
					v = 255
				}
				img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
			}
		}
	default:
		return nil, fmt.Errorf("unsupported image: colorspace %s, %d bpc", colorSpace, bpc)
	}

	// Apply soft mask alpha if present.
	if maskRef := stream.Dictionary.Get("SMask"); maskRef != nil {
		maskObj, err := d.ResolveObject(maskRef)
		if err == nil {
			if maskStream, ok := maskObj.(Stream); ok {
				d.applySoftMask(img, maskStream, w, h)
			}
		}
	}

	return img, nil
}

func (d *Document) applySoftMask(img *image.RGBA, mask Stream, w, h int) {
	maskW, _ := mask.Dictionary.GetInt("Width")
	maskH, _ := mask.Dictionary.GetInt("Height")
	if int(maskW) != w || int(maskH) != h {
		return
	}
	data, err := mask.Decode()
	if err != nil || len(data) < w*h {
		return
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i+3] = data[y*w+x]
		}
	}
}
