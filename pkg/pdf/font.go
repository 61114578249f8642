package pdf

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/gomonobolditalic"
	"golang.org/x/image/font/gofont/gomonoitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// SimpleEncoding selects the single-byte encoding for simple fonts.
type SimpleEncoding int

const (
	EncodingLatin SimpleEncoding = iota
	EncodingGreek
	EncodingCyrillic
)

// standardFonts lists the base-14 fonts with their descender values in
// 1000-unit glyph space.
var standardFonts = []struct {
	Name      string
	Descender float64
}{
	{"Courier", -194},
	{"Courier-Oblique", -194},
	{"Courier-Bold", -194},
	{"Courier-BoldOblique", -194},
	{"Helvetica", -207},
	{"Helvetica-Oblique", -207},
	{"Helvetica-Bold", -207},
	{"Helvetica-BoldOblique", -207},
	{"Times-Roman", -219},
	{"Times-Italic", -217},
	{"Times-Bold", -218},
	{"Times-BoldItalic", -222},
	{"Symbol", -293},
	{"ZapfDingbats", -143},
}

// IsStandardFont reports whether family is one of the base-14 fonts.
func IsStandardFont(family string) bool {
	for _, f := range standardFonts {
		if f.Name == family {
			return true
		}
	}
	return false
}

// StandardFontDescender returns the descender-to-baseline distance for a
// base-14 font at the given size, in points.
func StandardFontDescender(family string, size float64) (float64, bool) {
	for _, f := range standardFonts {
		if f.Name == family {
			return math.Abs(f.Descender / 1000.0 * size), true
		}
	}
	return 0, false
}

// fontCache holds parsed font programs shared across documents. Access
// goes through the engine font lock.
type fontCache struct {
	faces   map[string]*truetype.Font
	metrics map[string]*sfnt.Font
}

func newFontCache() *fontCache {
	return &fontCache{
		faces:   make(map[string]*truetype.Font),
		metrics: make(map[string]*sfnt.Font),
	}
}

// builtinSubstitute maps base-14 and common aliases onto the bundled Go
// font families used for rasterization.
func builtinSubstitute(family string) []byte {
	name := strings.ToLower(family)
	mono := strings.Contains(name, "courier") || strings.Contains(name, "mono")
	bold := strings.Contains(name, "bold")
	italic := strings.Contains(name, "italic") || strings.Contains(name, "oblique")

	switch {
	case mono && bold && italic:
		return gomonobolditalic.TTF
	case mono && bold:
		return gomonobold.TTF
	case mono && italic:
		return gomonoitalic.TTF
	case mono:
		return gomono.TTF
	case bold && italic:
		return gobolditalic.TTF
	case bold:
		return gobold.TTF
	case italic:
		return goitalic.TTF
	default:
		return goregular.TTF
	}
}

// BuiltinFont returns a rasterization substitute for the named family,
// backed by the bundled Go fonts. The result is cached on the engine.
func (e *Engine) BuiltinFont(family string) (*truetype.Font, error) {
	key := "builtin:" + family
	e.lock(lockFonts)
	defer e.unlock(lockFonts)

	if f, ok := e.fonts.faces[key]; ok {
		return f, nil
	}
	f, err := truetype.Parse(builtinSubstitute(family))
	if err != nil {
		return nil, fmt.Errorf("parsing builtin font for %q: %w", family, err)
	}
	e.fonts.faces[key] = f
	return f, nil
}

// FontFromFile loads and caches a TrueType font program from disk.
func (e *Engine) FontFromFile(path string) (*truetype.Font, error) {
	e.lock(lockFonts)
	defer e.unlock(lockFonts)

	if f, ok := e.fonts.faces[path]; ok {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font: %w", err)
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	e.fonts.faces[path] = f
	return f, nil
}

// FontFromData parses a TrueType font program held in memory.
func (e *Engine) FontFromData(data []byte) (*truetype.Font, error) {
	return truetype.Parse(data)
}

// DescenderToBaseline computes the distance from the baseline to the
// lowest descender of the font at path, in points at the given size.
func (e *Engine) DescenderToBaseline(path string, size float64) (float64, error) {
	e.lock(lockFonts)
	sf, ok := e.fonts.metrics[path]
	e.unlock(lockFonts)

	if !ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return 0, fmt.Errorf("failed to read font: %w", err)
		}
		sf, err = sfnt.Parse(data)
		if err != nil {
			return 0, fmt.Errorf("failed to parse font: %w", err)
		}
		e.lock(lockFonts)
		e.fonts.metrics[path] = sf
		e.unlock(lockFonts)
	}

	var buf sfnt.Buffer
	metrics, err := sf.Metrics(&buf, fixed.Int26_6(size*64), font.HintingNone)
	if err != nil {
		return 0, fmt.Errorf("failed to get metrics: %w", err)
	}
	return math.Abs(float64(metrics.Descent) / 64.0), nil
}

// fontFileCandidates expands a family name into plausible file names.
func fontFileCandidates(family string) []string {
	exts := []string{".ttf", ".otf"}
	transforms := []func(string) string{
		func(s string) string { return strings.ReplaceAll(s, " ", "_") },
		func(s string) string { return strings.ReplaceAll(s, " ", "-") },
		func(s string) string { return strings.ReplaceAll(s, " ", "") },
	}

	unique := make(map[string]struct{})
	for _, transform := range transforms {
		for _, ext := range exts {
			unique[transform(family)+ext] = struct{}{}
		}
	}
	candidates := make([]string, 0, len(unique))
	for key := range unique {
		candidates = append(candidates, key)
	}
	return candidates
}

// FindFontFile searches the usual font directories for a file matching
// the family name.
func FindFontFile(family string) (string, error) {
	candidates := fontFileCandidates(family)
	dirs := []string{
		"/usr/share/fonts",
		"~/.fonts",
		"/System/Library/Fonts",
		"/Library/Fonts",
		"~/Library/Fonts",
		"fonts",
	}

	for _, dir := range dirs {
		if strings.HasPrefix(dir, "~/") {
			dir = filepath.Join(os.Getenv("HOME"), dir[2:])
		}
		var path string
		err := filepath.WalkDir(dir, func(f string, d os.DirEntry, e error) error {
			if e != nil || d.IsDir() {
				return e
			}
			for _, candidate := range candidates {
				if filepath.Base(f) == candidate {
					path = f
					return filepath.SkipDir
				}
			}
			return nil
		})
		if err != nil && err != filepath.SkipDir {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		if path != "" {
			return path, nil
		}
	}
	return "", fmt.Errorf("font %q not found", family)
}

// EmbedSimpleFont adds a font object usable from page content with
// single-byte text strings and returns a reference to it. Base-14
// families embed as Type1 references; anything else is searched on disk
// and embedded as a TrueType program.
func (d *Document) EmbedSimpleFont(family string, enc SimpleEncoding) (Reference, error) {
	if IsStandardFont(family) {
		dict := Dictionary{
			"Type":     Name("Font"),
			"Subtype":  Name("Type1"),
			"BaseFont": Name(family),
		}
		// Symbolic fonts carry their built-in encodings.
		if family != "Symbol" && family != "ZapfDingbats" {
			dict["Encoding"] = encodingName(enc)
		}
		return d.AddObject(dict), nil
	}

	path, err := FindFontFile(family)
	if err != nil {
		return Reference{}, err
	}
	return d.embedTrueTypeFont(family, path, enc)
}

// encodingName maps the simple encoding enum onto a PDF encoding name.
// Greek and Cyrillic text travels in WinAnsi-compatible code points in
// this pipeline, so all three share the WinAnsi base encoding.
func encodingName(enc SimpleEncoding) Name {
	switch enc {
	case EncodingLatin, EncodingGreek, EncodingCyrillic:
		return Name("WinAnsiEncoding")
	default:
		return Name("WinAnsiEncoding")
	}
}

func (d *Document) embedTrueTypeFont(family, path string, enc SimpleEncoding) (Reference, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Reference{}, fmt.Errorf("failed to read font: %w", err)
	}
	parsed, err := truetype.Parse(raw)
	if err != nil {
		return Reference{}, fmt.Errorf("failed to parse font: %w", err)
	}

	fupe := fixed.Int26_6(parsed.FUnitsPerEm())
	scale := 1000.0 / float64(fupe)

	widths := make(Array, 0, 95)
	for r := rune(32); r <= 126; r++ {
		idx := parsed.Index(r)
		hm := parsed.HMetric(fupe, idx)
		widths = append(widths, Integer(int(float64(hm.AdvanceWidth)*scale)))
	}

	bounds := parsed.Bounds(fupe)
	bbox := Array{
		Integer(int(float64(bounds.Min.X) * scale)),
		Integer(int(float64(bounds.Min.Y) * scale)),
		Integer(int(float64(bounds.Max.X) * scale)),
		Integer(int(float64(bounds.Max.Y) * scale)),
	}

	compressed := flateEncode(raw)
	fileRef := d.AddObject(Stream{
		Dictionary: Dictionary{
			"Filter":  Name("FlateDecode"),
			"Length":  Integer(len(compressed)),
			"Length1": Integer(len(raw)),
		},
		Data: compressed,
	})

	baseName := Name(strings.ReplaceAll(family, " ", ""))
	descriptorRef := d.AddObject(Dictionary{
		"Type":        Name("FontDescriptor"),
		"FontName":    baseName,
		"Flags":       Integer(32),
		"FontBBox":    bbox,
		"ItalicAngle": Integer(0),
		"Ascent":      bbox[3],
		"Descent":     bbox[1],
		"CapHeight":   bbox[3],
		"StemV":       Integer(80),
		"FontFile2":   fileRef,
	})

	return d.AddObject(Dictionary{
		"Type":           Name("Font"),
		"Subtype":        Name("TrueType"),
		"BaseFont":       baseName,
		"FirstChar":      Integer(32),
		"LastChar":       Integer(126),
		"Widths":         widths,
		"Encoding":       encodingName(enc),
		"FontDescriptor": descriptorRef,
	}), nil
}

// fontForDict resolves a rasterization font for a page font dictionary:
// embedded TrueType programs are parsed directly, everything else falls
// back to a builtin substitute for the BaseFont family.
func (d *Document) fontForDict(fontDict Dictionary) (*truetype.Font, error) {
	if descRef := fontDict.Get("FontDescriptor"); descRef != nil {
		descObj, err := d.ResolveObject(descRef)
		if err == nil {
			if desc, ok := descObj.(Dictionary); ok {
				if fileRef := desc.Get("FontFile2"); fileRef != nil {
					fileObj, err := d.ResolveObject(fileRef)
					if err == nil {
						if stream, ok := fileObj.(Stream); ok {
							if data, err := stream.Decode(); err == nil {
								if f, err := truetype.Parse(data); err == nil {
									return f, nil
								}
							}
						}
					}
				}
			}
		}
	}

	family := "Helvetica"
	if baseFont, ok := fontDict.GetName("BaseFont"); ok {
		family = string(baseFont)
		// Strip subset prefixes like ABCDEF+.
		if idx := strings.IndexByte(family, '+'); idx == 6 {
			family = family[7:]
		}
	}
	return d.ctx.engine.BuiltinFont(family)
}
