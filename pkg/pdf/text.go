package pdf

import (
	"math"
	"strings"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

// TextSpan is a run of text positioned in device space. Coordinates are
// y-down pixels matching the raster output at the same options.
type TextSpan struct {
	Text     string
	X        float64
	Baseline float64
	Size     float64
	Width    float64
	Font     string
}

// textExtractor walks content stream text operators collecting spans.
type textExtractor struct {
	doc       *Document
	spans     []TextSpan
	state     Matrix
	stack     []Matrix
	text      textState
	fontName  string
	resources Dictionary
}

// ExtractTextSpans collects positioned text runs from a page using the
// same device transform as rasterization.
func (d *Document) ExtractTextSpans(pageNum int, opts RasterOptions) ([]TextSpan, error) {
	page, err := d.LoadPage(pageNum)
	if err != nil {
		return nil, err
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}

	cropBox, err := page.CropBox()
	if err != nil {
		return nil, err
	}
	pageRot, err := page.RawRotation()
	if err != nil {
		return nil, err
	}
	rotation := NormalizeRotation(pageRot + opts.Rotation*90)

	ctm := Translate(-cropBox.X0, -cropBox.Y0).Mul(Rotate(float64(rotation)))
	bounds := ctm.TransformRect(Rect{X0: cropBox.X0, Y0: cropBox.Y0, X1: cropBox.X1, Y1: cropBox.Y1})
	ctm = ctm.Mul(Translate(-bounds.X0, -bounds.Y0)).Mul(Scale(opts.Scale, opts.Scale))
	pixH := bounds.Height() * opts.Scale
	ctm = ctm.Mul(Scale(1, -1)).Mul(Translate(0, pixH))

	contents, err := page.Contents()
	if err != nil {
		return nil, err
	}
	resources, err := page.Resources()
	if err != nil {
		return nil, err
	}

	x := &textExtractor{
		doc:       d,
		state:     ctm,
		text:      textState{horizScale: 1},
		resources: resources,
	}
	if err := x.run(contents); err != nil {
		return nil, err
	}
	return x.spans, nil
}

func (x *textExtractor) run(contents []byte) error {
	ops, err := NewContentStreamParser(stripInlineImages(contents)).ParseOperations()
	if err != nil {
		return err
	}
	for _, op := range ops {
		if err := x.executeOp(op); err != nil {
			return err
		}
		if x.doc.ctx.Aborted() {
			return ErrAborted
		}
	}
	return nil
}

func (x *textExtractor) executeOp(op Operation) error {
	switch op.Operator {
	case "q":
		x.stack = append(x.stack, x.state)
	case "Q":
		if n := len(x.stack); n > 0 {
			x.state = x.stack[n-1]
			x.stack = x.stack[:n-1]
		}
	case "cm":
		if m, ok := matrixOperands(op.Operands); ok {
			x.state = m.Mul(x.state)
		}
	case "BT":
		x.text.tm = Identity()
		x.text.lineMatrix = Identity()
	case "Tf":
		x.setFont(op.Operands)
	case "Td":
		if len(op.Operands) >= 2 {
			tx, _ := toFloat(op.Operands[0])
			ty, _ := toFloat(op.Operands[1])
			x.text.lineMatrix = Translate(tx, ty).Mul(x.text.lineMatrix)
			x.text.tm = x.text.lineMatrix
		}
	case "TD":
		if len(op.Operands) >= 2 {
			tx, _ := toFloat(op.Operands[0])
			ty, _ := toFloat(op.Operands[1])
			x.text.leading = -ty
			x.text.lineMatrix = Translate(tx, ty).Mul(x.text.lineMatrix)
			x.text.tm = x.text.lineMatrix
		}
	case "Tm":
		if m, ok := matrixOperands(op.Operands); ok {
			x.text.tm = m
			x.text.lineMatrix = m
		}
	case "T*":
		x.text.lineMatrix = Translate(0, -x.text.leading).Mul(x.text.lineMatrix)
		x.text.tm = x.text.lineMatrix
	case "TL":
		if v, ok := floatOperand(op.Operands, 0); ok {
			x.text.leading = v
		}
	case "Tc":
		if v, ok := floatOperand(op.Operands, 0); ok {
			x.text.charSpace = v
		}
	case "Tw":
		if v, ok := floatOperand(op.Operands, 0); ok {
			x.text.wordSpace = v
		}
	case "Tz":
		if v, ok := floatOperand(op.Operands, 0); ok {
			x.text.horizScale = v / 100
		}
	case "Ts":
		if v, ok := floatOperand(op.Operands, 0); ok {
			x.text.rise = v
		}
	case "Tj":
		if len(op.Operands) >= 1 {
			if s, ok := op.Operands[0].(String); ok {
				x.emit(s.Value)
			}
		}
	case "'":
		x.text.lineMatrix = Translate(0, -x.text.leading).Mul(x.text.lineMatrix)
		x.text.tm = x.text.lineMatrix
		if len(op.Operands) >= 1 {
			if s, ok := op.Operands[0].(String); ok {
				x.emit(s.Value)
			}
		}
	case "\"":
		if len(op.Operands) >= 3 {
			x.text.lineMatrix = Translate(0, -x.text.leading).Mul(x.text.lineMatrix)
			x.text.tm = x.text.lineMatrix
			if s, ok := op.Operands[2].(String); ok {
				x.emit(s.Value)
			}
		}
	case "TJ":
		if len(op.Operands) >= 1 {
			if arr, ok := op.Operands[0].(Array); ok {
				for _, item := range arr {
					switch v := item.(type) {
					case String:
						x.emit(v.Value)
					case Integer:
						x.adjust(float64(v))
					case Real:
						x.adjust(float64(v))
					}
				}
			}
		}
	case "Do":
		// Form XObjects may hold text too.
		if len(op.Operands) >= 1 {
			if name, ok := op.Operands[0].(Name); ok {
				return x.runForm(name)
			}
		}
	}
	return nil
}

func (x *textExtractor) setFont(operands []Object) {
	if len(operands) < 2 {
		return
	}
	name, ok := operands[0].(Name)
	if !ok {
		return
	}
	if size, ok := toFloat(operands[1]); ok {
		x.text.size = size
	}

	x.fontName = "Helvetica"
	if x.resources == nil {
		return
	}
	fontsObj, err := x.doc.ResolveObject(x.resources.Get("Font"))
	if err != nil {
		return
	}
	fonts, ok := fontsObj.(Dictionary)
	if !ok {
		return
	}
	fontObj, err := x.doc.ResolveObject(fonts.Get(string(name)))
	if err != nil {
		return
	}
	fontDict, ok := fontObj.(Dictionary)
	if !ok {
		return
	}
	if baseFont, ok := fontDict.GetName("BaseFont"); ok {
		family := string(baseFont)
		if idx := strings.IndexByte(family, '+'); idx == 6 {
			family = family[7:]
		}
		x.fontName = family
	}
	f, err := x.doc.fontForDict(fontDict)
	if err == nil {
		x.text.font = f
	}
}

func (x *textExtractor) adjust(amount float64) {
	tx := -amount / 1000 * x.text.size * x.text.horizScale
	x.text.tm = Translate(tx, 0).Mul(x.text.tm)
}

func (x *textExtractor) emit(data []byte) {
	if len(data) == 0 || x.text.size <= 0 {
		return
	}
	if x.text.font == nil {
		f, err := x.doc.ctx.engine.BuiltinFont(x.fontName)
		if err != nil {
			return
		}
		x.text.font = f
	}

	trm := x.text.tm.Mul(x.state)
	origin := trm.TransformPoint(Point{0, x.text.rise})
	sx := (math.Hypot(trm.A, trm.B) + math.Hypot(trm.C, trm.D)) / 2
	devSize := x.text.size * sx
	if devSize <= 0 {
		return
	}

	text := decodeWinAnsi(data)

	face := truetype.NewFace(x.text.font, &truetype.Options{Size: x.text.size, DPI: 72})
	advance := float64(font.MeasureString(face, text)) / 64
	face.Close()

	advance += float64(len(data)) * x.text.charSpace
	advance += float64(countSpaces(data)) * x.text.wordSpace
	advance *= x.text.horizScale

	x.spans = append(x.spans, TextSpan{
		Text:     text,
		X:        origin.X,
		Baseline: origin.Y,
		Size:     devSize,
		Width:    advance * sx,
		Font:     x.fontName,
	})

	x.text.tm = Translate(advance, 0).Mul(x.text.tm)
}

func (x *textExtractor) runForm(name Name) error {
	if x.resources == nil {
		return nil
	}
	xobjsObj, err := x.doc.ResolveObject(x.resources.Get("XObject"))
	if err != nil {
		return nil
	}
	xobjs, ok := xobjsObj.(Dictionary)
	if !ok {
		return nil
	}
	streamObj, err := x.doc.ResolveObject(xobjs.Get(string(name)))
	if err != nil {
		return nil
	}
	stream, ok := streamObj.(Stream)
	if !ok {
		return nil
	}
	if subtype, _ := stream.Dictionary.GetName("Subtype"); subtype != "Form" {
		return nil
	}

	data, err := stream.Decode()
	if err != nil {
		return nil
	}

	savedState := x.state
	savedResources := x.resources
	if matrixObj, ok := stream.Dictionary.GetArray("Matrix"); ok && len(matrixObj) == 6 {
		if m, ok := matrixOperands([]Object(matrixObj)); ok {
			x.state = m.Mul(x.state)
		}
	}
	if resObj, err := x.doc.ResolveObject(stream.Dictionary.Get("Resources")); err == nil {
		if res, ok := resObj.(Dictionary); ok {
			x.resources = res
		}
	}

	err = x.run(data)
	x.state = savedState
	x.resources = savedResources
	return err
}

func countSpaces(data []byte) int {
	n := 0
	for _, b := range data {
		if b == ' ' {
			n++
		}
	}
	return n
}
