package pdf

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
)

// RasterOptions controls page rasterization.
type RasterOptions struct {
	// Scale maps user-space points to output pixels.
	Scale float64
	// Rotation is an extra clockwise rotation in right angles (0, 90,
	// 180, 270) applied on top of the page /Rotate value.
	Rotation int
}

// graphicsState is the interpreter state saved and restored by q/Q.
type graphicsState struct {
	ctm         Matrix
	strokeColor color.RGBA
	fillColor   color.RGBA
	lineWidth   float64
}

// textState tracks the BT/ET text object state.
type textState struct {
	font       *truetype.Font
	fontDict   Dictionary
	size       float64
	tm         Matrix
	lineMatrix Matrix
	leading    float64
	charSpace  float64
	wordSpace  float64
	rise       float64
	horizScale float64
}

// renderer interprets page content onto an RGBA canvas.
type renderer struct {
	ctx       *Context
	doc       *Document
	img       *image.RGBA
	state     graphicsState
	stack     []graphicsState
	text      textState
	path      [][]Point
	current   []Point
	resources Dictionary
	opCount   int
}

// abortCheckInterval is how many operators run between cookie checks.
const abortCheckInterval = 64

// RenderPage rasterizes a page to an RGBA image with a white background.
func (d *Document) RenderPage(pageNum int, opts RasterOptions) (*image.RGBA, error) {
	page, err := d.LoadPage(pageNum)
	if err != nil {
		return nil, err
	}
	return d.RenderLoadedPage(page, opts)
}

// RenderLoadedPage rasterizes an already loaded page.
func (d *Document) RenderLoadedPage(page *Page, opts RasterOptions) (*image.RGBA, error) {
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

	// Device matrix: move the crop origin to 0,0, rotate, shift the
	// rotated box back to the origin, scale, then flip to y-down.
	ctm := Translate(-cropBox.X0, -cropBox.Y0).Mul(Rotate(float64(rotation)))
	bounds := ctm.TransformRect(Rect{X0: cropBox.X0, Y0: cropBox.Y0, X1: cropBox.X1, Y1: cropBox.Y1})
	ctm = ctm.Mul(Translate(-bounds.X0, -bounds.Y0)).Mul(Scale(opts.Scale, opts.Scale))

	pixW := int(math.Ceil(bounds.Width() * opts.Scale))
	pixH := int(math.Ceil(bounds.Height() * opts.Scale))
	if pixW < 1 {
		pixW = 1
	}
	if pixH < 1 {
		pixH = 1
	}
	ctm = ctm.Mul(Scale(1, -1)).Mul(Translate(0, float64(pixH)))

	img := image.NewRGBA(image.Rect(0, 0, pixW, pixH))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	contents, err := page.Contents()
	if err != nil {
		return nil, err
	}
	if len(contents) == 0 {
		return img, nil
	}

	resources, err := page.Resources()
	if err != nil {
		return nil, err
	}

	r := &renderer{
		ctx: d.ctx,
		doc: d,
		img: img,
		state: graphicsState{
			ctm:       ctm,
			fillColor: color.RGBA{0, 0, 0, 255},
			lineWidth: 1,
		},
		text:      textState{horizScale: 1},
		resources: resources,
	}
	r.state.strokeColor = color.RGBA{0, 0, 0, 255}

	if err := r.run(contents); err != nil {
		return nil, err
	}
	return img, nil
}

// RenderPagePNG rasterizes a page and encodes it as PNG.
func (d *Document) RenderPagePNG(pageNum int, opts RasterOptions) ([]byte, error) {
	img, err := d.RenderPage(pageNum, opts)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NormalizeRotation clamps a rotation value to a right angle in
// [0, 360). Arbitrary values round to the nearest right angle.
func NormalizeRotation(rotation int) int {
	for rotation < 0 {
		rotation += 360
	}
	rotation %= 360
	rotation = 90 * ((rotation + 45) / 90)
	if rotation >= 360 {
		rotation = 0
	}
	return rotation
}

func (r *renderer) run(contents []byte) error {
	ops, err := NewContentStreamParser(stripInlineImages(contents)).ParseOperations()
	if err != nil {
		return fmt.Errorf("parsing content stream: %w", err)
	}
	return r.execute(ops)
}

func (r *renderer) execute(ops []Operation) error {
	for _, op := range ops {
		r.opCount++
		if r.opCount%abortCheckInterval == 0 && r.ctx.Aborted() {
			return ErrAborted
		}
		if err := r.executeOp(op); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) executeOp(op Operation) error {
	switch op.Operator {
	case "q":
		r.stack = append(r.stack, r.state)
	case "Q":
		if n := len(r.stack); n > 0 {
			r.state = r.stack[n-1]
			r.stack = r.stack[:n-1]
		}
	case "cm":
		if m, ok := matrixOperands(op.Operands); ok {
			r.state.ctm = m.Mul(r.state.ctm)
		}
	case "w":
		if v, ok := floatOperand(op.Operands, 0); ok {
			r.state.lineWidth = v
		}

	case "g":
		if v, ok := floatOperand(op.Operands, 0); ok {
			r.state.fillColor = grayColor(v)
		}
	case "G":
		if v, ok := floatOperand(op.Operands, 0); ok {
			r.state.strokeColor = grayColor(v)
		}
	case "rg":
		r.state.fillColor = rgbColor(op.Operands)
	case "RG":
		r.state.strokeColor = rgbColor(op.Operands)
	case "k":
		r.state.fillColor = cmykColor(op.Operands)
	case "K":
		r.state.strokeColor = cmykColor(op.Operands)
	case "sc", "scn":
		if c, ok := componentColor(op.Operands); ok {
			r.state.fillColor = c
		}
	case "SC", "SCN":
		if c, ok := componentColor(op.Operands); ok {
			r.state.strokeColor = c
		}

	case "re":
		if len(op.Operands) >= 4 {
			x, _ := toFloat(op.Operands[0])
			y, _ := toFloat(op.Operands[1])
			w, _ := toFloat(op.Operands[2])
			h, _ := toFloat(op.Operands[3])
			r.closeSubpath()
			r.current = []Point{{x, y}, {x + w, y}, {x + w, y + h}, {x, y + h}, {x, y}}
			r.closeSubpath()
		}
	case "m":
		if len(op.Operands) >= 2 {
			x, _ := toFloat(op.Operands[0])
			y, _ := toFloat(op.Operands[1])
			r.closeSubpath()
			r.current = []Point{{x, y}}
		}
	case "l":
		if len(op.Operands) >= 2 && len(r.current) > 0 {
			x, _ := toFloat(op.Operands[0])
			y, _ := toFloat(op.Operands[1])
			r.current = append(r.current, Point{x, y})
		}
	case "c", "v", "y":
		r.appendCurve(op)
	case "h":
		if len(r.current) > 1 {
			r.current = append(r.current, r.current[0])
		}

	case "f", "F", "f*":
		r.fillPath(op.Operator == "f*")
		r.clearPath()
	case "B", "B*":
		r.fillPath(op.Operator == "B*")
		r.strokePath()
		r.clearPath()
	case "b", "b*":
		if len(r.current) > 1 {
			r.current = append(r.current, r.current[0])
		}
		r.fillPath(op.Operator == "b*")
		r.strokePath()
		r.clearPath()
	case "s":
		if len(r.current) > 1 {
			r.current = append(r.current, r.current[0])
		}
		r.strokePath()
		r.clearPath()
	case "S":
		r.strokePath()
		r.clearPath()
	case "n":
		r.clearPath()
	case "W", "W*":
		// Clipping is not applied.

	case "BT":
		r.text.tm = Identity()
		r.text.lineMatrix = Identity()
	case "ET":
	case "Tf":
		return r.setTextFont(op.Operands)
	case "Td":
		if len(op.Operands) >= 2 {
			tx, _ := toFloat(op.Operands[0])
			ty, _ := toFloat(op.Operands[1])
			r.text.lineMatrix = Translate(tx, ty).Mul(r.text.lineMatrix)
			r.text.tm = r.text.lineMatrix
		}
	case "TD":
		if len(op.Operands) >= 2 {
			tx, _ := toFloat(op.Operands[0])
			ty, _ := toFloat(op.Operands[1])
			r.text.leading = -ty
			r.text.lineMatrix = Translate(tx, ty).Mul(r.text.lineMatrix)
			r.text.tm = r.text.lineMatrix
		}
	case "Tm":
		if m, ok := matrixOperands(op.Operands); ok {
			r.text.tm = m
			r.text.lineMatrix = m
		}
	case "T*":
		r.text.lineMatrix = Translate(0, -r.text.leading).Mul(r.text.lineMatrix)
		r.text.tm = r.text.lineMatrix
	case "TL":
		if v, ok := floatOperand(op.Operands, 0); ok {
			r.text.leading = v
		}
	case "Tc":
		if v, ok := floatOperand(op.Operands, 0); ok {
			r.text.charSpace = v
		}
	case "Tw":
		if v, ok := floatOperand(op.Operands, 0); ok {
			r.text.wordSpace = v
		}
	case "Ts":
		if v, ok := floatOperand(op.Operands, 0); ok {
			r.text.rise = v
		}
	case "Tz":
		if v, ok := floatOperand(op.Operands, 0); ok {
			r.text.horizScale = v / 100
		}
	case "Tj":
		if len(op.Operands) >= 1 {
			if s, ok := op.Operands[0].(String); ok {
				return r.showText(s.Value)
			}
		}
	case "'":
		r.text.lineMatrix = Translate(0, -r.text.leading).Mul(r.text.lineMatrix)
		r.text.tm = r.text.lineMatrix
		if len(op.Operands) >= 1 {
			if s, ok := op.Operands[0].(String); ok {
				return r.showText(s.Value)
			}
		}
	case "\"":
		if len(op.Operands) >= 3 {
			if v, ok := toFloat(op.Operands[0]); ok {
				r.text.wordSpace = v
			}
			if v, ok := toFloat(op.Operands[1]); ok {
				r.text.charSpace = v
			}
			r.text.lineMatrix = Translate(0, -r.text.leading).Mul(r.text.lineMatrix)
			r.text.tm = r.text.lineMatrix
			if s, ok := op.Operands[2].(String); ok {
				return r.showText(s.Value)
			}
		}
	case "TJ":
		if len(op.Operands) >= 1 {
			if arr, ok := op.Operands[0].(Array); ok {
				for _, item := range arr {
					switch v := item.(type) {
					case String:
						if err := r.showText(v.Value); err != nil {
							return err
						}
					case Integer:
						r.adjustTextPosition(float64(v))
					case Real:
						r.adjustTextPosition(float64(v))
					}
				}
			}
		}

	case "Do":
		if len(op.Operands) >= 1 {
			if name, ok := op.Operands[0].(Name); ok {
				return r.drawXObject(name)
			}
		}
	}
	return nil
}

func (r *renderer) closeSubpath() {
	if len(r.current) > 1 {
		r.path = append(r.path, r.current)
	}
	r.current = nil
}

func (r *renderer) clearPath() {
	r.path = nil
	r.current = nil
}

// appendCurve flattens a cubic bezier into line segments.
func (r *renderer) appendCurve(op Operation) {
	if len(r.current) == 0 {
		return
	}
	p0 := r.current[len(r.current)-1]

	var p1, p2, p3 Point
	switch op.Operator {
	case "c":
		if len(op.Operands) < 6 {
			return
		}
		p1 = operandPoint(op.Operands, 0)
		p2 = operandPoint(op.Operands, 2)
		p3 = operandPoint(op.Operands, 4)
	case "v":
		if len(op.Operands) < 4 {
			return
		}
		p1 = p0
		p2 = operandPoint(op.Operands, 0)
		p3 = operandPoint(op.Operands, 2)
	case "y":
		if len(op.Operands) < 4 {
			return
		}
		p1 = operandPoint(op.Operands, 0)
		p3 = operandPoint(op.Operands, 2)
		p2 = p3
	}

	const steps = 16
	for i := 1; i <= steps; i++ {
		t := float64(i) / steps
		u := 1 - t
		x := u*u*u*p0.X + 3*u*u*t*p1.X + 3*u*t*t*p2.X + t*t*t*p3.X
		y := u*u*u*p0.Y + 3*u*u*t*p1.Y + 3*u*t*t*p2.Y + t*t*t*p3.Y
		r.current = append(r.current, Point{x, y})
	}
}

// fillPath scanline-fills the current path in device space.
func (r *renderer) fillPath(evenOdd bool) {
	r.closeSubpath()
	if len(r.path) == 0 {
		return
	}

	type edge struct {
		x0, y0, x1, y1 float64
	}
	var edges []edge
	minY, maxY := math.Inf(1), math.Inf(-1)

	for _, subpath := range r.path {
		devPts := make([]Point, len(subpath))
		for i, p := range subpath {
			devPts[i] = r.state.ctm.TransformPoint(p)
		}
		// Implicit close for filling.
		if devPts[0] != devPts[len(devPts)-1] {
			devPts = append(devPts, devPts[0])
		}
		for i := 0; i+1 < len(devPts); i++ {
			a, b := devPts[i], devPts[i+1]
			if a.Y == b.Y {
				continue
			}
			edges = append(edges, edge{a.X, a.Y, b.X, b.Y})
			minY = math.Min(minY, math.Min(a.Y, b.Y))
			maxY = math.Max(maxY, math.Max(a.Y, b.Y))
		}
	}
	if len(edges) == 0 {
		return
	}

	yStart := int(math.Max(0, math.Floor(minY)))
	yEnd := int(math.Min(float64(r.img.Bounds().Dy()-1), math.Ceil(maxY)))

	type crossing struct {
		x   float64
		dir int
	}
	for y := yStart; y <= yEnd; y++ {
		scanY := float64(y) + 0.5
		var crossings []crossing
		for _, e := range edges {
			y0, y1 := e.y0, e.y1
			if (scanY < y0 && scanY < y1) || (scanY >= y0 && scanY >= y1) {
				continue
			}
			t := (scanY - y0) / (y1 - y0)
			x := e.x0 + t*(e.x1-e.x0)
			dir := 1
			if y1 < y0 {
				dir = -1
			}
			crossings = append(crossings, crossing{x, dir})
		}
		if len(crossings) < 2 {
			continue
		}
		// Insertion sort; crossing counts per scanline are tiny.
		for i := 1; i < len(crossings); i++ {
			for j := i; j > 0 && crossings[j].x < crossings[j-1].x; j-- {
				crossings[j], crossings[j-1] = crossings[j-1], crossings[j]
			}
		}

		winding := 0
		crossCount := 0
		for i := 0; i < len(crossings)-1; i++ {
			winding += crossings[i].dir
			crossCount++
			inside := winding != 0
			if evenOdd {
				inside = crossCount%2 == 1
			}
			if !inside {
				continue
			}
			x0 := int(math.Ceil(crossings[i].x - 0.5))
			x1 := int(math.Floor(crossings[i+1].x - 0.5))
			for x := x0; x <= x1; x++ {
				r.setPixel(x, y, r.state.fillColor)
			}
		}
	}
}

// strokePath draws the current path outline with the current line width.
func (r *renderer) strokePath() {
	r.closeSubpath()
	halfWidth := r.state.lineWidth / 2
	if halfWidth <= 0 {
		halfWidth = 0.5 / r.deviceScale()
	}

	for _, subpath := range r.path {
		for i := 0; i+1 < len(subpath); i++ {
			r.strokeSegment(subpath[i], subpath[i+1], halfWidth)
		}
	}
}

// strokeSegment fills the quad covering a line segment of the given half
// width, all in user space then transformed.
func (r *renderer) strokeSegment(a, b Point, halfWidth float64) {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	// Perpendicular offset.
	nx, ny := -dy/length*halfWidth, dx/length*halfWidth

	quad := []Point{
		{a.X + nx, a.Y + ny},
		{b.X + nx, b.Y + ny},
		{b.X - nx, b.Y - ny},
		{a.X - nx, a.Y - ny},
		{a.X + nx, a.Y + ny},
	}

	saved := r.path
	savedCurrent := r.current
	savedFill := r.state.fillColor
	r.path = [][]Point{quad}
	r.current = nil
	r.state.fillColor = r.state.strokeColor
	r.fillPath(false)
	r.path = saved
	r.current = savedCurrent
	r.state.fillColor = savedFill
}

func (r *renderer) setPixel(x, y int, c color.RGBA) {
	if !(image.Point{x, y}).In(r.img.Bounds()) {
		return
	}
	r.img.SetRGBA(x, y, c)
}

// deviceScale approximates the user-to-device scale factor of the CTM.
func (r *renderer) deviceScale() float64 {
	m := r.state.ctm
	sx := math.Hypot(m.A, m.B)
	sy := math.Hypot(m.C, m.D)
	scale := (sx + sy) / 2
	if scale <= 0 {
		return 1
	}
	return scale
}

func (r *renderer) setTextFont(operands []Object) error {
	if len(operands) < 2 {
		return nil
	}
	name, ok := operands[0].(Name)
	if !ok {
		return nil
	}
	if size, ok := toFloat(operands[1]); ok {
		r.text.size = size
	}

	fontDict := r.lookupResource("Font", string(name))
	if fontDict == nil {
		f, err := r.doc.ctx.engine.BuiltinFont("Helvetica")
		if err != nil {
			return err
		}
		r.text.font = f
		r.text.fontDict = nil
		return nil
	}

	f, err := r.doc.fontForDict(fontDict)
	if err != nil {
		return err
	}
	r.text.font = f
	r.text.fontDict = fontDict
	return nil
}

// lookupResource resolves a named entry from a resource sub-dictionary.
func (r *renderer) lookupResource(category, name string) Dictionary {
	if r.resources == nil {
		return nil
	}
	catObj, err := r.doc.ResolveObject(r.resources.Get(category))
	if err != nil {
		return nil
	}
	cat, ok := catObj.(Dictionary)
	if !ok {
		return nil
	}
	entryObj, err := r.doc.ResolveObject(cat.Get(name))
	if err != nil {
		return nil
	}
	switch v := entryObj.(type) {
	case Dictionary:
		return v
	case Stream:
		return v.Dictionary
	}
	return nil
}

// lookupResourceStream resolves a named stream from a resource
// sub-dictionary.
func (r *renderer) lookupResourceStream(category, name string) (Stream, bool) {
	if r.resources == nil {
		return Stream{}, false
	}
	catObj, err := r.doc.ResolveObject(r.resources.Get(category))
	if err != nil {
		return Stream{}, false
	}
	cat, ok := catObj.(Dictionary)
	if !ok {
		return Stream{}, false
	}
	entryObj, err := r.doc.ResolveObject(cat.Get(name))
	if err != nil {
		return Stream{}, false
	}
	stream, ok := entryObj.(Stream)
	return stream, ok
}

// adjustTextPosition applies a TJ spacing adjustment in thousandths of
// text space units.
func (r *renderer) adjustTextPosition(amount float64) {
	tx := -amount / 1000 * r.text.size * r.text.horizScale
	r.text.tm = Translate(tx, 0).Mul(r.text.tm)
}

// showText draws a single-byte encoded string at the current text
// position and advances the text matrix.
func (r *renderer) showText(data []byte) error {
	if r.text.font == nil {
		f, err := r.doc.ctx.engine.BuiltinFont("Helvetica")
		if err != nil {
			return err
		}
		r.text.font = f
	}
	if r.text.size <= 0 {
		return nil
	}

	trm := r.text.tm.Mul(r.state.ctm)
	origin := trm.TransformPoint(Point{0, r.text.rise})
	scale := r.deviceTextScale(trm)
	devSize := r.text.size * scale
	if devSize <= 0 {
		return nil
	}

	text := decodeWinAnsi(data)

	c := freetype.NewContext()
	c.SetDPI(72)
	c.SetFont(r.text.font)
	c.SetFontSize(devSize)
	c.SetClip(r.img.Bounds())
	c.SetDst(r.img)
	c.SetSrc(image.NewUniform(r.state.fillColor))
	if _, err := c.DrawString(text, freetype.Pt(int(origin.X+0.5), int(origin.Y+0.5))); err != nil {
		return fmt.Errorf("drawing text: %w", err)
	}

	// Advance the text matrix by the string width in text space.
	face := truetype.NewFace(r.text.font, &truetype.Options{Size: r.text.size, DPI: 72})
	defer face.Close()
	advance := float64(font.MeasureString(face, text)) / 64

	advance += float64(len(data)) * r.text.charSpace
	advance += float64(bytes.Count(data, []byte{' '})) * r.text.wordSpace
	advance *= r.text.horizScale

	r.text.tm = Translate(advance, 0).Mul(r.text.tm)
	return nil
}

// deviceTextScale measures the device magnification of the text
// rendering matrix.
func (r *renderer) deviceTextScale(trm Matrix) float64 {
	sx := math.Hypot(trm.A, trm.B)
	sy := math.Hypot(trm.C, trm.D)
	return (sx + sy) / 2
}

// drawXObject executes an image or form XObject.
func (r *renderer) drawXObject(name Name) error {
	stream, ok := r.lookupResourceStream("XObject", string(name))
	if !ok {
		return nil
	}

	subtype, _ := stream.Dictionary.GetName("Subtype")
	switch subtype {
	case "Image":
		return r.drawImage(stream)
	case "Form":
		return r.drawForm(stream)
	}
	return nil
}

// drawImage maps the unit square through the CTM and samples the image
// through the inverse transform.
func (r *renderer) drawImage(stream Stream) error {
	src, err := r.doc.decodeImageXObject(stream)
	if err != nil {
		// Unsupported image variants leave a blank area rather than
		// failing the whole page.
		r.ctx.countError()
		return nil
	}

	ctm := r.state.ctm
	devBounds := ctm.TransformRect(Rect{X0: 0, Y0: 0, X1: 1, Y1: 1})
	inv := ctm.Invert()

	srcBounds := src.Bounds()
	srcW := float64(srcBounds.Dx())
	srcH := float64(srcBounds.Dy())

	x0 := int(math.Floor(devBounds.X0))
	y0 := int(math.Floor(devBounds.Y0))
	x1 := int(math.Ceil(devBounds.X1))
	y1 := int(math.Ceil(devBounds.Y1))

	imgBounds := r.img.Bounds()
	for y := y0; y < y1; y++ {
		if y < imgBounds.Min.Y || y >= imgBounds.Max.Y {
			continue
		}
		for x := x0; x < x1; x++ {
			if x < imgBounds.Min.X || x >= imgBounds.Max.X {
				continue
			}
			// Unit square coordinates of this device pixel.
			u := inv.TransformPoint(Point{float64(x) + 0.5, float64(y) + 0.5})
			if u.X < 0 || u.X >= 1 || u.Y < 0 || u.Y >= 1 {
				continue
			}
			// Image space is y-down from the top of the unit square.
			sx := srcBounds.Min.X + int(u.X*srcW)
			sy := srcBounds.Min.Y + int((1-u.Y)*srcH)
			cr, cg, cb, ca := src.At(sx, sy).RGBA()
			if ca == 0 {
				continue
			}
			if ca == 0xffff {
				r.img.SetRGBA(x, y, color.RGBA{byte(cr >> 8), byte(cg >> 8), byte(cb >> 8), 255})
				continue
			}
			// Alpha blend over the destination.
			dst := r.img.RGBAAt(x, y)
			a := float64(ca) / 0xffff
			blend := func(s uint32, d uint8) uint8 {
				return uint8(float64(s>>8)*a + float64(d)*(1-a))
			}
			r.img.SetRGBA(x, y, color.RGBA{
				blend(cr, dst.R), blend(cg, dst.G), blend(cb, dst.B), 255,
			})
		}
	}
	return nil
}

// drawForm executes a form XObject with its own resources and matrix.
func (r *renderer) drawForm(stream Stream) error {
	data, err := stream.Decode()
	if err != nil {
		return err
	}

	savedState := r.state
	savedResources := r.resources

	if matrixObj, ok := stream.Dictionary.GetArray("Matrix"); ok && len(matrixObj) == 6 {
		var vals [6]float64
		for i := 0; i < 6; i++ {
			vals[i], _ = toFloat(matrixObj[i])
		}
		m := Matrix{A: vals[0], B: vals[1], C: vals[2], D: vals[3], E: vals[4], F: vals[5]}
		r.state.ctm = m.Mul(r.state.ctm)
	}
	if resObj, err := r.doc.ResolveObject(stream.Dictionary.Get("Resources")); err == nil {
		if res, ok := resObj.(Dictionary); ok {
			r.resources = res
		}
	}

	err = r.run(data)

	r.state = savedState
	r.resources = savedResources
	return err
}

// stripInlineImages removes BI...EI inline image blocks so the lexer
// never sees raw binary data.
func stripInlineImages(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); {
		if data[i] == 'B' && i+1 < len(data) && data[i+1] == 'I' &&
			(i == 0 || isWhitespace(data[i-1])) &&
			(i+2 >= len(data) || isWhitespace(data[i+2]) || isDelimiter(data[i+2])) {
			end := findInlineImageEnd(data, i+2)
			if end > 0 {
				i = end
				continue
			}
		}
		out = append(out, data[i])
		i++
	}
	return out
}

func findInlineImageEnd(data []byte, from int) int {
	for i := from; i+1 < len(data); i++ {
		if data[i] == 'E' && data[i+1] == 'I' &&
			isWhitespace(data[i-1]) &&
			(i+2 >= len(data) || isWhitespace(data[i+2])) {
			return i + 2
		}
	}
	return -1
}

func matrixOperands(operands []Object) (Matrix, bool) {
	if len(operands) < 6 {
		return Matrix{}, false
	}
	var vals [6]float64
	for i := 0; i < 6; i++ {
		v, ok := toFloat(operands[i])
		if !ok {
			return Matrix{}, false
		}
		vals[i] = v
	}
	return Matrix{A: vals[0], B: vals[1], C: vals[2], D: vals[3], E: vals[4], F: vals[5]}, true
}

func operandPoint(operands []Object, i int) Point {
	x, _ := toFloat(operands[i])
	y, _ := toFloat(operands[i+1])
	return Point{x, y}
}

func floatOperand(operands []Object, i int) (float64, bool) {
	if i >= len(operands) {
		return 0, false
	}
	return toFloat(operands[i])
}

func toFloat(obj Object) (float64, bool) {
	switch v := obj.(type) {
	case Integer:
		return float64(v), true
	case Real:
		return float64(v), true
	}
	return 0, false
}

func clampUnit(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

func grayColor(v float64) color.RGBA {
	g := clampUnit(v)
	return color.RGBA{g, g, g, 255}
}

func rgbColor(operands []Object) color.RGBA {
	if len(operands) < 3 {
		return color.RGBA{0, 0, 0, 255}
	}
	r, _ := toFloat(operands[0])
	g, _ := toFloat(operands[1])
	b, _ := toFloat(operands[2])
	return color.RGBA{clampUnit(r), clampUnit(g), clampUnit(b), 255}
}

func cmykColor(operands []Object) color.RGBA {
	if len(operands) < 4 {
		return color.RGBA{0, 0, 0, 255}
	}
	c, _ := toFloat(operands[0])
	m, _ := toFloat(operands[1])
	y, _ := toFloat(operands[2])
	k, _ := toFloat(operands[3])
	return color.RGBA{
		clampUnit((1 - c) * (1 - k)),
		clampUnit((1 - m) * (1 - k)),
		clampUnit((1 - y) * (1 - k)),
		255,
	}
}

// componentColor maps sc/scn operands onto RGB by component count.
func componentColor(operands []Object) (color.RGBA, bool) {
	var vals []float64
	for _, op := range operands {
		if v, ok := toFloat(op); ok {
			vals = append(vals, v)
		}
	}
	switch len(vals) {
	case 1:
		return grayColor(vals[0]), true
	case 3:
		return color.RGBA{clampUnit(vals[0]), clampUnit(vals[1]), clampUnit(vals[2]), 255}, true
	case 4:
		return cmykColor([]Object{Real(vals[0]), Real(vals[1]), Real(vals[2]), Real(vals[3])}), true
	}
	return color.RGBA{}, false
}

// winAnsiHigh maps the 0x80-0x9F range of WinAnsiEncoding; the rest of
// the table matches Latin-1.
var winAnsiHigh = map[byte]rune{
	0x80: '€', 0x82: '‚', 0x83: 'ƒ', 0x84: '„', 0x85: '…', 0x86: '†',
	0x87: '‡', 0x88: 'ˆ', 0x89: '‰', 0x8a: 'Š', 0x8b: '‹', 0x8c: 'Œ',
	0x8e: 'Ž', 0x91: '‘', 0x92: '’', 0x93: '“', 0x94: '”',
	0x95: '•', 0x96: '–', 0x97: '—', 0x98: '˜', 0x99: '™', 0x9a: 'š',
	0x9b: '›', 0x9c: 'œ', 0x9e: 'ž', 0x9f: 'Ÿ',
}

func decodeWinAnsi(data []byte) string {
	runes := make([]rune, 0, len(data))
	for _, b := range data {
		if r, ok := winAnsiHigh[b]; ok {
			runes = append(runes, r)
			continue
		}
		runes = append(runes, rune(b))
	}
	return string(runes)
}
