package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
)

// ErrPageTreeCycle is returned when the page tree contains a reference
// cycle.
var ErrPageTreeCycle = errors.New("pdf: cycle in page tree")

// Document represents a parsed PDF document. A document keeps the raw
// file bytes and loads indirect objects on demand; loaded and newly
// created objects live in the objects map and shadow the file.
type Document struct {
	ctx     *Context
	data    []byte
	Version string
	Trailer Dictionary

	xref      map[int]xrefEntry
	objects   map[int]Object
	maxObjNum int
	pageCount int
}

// xrefEntry locates an indirect object in the file.
type xrefEntry struct {
	Offset     int64
	Generation int
	InUse      bool
	// Set for objects stored in object streams.
	StreamObjNum int
	Index        int
}

// Page is a single page loaded from the page tree. Pages are loaded per
// operation and not cached; the dictionary is shared with the document
// object table, so mutations through it persist.
type Page struct {
	doc        *Document
	Dictionary Dictionary
	Number     int
	Ref        Reference
}

// Open reads and parses a PDF file.
func Open(ctx *Context, filename string) (*Document, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return NewDocument(ctx, data)
}

// NewDocument parses a PDF document from memory.
func NewDocument(ctx *Context, data []byte) (*Document, error) {
	doc := &Document{
		ctx:       ctx,
		data:      data,
		xref:      make(map[int]xrefEntry),
		objects:   make(map[int]Object),
		pageCount: -1,
	}
	ctx.track(int64(len(data)))

	if err := doc.parse(); err != nil {
		ctx.release(int64(len(data)))
		return nil, err
	}
	return doc, nil
}

// WithContext returns a shallow copy of the document bound to ctx,
// usually one carrying a fresh cookie. The copy shares parsed objects
// with the original, so operations on the two must not overlap.
func (d *Document) WithContext(ctx *Context) *Document {
	clone := *d
	clone.ctx = ctx
	return &clone
}

// Close releases the document buffers.
func (d *Document) Close() error {
	if d.data != nil {
		d.ctx.release(int64(len(d.data)))
	}
	d.data = nil
	d.objects = nil
	d.xref = nil
	return nil
}

func (d *Document) parse() error {
	if !bytes.HasPrefix(d.data, []byte("%PDF-")) {
		return fmt.Errorf("not a PDF file")
	}

	idx := bytes.IndexAny(d.data, "\r\n")
	if idx > 5 {
		d.Version = string(d.data[5:idx])
	}

	startxref, err := d.findStartXRef()
	if err != nil {
		return err
	}
	if err := d.parseXRef(startxref, make(map[int64]bool)); err != nil {
		return err
	}

	if d.Trailer.Get("Root") == nil {
		return fmt.Errorf("missing Root in trailer")
	}

	for num := range d.xref {
		if num > d.maxObjNum {
			d.maxObjNum = num
		}
	}
	if size, ok := d.Trailer.GetInt("Size"); ok && int(size)-1 > d.maxObjNum {
		d.maxObjNum = int(size) - 1
	}
	return nil
}

// findStartXRef locates the startxref offset near the end of the file.
func (d *Document) findStartXRef() (int64, error) {
	searchLen := 1024
	if len(d.data) < searchLen {
		searchLen = len(d.data)
	}

	tail := d.data[len(d.data)-searchLen:]
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, fmt.Errorf("startxref not found")
	}

	start := idx + len("startxref")
	for start < len(tail) && isWhitespace(tail[start]) {
		start++
	}
	end := start
	for end < len(tail) && tail[end] >= '0' && tail[end] <= '9' {
		end++
	}

	offset, err := strconv.ParseInt(string(tail[start:end]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid startxref offset")
	}
	return offset, nil
}

// parseXRef dispatches between classic tables and xref streams, following
// Prev chains. The seen set breaks offset loops in damaged files.
func (d *Document) parseXRef(offset int64, seen map[int64]bool) error {
	if seen[offset] {
		return nil
	}
	seen[offset] = true

	if offset < 0 || offset >= int64(len(d.data)) {
		return fmt.Errorf("xref offset %d out of range", offset)
	}

	pos := offset
	for pos < int64(len(d.data)) && isWhitespace(d.data[pos]) {
		pos++
	}

	if bytes.HasPrefix(d.data[pos:], []byte("xref")) {
		return d.parseXRefTable(pos, seen)
	}
	return d.parseXRefStream(pos, seen)
}

func (d *Document) parseXRefTable(offset int64, seen map[int64]bool) error {
	lexer := NewLexerFromBytes(d.data[offset:])
	lexer.ReadLine() // xref keyword

	for {
		line, err := lexer.ReadLine()
		if err != nil {
			return err
		}

		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 {
			continue
		}
		if bytes.Equal(trimmed, []byte("trailer")) {
			break
		}

		parts := bytes.Fields(trimmed)
		if len(parts) != 2 {
			return fmt.Errorf("malformed xref subsection header %q", trimmed)
		}
		start, err := strconv.Atoi(string(parts[0]))
		if err != nil {
			return fmt.Errorf("malformed xref subsection header %q", trimmed)
		}
		count, err := strconv.Atoi(string(parts[1]))
		if err != nil {
			return fmt.Errorf("malformed xref subsection header %q", trimmed)
		}

		for i := 0; i < count; i++ {
			entryLine, err := lexer.ReadLine()
			if err != nil {
				return err
			}
			fields := bytes.Fields(entryLine)
			if len(fields) < 3 {
				return fmt.Errorf("malformed xref entry %q", entryLine)
			}

			entryOffset, _ := strconv.ParseInt(string(fields[0]), 10, 64)
			gen, _ := strconv.Atoi(string(fields[1]))
			inUse := fields[2][0] == 'n'

			objNum := start + i
			// Newer sections come first; keep the first entry seen.
			if _, exists := d.xref[objNum]; !exists {
				d.xref[objNum] = xrefEntry{
					Offset:     entryOffset,
					Generation: gen,
					InUse:      inUse,
				}
			}
		}
	}

	parser := NewParser(lexer)
	trailerObj, err := parser.ParseObject()
	if err != nil {
		return err
	}
	trailer, ok := trailerObj.(Dictionary)
	if !ok {
		return fmt.Errorf("trailer is not a dictionary")
	}
	d.mergeTrailer(trailer)

	// A hybrid file points at an xref stream holding compressed entries.
	if xrefStm, ok := trailer.GetInt("XRefStm"); ok {
		if err := d.parseXRef(xrefStm, seen); err != nil {
			return err
		}
	}

	if prev, ok := trailer.GetInt("Prev"); ok {
		return d.parseXRef(prev, seen)
	}
	return nil
}

func (d *Document) parseXRefStream(offset int64, seen map[int64]bool) error {
	parser := NewParserFromBytes(d.data[offset:])
	_, _, obj, err := parser.ParseIndirectObject()
	if err != nil {
		return err
	}

	stream, ok := obj.(Stream)
	if !ok {
		return fmt.Errorf("xref stream expected at offset %d", offset)
	}
	data, err := stream.Decode()
	if err != nil {
		return err
	}

	wArray, ok := stream.Dictionary.GetArray("W")
	if !ok || len(wArray) != 3 {
		return fmt.Errorf("invalid xref stream W array")
	}
	var w [3]int
	for i, obj := range wArray {
		if n, ok := obj.(Integer); ok {
			w[i] = int(n)
		}
	}

	var indices []int
	if indexArray, ok := stream.Dictionary.GetArray("Index"); ok {
		for _, obj := range indexArray {
			if n, ok := obj.(Integer); ok {
				indices = append(indices, int(n))
			}
		}
	} else if size, ok := stream.Dictionary.GetInt("Size"); ok {
		indices = []int{0, int(size)}
	}

	entrySize := w[0] + w[1] + w[2]
	pos := 0
	for i := 0; i+1 < len(indices); i += 2 {
		start, count := indices[i], indices[i+1]
		for j := 0; j < count; j++ {
			if pos+entrySize > len(data) {
				break
			}
			entry := data[pos : pos+entrySize]
			pos += entrySize

			field1 := readXRefField(entry, 0, w[0])
			field2 := readXRefField(entry, w[0], w[1])
			field3 := readXRefField(entry, w[0]+w[1], w[2])

			entryType := field1
			if w[0] == 0 {
				entryType = 1
			}

			objNum := start + j
			if _, exists := d.xref[objNum]; exists {
				continue
			}
			switch entryType {
			case 0:
				d.xref[objNum] = xrefEntry{InUse: false}
			case 1:
				d.xref[objNum] = xrefEntry{
					Offset:     int64(field2),
					Generation: field3,
					InUse:      true,
				}
			case 2:
				d.xref[objNum] = xrefEntry{
					StreamObjNum: field2,
					Index:        field3,
					InUse:        true,
				}
			}
		}
	}

	d.mergeTrailer(stream.Dictionary)

	if prev, ok := stream.Dictionary.GetInt("Prev"); ok {
		return d.parseXRef(prev, seen)
	}
	return nil
}

// mergeTrailer keeps the newest value for each trailer key across
// incremental updates.
func (d *Document) mergeTrailer(trailer Dictionary) {
	if d.Trailer == nil {
		d.Trailer = make(Dictionary)
	}
	for k, v := range trailer {
		if _, exists := d.Trailer[k]; !exists {
			d.Trailer[k] = v
		}
	}
}

func readXRefField(data []byte, offset, width int) int {
	result := 0
	for i := 0; i < width; i++ {
		result = result<<8 | int(data[offset+i])
	}
	return result
}

// ResolveObject follows a reference to its target; non-references pass
// through unchanged.
func (d *Document) ResolveObject(obj Object) (Object, error) {
	ref, ok := obj.(Reference)
	if !ok {
		return obj, nil
	}
	return d.GetObject(ref.ObjectNumber)
}

// GetObject loads an indirect object by number. Missing and free objects
// resolve to null.
func (d *Document) GetObject(objNum int) (Object, error) {
	if obj, ok := d.objects[objNum]; ok {
		return obj, nil
	}

	entry, ok := d.xref[objNum]
	if !ok || !entry.InUse {
		return Null{}, nil
	}

	var obj Object
	var err error
	if entry.StreamObjNum > 0 {
		obj, err = d.getCompressedObject(entry.StreamObjNum, entry.Index)
	} else {
		obj, err = d.getUncompressedObject(entry.Offset)
	}
	if err != nil {
		d.ctx.countError()
		return nil, err
	}

	d.objects[objNum] = obj
	return obj, nil
}

// SetObject installs or replaces an indirect object.
func (d *Document) SetObject(objNum int, obj Object) {
	d.objects[objNum] = obj
	if objNum > d.maxObjNum {
		d.maxObjNum = objNum
	}
}

// NextObjectNumber reserves and returns a fresh object number.
func (d *Document) NextObjectNumber() int {
	d.maxObjNum++
	return d.maxObjNum
}

// AddObject installs an object under a fresh number and returns a
// reference to it.
func (d *Document) AddObject(obj Object) Reference {
	num := d.NextObjectNumber()
	d.objects[num] = obj
	return Reference{ObjectNumber: num}
}

// AddStream installs a new stream object with the given dictionary and
// raw data. Length is set from the data.
func (d *Document) AddStream(dict Dictionary, data []byte) Reference {
	if dict == nil {
		dict = make(Dictionary)
	}
	dict["Length"] = Integer(len(data))
	return d.AddObject(Stream{Dictionary: dict, Data: data})
}

func (d *Document) getUncompressedObject(offset int64) (Object, error) {
	if offset < 0 || offset >= int64(len(d.data)) {
		return nil, fmt.Errorf("object offset %d out of range", offset)
	}
	parser := NewParserFromBytes(d.data[offset:])
	_, _, obj, err := parser.ParseIndirectObject()
	return obj, err
}

func (d *Document) getCompressedObject(streamObjNum, index int) (Object, error) {
	streamObj, err := d.GetObject(streamObjNum)
	if err != nil {
		return nil, err
	}
	stream, ok := streamObj.(Stream)
	if !ok {
		return nil, fmt.Errorf("object stream %d is not a stream", streamObjNum)
	}

	data, err := stream.Decode()
	if err != nil {
		return nil, err
	}

	first, ok := stream.Dictionary.GetInt("First")
	if !ok {
		return nil, fmt.Errorf("object stream missing First")
	}
	n, ok := stream.Dictionary.GetInt("N")
	if !ok {
		return nil, fmt.Errorf("object stream missing N")
	}

	headerParser := NewParserFromBytes(data[:first])
	offsets := make([]int64, n)
	for i := int64(0); i < n; i++ {
		if _, err := headerParser.ParseObject(); err != nil {
			return nil, err
		}
		offsetObj, err := headerParser.ParseObject()
		if err != nil {
			return nil, err
		}
		if off, ok := offsetObj.(Integer); ok {
			offsets[i] = int64(off)
		}
	}

	if index < 0 || index >= len(offsets) {
		return nil, fmt.Errorf("object index %d out of range", index)
	}
	objOffset := first + offsets[index]
	if objOffset < 0 || objOffset > int64(len(data)) {
		return nil, fmt.Errorf("compressed object offset out of range")
	}
	return NewParserFromBytes(data[objOffset:]).ParseObject()
}

// Catalog returns the document catalog dictionary.
func (d *Document) Catalog() (Dictionary, error) {
	rootObj, err := d.ResolveObject(d.Trailer.Get("Root"))
	if err != nil {
		return nil, err
	}
	root, ok := rootObj.(Dictionary)
	if !ok {
		return nil, fmt.Errorf("Root is not a dictionary")
	}
	return root, nil
}

// PageCount returns the number of pages, counting leaves of the page
// tree. The count is computed once and memoized.
func (d *Document) PageCount() (int, error) {
	if d.pageCount >= 0 {
		return d.pageCount, nil
	}

	root, err := d.pageTreeRoot()
	if err != nil {
		return 0, err
	}
	count, err := d.countPagesNode(root, make(map[int]bool))
	if err != nil {
		return 0, err
	}
	d.pageCount = count
	return count, nil
}

func (d *Document) pageTreeRoot() (Dictionary, error) {
	catalog, err := d.Catalog()
	if err != nil {
		return nil, err
	}
	pagesObj, err := d.ResolveObject(catalog.Get("Pages"))
	if err != nil {
		return nil, err
	}
	pages, ok := pagesObj.(Dictionary)
	if !ok {
		return nil, fmt.Errorf("missing Pages in catalog")
	}
	return pages, nil
}

func (d *Document) countPagesNode(node Dictionary, visited map[int]bool) (int, error) {
	nodeType, _ := node.GetName("Type")
	if nodeType == "Page" {
		return 1, nil
	}

	kidsObj, err := d.ResolveObject(node.Get("Kids"))
	if err != nil {
		return 0, err
	}
	kids, ok := kidsObj.(Array)
	if !ok {
		return 0, nil
	}

	total := 0
	for _, kidRef := range kids {
		if ref, ok := kidRef.(Reference); ok {
			if visited[ref.ObjectNumber] {
				return 0, ErrPageTreeCycle
			}
			visited[ref.ObjectNumber] = true
		}
		kidObj, err := d.ResolveObject(kidRef)
		if err != nil {
			return 0, err
		}
		kid, ok := kidObj.(Dictionary)
		if !ok {
			continue
		}
		n, err := d.countPagesNode(kid, visited)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

// LoadPage walks the page tree and loads the page with the given
// 1-based number. Pages are not cached; each call walks the tree.
func (d *Document) LoadPage(num int) (*Page, error) {
	if num < 1 {
		return nil, fmt.Errorf("page %d out of range", num)
	}

	root, err := d.pageTreeRoot()
	if err != nil {
		return nil, err
	}

	remaining := num
	ref, dict, err := d.findPageNode(root, Reference{}, &remaining, make(map[int]bool))
	if err != nil {
		return nil, err
	}
	if dict == nil {
		return nil, fmt.Errorf("page %d out of range", num)
	}
	return &Page{doc: d, Dictionary: dict, Number: num, Ref: ref}, nil
}

func (d *Document) findPageNode(node Dictionary, ref Reference, remaining *int, visited map[int]bool) (Reference, Dictionary, error) {
	nodeType, _ := node.GetName("Type")
	if nodeType == "Page" {
		*remaining--
		if *remaining == 0 {
			return ref, node, nil
		}
		return Reference{}, nil, nil
	}

	kidsObj, err := d.ResolveObject(node.Get("Kids"))
	if err != nil {
		return Reference{}, nil, err
	}
	kids, ok := kidsObj.(Array)
	if !ok {
		return Reference{}, nil, nil
	}

	for _, kidRef := range kids {
		childRef := Reference{}
		if r, ok := kidRef.(Reference); ok {
			if visited[r.ObjectNumber] {
				return Reference{}, nil, ErrPageTreeCycle
			}
			visited[r.ObjectNumber] = true
			childRef = r
		}
		kidObj, err := d.ResolveObject(kidRef)
		if err != nil {
			return Reference{}, nil, err
		}
		kid, ok := kidObj.(Dictionary)
		if !ok {
			continue
		}

		// Skip whole subtrees using the Count hint when it cannot
		// contain the target.
		if t, _ := kid.GetName("Type"); t == "Pages" {
			if count, ok := kid.GetInt("Count"); ok && int(count) < *remaining {
				*remaining -= int(count)
				continue
			}
		}

		foundRef, found, err := d.findPageNode(kid, childRef, remaining, visited)
		if err != nil {
			return Reference{}, nil, err
		}
		if found != nil {
			return foundRef, found, nil
		}
	}
	return Reference{}, nil, nil
}

// InheritedAttr resolves a page attribute, walking Parent links for
// inheritable keys. Cycles in the parent chain return ErrPageTreeCycle.
func (p *Page) InheritedAttr(key string) (Object, error) {
	node := p.Dictionary
	visited := map[int]bool{}
	if p.Ref.ObjectNumber != 0 {
		visited[p.Ref.ObjectNumber] = true
	}

	for node != nil {
		if obj := node.Get(key); obj != nil {
			return p.doc.ResolveObject(obj)
		}

		parentRef := node.Get("Parent")
		if parentRef == nil {
			return nil, nil
		}
		if ref, ok := parentRef.(Reference); ok {
			if visited[ref.ObjectNumber] {
				return nil, ErrPageTreeCycle
			}
			visited[ref.ObjectNumber] = true
		}
		parentObj, err := p.doc.ResolveObject(parentRef)
		if err != nil {
			return nil, err
		}
		parent, ok := parentObj.(Dictionary)
		if !ok {
			return nil, nil
		}
		node = parent
	}
	return nil, nil
}

// MediaBox returns the page media box.
func (p *Page) MediaBox() (Rect, error) {
	obj, err := p.InheritedAttr("MediaBox")
	if err != nil {
		return Rect{}, err
	}
	arr, ok := obj.(Array)
	if !ok || len(arr) < 4 {
		// Letter size fallback for files that omit MediaBox.
		return Rect{X0: 0, Y0: 0, X1: 612, Y1: 792}, nil
	}
	return p.resolveRect(arr)
}

// CropBox returns the page crop box, defaulting to the media box.
func (p *Page) CropBox() (Rect, error) {
	obj, err := p.InheritedAttr("CropBox")
	if err != nil {
		return Rect{}, err
	}
	arr, ok := obj.(Array)
	if !ok || len(arr) < 4 {
		return p.MediaBox()
	}
	return p.resolveRect(arr)
}

func (p *Page) resolveRect(arr Array) (Rect, error) {
	var vals [4]float64
	for i := 0; i < 4; i++ {
		obj, err := p.doc.ResolveObject(arr[i])
		if err != nil {
			return Rect{}, err
		}
		switch v := obj.(type) {
		case Integer:
			vals[i] = float64(v)
		case Real:
			vals[i] = float64(v)
		}
	}
	return Rect{X0: vals[0], Y0: vals[1], X1: vals[2], Y1: vals[3]}.Normalize(), nil
}

// RawRotation returns the page Rotate value exactly as stored, without
// normalization. Missing values are 0.
func (p *Page) RawRotation() (int, error) {
	obj, err := p.InheritedAttr("Rotate")
	if err != nil {
		return 0, err
	}
	if n, ok := obj.(Integer); ok {
		return int(n), nil
	}
	return 0, nil
}

// Resources returns the page resource dictionary, possibly inherited.
func (p *Page) Resources() (Dictionary, error) {
	obj, err := p.InheritedAttr("Resources")
	if err != nil {
		return nil, err
	}
	if dict, ok := obj.(Dictionary); ok {
		return dict, nil
	}
	return nil, nil
}

// Contents returns the decoded page content, concatenating content
// stream arrays with newline separators.
func (p *Page) Contents() ([]byte, error) {
	contentsObj, err := p.doc.ResolveObject(p.Dictionary.Get("Contents"))
	if err != nil {
		return nil, err
	}

	switch contents := contentsObj.(type) {
	case nil, Null:
		return nil, nil
	case Stream:
		return contents.Decode()
	case Array:
		var buf bytes.Buffer
		for _, ref := range contents {
			streamObj, err := p.doc.ResolveObject(ref)
			if err != nil {
				return nil, err
			}
			stream, ok := streamObj.(Stream)
			if !ok {
				continue
			}
			data, err := stream.Decode()
			if err != nil {
				return nil, err
			}
			buf.Write(data)
			buf.WriteByte('\n')
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("invalid Contents type")
}
