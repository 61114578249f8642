package pdf

import (
	"bytes"
	"fmt"
	"os"
	"sort"
)

// SaveOptions controls document serialization. The writer always
// produces a full rewrite with a rebuilt classic xref table; incremental
// updates and linearization are not produced.
type SaveOptions struct {
	// Garbage drops objects unreachable from the trailer.
	Garbage bool
	// Compress flate-compresses streams that carry no filter. Streams
	// that are already filtered pass through untouched.
	Compress bool
}

// Save serializes the document to a byte slice.
func (d *Document) Save(opts SaveOptions) ([]byte, error) {
	objNums, err := d.loadAllObjects()
	if err != nil {
		return nil, err
	}

	marked := make(map[int]bool)
	if opts.Garbage {
		d.markReachable(d.Trailer, marked)
	} else {
		for _, num := range objNums {
			marked[num] = true
		}
	}

	var buf bytes.Buffer
	version := d.Version
	if version == "" {
		version = "1.7"
	}
	fmt.Fprintf(&buf, "%%PDF-%s\n", version)
	// Binary marker comment so transfer tools treat the file as binary.
	buf.WriteString("%\xe2\xe3\xcf\xd3\n")

	maxNum := 0
	for num := range marked {
		if num > maxNum {
			maxNum = num
		}
	}

	offsets := make(map[int]int64)
	var ordered []int
	for num := range marked {
		ordered = append(ordered, num)
	}
	sort.Ints(ordered)

	for _, num := range ordered {
		obj, ok := d.objects[num]
		if !ok {
			continue
		}
		offsets[num] = int64(buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n", num)
		if err := writeObject(&buf, obj, opts.Compress); err != nil {
			return nil, err
		}
		buf.WriteString("\nendobj\n")
	}

	xrefOffset := int64(buf.Len())
	buf.WriteString("xref\n")
	fmt.Fprintf(&buf, "0 %d\n", maxNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for num := 1; num <= maxNum; num++ {
		if off, ok := offsets[num]; ok {
			fmt.Fprintf(&buf, "%010d 00000 n \n", off)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}

	trailer := make(Dictionary)
	for k, v := range d.Trailer {
		switch k {
		// Keys that belong to the previous xref, not this one.
		case "Prev", "XRefStm", "Type", "W", "Index", "Filter", "Length", "DecodeParms":
			continue
		}
		trailer[k] = v
	}
	trailer["Size"] = Integer(maxNum + 1)

	buf.WriteString("trailer\n")
	buf.WriteString(trailer.String())
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	return buf.Bytes(), nil
}

// SaveFile serializes the document and writes it to a file.
func (d *Document) SaveFile(filename string, opts SaveOptions) error {
	data, err := d.Save(opts)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}

// loadAllObjects materializes every xref'd object into the object table
// so serialization never touches the original file bytes.
func (d *Document) loadAllObjects() ([]int, error) {
	seen := make(map[int]bool)
	for num := range d.objects {
		seen[num] = true
	}
	for num, entry := range d.xref {
		if !entry.InUse || seen[num] {
			continue
		}
		if _, err := d.GetObject(num); err != nil {
			return nil, fmt.Errorf("loading object %d: %w", num, err)
		}
		seen[num] = true
	}

	var nums []int
	for num := range d.objects {
		if _, isNull := d.objects[num].(Null); isNull {
			continue
		}
		// Object streams and xref streams are containers from the source
		// file; their members are written out individually.
		if stream, ok := d.objects[num].(Stream); ok {
			if t, _ := stream.Dictionary.GetName("Type"); t == "ObjStm" || t == "XRef" {
				continue
			}
		}
		nums = append(nums, num)
	}
	sort.Ints(nums)
	return nums, nil
}

// markReachable walks the object graph from obj marking every referenced
// object number.
func (d *Document) markReachable(obj Object, marked map[int]bool) {
	switch v := obj.(type) {
	case Reference:
		if marked[v.ObjectNumber] {
			return
		}
		marked[v.ObjectNumber] = true
		target, ok := d.objects[v.ObjectNumber]
		if !ok {
			loaded, err := d.GetObject(v.ObjectNumber)
			if err != nil {
				return
			}
			target = loaded
		}
		d.markReachable(target, marked)
	case Array:
		for _, item := range v {
			d.markReachable(item, marked)
		}
	case Dictionary:
		for _, item := range v {
			d.markReachable(item, marked)
		}
	case Stream:
		d.markReachable(v.Dictionary, marked)
	}
}

// writeObject serializes a single object body.
func writeObject(buf *bytes.Buffer, obj Object, compress bool) error {
	stream, ok := obj.(Stream)
	if !ok {
		buf.WriteString(obj.String())
		return nil
	}

	dict := make(Dictionary, len(stream.Dictionary))
	for k, v := range stream.Dictionary {
		dict[k] = v
	}
	data := stream.Data

	if compress && dict.Get("Filter") == nil {
		compressed := flateEncode(data)
		if len(compressed) < len(data) {
			data = compressed
			dict["Filter"] = Name("FlateDecode")
		}
	}
	dict["Length"] = Integer(len(data))

	buf.WriteString(dict.String())
	buf.WriteString("\nstream\n")
	buf.Write(data)
	buf.WriteString("\nendstream")
	return nil
}
