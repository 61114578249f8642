package pdf

import (
	"bytes"
	"compress/zlib"
	"encoding/ascii85"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// ObjectType represents the type of a PDF object.
type ObjectType int

const (
	ObjNull ObjectType = iota
	ObjBoolean
	ObjInteger
	ObjReal
	ObjString
	ObjName
	ObjArray
	ObjDictionary
	ObjStream
	ObjReference
)

// Object represents a PDF object.
type Object interface {
	Type() ObjectType
	String() string
}

// Null represents a PDF null object.
type Null struct{}

func (n Null) Type() ObjectType { return ObjNull }
func (n Null) String() string   { return "null" }

// Boolean represents a PDF boolean object.
type Boolean bool

func (b Boolean) Type() ObjectType { return ObjBoolean }
func (b Boolean) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Integer represents a PDF integer object.
type Integer int64

func (i Integer) Type() ObjectType { return ObjInteger }
func (i Integer) String() string   { return strconv.FormatInt(int64(i), 10) }

// Real represents a PDF real number object.
type Real float64

func (r Real) Type() ObjectType { return ObjReal }
func (r Real) String() string   { return strconv.FormatFloat(float64(r), 'f', -1, 64) }

// String represents a PDF string object.
type String struct {
	Value []byte
	IsHex bool
}

func (s String) Type() ObjectType { return ObjString }
func (s String) String() string {
	if s.IsHex {
		return fmt.Sprintf("<%X>", s.Value)
	}
	return "(" + escapeString(s.Value) + ")"
}

// escapeString escapes the characters that terminate or alter a literal
// string so the serialized form parses back to the same bytes.
func escapeString(v []byte) string {
	var buf bytes.Buffer
	for _, b := range v {
		switch b {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(b)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		default:
			buf.WriteByte(b)
		}
	}
	return buf.String()
}

// Text returns the string value decoded as text.
func (s String) Text() string {
	if len(s.Value) >= 2 && s.Value[0] == 0xFE && s.Value[1] == 0xFF {
		return decodeUTF16BE(s.Value[2:])
	}
	return string(s.Value)
}

func decodeUTF16BE(b []byte) string {
	var sb strings.Builder
	for i := 0; i+1 < len(b); i += 2 {
		sb.WriteRune(rune(b[i])<<8 | rune(b[i+1]))
	}
	return sb.String()
}

// Name represents a PDF name object.
type Name string

func (n Name) Type() ObjectType { return ObjName }
func (n Name) String() string   { return "/" + string(n) }

// Array represents a PDF array object.
type Array []Object

func (a Array) Type() ObjectType { return ObjArray }
func (a Array) String() string {
	parts := make([]string, 0, len(a))
	for _, obj := range a {
		parts = append(parts, obj.String())
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Dictionary represents a PDF dictionary object.
type Dictionary map[Name]Object

func (d Dictionary) Type() ObjectType { return ObjDictionary }
func (d Dictionary) String() string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, Name(k).String()+" "+d[Name(k)].String())
	}
	return "<<" + strings.Join(parts, " ") + ">>"
}

// Get returns the value for a key, or nil when absent.
func (d Dictionary) Get(key string) Object {
	return d[Name(key)]
}

// GetName returns the name value for a key.
func (d Dictionary) GetName(key string) (Name, bool) {
	if n, ok := d.Get(key).(Name); ok {
		return n, true
	}
	return "", false
}

// GetInt returns the integer value for a key.
func (d Dictionary) GetInt(key string) (int64, bool) {
	switch v := d.Get(key).(type) {
	case Integer:
		return int64(v), true
	case Real:
		return int64(v), true
	}
	return 0, false
}

// GetFloat returns the numeric value for a key as float64.
func (d Dictionary) GetFloat(key string) (float64, bool) {
	switch v := d.Get(key).(type) {
	case Integer:
		return float64(v), true
	case Real:
		return float64(v), true
	}
	return 0, false
}

// GetArray returns the array value for a key.
func (d Dictionary) GetArray(key string) (Array, bool) {
	if a, ok := d.Get(key).(Array); ok {
		return a, true
	}
	return nil, false
}

// GetDict returns the dictionary value for a key.
func (d Dictionary) GetDict(key string) (Dictionary, bool) {
	if dict, ok := d.Get(key).(Dictionary); ok {
		return dict, true
	}
	return nil, false
}

// Stream represents a PDF stream object.
type Stream struct {
	Dictionary Dictionary
	Data       []byte
}

func (s Stream) Type() ObjectType { return ObjStream }
func (s Stream) String() string {
	return s.Dictionary.String() + " stream...endstream"
}

// Decode decodes the stream data based on its filter chain.
func (s Stream) Decode() ([]byte, error) {
	data := s.Data

	filterObj := s.Dictionary.Get("Filter")
	if filterObj == nil {
		return data, nil
	}

	var filters []Name
	switch f := filterObj.(type) {
	case Name:
		filters = []Name{f}
	case Array:
		for _, item := range f {
			if n, ok := item.(Name); ok {
				filters = append(filters, n)
			}
		}
	}

	params, _ := s.Dictionary.GetDict("DecodeParms")

	for _, filter := range filters {
		var err error
		data, err = applyFilter(data, filter, params)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", filter, err)
		}
	}
	return data, nil
}

// applyFilter applies a single decode filter.
func applyFilter(data []byte, filter Name, params Dictionary) ([]byte, error) {
	switch filter {
	case "FlateDecode":
		return flateDecode(data, params)
	case "ASCIIHexDecode":
		return asciiHexDecode(data)
	case "ASCII85Decode":
		return ascii85Decode(data)
	case "RunLengthDecode":
		return runLengthDecode(data)
	case "DCTDecode", "JPXDecode":
		// Compressed image data, consumed as-is by the image path.
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported filter: %s", filter)
	}
}

// flateDecode decompresses zlib/deflate data and reverses any predictor.
func flateDecode(data []byte, params Dictionary) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	if predictor, ok := params.GetInt("Predictor"); ok && predictor > 1 {
		return applyPredictor(decoded, params)
	}
	return decoded, nil
}

// flateEncode compresses data with zlib. Used by the writer and when
// embedding raw image samples.
func flateEncode(data []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(data)
	w.Close()
	return buf.Bytes()
}

// applyPredictor reverses a PNG predictor on decoded data.
func applyPredictor(data []byte, params Dictionary) ([]byte, error) {
	predictor, _ := params.GetInt("Predictor")
	if predictor < 10 {
		// TIFF predictors do not occur in the files we read or produce.
		return data, nil
	}

	columns, ok := params.GetInt("Columns")
	if !ok {
		columns = 1
	}
	colors, ok := params.GetInt("Colors")
	if !ok {
		colors = 1
	}
	bpc, ok := params.GetInt("BitsPerComponent")
	if !ok {
		bpc = 8
	}

	bytesPerPixel := int((colors*bpc + 7) / 8)
	rowBytes := int((columns*colors*bpc + 7) / 8)
	rowWithFilter := rowBytes + 1

	if rowWithFilter <= 1 || len(data)%rowWithFilter != 0 {
		return data, nil
	}

	rows := len(data) / rowWithFilter
	result := make([]byte, rows*rowBytes)
	prevRow := make([]byte, rowBytes)

	for row := 0; row < rows; row++ {
		src := row * rowWithFilter
		dst := row * rowBytes
		filterType := data[src]
		rowData := data[src+1 : src+rowWithFilter]

		switch filterType {
		case 0:
			copy(result[dst:], rowData)
		case 1: // Sub
			for i := 0; i < rowBytes; i++ {
				left := byte(0)
				if i >= bytesPerPixel {
					left = result[dst+i-bytesPerPixel]
				}
				result[dst+i] = rowData[i] + left
			}
		case 2: // Up
			for i := 0; i < rowBytes; i++ {
				result[dst+i] = rowData[i] + prevRow[i]
			}
		case 3: // Average
			for i := 0; i < rowBytes; i++ {
				left := byte(0)
				if i >= bytesPerPixel {
					left = result[dst+i-bytesPerPixel]
				}
				result[dst+i] = rowData[i] + byte((int(left)+int(prevRow[i]))/2)
			}
		case 4: // Paeth
			for i := 0; i < rowBytes; i++ {
				left, upLeft := byte(0), byte(0)
				if i >= bytesPerPixel {
					left = result[dst+i-bytesPerPixel]
					upLeft = prevRow[i-bytesPerPixel]
				}
				result[dst+i] = rowData[i] + paethPredictor(left, prevRow[i], upLeft)
			}
		default:
			copy(result[dst:], rowData)
		}
		copy(prevRow, result[dst:dst+rowBytes])
	}
	return result, nil
}

// paethPredictor implements the Paeth predictor.
func paethPredictor(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))
	if pa <= pb && pa <= pc {
		return a
	} else if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// asciiHexDecode decodes ASCII hex encoded data.
func asciiHexDecode(data []byte) ([]byte, error) {
	var result []byte
	var nibble byte
	var hasNibble bool

	for _, b := range data {
		if b == '>' {
			break
		}
		if isWhitespace(b) {
			continue
		}

		var val byte
		switch {
		case b >= '0' && b <= '9':
			val = b - '0'
		case b >= 'A' && b <= 'F':
			val = b - 'A' + 10
		case b >= 'a' && b <= 'f':
			val = b - 'a' + 10
		default:
			return nil, fmt.Errorf("invalid hex character: %c", b)
		}

		if hasNibble {
			result = append(result, nibble<<4|val)
			hasNibble = false
		} else {
			nibble = val
			hasNibble = true
		}
	}
	if hasNibble {
		result = append(result, nibble<<4)
	}
	return result, nil
}

// ascii85Decode decodes ASCII85 encoded data.
func ascii85Decode(data []byte) ([]byte, error) {
	data = bytes.TrimSuffix(bytes.TrimSpace(data), []byte("~>"))
	dec := ascii85.NewDecoder(bytes.NewReader(data))
	return io.ReadAll(dec)
}

// runLengthDecode decodes run-length encoded data.
func runLengthDecode(data []byte) ([]byte, error) {
	var result []byte
	i := 0
	for i < len(data) {
		length := int(data[i])
		i++
		if length == 128 {
			break
		}
		if length < 128 {
			n := length + 1
			if i+n > len(data) {
				return nil, fmt.Errorf("run length out of bounds")
			}
			result = append(result, data[i:i+n]...)
			i += n
		} else {
			if i >= len(data) {
				return nil, fmt.Errorf("run length out of bounds")
			}
			n := 257 - length
			for j := 0; j < n; j++ {
				result = append(result, data[i])
			}
			i++
		}
	}
	return result, nil
}

// Reference represents an indirect object reference.
type Reference struct {
	ObjectNumber     int
	GenerationNumber int
}

func (r Reference) Type() ObjectType { return ObjReference }
func (r Reference) String() string {
	return fmt.Sprintf("%d %d R", r.ObjectNumber, r.GenerationNumber)
}
