// Package pdf provides PDF parsing, object-graph mutation, rasterization and
// serialization.
package pdf

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// ObjectType represents the type of a PDF object
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

var objectTypeNames = [...]string{
	ObjNull:       "null",
	ObjBoolean:    "boolean",
	ObjInteger:    "integer",
	ObjReal:       "real",
	ObjString:     "string",
	ObjName:       "name",
	ObjArray:      "array",
	ObjDictionary: "dictionary",
	ObjStream:     "stream",
	ObjReference:  "reference",
}

func (t ObjectType) String() string {
	if t >= 0 && int(t) < len(objectTypeNames) {
		return objectTypeNames[t]
	}
	return "ObjectType(" + strconv.Itoa(int(t)) + ")"
}

// Object represents a PDF object
type Object interface {
	Type() ObjectType
	String() string
}

// Null represents a PDF null object
type Null struct{}

func (n Null) Type() ObjectType { return ObjNull }
func (n Null) String() string   { return "null" }

// Boolean represents a PDF boolean object
type Boolean bool

func (b Boolean) Type() ObjectType { return ObjBoolean }
func (b Boolean) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Integer represents a PDF integer object
type Integer int64

func (i Integer) Type() ObjectType { return ObjInteger }
func (i Integer) String() string   { return strconv.FormatInt(int64(i), 10) }

// Real represents a PDF real number object
type Real float64

func (r Real) Type() ObjectType { return ObjReal }
func (r Real) String() string   { return strconv.FormatFloat(float64(r), 'f', -1, 64) }

// String represents a PDF string object
type String struct {
	Value []byte
	IsHex bool
}

func (s String) Type() ObjectType { return ObjString }
func (s String) String() string {
	if s.IsHex {
		return fmt.Sprintf("<%X>", s.Value)
	}
	return "(" + escapeLiteral(s.Value) + ")"
}

var utf16BE = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)

// Text returns the string value as text, honouring a UTF-16BE or UTF-8 byte
// order mark and falling back to PDFDocEncoding.
func (s String) Text() string {
	if len(s.Value) >= 2 && s.Value[0] == 0xFE && s.Value[1] == 0xFF {
		out, err := utf16BE.NewDecoder().Bytes(s.Value)
		if err == nil {
			return string(out)
		}
	}
	if len(s.Value) >= 3 && s.Value[0] == 0xEF && s.Value[1] == 0xBB && s.Value[2] == 0xBF {
		return string(s.Value[3:])
	}
	// PDFDocEncoding agrees with Latin-1 for everything a document title uses.
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(s.Value)
	if err != nil {
		return string(s.Value)
	}
	return string(out)
}

// Name represents a PDF name object
type Name string

func (n Name) Type() ObjectType { return ObjName }
func (n Name) String() string   { return "/" + string(n) }

// Array represents a PDF array object
type Array []Object

func (a Array) Type() ObjectType { return ObjArray }
func (a Array) String() string {
	parts := make([]string, 0, len(a))
	for _, obj := range a {
		parts = append(parts, objectString(obj))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Clone returns a shallow copy of the array.
func (a Array) Clone() Array {
	out := make(Array, len(a))
	copy(out, a)
	return out
}

// Dictionary represents a PDF dictionary object
type Dictionary map[Name]Object

func (d Dictionary) Type() ObjectType { return ObjDictionary }
func (d Dictionary) String() string {
	parts := make([]string, 0, len(d))
	for _, k := range d.Keys() {
		parts = append(parts, k.String()+" "+objectString(d[k]))
	}
	return "<<" + strings.Join(parts, " ") + ">>"
}

// Keys returns the dictionary keys in sorted order.
func (d Dictionary) Keys() []Name {
	keys := make([]Name, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Clone returns a shallow copy of the dictionary.
func (d Dictionary) Clone() Dictionary {
	out := make(Dictionary, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Get returns the value for a key without resolving references
func (d Dictionary) Get(key string) Object {
	return d[Name(key)]
}

// Set stores a value under key.
func (d Dictionary) Set(key string, value Object) {
	d[Name(key)] = value
}

// Has reports whether key is present.
func (d Dictionary) Has(key string) bool {
	_, ok := d[Name(key)]
	return ok
}

// GetName returns the name value for a key
func (d Dictionary) GetName(key string) (Name, bool) {
	n, ok := d.Get(key).(Name)
	return n, ok
}

// GetInt returns the integer value for a key
func (d Dictionary) GetInt(key string) (int64, bool) {
	switch v := d.Get(key).(type) {
	case Integer:
		return int64(v), true
	case Real:
		return int64(v), true
	}
	return 0, false
}

// GetFloat returns the numeric value for a key
func (d Dictionary) GetFloat(key string) (float64, bool) {
	f, err := AsNumber(d.Get(key))
	return f, err == nil
}

// GetArray returns the array value for a key
func (d Dictionary) GetArray(key string) (Array, bool) {
	a, ok := d.Get(key).(Array)
	return a, ok
}

// GetDict returns the dictionary value for a key
func (d Dictionary) GetDict(key string) (Dictionary, bool) {
	dict, ok := d.Get(key).(Dictionary)
	return dict, ok
}

// Stream represents a PDF stream object
type Stream struct {
	Dictionary Dictionary
	Data       []byte
}

func (s Stream) Type() ObjectType { return ObjStream }
func (s Stream) String() string {
	return s.Dictionary.String() + " stream...endstream"
}

// Reference represents a PDF indirect object reference
type Reference struct {
	ObjectNumber     int
	GenerationNumber int
}

func (r Reference) Type() ObjectType { return ObjReference }
func (r Reference) String() string {
	return fmt.Sprintf("%d %d R", r.ObjectNumber, r.GenerationNumber)
}

func objectString(obj Object) string {
	if obj == nil {
		return "null"
	}
	return obj.String()
}

// TypeError reports an object whose kind differs from the one an operation
// requires.
type TypeError struct {
	Want ObjectType
	Got  ObjectType
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Want, e.Got)
}

// TypeOf returns the kind of obj, treating a nil interface as null.
func TypeOf(obj Object) ObjectType {
	if obj == nil {
		return ObjNull
	}
	return obj.Type()
}

// AsDict returns obj as a dictionary. A stream is not a dictionary.
func AsDict(obj Object) (Dictionary, error) {
	if d, ok := obj.(Dictionary); ok {
		return d, nil
	}
	return nil, &TypeError{Want: ObjDictionary, Got: TypeOf(obj)}
}

// AsArray returns obj as an array.
func AsArray(obj Object) (Array, error) {
	if a, ok := obj.(Array); ok {
		return a, nil
	}
	return nil, &TypeError{Want: ObjArray, Got: TypeOf(obj)}
}

// AsStream returns obj as a stream.
func AsStream(obj Object) (Stream, error) {
	if s, ok := obj.(Stream); ok {
		return s, nil
	}
	return Stream{}, &TypeError{Want: ObjStream, Got: TypeOf(obj)}
}

// AsName returns obj as a name.
func AsName(obj Object) (Name, error) {
	if n, ok := obj.(Name); ok {
		return n, nil
	}
	return "", &TypeError{Want: ObjName, Got: TypeOf(obj)}
}

// AsNumber returns the numeric value of an Integer or Real.
func AsNumber(obj Object) (float64, error) {
	switch v := obj.(type) {
	case Integer:
		return float64(v), nil
	case Real:
		return float64(v), nil
	}
	return 0, &TypeError{Want: ObjReal, Got: TypeOf(obj)}
}

// AsReference returns obj as an indirect reference.
func AsReference(obj Object) (Reference, error) {
	if r, ok := obj.(Reference); ok {
		return r, nil
	}
	return Reference{}, &TypeError{Want: ObjReference, Got: TypeOf(obj)}
}

// numbers converts an array of numeric objects, failing on the first
// non-number.
func numbers(a Array) ([]float64, error) {
	out := make([]float64, len(a))
	for i, obj := range a {
		f, err := AsNumber(obj)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}

// escapeLiteral escapes a byte string for use inside (...).
func escapeLiteral(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		switch c {
		case '(', ')', '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case '\r':
			sb.WriteString(`\r`)
		case '\n':
			sb.WriteString(`\n`)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
