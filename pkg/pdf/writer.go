package pdf

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"math"
	"strconv"

	"github.com/bits-and-blooms/bitset"
	"golang.org/x/crypto/blake2b"
)

// WriteOptions controls serialization.
type WriteOptions struct {
	// Compress Flate-encodes every stream that carries no filter. Streams
	// that are already filtered are written byte for byte.
	Compress bool
}

// Writer serializes a document as a complete PDF: every in-use object is
// written afresh, followed by a classic cross-reference table. Object and
// cross-reference streams are expanded and dropped.
type Writer struct {
	doc  *Document
	opts WriteOptions
}

// NewWriter creates a writer for doc.
func NewWriter(doc *Document, opts WriteOptions) *Writer {
	return &Writer{doc: doc, opts: opts}
}

// Save serializes the document into a new buffer.
func (d *Document) Save(opts WriteOptions) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := NewWriter(d, opts).WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// countingWriter tracks the output offset and hashes the body.
type countingWriter struct {
	w   *bufio.Writer
	n   int64
	sum hash.Hash
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if c.sum != nil {
		c.sum.Write(p[:n])
	}
	return n, err
}

func (c *countingWriter) WriteString(s string) (int, error) {
	return c.Write([]byte(s))
}

// WriteTo writes the document to out.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	d := w.doc
	if d.closed {
		return 0, ErrClosed
	}

	objects, err := w.collect()
	if err != nil {
		return 0, err
	}
	if err := w.checkReferences(objects); err != nil {
		return 0, err
	}

	sum, err := blake2b.New(16, nil)
	if err != nil {
		return 0, err
	}
	cw := &countingWriter{w: bufio.NewWriter(out), sum: sum}

	fmt.Fprintf(cw, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", outputVersion(d.Version))

	size := d.NextObjectNumber()
	offsets := make([]int64, size)
	var body bytes.Buffer
	for num := 1; num < size; num++ {
		obj, ok := objects[num]
		if !ok {
			continue
		}
		body.Reset()
		fmt.Fprintf(&body, "%d %d obj\n", num, d.xref[num].Generation)
		if err := w.writeIndirect(&body, obj); err != nil {
			return cw.n, fmt.Errorf("object %d: %w", num, err)
		}
		body.WriteString("\nendobj\n")

		offsets[num] = cw.n
		if _, err := cw.Write(body.Bytes()); err != nil {
			return cw.n, err
		}
	}

	digest := sum.Sum(nil)
	cw.sum = nil

	xrefOffset := cw.n
	fmt.Fprintf(cw, "xref\n0 %d\n", size)
	nextFree := make([]int, size)
	last := 0
	for num := size - 1; num > 0; num-- {
		if _, ok := objects[num]; !ok {
			nextFree[num] = last
			last = num
		}
	}
	fmt.Fprintf(cw, "%010d 65535 f \n", last)
	for num := 1; num < size; num++ {
		if _, ok := objects[num]; ok {
			fmt.Fprintf(cw, "%010d %05d n \n", offsets[num], d.xref[num].Generation)
		} else {
			fmt.Fprintf(cw, "%010d 00001 f \n", nextFree[num])
		}
	}

	trailer := Dictionary{
		"Size": Integer(size),
		"Root": d.rootRef,
		"ID":   w.fileID(digest),
	}
	if info, ok := d.Trailer.Get("Info").(Reference); ok {
		if _, written := objects[info.ObjectNumber]; written {
			trailer["Info"] = info
		}
	}
	var tb bytes.Buffer
	if err := writeObject(&tb, trailer); err != nil {
		return cw.n, err
	}
	fmt.Fprintf(cw, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", tb.Bytes(), xrefOffset)

	if err := cw.w.Flush(); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

// collect loads every in-use object. Objects that fail to parse are written
// as null, the way a viewer treats them; storage-only streams are dropped.
func (w *Writer) collect() (map[int]Object, error) {
	d := w.doc
	objects := make(map[int]Object, len(d.xref))
	for _, num := range d.objectNumbers() {
		if num <= 0 {
			continue
		}
		obj, err := d.GetObject(num)
		if err != nil {
			obj = Null{}
		}
		if s, ok := obj.(Stream); ok {
			if t, _ := s.Dictionary.GetName("Type"); t == "ObjStm" || t == "XRef" {
				continue
			}
		}
		objects[num] = obj
	}
	if _, ok := objects[d.rootRef.ObjectNumber]; !ok {
		return nil, fmt.Errorf("catalog object %d is not in use", d.rootRef.ObjectNumber)
	}
	return objects, nil
}

// checkReferences walks the graph reachable from the trailer and fails on
// any reference to an object number the document never allocated.
func (w *Writer) checkReferences(objects map[int]Object) error {
	d := w.doc
	size := d.NextObjectNumber()
	visited := bitset.New(uint(size))

	var queue []int
	var visit func(holder int, obj Object) error
	visit = func(holder int, obj Object) error {
		switch v := obj.(type) {
		case Reference:
			if v.ObjectNumber <= 0 || v.ObjectNumber >= size {
				return &DanglingReferenceError{Ref: v, Holder: holder}
			}
			if !visited.Test(uint(v.ObjectNumber)) {
				visited.Set(uint(v.ObjectNumber))
				queue = append(queue, v.ObjectNumber)
			}
		case Array:
			for _, elem := range v {
				if err := visit(holder, elem); err != nil {
					return err
				}
			}
		case Dictionary:
			for _, k := range v.Keys() {
				if err := visit(holder, v[k]); err != nil {
					return err
				}
			}
		case Stream:
			return visit(holder, v.Dictionary)
		}
		return nil
	}

	roots := Array{d.rootRef}
	if info, ok := d.Trailer.Get("Info").(Reference); ok {
		roots = append(roots, info)
	}
	if err := visit(0, roots); err != nil {
		return err
	}
	for len(queue) > 0 {
		num := queue[0]
		queue = queue[1:]
		if err := visit(num, objects[num]); err != nil {
			return err
		}
	}
	return nil
}

// fileID keeps the document's permanent identifier and derives the
// changing one from the body digest.
func (w *Writer) fileID(digest []byte) Array {
	first := digest
	if ids, ok := w.doc.Trailer.Get("ID").(Array); ok && len(ids) > 0 {
		if s, ok := ids[0].(String); ok && len(s.Value) > 0 {
			first = s.Value
		}
	}
	return Array{String{Value: first, IsHex: true}, String{Value: digest, IsHex: true}}
}

func (w *Writer) writeIndirect(buf *bytes.Buffer, obj Object) error {
	s, ok := obj.(Stream)
	if !ok {
		return writeObject(buf, obj)
	}

	dict := s.Dictionary.Clone()
	data := s.Data
	if w.opts.Compress && len(data) > 0 && !dict.Has("Filter") {
		enc, err := flateEncode(data)
		if err != nil {
			return err
		}
		dict["Filter"] = Name("FlateDecode")
		data = enc
	}
	dict["Length"] = Integer(len(data))

	if err := writeObject(buf, dict); err != nil {
		return err
	}
	buf.WriteString("\nstream\n")
	buf.Write(data)
	buf.WriteString("\nendstream")
	return nil
}

// writeObject writes the PDF syntax for a direct object.
func writeObject(buf *bytes.Buffer, obj Object) error {
	switch v := obj.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Boolean, Integer, Reference:
		buf.WriteString(v.String())
	case Real:
		buf.WriteString(formatReal(float64(v)))
	case String:
		if v.IsHex {
			buf.WriteByte('<')
			buf.WriteString(hex.EncodeToString(v.Value))
			buf.WriteByte('>')
		} else {
			buf.WriteByte('(')
			buf.WriteString(escapeLiteral(v.Value))
			buf.WriteByte(')')
		}
	case Name:
		buf.WriteByte('/')
		buf.WriteString(escapeName(string(v)))
	case Array:
		buf.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				buf.WriteByte(' ')
			}
			if err := writeObject(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Dictionary:
		buf.WriteString("<<")
		for _, k := range v.Keys() {
			val := v[k]
			if _, isNull := val.(Null); isNull || val == nil {
				continue
			}
			buf.WriteByte('/')
			buf.WriteString(escapeName(string(k)))
			buf.WriteByte(' ')
			if err := writeObject(buf, val); err != nil {
				return err
			}
		}
		buf.WriteString(">>")
	case Stream:
		return fmt.Errorf("stream cannot be a direct object")
	default:
		return fmt.Errorf("cannot serialize %T", obj)
	}
	return nil
}

// formatReal formats a number in the shortest decimal form that reads back
// exactly, never in exponent notation.
func formatReal(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FormatNumber is formatReal for callers building content streams.
func FormatNumber(f float64) string {
	return formatReal(f)
}

// escapeName escapes the bytes a name token cannot carry literally.
func escapeName(name string) string {
	var b []byte
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < '!' || c > '~' || c == '#' || isDelimiter(c) {
			if b == nil {
				b = append(make([]byte, 0, len(name)+8), name[:i]...)
			}
			b = append(b, '#', "0123456789ABCDEF"[c>>4], "0123456789ABCDEF"[c&15])
			continue
		}
		if b != nil {
			b = append(b, c)
		}
	}
	if b == nil {
		return name
	}
	return string(b)
}

func outputVersion(v string) string {
	if v == "" {
		return "1.7"
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f < 1.4 {
		return "1.4"
	}
	return v
}
