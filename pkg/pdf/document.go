package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
)

// Document represents a PDF document held in memory. It owns a private copy
// of the bytes it was loaded from.
type Document struct {
	data    []byte
	Version string
	Trailer Dictionary
	Root    Dictionary
	Info    Dictionary
	Pages   []*Page

	// Repaired is set when the cross-reference data was rebuilt by scanning.
	Repaired bool

	rootRef Reference
	objects map[int]Object
	xref    map[int]xrefEntry
	objStms map[int]*objectStream
	loading map[int]bool
	size    int
	closed  bool
}

// xrefEntry represents an entry in the cross-reference table
type xrefEntry struct {
	Offset     int64
	Generation int
	InUse      bool
	// For objects stored in an object stream
	StreamObjNum int
	Index        int
	// Created marks objects added after loading.
	Created bool
}

type objectStream struct {
	data    []byte
	first   int64
	numbers []int
	offsets []int64
}

// Page represents a PDF page. Dictionary holds the page object's own
// entries; inheritable attributes are resolved into the other fields
// without being copied into the dictionary.
type Page struct {
	doc        *Document
	Ref        Reference
	Dictionary Dictionary
	Index      int
	MediaBox   Rectangle
	CropBox    Rectangle
	Resources  Dictionary
	Rotate     int

	err error
}

// Err returns the reason the page object could not be read, if any. Such a
// page keeps its slot in the page sequence but cannot be rendered or
// modified.
func (p *Page) Err() error {
	return p.err
}

// Rectangle represents a PDF rectangle
type Rectangle struct {
	LLX, LLY, URX, URY float64
}

// Width returns the rectangle width
func (r Rectangle) Width() float64 {
	return r.URX - r.LLX
}

// Height returns the rectangle height
func (r Rectangle) Height() float64 {
	return r.URY - r.LLY
}

// letterBox is used when a page has no usable MediaBox.
var letterBox = Rectangle{0, 0, 612, 792}

// Open opens a PDF file
func Open(filename string) (*Document, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return NewDocument(data)
}

// NewDocument parses data into a document. The caller's buffer is copied and
// never modified.
func NewDocument(data []byte) (*Document, error) {
	doc := &Document{
		data: append([]byte(nil), data...),
	}
	doc.reset()

	if err := doc.parse(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (d *Document) reset() {
	d.Trailer = nil
	d.Root = nil
	d.Info = nil
	d.Pages = nil
	d.objects = make(map[int]Object)
	d.xref = make(map[int]xrefEntry)
	d.objStms = make(map[int]*objectStream)
	d.loading = make(map[int]bool)
	d.size = 0
}

// parse parses the PDF document
func (d *Document) parse() error {
	if err := d.parseHeader(); err != nil {
		return err
	}

	err := d.parseXRefChain()
	if err == nil {
		err = d.loadCatalog()
	}
	if err != nil && !errors.Is(err, ErrEncrypted) {
		d.reset()
		if rerr := d.repair(); rerr != nil {
			return fmt.Errorf("%w (repair failed: %v)", err, rerr)
		}
		d.Repaired = true
		err = d.loadCatalog()
	}
	return err
}

// parseHeader checks the %PDF-x.y header, which may be preceded by junk
// within the first kilobyte.
func (d *Document) parseHeader() error {
	head := d.data
	if len(head) > 1024 {
		head = head[:1024]
	}
	idx := bytes.Index(head, []byte("%PDF-"))
	if idx < 0 {
		return ErrNotPDF
	}
	v := d.data[idx+5:]
	n := 0
	for n < len(v) && n < 8 && (v[n] >= '0' && v[n] <= '9' || v[n] == '.') {
		n++
	}
	if n == 0 || v[0] < '0' || v[0] > '9' {
		return fmt.Errorf("%w: malformed header version", ErrNotPDF)
	}
	d.Version = string(v[:n])
	return nil
}

func (d *Document) parseXRefChain() error {
	offset, err := d.findStartXRef()
	if err != nil {
		return err
	}

	seen := make(map[int64]bool)
	for offset >= 0 {
		if seen[offset] {
			return fmt.Errorf("xref chain loops at offset %d", offset)
		}
		seen[offset] = true

		trailer, err := d.parseXRef(offset)
		if err != nil {
			return err
		}
		if d.Trailer == nil {
			d.Trailer = trailer
		} else {
			for k, v := range trailer {
				if _, exists := d.Trailer[k]; !exists {
					d.Trailer[k] = v
				}
			}
		}

		// Hybrid-reference files keep their compressed objects in a
		// separate xref stream.
		if stm, ok := trailer.GetInt("XRefStm"); ok {
			if _, err := d.parseXRef(stm); err != nil {
				return err
			}
		}

		prev, ok := trailer.GetInt("Prev")
		if !ok {
			break
		}
		offset = prev
	}

	if size, ok := d.Trailer.GetInt("Size"); ok && int(size) > d.size {
		d.size = int(size)
	}
	return nil
}

// findStartXRef finds the startxref position
func (d *Document) findStartXRef() (int64, error) {
	searchLen := 2048
	if len(d.data) < searchLen {
		searchLen = len(d.data)
	}
	base := len(d.data) - searchLen
	tail := d.data[base:]
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, fmt.Errorf("startxref not found")
	}

	lexer := NewLexerFromBytes(d.data)
	lexer.Seek(int64(base + idx + len("startxref")))
	tok, err := lexer.NextToken()
	if err != nil || tok.Type != TokenInteger {
		return 0, fmt.Errorf("invalid startxref offset")
	}
	offset := tok.Value.(int64)
	if offset <= 0 || offset >= int64(len(d.data)) {
		return 0, fmt.Errorf("startxref offset %d out of range", offset)
	}
	return offset, nil
}

// parseXRef parses the cross-reference section at offset and returns its
// trailer dictionary.
func (d *Document) parseXRef(offset int64) (Dictionary, error) {
	if offset < 0 || offset >= int64(len(d.data)) {
		return nil, fmt.Errorf("xref offset %d out of range", offset)
	}
	pos := offset
	for pos < int64(len(d.data)) && isWhitespace(d.data[pos]) {
		pos++
	}
	if bytes.HasPrefix(d.data[pos:], []byte("xref")) {
		return d.parseXRefTable(pos)
	}
	return d.parseXRefStream(pos)
}

// parseXRefTable parses a traditional xref table
func (d *Document) parseXRefTable(offset int64) (Dictionary, error) {
	lexer := NewLexerFromBytes(d.data)
	lexer.Seek(offset + int64(len("xref")))

	for {
		tok, err := lexer.NextToken()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenTrailer {
			break
		}
		if tok.Type != TokenInteger {
			return nil, fmt.Errorf("malformed xref subsection at position %d", tok.Pos)
		}
		countTok, err := lexer.NextToken()
		if err != nil {
			return nil, err
		}
		if countTok.Type != TokenInteger {
			return nil, fmt.Errorf("malformed xref subsection at position %d", countTok.Pos)
		}
		start := int(tok.Value.(int64))
		count := int(countTok.Value.(int64))

		for i := 0; i < count; i++ {
			var fields [3]Token
			for j := range fields {
				if fields[j], err = lexer.NextToken(); err != nil {
					return nil, err
				}
			}
			if fields[0].Type != TokenInteger || fields[1].Type != TokenInteger {
				return nil, fmt.Errorf("malformed xref entry at position %d", fields[0].Pos)
			}
			kind := fields[2].Keyword()
			if kind != "n" && kind != "f" {
				return nil, fmt.Errorf("malformed xref entry at position %d", fields[0].Pos)
			}

			objNum := start + i
			// Entries from newer sections take precedence.
			if _, exists := d.xref[objNum]; exists {
				continue
			}
			entry := xrefEntry{
				Offset:     fields[0].Value.(int64),
				Generation: int(fields[1].Value.(int64)),
				InUse:      kind == "n",
			}
			if objNum == 0 {
				entry.InUse = false
			}
			d.xref[objNum] = entry
			if objNum+1 > d.size {
				d.size = objNum + 1
			}
		}
	}

	parser := NewParser(lexer)
	trailerObj, err := parser.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("trailer: %w", err)
	}
	trailer, err := AsDict(trailerObj)
	if err != nil {
		return nil, fmt.Errorf("trailer: %w", err)
	}
	return trailer, nil
}

// parseXRefStream parses an xref stream
func (d *Document) parseXRefStream(offset int64) (Dictionary, error) {
	parser := d.newParserAt(offset)
	_, _, obj, err := parser.ParseIndirectObject()
	if err != nil {
		return nil, err
	}
	stream, err := AsStream(obj)
	if err != nil {
		return nil, fmt.Errorf("xref stream at offset %d: %w", offset, err)
	}
	if t, _ := stream.Dictionary.GetName("Type"); t != "XRef" {
		return nil, fmt.Errorf("no xref section at offset %d", offset)
	}

	data, err := stream.Decode()
	if err != nil {
		return nil, err
	}

	wArray, ok := stream.Dictionary.GetArray("W")
	if !ok || len(wArray) != 3 {
		return nil, fmt.Errorf("invalid xref stream W array")
	}
	var w [3]int
	for i, obj := range wArray {
		n, ok := obj.(Integer)
		if !ok || n < 0 || n > 8 {
			return nil, fmt.Errorf("invalid xref stream W array")
		}
		w[i] = int(n)
	}

	size, _ := stream.Dictionary.GetInt("Size")
	indices := []int{0, int(size)}
	if indexArray, ok := stream.Dictionary.GetArray("Index"); ok {
		indices = indices[:0]
		for _, obj := range indexArray {
			if n, ok := obj.(Integer); ok {
				indices = append(indices, int(n))
			}
		}
	}

	entrySize := w[0] + w[1] + w[2]
	if entrySize == 0 {
		return nil, fmt.Errorf("invalid xref stream W array")
	}
	pos := 0
	for i := 0; i+1 < len(indices); i += 2 {
		start, count := indices[i], indices[i+1]
		for j := 0; j < count && pos+entrySize <= len(data); j++ {
			entry := data[pos : pos+entrySize]
			pos += entrySize

			entryType := readXRefField(entry, 0, w[0])
			if w[0] == 0 {
				entryType = 1
			}
			field2 := readXRefField(entry, w[0], w[1])
			field3 := readXRefField(entry, w[0]+w[1], w[2])

			objNum := start + j
			if objNum+1 > d.size {
				d.size = objNum + 1
			}
			if _, exists := d.xref[objNum]; exists {
				continue
			}
			switch entryType {
			case 0:
				d.xref[objNum] = xrefEntry{Generation: field3}
			case 1:
				d.xref[objNum] = xrefEntry{Offset: int64(field2), Generation: field3, InUse: objNum != 0}
			case 2:
				d.xref[objNum] = xrefEntry{StreamObjNum: field2, Index: field3, InUse: true}
			}
		}
	}

	return stream.Dictionary, nil
}

// readXRefField reads a big-endian field from an xref stream entry
func readXRefField(data []byte, offset, width int) int {
	result := 0
	for i := 0; i < width; i++ {
		result = result<<8 | int(data[offset+i])
	}
	return result
}

var objHeader = regexp.MustCompile(`(\d+)[\x00\t\n\f\r ]+(\d+)[\x00\t\n\f\r ]+obj\b`)

// repair rebuilds the cross-reference data by scanning the file for object
// headers and trailer dictionaries. Later definitions win, as they would in
// an incrementally updated file.
func (d *Document) repair() error {
	for _, m := range objHeader.FindAllSubmatchIndex(d.data, -1) {
		if m[0] > 0 && !isWhitespace(d.data[m[0]-1]) && !isDelimiter(d.data[m[0]-1]) {
			continue
		}
		num, err1 := strconv.Atoi(string(d.data[m[2]:m[3]]))
		gen, err2 := strconv.Atoi(string(d.data[m[4]:m[5]]))
		if err1 != nil || err2 != nil || num <= 0 || num > 1<<23 {
			continue
		}
		d.xref[num] = xrefEntry{Offset: int64(m[0]), Generation: gen, InUse: true}
		if num+1 > d.size {
			d.size = num + 1
		}
	}
	if len(d.xref) == 0 {
		return fmt.Errorf("no objects found")
	}

	d.Trailer = Dictionary{}
	marker := []byte("trailer")
	for pos := 0; ; {
		idx := bytes.Index(d.data[pos:], marker)
		if idx < 0 {
			break
		}
		pos += idx + len(marker)
		parser := d.newParserAt(int64(pos))
		obj, err := parser.ParseObject()
		if err != nil {
			continue
		}
		if trailer, ok := obj.(Dictionary); ok {
			for k, v := range trailer {
				d.Trailer[k] = v
			}
		}
	}

	// Objects living in object streams are registered where no plain
	// definition exists.
	for _, num := range d.objectNumbers() {
		obj, err := d.GetObject(num)
		if err != nil {
			continue
		}
		stream, ok := obj.(Stream)
		if !ok {
			continue
		}
		if t, _ := stream.Dictionary.GetName("Type"); t != "ObjStm" {
			continue
		}
		stm, err := d.objectStream(num)
		if err != nil {
			continue
		}
		for i, n := range stm.numbers {
			if _, exists := d.xref[n]; !exists && n > 0 {
				d.xref[n] = xrefEntry{StreamObjNum: num, Index: i, InUse: true}
				if n+1 > d.size {
					d.size = n + 1
				}
			}
		}
	}

	if ref, ok := d.Trailer.Get("Root").(Reference); ok {
		if obj, err := d.GetObject(ref.ObjectNumber); err == nil {
			if root, ok := obj.(Dictionary); ok && root.Has("Pages") {
				return nil
			}
		}
	}
	for _, num := range d.objectNumbers() {
		obj, err := d.GetObject(num)
		if err != nil {
			continue
		}
		if dict, ok := obj.(Dictionary); ok {
			if t, _ := dict.GetName("Type"); t == "Catalog" {
				d.Trailer["Root"] = Reference{ObjectNumber: num, GenerationNumber: d.xref[num].Generation}
				return nil
			}
		}
	}
	return fmt.Errorf("no document catalog found")
}

// objectNumbers returns the in-use object numbers in ascending order.
func (d *Document) objectNumbers() []int {
	nums := make([]int, 0, len(d.xref))
	for num, e := range d.xref {
		if e.InUse {
			nums = append(nums, num)
		}
	}
	sort.Ints(nums)
	return nums
}

func (d *Document) loadCatalog() error {
	if d.Trailer.Has("Encrypt") {
		return ErrEncrypted
	}

	rootRef, err := AsReference(d.Trailer.Get("Root"))
	if err != nil {
		return fmt.Errorf("trailer Root: %w", err)
	}
	rootObj, err := d.GetObject(rootRef.ObjectNumber)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	root, err := AsDict(rootObj)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	d.rootRef = rootRef
	d.Root = root

	if infoObj, err := d.ResolveObject(d.Trailer.Get("Info")); err == nil {
		if info, ok := infoObj.(Dictionary); ok {
			d.Info = info
		}
	}

	return d.parsePages()
}

func (d *Document) newParserAt(offset int64) *Parser {
	lexer := NewLexerFromBytes(d.data)
	lexer.Seek(offset)
	p := NewParser(lexer)
	p.resolveLength = d.resolveLength
	return p
}

func (d *Document) resolveLength(ref Reference) (int, bool) {
	obj, err := d.GetObject(ref.ObjectNumber)
	if err != nil {
		return 0, false
	}
	n, ok := obj.(Integer)
	return int(n), ok && n >= 0
}

// ResolveObject resolves an object, following references
func (d *Document) ResolveObject(obj Object) (Object, error) {
	for depth := 0; depth < 32; depth++ {
		ref, ok := obj.(Reference)
		if !ok {
			if obj == nil {
				return Null{}, nil
			}
			return obj, nil
		}
		var err error
		obj, err = d.GetObject(ref.ObjectNumber)
		if err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("reference chain too long")
}

// Resolve is shorthand for ResolveObject that discards errors, yielding Null
// for anything unreadable.
func (d *Document) Resolve(obj Object) Object {
	out, err := d.ResolveObject(obj)
	if err != nil {
		return Null{}
	}
	return out
}

// GetObject gets an object by number. Free and unknown object numbers read
// as Null, as the format prescribes.
func (d *Document) GetObject(objNum int) (Object, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if obj, ok := d.objects[objNum]; ok {
		return obj, nil
	}
	entry, ok := d.xref[objNum]
	if !ok || !entry.InUse {
		return Null{}, nil
	}
	if d.loading[objNum] {
		return nil, fmt.Errorf("object %d refers to itself while loading", objNum)
	}
	d.loading[objNum] = true
	defer delete(d.loading, objNum)

	var obj Object
	var err error
	if entry.StreamObjNum > 0 {
		obj, err = d.getCompressedObject(objNum, entry.StreamObjNum, entry.Index)
	} else {
		obj, err = d.getUncompressedObject(objNum, entry.Offset)
	}
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", objNum, err)
	}

	d.objects[objNum] = obj
	return obj, nil
}

// getUncompressedObject reads an uncompressed object
func (d *Document) getUncompressedObject(objNum int, offset int64) (Object, error) {
	if offset <= 0 || offset >= int64(len(d.data)) {
		return nil, fmt.Errorf("offset %d out of range", offset)
	}
	num, _, obj, err := d.newParserAt(offset).ParseIndirectObject()
	if err != nil {
		return nil, err
	}
	if num != objNum {
		return nil, fmt.Errorf("xref points at object %d", num)
	}
	return obj, nil
}

func (d *Document) objectStream(streamObjNum int) (*objectStream, error) {
	if stm, ok := d.objStms[streamObjNum]; ok {
		return stm, nil
	}
	streamObj, err := d.GetObject(streamObjNum)
	if err != nil {
		return nil, err
	}
	stream, err := AsStream(streamObj)
	if err != nil {
		return nil, fmt.Errorf("object stream %d: %w", streamObjNum, err)
	}
	data, err := stream.Decode()
	if err != nil {
		return nil, err
	}
	first, ok := stream.Dictionary.GetInt("First")
	if !ok || first < 0 || first > int64(len(data)) {
		return nil, fmt.Errorf("object stream %d: invalid First", streamObjNum)
	}
	n, _ := stream.Dictionary.GetInt("N")

	stm := &objectStream{data: data, first: first}
	header := NewParserFromBytes(data[:first])
	for i := int64(0); i < n; i++ {
		numObj, err1 := header.ParseObject()
		offObj, err2 := header.ParseObject()
		if err1 != nil || err2 != nil {
			break
		}
		num, ok1 := numObj.(Integer)
		off, ok2 := offObj.(Integer)
		if !ok1 || !ok2 {
			break
		}
		stm.numbers = append(stm.numbers, int(num))
		stm.offsets = append(stm.offsets, int64(off))
	}
	d.objStms[streamObjNum] = stm
	return stm, nil
}

// getCompressedObject reads an object from an object stream
func (d *Document) getCompressedObject(objNum, streamObjNum, index int) (Object, error) {
	stm, err := d.objectStream(streamObjNum)
	if err != nil {
		return nil, err
	}
	if index >= len(stm.numbers) || stm.numbers[index] != objNum {
		index = -1
		for i, n := range stm.numbers {
			if n == objNum {
				index = i
				break
			}
		}
		if index < 0 {
			return nil, fmt.Errorf("not found in object stream %d", streamObjNum)
		}
	}
	start := stm.first + stm.offsets[index]
	if start < 0 || start >= int64(len(stm.data)) {
		return nil, fmt.Errorf("offset out of range in object stream %d", streamObjNum)
	}
	return NewParserFromBytes(stm.data[start:]).ParseObject()
}

// inheritance carries the inheritable page attributes down the page tree.
type inheritance struct {
	resources Object
	mediaBox  Object
	cropBox   Object
	rotate    Object
}

func (in inheritance) with(node Dictionary) inheritance {
	if v := node.Get("Resources"); v != nil {
		in.resources = v
	}
	if v := node.Get("MediaBox"); v != nil {
		in.mediaBox = v
	}
	if v := node.Get("CropBox"); v != nil {
		in.cropBox = v
	}
	if v := node.Get("Rotate"); v != nil {
		in.rotate = v
	}
	return in
}

// parsePages walks the page tree
func (d *Document) parsePages() error {
	pagesObj, err := d.ResolveObject(d.Root.Get("Pages"))
	if err != nil {
		return fmt.Errorf("page tree: %w", err)
	}
	pages, err := AsDict(pagesObj)
	if err != nil {
		return fmt.Errorf("page tree: %w", err)
	}
	visited := make(map[int]bool)
	if ref, ok := d.Root.Get("Pages").(Reference); ok {
		visited[ref.ObjectNumber] = true
	}
	return d.parsePagesNode(pages, inheritance{}.with(pages), visited, 0)
}

// parsePagesNode recursively collects the leaves of an intermediate node.
// A kid that cannot be read becomes a page carrying the error, so the page
// count stays that of the tree.
func (d *Document) parsePagesNode(node Dictionary, inh inheritance, visited map[int]bool, depth int) error {
	if depth > 64 {
		return fmt.Errorf("page tree too deep")
	}
	kidsObj, err := d.ResolveObject(node.Get("Kids"))
	if err != nil {
		return fmt.Errorf("page tree Kids: %w", err)
	}
	if _, isNull := kidsObj.(Null); isNull {
		return nil
	}
	kids, err := AsArray(kidsObj)
	if err != nil {
		return fmt.Errorf("page tree Kids: %w", err)
	}

	for _, kid := range kids {
		ref, isRef := kid.(Reference)
		if isRef {
			if visited[ref.ObjectNumber] {
				return fmt.Errorf("page tree cycle at object %d", ref.ObjectNumber)
			}
			visited[ref.ObjectNumber] = true
		}

		kidObj, err := d.ResolveObject(kid)
		if err != nil {
			d.addBrokenPage(ref, err)
			continue
		}
		kidDict, err := AsDict(kidObj)
		if err != nil {
			d.addBrokenPage(ref, fmt.Errorf("page object: %w", err))
			continue
		}

		nodeType, _ := kidDict.GetName("Type")
		if nodeType == "Pages" || (nodeType != "Page" && kidDict.Has("Kids")) {
			if err := d.parsePagesNode(kidDict, inh.with(kidDict), visited, depth+1); err != nil {
				return err
			}
			continue
		}
		d.addPage(ref, kidDict, inh.with(kidDict))
	}
	return nil
}

func (d *Document) addBrokenPage(ref Reference, err error) {
	d.Pages = append(d.Pages, &Page{
		doc:      d,
		Ref:      ref,
		Index:    len(d.Pages),
		MediaBox: letterBox,
		CropBox:  letterBox,
		err:      err,
	})
}

func (d *Document) addPage(ref Reference, dict Dictionary, inh inheritance) {
	page := &Page{
		doc:        d,
		Ref:        ref,
		Dictionary: dict,
		Index:      len(d.Pages),
		MediaBox:   letterBox,
	}
	if box, ok := d.rectangle(inh.mediaBox); ok {
		page.MediaBox = box
	}
	page.CropBox = page.MediaBox
	if box, ok := d.rectangle(inh.cropBox); ok {
		page.CropBox = box
	}
	if res, ok := d.Resolve(inh.resources).(Dictionary); ok {
		page.Resources = res
	}
	if r, err := AsNumber(d.Resolve(inh.rotate)); err == nil {
		rot := int(r) % 360
		if rot < 0 {
			rot += 360
		}
		page.Rotate = rot / 90 * 90
	}
	d.Pages = append(d.Pages, page)
}

// rectangle reads a four-number array, normalizing corner order. Degenerate
// boxes are rejected.
func (d *Document) rectangle(obj Object) (Rectangle, bool) {
	arr, ok := d.Resolve(obj).(Array)
	if !ok || len(arr) != 4 {
		return Rectangle{}, false
	}
	var v [4]float64
	for i, o := range arr {
		f, err := AsNumber(d.Resolve(o))
		if err != nil {
			return Rectangle{}, false
		}
		v[i] = f
	}
	r := Rectangle{
		LLX: min(v[0], v[2]), LLY: min(v[1], v[3]),
		URX: max(v[0], v[2]), URY: max(v[1], v[3]),
	}
	if r.Width() <= 0 || r.Height() <= 0 {
		return Rectangle{}, false
	}
	return r, true
}

// NumPages returns the number of pages
func (d *Document) NumPages() int {
	return len(d.Pages)
}

// Page returns the page at a zero-based index.
func (d *Document) Page(index int) (*Page, error) {
	if d.closed {
		return nil, ErrClosed
	}
	if index < 0 || index >= len(d.Pages) {
		return nil, fmt.Errorf("%w: %d of %d", ErrPageRange, index, len(d.Pages))
	}
	return d.Pages[index], nil
}

// Contents returns the page's content streams decoded and joined in
// execution order.
func (p *Page) Contents() ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	contents, err := p.doc.ResolveObject(p.Dictionary.Get("Contents"))
	if err != nil {
		return nil, fmt.Errorf("Contents: %w", err)
	}

	var parts []Object
	switch c := contents.(type) {
	case Null:
		return nil, nil
	case Stream:
		parts = []Object{c}
	case Array:
		parts = c
	default:
		return nil, fmt.Errorf("Contents: %w", &TypeError{Want: ObjStream, Got: TypeOf(c)})
	}

	var buf bytes.Buffer
	for i, part := range parts {
		obj, err := p.doc.ResolveObject(part)
		if err != nil {
			return nil, fmt.Errorf("Contents[%d]: %w", i, err)
		}
		if _, isNull := obj.(Null); isNull {
			continue
		}
		stream, err := AsStream(obj)
		if err != nil {
			return nil, fmt.Errorf("Contents[%d]: %w", i, err)
		}
		data, err := stream.Decode()
		if err != nil {
			return nil, fmt.Errorf("Contents[%d]: %w", i, err)
		}
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Width returns the media box width
func (p *Page) Width() float64 {
	return p.MediaBox.Width()
}

// Height returns the media box height
func (p *Page) Height() float64 {
	return p.MediaBox.Height()
}

// Bytes returns the bytes the document was loaded from.
func (d *Document) Bytes() []byte {
	return d.data
}

// Close releases the document's buffers. The document is unusable
// afterwards.
func (d *Document) Close() error {
	d.closed = true
	d.data = nil
	d.objects = nil
	d.xref = nil
	d.objStms = nil
	d.Pages = nil
	return nil
}
