package pdf

import "fmt"

// NextObjectNumber returns the number the next added object will receive.
func (d *Document) NextObjectNumber() int {
	if d.size < 1 {
		return 1
	}
	return d.size
}

// Add registers obj as a new indirect object and returns its reference.
func (d *Document) Add(obj Object) Reference {
	num := d.NextObjectNumber()
	d.size = num + 1
	d.xref[num] = xrefEntry{InUse: true, Created: true}
	d.objects[num] = obj
	return Reference{ObjectNumber: num}
}

// Set replaces the value of an existing indirect object.
func (d *Document) Set(ref Reference, obj Object) error {
	if d.closed {
		return ErrClosed
	}
	entry, ok := d.xref[ref.ObjectNumber]
	if !ok || !entry.InUse {
		return fmt.Errorf("set %s: object not in use", ref)
	}
	d.objects[ref.ObjectNumber] = obj
	return nil
}

// NewDictionary returns an empty dictionary for use as a direct object.
func (d *Document) NewDictionary() Dictionary {
	return Dictionary{}
}

// NewArray returns an array of the given elements for use as a direct
// object.
func (d *Document) NewArray(elems ...Object) Array {
	return append(Array{}, elems...)
}

// AddStream adds a stream object whose data is stored unfiltered. Filter
// entries in dict are kept, so callers may supply already-encoded data.
func (d *Document) AddStream(dict Dictionary, data []byte) Reference {
	if dict == nil {
		dict = Dictionary{}
	} else {
		dict = dict.Clone()
	}
	dict["Length"] = Integer(len(data))
	return d.Add(Stream{Dictionary: dict, Data: data})
}

// AddImage adds an 8-bit DeviceRGB image XObject holding the pixmap.
func (d *Document) AddImage(p *Pixmap) Reference {
	return d.AddStream(Dictionary{
		"Type":             Name("XObject"),
		"Subtype":          Name("Image"),
		"Width":            Integer(p.Width),
		"Height":           Integer(p.Height),
		"ColorSpace":       Name("DeviceRGB"),
		"BitsPerComponent": Integer(8),
	}, p.Pix)
}
