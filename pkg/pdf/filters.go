package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/hhrutter/lzw"
	"github.com/klauspost/compress/zlib"
	"golang.org/x/image/ccitt"
)

// ErrUnsupportedFilter is returned for stream filters the toolkit cannot decode.
var ErrUnsupportedFilter = errors.New("unsupported filter")

// Filters returns the filter chain of the stream in application order.
func (s Stream) Filters() []Name {
	switch f := s.Dictionary.Get("Filter").(type) {
	case Name:
		return []Name{f}
	case Array:
		var out []Name
		for _, item := range f {
			if n, ok := item.(Name); ok {
				out = append(out, n)
			}
		}
		return out
	}
	return nil
}

// decodeParms returns the parameter dictionary for the i-th filter.
func (s Stream) decodeParms(i int) Dictionary {
	var parms Object = s.Dictionary.Get("DecodeParms")
	if parms == nil {
		parms = s.Dictionary.Get("DP")
	}
	switch p := parms.(type) {
	case Dictionary:
		if i == 0 {
			return p
		}
	case Array:
		if i < len(p) {
			if d, ok := p[i].(Dictionary); ok {
				return d
			}
		}
	}
	return Dictionary{}
}

// Decode decodes the stream data based on filters. Image codecs (DCTDecode,
// JPXDecode) terminate the chain: their payload is returned still encoded.
func (s Stream) Decode() ([]byte, error) {
	data := s.Data
	for i, filter := range s.Filters() {
		if filter == "DCTDecode" || filter == "DCT" || filter == "JPXDecode" {
			return data, nil
		}
		var err error
		data, err = applyFilter(data, filter, s.decodeParms(i))
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", filter, err)
		}
	}
	return data, nil
}

// applyFilter applies a single filter to decode data
func applyFilter(data []byte, filter Name, params Dictionary) ([]byte, error) {
	switch filter {
	case "FlateDecode", "Fl":
		return flateDecode(data, params)
	case "ASCIIHexDecode", "AHx":
		return asciiHexDecode(data)
	case "ASCII85Decode", "A85":
		return ascii85Decode(data)
	case "LZWDecode", "LZW":
		return lzwDecode(data, params)
	case "RunLengthDecode", "RL":
		return runLengthDecode(data)
	case "CCITTFaxDecode", "CCF":
		return ccittFaxDecode(data, params)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, filter)
	}
}

// flateDecode decompresses zlib data. A damaged tail is tolerated as long as
// some data came out, which matches how viewers treat truncated streams.
func flateDecode(data []byte, params Dictionary) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	decoded, err := io.ReadAll(r)
	if err != nil && len(decoded) == 0 {
		return nil, err
	}
	return applyPredictor(decoded, params)
}

// flateEncode compresses data with zlib.
func flateEncode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.DefaultCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func lzwDecode(data []byte, params Dictionary) ([]byte, error) {
	earlyChange := true
	if ec, ok := params.GetInt("EarlyChange"); ok {
		earlyChange = ec != 0
	}
	r := lzw.NewReader(bytes.NewReader(data), earlyChange)
	defer r.Close()

	decoded, err := io.ReadAll(r)
	if err != nil && len(decoded) == 0 {
		return nil, err
	}
	return applyPredictor(decoded, params)
}

// ccittFaxDecode expands Group 3/4 fax data to one bit per pixel with 1 as
// white, the default sample convention for a DeviceGray image mask.
func ccittFaxDecode(data []byte, params Dictionary) ([]byte, error) {
	k, _ := params.GetInt("K")
	columns, ok := params.GetInt("Columns")
	if !ok {
		columns = 1728
	}
	rows, ok := params.GetInt("Rows")
	if !ok || rows <= 0 {
		rows = ccitt.AutoDetectHeight
	}
	align := false
	if b, ok := params.Get("EncodedByteAlign").(Boolean); ok {
		align = bool(b)
	}
	invert := false
	if b, ok := params.Get("BlackIs1").(Boolean); ok {
		invert = bool(b)
	}

	sf := ccitt.Group3
	if k < 0 {
		sf = ccitt.Group4
	}
	r := ccitt.NewReader(bytes.NewReader(data), ccitt.MSB, sf, int(columns), int(rows),
		&ccitt.Options{Align: align, Invert: invert})
	decoded, err := io.ReadAll(r)
	if err != nil && len(decoded) == 0 {
		return nil, err
	}
	return decoded, nil
}

// applyPredictor undoes TIFF (2) and PNG (10-15) predictors.
func applyPredictor(data []byte, params Dictionary) ([]byte, error) {
	predictor, _ := params.GetInt("Predictor")
	if predictor <= 1 {
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

	if predictor == 2 {
		if bpc != 8 {
			return data, nil
		}
		out := append([]byte(nil), data...)
		for row := 0; row+rowBytes <= len(out); row += rowBytes {
			for i := bytesPerPixel; i < rowBytes; i++ {
				out[row+i] += out[row+i-bytesPerPixel]
			}
		}
		return out, nil
	}

	stride := rowBytes + 1
	rows := len(data) / stride
	result := make([]byte, rows*rowBytes)
	prevRow := make([]byte, rowBytes)

	for row := 0; row < rows; row++ {
		src := data[row*stride+1 : (row+1)*stride]
		dst := result[row*rowBytes : (row+1)*rowBytes]

		switch data[row*stride] {
		case 1: // Sub
			for i := range dst {
				var left byte
				if i >= bytesPerPixel {
					left = dst[i-bytesPerPixel]
				}
				dst[i] = src[i] + left
			}
		case 2: // Up
			for i := range dst {
				dst[i] = src[i] + prevRow[i]
			}
		case 3: // Average
			for i := range dst {
				var left byte
				if i >= bytesPerPixel {
					left = dst[i-bytesPerPixel]
				}
				dst[i] = src[i] + byte((int(left)+int(prevRow[i]))/2)
			}
		case 4: // Paeth
			for i := range dst {
				var left, upLeft byte
				if i >= bytesPerPixel {
					left = dst[i-bytesPerPixel]
					upLeft = prevRow[i-bytesPerPixel]
				}
				dst[i] = src[i] + paethPredictor(left, prevRow[i], upLeft)
			}
		default:
			copy(dst, src)
		}
		copy(prevRow, dst)
	}

	return result, nil
}

// paethPredictor implements the Paeth predictor algorithm
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

// asciiHexDecode decodes ASCII hex encoded data
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
		val, ok := unhex(b)
		if !ok {
			return nil, fmt.Errorf("invalid hex character: %q", b)
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

func unhex(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	}
	return 0, false
}

// ascii85Decode decodes ASCII85 encoded data
func ascii85Decode(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(bytes.TrimSpace(data), []byte("<~"))
	var result []byte
	var tuple uint32
	var count int

	for _, b := range data {
		if b == '~' {
			break
		}
		if isWhitespace(b) {
			continue
		}
		if b == 'z' && count == 0 {
			result = append(result, 0, 0, 0, 0)
			continue
		}
		if b < '!' || b > 'u' {
			return nil, fmt.Errorf("invalid ASCII85 character: %q", b)
		}
		tuple = tuple*85 + uint32(b-'!')
		count++
		if count == 5 {
			result = append(result, byte(tuple>>24), byte(tuple>>16), byte(tuple>>8), byte(tuple))
			tuple = 0
			count = 0
		}
	}

	if count > 0 {
		for i := count; i < 5; i++ {
			tuple = tuple*85 + 84
		}
		for i := 0; i < count-1; i++ {
			result = append(result, byte(tuple>>(24-i*8)))
		}
	}
	return result, nil
}

// runLengthDecode decodes run-length encoded data
func runLengthDecode(data []byte) ([]byte, error) {
	var result []byte
	for i := 0; i < len(data); {
		length := int(data[i])
		i++
		if length == 128 {
			break
		}
		if length < 128 {
			n := length + 1
			if i+n > len(data) {
				return nil, io.ErrUnexpectedEOF
			}
			result = append(result, data[i:i+n]...)
			i += n
			continue
		}
		if i >= len(data) {
			return nil, io.ErrUnexpectedEOF
		}
		result = append(result, bytes.Repeat(data[i:i+1], 257-length)...)
		i++
	}
	return result, nil
}
