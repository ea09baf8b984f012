package pdf

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// maxImagePixels bounds the size of a decoded image.
const maxImagePixels = 1 << 26

var errJPX = errors.New("JPXDecode images are not supported")

// sampledImage is a decoded image XObject or inline image. Stencil masks
// carry only coverage, painted later with the fill color.
type sampledImage struct {
	rgba        *image.NRGBA
	stencil     *image.Alpha
	interpolate bool
}

func (si *sampledImage) bounds() image.Rectangle {
	if si.stencil != nil {
		return si.stencil.Rect
	}
	return si.rgba.Rect
}

// decodeImage decodes an image stream. res resolves named color spaces.
func (d *Document) decodeImage(s Stream, res Dictionary) (*sampledImage, error) {
	dict := s.Dictionary
	w, _ := AsNumber(d.Resolve(dict.Get("Width")))
	h, _ := AsNumber(d.Resolve(dict.Get("Height")))
	width, height := int(w), int(h)
	if width <= 0 || height <= 0 || width*height > maxImagePixels {
		return nil, fmt.Errorf("image size %dx%d", width, height)
	}
	si := &sampledImage{}
	if b, ok := d.Resolve(dict.Get("Interpolate")).(Boolean); ok {
		si.interpolate = bool(b)
	}

	if b, ok := d.Resolve(dict.Get("ImageMask")).(Boolean); ok && bool(b) {
		m, err := d.decodeStencil(s, width, height)
		if err != nil {
			return nil, err
		}
		si.stencil = m
		return si, nil
	}

	filters := s.Filters()
	var img *image.NRGBA
	var err error
	if n := len(filters); n > 0 && (filters[n-1] == "DCTDecode" || filters[n-1] == "DCT") {
		img, err = d.decodeJPEG(s)
	} else if n > 0 && filters[n-1] == "JPXDecode" {
		return nil, errJPX
	} else {
		img, err = d.decodeSamples(s, res, width, height)
	}
	if err != nil {
		return nil, err
	}

	switch m := d.Resolve(dict.Get("SMask")).(type) {
	case Stream:
		if alpha, err := d.decodeSoftMask(m, img.Rect); err == nil {
			applyAlpha(img, alpha)
		}
	default:
		switch mask := d.Resolve(dict.Get("Mask")).(type) {
		case Stream:
			if alpha, err := d.decodeExplicitMask(mask, img.Rect); err == nil {
				applyAlpha(img, alpha)
			}
		case Array:
			if ranges, err := numbers(mask); err == nil {
				d.applyColorKey(s, img, ranges)
			}
		}
	}
	si.rgba = img
	return si, nil
}

func (d *Document) decodeJPEG(s Stream) (*image.NRGBA, error) {
	data, err := s.Decode()
	if err != nil {
		return nil, err
	}
	src, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("DCTDecode: %w", err)
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, src, b.Min, draw.Src)
	return dst, nil
}

// bitsPerComponent reads BitsPerComponent, defaulting to def.
func (d *Document) bitsPerComponent(dict Dictionary, def int) (int, error) {
	bpc := def
	if v, err := AsNumber(d.Resolve(dict.Get("BitsPerComponent"))); err == nil {
		bpc = int(v)
	}
	switch bpc {
	case 1, 2, 4, 8, 16:
		return bpc, nil
	}
	return 0, fmt.Errorf("unsupported BitsPerComponent %d", bpc)
}

func (d *Document) decodeArray(dict Dictionary, n int) []float64 {
	if a, ok := d.Resolve(dict.Get("Decode")).(Array); ok && len(a) >= 2*n {
		if f, err := numbers(a[:2*n]); err == nil {
			return f
		}
	}
	return nil
}

// decodeSamples converts a sampled image to NRGBA.
func (d *Document) decodeSamples(s Stream, res Dictionary, width, height int) (*image.NRGBA, error) {
	dict := s.Dictionary
	csObj := dict.Get("ColorSpace")
	if csObj == nil {
		return nil, fmt.Errorf("image without ColorSpace")
	}
	cs, err := d.resolveColorSpace(csObj, res, 0)
	if err != nil {
		return nil, err
	}
	if cs.family == csPattern {
		return nil, fmt.Errorf("image in Pattern color space")
	}
	bpc, err := d.bitsPerComponent(dict, 8)
	if err != nil {
		return nil, err
	}
	data, err := s.Decode()
	if err != nil {
		return nil, err
	}

	n := cs.n
	decode := d.decodeArray(dict, n)
	if decode == nil {
		decode = cs.defaultDecode(bpc)
	}
	maxv := float64(int(1)<<bpc - 1)
	rowBytes := (width*n*bpc + 7) / 8
	img := image.NewNRGBA(image.Rect(0, 0, width, height))

	// Single-component images of up to 8 bits go through a lookup table.
	var lut [][3]uint8
	if n == 1 && bpc <= 8 {
		lut = make([][3]uint8, 1<<bpc)
		for v := range lut {
			rgb := cs.rgb([]float64{decode[0] + float64(v)*(decode[1]-decode[0])/maxv})
			lut[v] = [3]uint8{unitToByte(rgb[0]), unitToByte(rgb[1]), unitToByte(rgb[2])}
		}
	}
	plainRGB := cs.family == csRGB && bpc == 8 && isDefaultDecode(decode)

	comps := make([]float64, n)
	for y := 0; y < height; y++ {
		rowOff := y * rowBytes
		if rowOff >= len(data) {
			// Short data: the remaining rows stay transparent.
			break
		}
		row := data[rowOff:]
		out := img.Pix[y*img.Stride:]
		for x := 0; x < width; x++ {
			o := out[x*4:]
			o[3] = 0xFF
			switch {
			case lut != nil:
				c := lut[readSample(row, x*bpc, bpc)]
				o[0], o[1], o[2] = c[0], c[1], c[2]
			case plainRGB && (x+1)*3 <= len(row):
				o[0], o[1], o[2] = row[x*3], row[x*3+1], row[x*3+2]
			default:
				for c := 0; c < n; c++ {
					v := float64(readSample(row, (x*n+c)*bpc, bpc))
					comps[c] = decode[2*c] + v*(decode[2*c+1]-decode[2*c])/maxv
				}
				rgb := cs.rgb(comps)
				o[0], o[1], o[2] = unitToByte(rgb[0]), unitToByte(rgb[1]), unitToByte(rgb[2])
			}
		}
	}
	return img, nil
}

func isDefaultDecode(decode []float64) bool {
	for i, v := range decode {
		if v != float64(i%2) {
			return false
		}
	}
	return true
}

// decodeStencil decodes a 1-bit image mask. Coverage is 255 where the
// sample, after Decode, is 0.
func (d *Document) decodeStencil(s Stream, width, height int) (*image.Alpha, error) {
	data, err := s.Decode()
	if err != nil {
		return nil, err
	}
	paint := byte(0)
	if dec := d.decodeArray(s.Dictionary, 1); dec != nil && dec[0] > dec[1] {
		paint = 1
	}
	rowBytes := (width + 7) / 8
	m := image.NewAlpha(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		if y*rowBytes >= len(data) {
			break
		}
		row := data[y*rowBytes:]
		for x := 0; x < width; x++ {
			if byte(readSample(row, x, 1)) == paint {
				m.Pix[y*m.Stride+x] = 0xFF
			}
		}
	}
	return m, nil
}

// decodeSoftMask decodes an SMask image into alpha at the size r.
func (d *Document) decodeSoftMask(s Stream, r image.Rectangle) (*image.Alpha, error) {
	w, _ := s.Dictionary.GetInt("Width")
	h, _ := s.Dictionary.GetInt("Height")
	if w <= 0 || h <= 0 || w*h > maxImagePixels {
		return nil, fmt.Errorf("soft mask size %dx%d", w, h)
	}
	gray := s
	gray.Dictionary = s.Dictionary.Clone()
	gray.Dictionary["ColorSpace"] = Name("DeviceGray")
	var img *image.NRGBA
	var err error
	if f := s.Filters(); len(f) > 0 && (f[len(f)-1] == "DCTDecode" || f[len(f)-1] == "DCT") {
		img, err = d.decodeJPEG(gray)
	} else {
		img, err = d.decodeSamples(gray, nil, int(w), int(h))
	}
	if err != nil {
		return nil, err
	}
	src := image.NewAlpha(img.Rect)
	for i := range src.Pix {
		src.Pix[i] = img.Pix[i*4]
	}
	return resizeAlpha(src, r, draw.BiLinear), nil
}

// decodeExplicitMask decodes a stencil Mask into alpha at the size r.
func (d *Document) decodeExplicitMask(s Stream, r image.Rectangle) (*image.Alpha, error) {
	w, _ := s.Dictionary.GetInt("Width")
	h, _ := s.Dictionary.GetInt("Height")
	if w <= 0 || h <= 0 || w*h > maxImagePixels {
		return nil, fmt.Errorf("mask size %dx%d", w, h)
	}
	m, err := d.decodeStencil(s, int(w), int(h))
	if err != nil {
		return nil, err
	}
	return resizeAlpha(m, r, draw.NearestNeighbor), nil
}

func resizeAlpha(src *image.Alpha, r image.Rectangle, scaler draw.Scaler) *image.Alpha {
	if src.Rect == r {
		return src
	}
	dst := image.NewAlpha(r)
	scaler.Scale(dst, r, src, src.Rect, draw.Src, nil)
	return dst
}

func applyAlpha(img *image.NRGBA, alpha *image.Alpha) {
	for i, a := range alpha.Pix {
		img.Pix[i*4+3] = uint8(uint32(img.Pix[i*4+3]) * uint32(a) / 255)
	}
}

// applyColorKey makes pixels whose raw samples all fall in the key ranges
// transparent.
func (d *Document) applyColorKey(s Stream, img *image.NRGBA, ranges []float64) {
	bpc, err := d.bitsPerComponent(s.Dictionary, 8)
	if err != nil {
		return
	}
	data, err := s.Decode()
	if err != nil {
		return
	}
	n := len(ranges) / 2
	if n == 0 {
		return
	}
	width, height := img.Rect.Dx(), img.Rect.Dy()
	rowBytes := (width*n*bpc + 7) / 8
	for y := 0; y < height && y*rowBytes < len(data); y++ {
		row := data[y*rowBytes:]
		for x := 0; x < width; x++ {
			masked := true
			for c := 0; c < n && masked; c++ {
				v := float64(readSample(row, (x*n+c)*bpc, bpc))
				masked = v >= ranges[2*c] && v <= ranges[2*c+1]
			}
			if masked {
				img.Pix[y*img.Stride+x*4+3] = 0
			}
		}
	}
}
