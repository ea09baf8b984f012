package pdf

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
)

// Pixmap is an opaque RGB raster, 3 bytes per pixel, rows top to bottom.
type Pixmap struct {
	Width  int
	Height int
	Pix    []byte
}

// NewPixmap returns a white pixmap.
func NewPixmap(width, height int) *Pixmap {
	pix := make([]byte, width*height*3)
	for i := range pix {
		pix[i] = 0xFF
	}
	return &Pixmap{Width: width, Height: height, Pix: pix}
}

// PixmapFromImage flattens img onto white.
func PixmapFromImage(img image.Image) *Pixmap {
	b := img.Bounds()
	p := &Pixmap{Width: b.Dx(), Height: b.Dy(), Pix: make([]byte, b.Dx()*b.Dy()*3)}

	if rgba, ok := img.(*image.RGBA); ok {
		for y := 0; y < p.Height; y++ {
			src := rgba.Pix[rgba.PixOffset(b.Min.X, b.Min.Y+y):]
			dst := p.Pix[y*p.Width*3:]
			for x := 0; x < p.Width; x++ {
				a := uint32(src[x*4+3])
				for c := 0; c < 3; c++ {
					// Premultiplied over white.
					dst[x*3+c] = uint8(uint32(src[x*4+c]) + 255 - a)
				}
			}
		}
		return p
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			p.Pix[i] = uint8((r + 0xFFFF - a) >> 8)
			p.Pix[i+1] = uint8((g + 0xFFFF - a) >> 8)
			p.Pix[i+2] = uint8((bl + 0xFFFF - a) >> 8)
			i += 3
		}
	}
	return p
}

// RGBAt returns the color of the pixel at (x, y).
func (p *Pixmap) RGBAt(x, y int) color.RGBA {
	if x < 0 || y < 0 || x >= p.Width || y >= p.Height {
		return color.RGBA{}
	}
	i := (y*p.Width + x) * 3
	return color.RGBA{R: p.Pix[i], G: p.Pix[i+1], B: p.Pix[i+2], A: 0xFF}
}

// Image returns the pixmap as an RGBA image.
func (p *Pixmap) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	for i, j := 0, 0; i < len(p.Pix); i, j = i+3, j+4 {
		img.Pix[j] = p.Pix[i]
		img.Pix[j+1] = p.Pix[i+1]
		img.Pix[j+2] = p.Pix[i+2]
		img.Pix[j+3] = 0xFF
	}
	return img
}

// EncodePNG encodes the pixmap as PNG.
func (p *Pixmap) EncodePNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, p.Image()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WritePPM writes the pixmap as binary PPM (P6), or as PGM (P5) with BT.601
// luma when gray is set.
func (p *Pixmap) WritePPM(w io.Writer, gray bool) error {
	bw := bufio.NewWriter(w)
	if !gray {
		fmt.Fprintf(bw, "P6\n%d %d\n255\n", p.Width, p.Height)
		bw.Write(p.Pix)
		return bw.Flush()
	}
	fmt.Fprintf(bw, "P5\n%d %d\n255\n", p.Width, p.Height)
	for i := 0; i+2 < len(p.Pix); i += 3 {
		y := (299*uint32(p.Pix[i]) + 587*uint32(p.Pix[i+1]) + 114*uint32(p.Pix[i+2]) + 500) / 1000
		bw.WriteByte(byte(y))
	}
	return bw.Flush()
}
