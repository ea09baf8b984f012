package pdf

import (
	"image"
	"math"
)

// textState 表示文本状态参数 (Tc Tw Tz TL Tf Ts Tr)
type textState struct {
	font      *pdfFont
	size      float64
	charSpace float64
	wordSpace float64
	scale     float64 // 水平缩放, Tz/100
	leading   float64
	rise      float64
	mode      int
}

// graphicsState is the part of the interpreter state saved by q and
// restored by Q. The CTM maps user space straight to device pixels.
type graphicsState struct {
	ctm Matrix

	fillCS, strokeCS       *colorSpace
	fill, stroke           []float64
	fillPattern            bool
	strokePattern          bool
	fillAlpha, strokeAlpha float64

	lineWidth  float64
	lineCap    int
	lineJoin   int
	miterLimit float64
	dash       []float64
	dashPhase  float64

	// clip is a full-canvas coverage mask, nil when nothing is clipped.
	// Masks are replaced, never modified, so saved states may share them.
	clip *image.Alpha

	text textState
}

func newGraphicsState(base Matrix) graphicsState {
	return graphicsState{
		ctm:         base,
		fillCS:      deviceGray,
		strokeCS:    deviceGray,
		fill:        []float64{0},
		stroke:      []float64{0},
		fillAlpha:   1,
		strokeAlpha: 1,
		lineWidth:   1,
		miterLimit:  10,
		text:        textState{scale: 1},
	}
}

func (gs *graphicsState) fillRGB() [3]float64 {
	return gs.fillCS.rgb(gs.fill)
}

func (gs *graphicsState) strokeRGB() [3]float64 {
	return gs.strokeCS.rgb(gs.stroke)
}

// minStrokeWidth is the device width of hairlines.
const minStrokeWidth = 1.0

// strokeStyle returns the stroke parameters in device units.
func (gs *graphicsState) strokeStyle() strokeStyle {
	k := gs.ctm.expansion()
	st := strokeStyle{
		width:      math.Max(gs.lineWidth*k, minStrokeWidth),
		cap:        gs.lineCap,
		join:       gs.lineJoin,
		miterLimit: gs.miterLimit,
		dashPhase:  gs.dashPhase * k,
	}
	if len(gs.dash) > 0 {
		st.dash = make([]float64, 0, len(gs.dash)*2)
		for _, d := range gs.dash {
			st.dash = append(st.dash, d*k)
		}
		// An odd-length array repeats once more to pair dashes and gaps.
		if len(gs.dash)%2 == 1 {
			for _, d := range gs.dash {
				st.dash = append(st.dash, d*k)
			}
		}
	}
	return st
}

// setDash installs a dash pattern. An all-zero array means solid.
func (gs *graphicsState) setDash(a Array, phase float64) {
	v, err := numbers(a)
	if err != nil {
		return
	}
	solid := true
	for _, d := range v {
		if d < 0 {
			return
		}
		if d > 0 {
			solid = false
		}
	}
	if solid {
		v = nil
	}
	gs.dash, gs.dashPhase = v, phase
}
