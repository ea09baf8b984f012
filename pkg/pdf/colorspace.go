package pdf

import (
	"fmt"
	"math"
)

type csFamily int

const (
	csGray csFamily = iota
	csRGB
	csCMYK
	csLab
	csIndexed
	csTint
	csPattern
)

// colorSpace converts color components to sRGB-ish RGB in [0, 1].
type colorSpace struct {
	family csFamily
	n      int

	// Indexed
	base   *colorSpace
	hival  int
	lookup []byte

	// Separation and DeviceN
	alt  *colorSpace
	tint *function
	none bool

	// Lab
	white [3]float64
	rng   [4]float64
}

var (
	deviceGray = &colorSpace{family: csGray, n: 1}
	deviceRGB  = &colorSpace{family: csRGB, n: 3}
	deviceCMYK = &colorSpace{family: csCMYK, n: 4}
	patternCS  = &colorSpace{family: csPattern, n: 1}
)

// initial returns the initial color of the space.
func (cs *colorSpace) initial() []float64 {
	switch cs.family {
	case csCMYK:
		return []float64{0, 0, 0, 1}
	case csLab:
		return []float64{0, 0, 0}
	case csTint:
		v := make([]float64, cs.n)
		for i := range v {
			v[i] = 1
		}
		return v
	}
	return make([]float64, cs.n)
}

// defaultDecode returns the image Decode array for bpc-bit samples.
func (cs *colorSpace) defaultDecode(bpc int) []float64 {
	d := make([]float64, 0, 2*cs.n)
	for i := 0; i < cs.n; i++ {
		switch cs.family {
		case csIndexed:
			d = append(d, 0, float64(int(1)<<bpc-1))
		case csLab:
			if i == 0 {
				d = append(d, 0, 100)
			} else {
				d = append(d, cs.rng[2*(i-1)], cs.rng[2*(i-1)+1])
			}
		default:
			d = append(d, 0, 1)
		}
	}
	return d
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// rgb converts components, tolerating short or long input.
func (cs *colorSpace) rgb(v []float64) [3]float64 {
	at := func(i int) float64 {
		if i < len(v) {
			return v[i]
		}
		return 0
	}
	switch cs.family {
	case csGray:
		g := clamp01(at(0))
		return [3]float64{g, g, g}
	case csRGB:
		return [3]float64{clamp01(at(0)), clamp01(at(1)), clamp01(at(2))}
	case csCMYK:
		k := clamp01(at(3))
		return [3]float64{
			(1 - clamp01(at(0))) * (1 - k),
			(1 - clamp01(at(1))) * (1 - k),
			(1 - clamp01(at(2))) * (1 - k),
		}
	case csLab:
		return labToRGB(at(0), at(1), at(2), cs.white)
	case csIndexed:
		i := int(math.Round(at(0)))
		if i < 0 {
			i = 0
		}
		if i > cs.hival {
			i = cs.hival
		}
		n := cs.base.n
		comps := make([]float64, n)
		for c := 0; c < n; c++ {
			if off := i*n + c; off < len(cs.lookup) {
				comps[c] = float64(cs.lookup[off]) / 255
			}
		}
		if cs.base.family == csLab {
			dec := cs.base.defaultDecode(8)
			for c := range comps {
				comps[c] = dec[2*c] + comps[c]*(dec[2*c+1]-dec[2*c])
			}
		}
		return cs.base.rgb(comps)
	case csTint:
		if cs.none {
			return [3]float64{1, 1, 1}
		}
		if cs.tint != nil && cs.alt != nil {
			return cs.alt.rgb(cs.tint.eval(v))
		}
		// Without a usable tint transform, tints read as gray ink.
		var sum float64
		for _, t := range v {
			sum += clamp01(t)
		}
		g := 1 - clamp01(sum)
		return [3]float64{g, g, g}
	}
	return [3]float64{0, 0, 0}
}

// labToRGB converts CIE L*a*b* to sRGB using the given white point.
func labToRGB(l, a, b float64, white [3]float64) [3]float64 {
	fy := (l + 16) / 116
	fx := fy + a/500
	fz := fy - b/200
	g := func(t float64) float64 {
		if t > 6.0/29 {
			return t * t * t
		}
		return 3 * (6.0 / 29) * (6.0 / 29) * (t - 4.0/29)
	}
	x, y, z := white[0]*g(fx), white[1]*g(fy), white[2]*g(fz)
	r := 3.2406*x - 1.5372*y - 0.4986*z
	gr := -0.9689*x + 1.8758*y + 0.0415*z
	bl := 0.0557*x - 0.2040*y + 1.0570*z
	gamma := func(c float64) float64 {
		c = clamp01(c)
		if c <= 0.0031308 {
			return 12.92 * c
		}
		return 1.055*math.Pow(c, 1/2.4) - 0.055
	}
	return [3]float64{gamma(r), gamma(gr), gamma(bl)}
}

// resolveColorSpace reads a color space given by name or array. res is the
// resource dictionary used to look up named spaces.
func (d *Document) resolveColorSpace(obj Object, res Dictionary, depth int) (*colorSpace, error) {
	if depth > 8 {
		return nil, fmt.Errorf("color space nesting too deep")
	}
	obj = d.Resolve(obj)
	switch v := obj.(type) {
	case Name:
		switch v {
		case "DeviceGray", "G", "CalGray":
			return deviceGray, nil
		case "DeviceRGB", "RGB", "CalRGB":
			return deviceRGB, nil
		case "DeviceCMYK", "CMYK":
			return deviceCMYK, nil
		case "Pattern":
			return patternCS, nil
		case "Indexed", "I":
			return nil, fmt.Errorf("bare Indexed color space")
		}
		if named, ok := d.Resolve(res.Get("ColorSpace")).(Dictionary); ok {
			if def := named.Get(string(v)); def != nil {
				return d.resolveColorSpace(def, res, depth+1)
			}
		}
		return nil, fmt.Errorf("unknown color space %s", v)
	case Array:
		if len(v) == 0 {
			return nil, fmt.Errorf("empty color space array")
		}
		family, err := AsName(d.Resolve(v[0]))
		if err != nil {
			return nil, fmt.Errorf("color space family: %w", err)
		}
		return d.colorSpaceArray(family, v, res, depth)
	}
	return nil, fmt.Errorf("color space: %w", &TypeError{Want: ObjName, Got: TypeOf(obj)})
}

func (d *Document) colorSpaceArray(family Name, v Array, res Dictionary, depth int) (*colorSpace, error) {
	arg := func(i int) Object {
		if i < len(v) {
			return d.Resolve(v[i])
		}
		return Null{}
	}
	switch family {
	case "DeviceGray", "G", "CalGray":
		return deviceGray, nil
	case "DeviceRGB", "RGB", "CalRGB":
		return deviceRGB, nil
	case "DeviceCMYK", "CMYK":
		return deviceCMYK, nil
	case "Pattern":
		return patternCS, nil

	case "ICCBased":
		s, err := AsStream(arg(1))
		if err != nil {
			return nil, fmt.Errorf("ICCBased: %w", err)
		}
		if alt := s.Dictionary.Get("Alternate"); alt != nil {
			if cs, err := d.resolveColorSpace(alt, res, depth+1); err == nil {
				return cs, nil
			}
		}
		n, _ := s.Dictionary.GetInt("N")
		switch n {
		case 1:
			return deviceGray, nil
		case 4:
			return deviceCMYK, nil
		case 3:
			return deviceRGB, nil
		}
		return nil, fmt.Errorf("ICCBased: %d components", n)

	case "Lab":
		cs := &colorSpace{family: csLab, n: 3, white: [3]float64{0.9505, 1, 1.089}, rng: [4]float64{-100, 100, -100, 100}}
		if dict, ok := arg(1).(Dictionary); ok {
			if wp, ok := d.Resolve(dict.Get("WhitePoint")).(Array); ok && len(wp) == 3 {
				if f, err := numbers(wp); err == nil {
					copy(cs.white[:], f)
				}
			}
			if r, ok := d.Resolve(dict.Get("Range")).(Array); ok && len(r) == 4 {
				if f, err := numbers(r); err == nil {
					copy(cs.rng[:], f)
				}
			}
		}
		return cs, nil

	case "Indexed", "I":
		base, err := d.resolveColorSpace(v.getOr(1), res, depth+1)
		if err != nil {
			return nil, fmt.Errorf("Indexed base: %w", err)
		}
		hival, err := AsNumber(arg(2))
		if err != nil {
			return nil, fmt.Errorf("Indexed hival: %w", err)
		}
		cs := &colorSpace{family: csIndexed, n: 1, base: base, hival: int(hival)}
		switch l := arg(3).(type) {
		case String:
			cs.lookup = l.Value
		case Stream:
			data, err := l.Decode()
			if err != nil {
				return nil, fmt.Errorf("Indexed lookup: %w", err)
			}
			cs.lookup = data
		default:
			return nil, fmt.Errorf("Indexed lookup: %w", &TypeError{Want: ObjString, Got: TypeOf(l)})
		}
		return cs, nil

	case "Separation", "DeviceN":
		cs := &colorSpace{family: csTint, n: 1}
		if family == "DeviceN" {
			names, ok := arg(1).(Array)
			if !ok || len(names) == 0 {
				return nil, fmt.Errorf("DeviceN: missing colorant names")
			}
			cs.n = len(names)
		} else if name, _ := arg(1).(Name); name == "None" {
			cs.none = true
		}
		if alt, err := d.resolveColorSpace(v.getOr(2), res, depth+1); err == nil {
			cs.alt = alt
		}
		if fn, err := d.loadFunction(arg(3), 0); err == nil {
			cs.tint = fn
		}
		return cs, nil
	}
	return nil, fmt.Errorf("unsupported color space %s", family)
}

func (a Array) getOr(i int) Object {
	if i < len(a) {
		return a[i]
	}
	return Null{}
}

// function is a PDF function of the sampled, exponential or stitching
// type. PostScript calculator functions are not evaluated.
type function struct {
	kind   int
	domain []float64
	rng    []float64

	// Type 0
	size    []int
	bps     int
	encode  []float64
	decode  []float64
	samples []byte

	// Type 2
	c0, c1 []float64
	exp    float64

	// Type 3
	funcs  []*function
	bounds []float64
}

func (d *Document) loadFunction(obj Object, depth int) (*function, error) {
	if depth > 4 {
		return nil, fmt.Errorf("function nesting too deep")
	}
	obj = d.Resolve(obj)
	var dict Dictionary
	var data []byte
	switch v := obj.(type) {
	case Dictionary:
		dict = v
	case Stream:
		dict = v.Dictionary
		decoded, err := v.Decode()
		if err != nil {
			return nil, err
		}
		data = decoded
	default:
		return nil, &TypeError{Want: ObjDictionary, Got: TypeOf(obj)}
	}

	nums := func(key string) []float64 {
		if a, ok := d.Resolve(dict.Get(key)).(Array); ok {
			if f, err := numbers(a); err == nil {
				return f
			}
		}
		return nil
	}
	ft, _ := dict.GetInt("FunctionType")
	fn := &function{kind: int(ft), domain: nums("Domain"), rng: nums("Range")}
	if len(fn.domain) < 2 {
		fn.domain = []float64{0, 1}
	}

	switch fn.kind {
	case 0:
		for _, s := range nums("Size") {
			fn.size = append(fn.size, int(s))
		}
		if len(fn.size) != 1 || fn.size[0] < 1 || len(fn.rng) < 2 {
			return nil, fmt.Errorf("sampled function: only one-input functions are supported")
		}
		bps, _ := dict.GetInt("BitsPerSample")
		fn.bps = int(bps)
		fn.encode = nums("Encode")
		if len(fn.encode) < 2 {
			fn.encode = []float64{0, float64(fn.size[0] - 1)}
		}
		fn.decode = nums("Decode")
		if len(fn.decode) < len(fn.rng) {
			fn.decode = fn.rng
		}
		fn.samples = data
	case 2:
		fn.c0 = nums("C0")
		fn.c1 = nums("C1")
		if fn.c0 == nil {
			fn.c0 = []float64{0}
		}
		if fn.c1 == nil {
			fn.c1 = []float64{1}
		}
		fn.exp, _ = dict.GetFloat("N")
	case 3:
		fs, _ := d.Resolve(dict.Get("Functions")).(Array)
		for _, f := range fs {
			sub, err := d.loadFunction(f, depth+1)
			if err != nil {
				return nil, err
			}
			fn.funcs = append(fn.funcs, sub)
		}
		fn.bounds = nums("Bounds")
		fn.encode = nums("Encode")
		if len(fn.funcs) == 0 || len(fn.bounds) != len(fn.funcs)-1 || len(fn.encode) < 2*len(fn.funcs) {
			return nil, fmt.Errorf("malformed stitching function")
		}
	default:
		return nil, fmt.Errorf("function type %d is not supported", fn.kind)
	}
	return fn, nil
}

func interpolate(x, x0, x1, y0, y1 float64) float64 {
	if x1 == x0 {
		return y0
	}
	return y0 + (x-x0)*(y1-y0)/(x1-x0)
}

func (fn *function) clipRange(out []float64) []float64 {
	for i := range out {
		if 2*i+1 < len(fn.rng) {
			out[i] = math.Max(fn.rng[2*i], math.Min(out[i], fn.rng[2*i+1]))
		}
	}
	return out
}

// eval evaluates the function on the first input.
func (fn *function) eval(in []float64) []float64 {
	x := 0.0
	if len(in) > 0 {
		x = in[0]
	}
	x = math.Max(fn.domain[0], math.Min(x, fn.domain[1]))

	switch fn.kind {
	case 0:
		n := len(fn.rng) / 2
		e := interpolate(x, fn.domain[0], fn.domain[1], fn.encode[0], fn.encode[1])
		idx := int(math.Round(math.Max(0, math.Min(e, float64(fn.size[0]-1)))))
		out := make([]float64, n)
		maxv := math.Pow(2, float64(fn.bps)) - 1
		for j := 0; j < n; j++ {
			s := readSample(fn.samples, (idx*n+j)*fn.bps, fn.bps)
			out[j] = interpolate(float64(s), 0, maxv, fn.decode[2*j], fn.decode[2*j+1])
		}
		return fn.clipRange(out)
	case 2:
		out := make([]float64, len(fn.c0))
		p := math.Pow(x, fn.exp)
		for i := range out {
			c1 := 0.0
			if i < len(fn.c1) {
				c1 = fn.c1[i]
			}
			out[i] = fn.c0[i] + p*(c1-fn.c0[i])
		}
		return fn.clipRange(out)
	case 3:
		k := 0
		for k < len(fn.bounds) && x >= fn.bounds[k] {
			k++
		}
		lo, hi := fn.domain[0], fn.domain[1]
		if k > 0 {
			lo = fn.bounds[k-1]
		}
		if k < len(fn.bounds) {
			hi = fn.bounds[k]
		}
		return fn.clipRange(fn.funcs[k].eval([]float64{interpolate(x, lo, hi, fn.encode[2*k], fn.encode[2*k+1])}))
	}
	return nil
}

// readSample reads an n-bit big-endian sample starting at bit offset off.
func readSample(data []byte, off, n int) uint32 {
	if n == 8 {
		if i := off / 8; i < len(data) {
			return uint32(data[i])
		}
		return 0
	}
	var v uint32
	for b := 0; b < n; b++ {
		i := (off + b) / 8
		if i >= len(data) {
			return v << uint(n-b)
		}
		bit := (data[i] >> (7 - uint((off+b)%8))) & 1
		v = v<<1 | uint32(bit)
	}
	return v
}
