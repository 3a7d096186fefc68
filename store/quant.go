package store

import "math"

// Quantizer scalar-quantizes vectors into 4- or 8-bit codes using a
// per-dimension min/max range. Ranges only ever expand, so codes written
// earlier stay decodable, just at degraded precision. Raw floats remain
// the source of truth for distance computation; the quantized mirror
// exists for compact export and approximate reconstruction.
type Quantizer struct {
	dim            int
	bits           int
	bytesPerVector int

	min  []float32
	max  []float32
	data []byte // count*bytesPerVector codes, LSB-first packing
}

func newQuantizer(dim, bits int) *Quantizer {
	q := &Quantizer{
		dim:            dim,
		bits:           bits,
		bytesPerVector: (dim*bits + 7) / 8,
		min:            make([]float32, dim),
		max:            make([]float32, dim),
	}
	for i := 0; i < dim; i++ {
		q.min[i] = math.MaxFloat32
		q.max[i] = -math.MaxFloat32
	}
	return q
}

// Bits returns the code width per dimension.
func (q *Quantizer) Bits() int { return q.bits }

// BytesPerVector returns the packed code size of one vector.
func (q *Quantizer) BytesPerVector() int { return q.bytesPerVector }

// Min returns the per-dimension range minimums.
func (q *Quantizer) Min() []float32 { return q.min }

// Max returns the per-dimension range maximums.
func (q *Quantizer) Max() []float32 { return q.max }

// Data returns the packed codes for the first count slots. The slice
// aliases internal memory.
func (q *Quantizer) Data(count int) []byte {
	return q.data[:count*q.bytesPerVector]
}

// Update expands the per-dimension range to cover vec.
func (q *Quantizer) Update(vec []float32) {
	for i, v := range vec {
		if v < q.min[i] {
			q.min[i] = v
		}
		if v > q.max[i] {
			q.max[i] = v
		}
	}
}

// Encode packs vec into slot's code region. Values outside the current
// range clamp to its edges; a degenerate range maps to code zero.
func (q *Quantizer) Encode(slot int, vec []float32) {
	base := slot * q.bytesPerVector
	region := q.data[base : base+q.bytesPerVector]
	for i := range region {
		region[i] = 0
	}

	maxCode := uint32(1)<<q.bits - 1
	bitPos := 0
	for i, v := range vec {
		var code uint32
		if r := q.max[i] - q.min[i]; r >= 1e-9 {
			norm := (v - q.min[i]) / r
			if norm < 0 {
				norm = 0
			} else if norm > 1 {
				norm = 1
			}
			code = uint32(norm*float32(maxCode) + 0.5)
		}
		for b := 0; b < q.bits; b++ {
			if code&(1<<b) != 0 {
				region[bitPos/8] |= 1 << (bitPos % 8)
			}
			bitPos++
		}
	}
}

// Decode reconstructs slot's approximate floats into out.
func (q *Quantizer) Decode(slot int, out []float32) {
	base := slot * q.bytesPerVector
	region := q.data[base : base+q.bytesPerVector]

	maxCode := uint32(1)<<q.bits - 1
	bitPos := 0
	for i := 0; i < q.dim; i++ {
		var code uint32
		for b := 0; b < q.bits; b++ {
			if region[bitPos/8]&(1<<(bitPos%8)) != 0 {
				code |= 1 << b
			}
			bitPos++
		}
		r := q.max[i] - q.min[i]
		if r < 1e-9 {
			out[i] = q.min[i]
			continue
		}
		out[i] = q.min[i] + float32(code)/float32(maxCode)*r
	}
}

// Restore installs persisted quantization state for count slots.
func (q *Quantizer) Restore(min, max []float32, data []byte) {
	copy(q.min, min)
	copy(q.max, max)
	copy(q.data, data)
}
