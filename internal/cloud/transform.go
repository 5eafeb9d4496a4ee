package cloud

import "math"

// Rigid is a 4x4 rigid transform in row-major order:
// [m00,m01,m02,m03, m10,m11,m12,m13, m20,m21,m22,m23, m30,m31,m32,m33].
type Rigid [16]float64

// Identity is the identity rigid transform.
var Identity = Rigid{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// rigidTolerance is the tolerance for checking rotation sub-matrix validity.
const rigidTolerance = 0.01

// Apply transforms a single position through the rigid transform.
func (t Rigid) Apply(x, y, z float64) (float64, float64, float64) {
	nx := t[0]*x + t[1]*y + t[2]*z + t[3]
	ny := t[4]*x + t[5]*y + t[6]*z + t[7]
	nz := t[8]*x + t[9]*y + t[10]*z + t[11]
	return nx, ny, nz
}

// ApplyAll transforms every point, returning a new slice.
func (t Rigid) ApplyAll(points []Point) []Point {
	if t == Identity {
		out := make([]Point, len(points))
		copy(out, points)
		return out
	}
	out := make([]Point, len(points))
	for i, p := range points {
		x, y, z := t.Apply(float64(p.X), float64(p.Y), float64(p.Z))
		out[i] = Point{X: float32(x), Y: float32(y), Z: float32(z)}
	}
	return out
}

// Mul returns the composition t*o (o applied first).
func (t Rigid) Mul(o Rigid) Rigid {
	var r Rigid
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			var s float64
			for k := 0; k < 4; k++ {
				s += t[row*4+k] * o[k*4+col]
			}
			r[row*4+col] = s
		}
	}
	return r
}

// Invert returns the inverse of a rigid transform, exploiting the fact that
// the inverse rotation is the transpose: T⁻¹ = [Rᵀ | -Rᵀt].
func (t Rigid) Invert() Rigid {
	var r Rigid
	// Transpose the 3x3 rotation block.
	r[0], r[1], r[2] = t[0], t[4], t[8]
	r[4], r[5], r[6] = t[1], t[5], t[9]
	r[8], r[9], r[10] = t[2], t[6], t[10]
	// Translation: -Rᵀt.
	r[3] = -(r[0]*t[3] + r[1]*t[7] + r[2]*t[11])
	r[7] = -(r[4]*t[3] + r[5]*t[7] + r[6]*t[11])
	r[11] = -(r[8]*t[3] + r[9]*t[7] + r[10]*t[11])
	r[15] = 1
	return r
}

// IsValidRigid checks that the transform is a proper rigid transform:
// orthonormal rotation block with determinant ≈ 1 and last row [0 0 0 1].
func IsValidRigid(t Rigid) bool {
	r00, r01, r02 := t[0], t[1], t[2]
	r10, r11, r12 := t[4], t[5], t[6]
	r20, r21, r22 := t[8], t[9], t[10]

	det := r00*(r11*r22-r12*r21) - r01*(r10*r22-r12*r20) + r02*(r10*r21-r11*r20)
	if math.Abs(det-1.0) > rigidTolerance {
		return false
	}

	if t[12] != 0 || t[13] != 0 || t[14] != 0 || math.Abs(t[15]-1.0) > 0.001 {
		return false
	}

	return true
}
