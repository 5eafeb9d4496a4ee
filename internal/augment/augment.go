// Package augment applies random geometric augmentation to point clouds:
// rotation, per-axis scaling, mirror symmetry and positional noise. The
// applied scale and rotation are returned with the points so evaluation can
// undo the transform against an un-augmented reference.
package augment

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/pointbatch/internal/cloud"
)

// Rotation selects the random rotation policy.
type Rotation string

const (
	// RotationNone applies no rotation.
	RotationNone Rotation = "none"
	// RotationVertical rotates by a random angle about the Z axis.
	RotationVertical Rotation = "vertical"
	// RotationAll applies a uniformly random 3D rotation.
	RotationAll Rotation = "all"
)

// Config controls the augmentation transform.
type Config struct {
	Rotation    Rotation
	ScaleMin    float64
	ScaleMax    float64
	Anisotropic bool
	Symmetries  [3]bool // allow mirror along X, Y, Z
	NoiseSigma  float64 // additive Gaussian noise, meters
}

// DefaultConfig returns the augmentation used for LiDAR segmentation
// training: vertical rotation, anisotropic scale in [0.8, 1.2), X mirror,
// 1 mm noise.
func DefaultConfig() Config {
	return Config{
		Rotation:    RotationVertical,
		ScaleMin:    0.8,
		ScaleMax:    1.2,
		Anisotropic: true,
		Symmetries:  [3]bool{true, false, false},
		NoiseSigma:  0.001,
	}
}

// Augmentor produces augmented copies of point sets. It is not safe for
// concurrent use; give each worker its own Augmentor.
type Augmentor struct {
	cfg   Config
	rng   *rand.Rand
	noise distuv.Normal
}

// New validates the config and creates an Augmentor seeded from src.
func New(cfg Config, rng *rand.Rand) (*Augmentor, error) {
	switch cfg.Rotation {
	case RotationNone, RotationVertical, RotationAll:
	default:
		return nil, fmt.Errorf("unknown rotation mode %q", cfg.Rotation)
	}
	if cfg.ScaleMax < cfg.ScaleMin {
		return nil, fmt.Errorf("scale range [%f, %f) is empty", cfg.ScaleMin, cfg.ScaleMax)
	}
	return &Augmentor{
		cfg: cfg,
		rng: rng,
		noise: distuv.Normal{
			Mu:    0,
			Sigma: cfg.NoiseSigma,
			Src:   rng,
		},
	}, nil
}

// Apply returns a rotated, scaled, mirrored and jittered copy of points,
// along with the per-axis scale (mirror folded into its sign) and the
// row-major 3x3 rotation that was applied. The input is never modified.
func (a *Augmentor) Apply(points []cloud.Point) ([]cloud.Point, [3]float32, [9]float32) {
	rot := a.randomRotation()
	scale := a.randomScale()

	out := make([]cloud.Point, len(points))
	for i, p := range points {
		x, y, z := applyRotation(rot, float64(p.X), float64(p.Y), float64(p.Z))
		x *= float64(scale[0])
		y *= float64(scale[1])
		z *= float64(scale[2])
		if a.cfg.NoiseSigma > 0 {
			x += a.noise.Rand()
			y += a.noise.Rand()
			z += a.noise.Rand()
		}
		out[i] = cloud.Point{X: float32(x), Y: float32(y), Z: float32(z)}
	}
	return out, scale, rot
}

func (a *Augmentor) randomScale() [3]float32 {
	span := a.cfg.ScaleMax - a.cfg.ScaleMin
	var s [3]float32
	if a.cfg.Anisotropic {
		for i := range s {
			s[i] = float32(a.cfg.ScaleMin + a.rng.Float64()*span)
		}
	} else {
		v := float32(a.cfg.ScaleMin + a.rng.Float64()*span)
		s = [3]float32{v, v, v}
	}
	for i, sym := range a.cfg.Symmetries {
		if sym && a.rng.IntN(2) == 1 {
			s[i] = -s[i]
		}
	}
	return s
}

func (a *Augmentor) randomRotation() [9]float32 {
	switch a.cfg.Rotation {
	case RotationVertical:
		theta := a.rng.Float64() * 2 * math.Pi
		c, s := math.Cos(theta), math.Sin(theta)
		return [9]float32{
			float32(c), float32(-s), 0,
			float32(s), float32(c), 0,
			0, 0, 1,
		}
	case RotationAll:
		return a.randomRotation3D()
	default:
		return [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1}
	}
}

// randomRotation3D draws a uniformly distributed rotation using Shoemake's
// subgroup method: a uniform unit quaternion converted to a matrix.
func (a *Augmentor) randomRotation3D() [9]float32 {
	u1 := a.rng.Float64()
	u2 := a.rng.Float64() * 2 * math.Pi
	u3 := a.rng.Float64() * 2 * math.Pi

	s1 := math.Sqrt(1 - u1)
	s2 := math.Sqrt(u1)
	qw := s1 * math.Sin(u2)
	qx := s1 * math.Cos(u2)
	qy := s2 * math.Sin(u3)
	qz := s2 * math.Cos(u3)

	return [9]float32{
		float32(1 - 2*(qy*qy+qz*qz)), float32(2 * (qx*qy - qz*qw)), float32(2 * (qx*qz + qy*qw)),
		float32(2 * (qx*qy + qz*qw)), float32(1 - 2*(qx*qx+qz*qz)), float32(2 * (qy*qz - qx*qw)),
		float32(2 * (qx*qz - qy*qw)), float32(2 * (qy*qz + qx*qw)), float32(1 - 2*(qx*qx+qy*qy)),
	}
}

func applyRotation(r [9]float32, x, y, z float64) (float64, float64, float64) {
	nx := float64(r[0])*x + float64(r[1])*y + float64(r[2])*z
	ny := float64(r[3])*x + float64(r[4])*y + float64(r[5])*z
	nz := float64(r[6])*x + float64(r[7])*y + float64(r[8])*z
	return nx, ny, nz
}
