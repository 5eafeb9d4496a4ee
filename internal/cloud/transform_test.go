package cloud

import (
	"math"
	"testing"
)

// rotZ builds a rigid transform rotating by theta about Z with a translation.
func rotZ(theta, tx, ty, tz float64) Rigid {
	c, s := math.Cos(theta), math.Sin(theta)
	return Rigid{
		c, -s, 0, tx,
		s, c, 0, ty,
		0, 0, 1, tz,
		0, 0, 0, 1,
	}
}

func TestRigid_IdentityApply(t *testing.T) {
	x, y, z := Identity.Apply(1, 2, 3)
	if x != 1 || y != 2 || z != 3 {
		t.Fatalf("identity moved the point: %f %f %f", x, y, z)
	}
}

func TestRigid_ApplyRotation(t *testing.T) {
	r := rotZ(math.Pi/2, 0, 0, 0)
	x, y, z := r.Apply(1, 0, 0)
	if math.Abs(x) > 1e-12 || math.Abs(y-1) > 1e-12 || z != 0 {
		t.Fatalf("90 degree Z rotation of (1,0,0) = (%f,%f,%f), want (0,1,0)", x, y, z)
	}
}

func TestRigid_MulComposes(t *testing.T) {
	a := rotZ(math.Pi/2, 1, 0, 0)
	b := rotZ(-math.Pi/2, 0, 2, 0)
	// a*b applied to p equals a(b(p)).
	bx, by, bz := b.Apply(3, 4, 5)
	wx, wy, wz := a.Apply(bx, by, bz)
	gx, gy, gz := a.Mul(b).Apply(3, 4, 5)
	if math.Abs(gx-wx) > 1e-9 || math.Abs(gy-wy) > 1e-9 || math.Abs(gz-wz) > 1e-9 {
		t.Fatalf("composition mismatch: got (%f,%f,%f) want (%f,%f,%f)", gx, gy, gz, wx, wy, wz)
	}
}

func TestRigid_InvertRoundTrip(t *testing.T) {
	r := rotZ(0.7, 1.5, -2.5, 0.25)
	inv := r.Invert()
	x, y, z := inv.Mul(r).Apply(3, -1, 2)
	if math.Abs(x-3) > 1e-9 || math.Abs(y+1) > 1e-9 || math.Abs(z-2) > 1e-9 {
		t.Fatalf("inv*r is not identity: (%f,%f,%f)", x, y, z)
	}
}

func TestIsValidRigid(t *testing.T) {
	if !IsValidRigid(Identity) {
		t.Error("identity must be valid")
	}
	if !IsValidRigid(rotZ(1.1, 4, 5, 6)) {
		t.Error("rotation+translation must be valid")
	}

	var scaled Rigid = Identity
	scaled[0] = 2 // scaling is not rigid
	if IsValidRigid(scaled) {
		t.Error("scaled matrix must be invalid")
	}

	var badRow Rigid = Identity
	badRow[12] = 0.5
	if IsValidRigid(badRow) {
		t.Error("non [0 0 0 1] last row must be invalid")
	}
}
