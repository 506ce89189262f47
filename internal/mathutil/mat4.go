package mathutil

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// singularDet is the determinant magnitude treated as non-invertible.
const singularDet = 1e-12

// Compose builds a rigid transform T·R from a rotation and a translation.
func Compose(rot mgl64.Quat, t mgl64.Vec3) mgl64.Mat4 {
	return mgl64.Translate3D(t[0], t[1], t[2]).Mul4(rot.Normalize().Mat4())
}

// SafeInverse inverts m, returning identity when m is singular.
func SafeInverse(m mgl64.Mat4) mgl64.Mat4 {
	if math.Abs(m.Det()) < singularDet {
		return mgl64.Ident4()
	}
	return m.Inv()
}

// Translation returns the translation column of an affine matrix.
func Translation(m mgl64.Mat4) mgl64.Vec3 {
	return m.Col(3).Vec3()
}

// ToQuat extracts the rotation of an affine matrix. Axis scale is removed
// first and a mirrored basis is negated so the result is a unit quaternion.
func ToQuat(m mgl64.Mat4) mgl64.Quat {
	var cols [3]mgl64.Vec3
	for i := range cols {
		c := m.Col(i).Vec3()
		l := c.Len()
		if l < 1e-12 {
			return mgl64.QuatIdent()
		}
		cols[i] = c.Mul(1 / l)
	}

	basis := mgl64.Mat3FromCols(cols[0], cols[1], cols[2])
	if basis.Det() < 0 {
		basis = basis.Mul(-1)
	}
	return mgl64.Mat4ToQuat(basis.Mat4()).Normalize()
}
