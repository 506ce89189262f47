package mathutil

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// QuatFromXYZW builds a quaternion from components stored x, y, z, w.
func QuatFromXYZW(q [4]float64) mgl64.Quat {
	return mgl64.Quat{W: q[3], V: mgl64.Vec3{q[0], q[1], q[2]}}
}

// QuatFromWXYZ builds a quaternion from components stored w, x, y, z.
func QuatFromWXYZ(q [4]float64) mgl64.Quat {
	return mgl64.Quat{W: q[0], V: mgl64.Vec3{q[1], q[2], q[3]}}
}

// WXYZ flattens q as w, x, y, z.
func WXYZ(q mgl64.Quat) [4]float64 {
	return [4]float64{q.W, q.V[0], q.V[1], q.V[2]}
}

// EulerToQuat converts Euler XYZ (radians) to a quaternion.
// X is applied first, then Y, then Z.
func EulerToQuat(rx, ry, rz float64) mgl64.Quat {
	cx, sx := math.Cos(rx*0.5), math.Sin(rx*0.5)
	cy, sy := math.Cos(ry*0.5), math.Sin(ry*0.5)
	cz, sz := math.Cos(rz*0.5), math.Sin(rz*0.5)

	return mgl64.Quat{
		W: cx*cy*cz + sx*sy*sz,
		V: mgl64.Vec3{
			sx*cy*cz - cx*sy*sz,
			cx*sy*cz + sx*cy*sz,
			cx*cy*sz - sx*sy*cz,
		},
	}
}

// RotationDifference returns the rotation r such that from·r == to,
// i.e. from⁻¹·to. A zero-length from yields to unchanged.
func RotationDifference(from, to mgl64.Quat) mgl64.Quat {
	if from.Dot(from) == 0 {
		return to
	}
	return from.Inverse().Mul(to)
}
