// Package mathtest holds approximate comparisons for tests.
package mathtest

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// QuatEqual reports whether a and b are within eps of each other, treating
// q and -q as the same rotation. The distance is absolute, so components
// near zero are compared with the same tolerance as the rest.
func QuatEqual(a, b mgl64.Quat, eps float64) bool {
	return a.Sub(b).Len() < eps || a.Add(b).Len() < eps
}

// MatEqual reports whether every element of a and b differs by less than eps.
func MatEqual(a, b mgl64.Mat4, eps float64) bool {
	for i := range a {
		if math.Abs(a[i]-b[i]) >= eps {
			return false
		}
	}
	return true
}
