package pose

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Vec3 is a point or direction in Angstrom space.
type Vec3 = r3.Vec

// Distance returns the euclidean distance between two points.
func Distance(a, b Vec3) float64 { return r3.Norm(r3.Sub(a, b)) }

const (
	// CADistance is the virtual CA-CA bond length of a trans peptide.
	CADistance = 3.8
	deg2rad    = math.Pi / 180
)

// NormalizeAngle maps an angle in degrees into (-180, 180].
func NormalizeAngle(deg float64) float64 {
	a := math.Mod(deg, 360)
	if a <= -180 {
		a += 360
	} else if a > 180 {
		a -= 360
	}
	return a
}

// place positions d so that |cd| = bond, angle(b,c,d) = angle and the
// dihedral (a,b,c,d) = torsion. Angles are in degrees.
func place(a, b, c Vec3, bond, angle, torsion float64) Vec3 {
	bc := r3.Unit(r3.Sub(c, b))
	var n Vec3
	if cross := r3.Cross(r3.Sub(b, a), bc); r3.Norm2(cross) > 0 {
		n = r3.Unit(cross)
	} else {
		// collinear reference frame; pick any perpendicular
		n = Vec3{Z: 1}
		if math.Abs(bc.Z) > 0.9 {
			n = Vec3{Y: 1}
		}
		n = r3.Unit(r3.Sub(n, r3.Scale(r3.Dot(n, bc), bc)))
	}
	m := r3.Cross(n, bc)
	th := angle * deg2rad
	to := torsion * deg2rad
	dx := -bond * math.Cos(th)
	dy := bond * math.Sin(th) * math.Cos(to)
	dz := bond * math.Sin(th) * math.Sin(to)
	return r3.Add(c, r3.Add(r3.Scale(dx, bc), r3.Add(r3.Scale(dy, m), r3.Scale(dz, n))))
}

// virtualAngle approximates the CA(i-1)-CA(i)-CA(i+1) angle from the
// residue's own backbone torsions: compact helical residues close the angle,
// extended residues open it.
func virtualAngle(phi, psi float64) float64 {
	if ClassifySS(phi, psi) == SSHelix {
		return 91
	}
	if ClassifySS(phi, psi) == SSStrand {
		return 122
	}
	return 108
}

// virtualDihedral approximates the CA(i-1)-CA(i)-CA(i+1)-CA(i+2) dihedral
// from psi(i) and phi(i+1).
func virtualDihedral(psi, nextPhi float64) float64 {
	return NormalizeAngle(psi + nextPhi + 180)
}
