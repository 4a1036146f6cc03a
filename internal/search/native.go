package search

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"confsearch/internal/pose"
)

// CompareFn measures a pose against a reference structure.
type CompareFn func(native, p *pose.Pose) (float64, error)

// CARMSD is the root mean square deviation of CA positions after p is
// optimally superimposed on native (Kabsch fit).
func CARMSD(native, p *pose.Pose) (float64, error) {
	if native.Size() != p.Size() {
		return 0, fmt.Errorf("native size %d differs from pose size %d", native.Size(), p.Size())
	}
	if p.Size() == 0 {
		return 0, nil
	}
	return superposedRMSD(native.Coords(), p.Coords())
}

// superposedRMSD centres both traces, rotates mobile onto ref and returns
// the remaining deviation.
func superposedRMSD(refTrace, mobileTrace []pose.Vec3) (float64, error) {
	ref, mobile := centred(refTrace), centred(mobileTrace)
	rot, err := kabsch(ref, mobile)
	if err != nil {
		return 0, err
	}
	sum := 0.0
	for i := range ref {
		sum += r3.Norm2(r3.Sub(ref[i], rot.MulVec(mobile[i])))
	}
	return math.Sqrt(sum / float64(len(ref))), nil
}

// kabsch returns the proper rotation that best maps mobile onto ref. Both
// sets must be centred.
func kabsch(ref, mobile []pose.Vec3) (*r3.Mat, error) {
	var cov r3.Mat
	for i := range ref {
		var outer r3.Mat
		outer.Outer(1, mobile[i], ref[i])
		cov.Add(&cov, &outer)
	}
	var svd mat.SVD
	if !svd.Factorize(&cov, mat.SVDFull) {
		return nil, errors.New("kabsch: singular value decomposition failed")
	}
	var u, v, rot mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	rot.Mul(&v, u.T())
	if mat.Det(&rot) < 0 {
		for r := 0; r < 3; r++ {
			v.Set(r, 2, -v.At(r, 2))
		}
		rot.Mul(&v, u.T())
	}
	out := r3.NewMat(nil)
	out.CloneFrom(&rot)
	return out, nil
}

func centred(xs []pose.Vec3) []pose.Vec3 {
	var c pose.Vec3
	for _, x := range xs {
		c = r3.Add(c, x)
	}
	c = r3.Scale(1/float64(len(xs)), c)
	out := make([]pose.Vec3, len(xs))
	for i, x := range xs {
		out[i] = r3.Sub(x, c)
	}
	return out
}
