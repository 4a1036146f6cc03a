// Package pose holds the mutable conformational model searched by the engine.
//
// A Pose is an ordered list of residues addressed by 1-based index. Backbone
// torsions (phi, psi, omega) and side-chain chi angles are the only primary
// state; Cartesian positions, secondary structure, ABEGO classes and special
// bonds are derived from them. Derived coordinates are cached and rebuilt
// lazily after any torsion edit, so a read always observes the latest
// torsion values.
//
// Indexing outside [1, Size()] is a caller error. Methods that return an error
// report it as ErrResidueIndex; the accessor shorthands (Phi, Psi, SetPhi,
// SetPsi) panic like slice indexing does.
package pose
