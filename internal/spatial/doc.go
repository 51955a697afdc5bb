// Package spatial implements Featherstone's 6D spatial algebra.
//
// Motion and force vectors are stored as [Vector] with the angular part in
// the first three components and the linear part in the last three:
//
//   - [Vector]: spatial motion or force vector
//   - [Transform]: Plücker transform X = rot(E) * xlt(r)
//   - [RigidBodyInertia]: compact 10-parameter rigid-body inertia
//   - [Matrix]: dense 6x6 spatial matrix (articulated inertias)
//   - [Matrix63]: motion subspace of a 3-DoF joint
//
// Three-dimensional parts use [mgl64.Vec3] and [mgl64.Mat3]. A Transform
// maps coordinates from a parent frame to a child frame: E rotates parent
// coordinates into child coordinates and r is the child origin expressed in
// the parent frame.
//
// # Example
//
//	X := spatial.XRotZ(0.3).Mul(spatial.XTrans(mgl64.Vec3{1, 0, 0}))
//	vChild := X.Apply(vParent)
//	fParent := X.ApplyTranspose(fChild)
package spatial
