// Package dynamics implements the recursive dynamics algorithms on an
// rbd.Model:
//
//   - [NonlinearEffects] / [InverseDynamics]: recursive Newton-Euler, O(n)
//   - [CompositeRigidBodyAlgorithm]: joint-space inertia matrix H
//   - [ForwardDynamicsLagrangian]: solve H qddot = tau - C with a dense factorization
//   - [CalcMInvTimesTau]: articulated-body evaluation of H^-1 tau, O(n)
//
// All functions write their results into caller-provided slices and use the
// given rbd.ModelData as scratch space. Generalized vectors use the model's
// q layout for positions (QSize entries) and its qdot layout for
// velocities, accelerations and forces (QDotSize entries).
package dynamics
