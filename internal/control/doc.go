// Package control provides joint-space feedback controllers for mechanisms.
//
// Controllers implement [sim.Controller] and return one generalized force
// per degree of freedom:
//
//   - [None]: zero actuation
//   - [PID]: independent joint PID loops
//   - [GravityCompensation]: PD plus the static bias force C(q, 0)
//   - [ComputedTorque]: inverse dynamics on a PD reference acceleration
//   - [LQR]: full-state feedback with a given gain matrix
//
// Floating base coordinates are never actuated. Controllers with scratch
// space implement [sim.Forker] so ensembles can run them concurrently.
//
// # Usage
//
//	mc, _ := models.New("arm", models.Params{})
//	pid := control.NewPID(mc, control.Gains{Kp: 40, Kd: 4})
//	s := sim.New(mc, integrators.NewRK4(), pid)
package control
