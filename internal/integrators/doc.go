// Package integrators advances [sim.Dynamics] by one time step.
//
//   - [Euler]: explicit first order
//   - [RK4]: classic fourth-order Runge-Kutta
//   - [RK45]: Dormand-Prince with embedded error estimate, usable for
//     adaptive stepping
//   - [Leapfrog]: kick-drift-kick for systems laid out as [q; qdot]
//
// Integrators keep scratch buffers and are not safe for concurrent use.
package integrators
