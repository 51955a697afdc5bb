// Package viz draws mechanisms in the terminal.
//
// The live viewer is a Bubble Tea program:
//
//   - [Model]: integrates a mechanism frame by frame and renders its
//     skeleton, a joint table and the energy history
//   - [Picker]: model menu that launches a [Model]
//   - [Canvas]: Braille pixel grid used for the skeleton and phase plots
//
// # Key Bindings
//
//	Space   - Pause/Resume simulation
//	R       - Reset to initial state
//	[ ]     - Step through recorded history
//	Tab     - Select controller gain
//	Up/Down - Scale the selected gain
//	A D W S - Orbit the camera
//	T       - Cycle color themes
//	?       - Show help overlay
//
// Static trajectory charts for stored runs are built with [PlotColumns],
// [PlotSeries] and [PhasePlot].
package viz
