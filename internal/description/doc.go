// Package description imports mechanisms from a YAML tree of links and
// joints. Revolute, continuous and prismatic joints become single-axis
// joints, fixed and mimic joints are merged into their parent, and the root
// link is either welded to the world or attached through one of the
// floating base parameterizations.
package description
