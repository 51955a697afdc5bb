package rbd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss/tree"

	"github.com/san-kum/rbdyn/internal/spatial"
)

// DoFInfo names one slot of the q vector.
type DoFInfo struct {
	QIndex int
	BodyID int
	Body   string
	Label  string
}

// DoFOverview lists every q slot with the body and axis it drives. Virtual
// bodies report the name of the real body at the end of their chain.
func DoFOverview(m *Model) []DoFInfo {
	out := make([]DoFInfo, 0, m.QSize)
	for i := 1; i < m.BodyCount(); i++ {
		j := m.Joints[i]
		name := displayName(m, i)
		labels := jointLabels(j)
		for k, l := range labels {
			out = append(out, DoFInfo{QIndex: j.QIndex + k, BodyID: i, Body: name, Label: l})
		}
		if j.Type == JointTypeSpherical {
			out = append(out, DoFInfo{QIndex: j.WIndex, BodyID: i, Body: name, Label: "QW"})
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].QIndex < out[b].QIndex })
	return out
}

func FormatDoFOverview(m *Model) string {
	var b strings.Builder
	for _, d := range DoFOverview(m) {
		fmt.Fprintf(&b, "%3d: %s_%s\n", d.QIndex, d.Body, d.Label)
	}
	return b.String()
}

// Hierarchy renders the body tree. Virtual chains are collapsed into the
// real body they lead to; fixed bodies are listed under their movable parent.
func Hierarchy(m *Model) string {
	children := make(map[int][]int)
	for i := 1; i < m.BodyCount(); i++ {
		if m.Bodies[i].IsVirtual {
			continue
		}
		parent, err := m.GetParentBodyID(i)
		if err != nil {
			continue
		}
		children[parent] = append(children[parent], i)
	}

	fixed := make(map[int][]int)
	for k, fb := range m.FixedBodies {
		fixed[fb.MovableParent] = append(fixed[fb.MovableParent], m.FixedBodyDiscriminator+k)
	}

	var build func(id int) *tree.Tree
	build = func(id int) *tree.Tree {
		t := tree.Root(hierarchyLabel(m, id))
		for _, c := range children[id] {
			t.Child(build(c))
		}
		for _, f := range fixed[id] {
			t.Child(fmt.Sprintf("%s [fixed]", m.GetBodyName(f)))
		}
		return t
	}
	return build(0).String() + "\n"
}

func hierarchyLabel(m *Model, id int) string {
	name := m.GetBodyName(id)
	if id == 0 {
		return name
	}

	// collect the joint labels of the virtual chain leading to id
	var labels []string
	for b := id; b != 0; b = m.Lambda[b] {
		labels = append(jointLabels(m.Joints[b]), labels...)
		if !m.Bodies[m.Lambda[b]].IsVirtual {
			break
		}
	}
	return fmt.Sprintf("%s [ %s ]", name, strings.Join(labels, ", "))
}

func displayName(m *Model, id int) string {
	for m.Bodies[id].IsVirtual && len(m.Mu[id]) > 0 {
		id = m.Mu[id][0]
	}
	if name := m.GetBodyName(id); name != "" {
		return name
	}
	return fmt.Sprintf("body%d", id)
}

func jointLabels(j Joint) []string {
	switch j.Type {
	case JointTypeRevoluteX:
		return []string{"RX"}
	case JointTypeRevoluteY:
		return []string{"RY"}
	case JointTypeRevoluteZ:
		return []string{"RZ"}
	case JointTypeRevolute, JointTypePrismatic:
		return []string{axisLabel(j.Axes[0])}
	case JointTypeSpherical:
		return []string{"QX", "QY", "QZ"}
	case JointTypeEulerZYX:
		return []string{"RZ", "RY", "RX"}
	case JointTypeTranslationXYZ:
		return []string{"TX", "TY", "TZ"}
	default:
		return nil
	}
}

func axisLabel(a spatial.Vector) string {
	prefix, axis := "R", a.Angular()
	if axis.Len() == 0 {
		prefix, axis = "T", a.Linear()
	}
	switch {
	case axis[0] == 1:
		return prefix + "X"
	case axis[1] == 1:
		return prefix + "Y"
	case axis[2] == 1:
		return prefix + "Z"
	default:
		return fmt.Sprintf("%s(%.3g,%.3g,%.3g)", prefix, axis[0], axis[1], axis[2])
	}
}

