package viz

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/rbdyn/internal/rbd"
)

// Camera projects z-up world coordinates onto a canvas. It orbits Center
// at Distance; Yaw turns about the world z axis and Pitch tilts the view.
type Camera struct {
	Center   mgl64.Vec3
	Yaw      float64
	Pitch    float64
	Distance float64
	Near     float64
	Zoom     float64
	// Extent is the world half-size that fills the shorter canvas side at
	// Zoom 1.
	Extent float64

	fitted bool
}

func NewCamera() *Camera {
	return &Camera{Yaw: 0, Pitch: 0.15, Distance: 10, Near: 0.1, Zoom: 1, Extent: 1}
}

func (c *Camera) Orbit(dyaw, dpitch float64) {
	c.Yaw += dyaw
	c.Pitch = mgl64.Clamp(c.Pitch+dpitch, -math.Pi/2, math.Pi/2)
}

func (c *Camera) ZoomIn()  { c.Zoom = math.Min(20, c.Zoom*1.2) }
func (c *Camera) ZoomOut() { c.Zoom = math.Max(0.05, c.Zoom/1.2) }

// Fit centers the camera on the points and sets Extent so they all fit.
func (c *Camera) Fit(points []mgl64.Vec3) {
	if len(points) == 0 {
		return
	}
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		for k := 0; k < 3; k++ {
			lo[k] = math.Min(lo[k], p[k])
			hi[k] = math.Max(hi[k], p[k])
		}
	}
	c.Center = lo.Add(hi).Mul(0.5)
	c.Extent = math.Max(hi.Sub(lo).Len()*0.6, 0.25)
	c.Distance = 10 * c.Extent
	c.fitted = true
}

// Refit makes the next frame call Fit again.
func (c *Camera) Refit() { c.fitted = false }

// view returns the point in camera axes: x right, y into the screen, z up.
func (c *Camera) view(p mgl64.Vec3) mgl64.Vec3 {
	rot := mgl64.Rotate3DX(-c.Pitch).Mul3(mgl64.Rotate3DZ(-c.Yaw))
	return rot.Mul3x1(p.Sub(c.Center))
}

// Project maps a world point to pixel coordinates on a w x h pixel grid.
// It returns the depth and whether the point lies in front of the camera
// and inside the grid.
func (c *Camera) Project(p mgl64.Vec3, w, h int) (int, int, float64, bool) {
	v := c.view(p)
	depth := c.Distance + v.Y()
	if depth < c.Near {
		return 0, 0, depth, false
	}
	perspective := c.Distance / depth
	ppu := float64(min(w, h)) / 2 / c.Extent * c.Zoom
	sx := int(math.Round(v.X()*perspective*ppu)) + w/2
	sy := h/2 - int(math.Round(v.Z()*perspective*ppu))
	return sx, sy, depth, sx >= 0 && sx < w && sy >= 0 && sy < h
}

type Edge struct {
	Start, End mgl64.Vec3
}

// Wireframe is a set of segments plus marker points in world coordinates.
type Wireframe struct {
	Edges  []Edge
	Points []mgl64.Vec3
}

func NewWireframe() *Wireframe { return &Wireframe{} }

func (w *Wireframe) AddEdge(s, e mgl64.Vec3) { w.Edges = append(w.Edges, Edge{s, e}) }
func (w *Wireframe) AddPoint(p mgl64.Vec3)   { w.Points = append(w.Points, p) }

func (w *Wireframe) Clear() {
	w.Edges = w.Edges[:0]
	w.Points = w.Points[:0]
}

// Vertices returns every edge end and marker point.
func (w *Wireframe) Vertices() []mgl64.Vec3 {
	out := make([]mgl64.Vec3, 0, 2*len(w.Edges)+len(w.Points))
	for _, e := range w.Edges {
		out = append(out, e.Start, e.End)
	}
	return append(out, w.Points...)
}

type projectedEdge struct {
	x1, y1, x2, y2 int
	depth          float64
}

// Render3D draws the wireframe far to near, marker points as small discs.
func Render3D(c *Canvas, w *Wireframe, cam *Camera) {
	if c == nil || w == nil || cam == nil {
		return
	}
	pw, ph := c.PixelWidth(), c.PixelHeight()
	proj := make([]projectedEdge, 0, len(w.Edges))
	for _, e := range w.Edges {
		x1, y1, d1, v1 := cam.Project(e.Start, pw, ph)
		x2, y2, d2, v2 := cam.Project(e.End, pw, ph)
		if d1 < cam.Near || d2 < cam.Near || (!v1 && !v2) {
			continue
		}
		proj = append(proj, projectedEdge{x1, y1, x2, y2, (d1 + d2) / 2})
	}
	sort.Slice(proj, func(i, j int) bool { return proj[i].depth > proj[j].depth })
	for _, e := range proj {
		c.DrawLine(e.x1, e.y1, e.x2, e.y2)
	}
	for _, p := range w.Points {
		if x, y, _, ok := cam.Project(p, pw, ph); ok {
			c.DrawDisc(x, y, 1)
		}
	}
}

// Skeleton builds the wireframe of a model in configuration q: one segment
// from each body's parent origin to its own origin and a marker at every
// body's center of mass. Bodies attached to the root through virtual
// bodies, i.e. floating bases, get no segment back to the origin.
func Skeleton(m *rbd.Model, d *rbd.ModelData, q []float64) (*Wireframe, error) {
	if err := rbd.UpdatePositions(m, d, q); err != nil {
		return nil, err
	}
	origin := func(id int) (mgl64.Vec3, error) {
		if id == 0 {
			return mgl64.Vec3{}, nil
		}
		return rbd.CalcBodyToBaseCoordinates(m, d, q, id, mgl64.Vec3{}, false)
	}

	w := NewWireframe()
	link := func(id, parent int, com mgl64.Vec3, mass float64) error {
		p, err := origin(parent)
		if err != nil {
			return err
		}
		o, err := origin(id)
		if err != nil {
			return err
		}
		if parent != 0 || m.IsFixedBodyID(id) || m.Lambda[id] == 0 {
			w.AddEdge(p, o)
		}
		if mass > 0 {
			c, err := rbd.CalcBodyToBaseCoordinates(m, d, q, id, com, false)
			if err != nil {
				return err
			}
			if com != (mgl64.Vec3{}) {
				w.AddEdge(o, c)
			}
			w.AddPoint(c)
		}
		return nil
	}

	for id := 1; id < m.BodyCount(); id++ {
		if m.Bodies[id].IsVirtual {
			continue
		}
		parent, err := m.GetParentBodyID(id)
		if err != nil {
			return nil, err
		}
		if err := link(id, parent, m.Bodies[id].COM, m.Bodies[id].Mass); err != nil {
			return nil, err
		}
	}
	for k, fb := range m.FixedBodies {
		if err := link(m.FixedBodyDiscriminator+k, fb.MovableParent, fb.COM, fb.Mass); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// AxesWireframe returns the three world axes with length l.
func AxesWireframe(l float64) *Wireframe {
	w := NewWireframe()
	o := mgl64.Vec3{}
	w.AddEdge(o, mgl64.Vec3{l, 0, 0})
	w.AddEdge(o, mgl64.Vec3{0, l, 0})
	w.AddEdge(o, mgl64.Vec3{0, 0, l})
	return w
}
