package viz

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"go.uber.org/zap"

	"github.com/san-kum/rbdyn/internal/logger"
	"github.com/san-kum/rbdyn/internal/models"
	"github.com/san-kum/rbdyn/internal/rbd"
	"github.com/san-kum/rbdyn/internal/sim"
)

const (
	canvasWidth     = 64
	canvasHeight    = 24
	historyCapacity = 600
	maxJointRows    = 12
)

var ErrDiverged = errors.New("viz: state diverged")

// Tunable is implemented by controllers whose gains can be changed while
// running.
type Tunable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64)
}

type resetter interface {
	Reset()
}

// Snapshot stores state at a specific time for replay.
type Snapshot struct {
	State  sim.State
	Time   float64
	Energy float64
}

type TickMsg time.Time

type Options struct {
	Title string
	Dt    float64
	// StepsPerFrame integration steps run between redraws.
	StepsPerFrame int
	FPS           int
	Theme         string
}

func (o Options) withDefaults() Options {
	if o.Dt <= 0 {
		o.Dt = 0.01
	}
	if o.StepsPerFrame <= 0 {
		o.StepsPerFrame = 1
	}
	if o.FPS <= 0 {
		o.FPS = 30
	}
	return o
}

type jointRow struct {
	label  string
	qIndex int
	// slot indexes the description joint table, -1 if none.
	slot int
}

// Model is the live viewer: it integrates a mechanism one frame at a time
// and draws its skeleton next to a joint table.
type Model struct {
	mc         *models.Mechanism
	integrator sim.Integrator
	controller sim.Controller
	data       *rbd.ModelData
	opts       Options

	x, x0 sim.State
	u     sim.Control
	t     float64
	err   error

	canvas  *Canvas
	camera  *Camera
	axes    bool
	rows    []jointRow
	running bool

	history  []Snapshot
	playHead int

	tunable       Tunable
	paramKeys     []string
	initialParams map[string]float64
	selected      int

	theme    Theme
	style    styles
	showHelp bool
}

// NewModel prepares a viewer starting from x0. The controller may be nil.
func NewModel(mc *models.Mechanism, integ sim.Integrator, ctrl sim.Controller, x0 sim.State, opts Options) (Model, error) {
	if len(x0) != mc.StateDim() {
		return Model{}, fmt.Errorf("%w: state has %d entries, want %d", rbd.ErrDimensionMismatch, len(x0), mc.StateDim())
	}
	opts = opts.withDefaults()
	if opts.Title == "" {
		opts.Title = mc.Name
	}
	theme, _ := GetTheme(opts.Theme)

	m := Model{
		mc:         mc,
		integrator: integ,
		controller: ctrl,
		data:       rbd.NewModelData(mc.Model),
		opts:       opts,
		x:          x0.Clone(),
		x0:         x0.Clone(),
		u:          make(sim.Control, mc.ControlDim()),
		canvas:     NewCanvas(canvasWidth, canvasHeight),
		camera:     NewCamera(),
		rows:       jointRows(mc),
		running:    true,
		history:    make([]Snapshot, 0, historyCapacity),
		playHead:   -1,
		theme:      theme,
		style:      newStyles(theme),
	}

	if t, ok := ctrl.(Tunable); ok {
		m.tunable = t
		m.initialParams = t.GetParams()
		for k := range m.initialParams {
			m.paramKeys = append(m.paramKeys, k)
		}
		sort.Strings(m.paramKeys)
	}
	m.record()
	return m, nil
}

// jointRows lists the q slots shown in the joint table.
func jointRows(mc *models.Mechanism) []jointRow {
	base := mc.Base.DoF()
	var rows []jointRow
	for _, d := range rbd.DoFOverview(mc.Model) {
		slot := -1
		if mc.Joints != nil && d.QIndex >= base && d.QIndex-base < mc.Joints.Len() {
			slot = d.QIndex - base
		}
		rows = append(rows, jointRow{label: d.Body + "_" + d.Label, qIndex: d.QIndex, slot: slot})
	}
	return rows
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(time.Second/time.Duration(m.opts.FPS), func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

// Update handles input events and steps the simulation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			if m.err == nil {
				m.running = !m.running
			}
		case "r":
			m.reset()
		case "[":
			m.scrub(-1)
		case "]":
			m.scrub(1)
		case "tab":
			m.cycleParam()
		case "up", "k":
			m.adjustParam(1.05)
		case "down", "j":
			m.adjustParam(0.95)
		case "t":
			m.theme = NextTheme(m.theme.Name)
			m.style = newStyles(m.theme)
		case "a", "left":
			m.camera.Orbit(-0.1, 0)
		case "d", "right":
			m.camera.Orbit(0.1, 0)
		case "w":
			m.camera.Orbit(0, 0.1)
		case "s":
			m.camera.Orbit(0, -0.1)
		case "+", "=":
			m.camera.ZoomIn()
		case "-", "_":
			m.camera.ZoomOut()
		case "f":
			m.camera.Refit()
		case "x":
			m.axes = !m.axes
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			if m.playHead == -1 {
				m.step()
			} else {
				m.playHead++
				if m.playHead >= len(m.history) {
					m.playHead = -1
				}
			}
		}
		return m, m.tick()
	}
	return m, nil
}

// step advances the simulation by one frame. Any failure stops it and is
// shown in the status line.
func (m *Model) step() {
	for i := 0; i < m.opts.StepsPerFrame; i++ {
		if err := m.advance(); err != nil {
			m.err = err
			m.running = false
			logger.Log.Warn("live simulation stopped", zap.Float64("t", m.t), zap.Error(err))
			return
		}
	}
	m.record()
}

func (m *Model) advance() error {
	if m.controller != nil {
		u, err := m.controller.Compute(m.x, m.t)
		if err != nil {
			return sim.SimError{Time: m.t, Message: "controller failed", Err: err}
		}
		m.u = u
	}
	next, err := m.integrator.Step(m.mc, m.x, m.u, m.t, m.opts.Dt)
	if err != nil {
		return sim.SimError{Time: m.t, Message: "integration failed", Err: err}
	}
	m.mc.Project(next)
	if !next.IsValid() {
		return sim.SimError{Time: m.t, Message: "invalid state", Err: ErrDiverged}
	}
	m.x = next
	m.t += m.opts.Dt
	return nil
}

func (m *Model) record() {
	energy, err := m.mc.Energy(m.x)
	if err != nil {
		energy = 0
	}
	m.history = append(m.history, Snapshot{State: m.x.Clone(), Time: m.t, Energy: energy})
	if len(m.history) > historyCapacity {
		m.history = m.history[1:]
	}
}

// scrub changes the playback position in history.
func (m *Model) scrub(dir int) {
	if m.playHead == -1 {
		if len(m.history) == 0 {
			return
		}
		m.playHead = len(m.history) - 1
		m.running = false
	}
	m.playHead += dir
	if m.playHead < 0 {
		m.playHead = 0
	}
	if m.playHead >= len(m.history) {
		m.playHead = -1
	}
}

// reset restores the initial state and gains.
func (m *Model) reset() {
	m.t = 0
	m.x = m.x0.Clone()
	m.u = make(sim.Control, m.mc.ControlDim())
	m.err = nil
	m.history = m.history[:0]
	m.playHead = -1
	m.running = true
	if r, ok := m.controller.(resetter); ok {
		r.Reset()
	}
	if m.tunable != nil {
		for k, v := range m.initialParams {
			m.tunable.SetParam(k, v)
		}
	}
	m.record()
}

func (m *Model) cycleParam() {
	if len(m.paramKeys) == 0 {
		return
	}
	m.selected = (m.selected + 1) % len(m.paramKeys)
}

func (m *Model) adjustParam(factor float64) {
	if m.tunable == nil || len(m.paramKeys) == 0 {
		return
	}
	key := m.paramKeys[m.selected]
	val := m.tunable.GetParams()[key]
	if val == 0 && factor > 1 {
		val = 0.1
	} else {
		val *= factor
	}
	m.tunable.SetParam(key, val)
}

// current returns the displayed snapshot, honoring replay.
func (m Model) current() Snapshot {
	if m.playHead >= 0 && m.playHead < len(m.history) {
		return m.history[m.playHead]
	}
	return m.history[len(m.history)-1]
}

// draw renders the skeleton of state x on the canvas.
func (m *Model) draw(x sim.State) error {
	q, _ := m.mc.Split(x)
	wf, err := Skeleton(m.mc.Model, m.data, q)
	if err != nil {
		return err
	}
	if !m.camera.fitted {
		m.camera.Fit(wf.Vertices())
	}
	m.canvas.Clear()
	if m.axes {
		Render3D(m.canvas, AxesWireframe(m.camera.Extent/2), m.camera)
	}
	Render3D(m.canvas, wf, m.camera)
	return nil
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return m.style.failed.Render("STOPPED: " + m.err.Error())
	case m.playHead != -1:
		last := m.history[len(m.history)-1].Time
		return m.style.paused.Render(fmt.Sprintf("REPLAY (%.2fs)", m.history[m.playHead].Time-last))
	case !m.running:
		return m.style.paused.Render("PAUSED")
	default:
		return m.style.running.Render("RUNNING")
	}
}

// View renders the TUI interface.
func (m Model) View() string {
	snap := m.current()
	if err := m.draw(snap.State); err != nil {
		return m.style.failed.Render(err.Error())
	}
	canvasView := m.style.canvas.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(GradientText(strings.ToUpper(m.opts.Title), m.theme.Primary, m.theme.Secondary) + "\n")
	s.WriteString(m.status() + "\n\n")

	fmt.Fprintf(&s, "%s%s\n", m.style.label.Render("Time"), m.style.value.Render(fmt.Sprintf("%.3fs", snap.Time)))
	fmt.Fprintf(&s, "%s%s\n", m.style.label.Render("Energy"), m.style.value.Render(fmt.Sprintf("%.5f", snap.Energy)))
	fmt.Fprintf(&s, "%s%s\n", m.style.label.Render("DoF"), m.style.value.Render(fmt.Sprint(m.mc.Model.DoFCount)))

	energies := make([]float64, len(m.history))
	for i, h := range m.history {
		energies[i] = h.Energy
	}
	if len(energies) > 1 {
		chart := asciigraph.Plot(energies, asciigraph.Height(4), asciigraph.Width(36), asciigraph.Caption("energy"))
		s.WriteString(m.style.graph.Render(chart) + "\n")
	}

	s.WriteString("\n" + m.style.header.Render("JOINTS") + "\n")
	s.WriteString(m.jointTable(snap.State))

	if m.tunable != nil {
		s.WriteString("\n" + m.style.header.Render("GAINS") + "\n")
		params := m.tunable.GetParams()
		for i, k := range m.paramKeys {
			line := fmt.Sprintf("%-4s %8.3f", k, params[k])
			if i == m.selected {
				s.WriteString(m.style.active.Render("> "+line) + "\n")
			} else {
				s.WriteString("  " + m.style.muted.Render(line) + "\n")
			}
		}
	}

	s.WriteString(m.style.muted.Render("\nspace:pause r:reset q:quit ?:help"))
	view := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, m.style.panel.Render(s.String()))
	if m.showHelp {
		return m.help() + "\n" + view
	}
	return view
}

func (m Model) jointTable(x sim.State) string {
	q, _ := m.mc.Split(x)
	var s strings.Builder
	for i, r := range m.rows {
		if i == maxJointRows {
			s.WriteString(m.style.muted.Render(fmt.Sprintf("  ... %d more", len(m.rows)-maxJointRows)) + "\n")
			break
		}
		v := q[r.qIndex]
		bar := m.style.LimitBar(0, 0, 0, 12)
		if r.slot >= 0 {
			bar = m.style.LimitBar(v, m.mc.Joints.PositionMin[r.slot], m.mc.Joints.PositionMax[r.slot], 12)
		}
		fmt.Fprintf(&s, "%s %s %8.3f\n", m.style.label.Render(trim(r.label, 17)), bar, v)
	}
	if len(m.u) > 0 {
		fmt.Fprintf(&s, "%s %s\n", m.style.label.Render("effort"), m.style.Sparkline(m.u, 24))
	}
	return s.String()
}

func (m Model) help() string {
	keys := [][2]string{
		{"space", "pause or resume"},
		{"r", "reset"},
		{"[ ]", "step back or forward through history"},
		{"tab", "select gain"},
		{"up/k down/j", "scale gain by 5%"},
		{"a d w s", "orbit camera"},
		{"+ -", "zoom"},
		{"f", "refit camera"},
		{"x", "toggle world axes"},
		{"t", "cycle theme"},
		{"q", "quit"},
	}
	var s strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&s, "%s %s\n", m.style.active.Render(fmt.Sprintf("%-12s", k[0])), m.style.value.Render(k[1]))
	}
	return lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(m.theme.Muted).Padding(0, 1).Render(s.String())
}

func trim(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// State returns the current simulation state and time.
func (m Model) State() (sim.State, float64) { return m.x.Clone(), m.t }

// Err returns the error that stopped the simulation, if any.
func (m Model) Err() error { return m.err }

// Run starts the viewer in the alternate screen.
func Run(m tea.Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
