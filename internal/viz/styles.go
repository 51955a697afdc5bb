package viz

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// styles are the lipgloss styles of one theme.
type styles struct {
	panel   lipgloss.Style
	canvas  lipgloss.Style
	header  lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	active  lipgloss.Style
	muted   lipgloss.Style
	graph   lipgloss.Style
	running lipgloss.Style
	paused  lipgloss.Style
	failed  lipgloss.Style
	high    lipgloss.Style
	mid     lipgloss.Style
	low     lipgloss.Style
}

func newStyles(t Theme) styles {
	return styles{
		panel: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(t.Muted).
			Padding(0, 2).
			Width(54),
		canvas:  lipgloss.NewStyle().Padding(1, 2).Foreground(t.Secondary),
		header:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		label:   lipgloss.NewStyle().Foreground(t.Muted).Width(18),
		value:   lipgloss.NewStyle().Foreground(t.Text),
		active:  lipgloss.NewStyle().Bold(true).Foreground(t.Accent),
		muted:   lipgloss.NewStyle().Foreground(t.Muted),
		graph:   lipgloss.NewStyle().Foreground(t.Secondary),
		running: lipgloss.NewStyle().Bold(true).Foreground(t.Success),
		paused:  lipgloss.NewStyle().Bold(true).Foreground(t.Warning),
		failed:  lipgloss.NewStyle().Bold(true).Foreground(t.Error),
		high:    lipgloss.NewStyle().Foreground(t.Error),
		mid:     lipgloss.NewStyle().Foreground(t.Warning),
		low:     lipgloss.NewStyle().Foreground(t.Success),
	}
}

// GradientText colors each rune of text along a line from start to end.
func GradientText(text string, start, end lipgloss.Color) string {
	runes := []rune(text)
	if len(runes) == 0 {
		return ""
	}
	sr, sg, sb := parseHex(string(start))
	er, eg, eb := parseHex(string(end))

	var b strings.Builder
	for i, c := range runes {
		t := 0.0
		if len(runes) > 1 {
			t = float64(i) / float64(len(runes)-1)
		}
		col := hexColor(lerp(sr, er, t), lerp(sg, eg, t), lerp(sb, eb, t))
		b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(col)).Render(string(c)))
	}
	return b.String()
}

// LimitBar draws where v sits inside [lo, hi]. The bar turns to the
// warning and error colors near and past the limits. It returns a blank
// bar when the range is empty.
func (s styles) LimitBar(v, lo, hi float64, width int) string {
	if !(hi > lo) {
		return s.muted.Render(strings.Repeat("·", width))
	}
	frac := (v - lo) / (hi - lo)
	pos := int(frac * float64(width-1))
	pos = max(0, min(width-1, pos))

	bar := []rune(strings.Repeat("─", width))
	bar[pos] = '●'
	switch {
	case frac < 0 || frac > 1:
		return s.high.Render(string(bar))
	case frac < 0.1 || frac > 0.9:
		return s.mid.Render(string(bar))
	default:
		return s.low.Render(string(bar))
	}
}

// Sparkline renders the last width values as block characters scaled
// between their min and max.
func (s styles) Sparkline(values []float64, width int) string {
	if len(values) == 0 {
		return s.muted.Render(strings.Repeat("─", width))
	}
	if len(values) > width {
		values = values[len(values)-width:]
	}
	blocks := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	out := make([]rune, len(values))
	for i, v := range values {
		idx := int((v - lo) / rng * float64(len(blocks)-1))
		out[i] = blocks[max(0, min(len(blocks)-1, idx))]
	}
	return s.graph.Render(string(out))
}

func lerp(a, b int, t float64) int {
	return int(float64(a) + t*float64(b-a))
}

func parseHex(hex string) (r, g, b int) {
	if len(hex) != 7 || hex[0] != '#' {
		return 255, 255, 255
	}
	v, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return 255, 255, 255
	}
	return int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)
}

func hexColor(r, g, b int) string {
	clamp := func(v int) int { return max(0, min(255, v)) }
	s := strconv.FormatUint(uint64(clamp(r)<<16|clamp(g)<<8|clamp(b)), 16)
	return "#" + strings.Repeat("0", 6-len(s)) + s
}
