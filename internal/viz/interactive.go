package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// PickerItem is one entry of the model menu.
type PickerItem struct {
	Name    string
	Summary string
}

// Launcher builds the viewer for the chosen item.
type Launcher func(name string) (Model, error)

// Picker shows a model menu and hands over to the live viewer once an
// item is chosen.
type Picker struct {
	items  []PickerItem
	cursor int
	launch Launcher
	live   *Model
	err    error
	theme  Theme
}

func NewPicker(items []PickerItem, launch Launcher) Picker {
	return Picker{items: items, launch: launch, theme: Themes[0]}
}

func (p Picker) Init() tea.Cmd { return nil }

func (p Picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if p.live != nil {
		if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
			p.live = nil
			return p, nil
		}
		next, cmd := p.live.Update(msg)
		lm := next.(Model)
		p.live = &lm
		return p, cmd
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}
	switch key.String() {
	case "q", "ctrl+c", "esc":
		return p, tea.Quit
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < len(p.items)-1 {
			p.cursor++
		}
	case "enter", " ":
		if len(p.items) == 0 {
			return p, nil
		}
		lm, err := p.launch(p.items[p.cursor].Name)
		if err != nil {
			p.err = err
			return p, nil
		}
		p.err = nil
		p.live = &lm
		return p, lm.Init()
	}
	return p, nil
}

// Selected returns the highlighted item.
func (p Picker) Selected() PickerItem {
	if len(p.items) == 0 {
		return PickerItem{}
	}
	return p.items[p.cursor]
}

func (p Picker) View() string {
	if p.live != nil {
		return p.live.View() + "\n" + lipgloss.NewStyle().Foreground(p.theme.Muted).Render("esc: back to menu")
	}
	st := newStyles(p.theme)

	var s strings.Builder
	s.WriteString(GradientText("RBDYN", p.theme.Primary, p.theme.Secondary) + "\n")
	s.WriteString(st.muted.Render("rigid-body mechanisms") + "\n\n")
	for i, it := range p.items {
		line := fmt.Sprintf("%-18s %s", it.Name, st.muted.Render(it.Summary))
		if i == p.cursor {
			s.WriteString(st.active.Render("▸ "+it.Name) + strings.Repeat(" ", max(1, 17-len(it.Name))) + st.value.Render(it.Summary) + "\n")
		} else {
			s.WriteString("  " + line + "\n")
		}
	}
	if p.err != nil {
		s.WriteString("\n" + st.failed.Render(p.err.Error()) + "\n")
	}
	s.WriteString(st.muted.Render("\n↑↓ select  enter run  q quit"))
	return lipgloss.NewStyle().Padding(1, 2).Render(s.String())
}
