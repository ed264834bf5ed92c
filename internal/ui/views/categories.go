package views

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tgienger/cronocelda/internal/auth"
	"github.com/tgienger/cronocelda/internal/timeline"
	"github.com/tgienger/cronocelda/internal/ui/keys"
	"github.com/tgienger/cronocelda/internal/ui/styles"
)

type categoryEdit int

const (
	editNone categoryEdit = iota
	editNew
	editName
	editColor
)

// CategoryView lists categories and edits their names and colors
type CategoryView struct {
	tl      *timeline.Timeline
	session *auth.Session
	styles  *styles.Styles
	keys    keys.KeyMap
	width   int
	height  int
	cursor  int
	status  status

	edit  categoryEdit
	input textinput.Model
}

func NewCategoryView(tl *timeline.Timeline, session *auth.Session) *CategoryView {
	input := textinput.New()
	input.CharLimit = 50

	return &CategoryView{
		tl:      tl,
		session: session,
		styles:  styles.NewStyles(),
		keys:    keys.DefaultKeyMap(),
		input:   input,
	}
}

func (v *CategoryView) Init() tea.Cmd {
	return nil
}

func (v *CategoryView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case clearStatusMsg:
		v.status.clear(msg)
		return v, nil

	case tea.KeyMsg:
		if v.edit != editNone {
			return v.updateEditing(msg)
		}

		categories := v.tl.Categories()
		switch {
		case key.Matches(msg, v.keys.Quit):
			return v, tea.Quit
		case key.Matches(msg, v.keys.Back):
			return v, func() tea.Msg { return CloseCategories{} }
		case key.Matches(msg, v.keys.Up):
			if v.cursor > 0 {
				v.cursor--
			}
			return v, nil
		case key.Matches(msg, v.keys.Down):
			if v.cursor < len(categories)-1 {
				v.cursor++
			}
			return v, nil
		case key.Matches(msg, v.keys.New):
			return v, v.startEdit(editNew, "", "Category name")
		case key.Matches(msg, v.keys.Edit):
			if v.cursor < len(categories) {
				return v, v.startEdit(editName, categories[v.cursor].Name, "Category name")
			}
		case key.Matches(msg, v.keys.Category), key.Matches(msg, v.keys.Enter):
			if v.cursor < len(categories) {
				return v, v.startEdit(editColor, categories[v.cursor].Color, "#rrggbb")
			}
		}
	}
	return v, nil
}

func (v *CategoryView) startEdit(mode categoryEdit, value, placeholder string) tea.Cmd {
	if v.session == nil || !v.session.CanWrite() {
		return v.status.set(readOnlyText, true)
	}
	v.edit = mode
	v.input.Placeholder = placeholder
	v.input.SetValue(value)
	v.input.CursorEnd()
	v.input.Focus()
	return textinput.Blink
}

func (v *CategoryView) updateEditing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.edit = editNone
		v.input.Blur()
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		if err := v.apply(); err != nil {
			return v, v.status.set(errorText(err), true)
		}
		v.edit = editNone
		v.input.Blur()
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *CategoryView) apply() error {
	value := v.input.Value()
	if v.edit == editNew {
		if _, err := v.tl.AddCategory(value); err != nil {
			return err
		}
		v.cursor = len(v.tl.Categories()) - 1
		return nil
	}

	categories := v.tl.Categories()
	if v.cursor >= len(categories) {
		return timeline.ErrCategoryNotFound
	}
	id := categories[v.cursor].ID
	var err error
	switch v.edit {
	case editName:
		_, err = v.tl.RenameCategory(id, value)
	case editColor:
		_, err = v.tl.ChangeCategoryColor(id, value)
	}
	return err
}

// View renders the view
func (v *CategoryView) View() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	width := max(contentWidth-4, 20)

	var items []string
	for i, c := range v.tl.Categories() {
		itemStyle := s.ListItem.Width(width)
		if i == v.cursor {
			itemStyle = s.ListSelected.Width(width)
		}
		items = append(items, itemStyle.Render(fmt.Sprintf("%s %s  %s",
			styles.Swatch(c.Color), c.Name, s.TitleMuted.Render(c.Color))))
	}
	if len(items) == 0 {
		items = append(items, s.TitleMuted.Render("No categories. Press 'n' to add one."))
	}

	var editor string
	if v.edit != editNone {
		label := map[categoryEdit]string{
			editNew:   "New category:",
			editName:  "Rename to:",
			editColor: "Color:",
		}[v.edit]
		editor = lipgloss.JoinVertical(lipgloss.Left,
			"",
			label,
			s.InputFocused.Width(clamp(contentWidth-10, 20, 40)).Render(v.input.View()),
		)
	}

	statusLine := ""
	if v.status.text != "" {
		statusLine = s.StatusError.Render(v.status.text)
		if !v.status.isErr {
			statusLine = s.StatusInfo.Render(v.status.text)
		}
	}

	k := v.keys
	help := hintBar(s, v.width, k.New, k.Edit, relabel(k.Enter, "color"), k.Back)
	if v.edit != editNone {
		help = hintBar(s, v.width, relabel(k.Enter, "save"), relabel(k.Back, "cancel"))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("Categories"),
		"",
		lipgloss.JoinVertical(lipgloss.Left, items...),
		editor,
		"",
		statusLine,
		help,
	)
	padded := lipgloss.NewStyle().Padding(1, 2).Render(content)
	return styles.CenterView(padded, v.width, v.height)
}
