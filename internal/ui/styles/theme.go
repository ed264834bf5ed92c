package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme is the set of colors the views draw with. Category colors are not part
// of it; they come from the registry palette.
type Theme struct {
	Name string

	Text    lipgloss.Color
	Dim     lipgloss.Color
	Surface lipgloss.Color

	Heading lipgloss.Color
	Date    lipgloss.Color
	Star    lipgloss.Color

	Ok   lipgloss.Color
	Fail lipgloss.Color

	Frame      lipgloss.Color
	FrameFocus lipgloss.Color
	Highlight  lipgloss.Color
}

// Celda is the default theme: dark slate with teal headings and amber marks
var Celda = Theme{
	Name: "Celda",

	Text:    lipgloss.Color("#d8dee9"),
	Dim:     lipgloss.Color("#6b7589"),
	Surface: lipgloss.Color("#1c2128"),

	Heading: lipgloss.Color("#5fb3b3"),
	Date:    lipgloss.Color("#88c0d0"),
	Star:    lipgloss.Color("#ebcb8b"),

	Ok:   lipgloss.Color("#a3be8c"),
	Fail: lipgloss.Color("#e06c75"),

	Frame:      lipgloss.Color("#3b4252"),
	FrameFocus: lipgloss.Color("#5fb3b3"),
	Highlight:  lipgloss.Color("#2e3a46"),
}

// Current holds the active theme
var Current = Celda

// MaxWidth caps the content width; the timeline ruler is drawn to this width
const MaxWidth = 88

// ContentWidth is the width views lay out in
func ContentWidth(terminalWidth int) int {
	return min(terminalWidth, MaxWidth)
}

// CenterView centers content horizontally once the terminal is wider than MaxWidth
func CenterView(content string, terminalWidth, terminalHeight int) string {
	if terminalWidth <= MaxWidth {
		return content
	}
	return lipgloss.Place(terminalWidth, terminalHeight, lipgloss.Center, lipgloss.Top, content)
}

// Styles are built once per view from the current theme
type Styles struct {
	Title      lipgloss.Style
	TitleMuted lipgloss.Style

	ListItem     lipgloss.Style
	ListSelected lipgloss.Style

	// Search box
	FilterBar lipgloss.Style

	Button        lipgloss.Style
	ButtonFocused lipgloss.Style

	// Timeline rows
	Date      lipgloss.Style
	Important lipgloss.Style
	Pending   lipgloss.Style

	Input        lipgloss.Style
	InputFocused lipgloss.Style

	Help    lipgloss.Style
	HelpKey lipgloss.Style

	StatusBar   lipgloss.Style
	StatusError lipgloss.Style
	StatusInfo  lipgloss.Style
}

func boxed(border lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border)
}

// NewStyles creates styles based on the current theme
func NewStyles() *Styles {
	t := Current
	row := lipgloss.NewStyle().Padding(0, 2)

	return &Styles{
		Title:      lipgloss.NewStyle().Foreground(t.Heading).Bold(true),
		TitleMuted: lipgloss.NewStyle().Foreground(t.Dim),

		ListItem:     row.Foreground(t.Text),
		ListSelected: row.Foreground(t.Heading).Background(t.Highlight).Bold(true),

		FilterBar: boxed(t.Frame).Padding(0, 1),

		Button:        boxed(t.Frame).Foreground(t.Text).Padding(0, 2),
		ButtonFocused: boxed(t.FrameFocus).Foreground(t.Heading).Padding(0, 2).Bold(true),

		Date:      lipgloss.NewStyle().Foreground(t.Date),
		Important: lipgloss.NewStyle().Foreground(t.Star).Bold(true),
		Pending:   lipgloss.NewStyle().Foreground(t.Dim).Italic(true),

		Input:        boxed(t.Frame).Foreground(t.Text).Padding(0, 1),
		InputFocused: boxed(t.FrameFocus).Foreground(t.Text).Padding(0, 1),

		Help:    lipgloss.NewStyle().Foreground(t.Dim).Padding(1, 2),
		HelpKey: lipgloss.NewStyle().Foreground(t.Heading).Bold(true),

		StatusBar:   lipgloss.NewStyle().Foreground(t.Dim).Padding(0, 1),
		StatusError: lipgloss.NewStyle().Foreground(t.Fail).Padding(0, 1),
		StatusInfo:  lipgloss.NewStyle().Foreground(t.Ok).Padding(0, 1),
	}
}

// Swatch renders a colored dot for a category color
func Swatch(color string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render("●")
}

// CategoryLabel renders a category name next to its swatch
func CategoryLabel(name, color string) string {
	return Swatch(color) + " " + lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(name)
}
