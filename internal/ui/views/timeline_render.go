package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/tgienger/cronocelda/internal/models"
	"github.com/tgienger/cronocelda/internal/ui/styles"
)

const dateLayout = "Jan 2, 2006"

// View renders the view
func (v *TimelineView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}

	if v.showingSummary {
		return v.renderSummary()
	}

	switch {
	case v.creating:
		return v.renderCreateForm()
	case v.renaming:
		return v.renderRename()
	case v.pickingCategory:
		return v.renderCategoryPicker()
	case v.editingTags:
		return v.renderTagEditor()
	case v.addingFiles:
		return v.renderAddFiles()
	case v.viewing:
		return v.renderDetail()
	}

	var b strings.Builder

	// Header with back button, search, and range selector
	b.WriteString(v.renderHeader())
	b.WriteString("\n")
	b.WriteString(v.renderRuler())
	b.WriteString("\n\n")

	b.WriteString(v.renderList())

	b.WriteString("\n")
	b.WriteString(v.renderStatus())
	b.WriteString(v.renderHelp())

	return styles.CenterView(b.String(), v.width, v.height)
}

func (v *TimelineView) renderHeader() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)
	isNarrow := contentWidth < 60

	searchStyle := s.Input
	if v.focus == FocusSearchInput {
		searchStyle = s.InputFocused
	}
	searchWidth := clamp(contentWidth-8, 10, 30)
	v.searchInput.Placeholder = "Search..."
	searchBox := searchStyle.Width(searchWidth).Render(v.searchInput.View())

	rangeStyle := s.Button
	if v.focus == FocusRangeDropdown {
		rangeStyle = s.ButtonFocused
	}
	label := rangeLabel(v.rangeSel)
	if !isNarrow {
		label = "Range: " + label
	}
	rangeBtn := rangeStyle.Render(label + " ▼")

	title := s.Title.Render(v.card.Name)

	var header string
	if isNarrow {
		header = lipgloss.JoinVertical(lipgloss.Left, searchBox, rangeBtn)
	} else {
		backStyle := s.Button
		if v.focus == FocusBackButton {
			backStyle = s.ButtonFocused
		}
		backBtn := backStyle.Render("← Cards")

		header = lipgloss.JoinHorizontal(lipgloss.Center,
			backBtn, "  ", searchBox, "  ", rangeBtn,
		)
	}

	dropdown := ""
	if v.rangeDropdownOpen {
		dropdown = "\n" + v.renderRangeDropdown()
	}

	return lipgloss.JoinVertical(lipgloss.Left, title, header+dropdown)
}

func (v *TimelineView) renderRangeDropdown() string {
	s := v.styles
	items := make([]string, 0, len(rangeOptions))
	for i, r := range rangeOptions {
		itemStyle := s.ListItem
		if i == v.rangeCursor {
			itemStyle = s.ListSelected
		}
		items = append(items, itemStyle.Render(rangeLabel(r)))
	}
	return s.FilterBar.Render(lipgloss.JoinVertical(lipgloss.Left, items...))
}

// renderRuler shows the span the list covers
func (v *TimelineView) renderRuler() string {
	s := v.styles
	if v.rng.Start.IsZero() && v.rng.End.IsZero() {
		return s.TitleMuted.Render("no milestones")
	}
	width := max(styles.ContentWidth(v.width)-32, 4)
	return fmt.Sprintf("%s %s %s  %s",
		s.Date.Render(v.rng.Start.Local().Format("Jan 2006")),
		s.TitleMuted.Render(strings.Repeat("─", width)),
		s.Date.Render(v.rng.End.Local().Format("Jan 2006")),
		s.TitleMuted.Render(fmt.Sprintf("%d shown", len(v.milestones))),
	)
}

func (v *TimelineView) renderList() string {
	s := v.styles

	if v.loading {
		return s.TitleMuted.Render("Loading attachments...")
	}
	if len(v.milestones) == 0 {
		if v.loadErr != nil {
			return s.TitleMuted.Render("Attachments could not be loaded. ctrl+r to retry.")
		}
		if v.tl.Len() > 0 {
			return s.TitleMuted.Render("Nothing matches the search or range.")
		}
		return s.TitleMuted.Render("No milestones. Press 'n' to add one.")
	}

	var items []string
	endIdx := min(v.scrollY+v.visibleItems(), len(v.milestones))
	for i := v.scrollY; i < endIdx; i++ {
		items = append(items, v.renderItem(v.milestones[i], i == v.cursor && v.focus == FocusMilestoneList))
	}
	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

func (v *TimelineView) renderItem(m models.Milestone, selected bool) string {
	s := v.styles
	width := max(styles.ContentWidth(v.width)-4, 20)

	star := "  "
	if m.IsImportant {
		star = s.Important.Render("★ ")
	}
	titleLine := star + s.Date.Render(m.OccurredAt.Local().Format(dateLayout)) + "  " + m.Name

	tagsLine := styles.CategoryLabel(m.Category.Name, m.Category.Color) + "  " + v.renderTags(m)

	titleStyle, tagLineStyle := s.ListItem.Width(width), s.ListItem.Width(width)
	if selected {
		titleStyle, tagLineStyle = s.ListSelected.Width(width), s.ListSelected.Width(width)
	}

	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(titleLine), tagLineStyle.Render(tagsLine)) + "\n"
}

func (v *TimelineView) renderTags(m models.Milestone) string {
	s := v.styles
	tags := make([]string, len(m.Tags))
	for i, t := range m.Tags {
		tags[i] = "#" + t
	}
	line := s.TitleMuted.Render(strings.Join(tags, " "))
	switch {
	case m.TagsPending() && len(tags) > 0:
		return line + " " + s.Pending.Render("tagging...")
	case m.TagsPending():
		return s.Pending.Render("tagging...")
	case len(tags) == 0:
		return s.TitleMuted.Render("no tags")
	}
	return line
}

func (v *TimelineView) renderStatus() string {
	s := v.styles
	switch {
	case v.status.text == "":
		return ""
	case v.status.isErr:
		return s.StatusError.Render(v.status.text) + "\n"
	default:
		return s.StatusInfo.Render(v.status.text) + "\n"
	}
}

func (v *TimelineView) renderDetail() string {
	m, ok := v.tl.Get(v.viewingID)
	if !ok {
		return ""
	}

	s := v.styles
	textWidth := clamp(styles.ContentWidth(v.width)-10, 20, 70)
	labelStyle := s.TitleMuted

	title := m.Name
	if m.IsImportant {
		title = s.Important.Render("★ ") + title
	}

	desc := m.Description
	if desc == "" {
		desc = s.TitleMuted.Render("No description")
	}

	var files []string
	for _, f := range m.AssociatedFiles {
		size := f.Size
		if f.Bytes > 0 {
			size = humanize.Bytes(uint64(f.Bytes)) + " (" + f.Size + ")"
		}
		files = append(files, fmt.Sprintf("%s  %s  %s", f.Name, s.TitleMuted.Render(string(f.Type)), s.TitleMuted.Render(size)))
	}
	filesContent := s.TitleMuted.Render("No files")
	if len(files) > 0 {
		filesContent = lipgloss.JoinVertical(lipgloss.Left, files...)
	}

	historyContent := s.TitleMuted.Render("No changes yet")
	if len(m.History) > 0 {
		historyContent = lipgloss.NewStyle().Width(textWidth).Render(strings.Join(m.History, "\n"))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.MarginBottom(1).Render(title),
		s.Date.Render(m.OccurredAt.Local().Format(dateLayout))+s.TitleMuted.Render("  "+humanize.Time(m.OccurredAt)),
		"",
		labelStyle.Render("Category"),
		styles.CategoryLabel(m.Category.Name, m.Category.Color),
		"",
		labelStyle.Render("Tags"),
		v.renderTags(m),
		"",
		labelStyle.Render("Description"),
		lipgloss.NewStyle().Width(textWidth).Render(desc),
		"",
		labelStyle.Render("Files"),
		filesContent,
		"",
		labelStyle.Render("History"),
		historyContent,
		"",
		v.renderStatus()+hintBar(s, v.width,
			v.keys.Edit, v.keys.Category, v.keys.Tags, v.keys.Important, v.keys.Files, v.keys.Back),
	)

	// Return with padding, not centered vertically, but horizontally centered if wide
	padded := lipgloss.NewStyle().Padding(1, 2).Render(content)
	return styles.CenterView(padded, v.width, v.height)
}

// popup centers content in a bordered box
func (v *TimelineView) popup(content string) string {
	contentWidth := styles.ContentWidth(v.width)
	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		v.styles.FilterBar.Render(content),
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *TimelineView) renderRename() string {
	s := v.styles
	inputWidth := clamp(styles.ContentWidth(v.width)-10, 20, 50)
	return v.popup(lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("Rename Milestone"),
		"",
		s.InputFocused.Width(inputWidth).Render(v.renameInput.View()),
		"",
		v.renderStatus()+s.TitleMuted.Render("↵: save • Esc: cancel"),
	))
}

func (v *TimelineView) renderCategoryPicker() string {
	s := v.styles
	m, _ := v.tl.Get(v.viewingID)

	var items []string
	for i, c := range v.tl.Categories() {
		itemStyle := s.ListItem
		if i == v.categoryCursor {
			itemStyle = s.ListSelected
		}
		mark := "( )"
		if c.ID == m.Category.ID {
			mark = "(•)"
		}
		items = append(items, itemStyle.Render(mark+" "+styles.Swatch(c.Color)+" "+c.Name))
	}

	return v.popup(lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("Category for: "+m.Name),
		"",
		lipgloss.JoinVertical(lipgloss.Left, items...),
		"",
		s.TitleMuted.Render("Enter/Space: choose • Esc: cancel"),
	))
}

func (v *TimelineView) renderTagEditor() string {
	s := v.styles
	m, _ := v.tl.Get(v.viewingID)

	var items []string
	switch {
	case m.TagsPending():
		items = append(items, s.Pending.Render("tags are still being generated"))
	case len(m.Tags) == 0:
		items = append(items, s.TitleMuted.Render("no tags"))
	}
	for i, t := range m.Tags {
		itemStyle := s.ListItem
		if i == v.tagCursor && !v.tagInputActive {
			itemStyle = s.ListSelected
		}
		items = append(items, itemStyle.Render("#"+t))
	}

	inputStyle := s.Input
	if v.tagInputActive {
		inputStyle = s.InputFocused
	}

	help := "n/↵: add • d: remove • Esc: done"
	if v.tagInputActive {
		help = "↵: add tag • Esc: stop adding"
	}

	return v.popup(lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("Tags for: "+m.Name),
		"",
		lipgloss.JoinVertical(lipgloss.Left, items...),
		"",
		inputStyle.Width(clamp(styles.ContentWidth(v.width)-10, 20, 40)).Render(v.tagInput.View()),
		"",
		v.renderStatus()+s.TitleMuted.Render(help),
	))
}

func (v *TimelineView) renderAddFiles() string {
	s := v.styles
	m, _ := v.tl.Get(v.viewingID)
	inputWidth := clamp(styles.ContentWidth(v.width)-10, 20, 60)

	return v.popup(lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("Add files to: "+m.Name),
		"",
		"Paths (comma-separated):",
		s.InputFocused.Width(inputWidth).Render(v.filesInput.View()),
		"",
		v.renderStatus()+s.TitleMuted.Render("↵: add • Esc: cancel"),
	))
}

func (v *TimelineView) renderCreateForm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	nameStyle := s.Input
	descStyle := s.Input
	categoryStyle := s.Input
	filesStyle := s.Input
	btnStyle := s.Button

	switch v.createFocusIdx {
	case 0:
		nameStyle = s.InputFocused
	case 1:
		descStyle = s.InputFocused
	case 2:
		categoryStyle = s.InputFocused
	case 3:
		filesStyle = s.InputFocused
	case 4:
		btnStyle = s.ButtonFocused
	}

	inputWidth := clamp(contentWidth-6, 20, 50)

	categoryLabel := s.TitleMuted.Render("No categories")
	if categories := v.tl.Categories(); v.createCategory < len(categories) {
		c := categories[v.createCategory]
		categoryLabel = "◀ " + styles.CategoryLabel(c.Name, c.Color) + " ▶"
	}

	errLine := ""
	if v.createErr != "" {
		errLine = s.StatusError.Render(v.createErr)
	}

	form := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("New Milestone"),
		"",
		"Name:",
		nameStyle.Width(inputWidth).Render(v.createName.View()),
		"",
		"Description:",
		descStyle.Render(v.createDesc.View()),
		"",
		"Category:",
		categoryStyle.Width(inputWidth).Render(categoryLabel),
		"",
		"Files:",
		filesStyle.Width(inputWidth).Render(v.createFiles.View()),
		"",
		btnStyle.Render(" Add "),
		errLine,
		s.TitleMuted.Render("Tab: next • ←→: category • Ctrl+S: save • Esc: cancel"),
	)

	// Center within content width, then center that in terminal
	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		form,
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *TimelineView) renderSummary() string {
	s := v.styles
	textWidth := clamp(styles.ContentWidth(v.width)-12, 20, 60)

	body := s.Pending.Render("Summarizing " + humanize.Comma(int64(len(v.milestones))) + " milestones...")
	if !v.summarizing {
		body = lipgloss.NewStyle().Width(textWidth).Render(v.summary)
	}

	return v.popup(lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("Summary"),
		"",
		body,
		"",
		s.TitleMuted.Render("Press any key to close"),
	))
}

func (v *TimelineView) renderHelp() string {
	k := v.keys
	return hintBar(v.styles, v.width,
		relabel(k.Enter, "view"), k.New, k.Search, k.Range, k.Tags, k.Important, k.Summary, k.Back,
		key.NewBinding(key.WithHelp("?", "help")))
}

func (v *TimelineView) renderHelpPopup() string {
	k := v.keys
	return v.popup(shortcutSheet(v.styles,
		relabel(k.Enter, "view milestone"),
		relabel(k.New, "new milestone from files"),
		k.Edit,
		relabel(k.Category, "change category"),
		relabel(k.Tags, "edit tags"),
		relabel(k.Important, "toggle important"),
		k.Files,
		k.Search,
		relabel(k.Range, "date range"),
		relabel(k.Summary, "AI summary"),
		k.Manage,
		k.Login,
		relabel(k.Reload, "reload card"),
		k.Back,
		k.Quit,
	))
}
