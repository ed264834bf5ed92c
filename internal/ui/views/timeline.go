package views

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tgienger/cronocelda/internal/auth"
	"github.com/tgienger/cronocelda/internal/models"
	"github.com/tgienger/cronocelda/internal/timeline"
	"github.com/tgienger/cronocelda/internal/ui/keys"
	"github.com/tgienger/cronocelda/internal/ui/styles"
)

// FocusArea represents which part of the UI has focus
type FocusArea int

const (
	FocusBackButton FocusArea = iota
	FocusSearchInput
	FocusRangeDropdown
	FocusMilestoneList
)

var rangeOptions = []timeline.RangeShortcut{
	timeline.RangeAuto,
	timeline.RangeAll,
	timeline.RangeLastMonth,
	timeline.RangeLastYear,
}

func rangeLabel(r timeline.RangeShortcut) string {
	switch r {
	case timeline.RangeAll:
		return "All"
	case timeline.RangeLastMonth:
		return "Last month"
	case timeline.RangeLastYear:
		return "Last year"
	default:
		return "Auto"
	}
}

// TimelineDeps are the services a TimelineView works against
type TimelineDeps struct {
	Syncer     *timeline.Syncer
	Summarizer Summarizer // nil disables summaries
	Session    *auth.Session
}

// TimelineView shows the milestones of one card
type TimelineView struct {
	syncer     *timeline.Syncer
	tl         *timeline.Timeline
	summarizer Summarizer
	session    *auth.Session
	card       models.Card
	styles     *styles.Styles
	keys       keys.KeyMap
	now        func() time.Time

	width  int
	height int

	// Projection of the collection currently on screen
	milestones []models.Milestone
	rng        timeline.DateRange
	loading    bool
	loadErr    error

	// UI state
	focus       FocusArea
	cursor      int
	scrollY     int
	searchInput textinput.Model
	rangeSel    timeline.RangeShortcut
	status      status

	// Range dropdown state
	rangeDropdownOpen bool
	rangeCursor       int

	// Detail view
	viewing   bool
	viewingID string

	// Rename
	renaming    bool
	renameInput textinput.Model

	// Category picker
	pickingCategory bool
	categoryCursor  int

	// Tag editing
	editingTags    bool
	tagCursor      int
	tagInput       textinput.Model
	tagInputActive bool

	// Add files to an existing milestone
	addingFiles bool
	filesInput  textinput.Model

	// Upload form
	creating       bool
	createFocusIdx int // 0=name, 1=desc, 2=category, 3=files, 4=save
	createName     textinput.Model
	createDesc     textarea.Model
	createCategory int
	createFiles    textinput.Model
	createErr      string

	// Summary popup
	showingSummary bool
	summarizing    bool
	summary        string

	// Help popup (shown with ? at narrow widths)
	showHelpPopup bool
}

// NewTimelineView creates the timeline view for card
func NewTimelineView(deps TimelineDeps, card models.Card, rng timeline.RangeShortcut) *TimelineView {
	s := styles.NewStyles()

	search := textinput.New()
	search.Placeholder = "Search milestones..."
	search.CharLimit = 100

	rename := textinput.New()
	rename.Placeholder = "Milestone name"
	rename.CharLimit = 200

	tagInput := textinput.New()
	tagInput.Placeholder = "New tag"
	tagInput.CharLimit = 50

	filesInput := textinput.New()
	filesInput.Placeholder = "/path/to/file.pdf, ~/photo.jpg"
	filesInput.CharLimit = 2000

	createName := textinput.New()
	createName.Placeholder = "Milestone name"
	createName.CharLimit = 200

	createDesc := textarea.New()
	createDesc.Placeholder = "Description (optional)"
	createDesc.CharLimit = 1000
	createDesc.SetWidth(50)
	createDesc.SetHeight(3)
	createDesc.ShowLineNumbers = false

	createFiles := textinput.New()
	createFiles.Placeholder = "Comma-separated file paths (optional)"
	createFiles.CharLimit = 2000

	return &TimelineView{
		syncer:      deps.Syncer,
		tl:          deps.Syncer.Timeline(),
		summarizer:  deps.Summarizer,
		session:     deps.Session,
		card:        card,
		styles:      s,
		keys:        keys.DefaultKeyMap(),
		now:         time.Now,
		focus:       FocusMilestoneList,
		searchInput: search,
		rangeSel:    rng,
		renameInput: rename,
		tagInput:    tagInput,
		filesInput:  filesInput,
		createName:  createName,
		createDesc:  createDesc,
		createFiles: createFiles,
		loading:     true,
	}
}

// Init loads the card's attachments
func (v *TimelineView) Init() tea.Cmd {
	return v.loadCard
}

type cardLoadedMsg struct {
	cardID  string
	tickets []timeline.Ticket
	err     error
}

type tagsResolvedMsg struct {
	ticket timeline.Ticket
	tags   []string
}

type summaryMsg struct {
	text string
	err  error
}

func (v *TimelineView) loadCard() tea.Msg {
	tickets, err := v.syncer.Load(context.Background(), v.card.ID)
	return cardLoadedMsg{cardID: v.card.ID, tickets: tickets, err: err}
}

// enrich resolves tags off the event loop; the result is applied in Update
func (v *TimelineView) enrich(tickets ...timeline.Ticket) tea.Cmd {
	d := v.syncer.Dispatcher()
	cmds := make([]tea.Cmd, 0, len(tickets))
	for _, t := range tickets {
		ticket := t
		cmds = append(cmds, func() tea.Msg {
			return tagsResolvedMsg{ticket: ticket, tags: d.Resolve(context.Background(), ticket)}
		})
	}
	return tea.Batch(cmds...)
}

func (v *TimelineView) summarize() tea.Msg {
	text, err := v.summarizer.Summarize(context.Background(), v.milestones)
	return summaryMsg{text: text, err: err}
}

// refresh recomputes the projection shown on screen
func (v *TimelineView) refresh() {
	v.milestones, v.rng = v.tl.ViewInRange(v.searchInput.Value(), v.rangeSel, v.now())
	if v.cursor >= len(v.milestones) {
		v.cursor = max(0, len(v.milestones)-1)
	}
	if v.scrollY > v.cursor {
		v.scrollY = v.cursor
	}
}

// selected returns the highlighted milestone
func (v *TimelineView) selected() (models.Milestone, bool) {
	if len(v.milestones) == 0 || v.cursor >= len(v.milestones) {
		return models.Milestone{}, false
	}
	return v.tl.Get(v.milestones[v.cursor].ID)
}

func (v *TimelineView) canWrite() (tea.Cmd, bool) {
	if v.session != nil && v.session.CanWrite() {
		return nil, true
	}
	return v.status.set(readOnlyText, true), false
}

// Update handles messages
func (v *TimelineView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		contentWidth := styles.ContentWidth(v.width)
		v.createDesc.SetWidth(clamp(contentWidth-10, 20, 50))
		return v, nil

	case cardLoadedMsg:
		if msg.cardID != v.card.ID {
			return v, nil
		}
		v.loading = false
		v.loadErr = msg.err
		v.refresh()
		if msg.err != nil {
			return v, v.status.set(errorText(msg.err), true)
		}
		return v, v.enrich(msg.tickets...)

	case tagsResolvedMsg:
		if v.tl.ApplyTags(msg.ticket, msg.tags) {
			v.refresh()
		}
		return v, nil

	case summaryMsg:
		v.summarizing = false
		if msg.err != nil {
			v.showingSummary = false
			return v, v.status.set("Summary failed: "+msg.err.Error(), true)
		}
		v.summary = msg.text
		return v, nil

	case clearStatusMsg:
		v.status.clear(msg)
		return v, nil

	case tea.KeyMsg:
		// Handle help popup first - any key closes it
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}

		if v.showingSummary {
			if !v.summarizing {
				v.showingSummary = false
			}
			return v, nil
		}

		switch {
		case v.creating:
			return v.updateCreating(msg)
		case v.renaming:
			return v.updateRenaming(msg)
		case v.pickingCategory:
			return v.updatePickingCategory(msg)
		case v.editingTags:
			return v.updateEditingTags(msg)
		case v.addingFiles:
			return v.updateAddingFiles(msg)
		case v.viewing:
			return v.updateViewing(msg)
		case v.rangeDropdownOpen:
			return v.updateRangeDropdown(msg)
		}

		return v.updateNormal(msg)
	}

	return v, nil
}

func (v *TimelineView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Handle search input typing first - don't process hotkeys while typing
	if v.focus == FocusSearchInput {
		switch {
		case key.Matches(msg, v.keys.Back), key.Matches(msg, v.keys.Enter):
			v.searchInput.Blur()
			v.focus = FocusMilestoneList
			return v, nil
		default:
			var cmd tea.Cmd
			v.searchInput, cmd = v.searchInput.Update(msg)
			v.cursor, v.scrollY = 0, 0
			v.refresh()
			return v, cmd
		}
	}

	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit

	case key.Matches(msg, v.keys.Back):
		return v, func() tea.Msg { return BackToCards{} }

	case key.Matches(msg, v.keys.Tab):
		v.cycleFocus(1)
		return v, nil

	case msg.String() == "shift+tab":
		v.cycleFocus(-1)
		return v, nil

	case key.Matches(msg, v.keys.Up):
		if v.focus == FocusMilestoneList && v.cursor > 0 {
			v.cursor--
			v.ensureVisible()
		}
		return v, nil

	case key.Matches(msg, v.keys.Down):
		if v.focus == FocusMilestoneList && v.cursor < len(v.milestones)-1 {
			v.cursor++
			v.ensureVisible()
		}
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		switch v.focus {
		case FocusBackButton:
			return v, func() tea.Msg { return BackToCards{} }
		case FocusRangeDropdown:
			v.openRangeDropdown()
			return v, nil
		case FocusMilestoneList:
			if m, ok := v.selected(); ok {
				v.viewing = true
				v.viewingID = m.ID
			}
		}
		return v, nil

	case key.Matches(msg, v.keys.Search):
		v.focus = FocusSearchInput
		v.searchInput.Focus()
		return v, textinput.Blink

	case key.Matches(msg, v.keys.Range):
		v.focus = FocusRangeDropdown
		v.openRangeDropdown()
		return v, nil

	case key.Matches(msg, v.keys.Reload):
		v.loading = true
		return v, v.loadCard

	case key.Matches(msg, v.keys.Summary):
		return v, v.startSummary()

	case key.Matches(msg, v.keys.Manage):
		return v, func() tea.Msg { return OpenCategories{} }

	case key.Matches(msg, v.keys.Login):
		if _, ok := v.session.User(); ok {
			v.session.SignOut()
			return v, v.status.set("Signed out", false)
		}
		return v, func() tea.Msg { return OpenLogin{} }

	case key.Matches(msg, v.keys.New):
		if cmd, ok := v.canWrite(); !ok {
			return v, cmd
		}
		v.startCreate()
		return v, textinput.Blink

	case msg.String() == "?":
		v.showHelpPopup = true
		return v, nil
	}

	// Remaining keys act on the highlighted milestone
	if v.focus != FocusMilestoneList {
		return v, nil
	}
	m, ok := v.selected()
	if !ok {
		return v, nil
	}
	return v.updateMilestoneKeys(msg, m)
}

// updateMilestoneKeys handles the editing shortcuts shared by the list and
// the detail view
func (v *TimelineView) updateMilestoneKeys(msg tea.KeyMsg, m models.Milestone) (tea.Model, tea.Cmd) {
	isEdit := key.Matches(msg, v.keys.Edit) || key.Matches(msg, v.keys.Category) ||
		key.Matches(msg, v.keys.Tags) || key.Matches(msg, v.keys.Important) ||
		key.Matches(msg, v.keys.Files)
	if !isEdit {
		return v, nil
	}
	if cmd, ok := v.canWrite(); !ok {
		return v, cmd
	}
	v.viewingID = m.ID

	switch {
	case key.Matches(msg, v.keys.Edit):
		v.renaming = true
		v.renameInput.SetValue(m.Name)
		v.renameInput.CursorEnd()
		v.renameInput.Focus()
		return v, textinput.Blink

	case key.Matches(msg, v.keys.Category):
		v.pickingCategory = true
		v.categoryCursor = 0
		for i, c := range v.tl.Categories() {
			if c.ID == m.Category.ID {
				v.categoryCursor = i
			}
		}
		return v, nil

	case key.Matches(msg, v.keys.Tags):
		v.editingTags = true
		v.tagCursor = 0
		v.tagInputActive = false
		return v, nil

	case key.Matches(msg, v.keys.Important):
		updated, err := v.tl.ToggleImportant(m.ID)
		if err != nil {
			return v, v.status.set(errorText(err), true)
		}
		v.refresh()
		text := "Unmarked as important"
		if updated.IsImportant {
			text = "Marked as important"
		}
		return v, v.status.set(text, false)

	case key.Matches(msg, v.keys.Files):
		v.addingFiles = true
		v.filesInput.Reset()
		v.filesInput.Focus()
		return v, textinput.Blink
	}
	return v, nil
}

func (v *TimelineView) startSummary() tea.Cmd {
	if v.summarizer == nil {
		return v.status.set("Summaries need an AI API key", true)
	}
	if len(v.milestones) == 0 {
		return v.status.set("Nothing to summarize", true)
	}
	v.showingSummary = true
	v.summarizing = true
	v.summary = ""
	return v.summarize
}

func (v *TimelineView) openRangeDropdown() {
	v.rangeDropdownOpen = true
	v.rangeCursor = 0
	for i, r := range rangeOptions {
		if r == v.rangeSel {
			v.rangeCursor = i
		}
	}
}

func (v *TimelineView) updateRangeDropdown(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.rangeDropdownOpen = false
		return v, nil

	case key.Matches(msg, v.keys.Up):
		if v.rangeCursor > 0 {
			v.rangeCursor--
		}
		return v, nil

	case key.Matches(msg, v.keys.Down):
		if v.rangeCursor < len(rangeOptions)-1 {
			v.rangeCursor++
		}
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		v.rangeSel = rangeOptions[v.rangeCursor]
		v.rangeDropdownOpen = false
		v.cursor, v.scrollY = 0, 0
		v.refresh()
		r := v.rangeSel
		return v, func() tea.Msg { return RangeChanged{Range: r} }
	}

	return v, nil
}

func (v *TimelineView) updateViewing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.viewing = false
		return v, nil
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit
	case msg.String() == "?":
		v.showHelpPopup = true
		return v, nil
	}

	m, ok := v.tl.Get(v.viewingID)
	if !ok {
		v.viewing = false
		return v, nil
	}
	return v.updateMilestoneKeys(msg, m)
}

func (v *TimelineView) updateRenaming(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.renaming = false
		v.renameInput.Blur()
		return v, nil

	case key.Matches(msg, v.keys.Enter), msg.String() == "ctrl+s":
		_, err := v.tl.Rename(v.viewingID, v.renameInput.Value())
		if err != nil {
			return v, v.status.set(errorText(err), true)
		}
		v.renaming = false
		v.renameInput.Blur()
		v.refresh()
		return v, v.status.set("Renamed", false)
	}

	var cmd tea.Cmd
	v.renameInput, cmd = v.renameInput.Update(msg)
	return v, cmd
}

func (v *TimelineView) updatePickingCategory(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	categories := v.tl.Categories()

	switch {
	case key.Matches(msg, v.keys.Back):
		v.pickingCategory = false
		return v, nil

	case key.Matches(msg, v.keys.Up):
		if v.categoryCursor > 0 {
			v.categoryCursor--
		}
		return v, nil

	case key.Matches(msg, v.keys.Down):
		if v.categoryCursor < len(categories)-1 {
			v.categoryCursor++
		}
		return v, nil

	case key.Matches(msg, v.keys.Enter), msg.String() == " ":
		if v.categoryCursor >= len(categories) {
			return v, nil
		}
		_, err := v.tl.SetCategory(v.viewingID, categories[v.categoryCursor].ID)
		v.pickingCategory = false
		if err != nil {
			return v, v.status.set(errorText(err), true)
		}
		v.refresh()
		return v, nil
	}

	return v, nil
}

func (v *TimelineView) updateEditingTags(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m, ok := v.tl.Get(v.viewingID)
	if !ok {
		v.editingTags = false
		return v, nil
	}

	if v.tagInputActive {
		switch {
		case key.Matches(msg, v.keys.Back):
			v.tagInputActive = false
			v.tagInput.Blur()
			return v, nil
		case key.Matches(msg, v.keys.Enter):
			_, err := v.tl.AddTag(m.ID, v.tagInput.Value())
			if err != nil {
				return v, v.status.set(errorText(err), true)
			}
			v.tagInput.Reset()
			v.refresh()
			return v, nil
		default:
			var cmd tea.Cmd
			v.tagInput, cmd = v.tagInput.Update(msg)
			return v, cmd
		}
	}

	switch {
	case key.Matches(msg, v.keys.Back):
		v.editingTags = false
		return v, nil

	case key.Matches(msg, v.keys.Up):
		if v.tagCursor > 0 {
			v.tagCursor--
		}
		return v, nil

	case key.Matches(msg, v.keys.Down):
		if v.tagCursor < len(m.Tags)-1 {
			v.tagCursor++
		}
		return v, nil

	case key.Matches(msg, v.keys.New), key.Matches(msg, v.keys.Enter):
		v.tagInputActive = true
		v.tagInput.Reset()
		v.tagInput.Focus()
		return v, textinput.Blink

	case key.Matches(msg, v.keys.Delete):
		if v.tagCursor >= len(m.Tags) {
			return v, nil
		}
		if _, err := v.tl.RemoveTag(m.ID, m.Tags[v.tagCursor]); err != nil {
			return v, v.status.set(errorText(err), true)
		}
		if v.tagCursor > 0 && v.tagCursor >= len(m.Tags)-1 {
			v.tagCursor--
		}
		v.refresh()
		return v, nil
	}

	return v, nil
}

func (v *TimelineView) updateAddingFiles(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.addingFiles = false
		v.filesInput.Blur()
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		files, err := statFiles(splitPaths(v.filesInput.Value()))
		if err != nil {
			return v, v.status.set(err.Error(), true)
		}
		if _, err := v.tl.AddFiles(v.viewingID, files); err != nil {
			return v, v.status.set(errorText(err), true)
		}
		v.addingFiles = false
		v.filesInput.Blur()
		v.refresh()
		return v, v.status.set(fmt.Sprintf("Added %d file(s)", len(files)), false)
	}

	var cmd tea.Cmd
	v.filesInput, cmd = v.filesInput.Update(msg)
	return v, cmd
}

func (v *TimelineView) startCreate() {
	v.creating = true
	v.createFocusIdx = 0
	v.createCategory = 0
	v.createErr = ""
	v.createName.Reset()
	v.createDesc.Reset()
	v.createFiles.Reset()
	v.updateCreateFocus()
}

func (v *TimelineView) updateCreating(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	categories := v.tl.Categories()

	switch {
	case key.Matches(msg, v.keys.Back):
		v.creating = false
		return v, nil

	case msg.String() == "ctrl+s":
		return v, v.saveUpload()

	case key.Matches(msg, v.keys.Tab):
		v.createFocusIdx = (v.createFocusIdx + 1) % 5
		v.updateCreateFocus()
		return v, nil

	case msg.String() == "shift+tab":
		v.createFocusIdx = (v.createFocusIdx + 4) % 5
		v.updateCreateFocus()
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		switch v.createFocusIdx {
		case 0, 2, 3:
			v.createFocusIdx++
			v.updateCreateFocus()
			return v, nil
		case 4:
			return v, v.saveUpload()
		}
		// Enter inside the description adds a newline

	case v.createFocusIdx == 2 && (key.Matches(msg, v.keys.Up) || msg.String() == "left"):
		if v.createCategory > 0 {
			v.createCategory--
		}
		return v, nil

	case v.createFocusIdx == 2 && (key.Matches(msg, v.keys.Down) || msg.String() == "right"):
		if v.createCategory < len(categories)-1 {
			v.createCategory++
		}
		return v, nil
	}

	var cmd tea.Cmd
	switch v.createFocusIdx {
	case 0:
		v.createName, cmd = v.createName.Update(msg)
	case 1:
		v.createDesc, cmd = v.createDesc.Update(msg)
	case 3:
		v.createFiles, cmd = v.createFiles.Update(msg)
	}
	return v, cmd
}

func (v *TimelineView) updateCreateFocus() {
	v.createName.Blur()
	v.createDesc.Blur()
	v.createFiles.Blur()

	switch v.createFocusIdx {
	case 0:
		v.createName.Focus()
	case 1:
		v.createDesc.Focus()
	case 3:
		v.createFiles.Focus()
	}
}

func (v *TimelineView) saveUpload() tea.Cmd {
	files, err := statFiles(splitPaths(v.createFiles.Value()))
	if err != nil {
		v.createErr = err.Error()
		return nil
	}

	var category models.Category
	if categories := v.tl.Categories(); v.createCategory < len(categories) {
		category = categories[v.createCategory]
	}

	m, ticket, err := v.syncer.Add(timeline.LocalSource{
		Files:       files,
		Name:        v.createName.Value(),
		Description: strings.TrimSpace(v.createDesc.Value()),
		Category:    category,
	})
	if err != nil {
		v.createErr = errorText(err)
		return nil
	}

	v.creating = false
	v.searchInput.Reset()
	v.refresh()
	for i, shown := range v.milestones {
		if shown.ID == m.ID {
			v.cursor = i
			v.ensureVisible()
		}
	}
	return tea.Batch(v.enrich(ticket), v.status.set("Added "+m.Name, false))
}

func (v *TimelineView) cycleFocus(dir int) {
	// Blur current
	v.searchInput.Blur()

	// Cycle
	v.focus = FocusArea((int(v.focus) + dir + 4) % 4)

	// Focus search if needed
	if v.focus == FocusSearchInput {
		v.searchInput.Focus()
	}
}

func (v *TimelineView) visibleItems() int {
	// Each milestone item is 2 lines + 1 margin = 3 lines
	availableHeight := max(v.height-13, 3)
	return max(availableHeight/3, 1)
}

func (v *TimelineView) ensureVisible() {
	visible := v.visibleItems()
	if v.cursor < v.scrollY {
		v.scrollY = v.cursor
	} else if v.cursor >= v.scrollY+visible {
		v.scrollY = v.cursor - visible + 1
	}
}
