package views

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/tgienger/cronocelda/internal/auth"
	"github.com/tgienger/cronocelda/internal/models"
	"github.com/tgienger/cronocelda/internal/ui/keys"
	"github.com/tgienger/cronocelda/internal/ui/styles"
)

type cardItem struct {
	card models.Card
}

func (i cardItem) Title() string { return i.card.Name }
func (i cardItem) Description() string {
	if i.card.LastActive.IsZero() {
		return i.card.Description
	}
	return "active " + humanize.Time(i.card.LastActive)
}
func (i cardItem) FilterValue() string { return i.card.Name }

type cardDelegate struct {
	styles *styles.Styles
	width  int
}

func (d cardDelegate) Height() int                               { return 2 }
func (d cardDelegate) Spacing() int                              { return 1 }
func (d cardDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d cardDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	c, ok := item.(cardItem)
	if !ok {
		return
	}

	selected := index == m.Index()
	width := max(d.width-4, 20)

	var titleStyle, descStyle lipgloss.Style
	if selected {
		titleStyle = d.styles.ListSelected.Width(width)
		descStyle = d.styles.ListSelected.Foreground(styles.Current.Dim).Width(width)
	} else {
		titleStyle = d.styles.ListItem.Width(width)
		descStyle = d.styles.ListItem.Foreground(styles.Current.Dim).Width(width)
	}

	fmt.Fprintf(w, "%s\n%s", titleStyle.Render(c.Title()), descStyle.Render(c.Description()))
}

// CardListView lets the user pick the Trello card that feeds the timeline
type CardListView struct {
	source   CardSource
	boardID  string
	session  *auth.Session
	list     list.Model
	delegate *cardDelegate
	styles   *styles.Styles
	keys     keys.KeyMap
	width    int
	height   int
	loaded   bool
	loadErr  error
	status   status

	// Help popup (shown with ? at narrow widths)
	showHelpPopup bool
}

func NewCardListView(source CardSource, boardID string, session *auth.Session) *CardListView {
	s := styles.NewStyles()

	delegate := &cardDelegate{styles: s, width: 80}

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "Cards"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = s.Title
	l.SetShowHelp(false)

	return &CardListView{
		source:   source,
		boardID:  boardID,
		session:  session,
		list:     l,
		delegate: delegate,
		styles:   s,
		keys:     keys.DefaultKeyMap(),
	}
}

func (v *CardListView) Init() tea.Cmd {
	return v.loadCards
}

func (v *CardListView) loadCards() tea.Msg {
	cards, err := v.source.Cards(context.Background(), v.boardID)
	return cardsLoadedMsg{cards: cards, err: err}
}

type cardsLoadedMsg struct {
	cards []models.Card
	err   error
}

func (v *CardListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		// Use content width (capped at MaxWidth) for internal layout
		contentWidth := styles.ContentWidth(msg.Width)
		v.delegate.width = contentWidth
		v.list.SetSize(contentWidth-4, msg.Height-7)
		return v, nil

	case cardsLoadedMsg:
		v.loaded = true
		v.loadErr = msg.err
		items := make([]list.Item, len(msg.cards))
		for i, c := range msg.cards {
			items[i] = cardItem{card: c}
		}
		v.list.SetItems(items)
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

		// Let the list own the keyboard while filtering
		if v.list.FilterState() == list.Filtering {
			break
		}

		switch {
		case key.Matches(msg, v.keys.Quit):
			return v, tea.Quit
		case key.Matches(msg, v.keys.Back):
			// Don't quit on escape in the card list - only q quits
			if v.list.FilterState() == list.FilterApplied {
				break
			}
			return v, nil
		case msg.String() == "?":
			v.showHelpPopup = true
			return v, nil
		case key.Matches(msg, v.keys.Reload):
			v.loaded = false
			return v, v.loadCards
		case key.Matches(msg, v.keys.Manage):
			return v, func() tea.Msg { return OpenCategories{} }
		case key.Matches(msg, v.keys.Login):
			if _, ok := v.session.User(); ok {
				v.session.SignOut()
				return v, v.status.set("Signed out", false)
			}
			return v, func() tea.Msg { return OpenLogin{} }
		case key.Matches(msg, v.keys.Enter):
			if item, ok := v.list.SelectedItem().(cardItem); ok {
				return v, func() tea.Msg {
					return SelectedCard{Card: item.card}
				}
			}
		}
	}

	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return v, cmd
}

// View renders the view
func (v *CardListView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}

	if !v.loaded {
		return v.styles.TitleMuted.Render("Loading cards...")
	}

	if v.loadErr != nil {
		return v.renderMessage("Could not load cards", v.loadErr.Error())
	}

	if len(v.list.Items()) == 0 {
		return v.renderMessage("No Cards", "The configured board has no open cards")
	}

	content := v.list.View() + "\n" + v.renderStatus() + v.renderHelp()
	return styles.CenterView(content, v.width, v.height)
}

func (v *CardListView) renderStatus() string {
	if v.status.text == "" {
		return v.renderUser() + "\n"
	}
	if v.status.isErr {
		return v.styles.StatusError.Render(v.status.text) + "\n"
	}
	return v.styles.StatusInfo.Render(v.status.text) + "\n"
}

func (v *CardListView) renderUser() string {
	if u, ok := v.session.User(); ok {
		label := "signed in as " + u.Email
		if !v.session.CanWrite() {
			label += " (read-only)"
		}
		return v.styles.StatusBar.Render(label)
	}
	return v.styles.StatusBar.Render("not signed in (read-only)")
}

func (v *CardListView) renderMessage(title, detail string) string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Render(title),
		"",
		s.TitleMuted.Width(clamp(contentWidth-8, 20, 60)).Align(lipgloss.Center).Render(detail),
		"",
		s.TitleMuted.Render("ctrl+r: reload • q: quit"),
	)

	// Center within content width, then center that in terminal
	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		content,
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *CardListView) renderHelp() string {
	k := v.keys
	return hintBar(v.styles, v.width,
		relabel(k.Enter, "open"), relabel(k.Search, "filter"), k.Manage, k.Login, k.Quit)
}

func (v *CardListView) renderHelpPopup() string {
	k := v.keys
	sheet := shortcutSheet(v.styles,
		relabel(k.Enter, "open card timeline"),
		relabel(k.Search, "filter cards"),
		relabel(k.Manage, "manage categories"),
		k.Login,
		relabel(k.Reload, "reload cards"),
		k.Quit,
	)
	centered := lipgloss.Place(styles.ContentWidth(v.width), v.height,
		lipgloss.Center, lipgloss.Center,
		v.styles.FilterBar.Render(sheet),
	)
	return styles.CenterView(centered, v.width, v.height)
}
