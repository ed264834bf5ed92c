package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/tgienger/cronocelda/internal/auth"
	"github.com/tgienger/cronocelda/internal/db"
	"github.com/tgienger/cronocelda/internal/models"
	"github.com/tgienger/cronocelda/internal/timeline"
	"github.com/tgienger/cronocelda/internal/ui/views"
)

// Currently active view
type View int

const (
	ViewCards View = iota
	ViewTimeline
	ViewCategories
	ViewLogin
)

// Deps are the services the app is built from
type Deps struct {
	DB         *db.DB
	Cards      views.CardSource
	BoardID    string
	Syncer     *timeline.Syncer
	Summarizer views.Summarizer    // nil disables summaries
	Auth       views.Authenticator // nil disables sign-in
	Session    *auth.Session
	Log        zerolog.Logger
}

type App struct {
	deps         Deps
	currentView  View
	previousView View
	cardList     *views.CardListView
	timelineView *views.TimelineView
	categories   *views.CategoryView
	login        *views.LoginView
	width        int
	height       int
}

// Creates a new application
func NewApp(deps Deps) *App {
	return &App{
		deps:        deps,
		currentView: ViewCards,
		cardList:    views.NewCardListView(deps.Cards, deps.BoardID, deps.Session),
		categories:  views.NewCategoryView(deps.Syncer.Timeline(), deps.Session),
		login:       views.NewLoginView(deps.Auth, deps.Session),
	}
}

type resumeCardMsg struct {
	card models.Card
	err  error
}

func (a *App) Init() tea.Cmd {
	// Check for last opened card
	lastCardID, err := a.deps.DB.GetSetting(db.SettingLastCardID)
	if err == nil && lastCardID != "" {
		return func() tea.Msg {
			card, err := a.deps.Cards.Card(context.Background(), lastCardID)
			return resumeCardMsg{card: card, err: err}
		}
	}

	return a.cardList.Init()
}

func (a *App) resize() tea.Cmd {
	return func() tea.Msg {
		return tea.WindowSizeMsg{Width: a.width, Height: a.height}
	}
}

func (a *App) openCard(card models.Card) tea.Cmd {
	rng := timeline.RangeAuto
	if saved, err := a.deps.DB.GetSetting(db.SettingRange); err == nil {
		rng = timeline.ParseRange(saved)
	}

	a.currentView = ViewTimeline
	a.timelineView = views.NewTimelineView(views.TimelineDeps{
		Syncer:     a.deps.Syncer,
		Summarizer: a.deps.Summarizer,
		Session:    a.deps.Session,
	}, card, rng)

	// Save as last opened card
	if err := a.deps.DB.SetSetting(db.SettingLastCardID, card.ID); err != nil {
		a.deps.Log.Warn().Err(err).Msg("could not save last card")
	}

	return tea.Batch(a.timelineView.Init(), a.resize())
}

func (a *App) switchTo(view View) tea.Cmd {
	a.previousView = a.currentView
	a.currentView = view
	return a.resize()
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Views that persist always get the new size
		a.cardList.Update(msg)
		a.categories.Update(msg)
		a.login.Update(msg)

	case resumeCardMsg:
		if msg.err != nil {
			a.deps.Log.Warn().Err(msg.err).Msg("could not reopen last card")
			return a, a.cardList.Init()
		}
		return a, tea.Batch(a.openCard(msg.card), a.cardList.Init())

	case views.SelectedCard:
		return a, a.openCard(msg.Card)

	case views.BackToCards:
		a.currentView = ViewCards
		if err := a.deps.DB.SetSetting(db.SettingLastCardID, ""); err != nil {
			a.deps.Log.Warn().Err(err).Msg("could not clear last card")
		}
		return a, tea.Batch(a.cardList.Init(), a.resize())

	case views.RangeChanged:
		if err := a.deps.DB.SetSetting(db.SettingRange, string(msg.Range)); err != nil {
			a.deps.Log.Warn().Err(err).Msg("could not save range")
		}
		return a, nil

	case views.OpenCategories:
		return a, a.switchTo(ViewCategories)

	case views.OpenLogin:
		return a, tea.Batch(a.switchTo(ViewLogin), a.login.Init())

	case views.CloseCategories, views.LoginDone:
		a.currentView = a.previousView
		if a.currentView == ViewTimeline && a.timelineView == nil {
			a.currentView = ViewCards
		}
		return a, a.resize()
	}

	var cmd tea.Cmd
	switch a.currentView {
	case ViewCards:
		_, cmd = a.cardList.Update(msg)
	case ViewTimeline:
		_, cmd = a.timelineView.Update(msg)
	case ViewCategories:
		_, cmd = a.categories.Update(msg)
	case ViewLogin:
		_, cmd = a.login.Update(msg)
	}

	// Loads and enrichment results keep arriving while another view is open
	if _, isKey := msg.(tea.KeyMsg); !isKey && a.timelineView != nil && a.currentView != ViewTimeline {
		_, bg := a.timelineView.Update(msg)
		cmd = tea.Batch(cmd, bg)
	}

	return a, cmd
}

func (a *App) View() string {
	switch a.currentView {
	case ViewTimeline:
		if a.timelineView != nil {
			return a.timelineView.View()
		}
	case ViewCategories:
		return a.categories.View()
	case ViewLogin:
		return a.login.View()
	}
	return a.cardList.View()
}
