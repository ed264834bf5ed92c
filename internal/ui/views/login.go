package views

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tgienger/cronocelda/internal/auth"
	"github.com/tgienger/cronocelda/internal/ui/keys"
	"github.com/tgienger/cronocelda/internal/ui/styles"
)

// LoginView signs the user in with email and password
type LoginView struct {
	auth     Authenticator
	session  *auth.Session
	styles   *styles.Styles
	keys     keys.KeyMap
	width    int
	height   int
	email    textinput.Model
	password textinput.Model
	focusIdx int // 0=email, 1=password, 2=submit
	busy     bool
	errText  string
}

type loginResultMsg struct {
	err error
}

func NewLoginView(authenticator Authenticator, session *auth.Session) *LoginView {
	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.CharLimit = 200

	password := textinput.New()
	password.Placeholder = "Password"
	password.CharLimit = 200
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	return &LoginView{
		auth:     authenticator,
		session:  session,
		styles:   styles.NewStyles(),
		keys:     keys.DefaultKeyMap(),
		email:    email,
		password: password,
	}
}

func (v *LoginView) Init() tea.Cmd {
	v.focusIdx = 0
	v.updateFocus()
	return textinput.Blink
}

func (v *LoginView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		return v, nil

	case loginResultMsg:
		v.busy = false
		v.password.Reset()
		// A signed-in user who is not allow-listed still gets a read-only session
		if msg.err != nil && !(errors.Is(msg.err, auth.ErrNotAllowed) && v.signedIn()) {
			v.errText = errorText(msg.err)
			return v, nil
		}
		return v, func() tea.Msg { return LoginDone{} }

	case tea.KeyMsg:
		if v.busy {
			return v, nil
		}
		switch {
		case key.Matches(msg, v.keys.Back):
			return v, func() tea.Msg { return LoginDone{} }

		case key.Matches(msg, v.keys.Tab):
			v.focusIdx = (v.focusIdx + 1) % 3
			v.updateFocus()
			return v, nil

		case msg.String() == "shift+tab":
			v.focusIdx = (v.focusIdx + 2) % 3
			v.updateFocus()
			return v, nil

		case key.Matches(msg, v.keys.Enter):
			if v.focusIdx < 2 {
				v.focusIdx++
				v.updateFocus()
				return v, nil
			}
			return v, v.submit()
		}
	}

	var cmd tea.Cmd
	switch v.focusIdx {
	case 0:
		v.email, cmd = v.email.Update(msg)
	case 1:
		v.password, cmd = v.password.Update(msg)
	}
	return v, cmd
}

func (v *LoginView) signedIn() bool {
	_, ok := v.session.User()
	return ok
}

func (v *LoginView) submit() tea.Cmd {
	// Inline validation before any network call
	if err := auth.ValidateEmail(v.email.Value()); err != nil {
		v.errText = errorText(err)
		v.focusIdx = 0
		v.updateFocus()
		return nil
	}
	if v.auth == nil {
		v.errText = "Sign-in is not configured"
		return nil
	}

	v.busy = true
	v.errText = ""
	email, password := v.email.Value(), v.password.Value()
	return func() tea.Msg {
		return loginResultMsg{err: v.auth.Login(context.Background(), v.session, email, password)}
	}
}

func (v *LoginView) updateFocus() {
	v.email.Blur()
	v.password.Blur()
	switch v.focusIdx {
	case 0:
		v.email.Focus()
	case 1:
		v.password.Focus()
	}
}

// View renders the view
func (v *LoginView) View() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	emailStyle := s.Input
	passwordStyle := s.Input
	btnStyle := s.Button

	switch v.focusIdx {
	case 0:
		emailStyle = s.InputFocused
	case 1:
		passwordStyle = s.InputFocused
	case 2:
		btnStyle = s.ButtonFocused
	}

	inputWidth := clamp(contentWidth-6, 20, 50)

	button := " Sign in "
	if v.busy {
		button = " Signing in... "
	}

	errLine := ""
	if v.errText != "" {
		errLine = s.StatusError.Render(v.errText)
	}

	form := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("Sign In"),
		"",
		"Email:",
		emailStyle.Width(inputWidth).Render(v.email.View()),
		"",
		"Password:",
		passwordStyle.Width(inputWidth).Render(v.password.View()),
		"",
		btnStyle.Render(button),
		errLine,
		s.TitleMuted.Render("Tab: next • ↵: sign in • Esc: continue read-only"),
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		form,
	)
	return styles.CenterView(centered, v.width, v.height)
}
