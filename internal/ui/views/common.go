package views

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tgienger/cronocelda/internal/auth"
	"github.com/tgienger/cronocelda/internal/models"
	"github.com/tgienger/cronocelda/internal/timeline"
	"github.com/tgienger/cronocelda/internal/ui/styles"
)

// CardSource lists the cards a timeline can be loaded from
type CardSource interface {
	Cards(ctx context.Context, boardID string) ([]models.Card, error)
	Card(ctx context.Context, cardID string) (models.Card, error)
}

// Summarizer writes a narrative for the visible milestones
type Summarizer interface {
	Summarize(ctx context.Context, ms []models.Milestone) (string, error)
}

// Authenticator signs a session in with a password
type Authenticator interface {
	Login(ctx context.Context, session *auth.Session, email, password string) error
}

// Navigation messages handled by the app
type (
	SelectedCard struct {
		Card models.Card
	}
	BackToCards     struct{}
	OpenCategories  struct{}
	CloseCategories struct{}
	OpenLogin       struct{}
	LoginDone       struct{}
	RangeChanged    struct {
		Range timeline.RangeShortcut
	}
)

// statusTTL is how long a notification stays on screen
var statusTTL = 4 * time.Second

// status is the non-blocking notification line shared by the views
type status struct {
	text  string
	isErr bool
	seq   int
}

type clearStatusMsg struct {
	seq int
}

// statusSeq is shared so a clear message only ever matches the view that set it
var statusSeq atomic.Int64

func (s *status) set(text string, isErr bool) tea.Cmd {
	s.seq = int(statusSeq.Add(1))
	s.text = text
	s.isErr = isErr
	seq := s.seq
	return tea.Tick(statusTTL, func(time.Time) tea.Msg {
		return clearStatusMsg{seq: seq}
	})
}

func (s *status) clear(msg clearStatusMsg) {
	if msg.seq == s.seq {
		s.text = ""
	}
}

// errorText turns an error into a one-line notification
func errorText(err error) string {
	var (
		validation *timeline.ValidationError
		fetch      *timeline.SourceFetchError
	)
	switch {
	case errors.As(err, &validation):
		return validation.Error()
	case errors.As(err, &fetch):
		return "Could not load attachments: " + fetch.Err.Error()
	case errors.Is(err, auth.ErrNotAllowed):
		return "Signed in, but this account is not allowed to edit"
	default:
		return err.Error()
	}
}

const readOnlyText = "Read-only: sign in with an allowed account to edit (L)"

// clamp returns val clamped between minVal and maxVal
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// relabel returns a copy of b with a view-specific help description
func relabel(b key.Binding, desc string) key.Binding {
	b.SetHelp(b.Help().Key, desc)
	return b
}

// hintBar renders the one-line help under a view. Narrow terminals only get
// the hint to press ?.
func hintBar(s *styles.Styles, width int, bindings ...key.Binding) string {
	if w := styles.ContentWidth(width); w > 0 && w < 50 {
		return s.Help.Render(s.HelpKey.Render("?") + " help")
	}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, s.HelpKey.Render(h.Key)+" "+h.Desc)
	}
	return s.Help.Render(strings.Join(parts, " • "))
}

// shortcutSheet is the body of the ? popup
func shortcutSheet(s *styles.Styles, bindings ...key.Binding) string {
	lines := []string{s.Title.Render("Keyboard Shortcuts"), ""}
	for _, b := range bindings {
		h := b.Help()
		lines = append(lines, s.HelpKey.Width(8).Render(h.Key)+h.Desc)
	}
	lines = append(lines, "", s.TitleMuted.Render("Press any key to close"))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// splitPaths splits a comma-separated list of file paths, expanding ~
func splitPaths(input string) []string {
	var paths []string
	for _, p := range strings.Split(input, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "~/") {
			if home, err := os.UserHomeDir(); err == nil {
				p = filepath.Join(home, p[2:])
			}
		}
		paths = append(paths, p)
	}
	return paths
}

// statFiles describes local files for an upload; the MIME type comes from the extension
func statFiles(paths []string) ([]models.LocalFile, error) {
	files := make([]models.LocalFile, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%s is a directory", p)
		}
		mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(p)))
		if mimeType == "" {
			mimeType = "application/octet-stream"
		}
		files = append(files, models.LocalFile{
			Name: info.Name(),
			Type: mimeType,
			Size: info.Size(),
			Path: p,
		})
	}
	return files, nil
}
