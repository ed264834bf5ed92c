package views

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgienger/cronocelda/internal/auth"
	"github.com/tgienger/cronocelda/internal/models"
	"github.com/tgienger/cronocelda/internal/timeline"
)

type fakeAttachments map[string][]models.Attachment

func (f fakeAttachments) Attachments(_ context.Context, cardID string) ([]models.Attachment, error) {
	return f[cardID], nil
}

type staticTagger []string

func (s staticTagger) Tag(context.Context, string) ([]string, error) {
	return s, nil
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// drain runs cmd and feeds every resulting message back into m
func drain(t *testing.T, m tea.Model, cmd tea.Cmd) {
	t.Helper()
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case nil:
	case tea.BatchMsg:
		for _, c := range msg {
			drain(t, m, c)
		}
	default:
		_, next := m.Update(msg)
		drain(t, m, next)
	}
}

func newSession(email string) *auth.Session {
	s := auth.NewSession(auth.NewAllowlist([]string{"ana@example.com"}))
	if email != "" {
		s.SignIn(models.User{UID: "u", Email: email}, "tok")
	}
	return s
}

func newTimelineView(t *testing.T, session *auth.Session) (*TimelineView, *timeline.Timeline) {
	t.Helper()
	statusTTL = time.Millisecond

	tl := timeline.New(timeline.NewRegistry(nil), zerolog.Nop())
	_, err := tl.AddCategory("General")
	require.NoError(t, err)

	d1 := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	src := fakeAttachments{"card1": {
		{ID: "1", FileName: "plan.pdf", MimeType: "application/pdf", Date: &d1},
		{ID: "2", FileName: "photo.jpg", MimeType: "image/jpeg", Date: &d2},
	}}
	syncer := timeline.NewSyncer(tl, src, timeline.NewDispatcher(staticTagger{"project"}, nil, zerolog.Nop()), zerolog.Nop())

	v := NewTimelineView(TimelineDeps{Syncer: syncer, Session: session}, models.Card{ID: "card1", Name: "Launch"}, timeline.RangeAll)
	v.now = func() time.Time { return time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC) }
	v.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	_, cmd := v.Update(v.loadCard())
	drain(t, v, cmd)
	return v, tl
}

func TestTimelineViewLoadsAndEnriches(t *testing.T) {
	v, _ := newTimelineView(t, newSession(""))

	require.Len(t, v.milestones, 2)
	assert.Equal(t, "2", v.milestones[0].ID)
	for _, m := range v.milestones {
		assert.Equal(t, []string{"project"}, m.Tags)
		assert.Equal(t, "General", m.Category.Name)
	}
	assert.Contains(t, v.View(), "photo.jpg")
}

func TestTimelineViewSearch(t *testing.T) {
	v, _ := newTimelineView(t, newSession(""))

	v.Update(keyMsg("/"))
	for _, r := range "plan" {
		v.Update(keyMsg(string(r)))
	}
	require.Len(t, v.milestones, 1)
	assert.Equal(t, "1", v.milestones[0].ID)

	v.Update(keyMsg("esc"))
	assert.Equal(t, FocusMilestoneList, v.focus)
}

func TestTimelineViewReadOnly(t *testing.T) {
	v, tl := newTimelineView(t, newSession("eve@example.com"))

	v.Update(keyMsg("i"))
	m, _ := tl.Get(v.milestones[0].ID)
	assert.False(t, m.IsImportant)
	assert.Empty(t, m.History)
	assert.Equal(t, readOnlyText, v.status.text)

	v.Update(keyMsg("n"))
	assert.False(t, v.creating)
}

func TestTimelineViewEdits(t *testing.T) {
	v, tl := newTimelineView(t, newSession("ana@example.com"))
	id := v.milestones[0].ID

	v.Update(keyMsg("i"))
	m, _ := tl.Get(id)
	assert.True(t, m.IsImportant)

	v.Update(keyMsg("e"))
	require.True(t, v.renaming)
	v.renameInput.SetValue("Team photo")
	v.Update(keyMsg("enter"))
	assert.False(t, v.renaming)

	v.Update(keyMsg("t"))
	require.True(t, v.editingTags)
	v.Update(keyMsg("n"))
	v.tagInput.SetValue("offsite")
	v.Update(keyMsg("enter"))
	v.Update(keyMsg("esc"))
	v.Update(keyMsg("esc"))
	assert.False(t, v.editingTags)

	m, _ = tl.Get(id)
	assert.Equal(t, "Team photo", m.Name)
	assert.Equal(t, []string{"project", "offsite"}, m.Tags)
	assert.Len(t, m.History, 3)
}

func TestTimelineViewUpload(t *testing.T) {
	v, tl := newTimelineView(t, newSession("ana@example.com"))

	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	v.Update(keyMsg("n"))
	require.True(t, v.creating)
	v.createName.SetValue("Retro notes")
	v.createFiles.SetValue(path)
	_, cmd := v.Update(keyMsg("ctrl+s"))
	assert.False(t, v.creating)
	drain(t, v, cmd)

	require.Equal(t, 3, tl.Len())
	var added models.Milestone
	for _, m := range tl.All() {
		if m.Name == "Retro notes" {
			added = m
		}
	}
	require.Len(t, added.AssociatedFiles, 1)
	assert.Equal(t, "notes.txt", added.AssociatedFiles[0].Name)
	assert.Equal(t, models.FileDocument, added.AssociatedFiles[0].Type)
	assert.Equal(t, []string{"project"}, added.Tags)
}

func TestTimelineViewUploadValidation(t *testing.T) {
	v, tl := newTimelineView(t, newSession("ana@example.com"))

	v.Update(keyMsg("n"))
	v.Update(keyMsg("ctrl+s"))
	assert.True(t, v.creating)
	assert.NotEmpty(t, v.createErr)
	assert.Equal(t, 2, tl.Len())
}

func TestCategoryViewChangeColorCascades(t *testing.T) {
	_, tl := newTimelineView(t, newSession(""))
	v := NewCategoryView(tl, newSession("ana@example.com"))

	v.Update(keyMsg("enter"))
	require.Equal(t, editColor, v.edit)
	v.input.SetValue("#ff0000")
	v.Update(keyMsg("enter"))

	for _, m := range tl.All() {
		assert.Equal(t, "#ff0000", m.Category.Color)
	}

	v.Update(keyMsg("enter"))
	v.input.SetValue("red")
	v.Update(keyMsg("enter"))
	assert.Equal(t, editColor, v.edit)
	assert.NotEmpty(t, v.status.text)
}

func TestStatFiles(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "a.pdf")
	require.NoError(t, os.WriteFile(pdf, make([]byte, 2048), 0644))
	blob := filepath.Join(dir, "blob")
	require.NoError(t, os.WriteFile(blob, []byte("x"), 0644))

	files, err := statFiles(splitPaths(" " + pdf + " ,, " + blob))
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "application/pdf", files[0].Type)
	assert.Equal(t, int64(2048), files[0].Size)
	assert.Equal(t, "application/octet-stream", files[1].Type)

	_, err = statFiles([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
	_, err = statFiles([]string{dir})
	assert.Error(t, err)
}

func TestRenderTagsKeepsPendingMarkWithManualTags(t *testing.T) {
	v, _ := newTimelineView(t, newSession(""))

	pending := models.Milestone{Tags: []string{"manual"}, Enriching: true}
	out := v.renderTags(pending)
	assert.Contains(t, out, "#manual")
	assert.Contains(t, out, "tagging...")

	settled := models.Milestone{Tags: []string{"manual", "project"}}
	out = v.renderTags(settled)
	assert.Contains(t, out, "#project")
	assert.NotContains(t, out, "tagging...")
}
