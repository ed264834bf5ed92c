package timeline_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgienger/cronocelda/internal/models"
	"github.com/tgienger/cronocelda/internal/timeline"
)

func newTimeline(t *testing.T) *timeline.Timeline {
	t.Helper()
	tl := timeline.New(timeline.NewRegistry(nil), zerolog.Nop())
	tl.SetClock(func() time.Time { return time.Date(2024, 2, 3, 4, 5, 6, 0, time.Local) })
	return tl
}

func milestone(id, name string, at time.Time) models.Milestone {
	return models.Milestone{ID: id, Name: name, OccurredAt: at}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestInsertResetsTagsToPending(t *testing.T) {
	tl := newTimeline(t)
	m := milestone("a", "A", day(2024, 1, 1))
	m.Tags = []string{"stale"}

	ticket := tl.Insert(m)
	assert.Equal(t, "a", ticket.MilestoneID)
	assert.Equal(t, tl.Generation(), ticket.Generation)

	got, ok := tl.Get("a")
	require.True(t, ok)
	assert.True(t, got.TagsPending())
}

func TestApplyTagsTerminatesPending(t *testing.T) {
	tl := newTimeline(t)
	ticket := tl.Insert(milestone("a", "A", day(2024, 1, 1)))

	require.True(t, tl.ApplyTags(ticket, nil))
	got, _ := tl.Get("a")
	assert.NotNil(t, got.Tags)
	assert.Empty(t, got.Tags)
}

func TestApplyTagsNoCrossContamination(t *testing.T) {
	tl := newTimeline(t)
	ta := tl.Insert(milestone("a", "A", day(2024, 1, 1)))
	tb := tl.Insert(milestone("b", "B", day(2024, 1, 2)))

	require.True(t, tl.ApplyTags(tb, []string{"beta"}))
	a, _ := tl.Get("a")
	assert.Nil(t, a.Tags)

	require.True(t, tl.ApplyTags(ta, []string{"alpha"}))
	a, _ = tl.Get("a")
	b, _ := tl.Get("b")
	assert.Equal(t, []string{"alpha"}, a.Tags)
	assert.Equal(t, []string{"beta"}, b.Tags)
}

func TestApplyTagsAfterReplaceIsDropped(t *testing.T) {
	tl := newTimeline(t)
	old := tl.Insert(milestone("a", "A", day(2024, 1, 1)))

	tl.Replace([]models.Milestone{milestone("a", "A again", day(2024, 1, 1))})
	assert.False(t, tl.ApplyTags(old, []string{"late"}))

	got, _ := tl.Get("a")
	assert.Nil(t, got.Tags)
}

func TestApplyTagsUnknownID(t *testing.T) {
	tl := newTimeline(t)
	tl.Insert(milestone("a", "A", day(2024, 1, 1)))
	assert.False(t, tl.ApplyTags(timeline.Ticket{MilestoneID: "zzz", Generation: tl.Generation()}, []string{"x"}))
}

func TestApplyTagsKeepsManualTags(t *testing.T) {
	tl := newTimeline(t)
	ticket := tl.Insert(milestone("a", "A", day(2024, 1, 1)))
	_, err := tl.AddTag("a", "manual")
	require.NoError(t, err)

	require.True(t, tl.ApplyTags(ticket, []string{"Manual", "auto"}))
	got, _ := tl.Get("a")
	assert.Equal(t, []string{"manual", "auto"}, got.Tags)
}

func TestTicketOnlyWhilePending(t *testing.T) {
	tl := newTimeline(t)
	first := tl.Insert(milestone("a", "A", day(2024, 1, 1)))

	again, ok := tl.Ticket("a")
	require.True(t, ok)
	assert.Equal(t, first, again)

	tl.ApplyTags(first, []string{"x"})
	_, ok = tl.Ticket("a")
	assert.False(t, ok)

	_, ok = tl.Ticket("missing")
	assert.False(t, ok)
}

func TestReplaceBumpsGeneration(t *testing.T) {
	tl := newTimeline(t)
	g0 := tl.Generation()
	tickets := tl.Replace([]models.Milestone{
		milestone("a", "A", day(2024, 1, 1)),
		milestone("b", "B", day(2024, 1, 2)),
	})
	require.Len(t, tickets, 2)
	assert.Equal(t, g0+1, tickets[0].Generation)
	assert.Equal(t, 2, tl.Len())

	tl.Clear()
	assert.Equal(t, 0, tl.Len())
	assert.Equal(t, g0+2, tl.Generation())
}

func TestGetReturnsCopy(t *testing.T) {
	tl := newTimeline(t)
	tl.Insert(milestone("a", "A", day(2024, 1, 1)))
	_, err := tl.AddTag("a", "one")
	require.NoError(t, err)

	got, _ := tl.Get("a")
	got.Tags[0] = "mutated"
	got.History = append(got.History, "forged")

	again, _ := tl.Get("a")
	assert.Equal(t, []string{"one"}, again.Tags)
	assert.Len(t, again.History, 1)
}

func TestHistoryMonotonic(t *testing.T) {
	tl := newTimeline(t)
	cat, err := tl.AddCategory("Work")
	require.NoError(t, err)
	tl.Insert(milestone("a", "A", day(2024, 1, 1)))

	ops := []func() (models.Milestone, error){
		func() (models.Milestone, error) { return tl.Rename("a", "Renamed") },
		func() (models.Milestone, error) { return tl.SetCategory("a", cat.ID) },
		func() (models.Milestone, error) { return tl.AddTag("a", "red") },
		func() (models.Milestone, error) { return tl.RemoveTag("a", "red") },
		func() (models.Milestone, error) { return tl.ToggleImportant("a") },
		func() (models.Milestone, error) {
			return tl.AddFiles("a", []models.LocalFile{{Name: "x.png", Type: "image/png", Size: 10}})
		},
	}

	var before []string
	for i, op := range ops {
		m, err := op()
		require.NoError(t, err)
		require.Len(t, m.History, i+1)
		if i > 0 {
			assert.Equal(t, before, m.History[:i], "prior entries must be untouched")
		}
		assert.True(t, strings.HasPrefix(m.History[i], "03/02/2024, 04:05:06 - "), m.History[i])
		before = m.History
	}

	m, _ := tl.Get("a")
	assert.Equal(t, "Renamed", m.Name)
	assert.Equal(t, cat, m.Category)
	assert.Empty(t, m.Tags)
	assert.True(t, m.IsImportant)
	require.Len(t, m.AssociatedFiles, 1)
	assert.Contains(t, m.History[0], `Title changed from "A" to "Renamed"`)
	assert.Contains(t, m.History[5], "x.png")
}

func TestNoOpMutationsDoNotLog(t *testing.T) {
	tl := newTimeline(t)
	tl.Insert(milestone("a", "A", day(2024, 1, 1)))

	_, err := tl.AddTag("a", "x")
	require.NoError(t, err)
	m, err := tl.AddTag("a", "X")
	require.NoError(t, err)
	assert.Len(t, m.History, 1)

	m, err = tl.RemoveTag("a", "absent")
	require.NoError(t, err)
	assert.Len(t, m.History, 1)

	m, err = tl.Rename("a", "A")
	require.NoError(t, err)
	assert.Len(t, m.History, 1)
}

func TestMutationErrors(t *testing.T) {
	tl := newTimeline(t)
	tl.Insert(milestone("a", "A", day(2024, 1, 1)))

	_, err := tl.Rename("missing", "x")
	assert.ErrorIs(t, err, timeline.ErrMilestoneNotFound)

	_, err = tl.SetCategory("a", "nope")
	assert.ErrorIs(t, err, timeline.ErrCategoryNotFound)

	_, err = tl.Rename("a", "   ")
	var verr *timeline.ValidationError
	assert.True(t, errors.As(err, &verr))

	_, err = tl.AddFiles("a", nil)
	assert.True(t, errors.As(err, &verr))

	m, _ := tl.Get("a")
	assert.Empty(t, m.History)
}

func TestCategoryColorCascade(t *testing.T) {
	tl := newTimeline(t)
	work, _ := tl.AddCategory("Work")
	home, _ := tl.AddCategory("Home")

	tl.Insert(milestone("a", "A", day(2024, 1, 1)))
	tl.Insert(milestone("b", "B", day(2024, 1, 2)))
	tl.Insert(milestone("c", "C", day(2024, 1, 3)))
	_, _ = tl.SetCategory("a", work.ID)
	_, _ = tl.SetCategory("b", home.ID)
	_, _ = tl.SetCategory("c", work.ID)

	updated, err := tl.ChangeCategoryColor(work.ID, "#123456")
	require.NoError(t, err)
	assert.Equal(t, "#123456", updated.Color)

	for _, id := range []string{"a", "c"} {
		m, _ := tl.Get(id)
		assert.Equal(t, updated, m.Category)
	}
	b, _ := tl.Get("b")
	assert.Equal(t, home, b.Category)

	renamed, err := tl.RenameCategory(home.ID, "House")
	require.NoError(t, err)
	b, _ = tl.Get("b")
	assert.Equal(t, renamed, b.Category)
	assert.Equal(t, "House", b.Category.Name)

	_, err = tl.ChangeCategoryColor(work.ID, "blue")
	var verr *timeline.ValidationError
	assert.True(t, errors.As(err, &verr))
	_, err = tl.ChangeCategoryColor("missing", "#fff")
	assert.ErrorIs(t, err, timeline.ErrCategoryNotFound)
}

func TestManualTagWhileEnrichmentPending(t *testing.T) {
	tl := newTimeline(t)
	ticket := tl.Insert(milestone("a", "A", day(2024, 1, 1)))

	m, err := tl.AddTag("a", "manual")
	require.NoError(t, err)
	assert.Equal(t, []string{"manual"}, m.Tags)
	assert.True(t, m.TagsPending(), "a hand-added tag must not end the pending state")

	again, ok := tl.Ticket("a")
	require.True(t, ok)
	assert.Equal(t, ticket, again)

	require.True(t, tl.ApplyTags(ticket, []string{"auto"}))
	m, _ = tl.Get("a")
	assert.False(t, m.TagsPending())
	assert.Equal(t, []string{"manual", "auto"}, m.Tags)
}

func TestUpdateAppliesEveryField(t *testing.T) {
	tl := newTimeline(t)
	work, err := tl.AddCategory("Work")
	require.NoError(t, err)
	tl.Insert(milestone("a", "A", day(2024, 1, 1)))

	name, important := "Renamed", true
	m, err := tl.Update("a", timeline.MilestonePatch{Name: &name, CategoryID: &work.ID, Important: &important})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", m.Name)
	assert.Equal(t, work, m.Category)
	assert.True(t, m.IsImportant)
	assert.Len(t, m.History, 3)

	m, err = tl.Update("a", timeline.MilestonePatch{Important: &important})
	require.NoError(t, err)
	assert.Len(t, m.History, 3)
}

func TestUpdateRejectsWithoutPartialChange(t *testing.T) {
	ghost, blank, renamed, important := "ghost", "   ", "Renamed", true

	tests := []struct {
		name  string
		patch timeline.MilestonePatch
		check func(t *testing.T, err error)
	}{
		{
			name:  "unknown category",
			patch: timeline.MilestonePatch{Name: &renamed, CategoryID: &ghost, Important: &important},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, timeline.ErrCategoryNotFound) },
		},
		{
			name:  "blank name",
			patch: timeline.MilestonePatch{Name: &blank, Important: &important},
			check: func(t *testing.T, err error) {
				var verr *timeline.ValidationError
				assert.ErrorAs(t, err, &verr)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl := newTimeline(t)
			tl.Insert(milestone("a", "A", day(2024, 1, 1)))
			before, _ := tl.Get("a")

			_, err := tl.Update("a", tt.patch)
			tt.check(t, err)

			after, _ := tl.Get("a")
			assert.Equal(t, before, after)
		})
	}
}

func TestUpdateCategoryRejectsWithoutPartialChange(t *testing.T) {
	tl := newTimeline(t)
	work, _ := tl.AddCategory("Work")
	tl.Insert(milestone("a", "A", day(2024, 1, 1)))
	_, err := tl.SetCategory("a", work.ID)
	require.NoError(t, err)

	name, color := "Misc", "blue"
	_, err = tl.UpdateCategory(work.ID, timeline.CategoryPatch{Name: &name, Color: &color})
	var verr *timeline.ValidationError
	require.ErrorAs(t, err, &verr)

	got, _ := tl.Category(work.ID)
	assert.Equal(t, work, got)
	m, _ := tl.Get("a")
	assert.Equal(t, work, m.Category)

	_, err = tl.AddCategoryWithColor("Docs", "blue")
	require.ErrorAs(t, err, &verr)
	assert.Len(t, tl.Categories(), 1)

	docs, err := tl.AddCategoryWithColor("Docs", "#0f0")
	require.NoError(t, err)
	assert.Equal(t, "#0f0", docs.Color)
}
