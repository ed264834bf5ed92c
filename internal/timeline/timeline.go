// Package timeline holds the canonical milestone collection and everything that
// mutates or projects it: normalization of external records, the category
// registry, the per-milestone audit history and background tag enrichment.
package timeline

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tgienger/cronocelda/internal/models"
)

// Ticket identifies one enrichment request. Generation ties it to the collection
// it was issued for; a ticket from a replaced collection is stale.
type Ticket struct {
	MilestoneID string
	Generation  uint64
	Text        string
}

// Timeline owns the canonical collection and the category registry
type Timeline struct {
	mu         sync.Mutex
	milestones []models.Milestone
	registry   *Registry
	generation uint64
	now        func() time.Time
	log        zerolog.Logger
}

// New creates an empty timeline backed by registry
func New(registry *Registry, log zerolog.Logger) *Timeline {
	if registry == nil {
		registry = NewRegistry(nil)
	}
	return &Timeline{
		registry: registry,
		now:      time.Now,
		log:      log.With().Str("component", "timeline").Logger(),
	}
}

// SetClock replaces the clock used for history timestamps
func (t *Timeline) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Generation returns the generation of the current collection
func (t *Timeline) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation
}

// Insert appends a milestone with its tags reset to pending and returns the
// ticket for its enrichment
func (t *Timeline) Insert(m models.Milestone) Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()

	m = m.Clone()
	m.Tags = nil
	m.Enriching = true
	t.milestones = append(t.milestones, m)
	return t.ticketLocked(m)
}

// Replace atomically swaps the whole collection and starts a new generation.
// Tickets issued for the previous collection become stale.
func (t *Timeline) Replace(ms []models.Milestone) []Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.generation++
	next := make([]models.Milestone, 0, len(ms))
	tickets := make([]Ticket, 0, len(ms))
	for _, m := range ms {
		m = m.Clone()
		m.Tags = nil
		m.Enriching = true
		next = append(next, m)
		tickets = append(tickets, t.ticketLocked(m))
	}
	t.milestones = next
	return tickets
}

// Clear empties the collection and starts a new generation
func (t *Timeline) Clear() {
	t.Replace(nil)
}

// Len returns the number of milestones in the collection
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.milestones)
}

// Get returns a copy of the milestone with the given id
func (t *Timeline) Get(id string) (models.Milestone, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexLocked(id)
	if i < 0 {
		return models.Milestone{}, false
	}
	return t.milestones[i].Clone(), true
}

// All returns copies of every milestone in insertion order
func (t *Timeline) All() []models.Milestone {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneAll(t.milestones)
}

// Ticket issues an enrichment ticket for a milestone whose tags are still pending.
// It returns false when the milestone is gone or was already enriched.
func (t *Timeline) Ticket(id string) (Ticket, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i := t.indexLocked(id)
	if i < 0 || !t.milestones[i].TagsPending() {
		return Ticket{}, false
	}
	return t.ticketLocked(t.milestones[i]), true
}

// ApplyTags patches the tags of the milestone named by the ticket. Stale tickets
// and ids missing from the current collection are dropped. A nil result is
// stored as an empty list so a settled milestone is never pending again.
func (t *Timeline) ApplyTags(ticket Ticket, tags []string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ticket.Generation != t.generation {
		t.log.Debug().
			Str("milestone", ticket.MilestoneID).
			Uint64("ticket_generation", ticket.Generation).
			Uint64("generation", t.generation).
			Msg("dropping stale tags")
		return false
	}
	i := t.indexLocked(ticket.MilestoneID)
	if i < 0 {
		return false
	}

	m := t.milestones[i].Clone()
	m.Enriching = false
	if m.Tags == nil {
		m.Tags = append([]string{}, tags...)
	} else {
		// tags added by hand while enrichment was in flight are kept
		for _, tag := range tags {
			if !containsFold(m.Tags, tag) {
				m.Tags = append(m.Tags, tag)
			}
		}
	}
	t.milestones[i] = m
	return true
}

func (t *Timeline) ticketLocked(m models.Milestone) Ticket {
	return Ticket{
		MilestoneID: m.ID,
		Generation:  t.generation,
		Text:        enrichmentText(m),
	}
}

func (t *Timeline) indexLocked(id string) int {
	for i := range t.milestones {
		if t.milestones[i].ID == id {
			return i
		}
	}
	return -1
}

// enrichmentText is what the tagging service reads for a milestone
func enrichmentText(m models.Milestone) string {
	parts := []string{m.Name}
	if m.Description != "" {
		parts = append(parts, m.Description)
	}
	for _, f := range m.AssociatedFiles {
		if f.Name != m.Name {
			parts = append(parts, f.Name)
		}
	}
	return strings.Join(parts, "\n")
}

func cloneAll(ms []models.Milestone) []models.Milestone {
	out := make([]models.Milestone, len(ms))
	for i, m := range ms {
		out[i] = m.Clone()
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// Categories

// AddCategory registers a new category
func (t *Timeline) AddCategory(name string) (models.Category, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.registry.Add(name)
}

// AddCategoryWithColor registers a category with an explicit color. An empty
// color picks from the palette.
func (t *Timeline) AddCategoryWithColor(name, color string) (models.Category, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.registry.AddWithColor(name, color)
}

// Categories lists the registered categories
func (t *Timeline) Categories() []models.Category {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.registry.List()
}

// Category returns the registered category with the given id
func (t *Timeline) Category(id string) (models.Category, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.registry.Get(id)
}

// DefaultCategory is assigned to milestones that arrive without one
func (t *Timeline) DefaultCategory() (models.Category, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.registry.Default()
}

// ChangeCategoryColor updates a category and rewrites it on every milestone
// referencing it, as one operation
func (t *Timeline) ChangeCategoryColor(id, color string) (models.Category, error) {
	return t.UpdateCategory(id, CategoryPatch{Color: &color})
}

// RenameCategory updates a category name and cascades it like ChangeCategoryColor
func (t *Timeline) RenameCategory(id, name string) (models.Category, error) {
	return t.UpdateCategory(id, CategoryPatch{Name: &name})
}

// UpdateCategory applies a patch and cascades it. An invalid field fails the
// whole patch before anything changes.
func (t *Timeline) UpdateCategory(id string, patch CategoryPatch) (models.Category, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, err := t.registry.Update(id, patch)
	if err != nil {
		return c, err
	}
	t.cascadeLocked(c)
	return c, nil
}

func (t *Timeline) cascadeLocked(c models.Category) {
	n := 0
	for i := range t.milestones {
		if t.milestones[i].Category.ID == c.ID {
			m := t.milestones[i].Clone()
			m.Category = c
			t.milestones[i] = m
			n++
		}
	}
	t.log.Debug().Str("category", c.ID).Int("milestones", n).Msg("category cascaded")
}
