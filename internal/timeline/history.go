package timeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/tgienger/cronocelda/internal/models"
)

// HistoryLayout renders the timestamp of an audit entry (day/month/year)
const HistoryLayout = "02/01/2006, 15:04:05"

// HistoryEntry formats one audit entry
func HistoryEntry(at time.Time, action string) string {
	return at.Local().Format(HistoryLayout) + " - " + action
}

// mutate applies fn to a copy of the milestone and, when fn reports a
// change, stores the copy with one appended history entry
func (t *Timeline) mutate(id string, fn func(m *models.Milestone) (string, error)) (models.Milestone, error) {
	return t.mutateAll(id, func(m *models.Milestone) ([]string, error) {
		action, err := fn(m)
		if action == "" {
			return nil, err
		}
		return []string{action}, err
	})
}

// mutateAll is mutate for several changes at once: one history entry per
// action. An error from fn discards the copy, so nothing is stored.
func (t *Timeline) mutateAll(id string, fn func(m *models.Milestone) ([]string, error)) (models.Milestone, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	i := t.indexLocked(id)
	if i < 0 {
		return models.Milestone{}, ErrMilestoneNotFound
	}
	m := t.milestones[i].Clone()
	actions, err := fn(&m)
	if err != nil {
		return models.Milestone{}, err
	}
	if len(actions) == 0 {
		return m, nil
	}
	now := t.now()
	for _, action := range actions {
		m.History = append(m.History, HistoryEntry(now, action))
	}
	t.milestones[i] = m
	return m.Clone(), nil
}

func trimmedName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &ValidationError{Field: "name", Reason: "required"}
	}
	return name, nil
}

func rename(m *models.Milestone, name string) string {
	if m.Name == name {
		return ""
	}
	action := fmt.Sprintf("Title changed from %q to %q", m.Name, name)
	m.Name = name
	return action
}

func setCategory(m *models.Milestone, c models.Category) string {
	if m.Category.ID == c.ID {
		return ""
	}
	action := fmt.Sprintf("Category changed from %q to %q", m.Category.Name, c.Name)
	if m.Category.ID == "" {
		action = fmt.Sprintf("Category set to %q", c.Name)
	}
	m.Category = c
	return action
}

func toggleImportant(m *models.Milestone) string {
	m.IsImportant = !m.IsImportant
	if m.IsImportant {
		return "Marked as important"
	}
	return "Unmarked as important"
}

// Rename changes the milestone title
func (t *Timeline) Rename(id, name string) (models.Milestone, error) {
	name, err := trimmedName(name)
	if err != nil {
		return models.Milestone{}, err
	}
	return t.mutate(id, func(m *models.Milestone) (string, error) {
		return rename(m, name), nil
	})
}

// SetCategory assigns a registered category to the milestone
func (t *Timeline) SetCategory(id, categoryID string) (models.Milestone, error) {
	return t.mutate(id, func(m *models.Milestone) (string, error) {
		c, ok := t.registry.Get(categoryID)
		if !ok {
			return "", ErrCategoryNotFound
		}
		return setCategory(m, c), nil
	})
}

// MilestonePatch lists the milestone fields to change; nil fields stay as they are.
// Important is the wanted state, not a toggle.
type MilestonePatch struct {
	Name       *string
	CategoryID *string
	Important  *bool
}

// Update applies a patch as one operation. Every field is checked before
// anything changes, and each field that does change appends its own entry.
func (t *Timeline) Update(id string, patch MilestonePatch) (models.Milestone, error) {
	var name string
	if patch.Name != nil {
		var err error
		if name, err = trimmedName(*patch.Name); err != nil {
			return models.Milestone{}, err
		}
	}
	return t.mutateAll(id, func(m *models.Milestone) ([]string, error) {
		var category models.Category
		if patch.CategoryID != nil {
			var ok bool
			if category, ok = t.registry.Get(*patch.CategoryID); !ok {
				return nil, ErrCategoryNotFound
			}
		}

		var actions []string
		if patch.Name != nil {
			actions = append(actions, rename(m, name))
		}
		if patch.CategoryID != nil {
			actions = append(actions, setCategory(m, category))
		}
		if patch.Important != nil && *patch.Important != m.IsImportant {
			actions = append(actions, toggleImportant(m))
		}
		return compact(actions), nil
	})
}

func compact(actions []string) []string {
	out := actions[:0]
	for _, a := range actions {
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}

// AddTag adds a tag by hand. Adding a tag that is already present does nothing.
func (t *Timeline) AddTag(id, tag string) (models.Milestone, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return models.Milestone{}, &ValidationError{Field: "tag", Reason: "required"}
	}
	return t.mutate(id, func(m *models.Milestone) (string, error) {
		if containsFold(m.Tags, tag) {
			return "", nil
		}
		m.Tags = append(m.Tags, tag)
		return fmt.Sprintf("Tag %q added", tag), nil
	})
}

// RemoveTag removes a tag. Removing a missing tag does nothing.
func (t *Timeline) RemoveTag(id, tag string) (models.Milestone, error) {
	return t.mutate(id, func(m *models.Milestone) (string, error) {
		for i, v := range m.Tags {
			if strings.EqualFold(v, tag) {
				m.Tags = append(m.Tags[:i:i], m.Tags[i+1:]...)
				return fmt.Sprintf("Tag %q removed", v), nil
			}
		}
		return "", nil
	})
}

// ToggleImportant flips the importance flag
func (t *Timeline) ToggleImportant(id string) (models.Milestone, error) {
	return t.mutate(id, func(m *models.Milestone) (string, error) {
		return toggleImportant(m), nil
	})
}

// AddFiles appends files to the milestone in the order given
func (t *Timeline) AddFiles(id string, files []models.LocalFile) (models.Milestone, error) {
	if len(files) == 0 {
		return models.Milestone{}, &ValidationError{Field: "files", Reason: "at least one file is required"}
	}
	return t.mutate(id, func(m *models.Milestone) (string, error) {
		added := LocalFiles(files)
		names := make([]string, len(added))
		for i, f := range added {
			names[i] = f.Name
		}
		m.AssociatedFiles = append(m.AssociatedFiles, added...)
		return fmt.Sprintf("Added %d file(s): %s", len(added), strings.Join(names, ", ")), nil
	})
}
