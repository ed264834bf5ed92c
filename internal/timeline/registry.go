package timeline

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/tgienger/cronocelda/internal/models"
)

// DefaultPalette is used when the configuration does not name one
var DefaultPalette = []string{
	"#FF6B6B",
	"#4ECDC4",
	"#45B7D1",
	"#96CEB4",
	"#FFEEAD",
	"#D4A5A5",
	"#9B59B6",
	"#3498DB",
}

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// ValidColor reports whether s is a #rgb or #rrggbb color
func ValidColor(s string) bool {
	return hexColor.MatchString(s)
}

// Registry maps category ids to their current name and color.
// It is not safe for concurrent use on its own; Timeline serializes access.
type Registry struct {
	palette    []string
	categories []models.Category
}

// NewRegistry creates an empty registry picking colors from palette
func NewRegistry(palette []string) *Registry {
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	return &Registry{palette: append([]string(nil), palette...)}
}

// CategoryPatch lists the category fields to change; nil fields stay as they are
type CategoryPatch struct {
	Name  *string
	Color *string
}

// validate checks every field of the patch and returns it with the name trimmed
func (p CategoryPatch) validate() (CategoryPatch, error) {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if name == "" {
			return p, &ValidationError{Field: "name", Reason: "required"}
		}
		p.Name = &name
	}
	if p.Color != nil && !ValidColor(*p.Color) {
		return p, &ValidationError{Field: "color", Reason: "must be #rgb or #rrggbb"}
	}
	return p, nil
}

// Add registers a new category. The color is palette[count mod len(palette)].
func (r *Registry) Add(name string) (models.Category, error) {
	return r.AddWithColor(name, "")
}

// AddWithColor registers a new category with an explicit color. An empty color
// picks from the palette like Add. Nothing is registered unless both fields are valid.
func (r *Registry) AddWithColor(name, color string) (models.Category, error) {
	patch := CategoryPatch{Name: &name}
	if color != "" {
		patch.Color = &color
	}
	patch, err := patch.validate()
	if err != nil {
		return models.Category{}, err
	}
	c := models.Category{
		ID:    uuid.NewString(),
		Name:  *patch.Name,
		Color: r.palette[len(r.categories)%len(r.palette)],
	}
	if patch.Color != nil {
		c.Color = *patch.Color
	}
	r.categories = append(r.categories, c)
	return c, nil
}

// Get returns the category with the given id
func (r *Registry) Get(id string) (models.Category, bool) {
	for _, c := range r.categories {
		if c.ID == id {
			return c, true
		}
	}
	return models.Category{}, false
}

// Default returns the first registered category, used for Trello-sourced milestones
func (r *Registry) Default() (models.Category, bool) {
	if len(r.categories) == 0 {
		return models.Category{}, false
	}
	return r.categories[0], true
}

// List returns all categories in creation order
func (r *Registry) List() []models.Category {
	return append([]models.Category(nil), r.categories...)
}

// ChangeColor updates the stored color. Callers cascade the result to milestones.
func (r *Registry) ChangeColor(id, color string) (models.Category, error) {
	return r.Update(id, CategoryPatch{Color: &color})
}

// Rename updates the stored name. Callers cascade the result to milestones.
func (r *Registry) Rename(id, name string) (models.Category, error) {
	return r.Update(id, CategoryPatch{Name: &name})
}

// Update validates the whole patch before touching the category, so a bad
// field leaves it unchanged. Callers cascade the result to milestones.
func (r *Registry) Update(id string, patch CategoryPatch) (models.Category, error) {
	patch, err := patch.validate()
	if err != nil {
		return models.Category{}, err
	}
	for i := range r.categories {
		if r.categories[i].ID != id {
			continue
		}
		if patch.Name != nil {
			r.categories[i].Name = *patch.Name
		}
		if patch.Color != nil {
			r.categories[i].Color = *patch.Color
		}
		return r.categories[i], nil
	}
	return models.Category{}, ErrCategoryNotFound
}
