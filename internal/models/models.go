package models

import "time"

// FileType is the coarse kind of an attached file
type FileType string

const (
	FileDocument FileType = "document"
	FileImage    FileType = "image"
	FileVideo    FileType = "video"
	FileAudio    FileType = "audio"
	FileOther    FileType = "other"
)

// Category is a named, colored grouping applied to milestones
type Category struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// AssociatedFile is a file owned by exactly one milestone
type AssociatedFile struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Size string   `json:"size"` // "n.nn KB"
	Type FileType `json:"type"`

	// Bytes and URL are kept for display; they are not part of the canonical shape
	Bytes int64  `json:"bytes,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Milestone is one dated event on the timeline
type Milestone struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Description     string           `json:"description"`
	OccurredAt      time.Time        `json:"occurredAt"`
	Category        Category         `json:"category"`
	Tags            []string         `json:"tags"` // nil until enrichment settles or a tag is added by hand
	AssociatedFiles []AssociatedFile `json:"associatedFiles"`
	IsImportant     bool             `json:"isImportant"`
	History         []string         `json:"history"`

	// Enriching is set by the timeline while a tagging call is in flight
	Enriching bool `json:"enriching"`
}

// TagsPending reports whether enrichment has not settled yet
func (m Milestone) TagsPending() bool {
	return m.Enriching
}

// Clone returns a deep copy so callers never share slices with the canonical collection
func (m Milestone) Clone() Milestone {
	c := m
	if m.Tags != nil {
		c.Tags = append([]string{}, m.Tags...)
	}
	c.AssociatedFiles = append([]AssociatedFile(nil), m.AssociatedFiles...)
	c.History = append([]string(nil), m.History...)
	return c
}

// Card is a Trello card that can act as the timeline source
type Card struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"desc"`
	URL         string    `json:"url"`
	LastActive  time.Time `json:"dateLastActivity"`
}

// Attachment is the metadata Trello reports for a card attachment
type Attachment struct {
	ID       string     `json:"id"`
	FileName string     `json:"fileName"`
	Name     string     `json:"name"`
	MimeType string     `json:"mimeType"`
	Bytes    *int64     `json:"bytes"`
	Date     *time.Time `json:"date"`
	URL      string     `json:"url"`
}

// LocalFile is a file picked by the user for a manual upload
type LocalFile struct {
	Name string `json:"name"`
	Type string `json:"type"` // MIME type
	Size int64  `json:"size"`
	Path string `json:"-"`
}

// User is an authenticated identity
type User struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}
