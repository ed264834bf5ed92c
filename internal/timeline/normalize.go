package timeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tgienger/cronocelda/internal/models"
)

var documentMarkers = []string{
	"application/pdf",
	"application/msword",
	"text/plain",
}

// Classify maps a MIME type to a file type.
// Precedence: image, video, audio, document, other.
func Classify(mime string) models.FileType {
	mime = strings.ToLower(strings.TrimSpace(mime))
	switch {
	case strings.HasPrefix(mime, "image/"):
		return models.FileImage
	case strings.HasPrefix(mime, "video/"):
		return models.FileVideo
	case strings.HasPrefix(mime, "audio/"):
		return models.FileAudio
	}
	for _, marker := range documentMarkers {
		if strings.Contains(mime, marker) {
			return models.FileDocument
		}
	}
	return models.FileOther
}

// FormatSize renders a byte count as kilobytes with two decimals. KB is the only unit.
func FormatSize(bytes int64) string {
	return fmt.Sprintf("%.2f KB", float64(bytes)/1024)
}

// Source is an external record that normalizes into one milestone
type Source interface {
	source()
}

// TrelloSource wraps one attachment of the active card
type TrelloSource struct {
	Attachment models.Attachment
}

// LocalSource is a manual upload with the fields the user typed in the form
type LocalSource struct {
	Files       []models.LocalFile
	Name        string
	Description string
	Category    models.Category
}

func (TrelloSource) source() {}
func (LocalSource) source()  {}

// Normalize turns a source record into a milestone with pending tags
func Normalize(src Source, now time.Time) (models.Milestone, error) {
	switch s := src.(type) {
	case TrelloSource:
		return normalizeAttachment(s.Attachment)
	case LocalSource:
		return normalizeUpload(s, now)
	default:
		return models.Milestone{}, fmt.Errorf("unsupported source %T", src)
	}
}

func normalizeAttachment(a models.Attachment) (models.Milestone, error) {
	if strings.TrimSpace(a.MimeType) == "" {
		return models.Milestone{}, &MalformedRecordError{RecordID: a.ID, Field: "mimeType"}
	}
	if a.Date == nil || a.Date.IsZero() {
		return models.Milestone{}, &MalformedRecordError{RecordID: a.ID, Field: "date"}
	}

	name := a.FileName
	if name == "" {
		name = a.Name
	}
	var size int64
	if a.Bytes != nil {
		size = *a.Bytes
	}

	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}

	return models.Milestone{
		ID:         id,
		Name:       name,
		OccurredAt: a.Date.UTC(),
		AssociatedFiles: []models.AssociatedFile{
			newFile(name, a.MimeType, size, a.URL),
		},
	}, nil
}

func normalizeUpload(s LocalSource, now time.Time) (models.Milestone, error) {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return models.Milestone{}, &ValidationError{Field: "name", Reason: "required"}
	}
	if s.Category.ID == "" {
		return models.Milestone{}, &ValidationError{Field: "category", Reason: "required"}
	}

	return models.Milestone{
		ID:              uuid.NewString(),
		Name:            name,
		Description:     strings.TrimSpace(s.Description),
		OccurredAt:      now,
		Category:        s.Category,
		AssociatedFiles: LocalFiles(s.Files),
	}, nil
}

// LocalFiles converts picked files into associated files, keeping their order
func LocalFiles(files []models.LocalFile) []models.AssociatedFile {
	out := make([]models.AssociatedFile, 0, len(files))
	for _, f := range files {
		out = append(out, newFile(f.Name, f.Type, f.Size, ""))
	}
	return out
}

func newFile(name, mime string, size int64, url string) models.AssociatedFile {
	return models.AssociatedFile{
		ID:    uuid.NewString(),
		Name:  name,
		Size:  FormatSize(size),
		Type:  Classify(mime),
		Bytes: size,
		URL:   url,
	}
}

// NormalizeBatch normalizes every attachment it can. Records that fail are
// reported in errs and left out; they never stop the rest of the batch.
func NormalizeBatch(atts []models.Attachment) (ms []models.Milestone, errs []error) {
	for _, a := range atts {
		m, err := Normalize(TrelloSource{Attachment: a}, time.Time{})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ms = append(ms, m)
	}
	return ms, errs
}
