package timeline

import (
	"errors"
	"fmt"
)

var (
	ErrMilestoneNotFound = errors.New("milestone not found")
	ErrCategoryNotFound  = errors.New("category not found")
)

// MalformedRecordError is returned when an external record lacks a required field.
// The caller skips the record and keeps going with the rest of the batch.
type MalformedRecordError struct {
	RecordID string
	Field    string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record %q: missing %s", e.RecordID, e.Field)
}

// ValidationError reports bad user input at the field level before any mutation happens
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// EnrichmentError wraps a failed tagging call. It is logged, never surfaced.
type EnrichmentError struct {
	MilestoneID string
	Err         error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("enrich milestone %s: %v", e.MilestoneID, e.Err)
}

func (e *EnrichmentError) Unwrap() error { return e.Err }

// SourceFetchError wraps a failed Trello or AI retrieval; shown as a notification
type SourceFetchError struct {
	Source string
	Err    error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }
