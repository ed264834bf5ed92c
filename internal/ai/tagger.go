package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tgienger/cronocelda/internal/models"
)

// ErrMalformedResponse is returned when the model's answer cannot be parsed
var ErrMalformedResponse = errors.New("malformed model response")

const tagPrompt = `You label project milestones. Read the milestone text and answer with a JSON array of at most %d short lowercase tags (one or two words each). Answer with the JSON array only, no prose. If nothing fits, answer [].`

// Tagger derives tags for a milestone text
type Tagger struct {
	completer Completer
	maxTags   int
}

// NewTagger creates a tagger. maxTags <= 0 means 5.
func NewTagger(completer Completer, maxTags int) *Tagger {
	if maxTags <= 0 {
		maxTags = 5
	}
	return &Tagger{completer: completer, maxTags: maxTags}
}

// Tag asks the model for tags and parses its JSON answer
func (t *Tagger) Tag(ctx context.Context, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}
	resp, err := t.completer.Complete(ctx, Request{
		SystemMsg: fmt.Sprintf(tagPrompt, t.maxTags),
		Messages:  []Message{{Role: "user", Content: text}},
	})
	if err != nil {
		return nil, err
	}
	tags, err := ParseTags(resp.Content)
	if err != nil {
		return nil, err
	}
	if len(tags) > t.maxTags {
		tags = tags[:t.maxTags]
	}
	return tags, nil
}

// ParseTags extracts a JSON string array from a model answer. Code fences and
// text around the array are tolerated.
func ParseTags(content string) ([]string, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("%w: no JSON array in %q", ErrMalformedResponse, content)
	}

	tags := []string{}
	if err := json.Unmarshal([]byte(content[start:end+1]), &tags); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return tags, nil
}

const summaryPrompt = `You write short status summaries of project timelines. Summarize the milestones below in at most five sentences, oldest to newest, calling out the ones marked important.`

// Summarizer writes a narrative summary of a set of milestones
type Summarizer struct {
	completer Completer
}

// NewSummarizer creates a summarizer
func NewSummarizer(completer Completer) *Summarizer {
	return &Summarizer{completer: completer}
}

// Summarize returns the model's summary of ms
func (s *Summarizer) Summarize(ctx context.Context, ms []models.Milestone) (string, error) {
	if len(ms) == 0 {
		return "", errors.New("nothing to summarize")
	}
	resp, err := s.completer.Complete(ctx, Request{
		SystemMsg: summaryPrompt,
		Messages:  []Message{{Role: "user", Content: describe(ms)}},
		MaxTokens: 512,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

func describe(ms []models.Milestone) string {
	var b strings.Builder
	for _, m := range ms {
		fmt.Fprintf(&b, "- %s: %s", m.OccurredAt.Format(time.DateOnly), m.Name)
		if m.IsImportant {
			b.WriteString(" (important)")
		}
		if m.Category.Name != "" {
			fmt.Fprintf(&b, " [%s]", m.Category.Name)
		}
		if m.Description != "" {
			fmt.Fprintf(&b, " - %s", m.Description)
		}
		if len(m.Tags) > 0 {
			fmt.Fprintf(&b, " tags: %s", strings.Join(m.Tags, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
