package timeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/tgienger/cronocelda/internal/models"
)

// AttachmentSource lists the attachments of a card
type AttachmentSource interface {
	Attachments(ctx context.Context, cardID string) ([]models.Attachment, error)
}

// Syncer feeds the timeline from the active card and from manual uploads
type Syncer struct {
	tl         *Timeline
	source     AttachmentSource
	dispatcher *Dispatcher
	now        func() time.Time
	log        zerolog.Logger
}

// NewSyncer wires a timeline to its attachment source and dispatcher
func NewSyncer(tl *Timeline, source AttachmentSource, dispatcher *Dispatcher, log zerolog.Logger) *Syncer {
	return &Syncer{
		tl:         tl,
		source:     source,
		dispatcher: dispatcher,
		now:        time.Now,
		log:        log.With().Str("component", "sync").Logger(),
	}
}

// Load clears the collection, fetches the card's attachments and replaces the
// collection with whatever normalized. Malformed attachments are skipped. On a
// fetch failure the collection stays empty and a *SourceFetchError is returned.
// The returned tickets still need enrichment.
func (s *Syncer) Load(ctx context.Context, cardID string) ([]Ticket, error) {
	s.tl.Clear()

	atts, err := s.source.Attachments(ctx, cardID)
	if err != nil {
		s.log.Error().Err(err).Str("card", cardID).Msg("attachment fetch failed")
		return nil, &SourceFetchError{Source: "trello attachments", Err: err}
	}

	ms, errs := NormalizeBatch(atts)
	for _, err := range errs {
		s.log.Warn().Err(err).Str("card", cardID).Msg("skipping attachment")
	}

	if c, ok := s.tl.DefaultCategory(); ok {
		for i := range ms {
			if ms[i].Category.ID == "" {
				ms[i].Category = c
			}
		}
	}

	tickets := s.tl.Replace(ms)
	s.log.Info().Str("card", cardID).Int("milestones", len(ms)).Int("skipped", len(errs)).Msg("card loaded")
	return tickets, nil
}

// SelectCard loads a card and starts enrichment for every milestone
func (s *Syncer) SelectCard(ctx context.Context, cardID string) (int, error) {
	tickets, err := s.Load(ctx, cardID)
	if err != nil {
		return 0, err
	}
	s.dispatcher.EnrichAll(ctx, s.tl, tickets)
	return len(tickets), nil
}

// Add normalizes a manual upload and inserts it. The ticket still needs enrichment.
func (s *Syncer) Add(src LocalSource) (models.Milestone, Ticket, error) {
	if src.Category.ID != "" {
		c, ok := s.tl.Category(src.Category.ID)
		if !ok {
			return models.Milestone{}, Ticket{}, ErrCategoryNotFound
		}
		src.Category = c
	}
	m, err := Normalize(src, s.now())
	if err != nil {
		return models.Milestone{}, Ticket{}, err
	}
	ticket := s.tl.Insert(m)
	return m, ticket, nil
}

// Upload inserts a manual upload and starts its enrichment
func (s *Syncer) Upload(ctx context.Context, src LocalSource) (models.Milestone, error) {
	m, ticket, err := s.Add(src)
	if err != nil {
		return m, err
	}
	s.dispatcher.Enrich(ctx, s.tl, ticket)
	return m, nil
}

// Timeline returns the timeline fed by this syncer
func (s *Syncer) Timeline() *Timeline {
	return s.tl
}

// Dispatcher returns the dispatcher used for enrichment
func (s *Syncer) Dispatcher() *Dispatcher {
	return s.dispatcher
}
