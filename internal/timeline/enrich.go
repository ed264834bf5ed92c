package timeline

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Tagger derives descriptive tags from text. Implementations may fail.
type Tagger interface {
	Tag(ctx context.Context, text string) ([]string, error)
}

// TagCache remembers tags that were resolved for a text before
type TagCache interface {
	CachedTags(text string) ([]string, bool, error)
	StoreTags(text string, tags []string) error
}

// Dispatcher issues one independent tagging call per milestone
type Dispatcher struct {
	tagger Tagger
	cache  TagCache
	log    zerolog.Logger
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher. A nil tagger resolves every request to no tags.
func NewDispatcher(tagger Tagger, cache TagCache, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		tagger: tagger,
		cache:  cache,
		log:    log.With().Str("component", "enrichment").Logger(),
	}
}

// Resolve runs the tagging call for a ticket and always returns a non-nil
// slice. Failures are logged and resolve to an empty list.
func (d *Dispatcher) Resolve(ctx context.Context, ticket Ticket) []string {
	if d.cache != nil {
		tags, ok, err := d.cache.CachedTags(ticket.Text)
		if err != nil {
			d.log.Warn().Err(err).Str("milestone", ticket.MilestoneID).Msg("tag cache lookup failed")
		} else if ok {
			return cleanTags(tags)
		}
	}

	if d.tagger == nil {
		return []string{}
	}

	tags, err := d.tagger.Tag(ctx, ticket.Text)
	if err != nil {
		d.log.Warn().
			Err(&EnrichmentError{MilestoneID: ticket.MilestoneID, Err: err}).
			Str("milestone", ticket.MilestoneID).
			Msg("enrichment failed")
		return []string{}
	}
	tags = cleanTags(tags)

	if d.cache != nil {
		if err := d.cache.StoreTags(ticket.Text, tags); err != nil {
			d.log.Warn().Err(err).Str("milestone", ticket.MilestoneID).Msg("tag cache store failed")
		}
	}
	return tags
}

// Enrich resolves a ticket in the background and patches the result into tl.
// It is not tied to ctx's cancellation: a caller returning early does not
// abandon the call.
func (d *Dispatcher) Enrich(ctx context.Context, tl *Timeline, ticket Ticket) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		tags := d.Resolve(ctx, ticket)
		if !tl.ApplyTags(ticket, tags) {
			d.log.Debug().Str("milestone", ticket.MilestoneID).Msg("enrichment result discarded")
		}
	}()
}

// EnrichAll starts one background call per ticket
func (d *Dispatcher) EnrichAll(ctx context.Context, tl *Timeline, tickets []Ticket) {
	for _, ticket := range tickets {
		d.Enrich(ctx, tl, ticket)
	}
}

// Wait blocks until every background call started by Enrich has settled
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(tag), "#"))
		if tag == "" || containsFold(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}
