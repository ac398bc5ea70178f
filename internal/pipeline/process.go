package pipeline

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"worksync/internal"
	"worksync/internal/config"
)

// Syncer runs a batch of cards through extraction, pricing, matching and merging
// against an in-memory row set. It performs no I/O.
type Syncer struct {
	extractor *Extractor
	resolver  *Resolver
	matcher   *Matcher
	merger    *Merger
	logger    zerolog.Logger

	// FirstDataRow is the sheet row a brand new sheet starts writing at.
	FirstDataRow int
}

type SyncerOptions struct {
	PriceSheet   string
	Now          func() time.Time
	FirstDataRow int
	Logger       *zerolog.Logger
}

func NewSyncer(rules *config.Compiled, table internal.PriceTable, opts SyncerOptions) *Syncer {
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	first := opts.FirstDataRow
	if first <= 0 {
		first = 2
	}
	return &Syncer{
		extractor:    NewExtractor(rules),
		resolver:     NewResolver(table, rules),
		matcher:      NewMatcher(rules),
		merger:       NewMerger(rules, opts.PriceSheet, opts.Now),
		logger:       logger,
		FirstDataRow: first,
	}
}

func (s *Syncer) Extractor() *Extractor { return s.extractor }
func (s *Syncer) Resolver() *Resolver   { return s.resolver }
func (s *Syncer) Merger() *Merger       { return s.merger }

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeCreated
	outcomeUpdated
	outcomeLocked
)

// Run processes cards in order. Rows created for earlier cards are visible to later
// ones, so a task number repeated in one batch still yields a single row. A failing
// card is counted and the batch goes on.
func (s *Syncer) Run(cards []internal.RawCard, rows []internal.Row) internal.SyncResult {
	working := make([]internal.Row, 0, len(rows)+len(cards))
	next := s.FirstDataRow
	for _, row := range rows {
		working = append(working, row.Clone())
		if row.Index >= next {
			next = row.Index + 1
		}
	}

	result := internal.SyncResult{}
	for _, card := range cards {
		change, out, err := s.processCard(card, &working, &next)
		if err != nil {
			result.Errored++
			result.Errors = append(result.Errors, internal.CardError{CardID: card.ID, Title: card.Title, Err: err})
			s.logger.Error().Err(err).Str("card", card.ID).Str("title", card.Title).Msg("card failed")
			continue
		}
		switch out {
		case outcomeSkipped:
			result.Skipped++
			s.logger.Info().Str("card", card.ID).Str("title", card.Title).Msg("no task number, skipped")
		case outcomeLocked:
			result.Locked++
			s.logger.Info().Str("task", change.TaskNumber).Int("row", change.Before.Index).Msg("row is closed, left untouched")
		case outcomeCreated:
			result.Created++
			result.Changes = append(result.Changes, change)
			s.logger.Debug().Str("task", change.TaskNumber).Int("row", change.After.Index).Msg("row created")
		case outcomeUpdated:
			result.Updated++
			result.Changes = append(result.Changes, change)
			s.logger.Debug().Str("task", change.TaskNumber).Int("row", change.After.Index).Msg("row updated")
		}
	}

	result.Rows = working
	return result
}

func (s *Syncer) processCard(card internal.RawCard, working *[]internal.Row, next *int) (change internal.RowChange, out outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	rec := s.extractor.Extract(card)
	if rec.TaskNumber == "" {
		return internal.RowChange{}, outcomeSkipped, nil
	}
	price := s.resolver.Resolve(rec)
	change = internal.RowChange{TaskNumber: rec.TaskNumber, CardID: card.ID}

	pos, found := s.matcher.Match(rec.TaskNumber, *working)
	if !found {
		row, _ := s.merger.Merge(nil, rec, price)
		row.Index = *next
		*next++
		*working = append(*working, row)
		change.Kind = internal.ChangeCreated
		change.After = row.Clone()
		return change, outcomeCreated, nil
	}

	existing := (*working)[pos]
	change.Before = existing.Clone()
	row, write := s.merger.Merge(&existing, rec, price)
	if !write {
		change.Kind = internal.ChangeLocked
		change.After = change.Before
		return change, outcomeLocked, nil
	}
	row.Index = existing.Index
	(*working)[pos] = row
	change.Kind = internal.ChangeUpdated
	change.After = row.Clone()
	return change, outcomeUpdated, nil
}
