package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"worksync/internal"
	"worksync/internal/pipeline"
	"worksync/internal/trello"
)

type PushOptions struct {
	DryRun bool
	// DefaultList receives rows whose status names no board list.
	DefaultList string
}

type PushResult struct {
	Created  int
	Present  int
	Skipped  int
	Planned  []string
	Failures []error
}

// PushRows creates a board card for every open row whose task number has no card yet.
// The card goes to the list whose status maps to the row status.
func (s *Service) PushRows(ctx context.Context, opts PushOptions) (PushResult, error) {
	store, err := s.openStore(ctx)
	if err != nil {
		return PushResult{}, fmt.Errorf("open row store: %w", err)
	}
	defer store.Close()

	rows, err := store.ReadRows(ctx)
	if err != nil {
		return PushResult{}, err
	}
	cards, err := s.board.FetchCards(ctx)
	if err != nil {
		return PushResult{}, fmt.Errorf("fetch cards: %w", err)
	}
	lists, err := s.board.GetLists(ctx)
	if err != nil {
		return PushResult{}, fmt.Errorf("fetch lists: %w", err)
	}

	extractor := pipeline.NewExtractor(s.rules)
	onBoard := map[string]bool{}
	for _, c := range cards {
		if n := extractor.TaskNumber(c.Title); n != "" {
			onBoard[n] = true
		}
	}

	result := PushResult{}
	for _, row := range rows {
		task := extractor.TaskNumber(row.Get(internal.ColAddress))
		if task == "" || row.Locked(s.rules.LockColumn) || strings.HasPrefix(row.Get(internal.ColStatus), s.rules.ArchivePrefix) {
			result.Skipped++
			continue
		}
		if onBoard[task] {
			result.Present++
			continue
		}

		list, ok := s.listFor(row.Get(internal.ColStatus), opts.DefaultList, lists)
		if !ok {
			result.Skipped++
			log.Warn().Str("task", task).Str("status", row.Get(internal.ColStatus)).Msg("no list for row status")
			continue
		}

		name := row.Get(internal.ColAddress)
		if opts.DryRun {
			result.Planned = append(result.Planned, list.Name+": "+name)
			continue
		}
		if _, err := s.board.CreateCard(ctx, list.ID, name, CardDescription(row), nil); err != nil {
			result.Failures = append(result.Failures, fmt.Errorf("task %s: %w", task, err))
			log.Error().Err(err).Str("task", task).Msg("create card failed")
			continue
		}
		onBoard[task] = true
		result.Created++
		log.Info().Str("task", task).Str("list", list.Name).Msg("card created")
	}
	return result, nil
}

// listFor picks the list named like the status or whose name maps to it.
func (s *Service) listFor(status, fallback string, lists []trello.List) (trello.List, bool) {
	status = strings.TrimSpace(status)
	for _, want := range []string{status, fallback} {
		if want == "" {
			continue
		}
		for _, l := range lists {
			if !l.Closed && strings.EqualFold(strings.TrimSpace(l.Name), want) {
				return l, true
			}
		}
	}
	if status != "" {
		for _, l := range lists {
			if mapped, ok := s.rules.LookupStatus(l.Name); ok && !l.Closed && strings.EqualFold(mapped, status) {
				return l, true
			}
		}
	}
	return trello.List{}, false
}

// CardDescription lays out the row's fields the way the card parser reads them back.
func CardDescription(row internal.Row) string {
	var b strings.Builder
	field := func(label string, col internal.Column) {
		if v := strings.TrimSpace(row.Get(col)); v != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, v)
		}
	}
	field("Начало работ", internal.ColStartDate)
	field("Подрядчик", internal.ColContractor)
	field("Клиент", internal.ColClient)
	field("Транзитные адреса", internal.ColTransit)
	field("Услуга", internal.ColService)
	if v := strings.TrimSpace(row.Get(internal.ColInvoice)); v != "" {
		fmt.Fprintf(&b, "ИТОГО: %s\n", v)
	}
	if d := strings.TrimSpace(row.Get(internal.ColDescription)); d != "" {
		b.WriteString("\n")
		b.WriteString(d)
		b.WriteString("\n")
	}
	return b.String()
}
