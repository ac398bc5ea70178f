package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"worksync/internal"
	"worksync/internal/cloud"
	"worksync/internal/pipeline"
	"worksync/internal/storage"
)

type SyncOptions struct {
	// Source overrides the board, e.g. with a JSON export.
	Source   CardSource
	Download bool
	Upload   bool
}

type SyncReport struct {
	TraceID string
	Result  internal.SyncResult
	Written int
	Timings map[string]float64
}

// Sync pulls cards, reconciles them into the row store and saves it, moving the
// workbook through cloud storage around the run when asked to. An error means a
// collaborator failed; card level failures are only counted in the result.
func (s *Service) Sync(ctx context.Context, opts SyncOptions) (report SyncReport, err error) {
	started := time.Now()
	report = SyncReport{TraceID: storage.NewTraceID(), Timings: map[string]float64{}}
	defer func() {
		s.recordRun(report.TraceID, "sync", started, report.Timings, report.Result.Counts(), err)
	}()

	step := func(name string, fn func() error) error {
		t := time.Now()
		err := fn()
		report.Timings[name] = time.Since(t).Seconds()
		return err
	}

	if opts.Download && s.usesWorkbook() {
		if err = step("download", func() error { return s.download(ctx) }); err != nil {
			return report, err
		}
	}

	store, err := s.openStore(ctx)
	if err != nil {
		return report, fmt.Errorf("open row store: %w", err)
	}
	defer store.Close()

	var rows []internal.Row
	if err = step("read", func() (err error) {
		rows, err = store.ReadRows(ctx)
		return err
	}); err != nil {
		return report, fmt.Errorf("read rows: %w", err)
	}
	prices, err := store.PriceTable(ctx, s.cfg.PriceSheet)
	if err != nil {
		return report, fmt.Errorf("read price table: %w", err)
	}

	source := opts.Source
	if source == nil {
		source = s.board
	}
	var cards []internal.RawCard
	if err = step("fetch", func() (err error) {
		cards, err = source.FetchCards(ctx)
		return err
	}); err != nil {
		return report, fmt.Errorf("fetch cards: %w", err)
	}

	syncer := pipeline.NewSyncer(s.rules, prices, pipeline.SyncerOptions{
		PriceSheet: s.cfg.PriceSheet,
		Now:        s.now,
	})
	_ = step("sync", func() error {
		report.Result = syncer.Run(cards, rows)
		return nil
	})

	if err = step("write", func() (err error) {
		report.Written, err = store.Apply(ctx, report.Result.Changes)
		if err != nil {
			return err
		}
		return store.Save(ctx)
	}); err != nil {
		return report, fmt.Errorf("write rows: %w", err)
	}

	if opts.Upload && s.usesWorkbook() {
		if err = step("upload", func() error { return s.upload(ctx) }); err != nil {
			return report, err
		}
	}

	log.Info().
		Str("trace", report.TraceID).
		Int("cards", len(cards)).
		Int("created", report.Result.Created).
		Int("updated", report.Result.Updated).
		Int("skipped", report.Result.Skipped).
		Int("locked", report.Result.Locked).
		Int("errored", report.Result.Errored).
		Msg("sync done")
	return report, nil
}

// Prices returns the price table the sync would use.
func (s *Service) Prices(ctx context.Context) (internal.PriceTable, error) {
	store, err := s.openStore(ctx)
	if err != nil {
		return internal.PriceTable{}, err
	}
	defer store.Close()
	return store.PriceTable(ctx, s.cfg.PriceSheet)
}

func (s *Service) CloudDownload(ctx context.Context) error {
	return s.download(ctx)
}

func (s *Service) CloudUpload(ctx context.Context) error {
	return s.upload(ctx)
}

// download replaces the local workbook with the remote copy. A missing remote
// file leaves the local one in place.
func (s *Service) download(ctx context.Context) error {
	fs, err := s.fileStore(ctx)
	if err != nil {
		return err
	}
	if fs == nil {
		return nil
	}
	err = fs.Download(ctx, s.cfg.CloudRemoteName, s.cfg.WorkbookPath)
	if errors.Is(err, cloud.ErrNotFound) {
		log.Warn().Str("name", s.cfg.CloudRemoteName).Msg("remote workbook not found, using local copy")
		return nil
	}
	if err != nil {
		return fmt.Errorf("download workbook: %w", err)
	}
	log.Info().Str("name", s.cfg.CloudRemoteName).Str("path", s.cfg.WorkbookPath).Msg("workbook downloaded")
	return nil
}

func (s *Service) upload(ctx context.Context) error {
	fs, err := s.fileStore(ctx)
	if err != nil {
		return err
	}
	if fs == nil {
		return nil
	}
	if err := fs.Upload(ctx, s.cfg.WorkbookPath, s.cfg.CloudRemoteName); err != nil {
		return fmt.Errorf("upload workbook: %w", err)
	}
	log.Info().Str("name", s.cfg.CloudRemoteName).Msg("workbook uploaded")
	return nil
}
