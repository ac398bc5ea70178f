package listener

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"worksync/internal/workflow"
)

// Syncer is the part of the workflow the listener drives.
type Syncer interface {
	Sync(ctx context.Context, opts workflow.SyncOptions) (workflow.SyncReport, error)
}

// Service repeats a full sync every interval until the context ends. A failed cycle
// is logged and the next one runs on schedule.
type Service struct {
	syncer   Syncer
	interval time.Duration
	upload   bool
}

func NewService(syncer Syncer, interval time.Duration, upload bool) *Service {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Service{syncer: syncer, interval: interval, upload: upload}
}

func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.runCycle(ctx); err != nil {
			log.Error().Err(err).Msg("listener cycle error")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.interval):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	report, err := s.syncer.Sync(ctx, workflow.SyncOptions{Download: true, Upload: s.upload})
	if err != nil {
		return err
	}
	log.Info().
		Str("trace", report.TraceID).
		Int("created", report.Result.Created).
		Int("updated", report.Result.Updated).
		Int("errored", report.Result.Errored).
		Msg("listener cycle done")
	return nil
}
