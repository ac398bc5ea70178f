package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"worksync/internal"
	"worksync/internal/cloud"
	"worksync/internal/config"
	"worksync/internal/connectors"
	gmailconnector "worksync/internal/connectors/gmail"
	imapconnector "worksync/internal/connectors/imap"
	"worksync/internal/storage"
	"worksync/internal/trello"
)

// CardSource is anything that yields board cards in board order.
type CardSource interface {
	FetchCards(ctx context.Context) ([]internal.RawCard, error)
}

// Board is the writable side of the card source used when pushing rows back.
type Board interface {
	CardSource
	GetLists(ctx context.Context) ([]trello.List, error)
	CreateCard(ctx context.Context, listID, name, desc string, labelIDs []string) (trello.Card, error)
}

// Service runs the end-to-end commands: sync, documents, push, mail and cloud transfer.
// Collaborators not injected through options are built from the config on first use.
type Service struct {
	cfg   config.Config
	db    *storage.DB
	rules *config.Compiled
	now   func() time.Time

	openStore func(ctx context.Context) (RowStore, error)
	files     cloud.FileStore
	filesSet  bool
	board     Board
	delivery  connectors.MailDelivery
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithRowStore(open func(ctx context.Context) (RowStore, error)) Option {
	return func(s *Service) { s.openStore = open }
}

// WithFileStore sets the cloud store; nil disables download and upload.
func WithFileStore(fs cloud.FileStore) Option {
	return func(s *Service) {
		s.files = fs
		s.filesSet = true
	}
}

func WithBoard(b Board) Option {
	return func(s *Service) { s.board = b }
}

func WithDelivery(d connectors.MailDelivery) Option {
	return func(s *Service) { s.delivery = d }
}

func New(cfg config.Config, db *storage.DB, rules *config.Compiled, opts ...Option) *Service {
	s := &Service{cfg: cfg, db: db, rules: rules, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.openStore == nil {
		s.openStore = s.defaultStore
	}
	if s.board == nil {
		s.board = trello.NewClient(cfg)
	}
	return s
}

func (s *Service) Config() config.Config { return s.cfg }

func (s *Service) fileStore(ctx context.Context) (cloud.FileStore, error) {
	if s.filesSet {
		return s.files, nil
	}
	fs, err := cloud.New(ctx, s.cfg)
	if err != nil {
		return nil, err
	}
	s.files, s.filesSet = fs, true
	return fs, nil
}

func (s *Service) mailDelivery(ctx context.Context) (connectors.MailDelivery, error) {
	if s.delivery != nil {
		return s.delivery, nil
	}
	var (
		d   connectors.MailDelivery
		err error
	)
	switch strings.ToLower(strings.TrimSpace(s.cfg.MailProvider)) {
	case "", "file":
		d = connectors.NewOutboxStore(s.cfg.MailOutboxDir)
	case "gmail":
		d, err = gmailconnector.NewConnector(ctx, s.cfg)
	case "imap":
		d, err = imapconnector.NewConnector(s.cfg)
	default:
		err = fmt.Errorf("unsupported MAIL_PROVIDER: %s", s.cfg.MailProvider)
	}
	if err != nil {
		return nil, err
	}
	s.delivery = d
	return d, nil
}

func (s *Service) recordRun(traceID, kind string, started time.Time, timings map[string]float64, counts map[string]int, runErr error) {
	if s.db == nil {
		return
	}
	timings["total"] = time.Since(started).Seconds()
	_ = s.db.InsertRun(traceID, kind, timings, counts, runErr)
	if runErr == nil {
		_ = s.db.SetMetadata("last_"+kind, s.now().UTC().Format(time.RFC3339))
	}
}
