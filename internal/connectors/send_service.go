package connectors

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"worksync/internal/storage"
)

// SendService archives a message in the outbox, hands it to the configured provider
// and records the delivery in the history database.
type SendService struct {
	db       *storage.DB
	delivery MailDelivery
	outbox   *OutboxStore
}

type SendResult struct {
	Provider string
	Ref      string
	Hash     string
	RawPath  string
}

func NewSendService(db *storage.DB, outboxDir string, delivery MailDelivery) *SendService {
	outbox := NewOutboxStore(outboxDir)
	if delivery == nil {
		delivery = outbox
	}
	return &SendService{db: db, delivery: delivery, outbox: outbox}
}

func (s *SendService) Send(ctx context.Context, msg Message) (SendResult, error) {
	hash, rawPath, err := s.outbox.Store(msg.Raw)
	if err != nil {
		return SendResult{}, fmt.Errorf("store outbox copy: %w", err)
	}

	ref, err := s.delivery.Deliver(ctx, msg)
	if err != nil {
		return SendResult{}, fmt.Errorf("deliver via %s: %w", s.delivery.Provider(), err)
	}

	result := SendResult{Provider: s.delivery.Provider(), Ref: ref, Hash: hash, RawPath: rawPath}
	if s.db != nil {
		_, err := s.db.UpsertMail(storage.MailRow{
			TaskNumber: msg.TaskNumber,
			Template:   msg.Template,
			Subject:    msg.Subject,
			Provider:   result.Provider,
			Ref:        ref,
			Hash:       hash,
			RawPath:    rawPath,
		})
		if err != nil {
			return result, err
		}
	}

	log.Info().Str("task", msg.TaskNumber).Str("provider", result.Provider).Str("ref", ref).Msg("mail delivered")
	return result, nil
}
