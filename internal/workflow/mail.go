package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"worksync/internal"
	"worksync/internal/connectors"
	"worksync/internal/documents"
	"worksync/internal/pipeline"
)

type MailRequest struct {
	Task     string
	Template string
	// AttachOrder adds the task's work order as an xlsx attachment.
	AttachOrder bool
}

// Mail composes the named letter for a task row and delivers it through MAIL_PROVIDER.
func (s *Service) Mail(ctx context.Context, req MailRequest) (connectors.SendResult, error) {
	if err := s.cfg.Require("MAIL_FROM", s.cfg.MailFrom); err != nil {
		return connectors.SendResult{}, err
	}
	if err := s.cfg.Require("MAIL_TO", s.cfg.MailTo); err != nil {
		return connectors.SendResult{}, err
	}

	store, err := s.openStore(ctx)
	if err != nil {
		return connectors.SendResult{}, fmt.Errorf("open row store: %w", err)
	}
	defer store.Close()

	rows, err := store.ReadRows(ctx)
	if err != nil {
		return connectors.SendResult{}, err
	}
	pos, ok := pipeline.NewMatcher(s.rules).Match(req.Task, rows)
	if !ok {
		return connectors.SendResult{}, fmt.Errorf("%w: task %s", documents.ErrNoRows, req.Task)
	}
	row := rows[pos]

	var attachments []connectors.Attachment
	if req.AttachOrder {
		prices, err := store.PriceTable(ctx, s.cfg.PriceSheet)
		if err != nil {
			return connectors.SendResult{}, err
		}
		a, err := s.orderAttachment(req.Task, rows, prices)
		if err != nil {
			return connectors.SendResult{}, err
		}
		attachments = append(attachments, a)
	}

	composer, err := connectors.NewComposer(s.cfg.MailFrom, s.cfg.MailTo, s.now)
	if err != nil {
		return connectors.SendResult{}, err
	}
	msg, err := composer.Compose(req.Template, s.mailData(req.Task, row), attachments...)
	if err != nil {
		return connectors.SendResult{}, err
	}

	delivery, err := s.mailDelivery(ctx)
	if err != nil {
		return connectors.SendResult{}, err
	}
	return connectors.NewSendService(s.db, s.cfg.MailOutboxDir, delivery).Send(ctx, msg)
}

func (s *Service) mailData(task string, row internal.Row) connectors.MailData {
	composite := row.Get(internal.ColAddress)
	rec := pipeline.NewExtractor(s.rules).Extract(internal.RawCard{Title: composite})

	var transit []string
	for _, part := range strings.Split(row.Get(internal.ColTransit), ",") {
		if part = strings.TrimSpace(part); part != "" {
			transit = append(transit, part)
		}
	}

	return connectors.MailData{
		Name:        composite,
		TaskNumber:  task,
		Address:     rec.MainAddress,
		Description: row.Get(internal.ColDescription),
		Transit:     transit,
	}
}

func (s *Service) orderAttachment(task string, rows []internal.Row, prices internal.PriceTable) (connectors.Attachment, error) {
	doc, err := documents.NewBuilder(s.rules, prices, s.cfg.ContractRef, s.now).WorkOrder(task, rows)
	if err != nil {
		return connectors.Attachment{}, err
	}
	dir, err := os.MkdirTemp("", "worksync-mail-")
	if err != nil {
		return connectors.Attachment{}, err
	}
	defer os.RemoveAll(dir)

	path, err := documents.RenderXLSX(doc, dir)
	if err != nil {
		return connectors.Attachment{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return connectors.Attachment{}, err
	}
	return connectors.Attachment{
		Name:        filepath.Base(path),
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:        data,
	}, nil
}
