package workflow

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"worksync/internal"
	"worksync/internal/documents"
)

type DocRequest struct {
	Kind   documents.Kind
	Task   string // task number for order/report, act number for act
	Month  int
	Year   int
	Format string // xlsx or docx
	OutDir string
}

type DocResult struct {
	Document documents.Document
	Path     string
	RecordID int64
}

// Generate builds the requested document from the current rows, renders it and
// keeps a history entry.
func (s *Service) Generate(ctx context.Context, req DocRequest) (DocResult, error) {
	store, err := s.openStore(ctx)
	if err != nil {
		return DocResult{}, fmt.Errorf("open row store: %w", err)
	}
	defer store.Close()

	rows, err := store.ReadRows(ctx)
	if err != nil {
		return DocResult{}, err
	}
	prices, err := store.PriceTable(ctx, s.cfg.PriceSheet)
	if err != nil {
		return DocResult{}, err
	}

	doc, err := s.buildDocument(req, rows, prices)
	if err != nil {
		return DocResult{}, err
	}

	outDir := req.OutDir
	if outDir == "" {
		outDir = filepath.Join(s.cfg.OutputDir, "documents")
	}
	path, err := s.render(doc, req.Format, outDir)
	if err != nil {
		return DocResult{}, err
	}

	result := DocResult{Document: doc, Path: path}
	if s.db != nil {
		id, err := s.db.SaveDocument(doc.Record(path))
		if err != nil {
			return result, fmt.Errorf("save document history: %w", err)
		}
		result.RecordID = id
	}

	log.Info().Str("kind", string(doc.Kind)).Str("number", doc.Number).Int("lines", len(doc.Lines)).Str("path", path).Msg("document generated")
	return result, nil
}

func (s *Service) buildDocument(req DocRequest, rows []internal.Row, prices internal.PriceTable) (documents.Document, error) {
	b := documents.NewBuilder(s.rules, prices, s.cfg.ContractRef, s.now)
	switch req.Kind {
	case documents.KindOrder:
		return b.WorkOrder(req.Task, rows)
	case documents.KindReport:
		return b.ServiceReport(req.Task, rows)
	case documents.KindAct:
		return b.Act(req.Task, rows)
	case documents.KindMonthly:
		month, year := req.Month, req.Year
		if month == 0 || year == 0 {
			now := s.now()
			month, year = int(now.Month()), now.Year()
		}
		return b.MonthlyReport(month, year, rows)
	default:
		return documents.Document{}, fmt.Errorf("unknown document kind %q", req.Kind)
	}
}

func (s *Service) render(doc documents.Document, format, dir string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "xlsx":
		return documents.RenderXLSX(doc, dir)
	case "docx":
		return documents.RenderDOCX(doc, s.cfg.TemplateDir, dir)
	default:
		return "", fmt.Errorf("unsupported document format %q", format)
	}
}
