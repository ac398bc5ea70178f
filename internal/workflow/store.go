package workflow

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"worksync/internal"
	"worksync/internal/googleauth"
	"worksync/internal/sheets"
	"worksync/internal/workbook"
)

// RowStore is the system of record the sync writes into.
type RowStore interface {
	ReadRows(ctx context.Context) ([]internal.Row, error)
	Apply(ctx context.Context, changes []internal.RowChange) (int, error)
	PriceTable(ctx context.Context, sheet string) (internal.PriceTable, error)
	Save(ctx context.Context) error
	Close() error
}

type xlsxStore struct {
	store *workbook.Store
}

func (x xlsxStore) ReadRows(context.Context) ([]internal.Row, error) {
	return x.store.ReadRows()
}

func (x xlsxStore) Apply(_ context.Context, changes []internal.RowChange) (int, error) {
	return x.store.Apply(changes)
}

func (x xlsxStore) PriceTable(_ context.Context, sheet string) (internal.PriceTable, error) {
	return x.store.PriceTable(sheet)
}

func (x xlsxStore) Save(context.Context) error { return x.store.Save() }
func (x xlsxStore) Close() error               { return x.store.Close() }

type sheetStore struct {
	store *sheets.Store
}

func (g sheetStore) ReadRows(ctx context.Context) ([]internal.Row, error) {
	return g.store.ReadRows(ctx)
}

func (g sheetStore) Apply(ctx context.Context, changes []internal.RowChange) (int, error) {
	return g.store.Apply(ctx, changes)
}

func (g sheetStore) PriceTable(ctx context.Context, sheet string) (internal.PriceTable, error) {
	return g.store.PriceTable(ctx, sheet)
}

func (g sheetStore) Save(context.Context) error { return nil }
func (g sheetStore) Close() error               { return nil }

func (s *Service) usesWorkbook() bool {
	return strings.ToLower(strings.TrimSpace(s.cfg.RowStore)) != "sheets"
}

func (s *Service) defaultStore(ctx context.Context) (RowStore, error) {
	switch strings.ToLower(strings.TrimSpace(s.cfg.RowStore)) {
	case "", "xlsx":
		st, err := workbook.Open(s.cfg.WorkbookPath, s.cfg.DataSheet, s.cfg.PriceSheet, s.rules)
		if err != nil {
			return nil, err
		}
		return xlsxStore{store: st}, nil
	case "sheets":
		if err := s.cfg.Require("SHEETS_SPREADSHEET_ID", s.cfg.SheetsSpreadsheetID); err != nil {
			return nil, err
		}
		opts, err := googleauth.ClientOptions(ctx, s.cfg, sheetsapi.SpreadsheetsScope)
		if err != nil {
			return nil, err
		}
		if s.cfg.SheetsEndpoint != "" {
			opts = append(opts, option.WithEndpoint(s.cfg.SheetsEndpoint))
		}
		client, err := sheets.NewClient(ctx, opts...)
		if err != nil {
			return nil, err
		}
		st, err := sheets.Open(ctx, client, s.cfg.SheetsSpreadsheetID, s.cfg.DataSheet, s.rules)
		if err != nil {
			return nil, err
		}
		return sheetStore{store: st}, nil
	default:
		return nil, fmt.Errorf("unsupported ROW_STORE: %s", s.cfg.RowStore)
	}
}
