package workbook

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"worksync/internal"
	"worksync/internal/util"
)

var priceHeader = []string{"Код", "Наименование услуги", "Стоимость (руб)"}

// PriceTable reads code, description and amount from columns A..C of sheet, below
// the header. A missing or empty sheet yields the built-in table.
func (s *Store) PriceTable(sheet string) (internal.PriceTable, error) {
	if idx, err := s.file.GetSheetIndex(sheet); err != nil || idx < 0 {
		log.Warn().Str("sheet", sheet).Msg("price sheet missing, using default prices")
		return internal.DefaultPriceTable(), nil
	}
	rows, err := s.file.GetRows(sheet)
	if err != nil {
		return internal.PriceTable{}, fmt.Errorf("read %s: %w", sheet, err)
	}

	entries := ParsePriceRows(rows)
	if len(entries) == 0 {
		log.Warn().Str("sheet", sheet).Msg("price sheet empty, using default prices")
		return internal.DefaultPriceTable(), nil
	}
	return internal.NewPriceTable(entries), nil
}

// WritePriceTable replaces the contents of sheet with table, creating the sheet if needed.
func (s *Store) WritePriceTable(sheet string, table internal.PriceTable) error {
	if idx, err := s.file.GetSheetIndex(sheet); err == nil && idx >= 0 {
		if err := s.file.DeleteSheet(sheet); err != nil {
			return err
		}
	}
	if _, err := s.file.NewSheet(sheet); err != nil {
		return err
	}
	return writePriceSheet(s.file, sheet, table)
}

// ParsePriceRows turns code, description, amount rows into entries, skipping the header row and
// anything unparsable.
func ParsePriceRows(rows [][]string) []internal.PriceEntry {
	var entries []internal.PriceEntry
	for i, row := range rows {
		if i == 0 || len(row) < 3 {
			continue
		}
		code, ok := parseCode(row[0])
		if !ok {
			continue
		}
		amount, ok := util.ParseAmount(row[2])
		if !ok {
			continue
		}
		entries = append(entries, internal.PriceEntry{
			Code:        code,
			Description: strings.TrimSpace(row[1]),
			Amount:      amount,
		})
	}
	return entries
}

func parseCode(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, n > 0
	}
	if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64); err == nil && f == float64(int(f)) {
		return int(f), f > 0
	}
	return 0, false
}

func writePriceSheet(f *excelize.File, sheet string, table internal.PriceTable) error {
	sm := NewStyleManager(f)
	headerStyle, err := sm.Header()
	if err != nil {
		return err
	}
	cellStyle, err := sm.Left()
	if err != nil {
		return err
	}

	if err := f.SetSheetRow(sheet, "A1", &priceHeader); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "C1", headerStyle); err != nil {
		return err
	}
	for i, e := range table.Entries() {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		values := []any{e.Code, e.Description, e.Amount}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
		end, _ := excelize.CoordinatesToCellName(3, i+2)
		if err := f.SetCellStyle(sheet, cell, end, cellStyle); err != nil {
			return err
		}
	}
	_ = f.SetColWidth(sheet, "B", "B", 45)
	_ = f.SetColWidth(sheet, "C", "C", 16)
	return nil
}
