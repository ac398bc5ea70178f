package workbook

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"

	"worksync/internal"
	"worksync/internal/config"
)

var ErrSheetNotFound = errors.New("sheet not found")

const headerRow = 1

// numeric columns are written as numbers so the price lookup formula can match codes.
var numericColumns = map[internal.Column]bool{
	internal.ColServiceCode: true,
	internal.ColInvoice:     true,
	internal.ColCost:        true,
}

// Store is the data sheet of an xlsx workbook seen as a list of rows keyed by column.
type Store struct {
	file    *excelize.File
	path    string
	sheet   string
	rules   *config.Compiled
	columns map[internal.Column]int
	styles  *StyleManager
}

// Open loads the workbook at path, creating it with a header row and a default price
// sheet when the file does not exist yet.
func Open(path, sheet, priceSheet string, rules *config.Compiled) (*Store, error) {
	var (
		f   *excelize.File
		err error
	)
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		f, err = newWorkbook(sheet, priceSheet)
		log.Info().Str("path", path).Msg("workbook not found, starting a new one")
	} else {
		f, err = excelize.OpenFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}

	s := &Store{file: f, path: path, sheet: sheet, rules: rules, styles: NewStyleManager(f)}
	if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, sheet)
	}
	if err := s.mapColumns(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

func newWorkbook(sheet, priceSheet string) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}
	if priceSheet != "" && priceSheet != sheet {
		if _, err := f.NewSheet(priceSheet); err != nil {
			return nil, err
		}
		if err := writePriceSheet(f, priceSheet, internal.DefaultPriceTable()); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (s *Store) File() *excelize.File { return s.file }
func (s *Store) Path() string          { return s.path }

// Column returns the 1-based sheet column holding key.
func (s *Store) Column(key internal.Column) (int, bool) {
	n, ok := s.columns[key]
	return n, ok
}

// mapColumns reads the header row and binds layout columns to sheet columns by header
// text. Layout columns missing from the header are appended after the last used one.
func (s *Store) mapColumns() error {
	rows, err := s.file.GetRows(s.sheet)
	if err != nil {
		return err
	}
	var header []string
	if len(rows) >= headerRow {
		header = rows[headerRow-1]
	}

	byHeader := map[string]int{}
	last := 0
	for i, h := range header {
		if key := foldHeader(h); key != "" {
			if _, dup := byHeader[key]; !dup {
				byHeader[key] = i + 1
			}
			last = i + 1
		}
	}

	s.columns = make(map[internal.Column]int, len(s.rules.Columns))
	headerStyle, err := s.styles.Header()
	if err != nil {
		return err
	}
	for _, spec := range s.rules.Columns {
		if n, ok := byHeader[foldHeader(spec.Header)]; ok {
			s.columns[spec.Key] = n
			continue
		}
		last++
		s.columns[spec.Key] = last
		cell, err := excelize.CoordinatesToCellName(last, headerRow)
		if err != nil {
			return err
		}
		if err := s.file.SetCellStr(s.sheet, cell, spec.Header); err != nil {
			return err
		}
		if err := s.file.SetCellStyle(s.sheet, cell, cell, headerStyle); err != nil {
			return err
		}
		name, _ := excelize.ColumnNumberToName(last)
		_ = s.file.SetColWidth(s.sheet, name, name, 18)
	}
	return nil
}

// ReadRows returns every non-empty data row below the header in sheet order.
func (s *Store) ReadRows() ([]internal.Row, error) {
	rows, err := s.file.GetRows(s.sheet)
	if err != nil {
		return nil, err
	}

	out := make([]internal.Row, 0, len(rows))
	for i := headerRow; i < len(rows); i++ {
		index := i + 1
		row := internal.NewRow(index)
		for _, spec := range s.rules.Columns {
			n := s.columns[spec.Key]
			cell := internal.Cell{}
			if n-1 < len(rows[i]) {
				cell.Value = strings.TrimSpace(rows[i][n-1])
			}
			if spec.Key == internal.ColCost {
				name, _ := excelize.CoordinatesToCellName(n, index)
				if formula, err := s.file.GetCellFormula(s.sheet, name); err == nil && formula != "" {
					cell.Formula = "=" + strings.TrimPrefix(formula, "=")
				}
			}
			if !cell.Empty() {
				row.Cells[spec.Key] = cell
			}
		}
		if len(row.Cells) > 0 {
			out = append(out, row)
		}
	}
	return out, nil
}

// Apply writes the cells each change touched. Locked changes are no-ops.
func (s *Store) Apply(changes []internal.RowChange) (int, error) {
	written := 0
	for _, change := range changes {
		var cols []internal.Column
		switch change.Kind {
		case internal.ChangeCreated:
			cols = internal.NewRow(0).Diff(change.After)
		case internal.ChangeUpdated:
			cols = change.Before.Diff(change.After)
		default:
			continue
		}
		if change.After.Index <= headerRow {
			return written, fmt.Errorf("task %s: row index %d overlaps the header", change.TaskNumber, change.After.Index)
		}
		for _, col := range cols {
			if err := s.writeCell(change.After, col); err != nil {
				return written, fmt.Errorf("task %s: %w", change.TaskNumber, err)
			}
			written++
		}
		if change.Kind == internal.ChangeCreated {
			if err := s.styleRow(change.After.Index); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}

func (s *Store) writeCell(row internal.Row, col internal.Column) error {
	n, ok := s.columns[col]
	if !ok {
		return fmt.Errorf("column %s is not in the layout", col)
	}
	name, err := excelize.CoordinatesToCellName(n, row.Index)
	if err != nil {
		return err
	}

	cell := row.Cells[col]
	if cell.Formula != "" {
		formula := internal.ExpandFormula(cell.Formula, s.cellRef(row.Index))
		return s.file.SetCellFormula(s.sheet, name, strings.TrimPrefix(formula, "="))
	}
	if numericColumns[col] {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(cell.Value, ",", "."), 64); err == nil {
			return s.file.SetCellValue(s.sheet, name, v)
		}
	}
	return s.file.SetCellStr(s.sheet, name, cell.Value)
}

func (s *Store) cellRef(rowIndex int) func(internal.Column) (string, bool) {
	return func(col internal.Column) (string, bool) {
		n, ok := s.columns[col]
		if !ok {
			return "", false
		}
		name, err := excelize.CoordinatesToCellName(n, rowIndex)
		return name, err == nil
	}
}

func (s *Store) styleRow(index int) error {
	style, err := s.styles.Left()
	if err != nil {
		return err
	}
	last := 0
	for _, n := range s.columns {
		if n > last {
			last = n
		}
	}
	from, _ := excelize.CoordinatesToCellName(1, index)
	to, _ := excelize.CoordinatesToCellName(last, index)
	return s.file.SetCellStyle(s.sheet, from, to, style)
}

func (s *Store) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return s.file.SaveAs(s.path)
}

func (s *Store) Close() error {
	return s.file.Close()
}

func foldHeader(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}
