package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
	"google.golang.org/api/sheets/v4"

	"worksync/internal"
	"worksync/internal/config"
	"worksync/internal/workbook"
)

// Store exposes one tab of a Google spreadsheet as rows keyed by column. Writes go
// straight to the API, so there is nothing to save.
type Store struct {
	client        *Client
	spreadsheetID string
	sheet         string
	rules         *config.Compiled
	columns       map[internal.Column]int
	width         int
}

func Open(ctx context.Context, client *Client, spreadsheetID, sheet string, rules *config.Compiled) (*Store, error) {
	s := &Store{client: client, spreadsheetID: spreadsheetID, sheet: sheet, rules: rules}

	values, err := client.ReadSheet(ctx, spreadsheetID, s.a1("1:1"))
	if err != nil {
		return nil, err
	}
	var header []string
	if len(values) > 0 {
		header = toStrings(values[0])
	}

	columns, added, width := mapHeader(header, rules.Columns)
	s.columns = columns
	s.width = width
	if len(added) > 0 {
		data := make([]*sheets.ValueRange, 0, len(added))
		for _, spec := range added {
			data = append(data, &sheets.ValueRange{
				Range:  s.a1(cellName(columns[spec.Key], 1)),
				Values: [][]interface{}{{spec.Header}},
			})
		}
		if err := client.BatchUpdate(ctx, spreadsheetID, data); err != nil {
			return nil, err
		}
		log.Info().Int("columns", len(added)).Str("sheet", sheet).Msg("header columns added")
	}
	return s, nil
}

func (s *Store) ReadRows(ctx context.Context) ([]internal.Row, error) {
	values, err := s.client.ReadFormulas(ctx, s.spreadsheetID, s.a1(fmt.Sprintf("A2:%s", columnName(s.width))))
	if err != nil {
		return nil, err
	}
	return toRows(values, s.columns, 2), nil
}

// Apply writes the touched cells of every created or updated row in a single batch.
func (s *Store) Apply(ctx context.Context, changes []internal.RowChange) (int, error) {
	var data []*sheets.ValueRange
	maxRow := 0
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
		if change.After.Index < 2 {
			return 0, fmt.Errorf("task %s: row index %d overlaps the header", change.TaskNumber, change.After.Index)
		}
		for _, col := range cols {
			n, ok := s.columns[col]
			if !ok {
				return 0, fmt.Errorf("column %s is not in the layout", col)
			}
			data = append(data, &sheets.ValueRange{
				Range:  s.a1(cellName(n, change.After.Index)),
				Values: [][]interface{}{{s.cellValue(change.After, col)}},
			})
		}
		if change.After.Index > maxRow {
			maxRow = change.After.Index
		}
	}
	if len(data) == 0 {
		return 0, nil
	}

	if err := s.client.EnsureRows(ctx, s.spreadsheetID, s.sheet, maxRow); err != nil {
		return 0, err
	}
	if err := s.client.BatchUpdate(ctx, s.spreadsheetID, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// PriceTable reads columns A..C of the price tab; an unreadable or empty tab yields the defaults.
func (s *Store) PriceTable(ctx context.Context, sheet string) (internal.PriceTable, error) {
	values, err := s.client.ReadSheet(ctx, s.spreadsheetID, quoteSheet(sheet)+"!A:C")
	if err != nil {
		log.Warn().Err(err).Str("sheet", sheet).Msg("price sheet unreadable, using default prices")
		return internal.DefaultPriceTable(), nil
	}
	rows := make([][]string, 0, len(values))
	for _, v := range values {
		rows = append(rows, toStrings(v))
	}
	entries := workbook.ParsePriceRows(rows)
	if len(entries) == 0 {
		return internal.DefaultPriceTable(), nil
	}
	return internal.NewPriceTable(entries), nil
}

func (s *Store) cellValue(row internal.Row, col internal.Column) string {
	cell := row.Cells[col]
	if cell.Formula == "" {
		return literal(cell.Value)
	}
	return internal.ExpandFormula(cell.Formula, func(ref internal.Column) (string, bool) {
		n, ok := s.columns[ref]
		if !ok {
			return "", false
		}
		return cellName(n, row.Index), true
	})
}

// literal quotes text that USER_ENTERED input would otherwise evaluate, such as a
// description starting with "- " or "=".
func literal(v string) string {
	if v == "" || !strings.ContainsRune("=+-@'", rune(v[0])) {
		return v
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return v
	}
	return "'" + v
}

func (s *Store) a1(ref string) string {
	return quoteSheet(s.sheet) + "!" + ref
}

func mapHeader(header []string, layout []config.ColumnSpec) (map[internal.Column]int, []config.ColumnSpec, int) {
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

	columns := make(map[internal.Column]int, len(layout))
	var added []config.ColumnSpec
	for _, spec := range layout {
		if n, ok := byHeader[foldHeader(spec.Header)]; ok {
			columns[spec.Key] = n
			continue
		}
		last++
		columns[spec.Key] = last
		added = append(added, spec)
	}
	return columns, added, last
}

func toRows(values [][]interface{}, columns map[internal.Column]int, firstRow int) []internal.Row {
	out := make([]internal.Row, 0, len(values))
	for i, raw := range values {
		cells := toStrings(raw)
		row := internal.NewRow(firstRow + i)
		for col, n := range columns {
			if n-1 >= len(cells) {
				continue
			}
			text := strings.TrimSpace(cells[n-1])
			if text == "" {
				continue
			}
			if strings.HasPrefix(text, "=") {
				row.Cells[col] = internal.Cell{Formula: text}
			} else {
				row.Cells[col] = internal.Cell{Value: text}
			}
		}
		if len(row.Cells) > 0 {
			out = append(out, row)
		}
	}
	return out
}

func toStrings(values []interface{}) []string {
	out := make([]string, len(values))
	for i, v := range values {
		switch t := v.(type) {
		case nil:
		case string:
			out[i] = t
		case float64:
			out[i] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[i] = strconv.FormatBool(t)
		default:
			out[i] = fmt.Sprint(t)
		}
	}
	return out
}

func columnName(n int) string {
	name, _ := excelize.ColumnNumberToName(n)
	return name
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func foldHeader(h string) string {
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}
