package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"worksync/internal"
	"worksync/internal/config"
)

type fakeSpreadsheet struct {
	mu         sync.Mutex
	header     []interface{}
	data       [][]interface{}
	prices     [][]interface{}
	rowCount   int64
	written    []*sheets.ValueRange
	grownBy    int64
	priceError bool
}

func (f *fakeSpreadsheet) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		path := r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(path, "/values:batchUpdate"):
			var req sheets.BatchUpdateValuesRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode: %v", err)
				return
			}
			if req.ValueInputOption != "USER_ENTERED" {
				t.Errorf("input option %q", req.ValueInputOption)
			}
			f.written = append(f.written, req.Data...)
			_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sid"})
		case strings.HasSuffix(path, ":batchUpdate"):
			var req sheets.BatchUpdateSpreadsheetRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode: %v", err)
				return
			}
			for _, rq := range req.Requests {
				if rq.AppendDimension != nil {
					f.grownBy += rq.AppendDimension.Length
				}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sid"})
		case strings.Contains(path, "/values/"):
			var values [][]interface{}
			switch {
			case strings.Contains(path, "!1:1"):
				if f.header != nil {
					values = [][]interface{}{f.header}
				}
			case strings.Contains(path, "!A:C"):
				if f.priceError {
					http.Error(w, `{"error":{"code":400,"message":"bad range"}}`, http.StatusBadRequest)
					return
				}
				values = f.prices
			default:
				values = f.data
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"range": "x", "majorDimension": "ROWS", "values": values})
		case path == "/v4/spreadsheets/sid":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"sheets": []map[string]any{
					{"properties": map[string]any{"sheetId": 1, "title": "расценки", "gridProperties": map[string]any{"rowCount": 100}}},
					{"properties": map[string]any{"sheetId": 7, "title": "Работы", "gridProperties": map[string]any{"rowCount": f.rowCount}}},
				},
			})
		default:
			t.Errorf("unexpected %s %s", r.Method, path)
			http.NotFound(w, r)
		}
	}
}

func newTestClient(t *testing.T, fake *fakeSpreadsheet) *Client {
	t.Helper()
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestStoreRoundTrip(t *testing.T) {
	fake := &fakeSpreadsheet{
		header:   []interface{}{"Номер акта", "Дата закрытия", "Адрес + Задание"},
		rowCount: 3,
		data: [][]interface{}{
			{"", "", "ул. Ленина 5. Задание 101", "", "", 4.0, "", `=IFERROR(VLOOKUP(F2,'расценки'!$A:$C,3,FALSE),"")`},
			{},
		},
	}
	client := newTestClient(t, fake)
	rules := config.MustCompileDefaults()
	ctx := context.Background()

	store, err := Open(ctx, client, "sid", "Работы", rules)
	if err != nil {
		t.Fatal(err)
	}
	if len(fake.written) != len(rules.Columns)-3 {
		t.Fatalf("header cells written=%d", len(fake.written))
	}
	if fake.written[0].Range != "'Работы'!D1" {
		t.Fatalf("first header range %q", fake.written[0].Range)
	}

	rows, err := store.ReadRows(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Index != 2 {
		t.Fatalf("rows=%+v", rows)
	}
	if rows[0].Get(internal.ColServiceCode) != "4" {
		t.Fatalf("code=%q", rows[0].Get(internal.ColServiceCode))
	}
	if !strings.HasPrefix(rows[0].Cells[internal.ColCost].Formula, "=IFERROR") {
		t.Fatalf("cost=%+v", rows[0].Cells[internal.ColCost])
	}

	fake.written = nil
	created := internal.NewRow(5)
	created.Set(internal.ColAddress, "пр. Мира 1. Задание 7")
	created.Cells[internal.ColCost] = internal.Cell{Formula: `=IFERROR(VLOOKUP({service_code},'расценки'!$A:$C,3,FALSE),"")`}
	n, err := store.Apply(ctx, []internal.RowChange{
		{Kind: internal.ChangeLocked, Before: rows[0], After: rows[0]},
		{Kind: internal.ChangeCreated, TaskNumber: "7", After: created},
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 || len(fake.written) != 2 {
		t.Fatalf("written=%d", n)
	}
	if fake.grownBy != 2 {
		t.Fatalf("grown by %d", fake.grownBy)
	}
	got := map[string]interface{}{}
	for _, vr := range fake.written {
		got[vr.Range] = vr.Values[0][0]
	}
	if got["'Работы'!C5"] != "пр. Мира 1. Задание 7" {
		t.Fatalf("written=%v", got)
	}
	if got["'Работы'!H5"] != `=IFERROR(VLOOKUP(F5,'расценки'!$A:$C,3,FALSE),"")` {
		t.Fatalf("formula=%v", got["'Работы'!H5"])
	}
}

func TestApplyQuotesTextThatLooksLikeFormula(t *testing.T) {
	rules := config.MustCompileDefaults()
	header := make([]interface{}, 0, len(rules.Columns))
	for _, spec := range rules.Columns {
		header = append(header, spec.Header)
	}
	fake := &fakeSpreadsheet{header: header, rowCount: 10}
	client := newTestClient(t, fake)
	ctx := context.Background()

	store, err := Open(ctx, client, "sid", "Работы", rules)
	if err != nil {
		t.Fatal(err)
	}

	fake.written = nil
	created := internal.NewRow(3)
	created.Set(internal.ColAddress, "ул. Мира 1. Задание 8")
	created.Set(internal.ColDescription, "- пункт первый\n- пункт второй")
	created.Set(internal.ColContractor, "=HYPERLINK(\"http://x\")")
	created.Set(internal.ColInvoice, "-1500")
	created.Cells[internal.ColCost] = internal.Cell{Formula: `=IFERROR(VLOOKUP({service_code},'расценки'!$A:$C,3,FALSE),"")`}
	if _, err := store.Apply(ctx, []internal.RowChange{{Kind: internal.ChangeCreated, TaskNumber: "8", After: created}}); err != nil {
		t.Fatal(err)
	}

	got := map[string]interface{}{}
	for _, vr := range fake.written {
		got[vr.Range] = vr.Values[0][0]
	}
	want := map[string]string{
		"'Работы'!C3": "ул. Мира 1. Задание 8",
		"'Работы'!Q3": "'- пункт первый\n- пункт второй",
		"'Работы'!L3": `'=HYPERLINK("http://x")`,
		"'Работы'!I3": "-1500",
		"'Работы'!H3": `=IFERROR(VLOOKUP(F3,'расценки'!$A:$C,3,FALSE),"")`,
	}
	for ref, v := range want {
		if got[ref] != v {
			t.Fatalf("%s=%v want %q (all %v)", ref, got[ref], v, got)
		}
	}
}

func TestLiteral(t *testing.T) {
	cases := map[string]string{
		"":           "",
		"ул. Мира 1": "ул. Мира 1",
		"- пункт":    "'- пункт",
		"+7 999":     "'+7 999",
		"@home":      "'@home",
		"'quoted":    "''quoted",
		"-12.5":      "-12.5",
		"=1+1":       "'=1+1",
	}
	for in, want := range cases {
		if got := literal(in); got != want {
			t.Fatalf("literal(%q)=%q want %q", in, got, want)
		}
	}
}

func TestPriceTable(t *testing.T) {
	fake := &fakeSpreadsheet{
		header: []interface{}{"Адрес + Задание"},
		prices: [][]interface{}{
			{"Код", "Услуга", "Цена"},
			{1.0, "Консультация", 2000.0},
			{2.0, "Согласование", "5 500"},
		},
	}
	client := newTestClient(t, fake)
	ctx := context.Background()

	store, err := Open(ctx, client, "sid", "Работы", config.MustCompileDefaults())
	if err != nil {
		t.Fatal(err)
	}
	table, err := store.PriceTable(ctx, "расценки")
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() != 2 {
		t.Fatalf("prices=%d", table.Len())
	}
	if e, _ := table.Lookup(2); e.Amount != 5500 {
		t.Fatalf("code 2=%+v", e)
	}

	fake.priceError = true
	table, err = store.PriceTable(ctx, "расценки")
	if err != nil {
		t.Fatal(err)
	}
	if table.Len() != internal.DefaultPriceTable().Len() {
		t.Fatalf("prices=%d", table.Len())
	}
}

func TestMapHeader(t *testing.T) {
	layout := []config.ColumnSpec{
		{Key: internal.ColAddress, Header: "Адрес + Задание"},
		{Key: internal.ColStatus, Header: "Статус"},
		{Key: internal.ColNote, Header: "Примечание"},
	}
	columns, added, width := mapHeader([]string{"", "СТАТУС", "", "адрес  +  задание"}, layout)
	if columns[internal.ColStatus] != 2 || columns[internal.ColAddress] != 4 || columns[internal.ColNote] != 5 {
		t.Fatalf("columns=%v", columns)
	}
	if len(added) != 1 || added[0].Key != internal.ColNote || width != 5 {
		t.Fatalf("added=%v width=%d", added, width)
	}
}

func TestHelpers(t *testing.T) {
	if quoteSheet("Bob's") != "'Bob''s'" {
		t.Fatalf("quote=%s", quoteSheet("Bob's"))
	}
	if cellName(28, 3) != "AB3" {
		t.Fatalf("cell=%s", cellName(28, 3))
	}
	got := toStrings([]interface{}{nil, "a", 1850.5, true, 3.0})
	want := []string{"", "a", "1850.5", "true", "3"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("toStrings=%v", got)
		}
	}
}
