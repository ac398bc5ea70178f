package internal

import (
	"regexp"
	"sort"
	"strings"
)

// RawCard is a task card as delivered by the board source.
type RawCard struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Labels      []string `json:"labels"`
	ListName    string   `json:"listName"`
	Closed      bool     `json:"closed"`
	Checklist   []string `json:"checklist"`
	Due         string   `json:"due,omitempty"`
	URL         string   `json:"url,omitempty"`
}

type DescriptionField string

const (
	FieldStartDate   DescriptionField = "start_date"
	FieldContractor  DescriptionField = "contractor"
	FieldClient      DescriptionField = "client"
	FieldResponsible DescriptionField = "responsible"
)

type StructuredRecord struct {
	CardID           string
	Title            string
	Description      string
	MainAddress      string
	TaskNumber       string
	TransitAddresses []string
	Fields           map[DescriptionField]string
	Labels           []string
	Status           string
	Archived         bool
	ChecklistTotal   *float64
	DescriptionTotal *float64
	District         string
	LabelClient      string
}

func (r StructuredRecord) Field(f DescriptionField) string {
	return r.Fields[f]
}

// Client prefers a client recognised among the labels over the one typed in the description.
func (r StructuredRecord) Client() string {
	if r.LabelClient != "" {
		return r.LabelClient
	}
	return r.Fields[FieldClient]
}

type PriceEntry struct {
	Code        int     `json:"code" yaml:"code"`
	Description string  `json:"description" yaml:"description"`
	Amount      float64 `json:"amount" yaml:"amount"`
}

// PriceTable is kept sorted by code.
type PriceTable struct {
	entries []PriceEntry
	byCode  map[int]PriceEntry
}

func NewPriceTable(entries []PriceEntry) PriceTable {
	byCode := make(map[int]PriceEntry, len(entries))
	for _, e := range entries {
		if _, dup := byCode[e.Code]; dup {
			continue
		}
		byCode[e.Code] = e
	}
	sorted := make([]PriceEntry, 0, len(byCode))
	for _, e := range byCode {
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Code < sorted[j].Code })
	return PriceTable{entries: sorted, byCode: byCode}
}

func (t PriceTable) Entries() []PriceEntry {
	out := make([]PriceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t PriceTable) Lookup(code int) (PriceEntry, bool) {
	e, ok := t.byCode[code]
	return e, ok
}

func (t PriceTable) Lowest() (PriceEntry, bool) {
	if len(t.entries) == 0 {
		return PriceEntry{}, false
	}
	return t.entries[0], true
}

func (t PriceTable) Len() int {
	return len(t.entries)
}

func DefaultPriceTable() PriceTable {
	return NewPriceTable([]PriceEntry{
		{Code: 1, Description: "Консультации по размещению кабелей", Amount: 1850},
		{Code: 2, Description: "Согласование с ЖКС/ГУПРЭП", Amount: 5250},
		{Code: 3, Description: "Согласование с ТСЖ/УК", Amount: 7050},
		{Code: 4, Description: "Транзит/Авария/VIP", Amount: 8600},
		{Code: 5, Description: "Монтаж по фасадам", Amount: 1850},
		{Code: 6, Description: "Доступ в подвалы/чердаки", Amount: 5250},
		{Code: 7, Description: "Доступ в ТЦ/БЦ", Amount: 8600},
	})
}

type PriceSource string

const (
	PriceFromLabel   PriceSource = "label"
	PriceFromKeyword PriceSource = "keyword"
	PriceFromDefault PriceSource = "default"
)

type PriceResolution struct {
	Code        int
	Description string
	TableAmount float64
	Amount      float64
	Source      PriceSource
	Overridden  bool
}

// Column is the stable key of a spreadsheet column; header text lives in the layout.
type Column string

const (
	ColActNumber   Column = "act_number"
	ColClosed      Column = "closed"
	ColAddress     Column = "address"
	ColStartDate   Column = "start_date"
	ColEndDate     Column = "end_date"
	ColServiceCode Column = "service_code"
	ColService     Column = "service"
	ColCost        Column = "cost"
	ColInvoice     Column = "invoice"
	ColReportDate  Column = "report_date"
	ColClient      Column = "client"
	ColContractor  Column = "contractor"
	ColStatus      Column = "status"
	ColTransit     Column = "transit"
	ColDistrict    Column = "district"
	ColNote        Column = "note"
	ColDescription Column = "description"
)

var formulaRef = regexp.MustCompile(`\{([a-z_]+)\}`)

// ExpandFormula replaces {column_key} placeholders with the cell reference returned by ref.
// Unknown keys are left as they are.
func ExpandFormula(formula string, ref func(Column) (string, bool)) string {
	return formulaRef.ReplaceAllStringFunc(formula, func(m string) string {
		if cell, ok := ref(Column(m[1 : len(m)-1])); ok {
			return cell
		}
		return m
	})
}

type Cell struct {
	Value   string
	Formula string
}

func (c Cell) Empty() bool {
	return strings.TrimSpace(c.Value) == "" && c.Formula == ""
}

// Row is one persisted spreadsheet row. Index is the 1-based sheet row, 0 for a row not yet written.
type Row struct {
	Index int
	Cells map[Column]Cell
}

func NewRow(index int) Row {
	return Row{Index: index, Cells: map[Column]Cell{}}
}

func (r Row) Get(col Column) string {
	return r.Cells[col].Value
}

func (r Row) Set(col Column, value string) {
	r.Cells[col] = Cell{Value: value}
}

func (r Row) Clone() Row {
	out := Row{Index: r.Index, Cells: make(map[Column]Cell, len(r.Cells))}
	for k, v := range r.Cells {
		out.Cells[k] = v
	}
	return out
}

// Locked reports whether the lock marker column carries any value.
func (r Row) Locked(lock Column) bool {
	return !r.Cells[lock].Empty()
}

// Diff lists the columns whose cell differs between r and other, sorted by key.
func (r Row) Diff(other Row) []Column {
	seen := map[Column]struct{}{}
	var out []Column
	for col, cell := range r.Cells {
		seen[col] = struct{}{}
		if other.Cells[col] != cell {
			out = append(out, col)
		}
	}
	for col, cell := range other.Cells {
		if _, ok := seen[col]; ok {
			continue
		}
		if !cell.Empty() {
			out = append(out, col)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeLocked  ChangeKind = "locked"
)

type RowChange struct {
	Kind       ChangeKind
	TaskNumber string
	CardID     string
	Before     Row
	After      Row
}

type CardError struct {
	CardID string
	Title  string
	Err    error
}

func (e CardError) Error() string {
	return "card " + e.CardID + ": " + e.Err.Error()
}

type SyncResult struct {
	Created int
	Updated int
	Skipped int
	Errored int
	Locked  int
	Rows    []Row
	Changes []RowChange
	Errors  []CardError
}

func (r SyncResult) Counts() map[string]int {
	return map[string]int{
		"created": r.Created,
		"updated": r.Updated,
		"skipped": r.Skipped,
		"errored": r.Errored,
		"locked":  r.Locked,
	}
}

// DocumentRecord is a generated document kept in the history database.
type DocumentRecord struct {
	ID          int64
	TaskNumber  string
	DocType     string
	CreatedAt   string
	StartDate   string
	EndDate     string
	TotalAmount float64
	Services    []ServiceLine
	FilePath    string
	Notes       string
}

type ServiceLine struct {
	Code        int     `json:"code"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
}
