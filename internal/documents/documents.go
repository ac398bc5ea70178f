package documents

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"worksync/internal"
	"worksync/internal/config"
	"worksync/internal/pipeline"
	"worksync/internal/util"
)

type Kind string

const (
	KindOrder   Kind = "order"
	KindReport  Kind = "report"
	KindAct     Kind = "act"
	KindMonthly Kind = "monthly"
)

var ErrNoRows = errors.New("no matching rows")

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindOrder, KindReport, KindAct, KindMonthly:
		return k, nil
	}
	return "", fmt.Errorf("unknown document kind %q", s)
}

// TransitNote marks a transit address printed under its main line.
const TransitNote = "(транзитный адрес)"

type Line struct {
	Address     string
	Transit     []string
	StartDate   string
	EndDate     string
	ServiceCode int
	Service     string
	Amount      float64
}

type Document struct {
	Kind        Kind
	Number      string
	Date        time.Time
	PeriodStart string
	PeriodEnd   string
	Lines       []Line
	Total       float64
	TotalWords  string
	ContractRef string
}

func (d Document) Title() string {
	switch d.Kind {
	case KindOrder:
		return "ЗАДАНИЕ № " + d.Number
	case KindReport:
		return "ОТЧЕТ № " + d.Number
	case KindAct:
		return "АКТ № " + d.Number
	default:
		return "ОТЧЕТ ЗА ПЕРИОД " + d.Number
	}
}

func (d Document) FileName(ext string) string {
	prefix := map[Kind]string{
		KindOrder:   "Задание",
		KindReport:  "Отчет",
		KindAct:     "Акт",
		KindMonthly: "Отчет_за_месяц",
	}[d.Kind]
	return util.SanitizeFileName(prefix+"_"+d.Number) + "." + ext
}

// Priced reports whether the document shows amounts; a work order does not.
func (d Document) Priced() bool {
	return d.Kind != KindOrder
}

func (d Document) Services() []internal.ServiceLine {
	out := make([]internal.ServiceLine, 0, len(d.Lines))
	for _, l := range d.Lines {
		out = append(out, internal.ServiceLine{Code: l.ServiceCode, Description: l.Service, Amount: l.Amount})
	}
	return out
}

// Record is the history entry for the document saved at path.
func (d Document) Record(path string) internal.DocumentRecord {
	return internal.DocumentRecord{
		TaskNumber:  d.Number,
		DocType:     string(d.Kind),
		CreatedAt:   d.Date.Format(time.RFC3339),
		StartDate:   d.PeriodStart,
		EndDate:     d.PeriodEnd,
		TotalAmount: d.Total,
		Services:    d.Services(),
		FilePath:    path,
	}
}

// Builder assembles documents from rows of the data sheet.
type Builder struct {
	rules       *config.Compiled
	prices      internal.PriceTable
	matcher     *pipeline.Matcher
	contractRef string
	now         func() time.Time
}

func NewBuilder(rules *config.Compiled, prices internal.PriceTable, contractRef string, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	if prices.Len() == 0 {
		prices = internal.DefaultPriceTable()
	}
	return &Builder{
		rules:       rules,
		prices:      prices,
		matcher:     pipeline.NewMatcher(rules),
		contractRef: contractRef,
		now:         now,
	}
}

func (b *Builder) WorkOrder(task string, rows []internal.Row) (Document, error) {
	return b.single(KindOrder, task, rows)
}

func (b *Builder) ServiceReport(task string, rows []internal.Row) (Document, error) {
	return b.single(KindReport, task, rows)
}

func (b *Builder) single(kind Kind, task string, rows []internal.Row) (Document, error) {
	pos, ok := b.matcher.Match(task, rows)
	if !ok {
		return Document{}, fmt.Errorf("%w: task %s", ErrNoRows, task)
	}
	row := rows[pos]
	line := b.line(row)
	if line.StartDate == "" {
		line.StartDate = b.now().Format(util.DateLayout)
	}

	doc := b.newDocument(kind, task, []Line{line})
	doc.PeriodStart = line.StartDate
	doc.PeriodEnd = line.EndDate
	return doc, nil
}

// Act collects the completed rows carrying act number. An empty number takes the
// first act number found in the sheet.
func (b *Builder) Act(number string, rows []internal.Row) (Document, error) {
	if strings.TrimSpace(number) == "" {
		for _, row := range rows {
			if n := NormalizeActNumber(row.Get(internal.ColActNumber)); n != "" {
				number = n
				break
			}
		}
		if number == "" {
			return Document{}, fmt.Errorf("%w: no act number in the sheet", ErrNoRows)
		}
	}
	number = NormalizeActNumber(number)

	selected := SelectActRows(rows, number)
	if len(selected) == 0 {
		return Document{}, fmt.Errorf("%w: act %s", ErrNoRows, number)
	}

	lines := make([]Line, 0, len(selected))
	var first, last time.Time
	for _, row := range selected {
		line := b.line(row)
		lines = append(lines, line)
		if d, ok := util.ParseDate(line.StartDate); ok && (first.IsZero() || d.Before(first)) {
			first = d
		}
		if d, ok := util.ParseDate(line.EndDate); ok && d.After(last) {
			last = d
		}
	}

	doc := b.newDocument(KindAct, number, lines)
	if !first.IsZero() {
		doc.PeriodStart = first.Format(util.DateLayout)
	}
	if !last.IsZero() {
		doc.PeriodEnd = last.Format(util.DateLayout)
		doc.Date = last
	}
	return doc, nil
}

// MonthlyReport lists every addressed row whose start date falls in the month, by start date.
func (b *Builder) MonthlyReport(month, year int, rows []internal.Row) (Document, error) {
	if month < 1 || month > 12 {
		return Document{}, fmt.Errorf("month out of range: %d", month)
	}

	type dated struct {
		at   time.Time
		line Line
	}
	var picked []dated
	for _, row := range rows {
		if strings.TrimSpace(row.Get(internal.ColAddress)) == "" {
			continue
		}
		start, ok := util.ParseDate(row.Get(internal.ColStartDate))
		if !ok || start.Year() != year || int(start.Month()) != month {
			continue
		}
		picked = append(picked, dated{at: start, line: b.line(row)})
	}
	if len(picked) == 0 {
		return Document{}, fmt.Errorf("%w: %02d.%d", ErrNoRows, month, year)
	}
	sort.SliceStable(picked, func(i, j int) bool { return picked[i].at.Before(picked[j].at) })

	lines := make([]Line, 0, len(picked))
	for _, p := range picked {
		lines = append(lines, p.line)
	}
	doc := b.newDocument(KindMonthly, fmt.Sprintf("%02d.%d", month, year), lines)
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	doc.PeriodStart = from.Format(util.DateLayout)
	doc.PeriodEnd = from.AddDate(0, 1, -1).Format(util.DateLayout)
	return doc, nil
}

func (b *Builder) newDocument(kind Kind, number string, lines []Line) Document {
	doc := Document{
		Kind:        kind,
		Number:      number,
		Date:        b.now(),
		Lines:       lines,
		ContractRef: b.contractRef,
	}
	if doc.Priced() {
		for _, l := range lines {
			doc.Total += l.Amount
		}
		doc.TotalWords = util.AmountToWords(doc.Total)
	}
	return doc
}

func (b *Builder) line(row internal.Row) Line {
	code, _ := strconv.Atoi(strings.TrimSpace(row.Get(internal.ColServiceCode)))
	service := row.Get(internal.ColService)
	if service == "" {
		if e, ok := b.prices.Lookup(code); ok {
			service = e.Description
		}
	}
	var transit []string
	for _, part := range strings.Split(row.Get(internal.ColTransit), ",") {
		if part = strings.TrimSpace(part); part != "" {
			transit = append(transit, part)
		}
	}
	return Line{
		Address:     row.Get(internal.ColAddress),
		Transit:     transit,
		StartDate:   util.NormalizeDate(row.Get(internal.ColStartDate)),
		EndDate:     util.NormalizeDate(row.Get(internal.ColEndDate)),
		ServiceCode: code,
		Service:     service,
		Amount:      b.RowCost(row),
	}
}

// RowCost is the invoice amount, else the cost cell, else the table price of the service.
func (b *Builder) RowCost(row internal.Row) float64 {
	if v, ok := util.ParseAmount(row.Get(internal.ColInvoice)); ok {
		return v
	}
	if v, ok := util.ParseAmount(row.Get(internal.ColCost)); ok {
		return v
	}
	if code, err := strconv.Atoi(strings.TrimSpace(row.Get(internal.ColServiceCode))); err == nil {
		if e, ok := b.prices.Lookup(code); ok {
			return e.Amount
		}
	}
	service := row.Get(internal.ColService)
	for _, e := range b.prices.Entries() {
		if strings.HasPrefix(strings.TrimSpace(service), strconv.Itoa(e.Code)+".") {
			return e.Amount
		}
	}
	return 0
}
