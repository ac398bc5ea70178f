package pipeline

import (
	"strconv"
	"strings"
	"time"

	"worksync/internal"
	"worksync/internal/config"
	"worksync/internal/util"
)

// Merger computes the next state of a row from a record and its price.
// The clock is injected so that two merges with the same inputs agree.
type Merger struct {
	rules      *config.Compiled
	priceSheet string
	now        func() time.Time
}

func NewMerger(rules *config.Compiled, priceSheet string, now func() time.Time) *Merger {
	if now == nil {
		now = time.Now
	}
	return &Merger{rules: rules, priceSheet: priceSheet, now: now}
}

// Merge returns the new row state and whether a write should happen. A nil existing
// row means creation; a locked existing row comes back unchanged with false.
func (m *Merger) Merge(existing *internal.Row, rec internal.StructuredRecord, price internal.PriceResolution) (internal.Row, bool) {
	creating := existing == nil
	if !creating && existing.Locked(m.rules.LockColumn) {
		return existing.Clone(), false
	}

	row := internal.NewRow(0)
	if !creating {
		row = existing.Clone()
	}

	values := m.values(rec, price)
	for _, spec := range m.rules.Columns {
		col := spec.Key
		switch {
		case col == m.rules.LockColumn:
		case m.rules.UserOwned(col):
		case col == internal.ColCost:
			if creating {
				row.Cells[col] = internal.Cell{Formula: m.costFormula()}
			}
		case col == internal.ColReportDate:
			row.Set(col, m.now().Format(m.rules.ReportDateLayout))
		case m.rules.SyncOwned(col):
			row.Set(col, values[col])
		case m.rules.Conditional(col):
			if v := values[col]; v != "" {
				row.Set(col, v)
			}
		}
	}
	return row, true
}

// Composite is the address column value that identifies a task: "<address>. Задание <N>".
func (m *Merger) Composite(rec internal.StructuredRecord) string {
	if rec.TaskNumber == "" {
		return rec.MainAddress
	}
	suffix := m.rules.TaskLabel + " " + rec.TaskNumber
	if rec.MainAddress == "" {
		return suffix
	}
	return rec.MainAddress + ". " + suffix
}

func (m *Merger) values(rec internal.StructuredRecord, price internal.PriceResolution) map[internal.Column]string {
	values := map[internal.Column]string{
		internal.ColAddress:     m.Composite(rec),
		internal.ColServiceCode: strconv.Itoa(price.Code),
		internal.ColService:     price.Description,
		internal.ColStatus:      rec.Status,
		internal.ColDescription: rec.Description,
		internal.ColStartDate:   rec.Field(internal.FieldStartDate),
		internal.ColClient:      rec.Client(),
		internal.ColContractor:  rec.Field(internal.FieldContractor),
		internal.ColTransit:     strings.Join(rec.TransitAddresses, ", "),
		internal.ColDistrict:    rec.District,
	}
	if price.Overridden {
		values[internal.ColInvoice] = util.FormatAmount(price.Amount)
	}
	return values
}

func (m *Merger) costFormula() string {
	return strings.ReplaceAll(m.rules.CostFormula, "{price_sheet}", m.priceSheet)
}
