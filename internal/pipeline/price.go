package pipeline

import (
	"strconv"
	"strings"

	"worksync/internal"
	"worksync/internal/config"
)

// Resolver picks a service code and amount for a record against one price table.
type Resolver struct {
	table internal.PriceTable
	rules *config.Compiled
}

// NewResolver falls back to the built-in table when table is empty.
func NewResolver(table internal.PriceTable, rules *config.Compiled) *Resolver {
	if table.Len() == 0 {
		table = internal.DefaultPriceTable()
	}
	return &Resolver{table: table, rules: rules}
}

func (r *Resolver) Table() internal.PriceTable {
	return r.table
}

func (r *Resolver) Resolve(rec internal.StructuredRecord) internal.PriceResolution {
	entry, source := r.fromLabels(rec.Labels)
	if source == "" {
		entry, source = r.fromKeywords(rec.Description + " " + rec.Title)
	}
	if source == "" {
		entry, _ = r.table.Lowest()
		source = internal.PriceFromDefault
	}

	res := internal.PriceResolution{
		Code:        entry.Code,
		Description: entry.Description,
		TableAmount: entry.Amount,
		Amount:      entry.Amount,
		Source:      source,
	}

	switch {
	case rec.DescriptionTotal != nil:
		res.Amount = *rec.DescriptionTotal
		res.Overridden = true
	case rec.ChecklistTotal != nil:
		res.Amount = *rec.ChecklistTotal
		res.Overridden = true
	}
	return res
}

func (r *Resolver) fromLabels(labels []string) (internal.PriceEntry, internal.PriceSource) {
	for _, label := range labels {
		for _, re := range r.rules.LabelCode {
			m := re.FindStringSubmatch(label)
			if len(m) < 2 {
				continue
			}
			code, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if entry, ok := r.table.Lookup(code); ok {
				return entry, internal.PriceFromLabel
			}
		}
	}
	return internal.PriceEntry{}, ""
}

func (r *Resolver) fromKeywords(text string) (internal.PriceEntry, internal.PriceSource) {
	lower := strings.ToLower(text)
	for _, kw := range r.rules.Keywords {
		entry, ok := r.table.Lookup(kw.Code)
		if !ok {
			continue
		}
		for _, k := range kw.Keywords {
			if strings.Contains(lower, k) {
				return entry, internal.PriceFromKeyword
			}
		}
	}
	return internal.PriceEntry{}, ""
}
