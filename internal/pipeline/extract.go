package pipeline

import (
	"strings"

	"worksync/internal"
	"worksync/internal/config"
	"worksync/internal/util"
)

const addressTrimSet = " \t.,;:-"

// Extractor turns a raw card into a StructuredRecord. It never fails: anything it
// cannot find is left empty.
type Extractor struct {
	rules *config.Compiled
}

func NewExtractor(rules *config.Compiled) *Extractor {
	return &Extractor{rules: rules}
}

func (e *Extractor) Extract(card internal.RawCard) internal.StructuredRecord {
	title := util.CollapseSpaces(card.Title)
	description := strings.TrimSpace(card.Description)

	rec := internal.StructuredRecord{
		CardID:           card.ID,
		Title:            title,
		Description:      description,
		TaskNumber:       e.TaskNumber(title),
		TransitAddresses: []string{},
		Fields:           map[internal.DescriptionField]string{},
		Labels:           append([]string(nil), card.Labels...),
		Archived:         card.Closed,
	}

	rec.MainAddress, rec.TransitAddresses = e.splitAddresses(title)
	e.extractFields(description, rec.Fields)
	rec.DescriptionTotal = e.descriptionTotal(description)
	rec.ChecklistTotal = e.checklistTotal(card.Checklist)
	rec.Status = e.status(card.ListName, card.Closed)
	rec.District = matchLabel(card.Labels, e.rules.KnownDistricts)
	rec.LabelClient = matchLabel(card.Labels, e.rules.KnownClients)

	return rec
}

// TaskNumber applies the task-number patterns in order and returns the first capture.
func (e *Extractor) TaskNumber(text string) string {
	for _, re := range e.rules.TaskNumber {
		m := re.FindStringSubmatch(text)
		if len(m) > 1 && m[1] != "" {
			return m[1]
		}
	}
	return ""
}

func (e *Extractor) splitAddresses(title string) (string, []string) {
	transit := []string{}
	main := title

	if loc := e.rules.Transit.FindStringIndex(title); loc != nil {
		main = title[:loc[0]]
		rest := e.rules.AddressSuffix.ReplaceAllString(title[loc[1]:], "")
		for _, part := range strings.Split(rest, ",") {
			part = strings.Trim(strings.TrimSpace(part), addressTrimSet)
			if part != "" {
				transit = append(transit, part)
			}
		}
	}

	main = e.rules.AddressSuffix.ReplaceAllString(main, "")
	main = strings.Trim(strings.TrimSpace(main), addressTrimSet)
	return main, transit
}

func (e *Extractor) extractFields(description string, out map[internal.DescriptionField]string) {
	if description == "" {
		return
	}
	for _, field := range e.rules.Fields {
		for _, re := range field.Patterns {
			m := re.FindStringSubmatch(description)
			if len(m) < 2 {
				continue
			}
			value := strings.Trim(strings.TrimSpace(m[1]), " \t\r*_")
			if e.rules.Ignored(value) {
				continue
			}
			if field.Field == internal.FieldStartDate {
				value = util.NormalizeDate(value)
			}
			out[field.Field] = value
			break
		}
	}
}

func (e *Extractor) descriptionTotal(description string) *float64 {
	for _, re := range e.rules.DescriptionTotal {
		m := re.FindStringSubmatch(description)
		if len(m) < 2 {
			continue
		}
		if amount, ok := util.ParseAmount(m[1]); ok {
			return util.FloatPtr(amount)
		}
	}
	return nil
}

func (e *Extractor) checklistTotal(items []string) *float64 {
	for _, item := range items {
		m := e.rules.ChecklistTotal.FindStringSubmatch(item)
		if len(m) < 2 {
			continue
		}
		if amount, ok := util.ParseAmount(m[1]); ok {
			return util.FloatPtr(amount)
		}
	}
	return nil
}

func (e *Extractor) status(listName string, closed bool) string {
	status, ok := e.rules.LookupStatus(listName)
	if !ok {
		status = strings.TrimSpace(listName)
	}
	if !closed {
		return status
	}
	if status == "" {
		return e.rules.ArchivePrefix
	}
	return e.rules.ArchivePrefix + " " + status
}

func matchLabel(labels []string, known []string) string {
	for _, label := range labels {
		for _, k := range known {
			if k != "" && util.ContainsFold(label, k) {
				return strings.TrimSpace(label)
			}
		}
	}
	return ""
}
