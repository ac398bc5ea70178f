package documents

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lukasjarosch/go-docx"

	"worksync/internal/util"
)

// TemplatePath is where the Word template for kind lives, e.g. templates/act.docx.
func TemplatePath(templateDir string, kind Kind) string {
	return filepath.Join(templateDir, string(kind)+".docx")
}

// Placeholders are the {key} values a Word template can reference.
func Placeholders(doc Document) docx.PlaceholderMap {
	lines := make([]string, 0, len(doc.Lines))
	for i, l := range doc.Lines {
		text := fmt.Sprintf("%d. %s; %s - %s; %s", i+1, l.Address, l.StartDate, l.EndDate, l.Service)
		if doc.Priced() {
			text += "; " + util.FormatMoney(l.Amount) + " руб."
		}
		lines = append(lines, text)
		for _, addr := range l.Transit {
			lines = append(lines, "   "+addr+" "+TransitNote)
		}
	}

	first := Line{}
	if len(doc.Lines) > 0 {
		first = doc.Lines[0]
	}

	return docx.PlaceholderMap{
		"title":        doc.Title(),
		"number":       doc.Number,
		"date":         doc.Date.Format(util.DateLayout),
		"period_start": doc.PeriodStart,
		"period_end":   doc.PeriodEnd,
		"contract":     doc.ContractRef,
		"address":      first.Address,
		"service":      first.Service,
		"lines":        strings.Join(lines, "\n"),
		"count":        len(doc.Lines),
		"total":        util.FormatMoney(doc.Total),
		"total_words":  doc.TotalWords,
	}
}

// RenderDOCX fills the kind's template from templateDir and writes the result into dir.
func RenderDOCX(doc Document, templateDir, dir string) (string, error) {
	template := TemplatePath(templateDir, doc.Kind)
	tmpl, err := docx.Open(template)
	if err != nil {
		return "", fmt.Errorf("open template %s: %w", template, err)
	}
	defer tmpl.Close()

	if err := tmpl.ReplaceAll(Placeholders(doc)); err != nil {
		return "", fmt.Errorf("fill template %s: %w", template, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, doc.FileName("docx"))
	if err := tmpl.WriteToFile(path); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
