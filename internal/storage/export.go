package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"worksync/internal/workbook"
)

// ExportXLSX writes the document list and the statistics to an xlsx file at path.
func (d *DB) ExportXLSX(path string) error {
	docs, err := d.ListDocuments(DocumentFilter{})
	if err != nil {
		return err
	}
	stats, err := d.Statistics()
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	defer f.Close()
	sm := workbook.NewStyleManager(f)

	if err := f.SetSheetName("Sheet1", "Документы"); err != nil {
		return err
	}
	docRows := make([][]any, 0, len(docs))
	for _, doc := range docs {
		docRows = append(docRows, []any{doc.ID, doc.TaskNumber, doc.DocType, doc.CreatedAt, doc.StartDate, doc.EndDate, doc.TotalAmount, doc.FilePath, doc.Notes})
	}
	if err := writeTable(f, sm, "Документы", []string{"ID", "Номер", "Тип", "Создан", "Начало", "Окончание", "Сумма", "Файл", "Примечание"}, docRows); err != nil {
		return err
	}

	typeRows := make([][]any, 0, len(stats.ByType))
	for docType, count := range stats.ByType {
		typeRows = append(typeRows, []any{docType, count})
	}
	if err := addTable(f, sm, "По типам", []string{"Тип", "Количество"}, typeRows); err != nil {
		return err
	}

	monthRows := make([][]any, 0, len(stats.ByMonth))
	for _, m := range stats.ByMonth {
		monthRows = append(monthRows, []any{m.Month, m.Total})
	}
	if err := addTable(f, sm, "По месяцам", []string{"Месяц", "Сумма"}, monthRows); err != nil {
		return err
	}

	serviceRows := make([][]any, 0, len(stats.Services))
	for _, s := range stats.Services {
		serviceRows = append(serviceRows, []any{s.Code, s.Description, s.Count, s.Total})
	}
	if err := addTable(f, sm, "Услуги", []string{"Код", "Услуга", "Количество", "Сумма"}, serviceRows); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func addTable(f *excelize.File, sm *workbook.StyleManager, sheet string, header []string, rows [][]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	return writeTable(f, sm, sheet, header, rows)
}

func writeTable(f *excelize.File, sm *workbook.StyleManager, sheet string, header []string, rows [][]any) error {
	headerStyle, err := sm.Header()
	if err != nil {
		return err
	}
	cells := make([]any, len(header))
	for i, h := range header {
		cells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &cells); err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(header), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(header))
	return f.SetColWidth(sheet, "A", lastCol, 16)
}
