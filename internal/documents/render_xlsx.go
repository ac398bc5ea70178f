package documents

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"worksync/internal/util"
	"worksync/internal/workbook"
)

const (
	sheetName     = "Документ"
	tableFirstRow = 8
)

var tableHeader = []string{
	"Адрес предоставления услуги",
	"Дата передачи задания",
	"Дата выполнения задания",
	"Вид оказанной услуги",
	"Стоимость оказанных услуг, руб.",
}

// RenderXLSX writes doc into dir and returns the file path.
func RenderXLSX(doc Document, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return "", err
	}
	if err := fillSheet(f, doc); err != nil {
		return "", err
	}

	path := filepath.Join(dir, doc.FileName("xlsx"))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save %s: %w", path, err)
	}
	return path, nil
}

func fillSheet(f *excelize.File, doc Document) error {
	sm := workbook.NewStyleManager(f)
	titleStyle, err := sm.Title()
	if err != nil {
		return err
	}
	plainStyle, err := sm.Plain()
	if err != nil {
		return err
	}
	headerStyle, err := sm.Header()
	if err != nil {
		return err
	}
	leftStyle, err := sm.Left()
	if err != nil {
		return err
	}
	centerStyle, err := sm.Centered()
	if err != nil {
		return err
	}
	moneyStyle, err := sm.Money()
	if err != nil {
		return err
	}

	cols := len(tableHeader)
	if !doc.Priced() {
		cols--
	}
	lastCol, _ := excelize.ColumnNumberToName(cols)

	if doc.ContractRef != "" {
		if err := f.SetCellStr(sheetName, "A1", "Приложение к Договору "+doc.ContractRef); err != nil {
			return err
		}
	}
	if err := f.MergeCell(sheetName, "A3", lastCol+"3"); err != nil {
		return err
	}
	if err := f.SetCellStr(sheetName, "A3", doc.Title()); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, "A3", lastCol+"3", titleStyle); err != nil {
		return err
	}
	if err := f.SetCellStr(sheetName, "A5", "Дата: "+doc.Date.Format(util.DateLayout)); err != nil {
		return err
	}
	if doc.PeriodStart != "" || doc.PeriodEnd != "" {
		period := fmt.Sprintf("Период: с %s по %s", doc.PeriodStart, doc.PeriodEnd)
		if err := f.SetCellStr(sheetName, "A6", period); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheetName, "A1", "A6", plainStyle); err != nil {
		return err
	}

	header := make([]any, 0, cols)
	for _, h := range tableHeader[:cols] {
		header = append(header, h)
	}
	headerCell, _ := excelize.CoordinatesToCellName(1, tableFirstRow)
	if err := f.SetSheetRow(sheetName, headerCell, &header); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, headerCell, fmt.Sprintf("%s%d", lastCol, tableFirstRow), headerStyle); err != nil {
		return err
	}

	row := tableFirstRow + 1
	for _, line := range doc.Lines {
		values := []any{line.Address, line.StartDate, line.EndDate, line.Service}
		if doc.Priced() {
			values = append(values, line.Amount)
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, cell, cell, leftStyle); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, fmt.Sprintf("B%d", row), fmt.Sprintf("C%d", row), centerStyle); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, fmt.Sprintf("D%d", row), fmt.Sprintf("D%d", row), leftStyle); err != nil {
			return err
		}
		if doc.Priced() {
			if err := f.SetCellStyle(sheetName, fmt.Sprintf("E%d", row), fmt.Sprintf("E%d", row), moneyStyle); err != nil {
				return err
			}
		}
		row++
		for _, addr := range line.Transit {
			cell := fmt.Sprintf("A%d", row)
			if err := f.SetCellStr(sheetName, cell, "  "+addr+" "+TransitNote); err != nil {
				return err
			}
			if err := f.SetCellStyle(sheetName, cell, cell, leftStyle); err != nil {
				return err
			}
			row++
		}
	}

	if doc.Priced() {
		if err := f.SetCellStr(sheetName, fmt.Sprintf("D%d", row), "Итого:"); err != nil {
			return err
		}
		totalCell := fmt.Sprintf("E%d", row)
		formula := fmt.Sprintf("SUM(E%d:E%d)", tableFirstRow+1, row-1)
		if len(doc.Lines) == 0 {
			formula = "0"
		}
		if err := f.SetCellFormula(sheetName, totalCell, formula); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, totalCell, totalCell, moneyStyle); err != nil {
			return err
		}
		if err := f.SetCellStr(sheetName, fmt.Sprintf("A%d", row+2), "Итого оказано услуг на сумму: "+doc.TotalWords); err != nil {
			return err
		}
		if doc.Kind == KindAct {
			if err := f.SetCellStr(sheetName, fmt.Sprintf("A%d", row+3), "НДС не облагается в связи с применением Исполнителем упрощенной системы налогообложения."); err != nil {
				return err
			}
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 45)
	_ = f.SetColWidth(sheetName, "B", "C", 16)
	_ = f.SetColWidth(sheetName, "D", "D", 40)
	_ = f.SetColWidth(sheetName, "E", "E", 18)
	return nil
}
