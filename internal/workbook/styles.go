package workbook

import "github.com/xuri/excelize/v2"

// StyleManager caches styles so each one is registered once per file.
type StyleManager struct {
	file  *excelize.File
	cache map[string]int
}

func NewStyleManager(f *excelize.File) *StyleManager {
	return &StyleManager{file: f, cache: make(map[string]int)}
}

func (sm *StyleManager) Header() (int, error) {
	return sm.getOrCreate("header", &excelize.Style{
		Font:      &excelize.Font{Family: "Times New Roman", Size: 11, Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"D9E1F2"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border:    thinBorder(),
	})
}

func (sm *StyleManager) Centered() (int, error) {
	return sm.getOrCreate("centered", &excelize.Style{
		Font:      defaultFont(),
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border:    thinBorder(),
	})
}

func (sm *StyleManager) Left() (int, error) {
	return sm.getOrCreate("left", &excelize.Style{
		Font:      defaultFont(),
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center", WrapText: true},
		Border:    thinBorder(),
	})
}

// Money formats with two decimals and a thousands separator.
func (sm *StyleManager) Money() (int, error) {
	format := "#,##0.00"
	return sm.getOrCreate("money", &excelize.Style{
		Font:         defaultFont(),
		Alignment:    &excelize.Alignment{Horizontal: "right", Vertical: "center"},
		Border:       thinBorder(),
		CustomNumFmt: &format,
	})
}

func (sm *StyleManager) Title() (int, error) {
	return sm.getOrCreate("title", &excelize.Style{
		Font:      &excelize.Font{Family: "Times New Roman", Size: 14, Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
}

func (sm *StyleManager) Plain() (int, error) {
	return sm.getOrCreate("plain", &excelize.Style{
		Font:      defaultFont(),
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
}

func (sm *StyleManager) getOrCreate(key string, style *excelize.Style) (int, error) {
	if id, ok := sm.cache[key]; ok {
		return id, nil
	}

	id, err := sm.file.NewStyle(style)
	if err != nil {
		return 0, err
	}

	sm.cache[key] = id
	return id, nil
}

func defaultFont() *excelize.Font {
	return &excelize.Font{Family: "Times New Roman", Size: 11}
}

func thinBorder() []excelize.Border {
	return []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
}
