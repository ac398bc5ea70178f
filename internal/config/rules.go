package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"worksync/internal"
)

const (
	MatchToken     = "token"
	MatchSubstring = "substring"
)

type ColumnSpec struct {
	Key    internal.Column `yaml:"key"`
	Header string          `yaml:"header"`
}

type FieldPatterns struct {
	Field    internal.DescriptionField `yaml:"field"`
	Patterns []string                  `yaml:"patterns"`
}

type PriceKeywords struct {
	Code     int      `yaml:"code"`
	Keywords []string `yaml:"keywords"`
}

// Rules holds every tunable of card extraction, pricing and row merging.
// Order matters in every slice: the first hit wins.
type Rules struct {
	TaskNumberPatterns       []string          `yaml:"task_number_patterns"`
	TransitMarker            string            `yaml:"transit_marker"`
	AddressSuffixPattern     string            `yaml:"address_suffix_pattern"`
	DescriptionFields        []FieldPatterns   `yaml:"description_fields"`
	DescriptionTotalPatterns []string          `yaml:"description_total_patterns"`
	ChecklistTotalPattern    string            `yaml:"checklist_total_pattern"`
	IgnoredValues            []string          `yaml:"ignored_values"`
	StatusLookup             map[string]string `yaml:"status_lookup"`
	ArchivePrefix            string            `yaml:"archive_prefix"`
	PriceKeywords            []PriceKeywords   `yaml:"price_keywords"`
	LabelCodePatterns        []string          `yaml:"label_code_patterns"`
	KnownClients             []string          `yaml:"known_clients"`
	KnownDistricts           []string          `yaml:"known_districts"`

	Columns            []ColumnSpec      `yaml:"columns"`
	LockColumn         internal.Column   `yaml:"lock_column"`
	UserOwnedColumns   []internal.Column `yaml:"user_owned_columns"`
	SyncOwnedColumns   []internal.Column `yaml:"sync_owned_columns"`
	ConditionalColumns []internal.Column `yaml:"conditional_columns"`
	MatchMode          string            `yaml:"match_mode"`
	TaskLabel          string            `yaml:"task_label"`
	CostFormula        string            `yaml:"cost_formula"`
	ReportDateLayout   string            `yaml:"report_date_layout"`
}

func DefaultRules() Rules {
	return Rules{
		TaskNumberPatterns: []string{
			`(?i)Задание\s*[№#:]?\s*(\d+)`,
			`(?i)Номер\s+работы\s*[:№#]?\s*(\d+)`,
			`№\s*(\d+)`,
			`\b(\d{5,6})\b`,
		},
		TransitMarker:        `(?i)транзит[а-яё]*(?:\s+адрес[а-яё]*\s*:?|\s*:)\s*`,
		AddressSuffixPattern: `(?i)(?:^\s*|[.,;]\s*|\s+)(?:Задание|Номер\s+работы)\s*[:№#]?\s*\d+.*$|[.,;]\s*№\s*\d+.*$`,
		DescriptionFields: []FieldPatterns{
			{Field: internal.FieldStartDate, Patterns: []string{
				`(?i)Начало\s+работ[*_\s]*:[*_\s]*([^\n]+)`,
				`(?i)Дата\s+начала[*_\s]*:[*_\s]*([^\n]+)`,
			}},
			{Field: internal.FieldContractor, Patterns: []string{
				`(?i)Подрядчик[*_\s]*:[*_\s]*([^\n]+)`,
				`(?i)Исполнитель[*_\s]*:[*_\s]*([^\n]+)`,
			}},
			{Field: internal.FieldClient, Patterns: []string{
				`(?i)Заказчик[*_\s]*:[*_\s]*([^\n]+)`,
				`(?i)Клиент[*_\s]*:[*_\s]*([^\n]+)`,
			}},
			{Field: internal.FieldResponsible, Patterns: []string{
				`(?i)Ответственный[^:\n]*:[*_\s]*([^\n]+)`,
			}},
		},
		DescriptionTotalPatterns: []string{
			`(?i)ИТОГО[*_\s]*:?[*_ ]*(?:сумма\s*)?(\d[\d \x{00A0}]*(?:[.,]\d{1,2})?)`,
		},
		ChecklistTotalPattern: `(?i)ИТОГО\s*:?\s*(?:сумма\s*)?(\d[\d \x{00A0}]*(?:[.,]\d{1,2})?)`,
		IgnoredValues:         []string{"?????", "-", "—"},
		StatusLookup: map[string]string{
			"1-й этап. Начало работ.":                              "В работе",
			"2-й этап. В процессе работы":                          "В работе",
			"3-й этап СМР":                                         "В работе",
			"4-й этап. Работа сделана":                             "Выполнено",
			"5-й Этап. Северен остановил работы по своему желанию": "Приостановлено (Северен)",
			"6-й Заказчик Северена остановил работы":               "Приостановлено (Заказчик)",
			"7-й ОТКАЗ_РАБОТА ОСТАНОВЛЕНА на 1-м этапе":            "Отказ",
		},
		ArchivePrefix: "[АРХИВ]",
		PriceKeywords: []PriceKeywords{
			{Code: 1, Keywords: []string{"консультация", "согласование доступа", "письмо"}},
			{Code: 2, Keywords: []string{"ЖКС", "ГУПРЭП", "жилкомсервис"}},
			{Code: 3, Keywords: []string{"ТСЖ", "УК", "управляющая", "замена ВОК", "прокладка кабеля"}},
			{Code: 4, Keywords: []string{"транзит", "авария", "срочно", "VIP", "аварийн"}},
			{Code: 5, Keywords: []string{"фасад", "монтаж"}},
			{Code: 6, Keywords: []string{"подвал", "чердак", "доступ"}},
			{Code: 7, Keywords: []string{"ТЦ", "БЦ", "торговый центр", "паркинг", "бизнес центр"}},
		},
		LabelCodePatterns: []string{
			`(?i)пункт\s*№?\s*(\d+)`,
			`(?:^|\s)(\d+)\.(?:\s|$)`,
		},
		KnownClients: []string{"ЭТАЛОН", "Ростелеком", "СТОЛОТО", "Сервис-Недвижимость", "Сервис Недвижимость", "Юнит Сервис"},
		KnownDistricts: []string{
			"Московский", "Невский", "Приморский", "Красногвардейский",
			"Василеостровский", "Центральный", "Колпинский", "Гатчинский",
			"Калининский", "Фрунзенский", "Петроградский", "Кировский",
			"Выборгский", "Пушкинский",
		},

		Columns: []ColumnSpec{
			{Key: internal.ColActNumber, Header: "Номер акта"},
			{Key: internal.ColClosed, Header: "Дата закрытия"},
			{Key: internal.ColAddress, Header: "Адрес + Задание"},
			{Key: internal.ColStartDate, Header: "Начало работ"},
			{Key: internal.ColEndDate, Header: "Окончание работ"},
			{Key: internal.ColServiceCode, Header: "Код услуги"},
			{Key: internal.ColService, Header: "Название работ"},
			{Key: internal.ColCost, Header: "Стоимость (руб)"},
			{Key: internal.ColInvoice, Header: "Сумма по смете"},
			{Key: internal.ColReportDate, Header: "Дата формирования отчета"},
			{Key: internal.ColClient, Header: "Клиент"},
			{Key: internal.ColContractor, Header: "Исполнитель"},
			{Key: internal.ColStatus, Header: "Статус"},
			{Key: internal.ColTransit, Header: "Транзитные адреса"},
			{Key: internal.ColDistrict, Header: "Район"},
			{Key: internal.ColNote, Header: "Примечание"},
			{Key: internal.ColDescription, Header: "Описание из Trello"},
		},
		LockColumn:       internal.ColClosed,
		UserOwnedColumns: []internal.Column{internal.ColActNumber, internal.ColEndDate, internal.ColNote},
		SyncOwnedColumns: []internal.Column{
			internal.ColAddress, internal.ColServiceCode, internal.ColService,
			internal.ColStatus, internal.ColDescription,
		},
		ConditionalColumns: []internal.Column{
			internal.ColStartDate, internal.ColInvoice, internal.ColClient, internal.ColContractor,
			internal.ColTransit, internal.ColDistrict,
		},
		MatchMode:        MatchToken,
		TaskLabel:        "Задание",
		CostFormula:      `=IFERROR(VLOOKUP({service_code},'{price_sheet}'!$A:$C,3,FALSE),"")`,
		ReportDateLayout: "02.01.2006 15:04",
	}
}

// LoadRules overlays the YAML file at path on top of DefaultRules. An empty path yields the defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if strings.TrimSpace(path) == "" {
		return rules, nil
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}
	if err := yaml.Unmarshal(blob, &rules); err != nil {
		return Rules{}, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	return rules, nil
}

type CompiledField struct {
	Field    internal.DescriptionField
	Patterns []*regexp.Regexp
}

type CompiledKeywords struct {
	Code     int
	Keywords []string
}

// Compiled is the ready-to-use form of Rules shared by the sync core.
type Compiled struct {
	Rules

	TaskNumber       []*regexp.Regexp
	Transit          *regexp.Regexp
	AddressSuffix    *regexp.Regexp
	Fields           []CompiledField
	DescriptionTotal []*regexp.Regexp
	ChecklistTotal   *regexp.Regexp
	LabelCode        []*regexp.Regexp
	Keywords         []CompiledKeywords

	userOwned   map[internal.Column]bool
	syncOwned   map[internal.Column]bool
	conditional map[internal.Column]bool
	statusFold  map[string]string
}

func (r Rules) Compile() (*Compiled, error) {
	c := &Compiled{Rules: r}

	var err error
	if c.TaskNumber, err = compileAll("task_number_patterns", r.TaskNumberPatterns); err != nil {
		return nil, err
	}
	if c.Transit, err = compileOne("transit_marker", r.TransitMarker); err != nil {
		return nil, err
	}
	if c.AddressSuffix, err = compileOne("address_suffix_pattern", r.AddressSuffixPattern); err != nil {
		return nil, err
	}
	if c.DescriptionTotal, err = compileAll("description_total_patterns", r.DescriptionTotalPatterns); err != nil {
		return nil, err
	}
	if c.ChecklistTotal, err = compileOne("checklist_total_pattern", r.ChecklistTotalPattern); err != nil {
		return nil, err
	}
	if c.LabelCode, err = compileAll("label_code_patterns", r.LabelCodePatterns); err != nil {
		return nil, err
	}
	for _, f := range r.DescriptionFields {
		patterns, err := compileAll("description_fields."+string(f.Field), f.Patterns)
		if err != nil {
			return nil, err
		}
		c.Fields = append(c.Fields, CompiledField{Field: f.Field, Patterns: patterns})
	}
	for _, pk := range r.PriceKeywords {
		lowered := make([]string, 0, len(pk.Keywords))
		for _, k := range pk.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				lowered = append(lowered, k)
			}
		}
		c.Keywords = append(c.Keywords, CompiledKeywords{Code: pk.Code, Keywords: lowered})
	}

	switch r.MatchMode {
	case MatchToken, MatchSubstring:
	case "":
		c.MatchMode = MatchToken
	default:
		return nil, fmt.Errorf("unsupported match_mode: %s", r.MatchMode)
	}
	if r.LockColumn == "" {
		return nil, fmt.Errorf("lock_column is required")
	}

	c.userOwned = columnSet(r.UserOwnedColumns)
	c.syncOwned = columnSet(r.SyncOwnedColumns)
	c.conditional = columnSet(r.ConditionalColumns)
	c.statusFold = make(map[string]string, len(r.StatusLookup))
	for k, v := range r.StatusLookup {
		c.statusFold[foldStatus(k)] = v
	}
	return c, nil
}

// MustCompileDefaults is meant for tests and tools that never customise rules.
func MustCompileDefaults() *Compiled {
	c, err := DefaultRules().Compile()
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Compiled) UserOwned(col internal.Column) bool   { return c.userOwned[col] }
func (c *Compiled) SyncOwned(col internal.Column) bool   { return c.syncOwned[col] }
func (c *Compiled) Conditional(col internal.Column) bool { return c.conditional[col] }

// LookupStatus maps a list name to a status, ignoring case and surrounding space.
func (c *Compiled) LookupStatus(listName string) (string, bool) {
	v, ok := c.statusFold[foldStatus(listName)]
	return v, ok
}

func (c *Compiled) Ignored(value string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return true
	}
	for _, ignored := range c.IgnoredValues {
		if v == ignored {
			return true
		}
	}
	return false
}

func (c *Compiled) Header(col internal.Column) string {
	for _, spec := range c.Columns {
		if spec.Key == col {
			return spec.Header
		}
	}
	return string(col)
}

func compileAll(name string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", name, i, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func compileOne(name, pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, fmt.Errorf("%s is required", name)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return re, nil
}

func columnSet(cols []internal.Column) map[internal.Column]bool {
	out := make(map[internal.Column]bool, len(cols))
	for _, c := range cols {
		out[c] = true
	}
	return out
}

func foldStatus(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
