package pipeline

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"worksync/internal"
	"worksync/internal/config"
)

func fixedClock() time.Time {
	return time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)
}

func sampleRecord() internal.StructuredRecord {
	return internal.StructuredRecord{
		MainAddress:      "ул. Ленина 5",
		TaskNumber:       "12345",
		TransitAddresses: []string{"ул. Мира 1", "ул. Садовая 2"},
		Fields: map[internal.DescriptionField]string{
			internal.FieldStartDate:  "17.05.2024",
			internal.FieldContractor: "Иванов",
		},
		Description: "Описание",
		Status:      "В работе",
		District:    "Невский район",
	}
}

func samplePrice() internal.PriceResolution {
	return internal.PriceResolution{Code: 4, Description: "Транзит/Авария/VIP", TableAmount: 8600, Amount: 8600, Source: internal.PriceFromKeyword}
}

func TestMergeCreate(t *testing.T) {
	m := NewMerger(config.MustCompileDefaults(), "расценки", fixedClock)
	row, write := m.Merge(nil, sampleRecord(), samplePrice())
	if !write {
		t.Fatalf("create must write")
	}

	want := map[internal.Column]string{
		internal.ColAddress:     "ул. Ленина 5. Задание 12345",
		internal.ColServiceCode: "4",
		internal.ColService:     "Транзит/Авария/VIP",
		internal.ColStatus:      "В работе",
		internal.ColDescription: "Описание",
		internal.ColStartDate:   "17.05.2024",
		internal.ColContractor:  "Иванов",
		internal.ColTransit:     "ул. Мира 1, ул. Садовая 2",
		internal.ColDistrict:    "Невский район",
		internal.ColReportDate:  "01.06.2024 10:30",
	}
	for col, value := range want {
		if got := row.Get(col); got != value {
			t.Fatalf("%s=%q want %q", col, got, value)
		}
	}

	cost := row.Cells[internal.ColCost]
	if !strings.Contains(cost.Formula, "VLOOKUP({service_code},'расценки'!") {
		t.Fatalf("cost formula=%q", cost.Formula)
	}
	for _, col := range []internal.Column{internal.ColActNumber, internal.ColEndDate, internal.ColNote, internal.ColClosed, internal.ColInvoice, internal.ColClient} {
		if _, ok := row.Cells[col]; ok {
			t.Fatalf("%s must stay blank on create", col)
		}
	}
}

func TestMergeUpdateKeepsUserColumns(t *testing.T) {
	m := NewMerger(config.MustCompileDefaults(), "расценки", fixedClock)
	existing := internal.NewRow(7)
	existing.Set(internal.ColActNumber, "5")
	existing.Set(internal.ColEndDate, "30.05.2024")
	existing.Set(internal.ColNote, "позвонить")
	existing.Set(internal.ColAddress, "старый адрес. Задание 12345")
	existing.Set(internal.ColStatus, "Новая")
	existing.Set(internal.ColCost, "8600")
	existing.Set(internal.ColClient, "Старый клиент")

	rec := sampleRecord()
	row, write := m.Merge(&existing, rec, samplePrice())
	if !write {
		t.Fatalf("update must write")
	}
	if row.Index != 7 {
		t.Fatalf("index=%d", row.Index)
	}
	for col, value := range map[internal.Column]string{
		internal.ColActNumber: "5",
		internal.ColEndDate:   "30.05.2024",
		internal.ColNote:      "позвонить",
		internal.ColCost:      "8600",
		internal.ColClient:    "Старый клиент",
		internal.ColStatus:    "В работе",
		internal.ColAddress:   "ул. Ленина 5. Задание 12345",
	} {
		if got := row.Get(col); got != value {
			t.Fatalf("%s=%q want %q", col, got, value)
		}
	}
	if row.Cells[internal.ColCost].Formula != "" {
		t.Fatalf("cost must not be rewritten on update")
	}
	if existing.Get(internal.ColStatus) != "Новая" {
		t.Fatalf("existing row was mutated")
	}

	rec.LabelClient = "ЭТАЛОН"
	row, _ = m.Merge(&existing, rec, samplePrice())
	if got := row.Get(internal.ColClient); got != "ЭТАЛОН" {
		t.Fatalf("client=%q", got)
	}
}

func TestMergeLockedRowIsUntouched(t *testing.T) {
	m := NewMerger(config.MustCompileDefaults(), "расценки", fixedClock)
	existing := internal.NewRow(3)
	existing.Set(internal.ColClosed, "01.05.2024")
	existing.Set(internal.ColStatus, "Выполнено")

	row, write := m.Merge(&existing, sampleRecord(), samplePrice())
	if write {
		t.Fatalf("locked row must not be written")
	}
	if !reflect.DeepEqual(row, existing) {
		t.Fatalf("locked row changed: %+v", row)
	}
}

func TestMergeOverrideAmountGoesToInvoice(t *testing.T) {
	m := NewMerger(config.MustCompileDefaults(), "расценки", fixedClock)
	price := samplePrice()
	price.Amount = 14100
	price.Overridden = true

	row, _ := m.Merge(nil, sampleRecord(), price)
	if got := row.Get(internal.ColInvoice); got != "14100" {
		t.Fatalf("invoice=%q", got)
	}
}

func TestMergeIsDeterministic(t *testing.T) {
	m := NewMerger(config.MustCompileDefaults(), "расценки", fixedClock)
	existing := internal.NewRow(4)
	existing.Set(internal.ColNote, "x")

	a, _ := m.Merge(&existing, sampleRecord(), samplePrice())
	b, _ := m.Merge(&existing, sampleRecord(), samplePrice())
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("merge differs:\n%+v\n%+v", a, b)
	}
}

func TestCompositeWithoutAddress(t *testing.T) {
	m := NewMerger(config.MustCompileDefaults(), "расценки", fixedClock)
	if got := m.Composite(internal.StructuredRecord{TaskNumber: "9"}); got != "Задание 9" {
		t.Fatalf("composite=%q", got)
	}
}
