package workflow

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"worksync/internal"
	"worksync/internal/cloud"
	"worksync/internal/config"
	"worksync/internal/documents"
	"worksync/internal/storage"
	"worksync/internal/trello"
)

func fixedNow() time.Time {
	return time.Date(2025, 9, 20, 12, 30, 0, 0, time.UTC)
}

type fakeBoard struct {
	cards    []internal.RawCard
	lists    []trello.List
	created  []trello.Card
	fetchErr error
}

func (b *fakeBoard) FetchCards(context.Context) ([]internal.RawCard, error) {
	return b.cards, b.fetchErr
}

func (b *fakeBoard) GetLists(context.Context) ([]trello.List, error) {
	return b.lists, nil
}

func (b *fakeBoard) CreateCard(_ context.Context, listID, name, desc string, _ []string) (trello.Card, error) {
	card := trello.Card{ID: fmt.Sprintf("new-%d", len(b.created)+1), IDList: listID, Name: name, Desc: desc}
	b.created = append(b.created, card)
	return card, nil
}

type memStore struct {
	rows   []internal.Row
	prices internal.PriceTable
	saves  int
}

func (m *memStore) ReadRows(context.Context) ([]internal.Row, error) {
	out := make([]internal.Row, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r.Clone())
	}
	return out, nil
}

func (m *memStore) Apply(_ context.Context, changes []internal.RowChange) (int, error) {
	written := 0
	for _, c := range changes {
		switch c.Kind {
		case internal.ChangeCreated:
			m.rows = append(m.rows, c.After.Clone())
			written++
		case internal.ChangeUpdated:
			for i := range m.rows {
				if m.rows[i].Index == c.After.Index {
					m.rows[i] = c.After.Clone()
				}
			}
			written++
		}
	}
	return written, nil
}

func (m *memStore) PriceTable(context.Context, string) (internal.PriceTable, error) {
	if m.prices.Len() == 0 {
		return internal.DefaultPriceTable(), nil
	}
	return m.prices, nil
}

func (m *memStore) Save(context.Context) error {
	m.saves++
	return nil
}

func (m *memStore) Close() error { return nil }

func row(index int, values map[internal.Column]string) internal.Row {
	r := internal.NewRow(index)
	for col, v := range values {
		r.Set(col, v)
	}
	return r
}

func openDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testConfig(t *testing.T) config.Config {
	dir := t.TempDir()
	return config.Config{
		OutputDir:       filepath.Join(dir, "out"),
		WorkbookPath:    filepath.Join(dir, "data", "works.xlsx"),
		DataSheet:       "Работы",
		PriceSheet:      "расценки",
		RowStore:        "xlsx",
		CloudProvider:   "none",
		CloudRemoteName: "works.xlsx",
		MailProvider:    "file",
		MailFrom:        "Бригада <team@example.test>",
		MailTo:          "tsj@example.test",
		MailOutboxDir:   filepath.Join(dir, "mail"),
	}
}

func storeOf(m *memStore) Option {
	return WithRowStore(func(context.Context) (RowStore, error) { return m, nil })
}

func TestSyncWorkbookThroughLocalCloud(t *testing.T) {
	cfg := testConfig(t)
	db := openDB(t)
	remote := t.TempDir()
	board := &fakeBoard{cards: []internal.RawCard{
		{ID: "a", Title: "ул. Ленина 1. Задание 100", ListName: "1-й этап. Начало работ."},
		{ID: "b", Title: "ул. Мира 2. Задание 200", ListName: "4-й этап. Работа сделана"},
	}}
	svc := New(cfg, db, config.MustCompileDefaults(),
		WithClock(fixedNow),
		WithBoard(board),
		WithFileStore(cloud.NewLocalStore(remote)),
	)

	first, err := svc.Sync(context.Background(), SyncOptions{Download: true, Upload: true})
	if err != nil {
		t.Fatal(err)
	}
	if first.Result.Created != 2 || first.Written != 2 {
		t.Fatalf("first run counts=%v written=%d", first.Result.Counts(), first.Written)
	}
	if _, err := os.Stat(filepath.Join(remote, "works.xlsx")); err != nil {
		t.Fatalf("workbook not uploaded: %v", err)
	}

	second, err := svc.Sync(context.Background(), SyncOptions{Download: true})
	if err != nil {
		t.Fatal(err)
	}
	if second.Result.Created != 0 || second.Result.Updated != 2 {
		t.Fatalf("second run counts=%v", second.Result.Counts())
	}

	runs, err := db.ListRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].Kind != "sync" || runs[0].Counts["updated"] != 2 || runs[0].Error != "" {
		t.Fatalf("runs=%+v", runs)
	}
	last, err := db.GetMetadata("last_sync")
	if err != nil || last == nil {
		t.Fatalf("last_sync metadata missing: %v", err)
	}
}

func TestSyncFetchFailureIsRecorded(t *testing.T) {
	db := openDB(t)
	store := &memStore{}
	board := &fakeBoard{fetchErr: errors.New("board unavailable")}
	svc := New(testConfig(t), db, config.MustCompileDefaults(), storeOf(store), WithBoard(board), WithFileStore(nil))

	if _, err := svc.Sync(context.Background(), SyncOptions{}); err == nil {
		t.Fatal("expected error")
	}
	if store.saves != 0 {
		t.Fatal("store must not be saved after a failed fetch")
	}
	runs, err := db.ListRuns(1)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || !strings.Contains(runs[0].Error, "board unavailable") {
		t.Fatalf("runs=%+v", runs)
	}
}

func TestSyncUsesOverrideSource(t *testing.T) {
	store := &memStore{}
	board := &fakeBoard{fetchErr: errors.New("must not be called")}
	source := &fakeBoard{cards: []internal.RawCard{{ID: "x", Title: "ул. Садовая 3. Задание 300"}}}
	svc := New(testConfig(t), nil, config.MustCompileDefaults(), storeOf(store), WithBoard(board), WithFileStore(nil), WithClock(fixedNow))

	report, err := svc.Sync(context.Background(), SyncOptions{Source: source})
	if err != nil {
		t.Fatal(err)
	}
	if report.Result.Created != 1 || len(store.rows) != 1 || store.saves != 1 {
		t.Fatalf("counts=%v rows=%d saves=%d", report.Result.Counts(), len(store.rows), store.saves)
	}
	if got := store.rows[0].Get(internal.ColReportDate); got != "20.09.2025 12:30" {
		t.Fatalf("report date=%q", got)
	}
}

func pushFixture() (*memStore, *fakeBoard) {
	store := &memStore{rows: []internal.Row{
		row(2, map[internal.Column]string{internal.ColAddress: "ул. Ленина 1. Задание 100", internal.ColStatus: "В работе"}),
		row(3, map[internal.Column]string{
			internal.ColAddress:    "ул. Мира 2. Задание 200",
			internal.ColStatus:     "Выполнено",
			internal.ColStartDate:  "01.09.2025",
			internal.ColContractor: "ООО Связь",
		}),
		row(4, map[internal.Column]string{internal.ColAddress: "ул. Садовая 3. Задание 300", internal.ColClosed: "да"}),
		row(5, map[internal.Column]string{internal.ColNote: "без адреса"}),
	}}
	board := &fakeBoard{
		cards: []internal.RawCard{{ID: "a", Title: "ул. Ленина 1. Задание 100"}},
		lists: []trello.List{
			{ID: "l1", Name: "1-й этап. Начало работ."},
			{ID: "l4", Name: "4-й этап. Работа сделана"},
		},
	}
	return store, board
}

func TestPushRowsCreatesMissingCards(t *testing.T) {
	store, board := pushFixture()
	svc := New(testConfig(t), nil, config.MustCompileDefaults(), storeOf(store), WithBoard(board))

	result, err := svc.PushRows(context.Background(), PushOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Created != 1 || result.Present != 1 || result.Skipped != 2 || len(result.Failures) != 0 {
		t.Fatalf("result=%+v", result)
	}
	card := board.created[0]
	if card.IDList != "l4" || card.Name != "ул. Мира 2. Задание 200" {
		t.Fatalf("card=%+v", card)
	}
	if !strings.Contains(card.Desc, "Начало работ: 01.09.2025") || !strings.Contains(card.Desc, "Подрядчик: ООО Связь") {
		t.Fatalf("desc=%q", card.Desc)
	}
}

func TestPushRowsDryRun(t *testing.T) {
	store, board := pushFixture()
	svc := New(testConfig(t), nil, config.MustCompileDefaults(), storeOf(store), WithBoard(board))

	result, err := svc.PushRows(context.Background(), PushOptions{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(board.created) != 0 || len(result.Planned) != 1 || result.Planned[0] != "4-й этап. Работа сделана: ул. Мира 2. Задание 200" {
		t.Fatalf("planned=%v created=%d", result.Planned, len(board.created))
	}
}

func TestPushRowsFallbackList(t *testing.T) {
	store := &memStore{rows: []internal.Row{
		row(2, map[internal.Column]string{internal.ColAddress: "ул. Лесная 9. Задание 900", internal.ColStatus: "Неизвестно"}),
	}}
	board := &fakeBoard{lists: []trello.List{{ID: "l1", Name: "1-й этап. Начало работ."}}}
	svc := New(testConfig(t), nil, config.MustCompileDefaults(), storeOf(store), WithBoard(board))

	result, err := svc.PushRows(context.Background(), PushOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if result.Created != 0 || result.Skipped != 1 {
		t.Fatalf("result=%+v", result)
	}

	result, err = svc.PushRows(context.Background(), PushOptions{DefaultList: "1-й этап. Начало работ."})
	if err != nil {
		t.Fatal(err)
	}
	if result.Created != 1 || board.created[0].IDList != "l1" {
		t.Fatalf("result=%+v created=%+v", result, board.created)
	}
}

func actRows() []internal.Row {
	return []internal.Row{
		row(2, map[internal.Column]string{
			internal.ColActNumber:   "01-1",
			internal.ColAddress:     "ул. Ленина 1. Задание 100",
			internal.ColStatus:      "Выполнено",
			internal.ColStartDate:   "01.09.2025",
			internal.ColEndDate:     "03.09.2025",
			internal.ColServiceCode: "1",
			internal.ColInvoice:     "1500",
		}),
		row(3, map[internal.Column]string{
			internal.ColActNumber:   "1",
			internal.ColAddress:     "ул. Мира 2. Задание 200",
			internal.ColStatus:      "Выполнено",
			internal.ColStartDate:   "02.09.2025",
			internal.ColEndDate:     "05.09.2025",
			internal.ColServiceCode: "2",
		}),
		row(4, map[internal.Column]string{
			internal.ColActNumber: "1",
			internal.ColAddress:   "ул. Садовая 3. Задание 300",
			internal.ColStatus:    "В работе",
		}),
	}
}

func TestGenerateActKeepsHistory(t *testing.T) {
	db := openDB(t)
	store := &memStore{rows: actRows()}
	svc := New(testConfig(t), db, config.MustCompileDefaults(), storeOf(store), WithClock(fixedNow))

	out := t.TempDir()
	res, err := svc.Generate(context.Background(), DocRequest{Kind: documents.KindAct, Task: "1", OutDir: out})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Document.Lines) != 2 || res.Document.Total != 6750 {
		t.Fatalf("lines=%d total=%v", len(res.Document.Lines), res.Document.Total)
	}
	if filepath.Dir(res.Path) != out {
		t.Fatalf("path=%s", res.Path)
	}
	if _, err := os.Stat(res.Path); err != nil {
		t.Fatal(err)
	}

	docs, err := db.ListDocuments(storage.DocumentFilter{DocType: "act"})
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 || docs[0].ID != res.RecordID || docs[0].TotalAmount != 6750 || len(docs[0].Services) != 2 {
		t.Fatalf("docs=%+v", docs)
	}
}

func TestGenerateUnknownTask(t *testing.T) {
	store := &memStore{rows: actRows()}
	svc := New(testConfig(t), nil, config.MustCompileDefaults(), storeOf(store), WithClock(fixedNow))

	_, err := svc.Generate(context.Background(), DocRequest{Kind: documents.KindOrder, Task: "999", OutDir: t.TempDir()})
	if !errors.Is(err, documents.ErrNoRows) {
		t.Fatalf("err=%v", err)
	}
	_, err = svc.Generate(context.Background(), DocRequest{Kind: documents.KindOrder, Task: "100", Format: "pdf", OutDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestGenerateMonthlyDefaultsToCurrentMonth(t *testing.T) {
	store := &memStore{rows: actRows()}
	svc := New(testConfig(t), nil, config.MustCompileDefaults(), storeOf(store), WithClock(fixedNow))

	res, err := svc.Generate(context.Background(), DocRequest{Kind: documents.KindMonthly, OutDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	if res.Document.Number != "09.2025" || len(res.Document.Lines) != 2 {
		t.Fatalf("number=%s lines=%d", res.Document.Number, len(res.Document.Lines))
	}
}

func TestMailDeliversToOutbox(t *testing.T) {
	db := openDB(t)
	cfg := testConfig(t)
	store := &memStore{rows: []internal.Row{
		row(2, map[internal.Column]string{
			internal.ColAddress:     "ул. Ленина 1. Задание 100",
			internal.ColTransit:     "ул. Мира 1, ул. Мира 3",
			internal.ColServiceCode: "4",
		}),
	}}
	svc := New(cfg, db, config.MustCompileDefaults(), storeOf(store), WithClock(fixedNow))

	res, err := svc.Mail(context.Background(), MailRequest{Task: "100", Template: "транзитные", AttachOrder: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.Provider != "file" || filepath.Dir(res.RawPath) != cfg.MailOutboxDir {
		t.Fatalf("result=%+v", res)
	}
	raw, err := os.ReadFile(res.RawPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "Content-Disposition: attachment") {
		t.Fatal("work order attachment missing")
	}

	mails, err := db.ListMails("100")
	if err != nil {
		t.Fatal(err)
	}
	if len(mails) != 1 || mails[0].Template != "транзитные" {
		t.Fatalf("mails=%+v", mails)
	}
}

func TestMailRequiresAddresses(t *testing.T) {
	cfg := testConfig(t)
	cfg.MailFrom = ""
	svc := New(cfg, nil, config.MustCompileDefaults(), storeOf(&memStore{}))
	if _, err := svc.Mail(context.Background(), MailRequest{Task: "100", Template: "тсж"}); err == nil {
		t.Fatal("expected error without MAIL_FROM")
	}
}

func TestCardDescription(t *testing.T) {
	r := row(2, map[internal.Column]string{
		internal.ColStartDate:   "01.09.2025",
		internal.ColClient:      "ТСЖ Мир",
		internal.ColInvoice:     "1500",
		internal.ColDescription: "Проложить кабель",
	})
	want := "Начало работ: 01.09.2025\nКлиент: ТСЖ Мир\nИТОГО: 1500\n\nПроложить кабель\n"
	if got := CardDescription(r); got != want {
		t.Fatalf("got %q", got)
	}
}
