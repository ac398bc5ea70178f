package connectors

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jhillyerd/enmime"

	"worksync/internal/storage"
)

func fixedNow() time.Time {
	return time.Date(2025, 9, 15, 10, 0, 0, 0, time.UTC)
}

func testComposer(t *testing.T) *Composer {
	t.Helper()
	c, err := NewComposer("Бригада <team@example.test>", "ТСЖ <tsj@example.test>, office@example.test", fixedNow)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func sampleData() MailData {
	return MailData{
		Name:        "ул. Ленина 5 транзит ул. Мира 1, ул. Мира 3. Задание 123456",
		TaskNumber:  "123456",
		Address:     "ул. Ленина 5",
		Description: "Подрядчик: ООО Связь",
		Transit:     []string{"ул. Мира 1", "ул. Мира 3"},
	}
}

func TestComposeBuildsMultipartMessage(t *testing.T) {
	c := testComposer(t)
	msg, err := c.Compose("ТСЖ", sampleData(), Attachment{Name: "Задание_123456.xlsx", ContentType: "application/octet-stream", Data: []byte("xlsx")})
	if err != nil {
		t.Fatal(err)
	}

	if msg.Template != "тсж" || msg.TaskNumber != "123456" {
		t.Fatalf("unexpected message meta: %+v", msg)
	}
	if msg.Subject != "Обращение в ТСЖ, задание № 123456" {
		t.Fatalf("subject=%q", msg.Subject)
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(msg.Raw))
	if err != nil {
		t.Fatal(err)
	}
	if got := env.GetHeader("Subject"); got != msg.Subject {
		t.Fatalf("decoded subject=%q", got)
	}
	if !strings.Contains(env.GetHeader("To"), "office@example.test") {
		t.Fatalf("to=%q", env.GetHeader("To"))
	}
	if !strings.Contains(env.HTML, "<li>ул. Мира 3</li>") {
		t.Fatalf("html missing transit list: %s", env.HTML)
	}
	if !strings.Contains(env.Text, "- ул. Мира 1") || !strings.Contains(env.Text, "ул. Ленина 5") {
		t.Fatalf("text alternative=%q", env.Text)
	}
	if len(env.Attachments) != 1 || env.Attachments[0].FileName != "Задание_123456.xlsx" {
		t.Fatalf("attachments=%d", len(env.Attachments))
	}
}

func TestComposeUnknownTemplate(t *testing.T) {
	c := testComposer(t)
	if _, err := c.Compose("поздравление", sampleData()); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestNewComposerRejectsBadAddress(t *testing.T) {
	if _, err := NewComposer("", "a@example.test", nil); err == nil {
		t.Fatal("expected error for empty sender")
	}
}

func TestPlainText(t *testing.T) {
	text, err := PlainText("<html><body><h1>Заголовок</h1><p>  первая\n строка </p><ul><li>пункт</li></ul><p></p></body></html>")
	if err != nil {
		t.Fatal(err)
	}
	if text != "Заголовок\nпервая строка\n- пункт\n" {
		t.Fatalf("text=%q", text)
	}
}

func TestTemplateNamesSorted(t *testing.T) {
	names := TemplateNames()
	if len(names) != len(Templates) {
		t.Fatalf("names=%v", names)
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Fatalf("not sorted: %v", names)
		}
	}
}

func TestOutboxStoreDeduplicates(t *testing.T) {
	dir := t.TempDir()
	store := NewOutboxStore(dir)

	hash1, path1, err := store.Store([]byte("raw message"))
	if err != nil {
		t.Fatal(err)
	}
	hash2, path2, err := store.Store([]byte("raw message"))
	if err != nil {
		t.Fatal(err)
	}
	if hash1 != hash2 || path1 != path2 {
		t.Fatalf("expected same file, got %s and %s", path1, path2)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || filepath.Ext(entries[0].Name()) != ".eml" {
		t.Fatalf("entries=%v", entries)
	}
}

type failingDelivery struct{}

func (failingDelivery) Provider() string { return "broken" }

func (failingDelivery) Deliver(context.Context, Message) (string, error) {
	return "", os.ErrPermission
}

func TestSendServiceRecordsDelivery(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	msg, err := testComposer(t).Compose("согласование", sampleData())
	if err != nil {
		t.Fatal(err)
	}

	outbox := filepath.Join(t.TempDir(), "mail")
	svc := NewSendService(db, outbox, nil)
	res, err := svc.Send(context.Background(), msg)
	if err != nil {
		t.Fatal(err)
	}
	if res.Provider != "file" || res.Ref != res.Hash+".eml" {
		t.Fatalf("result=%+v", res)
	}

	mails, err := db.ListMails("123456")
	if err != nil {
		t.Fatal(err)
	}
	if len(mails) != 1 || mails[0].Template != "согласование" || mails[0].Subject != msg.Subject {
		t.Fatalf("mails=%+v", mails)
	}
}

func TestSendServiceDeliveryError(t *testing.T) {
	msg, err := testComposer(t).Compose("ук", sampleData())
	if err != nil {
		t.Fatal(err)
	}
	outbox := t.TempDir()
	svc := NewSendService(nil, outbox, failingDelivery{})
	if _, err := svc.Send(context.Background(), msg); err == nil {
		t.Fatal("expected delivery error")
	}
	entries, _ := os.ReadDir(outbox)
	if len(entries) != 1 {
		t.Fatalf("outbox copy should be kept, entries=%d", len(entries))
	}
}
