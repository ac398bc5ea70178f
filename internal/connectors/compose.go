package connectors

import (
	"bytes"
	"fmt"
	"html/template"
	"net/mail"
	"sort"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/jhillyerd/enmime"
)

// Template is a named letter kind: its subject line and opening paragraph.
type Template struct {
	Name    string
	Subject string
	Intro   string
}

var Templates = map[string]Template{
	"согласование": {
		Name:    "согласование",
		Subject: "Согласование работ по заданию № {{.TaskNumber}}",
		Intro:   "Просим согласовать проведение работ по адресу {{.Address}}.",
	},
	"обследование": {
		Name:    "обследование",
		Subject: "Обследование по заданию № {{.TaskNumber}}",
		Intro:   "Просим обеспечить доступ для обследования по адресу {{.Address}}.",
	},
	"транзитные": {
		Name:    "транзитные",
		Subject: "Транзитные адреса по заданию № {{.TaskNumber}}",
		Intro:   "Сообщаем о проведении работ с прокладкой по транзитным адресам.",
	},
	"подключение": {
		Name:    "подключение",
		Subject: "Подключение по заданию № {{.TaskNumber}}",
		Intro:   "Просим согласовать подключение объекта по адресу {{.Address}}.",
	},
	"жилкомсервис": {
		Name:    "жилкомсервис",
		Subject: "Обращение в Жилкомсервис, задание № {{.TaskNumber}}",
		Intro:   "Просим предоставить доступ к общедомовому имуществу по адресу {{.Address}}.",
	},
	"тсж": {
		Name:    "тсж",
		Subject: "Обращение в ТСЖ, задание № {{.TaskNumber}}",
		Intro:   "Просим предоставить доступ к общедомовому имуществу по адресу {{.Address}}.",
	},
	"ук": {
		Name:    "ук",
		Subject: "Обращение в управляющую компанию, задание № {{.TaskNumber}}",
		Intro:   "Просим предоставить доступ к общедомовому имуществу по адресу {{.Address}}.",
	},
	"администрация": {
		Name:    "администрация",
		Subject: "Обращение в администрацию района, задание № {{.TaskNumber}}",
		Intro:   "Просим согласовать производство работ по адресу {{.Address}}.",
	},
	"договор": {
		Name:    "договор",
		Subject: "Договор на выполнение работ, задание № {{.TaskNumber}}",
		Intro:   "Направляем документы по договору на выполнение работ по адресу {{.Address}}.",
	},
}

func TemplateNames() []string {
	names := make([]string, 0, len(Templates))
	for name := range Templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MailData is what a letter is filled from.
type MailData struct {
	Name        string
	TaskNumber  string
	Address     string
	Description string
	Transit     []string
}

const pageTemplate = `<!DOCTYPE html>
<html lang="ru">
<head><meta charset="utf-8"><title>{{.Subject}}</title></head>
<body>
<h1>{{.Subject}}</h1>
<p>{{.Intro}}</p>
<p>Задание: {{.Data.Name}}</p>
{{- if .Data.Transit}}
<ul>
{{- range .Data.Transit}}
<li>{{.}}</li>
{{- end}}
</ul>
{{- end}}
{{- if .Data.Description}}
<p>{{.Data.Description}}</p>
{{- end}}
<p>С уважением.</p>
</body>
</html>
`

type Composer struct {
	from *mail.Address
	to   []*mail.Address
	page *template.Template
	now  func() time.Time
}

func NewComposer(from, to string, now func() time.Time) (*Composer, error) {
	sender, err := mail.ParseAddress(from)
	if err != nil {
		return nil, fmt.Errorf("parse MAIL_FROM: %w", err)
	}
	recipients, err := mail.ParseAddressList(to)
	if err != nil {
		return nil, fmt.Errorf("parse MAIL_TO: %w", err)
	}
	page, err := template.New("mail").Parse(pageTemplate)
	if err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &Composer{from: sender, to: recipients, page: page, now: now}, nil
}

// Compose renders the named template for data and encodes a multipart message with
// an HTML body, its plain text alternative and the attachments.
func (c *Composer) Compose(name string, data MailData, attachments ...Attachment) (Message, error) {
	tpl, ok := Templates[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Message{}, fmt.Errorf("unknown mail template %q (known: %s)", name, strings.Join(TemplateNames(), ", "))
	}

	subject, err := renderText(tpl.Subject, data)
	if err != nil {
		return Message{}, err
	}
	intro, err := renderText(tpl.Intro, data)
	if err != nil {
		return Message{}, err
	}

	var page bytes.Buffer
	err = c.page.Execute(&page, struct {
		Subject string
		Intro   string
		Data    MailData
	}{subject, intro, data})
	if err != nil {
		return Message{}, err
	}

	text, err := PlainText(page.String())
	if err != nil {
		return Message{}, err
	}

	builder := enmime.Builder().
		From(c.from.Name, c.from.Address).
		Subject(subject).
		Date(c.now()).
		Text([]byte(text)).
		HTML(page.Bytes())
	for _, rcpt := range c.to {
		builder = builder.To(rcpt.Name, rcpt.Address)
	}
	for _, a := range attachments {
		builder = builder.AddAttachment(a.Data, a.ContentType, a.Name)
	}

	root, err := builder.Build()
	if err != nil {
		return Message{}, fmt.Errorf("build mail: %w", err)
	}
	var raw bytes.Buffer
	if err := root.Encode(&raw); err != nil {
		return Message{}, fmt.Errorf("encode mail: %w", err)
	}

	return Message{
		TaskNumber: data.TaskNumber,
		Template:   tpl.Name,
		Subject:    subject,
		HTML:       page.String(),
		Text:       text,
		Raw:        raw.Bytes(),
	}, nil
}

// PlainText flattens an HTML letter into one line per heading, paragraph or list item.
func PlainText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	var lines []string
	doc.Find("body h1, body p, body li").Each(func(_ int, s *goquery.Selection) {
		line := strings.Join(strings.Fields(s.Text()), " ")
		if line == "" {
			return
		}
		if goquery.NodeName(s) == "li" {
			line = "- " + line
		}
		lines = append(lines, line)
	})
	return strings.Join(lines, "\n") + "\n", nil
}

func renderText(text string, data MailData) (string, error) {
	tpl, err := texttemplate.New("line").Parse(text)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
