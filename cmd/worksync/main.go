package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"worksync/internal/config"
	"worksync/internal/connectors"
	"worksync/internal/documents"
	"worksync/internal/htmlopt"
	"worksync/internal/listener"
	"worksync/internal/logging"
	"worksync/internal/storage"
	"worksync/internal/trello"
	"worksync/internal/util"
	"worksync/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	must(err)
	logging.Setup(cfg)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	if cmd == "html:optimize" {
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		in := fs.String("in", "", "input html file")
		out := fs.String("out", "", "output html file (default <name>_optimized.html)")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*in) == "" {
			must(fmt.Errorf("--in is required"))
		}
		path, stats, err := htmlopt.OptimizeFile(*in, *out)
		must(err)
		fmt.Printf("scripts=%d defer=%d async=%d skipped_critical=%d skipped_already=%d improvement=%.0f%%\n",
			stats.Total, stats.DeferAdded, stats.AsyncAdded, stats.SkippedCritical, stats.SkippedAlready, stats.Improvement())
		fmt.Printf("optimized html written to %s (backup %s.backup)\n", path, *in)
		return
	}

	rulesDoc, err := config.LoadRules(cfg.RulesFile)
	must(err)
	rules, err := rulesDoc.Compile()
	must(err)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc := workflow.New(cfg, db, rules)

	switch cmd {
	case "sync":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		noCloud := fs.Bool("no-cloud", false, "skip workbook download/upload")
		_ = fs.Parse(os.Args[2:])
		report, err := svc.Sync(ctx, workflow.SyncOptions{Download: !*noCloud, Upload: !*noCloud})
		must(err)
		printSync(report)
	case "sync:local":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		cards := fs.String("cards", "", "board export or card array json")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*cards) == "" {
			must(fmt.Errorf("--cards is required"))
		}
		source := trello.FileSource{Path: *cards, IncludeArchived: cfg.TrelloIncludeArchived}
		report, err := svc.Sync(ctx, workflow.SyncOptions{Source: source})
		must(err)
		printSync(report)
	case "prices":
		table, err := svc.Prices(ctx)
		must(err)
		for _, e := range table.Entries() {
			fmt.Printf("%d\t%s\t%s\n", e.Code, util.FormatMoney(e.Amount), e.Description)
		}
	case "docs":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		task := fs.String("task", "", "task number")
		kind := fs.String("kind", "order", "order|report|act")
		format := fs.String("format", "xlsx", "xlsx|docx")
		out := fs.String("out", "", "output directory")
		_ = fs.Parse(os.Args[2:])
		k, err := documents.ParseKind(*kind)
		must(err)
		if k != documents.KindAct && strings.TrimSpace(*task) == "" {
			must(fmt.Errorf("--task is required"))
		}
		res, err := svc.Generate(ctx, workflow.DocRequest{Kind: k, Task: *task, Format: *format, OutDir: *out})
		must(err)
		printDocument(res)
	case "act":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		number := fs.String("number", "", "act number (default: first in the sheet)")
		format := fs.String("format", "xlsx", "xlsx|docx")
		out := fs.String("out", "", "output directory")
		_ = fs.Parse(os.Args[2:])
		res, err := svc.Generate(ctx, workflow.DocRequest{Kind: documents.KindAct, Task: *number, Format: *format, OutDir: *out})
		must(err)
		printDocument(res)
	case "report:month":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		month := fs.Int("month", int(time.Now().Month()), "month 1-12")
		year := fs.Int("year", time.Now().Year(), "year")
		format := fs.String("format", "xlsx", "xlsx|docx")
		out := fs.String("out", "", "output directory")
		_ = fs.Parse(os.Args[2:])
		res, err := svc.Generate(ctx, workflow.DocRequest{Kind: documents.KindMonthly, Month: *month, Year: *year, Format: *format, OutDir: *out})
		must(err)
		printDocument(res)
	case "cloud:download":
		must(svc.CloudDownload(ctx))
		fmt.Printf("downloaded %s to %s\n", cfg.CloudRemoteName, cfg.WorkbookPath)
	case "cloud:upload":
		must(svc.CloudUpload(ctx))
		fmt.Printf("uploaded %s as %s\n", cfg.WorkbookPath, cfg.CloudRemoteName)
	case "push:trello":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		dryRun := fs.Bool("dry-run", false, "only print the cards that would be created")
		list := fs.String("list", "", "list for rows whose status names no list")
		_ = fs.Parse(os.Args[2:])
		res, err := svc.PushRows(ctx, workflow.PushOptions{DryRun: *dryRun, DefaultList: *list})
		must(err)
		for _, p := range res.Planned {
			fmt.Printf("would create: %s\n", p)
		}
		for _, f := range res.Failures {
			fmt.Printf("failed: %v\n", f)
		}
		fmt.Printf("push done created=%d present=%d skipped=%d failed=%d\n", res.Created, res.Present, res.Skipped, len(res.Failures))
	case "mail":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		task := fs.String("task", "", "task number")
		template := fs.String("template", "согласование", strings.Join(connectors.TemplateNames(), "|"))
		attach := fs.Bool("attach", false, "attach the work order")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*task) == "" {
			must(fmt.Errorf("--task is required"))
		}
		res, err := svc.Mail(ctx, workflow.MailRequest{Task: *task, Template: *template, AttachOrder: *attach})
		must(err)
		fmt.Printf("mail delivered provider=%s ref=%s copy=%s\n", res.Provider, res.Ref, res.RawPath)
	case "listen":
		interval := time.Duration(cfg.ListenerIntervalSec) * time.Second
		must(listener.NewService(svc, interval, cfg.ListenerUpload).Run(ctx))
	case "history:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		task := fs.String("task", "", "task number")
		kind := fs.String("kind", "", "document kind")
		from := fs.String("from", "", "created at or after (RFC3339)")
		to := fs.String("to", "", "created at or before (RFC3339)")
		runs := fs.Int("runs", 0, "also list the last N sync runs")
		_ = fs.Parse(os.Args[2:])
		docs, err := db.ListDocuments(storage.DocumentFilter{TaskNumber: *task, DocType: *kind, From: *from, To: *to})
		must(err)
		for _, d := range docs {
			fmt.Printf("%d\t%s\t%s\t%s\t%s\t%s\n", d.ID, d.CreatedAt, d.DocType, d.TaskNumber, util.FormatMoney(d.TotalAmount), d.FilePath)
		}
		if *runs > 0 {
			records, err := db.ListRuns(*runs)
			must(err)
			for _, r := range records {
				fmt.Printf("run %s\t%s\t%s\t%v\t%s\n", r.CreatedAt, r.Kind, r.TraceID, r.Counts, r.Error)
			}
		}
	case "history:stats":
		stats, err := db.Statistics()
		must(err)
		kinds := make([]string, 0, len(stats.ByType))
		for k := range stats.ByType {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Printf("type %s: %d\n", k, stats.ByType[k])
		}
		for _, m := range stats.ByMonth {
			fmt.Printf("month %s: %s\n", m.Month, util.FormatMoney(m.Total))
		}
		for _, s := range stats.Services {
			fmt.Printf("service %d %s: count=%d total=%s\n", s.Code, s.Description, s.Count, util.FormatMoney(s.Total))
		}
	case "history:search":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		q := fs.String("q", "", "text to look for")
		_ = fs.Parse(os.Args[2:])
		docs, err := db.SearchDocuments(*q)
		must(err)
		for _, d := range docs {
			fmt.Printf("%d\t%s\t%s\t%s\n", d.ID, d.DocType, d.TaskNumber, d.FilePath)
		}
	case "history:delete":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.Int64("id", 0, "document id")
		_ = fs.Parse(os.Args[2:])
		deleted, err := db.DeleteDocument(*id)
		must(err)
		if !deleted {
			must(fmt.Errorf("document %d not found", *id))
		}
		fmt.Printf("deleted document %d\n", *id)
	case "history:export":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		must(db.ExportXLSX(*out))
		fmt.Printf("history exported to %s\n", *out)
	case "history:backup":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "backup file path")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*out) == "" {
			must(fmt.Errorf("--out is required"))
		}
		must(db.Backup(*out))
		fmt.Printf("history backed up to %s\n", *out)
	default:
		usage()
		os.Exit(1)
	}
}

func printSync(r workflow.SyncReport) {
	for _, e := range r.Result.Errors {
		fmt.Printf("card error: %v\n", e)
	}
	fmt.Printf("sync done trace=%s created=%d updated=%d skipped=%d locked=%d errored=%d written=%d\n",
		r.TraceID, r.Result.Created, r.Result.Updated, r.Result.Skipped, r.Result.Locked, r.Result.Errored, r.Written)
}

func printDocument(res workflow.DocResult) {
	doc := res.Document
	fmt.Printf("%s: %d lines, saved to %s (history id %d)\n", doc.Title(), len(doc.Lines), res.Path, res.RecordID)
	if doc.Priced() {
		fmt.Printf("total: %s\n", doc.TotalWords)
	}
}

func usage() {
	fmt.Println("usage: worksync <command>")
	fmt.Println("commands:")
	fmt.Println("  sync [--no-cloud]")
	fmt.Println("  sync:local --cards=board.json")
	fmt.Println("  prices")
	fmt.Println("  docs --task=N --kind=order|report|act [--format=xlsx|docx] [--out=dir]")
	fmt.Println("  act [--number=N] [--format=xlsx|docx]")
	fmt.Println("  report:month --month=9 --year=2025 [--format=xlsx|docx]")
	fmt.Println("  cloud:download | cloud:upload")
	fmt.Println("  push:trello [--dry-run] [--list=name]")
	fmt.Println("  mail --task=N --template=name [--attach]")
	fmt.Println("  listen")
	fmt.Println("  history:list [--task=N] [--kind=act] [--from=..] [--to=..] [--runs=10]")
	fmt.Println("  history:stats | history:search --q=text | history:delete --id=1")
	fmt.Println("  history:export --out=history.xlsx | history:backup --out=history.db")
	fmt.Println("  html:optimize --in=index.html [--out=...]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
