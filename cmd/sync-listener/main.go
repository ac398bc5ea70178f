package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"worksync/internal/config"
	"worksync/internal/listener"
	"worksync/internal/logging"
	"worksync/internal/storage"
	"worksync/internal/workflow"
)

func main() {
	cfg, err := config.Load()
	must(err)
	logging.Setup(cfg)

	rulesDoc, err := config.LoadRules(cfg.RulesFile)
	must(err)
	rules, err := rulesDoc.Compile()
	must(err)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	svc := listener.NewService(workflow.New(cfg, db, rules), time.Duration(cfg.ListenerIntervalSec)*time.Second, cfg.ListenerUpload)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	must(svc.Run(ctx))
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
