package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/joho/godotenv"

	"github.com/Sean-McConnachie/delayedgram/internal/config"
	"github.com/Sean-McConnachie/delayedgram/internal/dispatch"
	"github.com/Sean-McConnachie/delayedgram/internal/notify"
	"github.com/Sean-McConnachie/delayedgram/internal/publish"
	"github.com/Sean-McConnachie/delayedgram/internal/queue"
	"github.com/Sean-McConnachie/delayedgram/internal/storage"
	"github.com/Sean-McConnachie/delayedgram/pkg/logx"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		cfgPath   string
		actNew    bool
		actUpload bool
		actCron   bool
	)
	flag.StringVar(&cfgPath, "config", "./config.json", "path to config file (json or yaml)")
	flag.BoolVar(&actNew, "new", false, "create a new directory for a new upload")
	flag.BoolVar(&actUpload, "upload", false, "run one dispatch cycle: publish the next pending post if it is due")
	flag.BoolVar(&actCron, "cron", false, "run indefinitely, checking the queue on the configured interval")
	flag.Parse()

	actions := 0
	for _, b := range []bool{actNew, actUpload, actCron} {
		if b {
			actions++
		}
	}
	if actions == 0 {
		fmt.Fprintln(os.Stderr, "no action specified (use -new, -upload or -cron)")
		return 2
	}
	if actions > 1 {
		fmt.Fprintln(os.Stderr, "only one action can be specified")
		return 2
	}

	// Credentials (and anything else) from a local .env, if present.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		return 1
	}

	logSvc, log := logx.New(cfg.Logging)
	defer logSvc.Close()

	for _, dir := range []string{cfg.UnprocessedDir, cfg.ProcessedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Error("failed creating queue directory", logx.String("dir", dir), logx.Err(err))
			return 1
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch {
	case actNew:
		err = runNew(cfg)
	case actUpload:
		err = runDispatch(ctx, cfg, log, false)
	default:
		err = runDispatch(ctx, cfg, log, true)
	}
	if err != nil {
		log.Error("fatal", logx.Err(err))
		return 1
	}
	return 0
}

// runNew appends an empty record to the pending queue. The new id continues
// after the newest record across both roots, so published ids are never
// reused.
func runNew(cfg *config.Settings) error {
	published, err := queue.LoadAll(cfg.ProcessedDir)
	if err != nil {
		return err
	}
	pending, err := queue.LoadAll(cfg.UnprocessedDir)
	if err != nil {
		return err
	}

	all := append(published, pending...)
	var newest *queue.Post
	if len(all) > 0 {
		newest = &all[len(all)-1]
	}
	return queue.WriteEmpty(cfg.UnprocessedDir, newest, time.Now(), cfg.DefaultUploadTime, cfg.DefaultUploadDelta)
}

func runDispatch(ctx context.Context, cfg *config.Settings, log logx.Logger, loop bool) error {
	pub := publish.NewEnvPublisher(cfg.Uploader.RequestTimeout, cfg.Uploader.RatePerMinute, log)

	d := dispatch.New(cfg, pub, log)

	audit, err := storage.Open(storage.Config{
		Driver:      cfg.Audit.Driver,
		Path:        cfg.Audit.Path,
		BusyTimeout: cfg.Audit.BusyTimeout,
	}, log)
	if err != nil {
		return err
	}
	if audit != nil {
		defer audit.Close()
		d.Audit = audit
	}

	notifier, err := notify.New(notify.Config{
		Enabled: cfg.Telegram.Enabled,
		Token:   cfg.Telegram.Token,
		ChatID:  cfg.Telegram.ChatID,
	}, log)
	if err != nil {
		return err
	}
	d.Notify = notifier

	if !loop {
		_, err := d.RunOnce(ctx)
		return err
	}

	// Under systemd the unit can use Type=notify.
	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	defer daemon.SdNotify(false, daemon.SdNotifyStopping)

	return d.Loop(ctx)
}
