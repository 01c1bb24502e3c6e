package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	sd "github.com/coreos/go-systemd/v22/daemon"

	"stockdaily/internal/analysis"
	"stockdaily/internal/config"
	"stockdaily/internal/notify"
	"stockdaily/internal/quotes"
	"stockdaily/internal/scheduler"
	"stockdaily/internal/stocknames"
	"stockdaily/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (json or yaml)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfgPath); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgPath string) error {
	mgr := config.NewManager(cfgPath, logx.NewConsole("INFO"))
	cfg, err := mgr.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(loggingConfig(cfg))
	defer logSvc.Close()

	// Hot reload: logging is the only concern applied live; everything else
	// keeps the startup config until restart.
	go func() { _ = mgr.Watch(ctx) }()
	updates := mgr.Subscribe(1)
	go func() {
		for next := range updates {
			logSvc.Apply(loggingConfig(next))
			log.Info("logging config applied")
		}
	}()

	names, err := buildNames(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer names.Close()

	sender := buildSender(cfg, log)
	qc := quotes.NewClient(cfg.Analysis.QuoteURL, cfg.Analysis.QuoteRatePerSec, log)

	timeout, err := config.ParseDurationOrDefault("analysis.timeout", cfg.Analysis.Timeout, 10*time.Minute)
	if err != nil {
		return err
	}
	daily := analysis.NewDaily(qc, names, sender, cfg.Analysis.Codes, timeout, log)

	if !cfg.Schedule.Enabled {
		log.Info("schedule disabled; running analysis once")
		return daily.Run(ctx)
	}

	poll, err := config.ParseDurationOrDefault("schedule.poll_interval", cfg.Schedule.PollInterval, scheduler.DefaultPollInterval)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	if !cfg.StockNames.RefreshSpec.IsZero() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			refresh := func(ctx context.Context) error {
				added, err := names.Refresh(ctx)
				if err != nil {
					return err
				}
				if len(added) > 0 {
					log.Info("new listings detected", logx.Any("codes", added))
				}
				return nil
			}
			jobLog := log.With(logx.String("job", "name-refresh"))
			if _, err := scheduler.Run(ctx, refresh, cfg.StockNames.RefreshSpec, false, jobLog); err != nil {
				jobLog.Error("refresh scheduler failed", logx.Err(err))
			}
		}()
	}

	opts := []scheduler.Option{scheduler.WithPollInterval(poll)}
	if interval, err := sd.SdWatchdogEnabled(false); err == nil && interval > 0 {
		if interval/2 < poll {
			log.Warn("watchdog interval shorter than twice the poll interval",
				logx.Duration("watchdog", interval), logx.Duration("poll", poll))
		}
		log.Info("systemd watchdog enabled", logx.Duration("interval", interval))
		opts = append(opts, scheduler.WithTickHook(func(time.Time) {
			_, _ = sd.SdNotify(false, sd.SdNotifyWatchdog)
		}))
	}
	_, _ = sd.SdNotify(false, sd.SdNotifyReady)

	jobLog := log.With(logx.String("job", "daily-analysis"))
	_, err = scheduler.Run(ctx, daily.Run, cfg.Schedule.Spec, cfg.Schedule.RunImmediately, jobLog, opts...)
	wg.Wait()
	_, _ = sd.SdNotify(false, sd.SdNotifyStopping)
	return err
}

func loggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func buildNames(ctx context.Context, cfg *config.Config, log logx.Logger) (*stocknames.Service, error) {
	opts := stocknames.Options{Log: log}
	if p := cfg.StockNames.CachePath; p != "" {
		cache, err := stocknames.OpenSQLite(p)
		if err != nil {
			return nil, fmt.Errorf("open name cache: %w", err)
		}
		opts.Cache = cache
	}
	if u := cfg.StockNames.PrimaryURL; u != "" {
		opts.Primary = &stocknames.HTTPSource{BulkURL: u, LookupURL: u}
	}
	if u := cfg.StockNames.SecondaryURL; u != "" {
		opts.Secondary = &stocknames.HTTPSource{BulkURL: u, LookupURL: u}
	}
	if cfg.StockNames.RatePerSec > 0 {
		opts.RatePerSec = cfg.StockNames.RatePerSec
	}
	timeout, err := config.ParseDurationOrDefault("stock_names.fetch_timeout", cfg.StockNames.FetchTimeout, 5*time.Second)
	if err != nil {
		return nil, err
	}
	opts.FetchTimeout = timeout

	svc := stocknames.New(opts)
	svc.Bootstrap(ctx)
	log.Info("stock names ready", logx.Int("cached", svc.Stats().Cached))
	return svc, nil
}

func buildSender(cfg *config.Config, log logx.Logger) notify.Sender {
	n := cfg.Notify
	if n == nil || !n.Enabled {
		return nil
	}
	tg, err := notify.NewTelegram(n.Token, n.ChatID, log)
	if err != nil {
		log.Warn("notifications disabled", logx.Err(err))
		return nil
	}
	return tg
}
