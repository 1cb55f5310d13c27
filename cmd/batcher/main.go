package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/limit-order-batcher/internal/batch"
	"github.com/aman-zulfiqar/limit-order-batcher/internal/config"
	"github.com/aman-zulfiqar/limit-order-batcher/internal/control"
	"github.com/aman-zulfiqar/limit-order-batcher/internal/journal"
	"github.com/aman-zulfiqar/limit-order-batcher/internal/jupiter"
	"github.com/aman-zulfiqar/limit-order-batcher/internal/mints"
	"github.com/aman-zulfiqar/limit-order-batcher/internal/rpc"
	"github.com/aman-zulfiqar/limit-order-batcher/internal/wallet"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func newLogger(out io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)
	return logger
}

// env bootstrap, before config reads LIMITBATCH_* variables
func loadEnv(logger *logrus.Logger, path string) {
	if path == "" {
		return
	}
	if err := godotenv.Load(path); err != nil {
		logger.Debugf("no .env file at %s, using system environment variables", path)
		return
	}
	logger.Infof("loaded .env from %s", path)
}

func run(ctx context.Context, args []string, out io.Writer) int {
	logger := newLogger(out)

	fs := flag.NewFlagSet("batcher", flag.ContinueOnError)
	fs.SetOutput(out)
	configPath := fs.String("config", config.DefaultPath, "path to the TOML config file")
	envPath := fs.String("env", ".env", "dotenv file loaded before the config (empty to skip)")
	dryRun := fs.Bool("dry-run", false, "create orders without broadcasting them")
	logLevel := fs.String("log-level", "", "override log_level (debug, info, warn, error)")
	halt := fs.Bool("halt", false, "turn the halt switch on and exit")
	resume := fs.Bool("resume", false, "turn the halt switch off and exit")
	reason := fs.String("reason", "", "reason stored with -halt")
	switches := fs.Bool("switches", false, "list the control switches and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	loadEnv(logger, *envPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Error("invalid configuration")
		return 1
	}

	level := cfg.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	if lvl, err := logrus.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.WithField("log_level", level).Warn("unknown log level, using info")
	}

	if *dryRun {
		cfg.DryRun = true
	}

	if *halt || *resume || *switches {
		return runControl(ctx, cfg, controlAction{halt: *halt, resume: *resume, reason: *reason}, logger)
	}

	rpcClient := rpc.NewClient(rpc.ClientConfig{
		BaseURL:      cfg.RPCURL,
		Timeout:      cfg.RPCTimeout,
		MaxRetries:   cfg.RPCMaxRetries,
		RetryBackoff: cfg.RPCRetryBackoff,
		RateLimit:    cfg.RPCRateLimit,
		Logger:       logger,
	})

	submitter := wallet.NewSubmitter(rpcClient, wallet.SubmitterConfig{
		Commitment: cfg.Commitment,
		Send:       sendOptions(cfg),
		Logger:     logger,
	})

	orders := jupiter.NewClient(jupiter.ClientConfig{
		OrderURL: cfg.OrderAPIURL,
		QuoteURL: cfg.QuoteAPIURL,
		APIKey:   os.Getenv("JUPITER_API_KEY"),
		Timeout:  cfg.HTTPTimeout,
		Logger:   logger,
	})

	// journals are best effort
	orderJournal, err := journal.Open(ctx, cfg.Journal, logger)
	if err != nil {
		logger.WithError(err).Warn("order journal partially disabled")
	}
	defer func() {
		if err := orderJournal.Close(); err != nil {
			logger.WithError(err).Warn("failed to close order journal")
		}
	}()

	var gate batch.Gate
	if cfg.Journal.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr: cfg.Journal.RedisAddr,
			DB:   cfg.Journal.RedisDB,
		})
		defer client.Close()

		store, err := control.NewStore(client)
		if err != nil {
			logger.WithError(err).Warn("halt switch disabled")
		} else {
			gate = store
		}
	}

	driver, err := batch.New(cfg, batch.Deps{
		Orders:    orders,
		Submitter: submitter,
		Mints:     mints.NewRegistry(rpcClient),
		Journal:   orderJournal,
		Gate:      gate,
		Logger:    logger,
	})
	if err != nil {
		logger.WithError(err).Error("invalid configuration")
		return 1
	}

	logger.WithField("run_id", driver.RunID()).Info("starting batch")

	summary, err := driver.Run(ctx)
	logger.WithFields(summary.Fields()).Info("batch finished")
	if err != nil {
		logger.WithError(err).Error("batch aborted")
		return 1
	}
	return 0
}

func sendOptions(cfg *config.Config) rpc.SendOptions {
	opts := rpc.DefaultSendOptions()
	opts.SkipPreflight = cfg.SkipPreflight
	if cfg.Commitment != "" {
		opts.PreflightCommitment = cfg.Commitment
	}
	return opts
}

type controlAction struct {
	halt   bool
	resume bool
	reason string
}

func runControl(ctx context.Context, cfg *config.Config, action controlAction, logger *logrus.Logger) int {
	if action.halt && action.resume {
		logger.Error("-halt and -resume are mutually exclusive")
		return 2
	}
	if cfg.Journal.RedisAddr == "" {
		logger.Error("journal.redis_addr is required for -halt, -resume and -switches")
		return 1
	}

	client := redis.NewClient(&redis.Options{
		Addr: cfg.Journal.RedisAddr,
		DB:   cfg.Journal.RedisDB,
	})
	defer client.Close()

	store, err := control.NewStore(client)
	if err != nil {
		logger.WithError(err).Error("failed to create control store")
		return 1
	}

	switch {
	case action.halt:
		sw, err := store.Set(ctx, control.HaltSwitch, true, action.reason)
		if err != nil {
			logger.WithError(err).Error("failed to set halt switch")
			return 1
		}
		logger.WithFields(logrus.Fields{
			"switch": sw.Key,
			"reason": sw.Reason,
		}).Info("halt switch on")
	case action.resume:
		if err := store.Delete(ctx, control.HaltSwitch); err != nil {
			logger.WithError(err).Error("failed to clear halt switch")
			return 1
		}
		logger.WithField("switch", control.HaltSwitch).Info("halt switch cleared")
	}

	list, err := store.List(ctx)
	if err != nil {
		logger.WithError(err).Error("failed to list control switches")
		return 1
	}
	if len(list) == 0 {
		logger.Info("no control switches set")
	}
	for _, sw := range list {
		logger.WithFields(logrus.Fields{
			"switch":     sw.Key,
			"on":         sw.On,
			"reason":     sw.Reason,
			"updated_at": sw.UpdatedAt.Format(time.RFC3339),
		}).Info("control switch")
	}
	return 0
}
