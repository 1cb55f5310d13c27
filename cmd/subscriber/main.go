package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/limit-order-batcher/internal/journal"
	"github.com/aman-zulfiqar/limit-order-batcher/internal/mints"
	"github.com/aman-zulfiqar/limit-order-batcher/internal/models"
)

// subscriber follows the order journal of running batches.
func main() {
	_ = godotenv.Load()

	defaultAddr := os.Getenv("REDIS_ADDR")
	if defaultAddr == "" {
		defaultAddr = "localhost:6379"
	}
	addr := flag.String("redis", defaultAddr, "redis address of the order journal")
	db := flag.Int("db", 0, "redis database")
	recent := flag.Int64("recent", 20, "print this many recent orders before following (0 to skip)")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := redis.NewClient(&redis.Options{Addr: *addr, DB: *db})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}
	j := journal.NewRedisJournalFromClient(client)
	defer j.Close()

	if *recent > 0 {
		records, err := j.Recent(ctx, *recent)
		if err != nil {
			logger.WithError(err).Fatal("failed to read recent orders")
		}
		// oldest first
		for i := len(records) - 1; i >= 0; i-- {
			printRecord(logger, records[i])
		}
	}

	ch, err := j.Subscribe(ctx)
	if err != nil {
		logger.WithError(err).Fatal("failed to subscribe")
	}
	logger.WithField("addr", *addr).Info("following orders, press Ctrl+C to stop")

	for rec := range ch {
		printRecord(logger, rec)
	}
	logger.Info("subscriber stopped")
}

func printRecord(logger *logrus.Logger, rec *models.OrderRecord) {
	entry := logger.WithFields(logrus.Fields{
		"run_id":     rec.RunID,
		"account":    rec.Account,
		"pair":       mints.Label(rec.InputMint) + "/" + mints.Label(rec.OutputMint),
		"in_amount":  rec.InAmount,
		"out_amount": rec.OutAmount,
		"status":     rec.Status,
	})
	if rec.Signature != "" {
		entry = entry.WithField("signature", rec.Signature)
	}
	if rec.Error != "" {
		entry.WithField("error", rec.Error).Warn("order")
		return
	}
	entry.Info("order")
}
