// Package journal records the outcome of every order the batch attempts.
package journal

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/aman-zulfiqar/limit-order-batcher/internal/config"
	"github.com/aman-zulfiqar/limit-order-batcher/internal/models"
)

// Journal persists order records.
type Journal interface {
	Record(ctx context.Context, rec *models.OrderRecord) error

	io.Closer
}

// Nop discards every record.
type Nop struct{}

func (Nop) Record(context.Context, *models.OrderRecord) error {
	return nil
}

func (Nop) Close() error {
	return nil
}

// Multi writes each record to every journal and reports all failures together.
type Multi []Journal

func (m Multi) Record(ctx context.Context, rec *models.OrderRecord) error {
	var err error
	for _, j := range m {
		err = multierr.Append(err, j.Record(ctx, rec))
	}
	return err
}

func (m Multi) Close() error {
	var err error
	for _, j := range m {
		err = multierr.Append(err, j.Close())
	}
	return err
}

// Open builds the journals enabled in cfg. A backend that fails to open is left out
// and its error returned; the journal is never nil and is Nop when nothing opened.
func Open(ctx context.Context, cfg config.JournalConfig, logger *logrus.Logger) (Journal, error) {
	if logger == nil {
		logger = logrus.New()
	}

	var (
		out  Multi
		errs error
	)
	if cfg.RedisAddr != "" {
		rj, err := NewRedisJournal(ctx, RedisOptions{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("redis journal: %w", err))
		} else {
			logger.WithField("addr", cfg.RedisAddr).Info("redis journal enabled")
			out = append(out, rj)
		}
	}

	if cfg.ClickHouseAddr != "" {
		cs, err := openClickHouse(ctx, cfg)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("clickhouse journal: %w", err))
		} else {
			logger.WithField("addr", cfg.ClickHouseAddr).Info("clickhouse journal enabled")
			out = append(out, cs)
		}
	}

	switch len(out) {
	case 0:
		return Nop{}, errs
	case 1:
		return out[0], errs
	default:
		return out, errs
	}
}

func openClickHouse(ctx context.Context, cfg config.JournalConfig) (*ClickHouseStore, error) {
	cs, err := NewClickHouseStore(ctx, ClickHouseOptions{
		Addr:     cfg.ClickHouseAddr,
		Database: cfg.ClickHouseDatabase,
		Username: cfg.ClickHouseUsername,
		Password: cfg.ClickHousePassword,
	})
	if err != nil {
		return nil, err
	}
	if err := cs.EnsureSchema(ctx); err != nil {
		_ = cs.Close()
		return nil, err
	}
	return cs, nil
}
