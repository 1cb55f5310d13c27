package journal

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/aman-zulfiqar/limit-order-batcher/internal/models"
)

const createOrdersTable = `
	CREATE TABLE IF NOT EXISTS limit_orders (
		run_id       String,
		created_at   DateTime64(3, 'UTC'),
		account      String,
		input_mint   String,
		output_mint  String,
		in_amount    UInt64,
		out_amount   UInt64,
		order_pubkey String,
		signature    String,
		status       LowCardinality(String),
		error        String
	) ENGINE = MergeTree
	ORDER BY (created_at, account)
`

type ClickHouseOptions struct {
	Addr     string
	Database string
	Username string
	Password string
}

// ClickHouseStore appends order records to the limit_orders table.
type ClickHouseStore struct {
	conn driver.Conn
}

func NewClickHouseStore(ctx context.Context, opts ClickHouseOptions) (*ClickHouseStore, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseStore{conn: conn}, nil
}

func (c *ClickHouseStore) EnsureSchema(ctx context.Context) error {
	if err := c.conn.Exec(ctx, createOrdersTable); err != nil {
		return fmt.Errorf("create limit_orders table: %w", err)
	}
	return nil
}

func (c *ClickHouseStore) Record(ctx context.Context, rec *models.OrderRecord) error {
	query := `
		INSERT INTO limit_orders (
			run_id, created_at, account, input_mint, output_mint,
			in_amount, out_amount, order_pubkey, signature, status, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	err := c.conn.Exec(ctx, query,
		rec.RunID,
		rec.CreatedAt,
		rec.Account,
		rec.InputMint,
		rec.OutputMint,
		rec.InAmount,
		rec.OutAmount,
		rec.OrderPubkey,
		rec.Signature,
		string(rec.Status),
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (c *ClickHouseStore) Close() error {
	return c.conn.Close()
}
