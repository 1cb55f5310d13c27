package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aman-zulfiqar/limit-order-batcher/internal/constants"
	"github.com/aman-zulfiqar/limit-order-batcher/internal/models"
)

type RedisOptions struct {
	Addr string
	DB   int
}

// RedisJournal keeps the most recent orders in a capped list and publishes each one
// on the live channel.
type RedisJournal struct {
	client *redis.Client
}

func NewRedisJournal(ctx context.Context, opts RedisOptions) (*RedisJournal, error) {
	client := redis.NewClient(&redis.Options{
		Addr: opts.Addr,
		DB:   opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisJournal{client: client}, nil
}

// NewRedisJournalFromClient wraps an existing client.
func NewRedisJournalFromClient(client *redis.Client) *RedisJournal {
	return &RedisJournal{client: client}
}

func (r *RedisJournal) Record(ctx context.Context, rec *models.OrderRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal order record: %w", err)
	}

	pipe := r.client.Pipeline()
	pipe.LPush(ctx, constants.RedisKeyRecentOrders, data)
	pipe.LTrim(ctx, constants.RedisKeyRecentOrders, 0, constants.MaxRecentOrders-1)
	pipe.Publish(ctx, constants.PubSubChannelOrders, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record order in redis: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (r *RedisJournal) Recent(ctx context.Context, limit int64) ([]*models.OrderRecord, error) {
	if limit <= 0 {
		limit = constants.MaxRecentOrders
	}
	vals, err := r.client.LRange(ctx, constants.RedisKeyRecentOrders, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent orders: %w", err)
	}

	out := make([]*models.OrderRecord, 0, len(vals))
	for _, v := range vals {
		var rec models.OrderRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

// Subscribe delivers live records until ctx is done. The returned channel is closed
// when the subscription ends.
func (r *RedisJournal) Subscribe(ctx context.Context) (<-chan *models.OrderRecord, error) {
	pubsub := r.client.Subscribe(ctx, constants.PubSubChannelOrders)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", constants.PubSubChannelOrders, err)
	}

	out := make(chan *models.OrderRecord)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var rec models.OrderRecord
				if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
					continue
				}
				select {
				case out <- &rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (r *RedisJournal) Close() error {
	return r.client.Close()
}
