package batch

import (
	"context"
	"errors"

	"github.com/aman-zulfiqar/limit-order-batcher/internal/jupiter"
	"github.com/aman-zulfiqar/limit-order-batcher/internal/models"
	"github.com/aman-zulfiqar/limit-order-batcher/internal/rpc"
)

// ErrStopped is returned when stop_on_error ends the run at the first failed account.
var ErrStopped = errors.New("batch stopped on account error")

// isFatal reports whether err must end the whole run. An unreachable RPC endpoint
// and a cancelled run are fatal; anything else only fails the current account.
func isFatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, rpc.ErrUnavailable)
}

func statusOf(err error) models.OrderStatus {
	if errors.Is(err, jupiter.ErrOrderRejected) {
		return models.StatusRejected
	}
	return models.StatusFailed
}
