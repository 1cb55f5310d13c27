package batch

import (
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/aman-zulfiqar/limit-order-batcher/internal/models"
)

// Result is the outcome of one account.
type Result struct {
	Index       int
	Account     string
	InputMint   string
	OutputMint  string
	InAmount    uint64
	OutAmount   uint64
	OrderPubkey string
	Signature   string
	Status      models.OrderStatus
	Err         error
}

type Summary struct {
	RunID    string
	Accounts int

	Processed int
	Submitted int
	Rejected  int
	Failed    int
	Skipped   int

	// Halted is set when the operator halt switch ended the run early.
	Halted bool

	Results []Result
	// Err aggregates every per-account error.
	Err error

	StartedAt  time.Time
	FinishedAt time.Time
}

func (s *Summary) add(r Result) {
	s.Processed++
	switch r.Status {
	case models.StatusSubmitted:
		s.Submitted++
	case models.StatusRejected:
		s.Rejected++
	case models.StatusSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
	if r.Err != nil {
		s.Err = multierr.Append(s.Err, r.Err)
	}
	s.Results = append(s.Results, r)
}

// Fields returns the totals for a structured log line.
func (s *Summary) Fields() logrus.Fields {
	return logrus.Fields{
		"run_id":    s.RunID,
		"accounts":  s.Accounts,
		"processed": s.Processed,
		"submitted": s.Submitted,
		"rejected":  s.Rejected,
		"failed":    s.Failed,
		"skipped":   s.Skipped,
		"halted":    s.Halted,
		"duration":  s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond).String(),
	}
}
