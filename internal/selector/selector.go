// Package selector picks the random mint pair and amounts for each order.
package selector

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/limit-order-batcher/internal/config"
)

var (
	ErrNoMints        = errors.New("mint table is empty")
	ErrInvalidRange   = errors.New("invalid amount range")
	ErrRangeTooNarrow = errors.New("amount range contains no representable amount")
)

// Rand is the subset of *rand.Rand the selector draws from.
type Rand interface {
	Intn(n int) int
	Int63n(n int64) int64
	Uint64() uint64
}

// NewRand returns a time-seeded source. Not safe for concurrent use.
func NewRand() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// PickMint chooses one mint of table uniformly at random.
func PickMint(r Rand, table config.MintTable) (string, config.MintRange, error) {
	if len(table) == 0 {
		return "", config.MintRange{}, ErrNoMints
	}

	mints := make([]string, 0, len(table))
	for m := range table {
		mints = append(mints, m)
	}
	sort.Strings(mints)

	mint := mints[r.Intn(len(mints))]
	return mint, table[mint], nil
}

// PickAmount draws an amount in the smallest on-chain unit such that
// min <= amount/10^decimals <= max.
func PickAmount(r Rand, rng config.MintRange, decimals uint8) (uint64, error) {
	if len(rng.AmountRange) != 2 {
		return 0, fmt.Errorf("%w: want [min, max], got %d values", ErrInvalidRange, len(rng.AmountRange))
	}
	lo, hi := rng.Min(), rng.Max()
	if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return 0, fmt.Errorf("%w: [%v, %v] is not finite", ErrInvalidRange, lo, hi)
	}
	if lo < 0 || lo > hi {
		return 0, fmt.Errorf("%w: [%v, %v]", ErrInvalidRange, lo, hi)
	}

	exp := int32(decimals)
	minUnits := decimal.NewFromFloat(lo).Shift(exp).Ceil()
	maxUnits := decimal.NewFromFloat(hi).Shift(exp).Floor()

	if minUnits.GreaterThan(maxUnits) {
		return 0, fmt.Errorf("%w: [%v, %v] with %d decimals", ErrRangeTooNarrow, lo, hi, decimals)
	}
	if maxUnits.GreaterThan(decimal.NewFromUint64(math.MaxUint64)) {
		return 0, fmt.Errorf("%w: [%v, %v] with %d decimals overflows uint64", ErrInvalidRange, lo, hi, decimals)
	}

	base := minUnits.BigInt().Uint64()
	return base + uniform(r, maxUnits.BigInt().Uint64()-base), nil
}

// uniform returns a value in [0, n].
func uniform(r Rand, n uint64) uint64 {
	if n < math.MaxInt64 {
		return uint64(r.Int63n(int64(n) + 1))
	}
	if n == math.MaxUint64 {
		return r.Uint64()
	}
	// n+1 > 2^63, so each draw is accepted with probability above one half
	for {
		if v := r.Uint64(); v <= n {
			return v
		}
	}
}

// ToUI converts an amount in the smallest unit back to a decimal string for logging.
func ToUI(amount uint64, decimals uint8) string {
	return decimal.NewFromUint64(amount).Shift(-int32(decimals)).String()
}
