// Package mints resolves token mint metadata used while building orders.
package mints

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/aman-zulfiqar/limit-order-batcher/internal/constants"
)

// DecimalsSource looks up the decimals of a mint on chain.
type DecimalsSource interface {
	GetMintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error)
}

// Registry caches mint decimals for the lifetime of a run. Not safe for concurrent use.
type Registry struct {
	source   DecimalsSource
	decimals map[solana.PublicKey]uint8
}

func NewRegistry(source DecimalsSource) *Registry {
	return &Registry{
		source:   source,
		decimals: make(map[solana.PublicKey]uint8),
	}
}

// Decimals returns the decimals of mint, asking the source only on first use.
func (r *Registry) Decimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	if d, ok := r.decimals[mint]; ok {
		return d, nil
	}

	d, err := r.source.GetMintDecimals(ctx, mint)
	if err != nil {
		return 0, fmt.Errorf("decimals of %s: %w", Label(mint.String()), err)
	}
	r.decimals[mint] = d
	return d, nil
}

// Label returns the well-known symbol of mint, or a shortened address.
func Label(mint string) string {
	if sym, ok := constants.TokenSymbols[mint]; ok {
		return sym
	}
	if len(mint) > 8 {
		return mint[:4] + ".." + mint[len(mint)-4:]
	}
	return mint
}
