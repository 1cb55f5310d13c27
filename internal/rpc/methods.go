package rpc

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// GetLatestBlockhash fetches the most recent blockhash at the given commitment
func (c *Client) GetLatestBlockhash(ctx context.Context, commitment string) (solana.Hash, error) {
	if commitment == "" {
		commitment = "confirmed"
	}
	params := []any{
		map[string]any{"commitment": commitment},
	}

	var resp blockhashResponse
	if err := c.Call(ctx, "getLatestBlockhash", params, &resp); err != nil {
		return solana.Hash{}, fmt.Errorf("getLatestBlockhash failed: %w", err)
	}
	if resp.Error != nil {
		return solana.Hash{}, fmt.Errorf("getLatestBlockhash: %w", resp.Error)
	}

	hash, err := solana.HashFromBase58(resp.Result.Value.Blockhash)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("invalid blockhash format: %w", err)
	}
	return hash, nil
}

// SendTransaction broadcasts a serialized, signed transaction.
func (c *Client) SendTransaction(ctx context.Context, raw []byte, opts SendOptions) (solana.Signature, error) {
	cfg := map[string]any{
		"encoding":      "base64",
		"skipPreflight": opts.SkipPreflight,
	}
	if opts.PreflightCommitment != "" {
		cfg["preflightCommitment"] = opts.PreflightCommitment
	}
	if opts.MaxRetries != nil {
		cfg["maxRetries"] = *opts.MaxRetries
	}
	params := []any{base64.StdEncoding.EncodeToString(raw), cfg}

	var resp sendResponse
	if err := c.Call(ctx, "sendTransaction", params, &resp); err != nil {
		return solana.Signature{}, fmt.Errorf("sendTransaction failed: %w", err)
	}
	if resp.Error != nil {
		return solana.Signature{}, fmt.Errorf("sendTransaction: %w", resp.Error)
	}

	sig, err := solana.SignatureFromBase58(resp.Result)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("invalid signature in sendTransaction result: %w", err)
	}
	return sig, nil
}

// GetMintDecimals returns the decimals of a token mint.
func (c *Client) GetMintDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	params := []any{mint.String()}

	var resp tokenSupplyResponse
	if err := c.Call(ctx, "getTokenSupply", params, &resp); err != nil {
		return 0, fmt.Errorf("getTokenSupply failed: %w", err)
	}
	if resp.Error != nil {
		return 0, fmt.Errorf("getTokenSupply %s: %w", mint, resp.Error)
	}
	return resp.Result.Value.Decimals, nil
}
