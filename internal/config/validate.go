package config

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/multierr"

	"github.com/aman-zulfiqar/limit-order-batcher/internal/wallet"
)

// ErrInvalid is matched by every validation failure returned from Validate.
var ErrInvalid = errors.New("invalid configuration")

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var err error

	if strings.TrimSpace(c.RPCURL) == "" {
		err = multierr.Append(err, errors.New("rpc_url is required"))
	}
	if strings.TrimSpace(c.AccountsPath) == "" {
		err = multierr.Append(err, errors.New("accounts_path is required"))
	}
	if len(c.InputMints) == 0 {
		err = multierr.Append(err, errors.New("input_mints must list at least one mint"))
	}
	if len(c.OutputMints) == 0 {
		err = multierr.Append(err, errors.New("output_mints must list at least one mint"))
	}
	err = multierr.Append(err, validateTable("input_mints", c.InputMints))
	err = multierr.Append(err, validateTable("output_mints", c.OutputMints))

	if c.FeePayer != "" {
		if _, perr := wallet.ParsePrivateKey(c.FeePayer); perr != nil {
			err = multierr.Append(err, fmt.Errorf("fee_payer: %w", perr))
		}
	}
	if c.ReferralAccount != "" {
		if _, perr := solana.PublicKeyFromBase58(c.ReferralAccount); perr != nil {
			err = multierr.Append(err, fmt.Errorf("referral_account: %w", perr))
		}
	}

	switch c.OutAmountSource {
	case OutAmountFromOutput, OutAmountFromInput, OutAmountFromQuote:
	default:
		err = multierr.Append(err, fmt.Errorf("out_amount_source must be one of %q, %q, %q; got %q",
			OutAmountFromOutput, OutAmountFromInput, OutAmountFromQuote, c.OutAmountSource))
	}
	if c.QuotePremiumBps <= -10000 {
		err = multierr.Append(err, errors.New("quote_premium_bps must be greater than -10000"))
	}

	if c.Delay < 0 {
		err = multierr.Append(err, errors.New("delay must not be negative"))
	}
	if c.HTTPTimeout < 0 || c.RPCTimeout < 0 {
		err = multierr.Append(err, errors.New("timeouts must not be negative"))
	}
	if c.ExpireAfter < 0 {
		err = multierr.Append(err, errors.New("expire_after must not be negative"))
	}
	if c.RPCMaxRetries < 0 {
		err = multierr.Append(err, errors.New("rpc_max_retries must not be negative"))
	}
	if c.RPCRateLimit < 0 {
		err = multierr.Append(err, errors.New("rpc_rate_limit must not be negative"))
	}

	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func validateTable(name string, table MintTable) error {
	var err error

	// sorted for stable error messages
	mints := make([]string, 0, len(table))
	for mint := range table {
		mints = append(mints, mint)
	}
	sort.Strings(mints)

	for _, mint := range mints {
		if _, perr := solana.PublicKeyFromBase58(mint); perr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: invalid mint %q: %w", name, mint, perr))
			continue
		}
		r := table[mint].AmountRange
		if len(r) != 2 {
			err = multierr.Append(err, fmt.Errorf("%s.%s: amount_range must have exactly 2 values, got %d", name, mint, len(r)))
			continue
		}
		lo, hi := r[0], r[1]
		if math.IsNaN(lo) || math.IsNaN(hi) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
			err = multierr.Append(err, fmt.Errorf("%s.%s: amount_range must be finite", name, mint))
			continue
		}
		if lo < 0 || lo > hi {
			err = multierr.Append(err, fmt.Errorf("%s.%s: amount_range must satisfy 0 <= min <= max, got [%v, %v]", name, mint, lo, hi))
		}
	}
	return err
}

// FeePayerKey decodes the optional fee payer. It returns nil when none is configured.
func (c *Config) FeePayerKey() (*solana.PrivateKey, error) {
	if strings.TrimSpace(c.FeePayer) == "" {
		return nil, nil
	}
	key, err := wallet.ParsePrivateKey(c.FeePayer)
	if err != nil {
		return nil, fmt.Errorf("fee_payer: %w", err)
	}
	return &key, nil
}

// ReferralKey decodes the optional referral account.
func (c *Config) ReferralKey() *solana.PublicKey {
	if c.ReferralAccount == "" {
		return nil
	}
	key, err := solana.PublicKeyFromBase58(c.ReferralAccount)
	if err != nil {
		return nil
	}
	return &key
}
