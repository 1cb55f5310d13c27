// Package batch drives the sequential per-account order cycle.
package batch

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/limit-order-batcher/internal/config"
	"github.com/aman-zulfiqar/limit-order-batcher/internal/journal"
	"github.com/aman-zulfiqar/limit-order-batcher/internal/jupiter"
	"github.com/aman-zulfiqar/limit-order-batcher/internal/mints"
	"github.com/aman-zulfiqar/limit-order-batcher/internal/models"
	"github.com/aman-zulfiqar/limit-order-batcher/internal/selector"
	"github.com/aman-zulfiqar/limit-order-batcher/internal/wallet"
)

type OrderAPI interface {
	CreateOrder(ctx context.Context, p jupiter.OrderParams) (*jupiter.Order, error)
	Quote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.QuoteResponse, error)
}

type Submitter interface {
	Submit(ctx context.Context, tx *solana.Transaction, feePayer solana.PublicKey, signers ...solana.PrivateKey) (solana.Signature, error)
}

type Decimals interface {
	Decimals(ctx context.Context, mint solana.PublicKey) (uint8, error)
}

// Gate is polled before every account; a halted gate ends the run early.
type Gate interface {
	Halted(ctx context.Context) (bool, string, error)
}

type Deps struct {
	Orders    OrderAPI
	Submitter Submitter
	Mints     Decimals

	// Optional.
	Journal      journal.Journal
	Gate         Gate
	Rand         selector.Rand
	Logger       *logrus.Logger
	LoadAccounts func(path string) ([]solana.PrivateKey, error)
	Sleep        func(ctx context.Context, d time.Duration) error
	Now          func() time.Time
}

type Driver struct {
	cfg  *config.Config
	deps Deps

	runID    string
	phase    Phase
	feePayer *solana.PrivateKey
	referral *solana.PublicKey
	logger   *logrus.Entry
}

func New(cfg *config.Config, deps Deps) (*Driver, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if deps.Orders == nil || deps.Submitter == nil || deps.Mints == nil {
		return nil, fmt.Errorf("orders, submitter and mints are required")
	}

	feePayer, err := cfg.FeePayerKey()
	if err != nil {
		return nil, err
	}

	if deps.Journal == nil {
		deps.Journal = journal.Nop{}
	}
	if deps.Rand == nil {
		deps.Rand = selector.NewRand()
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	if deps.LoadAccounts == nil {
		deps.LoadAccounts = wallet.LoadAccounts
	}
	if deps.Sleep == nil {
		deps.Sleep = sleep
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	runID := uuid.NewString()
	return &Driver{
		cfg:      cfg,
		deps:     deps,
		runID:    runID,
		phase:    PhaseInit,
		feePayer: feePayer,
		referral: cfg.ReferralKey(),
		logger:   deps.Logger.WithField("run_id", runID),
	}, nil
}

func (d *Driver) RunID() string {
	return d.runID
}

func (d *Driver) Phase() Phase {
	return d.phase
}

func (d *Driver) setPhase(p Phase) {
	d.phase = p
	d.logger.WithField("phase", p.String()).Debug("phase")
}

// Run processes every account in file order. The returned summary is never nil;
// the error is non-nil only when the run ended before the last account.
func (d *Driver) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{RunID: d.runID, StartedAt: d.deps.Now()}
	defer func() {
		summary.FinishedAt = d.deps.Now()
	}()

	d.setPhase(PhaseConfigLoaded)
	if err := CheckMints(d.cfg); err != nil {
		return summary, err
	}

	accounts, err := d.deps.LoadAccounts(d.cfg.AccountsPath)
	if err != nil {
		return summary, fmt.Errorf("load accounts: %w", err)
	}
	summary.Accounts = len(accounts)
	d.setPhase(PhaseAccountsLoaded)
	d.logger.WithFields(logrus.Fields{
		"accounts":  len(accounts),
		"fee_payer": d.feePayer != nil,
		"dry_run":   d.cfg.DryRun,
	}).Info("accounts loaded")

	if err := d.pause(ctx); err != nil {
		return summary, err
	}

	for i, account := range accounts {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if halted, reason := d.halted(ctx); halted {
			summary.Halted = true
			d.logger.WithFields(logrus.Fields{
				"remaining": len(accounts) - i,
				"reason":    reason,
			}).Warn("halt switch is on, stopping before next account")
			break
		}

		res := d.processAccount(ctx, i, account)
		summary.add(res)
		d.record(ctx, res)

		log := d.logger.WithFields(logrus.Fields{
			"index":   fmt.Sprintf("%d/%d", i+1, len(accounts)),
			"account": res.Account,
			"status":  res.Status,
		})
		if res.Err != nil {
			log.WithError(res.Err).Error("order failed")
			if isFatal(ctx, res.Err) {
				return summary, fmt.Errorf("account %d: %w", i+1, res.Err)
			}
			if d.cfg.StopOnError {
				return summary, fmt.Errorf("%w: account %d: %w", ErrStopped, i+1, res.Err)
			}
		} else {
			log.WithField("signature", res.Signature).Info("order done")
		}

		if err := d.pause(ctx); err != nil {
			return summary, err
		}
	}

	d.setPhase(PhaseDone)
	return summary, nil
}

// CheckMints fails with selector.ErrNoMints unless both mint tables have entries.
func CheckMints(cfg *config.Config) error {
	if len(cfg.InputMints) == 0 {
		return fmt.Errorf("input_mints: %w", selector.ErrNoMints)
	}
	if len(cfg.OutputMints) == 0 {
		return fmt.Errorf("output_mints: %w", selector.ErrNoMints)
	}
	return nil
}

func (d *Driver) processAccount(ctx context.Context, index int, account solana.PrivateKey) Result {
	owner := account.PublicKey()
	res := Result{Index: index, Account: owner.String()}

	d.setPhase(PhaseSelectParams)
	params, ui, err := d.selectParams(ctx, owner)
	if params != nil {
		res.InputMint = params.InputMint.String()
		res.OutputMint = params.OutputMint.String()
		res.InAmount = params.InAmount
		res.OutAmount = params.OutAmount
	}
	if err != nil {
		res.Status, res.Err = models.StatusFailed, err
		return res
	}

	fields := logrus.Fields{
		"account":     res.Account,
		"input_mint":  mints.Label(res.InputMint),
		"output_mint": mints.Label(res.OutputMint),
		"in_amount":   params.InAmount,
		"out_amount":  params.OutAmount,
	}
	for k, v := range ui {
		fields[k] = v
	}
	d.logger.WithFields(fields).Info("creating order")

	d.setPhase(PhaseRequestOrder)
	order, err := d.deps.Orders.CreateOrder(ctx, *params)
	if err != nil {
		res.Status, res.Err = statusOf(err), fmt.Errorf("create order: %w", err)
		return res
	}
	res.OrderPubkey = order.OrderPubkey

	if d.cfg.DryRun {
		res.Status = models.StatusSkipped
		return res
	}

	d.setPhase(PhaseSubmit)
	payer, signers := wallet.SignersFor(account, d.feePayer)
	sig, err := d.deps.Submitter.Submit(ctx, order.Tx, payer, signers...)
	if err != nil {
		res.Status, res.Err = models.StatusFailed, fmt.Errorf("submit order: %w", err)
		return res
	}

	res.Signature = sig.String()
	res.Status = models.StatusSubmitted
	return res
}

// selectParams picks the mints and amounts of one order. The partially filled params
// are returned alongside an error so the failure can still be recorded. ui holds the
// amounts in token units for every amount whose decimals are known.
func (d *Driver) selectParams(ctx context.Context, owner solana.PublicKey) (p *jupiter.OrderParams, ui logrus.Fields, err error) {
	r := d.deps.Rand

	inMint, inRange, err := selector.PickMint(r, d.cfg.InputMints)
	if err != nil {
		return nil, nil, fmt.Errorf("input mint: %w", err)
	}
	outMint, outRange, err := selector.PickMint(r, d.cfg.OutputMints)
	if err != nil {
		return nil, nil, fmt.Errorf("output mint: %w", err)
	}

	inKey, err := solana.PublicKeyFromBase58(inMint)
	if err != nil {
		return nil, nil, fmt.Errorf("input mint %q: %w", inMint, err)
	}
	outKey, err := solana.PublicKeyFromBase58(outMint)
	if err != nil {
		return nil, nil, fmt.Errorf("output mint %q: %w", outMint, err)
	}

	p = &jupiter.OrderParams{
		Owner:           owner,
		InputMint:       inKey,
		OutputMint:      outKey,
		ReferralAccount: d.referral,
		ReferralName:    d.cfg.ReferralName,
	}
	if d.cfg.ExpireAfter > 0 {
		exp := d.deps.Now().Add(d.cfg.ExpireAfter).Unix()
		p.ExpiredAt = &exp
	}

	inDecimals, err := d.deps.Mints.Decimals(ctx, inKey)
	if err != nil {
		return p, nil, err
	}
	p.InAmount, err = selector.PickAmount(r, inRange, inDecimals)
	if err != nil {
		return p, nil, fmt.Errorf("input amount for %s: %w", mints.Label(inMint), err)
	}
	ui = logrus.Fields{"in_amount_ui": selector.ToUI(p.InAmount, inDecimals)}

	switch d.cfg.OutAmountSource {
	case config.OutAmountFromInput:
		p.OutAmount, err = selector.PickAmount(r, inRange, inDecimals)
	case config.OutAmountFromQuote:
		p.OutAmount, err = d.quotedOutAmount(ctx, p)
	default:
		var outDecimals uint8
		outDecimals, err = d.deps.Mints.Decimals(ctx, outKey)
		if err != nil {
			return p, ui, err
		}
		p.OutAmount, err = selector.PickAmount(r, outRange, outDecimals)
		if err == nil {
			ui["out_amount_ui"] = selector.ToUI(p.OutAmount, outDecimals)
		}
	}
	if err != nil {
		return p, ui, fmt.Errorf("output amount for %s: %w", mints.Label(outMint), err)
	}

	return p, ui, nil
}

// quotedOutAmount asks for the market output of p.InAmount and applies the configured
// premium in basis points.
func (d *Driver) quotedOutAmount(ctx context.Context, p *jupiter.OrderParams) (uint64, error) {
	q, err := d.deps.Orders.Quote(ctx, jupiter.QuoteRequest{
		InputMint:  p.InputMint.String(),
		OutputMint: p.OutputMint.String(),
		Amount:     strconv.FormatUint(p.InAmount, 10),
		SwapMode:   "ExactIn",
	})
	if err != nil {
		return 0, fmt.Errorf("quote: %w", err)
	}
	return applyPremium(q.OutAmount, d.cfg.QuotePremiumBps)
}

func applyPremium(outAmount string, bps int) (uint64, error) {
	quoted, err := decimal.NewFromString(outAmount)
	if err != nil {
		return 0, fmt.Errorf("quote outAmount %q: %w", outAmount, err)
	}

	out := quoted.
		Mul(decimal.NewFromInt(int64(10_000 + bps))).
		Div(decimal.NewFromInt(10_000)).
		Floor()
	if !out.IsPositive() {
		return 0, fmt.Errorf("quoted output %s with premium %d bps is not positive", outAmount, bps)
	}
	if out.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, fmt.Errorf("quoted output %s overflows", outAmount)
	}
	return uint64(out.IntPart()), nil
}

func (d *Driver) halted(ctx context.Context) (bool, string) {
	if d.deps.Gate == nil {
		return false, ""
	}
	halted, reason, err := d.deps.Gate.Halted(ctx)
	if err != nil {
		d.logger.WithError(err).Warn("failed to read halt switch")
		return false, ""
	}
	return halted, reason
}

func (d *Driver) record(ctx context.Context, res Result) {
	rec := &models.OrderRecord{
		RunID:       d.runID,
		Account:     res.Account,
		InputMint:   res.InputMint,
		OutputMint:  res.OutputMint,
		InAmount:    res.InAmount,
		OutAmount:   res.OutAmount,
		OrderPubkey: res.OrderPubkey,
		Signature:   res.Signature,
		Status:      res.Status,
		CreatedAt:   d.deps.Now().UTC(),
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}

	if err := d.deps.Journal.Record(context.WithoutCancel(ctx), rec); err != nil {
		d.logger.WithError(err).Warn("failed to journal order")
	}
}

func (d *Driver) pause(ctx context.Context) error {
	d.setPhase(PhaseDelay)
	return d.deps.Sleep(ctx, d.cfg.Delay)
}

func sleep(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(dur)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
