package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/limit-order-batcher/internal/rpc"
)

var (
	// ErrMissingSigner is returned when the message requires a signature we hold no key for.
	ErrMissingSigner = errors.New("missing signer key")
	// ErrVersionedPayer is returned when a v0 message would need its fee payer replaced.
	ErrVersionedPayer = errors.New("cannot replace fee payer of a versioned transaction")
)

// Chain is the part of the RPC client the submitter needs.
type Chain interface {
	GetLatestBlockhash(ctx context.Context, commitment string) (solana.Hash, error)
	SendTransaction(ctx context.Context, raw []byte, opts rpc.SendOptions) (solana.Signature, error)
}

// SubmitterConfig configures blockhash commitment and send behavior
type SubmitterConfig struct {
	Commitment string
	Send       rpc.SendOptions
	Logger     *logrus.Logger
}

// Submitter stamps, signs and broadcasts transactions returned by the order API.
type Submitter struct {
	chain      Chain
	commitment string
	send       rpc.SendOptions
	logger     *logrus.Logger
}

func NewSubmitter(chain Chain, cfg SubmitterConfig) *Submitter {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	if cfg.Commitment == "" {
		cfg.Commitment = "confirmed"
	}
	return &Submitter{
		chain:      chain,
		commitment: cfg.Commitment,
		send:       cfg.Send,
		logger:     cfg.Logger,
	}
}

// SignersFor returns the fee payer and the signing keys for one account. With a
// dedicated fee payer both it and the account sign; otherwise the account pays alone.
func SignersFor(account solana.PrivateKey, feePayer *solana.PrivateKey) (solana.PublicKey, []solana.PrivateKey) {
	if feePayer != nil {
		return feePayer.PublicKey(), []solana.PrivateKey{*feePayer, account}
	}
	return account.PublicKey(), []solana.PrivateKey{account}
}

// Submit attaches a fresh blockhash and the fee payer to tx, signs it with signers and
// broadcasts it. tx may be replaced internally when the payer has to change; the
// returned signature identifies the broadcast transaction.
func (s *Submitter) Submit(ctx context.Context, tx *solana.Transaction, feePayer solana.PublicKey, signers ...solana.PrivateKey) (solana.Signature, error) {
	signed, err := s.Prepare(ctx, tx, feePayer, signers...)
	if err != nil {
		return solana.Signature{}, err
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	sig, err := s.chain.SendTransaction(ctx, raw, s.send)
	if err != nil {
		return solana.Signature{}, err
	}

	s.logger.WithFields(logrus.Fields{
		"signature": sig.String(),
		"fee_payer": feePayer.String(),
		"signers":   len(signers),
	}).Debug("transaction sent")

	return sig, nil
}

// Prepare does everything Submit does except broadcasting.
func (s *Submitter) Prepare(ctx context.Context, tx *solana.Transaction, feePayer solana.PublicKey, signers ...solana.PrivateKey) (*solana.Transaction, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction is nil")
	}

	blockhash, err := s.chain.GetLatestBlockhash(ctx, s.commitment)
	if err != nil {
		return nil, fmt.Errorf("failed to get blockhash: %w", err)
	}

	tx, err = SetFeePayer(tx, feePayer)
	if err != nil {
		return nil, err
	}
	tx.Message.RecentBlockhash = blockhash

	if err := SignTx(tx, signers...); err != nil {
		return nil, err
	}
	return tx, nil
}

// SetFeePayer makes payer the first account of a legacy message, recompiling the
// message if needed. A message already paid by payer is returned unchanged.
func SetFeePayer(tx *solana.Transaction, payer solana.PublicKey) (*solana.Transaction, error) {
	msg := &tx.Message
	if len(msg.AccountKeys) > 0 && msg.AccountKeys[0].Equals(payer) {
		return tx, nil
	}
	if msg.IsVersioned() {
		return nil, ErrVersionedPayer
	}

	ixs := make([]solana.Instruction, 0, len(msg.Instructions))
	for i, ci := range msg.Instructions {
		programID, err := msg.Program(ci.ProgramIDIndex)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		metas, err := ci.ResolveInstructionAccounts(msg)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		// NewTransaction mutates metas while merging; work on copies.
		accounts := make(solana.AccountMetaSlice, len(metas))
		for j, m := range metas {
			c := *m
			accounts[j] = &c
		}
		ixs = append(ixs, solana.NewInstruction(programID, accounts, []byte(ci.Data)))
	}

	rebuilt, err := solana.NewTransaction(ixs, msg.RecentBlockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("failed to recompile transaction for fee payer %s: %w", payer, err)
	}
	return rebuilt, nil
}

// SignTx replaces any existing signatures with fresh ones from signers. Every signer
// the message requires must be present.
func SignTx(tx *solana.Transaction, signers ...solana.PrivateKey) error {
	keys := make(map[solana.PublicKey]*solana.PrivateKey, len(signers))
	for i := range signers {
		keys[signers[i].PublicKey()] = &signers[i]
	}

	for _, required := range tx.Message.Signers() {
		if _, ok := keys[required]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingSigner, required)
		}
	}

	tx.Signatures = nil
	_, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		return keys[key]
	})
	if err != nil {
		return fmt.Errorf("failed to sign transaction: %w", err)
	}
	return nil
}
