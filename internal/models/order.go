package models

import "time"

// OrderStatus is the outcome of one account's order cycle.
type OrderStatus string

const (
	StatusSubmitted OrderStatus = "submitted"
	StatusRejected  OrderStatus = "rejected"
	StatusFailed    OrderStatus = "failed"
	StatusSkipped   OrderStatus = "skipped" // dry run, order created but not broadcast
)

type OrderRecord struct {
	RunID       string      `json:"run_id"`
	Account     string      `json:"account"`
	InputMint   string      `json:"input_mint"`
	OutputMint  string      `json:"output_mint"`
	InAmount    uint64      `json:"in_amount"`
	OutAmount   uint64      `json:"out_amount"`
	OrderPubkey string      `json:"order_pubkey,omitempty"`
	Signature   string      `json:"signature,omitempty"`
	Status      OrderStatus `json:"status"`
	Error       string      `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}
