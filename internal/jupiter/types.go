package jupiter

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ErrOrderRejected is matched by every *OrderRejectedError.
var ErrOrderRejected = errors.New("order rejected")

// OrderRejectedError carries the message of an order API response with an error field.
type OrderRejectedError struct {
	Message string
}

func (e *OrderRejectedError) Error() string {
	return "order rejected: " + e.Message
}

func (e *OrderRejectedError) Is(target error) bool {
	return target == ErrOrderRejected
}

// OrderParams describes one limit order. Amounts are in the smallest on-chain unit.
type OrderParams struct {
	Owner      solana.PublicKey
	InputMint  solana.PublicKey
	OutputMint solana.PublicKey
	InAmount   uint64
	OutAmount  uint64

	ExpiredAt       *int64 // unix seconds, nil = no expiry
	ReferralAccount *solana.PublicKey
	ReferralName    string
}

// Order is a successfully created, still unsigned order transaction.
type Order struct {
	Tx          *solana.Transaction
	Raw         []byte // decoded wire bytes as returned by the API
	OrderPubkey string
	Base        solana.PublicKey
}

type createOrderBody struct {
	Owner           string `json:"owner"`
	InAmount        uint64 `json:"inAmount"`
	OutAmount       uint64 `json:"outAmount"`
	ExpiredAt       *int64 `json:"expiredAt,omitempty"`
	InputMint       string `json:"inputMint"`
	OutputMint      string `json:"outputMint"`
	Base            string `json:"base"`
	ReferralAccount string `json:"referralAccount,omitempty"`
	ReferralName    string `json:"referralName,omitempty"`
}

// CreateOrderResponse is either {tx, orderPubkey} or {error}.
type CreateOrderResponse struct {
	Tx          string          `json:"tx"`
	OrderPubkey string          `json:"orderPubkey"`
	Error       json.RawMessage `json:"error,omitempty"`
}

func (r *CreateOrderResponse) rejection() (string, bool) {
	raw := strings.TrimSpace(string(r.Error))
	if raw == "" || raw == "null" {
		return "", false
	}
	var msg string
	if err := json.Unmarshal(r.Error, &msg); err == nil {
		return msg, true
	}
	return raw, true
}

type QuoteRequest struct {
	InputMint  string
	OutputMint string
	Amount     string // raw integer as string (uint64)

	SlippageBps      *uint16
	SwapMode         string // ExactIn | ExactOut
	OnlyDirectRoutes *bool
}

type QuoteResponse struct {
	InputMint            string `json:"inputMint"`
	OutputMint           string `json:"outputMint"`
	InAmount             string `json:"inAmount"`
	OutAmount            string `json:"outAmount"`
	OtherAmountThreshold string `json:"otherAmountThreshold"`
	SwapMode             string `json:"swapMode"`
	SlippageBps          uint16 `json:"slippageBps"`
	PriceImpactPct       string `json:"priceImpactPct"`

	ContextSlot uint64  `json:"contextSlot,omitempty"`
	TimeTaken   float64 `json:"timeTaken,omitempty"`
}
