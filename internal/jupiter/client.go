package jupiter

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/limit-order-batcher/internal/constants"
)

type ClientConfig struct {
	OrderURL string
	QuoteURL string
	APIKey   string
	Timeout  time.Duration
	Logger   *logrus.Logger
}

type Client struct {
	OrderURL string
	QuoteURL string
	APIKey   string
	HTTP     *http.Client

	logger *logrus.Logger
}

func NewClient(cfg ClientConfig) *Client {
	orderURL := strings.TrimSpace(cfg.OrderURL)
	if orderURL == "" {
		orderURL = constants.CreateOrderEndpoint
	}
	quoteURL := strings.TrimSpace(cfg.QuoteURL)
	if quoteURL == "" {
		quoteURL = constants.QuoteEndpoint
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = constants.DefaultHTTPTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Client{
		OrderURL: orderURL,
		QuoteURL: quoteURL,
		APIKey:   strings.TrimSpace(cfg.APIKey),
		HTTP: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: cfg.Logger,
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("jupiter http %d", e.StatusCode)
	}
	return fmt.Sprintf("jupiter http %d: %s", e.StatusCode, b)
}

// CreateOrder asks the limit order API for an unsigned transaction that opens the
// order. A fresh base key identifies the order; it is not kept.
func (c *Client) CreateOrder(ctx context.Context, p OrderParams) (*Order, error) {
	if p.Owner.IsZero() {
		return nil, fmt.Errorf("owner is required")
	}
	if p.InputMint.IsZero() || p.OutputMint.IsZero() {
		return nil, fmt.Errorf("inputMint and outputMint are required")
	}

	base := solana.NewWallet().PublicKey()

	reqBody := createOrderBody{
		Owner:        p.Owner.String(),
		InAmount:     p.InAmount,
		OutAmount:    p.OutAmount,
		ExpiredAt:    p.ExpiredAt,
		InputMint:    p.InputMint.String(),
		OutputMint:   p.OutputMint.String(),
		Base:         base.String(),
		ReferralName: p.ReferralName,
	}
	if p.ReferralAccount != nil {
		reqBody.ReferralAccount = p.ReferralAccount.String()
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal create order body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.OrderURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("accept", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("x-api-key", c.APIKey)
	}

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read create order response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"owner":    reqBody.Owner,
		"status":   res.StatusCode,
		"response": string(body),
	}).Info("create order response")

	var out CreateOrderResponse
	if jsonErr := json.Unmarshal(body, &out); jsonErr == nil {
		if msg, rejected := out.rejection(); rejected {
			return nil, &OrderRejectedError{Message: msg}
		}
	} else if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil, fmt.Errorf("failed to decode create order response: %w", jsonErr)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}
	if out.Tx == "" {
		return nil, fmt.Errorf("create order response has no tx")
	}

	raw, err := base64.StdEncoding.DecodeString(out.Tx)
	if err != nil {
		return nil, fmt.Errorf("decode order tx: %w", err)
	}
	dec := bin.NewBinDecoder(raw)
	tx, err := solana.TransactionFromDecoder(dec)
	if err != nil {
		return nil, fmt.Errorf("unmarshal order tx: %w", err)
	}
	if dec.HasRemaining() {
		return nil, fmt.Errorf("order tx has %d trailing bytes", dec.Remaining())
	}

	return &Order{
		Tx:          tx,
		Raw:         raw,
		OrderPubkey: out.OrderPubkey,
		Base:        base,
	}, nil
}

func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	if strings.TrimSpace(req.InputMint) == "" {
		return nil, fmt.Errorf("inputMint is required")
	}
	if strings.TrimSpace(req.OutputMint) == "" {
		return nil, fmt.Errorf("outputMint is required")
	}
	if strings.TrimSpace(req.Amount) == "" {
		return nil, fmt.Errorf("amount is required")
	}

	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", req.Amount)

	if req.SlippageBps != nil {
		q.Set("slippageBps", fmt.Sprintf("%d", *req.SlippageBps))
	}
	if req.SwapMode != "" {
		q.Set("swapMode", req.SwapMode)
	}
	if req.OnlyDirectRoutes != nil {
		q.Set("onlyDirectRoutes", fmt.Sprintf("%t", *req.OnlyDirectRoutes))
	}

	u := c.QuoteURL + "?" + q.Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("accept", "application/json")
	if c.APIKey != "" {
		httpReq.Header.Set("x-api-key", c.APIKey)
	}

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}

	var out QuoteResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode jupiter quote response: %w", err)
	}
	return &out, nil
}
