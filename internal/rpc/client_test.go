package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func newTestClient(url string, retries int) *Client {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return NewClient(ClientConfig{
		BaseURL:      url,
		Timeout:      5 * time.Second,
		MaxRetries:   retries,
		RetryBackoff: time.Millisecond,
		Logger:       logger,
	})
}

func TestGetLatestBlockhash(t *testing.T) {
	want := solana.Hash{1, 2, 3, 4}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getLatestBlockhash", req.Method)
		require.Len(t, req.Params, 1)
		assert.JSONEq(t, `{"commitment":"finalized"}`, string(req.Params[0]))

		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":{"blockhash":"` +
			want.String() + `","lastValidBlockHeight":100}}}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL, 0).GetLatestBlockhash(context.Background(), "finalized")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCall_RPCErrorIsNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32002,"message":"Blockhash not found"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 3).SendTransaction(context.Background(), []byte{1, 2, 3}, DefaultSendOptions())
	require.Error(t, err)

	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, -32002, rpcErr.Code)
	assert.False(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestCall_UnavailableAfterRetries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 2).GetMintDecimals(context.Background(), solana.NewWallet().PublicKey())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestCall_ClientErrorIsNotUnavailable(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 2).GetLatestBlockhash(context.Background(), "")
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnavailable))

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestCall_ConnectionRefusedIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url, 0).GetLatestBlockhash(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestSendTransaction(t *testing.T) {
	raw := []byte{9, 8, 7, 6}
	wantSig := solana.Signature{7, 7, 7}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "sendTransaction", req.Method)
		require.Len(t, req.Params, 2)

		var encoded string
		require.NoError(t, json.Unmarshal(req.Params[0], &encoded))
		assert.Equal(t, base64.StdEncoding.EncodeToString(raw), encoded)

		var opts map[string]any
		require.NoError(t, json.Unmarshal(req.Params[1], &opts))
		assert.Equal(t, "base64", opts["encoding"])
		assert.Equal(t, true, opts["skipPreflight"])

		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":"` + wantSig.String() + `"}`))
	}))
	defer srv.Close()

	sig, err := newTestClient(srv.URL, 0).SendTransaction(context.Background(), raw, SendOptions{SkipPreflight: true})
	require.NoError(t, err)
	assert.Equal(t, wantSig, sig)
}

func TestGetMintDecimals(t *testing.T) {
	mint := solana.NewWallet().PublicKey()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getTokenSupply", req.Method)

		var got string
		require.NoError(t, json.Unmarshal(req.Params[0], &got))
		assert.Equal(t, mint.String(), got)

		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":{"amount":"1000","decimals":6,"uiAmountString":"0.001"}}}`))
	}))
	defer srv.Close()

	decimals, err := newTestClient(srv.URL, 0).GetMintDecimals(context.Background(), mint)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), decimals)
}

func TestRateLimiterHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"value":{"decimals":9}}}`))
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Timeout: time.Second, RateLimit: 0.01})

	// first call consumes the only token
	_, err := c.GetMintDecimals(context.Background(), solana.NewWallet().PublicKey())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.GetMintDecimals(ctx, solana.NewWallet().PublicKey())
	require.Error(t, err)
}
