package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/limit-order-batcher/internal/config"
)

const (
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	solMint  = "So11111111111111111111111111111111111111112"
)

type countingServer struct {
	*httptest.Server
	hits int32
}

func newCountingServer(t *testing.T) *countingServer {
	t.Helper()
	cs := &countingServer{}
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&cs.hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(cs.Close)
	return cs
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func writeAccounts(t *testing.T, dir string, keys ...solana.PrivateKey) string {
	t.Helper()
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k.String()
	}
	return writeFile(t, dir, "accounts.txt", strings.Join(lines, "\n")+"\n")
}

func runBatcher(t *testing.T, args ...string) (int, string) {
	t.Helper()
	var out bytes.Buffer
	code := run(context.Background(), append([]string{"-env", ""}, args...), &out)
	return code, out.String()
}

func TestRun_ConfigErrorsMakeNoNetworkCalls(t *testing.T) {
	srv := newCountingServer(t)
	dir := t.TempDir()
	accounts := writeAccounts(t, dir, solana.NewWallet().PrivateKey)

	cases := map[string]string{
		"missing rpc_url": fmt.Sprintf(`
accounts_path = %q
order_api_url = %q

[input_mints.%s]
amount_range = [1, 5]
`, accounts, srv.URL, usdcMint),

		"missing accounts_path": fmt.Sprintf(`
rpc_url = %q
order_api_url = %q

[input_mints.%s]
amount_range = [1, 5]
`, srv.URL, srv.URL, usdcMint),

		"no mint tables": fmt.Sprintf(`
rpc_url = %q
accounts_path = %q
order_api_url = %q
`, srv.URL, accounts, srv.URL),

		"empty output table": fmt.Sprintf(`
rpc_url = %q
accounts_path = %q
order_api_url = %q

[input_mints.%s]
amount_range = [1, 5]
`, srv.URL, accounts, srv.URL, usdcMint),
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.toml", body)

			code, out := runBatcher(t, "-config", path)
			assert.Equal(t, 1, code)
			assert.Contains(t, out, "invalid configuration")
			assert.Equal(t, int32(0), atomic.LoadInt32(&srv.hits))
		})
	}
}

func TestRun_MissingConfigFile(t *testing.T) {
	code, out := runBatcher(t, "-config", filepath.Join(t.TempDir(), "nope.toml"))
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "not found")
}

func TestRun_BadFlag(t *testing.T) {
	code, _ := runBatcher(t, "-no-such-flag")
	assert.Equal(t, 2, code)
}

// fakeChain answers the three JSON-RPC methods a batch uses.
type fakeChain struct {
	mu   sync.Mutex
	sent []*solana.Transaction
}

func (f *fakeChain) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     int               `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var result any
	switch req.Method {
	case "getTokenSupply":
		result = map[string]any{"context": map[string]any{"slot": 1}, "value": map[string]any{"amount": "1", "decimals": 6}}
	case "getLatestBlockhash":
		result = map[string]any{"context": map[string]any{"slot": 1}, "value": map[string]any{"blockhash": solana.Hash{9}.String(), "lastValidBlockHeight": 10}}
	case "sendTransaction":
		var encoded string
		_ = json.Unmarshal(req.Params[0], &encoded)
		raw, _ := base64.StdEncoding.DecodeString(encoded)
		tx, err := solana.TransactionFromBytes(raw)
		if err != nil || tx.VerifySignatures() != nil {
			_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "error": map[string]any{"code": -32003, "message": "signature verification failure"}})
			return
		}
		f.mu.Lock()
		f.sent = append(f.sent, tx)
		f.mu.Unlock()
		result = tx.Signatures[0].String()
	default:
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "error": map[string]any{"code": -32601, "message": "method not found"}})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
}

// orderAPI returns a transaction that needs the owner's signature, or rejects
// every order when reject is set.
func orderAPI(t *testing.T, reject string) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if reject != "" {
			_ = json.NewEncoder(w).Encode(map[string]string{"error": reject})
			return
		}

		var body struct {
			Owner string `json:"owner"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		owner := solana.MustPublicKeyFromBase58(body.Owner)
		ix := solana.NewInstruction(solana.NewWallet().PublicKey(), solana.AccountMetaSlice{
			solana.Meta(owner).WRITE().SIGNER(),
			solana.Meta(solana.NewWallet().PublicKey()).WRITE(),
		}, []byte{7})
		tx, err := solana.NewTransaction([]solana.Instruction{ix}, solana.Hash{}, solana.TransactionPayer(owner))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		raw, err := tx.MarshalBinary()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"tx":          base64.StdEncoding.EncodeToString(raw),
			"orderPubkey": solana.NewWallet().PublicKey().String(),
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func batchConfig(rpcURL, orderURL, accounts string) string {
	return fmt.Sprintf(`
rpc_url = %q
accounts_path = %q
order_api_url = %q
delay = "0s"
rpc_timeout = "5s"
http_timeout = "5s"

[input_mints.%s]
amount_range = [1, 5]

[output_mints.%s]
amount_range = [2, 10]
`, rpcURL, accounts, orderURL, usdcMint, solMint)
}

func TestRun_SubmitsEveryAccount(t *testing.T) {
	chain := &fakeChain{}
	rpcSrv := httptest.NewServer(chain)
	defer rpcSrv.Close()
	orders, orderHits := orderAPI(t, "")

	dir := t.TempDir()
	a, b := solana.NewWallet().PrivateKey, solana.NewWallet().PrivateKey
	accounts := writeAccounts(t, dir, a, b)
	path := writeFile(t, dir, "config.toml", batchConfig(rpcSrv.URL, orders.URL, accounts))

	code, out := runBatcher(t, "-config", path)
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "batch finished")

	assert.Equal(t, int32(2), atomic.LoadInt32(orderHits))
	require.Len(t, chain.sent, 2)
	assert.True(t, chain.sent[0].Message.AccountKeys[0].Equals(a.PublicKey()))
	assert.True(t, chain.sent[1].Message.AccountKeys[0].Equals(b.PublicKey()))
	assert.Equal(t, solana.Hash{9}, chain.sent[0].Message.RecentBlockhash)
}

func TestRun_RejectedOrdersAreNotBroadcast(t *testing.T) {
	chain := &fakeChain{}
	rpcSrv := httptest.NewServer(chain)
	defer rpcSrv.Close()
	orders, orderHits := orderAPI(t, "insufficient balance")

	dir := t.TempDir()
	accounts := writeAccounts(t, dir, solana.NewWallet().PrivateKey, solana.NewWallet().PrivateKey)
	path := writeFile(t, dir, "config.toml", batchConfig(rpcSrv.URL, orders.URL, accounts))

	code, out := runBatcher(t, "-config", path)
	assert.Equal(t, 0, code, out)
	assert.Contains(t, out, "insufficient balance")
	assert.Equal(t, int32(2), atomic.LoadInt32(orderHits))
	assert.Empty(t, chain.sent)
}

func TestRun_DryRunFlag(t *testing.T) {
	chain := &fakeChain{}
	rpcSrv := httptest.NewServer(chain)
	defer rpcSrv.Close()
	orders, orderHits := orderAPI(t, "")

	dir := t.TempDir()
	accounts := writeAccounts(t, dir, solana.NewWallet().PrivateKey)
	path := writeFile(t, dir, "config.toml", batchConfig(rpcSrv.URL, orders.URL, accounts))

	code, out := runBatcher(t, "-config", path, "-dry-run")
	assert.Equal(t, 0, code, out)
	assert.Equal(t, int32(1), atomic.LoadInt32(orderHits))
	assert.Empty(t, chain.sent)
}

func TestRun_UnreachableRPCAborts(t *testing.T) {
	rpcSrv := httptest.NewServer(http.NotFoundHandler())
	rpcURL := rpcSrv.URL
	rpcSrv.Close()
	orders, orderHits := orderAPI(t, "")

	dir := t.TempDir()
	accounts := writeAccounts(t, dir, solana.NewWallet().PrivateKey, solana.NewWallet().PrivateKey)
	path := writeFile(t, dir, "config.toml", batchConfig(rpcURL, orders.URL, accounts))

	code, out := runBatcher(t, "-config", path)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "batch aborted")
	assert.Equal(t, int32(0), atomic.LoadInt32(orderHits), "decimals lookup fails before the first order")
}

func TestRun_HaltRequiresRedis(t *testing.T) {
	dir := t.TempDir()
	accounts := writeAccounts(t, dir, solana.NewWallet().PrivateKey)
	path := writeFile(t, dir, "config.toml", batchConfig("http://127.0.0.1:1", "http://127.0.0.1:1", accounts))

	code, out := runBatcher(t, "-config", path, "-halt")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "journal.redis_addr is required")

	code, _ = runBatcher(t, "-config", path, "-switches")
	assert.Equal(t, 1, code)
}

func TestRun_HaltResumeAndList(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 1})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})

	dir := t.TempDir()
	accounts := writeAccounts(t, dir, solana.NewWallet().PrivateKey)
	path := writeFile(t, dir, "config.toml", batchConfig("http://127.0.0.1:1", "http://127.0.0.1:1", accounts)+fmt.Sprintf(`
[journal]
redis_addr = %q
redis_db = 1
`, addr))

	code, out := runBatcher(t, "-config", path, "-halt", "-reason", "maintenance")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "halt switch on")
	assert.Contains(t, out, "maintenance")

	code, out = runBatcher(t, "-config", path, "-switches")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "switch=batch.halt")

	code, out = runBatcher(t, "-config", path, "-resume")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "halt switch cleared")
	assert.Contains(t, out, "no control switches set")

	exists, err := client.Exists(ctx, "control:batch.halt").Result()
	require.NoError(t, err)
	assert.Zero(t, exists)

	code, _ = runBatcher(t, "-config", path, "-halt", "-resume")
	assert.Equal(t, 2, code)
}

func TestSendOptions(t *testing.T) {
	opts := sendOptions(&config.Config{})
	assert.False(t, opts.SkipPreflight)
	assert.Equal(t, "processed", opts.PreflightCommitment)

	opts = sendOptions(&config.Config{SkipPreflight: true, Commitment: "finalized"})
	assert.True(t, opts.SkipPreflight)
	assert.Equal(t, "finalized", opts.PreflightCommitment)
}
