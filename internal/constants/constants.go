package constants

import "time"

// Jupiter endpoints
const (
	CreateOrderEndpoint = "https://jup.ag/api/limit/v1/createOrder"
	QuoteEndpoint       = "https://quote-api.jup.ag/v6/quote"
)

// Redis keys
const (
	RedisKeyRecentOrders = "orders:recent"
)

// Redis Pub/Sub channels
const (
	PubSubChannelOrders = "orders:live"
)

// Limits
const (
	MaxRecentOrders = 500
)

// Throttling
const (
	// DelayBetweenAccounts is applied after loading accounts and after every account.
	DelayBetweenAccounts = 5 * time.Second
	DefaultHTTPTimeout   = 30 * time.Second
	DefaultRPCTimeout    = 30 * time.Second
)

// Well-known token mint addresses to symbols, used for log labels only.
var TokenSymbols = map[string]string{
	"So11111111111111111111111111111111111111112":  "SOL",
	"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v": "USDC",
	"Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB": "USDT",
	"mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So":  "mSOL",
	"7vfCXTUXx5WJV5JADk17DUJ4ksgau7utNKj4b963voxs": "ETH",
	"3NZ9JMVBmGAqocybic2c7LQCJScmgsAZ6vQqTDzcqmJh": "BTC",
	"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263": "BONK",
	"JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN":  "JUP",
	"4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R": "RAY",
}
