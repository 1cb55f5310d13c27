package wallet

import (
	"bufio"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// ParsePrivateKey accepts a base58-encoded 64-byte secret key or a solana-keygen JSON array.
func ParsePrivateKey(s string) (solana.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("wallet: empty private key")
	}

	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, fmt.Errorf("wallet: invalid JSON private key: %w", err)
		}
		b := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("wallet: invalid byte at %d: %d", i, v)
			}
			b[i] = byte(v)
		}
		return fromRaw(b)
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid base58 private key: %w", err)
	}
	return fromRaw(raw)
}

func fromRaw(b []byte) (solana.PrivateKey, error) {
	if len(b) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(b))
	}
	// the trailing 32 bytes must be the public key of the leading seed
	derived := ed25519.NewKeyFromSeed(b[:ed25519.SeedSize])
	if !derived.Equal(ed25519.PrivateKey(b)) {
		return nil, fmt.Errorf("wallet: public key half does not match secret seed")
	}
	return solana.PrivateKey(ed25519.PrivateKey(b)), nil
}

// LoadAccounts reads one secret key per line. Blank lines and lines starting with
// '#' are skipped; file order is preserved.
func LoadAccounts(path string) ([]solana.PrivateKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open accounts file: %w", err)
	}
	defer f.Close()

	var accounts []solana.PrivateKey

	sc := bufio.NewScanner(f)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, err := ParsePrivateKey(line)
		if err != nil {
			return nil, fmt.Errorf("accounts file %s line %d: %w", path, lineNo, err)
		}
		accounts = append(accounts, key)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}
	if len(accounts) == 0 {
		return nil, fmt.Errorf("accounts file %s contains no keys", path)
	}

	return accounts, nil
}
