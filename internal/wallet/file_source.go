package wallet

import (
	"encoding/json"
	"fmt"
	"os"
)

// LoadWalletFile reads a JSON array of wallet records from disk. This is
// the non-Vault wallet source for development and mock runs.
func LoadWalletFile(path string) ([]Info, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet file: %w", err)
	}

	var wallets []Info
	if err := json.Unmarshal(data, &wallets); err != nil {
		return nil, fmt.Errorf("failed to parse wallet file: %w", err)
	}
	if len(wallets) == 0 {
		return nil, fmt.Errorf("wallet file %s holds no wallets", path)
	}
	for i, w := range wallets {
		if w.PublicKey == "" {
			return nil, fmt.Errorf("wallet %d has no public key", i)
		}
		if w.Kind != KindWhale && w.Kind != KindRetail && w.Kind != KindBot {
			return nil, fmt.Errorf("wallet %s has unknown kind %q", w.PublicKey, w.Kind)
		}
	}
	return wallets, nil
}
