package wallet

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/vault/api"

	"dex-market-bot/internal/logging"
)

// VaultConfig configures wallet key-material loading from HashiCorp Vault
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	SecretPath string `json:"secret_path"` // KV v2 path holding the wallet set
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// VaultSource loads wallet key material from Vault. Key generation and
// storage are owned elsewhere; this only reads an existing wallet set.
type VaultSource struct {
	client *api.Client
	config VaultConfig
	logger *logging.Logger
}

// NewVaultSource creates a Vault-backed wallet source
func NewVaultSource(cfg VaultConfig, logger *logging.Logger) (*VaultSource, error) {
	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{CACert: cfg.CACert}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &VaultSource{
		client: client,
		config: cfg,
		logger: logger.WithComponent("vault-wallets"),
	}, nil
}

// LoadWallets reads the wallet set stored under the configured secret path.
// The secret's "wallets" field holds a JSON array of Info records.
func (s *VaultSource) LoadWallets(ctx context.Context) ([]Info, error) {
	secret, err := s.client.Logical().ReadWithContext(ctx, s.config.SecretPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallet secret: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no wallet secret at %s", s.config.SecretPath)
	}

	// KV v2 nests payload under "data"
	data := secret.Data
	if nested, ok := data["data"].(map[string]interface{}); ok {
		data = nested
	}

	raw, ok := data["wallets"]
	if !ok {
		return nil, fmt.Errorf("wallet secret at %s has no wallets field", s.config.SecretPath)
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to re-encode wallet payload: %w", err)
	}

	var payload []struct {
		PublicKey    string  `json:"public_key"`
		PrivateKey   string  `json:"private_key"`
		Kind         string  `json:"kind"`
		Balance      float64 `json:"balance"`
		TokenBalance float64 `json:"token_balance"`
	}
	if err := json.Unmarshal(encoded, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode wallet payload: %w", err)
	}

	wallets := make([]Info, 0, len(payload))
	for _, p := range payload {
		if p.PublicKey == "" {
			continue
		}
		wallets = append(wallets, Info{
			PublicKey:    p.PublicKey,
			PrivateKey:   p.PrivateKey,
			Kind:         Kind(p.Kind),
			Balance:      p.Balance,
			TokenBalance: p.TokenBalance,
		})
	}

	s.logger.Info("Wallets loaded from vault", "count", len(wallets))
	return wallets, nil
}
