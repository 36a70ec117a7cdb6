// Package secrets sources exchange credentials from HashiCorp Vault so they
// never have to sit in the config file on live deployments.
package secrets

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"
)

// Credentials are the exchange API credentials held in Vault.
type Credentials struct {
	APIKey    string
	APISecret string
}

// Config holds Vault connectivity settings.
type Config struct {
	Address    string
	Token      string
	MountPath  string // KV v2 mount, usually "secret"
	SecretPath string // path under the mount holding api_key / api_secret
}

// VaultClient reads credentials from a KV v2 secret engine.
type VaultClient struct {
	client *api.Client
	config Config
}

func NewVaultClient(cfg Config) (*VaultClient, error) {
	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &VaultClient{client: client, config: cfg}, nil
}

// FetchCredentials reads api_key and api_secret from the configured path.
func (c *VaultClient) FetchCredentials(ctx context.Context) (*Credentials, error) {
	secret, err := c.client.KVv2(c.config.MountPath).Get(ctx, c.config.SecretPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s from vault: %w",
			c.config.MountPath, c.config.SecretPath, err)
	}

	creds := &Credentials{}
	if v, ok := secret.Data["api_key"].(string); ok {
		creds.APIKey = v
	}
	if v, ok := secret.Data["api_secret"].(string); ok {
		creds.APISecret = v
	}
	if creds.APIKey == "" || creds.APISecret == "" {
		return nil, fmt.Errorf("vault secret %s/%s is missing api_key or api_secret",
			c.config.MountPath, c.config.SecretPath)
	}
	return creds, nil
}
