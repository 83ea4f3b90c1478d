package secretmanager

import (
	"context"
	"fmt"
	"time"

	vault "github.com/hashicorp/vault-client-go"
	"go.uber.org/fx"
)

var Module = fx.Module("secretmanager", fx.Provide(ProvideVault))

// DefaultMount is the kv v2 engine holding the engine credentials.
const DefaultMount = "secret"

// ProvideVault builds a client from VAULT_ADDR and VAULT_TOKEN.
func ProvideVault() (*vault.Client, error) {
	return vault.New(
		vault.WithEnvironment(),
		vault.WithRequestTimeout(10*time.Second),
	)
}

// Secrets is a flat view over a kv v2 secret.
type Secrets map[string]any

// String returns the value of key, or "" when absent or not a string.
func (s Secrets) String(key string) string {
	if v, ok := s[key].(string); ok {
		return v
	}
	return ""
}

// ReadKV reads the latest version of path from the kv v2 mount.
func ReadKV(ctx context.Context, client *vault.Client, mount, path string) (Secrets, error) {
	if mount == "" {
		mount = DefaultMount
	}

	resp, err := client.Secrets.KvV2Read(ctx, path, vault.WithMountPath(mount))
	if err != nil {
		return nil, fmt.Errorf("read secret %s/%s: %w", mount, path, err)
	}
	return Secrets(resp.Data.Data), nil
}
