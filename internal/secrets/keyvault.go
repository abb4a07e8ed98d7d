package secrets

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/hashicorp/go-hclog"

	"github.com/maplewood-dwh/snapcdc/internal/logging"
)

// Secret names expected in the vault.
const (
	SecretSQLConnStr  = "sqlserver-connstr"
	SecretBlobConnStr = "blob-connstr"
)

// Resolver fetches connection secrets from Azure Key Vault, falling back
// to locally configured values when the vault is unset or a lookup fails.
type Resolver struct {
	client *azsecrets.Client
	log    hclog.Logger
}

// NewResolver creates a Resolver. An empty vaultURL yields a resolver
// that always returns the fallback value.
func NewResolver(vaultURL string) (*Resolver, error) {
	if vaultURL == "" {
		return &Resolver{log: logging.GetLogger()}, nil
	}

	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}
	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}

	return &Resolver{client: client, log: logging.GetLogger()}, nil
}

// Resolve returns the named secret's current value, or fallback when Key
// Vault is not configured or the lookup fails. Lookup failures are
// warnings, not errors; the run proceeds on local configuration.
func (r *Resolver) Resolve(ctx context.Context, name, fallback string) string {
	if r.client == nil {
		return fallback
	}

	resp, err := r.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		r.log.Warn("Key Vault lookup failed, falling back to local config", "secret", name, "error", err)
		return fallback
	}
	if resp.Value == nil {
		r.log.Warn("Key Vault secret has no value, falling back to local config", "secret", name)
		return fallback
	}

	r.log.Info("Retrieved secret from Key Vault", "secret", name)
	return *resp.Value
}
