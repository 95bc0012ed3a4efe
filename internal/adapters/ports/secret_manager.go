package ports

import (
	"context"
)

// Secret represents a retrieved secret with metadata
type Secret struct {
	Value     string            // The secret value (e.g., database password)
	Version   string            // Secret version identifier
	Metadata  map[string]string // Additional secret metadata
	CreatedAt string            // When this version was created
}

// SecretManagerAdapter defines the port for retrieving secrets from a secret
// management service. The service uses it for the database password and the
// cron endpoint secret. Supports multiple backends: AWS Secrets Manager,
// HashiCorp Vault, and a local filesystem store for development.
// Implementation is responsible for:
//   - Authentication with the secret manager service
//   - Caching secrets appropriately (with TTL)
type SecretManagerAdapter interface {
	// GetSecret retrieves a secret by its path/name
	// Path format depends on implementation:
	//   - AWS: "commission-service/db/password"
	//   - Vault: "secret/data/commission-service/db"
	// Returns error if the secret does not exist, permissions are
	// insufficient, or the secret manager service is unavailable.
	GetSecret(ctx context.Context, path string) (*Secret, error)

	// PutSecret creates or updates a secret (bootstrap/admin operations).
	// Returns the new version identifier.
	PutSecret(ctx context.Context, path string, value string, metadata map[string]string) (version string, err error)
}
