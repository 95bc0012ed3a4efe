package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rideops/commission-service/internal/adapters/ports"
	"github.com/rideops/commission-service/internal/adapters/secrets"
	"github.com/rideops/commission-service/internal/config"
)

// resolveSecrets fills credentials the environment left blank from the
// configured secret backend.
// Supports:
//   - AWS Secrets Manager (production): SECRET_BACKEND=aws
//   - HashiCorp Vault: SECRET_BACKEND=vault with VAULT_ADDR and VAULT_TOKEN
//   - Local filesystem (development): SECRET_BACKEND=local
//   - No backend: credentials come from the environment directly
func resolveSecrets(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Secrets.Backend == "" {
		return nil
	}

	manager, err := initSecretManager(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if cfg.Database.PasswordSecretPath != "" {
		secret, err := manager.GetSecret(ctx, cfg.Database.PasswordSecretPath)
		if err != nil {
			return fmt.Errorf("resolve database password: %w", err)
		}
		cfg.Database.Password = secret.Value
	}

	if cfg.Server.CronSecret == "" {
		secret, err := manager.GetSecret(ctx, "commission-service/cron-secret")
		if err != nil {
			logger.Warn("Cron secret not found in secret backend, cron endpoints disabled",
				zap.Error(err),
			)
		} else {
			cfg.Server.CronSecret = secret.Value
		}
	}

	return nil
}

// initSecretManager initializes the secret manager selected by SECRET_BACKEND
func initSecretManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.SecretManagerAdapter, error) {
	switch cfg.Secrets.Backend {
	case "aws":
		awsCfg := secrets.DefaultAWSSecretsManagerConfig(cfg.Secrets.AWSRegion)
		awsCfg.Endpoint = cfg.Secrets.AWSEndpoint
		awsCfg.CacheTTL = cfg.Secrets.CacheTTL
		return secrets.NewAWSSecretsManagerAdapter(ctx, awsCfg, logger)

	case "vault":
		if cfg.Secrets.VaultAddress == "" {
			return nil, fmt.Errorf("VAULT_ADDR is required when SECRET_BACKEND=vault")
		}
		vaultCfg := secrets.DefaultVaultConfig(cfg.Secrets.VaultAddress)
		vaultCfg.Token = cfg.Secrets.VaultToken
		vaultCfg.CacheTTL = cfg.Secrets.CacheTTL
		return secrets.NewVaultAdapter(ctx, vaultCfg, logger)

	case "local":
		logger.Warn("Using local filesystem secret manager - NOT for production use!",
			zap.String("path", cfg.Secrets.LocalPath),
		)
		return secrets.NewLocalSecretManager(cfg.Secrets.LocalPath, logger), nil

	default:
		return nil, fmt.Errorf("unsupported secret backend: %s", cfg.Secrets.Backend)
	}
}
