package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/quiltmoney/quilt/internal/common"
	"github.com/quiltmoney/quilt/internal/engine"
	"github.com/quiltmoney/quilt/internal/oracle"
	"github.com/quiltmoney/quilt/internal/storage"
)

// databasePath resolves the configured database location.
func databasePath() (string, error) {
	dbPath := viper.GetString("database.path")
	if dbPath != "" {
		return os.ExpandEnv(dbPath), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "quilt", "quilt.db"), nil
}

// initStorage opens the store and brings the schema up to date.
func initStorage(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath, err := databasePath()
	if err != nil {
		return nil, err
	}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, err
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// initCorrelator wires the store and oracle gateway into a correlator.
func initCorrelator(store *storage.SQLiteStorage) (*engine.Correlator, error) {
	oracleCfg := oracle.Config{
		Provider:    viper.GetString("oracle.provider"),
		APIKey:      viper.GetString("oracle.api_key"),
		Model:       viper.GetString("oracle.model"),
		Temperature: viper.GetFloat64("oracle.temperature"),
		MaxTokens:   viper.GetInt("oracle.max_tokens"),
		Timeout:     viper.GetDuration("oracle.timeout"),
		MaxRetries:  viper.GetInt("oracle.max_retries"),
		RetryDelay:  viper.GetDuration("oracle.retry_delay"),
		RateLimit:   viper.GetInt("oracle.rate_limit"),
		CacheTTL:    viper.GetDuration("oracle.cache_ttl"),
	}
	if oracleCfg.Provider == "" {
		oracleCfg.Provider = "anthropic"
	}

	gateway, err := oracle.NewGateway(oracleCfg, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle gateway: %w", err)
	}

	engineCfg := engine.Config{
		ConfidenceThreshold: viper.GetInt("engine.confidence_threshold"),
		AmountTolerance:     viper.GetFloat64("engine.amount_tolerance"),
		PreciseWindow:       viper.GetDuration("engine.precise_window"),
		DateOnlyWindow:      viper.GetDuration("engine.date_only_window"),
		CandidateLimit:      viper.GetInt("engine.candidate_limit"),
	}

	if engineCfg.PreciseWindow < 0 || engineCfg.DateOnlyWindow < 0 {
		return nil, common.NewUserError("engine time windows must be positive durations", common.ErrInvalidConfig)
	}

	return engine.New(store, gateway, engineCfg, slog.Default()), nil
}
