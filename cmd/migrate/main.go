package main

import (
	"context"
	"time"

	"courtbook/internal/bookings/ledger"
	mongoMigration "courtbook/internal/migrations/mongo"
	"courtbook/pkg/config"
)

const JobName = "migrate"

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	cfg := config.Load(JobName)
	cfg.SetStore()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting migration job", "backend", cfg.StorageBackend)
	if err := migrate(ctx, cfg); err != nil {
		cfg.GracefulShutdown()
		cfg.Log.Fatal("Migration failed", "backend", cfg.StorageBackend, "error", err)
	}
	cfg.Log.Info("Migration completed successfully")
}

func migrate(ctx context.Context, cfg *config.Config) error {
	switch cfg.StorageBackend {
	case config.BackendMongo:
		return mongoMigration.RunMigration(ctx, cfg.Client.Mongo, cfg.MongoDatabaseName, cfg.Log)
	case config.BackendPostgres:
		return ledger.MigratePostgres(ctx, cfg.Client.Postgres)
	default:
		cfg.Log.Info("Memory backend has no schema, nothing to migrate")
		return nil
	}
}
