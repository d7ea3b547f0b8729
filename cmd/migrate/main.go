package main

import (
	"context"
	"time"

	"github.com/fekuna/omnipos-ledger-service/config"
	"github.com/fekuna/omnipos-ledger-service/migrations"
	"github.com/fekuna/omnipos-ledger-service/pkg/database/postgres"
	"github.com/fekuna/omnipos-ledger-service/pkg/logger"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadEnv()

	appLogger := logger.NewZapLogger(&logger.ZapLoggerConfig{
		Encoding:          "console",
		Level:             "info",
		DisableStacktrace: true,
	})
	defer appLogger.Sync()

	db, err := postgres.NewPostgres(&postgres.Config{
		Host:            cfg.Postgres.Host,
		Port:            cfg.Postgres.Port,
		User:            cfg.Postgres.User,
		Password:        cfg.Postgres.Password,
		DBName:          cfg.Postgres.DBName,
		SSLMode:         cfg.Postgres.SSLMode,
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	applied, err := postgres.Migrate(ctx, db, migrations.FS)
	if err != nil {
		appLogger.Fatal("Migration failed", zap.Strings("applied", applied), zap.Error(err))
	}
	if len(applied) == 0 {
		appLogger.Info("Schema is up to date")
		return
	}
	appLogger.Info("Migrations applied", zap.Strings("versions", applied))
}
