package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	awspkg "github.com/aredondocharro/ClothingStore-sub001/pkg/aws"
	ddb "github.com/aredondocharro/ClothingStore-sub001/pkg/dynamodb"
	"github.com/aredondocharro/ClothingStore-sub001/services/common/logger"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/database"
	"github.com/aredondocharro/ClothingStore-sub001/services/inventory-service/repository"
)

func main() {
	pg := database.PostgresConfig{SSLMode: "disable", TimeZone: "UTC"}
	var table, endpoint string
	var batch int
	flag.StringVar(&pg.Host, "pg-host", envOr("POSTGRES_HOST", "localhost"), "PostgreSQL host")
	flag.StringVar(&pg.Port, "pg-port", envOr("POSTGRES_PORT", "5432"), "PostgreSQL port")
	flag.StringVar(&pg.User, "pg-user", os.Getenv("POSTGRES_USER"), "PostgreSQL user")
	flag.StringVar(&pg.Password, "pg-password", os.Getenv("POSTGRES_PASSWORD"), "PostgreSQL password")
	flag.StringVar(&pg.DBName, "pg-db", envOr("POSTGRES_DB", "inventory"), "PostgreSQL database")
	flag.StringVar(&table, "table", envOr("DDB_TABLE_INVENTORY", "Inventory"), "DynamoDB table name")
	flag.StringVar(&endpoint, "endpoint", os.Getenv("DYNAMODB_ENDPOINT"), "DynamoDB endpoint override")
	flag.IntVar(&batch, "batch", 200, "items read per page")
	flag.Parse()

	log := logger.Initialize(envOr("APP_ENV", "development")).With(zap.String("tool", "migrate-pg-to-ddb"))
	defer func() { _ = log.Sync() }()

	if pg.User == "" || pg.Password == "" {
		log.Fatal("POSTGRES_USER and POSTGRES_PASSWORD must be set or provided via flags")
	}

	ctx := context.Background()
	db, err := database.ConnectPostgres(ctx, log, pg)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer func() { _ = database.Close(db) }()

	awsCfg, err := awspkg.LoadAWSConfig(ctx)
	if err != nil {
		log.Fatal("aws config", zap.Error(err))
	}
	client := ddb.NewClientFromConfig(awsCfg, endpoint)
	if endpoint != "" {
		if err := ddb.CreateTableIfNotExists(ctx, client, table, time.Minute); err != nil {
			log.Fatal("create table", zap.Error(err))
		}
	}

	stats, err := migrate(ctx, repository.NewGormStore(db), repository.NewDynamoStore(client, table), batch, log)
	if err != nil {
		log.Fatal("migration aborted", zap.Error(err), zap.Int("items", stats.Items))
	}
	fmt.Printf("Migration complete. items=%d reservations=%d skipped=%d failed=%d\n",
		stats.Items, stats.Reservations, stats.Skipped, stats.Failed)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
