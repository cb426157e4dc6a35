package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"dao-governance/api"
	"dao-governance/bot"
	"dao-governance/client"
	"dao-governance/identity"
	"dao-governance/models"
	"dao-governance/oracle"
	"dao-governance/service"
	"dao-governance/storage"
)

type Config struct {
	SecretSeed string
	BotToken   string
	DataDir    string
	APIAddr    string
}

func loadConfig() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	config := &Config{
		SecretSeed: os.Getenv("DAO_SECRET_SEED"),
		BotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		DataDir:    os.Getenv("DAO_DATA_DIR"),
		APIAddr:    os.Getenv("API_ADDR"),
	}
	if config.DataDir == "" {
		config.DataDir = "data"
	}
	if config.APIAddr == "" {
		config.APIAddr = ":8080"
	}
	return config
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	config := loadConfig()

	// A weak seed makes every derived keypair guessable, so refuse to start.
	deriver, err := identity.NewDeriver([]byte(config.SecretSeed))
	if err != nil {
		slog.Error("invalid DAO_SECRET_SEED", "error", err)
		os.Exit(1)
	}
	if config.BotToken == "" {
		slog.Error("TELEGRAM_BOT_TOKEN is required")
		os.Exit(1)
	}

	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		slog.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}

	store, err := storage.OpenSQLiteStore(config.DataDir, storage.DefaultSlotSize)
	if err != nil {
		slog.Error("failed to open account store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	balances, err := oracle.NewMockBalanceOracle(oracle.OracleConfig{
		BalancesFilePath: filepath.Join(config.DataDir, "balances.json"),
		AutoSave:         true,
	})
	if err != nil {
		slog.Error("failed to create balance oracle", "error", err)
		os.Exit(1)
	}
	if err := balances.LoadTestData(); err != nil {
		slog.Error("failed to load balance data", "error", err)
		os.Exit(1)
	}

	svc := service.NewGovernanceService(store, balances, deriver)
	queries := client.New(store)

	// The registry singleton is created on first boot; later boots find it
	// already present.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	authority := deriver.PublicKey("system:authority")
	if _, err := svc.Initialize(ctx, authority); err != nil && !errors.Is(err, models.ErrAlreadyInitialized) {
		cancel()
		slog.Error("failed to initialize registry", "error", err)
		os.Exit(1)
	}
	cancel()

	go func() {
		server := api.NewServer(queries, svc, config.APIAddr)
		if err := server.Start(); err != nil {
			slog.Error("api server stopped", "error", err)
			os.Exit(1)
		}
	}()

	tg, err := tgbotapi.NewBotAPI(config.BotToken)
	if err != nil {
		slog.Error("failed to connect to Telegram", "error", err)
		os.Exit(1)
	}
	slog.Info("bot authorized", "username", tg.Self.UserName)

	bot.Start(tg, svc, queries)
}
