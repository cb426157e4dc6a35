// API-only entrypoint: serves the read-only JSON view over an existing data
// directory without connecting a bot.
package main

import (
	"log"
	"os"

	"dao-governance/api"
	"dao-governance/client"
	"dao-governance/identity"
	"dao-governance/service"
	"dao-governance/storage"
)

func main() {
	dataDir := os.Getenv("DAO_DATA_DIR")
	if dataDir == "" {
		dataDir = "data"
	}
	addr := os.Getenv("API_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	deriver, err := identity.NewDeriver([]byte(os.Getenv("DAO_SECRET_SEED")))
	if err != nil {
		log.Fatalf("Invalid DAO_SECRET_SEED: %v", err)
	}

	store, err := storage.OpenSQLiteStore(dataDir, storage.DefaultSlotSize)
	if err != nil {
		log.Fatalf("Failed to open account store: %v", err)
	}
	defer store.Close()

	svc := service.NewGovernanceService(store, nil, deriver)
	server := api.NewServer(client.New(store), svc, addr)

	log.Printf("Starting governance API on %s...", addr)
	if err := server.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
