package main

import (
	"fmt"
	"os"

	"fraudwatch/internal/config"
	"fraudwatch/internal/crm"
	"fraudwatch/internal/logger"
)

// Serves the CRM lookup tools over MCP streamable HTTP.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging)

	store, err := crm.Open(cfg.CRM.DBPath)
	if err != nil {
		log.Error("unable to open crm store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	srv := crm.NewServer(store, log)
	if err := srv.Start(cfg.CRM.Listen); err != nil {
		log.Error("tool server exited", "error", err)
		os.Exit(1)
	}
}
