package main

import (
	"context"
	"log"
	"net"

	"github.com/rawblock/eventlog-pretsa/internal/api"
	"github.com/rawblock/eventlog-pretsa/internal/config"
	"github.com/rawblock/eventlog-pretsa/internal/coordinator"
	"github.com/rawblock/eventlog-pretsa/internal/db"
	"github.com/rawblock/eventlog-pretsa/internal/engine"
)

func main() {
	log.Println("Starting eventlog-pretsa sanitization engine...")

	cfg := config.Load()

	var dbStore *db.Store
	if cfg.DatabaseURL != "" {
		conn, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: Failed to connect to PostgreSQL, continuing without persisting run summaries. Error: %v", err)
		} else {
			defer conn.Close()
			if err := conn.InitSchema(); err != nil {
				log.Printf("Warning: DB schema init failed: %v", err)
			}
			dbStore = conn
		}
	} else {
		log.Println("DATABASE_URL not set — running without an audit store")
	}

	wsHub := api.NewHub()
	go wsHub.Run()

	if cfg.CoordinatorAddr != "" {
		ln, err := net.Listen("tcp", cfg.CoordinatorAddr)
		if err != nil {
			log.Printf("Warning: failed to start coordinator listener on %s: %v", cfg.CoordinatorAddr, err)
		} else {
			coord := coordinator.New(engine.ModeParams{K: 3, T: 0.2, Mode: engine.ModeStandard}, 0)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() {
				if err := coord.Accept(ctx, ln); err != nil {
					log.Printf("coordinator accept loop stopped: %v", err)
				}
			}()
			log.Printf("Multi-holder coordinator listening on %s", cfg.CoordinatorAddr)
		}
	}

	r := api.SetupRouter(dbStore, wsHub)

	log.Printf("Engine running on :%s\n", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
