package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/arklim/user-directory/internal/infra/app"
	"github.com/arklim/user-directory/internal/infra/config"
)

func main() {
	if files, err := loadEnvFiles(); err != nil {
		log.Fatalf("user-directory: %v", err)
	} else if len(files) > 0 {
		log.Printf("user-directory: loaded environment from %v", files)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("user-directory: load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	directory, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("user-directory: init: %v", err)
	}

	if err := directory.Run(ctx); err != nil {
		log.Printf("user-directory stopped: %v", err)
		os.Exit(1)
	}
}
