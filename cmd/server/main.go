package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/modkit/chatstream/internal/handlers"
	"github.com/modkit/chatstream/internal/services"
	"gopkg.in/yaml.v3"
)

func main() {
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
	}
	cfgPath := filepath.Join(cfgDir, "chatstream")
	if err := os.MkdirAll(cfgPath, 0755); err != nil {
		log.Fatal(fmt.Errorf("error creating config directory: %w", err))
	}

	cfgFilePath := filepath.Join(cfgPath, "config.yaml")
	cfgFile, err := os.Open(cfgFilePath)
	if err != nil {
		log.Fatal(fmt.Errorf("error opening config file: %w", err))
	}
	defer cfgFile.Close()

	cfg := config{}
	if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		log.Fatal(fmt.Errorf("error decoding config file: %w", err))
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	llm, err := cfg.LLM.llm(logger)
	if err != nil {
		log.Fatal(err)
	}
	titleGen, err := cfg.LLM.titleGen(logger)
	if err != nil {
		log.Fatal(err)
	}

	dbPath := filepath.Join(cfgPath, "store.db")
	boltDB, err := services.NewBoltDB(dbPath)
	if err != nil {
		log.Fatal(err)
	}
	defer boltDB.Close()

	m := handlers.NewMain(llm, titleGen, boltDB, cfg.SystemPrompt, cfg.TitleGeneratorPrompt, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", m.HandleChat)
	mux.HandleFunc("GET /api/conversations", m.HandleConversations)
	mux.HandleFunc("POST /api/conversations", m.HandleSaveTurn)
	mux.HandleFunc("GET /api/conversations/{id}", m.HandleConversation)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		log.Println("Server starting on :" + cfg.Port)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		log.Printf("Server error: %v", err)

	case sig := <-shutdown:
		log.Printf("Start shutdown, signal: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Graceful shutdown failed: %v", err)
			if err := srv.Close(); err != nil {
				log.Printf("Forcing server close: %v", err)
			}
		}
	}
}
