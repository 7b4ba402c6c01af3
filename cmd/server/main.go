package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jw6ventures/calpicker/internal/config"
	"github.com/jw6ventures/calpicker/internal/dom"
	"github.com/jw6ventures/calpicker/internal/http"
	"github.com/jw6ventures/calpicker/internal/metrics"
	"github.com/jw6ventures/calpicker/internal/picker"
	"github.com/jw6ventures/calpicker/internal/presets"
	"github.com/jw6ventures/calpicker/internal/session"
	"github.com/jw6ventures/calpicker/internal/ui"
)

func main() {
	log.Println("Starting CalPicker server...")
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var preset *presets.File
	if cfg.PresetsFile != "" {
		preset, err = presets.LoadFrom(cfg.PresetsFile)
		if err != nil {
			log.Fatalf("failed to load presets: %v", err)
		}
		log.Printf("loaded %d anchors and %d pickers from %s", len(preset.Anchors), len(preset.Pickers), cfg.PresetsFile)
	}

	opts := session.Options{
		Location: cfg.Location,
		Observer: func() picker.Observer { return metrics.NewPickerObserver() },
		OnCount:  metrics.SetSessions,
	}
	if preset != nil {
		opts.Seed = func(page *dom.Page, reg *picker.Registry) error {
			env := presets.Env{Location: cfg.Location, Decorate: ui.LogCallbacks}
			if _, err := presets.Apply(preset, page, reg, env); err != nil {
				return fmt.Errorf("apply presets: %w", err)
			}
			return nil
		}
	}
	sessions := session.NewManager(cfg, opts)
	defer sessions.Close()

	ready := func(context.Context) error {
		if cfg.PresetsFile == "" {
			return nil
		}
		_, err := os.Stat(cfg.PresetsFile)
		return err
	}

	r := httpserver.NewRouter(cfg, sessions, ready)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
