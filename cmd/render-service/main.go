package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/api"
	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/config"
	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/janitor"
	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/mail"
	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/render"
	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/store"
	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/template"
)

func main() {
	configFile := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Templates are immutable process state; a required miss is fatal.
	templates, err := template.NewStore(cfg.TemplatesDir, cfg.AssetsDir)
	if err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}

	st, err := store.NewStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open run store: %v", err)
	}
	defer st.Close()

	var mailer *mail.Mailer
	if cfg.SMTPConfigured() {
		mailer = mail.NewMailer(cfg.SMTP)
		log.Printf("SMTP delivery enabled via %s:%d", cfg.SMTP.Host, cfg.SMTP.Port)
	} else {
		log.Println("SMTP not configured, document delivery disabled")
	}

	backend, err := render.NewBackend(cfg.Renderer)
	if err != nil {
		log.Fatalf("Failed to create render backend: %v", err)
	}
	defer backend.Close()
	log.Printf("Render backend: %s", backend.Name())

	j, err := janitor.New(st, cfg.JanitorSchedule, cfg.RunRetention)
	if err != nil {
		log.Fatalf("Failed to create janitor: %v", err)
	}
	if err := j.Start(); err != nil {
		log.Fatalf("Failed to start janitor: %v", err)
	}
	defer j.Stop()

	handler := api.NewHandler(templates, backend, st, mailer, cfg.Renderer)

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	log.Printf("Received %s, shutting down", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARNING: graceful shutdown failed: %v", err)
	}
}
