package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"huddle/api/internal/app"
	"huddle/api/internal/config"
	"huddle/api/internal/email"
	"huddle/api/internal/sched"
	"huddle/api/internal/search"
	"huddle/api/internal/session"
	"huddle/api/internal/snapshot"
	"huddle/api/internal/store"
)

func main() {
	cfg := config.Load()

	var creds session.CredentialStore
	if strings.TrimSpace(cfg.RedisURL) != "" {
		log.Printf("Using Redis for token blacklist and reset codes")
		redisStore, err := session.NewRedisStore(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer redisStore.Close()
		creds = redisStore
	} else {
		log.Printf("Using in-memory token blacklist and reset codes")
		creds = session.NewMemoryStore()
	}
	sessions := session.New(cfg.TokenSecret, cfg.TokenTTL, cfg.ResetCodeTTL, creds)

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient)

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if mailer.IsConfigured() {
		log.Printf("Email configured, reset codes will be delivered via %s", cfg.SMTPHost)
	} else {
		log.Printf("Email not configured, reset codes will not be delivered")
	}

	if err := os.MkdirAll(cfg.SnapshotDir, 0o755); err != nil {
		log.Fatalf("failed to create snapshot dir: %v", err)
	}
	snapshots := snapshot.New(cfg.SnapshotDir)

	scheduler := sched.New()
	service := app.New(cfg, store.New(), sessions, scheduler, searchService, mailer)

	snap, found, err := snapshots.Load()
	if err != nil {
		log.Printf("WARNING: snapshot load failed, starting empty: %v", err)
	} else if found {
		service.RestoreState(snap)
		log.Printf("Restored workspace state from snapshot")
	}

	stopSaver := make(chan struct{})
	go func() {
		ticker := time.NewTicker(cfg.SnapshotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := snapshots.Save(service.StateSnapshot(), "periodic snapshot"); err != nil {
					log.Printf("snapshot save failed: %v", err)
				}
			case <-stopSaver:
				return
			}
		}
	}()

	log.Printf("Huddle core running, snapshots in %s every %s", cfg.SnapshotDir, cfg.SnapshotInterval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	close(stopSaver)
	scheduler.CancelAll()
	if _, err := snapshots.Save(service.StateSnapshot(), "shutdown snapshot"); err != nil {
		log.Printf("final snapshot failed: %v", err)
	}
}
