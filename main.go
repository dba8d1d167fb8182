package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pathakanu/memorymate/internal/api"
	"github.com/pathakanu/memorymate/internal/auth"
	"github.com/pathakanu/memorymate/internal/bot"
	"github.com/pathakanu/memorymate/internal/calendar"
	"github.com/pathakanu/memorymate/internal/calendar/caldav"
	"github.com/pathakanu/memorymate/internal/config"
	"github.com/pathakanu/memorymate/internal/database"
	myopenai "github.com/pathakanu/memorymate/internal/openai"
	"github.com/pathakanu/memorymate/internal/reminder"
	"github.com/pathakanu/memorymate/internal/scheduler"
	"github.com/pathakanu/memorymate/internal/session"
	"github.com/pathakanu/memorymate/internal/store"
	"github.com/pathakanu/memorymate/internal/twilio"
)

func main() {
	logger := log.New(os.Stdout, "[memorymate] ", log.LstdFlags|log.Lshortfile)

	configPath := os.Getenv("MEMORYMATE_CONFIG")
	if configPath == "" {
		configPath = config.DefaultConfigPath
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("config load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid config: %v", err)
	}

	db, err := database.New(cfg.Database.URL, cfg.Database.SQLitePath)
	if err != nil {
		logger.Fatalf("database init failed: %v", err)
	}

	reminders := store.NewReminderStore(db, logger)
	journal := store.NewJournalStore(db, logger)
	profiles := store.NewProfileStore(db, logger)
	credentials := store.NewCredentialStore(db, logger)

	sessions := session.NewStore()
	authService := auth.New(db, profiles, sessions, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, logger)

	gateway := calendar.NewGateway(newCalendarBackend(cfg, logger), calendar.Platform(cfg.Calendar.Platform), cfg.Calendar.Title, cfg.Calendar.Color, logger)
	initCalendars(gateway, logger)

	coordinator := reminder.NewCoordinator(sessions, reminders, gateway, cfg.Sync.WindowDays, logger)
	unsubscribe := sessions.Subscribe(func(event session.Event, current *session.Session) {
		if current == nil || event == session.EventSignedOut {
			return
		}
		go func() {
			if _, err := coordinator.Refresh(context.Background()); err != nil {
				logger.Printf("refresh after %s: %v", event, err)
			}
		}()
	})
	defer unsubscribe()
	sessions.Init(nil)

	openAIClient := myopenai.Load(context.Background(), credentials, cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.MaxTokens, logger)
	twilioClient := twilio.New(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.WhatsAppNumber, logger)
	chat := bot.New(sessions, coordinator, gateway, openAIClient, cfg.LocalTimezone, cfg.Twilio.NotifyTo, logger)

	jobs := scheduler.New(scheduler.Config{
		RefreshSpec: cfg.Sync.Interval,
		DigestSpec:  cfg.Digest.Schedule,
		NotifyTo:    cfg.Twilio.NotifyTo,
		Location:    cfg.LocalTimezone,
	}, coordinator, twilioClient, logger)
	if err := jobs.Start(); err != nil {
		logger.Fatalf("scheduler start: %v", err)
	}

	server := &http.Server{
		Addr: ":" + cfg.Server.Port,
		Handler: api.NewRouter(api.Deps{
			Auth:      authService,
			Sessions:  sessions,
			Reminders: coordinator,
			Journal:   journal,
			Profiles:  profiles,
			Chat:      chat,
			Logger:    logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Printf("server starting on :%s", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server error: %v", err)
		}
	}()

	waitForShutdown(server, jobs, authService, logger)
}

func newCalendarBackend(cfg *config.Config, logger *log.Logger) calendar.Backend {
	if cfg.CalDAVConfigured() {
		logger.Printf("calendar: using CalDAV account %s at %s", cfg.CalDAV.Username, cfg.CalDAV.URL)
		return caldav.New(cfg.CalDAV.URL, cfg.CalDAV.Username, cfg.CalDAV.Password)
	}
	logger.Printf("calendar: CalDAV not configured, using in-memory calendar store")
	return calendar.NewMemoryBackend()
}

// initCalendars resolves the application calendar in both partitions.
func initCalendars(gateway *calendar.Gateway, logger *log.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, entityType := range []calendar.EntityType{calendar.EntityEvent, calendar.EntityReminder} {
		if _, err := gateway.EnsureCreated(ctx, entityType); err != nil {
			logger.Printf("calendar: %s calendar unavailable: %v", entityType, err)
		}
	}
	logger.Printf("calendar: %s", gateway.DescribeState())
}

func waitForShutdown(server *http.Server, jobs *scheduler.Scheduler, authService *auth.Service, logger *log.Logger) {
	stopCtx := make(chan os.Signal, 1)
	signal.Notify(stopCtx, syscall.SIGINT, syscall.SIGTERM)
	<-stopCtx
	logger.Println("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("server shutdown error: %v", err)
	}
	jobs.Stop()
	authService.SignOut()
}
