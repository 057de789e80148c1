package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/erezmus/crewdesk/internal/audit"
	"github.com/erezmus/crewdesk/internal/board"
	"github.com/erezmus/crewdesk/internal/chat"
	"github.com/erezmus/crewdesk/internal/config"
	"github.com/erezmus/crewdesk/internal/health"
	"github.com/erezmus/crewdesk/internal/httpapi"
	"github.com/erezmus/crewdesk/internal/identity"
	"github.com/erezmus/crewdesk/internal/metrics"
	"github.com/erezmus/crewdesk/internal/resource"
	"github.com/erezmus/crewdesk/internal/sheet"
	"github.com/erezmus/crewdesk/internal/snapshot"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Str("listen_addr", cfg.ListenAddr).
		Bool("sheet_enabled", cfg.SheetEnabled()).
		Bool("snapshot_enabled", cfg.SnapshotEnabled()).
		Msg("starting crewdesk")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// User directory (seed file)
	directory, err := identity.LoadDirectory(cfg.UsersFile)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.UsersFile).Msg("failed to load user directory")
	}
	logger.Info().Int("users", directory.Count()).Msg("user directory loaded")

	// Stores
	items := board.NewStore(logger)
	chats := chat.NewStore(logger)
	resources := resource.NewStore(logger)

	if cfg.ShortcutsFile != "" {
		shortcuts, err := resource.LoadShortcutsFile(cfg.ShortcutsFile)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.ShortcutsFile).Msg("failed to load shortcuts")
		}
		resources.LoadShortcuts(shortcuts)
	}

	// Snapshot persistence
	var persister snapshot.Persister = snapshot.NewMemoryPersister()
	if cfg.SnapshotEnabled() {
		persister = snapshot.NewFilePersister(cfg.SnapshotPath, logger)
	}
	snap, err := persister.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load snapshot")
	}
	snapshot.Restore(snap, items, chats, resources)

	// Dirty flag: handlers mark, the snapshot loop flushes.
	var dirtyMu sync.Mutex
	dirty := false
	markDirty := func() {
		dirtyMu.Lock()
		dirty = true
		dirtyMu.Unlock()
	}
	flush := func() {
		dirtyMu.Lock()
		wasDirty := dirty
		dirty = false
		dirtyMu.Unlock()
		if !wasDirty {
			return
		}
		if err := persister.Save(snapshot.Capture(items, chats, resources)); err != nil {
			logger.Error().Err(err).Msg("snapshot save failed")
		}
	}

	// Observability
	m := metrics.New()
	m.SetItemsActive(float64(items.Count()))
	checker := health.NewChecker(logger)
	auditLog := audit.NewLog(5000, logger)

	// Sheet endpoint (optional)
	if cfg.SheetEnabled() {
		sheetClient := sheet.NewClient(cfg.SheetURL, cfg.SheetTimeout, logger)
		checker.Register("sheet", func(ctx context.Context) health.Status {
			if err := sheetClient.Ping(ctx); err != nil {
				return health.StatusDegraded
			}
			return health.StatusOK
		})
		logger.Info().Msg("sheet endpoint client initialized")
	}

	// Automation sweep
	automation := board.NewAutomation(items, logger)
	automation.OnRuleFired = m.RecordAutomation
	res := automation.RunAll(time.Now())
	if res.RulesFired > 0 {
		markDirty()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.AutomationInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				res := automation.RunAll(now)
				if res.RulesFired > 0 {
					markDirty()
				}
			}
		}
	}()

	// Snapshot flush loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(cfg.SnapshotInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				flush()
			}
		}
	}()

	// HTTP API
	issuer := httpapi.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	handlers := httpapi.NewHandlers(items, chats, resources, directory, issuer, checker, auditLog, m, logger, markDirty)
	handlers.SetAutomation(automation)
	server := httpapi.NewServer(httpapi.ServerConfig{
		ListenAddr:  cfg.ListenAddr,
		CORSOrigins: cfg.CORSOrigins,
	}, handlers, issuer, directory, m, logger)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("API server error")
		}
	}()

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	cancel()

	if err := server.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("API server shutdown error")
	}

	// Final flush so nothing mutated since the last tick is lost
	flush()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info().Msg("all goroutines stopped")
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("forced shutdown after timeout")
	}

	logger.Info().Msg("crewdesk stopped")
}
