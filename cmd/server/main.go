package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/starfall-labs/favpanel/internal/config"
	"github.com/starfall-labs/favpanel/internal/favorites"
	"github.com/starfall-labs/favpanel/internal/host"
	"github.com/starfall-labs/favpanel/internal/httpapi"
	"github.com/starfall-labs/favpanel/internal/httpapi/handlers"
	"github.com/starfall-labs/favpanel/internal/preview"
	"github.com/starfall-labs/favpanel/internal/settings"
	"github.com/starfall-labs/favpanel/internal/store/redisstore"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settingsStore, err := settings.Open(cfg.SettingsDBPath)
	if err != nil {
		log.Fatalf("settings db: %v", err)
	}

	docCache := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.ChatDocTTL)
	defer docCache.Close()
	if err := docCache.Ping(ctx); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	client := host.NewClient(cfg.HostBaseURL, cfg.HostToken)
	ctxState := host.NewContextState()
	notify := host.LogNotifier{}

	gw := favorites.NewGateway(client, ctxState, docCache, notify)

	autosave := host.NewDebouncedSaver(cfg.AutosaveDelay, func() {
		saveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := gw.PersistActiveChat(saveCtx); err != nil {
			log.Printf("autosave: %v", err)
		}
	})

	store := favorites.NewStore(gw, ctxState, autosave)
	sessions := favorites.NewSessionManager(gw, ctxState, cfg.SessionTTL, cfg.FavoritesPerPage)
	pv := preview.NewController(gw, store, ctxState, client, ctxState, notify, settingsStore)

	// preview safety net
	go pv.Run(ctx)

	// drop idle browse sessions
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sessions.Sweep()
			}
		}
	}()

	h := handlers.NewHandler(cfg, ctxState, gw, store, sessions, pv, settingsStore)
	r := httpapi.NewRouter(h)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	go func() {
		log.Printf("favorites panel listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
