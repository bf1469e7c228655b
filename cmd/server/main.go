package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"chat-hub/domain"
	"chat-hub/infrastructure/ws"
	"chat-hub/internal"
	"chat-hub/moderation"
	"chat-hub/observability"
	"chat-hub/runtime"
	"chat-hub/runtime/workers"
	"chat-hub/services"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so deferred cleanup always executes before the
// process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Coordination core
	stats := observability.NewStats()
	registry := runtime.NewRoomRegistry(config.LimitMessages)
	if config.DefaultRooms == "" {
		config.DefaultRooms = "general,random,tech"
	}
	for _, id := range splitCSV(config.DefaultRooms) {
		if _, err := registry.Create(domain.RoomID(id), id); err != nil {
			return fmt.Errorf("default room %q: %w", id, err)
		}
	}
	hub := runtime.NewBroadcastHub(log, stats)
	membership := runtime.NewMembershipManager(registry)
	coordinator := runtime.NewCoordinator(log, registry, membership, hub, stats,
		config.CommandBufferSize, config.EnableRoomCreation)

	// 3. Moderation (optional)
	if config.EnableModeration {
		data, err := moderation.LoadWordlists()
		if err != nil {
			return fmt.Errorf("loading wordlists: %w", err)
		}
		log.Info(fmt.Sprintf("%d censored words loaded [%s]",
			len(data.Words), strings.Join(data.Languages, ",")))

		replacement, err := characterRune(config.CharReplacement)
		if err != nil {
			return err
		}
		moderator, err := moderation.NewModerator(data.Words, replacement)
		if err != nil {
			return fmt.Errorf("building moderator: %w", err)
		}
		coordinator.WithModerator(moderator)
	}

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Supervised coordinator actor
	sup := workers.NewSupervisor(log)
	sup.Add(coordinator)
	supDone := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(supDone)
	}()

	// 6. HTTP surface: websocket endpoint + read-only status
	service := services.NewChatService(coordinator, hub)
	wsServer := ws.NewServer(log, service, splitCSV(config.AllowedOrigins),
		config.ConnectionBufferSize, config.SinkTimeout)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsServer.HandleWS)
	mux.HandleFunc("/status", internal.StatusHandler(log, registry, membership, stats))
	mux.HandleFunc("/healthz", internal.HealthHandler())

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting chat hub", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup: stop accepting, let in-flight handlers finish
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	sup.Stop()
	<-supDone
	log.Info("Program stopped cleanly")

	return nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func characterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q", str)
	}
	return r[0], nil
}
