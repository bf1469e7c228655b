// Package internal exposes the read-only HTTP status surface. It pulls
// aggregate counts from the registry and observability counters; it never
// mutates coordinator state.
package internal

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"chat-hub/domain"
	"chat-hub/observability"
	"chat-hub/runtime"
)

type StatusPayload struct {
	Rooms    []domain.RoomSummary   `json:"rooms"`
	Sessions int                    `json:"sessions"`
	Messages int                    `json:"messages"`
	Process  observability.Snapshot `json:"process"`
}

// StatusHandler reports room summaries and process metrics as JSON.
func StatusHandler(log *slog.Logger, registry *runtime.RoomRegistry,
	membership *runtime.MembershipManager, stats *observability.Stats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := StatusPayload{
			Rooms:    registry.List(),
			Sessions: membership.SessionCount(),
			Messages: registry.TotalMessages(),
			Process:  stats.Snapshot(),
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			log.Error("Failed to encode status payload", "error", err)
		}
	}
}

// HealthHandler is a plain liveness probe.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
