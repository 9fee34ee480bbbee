package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/seniorcare/opscentre/internal/sync"
)

// SyncCompleteData contains sync completion information
type SyncCompleteData struct {
	Mode     sync.Mode     `json:"mode"`
	Outcome  sync.Outcome  `json:"outcome"`
	Reason   sync.Reason   `json:"reason,omitempty"`
	Message  string        `json:"message,omitempty"`
	RemoteID string        `json:"remote_id,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Handler turns sync results into dashboard messages.
// Wire OnResult into the scheduler's result hook.
type Handler struct {
	server *Server
	logger *slog.Logger
}

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		server: server,
		logger: logger.With("component", "dashboard"),
	}
}

// OnResult broadcasts a sync_complete message, followed by fresh stats
// when the run moved data.
func (h *Handler) OnResult(res sync.Result) {
	data := SyncCompleteData{
		Mode:     res.Mode,
		Outcome:  res.Outcome,
		Reason:   res.Reason,
		Message:  res.Message,
		RemoteID: res.RemoteID,
		Duration: res.Duration,
	}

	dataJSON, err := json.Marshal(data)
	if err != nil {
		h.logger.Error("failed to marshal sync data", "error", err)
		return
	}

	h.server.Broadcast(Message{
		Type:      MessageTypeSyncComplete,
		Timestamp: h.server.now(),
		Data:      dataJSON,
	})

	if res.Changed() {
		h.BroadcastStats(context.Background())
	}
}

// BroadcastStats sends current statistics to all clients.
func (h *Handler) BroadcastStats(ctx context.Context) {
	stats, err := h.server.currentStats(ctx)
	if err != nil {
		h.logger.Warn("failed to read stats", "error", err)
		return
	}
	if stats == nil {
		return
	}

	dataJSON, err := json.Marshal(stats)
	if err != nil {
		h.logger.Error("failed to marshal stats", "error", err)
		return
	}

	h.server.Broadcast(Message{
		Type:      MessageTypeStats,
		Timestamp: h.server.now(),
		Data:      dataJSON,
	})
}
