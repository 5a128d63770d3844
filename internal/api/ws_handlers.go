package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/kinpoint/kinpoint/internal/authz"
	"github.com/kinpoint/kinpoint/internal/membership"
	"github.com/kinpoint/kinpoint/internal/stream"
)

// StreamHandlers upgrades observers onto delivery channels. Authorization
// happens once, at subscription time: group channels require membership in
// the group, subject channels require the privileged location capability.
type StreamHandlers struct {
	hub         *stream.Hub
	resolver    *authz.Resolver
	memberships membership.Repository
	metrics     *stream.Metrics
	logger      *slog.Logger
	upgrader    websocket.Upgrader
}

// NewStreamHandlers creates a new StreamHandlers instance. Metrics may be nil.
func NewStreamHandlers(hub *stream.Hub, resolver *authz.Resolver, memberships membership.Repository, metrics *stream.Metrics, logger *slog.Logger) *StreamHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamHandlers{
		hub:         hub,
		resolver:    resolver,
		memberships: memberships,
		metrics:     metrics,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Subscribe handles GET /api/v1/ws?channels=group:g1,subject:s1 - upgrades
// the connection and attaches it to every requested channel. One
// unauthorized channel rejects the whole request before the upgrade.
func (h *StreamHandlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerID(w, r)
	if !ok {
		return
	}

	raw := r.URL.Query().Get("channels")
	if raw == "" {
		WriteError(w, r.Context(), http.StatusBadRequest, ErrCodeValidation, "channels query parameter is required")
		return
	}
	channels := strings.Split(raw, ",")

	for _, channel := range channels {
		allowed, err := h.authorizeChannel(r, caller, channel)
		if err != nil {
			WriteError(w, r.Context(), http.StatusInternalServerError, ErrCodeInternal, "Authorization check failed")
			return
		}
		if !allowed {
			WriteError(w, r.Context(), http.StatusForbidden, ErrCodeAuthorizationDenied, "Not authorized for channel "+channel)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.logger.Warn("websocket upgrade failed", "subject_id", caller, "error", err)
		return
	}

	for _, channel := range channels {
		h.hub.Subscribe(channel, conn)
	}
	if h.metrics != nil {
		h.metrics.IncActiveConnections()
	}
	h.logger.Info("observer subscribed", "subject_id", caller, "channels", channels)

	// Hold the connection open; inbound frames are ignored, delivery is
	// one-way. The read loop exists to detect the close.
	go func() {
		defer func() {
			h.hub.Unsubscribe(conn)
			if h.metrics != nil {
				h.metrics.DecActiveConnections()
			}
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// authorizeChannel decides one channel subscription.
func (h *StreamHandlers) authorizeChannel(r *http.Request, caller, channel string) (bool, error) {
	kind, id, found := strings.Cut(channel, ":")
	if !found || id == "" {
		return false, nil
	}

	switch kind {
	case "group":
		_, err := h.memberships.RoleIn(r.Context(), id, caller)
		if errors.Is(err, membership.ErrFactNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	case "subject":
		if id == caller {
			return true, nil
		}
		return h.resolver.CanView(r.Context(), caller, id, authz.CapabilityLocation)
	default:
		return false, nil
	}
}
