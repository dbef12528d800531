package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/vovakirdan/wireroom/internal/command"
	"github.com/vovakirdan/wireroom/internal/core"
	"github.com/vovakirdan/wireroom/internal/proto"
	"github.com/vovakirdan/wireroom/internal/store"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// APIHandlers provides read-only HTTP handlers over the chat room.
type APIHandlers struct {
	hub      core.Hub
	history  HistoryReader
	commands CommandLister
	log      *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(svc Services, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		hub:      svc.Hub,
		history:  svc.History,
		commands: svc.Commands,
		log:      logger,
	}
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PresenceResponse lists every known identity with its online status.
type PresenceResponse struct {
	Entries []proto.Identity `json:"entries"`
}

// HistoryResponse holds recent chat events, oldest first.
type HistoryResponse struct {
	Events []proto.ChatEvent `json:"events"`
}

// CommandResponse describes one chat command.
type CommandResponse struct {
	Kind             string   `json:"kind"`
	Names            []string `json:"names"`
	ArgumentRequired bool     `json:"argument_required"`
}

// Presence returns the presence snapshot.
// GET /api/presence
func (h *APIHandlers) Presence(c *gin.Context) {
	entries, err := h.hub.Presence(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to build presence snapshot")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, PresenceResponse{
		Entries: lo.Map(entries, func(e core.PresenceEntry, _ int) proto.Identity {
			return identityToProto(&e)
		}),
	})
}

// History returns the most recent chat events.
// GET /api/history?limit=50
func (h *APIHandlers) History(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	events, err := h.history.Tail(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Int("limit", limit).Msg("failed to read history")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, HistoryResponse{
		Events: lo.Map(events, func(ev store.ChatEvent, _ int) proto.ChatEvent {
			return chatEventToProto(ev, "")
		}),
	})
}

// Commands lists the registered chat commands.
// GET /api/commands
func (h *APIHandlers) Commands(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"commands": lo.Map(h.commands.Commands(), func(info command.Info, _ int) CommandResponse {
			return CommandResponse{
				Kind:             string(info.Kind),
				Names:            info.Names,
				ArgumentRequired: info.ArgumentRequired,
			}
		}),
	})
}
