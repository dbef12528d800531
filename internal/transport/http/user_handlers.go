package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireroom/internal/auth"
	"github.com/vovakirdan/wireroom/internal/store"
)

// IdentityHandlers provides HTTP handlers for identity operations.
type IdentityHandlers struct {
	identities *auth.Service
	log        *zerolog.Logger
}

// NewIdentityHandlers creates a new identity handlers instance.
func NewIdentityHandlers(identities *auth.Service, logger *zerolog.Logger) *IdentityHandlers {
	return &IdentityHandlers{
		identities: identities,
		log:        logger,
	}
}

// CreateIdentityRequest represents the identity creation request body.
type CreateIdentityRequest struct {
	Username string `json:"username" binding:"required,max=32"`
	Avatar   string `json:"avatar"`
}

// IdentityResponse represents an identity in API responses.
type IdentityResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	IsOnline bool   `json:"is_online"`
}

// CreateIdentityResponse carries the new identity and its join token.
type CreateIdentityResponse struct {
	Identity IdentityResponse `json:"identity"`
	Token    string           `json:"token"`
}

// UpdateAvatarRequest represents the avatar update request body.
type UpdateAvatarRequest struct {
	Avatar string `json:"avatar"`
}

func identityResponse(identity *store.Identity) IdentityResponse {
	return IdentityResponse{
		ID:       identity.ID,
		Username: identity.Username,
		Avatar:   identity.Avatar,
		IsOnline: identity.IsOnline,
	}
}

// CreateIdentity registers a new identity and returns a join token for it.
// POST /api/identities
func (h *IdentityHandlers) CreateIdentity(c *gin.Context) {
	var req CreateIdentityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create identity request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	identity, token, err := h.identities.Register(c.Request.Context(), req.Username, req.Avatar)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidUsername):
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid username"})
		case errors.Is(err, store.ErrIdentityExists):
			c.JSON(http.StatusConflict, ErrorResponse{Error: "identity already exists"})
		default:
			h.log.Error().Err(err).Str("username", req.Username).Msg("failed to create identity")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	h.log.Info().Int64("identity_id", identity.ID).Str("username", identity.Username).Msg("identity created")
	c.JSON(http.StatusCreated, CreateIdentityResponse{
		Identity: identityResponse(identity),
		Token:    token,
	})
}

// Me returns the identity behind the bearer token.
// GET /api/me
func (h *IdentityHandlers) Me(c *gin.Context) {
	identityID, ok := h.identityID(c)
	if !ok {
		return
	}

	identity, err := h.identities.Get(c.Request.Context(), identityID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "identity not found"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int64("identity_id", identityID).Msg("failed to load identity")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, identityResponse(identity))
}

// UpdateAvatar replaces the avatar reference of the caller.
// PUT /api/me/avatar
func (h *IdentityHandlers) UpdateAvatar(c *gin.Context) {
	identityID, ok := h.identityID(c)
	if !ok {
		return
	}

	var req UpdateAvatarRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.identities.UpdateAvatar(c.Request.Context(), identityID, req.Avatar); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: "identity not found"})
			return
		}
		h.log.Error().Err(err).Int64("identity_id", identityID).Msg("failed to update avatar")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *IdentityHandlers) identityID(c *gin.Context) (int64, bool) {
	raw, exists := c.Get(ContextKeyIdentityID)
	if !exists {
		h.log.Error().Msg("identity_id not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return 0, false
	}
	id, ok := raw.(int64)
	if !ok {
		h.log.Error().Msg("invalid identity_id type in context")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return 0, false
	}
	return id, true
}
