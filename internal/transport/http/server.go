package http

import (
	"context"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wireroom/internal/auth"
	"github.com/vovakirdan/wireroom/internal/command"
	"github.com/vovakirdan/wireroom/internal/config"
	"github.com/vovakirdan/wireroom/internal/core"
	"github.com/vovakirdan/wireroom/internal/store"
)

// HistoryReader replays recent chat events.
type HistoryReader interface {
	Tail(ctx context.Context, n int) ([]store.ChatEvent, error)
}

// CommandLister lists the registered chat commands.
type CommandLister interface {
	Commands() []command.Info
}

// Services are the application services exposed over HTTP.
type Services struct {
	Hub        core.Hub
	Identities *auth.Service
	History    HistoryReader
	Commands   CommandLister
}

// NewServer builds an HTTP server with the WebSocket endpoint and the REST API.
func NewServer(svc Services, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)

	api := NewAPIHandlers(svc, logger)
	identities := NewIdentityHandlers(svc.Identities, logger)

	group := router.Group("/api")
	group.POST("/identities", identities.CreateIdentity)
	group.GET("/presence", api.Presence)
	group.GET("/history", api.History)
	group.GET("/commands", api.Commands)

	me := group.Group("/me", AuthMiddleware(svc.Identities, logger))
	me.GET("", identities.Me)
	me.PUT("/avatar", identities.UpdateAvatar)

	// The WebSocket upgrade hijacks the connection, which gin's response writer refuses.
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(svc.Hub, cfg, logger))
	mux.Handle("/", router)

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
