package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/campuschat-server/internal/auth"
	"github.com/vovakirdan/campuschat-server/internal/config"
	"github.com/vovakirdan/campuschat-server/internal/core"
	"github.com/vovakirdan/campuschat-server/internal/service/messages"
)

// NewServer builds an HTTP server with basic routes. The websocket endpoint
// sits on the mux next to the gin engine because gin's writer refuses the
// hijack after the upgrade response is written.
func NewServer(
	hub *core.Hub,
	authenticator *core.Authenticator,
	authService *auth.Service,
	messageService *messages.Service,
	cfg *config.Config,
	logger *zerolog.Logger,
) *stdhttp.Server {
	mux := stdhttp.NewServeMux()
	mux.Handle("/ws", NewWSHandler(hub, authenticator, cfg, logger))
	mux.Handle("/", NewRouter(authService, messageService, cfg, logger))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter registers the REST routes on a gin engine.
func NewRouter(
	authService *auth.Service,
	messageService *messages.Service,
	cfg *config.Config,
	logger *zerolog.Logger,
) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(logger))
	router.Use(CORSMiddleware(cfg.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	apiHandlers := NewAPIHandlers(authService, logger)
	chatHandlers := NewChatHandlers(messageService, logger)

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/register", apiHandlers.Register)
		authGroup.POST("/login", apiHandlers.Login)

		chat := api.Group("/chat")
		chat.Use(AuthMiddleware(authService, logger))
		chat.GET("", chatHandlers.List)
		chat.POST("", chatHandlers.Create)
	}

	return router
}
