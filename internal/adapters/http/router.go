package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/adapters/ws"
	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/app"
	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/config"
	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/core"
	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/domain"
)

// ClientTokenMiddleware issues a stable per-browser token; it doubles as
// the participant identity the coordinator trusts.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, coord *app.Coordinator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("LiveSessions", store))
	r.Use(ClientTokenMiddleware())

	ctl := ws.NewController(coord, cfg)

	api := r.Group("/api")

	api.GET("/ws/session", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("participant", c.GetString("client_token")).Msg("ws session endpoint hit")
		ctl.HandleSession(ctx, c)
	})

	api.GET("/sessions", func(c *gin.Context) {
		c.JSON(http.StatusOK, coord.Sessions())
	})

	// Pull-based snapshot: the fallback for clients that missed a push.
	api.GET("/sessions/:id", func(c *gin.Context) {
		snap, err := coord.Snapshot(domain.SessionID(c.Param("id")))
		if err == core.ErrSessionNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	return r
}
