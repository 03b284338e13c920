package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Roulette/internal/adapters/signal"
	"github.com/dkeye/Roulette/internal/app"
	"github.com/dkeye/Roulette/internal/config"
)

const (
	sessionName    = "RouletteSessions"
	profileNameKey = "displayName"
)

// ProfileMiddleware exposes the display name remembered in the session
// cookie to the signaling upgrade.
func ProfileMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if name, ok := sessions.Default(c).Get(profileNameKey).(string); ok && name != "" {
			c.Set(signal.DisplayNameKey, name)
		}
		c.Next()
	}
}

type profileRequest struct {
	DisplayName string `json:"displayName" binding:"max=64"`
}

func SetupRouter(ctx context.Context, cfg *config.Config, orch *app.Orchestrator) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(RequestLogger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600 * 24 * 30, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(ProfileMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ctrl := signal.NewSignalWSController(orch,
		signal.NewMessageRateLimiter(cfg.RateLimit, cfg.RateInterval),
		signal.Options{
			ReadLimit:      cfg.ReadLimit,
			PingPeriod:     cfg.PingPeriod,
			PongWait:       cfg.PongWait,
			WriteWait:      cfg.WriteWait,
			SendBuffer:     cfg.SendBuffer,
			AllowedOrigins: cfg.AllowedOrigins,
		})
	iceServers := cfg.WebRTCICEServers()

	api := r.Group("/api")

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("remote", c.ClientIP()).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c)
	})

	api.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, orch.Stats())
	})

	api.GET("/ice-servers", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"iceServers": iceServers})
	})

	api.GET("/profile", func(c *gin.Context) {
		name, _ := sessions.Default(c).Get(profileNameKey).(string)
		c.JSON(http.StatusOK, gin.H{"displayName": name})
	})

	// PUT /api/profile remembers the display name used by later connections.
	api.PUT("/profile", func(c *gin.Context) {
		var req profileRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid displayName"})
			return
		}
		name := strings.TrimSpace(req.DisplayName)
		sess := sessions.Default(c)
		if name == "" {
			sess.Delete(profileNameKey)
		} else {
			sess.Set(profileNameKey, name)
		}
		if err := sess.Save(); err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("save profile")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"displayName": name})
	})

	return r
}
