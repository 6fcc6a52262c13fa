package httpserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mizunoto/tankwatch/internal/config"
	"github.com/mizunoto/tankwatch/internal/model"
)

// ReadingStore covers the reading table operations the handlers need.
type ReadingStore interface {
	RecentWaterReadings(ctx context.Context, limit int) ([]model.WaterReading, error)
	RecentAtmosphericReadings(ctx context.Context, limit int) ([]model.AtmosphericReading, error)
	InsertWaterReading(ctx context.Context, volumeM3, volumeLiters *float64) (model.WaterReading, error)
	InsertAtmosphericReading(ctx context.Context, temperature, humidity *float64) (model.AtmosphericReading, error)
}

// AccountStore covers the account and recovery procedures.
type AccountStore interface {
	VerifyUser(ctx context.Context, username, password string) (model.User, bool, error)
	CreateUser(ctx context.Context, username, password string) (string, error)
	GetUser(ctx context.Context, id string) (model.User, bool, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, bool, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	SetAdmin(ctx context.Context, id string, isAdmin bool) error
	SetDarkMode(ctx context.Context, id string, darkMode bool) error
	ChangePassword(ctx context.Context, id, newPassword string) error
	DeleteUser(ctx context.Context, id string) error
	GenerateRecoveryToken(ctx context.Context, userID string) (string, error)
	VerifyRecoveryToken(ctx context.Context, token string) (bool, error)
	HashPassword(ctx context.Context, password string) (string, error)
	ResetPasswordWithToken(ctx context.Context, token, newPasswordHash string) (bool, error)
}

// Store is the full persistence surface behind the API.
type Store interface {
	ReadingStore
	AccountStore
}

// LatestCache holds the newest reading per kind. May be nil when no cache is
// configured; handlers then fall back to the database.
type LatestCache interface {
	SetWater(ctx context.Context, reading model.WaterReading) error
	Water(ctx context.Context) (model.WaterReading, bool, error)
	SetAtmospheric(ctx context.Context, reading model.AtmosphericReading) error
	Atmospheric(ctx context.Context) (model.AtmosphericReading, bool, error)
}

// Server bundles router and dependencies for the REST API.
type Server struct {
	cfg    config.Config
	store  Store
	latest LatestCache
	log    *slog.Logger
	engine *gin.Engine
}

// New constructs a server with routes and middleware.
func New(cfg config.Config, store Store, latestCache LatestCache, log *slog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	if cfg.BearerToken != "" {
		engine.Use(bearerAuthMiddleware(cfg.BearerToken))
	}

	server := &Server{
		cfg:    cfg,
		store:  store,
		latest: latestCache,
		log:    log.With("component", "httpserver"),
		engine: engine,
	}
	server.registerRoutes()
	return server
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ListenAddr(),
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.engine.POST("/arduino-data", s.handleIngest)

	v1 := s.engine.Group("/api/v1")

	readings := v1.Group("/readings")
	{
		readings.GET("/water", s.handleWaterReadings)
		readings.GET("/atmospheric", s.handleAtmosphericReadings)
	}

	v1.GET("/realtime/now", s.handleRealtimeNow)

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/signin", s.handleSignIn)
		authGroup.POST("/signup", s.handleSignUp)
		authGroup.POST("/recovery/request", s.handleRecoveryRequest)
		authGroup.POST("/recovery/reset", s.handleRecoveryReset)
	}

	users := v1.Group("/users")
	{
		users.GET("", s.handleListUsers)
		users.POST("/:id/password", s.handleChangePassword)
		users.POST("/:id/admin", s.handleSetAdmin)
		users.POST("/:id/dark_mode", s.handleSetDarkMode)
		users.DELETE("/:id", s.handleDeleteUser)
	}
}

func bearerAuthMiddleware(expected string) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
		if token != expected {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Next()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Client-Info, Apikey")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
