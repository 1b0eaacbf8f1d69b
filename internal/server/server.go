package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/elskow/amsterdam-discovery/internal/admin"
	"github.com/elskow/amsterdam-discovery/internal/api"
	"github.com/elskow/amsterdam-discovery/internal/auth"
	"github.com/elskow/amsterdam-discovery/internal/calculator"
	"github.com/elskow/amsterdam-discovery/internal/config"
	"github.com/elskow/amsterdam-discovery/internal/database"
)

// Pinger reports whether the backing store answers.
type Pinger interface {
	Ping() error
}

type Server struct {
	config     *config.AppConfig
	log        *zap.Logger
	db         Pinger
	engine     *gin.Engine
	httpServer *http.Server
	ops        *opsServer

	watchCtx    context.Context
	stopWatcher context.CancelFunc
}

type Params struct {
	fx.In

	Config            *config.AppConfig
	Logger            *zap.Logger
	Database          *database.Manager
	AuthHandler       *auth.Handler
	AuthMiddleware    *auth.AuthMiddleware
	CalculatorHandler *calculator.Handler
	AdminHandler      *admin.Handler
}

func isProtectedEndpoint(path string) bool {
	if path == "" {
		// unmatched route, let NoRoute answer
		return false
	}
	isPublic, exists := api.PublicEndpoints[path]
	return !exists || !isPublic
}

func NewServer(p Params) *Server {
	log := p.Logger.Named("server")
	s := &Server{
		config: p.Config,
		log:    log,
		db:     p.Database,
		ops:    newOpsServer(p.Config, log.Named("grpc")),
	}
	s.watchCtx, s.stopWatcher = context.WithCancel(context.Background())
	s.engine = s.newEngine(p)
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", p.Config.Server.Host, p.Config.Server.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) newEngine(p Params) *gin.Engine {
	if s.config.Server.Mode != "" {
		gin.SetMode(s.config.Server.Mode)
	}

	r := gin.New()
	r.Use(requestLogger(s.log), recoverer(s.log), cors(s.config.Server.CORSOrigins))

	authenticate := p.AuthMiddleware.Authenticate()
	r.Use(func(c *gin.Context) {
		if !isProtectedEndpoint(c.FullPath()) {
			c.Next()
			return
		}
		authenticate(c)
	})

	r.GET(api.Health, s.healthCheck)

	r.POST(api.AuthRegister, p.AuthHandler.Register)
	r.POST(api.AuthVerifyEmail, p.AuthHandler.VerifyEmail)
	r.POST(api.AuthLogin, p.AuthHandler.Login)
	r.POST(api.AuthLogout, p.AuthHandler.Logout)
	r.GET(api.AuthProfile, p.AuthHandler.Profile)
	r.PUT(api.AuthMFA, p.AuthHandler.SetMFA)
	r.POST(api.AuthPassword, p.AuthHandler.ChangePassword)
	r.GET(api.AuthGoogle, p.AuthHandler.GoogleLogin)
	r.GET(api.AuthGoogleCallback, p.AuthHandler.GoogleCallback)

	r.POST(api.Calculator, p.CalculatorHandler.Calculate)
	r.GET(api.CalculatorHistory, p.CalculatorHandler.History)

	requireAdmin := p.AuthMiddleware.RequireAdmin()
	r.GET(api.AdminUsers, requireAdmin, p.AdminHandler.ListUsers)
	r.GET(api.AdminStats, requireAdmin, p.AdminHandler.Stats)
	r.DELETE(api.AdminUser, requireAdmin, p.AdminHandler.DeleteUser)
	r.PUT(api.AdminUserAdmin, requireAdmin, p.AdminHandler.ToggleAdmin)

	r.NoRoute(func(c *gin.Context) {
		api.Error(c, http.StatusNotFound, "Endpoint not found")
	})

	return r
}

func (s *Server) healthCheck(c *gin.Context) {
	err := s.db.Ping()
	s.ops.setServing(err == nil)
	if err != nil {
		s.log.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"message": "Amsterdam API is running!",
	})
}

// Handler exposes the HTTP routes, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Start() error {
	s.log.Info("Starting HTTP server",
		zap.String("address", s.httpServer.Addr),
		zap.Object("config", serverConfigToField(s.config)),
	)

	go func() {
		if err := s.ops.serve(); err != nil {
			s.log.Error("gRPC health server stopped", zap.Error(err))
		}
	}()
	go s.ops.watch(s.watchCtx, s.db.Ping, s.config.GRPC.HealthInterval)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

func serverConfigToField(config *config.AppConfig) zapcore.ObjectMarshaler {
	return zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		enc.AddString("environment", os.Getenv("APP_ENV"))
		enc.AddString("mode", config.Server.Mode)
		enc.AddString("grpc_port", config.GRPC.Port)
		enc.AddBool("reflection_enabled", config.GRPC.EnableReflection)
		enc.AddBool("email_verification", config.Auth.RequireEmailVerification)
		enc.AddBool("mail_enabled", config.Mail.Enabled)
		enc.AddBool("redis_enabled", config.Redis.Enabled)
		return nil
	})
}

func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("shutting down servers")
	s.stopWatcher()
	s.ops.stop()
	return s.httpServer.Shutdown(ctx)
}
